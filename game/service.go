package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/InfiniteDev0/JoinUp/apiclient"
	"github.com/InfiniteDev0/JoinUp/docstore"
	"github.com/InfiniteDev0/JoinUp/domain"
	"github.com/InfiniteDev0/JoinUp/notify"
)

// Service is the single arbitrating writer for room documents. Clients never
// write the store directly: every mutation goes through one of these methods
// and is applied as one atomic document transform, so near-simultaneous
// actions from different players cannot drop each other's updates.
type Service struct {
	store    docstore.Store
	users    UserGetter
	results  ResultsSink
	invites  InviteSender
	notifier notify.Notifier
	tickers  PeriodicTickerChannelCreator

	now        func() time.Time
	graceDelay time.Duration

	mu    sync.Mutex
	loops map[string]context.CancelFunc
}

// defaultGraceDelay is how long an ended room document lingers before
// deletion, so every subscriber observes status=ended before not-found.
const defaultGraceDelay = 3 * time.Second

type Option func(*Service)

// WithTickerCreator replaces the round-loop ticker source (tests).
func WithTickerCreator(t PeriodicTickerChannelCreator) Option {
	return func(s *Service) { s.tickers = t }
}

// WithClock replaces the service clock (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithGraceDelay(d time.Duration) Option {
	return func(s *Service) { s.graceDelay = d }
}

func NewService(store docstore.Store, users UserGetter, results ResultsSink, invites InviteSender, notifier notify.Notifier, opts ...Option) *Service {
	s := &Service{
		store:      store,
		users:      users,
		results:    results,
		invites:    invites,
		notifier:   notifier,
		tickers:    NewTickerGen(),
		now:        time.Now,
		graceDelay: defaultGraceDelay,
		loops:      make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRoom creates a waiting room with the caller as its sole, ready host
// player. Join codes are regenerated on collision, a bounded number of times.
func (s *Service) CreateRoom(ctx context.Context, uid string, cfg RoomConfig) (Room, error) {
	if err := validateConfig(cfg); err != nil {
		return Room{}, err
	}
	user, err := s.users.GetUser(ctx, uid)
	if err != nil {
		return Room{}, err
	}

	code, err := generateCode(func(code string) (bool, error) {
		docs, err := s.store.Query(ctx, Collection, "code", code)
		if err != nil {
			return false, fmt.Errorf("%w: %w", ErrStoreWriteFailed, err)
		}
		return len(docs) > 0, nil
	})
	if err != nil {
		return Room{}, err
	}

	room := NewRoom(code, cfg, user, s.now())
	data, err := json.Marshal(room)
	if err != nil {
		return Room{}, err
	}
	id, err := s.store.Create(ctx, Collection, data)
	if err != nil {
		return Room{}, fmt.Errorf("%w: %w", ErrStoreWriteFailed, err)
	}

	// The store assigns the id; write it back so snapshots are
	// self-describing.
	return s.apply(ctx, id, func(r *Room) error {
		r.ID = id
		return nil
	})
}

// JoinRoom adds the caller to the waiting room with the given code.
// Idempotent for users already in the room.
func (s *Service) JoinRoom(ctx context.Context, uid, code string) (Room, error) {
	user, err := s.users.GetUser(ctx, uid)
	if err != nil {
		return Room{}, err
	}
	docs, err := s.store.Query(ctx, Collection, "code", strings.ToUpper(code))
	if err != nil {
		return Room{}, fmt.Errorf("%w: %w", ErrStoreWriteFailed, err)
	}
	if len(docs) == 0 {
		return Room{}, ErrRoomNotFound
	}
	return s.apply(ctx, docs[0].ID, func(r *Room) error {
		return r.Join(user)
	})
}

func (s *Service) ToggleReady(ctx context.Context, uid, roomID string) (Room, error) {
	return s.apply(ctx, roomID, func(r *Room) error {
		return r.ToggleReady(uid)
	})
}

// StartGame moves the room into playing and, for Imposter, performs the
// round assignment in the same atomic update: one uniformly-random imposter,
// one shared category word for everyone else. The guard on wordsAssigned
// makes a duplicate assignment under concurrent starts a no-op.
func (s *Service) StartGame(ctx context.Context, uid, roomID string) (Room, error) {
	room, err := s.apply(ctx, roomID, func(r *Room) error {
		if err := r.Start(uid, s.now()); err != nil {
			return err
		}
		if r.GameID == GameImposter {
			words := WordsFor(r.Category)
			r.AssignWords(rand.IntN(len(r.Players)), words[rand.IntN(len(words))])
		}
		return nil
	})
	if err != nil {
		return Room{}, err
	}
	s.startRoundLoop(roomID, room.Deadline())
	return room, nil
}

// SubmitScore records the caller's trivia score. The room finishes as soon
// as every player has submitted, without waiting for the timer.
func (s *Service) SubmitScore(ctx context.Context, uid, roomID string, score int) (Room, error) {
	room, err := s.apply(ctx, roomID, func(r *Room) error {
		return r.SubmitScore(uid, score)
	})
	if err != nil {
		return Room{}, err
	}
	if room.Status == StatusFinished {
		s.onFinished(room)
	}
	return room, nil
}

// CastVote records the caller's imposter vote once words are revealed.
func (s *Service) CastVote(ctx context.Context, uid, roomID, targetUID string) (Room, error) {
	room, err := s.apply(ctx, roomID, func(r *Room) error {
		return r.CastVote(uid, targetUID)
	})
	if err != nil {
		return Room{}, err
	}
	if room.Status == StatusFinished {
		s.onFinished(room)
	}
	return room, nil
}

// MarkGameReady records that the caller has seen its assigned word; the
// discussion phase is derived once every player has confirmed.
func (s *Service) MarkGameReady(ctx context.Context, uid, roomID string) (Room, error) {
	return s.apply(ctx, roomID, func(r *Room) error {
		return r.MarkGameReady(uid)
	})
}

// RevealWords opens the imposter vote phase. Host only.
func (s *Service) RevealWords(ctx context.Context, uid, roomID string) (Room, error) {
	return s.apply(ctx, roomID, func(r *Room) error {
		return r.Reveal(uid)
	})
}

// EndRoom marks the room ended and deletes the document after the grace
// delay. Subscribers see the ended status before the document disappears.
func (s *Service) EndRoom(ctx context.Context, uid, roomID string) (Room, error) {
	room, err := s.apply(ctx, roomID, func(r *Room) error {
		return r.End(uid)
	})
	if err != nil {
		return Room{}, err
	}
	s.stopRoundLoop(roomID)

	time.AfterFunc(s.graceDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.store.Delete(ctx, Collection, roomID); err != nil && !errors.Is(err, docstore.ErrNotFound) {
			log.Error().Err(err).Str("room", roomID).Msg("failed to delete ended room")
		}
	})
	return room, nil
}

// ResetForNewRound returns a finished room to the lobby for reconfiguration.
func (s *Service) ResetForNewRound(ctx context.Context, uid, roomID string) (Room, error) {
	return s.apply(ctx, roomID, func(r *Room) error {
		return r.ResetForNewRound(uid)
	})
}

// Reconfigure updates the game selection of a waiting room. Host only.
func (s *Service) Reconfigure(ctx context.Context, uid, roomID string, cfg RoomConfig) (Room, error) {
	if err := validateConfig(cfg); err != nil {
		return Room{}, err
	}
	return s.apply(ctx, roomID, func(r *Room) error {
		return r.Reconfigure(uid, cfg)
	})
}

// GetRoom returns the current snapshot.
func (s *Service) GetRoom(ctx context.Context, roomID string) (Room, error) {
	data, err := s.store.Get(ctx, Collection, roomID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return Room{}, ErrRoomNotFound
		}
		return Room{}, fmt.Errorf("%w: %w", ErrStoreWriteFailed, err)
	}
	return decodeRoom(roomID, data)
}

// InviteFriend asks the backend to invite a friend into the caller's room
// and requests a best-effort push notification.
func (s *Service) InviteFriend(ctx context.Context, fromUID, toUID, roomID string) error {
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	from, err := s.users.GetUser(ctx, fromUID)
	if err != nil {
		return err
	}
	if err := s.invites.SendGameInvite(ctx, fromUID, toUID, roomID, room.GameName); err != nil {
		return err
	}
	if err := s.notifier.Push(ctx, toUID, notify.Notification{
		Title: "Game invite",
		Body:  from.DisplayName + " invited you to play " + room.GameName,
		Data:  map[string]string{"roomId": roomID, "code": room.Code},
	}); err != nil {
		log.Warn().Err(err).Str("uid", toUID).Msg("invite notification failed")
	}
	return nil
}

// RoomSnapshot is one delivery on a room subscription. Winner is set once
// the room reaches a terminal status; Exists is false when the document was
// deleted (host ended the room and the grace delay elapsed).
type RoomSnapshot struct {
	Room   *Room   `json:"room,omitempty"`
	Winner *Player `json:"winner,omitempty"`
	Exists bool    `json:"exists"`
}

// Watch subscribes to a room document. The current snapshot is delivered
// immediately, which is what lets a reloaded client reconstruct all of its
// round state.
func (s *Service) Watch(ctx context.Context, roomID string) (<-chan RoomSnapshot, func(), error) {
	raw, stop, err := s.store.Watch(ctx, Collection, roomID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrStoreWriteFailed, err)
	}

	out := make(chan RoomSnapshot, cap(raw))
	go func() {
		defer close(out)
		for snap := range raw {
			if !snap.Exists {
				out <- RoomSnapshot{Exists: false}
				continue
			}
			room, err := decodeRoom(roomID, snap.Data)
			if err != nil {
				log.Error().Err(err).Str("room", roomID).Msg("corrupt room snapshot")
				continue
			}
			delivery := RoomSnapshot{Room: &room, Exists: true}
			if winner, ok := room.Winner(); ok {
				delivery.Winner = &winner
			}
			out <- delivery
		}
	}()
	return out, stop, nil
}

// apply runs one guarded transition as an atomic document transform.
// A guard failure aborts the write and leaves the document unchanged.
func (s *Service) apply(ctx context.Context, roomID string, mutate func(*Room) error) (Room, error) {
	updated, err := s.store.Update(ctx, Collection, roomID, func(current []byte) ([]byte, error) {
		room, err := decodeRoom(roomID, current)
		if err != nil {
			return nil, err
		}
		if err := mutate(&room); err != nil {
			return nil, err
		}
		return json.Marshal(room)
	})
	if err != nil {
		switch {
		case errors.Is(err, docstore.ErrNotFound):
			return Room{}, ErrRoomNotFound
		case isGuardError(err):
			return Room{}, err
		default:
			return Room{}, fmt.Errorf("%w: %w", ErrStoreWriteFailed, err)
		}
	}
	return decodeRoom(roomID, updated)
}

// startRoundLoop runs the single authoritative countdown for a playing
// room. Per-client timers are presentation only; this loop is what actually
// fires the timeout transition.
func (s *Service) startRoundLoop(roomID string, deadline time.Time) {
	s.mu.Lock()
	if _, running := s.loops[roomID]; running {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.loops[roomID] = cancel
	s.mu.Unlock()

	ticks, stopTicks := s.tickers.Create(time.Second)
	go func() {
		defer stopTicks()
		defer s.stopRoundLoop(roomID)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticks:
				if s.now().Before(deadline) {
					continue
				}
				room, err := s.apply(ctx, roomID, func(r *Room) error {
					r.FinishOnTimeout()
					return nil
				})
				if err != nil {
					if !errors.Is(err, ErrRoomNotFound) {
						log.Error().Err(err).Str("room", roomID).Msg("timeout transition failed")
					}
					return
				}
				if room.Status == StatusFinished {
					s.onFinished(room)
				}
				return
			}
		}
	}()
}

// ResumeRoundLoops restarts the authoritative countdown for rooms that were
// mid-round when the process last stopped. Without it a restarted service
// would leave playing rooms with no timer driver, finishable only by
// all-submitted.
func (s *Service) ResumeRoundLoops(ctx context.Context) error {
	docs, err := s.store.Query(ctx, Collection, "status", string(StatusPlaying))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreWriteFailed, err)
	}
	for _, doc := range docs {
		room, err := decodeRoom(doc.ID, doc.Data)
		if err != nil {
			log.Error().Err(err).Str("room", doc.ID).Msg("corrupt playing room document, skipping")
			continue
		}
		s.startRoundLoop(room.ID, room.Deadline())
	}
	return nil
}

func (s *Service) stopRoundLoop(roomID string) {
	s.mu.Lock()
	cancel, ok := s.loops[roomID]
	if ok {
		delete(s.loops, roomID)
	}
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

// onFinished ships the result to the stats backend and notifies the winner.
// Both are fire-and-forget: the room is already finished either way.
func (s *Service) onFinished(room Room) {
	s.stopRoundLoop(room.ID)

	winner, ok := room.Winner()
	if !ok {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := s.results.SaveGameResult(ctx, buildResult(room, winner)); err != nil {
			log.Warn().Err(err).Str("room", room.ID).Msg("failed to save game result")
		}
		if err := s.notifier.Push(ctx, winner.UID, notify.Notification{
			Title: "You won!",
			Body:  "You won a round of " + room.GameName,
			Data:  map[string]string{"roomId": room.ID},
		}); err != nil {
			log.Warn().Err(err).Str("uid", winner.UID).Msg("win notification failed")
		}
	}()
}

func buildResult(room Room, winner Player) apiclient.GameResult {
	result := apiclient.GameResult{
		RoomCode: room.Code,
		GameID:   int(room.GameID),
		GameName: room.GameName,
		Category: room.Category,
		Duration: room.Timer,
		Winner: domain.User{
			UID:         winner.UID,
			DisplayName: winner.DisplayName,
			PhotoURL:    winner.PhotoURL,
		},
	}
	for _, p := range room.Players {
		result.Players = append(result.Players, apiclient.PlayerResult{
			UID:         p.UID,
			DisplayName: p.DisplayName,
			PhotoURL:    p.PhotoURL,
			Score:       p.Score,
			IsWinner:    p.UID == winner.UID,
			IsImposter:  p.IsImposter,
		})
	}
	return result
}

func decodeRoom(id string, data []byte) (Room, error) {
	var room Room
	if err := json.Unmarshal(data, &room); err != nil {
		return Room{}, err
	}
	room.ID = id
	return room, nil
}

func validateConfig(cfg RoomConfig) error {
	if cfg.GameID != GameTrivia && cfg.GameID != GameImposter {
		return fmt.Errorf("%w: unknown game id %d", ErrInvalidConfig, cfg.GameID)
	}
	if cfg.MaxPlayers < 2 {
		return fmt.Errorf("%w: maxPlayers must be at least 2", ErrInvalidConfig)
	}
	if cfg.Timer < 10 || cfg.Timer > 600 {
		return fmt.Errorf("%w: timer must be between 10 and 600 seconds", ErrInvalidConfig)
	}
	return nil
}

var guardErrors = []error{
	ErrRoomNotFound,
	ErrRoomFull,
	ErrGameAlreadyStarted,
	ErrNotHost,
	ErrPlayersNotReady,
	ErrNotMember,
	ErrNotEnoughPlayers,
	ErrWrongStatus,
}

func isGuardError(err error) bool {
	for _, guard := range guardErrors {
		if errors.Is(err, guard) {
			return true
		}
	}
	return false
}
