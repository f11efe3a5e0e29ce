// Package session is the client-side glue between the authenticated user and
// the room it sits in. There is no ambient storage: the session is an
// explicit value created at sign-in and handed to whatever drives the UI.
// Everything per-round lives either in the room document (and is derived
// from snapshots) or in the client-local trivia run, which is rebuilt from
// the room category on reload.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/InfiniteDev0/JoinUp/domain"
	"github.com/InfiniteDev0/JoinUp/game"
)

// Presence records which room the user currently sits in, for the friends'
// active-rooms view. Best-effort: presence lag never blocks room actions.
type Presence interface {
	UpdateCurrentRoom(ctx context.Context, uid, roomID string) error
}

// RoomSource reads and subscribes to room documents.
type RoomSource interface {
	GetRoom(ctx context.Context, roomID string) (game.Room, error)
	Watch(ctx context.Context, roomID string) (<-chan game.RoomSnapshot, func(), error)
}

type Session struct {
	user     domain.User
	presence Presence
	rooms    RoomSource

	mu     sync.Mutex
	roomID string
	trivia *game.TriviaRun
}

func New(user domain.User, presence Presence, rooms RoomSource) *Session {
	return &Session{user: user, presence: presence, rooms: rooms}
}

func (s *Session) User() domain.User { return s.user }

func (s *Session) RoomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

// EnterRoom binds the session to a room and syncs presence.
func (s *Session) EnterRoom(ctx context.Context, roomID string) {
	s.mu.Lock()
	s.roomID = roomID
	s.trivia = nil
	s.mu.Unlock()

	if err := s.presence.UpdateCurrentRoom(ctx, s.user.UID, roomID); err != nil {
		log.Warn().Err(err).Str("uid", s.user.UID).Msg("presence update failed")
	}
}

// LeaveRoom unbinds the session and clears presence.
func (s *Session) LeaveRoom(ctx context.Context) {
	s.mu.Lock()
	s.roomID = ""
	s.trivia = nil
	s.mu.Unlock()

	if err := s.presence.UpdateCurrentRoom(ctx, s.user.UID, ""); err != nil {
		log.Warn().Err(err).Str("uid", s.user.UID).Msg("presence clear failed")
	}
}

// Rejoin re-subscribes to the bound room after a reload. The subscription's
// immediate initial snapshot carries everything needed to reconstruct the
// round; the caller projects it with DeriveRoundState. A deleted room
// unbinds the session.
func (s *Session) Rejoin(ctx context.Context) (<-chan game.RoomSnapshot, func(), error) {
	roomID := s.RoomID()
	if roomID == "" {
		return nil, nil, game.ErrRoomNotFound
	}

	if _, err := s.rooms.GetRoom(ctx, roomID); err != nil {
		s.LeaveRoom(ctx)
		return nil, nil, err
	}
	return s.rooms.Watch(ctx, roomID)
}

// StartTrivia (re)builds the local question run for the room's category.
func (s *Session) StartTrivia(category string) *game.TriviaRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trivia = game.NewTriviaRun(category)
	return s.trivia
}

func (s *Session) Trivia() *game.TriviaRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trivia
}

// RoundState is the per-player projection of a room snapshot: every field a
// client needs to render its round, derived purely from the document so that
// a reloaded client lands in exactly the state it left.
type RoundState struct {
	Status       game.Status        `json:"status"`
	Phase        game.ImposterPhase `json:"phase,omitempty"`
	IsHost       bool               `json:"isHost"`
	IsReady      bool               `json:"isReady"`
	IsGameReady  bool               `json:"isGameReady"`
	AssignedWord string             `json:"assignedWord,omitempty"`
	IsImposter   bool               `json:"isImposter"`
	Vote         string             `json:"vote,omitempty"`
	HasSubmitted bool               `json:"hasSubmitted"`
	Score        int                `json:"score"`
	TimeLeft     time.Duration      `json:"timeLeft"`
	Winner       *game.Player       `json:"winner,omitempty"`
}

// DeriveRoundState projects the snapshot onto the given player. ok is false
// when uid is not in the room.
func DeriveRoundState(room *game.Room, uid string, now time.Time) (RoundState, bool) {
	i := room.PlayerIndex(uid)
	if i < 0 {
		return RoundState{}, false
	}
	p := room.Players[i]

	state := RoundState{
		Status:       room.Status,
		IsHost:       p.IsHost,
		IsReady:      p.IsReady,
		IsGameReady:  p.IsGameReady,
		AssignedWord: p.AssignedWord,
		IsImposter:   p.IsImposter,
		Vote:         p.Vote,
		HasSubmitted: p.HasSubmitted,
		Score:        p.Score,
		TimeLeft:     room.TimeLeft(now),
	}
	if room.GameID == game.GameImposter {
		state.Phase = room.Phase()
	}
	if winner, terminal := room.Winner(); terminal {
		state.Winner = &winner
	}
	return state, true
}
