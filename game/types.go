package game

import (
	"time"

	"github.com/InfiniteDev0/JoinUp/domain"
)

// Collection is the docstore collection holding room documents.
const Collection = "rooms"

type GameID int

const (
	GameTrivia   GameID = 1
	GameImposter GameID = 2
)

func (g GameID) Name() string {
	switch g {
	case GameTrivia:
		return "Trivia Question"
	case GameImposter:
		return "Imposter"
	default:
		return ""
	}
}

// Status is the room lifecycle state. Transitions are monotonic along
// waiting -> playing -> finished; ended is reachable from playing or
// finished by host action only, and is terminal.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
	StatusEnded    Status = "ended"
)

// Player is one participant, embedded in Room.Players in join order.
type Player struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
	IsHost      bool   `json:"isHost"`
	IsReady     bool   `json:"isReady"`

	// Trivia round state.
	Score int `json:"score"`

	// Imposter round state.
	AssignedWord string `json:"assignedWord,omitempty"`
	IsImposter   bool   `json:"isImposter"`
	Vote         string `json:"vote,omitempty"`
	IsGameReady  bool   `json:"isGameReady"`

	// True once this player has written its round result.
	HasSubmitted bool `json:"hasSubmitted"`
}

// Room is the shared document representing one game session. It is the sole
// source of truth: every per-round client state must be derivable from the
// latest snapshot so a reloading client can reconstruct itself.
type Room struct {
	ID         string   `json:"id,omitempty"`
	Code       string   `json:"code"`
	GameID     GameID   `json:"gameId"`
	GameName   string   `json:"gameName"`
	HostID     string   `json:"hostId"`
	Category   string   `json:"category"`
	Timer      int      `json:"timer"` // countdown budget in seconds
	MaxPlayers int      `json:"maxPlayers"`
	Status     Status   `json:"status"`
	Players    []Player `json:"players"`

	WordsAssigned   bool `json:"wordsAssigned"`
	WordsRevealed   bool `json:"wordsRevealed"`
	AllPlayersReady bool `json:"allPlayersReady"`

	CreatedAt      time.Time `json:"createdAt"`
	RoundStartedAt time.Time `json:"roundStartedAt,omitempty"`
}

// RoomConfig is the host-supplied game setup.
type RoomConfig struct {
	GameID     GameID `json:"gameId" binding:"required"`
	Category   string `json:"category" binding:"required"`
	Timer      int    `json:"timer" binding:"required"`
	MaxPlayers int    `json:"maxPlayers" binding:"required"`
}

func NewRoom(code string, cfg RoomConfig, creator domain.User, now time.Time) Room {
	return Room{
		Code:       code,
		GameID:     cfg.GameID,
		GameName:   cfg.GameID.Name(),
		HostID:     creator.UID,
		Category:   cfg.Category,
		Timer:      cfg.Timer,
		MaxPlayers: cfg.MaxPlayers,
		Status:     StatusWaiting,
		CreatedAt:  now,
		Players: []Player{{
			UID:         creator.UID,
			DisplayName: creator.DisplayName,
			PhotoURL:    creator.PhotoURL,
			IsHost:      true,
			IsReady:     true, // the host is implicitly always ready
		}},
	}
}

// PlayerIndex returns the position of uid in join order, or -1.
func (r *Room) PlayerIndex(uid string) int {
	for i := range r.Players {
		if r.Players[i].UID == uid {
			return i
		}
	}
	return -1
}

func (r *Room) Host() *Player {
	for i := range r.Players {
		if r.Players[i].IsHost {
			return &r.Players[i]
		}
	}
	return nil
}

func (r *Room) IsHost(uid string) bool {
	h := r.Host()
	return h != nil && h.UID == uid
}

// AllReady reports whether every non-host player flagged ready.
func (r *Room) AllReady() bool {
	for i := range r.Players {
		if !r.Players[i].IsHost && !r.Players[i].IsReady {
			return false
		}
	}
	return true
}

// AllGameReady reports whether every player confirmed seeing its word.
func (r *Room) AllGameReady() bool {
	for i := range r.Players {
		if !r.Players[i].IsGameReady {
			return false
		}
	}
	return len(r.Players) > 0
}

// AllSubmitted reports whether every player wrote its round result.
func (r *Room) AllSubmitted() bool {
	for i := range r.Players {
		if !r.Players[i].HasSubmitted {
			return false
		}
	}
	return len(r.Players) > 0
}

// Deadline is the authoritative end of the active round.
func (r *Room) Deadline() time.Time {
	return r.RoundStartedAt.Add(time.Duration(r.Timer) * time.Second)
}

// TimeLeft is the remaining round budget as observed at now, floored at zero.
func (r *Room) TimeLeft(now time.Time) time.Duration {
	if r.RoundStartedAt.IsZero() {
		return time.Duration(r.Timer) * time.Second
	}
	left := r.Deadline().Sub(now)
	if left < 0 {
		return 0
	}
	return left
}
