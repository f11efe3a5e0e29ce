package game

import "errors"

var (
	ErrRoomNotFound       = errors.New("room-not-found")
	ErrRoomFull           = errors.New("room-full")
	ErrGameAlreadyStarted = errors.New("game-already-started")
	ErrNotHost            = errors.New("not-host")
	ErrPlayersNotReady    = errors.New("players-not-ready")
	ErrNotMember          = errors.New("not-a-member")
	ErrNotEnoughPlayers   = errors.New("not-enough-players")
	ErrWrongStatus        = errors.New("wrong-room-status")
	ErrInvalidConfig      = errors.New("invalid-room-config")

	// ErrStoreWriteFailed wraps transient document-store failures. Actions
	// are single atomic document operations, so the room is unchanged when
	// this is returned; callers simply re-invoke.
	ErrStoreWriteFailed = errors.New("store-write-failed")
)
