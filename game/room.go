package game

import (
	"time"

	"github.com/InfiniteDev0/JoinUp/domain"
)

// The transition functions below are pure with respect to the document: they
// mutate a Room value in place under the store's write isolation and return
// an error without side effects when a guard fails. Every client computing a
// derived value (winner, phase, time left) from the same snapshot gets the
// same answer.

// Join appends user as a non-host, non-ready player. Joining a room the user
// is already in succeeds without a duplicate entry.
func (r *Room) Join(user domain.User) error {
	if r.Status != StatusWaiting {
		return ErrGameAlreadyStarted
	}
	if r.PlayerIndex(user.UID) >= 0 {
		return nil
	}
	if len(r.Players) >= r.MaxPlayers {
		return ErrRoomFull
	}
	r.Players = append(r.Players, Player{
		UID:         user.UID,
		DisplayName: user.DisplayName,
		PhotoURL:    user.PhotoURL,
	})
	r.AllPlayersReady = r.AllReady()
	return nil
}

// ToggleReady flips the lobby ready flag of a non-host player. The host is
// implicitly always ready, so toggling it is a no-op.
func (r *Room) ToggleReady(uid string) error {
	if r.Status != StatusWaiting {
		return ErrGameAlreadyStarted
	}
	i := r.PlayerIndex(uid)
	if i < 0 {
		return ErrNotMember
	}
	if r.Players[i].IsHost {
		return nil
	}
	r.Players[i].IsReady = !r.Players[i].IsReady
	r.AllPlayersReady = r.AllReady()
	return nil
}

// Start moves the room into playing. Only the host may start, every non-host
// player must be ready, and at least two players must be present.
// RoundStartedAt anchors the authoritative countdown.
func (r *Room) Start(uid string, now time.Time) error {
	if r.Status != StatusWaiting {
		return ErrGameAlreadyStarted
	}
	if !r.IsHost(uid) {
		return ErrNotHost
	}
	if len(r.Players) < 2 {
		return ErrNotEnoughPlayers
	}
	if !r.AllReady() {
		return ErrPlayersNotReady
	}
	r.Status = StatusPlaying
	r.RoundStartedAt = now
	return nil
}

// SubmitScore writes uid's trivia score into its own player entry and marks
// it submitted. When every player has submitted the room finishes without
// waiting for the timer.
func (r *Room) SubmitScore(uid string, score int) error {
	if r.Status != StatusPlaying {
		return ErrWrongStatus
	}
	i := r.PlayerIndex(uid)
	if i < 0 {
		return ErrNotMember
	}
	r.Players[i].Score = score
	r.Players[i].HasSubmitted = true
	if r.AllSubmitted() {
		r.Status = StatusFinished
	}
	return nil
}

// CastVote records uid's imposter vote for target. Votes open only after the
// host reveals words. All votes in finishes the round.
func (r *Room) CastVote(uid, target string) error {
	if r.Status != StatusPlaying {
		return ErrWrongStatus
	}
	if !r.WordsRevealed {
		return ErrWrongStatus
	}
	i := r.PlayerIndex(uid)
	if i < 0 {
		return ErrNotMember
	}
	if r.PlayerIndex(target) < 0 {
		return ErrNotMember
	}
	r.Players[i].Vote = target
	r.Players[i].HasSubmitted = true
	if r.AllSubmitted() {
		r.Status = StatusFinished
	}
	return nil
}

// MarkGameReady records that uid has seen its assigned word. Discussion
// begins once every player has confirmed. Idempotent.
func (r *Room) MarkGameReady(uid string) error {
	if r.Status != StatusPlaying || !r.WordsAssigned {
		return ErrWrongStatus
	}
	i := r.PlayerIndex(uid)
	if i < 0 {
		return ErrNotMember
	}
	r.Players[i].IsGameReady = true
	return nil
}

// Reveal flips the host-gated wordsRevealed flag, opening the vote phase.
func (r *Room) Reveal(uid string) error {
	if r.Status != StatusPlaying {
		return ErrWrongStatus
	}
	if !r.IsHost(uid) {
		return ErrNotHost
	}
	r.WordsRevealed = true
	return nil
}

// FinishOnTimeout applies the authoritative timer expiry: trivia rooms
// finish, imposter rooms reveal words so the vote phase can start.
func (r *Room) FinishOnTimeout() {
	if r.Status != StatusPlaying {
		return
	}
	switch r.GameID {
	case GameImposter:
		r.WordsRevealed = true
	default:
		r.Status = StatusFinished
	}
}

// End marks the room host-terminated. The document is deleted after a grace
// delay so all subscribers observe the ended status first; ended and
// document-not-found are distinguished signals to clients.
func (r *Room) End(uid string) error {
	if !r.IsHost(uid) {
		return ErrNotHost
	}
	if r.Status != StatusPlaying && r.Status != StatusFinished {
		return ErrWrongStatus
	}
	r.Status = StatusEnded
	return nil
}

// ResetForNewRound returns a finished room to the lobby: round fields are
// cleared, non-hosts are unready, and the game selection is cleared pending
// reconfiguration by the host.
func (r *Room) ResetForNewRound(uid string) error {
	if !r.IsHost(uid) {
		return ErrNotHost
	}
	if r.Status != StatusFinished {
		return ErrWrongStatus
	}
	for i := range r.Players {
		p := &r.Players[i]
		p.IsReady = p.IsHost
		p.Score = 0
		p.Vote = ""
		p.AssignedWord = ""
		p.IsImposter = false
		p.IsGameReady = false
		p.HasSubmitted = false
	}
	r.Status = StatusWaiting
	r.GameID = 0
	r.GameName = ""
	r.Category = ""
	r.WordsAssigned = false
	r.WordsRevealed = false
	r.AllPlayersReady = false
	r.RoundStartedAt = time.Time{}
	return nil
}

// Reconfigure updates the game selection of a waiting room. Host only.
func (r *Room) Reconfigure(uid string, cfg RoomConfig) error {
	if !r.IsHost(uid) {
		return ErrNotHost
	}
	if r.Status != StatusWaiting {
		return ErrGameAlreadyStarted
	}
	if cfg.MaxPlayers < len(r.Players) {
		return ErrRoomFull
	}
	r.GameID = cfg.GameID
	r.GameName = cfg.GameID.Name()
	r.Category = cfg.Category
	r.Timer = cfg.Timer
	r.MaxPlayers = cfg.MaxPlayers
	return nil
}

// Winner computes the winner from a terminal snapshot. It must be identical
// on every client, so all tie-breaks are first-by-join-order.
func (r *Room) Winner() (Player, bool) {
	if r.Status != StatusFinished && r.Status != StatusEnded {
		return Player{}, false
	}
	switch r.GameID {
	case GameTrivia:
		return triviaWinner(r.Players)
	case GameImposter:
		return imposterWinner(r.Players)
	default:
		return Player{}, false
	}
}

func triviaWinner(players []Player) (Player, bool) {
	if len(players) == 0 {
		return Player{}, false
	}
	best := 0
	for i := range players {
		if players[i].Score > players[best].Score {
			best = i
		}
	}
	return players[best], true
}
