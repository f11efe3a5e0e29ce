package game

// ImposterWord is the sentinel assigned to the odd-one-out player. Everyone
// else in the round receives the identical category word.
const ImposterWord = "IMPOSTER"

const defaultWordCategory = "objects"

var wordBank = map[string][]string{
	"objects": {"Chair", "Lamp", "Phone", "Book", "Pen", "Table", "Clock", "Mirror"},
	"places":  {"Beach", "Mountain", "Desert", "Forest", "City", "Village", "Island", "Valley"},
	"actions": {"Running", "Swimming", "Dancing", "Singing", "Cooking", "Reading", "Writing", "Jumping"},
	"animals": {"Dog", "Cat", "Bird", "Fish", "Elephant", "Lion", "Tiger", "Bear"},
}

// WordsFor returns the word list for category, falling back to the default
// category when unknown.
func WordsFor(category string) []string {
	words, ok := wordBank[category]
	if !ok {
		words = wordBank[defaultWordCategory]
	}
	return words
}

// AssignWords gives the shared word to every player except the one at
// imposterIndex, who gets the sentinel. Once wordsAssigned is set the
// assignment is immutable for the round: re-invocation is a no-op, which is
// what makes concurrent duplicate assignment harmless.
func (r *Room) AssignWords(imposterIndex int, word string) {
	if r.WordsAssigned {
		return
	}
	if imposterIndex < 0 || imposterIndex >= len(r.Players) {
		return
	}
	for i := range r.Players {
		if i == imposterIndex {
			r.Players[i].AssignedWord = ImposterWord
			r.Players[i].IsImposter = true
		} else {
			r.Players[i].AssignedWord = word
			r.Players[i].IsImposter = false
		}
	}
	r.WordsAssigned = true
}

// ImposterPhase is the imposter round sub-state, derived from room flags
// rather than stored as a separate enum.
type ImposterPhase string

const (
	PhaseAwaitingReady ImposterPhase = "awaiting-ready"
	PhaseDiscussing    ImposterPhase = "discussing"
	PhaseVoting        ImposterPhase = "voting"
	PhaseTerminal      ImposterPhase = "terminal"
)

// Phase derives the imposter sub-state from the current snapshot. The reveal
// (host action or timer expiry) opens the vote even if some players never
// confirmed their word.
func (r *Room) Phase() ImposterPhase {
	switch {
	case r.Status == StatusFinished || r.Status == StatusEnded:
		return PhaseTerminal
	case r.WordsRevealed:
		return PhaseVoting
	case !r.WordsAssigned || !r.AllGameReady():
		return PhaseAwaitingReady
	default:
		return PhaseDiscussing
	}
}

// TallyVotes counts votes per target uid.
func TallyVotes(players []Player) map[string]int {
	tally := make(map[string]int)
	for i := range players {
		if players[i].Vote != "" {
			tally[players[i].Vote]++
		}
	}
	return tally
}

// caughtPlayer returns the player with the most votes. Ties between equal
// top counts resolve to the first such player by join order so every client
// agrees on who was caught. ok is false when no votes were cast.
func caughtPlayer(players []Player) (Player, bool) {
	tally := TallyVotes(players)
	if len(tally) == 0 {
		return Player{}, false
	}
	best := -1
	for i := range players {
		n := tally[players[i].UID]
		if n == 0 {
			continue
		}
		if best < 0 || n > tally[players[best].UID] {
			best = i
		}
	}
	return players[best], true
}

// imposterWinner applies the reveal rule: if the caught player is the actual
// imposter, the non-imposters win collectively and the first non-imposter by
// join order is reported as the representative winner; otherwise the
// imposter wins. No votes at all is a default imposter win.
func imposterWinner(players []Player) (Player, bool) {
	var imposter *Player
	for i := range players {
		if players[i].IsImposter {
			imposter = &players[i]
			break
		}
	}
	if imposter == nil {
		return Player{}, false
	}

	caught, voted := caughtPlayer(players)
	if voted && caught.UID == imposter.UID {
		for i := range players {
			if !players[i].IsImposter {
				return players[i], true
			}
		}
	}
	return *imposter, true
}
