package guess

import "strings"

// Outcome classifies a chat message submitted during a match.
type Outcome int

const (
	// Passthrough means chat is unrestricted (no active round); the
	// message is relayed as ordinary chat.
	Passthrough Outcome = iota
	// Blocked means the drawer tried to talk during the active phase; the
	// message is fully suppressed.
	Blocked
	// Miss means the guess did not match the secret answer; the message is
	// still relayed as ordinary chat.
	Miss
	// Hit means a first correct guess; the caller awards points.
	Hit
)

func (o Outcome) String() string {
	switch o {
	case Passthrough:
		return "passthrough"
	case Blocked:
		return "blocked"
	case Miss:
		return "miss"
	case Hit:
		return "hit"
	}
	return "unknown"
}

// Input is the view of the round an evaluation needs.
type Input struct {
	Text          string
	SenderID      string
	DrawerID      string
	SecretAnswer  string
	RoundActive   bool
	AlreadyScored bool
}

// Evaluate decides what a chat message means for the active round. It is a
// pure function; score deltas are computed by the caller at the moment of
// evaluation so point values are never stale.
func Evaluate(in Input) Outcome {
	if !in.RoundActive {
		return Passthrough
	}
	if in.SenderID == in.DrawerID {
		return Blocked
	}
	if !Matches(in.Text, in.SecretAnswer) {
		return Miss
	}
	if in.AlreadyScored {
		// First correct guess only; repeats from the same player count as
		// ordinary chat misses.
		return Miss
	}
	return Hit
}

// Matches compares a guess to the secret answer: trimmed, case-insensitive,
// locale-independent.
func Matches(text, secret string) bool {
	return strings.EqualFold(strings.TrimSpace(text), strings.TrimSpace(secret))
}

// DrawerBonus is the drawer's cut of a correct guess: floor(20%).
func DrawerBonus(scoreDelta int) int {
	return scoreDelta / 5
}
