package turn

// Scheduler rotates the drawer role through a join-ordered roster and
// tracks how many full rotations have completed. A rotation completes when
// the role has passed through a number of turns equal to the roster size at
// the time each turn finished; changing the roster mid-rotation restarts
// the in-progress cycle so the round counter never skips or fractions.
//
// Scheduler is not safe for concurrent use; the owning session serializes
// access under its own lock.
type Scheduler struct {
	turnsInCycle int
	rotations    int
}

func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Reset clears all rotation bookkeeping. Called when a new match starts.
func (s *Scheduler) Reset() {
	s.turnsInCycle = 0
	s.rotations = 0
}

// NextDrawer selects the roster member immediately following lastDrawerID
// in join order, wrapping to the first member. If lastDrawerID is no longer
// present (or empty), the first member is selected. Returns "" for an empty
// roster.
func (s *Scheduler) NextDrawer(roster []string, lastDrawerID string) string {
	if len(roster) == 0 {
		return ""
	}
	for i, id := range roster {
		if id == lastDrawerID {
			return roster[(i+1)%len(roster)]
		}
	}
	return roster[0]
}

// CompleteTurn records that one drawer turn finished with the given roster
// size. It returns true when that turn completed a full rotation through
// the current roster, which is the only point at which the round number
// may increment.
func (s *Scheduler) CompleteTurn(rosterSize int) bool {
	if rosterSize <= 0 {
		return false
	}
	s.turnsInCycle++
	if s.turnsInCycle >= rosterSize {
		s.turnsInCycle = 0
		s.rotations++
		return true
	}
	return false
}

// RosterChanged restarts the in-progress cycle. Players joining or leaving
// mid-rotation must not produce partial rotations.
func (s *Scheduler) RosterChanged() {
	s.turnsInCycle = 0
}

// Rotations returns how many full rotations have completed since Reset.
func (s *Scheduler) Rotations() int {
	return s.rotations
}
