package turn

import "testing"

func TestNextDrawerRotatesInJoinOrder(t *testing.T) {
	s := NewScheduler()
	roster := []string{"ana", "beto", "carla"}

	got := s.NextDrawer(roster, "")
	if got != "ana" {
		t.Fatalf("first drawer = %q, want ana", got)
	}
	if got = s.NextDrawer(roster, "ana"); got != "beto" {
		t.Fatalf("after ana = %q, want beto", got)
	}
	if got = s.NextDrawer(roster, "carla"); got != "ana" {
		t.Fatalf("wrap after carla = %q, want ana", got)
	}
}

func TestNextDrawerHandlesDepartedDrawer(t *testing.T) {
	s := NewScheduler()
	roster := []string{"beto", "carla"}

	if got := s.NextDrawer(roster, "ana"); got != "beto" {
		t.Fatalf("departed drawer should fall back to first member, got %q", got)
	}
	if got := s.NextDrawer(nil, "ana"); got != "" {
		t.Fatalf("empty roster should return empty id, got %q", got)
	}
}

func TestRoundRobinFairness(t *testing.T) {
	// Over N rotations, each player draws exactly once per rotation before
	// anyone repeats.
	s := NewScheduler()
	roster := []string{"a", "b", "c", "d"}

	last := ""
	for rotation := 0; rotation < 5; rotation++ {
		seen := make(map[string]bool)
		for turn := 0; turn < len(roster); turn++ {
			drawer := s.NextDrawer(roster, last)
			if seen[drawer] {
				t.Fatalf("rotation %d: %q drew twice before a full cycle", rotation, drawer)
			}
			seen[drawer] = true
			last = drawer
			s.CompleteTurn(len(roster))
		}
		if len(seen) != len(roster) {
			t.Fatalf("rotation %d covered %d players, want %d", rotation, len(seen), len(roster))
		}
	}
	if s.Rotations() != 5 {
		t.Fatalf("Rotations() = %d, want 5", s.Rotations())
	}
}

func TestCompleteTurnWrapsOnCurrentRosterSize(t *testing.T) {
	s := NewScheduler()

	if s.CompleteTurn(3) {
		t.Fatal("rotation reported complete after 1 of 3 turns")
	}
	if s.CompleteTurn(3) {
		t.Fatal("rotation reported complete after 2 of 3 turns")
	}
	if !s.CompleteTurn(3) {
		t.Fatal("rotation not complete after 3 of 3 turns")
	}
}

func TestRosterChangeRestartsCycle(t *testing.T) {
	s := NewScheduler()

	s.CompleteTurn(3)
	s.CompleteTurn(3)
	s.RosterChanged()

	// The cycle restarted at the new size of 2; two more turns complete it.
	if s.CompleteTurn(2) {
		t.Fatal("rotation reported complete immediately after roster change")
	}
	if !s.CompleteTurn(2) {
		t.Fatal("rotation not complete after full cycle at new roster size")
	}
	if s.Rotations() != 1 {
		t.Fatalf("Rotations() = %d, want 1", s.Rotations())
	}
}
