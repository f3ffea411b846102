package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// RoundClock tracks how much of a round's time budget is left. It is a
// monotonic stopwatch: remaining time is computed from elapsed wall-clock
// duration at read time, never decremented tick by tick, so the value stays
// correct even if the process is suspended between reads.
//
// RoundClock is not safe for concurrent use; the owning session serializes
// access under its own lock.
type RoundClock struct {
	clock     clockwork.Clock
	budget    time.Duration
	startedAt time.Time
	running   bool
}

// New creates a RoundClock backed by the given clock. Pass
// clockwork.NewRealClock() in production and a fake clock in tests.
func New(clk clockwork.Clock) *RoundClock {
	return &RoundClock{clock: clk}
}

// Start begins a countdown of budgetSeconds from the current instant.
// Restarting an already-running clock resets it.
func (c *RoundClock) Start(budgetSeconds int) {
	c.budget = time.Duration(budgetSeconds) * time.Second
	c.startedAt = c.clock.Now()
	c.running = true
}

// Stop freezes the clock. RemainingSeconds reports 0 afterwards.
func (c *RoundClock) Stop() {
	c.running = false
}

// Running reports whether a countdown is in progress.
func (c *RoundClock) Running() bool {
	return c.running
}

// StartedAt returns the instant the current countdown began.
func (c *RoundClock) StartedAt() time.Time {
	return c.startedAt
}

// RemainingSeconds returns max(0, budget - elapsed whole seconds).
func (c *RoundClock) RemainingSeconds() int {
	if !c.running {
		return 0
	}
	elapsed := int(c.clock.Since(c.startedAt) / time.Second)
	remaining := int(c.budget/time.Second) - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}
