package control

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// gracePeriod is a deadline during which the safety monitor must not
// act on distance samples, so an intentional reverse away from an
// obstacle is not immediately vetoed. A zero deadline means inactive;
// the flag and the timestamp cannot drift apart because the deadline is
// the only state.
type gracePeriod struct {
	mu       sync.Mutex
	clk      clock.Clock
	deadline time.Time
}

func newGracePeriod(clk clock.Clock) *gracePeriod {
	return &gracePeriod{clk: clk}
}

// Arm suppresses safety checks for the given duration from now.
func (g *gracePeriod) Arm(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deadline = g.clk.Now().Add(d)
}

// Clear cancels any suppression immediately.
func (g *gracePeriod) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deadline = time.Time{}
}

// Active reports whether suppression is in effect, clearing an expired
// deadline as a side effect.
func (g *gracePeriod) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.deadline.IsZero() {
		return false
	}
	if g.clk.Now().Before(g.deadline) {
		return true
	}
	g.deadline = time.Time{}
	return false
}
