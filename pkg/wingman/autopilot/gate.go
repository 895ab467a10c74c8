// gate.go implements the debounce/cooldown gate. At most one
// generate-and-reply cycle runs at a time; after each cycle a cooldown
// must elapse before the next can start.
package autopilot

import (
	"sync"
	"sync/atomic"
	"time"
)

// Gate pairs the per-conversation armed flags with the single busy flag.
// busy is an atomic compare-and-swap because cycles run on their own
// goroutines.
type Gate struct {
	busy     atomic.Bool
	cooldown time.Duration

	mu    sync.RWMutex
	armed map[string]bool
}

// NewGate creates a gate with the given cooldown between cycles.
func NewGate(cooldown time.Duration) *Gate {
	return &Gate{
		cooldown: cooldown,
		armed:    make(map[string]bool),
	}
}

// Arm enables automatic replies for a conversation.
func (g *Gate) Arm(chatID string) {
	g.mu.Lock()
	g.armed[chatID] = true
	g.mu.Unlock()
}

// Disarm disables automatic replies for a conversation. Advisory only:
// a cycle already in flight completes.
func (g *Gate) Disarm(chatID string) {
	g.mu.Lock()
	delete(g.armed, chatID)
	g.mu.Unlock()
}

// Armed reports whether a conversation has automatic replies enabled.
func (g *Gate) Armed(chatID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.armed[chatID]
}

// TryAcquire attempts to start a cycle. It fails while another cycle is
// in flight or cooling down.
func (g *Gate) TryAcquire() bool {
	return g.busy.CompareAndSwap(false, true)
}

// Release ends a cycle, making the gate available again. Callers must
// wait out the cooldown first.
func (g *Gate) Release() {
	g.busy.Store(false)
}

// Busy reports whether a cycle is in flight.
func (g *Gate) Busy() bool {
	return g.busy.Load()
}

// Cooldown returns the enforced silence period between cycles.
func (g *Gate) Cooldown() time.Duration {
	return g.cooldown
}
