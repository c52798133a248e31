package alert

import (
	"sync"
	"time"
)

// Key identifies one dedup bucket: a subject, a signal or movement name, and
// the timeframe (or movement period) it fired on.
type Key struct {
	Subject   string
	Name      string
	Timeframe string
}

// Registry tracks the last admitted firing per key. State lives in process
// memory only; a restart clears every cooldown.
type Registry struct {
	mu        sync.Mutex
	lastFired map[Key]time.Time
}

func NewRegistry() *Registry {
	return &Registry{lastFired: make(map[Key]time.Time)}
}

// Admit reports whether a notification for key may fire at now, and records
// now as the new last-fired time when it may. The record happens at admission,
// not at delivery, so a burst of concurrent evaluations of the same key admits
// at most one within any cooldown window.
func (r *Registry) Admit(key Key, now time.Time, cooldown time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	last, ok := r.lastFired[key]
	if ok && now.Sub(last) < cooldown {
		return false
	}
	r.lastFired[key] = now
	return true
}

// Len reports how many keys have ever been admitted. Used for diagnostics.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lastFired)
}
