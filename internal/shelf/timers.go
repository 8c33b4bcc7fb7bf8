package shelf

import (
	"sync"
	"time"
)

// TimerFired is delivered on the registry's channel when a named timer
// expires without having been cancelled.
type TimerFired struct {
	Name      string
	SurfaceID string
	At        time.Time
}

// Registry owns every destruction-capable timer in the engine. Timers are
// named and tracked so stale ones referencing an already-retired
// surface are provably cancelled rather than assumed to no-op: a fire
// only reaches the channel if the entry is still registered at expiry,
// and Cancel removes the entry under the same lock the fire checks it
// under. Cancellation is synchronous and idempotent.
type Registry struct {
	mu      sync.Mutex
	timers  map[string]*timerEntry
	fired   chan TimerFired
	nextGen uint64
}

type timerEntry struct {
	timer     *time.Timer
	surfaceID string
	gen       uint64
}

func NewRegistry() *Registry {
	return &Registry{
		timers: make(map[string]*timerEntry),
		fired:  make(chan TimerFired, 16),
	}
}

// Fired returns the channel expired timers are delivered on. The engine
// loop is the only reader.
func (r *Registry) Fired() <-chan TimerFired {
	return r.fired
}

// Schedule arms a named timer. Re-scheduling an existing name replaces
// the previous timer; the replaced one can no longer fire.
func (r *Registry) Schedule(name, surfaceID string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.timers[name]; ok {
		prev.timer.Stop()
		delete(r.timers, name)
	}

	r.nextGen++
	entry := &timerEntry{surfaceID: surfaceID, gen: r.nextGen}
	gen := entry.gen
	entry.timer = time.AfterFunc(d, func() {
		r.fire(name, gen)
	})
	r.timers[name] = entry
}

// fire delivers the expiry if and only if the entry is still the one that
// was scheduled. A cancelled or replaced timer finds no matching entry
// and its fire evaporates here.
func (r *Registry) fire(name string, gen uint64) {
	r.mu.Lock()
	entry, ok := r.timers[name]
	if !ok || entry.gen != gen {
		r.mu.Unlock()
		return
	}
	delete(r.timers, name)
	surfaceID := entry.surfaceID
	r.mu.Unlock()

	r.fired <- TimerFired{Name: name, SurfaceID: surfaceID, At: time.Now()}
}

// Cancel disarms a named timer. Cancelling an unknown, already-cancelled,
// or already-fired name is a no-op.
func (r *Registry) Cancel(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.timers[name]; ok {
		entry.timer.Stop()
		delete(r.timers, name)
	}
}

// CancelSurface disarms every timer referencing the given surface. Called
// on retirement so nothing outlives the surface it could destroy.
func (r *Registry) CancelSurface(surfaceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, entry := range r.timers {
		if entry.surfaceID == surfaceID {
			entry.timer.Stop()
			delete(r.timers, name)
		}
	}
}

// Pending reports whether a timer with the given name is currently armed.
func (r *Registry) Pending(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.timers[name]
	return ok
}
