package session

import (
	"errors"
	"log"
	"time"
)

// Decision is the tracker's answer to a confirmed shake.
type Decision int

const (
	// None: no open session, the shake is ignored.
	None Decision = iota
	// Acquire: the session has no surface yet; the caller should acquire
	// one and bind it.
	Acquire
	// Reuse: the session already owns a surface; refocus it, never
	// create a second.
	Reuse
)

var decisionNames = map[Decision]string{
	None:    "none",
	Acquire: "acquire",
	Reuse:   "reuse",
}

func (d Decision) String() string {
	if s, ok := decisionNames[d]; ok {
		return s
	}
	return "unknown"
}

var (
	ErrNoSession       = errors.New("no open drag session")
	ErrSurfaceBound    = errors.New("session already has a surface")
	ErrSessionMismatch = errors.New("session id does not match current session")
)

// Tracker turns drag signals into logical sessions and enforces the
// at-most-one-surface-per-session invariant. It is driven synchronously
// from the engine loop and needs no internal locking; the Store it
// publishes snapshots to is safe for concurrent readers.
type Tracker struct {
	phase   Phase
	current *DragSession
	store   *Store
}

func NewTracker(store *Store) *Tracker {
	return &Tracker{phase: NoSession, store: store}
}

// Phase returns the tracker's current state-machine phase.
func (t *Tracker) Phase() Phase {
	return t.phase
}

// Current returns a snapshot of the current session, or nil when none is
// open or closing.
func (t *Tracker) Current() *DragSession {
	if t.current == nil {
		return nil
	}
	return t.current.Clone()
}

// DragActive handles the drag-start signal and returns the session id.
// A fresh id is minted whenever no session is open: an immediate re-drag
// after closure gets a new session and must not touch the prior session's
// surface, whose teardown still belongs to the coordinator.
func (t *Tracker) DragActive(now time.Time) string {
	switch t.phase {
	case SessionOpen:
		// Duplicate active signal; the native source may repeat itself.
		return t.current.ID
	case SessionClosing:
		log.Printf("[session] re-drag while %s closing; minting new session", t.current.ID)
	}

	t.current = &DragSession{
		ID:        newID(now),
		Phase:     SessionOpen,
		StartedAt: now,
	}
	t.phase = SessionOpen
	t.store.Put(t.current)
	log.Printf("[session] opened %s", t.current.ID)
	return t.current.ID
}

// DragInactive handles the drag-end signal. The session transitions to
// SessionClosing; final teardown is deferred to the coordinator, because a
// surface created during an active drag must not be torn down merely
// because the drag ended.
func (t *Tracker) DragInactive(now time.Time) {
	if t.phase != SessionOpen {
		return
	}
	ended := now
	t.current.EndedAt = &ended
	t.current.Phase = SessionClosing
	t.phase = SessionClosing
	t.store.Put(t.current)
	log.Printf("[session] %s closing (shakes=%d, surface=%q)",
		t.current.ID, t.current.ShakeCount, t.current.SurfaceID)
}

// ConfirmedShake records a confirmed shake against the open session and
// decides whether the caller should acquire a surface or reuse the
// existing one. Shakes with no open session decide None.
func (t *Tracker) ConfirmedShake() (Decision, string) {
	if t.phase != SessionOpen {
		return None, ""
	}
	t.current.ShakeCount++
	t.store.Put(t.current)
	if t.current.SurfaceID != "" {
		return Reuse, t.current.SurfaceID
	}
	return Acquire, ""
}

// BindSurface associates a surface with the current session. Must be
// called synchronously with the Acquire decision, before any asynchronous
// surface construction begins, so a second shake arriving mid-construction
// decides Reuse instead of triggering a duplicate acquisition.
func (t *Tracker) BindSurface(sessionID, surfaceID string) error {
	if t.current == nil || t.phase == NoSession {
		return ErrNoSession
	}
	if t.current.ID != sessionID {
		return ErrSessionMismatch
	}
	if t.current.SurfaceID != "" {
		return ErrSurfaceBound
	}
	t.current.SurfaceID = surfaceID
	t.store.Put(t.current)
	return nil
}

// UnbindSurface clears the surface binding after a failed acquisition so a
// later shake in the same session can retry. This is the only case where
// the binding may be cleared while the session lives.
func (t *Tracker) UnbindSurface(sessionID string) {
	if t.current == nil || t.current.ID != sessionID {
		return
	}
	t.current.SurfaceID = ""
	t.store.Put(t.current)
}

// CloseOut finalizes a closing session. Called by the coordinator once it
// has released (or decided never to create) the session's surface.
func (t *Tracker) CloseOut(sessionID string) {
	if t.current == nil || t.current.ID != sessionID {
		return
	}
	t.phase = NoSession
	t.current = nil
	log.Printf("[session] %s closed out", sessionID)
}
