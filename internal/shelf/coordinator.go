// Package shelf runs the surface lifecycle: it fuses pointer samples,
// drag signals, presentation events and timer expiries into one state
// machine and drives the surface pool accordingly.
//
// Every piece of lifecycle state is owned by the coordinator's single
// engine goroutine. Other goroutines talk to it through channels (the
// input pump, the surface event queue, the timer registry) or read the
// last published snapshot; nothing else mutates.
package shelf

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/JinhuW/dropshelf/internal/config"
	"github.com/JinhuW/dropshelf/internal/gesture"
	"github.com/JinhuW/dropshelf/internal/input"
	"github.com/JinhuW/dropshelf/internal/pool"
	"github.com/JinhuW/dropshelf/internal/session"
)

func autoHideTimer(surfaceID string) string { return "autohide:" + surfaceID }
func ceilingTimer(surfaceID string) string  { return "ceiling:" + surfaceID }

// Coordinator is the lifecycle engine. Construct with NewCoordinator,
// then run Run on its own goroutine.
type Coordinator struct {
	cfgMu sync.RWMutex
	cfg   *config.Config

	pump    *input.Pump
	rec     *gesture.Recognizer
	tracker *session.Tracker
	pool    *pool.Pool
	timers  *Registry
	sink    ItemSink

	surfaceEvents chan SurfaceEvent

	notify func(Snapshot)

	// Engine-loop-owned state. Never touched off the loop.
	state       State
	shelf       *ShelfState
	surface     *pool.PooledSurface
	lastPointer pool.Point
	// shelfCfg is snapshotted at acquisition; runtime config changes
	// apply to the next shelf only.
	shelfCfg config.ShelfConfig

	snapMu   sync.RWMutex
	lastSnap Snapshot
}

func NewCoordinator(cfg *config.Config, pump *input.Pump, rec *gesture.Recognizer,
	tracker *session.Tracker, p *pool.Pool, timers *Registry, sink ItemSink) *Coordinator {
	c := &Coordinator{
		cfg:           cfg,
		pump:          pump,
		rec:           rec,
		tracker:       tracker,
		pool:          p,
		timers:        timers,
		sink:          sink,
		surfaceEvents: make(chan SurfaceEvent, 64),
		state:         Idle,
	}
	c.lastSnap = c.buildSnapshot()
	return c
}

// SetNotify installs the snapshot observer. Must be set before Run; the
// callback runs on the engine goroutine and must not block.
func (c *Coordinator) SetNotify(fn func(Snapshot)) {
	c.notify = fn
}

// SetConfig swaps the live configuration. Gesture thresholds apply from
// the next drag session onward, shelf timings from the next shelf.
func (c *Coordinator) SetConfig(cfg *config.Config) {
	c.cfgMu.Lock()
	c.cfg = cfg
	c.cfgMu.Unlock()
	log.Printf("[shelf] configuration reloaded")
}

func (c *Coordinator) config() *config.Config {
	c.cfgMu.RLock()
	defer c.cfgMu.RUnlock()
	return c.cfg
}

// PostSurfaceEvent hands a presentation-side report to the engine loop.
func (c *Coordinator) PostSurfaceEvent(se SurfaceEvent) {
	c.surfaceEvents <- se
}

// Snapshot returns the last published engine state. Safe to call from
// any goroutine.
func (c *Coordinator) Snapshot() Snapshot {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return c.lastSnap
}

// Run drains the three event sources until the context is cancelled.
// This goroutine is the only writer of lifecycle state.
func (c *Coordinator) Run(ctx context.Context) {
	log.Printf("[shelf] coordinator running")
	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return
		case ev := <-c.pump.Events():
			c.handleInput(ev)
			c.pump.MarkDelivered()
		case se := <-c.surfaceEvents:
			c.handleSurfaceEvent(se)
		case tf := <-c.timers.Fired():
			c.handleTimer(tf)
		}
	}
}

func (c *Coordinator) handleInput(ev input.Event) {
	switch {
	case ev.Sample != nil:
		s := *ev.Sample
		c.lastPointer = pool.Point{X: s.X, Y: s.Y}
		if shake, ok := c.rec.Observe(s); ok {
			c.handleShake(shake)
		}
	case ev.Drag != nil:
		c.handleDrag(*ev.Drag)
	}
}

func (c *Coordinator) handleDrag(sig input.DragSignal) {
	now := time.Now()
	wasOpen := c.tracker.Phase() == session.SessionOpen

	if sig.Active && !wasOpen {
		// Fresh session: apply the latest thresholds before any of its
		// samples are judged.
		c.rec.Reconfigure(c.config().Gesture)
	}
	c.rec.ObserveDragSignal(sig, now)

	if sig.Active {
		c.tracker.DragActive(now)
		c.publish()
		return
	}
	if !wasOpen {
		return
	}

	c.tracker.DragInactive(now)
	if c.shelf == nil {
		// The session never materialized a surface, so nothing defers
		// its teardown.
		if cur := c.tracker.Current(); cur != nil {
			c.tracker.CloseOut(cur.ID)
		}
	} else {
		c.evaluate()
	}
	c.publish()
}

func (c *Coordinator) handleShake(ev gesture.ShakeEvent) {
	decision, surfaceID := c.tracker.ConfirmedShake()
	switch decision {
	case session.None:
		return
	case session.Reuse:
		c.refocus(surfaceID)
	case session.Acquire:
		c.acquire(ev)
	}
	c.publish()
}

// acquire materializes a surface for the current session. Binding happens
// before anything asynchronous starts, so every later shake in the session
// decides Reuse.
func (c *Coordinator) acquire(ev gesture.ShakeEvent) {
	if c.state != Idle {
		// A previous shelf is still winding down. One shelf on screen at
		// a time; the session stays surfaceless and a later shake retries.
		log.Printf("[shelf] shake while %s, acquisition skipped", c.state)
		return
	}
	cur := c.tracker.Current()
	if cur == nil {
		return
	}

	ps, err := c.pool.Acquire()
	if err != nil {
		// Session stays open; the next confirmed shake retries.
		log.Printf("[shelf] surface acquisition failed: %v", err)
		return
	}
	if err := c.tracker.BindSurface(cur.ID, ps.ID()); err != nil {
		log.Printf("[shelf] bind surface %s to session %s: %v", ps.ID(), cur.ID, err)
		c.pool.Release(ps)
		return
	}

	cfg := c.config().Shelf
	c.shelfCfg = cfg
	c.surface = ps
	c.shelf = &ShelfState{
		SurfaceID:               ps.ID(),
		SessionID:               cur.ID,
		CreatedAt:               ev.At,
		CreatedDuringActiveDrag: true,
	}
	c.state = Creating
	log.Printf("[shelf] acquired %s surface %s for session %s", ps.Tier, ps.ID(), cur.ID)

	ps.Configure(c.placement(), pool.Size{W: cfg.DefaultWidth, H: cfg.DefaultHeight}, cfg.DefaultOpacity)
	c.timers.Schedule(ceilingTimer(ps.ID()), ps.ID(), cfg.HardCeiling)

	if ps.ContentLoaded {
		c.activate()
		return
	}
	ps.LoadContent()
	// Shown once the surface reports ContentReady.
}

// refocus answers a repeat shake within a session that already consumed
// its surface.
func (c *Coordinator) refocus(surfaceID string) {
	if c.shelf == nil || c.shelf.SurfaceID != surfaceID {
		// The session's surface already retired. It gets exactly one.
		log.Printf("[shelf] shake for retired surface %s ignored", surfaceID)
		return
	}
	switch c.state {
	case Creating:
		// Construction in flight; the extra shake changes nothing.
		return
	case Retiring:
		log.Printf("[shelf] shake for retiring surface %s ignored", surfaceID)
		return
	}

	cfg := c.shelfCfg
	c.surface.Configure(c.placement(), pool.Size{W: cfg.DefaultWidth, H: cfg.DefaultHeight}, cfg.DefaultOpacity)
	c.surface.Show()
	if c.state == AutoHideScheduled {
		c.timers.Cancel(autoHideTimer(surfaceID))
		c.state = Active
	}
	c.evaluate()
}

// placement offsets the surface from the pointer so it does not sit
// directly under the dragged item.
func (c *Coordinator) placement() pool.Point {
	return pool.Point{X: c.lastPointer.X + 24, Y: c.lastPointer.Y + 24}
}

func (c *Coordinator) activate() {
	c.surface.Show()
	c.state = Active
	log.Printf("[shelf] surface %s active", c.surface.ID())
	c.evaluate()
}

func (c *Coordinator) handleSurfaceEvent(se SurfaceEvent) {
	if c.shelf == nil || c.shelf.SurfaceID != se.SurfaceID {
		log.Printf("[shelf] %s for unknown surface %s discarded", se.Type, se.SurfaceID)
		return
	}
	switch se.Type {
	case ContentReady:
		if c.state == Creating {
			c.activate()
		}
	case DropBegin:
		c.dropBegin()
	case DropComplete:
		c.dropComplete(se.Items)
	case UserClose:
		log.Printf("[shelf] user closed surface %s", se.SurfaceID)
		c.retire()
	}
	c.publish()
}

func (c *Coordinator) dropBegin() {
	switch c.state {
	case Active, AutoHideScheduled:
	default:
		return
	}
	if c.state == AutoHideScheduled {
		c.timers.Cancel(autoHideTimer(c.shelf.SurfaceID))
	}
	c.shelf.receivingDrop = true
	c.state = ReceivingDrop
}

func (c *Coordinator) dropComplete(items []Item) {
	switch c.state {
	case ReceivingDrop, Active, AutoHideScheduled:
	default:
		return
	}
	if c.state == AutoHideScheduled {
		c.timers.Cancel(autoHideTimer(c.shelf.SurfaceID))
	}
	c.shelf.receivingDrop = false

	if len(items) == 0 {
		// The presentation layer could not resolve the payload itself;
		// fall back to the latched drag payload.
		for _, p := range c.pump.LatchedPayload(time.Now()) {
			items = append(items, ItemFromPath(p))
		}
	}
	if len(items) == 0 {
		log.Printf("[shelf] drop on %s carried no resolvable items", c.shelf.SurfaceID)
		c.state = Active
		c.evaluate()
		return
	}

	c.shelf.Items = append(c.shelf.Items, items...)
	if c.sink != nil {
		if err := c.sink.Record(c.shelf.SessionID, items); err != nil {
			// Best effort; the shelf keeps the items either way.
			log.Printf("[shelf] record %d items: %v", len(items), err)
		}
	}
	log.Printf("[shelf] surface %s holds %d items", c.shelf.SurfaceID, len(c.shelf.Items))
	c.state = Active
	c.evaluate()
}

// evaluate re-derives the auto-hide decision from the guard conjunction:
// schedule only when the shelf is empty, its session's drag has ended
// (or the hard ceiling waived that guard), and no drop is in flight. Any
// guard turning false cancels the pending timer.
func (c *Coordinator) evaluate() {
	if c.shelf == nil {
		return
	}
	switch c.state {
	case Active, AutoHideScheduled:
	default:
		return
	}

	hide := c.shelf.IsEmpty() &&
		(c.sessionEnded() || c.shelf.ceilingForced) &&
		!c.shelf.receivingDrop

	if hide && c.state == Active {
		c.timers.Schedule(autoHideTimer(c.shelf.SurfaceID), c.shelf.SurfaceID,
			c.shelfCfg.AutoHideDelay)
		c.state = AutoHideScheduled
	} else if !hide && c.state == AutoHideScheduled {
		c.timers.Cancel(autoHideTimer(c.shelf.SurfaceID))
		c.state = Active
	}
}

// sessionEnded reports whether the shelf's owning session has seen its
// drag-end signal. A session that is no longer current counts as ended.
func (c *Coordinator) sessionEnded() bool {
	cur := c.tracker.Current()
	if cur == nil || cur.ID != c.shelf.SessionID {
		return true
	}
	return cur.Ended()
}

func (c *Coordinator) handleTimer(tf TimerFired) {
	if c.shelf == nil || c.shelf.SurfaceID != tf.SurfaceID {
		// Fires are generation-checked; reaching here means the registry
		// was not cleaned on retirement.
		log.Printf("[shelf] stale timer %s for surface %s", tf.Name, tf.SurfaceID)
		return
	}
	switch tf.Name {
	case autoHideTimer(tf.SurfaceID):
		c.autoHideFired()
	case ceilingTimer(tf.SurfaceID):
		c.ceilingFired()
	}
	c.publish()
}

func (c *Coordinator) autoHideFired() {
	if c.state != AutoHideScheduled {
		return
	}
	// Re-check at expiry: a guard may have flipped while the fire was in
	// flight to the engine loop.
	if !c.shelf.IsEmpty() || !(c.sessionEnded() || c.shelf.ceilingForced) || c.shelf.receivingDrop {
		c.state = Active
		c.evaluate()
		return
	}
	c.retire()
}

func (c *Coordinator) ceilingFired() {
	log.Printf("[shelf] hard ceiling reached for surface %s", c.shelf.SurfaceID)
	if c.state == Creating {
		// Construction never completed. Abort and free the slot; the
		// session keeps running and a later shake retries.
		c.abortCreation()
		return
	}
	// From here on the missing drag-end signal no longer blocks auto-hide.
	c.shelf.ceilingForced = true
	c.evaluate()
}

func (c *Coordinator) abortCreation() {
	surfaceID := c.shelf.SurfaceID
	sessionID := c.shelf.SessionID

	c.timers.CancelSurface(surfaceID)
	c.pool.Release(c.surface)
	c.tracker.UnbindSurface(sessionID)
	c.surface = nil
	c.shelf = nil
	c.state = Idle
	c.closeOutIfEnded(sessionID)
	log.Printf("[shelf] aborted creation of surface %s", surfaceID)
}

// retire tears the shelf down. The order is fixed: timers first, so
// nothing that could destroy the surface stays armed past this point.
func (c *Coordinator) retire() {
	if c.shelf == nil || c.state == Retiring {
		return
	}
	c.state = Retiring
	surfaceID := c.shelf.SurfaceID
	sessionID := c.shelf.SessionID
	log.Printf("[shelf] retiring surface %s (items=%d)", surfaceID, len(c.shelf.Items))

	c.timers.CancelSurface(surfaceID)
	c.surface.Hide()
	c.pool.Release(c.surface)
	c.surface = nil
	c.shelf = nil
	c.state = Idle

	c.closeOutIfEnded(sessionID)
}

func (c *Coordinator) closeOutIfEnded(sessionID string) {
	if cur := c.tracker.Current(); cur != nil && cur.ID == sessionID && cur.Ended() {
		c.tracker.CloseOut(sessionID)
	}
}

func (c *Coordinator) shutdown() {
	if c.shelf != nil {
		c.retire()
		c.publish()
	}
	log.Printf("[shelf] coordinator stopped")
}

func (c *Coordinator) buildSnapshot() Snapshot {
	return Snapshot{
		State:   c.state,
		Shelf:   c.shelf.Clone(),
		Session: c.tracker.Current(),
		Pool:    c.pool.Stats(),
		At:      time.Now(),
	}
}

func (c *Coordinator) publish() {
	snap := c.buildSnapshot()
	c.snapMu.Lock()
	c.lastSnap = snap
	c.snapMu.Unlock()
	if c.notify != nil {
		c.notify(snap)
	}
}
