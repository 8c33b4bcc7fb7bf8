// Package gesture detects the drag-shake trigger from raw pointer samples.
//
// The recognizer keeps a short trailing window of samples, recomputes the
// dominant movement axis, and counts velocity-sign reversals along it. A
// threshold crossing produces a provisional shake which is confirmed only
// when the drag payload version has advanced past its value at session
// start. That version fence separates a real drag from a stationary
// click with pointer jitter.
package gesture

import (
	"math"
	"time"

	"github.com/JinhuW/dropshelf/internal/config"
	"github.com/JinhuW/dropshelf/internal/input"
)

// ShakeEvent is the confirmed gesture trigger. It carries no payload
// beyond its timestamp; the session tracker decides what it means.
type ShakeEvent struct {
	At time.Time
}

// deltaEpsilon ignores sub-pixel jitter when classifying movement
// direction. Raw hooks report fractional positions on scaled displays.
const deltaEpsilon = 1.0

type Recognizer struct {
	cfg config.GestureConfig

	samples []input.PointerSample

	dragActive     bool
	sessionStart   time.Time
	startVersion   uint64
	currentVersion uint64
	versionSeen    bool

	provisional uint64
	confirmed   uint64
	rejected    uint64
}

func NewRecognizer(cfg config.GestureConfig) *Recognizer {
	return &Recognizer{cfg: cfg}
}

// Reconfigure swaps the detection thresholds. Callers apply it between
// drag sessions so an in-flight window is never judged against mixed
// parameters.
func (r *Recognizer) Reconfigure(cfg config.GestureConfig) {
	r.cfg = cfg
	r.samples = r.samples[:0]
}

// ObserveDragSignal updates the drag-session context the recognizer
// confirms against. The payload version recorded at the rising edge is the
// last value seen before the drag went active, so a drag whose activation
// itself advances the version passes the fence immediately.
func (r *Recognizer) ObserveDragSignal(sig input.DragSignal, now time.Time) {
	if sig.Active && !r.dragActive {
		r.dragActive = true
		r.sessionStart = now
		if r.versionSeen {
			r.startVersion = r.currentVersion
		} else {
			r.startVersion = sig.PayloadVersion
		}
		// Pre-drag movement must not count toward the shake.
		r.samples = r.samples[:0]
	} else if !sig.Active && r.dragActive {
		r.dragActive = false
	}
	r.currentVersion = sig.PayloadVersion
	r.versionSeen = true
}

// Observe consumes one pointer sample and reports a confirmed ShakeEvent
// if this sample completes the pattern. Pure function of rolling state: no
// side effects beyond the recognizer's own buffers. If the native source
// stalls the recognizer simply stops emitting.
func (r *Recognizer) Observe(s input.PointerSample) (ShakeEvent, bool) {
	r.samples = append(r.samples, s)
	r.trim(s.Time)

	if !r.thresholdCrossed() {
		return ShakeEvent{}, false
	}

	// Threshold crossed: this is a provisional shake. Reset the buffer
	// either way so one burst of oscillation yields at most one event.
	r.provisional++
	r.samples = r.samples[:0]

	if !r.confirm(s.Time) {
		r.rejected++
		return ShakeEvent{}, false
	}
	r.confirmed++
	return ShakeEvent{At: s.Time}, true
}

// confirm applies the cross-checks that separate a genuine drag-shake from
// look-alikes: an open drag session, the version fence, and the minimum
// elapsed time since session start.
func (r *Recognizer) confirm(now time.Time) bool {
	if !r.dragActive {
		return false
	}
	if r.currentVersion == r.startVersion {
		// Payload version never advanced: click+shake, not a drag.
		return false
	}
	if now.Sub(r.sessionStart) < r.cfg.MinElapsed {
		return false
	}
	return true
}

// trim drops samples older than the rolling window, measured from the
// newest sample.
func (r *Recognizer) trim(latest time.Time) {
	cutoff := latest.Add(-r.cfg.Window)
	start := 0
	for start < len(r.samples) && r.samples[start].Time.Before(cutoff) {
		start++
	}
	if start > 0 {
		r.samples = append(r.samples[:0], r.samples[start:]...)
	}
}

// thresholdCrossed reports whether the current window contains enough
// direction reversals along the dominant axis, with enough total travel.
func (r *Recognizer) thresholdCrossed() bool {
	if len(r.samples) < 3 {
		return false
	}

	// Dominant axis: the one with more accumulated absolute travel.
	var travelX, travelY float64
	for i := 1; i < len(r.samples); i++ {
		travelX += math.Abs(r.samples[i].X - r.samples[i-1].X)
		travelY += math.Abs(r.samples[i].Y - r.samples[i-1].Y)
	}

	axis := func(s input.PointerSample) float64 { return s.X }
	travel := travelX
	if travelY > travelX {
		axis = func(s input.PointerSample) float64 { return s.Y }
		travel = travelY
	}

	if travel < r.cfg.MinDisplacement {
		return false
	}

	reversals := 0
	prevSign := 0
	for i := 1; i < len(r.samples); i++ {
		d := axis(r.samples[i]) - axis(r.samples[i-1])
		if math.Abs(d) < deltaEpsilon {
			continue
		}
		sign := 1
		if d < 0 {
			sign = -1
		}
		if prevSign != 0 && sign != prevSign {
			reversals++
		}
		prevSign = sign
	}

	return reversals >= r.cfg.Reversals
}

// Stats reports cumulative recognizer counters: provisional threshold
// crossings, confirmed shakes, and cross-check rejections.
func (r *Recognizer) Stats() (provisional, confirmed, rejected uint64) {
	return r.provisional, r.confirmed, r.rejected
}
