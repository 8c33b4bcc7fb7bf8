package input

import (
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Pump is the single-writer/single-reader queue between the native event
// feed and the engine loop. The native side calls Post; the engine drains
// Events. Nothing on this path blocks: when the queue is full the oldest
// entry is dropped, since only the recent trajectory matters for gesture
// detection.
//
// The pump also latches the last non-empty drag payload for a short linger
// after the drag ends. The native layer clears its dragged-file list on
// button-up, but a drop that lands just after button-up still needs to
// resolve the payload it was carrying.
type Pump struct {
	events chan Event

	posted    atomic.Uint64
	dropped   atomic.Uint64
	lastDrop  atomic.Int64 // unix nanos of last drop log, rate-limits logging
	delivered atomic.Uint64

	mu            sync.Mutex
	latchedPaths  []string
	latchedUntil  time.Time
	payloadLinger time.Duration
}

func NewPump(queueDepth int, payloadLinger time.Duration) *Pump {
	if queueDepth < 1 {
		queueDepth = 1
	}
	return &Pump{
		events:        make(chan Event, queueDepth),
		payloadLinger: payloadLinger,
	}
}

// Events returns the receive side of the queue. The engine loop is the
// only reader.
func (p *Pump) Events() <-chan Event {
	return p.events
}

// PostSample enqueues a pointer sample, dropping the oldest queued event
// if the queue is full.
func (p *Pump) PostSample(s PointerSample) {
	p.post(Event{Sample: &s})
}

// PostDrag enqueues a drag signal and updates the payload latch.
func (p *Pump) PostDrag(d DragSignal) {
	if len(d.ItemPaths) > 0 {
		p.mu.Lock()
		p.latchedPaths = append([]string(nil), d.ItemPaths...)
		p.latchedUntil = time.Time{} // held while the payload is live
		p.mu.Unlock()
	} else if !d.Active {
		p.mu.Lock()
		if len(p.latchedPaths) > 0 && p.latchedUntil.IsZero() {
			p.latchedUntil = time.Now().Add(p.payloadLinger)
		}
		p.mu.Unlock()
	}
	p.post(Event{Drag: &d})
}

func (p *Pump) post(ev Event) {
	p.posted.Add(1)
	for {
		select {
		case p.events <- ev:
			return
		default:
		}
		// Queue full: discard the oldest entry and retry. With a single
		// writer the second send can only race the reader, never another
		// drop, so this terminates.
		select {
		case <-p.events:
			p.noteDrop()
		default:
		}
	}
}

func (p *Pump) noteDrop() {
	n := p.dropped.Add(1)
	now := time.Now().UnixNano()
	last := p.lastDrop.Load()
	if now-last >= int64(10*time.Second) && p.lastDrop.CompareAndSwap(last, now) {
		log.Printf("[input] queue overload, %d events dropped so far", n)
	}
}

// LatchedPayload returns the most recent non-empty drag payload if it is
// still live or within its linger window. Returns nil once the linger has
// expired.
func (p *Pump) LatchedPayload(now time.Time) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.latchedPaths) == 0 {
		return nil
	}
	if !p.latchedUntil.IsZero() && now.After(p.latchedUntil) {
		p.latchedPaths = nil
		return nil
	}
	return append([]string(nil), p.latchedPaths...)
}

// MarkDelivered is called by the engine loop after consuming an event.
// Feeds the processed counter used by health snapshots.
func (p *Pump) MarkDelivered() {
	p.delivered.Add(1)
}

// Stats reports cumulative pump counters.
func (p *Pump) Stats() (posted, delivered, dropped uint64) {
	return p.posted.Load(), p.delivered.Load(), p.dropped.Load()
}
