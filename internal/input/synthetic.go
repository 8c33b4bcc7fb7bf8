package input

import (
	"context"
	"log"
	"math"
	"math/rand"
	"time"
)

// Synthetic drives the pump with generated pointer and drag traffic when no
// native helper is attached (-mock mode). It cycles through scripted
// scenarios: idle wander, a click+shake with no payload advance, and a real
// drag with a shake partway through. Useful for exercising the whole engine
// without a desktop session.
type Synthetic struct {
	pump *Pump
	rng  *rand.Rand

	x, y    float64
	version uint64
}

func NewSynthetic(pump *Pump) *Synthetic {
	return &Synthetic{
		pump: pump,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
		x:    640,
		y:    400,
	}
}

func (s *Synthetic) Start(ctx context.Context) {
	log.Println("[input] synthetic feed started")
	for {
		if !s.wander(ctx, 2*time.Second) {
			return
		}
		if !s.clickAndShake(ctx) {
			return
		}
		if !s.wander(ctx, time.Second) {
			return
		}
		if !s.dragWithShake(ctx) {
			return
		}
	}
}

// wander emits gentle pointer drift with the button up.
func (s *Synthetic) wander(ctx context.Context, d time.Duration) bool {
	return s.run(ctx, d, func(t float64) {
		s.x += s.rng.Float64()*6 - 3
		s.y += s.rng.Float64()*6 - 3
		s.pump.PostSample(PointerSample{X: s.x, Y: s.y, Time: time.Now()})
	})
}

// clickAndShake holds the button and oscillates the pointer without ever
// advancing the drag payload version. The recognizer must reject this.
func (s *Synthetic) clickAndShake(ctx context.Context) bool {
	s.pump.PostDrag(DragSignal{Active: false, PayloadVersion: s.version})
	return s.run(ctx, 800*time.Millisecond, func(t float64) {
		s.pump.PostSample(PointerSample{
			X:                 s.x + 60*math.Sin(t*28),
			Y:                 s.y,
			Time:              time.Now(),
			PrimaryButtonDown: true,
		})
	})
}

// dragWithShake starts a genuine drag (payload version advances), shakes
// mid-drag, then drops and releases.
func (s *Synthetic) dragWithShake(ctx context.Context) bool {
	s.version++
	s.pump.PostDrag(DragSignal{
		Active:         true,
		ItemPaths:      []string{"/tmp/demo/report.pdf", "/tmp/demo/notes.txt"},
		PayloadVersion: s.version,
	})

	// Carry the payload away from the press point first, then shake.
	if !s.run(ctx, 300*time.Millisecond, func(t float64) {
		s.x += 2
		s.y += 1.5
		s.pump.PostSample(PointerSample{X: s.x, Y: s.y, Time: time.Now(), PrimaryButtonDown: true})
	}) {
		return false
	}
	if !s.run(ctx, 700*time.Millisecond, func(t float64) {
		s.pump.PostSample(PointerSample{
			X:                 s.x + 70*math.Sin(t*26),
			Y:                 s.y,
			Time:              time.Now(),
			PrimaryButtonDown: true,
		})
	}) {
		return false
	}

	s.pump.PostDrag(DragSignal{Active: false, PayloadVersion: s.version})
	return true
}

// run invokes step at ~60Hz for the given duration, passing elapsed seconds.
// Returns false once ctx is done.
func (s *Synthetic) run(ctx context.Context, d time.Duration, step func(t float64)) bool {
	ticker := time.NewTicker(16 * time.Millisecond)
	defer ticker.Stop()
	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return false
		case now := <-ticker.C:
			elapsed := now.Sub(start)
			if elapsed >= d {
				return true
			}
			step(elapsed.Seconds())
		}
	}
}
