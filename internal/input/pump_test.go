package input

import (
	"testing"
	"time"
)

func TestPumpDeliversInOrder(t *testing.T) {
	p := NewPump(8, 0)

	for i := 0; i < 3; i++ {
		p.PostSample(PointerSample{X: float64(i)})
	}

	for i := 0; i < 3; i++ {
		ev := <-p.Events()
		if ev.Sample == nil {
			t.Fatalf("event %d: not a sample", i)
		}
		if ev.Sample.X != float64(i) {
			t.Errorf("event %d: X = %v, want %v", i, ev.Sample.X, float64(i))
		}
	}
}

func TestPumpDropsOldestWhenFull(t *testing.T) {
	p := NewPump(2, 0)

	p.PostSample(PointerSample{X: 1})
	p.PostSample(PointerSample{X: 2})
	p.PostSample(PointerSample{X: 3}) // displaces X=1

	ev := <-p.Events()
	if ev.Sample.X != 2 {
		t.Errorf("first delivered X = %v, want 2 (oldest dropped)", ev.Sample.X)
	}
	ev = <-p.Events()
	if ev.Sample.X != 3 {
		t.Errorf("second delivered X = %v, want 3", ev.Sample.X)
	}

	posted, _, dropped := p.Stats()
	if posted != 3 {
		t.Errorf("posted = %d, want 3", posted)
	}
	if dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
}

func TestPumpNeverBlocksWriter(t *testing.T) {
	p := NewPump(1, 0)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			p.PostSample(PointerSample{X: float64(i)})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("writer blocked on full queue")
	}
}

func TestLatchedPayloadHeldWhileLive(t *testing.T) {
	p := NewPump(8, 500*time.Millisecond)

	p.PostDrag(DragSignal{Active: true, ItemPaths: []string{"/a", "/b"}, PayloadVersion: 1})

	got := p.LatchedPayload(time.Now().Add(time.Hour))
	if len(got) != 2 {
		t.Fatalf("live payload = %v, want 2 paths regardless of elapsed time", got)
	}
}

func TestLatchedPayloadLingersAfterDragEnd(t *testing.T) {
	p := NewPump(8, 500*time.Millisecond)

	p.PostDrag(DragSignal{Active: true, ItemPaths: []string{"/a"}, PayloadVersion: 1})
	p.PostDrag(DragSignal{Active: false, PayloadVersion: 1})

	if got := p.LatchedPayload(time.Now()); len(got) != 1 {
		t.Errorf("payload within linger = %v, want [/a]", got)
	}
	if got := p.LatchedPayload(time.Now().Add(time.Second)); got != nil {
		t.Errorf("payload after linger = %v, want nil", got)
	}
	// Expired latch stays cleared.
	if got := p.LatchedPayload(time.Now()); got != nil {
		t.Errorf("payload after expiry = %v, want nil", got)
	}
}

func TestLatchedPayloadReturnsCopy(t *testing.T) {
	p := NewPump(8, time.Second)
	p.PostDrag(DragSignal{Active: true, ItemPaths: []string{"/a"}, PayloadVersion: 1})

	got := p.LatchedPayload(time.Now())
	got[0] = "/mutated"

	again := p.LatchedPayload(time.Now())
	if again[0] != "/a" {
		t.Error("LatchedPayload did not return a copy; mutation leaked into latch")
	}
}
