package shelf

import (
	"testing"
	"time"
)

func waitFired(t *testing.T, r *Registry) TimerFired {
	t.Helper()
	select {
	case tf := <-r.Fired():
		return tf
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for timer fire")
		return TimerFired{}
	}
}

func assertSilent(t *testing.T, r *Registry, d time.Duration) {
	t.Helper()
	select {
	case tf := <-r.Fired():
		t.Fatalf("unexpected fire %q for surface %s", tf.Name, tf.SurfaceID)
	case <-time.After(d):
	}
}

func TestScheduleAndFire(t *testing.T) {
	r := NewRegistry()
	r.Schedule("autohide:s1", "s1", 10*time.Millisecond)

	tf := waitFired(t, r)
	if tf.Name != "autohide:s1" || tf.SurfaceID != "s1" {
		t.Errorf("fired %q/%q, want autohide:s1/s1", tf.Name, tf.SurfaceID)
	}
	if r.Pending("autohide:s1") {
		t.Error("timer still pending after firing")
	}
}

func TestCancelPreventsFire(t *testing.T) {
	r := NewRegistry()
	r.Schedule("autohide:s1", "s1", 20*time.Millisecond)
	r.Cancel("autohide:s1")

	if r.Pending("autohide:s1") {
		t.Error("timer pending after cancel")
	}
	assertSilent(t, r, 80*time.Millisecond)
}

func TestCancelIsIdempotent(t *testing.T) {
	r := NewRegistry()

	// Unknown names and repeats must be harmless no-ops.
	r.Cancel("autohide:nope")
	r.Schedule("autohide:s1", "s1", 10*time.Millisecond)
	r.Cancel("autohide:s1")
	r.Cancel("autohide:s1")
	if tf := waitFiredOrNothing(r, 60*time.Millisecond); tf != nil {
		t.Fatalf("cancelled timer fired: %q", tf.Name)
	}

	// Cancelling after a fire already happened is equally fine.
	r.Schedule("ceiling:s1", "s1", 5*time.Millisecond)
	tf := <-r.Fired()
	if tf.Name != "ceiling:s1" {
		t.Fatalf("fired %q, want ceiling:s1", tf.Name)
	}
	r.Cancel("ceiling:s1")
}

func waitFiredOrNothing(r *Registry, d time.Duration) *TimerFired {
	select {
	case tf := <-r.Fired():
		return &tf
	case <-time.After(d):
		return nil
	}
}

func TestRescheduleReplacesPrevious(t *testing.T) {
	r := NewRegistry()
	r.Schedule("autohide:s1", "s1", time.Hour)
	r.Schedule("autohide:s1", "s1", 10*time.Millisecond)

	tf := waitFired(t, r)
	if tf.Name != "autohide:s1" {
		t.Fatalf("fired %q, want autohide:s1", tf.Name)
	}
	// Exactly one fire: the replaced hour-long timer is gone for good.
	assertSilent(t, r, 50*time.Millisecond)
}

func TestReplacedTimerFireEvaporates(t *testing.T) {
	r := NewRegistry()

	// Arm, let the underlying timer expire, then immediately re-arm under
	// the same name before draining. The late fire from the first
	// generation must not be attributed to the second.
	r.Schedule("autohide:s1", "s1", time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	tf := waitFired(t, r)
	if tf.Name != "autohide:s1" {
		t.Fatalf("fired %q, want autohide:s1", tf.Name)
	}

	r.Schedule("autohide:s1", "s1", time.Hour)
	assertSilent(t, r, 50*time.Millisecond)
	if !r.Pending("autohide:s1") {
		t.Error("re-armed timer not pending")
	}
	r.Cancel("autohide:s1")
}

func TestCancelSurface(t *testing.T) {
	r := NewRegistry()
	r.Schedule("autohide:s1", "s1", 20*time.Millisecond)
	r.Schedule("ceiling:s1", "s1", 20*time.Millisecond)
	r.Schedule("autohide:s2", "s2", 30*time.Millisecond)

	r.CancelSurface("s1")

	if r.Pending("autohide:s1") || r.Pending("ceiling:s1") {
		t.Error("s1 timers still pending after CancelSurface")
	}
	if !r.Pending("autohide:s2") {
		t.Error("unrelated surface's timer was cancelled")
	}

	tf := waitFired(t, r)
	if tf.SurfaceID != "s2" {
		t.Errorf("fired for surface %s, want s2", tf.SurfaceID)
	}
	assertSilent(t, r, 50*time.Millisecond)
}
