package session

import (
	"testing"
	"time"
)

func TestDragActiveMintsSession(t *testing.T) {
	tr := NewTracker(NewStore())

	id := tr.DragActive(time.Now())
	if id == "" {
		t.Fatal("DragActive returned empty session id")
	}
	if tr.Phase() != SessionOpen {
		t.Errorf("phase = %s, want open", tr.Phase())
	}
}

func TestDuplicateActiveSignalKeepsSession(t *testing.T) {
	tr := NewTracker(NewStore())
	now := time.Now()

	id1 := tr.DragActive(now)
	id2 := tr.DragActive(now.Add(time.Millisecond))
	if id1 != id2 {
		t.Errorf("duplicate active signal minted new session: %s vs %s", id1, id2)
	}
}

func TestFirstShakeAcquiresLaterShakesReuse(t *testing.T) {
	tr := NewTracker(NewStore())
	tr.DragActive(time.Now())

	d, _ := tr.ConfirmedShake()
	if d != Acquire {
		t.Fatalf("first shake decision = %s, want acquire", d)
	}

	id := tr.Current().ID
	if err := tr.BindSurface(id, "surf-1"); err != nil {
		t.Fatalf("BindSurface: %v", err)
	}

	for i := 0; i < 5; i++ {
		d, surfaceID := tr.ConfirmedShake()
		if d != Reuse {
			t.Fatalf("shake %d decision = %s, want reuse", i+2, d)
		}
		if surfaceID != "surf-1" {
			t.Fatalf("shake %d surface = %q, want surf-1", i+2, surfaceID)
		}
	}

	if got := tr.Current().ShakeCount; got != 6 {
		t.Errorf("shake count = %d, want 6", got)
	}
}

func TestBindSurfaceAtMostOnce(t *testing.T) {
	tr := NewTracker(NewStore())
	id := tr.DragActive(time.Now())

	if err := tr.BindSurface(id, "surf-1"); err != nil {
		t.Fatalf("first bind: %v", err)
	}
	if err := tr.BindSurface(id, "surf-2"); err != ErrSurfaceBound {
		t.Errorf("second bind error = %v, want ErrSurfaceBound", err)
	}
	if got := tr.Current().SurfaceID; got != "surf-1" {
		t.Errorf("surface = %q, want surf-1", got)
	}
}

func TestBindSurfaceGuards(t *testing.T) {
	tr := NewTracker(NewStore())
	if err := tr.BindSurface("whatever", "surf-1"); err != ErrNoSession {
		t.Errorf("bind without session error = %v, want ErrNoSession", err)
	}

	id := tr.DragActive(time.Now())
	if err := tr.BindSurface("stale-id", "surf-1"); err != ErrSessionMismatch {
		t.Errorf("bind with stale id error = %v, want ErrSessionMismatch", err)
	}
	_ = id
}

func TestUnbindAllowsRetry(t *testing.T) {
	tr := NewTracker(NewStore())
	id := tr.DragActive(time.Now())

	d, _ := tr.ConfirmedShake()
	if d != Acquire {
		t.Fatalf("decision = %s, want acquire", d)
	}
	if err := tr.BindSurface(id, "surf-1"); err != nil {
		t.Fatalf("BindSurface: %v", err)
	}

	// Construction failed; binding cleared so the next shake retries.
	tr.UnbindSurface(id)

	d, _ = tr.ConfirmedShake()
	if d != Acquire {
		t.Errorf("post-unbind decision = %s, want acquire", d)
	}
}

func TestShakeWithoutSessionDecidesNone(t *testing.T) {
	tr := NewTracker(NewStore())
	if d, _ := tr.ConfirmedShake(); d != None {
		t.Errorf("decision = %s, want none", d)
	}
}

func TestDragInactiveDefersTeardown(t *testing.T) {
	tr := NewTracker(NewStore())
	id := tr.DragActive(time.Now())
	_ = tr.BindSurface(id, "surf-1")

	tr.DragInactive(time.Now())

	if tr.Phase() != SessionClosing {
		t.Errorf("phase = %s, want closing", tr.Phase())
	}
	cur := tr.Current()
	if cur == nil || !cur.Ended() {
		t.Error("session not marked ended on drag-inactive")
	}
	if cur.SurfaceID != "surf-1" {
		t.Error("surface binding dropped at drag end; teardown belongs to coordinator")
	}
}

func TestRedragMintsFreshSession(t *testing.T) {
	tr := NewTracker(NewStore())
	now := time.Now()

	id1 := tr.DragActive(now)
	_ = tr.BindSurface(id1, "surf-1")
	tr.DragInactive(now.Add(time.Second))

	// Immediate re-drag before the coordinator closes out the old session.
	id2 := tr.DragActive(now.Add(time.Second + time.Millisecond))
	if id2 == id1 {
		t.Fatal("re-drag reused prior session id")
	}

	d, _ := tr.ConfirmedShake()
	if d != Acquire {
		t.Errorf("new session first shake = %s, want acquire (no surface carry-over)", d)
	}
}

func TestCloseOutIgnoresStaleID(t *testing.T) {
	tr := NewTracker(NewStore())
	id := tr.DragActive(time.Now())
	tr.DragInactive(time.Now())

	tr.CloseOut("not-the-session")
	if tr.Phase() != SessionClosing {
		t.Error("stale CloseOut changed tracker phase")
	}

	tr.CloseOut(id)
	if tr.Phase() != NoSession {
		t.Errorf("phase after close-out = %s, want no_session", tr.Phase())
	}
	if tr.Current() != nil {
		t.Error("current session survives close-out")
	}
}

func TestStoreRetention(t *testing.T) {
	st := NewStore()
	st.keep = 3
	now := time.Now()
	for i := 0; i < 5; i++ {
		st.Put(&DragSession{ID: newID(now.Add(time.Duration(i) * time.Millisecond)), StartedAt: now})
	}
	if got := len(st.GetAll()); got != 3 {
		t.Errorf("retained %d sessions, want 3", got)
	}
}

func TestStoreReturnsCopies(t *testing.T) {
	st := NewStore()
	sess := &DragSession{ID: "a", StartedAt: time.Now()}
	st.Put(sess)

	got, _ := st.Get("a")
	got.SurfaceID = "mutated"

	again, _ := st.Get("a")
	if again.SurfaceID != "" {
		t.Error("Get did not return a copy; mutation leaked into store")
	}
}

func TestOpenCount(t *testing.T) {
	st := NewStore()
	ended := time.Now()
	st.Put(&DragSession{ID: "open", StartedAt: time.Now()})
	st.Put(&DragSession{ID: "done", StartedAt: time.Now(), EndedAt: &ended})
	if got := st.OpenCount(); got != 1 {
		t.Errorf("OpenCount = %d, want 1", got)
	}
}

func TestSessionIDsSortByCreation(t *testing.T) {
	now := time.Now()
	a := newID(now)
	b := newID(now.Add(time.Millisecond))
	if a >= b {
		t.Errorf("ids not monotonic: %s >= %s", a, b)
	}
}
