package health

import (
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JinhuW/dropshelf/internal/config"
)

type fakeModule struct {
	processed atomic.Uint64
	dropped   atomic.Uint64
	expecting atomic.Bool
	repairs   atomic.Int64
}

func (f *fakeModule) stats() (uint64, uint64) {
	return f.processed.Load(), f.dropped.Load()
}

func (f *fakeModule) expect() bool {
	return f.expecting.Load()
}

func (f *fakeModule) repair() {
	f.repairs.Add(1)
}

func testHealthConfig() config.HealthConfig {
	return config.HealthConfig{
		ProbeInterval:   time.Second,
		EventTimeout:    5 * time.Second,
		CriticalTimeout: 30 * time.Second,
	}
}

func newTestMonitor(mod *fakeModule) *Monitor {
	m := NewMonitor(testHealthConfig())
	m.Register("input", mod.stats, mod.expect, mod.repair)
	return m
}

func moduleStatus(t *testing.T, rep Report, name string) Status {
	t.Helper()
	for _, mr := range rep.Modules {
		if mr.Name == name {
			return mr.Status
		}
	}
	t.Fatalf("module %s missing from report", name)
	return Healthy
}

func TestActiveModuleStaysHealthy(t *testing.T) {
	mod := &fakeModule{}
	mod.expecting.Store(true)
	m := newTestMonitor(mod)
	base := time.Now()

	for i := 0; i < 5; i++ {
		mod.processed.Add(10)
		rep := m.probe(base.Add(time.Duration(i) * time.Second))
		if got := moduleStatus(t, rep, "input"); got != Healthy {
			t.Fatalf("probe %d: status = %s, want healthy", i, got)
		}
	}
}

func TestStalledModuleDegradesOverTime(t *testing.T) {
	mod := &fakeModule{}
	mod.expecting.Store(true)
	m := newTestMonitor(mod)
	base := time.Now()

	mod.processed.Store(100)
	m.probe(base) // records the activity

	tests := []struct {
		after time.Duration
		want  Status
	}{
		{2 * time.Second, Healthy},
		{6 * time.Second, Unhealthy},
		{31 * time.Second, Critical},
	}
	for _, tt := range tests {
		rep := m.probe(base.Add(tt.after))
		if got := moduleStatus(t, rep, "input"); got != tt.want {
			t.Errorf("after %v: status = %s, want %s", tt.after, got, tt.want)
		}
	}

	if got := mod.repairs.Load(); got != 1 {
		t.Errorf("repair ran %d times, want exactly 1 on the critical transition", got)
	}

	// Activity resuming restores health without another repair.
	mod.processed.Add(1)
	rep := m.probe(base.Add(32 * time.Second))
	if got := moduleStatus(t, rep, "input"); got != Healthy {
		t.Errorf("status after recovery = %s, want healthy", got)
	}
	if got := mod.repairs.Load(); got != 1 {
		t.Errorf("repair re-ran on recovery; count = %d", got)
	}
}

func TestNoExpectedActivityNeverStale(t *testing.T) {
	mod := &fakeModule{}
	mod.expecting.Store(false)
	m := newTestMonitor(mod)
	base := time.Now()

	m.probe(base)
	rep := m.probe(base.Add(time.Hour))
	if got := moduleStatus(t, rep, "input"); got != Healthy {
		t.Errorf("idle module with no expected traffic graded %s, want healthy", got)
	}
}

func TestDropsGradeDegraded(t *testing.T) {
	mod := &fakeModule{}
	mod.expecting.Store(true)
	m := newTestMonitor(mod)
	base := time.Now()

	mod.processed.Store(10)
	m.probe(base)

	// Still processing, but now also dropping.
	mod.processed.Add(10)
	mod.dropped.Add(3)
	rep := m.probe(base.Add(time.Second))
	if got := moduleStatus(t, rep, "input"); got != Degraded {
		t.Errorf("status = %s, want degraded while dropping", got)
	}

	// Drops stopped: back to healthy.
	mod.processed.Add(10)
	rep = m.probe(base.Add(2 * time.Second))
	if got := moduleStatus(t, rep, "input"); got != Healthy {
		t.Errorf("status = %s, want healthy once drops stop", got)
	}
}

func TestOverallIsWorstModule(t *testing.T) {
	healthyMod := &fakeModule{}
	healthyMod.expecting.Store(true)
	stalled := &fakeModule{}
	stalled.expecting.Store(true)

	m := NewMonitor(testHealthConfig())
	m.Register("input", healthyMod.stats, healthyMod.expect, nil)
	m.Register("engine", stalled.stats, stalled.expect, nil)
	base := time.Now()
	m.probe(base)

	healthyMod.processed.Add(5)
	rep := m.probe(base.Add(6 * time.Second))
	if rep.Status != Unhealthy {
		t.Errorf("overall = %s, want unhealthy (worst module wins)", rep.Status)
	}
}

func TestOnChangeFiresOnTransition(t *testing.T) {
	mod := &fakeModule{}
	mod.expecting.Store(true)
	m := newTestMonitor(mod)

	var reports []Report
	m.SetOnChange(func(r Report) { reports = append(reports, r) })

	base := time.Now()
	m.probe(base)
	m.probe(base.Add(6 * time.Second))  // healthy -> unhealthy
	m.probe(base.Add(7 * time.Second))  // no transition
	m.probe(base.Add(31 * time.Second)) // unhealthy -> critical

	if len(reports) != 2 {
		t.Fatalf("onChange fired %d times, want 2", len(reports))
	}
	if reports[0].Status != Unhealthy || reports[1].Status != Critical {
		t.Errorf("transition reports = %s, %s; want unhealthy, critical",
			reports[0].Status, reports[1].Status)
	}
}

func TestProcessProbe(t *testing.T) {
	mod := &fakeModule{}
	m := newTestMonitor(mod)
	m.SetProcess(int32(os.Getpid()))

	rep := m.Report()
	if rep.Process == nil {
		t.Fatal("no process report for a live pid")
	}
	if !rep.Process.Running {
		t.Error("own process reported not running")
	}
	if rep.Process.RSSBytes == 0 {
		t.Error("RSS = 0 for a live process")
	}
}

func TestDeadProcessGradesCritical(t *testing.T) {
	mod := &fakeModule{}
	m := newTestMonitor(mod)
	// PID from well beyond the default pid_max range.
	m.SetProcess(1 << 30)

	rep := m.Report()
	if rep.Process == nil {
		t.Fatal("no process report")
	}
	if rep.Process.Running {
		t.Skip("improbable: pid in use")
	}
	if rep.Status != Critical {
		t.Errorf("overall = %s, want critical with helper dead", rep.Status)
	}
}
