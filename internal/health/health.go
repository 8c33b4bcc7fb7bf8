// Package health grades the liveness of the engine's event-processing
// modules and of the external helper process.
//
// Each registered module exposes cumulative counters; a module whose
// processed counter stops advancing while activity is expected slides
// from healthy through unhealthy to critical on the configured timeouts.
// Critical transitions invoke the module's recovery hook.
package health

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/JinhuW/dropshelf/internal/config"
	"github.com/shirou/gopsutil/v3/process"
)

type Status int

const (
	Healthy Status = iota
	Degraded
	Unhealthy
	Critical
)

var statusNames = map[Status]string{
	Healthy:   "healthy",
	Degraded:  "degraded",
	Unhealthy: "unhealthy",
	Critical:  "critical",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "unknown"
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// ModuleStats supplies cumulative counters for a registered module:
// events processed and events dropped. Must be safe to call from the
// monitor goroutine.
type ModuleStats func() (processed, dropped uint64)

type ModuleReport struct {
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	LastEvent time.Time `json:"lastEvent"`
	Processed uint64    `json:"processed"`
	Dropped   uint64    `json:"dropped"`
}

// ProcessReport describes the probed helper process.
type ProcessReport struct {
	PID        int32   `json:"pid"`
	Running    bool    `json:"running"`
	CPUPercent float64 `json:"cpuPercent"`
	RSSBytes   uint64  `json:"rssBytes"`
}

type Report struct {
	Status  Status         `json:"status"`
	Modules []ModuleReport `json:"modules"`
	Process *ProcessReport `json:"process,omitempty"`
	At      time.Time      `json:"at"`
}

type moduleState struct {
	stats  ModuleStats
	expect func() bool
	repair func()

	lastEvent     time.Time
	lastProcessed uint64
	lastDropped   uint64
	status        Status
}

// Monitor probes registered modules on an interval and reports graded
// status. Construct with NewMonitor, Register modules, then Start.
type Monitor struct {
	cfg config.HealthConfig

	mu      sync.Mutex
	modules map[string]*moduleState
	order   []string
	pid     int32

	onChange func(Report)
}

func NewMonitor(cfg config.HealthConfig) *Monitor {
	return &Monitor{
		cfg:     cfg,
		modules: make(map[string]*moduleState),
	}
}

// Register adds a module. expect reports whether activity is currently
// expected at all; a module with no expectation of traffic is never
// graded stale. repair runs once per transition into Critical and may
// be nil.
func (m *Monitor) Register(name string, stats ModuleStats, expect func() bool, repair func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.modules[name]; ok {
		return
	}
	m.modules[name] = &moduleState{
		stats:     stats,
		expect:    expect,
		repair:    repair,
		lastEvent: time.Now(),
	}
	m.order = append(m.order, name)
}

// SetProcess points the resource probe at the helper process.
func (m *Monitor) SetProcess(pid int32) {
	m.mu.Lock()
	m.pid = pid
	m.mu.Unlock()
}

// SetOnChange installs the transition callback, invoked off the monitor
// lock whenever any module changes status. Must be set before Start.
func (m *Monitor) SetOnChange(fn func(Report)) {
	m.onChange = fn
}

// Start probes on the configured interval until the context is done.
func (m *Monitor) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.cfg.ProbeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.probe(time.Now())
			}
		}
	}()
}

// Report grades every module right now and returns the assembled view.
func (m *Monitor) Report() Report {
	return m.probe(time.Now())
}

func (m *Monitor) probe(now time.Time) Report {
	type transition struct {
		name     string
		from, to Status
		repair   func()
	}
	var transitions []transition

	m.mu.Lock()
	report := Report{Status: Healthy, At: now}
	for _, name := range m.order {
		st := m.modules[name]
		processed, dropped := st.stats()
		if processed != st.lastProcessed {
			st.lastProcessed = processed
			st.lastEvent = now
		}

		status := Healthy
		if st.expect == nil || st.expect() {
			elapsed := now.Sub(st.lastEvent)
			switch {
			case elapsed >= m.cfg.CriticalTimeout:
				status = Critical
			case elapsed >= m.cfg.EventTimeout:
				status = Unhealthy
			case dropped > st.lastDropped:
				status = Degraded
			}
		}
		st.lastDropped = dropped

		if status != st.status {
			tr := transition{name: name, from: st.status, to: status}
			if status == Critical {
				tr.repair = st.repair
			}
			transitions = append(transitions, tr)
			st.status = status
		}

		report.Modules = append(report.Modules, ModuleReport{
			Name:      name,
			Status:    status,
			LastEvent: st.lastEvent,
			Processed: processed,
			Dropped:   dropped,
		})
		if status > report.Status {
			report.Status = status
		}
	}
	pid := m.pid
	m.mu.Unlock()

	if pid != 0 {
		report.Process = probeProcess(pid)
		if report.Process != nil && !report.Process.Running && report.Status < Critical {
			report.Status = Critical
		}
	}

	for _, tr := range transitions {
		log.Printf("[health] %s: %s -> %s", tr.name, tr.from, tr.to)
		if tr.repair != nil {
			log.Printf("[health] running recovery for %s", tr.name)
			tr.repair()
		}
	}
	if len(transitions) > 0 && m.onChange != nil {
		m.onChange(report)
	}
	return report
}

func probeProcess(pid int32) *ProcessReport {
	p, err := process.NewProcess(pid)
	if err != nil {
		return &ProcessReport{PID: pid, Running: false}
	}
	rep := &ProcessReport{PID: pid}
	rep.Running, _ = p.IsRunning()
	if cpu, err := p.CPUPercent(); err == nil {
		rep.CPUPercent = cpu
	}
	if mem, err := p.MemoryInfo(); err == nil && mem != nil {
		rep.RSSBytes = mem.RSS
	}
	return rep
}
