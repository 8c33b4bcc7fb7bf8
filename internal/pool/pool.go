package pool

import (
	"errors"
	"fmt"
	"log"
	"sync"
)

// ErrExhausted is returned when every slot under the global cap is already
// acquired. The caller treats it like any construction failure: abort the
// creation, leave the session open so a later gesture retries.
var ErrExhausted = errors.New("surface pool exhausted")

// Pool is the two-tier surface cache. One mutex guards the tier lists;
// acquisition is not hot relative to input sampling, so contention is a
// non-issue. Construction happens outside the lock against a reserved
// slot so a slow factory never stalls concurrent pool calls.
type Pool struct {
	mu        sync.Mutex
	factory   Factory
	globalCap int
	warmCap   int

	warm     []Surface
	cold     []Surface
	acquired int
	building int // slots reserved for in-flight construction

	replenishing bool
}

func New(factory Factory, globalCap, warmCap int) *Pool {
	if globalCap < 1 {
		globalCap = 1
	}
	if warmCap > globalCap {
		warmCap = globalCap
	}
	return &Pool{
		factory:   factory,
		globalCap: globalCap,
		warmCap:   warmCap,
	}
}

// Acquire hands out a surface without blocking, preferring warm over cold
// over fresh construction. Every successful acquisition schedules an
// asynchronous replenish so the warm tier refills off the critical path.
func (p *Pool) Acquire() (*PooledSurface, error) {
	p.mu.Lock()
	if n := len(p.warm); n > 0 {
		s := p.warm[n-1]
		p.warm = p.warm[:n-1]
		p.acquired++
		p.mu.Unlock()
		p.Replenish()
		return &PooledSurface{Surface: s, Tier: Warm, ContentLoaded: true}, nil
	}
	if n := len(p.cold); n > 0 {
		s := p.cold[n-1]
		p.cold = p.cold[:n-1]
		p.acquired++
		p.mu.Unlock()
		p.Replenish()
		return &PooledSurface{Surface: s, Tier: Cold}, nil
	}
	if p.totalLocked() >= p.globalCap {
		p.mu.Unlock()
		return nil, ErrExhausted
	}
	p.building++
	p.mu.Unlock()

	s, err := p.factory.New()

	p.mu.Lock()
	p.building--
	if err != nil {
		p.mu.Unlock()
		return nil, fmt.Errorf("construct surface: %w", err)
	}
	p.acquired++
	p.mu.Unlock()

	p.Replenish()
	return &PooledSurface{Surface: s, Tier: Fresh}, nil
}

// Release returns a surface to the pool. Transient state is reset and the
// surface demoted to the cold tier; it is destroyed outright only when
// keeping it would exceed the global cap.
func (p *Pool) Release(ps *PooledSurface) {
	if ps == nil || ps.Surface == nil {
		return
	}
	ps.Surface.Reset()

	p.mu.Lock()
	if p.acquired > 0 {
		p.acquired--
	}
	keep := p.totalLocked()+1 <= p.globalCap
	if keep {
		p.cold = append(p.cold, ps.Surface)
	}
	p.mu.Unlock()

	if !keep {
		log.Printf("[pool] destroying surface %s (over cap)", ps.ID())
		ps.Surface.Destroy()
	}
	ps.Surface = nil

	if keep {
		p.Replenish()
	}
}

// Replenish tops up the warm tier asynchronously, bounded by the warm cap
// and the global cap. Best-effort: construction failures are logged and
// the attempt abandoned. At most one replenisher runs at a time.
func (p *Pool) Replenish() {
	p.mu.Lock()
	if p.replenishing {
		p.mu.Unlock()
		return
	}
	p.replenishing = true
	p.mu.Unlock()

	go p.replenishLoop()
}

func (p *Pool) replenishLoop() {
	defer func() {
		p.mu.Lock()
		p.replenishing = false
		p.mu.Unlock()
	}()

	for {
		p.mu.Lock()
		if len(p.warm) >= p.warmCap {
			p.mu.Unlock()
			return
		}

		// Promote a cold skeleton when one is available: preloading it
		// is cheaper than constructing from scratch.
		if n := len(p.cold); n > 0 {
			s := p.cold[n-1]
			p.cold = p.cold[:n-1]
			p.building++ // keeps the slot counted while off both lists
			p.mu.Unlock()
			s.LoadContent()
			p.mu.Lock()
			p.building--
			p.warm = append(p.warm, s)
			p.mu.Unlock()
			continue
		}

		if p.totalLocked() >= p.globalCap {
			p.mu.Unlock()
			return
		}
		p.building++
		p.mu.Unlock()

		s, err := p.factory.New()

		p.mu.Lock()
		p.building--
		if err != nil {
			p.mu.Unlock()
			log.Printf("[pool] replenish construction failed: %v", err)
			return
		}
		p.mu.Unlock()

		s.LoadContent()

		p.mu.Lock()
		p.warm = append(p.warm, s)
		p.mu.Unlock()
	}
}

// totalLocked counts every slot the pool is responsible for. Caller must
// hold p.mu. The cap invariant is warm + cold + acquired + building <=
// globalCap at every observation point.
func (p *Pool) totalLocked() int {
	return len(p.warm) + len(p.cold) + p.acquired + p.building
}

// Stats is a point-in-time pool census.
type Stats struct {
	Warm     int `json:"warm"`
	Cold     int `json:"cold"`
	Acquired int `json:"acquired"`
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Warm: len(p.warm), Cold: len(p.cold), Acquired: p.acquired}
}

// Close destroys every free surface. Acquired surfaces are the owner's
// problem; the pool forgets about them.
func (p *Pool) Close() {
	p.mu.Lock()
	free := append(append([]Surface(nil), p.warm...), p.cold...)
	p.warm = nil
	p.cold = nil
	p.mu.Unlock()

	for _, s := range free {
		s.Destroy()
	}
}
