// Package pool manages a bounded set of reusable display surfaces.
//
// Surfaces are expensive to construct, so the pool trades a fixed amount
// of memory for latency: a warm tier holds fully initialized surfaces
// with content pre-loaded, a cold tier holds skeletons, and only when
// both are empty does an acquisition pay for construction.
package pool

// Point is a screen position in logical pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a surface extent in logical pixels.
type Size struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Surface is the command contract the lifecycle engine drives a display
// surface through. Implementations deliver the corresponding presentation
// events (content readiness, drops, user close) out of band.
type Surface interface {
	ID() string

	// Configure positions and styles the surface. Safe to call on a
	// hidden surface.
	Configure(pos Point, size Size, opacity float64)

	// LoadContent starts content loading. Completion is reported through
	// the presentation event stream, not this call.
	LoadContent()

	Show()
	Hide()

	// Reset clears transient state (position, size, opacity, content),
	// returning the surface to its skeleton form for reuse.
	Reset()

	// Destroy releases the underlying display object. The surface must
	// not be used afterwards.
	Destroy()
}

// Factory constructs new surfaces. Construction is the slow path; the
// pool calls it on acquisition fall-through and during replenishment.
type Factory interface {
	New() (Surface, error)
}

// Tier records which cache tier a surface came from.
type Tier int

const (
	// Warm surfaces are fully initialized with content pre-loaded.
	Warm Tier = iota
	// Cold surfaces are constructed skeletons; content loads on the
	// critical path after acquisition.
	Cold
	// Fresh surfaces were constructed for this acquisition because both
	// tiers were empty.
	Fresh
)

var tierNames = map[Tier]string{
	Warm:  "warm",
	Cold:  "cold",
	Fresh: "fresh",
}

func (t Tier) String() string {
	if s, ok := tierNames[t]; ok {
		return s
	}
	return "unknown"
}

// PooledSurface is a surface checked out of the pool. Ownership belongs
// to the caller until Release; the pool will not touch it in between.
type PooledSurface struct {
	Surface
	// Tier the surface was served from for this acquisition.
	Tier Tier
	// ContentLoaded is true only for warm acquisitions; cold and fresh
	// surfaces still need LoadContent.
	ContentLoaded bool
}
