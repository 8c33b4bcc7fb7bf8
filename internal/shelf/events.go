package shelf

import (
	"time"

	"github.com/JinhuW/dropshelf/internal/pool"
	"github.com/JinhuW/dropshelf/internal/session"
)

// SurfaceEventType classifies reports arriving from the presentation
// layer. Commands flow out through the pool.Surface interface; these are
// the answers coming back.
type SurfaceEventType int

const (
	// ContentReady: the surface finished loading its content and can be
	// shown.
	ContentReady SurfaceEventType = iota
	// DropBegin: a drag entered the surface's bounds.
	DropBegin
	// DropComplete: items were released onto the surface.
	DropComplete
	// UserClose: the user dismissed the surface directly.
	UserClose
)

var surfaceEventNames = map[SurfaceEventType]string{
	ContentReady: "content_ready",
	DropBegin:    "drop_begin",
	DropComplete: "drop_complete",
	UserClose:    "user_close",
}

func (t SurfaceEventType) String() string {
	if s, ok := surfaceEventNames[t]; ok {
		return s
	}
	return "unknown"
}

// SurfaceEvent is one presentation-side report about a surface. Items is
// populated only for DropComplete, and may still be empty when the
// presentation layer could not resolve the payload itself.
type SurfaceEvent struct {
	Type      SurfaceEventType
	SurfaceID string
	Items     []Item
}

// ItemSink receives every batch of dropped items for recording. Failures
// are logged and the batch abandoned; the shelf keeps the items on screen
// regardless.
type ItemSink interface {
	Record(sessionID string, items []Item) error
}

// Snapshot is the externally visible engine state, published after every
// transition and served to late joiners.
type Snapshot struct {
	State   State                `json:"state"`
	Shelf   *ShelfState          `json:"shelf,omitempty"`
	Session *session.DragSession `json:"session,omitempty"`
	Pool    pool.Stats           `json:"pool"`
	At      time.Time            `json:"at"`
}
