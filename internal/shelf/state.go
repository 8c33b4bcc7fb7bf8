package shelf

import (
	"encoding/json"
	"path/filepath"
	"time"
)

// State is the coordinator's position in the surface lifecycle.
type State int

const (
	Idle State = iota
	Creating
	Active
	ReceivingDrop
	AutoHideScheduled
	Retiring
)

var stateNames = map[State]string{
	Idle:              "idle",
	Creating:          "creating",
	Active:            "active",
	ReceivingDrop:     "receiving_drop",
	AutoHideScheduled: "auto_hide_scheduled",
	Retiring:          "retiring",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Item is one dropped entry on the shelf.
type Item struct {
	Path  string `json:"path"`
	Name  string `json:"name"`
	IsDir bool   `json:"isDir,omitempty"`
}

// ItemFromPath builds an Item from a bare filesystem path.
func ItemFromPath(path string) Item {
	return Item{Path: path, Name: filepath.Base(path)}
}

// ShelfState is the mutable record of one materialized shelf. Created on
// surface acquisition, destroyed when the coordinator releases the
// surface. The coordinator is its only writer.
type ShelfState struct {
	SurfaceID string    `json:"surfaceId"`
	SessionID string    `json:"sessionId"`
	Items     []Item    `json:"items"`
	CreatedAt time.Time `json:"createdAt"`
	// CreatedDuringActiveDrag guards premature retirement: such a shelf
	// must never retire while its session's drag-end is still unseen.
	CreatedDuringActiveDrag bool `json:"createdDuringActiveDrag"`

	receivingDrop bool
	// ceilingForced records that the hard ceiling fired: the drag-end
	// guard is waived from then on. The documented exception to the
	// guard-conjunction rule.
	ceilingForced bool
}

func (s *ShelfState) IsEmpty() bool {
	return len(s.Items) == 0
}

// Clone returns a copy safe for snapshot publication.
func (s *ShelfState) Clone() *ShelfState {
	if s == nil {
		return nil
	}
	c := *s
	c.Items = append([]Item(nil), s.Items...)
	return &c
}
