package ws

import (
	"encoding/json"

	"github.com/JinhuW/dropshelf/internal/pool"
	"github.com/JinhuW/dropshelf/internal/shelf"
)

type MessageType string

// Engine-to-client messages.
const (
	MsgSnapshot       MessageType = "snapshot"
	MsgSurfaceCommand MessageType = "surface_command"
	MsgHealth         MessageType = "health"
	MsgError          MessageType = "error"
)

// Client-to-engine messages, produced by the native feed and the
// presentation helper.
const (
	MsgPointerSample MessageType = "pointer_sample"
	MsgDragSignal    MessageType = "drag_signal"
	MsgSurfaceEvent  MessageType = "surface_event"
)

type Message struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`
}

// rawMessage defers payload decoding until the type is known.
type rawMessage struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// SurfaceCommand names an operation the presentation helper must apply to
// one of its windows.
type SurfaceCommand string

const (
	CmdCreate      SurfaceCommand = "create"
	CmdConfigure   SurfaceCommand = "configure"
	CmdLoadContent SurfaceCommand = "load_content"
	CmdShow        SurfaceCommand = "show"
	CmdHide        SurfaceCommand = "hide"
	CmdReset       SurfaceCommand = "reset"
	CmdDestroy     SurfaceCommand = "destroy"
)

type SurfaceCommandPayload struct {
	SurfaceID string         `json:"surfaceId"`
	Command   SurfaceCommand `json:"command"`
	Position  *pool.Point    `json:"position,omitempty"`
	Size      *pool.Size     `json:"size,omitempty"`
	Opacity   *float64       `json:"opacity,omitempty"`
}

type PointerSamplePayload struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	ButtonDown bool    `json:"buttonDown"`
	// TimeMs is the source timestamp in unix milliseconds; zero means
	// the engine stamps the sample on arrival.
	TimeMs int64 `json:"timeMs,omitempty"`
}

type DragSignalPayload struct {
	Active         bool     `json:"active"`
	ItemPaths      []string `json:"itemPaths,omitempty"`
	PayloadVersion uint64   `json:"payloadVersion"`
}

type SurfaceEventPayload struct {
	SurfaceID string       `json:"surfaceId"`
	Event     string       `json:"event"`
	Items     []shelf.Item `json:"items,omitempty"`
}

// surfaceEventTypes maps wire names onto engine event types.
var surfaceEventTypes = map[string]shelf.SurfaceEventType{
	"content_ready": shelf.ContentReady,
	"drop_begin":    shelf.DropBegin,
	"drop_complete": shelf.DropComplete,
	"user_close":    shelf.UserClose,
}
