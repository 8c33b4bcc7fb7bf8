package session

import (
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Phase is the tracker's position in the drag-session state machine.
type Phase int

const (
	NoSession Phase = iota
	SessionOpen
	SessionClosing
)

var phaseNames = map[Phase]string{
	NoSession:      "no_session",
	SessionOpen:    "open",
	SessionClosing: "closing",
}

func (p Phase) String() string {
	if s, ok := phaseNames[p]; ok {
		return s
	}
	return "unknown"
}

func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// DragSession is one logical gesture session: the span between the OS
// drag start and drag end signals.
type DragSession struct {
	ID        string     `json:"id"`
	Phase     Phase      `json:"phase"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
	// SurfaceID is set at most once for the session's whole lifetime.
	SurfaceID string `json:"surfaceId,omitempty"`
	// ShakeCount is how many confirmed shakes occurred within the session.
	ShakeCount int `json:"shakeCount"`
}

// Ended reports whether the drag-end signal has arrived for this session.
func (s *DragSession) Ended() bool {
	return s.EndedAt != nil
}

// Clone returns a deep copy safe to mutate independently.
func (s *DragSession) Clone() *DragSession {
	c := *s
	if s.EndedAt != nil {
		t := *s.EndedAt
		c.EndedAt = &t
	}
	return &c
}

// id minting uses a process-local monotonic ULID source. Sessions sort by
// creation order, which makes log correlation trivial.
var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

func newID(now time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), entropy).String()
}
