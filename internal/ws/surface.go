package ws

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/JinhuW/dropshelf/internal/pool"
	"github.com/oklog/ulid/v2"
)

// ErrNoPresentationClient is returned when a surface is requested while
// no helper process is connected to render it.
var ErrNoPresentationClient = errors.New("no presentation client connected")

// RemoteSurface drives one presentation-process window through surface
// commands over the websocket boundary. Commands are fire-and-forget;
// completions that matter (content readiness, drops) come back as
// surface events on the inbound path.
type RemoteSurface struct {
	id  string
	hub *Broadcaster
}

func (s *RemoteSurface) ID() string { return s.id }

func (s *RemoteSurface) Configure(pos pool.Point, size pool.Size, opacity float64) {
	s.hub.SendCommand(SurfaceCommandPayload{
		SurfaceID: s.id,
		Command:   CmdConfigure,
		Position:  &pos,
		Size:      &size,
		Opacity:   &opacity,
	})
}

func (s *RemoteSurface) LoadContent() {
	s.hub.SendCommand(SurfaceCommandPayload{SurfaceID: s.id, Command: CmdLoadContent})
}

func (s *RemoteSurface) Show() {
	s.hub.SendCommand(SurfaceCommandPayload{SurfaceID: s.id, Command: CmdShow})
}

func (s *RemoteSurface) Hide() {
	s.hub.SendCommand(SurfaceCommandPayload{SurfaceID: s.id, Command: CmdHide})
}

func (s *RemoteSurface) Reset() {
	s.hub.SendCommand(SurfaceCommandPayload{SurfaceID: s.id, Command: CmdReset})
}

func (s *RemoteSurface) Destroy() {
	s.hub.SendCommand(SurfaceCommandPayload{SurfaceID: s.id, Command: CmdDestroy})
}

// SurfaceFactory mints remote surfaces. Construction fails fast when no
// presentation client is connected, which the pool and coordinator treat
// like any other construction failure.
type SurfaceFactory struct {
	hub *Broadcaster
}

func NewSurfaceFactory(hub *Broadcaster) *SurfaceFactory {
	return &SurfaceFactory{hub: hub}
}

func (f *SurfaceFactory) New() (pool.Surface, error) {
	if f.hub.ClientCount() == 0 {
		return nil, ErrNoPresentationClient
	}
	s := &RemoteSurface{id: newSurfaceID(), hub: f.hub}
	f.hub.SendCommand(SurfaceCommandPayload{SurfaceID: s.id, Command: CmdCreate})
	return s, nil
}

var (
	surfaceEntropyMu sync.Mutex
	surfaceEntropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

func newSurfaceID() string {
	surfaceEntropyMu.Lock()
	defer surfaceEntropyMu.Unlock()
	return "srf_" + ulid.MustNew(ulid.Now(), surfaceEntropy).String()
}
