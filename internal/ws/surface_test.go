package ws

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/JinhuW/dropshelf/internal/pool"
	"github.com/JinhuW/dropshelf/internal/shelf"
)

func TestFactoryRequiresPresentationClient(t *testing.T) {
	b := NewBroadcaster(staticSource(shelf.Idle), time.Hour, time.Hour, 0)
	defer b.Stop()

	f := NewSurfaceFactory(b)
	if _, err := f.New(); err != ErrNoPresentationClient {
		t.Fatalf("New with no clients: err = %v, want ErrNoPresentationClient", err)
	}
}

func TestSurfaceCommandsReachClient(t *testing.T) {
	srv, serverConn, clientConn := dialTestWS(t)
	defer srv.Close()

	b := NewBroadcaster(staticSource(shelf.Idle), time.Hour, time.Hour, 0)
	defer b.Stop()
	if _, err := b.AddClient(serverConn); err != nil {
		t.Fatalf("AddClient: %v", err)
	}
	readEnvelope(t, clientConn) // connect snapshot

	f := NewSurfaceFactory(b)
	s, err := f.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !strings.HasPrefix(s.ID(), "srf_") {
		t.Errorf("surface id = %q, want srf_ prefix", s.ID())
	}

	s.Configure(pool.Point{X: 100, Y: 200}, pool.Size{W: 320, H: 240}, 0.95)
	s.LoadContent()
	s.Show()
	s.Hide()
	s.Reset()
	s.Destroy()

	want := []SurfaceCommand{
		CmdCreate, CmdConfigure, CmdLoadContent, CmdShow, CmdHide, CmdReset, CmdDestroy,
	}
	for i, wantCmd := range want {
		msg := readEnvelope(t, clientConn)
		if msg.Type != MsgSurfaceCommand {
			t.Fatalf("message %d type = %q, want surface_command", i, msg.Type)
		}
		var cmd SurfaceCommandPayload
		if err := json.Unmarshal(msg.Payload, &cmd); err != nil {
			t.Fatalf("decode command %d: %v", i, err)
		}
		if cmd.Command != wantCmd {
			t.Fatalf("command %d = %q, want %q (ordering must hold)", i, cmd.Command, wantCmd)
		}
		if cmd.SurfaceID != s.ID() {
			t.Errorf("command %d surface = %q, want %q", i, cmd.SurfaceID, s.ID())
		}
		if wantCmd == CmdConfigure {
			if cmd.Position == nil || cmd.Position.X != 100 || cmd.Position.Y != 200 {
				t.Errorf("configure position = %+v, want (100,200)", cmd.Position)
			}
			if cmd.Size == nil || cmd.Size.W != 320 || cmd.Size.H != 240 {
				t.Errorf("configure size = %+v, want 320x240", cmd.Size)
			}
		}
	}
}

func TestSurfaceIDsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := newSurfaceID()
		if seen[id] {
			t.Fatalf("duplicate surface id %q", id)
		}
		seen[id] = true
	}
}
