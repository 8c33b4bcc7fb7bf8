package ws

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/JinhuW/dropshelf/internal/shelf"
	"github.com/gorilla/websocket"
)

// ErrTooManyClients is returned by AddClient when the connection cap is
// reached.
var ErrTooManyClients = errors.New("too many websocket clients")

type client struct {
	conn *websocket.Conn
	b    *Broadcaster
	send chan []byte
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.b.RemoveClient(c)
			return
		}
	}
}

func (c *client) close() {
	close(c.send)
}

// Broadcaster fans engine output out to every connected websocket client:
// surface commands immediately, state snapshots throttled with
// latest-wins coalescing, plus a periodic full snapshot as a safety net
// against a missed delta.
type Broadcaster struct {
	mu       sync.RWMutex
	clients  map[*client]bool
	source   func() shelf.Snapshot
	throttle time.Duration
	maxConns int

	flushMu     sync.Mutex
	pendingSnap *shelf.Snapshot
	flushTimer  *time.Timer

	snapshotTicker *time.Ticker
	done           chan struct{}
}

// NewBroadcaster builds a broadcaster reading full state from source.
// maxConns of zero means unlimited.
func NewBroadcaster(source func() shelf.Snapshot, throttle, snapshotInterval time.Duration, maxConns int) *Broadcaster {
	b := &Broadcaster{
		clients:  make(map[*client]bool),
		source:   source,
		throttle: throttle,
		maxConns: maxConns,
		done:     make(chan struct{}),
	}

	b.snapshotTicker = time.NewTicker(snapshotInterval)
	go b.snapshotLoop()

	return b
}

func (b *Broadcaster) Stop() {
	b.snapshotTicker.Stop()
	close(b.done)

	b.mu.Lock()
	for c := range b.clients {
		delete(b.clients, c)
		c.close()
	}
	b.mu.Unlock()
}

// AddClient registers a connection and immediately queues the current
// snapshot so late joiners start from full state.
func (b *Broadcaster) AddClient(conn *websocket.Conn) (*client, error) {
	b.mu.Lock()
	if b.maxConns > 0 && len(b.clients) >= b.maxConns {
		b.mu.Unlock()
		return nil, ErrTooManyClients
	}
	c := &client{
		conn: conn,
		b:    b,
		send: make(chan []byte, 64),
	}
	b.clients[c] = true
	b.mu.Unlock()

	go c.writePump()

	data, _ := json.Marshal(Message{Type: MsgSnapshot, Payload: b.source()})
	select {
	case c.send <- data:
	default:
	}

	return c, nil
}

func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		c.close()
	}
	b.mu.Unlock()
}

// PublishSnapshot queues a state snapshot for delivery. Bursts within the
// throttle window collapse to the most recent snapshot.
func (b *Broadcaster) PublishSnapshot(snap shelf.Snapshot) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.pendingSnap = &snap

	if b.flushTimer == nil {
		b.flushTimer = time.AfterFunc(b.throttle, b.flush)
	}
}

// SendCommand delivers a surface command to every client right away.
// Commands are ordered per client and never coalesced.
func (b *Broadcaster) SendCommand(cmd SurfaceCommandPayload) {
	b.broadcast(Message{Type: MsgSurfaceCommand, Payload: cmd})
}

// PublishHealth delivers a health report to every client right away.
func (b *Broadcaster) PublishHealth(report interface{}) {
	b.broadcast(Message{Type: MsgHealth, Payload: report})
}

func (b *Broadcaster) flush() {
	b.flushMu.Lock()
	snap := b.pendingSnap
	b.pendingSnap = nil
	b.flushTimer = nil
	b.flushMu.Unlock()

	if snap == nil {
		return
	}
	b.broadcast(Message{Type: MsgSnapshot, Payload: *snap})
}

func (b *Broadcaster) snapshotLoop() {
	for {
		select {
		case <-b.done:
			return
		case <-b.snapshotTicker.C:
			b.broadcast(Message{Type: MsgSnapshot, Payload: b.source()})
		}
	}
}

func (b *Broadcaster) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[ws] broadcast marshal error: %v", err)
		return
	}

	b.mu.RLock()
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- data:
		default:
			// Client can't keep up, disconnect it.
			log.Printf("[ws] client too slow, disconnecting")
			b.RemoveClient(c)
		}
	}
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
