package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JinhuW/dropshelf/internal/config"
	"github.com/JinhuW/dropshelf/internal/input"
	"github.com/JinhuW/dropshelf/internal/session"
	"github.com/JinhuW/dropshelf/internal/shelf"
	"github.com/gorilla/websocket"
)

// EnginePort is the slice of the coordinator the inbound path needs.
type EnginePort interface {
	PostSurfaceEvent(shelf.SurfaceEvent)
	Snapshot() shelf.Snapshot
}

// Server owns the HTTP surface: the websocket endpoint both helper
// processes connect to, plus small JSON state and health APIs.
type Server struct {
	config         *config.Config
	pump           *input.Pump
	engine         EnginePort
	store          *session.Store
	hub            *Broadcaster
	healthFn       func() interface{}
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
	authToken      string
}

func NewServer(cfg *config.Config, pump *input.Pump, engine EnginePort, store *session.Store, hub *Broadcaster) *Server {
	s := &Server{
		config:         cfg,
		pump:           pump,
		engine:         engine,
		store:          store,
		hub:            hub,
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
		authToken:      cfg.Server.AuthToken,
	}

	for _, origin := range cfg.Server.AllowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	return s
}

// SetHealthSource configures the provider behind /api/health. Must be
// called before SetupRoutes.
func (s *Server) SetHealthSource(fn func() interface{}) {
	s.healthFn = fn
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/health", s.handleHealth)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade error: %v", err)
		return
	}

	c, err := s.hub.AddClient(conn)
	if err != nil {
		log.Printf("[ws] rejecting %s: %v", r.RemoteAddr, err)
		conn.Close()
		return
	}
	log.Printf("[ws] client connected: %s", r.RemoteAddr)

	go func() {
		defer func() {
			s.hub.RemoveClient(c)
			log.Printf("[ws] client disconnected: %s", r.RemoteAddr)
		}()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			s.dispatch(data)
		}
	}()
}

// dispatch decodes one inbound message and feeds it to the engine. Bad
// payloads are logged and dropped; a misbehaving client must not be able
// to wedge the input path.
func (s *Server) dispatch(data []byte) {
	var msg rawMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("[ws] undecodable message: %v", err)
		return
	}

	switch msg.Type {
	case MsgPointerSample:
		var p PointerSamplePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			log.Printf("[ws] bad pointer_sample payload: %v", err)
			return
		}
		ts := time.Now()
		if p.TimeMs > 0 {
			ts = time.UnixMilli(p.TimeMs)
		}
		s.pump.PostSample(input.PointerSample{
			X:                 p.X,
			Y:                 p.Y,
			Time:              ts,
			PrimaryButtonDown: p.ButtonDown,
		})

	case MsgDragSignal:
		var p DragSignalPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			log.Printf("[ws] bad drag_signal payload: %v", err)
			return
		}
		s.pump.PostDrag(input.DragSignal{
			Active:         p.Active,
			ItemPaths:      p.ItemPaths,
			PayloadVersion: p.PayloadVersion,
		})

	case MsgSurfaceEvent:
		var p SurfaceEventPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			log.Printf("[ws] bad surface_event payload: %v", err)
			return
		}
		evType, ok := surfaceEventTypes[p.Event]
		if !ok {
			log.Printf("[ws] unknown surface event %q for %s", p.Event, p.SurfaceID)
			return
		}
		s.engine.PostSurfaceEvent(shelf.SurfaceEvent{
			Type:      evType,
			SurfaceID: p.SurfaceID,
			Items:     p.Items,
		})

	default:
		log.Printf("[ws] unexpected inbound message type %q", msg.Type)
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.engine.Snapshot())
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.store.GetAll())
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	// The helper only needs the sections that shape its behavior.
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		Gesture config.GestureConfig `json:"gesture"`
		Shelf   config.ShelfConfig   `json:"shelf"`
	}{s.config.Gesture, s.config.Shelf})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if s.healthFn == nil {
		http.Error(w, "health not available", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.healthFn())
}

func (s *Server) authorize(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}

	if r.URL.Query().Get("token") == s.authToken {
		return true
	}

	if r.Header.Get("X-DropShelf-Token") == s.authToken {
		return true
	}

	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.authToken {
		return true
	}

	return false
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := parsed.Host
	if host == "" {
		return false
	}

	if host == r.Host {
		return true
	}

	if strings.HasPrefix(host, "localhost:") || host == "localhost" {
		return true
	}
	if strings.HasPrefix(host, "127.0.0.1:") || host == "127.0.0.1" {
		return true
	}
	if strings.HasPrefix(host, "[::1]:") || host == "::1" {
		return true
	}

	return false
}

// ListenAndServe runs the HTTP server until the context is cancelled,
// then drains with a short shutdown grace.
func (s *Server) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("[ws] listening on %s", srv.Addr)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
