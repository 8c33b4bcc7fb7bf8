package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JinhuW/dropshelf/internal/config"
	"github.com/JinhuW/dropshelf/internal/gesture"
	"github.com/JinhuW/dropshelf/internal/health"
	"github.com/JinhuW/dropshelf/internal/input"
	"github.com/JinhuW/dropshelf/internal/pool"
	"github.com/JinhuW/dropshelf/internal/session"
	"github.com/JinhuW/dropshelf/internal/shelf"
	"github.com/JinhuW/dropshelf/internal/ws"
)

const (
	broadcastThrottle = 50 * time.Millisecond
	snapshotInterval  = 10 * time.Second
)

// itemLog is the shipped item sink: dropped items are logged and carried
// in the shelf state; durable storage stays outside this process.
type itemLog struct{}

func (itemLog) Record(sessionID string, items []shelf.Item) error {
	for _, it := range items {
		log.Printf("[items] session %s received %s", sessionID, it.Path)
	}
	return nil
}

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	mockMode := flag.Bool("mock", false, "Feed synthetic pointer and drag events")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("No config file at %s, using defaults", *configPath)
			cfg = config.Default()
		} else {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	pump := input.NewPump(cfg.Input.QueueDepth, cfg.Input.PayloadLinger)
	rec := gesture.NewRecognizer(cfg.Gesture)
	store := session.NewStore()
	tracker := session.NewTracker(store)
	timers := shelf.NewRegistry()

	// The broadcaster reads snapshots from the coordinator, and the
	// coordinator drives surfaces rendered by the broadcaster's clients.
	var engine *shelf.Coordinator
	hub := ws.NewBroadcaster(func() shelf.Snapshot {
		if engine == nil {
			return shelf.Snapshot{}
		}
		return engine.Snapshot()
	}, broadcastThrottle, snapshotInterval, 0)

	surfaces := pool.New(ws.NewSurfaceFactory(hub), cfg.Pool.GlobalCap, cfg.Pool.WarmCap)
	engine = shelf.NewCoordinator(cfg, pump, rec, tracker, surfaces, timers, itemLog{})
	engine.SetNotify(hub.PublishSnapshot)

	server := ws.NewServer(cfg, pump, engine, store, hub)

	mon := health.NewMonitor(cfg.Health)
	helperAttached := func() bool { return hub.ClientCount() > 0 }
	mon.Register("input", func() (uint64, uint64) {
		posted, _, dropped := pump.Stats()
		return posted, dropped
	}, helperAttached, nil)
	mon.Register("engine", func() (uint64, uint64) {
		_, delivered, _ := pump.Stats()
		return delivered, 0
	}, helperAttached, nil)
	mon.SetOnChange(func(r health.Report) { hub.PublishHealth(r) })
	server.SetHealthSource(func() interface{} { return mon.Report() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go engine.Run(ctx)
	mon.Start(ctx)

	if *mockMode {
		log.Println("Starting with synthetic input feed")
		go input.NewSynthetic(pump).Start(ctx)
	}

	// SIGINT/SIGTERM shut down; SIGHUP reloads config in place.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		for sig := range sigCh {
			if sig == syscall.SIGHUP {
				next, err := config.Load(*configPath)
				if err != nil {
					log.Printf("Config reload failed: %v", err)
					continue
				}
				if *port > 0 {
					next.Server.Port = *port
				}
				engine.SetConfig(next)
				continue
			}
			log.Println("Shutting down...")
			cancel()
			return
		}
	}()

	if err := server.ListenAndServe(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	hub.Stop()
	surfaces.Close()
}
