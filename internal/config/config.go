package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Input   InputConfig   `yaml:"input"`
	Gesture GestureConfig `yaml:"gesture"`
	Shelf   ShelfConfig   `yaml:"shelf"`
	Pool    PoolConfig    `yaml:"pool"`
	Health  HealthConfig  `yaml:"health"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	AuthToken      string   `yaml:"auth_token"`
}

// InputConfig tunes the native event pump. The queue is single-writer/
// single-reader; under sustained overload the oldest samples are dropped,
// since only the recent trajectory matters for gesture detection.
type InputConfig struct {
	QueueDepth    int           `yaml:"queue_depth"`
	PayloadLinger time.Duration `yaml:"payload_linger"`
}

// GestureConfig holds the shake detection thresholds. These are empirically
// tuned, not derived; expect per-device calibration. Changes apply from the
// next drag session onward.
type GestureConfig struct {
	Reversals       int           `yaml:"reversals"`
	Window          time.Duration `yaml:"window"`
	MinDisplacement float64       `yaml:"min_displacement"`
	MinElapsed      time.Duration `yaml:"min_elapsed"`
}

type ShelfConfig struct {
	AutoHideDelay time.Duration `yaml:"auto_hide_delay"`
	// HardCeiling forces auto-hide scheduling even when no drag-end signal
	// ever arrives, so a surface can never be stuck on screen forever.
	HardCeiling    time.Duration `yaml:"hard_ceiling"`
	DefaultOpacity float64       `yaml:"default_opacity"`
	DefaultWidth   float64       `yaml:"default_width"`
	DefaultHeight  float64       `yaml:"default_height"`
}

type PoolConfig struct {
	GlobalCap int `yaml:"global_cap"`
	WarmCap   int `yaml:"warm_cap"`
}

type HealthConfig struct {
	ProbeInterval   time.Duration `yaml:"probe_interval"`
	EventTimeout    time.Duration `yaml:"event_timeout"`
	CriticalTimeout time.Duration `yaml:"critical_timeout"`
}

// Default returns the built-in configuration. Load starts from this and
// overlays whatever the file provides, so a partial file is fine.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8571,
			Host: "127.0.0.1",
		},
		Input: InputConfig{
			QueueDepth:    256,
			PayloadLinger: 500 * time.Millisecond,
		},
		Gesture: GestureConfig{
			Reversals:       2,
			Window:          600 * time.Millisecond,
			MinDisplacement: 25,
			MinElapsed:      150 * time.Millisecond,
		},
		Shelf: ShelfConfig{
			AutoHideDelay:  5 * time.Second,
			HardCeiling:    2 * time.Minute,
			DefaultOpacity: 0.95,
			DefaultWidth:   320,
			DefaultHeight:  240,
		},
		Pool: PoolConfig{
			GlobalCap: 5,
			WarmCap:   2,
		},
		Health: HealthConfig{
			ProbeInterval:   time.Second,
			EventTimeout:    5 * time.Second,
			CriticalTimeout: 30 * time.Second,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the engine cannot run with. Zero values that have
// a sane fallback are normalized rather than rejected.
func (c *Config) Validate() error {
	if c.Pool.GlobalCap < 1 {
		return fmt.Errorf("pool.global_cap must be >= 1, got %d", c.Pool.GlobalCap)
	}
	if c.Pool.WarmCap < 0 {
		return fmt.Errorf("pool.warm_cap must be >= 0, got %d", c.Pool.WarmCap)
	}
	if c.Pool.WarmCap > c.Pool.GlobalCap {
		return fmt.Errorf("pool.warm_cap (%d) exceeds pool.global_cap (%d)", c.Pool.WarmCap, c.Pool.GlobalCap)
	}
	if c.Gesture.Reversals < 1 {
		return fmt.Errorf("gesture.reversals must be >= 1, got %d", c.Gesture.Reversals)
	}
	if c.Gesture.Window <= 0 {
		return fmt.Errorf("gesture.window must be positive, got %s", c.Gesture.Window)
	}
	if c.Shelf.AutoHideDelay <= 0 {
		return fmt.Errorf("shelf.auto_hide_delay must be positive, got %s", c.Shelf.AutoHideDelay)
	}
	if c.Shelf.HardCeiling <= c.Shelf.AutoHideDelay {
		return fmt.Errorf("shelf.hard_ceiling (%s) must exceed shelf.auto_hide_delay (%s)",
			c.Shelf.HardCeiling, c.Shelf.AutoHideDelay)
	}
	if c.Input.QueueDepth < 16 {
		c.Input.QueueDepth = 16
	}
	if c.Shelf.DefaultOpacity <= 0 || c.Shelf.DefaultOpacity > 1 {
		c.Shelf.DefaultOpacity = 0.95
	}
	return nil
}
