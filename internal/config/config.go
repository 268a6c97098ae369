// Package config provides configuration management for fabricviz.
//
// Config file locations (priority order):
//  1. $FABRICVIZ_CONFIG
//  2. ./fabricviz.yaml
//  3. $XDG_CONFIG_HOME/fabricviz/config.yaml
//  4. ~/.config/fabricviz/config.yaml
//  5. /etc/fabricviz/config.yaml
//
// A missing file is not an error; defaults are used.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		return DefaultConfig(), "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, path, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return &cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.Ingest.Kind == "" {
		c.Ingest.Kind = IngestNone
	}
	if c.Ingest.Redis.Addr == "" {
		c.Ingest.Redis.Addr = "localhost:6379"
	}
	if c.Ingest.Redis.Channel == "" {
		c.Ingest.Redis.Channel = "fabric.snapshots"
	}
	if c.Ingest.Backoff.Initial == 0 {
		c.Ingest.Backoff.Initial = Duration(500 * time.Millisecond)
	}
	if c.Ingest.Backoff.Max == 0 {
		c.Ingest.Backoff.Max = Duration(30 * time.Second)
	}

	if c.Layout.Width == 0 {
		c.Layout.Width = 960
	}
	if c.Layout.Height == 0 {
		c.Layout.Height = 540
	}
	if c.Layout.Charge == 0 {
		c.Layout.Charge = -3000
	}
	if c.Layout.LinkDistance == 0 {
		c.Layout.LinkDistance = 300
	}
	if c.Layout.CenterStrength == 0 {
		c.Layout.CenterStrength = 0.1
	}
	if c.Layout.VelocityDecay == 0 {
		c.Layout.VelocityDecay = 0.4
	}
	if c.Layout.AlphaMin == 0 {
		c.Layout.AlphaMin = 0.001
	}
	if c.Layout.TickHz == 0 {
		c.Layout.TickHz = 60
	}
	if c.Layout.Seed == 0 {
		c.Layout.Seed = 1
	}

	if c.Presenter.BroadcastEvery == 0 {
		c.Presenter.BroadcastEvery = 2
	}

	if c.Telemetry.DBPath == "" {
		c.Telemetry.DBPath = "./fabricviz-telemetry.db"
	}
	if c.Telemetry.Retain == 0 {
		c.Telemetry.Retain = 10000
	}
	if c.Telemetry.Buffer == 0 {
		c.Telemetry.Buffer = 256
	}

	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = "stdout"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "fabricviz"
	}
	if c.Tracing.SampleRatio == 0 {
		c.Tracing.SampleRatio = 1
	}
}

// Validate rejects values the service cannot run with
func (c *Config) Validate() error {
	var errs []error

	switch c.Ingest.Kind {
	case IngestNone:
	case IngestWebSocket:
		if c.Ingest.WebSocket.URL == "" {
			errs = append(errs, errors.New("ingest.websocket.url is required"))
		}
	case IngestRedis:
		if c.Ingest.Redis.Channel == "" {
			errs = append(errs, errors.New("ingest.redis.channel is required"))
		}
	case IngestFile:
		if c.Ingest.File.Path == "" {
			errs = append(errs, errors.New("ingest.file.path is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ingest.kind %q", c.Ingest.Kind))
	}

	if c.Ingest.Backoff.Max < c.Ingest.Backoff.Initial {
		errs = append(errs, errors.New("ingest.backoff.max must not be below initial"))
	}
	if c.Layout.Width <= 0 || c.Layout.Height <= 0 {
		errs = append(errs, errors.New("layout.width and layout.height must be positive"))
	}
	if c.Layout.TickHz <= 0 {
		errs = append(errs, errors.New("layout.tick_hz must be positive"))
	}
	if c.Layout.VelocityDecay <= 0 || c.Layout.VelocityDecay >= 1 {
		errs = append(errs, errors.New("layout.velocity_decay must be in (0, 1)"))
	}
	if c.Layout.AlphaMin <= 0 || c.Layout.AlphaMin >= 1 {
		errs = append(errs, errors.New("layout.alpha_min must be in (0, 1)"))
	}
	if c.Presenter.BroadcastEvery < 0 {
		errs = append(errs, errors.New("presenter.broadcast_every must not be negative"))
	}
	if c.Telemetry.Retain < 0 {
		errs = append(errs, errors.New("telemetry.retain must not be negative"))
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, errors.New("tracing.sample_ratio must be in [0, 1]"))
	}

	return errors.Join(errs...)
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Server: %s, Log: %s\n", c.Server.Addr, c.Log.Level)
	fmt.Fprintf(&b, "Ingest: %s", c.Ingest.Kind)
	switch c.Ingest.Kind {
	case IngestWebSocket:
		fmt.Fprintf(&b, " (%s)", c.Ingest.WebSocket.URL)
	case IngestRedis:
		fmt.Fprintf(&b, " (%s #%s)", c.Ingest.Redis.Addr, c.Ingest.Redis.Channel)
	case IngestFile:
		fmt.Fprintf(&b, " (%s, watch=%v)", c.Ingest.File.Path, c.Ingest.File.Watch)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Layout: %.0fx%.0f @ %d Hz, coalesce=%v\n",
		c.Layout.Width, c.Layout.Height, c.Layout.TickHz, c.Layout.Coalescing())
	fmt.Fprintf(&b, "Telemetry: %v, Tracing: %v", c.Telemetry.Enabled, c.Tracing.Enabled)
	return b.String()
}
