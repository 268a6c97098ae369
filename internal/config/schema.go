package config

import (
	"time"
)

// Config is the root configuration structure
type Config struct {
	Version   int             `yaml:"version"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Layout    LayoutConfig    `yaml:"layout"`
	Presenter PresenterConfig `yaml:"presenter"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Ingest source kinds
const (
	IngestNone      = "none"
	IngestWebSocket = "websocket"
	IngestRedis     = "redis"
	IngestFile      = "file"
)

// IngestConfig selects and configures the snapshot source
type IngestConfig struct {
	Kind      string          `yaml:"kind"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Redis     RedisConfig     `yaml:"redis"`
	File      FileConfig      `yaml:"file"`
	Backoff   BackoffConfig   `yaml:"backoff"`
}

// WebSocketConfig configures the websocket source
type WebSocketConfig struct {
	URL       string `yaml:"url"`
	Subscribe string `yaml:"subscribe,omitempty"` // sent after every connect
}

// RedisConfig configures the redis pub/sub source
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// FileConfig configures the file replay source
type FileConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// BackoffConfig bounds reconnect delays
type BackoffConfig struct {
	Initial Duration `yaml:"initial"`
	Max     Duration `yaml:"max"`
}

// LayoutConfig holds force simulation parameters
type LayoutConfig struct {
	Width          float64 `yaml:"width"`
	Height         float64 `yaml:"height"`
	Charge         float64 `yaml:"charge"`
	LinkDistance   float64 `yaml:"link_distance"`
	CenterStrength float64 `yaml:"center_strength"`
	VelocityDecay  float64 `yaml:"velocity_decay"`
	AlphaMin       float64 `yaml:"alpha_min"`
	TickHz         int     `yaml:"tick_hz"`
	Coalesce       *bool   `yaml:"coalesce,omitempty"` // nil = on
	Seed           int64   `yaml:"seed"`
}

// Coalescing reports whether re-seeds are batched per tick
func (l LayoutConfig) Coalescing() bool {
	return l.Coalesce == nil || *l.Coalesce
}

// PresenterConfig holds frame publishing settings
type PresenterConfig struct {
	BroadcastEvery int `yaml:"broadcast_every"` // ticks between SSE frame events
}

// TelemetryConfig holds metrics sample storage settings
type TelemetryConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path"`
	Retain  int    `yaml:"retain"`
	Buffer  int    `yaml:"buffer"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
