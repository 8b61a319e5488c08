// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New() builds a Config with defaults; Load(ctx) layers file and env on top.
// - Keys are flat snake_case so env vars map 1:1 (CHARGEVIEW_POLL_INTERVAL_MS -> poll_interval_ms).
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"errors"
	"slices"
	"time"

	"github.com/okian/chargeview/internal/domain/reconcile"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
)

// DefaultPalette is the cluster color palette. Labels wrap modulo its length.
var DefaultPalette = slices.Clone([]string(reconcile.DefaultPalette))

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// BackendURL is the base URL of the telemetry/cluster backend.
	BackendURL string `koanf:"backend_url"`

	// PollIntervalMS is the period between fetch-reconcile cycles.
	PollIntervalMS int `koanf:"poll_interval_ms"`

	// FetchTimeoutMS bounds each backend request.
	FetchTimeoutMS int `koanf:"fetch_timeout_ms"`

	// TriggerQueueSize bounds pending cycle requests.
	TriggerQueueSize int `koanf:"trigger_queue_size"`

	// Palette holds the cluster colors.
	Palette []string `koanf:"palette"`

	// CostWindow is how many trailing history entries feed the cost distribution.
	CostWindow int `koanf:"cost_window"`

	// RadarLimit caps how many clusters feed the performance view.
	RadarLimit int `koanf:"radar_limit"`

	// EnergyScale multiplies average energy in the performance view.
	EnergyScale float64 `koanf:"energy_scale"`

	// RedisAddr enables the snapshot mirror when non-empty.
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisKey      string `koanf:"redis_key"`
	RedisTTLSecs  int    `koanf:"redis_ttl_seconds"`

	// StreamWriteTimeoutMS bounds a single websocket write.
	StreamWriteTimeoutMS int `koanf:"stream_write_timeout_ms"`
}

// New creates a Config with defaults.
func New() *Config {
	palette := slices.Clone(DefaultPalette)
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":9080",
		BackendURL:           "http://localhost:5000",
		PollIntervalMS:       30_000,
		FetchTimeoutMS:       10_000,
		TriggerQueueSize:     1,
		Palette:              palette,
		CostWindow:           5,
		RadarLimit:           5,
		EnergyScale:          10,
		RedisKey:             "chargeview:snapshot",
		RedisTTLSecs:         3600,
		StreamWriteTimeoutMS: 5_000,
	}
}

// PollInterval returns PollIntervalMS as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// FetchTimeout returns FetchTimeoutMS as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutMS) * time.Millisecond
}

// RedisTTL returns RedisTTLSecs as a duration.
func (c *Config) RedisTTL() time.Duration {
	return time.Duration(c.RedisTTLSecs) * time.Second
}

// StreamWriteTimeout returns StreamWriteTimeoutMS as a duration.
func (c *Config) StreamWriteTimeout() time.Duration {
	return time.Duration(c.StreamWriteTimeoutMS) * time.Millisecond
}
