// Package config loads and validates the roomsync YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/njoerd114/roomsync/internal/model"
)

// Local cache backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config holds the full application configuration loaded from YAML.
type Config struct {
	// Remote points at the authoritative Postgres store. Omit the block to
	// run permanently in local mode.
	Remote *RemoteConfig `yaml:"remote,omitempty"`

	Retry RetryConfig `yaml:"retry"`
	Local LocalConfig `yaml:"local"`

	// Realtime configures the change feed. Omit it to run without
	// realtime ingestion.
	Realtime *RealtimeConfig `yaml:"realtime,omitempty"`

	HTTP HTTPConfig `yaml:"http"`

	// Rooms is provisioned once when neither the local cache nor the remote
	// store holds any room.
	Rooms []RoomConfig `yaml:"rooms,omitempty"`

	// Telemetry configures optional OpenTelemetry export via OTLP gRPC.
	// Omit the block entirely to disable telemetry.
	Telemetry *TelemetryConfig `yaml:"telemetry,omitempty"`
}

// RemoteConfig holds the Postgres connection settings.
type RemoteConfig struct {
	// DSN is a libpq connection string or postgres:// URL.
	DSN string `yaml:"dsn"`

	// CallTimeout bounds each remote call attempt. Defaults to 250ms.
	CallTimeout time.Duration `yaml:"call_timeout"`

	// OpTimeout bounds all remote calls of one operation, retries included.
	// Zero derives it from call_timeout and the retry settings, 1.75s with
	// the defaults.
	OpTimeout time.Duration `yaml:"op_timeout"`

	// ProbeTimeout bounds the startup connectivity probe. Defaults to 3s.
	ProbeTimeout time.Duration `yaml:"probe_timeout"`

	// Migrate creates the rooms and reservations tables on startup.
	Migrate bool `yaml:"migrate"`
}

// RetryConfig controls retries of transient remote failures.
type RetryConfig struct {
	// Attempts is the total number of tries. Defaults to 3, maximum 10.
	Attempts int `yaml:"attempts"`

	// Delay is the fixed wait between tries. Defaults to 500ms.
	Delay time.Duration `yaml:"delay"`
}

// LocalConfig selects the durable local cache.
type LocalConfig struct {
	// Backend is "sqlite" (default) or "redis".
	Backend string `yaml:"backend"`

	// Path is the SQLite file. Defaults to ~/.local/share/roomsync/cache.db.
	Path string `yaml:"path"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

// RealtimeConfig names the Kafka topic carrying row changes.
type RealtimeConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`
}

// HTTPConfig configures the operation API.
type HTTPConfig struct {
	// Addr is the listen address. Defaults to "127.0.0.1:8080".
	Addr string `yaml:"addr"`
}

// RoomConfig describes one room to provision.
type RoomConfig struct {
	ID         int64    `yaml:"id"`
	Number     string   `yaml:"number"`
	Type       string   `yaml:"type"`
	PriceCents int64    `yaml:"price_cents"`
	Capacity   int      `yaml:"capacity"`
	Amenities  []string `yaml:"amenities,omitempty"`
}

// Model converts the entry to a room with no status set.
func (r RoomConfig) Model() model.Room {
	return model.Room{
		ID:         r.ID,
		RoomNumber: r.Number,
		Type:       model.RoomType(r.Type),
		PriceCents: r.PriceCents,
		Capacity:   r.Capacity,
		Amenities:  r.Amenities,
	}
}

// TelemetryConfig holds optional OpenTelemetry settings.
type TelemetryConfig struct {
	// OTLPEndpoint is the gRPC host:port of the OTLP collector (e.g. "localhost:4317").
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// Insecure disables TLS for the collector connection. Use for local collectors.
	Insecure bool `yaml:"insecure"`

	// ServiceName overrides the OTel service.name attribute. Defaults to "roomsync".
	ServiceName string `yaml:"service_name"`

	// Headers contains key-value pairs sent as gRPC metadata on every OTLP
	// request, e.g. Authorization: "Bearer <token>".
	Headers map[string]string `yaml:"headers,omitempty"`
}

// DefaultPath returns the default config file path: ~/.config/roomsync/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "roomsync", "config.yaml"), nil
}

// Load reads and validates the configuration file at the given path.
// A .env file in the same directory is loaded into the environment first
// (existing variables win), then ${VAR} references in the file are expanded.
func Load(path string) (*Config, error) {
	envPath := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading %q: %w", envPath, err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file %q: %w", path, err)
	}

	var cfg Config
	dec := yaml.NewDecoder(strings.NewReader(os.ExpandEnv(string(raw))))
	dec.KnownFields(true) // reject unknown keys to catch typos early
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %q: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// validate fills defaults and checks that all fields are well-formed.
func (c *Config) validate() error {
	if c.Remote != nil {
		if c.Remote.DSN == "" {
			return fmt.Errorf("remote.dsn is required when remote is configured")
		}
		if c.Remote.CallTimeout == 0 {
			c.Remote.CallTimeout = 250 * time.Millisecond
		}
		if c.Remote.CallTimeout < 100*time.Millisecond || c.Remote.CallTimeout > time.Minute {
			return fmt.Errorf("remote.call_timeout %v must be between 100ms and 1m", c.Remote.CallTimeout)
		}
		if c.Remote.OpTimeout != 0 && (c.Remote.OpTimeout < c.Remote.CallTimeout || c.Remote.OpTimeout > 5*time.Minute) {
			return fmt.Errorf("remote.op_timeout %v must be between call_timeout and 5m", c.Remote.OpTimeout)
		}
		if c.Remote.ProbeTimeout == 0 {
			c.Remote.ProbeTimeout = 3 * time.Second
		}
		if c.Remote.ProbeTimeout < 100*time.Millisecond || c.Remote.ProbeTimeout > time.Minute {
			return fmt.Errorf("remote.probe_timeout %v must be between 100ms and 1m", c.Remote.ProbeTimeout)
		}
	}

	if c.Retry.Attempts == 0 {
		c.Retry.Attempts = 3
	}
	if c.Retry.Attempts < 1 || c.Retry.Attempts > 10 {
		return fmt.Errorf("retry.attempts %d must be between 1 and 10", c.Retry.Attempts)
	}
	if c.Retry.Delay == 0 {
		c.Retry.Delay = 500 * time.Millisecond
	}
	if c.Retry.Delay < 0 || c.Retry.Delay > 30*time.Second {
		return fmt.Errorf("retry.delay %v must be between 0 and 30s", c.Retry.Delay)
	}

	switch c.Local.Backend {
	case "":
		c.Local.Backend = BackendSQLite
	case BackendSQLite:
	case BackendRedis:
		if c.Local.RedisAddr == "" {
			return fmt.Errorf("local.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("local.backend %q must be %q or %q", c.Local.Backend, BackendSQLite, BackendRedis)
	}
	if c.Local.RedisDB < 0 {
		return fmt.Errorf("local.redis_db must not be negative")
	}

	if c.Realtime != nil {
		if len(c.Realtime.Brokers) == 0 {
			return fmt.Errorf("realtime.brokers must contain at least one broker")
		}
		if c.Realtime.Topic == "" {
			return fmt.Errorf("realtime.topic is required when realtime is configured")
		}
		if c.Remote == nil {
			return fmt.Errorf("realtime requires a remote block")
		}
	}

	if c.HTTP.Addr == "" {
		c.HTTP.Addr = "127.0.0.1:8080"
	}

	seen := make(map[int64]struct{}, len(c.Rooms))
	for i, r := range c.Rooms {
		if r.ID <= 0 {
			return fmt.Errorf("rooms[%d].id must be positive", i)
		}
		if _, dup := seen[r.ID]; dup {
			return fmt.Errorf("rooms[%d].id %d is listed twice", i, r.ID)
		}
		seen[r.ID] = struct{}{}
		if r.Number == "" {
			return fmt.Errorf("rooms[%d].number is required", i)
		}
		if !model.RoomType(r.Type).IsValid() {
			return fmt.Errorf("rooms[%d].type %q is not a known room type", i, r.Type)
		}
		if r.Capacity < 1 {
			return fmt.Errorf("rooms[%d].capacity must be at least 1", i)
		}
		if r.PriceCents < 0 {
			return fmt.Errorf("rooms[%d].price_cents must not be negative", i)
		}
	}

	if c.Telemetry != nil {
		if c.Telemetry.OTLPEndpoint == "" {
			return fmt.Errorf("telemetry.otlp_endpoint is required when telemetry is configured")
		}
	}

	return nil
}
