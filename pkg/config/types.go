package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/papercomputeco/trickle/pkg/escape"
)

// Config represents the persistent trickle configuration stored as config.toml
// in the .trickle/ directory. The TOML layout uses sections for logical grouping.
// Durations are stored as Go duration strings ("30s", "40ms").
type Config struct {
	Version     int               `toml:"version"`
	Client      ClientConfig      `toml:"client"`
	Retry       RetryConfig       `toml:"retry"`
	History     HistoryConfig     `toml:"history"`
	Server      ServerConfig      `toml:"server"`
	EventStream EventStreamConfig `toml:"eventstream"`
}

// ClientConfig holds settings for commands that open chat streams
// (trickle chat, trickle ask).
type ClientConfig struct {
	Endpoint    string `toml:"endpoint,omitempty"`
	Method      string `toml:"method,omitempty"`
	NewlineMode string `toml:"newline_mode,omitempty"`
	Timeout     string `toml:"timeout,omitempty"`
}

// RetryConfig holds the reconnect policy.
type RetryConfig struct {
	MaxAttempts     int    `toml:"max_attempts,omitempty"`
	InitialInterval string `toml:"initial_interval,omitempty"`
	MaxInterval     string `toml:"max_interval,omitempty"`
}

// HistoryConfig selects where finalized turns are persisted.
type HistoryConfig struct {
	Driver      string `toml:"driver,omitempty"`
	Path        string `toml:"path,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// ServerConfig holds the demo producer settings (trickle serve).
type ServerConfig struct {
	Listen     string `toml:"listen,omitempty"`
	ChunkSize  int    `toml:"chunk_size,omitempty"`
	ChunkDelay string `toml:"chunk_delay,omitempty"`
	FailFirst  int    `toml:"fail_first,omitempty"`
	DropAfter  int    `toml:"drop_after,omitempty"`
}

// EventStreamConfig holds the turn event publisher settings.
type EventStreamConfig struct {
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// History driver names.
const (
	HistoryDriverNone     = "none"
	HistoryDriverMemory   = "memory"
	HistoryDriverJSONFile = "jsonfile"
	HistoryDriverSQLite   = "sqlite"
	HistoryDriverPostgres = "postgres"
)

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func intKey(key string, field func(c *Config) *int) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.Itoa(*field(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}
			if n < 0 {
				return fmt.Errorf("invalid value for %s: must not be negative", key)
			}
			*field(c) = n
			return nil
		},
	}
}

func durationKey(key string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}
			*field(c) = v
			return nil
		},
	}
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"client.endpoint": stringKey(func(c *Config) *string { return &c.Client.Endpoint }),
	"client.method": {
		get: func(c *Config) string { return c.Client.Method },
		set: func(c *Config, v string) error {
			m := strings.ToUpper(v)
			if m != "GET" && m != "POST" {
				return fmt.Errorf("invalid value for client.method: %q (expected GET or POST)", v)
			}
			c.Client.Method = m
			return nil
		},
	},
	"client.newline_mode": {
		get: func(c *Config) string { return c.Client.NewlineMode },
		set: func(c *Config, v string) error {
			if _, err := escape.ParseNewlineMode(v); err != nil {
				return fmt.Errorf("invalid value for client.newline_mode: %w", err)
			}
			c.Client.NewlineMode = v
			return nil
		},
	},
	"client.timeout": durationKey("client.timeout", func(c *Config) *string { return &c.Client.Timeout }),

	"retry.max_attempts":     intKey("retry.max_attempts", func(c *Config) *int { return &c.Retry.MaxAttempts }),
	"retry.initial_interval": durationKey("retry.initial_interval", func(c *Config) *string { return &c.Retry.InitialInterval }),
	"retry.max_interval":     durationKey("retry.max_interval", func(c *Config) *string { return &c.Retry.MaxInterval }),

	"history.driver": {
		get: func(c *Config) string { return c.History.Driver },
		set: func(c *Config, v string) error {
			switch v {
			case HistoryDriverNone, HistoryDriverMemory, HistoryDriverJSONFile, HistoryDriverSQLite, HistoryDriverPostgres:
				c.History.Driver = v
				return nil
			}
			return fmt.Errorf("invalid value for history.driver: %q", v)
		},
	},
	"history.path":         stringKey(func(c *Config) *string { return &c.History.Path }),
	"history.sqlite_path":  stringKey(func(c *Config) *string { return &c.History.SQLitePath }),
	"history.postgres_dsn": stringKey(func(c *Config) *string { return &c.History.PostgresDSN }),

	"server.listen":      stringKey(func(c *Config) *string { return &c.Server.Listen }),
	"server.chunk_size":  intKey("server.chunk_size", func(c *Config) *int { return &c.Server.ChunkSize }),
	"server.chunk_delay": durationKey("server.chunk_delay", func(c *Config) *string { return &c.Server.ChunkDelay }),
	"server.fail_first":  intKey("server.fail_first", func(c *Config) *int { return &c.Server.FailFirst }),
	"server.drop_after":  intKey("server.drop_after", func(c *Config) *int { return &c.Server.DropAfter }),

	"eventstream.provider": stringKey(func(c *Config) *string { return &c.EventStream.Provider }),
	"eventstream.brokers": {
		get: func(c *Config) string { return strings.Join(c.EventStream.Brokers, ",") },
		set: func(c *Config, v string) error {
			c.EventStream.Brokers = nil
			for b := range strings.SplitSeq(v, ",") {
				if b = strings.TrimSpace(b); b != "" {
					c.EventStream.Brokers = append(c.EventStream.Brokers, b)
				}
			}
			return nil
		},
	},
	"eventstream.topic": stringKey(func(c *Config) *string { return &c.EventStream.Topic }),
}
