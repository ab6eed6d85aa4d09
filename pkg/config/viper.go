package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/trickle/pkg/dotdir"
)

// EnvPrefix is the prefix of environment variables read by InitViper.
const EnvPrefix = "TRICKLE"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the TRICKLE_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (TRICKLE_CLIENT_ENDPOINT, TRICKLE_SERVER_LISTEN, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	v.SetDefault("client.endpoint", d.Client.Endpoint)
	v.SetDefault("client.method", d.Client.Method)
	v.SetDefault("client.newline_mode", d.Client.NewlineMode)
	v.SetDefault("client.timeout", d.Client.Timeout)

	v.SetDefault("retry.max_attempts", d.Retry.MaxAttempts)
	v.SetDefault("retry.initial_interval", d.Retry.InitialInterval)
	v.SetDefault("retry.max_interval", d.Retry.MaxInterval)

	v.SetDefault("history.driver", d.History.Driver)
	v.SetDefault("history.path", d.History.Path)
	v.SetDefault("history.sqlite_path", d.History.SQLitePath)
	v.SetDefault("history.postgres_dsn", d.History.PostgresDSN)

	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("server.chunk_size", d.Server.ChunkSize)
	v.SetDefault("server.chunk_delay", d.Server.ChunkDelay)
	v.SetDefault("server.fail_first", d.Server.FailFirst)
	v.SetDefault("server.drop_after", d.Server.DropAfter)

	v.SetDefault("eventstream.provider", d.EventStream.Provider)
	v.SetDefault("eventstream.brokers", d.EventStream.Brokers)
	v.SetDefault("eventstream.topic", d.EventStream.Topic)
}
