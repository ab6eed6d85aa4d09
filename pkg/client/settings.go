// Package client assembles a conversation controller, its persistence and
// its event publishing from trickle configuration.
package client

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/papercomputeco/trickle/pkg/config"
	"github.com/papercomputeco/trickle/pkg/conversation"
	"github.com/papercomputeco/trickle/pkg/escape"
	"github.com/papercomputeco/trickle/pkg/eventstream"
	"github.com/papercomputeco/trickle/pkg/transport"
)

// Settings is the resolved client configuration.
type Settings struct {
	Endpoint    string
	Method      string
	NewlineMode escape.NewlineMode
	Timeout     time.Duration
	Retry       transport.BackoffConfig

	History     config.HistoryConfig
	EventStream config.EventStreamConfig

	// ConfigDir overrides .trickle/ resolution for default file paths.
	ConfigDir string
}

// SettingsFromViper reads Settings from an InitViper instance, so flags,
// environment and config file all apply.
func SettingsFromViper(v *viper.Viper, configDir string) (*Settings, error) {
	mode, err := escape.ParseNewlineMode(v.GetString("client.newline_mode"))
	if err != nil {
		return nil, err
	}

	method := strings.ToUpper(v.GetString("client.method"))
	if method != http.MethodGet && method != http.MethodPost {
		return nil, fmt.Errorf("unsupported method %q (expected GET or POST)", method)
	}

	if _, err := eventstream.ParseProvider(v.GetString("eventstream.provider")); err != nil {
		return nil, err
	}

	s := &Settings{
		Endpoint:    v.GetString("client.endpoint"),
		Method:      method,
		NewlineMode: mode,
		Timeout:     v.GetDuration("client.timeout"),
		Retry: transport.BackoffConfig{
			MaxAttempts:     v.GetInt("retry.max_attempts"),
			InitialInterval: v.GetDuration("retry.initial_interval"),
			MaxInterval:     v.GetDuration("retry.max_interval"),
		},
		History: config.HistoryConfig{
			Driver:      v.GetString("history.driver"),
			Path:        v.GetString("history.path"),
			SQLitePath:  v.GetString("history.sqlite_path"),
			PostgresDSN: v.GetString("history.postgres_dsn"),
		},
		EventStream: config.EventStreamConfig{
			Provider: v.GetString("eventstream.provider"),
			Brokers:  v.GetStringSlice("eventstream.brokers"),
			Topic:    v.GetString("eventstream.topic"),
		},
		ConfigDir: configDir,
	}

	if s.Endpoint == "" {
		return nil, fmt.Errorf("no endpoint configured (set client.endpoint or --endpoint)")
	}

	return s, nil
}

// RetryPolicy returns the reconnect policy. Zero attempts disables retries.
func (s *Settings) RetryPolicy() transport.RetryPolicy {
	if s.Retry.MaxAttempts <= 0 {
		return transport.NoRetry{}
	}
	return transport.NewBackoffPolicy(s.Retry)
}

// RequestBuilder returns the builder for the configured endpoint and method.
func (s *Settings) RequestBuilder() conversation.RequestBuilder {
	return conversation.NewRequestBuilder(s.Endpoint, s.Method)
}
