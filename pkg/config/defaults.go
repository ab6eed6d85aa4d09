package config

const (
	defaultEndpoint    = "http://localhost:3015/chat"
	defaultMethod      = "POST"
	defaultNewlineMode = "literal"
	defaultTimeout     = "30s"

	defaultMaxAttempts     = 5
	defaultInitialInterval = "1s"
	defaultMaxInterval     = "30s"

	defaultHistoryDriver = HistoryDriverJSONFile

	defaultServerListen = ":3015"
	defaultChunkSize    = 8
	defaultChunkDelay   = "40ms"

	defaultTopic = "trickle.turns"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Client: ClientConfig{
			Endpoint:    defaultEndpoint,
			Method:      defaultMethod,
			NewlineMode: defaultNewlineMode,
			Timeout:     defaultTimeout,
		},
		Retry: RetryConfig{
			MaxAttempts:     defaultMaxAttempts,
			InitialInterval: defaultInitialInterval,
			MaxInterval:     defaultMaxInterval,
		},
		History: HistoryConfig{
			Driver: defaultHistoryDriver,
		},
		Server: ServerConfig{
			Listen:     defaultServerListen,
			ChunkSize:  defaultChunkSize,
			ChunkDelay: defaultChunkDelay,
		},
		EventStream: EventStreamConfig{
			Topic: defaultTopic,
		},
	}
}
