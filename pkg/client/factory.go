package client

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/trickle/pkg/config"
	"github.com/papercomputeco/trickle/pkg/dotdir"
	"github.com/papercomputeco/trickle/pkg/eventstream"
	"github.com/papercomputeco/trickle/pkg/eventstream/kafka"
	"github.com/papercomputeco/trickle/pkg/eventstream/nop"
	"github.com/papercomputeco/trickle/pkg/storage"
	"github.com/papercomputeco/trickle/pkg/storage/inmemory"
	"github.com/papercomputeco/trickle/pkg/storage/jsonfile"
	"github.com/papercomputeco/trickle/pkg/storage/postgres"
	"github.com/papercomputeco/trickle/pkg/storage/sqlite"
)

// OpenHistory returns the configured storage driver, or nil when history is
// disabled.
func OpenHistory(ctx context.Context, s *Settings) (storage.Driver, error) {
	ddm := dotdir.NewManager()

	switch s.History.Driver {
	case config.HistoryDriverNone:
		return nil, nil

	case config.HistoryDriverMemory:
		return inmemory.NewDriver(), nil

	case "", config.HistoryDriverJSONFile:
		path, err := ddm.HistoryPath(s.History.Path, s.ConfigDir)
		if err != nil {
			return nil, fmt.Errorf("resolving history path: %w", err)
		}
		return jsonfile.NewDriver(path), nil

	case config.HistoryDriverSQLite:
		path, err := ddm.SQLitePath(s.History.SQLitePath, s.ConfigDir)
		if err != nil {
			return nil, fmt.Errorf("resolving sqlite path: %w", err)
		}
		return sqlite.NewDriver(ctx, path)

	case config.HistoryDriverPostgres:
		if s.History.PostgresDSN == "" {
			return nil, fmt.Errorf("history driver %q requires history.postgres_dsn", s.History.Driver)
		}
		return postgres.NewDriver(ctx, s.History.PostgresDSN)

	default:
		return nil, fmt.Errorf("unknown history driver %q", s.History.Driver)
	}
}

// OpenPublisher returns the configured turn event publisher, or nil when
// publishing is disabled.
func OpenPublisher(s *Settings, l *slog.Logger) (eventstream.Publisher, error) {
	provider, err := eventstream.ParseProvider(s.EventStream.Provider)
	if err != nil {
		return nil, err
	}

	switch provider {
	case eventstream.ProviderNop:
		return nop.NewPublisher(), nil
	case eventstream.ProviderKafka:
		return kafka.NewPublisher(kafka.Config{
			Brokers: s.EventStream.Brokers,
			Topic:   s.EventStream.Topic,
			Logger:  l,
		})
	default:
		return nil, nil
	}
}
