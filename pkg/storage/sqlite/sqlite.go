// Package sqlite provides a SQLite-backed history driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/trickle/pkg/storage/sqlstore"
)

const schema = `CREATE TABLE IF NOT EXISTS turns (
	position   INTEGER PRIMARY KEY,
	id         TEXT NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	is_self    INTEGER NOT NULL DEFAULT 0,
	status     TEXT NOT NULL,
	created_at TEXT NOT NULL
)`

// Driver implements storage.Driver using SQLite.
type Driver struct {
	*sqlstore.Store
}

// NewDriver opens (creating if needed) the database at dbPath.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewDriver(ctx context.Context, dbPath string) (*Driver, error) {
	// Open the database using the github.com/mattn/go-sqlite3 driver (registered as "sqlite3")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database lives as long as its connection.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	store, err := sqlstore.New(ctx, db, sqlstore.Dialect{
		Schema:      schema,
		Placeholder: func(int) string { return "?" },
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Driver{Store: store}, nil
}
