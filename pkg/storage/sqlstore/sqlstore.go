// Package sqlstore implements storage.Driver on database/sql. The sqlite and
// postgres drivers wrap it with their own connection setup and dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/papercomputeco/trickle/pkg/conversation"
	"github.com/papercomputeco/trickle/pkg/storage"
)

// Dialect carries the SQL that differs between databases.
type Dialect struct {
	// Schema creates the turns table if it does not exist.
	Schema string

	// Placeholder returns the bind parameter for 1-based position n.
	Placeholder func(n int) string
}

// Store is a SQL-backed history store.
type Store struct {
	DB      *sql.DB
	dialect Dialect
}

// New runs the dialect schema against db and returns a Store.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	if _, err := db.ExecContext(ctx, dialect.Schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Store{DB: db, dialect: dialect}, nil
}

// Load returns the stored turns ordered by position.
func (s *Store) Load(ctx context.Context) ([]conversation.Turn, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, role, content, is_self, status, created_at FROM turns ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	turns := []conversation.Turn{}
	for rows.Next() {
		var (
			t         conversation.Turn
			isSelf    int64
			createdAt string
		)
		if err := rows.Scan(&t.ID, &t.Role, &t.Content, &isSelf, &t.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		t.IsSelf = isSelf != 0
		t.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at for turn %s: %w", t.ID, err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read turns: %w", err)
	}

	return turns, nil
}

// Save replaces every stored turn in one transaction.
func (s *Store) Save(ctx context.Context, turns []conversation.Turn) error {
	if turns == nil {
		return storage.ErrNilHistory
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM turns`); err != nil {
		return fmt.Errorf("failed to clear turns: %w", err)
	}

	p := s.dialect.Placeholder
	insert := fmt.Sprintf(
		`INSERT INTO turns (position, id, role, content, is_self, status, created_at) VALUES (%s, %s, %s, %s, %s, %s, %s)`,
		p(1), p(2), p(3), p(4), p(5), p(6), p(7),
	)
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, t := range turns {
		isSelf := 0
		if t.IsSelf {
			isSelf = 1
		}
		_, err := stmt.ExecContext(ctx,
			i, t.ID, string(t.Role), t.Content, isSelf, string(t.Status),
			t.CreatedAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("failed to insert turn %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit turns: %w", err)
	}
	return nil
}

// Clear deletes every stored turn.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM turns`); err != nil {
		return fmt.Errorf("failed to clear turns: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}
