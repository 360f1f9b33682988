// Package sqlite provides an embedded SQLite-backed kvstore.Store using the
// pure-Go modernc.org/sqlite driver. Intended for on-device and single-node
// deployments where learned patterns must survive restarts without an
// external database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/ledgervoice/ledgervoice/pkg/kvstore"
)

// Compile-time interface check.
var _ kvstore.Store = (*Store)(nil)

// Store is the SQLite-backed key-value store. database/sql serialises access;
// the store is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at path and ensures the
// backing table exists. Use ":memory:" for an ephemeral store.
func NewStore(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite kvstore: open %q: %w", path, err)
	}

	// SQLite handles one writer at a time; cap the pool to avoid lock churn.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS kv_entries (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite kvstore: migrate: %w", err)
	}

	return &Store{db: db}, nil
}

// Get implements kvstore.Store.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv_entries WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sqlite kvstore: get %q: %w", key, err)
	}
	return value, true, nil
}

// Set implements kvstore.Store with an upsert.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_entries (key, value, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = datetime('now')`,
		key, value)
	if err != nil {
		return fmt.Errorf("sqlite kvstore: set %q: %w", key, err)
	}
	return nil
}

// Delete implements kvstore.Store.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("sqlite kvstore: delete %q: %w", key, err)
	}
	return nil
}

// List implements kvstore.Store.
func (s *Store) List(ctx context.Context, prefix string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM kv_entries WHERE key LIKE ? || '%'`, prefix)
	if err != nil {
		return nil, fmt.Errorf("sqlite kvstore: list %q: %w", prefix, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("sqlite kvstore: scan: %w", err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite kvstore: list %q: %w", prefix, err)
	}
	return out, nil
}

// Ping probes the database connection. Exposed for readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
