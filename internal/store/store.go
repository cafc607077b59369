// Package store provides the local record store: a persistent map of string
// keys to byte values that the vault uses as a JSON document store.
//
// # Backends
//
//   - SQLiteStore: default, pure-Go driver (modernc.org/sqlite)
//   - PostgresStore: daemon deployments (pgx stdlib driver)
//   - MemoryStore: tests and throwaway runs
//
// All backends share one contract: Get on a missing key returns (nil, nil),
// Delete is idempotent and SetMany writes all given keys or none of them.
// Nothing beyond per-key last-write-wins is promised across separate calls;
// callers that read-modify-write serialise themselves (see package records).
package store

import (
	"context"
	"strings"
)

// Store is the persistence contract used by the vault collections.
type Store interface {
	// Get returns the value under key, or (nil, nil) if the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set inserts or replaces the value under key.
	Set(ctx context.Context, key string, value []byte) error

	// SetMany writes every pair atomically.
	SetMany(ctx context.Context, values map[string][]byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns a snapshot of all pairs.
	List(ctx context.Context) (map[string][]byte, error)

	// Clear removes every key.
	Clear(ctx context.Context) error

	// Close releases the underlying resources.
	Close() error
}

// Open selects a backend from dsn: postgres:// and postgresql:// URLs open a
// PostgresStore, "memory" opens a MemoryStore, anything else is handed to
// SQLite as a file path (":memory:" included).
func Open(ctx context.Context, dsn string) (Store, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return OpenPostgres(ctx, dsn)
	case dsn == "memory":
		return NewMemoryStore(), nil
	default:
		return OpenSQLite(ctx, dsn)
	}
}
