// Package kvstore defines the persistent key-value contract used by the
// learned-pattern cache and the self-learning sample store.
//
// The contract is deliberately small and best-effort: callers must tolerate
// a store that loses data between restarts (cache loss degrades recognition
// latency, never correctness). Backends are provided for Postgres
// (server deployments), SQLite (embedded / on-device), and process memory
// (tests and ephemeral sessions).
//
// Every implementation must be safe for concurrent use.
package kvstore

import "context"

// Store is the abstraction over any key-value backend.
type Store interface {
	// Get returns the value stored under key. The second return reports
	// whether the key was present; a missing key is not an error.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is a no-op and returns nil.
	Delete(ctx context.Context, key string) error

	// List returns all key/value pairs whose key starts with prefix.
	// An empty prefix returns the full contents.
	List(ctx context.Context, prefix string) (map[string]string, error)

	// Close releases backend resources. Safe to call more than once.
	Close() error
}
