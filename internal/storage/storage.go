// Package storage provides the durable key/value store backing user
// configurations. The contract is deliberately small: one key holds
// one JSON document, rewritten wholesale on every mutation.
package storage

import "context"

// KV is a durable key/value store.
type KV interface {
	// Get returns the value for key. The second return is false when
	// the key has never been written.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set writes value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
}
