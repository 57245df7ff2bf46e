package ports

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned by KVClient.Touch when the key does not exist.
var ErrKeyNotFound = errors.New("key not found")

// KVClient is the outbound contract required of a key-value backend.
// A ttl <= 0 means the value never expires.
type KVClient interface {
	// Set stores value under key, replacing any existing value.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns the value stored under key.
	// found is false when the key does not exist (not an error).
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Touch resets the expiry of key to ttl from now.
	// Returns ErrKeyNotFound if the key does not exist.
	Touch(ctx context.Context, key string, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is a no-op.
	Delete(ctx context.Context, key string) error
}
