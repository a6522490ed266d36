// Package kv defines the key-value storage abstraction used for state the
// browser would otherwise keep locally: carts and auth sessions.
package kv

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = errors.New("key not found")

// UpdateFunc computes the new value of a key from its current one. current
// is nil when the key holds no value.
type UpdateFunc func(current []byte) ([]byte, error)

// Store reads and writes opaque values under string keys.
//
// Writes replace the whole value. A zero ttl means the value never expires.
// Update is atomic per key: concurrent updates of one key never lose each
// other's writes. fn may be called more than once and must not have side
// effects beyond its return value.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}
