// Package redis implements kv.Store on Redis.
package redis

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/taberna/internal/kv"
)

var _ kv.Store = (*Store)(nil)

// Store implements kv.Store on a Redis client. Every key is prefixed with
// the namespace so several deployments can share one Redis database.
type Store struct {
	client    redis.UniversalClient
	namespace string
}

// New parses a redis:// URL and returns a Store using a new client.
func New(redisURL, namespace string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	return NewStore(redis.NewClient(opts), namespace), nil
}

// NewStore wraps an existing client.
func NewStore(client redis.UniversalClient, namespace string) *Store {
	return &Store{client: client, namespace: namespace}
}

func (s *Store) key(k string) string {
	if s.namespace == "" {
		return k
	}
	return s.namespace + ":" + k
}

// Get returns the value for key, or kv.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, kv.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get %q", key)
	}
	return v, nil
}

// Set stores value under key with an optional ttl.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return errors.Wrapf(err, "set %q", key)
	}
	return nil
}

// maxUpdateAttempts bounds optimistic retries of Update under contention.
const maxUpdateAttempts = 10

// Update watches key, applies fn to its value and writes the result in a
// MULTI block. A concurrent write to the key aborts the transaction and
// the update is retried.
func (s *Store) Update(ctx context.Context, key string, ttl time.Duration, fn kv.UpdateFunc) error {
	k := s.key(key)
	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, k).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			current = nil
		case err != nil:
			return err
		}

		next, err := fn(current)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, next, ttl)
			return nil
		})
		return err
	}

	for range maxUpdateAttempts {
		err := s.client.Watch(ctx, txf, k)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "update %q", key)
		}
		return nil
	}
	return errors.Errorf("update %q: still contended after %d attempts", key, maxUpdateAttempts)
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return errors.Wrapf(err, "delete %q", key)
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Client returns the underlying client, for components that share the
// connection such as the rate limiter.
func (s *Store) Client() redis.UniversalClient {
	return s.client
}
