// Package postgres implements kv.Store on a PostgreSQL table.
package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/taberna/internal/kv"
)

const (
	getSQL = `SELECT value FROM kv_entries
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`

	setSQL = `INSERT INTO kv_entries (key, value, expires_at, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = now()`

	// lockSQL serializes updates of one key for the rest of the transaction,
	// including keys that have no row yet.
	lockSQL = `SELECT pg_advisory_xact_lock(hashtext($1))`

	deleteSQL = `DELETE FROM kv_entries WHERE key = $1`

	purgeSQL = `DELETE FROM kv_entries WHERE expires_at IS NOT NULL AND expires_at <= now()`
)

var _ kv.Store = (*Store)(nil)

// Store implements kv.Store backed by the kv_entries table.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore returns a Store that uses the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Get returns the value for key, or kv.ErrNotFound when it is missing or
// expired.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	if err := s.pool.QueryRow(ctx, getSQL, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, kv.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get %q", key)
	}
	return value, nil
}

// Set upserts the value for key.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if _, err := s.pool.Exec(ctx, setSQL, key, value, expiry(ttl)); err != nil {
		return errors.Wrapf(err, "set %q", key)
	}
	return nil
}

// Update applies fn to the value of key inside a transaction holding a
// per-key advisory lock.
func (s *Store) Update(ctx context.Context, key string, ttl time.Duration, fn kv.UpdateFunc) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, lockSQL, key); err != nil {
			return errors.Wrap(err, "lock")
		}

		var current []byte
		if err := tx.QueryRow(ctx, getSQL, key).Scan(&current); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return errors.Wrap(err, "get")
		}

		next, err := fn(current)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, setSQL, key, next, expiry(ttl)); err != nil {
			return errors.Wrap(err, "set")
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "update %q", key)
	}
	return nil
}

func expiry(ttl time.Duration) *time.Time {
	if ttl <= 0 {
		return nil
	}
	t := time.Now().Add(ttl)
	return &t
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, deleteSQL, key); err != nil {
		return errors.Wrapf(err, "delete %q", key)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// PurgeExpired deletes expired rows and reports how many were removed.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, purgeSQL)
	if err != nil {
		return 0, errors.Wrap(err, "purge expired")
	}
	return tag.RowsAffected(), nil
}
