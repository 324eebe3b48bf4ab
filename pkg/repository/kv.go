package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"
)

// ScopeLocal is the scope of values shared by every session
const ScopeLocal = "local"

// KVRepository handles scoped key/value blobs with optional expiration
type KVRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

type kvRow struct {
	Scope     string        `db:"scope"`
	Key       string        `db:"key"`
	Value     string        `db:"value"`
	ExpiresAt sql.NullInt64 `db:"expires_at"`
	UpdatedAt int64         `db:"updated_at"`
}

// NewKVRepository creates a new key/value repository
func NewKVRepository(db *sqlx.DB) *KVRepository {
	return &KVRepository{db: db, now: time.Now}
}

// Get returns the value of a live key. Expired keys are reported as missing.
func (r *KVRepository) Get(ctx context.Context, scope, key string) (string, bool, error) {
	var row kvRow
	err := r.db.GetContext(ctx, &row, "SELECT * FROM kv WHERE scope = ? AND key = ?", scope, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s/%s: %w", scope, key, err)
	}
	if row.ExpiresAt.Valid && row.ExpiresAt.Int64 <= r.now().UnixMilli() {
		return "", false, nil
	}
	return row.Value, true, nil
}

// Set stores value under scope/key, replacing the previous value. A zero ttl never expires.
func (r *KVRepository) Set(ctx context.Context, scope, key, value string, ttl time.Duration) error {
	now := r.now()
	expires := sql.NullInt64{}
	if ttl > 0 {
		expires = sql.NullInt64{Int64: now.Add(ttl).UnixMilli(), Valid: true}
	}

	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))
	return retrier.Do(ctx, func() error {
		query := `
			INSERT INTO kv (scope, key, value, expires_at, updated_at) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(scope, key) DO UPDATE SET
				value = excluded.value,
				expires_at = excluded.expires_at,
				updated_at = excluded.updated_at
		`
		_, err := r.db.ExecContext(ctx, query, scope, key, value, expires, now.UnixMilli())
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("set %s/%s: %w", scope, key, err)}
		}
		return nil
	})
}

// Delete removes scope/key
func (r *KVRepository) Delete(ctx context.Context, scope, key string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM kv WHERE scope = ? AND key = ?", scope, key); err != nil {
		return fmt.Errorf("delete %s/%s: %w", scope, key, err)
	}
	return nil
}

// DeleteExpired removes every expired key and returns how many were removed
func (r *KVRepository) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM kv WHERE expires_at IS NOT NULL AND expires_at <= ?", r.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("delete expired: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get affected rows: %w", err)
	}
	return n, nil
}

// Scope binds the repository to one scope, giving a cache.Store
func (r *KVRepository) Scope(scope string) *ScopedStore {
	return &ScopedStore{repo: r, scope: scope}
}

// ScopedStore is a KVRepository bound to a single scope
type ScopedStore struct {
	repo  *KVRepository
	scope string
}

// Get reads key from the bound scope
func (s *ScopedStore) Get(ctx context.Context, key string) (string, bool, error) {
	return s.repo.Get(ctx, s.scope, key)
}

// Set writes key in the bound scope
func (s *ScopedStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.repo.Set(ctx, s.scope, key, value, ttl)
}

// Delete removes key from the bound scope
func (s *ScopedStore) Delete(ctx context.Context, key string) error {
	return s.repo.Delete(ctx, s.scope, key)
}

// sqliteBusy are the driver messages of a write that lost the database lock
var sqliteBusy = []string{"SQLITE_BUSY", "database is locked", "database table is locked"}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, m := range sqliteBusy {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// criticalError stops the repeater, only lock errors are retried
type criticalError struct {
	err error
}

func (e *criticalError) Error() string { return e.err.Error() }

func (e *criticalError) Unwrap() error { return e.err }
