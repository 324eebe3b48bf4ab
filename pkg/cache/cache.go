// Package cache defines the key/value store used in place of browser local and session
// storage, an in-memory TTL implementation and JSON helpers over any store.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
)

// Store is a string key/value store with optional expiration. A zero ttl never expires.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// LoadJSON reads key and decodes it into v. It reports false when the key is missing or expired.
func LoadJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SaveJSON encodes v and stores it under key
func SaveJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.Set(ctx, key, string(data), ttl); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

type entry struct {
	value   string
	expires time.Time
}

// Memory is an in-process Store with per-key expiration
type Memory struct {
	mu    sync.RWMutex
	items map[string]entry
	now   func() time.Time
}

// NewMemory makes an empty in-memory store
func NewMemory() *Memory {
	return &Memory{items: make(map[string]entry), now: time.Now}
}

// Get returns the value of a live key
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	e, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		m.mu.Lock()
		delete(m.items, key)
		m.mu.Unlock()
		return "", false, nil
	}
	return e.value, true, nil
}

// Set stores value under key
func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	e := entry{value: value}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.items[key] = e
	m.mu.Unlock()
	return nil
}

// Delete removes key
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

// Prefixed scopes all keys of a store under a prefix
type Prefixed struct {
	Store  Store
	Prefix string
}

// Get reads prefix+key
func (p Prefixed) Get(ctx context.Context, key string) (string, bool, error) {
	return p.Store.Get(ctx, p.Prefix+key)
}

// Set writes prefix+key
func (p Prefixed) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return p.Store.Set(ctx, p.Prefix+key, value, ttl)
}

// Delete removes prefix+key
func (p Prefixed) Delete(ctx context.Context, key string) error {
	return p.Store.Delete(ctx, p.Prefix+key)
}

// Locks serializes read-modify-write cycles per key inside the process. The zero value is ready to use.
type Locks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// Lock acquires the lock of key and returns its release function
func (l *Locks) Lock(key string) (unlock func()) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*keyLock)
	}
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	kl.mu.Lock()
	return func() {
		kl.mu.Unlock()
		l.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

// UpdateJSON loads key into a T (zero value when missing), applies fn and stores the result,
// holding the key lock for the whole cycle. Nothing is stored if fn fails. A nil locks skips locking.
func UpdateJSON[T any](ctx context.Context, s Store, locks *Locks, key string, ttl time.Duration, fn func(v *T) error) (T, error) {
	if locks != nil {
		unlock := locks.Lock(key)
		defer unlock()
	}

	var v T
	if _, err := LoadJSON(ctx, s, key, &v); err != nil {
		return v, err
	}
	if err := fn(&v); err != nil {
		return v, err
	}
	return v, SaveJSON(ctx, s, key, v, ttl)
}

// Mutate is UpdateJSON for interactive state. Storage failures are logged and the mutated
// value is returned unpersisted, so only errors of fn reach the caller. fn must accept the
// zero value of T when the key is missing or unreadable.
func Mutate[T any](ctx context.Context, s Store, locks *Locks, key string, ttl time.Duration, fn func(v *T) error) (T, error) {
	applied := false
	var fnErr error
	v, err := UpdateJSON(ctx, s, locks, key, ttl, func(v *T) error {
		applied = true
		fnErr = fn(v)
		return fnErr
	})
	if fnErr != nil {
		return v, fnErr
	}
	if err == nil {
		return v, nil
	}

	lgr.Printf("[WARN] STORAGE_ERROR: %v", err)
	if applied {
		return v, nil
	}
	var fresh T
	return fresh, fn(&fresh)
}
