package linkquest

import (
	"context"
	"fmt"
	"time"

	"github.com/umputun/wikidaily/pkg/cache"
	"github.com/umputun/wikidaily/pkg/domain"
)

const (
	stateKeyPrefix  = "linkQuest_gameState_"
	resultKeyPrefix = "linkQuest_gameResult_"
	recordTTL       = 30 * 24 * time.Hour
)

// StateKey is the store key of the progress of a day
func StateKey(dateKey string) string { return stateKeyPrefix + dateKey }

// ResultKey is the store key of the finished game of a day
func ResultKey(dateKey string) string { return resultKeyPrefix + dateKey }

// Store persists per-day progress and results
type Store struct {
	kv    cache.Store
	locks cache.Locks
}

// NewStore makes a store over kv
func NewStore(kv cache.Store) *Store {
	return &Store{kv: kv}
}

// State returns the progress of a day, a fresh state of n cards if none was saved
func (s *Store) State(ctx context.Context, dateKey string, n int) (domain.GameState, error) {
	var st domain.GameState
	ok, err := cache.LoadJSON(ctx, s.kv, StateKey(dateKey), &st)
	if err != nil {
		return NewState(n), fmt.Errorf("load state %s: %w", dateKey, err)
	}
	if !ok || len(st.Answers) != n {
		return NewState(n), nil
	}
	return st, nil
}

// Update applies fn to the progress of a day under the key lock and saves it.
// Storage failures don't fail the move, the state is returned unpersisted.
func (s *Store) Update(ctx context.Context, dateKey string, n int, fn func(st *domain.GameState) error) (domain.GameState, error) {
	return cache.Mutate(ctx, s.kv, &s.locks, StateKey(dateKey), recordTTL, func(st *domain.GameState) error {
		if len(st.Answers) != n {
			*st = NewState(n)
		}
		return fn(st)
	})
}

// SaveResult stores the outcome of a finished game
func (s *Store) SaveResult(ctx context.Context, res domain.GameResult) error {
	return cache.SaveJSON(ctx, s.kv, ResultKey(res.DateKey), res, recordTTL)
}

// Result returns the outcome of a day, nil if the game was not finished
func (s *Store) Result(ctx context.Context, dateKey string) (*domain.GameResult, error) {
	var res domain.GameResult
	ok, err := cache.LoadJSON(ctx, s.kv, ResultKey(dateKey), &res)
	if err != nil || !ok {
		return nil, err
	}
	return &res, nil
}
