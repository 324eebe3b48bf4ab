package state

import (
	"context"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/wikidaily/pkg/cache"
	"github.com/umputun/wikidaily/pkg/daily"
	"github.com/umputun/wikidaily/pkg/domain"
)

// Streaks counts consecutive UTC days each game was finished, under <game>_streak
type Streaks struct {
	kv    cache.Store
	locks cache.Locks
}

// NewStreaks makes streak records over kv
func NewStreaks(kv cache.Store) *Streaks {
	return &Streaks{kv: kv}
}

// StreakKey is the store key of a game's streak
func StreakKey(game string) string { return game + "_streak" }

// Record marks the game finished on dateKey. Finishing again on the same day changes nothing,
// finishing the day after extends the streak and any longer pause starts a new one.
func (s *Streaks) Record(ctx context.Context, game, dateKey string) (domain.Streak, error) {
	return cache.UpdateJSON(ctx, s.kv, &s.locks, StreakKey(game), 0, func(st *domain.Streak) error {
		switch {
		case st.LastPlayed >= dateKey:
			return nil // same day or a late record of an earlier day
		case st.LastPlayed == daily.Yesterday(dateKey):
			st.Current++
		default:
			st.Current = 1
		}
		st.Max = max(st.Max, st.Current)
		st.LastPlayed = dateKey
		return nil
	})
}

// Get returns the streak of a game as of the day today. A streak not extended yesterday or today
// is reported as broken.
func (s *Streaks) Get(ctx context.Context, game, today string) domain.Streak {
	var st domain.Streak
	if _, err := cache.LoadJSON(ctx, s.kv, StreakKey(game), &st); err != nil {
		lgr.Printf("[WARN] STORAGE_ERROR: %v", err)
		return domain.Streak{}
	}
	if st.LastPlayed != today && st.LastPlayed != daily.Yesterday(today) {
		st.Current = 0
	}
	return st
}
