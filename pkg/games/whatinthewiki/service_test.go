package whatinthewiki

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/wikidaily/pkg/cache"
	"github.com/umputun/wikidaily/pkg/domain"
)

type staticPuzzles struct{ puzzle *domain.WikiPuzzle }

func (s staticPuzzles) Generate(context.Context, time.Time) (*domain.WikiPuzzle, error) {
	p := *s.puzzle
	return &p, nil
}

type fakeStreaks struct{ recorded []string }

func (f *fakeStreaks) Record(_ context.Context, game, dateKey string) (domain.Streak, error) {
	f.recorded = append(f.recorded, game+"/"+dateKey)
	return domain.Streak{Current: 1, Max: 1, LastPlayed: dateKey}, nil
}

func TestService_Flow(t *testing.T) {
	ctx := context.Background()
	streaks := &fakeStreaks{}
	svc := NewService(staticPuzzles{puzzle: testPuzzle()}, cache.NewMemory(), streaks)

	v, err := svc.Today(ctx, testDate)
	require.NoError(t, err)
	assert.Equal(t, LevelCategories, v.State.RevealLevel)
	assert.Empty(t, v.Image)

	v, err = svc.Reveal(ctx, testDate)
	require.NoError(t, err)
	assert.Equal(t, LevelImage, v.State.RevealLevel)
	assert.NotEmpty(t, v.Image)

	v, err = svc.Guess(ctx, testDate, "Colosseum")
	require.NoError(t, err)
	require.NotNil(t, v.LastCorrect)
	assert.False(t, *v.LastCorrect)
	assert.Nil(t, v.Streak)

	// progress survives a reload
	v, err = svc.Today(ctx, testDate)
	require.NoError(t, err)
	assert.Equal(t, LevelImage, v.State.RevealLevel)
	assert.Equal(t, []string{"Colosseum"}, v.State.Guesses)

	v, err = svc.Guess(ctx, testDate, "Big Ben")
	require.NoError(t, err)
	assert.True(t, *v.LastCorrect)
	assert.True(t, v.State.IsWon)
	assert.Equal(t, "Big Ben", v.Title)
	require.NotNil(t, v.Streak)
	assert.Equal(t, []string{"whatInTheWiki/2024-03-15"}, streaks.recorded)

	_, err = svc.Reveal(ctx, testDate)
	require.ErrorIs(t, err, ErrGameComplete)
}

func TestService_InvalidGuessKeepsState(t *testing.T) {
	ctx := context.Background()
	kv := cache.NewMemory()
	svc := NewService(staticPuzzles{puzzle: testPuzzle()}, kv, nil)

	_, err := svc.Guess(ctx, testDate, "Stonehenge")
	require.ErrorIs(t, err, ErrNotAnOption)

	v, err := svc.Today(ctx, testDate)
	require.NoError(t, err)
	assert.Empty(t, v.State.Guesses)
}
