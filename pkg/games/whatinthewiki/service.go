package whatinthewiki

import (
	"context"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/wikidaily/pkg/cache"
	"github.com/umputun/wikidaily/pkg/domain"
)

// GameName identifies the game in streak records
const GameName = "whatInTheWiki"

const (
	stateKeyPrefix = "whatInTheWiki_dailyState_"
	stateTTL       = 30 * 24 * time.Hour
)

// StateKey is the store key of the progress of a day
func StateKey(dateKey string) string { return stateKeyPrefix + dateKey }

// PuzzleSource provides the puzzle of a day
type PuzzleSource interface {
	Generate(ctx context.Context, date time.Time) (*domain.WikiPuzzle, error)
}

// StreakRecorder counts consecutive days a game was finished
type StreakRecorder interface {
	Record(ctx context.Context, game, dateKey string) (domain.Streak, error)
}

// Service runs the puzzle of a day for the player
type Service struct {
	puzzles PuzzleSource
	kv      cache.Store
	locks   cache.Locks
	streaks StreakRecorder
}

// NewService makes a service over the progress store kv, streaks may be nil
func NewService(puzzles PuzzleSource, kv cache.Store, streaks StreakRecorder) *Service {
	return &Service{puzzles: puzzles, kv: kv, streaks: streaks}
}

// View shows the clues unlocked at the current reveal level. The answer, the full lead and the
// article link are only shown at the last level or once the game is over.
type View struct {
	DateKey     string               `json:"dateKey"`
	Options     []string             `json:"options"`
	Categories  []string             `json:"categories,omitempty"`
	Image       string               `json:"image,omitempty"`
	Sections    []string             `json:"sections,omitempty"`
	Lead        string               `json:"lead,omitempty"`
	Title       string               `json:"title,omitempty"`
	ArticleURL  string               `json:"articleUrl,omitempty"`
	State       domain.WikiGameState `json:"state"`
	LastCorrect *bool                `json:"lastCorrect,omitempty"`
	Streak      *domain.Streak       `json:"streak,omitempty"`
}

// NewView projects the puzzle through the player's progress
func NewView(p *domain.WikiPuzzle, st domain.WikiGameState) *View {
	v := &View{DateKey: p.DateKey, Options: p.Options, State: st}
	level := st.RevealLevel
	if st.IsComplete {
		level = MaxRevealLevel
	}
	if level >= LevelCategories {
		v.Categories = p.Categories
	}
	if level >= LevelImage {
		v.Image = p.Image
	}
	if level >= LevelSections {
		v.Sections = p.Sections
	}
	if level >= LevelLead {
		v.Lead = p.RedactedLead
	}
	if level >= LevelFull {
		v.Lead, v.ArticleURL = p.FullLead, p.ArticleURL
	}
	if st.IsComplete {
		v.Title = p.Title
	}
	return v
}

// Today returns the puzzle of the day of date with the saved progress
func (s *Service) Today(ctx context.Context, date time.Time) (*View, error) {
	p, err := s.puzzles.Generate(ctx, date)
	if err != nil {
		return nil, err
	}
	st := NewState(p.DateKey)
	if _, err := cache.LoadJSON(ctx, s.kv, StateKey(p.DateKey), &st); err != nil {
		lgr.Printf("[WARN] STORAGE_ERROR: %v", err)
	}
	if st.DateKey != p.DateKey {
		st = NewState(p.DateKey)
	}
	return NewView(p, st), nil
}

// Reveal unlocks the next clue
func (s *Service) Reveal(ctx context.Context, date time.Time) (*View, error) {
	p, err := s.puzzles.Generate(ctx, date)
	if err != nil {
		return nil, err
	}
	st, err := s.update(ctx, p, Reveal)
	if err != nil {
		return nil, err
	}
	return NewView(p, st), nil
}

// Guess submits one of the options
func (s *Service) Guess(ctx context.Context, date time.Time, guess string) (*View, error) {
	p, err := s.puzzles.Generate(ctx, date)
	if err != nil {
		return nil, err
	}

	var correct bool
	st, err := s.update(ctx, p, func(st *domain.WikiGameState) error {
		var err error
		correct, err = Guess(st, p, guess)
		return err
	})
	if err != nil {
		return nil, err
	}

	v := NewView(p, st)
	v.LastCorrect = &correct
	if st.IsComplete {
		lgr.Printf("[INFO] what in the wiki %s over, won: %v, level %d, guesses %d", p.DateKey, st.IsWon, st.RevealLevel, len(st.Guesses))
		if s.streaks != nil {
			streak, err := s.streaks.Record(ctx, GameName, p.DateKey)
			if err != nil {
				lgr.Printf("[WARN] STORAGE_ERROR: can't record what in the wiki streak: %v", err)
			} else {
				v.Streak = &streak
			}
		}
	}
	return v, nil
}

func (s *Service) update(ctx context.Context, p *domain.WikiPuzzle, fn func(st *domain.WikiGameState) error) (domain.WikiGameState, error) {
	return cache.Mutate(ctx, s.kv, &s.locks, StateKey(p.DateKey), stateTTL, func(st *domain.WikiGameState) error {
		if st.DateKey != p.DateKey {
			*st = NewState(p.DateKey)
		}
		return fn(st)
	})
}
