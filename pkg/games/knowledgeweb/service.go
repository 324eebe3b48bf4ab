package knowledgeweb

import (
	"context"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/wikidaily/pkg/cache"
	"github.com/umputun/wikidaily/pkg/domain"
)

// GameName identifies the game in streak records
const GameName = "knowledgeWeb"

const (
	stateKeyPrefix = "knowledgeWeb_gameState_"
	stateTTL       = 30 * 24 * time.Hour
)

// StateKey is the store key of the progress of a day
func StateKey(dateKey string) string { return stateKeyPrefix + dateKey }

// PuzzleSource provides the puzzle of a day
type PuzzleSource interface {
	Generate(ctx context.Context, date time.Time) (*domain.KnowledgeWebPuzzle, error)
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
	now     func() time.Time
}

// NewService makes a service over the progress store kv, streaks may be nil
func NewService(puzzles PuzzleSource, kv cache.Store, streaks StreakRecorder) *Service {
	return &Service{puzzles: puzzles, kv: kv, streaks: streaks, now: time.Now}
}

// Board is the puzzle as the player sees it: connectors are revealed once solved
type Board struct {
	PuzzleID            string                   `json:"puzzle_id"`
	FeaturedArticle     domain.WebArticle        `json:"featured_article"`
	SurroundingArticles [4]domain.WebArticle     `json:"surrounding_articles"`
	AnswerPool          []string                 `json:"answer_pool"`
	Solved              [4]*domain.WebConnection `json:"solved"`
}

// View is the board with the player's progress
type View struct {
	Board      Board                        `json:"board"`
	State      domain.KnowledgeWebGameState `json:"state"`
	Submission *domain.Submission           `json:"submission,omitempty"`
	Streak     *domain.Streak               `json:"streak,omitempty"`
}

// Today returns the puzzle of the day of date with the saved progress
func (s *Service) Today(ctx context.Context, date time.Time) (*View, error) {
	p, err := s.puzzles.Generate(ctx, date)
	if err != nil {
		return nil, err
	}
	st := NewState(p.PuzzleID)
	if _, err := cache.LoadJSON(ctx, s.kv, StateKey(p.PuzzleID), &st); err != nil {
		lgr.Printf("[WARN] STORAGE_ERROR: %v", err)
		st = NewState(p.PuzzleID)
	}
	if st.PuzzleID != p.PuzzleID {
		st = NewState(p.PuzzleID)
	}
	return s.view(p, st), nil
}

// Place puts a connector into a slot
func (s *Service) Place(ctx context.Context, date time.Time, position, title string) (*View, error) {
	p, err := s.puzzles.Generate(ctx, date)
	if err != nil {
		return nil, err
	}
	st, err := s.update(ctx, p, func(st *domain.KnowledgeWebGameState) error {
		return Place(st, p, position, title)
	})
	if err != nil {
		return nil, err
	}
	return s.view(p, st), nil
}

// Submit places the given connectors by position, then grades all four slots
func (s *Service) Submit(ctx context.Context, date time.Time, placements map[string]string) (*View, error) {
	p, err := s.puzzles.Generate(ctx, date)
	if err != nil {
		return nil, err
	}

	var sub domain.Submission
	st, err := s.update(ctx, p, func(st *domain.KnowledgeWebGameState) error {
		locked := Locked(*st)
		for _, pos := range domain.Positions {
			title, ok := placements[pos]
			if !ok {
				continue
			}
			if idx, _ := PositionIndex(pos); locked[idx] {
				continue // solved slots keep their connector
			}
			if err := Place(st, p, pos, title); err != nil {
				return err
			}
		}
		var err error
		sub, err = Submit(st, p, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	view := s.view(p, st)
	view.Submission = &sub
	if st.IsComplete {
		lgr.Printf("[INFO] knowledge web %s solved in %d submissions, score %d", p.PuzzleID, len(st.Submissions), st.FinalScore)
		if s.streaks != nil {
			streak, err := s.streaks.Record(ctx, GameName, p.PuzzleID)
			if err != nil {
				lgr.Printf("[WARN] STORAGE_ERROR: can't record knowledge web streak: %v", err)
			} else {
				view.Streak = &streak
			}
		}
	}
	return view, nil
}

func (s *Service) update(ctx context.Context, p *domain.KnowledgeWebPuzzle, fn func(st *domain.KnowledgeWebGameState) error) (domain.KnowledgeWebGameState, error) {
	return cache.Mutate(ctx, s.kv, &s.locks, StateKey(p.PuzzleID), stateTTL, func(st *domain.KnowledgeWebGameState) error {
		if st.PuzzleID != p.PuzzleID {
			*st = NewState(p.PuzzleID)
		}
		return fn(st)
	})
}

func (s *Service) view(p *domain.KnowledgeWebPuzzle, st domain.KnowledgeWebGameState) *View {
	b := Board{
		PuzzleID:            p.PuzzleID,
		FeaturedArticle:     p.FeaturedArticle,
		SurroundingArticles: p.SurroundingArticles,
		AnswerPool:          p.AnswerPool,
	}
	locked := Locked(st)
	for i := range p.Connections {
		if locked[i] {
			conn := p.Connections[i]
			b.Solved[i] = &conn
		}
	}
	return &View{Board: b, State: st}
}
