package linkquest

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/wikidaily/pkg/daily"
	"github.com/umputun/wikidaily/pkg/domain"
)

// GameName identifies the game in streak records
const GameName = "linkQuest"

// ErrNotFinished is returned when the result of an unfinished game is requested
var ErrNotFinished = errors.New("game is not finished")

// GameSource provides the game of a day
type GameSource interface {
	Generate(ctx context.Context, date time.Time) (*domain.DailyGame, error)
}

// StreakRecorder counts consecutive days a game was finished
type StreakRecorder interface {
	Record(ctx context.Context, game, dateKey string) (domain.Streak, error)
}

// Service runs the game of a day for the player
type Service struct {
	games   GameSource
	store   *Store
	streaks StreakRecorder
}

// NewService makes a service, streaks may be nil
func NewService(games GameSource, store *Store, streaks StreakRecorder) *Service {
	return &Service{games: games, store: store, streaks: streaks}
}

// CardView is a card as the player sees it, ground truth hidden until answered
type CardView struct {
	Title              string `json:"title"`
	Description        string `json:"description,omitempty"`
	Thumbnail          string `json:"thumbnail,omitempty"`
	Answered           bool   `json:"answered"`
	IsLinked           *bool  `json:"isLinked,omitempty"`
	LinkContext        string `json:"linkContext,omitempty"`
	LinkContextTitle   string `json:"linkContextTitle,omitempty"`
	LinkSectionHeading string `json:"linkSectionHeading,omitempty"`
}

// View is the game of a day with the player's progress
type View struct {
	DateKey         string                `json:"dateKey"`
	FeaturedArticle domain.ArticleSummary `json:"featuredArticle"`
	Cards           []CardView            `json:"cards"`
	State           domain.GameState      `json:"state"`
	Result          *domain.GameResult    `json:"result,omitempty"`
	Streak          *domain.Streak        `json:"streak,omitempty"`
	Hint            string                `json:"hint,omitempty"`
}

// Today returns the game of the day of date with the saved progress
func (s *Service) Today(ctx context.Context, date time.Time) (*View, error) {
	game, err := s.games.Generate(ctx, date)
	if err != nil {
		return nil, err
	}
	st, err := s.store.State(ctx, game.DateKey, len(game.Cards))
	if err != nil {
		lgr.Printf("[WARN] %v", err)
	}
	view := s.view(game, st)
	if st.IsComplete {
		res := Score(game, st)
		view.Result = &res
	}
	return view, nil
}

// Answer records a guess for the current card
func (s *Service) Answer(ctx context.Context, date time.Time, linked bool) (*View, error) {
	return s.move(ctx, date, func(st *domain.GameState, _ *domain.DailyGame) error {
		return Answer(st, linked)
	})
}

// Shuffle defers the current card
func (s *Service) Shuffle(ctx context.Context, date time.Time) (*View, error) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // card order is not security sensitive
	return s.move(ctx, date, func(st *domain.GameState, _ *domain.DailyGame) error {
		return Shuffle(st, rng)
	})
}

// Hint spends a hint on the current card
func (s *Service) Hint(ctx context.Context, date time.Time) (*View, error) {
	var hint string
	view, err := s.move(ctx, date, func(st *domain.GameState, game *domain.DailyGame) error {
		var err error
		hint, err = UseHint(st, game)
		return err
	})
	if err != nil {
		return nil, err
	}
	view.Hint = hint
	return view, nil
}

// Result returns the stored outcome of the day
func (s *Service) Result(ctx context.Context, date time.Time) (*domain.GameResult, error) {
	res, err := s.store.Result(ctx, daily.DateKey(date))
	if err != nil {
		return nil, fmt.Errorf("load result: %w", err)
	}
	if res == nil {
		return nil, ErrNotFinished
	}
	return res, nil
}

func (s *Service) move(ctx context.Context, date time.Time, fn func(st *domain.GameState, game *domain.DailyGame) error) (*View, error) {
	game, err := s.games.Generate(ctx, date)
	if err != nil {
		return nil, err
	}

	wasComplete := false
	st, err := s.store.Update(ctx, game.DateKey, len(game.Cards), func(st *domain.GameState) error {
		wasComplete = st.IsComplete
		return fn(st, game)
	})
	if err != nil {
		return nil, err
	}

	view := s.view(game, st)
	if st.IsComplete {
		res := Score(game, st)
		view.Result = &res
		if !wasComplete {
			view.Streak = s.finish(ctx, res)
		}
	}
	return view, nil
}

// finish stores the result and extends the streak of a just completed game
func (s *Service) finish(ctx context.Context, res domain.GameResult) *domain.Streak {
	if err := s.store.SaveResult(ctx, res); err != nil {
		lgr.Printf("[WARN] STORAGE_ERROR: can't save link quest result %s: %v", res.DateKey, err)
	}
	lgr.Printf("[INFO] link quest %s finished, score %d/%d", res.DateKey, res.Score, res.Total)
	if s.streaks == nil {
		return nil
	}
	streak, err := s.streaks.Record(ctx, GameName, res.DateKey)
	if err != nil {
		lgr.Printf("[WARN] STORAGE_ERROR: can't record link quest streak: %v", err)
		return nil
	}
	return &streak
}

func (s *Service) view(game *domain.DailyGame, st domain.GameState) *View {
	v := &View{DateKey: game.DateKey, FeaturedArticle: game.FeaturedArticle, State: st, Cards: make([]CardView, 0, len(game.Cards))}
	for i, c := range game.Cards {
		cv := CardView{Title: c.Title, Description: c.Description, Thumbnail: c.Thumbnail}
		if i < len(st.Answers) && st.Answers[i] != nil {
			linked := c.IsLinked
			cv.Answered, cv.IsLinked = true, &linked
			cv.LinkContext, cv.LinkContextTitle, cv.LinkSectionHeading = c.LinkContext, c.LinkContextTitle, c.LinkSectionHeading
		}
		v.Cards = append(v.Cards, cv)
	}
	return v
}
