package reader

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/umputun/wikidaily/pkg/daily"
	"github.com/umputun/wikidaily/pkg/domain"
	"github.com/umputun/wikidaily/pkg/state"
)

// Recommendations suggests up to limit articles similar to the most recently read ones,
// skipping everything already read. Without history it suggests random articles.
func (s *Service) Recommendations(ctx context.Context, limit int) []domain.SearchResult {
	if limit <= 0 {
		return []domain.SearchResult{}
	}
	var history []domain.HistoryItem
	if s.History != nil {
		history = s.History.List(ctx)
	}
	if len(history) == 0 {
		return s.random(ctx, limit)
	}

	seeds := history[:min(s.HistorySeeds, len(history))]
	similar := make([][]domain.SearchResult, len(seeds))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, seed := range seeds {
		eg.Go(func() error {
			similar[i] = s.Wiki.SearchMoreLike(egCtx, seed.Title, limit)
			return nil
		})
	}
	_ = eg.Wait()

	seen := make(map[string]bool, len(history))
	for _, h := range history {
		seen[strings.ToLower(h.Title)] = true
	}

	// round-robin over the seeds, so the latest read doesn't crowd out the others
	res := []domain.SearchResult{}
	for round := 0; len(res) < limit; round++ {
		added := false
		for _, list := range similar {
			if round >= len(list) || len(res) >= limit {
				continue
			}
			added = true
			r := list[round]
			if key := strings.ToLower(r.Title); !seen[key] {
				seen[key] = true
				res = append(res, r)
			}
		}
		if !added {
			break
		}
	}
	return res
}

func (s *Service) random(ctx context.Context, limit int) []domain.SearchResult {
	res := []domain.SearchResult{}
	for _, t := range s.Wiki.RandomArticles(ctx, limit) {
		res = append(res, domain.SearchResult{Title: t})
	}
	return res
}

// Home is the home feed of a day, disabled blocks are left empty
type Home struct {
	DateKey         string                   `json:"dateKey"`
	Settings        domain.FeedSettings      `json:"settings"`
	Featured        *domain.ArticleSummary   `json:"featured,omitempty"`
	DidYouKnow      []domain.DYKFact         `json:"didYouKnow,omitempty"`
	Trending        []domain.TrendingArticle `json:"trending,omitempty"`
	Recommendations []domain.SearchResult    `json:"recommendations,omitempty"`
}

// Home collects the home feed blocks enabled in the feed settings, concurrently
func (s *Service) Home(ctx context.Context, date time.Time) *Home {
	settings := state.DefaultFeedSettings
	if s.Feed != nil {
		settings = s.Feed.Get(ctx)
	}
	res := &Home{DateKey: daily.DateKey(date), Settings: settings}

	eg, egCtx := errgroup.WithContext(ctx)
	if settings.ShowFeatured {
		eg.Go(func() error {
			if title := s.Wiki.FeaturedArticleFromMainPage(egCtx, date); title != "" {
				res.Featured = s.Wiki.ArticleSummary(egCtx, title)
			}
			return nil
		})
	}
	if settings.ShowDidYouKnow {
		eg.Go(func() error { res.DidYouKnow = s.Wiki.DidYouKnowFacts(egCtx, s.DYKLimit); return nil })
	}
	if settings.ShowTrending {
		// pageviews of a day are published the day after
		eg.Go(func() error {
			res.Trending = s.Wiki.TrendingArticles(egCtx, date.AddDate(0, 0, -1), s.TrendLimit)
			return nil
		})
	}
	if settings.ShowRecommendations {
		eg.Go(func() error { res.Recommendations = s.Recommendations(egCtx, 5); return nil })
	}
	_ = eg.Wait()
	return res
}
