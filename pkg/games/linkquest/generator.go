// Package linkquest builds the daily "is this article linked from today's featured article?"
// card game and runs its per-day state machine.
package linkquest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"
	"golang.org/x/sync/errgroup"

	"github.com/umputun/wikidaily/pkg/cache"
	"github.com/umputun/wikidaily/pkg/daily"
	"github.com/umputun/wikidaily/pkg/domain"
	"github.com/umputun/wikidaily/pkg/extract"
)

// ErrNotEnoughLinks is returned when the featured article can't fill the minimum of linked cards
var ErrNotEnoughLinks = errors.New("featured article has not enough usable links")

const gameKeyPrefix = "linkQuest_dailyGame_"

// WikiClient is the part of the Wikipedia client used to build a game
type WikiClient interface {
	ArticleHTML(ctx context.Context, title string) string
	ArticleSummary(ctx context.Context, title string) *domain.ArticleSummary
	ArticleImages(ctx context.Context, title string, prioritizeInfobox bool) []domain.ArticleImage
	ArticleShortDescription(ctx context.Context, title string) string
	SearchMoreLike(ctx context.Context, title string, limit int) []domain.SearchResult
}

// TitleResolver names the featured article of a day
type TitleResolver interface {
	Title(ctx context.Context, date time.Time) (string, error)
}

// Params tune card selection
type Params struct {
	MinLinked      int           // fewer usable links fail the generation
	MaxLinked      int           // linked cards cap
	TotalCards     int           // target deck size, not-linked cards fill the rest
	CandidateLimit int           // how many links are inspected for images
	TTL            time.Duration // lifetime of a cached game
}

// Generator builds and caches the game of a day
type Generator struct {
	wiki     WikiClient
	resolver TitleResolver
	cache    cache.Store
	params   Params
}

// NewGenerator makes a generator with defaults for zero params
func NewGenerator(wiki WikiClient, resolver TitleResolver, store cache.Store, params Params) *Generator {
	if params.MinLinked <= 0 {
		params.MinLinked = 5
	}
	if params.MaxLinked < params.MinLinked {
		params.MaxLinked = max(7, params.MinLinked)
	}
	if params.TotalCards < params.MaxLinked {
		params.TotalCards = max(10, params.MaxLinked)
	}
	if params.CandidateLimit <= 0 {
		params.CandidateLimit = 20
	}
	if params.TTL <= 0 {
		params.TTL = 24 * time.Hour
	}
	return &Generator{wiki: wiki, resolver: resolver, cache: store, params: params}
}

// GameKey is the cache key of the game of a day
func GameKey(dateKey string) string {
	return gameKeyPrefix + dateKey
}

// Generate returns the game of the UTC day of date, building it on the first request of the day
func (g *Generator) Generate(ctx context.Context, date time.Time) (*domain.DailyGame, error) {
	dateKey := daily.DateKey(date)

	var cached domain.DailyGame
	ok, err := cache.LoadJSON(ctx, g.cache, GameKey(dateKey), &cached)
	if err != nil {
		lgr.Printf("[WARN] can't read cached link quest game %s: %v", dateKey, err)
	}
	if ok && len(cached.Cards) > 0 {
		return &cached, nil
	}

	game, err := g.build(ctx, date)
	if err != nil {
		return nil, err
	}
	if err := cache.SaveJSON(ctx, g.cache, GameKey(dateKey), game, g.params.TTL); err != nil {
		lgr.Printf("[WARN] can't cache link quest game %s: %v", dateKey, err)
	}
	return game, nil
}

func (g *Generator) build(ctx context.Context, date time.Time) (*domain.DailyGame, error) {
	title, err := g.resolver.Title(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("resolve featured article: %w", err)
	}

	// content, summary and hero image are independent
	var content string
	var summary *domain.ArticleSummary
	var hero []domain.ArticleImage
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error { content = g.wiki.ArticleHTML(egCtx, title); return nil })
	eg.Go(func() error { summary = g.wiki.ArticleSummary(egCtx, title); return nil })
	eg.Go(func() error { hero = g.wiki.ArticleImages(egCtx, title, true); return nil })
	_ = eg.Wait()

	if content == "" {
		return nil, fmt.Errorf("load featured article %q: %w", title, ErrNotEnoughLinks)
	}
	if summary == nil {
		summary = &domain.ArticleSummary{Title: title}
	}
	if summary.Thumbnail == "" && len(hero) > 0 {
		summary.Thumbnail = hero[0].URL
	}

	linked, err := g.linkedCards(ctx, title, content, date)
	if err != nil {
		return nil, err
	}
	notLinked := g.notLinkedCards(ctx, title, content, g.params.TotalCards-len(linked))

	cards := append(linked, notLinked...)
	rng := daily.Rand(date, "linkquest-deck")
	rng.Shuffle(len(cards), func(i, j int) { cards[i], cards[j] = cards[j], cards[i] })

	lgr.Printf("[INFO] link quest %s: %q with %d linked and %d not linked cards",
		daily.DateKey(date), title, len(linked), len(notLinked))
	return &domain.DailyGame{
		FeaturedArticle:            *summary,
		Cards:                      cards,
		DateKey:                    daily.DateKey(date),
		FeaturedArticleContentHTML: content,
	}, nil
}

// linkedCards picks linked cards among the non-introduction links having a context and an image
func (g *Generator) linkedCards(ctx context.Context, title, content string, date time.Time) ([]domain.GameCard, error) {
	var candidates []domain.GameCard
	for _, link := range extract.ExtractLinks(content, extract.LinkOptions{ExcludeFirstParagraph: true}) {
		if strings.EqualFold(link, title) {
			continue
		}
		candidates = append(candidates, domain.GameCard{Title: link, IsLinked: true})
	}
	if len(candidates) < g.params.MinLinked {
		return nil, fmt.Errorf("%q has %d links after the introduction: %w", title, len(candidates), ErrNotEnoughLinks)
	}

	rng := daily.Rand(date, "linkquest-links")
	rng.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })

	// only links with a context snippet are playable
	withContext := candidates[:0]
	for _, c := range candidates {
		lc := extract.LinkContext(content, c.Title)
		if lc == nil {
			lgr.Printf("[DEBUG] FETCH_PROCESS_ERROR: no context for %q in %q", c.Title, title)
			continue
		}
		c.LinkContext, c.LinkContextTitle, c.LinkSectionHeading = lc.HTML, c.Title, lc.SectionHeading
		withContext = append(withContext, c)
		if len(withContext) >= g.params.CandidateLimit {
			break
		}
	}

	cards := g.decorate(ctx, withContext, g.params.MaxLinked)
	if len(cards) < g.params.MinLinked {
		return nil, fmt.Errorf("%q has %d links with images: %w", title, len(cards), ErrNotEnoughLinks)
	}
	return cards, nil
}

// notLinkedCards fills up to n cards from similar articles the featured article does not link to
func (g *Generator) notLinkedCards(ctx context.Context, title, content string, n int) []domain.GameCard {
	if n <= 0 {
		return nil
	}

	// any link counts here, a navbox entry is still a link of the article
	linkSet := map[string]bool{strings.ToLower(title): true}
	for _, l := range extract.ExtractLinks(content, extract.LinkOptions{CaseInsensitive: true, IncludeBoilerplate: true}) {
		linkSet[strings.ToLower(l)] = true
	}

	var candidates []domain.GameCard
	for _, r := range g.wiki.SearchMoreLike(ctx, title, max(n*3, 10)) {
		key := strings.ToLower(extract.NormalizeTitle(r.Title))
		if linkSet[key] {
			continue
		}
		linkSet[key] = true
		candidates = append(candidates, domain.GameCard{Title: r.Title, IsLinked: false})
	}
	return g.decorate(ctx, candidates, n)
}

// decorate fetches image and short description of each candidate in parallel and returns
// up to limit candidates having an image, in candidate order
func (g *Generator) decorate(ctx context.Context, candidates []domain.GameCard, limit int) []domain.GameCard {
	decorated := make([]*domain.GameCard, len(candidates))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, c := range candidates {
		eg.Go(func() error {
			var images []domain.ArticleImage
			var desc string
			inner, innerCtx := errgroup.WithContext(egCtx)
			inner.Go(func() error { images = g.wiki.ArticleImages(innerCtx, c.Title, false); return nil })
			inner.Go(func() error { desc = g.wiki.ArticleShortDescription(innerCtx, c.Title); return nil })
			_ = inner.Wait()

			if len(images) == 0 {
				lgr.Printf("[DEBUG] FETCH_PROCESS_ERROR: no image for %q, skipped", c.Title)
				return nil
			}
			c.Thumbnail, c.Description = images[0].URL, desc
			decorated[i] = &c
			return nil
		})
	}
	_ = eg.Wait()

	var res []domain.GameCard
	for _, c := range decorated {
		if c == nil {
			continue
		}
		res = append(res, *c)
		if len(res) >= limit {
			break
		}
	}
	return res
}
