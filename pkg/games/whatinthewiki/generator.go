// Package whatinthewiki builds the daily What in the Wiki puzzle: guess a featured article
// from clues revealed one level at a time.
package whatinthewiki

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"
	"golang.org/x/sync/errgroup"

	"github.com/umputun/wikidaily/pkg/cache"
	"github.com/umputun/wikidaily/pkg/daily"
	"github.com/umputun/wikidaily/pkg/domain"
	"github.com/umputun/wikidaily/pkg/extract"
	"github.com/umputun/wikidaily/pkg/games"
)

// Redacted replaces every mention of the answer in the clues
const Redacted = "████████"

// ErrNoLead is returned when the picked article has no lead paragraph to build clues from
var ErrNoLead = errors.New("featured article has no lead paragraph")

const (
	puzzleKeyPrefix = "whatInTheWiki_puzzleCache_"
	articleURLBase  = "https://en.wikipedia.org/wiki/"
)

// sections never shown as clues
var boilerplateSections = []string{"see also", "notes", "references", "further reading", "external links",
	"bibliography", "sources", "citations", "footnotes"}

// WikiClient is the part of the Wikipedia client used to build a puzzle
type WikiClient interface {
	FeaturedArticleTitles(ctx context.Context, max int) []string
	SearchMoreLike(ctx context.Context, title string, limit int) []domain.SearchResult
	Categories(ctx context.Context, title string) []string
	Sections(ctx context.Context, title string) []domain.Section
	ArticleSummary(ctx context.Context, title string) *domain.ArticleSummary
	ArticleExtract(ctx context.Context, title string) string
	ArticleImages(ctx context.Context, title string, prioritizeInfobox bool) []domain.ArticleImage
}

// Params of the generator
type Params struct {
	Options         int           // choices offered, the answer included
	FeaturedListMax int           // featured articles list size to pick from
	TTL             time.Duration // lifetime of a cached puzzle
}

// Generator builds and caches the puzzle of a day
type Generator struct {
	wiki   WikiClient
	cache  cache.Store
	params Params
}

// NewGenerator makes a generator, zero params get defaults
func NewGenerator(wiki WikiClient, store cache.Store, params Params) *Generator {
	if params.Options <= 1 {
		params.Options = 4
	}
	if params.FeaturedListMax <= 0 {
		params.FeaturedListMax = games.DefaultFeaturedListMax
	}
	if params.TTL <= 0 {
		params.TTL = 24 * time.Hour
	}
	return &Generator{wiki: wiki, cache: store, params: params}
}

// PuzzleKey is the cache key of the puzzle of a day
func PuzzleKey(dateKey string) string { return puzzleKeyPrefix + dateKey }

// Generate returns the puzzle of the UTC day of date, building it on the first request of the day
func (g *Generator) Generate(ctx context.Context, date time.Time) (*domain.WikiPuzzle, error) {
	dateKey := daily.DateKey(date)

	var cached domain.WikiPuzzle
	ok, err := cache.LoadJSON(ctx, g.cache, PuzzleKey(dateKey), &cached)
	if err != nil {
		lgr.Printf("[WARN] can't read cached what in the wiki %s: %v", dateKey, err)
	}
	if ok && cached.DateKey == dateKey {
		return &cached, nil
	}

	p, err := g.build(ctx, date)
	if err != nil {
		return nil, err
	}
	if err := cache.SaveJSON(ctx, g.cache, PuzzleKey(dateKey), p, g.params.TTL); err != nil {
		lgr.Printf("[WARN] can't cache what in the wiki %s: %v", dateKey, err)
	}
	return p, nil
}

func (g *Generator) build(ctx context.Context, date time.Time) (*domain.WikiPuzzle, error) {
	featured := g.wiki.FeaturedArticleTitles(ctx, g.params.FeaturedListMax)
	title := daily.PickDailyFeaturedTitle(featured, date)
	if title == "" {
		return nil, fmt.Errorf("featured articles list is empty: %w", games.ErrNoFeaturedArticle)
	}

	var (
		similar    []domain.SearchResult
		categories []string
		sections   []domain.Section
		summary    *domain.ArticleSummary
		images     []domain.ArticleImage
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error { similar = g.wiki.SearchMoreLike(egCtx, title, g.params.Options*2); return nil })
	eg.Go(func() error { categories = g.wiki.Categories(egCtx, title); return nil })
	eg.Go(func() error { sections = g.wiki.Sections(egCtx, title); return nil })
	eg.Go(func() error { summary = g.wiki.ArticleSummary(egCtx, title); return nil })
	eg.Go(func() error { images = g.wiki.ArticleImages(egCtx, title, true); return nil })
	_ = eg.Wait()

	if summary == nil {
		summary = &domain.ArticleSummary{Title: title}
	}
	if strings.TrimSpace(summary.Extract) == "" {
		// the summary endpoint lags behind edits, the action API lead is the second source
		summary.Extract = g.wiki.ArticleExtract(ctx, title)
	}
	if strings.TrimSpace(summary.Extract) == "" {
		return nil, fmt.Errorf("%q: %w", title, ErrNoLead)
	}

	p := &domain.WikiPuzzle{
		DateKey:      daily.DateKey(date),
		Title:        title,
		Options:      g.options(date, title, similar, featured),
		FullLead:     summary.Extract,
		RedactedLead: Redact(summary.Extract, title),
		ArticleURL:   summary.URL,
		Image:        summary.Thumbnail,
		Categories:   []string{},
		Sections:     []string{},
	}
	if p.ArticleURL == "" {
		p.ArticleURL = articleURLBase + url.PathEscape(strings.ReplaceAll(title, " ", "_"))
	}
	if p.Image == "" && len(images) > 0 {
		p.Image = images[0].URL
	}
	for _, c := range categories {
		p.Categories = append(p.Categories, Redact(c, title))
	}
	for _, s := range sections {
		if s.Level > 2 || slices.Contains(boilerplateSections, strings.ToLower(strings.TrimSpace(s.Line))) {
			continue
		}
		p.Sections = append(p.Sections, Redact(s.Line, title))
	}

	lgr.Printf("[INFO] what in the wiki %s: %q with options %v", p.DateKey, title, p.Options)
	return p, nil
}

// options returns the answer with similar articles, backfilled from the featured list, shuffled
func (g *Generator) options(date time.Time, title string, similar []domain.SearchResult, featured []string) []string {
	res := []string{title}
	seen := map[string]bool{strings.ToLower(title): true}
	add := func(t string) {
		key := strings.ToLower(t)
		if len(res) >= g.params.Options || t == "" || seen[key] || extract.IsSpecialNamespace(t) {
			return
		}
		seen[key] = true
		res = append(res, t)
	}

	for _, s := range similar {
		add(s.Title)
	}
	if len(res) < g.params.Options {
		rng := daily.Rand(date, "whatinthewiki-backfill")
		for _, idx := range rng.Perm(len(featured)) {
			add(featured[idx])
		}
	}

	rng := daily.Rand(date, "whatinthewiki-options")
	rng.Shuffle(len(res), func(i, j int) { res[i], res[j] = res[j], res[i] })
	return res
}

// Redact blanks out the title, its underscore form and its base title (without a parenthetical
// qualifier) wherever they appear as whole words
func Redact(text, title string) string {
	variants := []string{title, strings.ReplaceAll(title, " ", "_")}
	if base := extract.BaseTitle(title); base != title && len([]rune(base)) > 3 {
		variants = append(variants, base)
	}
	// longest first, so a base title never splits a full title match
	slices.SortFunc(variants, func(a, b string) int { return len(b) - len(a) })

	for _, v := range slices.Compact(variants) {
		if re := extract.WordPattern(v); re != nil {
			text = re.ReplaceAllString(text, Redacted)
		}
	}
	return text
}
