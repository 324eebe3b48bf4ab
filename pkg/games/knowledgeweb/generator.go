// Package knowledgeweb builds the daily Knowledge Web puzzle: four articles around the featured
// article, each reached through a connector article the player has to name.
package knowledgeweb

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

// ErrNotEnoughConnections is returned when four connected chains can't be found
var ErrNotEnoughConnections = errors.New("not enough connections for a knowledge web")

const (
	puzzleKeyPrefix = "knowledgeWeb_puzzle_"
	slots           = len(domain.Positions)
)

// WikiClient is the part of the Wikipedia client used to build a puzzle
type WikiClient interface {
	ArticleHTML(ctx context.Context, title string) string
	ArticleImages(ctx context.Context, title string, prioritizeInfobox bool) []domain.ArticleImage
}

// TitleResolver names the featured article of a day
type TitleResolver interface {
	Title(ctx context.Context, date time.Time) (string, error)
}

// Params tune the connector search
type Params struct {
	ContentTimeout time.Duration // per article content fetch
	MaxAttempts    int           // connector candidates inspected per slot and pass
	AllowFallback  bool          // accept connectors not proven to lead to the surrounding article
	TTL            time.Duration // lifetime of a cached puzzle
}

// Generator builds and caches the puzzle of a day
type Generator struct {
	wiki     WikiClient
	resolver TitleResolver
	cache    cache.Store
	params   Params
}

// NewGenerator makes a generator, zero params get defaults
func NewGenerator(wiki WikiClient, resolver TitleResolver, store cache.Store, params Params) *Generator {
	if params.ContentTimeout <= 0 {
		params.ContentTimeout = 10 * time.Second
	}
	if params.MaxAttempts <= 0 {
		params.MaxAttempts = 30
	}
	if params.TTL <= 0 {
		params.TTL = 24 * time.Hour
	}
	return &Generator{wiki: wiki, resolver: resolver, cache: store, params: params}
}

// PuzzleKey is the cache key of the puzzle of a day
func PuzzleKey(dateKey string) string {
	return puzzleKeyPrefix + dateKey
}

// Generate returns the puzzle of the UTC day of date, building it on the first request of the day
func (g *Generator) Generate(ctx context.Context, date time.Time) (*domain.KnowledgeWebPuzzle, error) {
	dateKey := daily.DateKey(date)

	var cached domain.KnowledgeWebPuzzle
	ok, err := cache.LoadJSON(ctx, g.cache, PuzzleKey(dateKey), &cached)
	if err != nil {
		lgr.Printf("[WARN] can't read cached knowledge web %s: %v", dateKey, err)
	}
	if ok && cached.PuzzleID == dateKey {
		return &cached, nil
	}

	puzzle, err := g.build(ctx, date)
	if err != nil {
		return nil, err
	}
	if err := cache.SaveJSON(ctx, g.cache, PuzzleKey(dateKey), puzzle, g.params.TTL); err != nil {
		lgr.Printf("[WARN] can't cache knowledge web %s: %v", dateKey, err)
	}
	return puzzle, nil
}

// search holds the state of one connector search
type search struct {
	g        *Generator
	featured string
	contents map[string]string // fetched candidate content, "" for failed fetches
	rejected map[string]bool   // candidates naming the featured article in their first paragraph
	pool     []string          // unused connector candidates in link order
}

func (g *Generator) build(ctx context.Context, date time.Time) (*domain.KnowledgeWebPuzzle, error) {
	featured, err := g.resolver.Title(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("resolve featured article: %w", err)
	}

	content := g.fetchContent(ctx, featured)
	if content == "" {
		return nil, fmt.Errorf("load featured article %q: %w", featured, ErrNotEnoughConnections)
	}

	// links of the introduction give the chain away
	_, body := extract.Partition(content)
	var candidates []string
	for _, l := range body {
		if !strings.EqualFold(l, featured) {
			candidates = append(candidates, l)
		}
	}
	if len(candidates) < slots {
		return nil, fmt.Errorf("%q has %d candidate articles: %w", featured, len(candidates), ErrNotEnoughConnections)
	}

	puzzle := &domain.KnowledgeWebPuzzle{PuzzleID: daily.DateKey(date), FeaturedArticle: domain.WebArticle{Title: featured}}
	for i, pos := range domain.Positions {
		puzzle.SurroundingArticles[i] = domain.WebArticle{Title: candidates[i], Position: pos}
	}

	s := &search{g: g, featured: featured, contents: map[string]string{}, rejected: map[string]bool{},
		pool: append([]string(nil), candidates[slots:]...)}
	var found [slots]*domain.WebConnection
	tried := make([]map[string]bool, slots)
	for i := range tried {
		tried[i] = map[string]bool{}
	}

	// the second pass uses the same pool and rules, but for each slot still missing it continues
	// with the candidates the first pass didn't try instead of repeating rejected ones
	for pass := 1; pass <= 2; pass++ {
		for i := range found {
			if found[i] == nil {
				found[i] = s.connect(ctx, puzzle.SurroundingArticles[i], tried[i])
			}
		}
		if complete(found) {
			break
		}
		lgr.Printf("[DEBUG] knowledge web %s: pass %d left %d slots open", puzzle.PuzzleID, pass, missing(found))
	}

	if !complete(found) && g.params.AllowFallback {
		for i := range found {
			if found[i] == nil {
				found[i] = s.fallback(ctx, content, puzzle.SurroundingArticles[i])
			}
		}
	}
	if !complete(found) {
		return nil, fmt.Errorf("%q: %d of %d connections found: %w", featured, slots-missing(found), slots, ErrNotEnoughConnections)
	}

	for i, c := range found {
		puzzle.Connections[i] = *c
		puzzle.AnswerPool = append(puzzle.AnswerPool, c.ConnectingArticle)
	}
	rng := daily.Rand(date, "knowledgeweb")
	rng.Shuffle(len(puzzle.AnswerPool), func(i, j int) {
		puzzle.AnswerPool[i], puzzle.AnswerPool[j] = puzzle.AnswerPool[j], puzzle.AnswerPool[i]
	})

	g.attachImages(ctx, puzzle)
	lgr.Printf("[INFO] knowledge web %s: %q with connectors %v", puzzle.PuzzleID, featured, puzzle.AnswerPool)
	return puzzle, nil
}

// connect looks for a connector of target among untried pool candidates, up to the attempt cap
func (s *search) connect(ctx context.Context, target domain.WebArticle, tried map[string]bool) *domain.WebConnection {
	attempts := min(s.g.params.MaxAttempts, len(s.pool))
	for idx := 0; idx < len(s.pool) && attempts > 0; idx++ {
		candidate := s.pool[idx]
		if tried[candidate] {
			continue
		}
		tried[candidate] = true
		attempts--

		content, ok := s.usable(ctx, candidate)
		if !ok {
			continue
		}
		if !extract.IsTitleLinkedInArticle(content, target.Title) && !extract.MentionsInFirstParagraph(content, target.Title) {
			continue
		}

		evidence, _ := extract.NodeMentionInConnector(content, target.Title)
		s.take(idx)
		return &domain.WebConnection{
			Position:           target.Position,
			SurroundingArticle: target.Title,
			ConnectingArticle:  candidate,
			Evidence:           evidence,
		}
	}
	return nil
}

// fallback takes the first usable candidate without requiring a link to target
func (s *search) fallback(ctx context.Context, featuredContent string, target domain.WebArticle) *domain.WebConnection {
	attempts := s.g.params.MaxAttempts
	for idx := 0; idx < len(s.pool) && attempts > 0; idx++ {
		candidate := s.pool[idx]
		if _, fetched := s.contents[candidate]; !fetched {
			attempts--
		}
		if _, ok := s.usable(ctx, candidate); !ok {
			continue
		}

		s.take(idx)
		lgr.Printf("[WARN] knowledge web fallback: %q placed as connector of %q without a proven link", candidate, target.Title)
		conn := &domain.WebConnection{
			Position:           target.Position,
			SurroundingArticle: target.Title,
			ConnectingArticle:  candidate,
			Fallback:           true,
		}
		if lc := extract.LinkContext(featuredContent, candidate); lc != nil {
			conn.Evidence = lc.Text
		}
		return conn
	}
	return nil
}

// usable fetches candidate content once and rejects failed fetches and trivial backlinks
func (s *search) usable(ctx context.Context, candidate string) (string, bool) {
	if s.rejected[candidate] {
		return "", false
	}
	content, fetched := s.contents[candidate]
	if !fetched {
		content = s.g.fetchContent(ctx, candidate)
		s.contents[candidate] = content
	}
	if content == "" {
		return "", false
	}
	if extract.MentionsInFirstParagraph(content, s.featured) {
		lgr.Printf("[DEBUG] %q names %q in its first paragraph, rejected", candidate, s.featured)
		s.rejected[candidate] = true
		return "", false
	}
	return content, true
}

// take removes the pool entry at idx so no connector serves two slots
func (s *search) take(idx int) {
	s.pool = append(s.pool[:idx], s.pool[idx+1:]...)
}

// fetchContent loads article HTML, a timeout counts as a failed fetch
func (g *Generator) fetchContent(ctx context.Context, title string) string {
	ctx, cancel := context.WithTimeout(ctx, g.params.ContentTimeout)
	defer cancel()

	content := make(chan string, 1)
	go func() { content <- g.wiki.ArticleHTML(ctx, title) }()
	select {
	case c := <-content:
		return c
	case <-ctx.Done():
		lgr.Printf("[WARN] FETCH_PROCESS_ERROR: content of %q timed out: %v", title, ctx.Err())
		return ""
	}
}

// attachImages looks up a hero image for every article on the board, failures leave it empty
func (g *Generator) attachImages(ctx context.Context, p *domain.KnowledgeWebPuzzle) {
	first := func(images []domain.ArticleImage) string {
		if len(images) == 0 {
			return ""
		}
		return images[0].URL
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		p.FeaturedArticle.Image = first(g.wiki.ArticleImages(egCtx, p.FeaturedArticle.Title, true))
		return nil
	})
	for i := range p.SurroundingArticles {
		eg.Go(func() error {
			p.SurroundingArticles[i].Image = first(g.wiki.ArticleImages(egCtx, p.SurroundingArticles[i].Title, false))
			return nil
		})
		eg.Go(func() error {
			p.Connections[i].ConnectingImage = first(g.wiki.ArticleImages(egCtx, p.Connections[i].ConnectingArticle, false))
			return nil
		})
	}
	_ = eg.Wait()
}

func complete(found [slots]*domain.WebConnection) bool {
	return missing(found) == 0
}

func missing(found [slots]*domain.WebConnection) int {
	n := 0
	for _, c := range found {
		if c == nil {
			n++
		}
	}
	return n
}
