// Package reader is the reading side of the app: search, article pages, recommendations and the
// home feed. Reading an article updates the history, the session's rabbit holes and the
// donation reminder counter.
package reader

import (
	"context"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/sync/errgroup"

	"github.com/umputun/wikidaily/pkg/domain"
	"github.com/umputun/wikidaily/pkg/state"
	"github.com/umputun/wikidaily/pkg/wiki"
)

const snippetLen = 160

// WikiClient is the part of the Wikipedia client the reader uses
type WikiClient interface {
	Search(ctx context.Context, query string) []domain.SearchResult
	SearchMoreLike(ctx context.Context, title string, limit int) []domain.SearchResult
	RandomArticles(ctx context.Context, n int) []string
	ArticleContent(ctx context.Context, title string) string
	ArticleSummary(ctx context.Context, title string) *domain.ArticleSummary
	ArticleImages(ctx context.Context, title string, prioritizeInfobox bool) []domain.ArticleImage
	Sections(ctx context.Context, title string) []domain.Section
	FeaturedArticleFromMainPage(ctx context.Context, date time.Time) string
	DidYouKnowFacts(ctx context.Context, limit int) []domain.DYKFact
	TrendingArticles(ctx context.Context, date time.Time, limit int) []domain.TrendingArticle
}

// TextExtractor renders article HTML as plain text
type TextExtractor interface {
	Extract(articleHTML, title string) (string, error)
}

// History is the viewed articles list
type History interface {
	Add(ctx context.Context, item domain.HistoryItem) []domain.HistoryItem
	List(ctx context.Context) []domain.HistoryItem
}

// RabbitHoles tracks the views of a session
type RabbitHoles interface {
	Track(ctx context.Context, session string, entry domain.RabbitHoleEntry) []domain.RabbitHole
}

// Reminders counts articles read for the donation reminder
type Reminders interface {
	RecordArticleView(ctx context.Context) domain.ReminderSettings
}

// FeedSettings selects the home feed blocks
type FeedSettings interface {
	Get(ctx context.Context) domain.FeedSettings
}

// Params of the reader service, Text may be nil
type Params struct {
	Wiki        WikiClient
	Text        TextExtractor
	History     History
	RabbitHoles RabbitHoles
	Reminders   Reminders
	Feed        FeedSettings

	HistorySeeds int // recent articles recommendations are based on
	DYKLimit     int
	TrendLimit   int
}

// Service serves reading requests
type Service struct {
	Params
	policy *bluemonday.Policy
	now    func() time.Time
}

// NewService makes a reader over p, zero limits get defaults
func NewService(p Params) *Service {
	if p.HistorySeeds <= 0 {
		p.HistorySeeds = 3
	}
	if p.DYKLimit <= 0 {
		p.DYKLimit = 5
	}
	if p.TrendLimit <= 0 {
		p.TrendLimit = 10
	}
	return &Service{Params: p, policy: bluemonday.UGCPolicy(), now: time.Now}
}

// Article is a rendered article page
type Article struct {
	Title        string                 `json:"title"`
	Summary      *domain.ArticleSummary `json:"summary,omitempty"`
	HTML         string                 `json:"html"`
	Text         string                 `json:"text,omitempty"`
	Images       []domain.ArticleImage  `json:"images"`
	Sections     []domain.Section       `json:"sections"`
	Loaded       bool                   `json:"loaded"`
	ReminderDue  bool                   `json:"reminderDue"`
	RabbitHoleID string                 `json:"rabbitHoleId,omitempty"`
}

// Search runs a full-text search, an empty query finds nothing
func (s *Service) Search(ctx context.Context, query string) []domain.SearchResult {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.SearchResult{}
	}
	res := s.Wiki.Search(ctx, query)
	if res == nil {
		return []domain.SearchResult{}
	}
	return res
}

// Article loads an article page and records the view for the session. source tells where the
// reader came from (search, recommendation, link) and may be empty. A page that failed to load
// is not recorded.
func (s *Service) Article(ctx context.Context, session, title, source string) *Article {
	res := &Article{Title: title}
	var content string
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error { content = s.Wiki.ArticleContent(egCtx, title); return nil })
	eg.Go(func() error { res.Summary = s.Wiki.ArticleSummary(egCtx, title); return nil })
	eg.Go(func() error { res.Images = s.Wiki.ArticleImages(egCtx, title, true); return nil })
	eg.Go(func() error { res.Sections = s.Wiki.Sections(egCtx, title); return nil })
	_ = eg.Wait()

	if res.Images == nil {
		res.Images = []domain.ArticleImage{}
	}
	if res.Sections == nil {
		res.Sections = []domain.Section{}
	}
	if content == wiki.ErrorLoadingContent {
		res.HTML = content
		return res
	}

	res.Loaded = true
	res.HTML = s.policy.Sanitize(content)
	if s.Text != nil {
		text, err := s.Text.Extract(content, title)
		if err != nil {
			lgr.Printf("[DEBUG] no reading text for %q: %v", title, err)
		}
		res.Text = text
	}

	s.recordView(ctx, session, title, source, res)
	return res
}

func (s *Service) recordView(ctx context.Context, session, title, source string, a *Article) {
	now := s.now().UnixMilli()
	item := domain.HistoryItem{Title: title, Timestamp: now}
	if a.Summary != nil {
		item.Snippet = snippet(a.Summary.Extract)
		item.Thumbnail = a.Summary.Thumbnail
	}
	if item.Thumbnail == "" && len(a.Images) > 0 {
		item.Thumbnail = a.Images[0].URL
	}
	if s.History != nil {
		s.History.Add(ctx, item)
	}
	if s.RabbitHoles != nil && session != "" {
		holes := s.RabbitHoles.Track(ctx, session, domain.RabbitHoleEntry{Title: title, Timestamp: now, Source: source})
		if len(holes) > 0 {
			a.RabbitHoleID = holes[len(holes)-1].ID
		}
	}
	if s.Reminders != nil {
		a.ReminderDue = state.Due(s.Reminders.RecordArticleView(ctx))
	}
}

// snippet cuts text to the snippet length at a word boundary
func snippet(text string) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= snippetLen {
		return string(runes)
	}
	cut := string(runes[:snippetLen])
	if i := strings.LastIndex(cut, " "); i > snippetLen/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:") + "..."
}
