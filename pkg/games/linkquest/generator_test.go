package linkquest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/wikidaily/pkg/cache"
	"github.com/umputun/wikidaily/pkg/domain"
	"github.com/umputun/wikidaily/pkg/extract"
	"github.com/umputun/wikidaily/pkg/games"
)

type fakeWiki struct {
	mu       sync.Mutex
	html     map[string]string
	images   map[string]bool // titles having an image
	moreLike []string
	limits   []int
}

func (f *fakeWiki) ArticleHTML(_ context.Context, title string) string { return f.html[title] }

func (f *fakeWiki) ArticleSummary(_ context.Context, title string) *domain.ArticleSummary {
	return &domain.ArticleSummary{Title: title, Extract: title + " extract"}
}

func (f *fakeWiki) ArticleImages(_ context.Context, title string, _ bool) []domain.ArticleImage {
	if !f.images[title] {
		return nil
	}
	return []domain.ArticleImage{{Title: "File:" + title + ".jpg", URL: "https://img.example/" + title + ".jpg"}}
}

func (f *fakeWiki) ArticleShortDescription(_ context.Context, title string) string {
	return "about " + title
}

func (f *fakeWiki) SearchMoreLike(_ context.Context, _ string, limit int) []domain.SearchResult {
	f.mu.Lock()
	f.limits = append(f.limits, limit)
	f.mu.Unlock()
	res := make([]domain.SearchResult, 0, len(f.moreLike))
	for _, t := range f.moreLike {
		res = append(res, domain.SearchResult{Title: t})
	}
	return res
}

type fakeResolver struct {
	title string
	err   error
	calls atomic.Int32
}

func (r *fakeResolver) Title(context.Context, time.Time) (string, error) {
	r.calls.Add(1)
	return r.title, r.err
}

// featuredHTML renders an article with intro links before the first heading and body links after it
func featuredHTML(intro, body []string) string {
	var sb strings.Builder
	sb.WriteString(`<p>Alpha is a topic`)
	for _, l := range intro {
		fmt.Fprintf(&sb, ` near <a href="/wiki/%s">%s</a>`, strings.ReplaceAll(l, " ", "_"), l)
	}
	sb.WriteString(`.</p><table class="infobox"><tr><td><a href="/wiki/Infobox_Only">Infobox Only</a></td></tr></table>`)
	sb.WriteString(`<h2>Details</h2><p>`)
	for _, l := range body {
		fmt.Fprintf(&sb, `It relates to <a href="/wiki/%s">%s</a> in many ways. `, strings.ReplaceAll(l, " ", "_"), l)
	}
	sb.WriteString(`</p>`)
	return sb.String()
}

func titles(prefix string, n int) []string {
	res := make([]string, n)
	for i := range res {
		res[i] = fmt.Sprintf("%s%d", prefix, i+1)
	}
	return res
}

func withImages(list ...[]string) map[string]bool {
	res := map[string]bool{}
	for _, l := range list {
		for _, t := range l {
			res[t] = true
		}
	}
	return res
}

var testDate = time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC)

func TestGenerator_ExactlyFiveLinksNoMoreLike(t *testing.T) {
	body := titles("Link", 5)
	wiki := &fakeWiki{
		html:   map[string]string{"Alpha": featuredHTML([]string{"Intro Link"}, body)},
		images: withImages(body, []string{"Alpha"}),
	}
	gen := NewGenerator(wiki, &fakeResolver{title: "Alpha"}, cache.NewMemory(), Params{})

	game, err := gen.Generate(context.Background(), testDate)
	require.NoError(t, err)

	require.Len(t, game.Cards, 5)
	for _, c := range game.Cards {
		assert.True(t, c.IsLinked, c.Title)
	}
	assert.Equal(t, "2024-06-01", game.DateKey)
	assert.Equal(t, "Alpha", game.FeaturedArticle.Title)
	assert.Equal(t, "https://img.example/Alpha.jpg", game.FeaturedArticle.Thumbnail, "hero image fills a missing thumbnail")
	assert.NotEmpty(t, game.FeaturedArticleContentHTML)
	assert.Equal(t, []int{15}, wiki.limits, "three candidates per missing card")
}

func TestGenerator_FullDeck(t *testing.T) {
	body := titles("Link", 9)
	intro := []string{"Intro Link"}
	wiki := &fakeWiki{
		html:     map[string]string{"Alpha": featuredHTML(intro, body)},
		images:   withImages(body, intro, []string{"Alpha", "Near1", "Near3", "Near4", "Near5"}),
		moreLike: []string{"Alpha", "Link1", "Near1", "Near2", "Intro Link", "Near3", "near1", "Near4", "Near5"},
	}
	gen := NewGenerator(wiki, &fakeResolver{title: "Alpha"}, cache.NewMemory(), Params{})

	game, err := gen.Generate(context.Background(), testDate)
	require.NoError(t, err)
	require.Len(t, game.Cards, 10)

	links := extract.ExtractLinks(game.FeaturedArticleContentHTML, extract.LinkOptions{})
	var linked, notLinked []string
	for _, c := range game.Cards {
		assert.NotEmpty(t, c.Thumbnail)
		assert.Equal(t, "about "+c.Title, c.Description)
		if c.IsLinked {
			linked = append(linked, c.Title)
			assert.Contains(t, body, c.Title, "linked cards come from links after the introduction")
			assert.Equal(t, 1, strings.Count(c.LinkContext, `data-highlight="true"`))
			assert.Equal(t, c.Title, c.LinkContextTitle)
			assert.Equal(t, "Details", c.LinkSectionHeading)
			continue
		}
		notLinked = append(notLinked, c.Title)
		assert.NotContains(t, links, c.Title, "not-linked cards are never linked from the article")
		assert.Empty(t, c.LinkContext)
	}
	assert.Len(t, linked, 7)
	assert.ElementsMatch(t, []string{"Near1", "Near3", "Near4"}, notLinked)
}

func TestGenerator_NotLinkedSkipsBoilerplateLinks(t *testing.T) {
	body := titles("Link", 9)
	wiki := &fakeWiki{
		html:     map[string]string{"Alpha": featuredHTML(nil, body)},
		images:   withImages(body, []string{"Alpha", "Infobox Only", "Near1", "Near2", "Near3"}),
		moreLike: []string{"Infobox Only", "Near1", "Near2", "Near3"},
	}
	gen := NewGenerator(wiki, &fakeResolver{title: "Alpha"}, cache.NewMemory(), Params{})

	game, err := gen.Generate(context.Background(), testDate)
	require.NoError(t, err)

	var notLinked []string
	for _, c := range game.Cards {
		if !c.IsLinked {
			notLinked = append(notLinked, c.Title)
		}
	}
	assert.ElementsMatch(t, []string{"Near1", "Near2", "Near3"}, notLinked, "infobox link is still a link")
}

func TestGenerator_NotEnoughLinks(t *testing.T) {
	tests := []struct {
		name   string
		body   []string
		images []string
	}{
		{name: "four links after the introduction", body: titles("Link", 4), images: titles("Link", 4)},
		{name: "links without images", body: titles("Link", 8), images: titles("Link", 4)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wiki := &fakeWiki{
				html:   map[string]string{"Alpha": featuredHTML(titles("Intro", 5), tt.body)},
				images: withImages(tt.images, titles("Intro", 5)),
			}
			gen := NewGenerator(wiki, &fakeResolver{title: "Alpha"}, cache.NewMemory(), Params{})
			_, err := gen.Generate(context.Background(), testDate)
			require.ErrorIs(t, err, ErrNotEnoughLinks)
		})
	}
}

func TestGenerator_Errors(t *testing.T) {
	t.Run("no featured article", func(t *testing.T) {
		gen := NewGenerator(&fakeWiki{}, &fakeResolver{err: games.ErrNoFeaturedArticle}, cache.NewMemory(), Params{})
		_, err := gen.Generate(context.Background(), testDate)
		require.ErrorIs(t, err, games.ErrNoFeaturedArticle)
	})

	t.Run("content unavailable", func(t *testing.T) {
		gen := NewGenerator(&fakeWiki{}, &fakeResolver{title: "Alpha"}, cache.NewMemory(), Params{})
		_, err := gen.Generate(context.Background(), testDate)
		require.ErrorIs(t, err, ErrNotEnoughLinks)
	})
}

func TestGenerator_CachedAndDeterministic(t *testing.T) {
	body := titles("Link", 12)
	newWiki := func() *fakeWiki {
		return &fakeWiki{html: map[string]string{"Alpha": featuredHTML(nil, body)}, images: withImages(body)}
	}
	store := cache.NewMemory()
	resolver := &fakeResolver{title: "Alpha"}
	gen := NewGenerator(newWiki(), resolver, store, Params{})

	first, err := gen.Generate(context.Background(), testDate)
	require.NoError(t, err)
	second, err := gen.Generate(context.Background(), testDate.Add(5*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), resolver.calls.Load(), "second request of the day is served from cache")

	_, ok, err := store.Get(context.Background(), GameKey("2024-06-01"))
	require.NoError(t, err)
	assert.True(t, ok)

	// a fresh generator rebuilds the same deck for the same day
	other, err := NewGenerator(newWiki(), &fakeResolver{title: "Alpha"}, cache.NewMemory(), Params{}).Generate(context.Background(), testDate)
	require.NoError(t, err)
	assert.Equal(t, first.Cards, other.Cards)
}
