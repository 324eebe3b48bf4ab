package wiki

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient starts a fake Wikipedia serving the action API at /w/api.php,
// the REST API under /api/rest_v1 and metrics under /metrics
func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Params{
		APIURL:     srv.URL + "/w/api.php",
		RESTURL:    srv.URL + "/api/rest_v1",
		MetricsURL: srv.URL + "/metrics",
		Timeout:    5 * time.Second,
	})
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	assert.NoError(t, json.NewEncoder(w).Encode(v))
}

// pages wraps a formatversion=2 single page response
func pages(page map[string]any) map[string]any {
	return map[string]any{"query": map[string]any{"pages": []any{page}}}
}

func imageInfoResponse(file string) map[string]any {
	name := strings.TrimPrefix(file, "File:")
	return pages(map[string]any{
		"title": file,
		"imageinfo": []any{map[string]any{
			"url":      "https://upload.example/" + name,
			"thumburl": "https://upload.example/thumb/" + name,
			"extmetadata": map[string]any{
				"ImageDescription": map[string]any{"value": "<i>About</i> " + name},
			},
		}},
	})
}

func TestClient_Search(t *testing.T) {
	var srsearch atomic.Value
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "json", q.Get("format"))
		assert.Equal(t, "2", q.Get("formatversion"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		switch {
		case q.Get("list") == "search":
			srsearch.Store(q.Get("srsearch"))
			writeJSON(t, w, map[string]any{"query": map[string]any{"search": []any{
				map[string]any{"title": "Go (game)", "pageid": 1, "snippet": `board <span class="searchmatch">game</span> &amp; more`},
				map[string]any{"title": "Go (language)", "pageid": 2, "snippet": "language"},
			}}})
		case q.Get("prop") == "images":
			files := []any{}
			for _, f := range []string{"File:One.jpg", "File:Two.png", "File:Three.jpg", "File:Four.jpg", "File:Five.jpg", "File:Commons-logo.svg"} {
				files = append(files, map[string]any{"title": f})
			}
			writeJSON(t, w, pages(map[string]any{"title": q.Get("titles"), "images": files}))
		case q.Get("prop") == "imageinfo":
			writeJSON(t, w, imageInfoResponse(q.Get("titles")))
		default:
			t.Errorf("unexpected request %s", r.URL)
		}
	})

	res := c.Search(context.Background(), "go")
	require.Len(t, res, 2)
	assert.Equal(t, "go", srsearch.Load())
	assert.Equal(t, "Go (game)", res[0].Title)
	assert.Equal(t, int64(1), res[0].PageID)
	assert.Equal(t, "board game & more", res[0].Snippet)
	require.Len(t, res[0].Images, 4)
	assert.Equal(t, "File:One.jpg", res[0].Images[0].Title)
	assert.Equal(t, "https://upload.example/thumb/One.jpg", res[0].Images[0].URL)
	assert.Equal(t, "About One.jpg", res[0].Images[0].Description)
	assert.False(t, res[0].ImagesLoading)
	assert.Len(t, res[1].Images, 4)
}

func TestClient_SearchMoreLike(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "morelike:Alpha", q.Get("srsearch"))
		assert.Equal(t, "7", q.Get("srlimit"))
		writeJSON(t, w, map[string]any{"query": map[string]any{"search": []any{
			map[string]any{"title": "Beta"}, map[string]any{"title": "Gamma"},
		}}})
	})

	res := c.SearchMoreLike(context.Background(), "Alpha", 7)
	require.Len(t, res, 2)
	assert.Equal(t, "Beta", res[0].Title)
	assert.Empty(t, res[0].Images)
}

func TestClient_FailSoft(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("action") == "parse" {
			writeJSON(t, w, map[string]any{"error": map[string]any{"code": "missingtitle", "info": "The page doesn't exist."}})
			return
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	ctx := context.Background()

	assert.Nil(t, c.Search(ctx, "x"))
	assert.Nil(t, c.SearchMoreLike(ctx, "x", 5))
	assert.Nil(t, c.RandomArticles(ctx, 3))
	assert.Nil(t, c.FeaturedArticleTitles(ctx, 10))
	assert.Empty(t, c.FeaturedArticleFromMainPage(ctx, time.Now()))
	assert.Empty(t, c.FeaturedArticleFromFeed(ctx, time.Now()))
	assert.Empty(t, c.ArticleHTML(ctx, "x"))
	assert.Equal(t, ErrorLoadingContent, c.ArticleContent(ctx, "x"))
	assert.Nil(t, c.ArticleSummary(ctx, "x"))
	assert.Empty(t, c.ArticleExtract(ctx, "x"))
	assert.Nil(t, c.Categories(ctx, "x"))
	assert.Nil(t, c.Sections(ctx, "x"))
	assert.Nil(t, c.ArticleImages(ctx, "x", true))
	assert.Nil(t, c.DidYouKnowFacts(ctx, 5))
	assert.Empty(t, c.ArticleShortDescription(ctx, "x"))
	assert.Nil(t, c.TrendingArticles(ctx, time.Now(), 5))
}

func TestClient_FeaturedArticleTitles(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		q := r.URL.Query()
		assert.Equal(t, FeaturedListPage, q.Get("titles"))
		assert.Equal(t, "0", q.Get("plnamespace"))
		link := func(ns int, title string) map[string]any { return map[string]any{"ns": ns, "title": title} }
		switch q.Get("plcontinue") {
		case "":
			writeJSON(t, w, map[string]any{
				"continue": map[string]any{"plcontinue": "123|0|B"},
				"query": map[string]any{"pages": []any{map[string]any{
					"links": []any{link(0, "A"), link(0, "B"), link(4, "Wikipedia:Stuff")},
				}}},
			})
		case "123|0|B":
			writeJSON(t, w, map[string]any{
				"query": map[string]any{"pages": []any{map[string]any{
					"links": []any{link(0, "B"), link(0, "C")},
				}}},
			})
		default:
			t.Errorf("unexpected continuation %q", q.Get("plcontinue"))
		}
	})
	ctx := context.Background()

	assert.Equal(t, []string{"A", "B", "C"}, c.FeaturedArticleTitles(ctx, 2500))
	assert.Equal(t, int32(2), calls.Load())

	// served from cache, truncated to max
	assert.Equal(t, []string{"A", "B"}, c.FeaturedArticleTitles(ctx, 2))
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_FeaturedArticleTitles_StopsAtMax(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(t, w, map[string]any{
			"continue": map[string]any{"plcontinue": "next"},
			"query": map[string]any{"pages": []any{map[string]any{
				"links": []any{map[string]any{"ns": 0, "title": "A"}, map[string]any{"ns": 0, "title": "B"}},
			}}},
		})
	})

	assert.Equal(t, []string{"A"}, c.FeaturedArticleTitles(context.Background(), 1))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_FeaturedArticleFromMainPage(t *testing.T) {
	tests := []struct {
		name string
		tfa  map[string]any
		want string
	}{
		{name: "desktop url", want: "Battle of Hastings", tfa: map[string]any{
			"title":        "ignored",
			"content_urls": map[string]any{"desktop": map[string]any{"page": "https://en.wikipedia.org/wiki/Battle_of_Hastings"}},
		}},
		{name: "title", want: "Battle of Hastings", tfa: map[string]any{"title": "Battle_of_Hastings"}},
		{name: "normalized title", want: "Battle of Hastings", tfa: map[string]any{"normalizedtitle": "Battle of Hastings"}},
		{name: "display title", want: "Battle of Hastings", tfa: map[string]any{"displaytitle": "<i>Battle</i> of Hastings"}},
		{name: "nothing usable", want: "", tfa: map[string]any{"extract": "text"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/rest_v1/feed/featured/2024/03/05", r.URL.Path)
				writeJSON(t, w, map[string]any{"tfa": tt.tfa})
			})
			date := time.Date(2024, 3, 5, 23, 30, 0, 0, time.UTC)
			assert.Equal(t, tt.want, c.FeaturedArticleFromMainPage(context.Background(), date))
		})
	}

	t.Run("no tfa", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, map[string]any{"mostread": map[string]any{}})
		})
		assert.Empty(t, c.FeaturedArticleFromMainPage(context.Background(), time.Now()))
	})
}

func TestClient_FeaturedArticleFromFeed(t *testing.T) {
	atom := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Wikipedia featured articles feed</title>
  <entry>
    <title>Featured article: March 4</title>
    <updated>2024-03-04T00:00:00Z</updated>
    <summary type="html">&lt;p&gt;The &lt;b&gt;&lt;a href="https://en.wikipedia.org/wiki/Old_Article"&gt;Old&lt;/a&gt;&lt;/b&gt; is old.&lt;/p&gt;</summary>
  </entry>
  <entry>
    <title>Featured article: March 5</title>
    <updated>2024-03-05T00:00:00Z</updated>
    <summary type="html">&lt;p&gt;A &lt;a href="/wiki/Help:Intro"&gt;help&lt;/a&gt; link and &lt;b&gt;&lt;a href="/wiki/Battle_of_Hastings"&gt;the battle&lt;/a&gt;&lt;/b&gt; was fought.&lt;/p&gt;</summary>
  </entry>
</feed>`

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "featuredfeed", q.Get("action"))
		assert.Equal(t, "atom", q.Get("feedformat"))
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(atom))
	})

	ctx := context.Background()
	assert.Equal(t, "Battle of Hastings", c.FeaturedArticleFromFeed(ctx, time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, "Old Article", c.FeaturedArticleFromFeed(ctx, time.Date(2024, 3, 4, 1, 0, 0, 0, time.UTC)))
	assert.Empty(t, c.FeaturedArticleFromFeed(ctx, time.Date(2024, 3, 6, 1, 0, 0, 0, time.UTC)))
}

func TestClient_ArticleHTML(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		q := r.URL.Query()
		assert.Equal(t, "parse", q.Get("action"))
		assert.Equal(t, "Alpha Beta", q.Get("page"))
		writeJSON(t, w, map[string]any{"parse": map[string]any{"title": "Alpha Beta", "text": "<p>hello</p>"}})
	})
	ctx := context.Background()

	assert.Equal(t, "<p>hello</p>", c.ArticleHTML(ctx, "Alpha Beta"))
	assert.Equal(t, "<p>hello</p>", c.ArticleContent(ctx, "Alpha Beta"))
	assert.Equal(t, int32(2), calls.Load(), "not cached without ArticleTTL")

	c.ArticleTTL = time.Hour
	assert.Equal(t, "<p>hello</p>", c.ArticleHTML(ctx, "Alpha Beta"))
	assert.Equal(t, "<p>hello</p>", c.ArticleHTML(ctx, "Alpha Beta"))
	assert.Equal(t, int32(3), calls.Load(), "second call served from cache")
}

func TestClient_ArticleSummary(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/rest_v1/page/summary/AC%2FDC", r.URL.EscapedPath())
		writeJSON(t, w, map[string]any{
			"title":        "AC/DC",
			"extract":      "Australian rock band.",
			"description":  "Australian rock band",
			"thumbnail":    map[string]any{"source": "https://upload.example/acdc.jpg"},
			"content_urls": map[string]any{"desktop": map[string]any{"page": "https://en.wikipedia.org/wiki/AC/DC"}},
		})
	})

	s := c.ArticleSummary(context.Background(), "AC/DC")
	require.NotNil(t, s)
	assert.Equal(t, "AC/DC", s.Title)
	assert.Equal(t, "Australian rock band.", s.Extract)
	assert.Equal(t, "https://upload.example/acdc.jpg", s.Thumbnail)
	assert.Equal(t, "https://en.wikipedia.org/wiki/AC/DC", s.URL)
}

func TestClient_ExtractCategoriesSections(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("prop") == "extracts":
			assert.Equal(t, "1", q.Get("exintro"))
			writeJSON(t, w, pages(map[string]any{"extract": "  Lead text.  "}))
		case q.Get("prop") == "categories":
			assert.Equal(t, "!hidden", q.Get("clshow"))
			writeJSON(t, w, pages(map[string]any{"categories": []any{
				map[string]any{"title": "Category:Cities"}, map[string]any{"title": "Category:Ports"},
			}}))
		case q.Get("action") == "parse" && q.Get("prop") == "sections":
			writeJSON(t, w, map[string]any{"parse": map[string]any{"sections": []any{
				map[string]any{"toclevel": 1, "level": "2", "line": "<i>History</i>", "index": "1", "anchor": "History"},
				map[string]any{"toclevel": 2, "level": "3", "line": "Early", "index": "2", "anchor": "Early"},
			}}})
		default:
			t.Errorf("unexpected request %s", r.URL)
		}
	})
	ctx := context.Background()

	assert.Equal(t, "Lead text.", c.ArticleExtract(ctx, "X"))
	assert.Equal(t, []string{"Cities", "Ports"}, c.Categories(ctx, "X"))

	sections := c.Sections(ctx, "X")
	require.Len(t, sections, 2)
	assert.Equal(t, "History", sections[0].Line)
	assert.Equal(t, 2, sections[0].Level)
	assert.Equal(t, 3, sections[1].Level)
	assert.Equal(t, "Early", sections[1].Anchor)
}

func TestClient_ArticleShortDescription(t *testing.T) {
	tests := []struct {
		name    string
		local   string
		central string
		want    string
	}{
		{name: "local accepted", local: "Capital of France", central: "city", want: "Capital of France"},
		{name: "local rejected, central accepted", local: "City, port, capital, and more", central: "Capital city", want: "Capital city"},
		{name: "both rejected", local: "One. Two.", central: strings.Repeat("x", 101), want: ""},
		{name: "empty", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				q := r.URL.Query()
				assert.Equal(t, "description", q.Get("prop"))
				desc := tt.local
				if q.Get("descprefersource") == "central" {
					desc = tt.central
				}
				writeJSON(t, w, pages(map[string]any{"description": desc}))
			})
			assert.Equal(t, tt.want, c.ArticleShortDescription(context.Background(), "Paris"))
		})
	}
}

func TestValidShortDescription(t *testing.T) {
	tests := []struct {
		desc string
		want bool
	}{
		{"Capital and largest city of France", true},
		{"", false},
		{strings.Repeat("a", 100), true},
		{strings.Repeat("a", 101), false},
		{"First sentence. Second sentence.", false},
		{"Is it? Yes!", false},
		{"Painter, sculptor, architect", true},
		{"Painter, sculptor, architect, poet", false},
		{"Short one.", true},
		{strings.Repeat("a", 61) + ".", false},
		{strings.Repeat("a", 59) + ".", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidShortDescription(tt.desc), "%q", tt.desc)
	}
}

func TestClient_ArticleImages_PrioritizeInfobox(t *testing.T) {
	var infoCalls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("action") == "parse":
			writeJSON(t, w, map[string]any{"parse": map[string]any{"text": `
<table class="infobox"><tr><td>
  <a href="/wiki/File:Hero_Shot.jpg" class="mw-file-description"><img src="//upload.example/thumb/a/ab/Hero_Shot.jpg/220px-Hero_Shot.jpg"></a>
  <span><img src="//upload.example/thumb/c/cd/Map%20View.png/220px-Map%20View.png"></span>
</td></tr></table>
<p>Body <a href="/wiki/File:Other.jpg">file</a></p>`}})
		case q.Get("prop") == "images":
			files := []any{}
			for _, f := range []string{"File:Aardvark.jpg", "File:Commons-logo.svg", "File:Beaver.jpg", "File:Hero Shot.jpg", "File:Crane.jpg", "File:Map View.png", "File:Doc.pdf"} {
				files = append(files, map[string]any{"title": f})
			}
			writeJSON(t, w, pages(map[string]any{"images": files}))
		case q.Get("prop") == "imageinfo":
			infoCalls.Add(1)
			if q.Get("titles") == "File:Beaver.jpg" {
				http.Error(w, "rate limited", http.StatusTooManyRequests)
				return
			}
			writeJSON(t, w, imageInfoResponse(q.Get("titles")))
		default:
			t.Errorf("unexpected request %s", r.URL)
		}
	})

	images := c.ArticleImages(context.Background(), "Animals", true)
	titles := make([]string, 0, len(images))
	for _, img := range images {
		titles = append(titles, img.Title)
	}
	// infobox files first, then the rest in API order; the failed lookup is dropped
	assert.Equal(t, []string{"File:Hero Shot.jpg", "File:Map View.png", "File:Aardvark.jpg"}, titles)
	assert.Equal(t, int32(4), infoCalls.Load(), "one imageinfo request per image, at most four")
}

func TestClient_DidYouKnowFacts(t *testing.T) {
	dyk := `<div><ul>
<li>... that the <b><a href="/wiki/Blue_Whale" title="Blue Whale">blue whale</a></b> <i>(pictured)</i> is the largest animal known to have ever existed?</li>
<li>... that <a href="/wiki/Tea">tea</a> was once used as currency in <b><a href="/wiki/Tibet">Tibet</a></b> and central Asia?</li>
<li>... that short?</li>
<li>Archives – Start a new article – Nominate an article</li>
<li>... that a template nomination page links to Wikipedia:Did you know somewhere?</li>
<li>... that <a href="/wiki/Plain_Link">plain links</a> count as facts even without a bold subject link?</li>
</ul></div>`

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "Template:Did you know", q.Get("page"))
		writeJSON(t, w, map[string]any{"parse": map[string]any{"text": dyk}})
	})

	facts := c.DidYouKnowFacts(context.Background(), 10)
	require.Len(t, facts, 3)

	assert.Equal(t, "... that the blue whale is the largest animal known to have ever existed?", facts[0].Text)
	assert.Equal(t, "Blue Whale", facts[0].LinkedArticle)
	assert.NotContains(t, facts[0].HTML, "pictured")
	assert.Contains(t, facts[0].HTML, `<a href="/wiki/Blue_Whale"`)

	assert.Equal(t, "Tibet", facts[1].LinkedArticle, "bold link wins over earlier plain links")
	assert.Empty(t, facts[2].LinkedArticle)

	assert.Len(t, c.DidYouKnowFacts(context.Background(), 1), 1)
}

func TestClient_TrendingArticles(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/metrics/pageviews/top/en.wikipedia/all-access/2024/01/31", r.URL.Path)
		writeJSON(t, w, map[string]any{"items": []any{map[string]any{"articles": []any{
			map[string]any{"article": "Main_Page", "views": 5000000, "rank": 1},
			map[string]any{"article": "Special:Search", "views": 900000, "rank": 2},
			map[string]any{"article": "Taylor_Swift", "views": 300000, "rank": 3},
			map[string]any{"article": "-", "views": 200000, "rank": 4},
			map[string]any{"article": "Super_Bowl", "views": 100000, "rank": 5},
			map[string]any{"article": "Moon", "views": 90000, "rank": 6},
		}}}})
	})

	res := c.TrendingArticles(context.Background(), time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC), 2)
	require.Len(t, res, 2)
	assert.Equal(t, "Taylor Swift", res[0].Title)
	assert.Equal(t, int64(300000), res[0].Views)
	assert.Equal(t, 3, res[0].Rank)
	assert.Equal(t, "Super Bowl", res[1].Title)
}

func TestClient_RandomArticles(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "random", q.Get("list"))
		assert.Equal(t, "0", q.Get("rnnamespace"))
		writeJSON(t, w, map[string]any{"query": map[string]any{"random": []any{
			map[string]any{"title": "One"}, map[string]any{"title": "Two"},
		}}})
	})
	assert.Equal(t, []string{"One", "Two"}, c.RandomArticles(context.Background(), 2))
}

func TestFileFromHref(t *testing.T) {
	assert.Equal(t, "File:A_b.jpg", fileFromHref("/wiki/File:A_b.jpg"))
	assert.Equal(t, "File:X.png", fileFromHref("https://en.wikipedia.org/wiki/Image:X.png"))
	assert.Empty(t, fileFromHref("/wiki/Article"))
}

func TestArticleBaseURL(t *testing.T) {
	assert.Equal(t, "https://de.wikipedia.org/wiki/", ArticleBaseURL("https://de.wikipedia.org/w/api.php"))
	assert.Equal(t, "http://127.0.0.1:8080/wiki/", ArticleBaseURL("http://127.0.0.1:8080/w/api.php"))
	assert.Equal(t, "https://en.wikipedia.org/wiki/", ArticleBaseURL("not a url"))
}
