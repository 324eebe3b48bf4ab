package wiki

import (
	"context"
	"net/url"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/umputun/wikidaily/pkg/domain"
)

const (
	searchLimit     = 10
	imagesPerResult = 4
)

type searchResponse struct {
	Query struct {
		Search []struct {
			Title   string `json:"title"`
			PageID  int64  `json:"pageid"`
			Snippet string `json:"snippet"`
		} `json:"search"`
	} `json:"query"`
}

// Search runs a full-text search and enriches every result with up to four images.
// It returns once all image lookups have settled.
func (c *Client) Search(ctx context.Context, query string) []domain.SearchResult {
	results, err := c.search(ctx, query, searchLimit)
	if err != nil {
		logFail("API_SEARCH_ERROR", err)
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range results {
		g.Go(func() error {
			images := c.ArticleImages(gctx, results[i].Title, false)
			if len(images) > imagesPerResult {
				images = images[:imagesPerResult]
			}
			results[i].Images = images
			return nil
		})
	}
	_ = g.Wait() // image lookups are fail-soft
	return results
}

// SearchMoreLike returns articles similar to title using the "morelike:" search keyword
func (c *Client) SearchMoreLike(ctx context.Context, title string, limit int) []domain.SearchResult {
	results, err := c.search(ctx, "morelike:"+title, limit)
	if err != nil {
		logFail("API_MORELIKE_ERROR", err)
		return nil
	}
	return results
}

func (c *Client) search(ctx context.Context, query string, limit int) ([]domain.SearchResult, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", query)
	params.Set("srnamespace", "0")
	params.Set("srlimit", strconv.Itoa(limit))
	params.Set("srprop", "snippet")

	var resp searchResponse
	if err := c.query(ctx, params, &resp); err != nil {
		return nil, err
	}

	res := make([]domain.SearchResult, 0, len(resp.Query.Search))
	for _, s := range resp.Query.Search {
		res = append(res, domain.SearchResult{
			Title:   s.Title,
			PageID:  s.PageID,
			Snippet: c.stripTags(s.Snippet),
		})
	}
	return res, nil
}

// RandomArticles returns n random main-namespace article titles
func (c *Client) RandomArticles(ctx context.Context, n int) []string {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "random")
	params.Set("rnnamespace", "0")
	params.Set("rnlimit", strconv.Itoa(n))

	var resp struct {
		Query struct {
			Random []struct {
				Title string `json:"title"`
			} `json:"random"`
		} `json:"query"`
	}
	if err := c.query(ctx, params, &resp); err != nil {
		logFail("API_RANDOM_ERROR", err)
		return nil
	}

	res := make([]string, 0, len(resp.Query.Random))
	for _, r := range resp.Query.Random {
		res = append(res, r.Title)
	}
	return res
}
