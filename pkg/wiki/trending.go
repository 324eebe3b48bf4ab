package wiki

import (
	"context"
	"strings"
	"time"

	"github.com/umputun/wikidaily/pkg/domain"
	"github.com/umputun/wikidaily/pkg/extract"
)

// TrendingArticles returns the most viewed articles of date from the pageview metrics,
// the main page and special pages skipped. Metrics for a day are published the next day.
func (c *Client) TrendingArticles(ctx context.Context, date time.Time, limit int) []domain.TrendingArticle {
	date = date.UTC()
	u := c.restURL(c.MetricsURL, "pageviews", "top", c.Project, "all-access",
		date.Format("2006"), date.Format("01"), date.Format("02"))

	var resp struct {
		Items []struct {
			Articles []struct {
				Article string `json:"article"`
				Views   int64  `json:"views"`
				Rank    int    `json:"rank"`
			} `json:"articles"`
		} `json:"items"`
	}
	if err := c.getJSON(ctx, u, &resp); err != nil {
		logFail("API_TRENDING_ERROR", err)
		return nil
	}

	var res []domain.TrendingArticle
	for _, item := range resp.Items {
		for _, a := range item.Articles {
			title := extract.NormalizeTitle(a.Article)
			if title == "" || title == "-" || strings.EqualFold(title, "Main Page") || extract.IsSpecialNamespace(title) {
				continue
			}
			res = append(res, domain.TrendingArticle{Title: title, Views: a.Views, Rank: a.Rank})
			if limit > 0 && len(res) >= limit {
				return res
			}
		}
	}
	return res
}
