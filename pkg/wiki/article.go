package wiki

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/umputun/wikidaily/pkg/domain"
)

// article HTML is cached under this prefix when ArticleTTL is set
const articleCachePrefix = "wiki_articleHtml_"

// short description quality gates
const (
	maxDescriptionLen       = 100
	maxDescriptionPeriodLen = 60
	maxDescriptionCommas    = 2
	maxDescriptionSentences = 1
)

type parseResponse struct {
	Parse struct {
		Title    string `json:"title"`
		Text     string `json:"text"`
		Sections []struct {
			TocLevel int    `json:"toclevel"`
			Level    string `json:"level"`
			Line     string `json:"line"`
			Number   string `json:"number"`
			Index    string `json:"index"`
			Anchor   string `json:"anchor"`
		} `json:"sections"`
	} `json:"parse"`
}

// ArticleHTML returns the rendered HTML of an article, or "" on failure
func (c *Client) ArticleHTML(ctx context.Context, title string) string {
	res, err := c.articleHTML(ctx, title)
	if err != nil {
		logFail("API_CONTENT_ERROR", err)
		return ""
	}
	return res
}

// ArticleContent is ArticleHTML with the ErrorLoadingContent text in place of an empty result
func (c *Client) ArticleContent(ctx context.Context, title string) string {
	if res := c.ArticleHTML(ctx, title); res != "" {
		return res
	}
	return ErrorLoadingContent
}

func (c *Client) articleHTML(ctx context.Context, title string) (string, error) {
	key := articleCachePrefix + titleParam(title)
	if c.ArticleTTL > 0 {
		if cached, ok, err := c.Cache.Get(ctx, key); err == nil && ok {
			return cached, nil
		}
	}

	params := url.Values{}
	params.Set("action", "parse")
	params.Set("page", title)
	params.Set("prop", "text")
	params.Set("redirects", "1")
	params.Set("disableeditsection", "1")

	var resp parseResponse
	if err := c.query(ctx, params, &resp); err != nil {
		return "", fmt.Errorf("parse %q: %w", title, err)
	}
	if resp.Parse.Text == "" {
		return "", fmt.Errorf("parse %q: empty content", title)
	}

	if c.ArticleTTL > 0 {
		if err := c.Cache.Set(ctx, key, resp.Parse.Text, c.ArticleTTL); err != nil {
			logFail("CACHE_WRITE_ERROR", err)
		}
	}
	return resp.Parse.Text, nil
}

// ArticleSummary returns the REST summary of an article, nil on failure
func (c *Client) ArticleSummary(ctx context.Context, title string) *domain.ArticleSummary {
	var resp struct {
		Title       string `json:"title"`
		Extract     string `json:"extract"`
		Description string `json:"description"`
		Thumbnail   *struct {
			Source string `json:"source"`
		} `json:"thumbnail"`
		ContentURLs struct {
			Desktop struct {
				Page string `json:"page"`
			} `json:"desktop"`
		} `json:"content_urls"`
	}
	if err := c.getJSON(ctx, c.restURL(c.RESTURL, "page", "summary", titleParam(title)), &resp); err != nil {
		logFail("API_SUMMARY_ERROR", err)
		return nil
	}

	res := &domain.ArticleSummary{
		Title:       resp.Title,
		Extract:     resp.Extract,
		Description: resp.Description,
		URL:         resp.ContentURLs.Desktop.Page,
	}
	if res.Title == "" {
		res.Title = title
	}
	if resp.Thumbnail != nil {
		res.Thumbnail = resp.Thumbnail.Source
	}
	return res
}

// ArticleExtract returns the plain-text lead section of an article
func (c *Client) ArticleExtract(ctx context.Context, title string) string {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("prop", "extracts")
	params.Set("exintro", "1")
	params.Set("explaintext", "1")
	params.Set("redirects", "1")
	params.Set("titles", title)

	var resp struct {
		Query struct {
			Pages []struct {
				Extract string `json:"extract"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := c.query(ctx, params, &resp); err != nil {
		logFail("API_EXTRACT_ERROR", err)
		return ""
	}
	if len(resp.Query.Pages) == 0 {
		return ""
	}
	return strings.TrimSpace(resp.Query.Pages[0].Extract)
}

// Categories returns the visible categories of an article without the "Category:" prefix
func (c *Client) Categories(ctx context.Context, title string) []string {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("prop", "categories")
	params.Set("clshow", "!hidden")
	params.Set("cllimit", "max")
	params.Set("redirects", "1")
	params.Set("titles", title)

	var resp struct {
		Query struct {
			Pages []struct {
				Categories []struct {
					Title string `json:"title"`
				} `json:"categories"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := c.query(ctx, params, &resp); err != nil {
		logFail("API_CATEGORIES_ERROR", err)
		return nil
	}

	var res []string
	for _, p := range resp.Query.Pages {
		for _, cat := range p.Categories {
			res = append(res, strings.TrimPrefix(cat.Title, "Category:"))
		}
	}
	return res
}

// Sections returns the table of contents of an article
func (c *Client) Sections(ctx context.Context, title string) []domain.Section {
	params := url.Values{}
	params.Set("action", "parse")
	params.Set("page", title)
	params.Set("prop", "sections")
	params.Set("redirects", "1")

	var resp parseResponse
	if err := c.query(ctx, params, &resp); err != nil {
		logFail("API_SECTIONS_ERROR", err)
		return nil
	}

	res := make([]domain.Section, 0, len(resp.Parse.Sections))
	for _, s := range resp.Parse.Sections {
		level, err := strconv.Atoi(s.Level)
		if err != nil {
			level = s.TocLevel + 1
		}
		res = append(res, domain.Section{
			Index:  s.Index,
			Level:  level,
			Line:   c.stripTags(s.Line),
			Anchor: s.Anchor,
		})
	}
	return res
}

// ArticleShortDescription returns the short description of an article, preferring the local
// one and falling back to the central (Wikidata) one. Descriptions failing the quality gates
// are skipped, "" means no acceptable description was found.
func (c *Client) ArticleShortDescription(ctx context.Context, title string) string {
	for _, source := range []string{"local", "central"} {
		params := url.Values{}
		params.Set("action", "query")
		params.Set("prop", "description")
		params.Set("descprefersource", source)
		params.Set("redirects", "1")
		params.Set("titles", title)

		var resp struct {
			Query struct {
				Pages []struct {
					Description string `json:"description"`
				} `json:"pages"`
			} `json:"query"`
		}
		if err := c.query(ctx, params, &resp); err != nil {
			logFail("API_DESCRIPTION_ERROR", err)
			continue
		}
		if len(resp.Query.Pages) == 0 {
			continue
		}
		if desc := strings.TrimSpace(resp.Query.Pages[0].Description); ValidShortDescription(desc) {
			return desc
		}
	}
	return ""
}

// ValidShortDescription applies the quality gates to a short description: at most 100
// characters, at most one sentence terminator, at most two commas and no trailing period
// when longer than 60 characters.
func ValidShortDescription(desc string) bool {
	if desc == "" {
		return false
	}
	length := utf8.RuneCountInString(desc)
	if length > maxDescriptionLen {
		return false
	}
	if strings.Count(desc, ",") > maxDescriptionCommas {
		return false
	}
	if strings.Count(desc, ".")+strings.Count(desc, "!")+strings.Count(desc, "?") > maxDescriptionSentences {
		return false
	}
	if length > maxDescriptionPeriodLen && strings.HasSuffix(desc, ".") {
		return false
	}
	return true
}
