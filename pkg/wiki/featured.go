package wiki

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/umputun/wikidaily/pkg/cache"
	"github.com/umputun/wikidaily/pkg/daily"
	"github.com/umputun/wikidaily/pkg/extract"
)

// FeaturedListPage is the index page linking every featured article
const FeaturedListPage = "Wikipedia:Featured articles"

// FeaturedArticleTitles collects up to max featured article titles, following plcontinue
// pagination and deduplicating in order. The list is cached for FeaturedTitlesTTL.
func (c *Client) FeaturedArticleTitles(ctx context.Context, max int) []string {
	var cached []string
	if ok, err := cache.LoadJSON(ctx, c.Cache, FeaturedTitlesKey, &cached); err != nil {
		logFail("CACHE_READ_ERROR", err)
	} else if ok && len(cached) > 0 {
		if len(cached) > max {
			cached = cached[:max]
		}
		return cached
	}

	titles, err := c.featuredTitles(ctx, max)
	if err != nil {
		logFail("API_FEATURED_LIST_ERROR", err)
		if len(titles) == 0 {
			return nil
		}
		// keep the partial list but don't cache it
		return titles
	}
	if len(titles) > 0 {
		if err := cache.SaveJSON(ctx, c.Cache, FeaturedTitlesKey, titles, c.FeaturedTitlesTTL); err != nil {
			logFail("CACHE_WRITE_ERROR", err)
		}
	}
	return titles
}

func (c *Client) featuredTitles(ctx context.Context, max int) ([]string, error) {
	seen := map[string]bool{}
	titles := []string{}
	cont := ""
	for len(titles) < max {
		params := url.Values{}
		params.Set("action", "query")
		params.Set("titles", FeaturedListPage)
		params.Set("prop", "links")
		params.Set("plnamespace", "0")
		params.Set("pllimit", "max")
		if cont != "" {
			params.Set("plcontinue", cont)
		}

		var resp struct {
			Continue struct {
				PLContinue string `json:"plcontinue"`
			} `json:"continue"`
			Query struct {
				Pages []struct {
					Links []struct {
						NS    int    `json:"ns"`
						Title string `json:"title"`
					} `json:"links"`
				} `json:"pages"`
			} `json:"query"`
		}
		if err := c.query(ctx, params, &resp); err != nil {
			return titles, err
		}

		for _, p := range resp.Query.Pages {
			for _, l := range p.Links {
				if l.NS != 0 || seen[l.Title] {
					continue
				}
				seen[l.Title] = true
				titles = append(titles, l.Title)
				if len(titles) >= max {
					return titles, nil
				}
			}
		}

		if resp.Continue.PLContinue == "" || resp.Continue.PLContinue == cont {
			break
		}
		cont = resp.Continue.PLContinue
	}
	return titles, nil
}

type featuredContent struct {
	TFA *struct {
		Title           string `json:"title"`
		NormalizedTitle string `json:"normalizedtitle"`
		DisplayTitle    string `json:"displaytitle"`
		Titles          struct {
			Canonical  string `json:"canonical"`
			Normalized string `json:"normalized"`
			Display    string `json:"display"`
		} `json:"titles"`
		ContentURLs struct {
			Desktop struct {
				Page string `json:"page"`
			} `json:"desktop"`
		} `json:"content_urls"`
	} `json:"tfa"`
}

// FeaturedArticleFromMainPage asks the featured content feed for the day's featured article.
// The title is taken from the desktop page URL, then the title, normalized title and
// display title fields in that order. Returns "" when none is usable.
func (c *Client) FeaturedArticleFromMainPage(ctx context.Context, date time.Time) string {
	date = date.UTC()
	u := c.restURL(c.RESTURL, "feed", "featured", date.Format("2006"), date.Format("01"), date.Format("02"))

	var resp featuredContent
	if err := c.getJSON(ctx, u, &resp); err != nil {
		logFail("API_FEATURED_ERROR", err)
		return ""
	}
	if resp.TFA == nil {
		logFail("API_FEATURED_ERROR", fmt.Errorf("no featured article for %s", daily.DateKey(date)))
		return ""
	}

	tfa := resp.TFA
	if page := tfa.ContentURLs.Desktop.Page; page != "" {
		if idx := strings.Index(page, "/wiki/"); idx >= 0 {
			if title, ok := extract.TitleFromHref(page[idx:]); ok {
				return title
			}
		}
	}
	for _, candidate := range []string{tfa.Title, tfa.Titles.Canonical, tfa.NormalizedTitle, tfa.Titles.Normalized} {
		if t := extract.NormalizeTitle(candidate); t != "" {
			return t
		}
	}
	for _, display := range []string{tfa.DisplayTitle, tfa.Titles.Display} {
		if t := c.stripTags(display); t != "" {
			return t
		}
	}
	return ""
}

// FeaturedArticleFromFeed reads the featured article Atom feed and returns the title
// featured on date, the first bold article link of that day's entry.
func (c *Client) FeaturedArticleFromFeed(ctx context.Context, date time.Time) string {
	body, err := c.fetch(ctx, c.FeaturedFeedURL, "application/atom+xml")
	if err != nil {
		logFail("API_FEATURED_FEED_ERROR", err)
		return ""
	}
	defer body.Close()

	feed, err := gofeed.NewParser().Parse(body)
	if err != nil {
		logFail("API_FEATURED_FEED_ERROR", fmt.Errorf("parse feed: %w", err))
		return ""
	}

	key := daily.DateKey(date)
	for _, item := range feed.Items {
		published := item.PublishedParsed
		if published == nil {
			published = item.UpdatedParsed
		}
		if published == nil || daily.DateKey(*published) != key {
			continue
		}

		summary := item.Content
		if summary == "" {
			summary = item.Description
		}
		if title := firstArticleLink(summary); title != "" {
			return title
		}
	}
	return ""
}

// firstArticleLink prefers a bold link, the way the featured blurb names its subject
func firstArticleLink(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	for _, sel := range []string{"b a[href]", "a[href]"} {
		var title string
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			href, _ := s.Attr("href")
			if t, ok := extract.TitleFromHref(href); ok {
				title = t
				return false
			}
			return true
		})
		if title != "" {
			return title
		}
	}
	return ""
}
