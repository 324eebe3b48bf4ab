// Package games holds what the daily puzzles share: resolving the featured article of a day.
// The puzzles themselves live in sub-packages.
package games

import (
	"context"
	"errors"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/wikidaily/pkg/daily"
)

// ErrNoFeaturedArticle is returned when no source can name the day's featured article
var ErrNoFeaturedArticle = errors.New("no featured article")

// DefaultFeaturedListMax bounds the featured articles list used as the last resort
const DefaultFeaturedListMax = 2500

// FeaturedSource is the part of the Wikipedia client naming featured articles
type FeaturedSource interface {
	FeaturedArticleFromMainPage(ctx context.Context, date time.Time) string
	FeaturedArticleFromFeed(ctx context.Context, date time.Time) string
	FeaturedArticleTitles(ctx context.Context, max int) []string
}

// Resolver picks the featured article of a day: the main page feed first, then the featured
// article Atom feed, then a deterministic pick over the list of all featured articles
type Resolver struct {
	Source  FeaturedSource
	ListMax int
}

// Title returns the featured article title of the UTC day of date
func (r *Resolver) Title(ctx context.Context, date time.Time) (string, error) {
	if title := r.Source.FeaturedArticleFromMainPage(ctx, date); title != "" {
		return title, nil
	}
	lgr.Printf("[DEBUG] main page has no featured article for %s, trying the feed", daily.DateKey(date))

	if title := r.Source.FeaturedArticleFromFeed(ctx, date); title != "" {
		return title, nil
	}
	lgr.Printf("[DEBUG] featured feed has no entry for %s, picking from the featured list", daily.DateKey(date))

	listMax := r.ListMax
	if listMax <= 0 {
		listMax = DefaultFeaturedListMax
	}
	if title := daily.PickDailyFeaturedTitle(r.Source.FeaturedArticleTitles(ctx, listMax), date); title != "" {
		return title, nil
	}
	return "", ErrNoFeaturedArticle
}
