package state

import (
	"context"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/wikidaily/pkg/cache"
	"github.com/umputun/wikidaily/pkg/domain"
)

// FeedSettingsKey is the store key of the home feed settings
const FeedSettingsKey = "homePageFeedSettings"

// DefaultFeedSettings shows every home feed block
var DefaultFeedSettings = domain.FeedSettings{ShowFeatured: true, ShowDidYouKnow: true, ShowTrending: true, ShowRecommendations: true}

// FeedSettings keeps the home feed block selection
type FeedSettings struct {
	kv cache.Store
}

// NewFeedSettings makes feed settings over kv
func NewFeedSettings(kv cache.Store) *FeedSettings {
	return &FeedSettings{kv: kv}
}

// Get returns the saved settings or the defaults
func (f *FeedSettings) Get(ctx context.Context) domain.FeedSettings {
	s := DefaultFeedSettings
	ok, err := cache.LoadJSON(ctx, f.kv, FeedSettingsKey, &s)
	if err != nil {
		lgr.Printf("[WARN] STORAGE_ERROR: %v", err)
	}
	if !ok || err != nil {
		return DefaultFeedSettings
	}
	return s
}

// Save stores the settings
func (f *FeedSettings) Save(ctx context.Context, s domain.FeedSettings) error {
	return cache.SaveJSON(ctx, f.kv, FeedSettingsKey, s, 0)
}
