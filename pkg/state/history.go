// Package state keeps the reader's own records: viewed articles, rabbit holes, donation reminder
// and home feed settings, and game streaks. Every record is a JSON value in a cache.Store.
package state

import (
	"context"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/wikidaily/pkg/cache"
	"github.com/umputun/wikidaily/pkg/domain"
)

const (
	// HistoryKey is the store key of the viewed articles list
	HistoryKey = "wikipedia_history"
	// HistoryLimit caps the viewed articles list
	HistoryLimit = 100
)

// History is the list of viewed articles, newest first, one entry per title
type History struct {
	kv    cache.Store
	locks cache.Locks
}

// NewHistory makes a history over kv
func NewHistory(kv cache.Store) *History {
	return &History{kv: kv}
}

// Add puts item at the front, replacing an earlier entry of the same title.
// A zero timestamp is set to now.
func (h *History) Add(ctx context.Context, item domain.HistoryItem) []domain.HistoryItem {
	if item.Timestamp == 0 {
		item.Timestamp = time.Now().UnixMilli()
	}
	items, _ := cache.Mutate(ctx, h.kv, &h.locks, HistoryKey, 0, func(items *[]domain.HistoryItem) error {
		*items = addToHistory(*items, item)
		return nil
	})
	return items
}

func addToHistory(items []domain.HistoryItem, item domain.HistoryItem) []domain.HistoryItem {
	res := make([]domain.HistoryItem, 0, min(len(items)+1, HistoryLimit))
	res = append(res, item)
	for _, it := range items {
		if len(res) >= HistoryLimit {
			break
		}
		if it.Title != item.Title {
			res = append(res, it)
		}
	}
	return res
}

// List returns the history, newest first. Unreadable history is treated as empty.
func (h *History) List(ctx context.Context) []domain.HistoryItem {
	var items []domain.HistoryItem
	if _, err := cache.LoadJSON(ctx, h.kv, HistoryKey, &items); err != nil {
		lgr.Printf("[WARN] STORAGE_ERROR: %v", err)
		return []domain.HistoryItem{}
	}
	if items == nil {
		return []domain.HistoryItem{}
	}
	return items
}

// Titles returns up to n most recent titles
func (h *History) Titles(ctx context.Context, n int) []string {
	items := h.List(ctx)
	res := make([]string, 0, min(n, len(items)))
	for _, it := range items[:min(n, len(items))] {
		res = append(res, it.Title)
	}
	return res
}

// Clear drops the history
func (h *History) Clear(ctx context.Context) error {
	unlock := h.locks.Lock(HistoryKey)
	defer unlock()
	return h.kv.Delete(ctx, HistoryKey)
}
