package state

import (
	"context"
	"errors"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/wikidaily/pkg/cache"
	"github.com/umputun/wikidaily/pkg/domain"
)

// ReminderKey is the store key of the donation reminder settings
const ReminderKey = "wikipediaAppDonationReminderSettings"

// validation errors of reminder settings
var (
	ErrInvalidAmount    = errors.New("donation amount must be positive")
	ErrInvalidFrequency = errors.New("reminder frequency must be a positive number of articles")
)

// DefaultReminder is used until the reader saves their own settings
var DefaultReminder = domain.ReminderSettings{Amount: 3, Frequency: 10}

// Reminders keeps the donation reminder settings and the count of articles read since
type Reminders struct {
	kv    cache.Store
	locks cache.Locks
}

// NewReminders makes reminder settings over kv
func NewReminders(kv cache.Store) *Reminders {
	return &Reminders{kv: kv}
}

// Settings returns the saved settings or the defaults
func (r *Reminders) Settings(ctx context.Context) domain.ReminderSettings {
	s := DefaultReminder
	if _, err := cache.LoadJSON(ctx, r.kv, ReminderKey, &s); err != nil {
		lgr.Printf("[WARN] STORAGE_ERROR: %v", err)
		return DefaultReminder
	}
	return s
}

// Save validates and stores new settings, the articles counter starts over
func (r *Reminders) Save(ctx context.Context, s domain.ReminderSettings) (domain.ReminderSettings, error) {
	if s.Amount <= 0 {
		return domain.ReminderSettings{}, ErrInvalidAmount
	}
	if s.Frequency <= 0 {
		return domain.ReminderSettings{}, ErrInvalidFrequency
	}
	return r.update(ctx, func(cur *domain.ReminderSettings) {
		*cur = s
		cur.ArticlesViewedSinceReminderSet = 0
	}), nil
}

// RecordArticleView counts a read article while the reminder is enabled
func (r *Reminders) RecordArticleView(ctx context.Context) domain.ReminderSettings {
	return r.update(ctx, func(cur *domain.ReminderSettings) {
		if cur.ReminderEnabled {
			cur.ArticlesViewedSinceReminderSet++
		}
	})
}

// Due reports whether the reader has read enough articles to be reminded
func Due(s domain.ReminderSettings) bool {
	return s.ReminderEnabled && s.Frequency > 0 && s.ArticlesViewedSinceReminderSet >= s.Frequency
}

// Acknowledge restarts the articles counter after a reminder was shown
func (r *Reminders) Acknowledge(ctx context.Context) domain.ReminderSettings {
	return r.update(ctx, func(cur *domain.ReminderSettings) {
		cur.ArticlesViewedSinceReminderSet = 0
	})
}

func (r *Reminders) update(ctx context.Context, fn func(cur *domain.ReminderSettings)) domain.ReminderSettings {
	s, _ := cache.Mutate(ctx, r.kv, &r.locks, ReminderKey, 0, func(cur *domain.ReminderSettings) error {
		if cur.Frequency == 0 && cur.Amount == 0 {
			*cur = DefaultReminder
		}
		fn(cur)
		return nil
	})
	return s
}
