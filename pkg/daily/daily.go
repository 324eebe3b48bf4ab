// Package daily derives the UTC "today" shared by all players: date keys, the deterministic
// daily pick over a title list and a date-seeded random source for reproducible shuffles.
package daily

import (
	"fmt"
	"math/rand"
	"time"
)

const layout = "2006-01-02"

// DateKey returns the YYYY-MM-DD key of the UTC calendar day of t
func DateKey(t time.Time) string {
	return t.UTC().Format(layout)
}

// ParseDateKey parses a YYYY-MM-DD key into UTC midnight of that day
func ParseDateKey(key string) (time.Time, error) {
	t, err := time.ParseInLocation(layout, key, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date key %q: %w", key, err)
	}
	return t, nil
}

// Midnight returns UTC midnight of the calendar day of t
func Midnight(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// EpochDay returns the number of whole UTC days between the unix epoch and t's UTC day
func EpochDay(t time.Time) int64 {
	return Midnight(t).Unix() / 86400
}

// PickDailyFeaturedTitle selects today's title from the list. The result depends only on
// the list and the UTC calendar date of date, never on the time of day.
func PickDailyFeaturedTitle(titles []string, date time.Time) string {
	n := int64(len(titles))
	if n == 0 {
		return ""
	}
	idx := ((EpochDay(date) % n) + n) % n
	return titles[idx]
}

// Rand returns a random source seeded by the UTC day of date and a salt,
// so every shuffle of a daily puzzle is reproducible for that day.
func Rand(date time.Time, salt string) *rand.Rand {
	seed := EpochDay(date)
	for _, c := range salt {
		seed = seed*31 + int64(c)
	}
	return rand.New(rand.NewSource(seed)) //nolint:gosec // puzzle shuffles are not security sensitive
}

// Yesterday returns the date key of the UTC day before key, or "" for a malformed key
func Yesterday(key string) string {
	t, err := ParseDateKey(key)
	if err != nil {
		return ""
	}
	return DateKey(t.AddDate(0, 0, -1))
}
