package state

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/umputun/wikidaily/pkg/cache"
	"github.com/umputun/wikidaily/pkg/domain"
)

const (
	// RabbitHolesKey is the session store key of the rabbit holes
	RabbitHolesKey = "wikipedia_rabbit_holes"
	// RabbitHoleGap is the longest pause between two views of the same rabbit hole
	RabbitHoleGap = 30 * time.Minute
	// RabbitHoleLimit caps the rabbit holes kept per session
	RabbitHoleLimit = 50
	// sessionTTL drops the rabbit holes of abandoned sessions
	sessionTTL = 24 * time.Hour
)

// RabbitHoles groups the article views of a session into runs of closely spaced reads
type RabbitHoles struct {
	kv    cache.Store
	locks cache.Locks
	newID func() string
}

// NewRabbitHoles makes the tracker over kv, every session gets its own key scope
func NewRabbitHoles(kv cache.Store) *RabbitHoles {
	return &RabbitHoles{kv: kv, newID: uuid.NewString}
}

// SessionKey is the store key of a session's rabbit holes
func SessionKey(session string) string {
	return "session_" + session + "_" + RabbitHolesKey
}

// Track records a view. A view within the gap of the previous one extends the latest hole,
// otherwise a new hole starts. Only the newest holes are kept.
func (r *RabbitHoles) Track(ctx context.Context, session string, entry domain.RabbitHoleEntry) []domain.RabbitHole {
	if entry.Timestamp == 0 {
		entry.Timestamp = time.Now().UnixMilli()
	}
	holes, _ := cache.Mutate(ctx, r.kv, &r.locks, SessionKey(session), sessionTTL, func(holes *[]domain.RabbitHole) error {
		*holes = trackView(*holes, entry, r.newID)
		return nil
	})
	return holes
}

func trackView(holes []domain.RabbitHole, entry domain.RabbitHoleEntry, newID func() string) []domain.RabbitHole {
	if n := len(holes); n > 0 && entry.Timestamp-holes[n-1].EndTime <= RabbitHoleGap.Milliseconds() {
		last := &holes[n-1]
		last.Entries = append(last.Entries, entry)
		last.EndTime = max(last.EndTime, entry.Timestamp)
		last.Duration = last.EndTime - last.StartTime
		return holes
	}

	holes = append(holes, domain.RabbitHole{
		ID:        newID(),
		Entries:   []domain.RabbitHoleEntry{entry},
		StartTime: entry.Timestamp,
		EndTime:   entry.Timestamp,
	})
	if len(holes) > RabbitHoleLimit {
		holes = holes[len(holes)-RabbitHoleLimit:]
	}
	return holes
}

// List returns the rabbit holes of a session, oldest first
func (r *RabbitHoles) List(ctx context.Context, session string) ([]domain.RabbitHole, error) {
	var holes []domain.RabbitHole
	if _, err := cache.LoadJSON(ctx, r.kv, SessionKey(session), &holes); err != nil {
		return nil, err
	}
	if holes == nil {
		holes = []domain.RabbitHole{}
	}
	return holes, nil
}
