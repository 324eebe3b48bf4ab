package domain

// HistoryItem is a viewed article, newest first in the history list
type HistoryItem struct {
	Title     string `json:"title"`
	Snippet   string `json:"snippet"`
	Timestamp int64  `json:"timestamp"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// RabbitHoleEntry is one article view inside a rabbit hole
type RabbitHoleEntry struct {
	Title     string `json:"title"`
	Timestamp int64  `json:"timestamp"`
	Source    string `json:"source,omitempty"`
}

// RabbitHole groups consecutive views with gaps no longer than the session timeout.
// Timestamps and duration are in milliseconds.
type RabbitHole struct {
	ID        string            `json:"id"`
	Entries   []RabbitHoleEntry `json:"entries"`
	StartTime int64             `json:"startTime"`
	EndTime   int64             `json:"endTime"`
	Duration  int64             `json:"duration"`
}

// ReminderSettings controls the donation reminder cadence
type ReminderSettings struct {
	Amount                         float64 `json:"amount"`
	Frequency                      int     `json:"frequency"`
	ArticlesViewedSinceReminderSet int     `json:"articlesViewedSinceReminderSet"`
	ReminderEnabled                bool    `json:"reminderEnabled"`
}

// FeedSettings selects which blocks the home feed shows
type FeedSettings struct {
	ShowFeatured        bool `json:"showFeatured"`
	ShowDidYouKnow      bool `json:"showDidYouKnow"`
	ShowTrending        bool `json:"showTrending"`
	ShowRecommendations bool `json:"showRecommendations"`
}
