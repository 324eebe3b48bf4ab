package domain

// GameCard is a LinkQuest card. IsLinked is the ground truth the player guesses.
type GameCard struct {
	Title              string `json:"title"`
	Description        string `json:"description,omitempty"`
	Thumbnail          string `json:"thumbnail,omitempty"`
	IsLinked           bool   `json:"isLinked"`
	LinkContext        string `json:"linkContext,omitempty"`
	LinkContextTitle   string `json:"linkContextTitle,omitempty"`
	LinkSectionHeading string `json:"linkSectionHeading,omitempty"`
}

// DailyGame is the LinkQuest puzzle of a single UTC day
type DailyGame struct {
	FeaturedArticle            ArticleSummary `json:"featuredArticle"`
	Cards                      []GameCard     `json:"cards"`
	DateKey                    string         `json:"dateKey"`
	FeaturedArticleContentHTML string         `json:"featuredArticleContentHtml"`
}

// GameState is the persisted LinkQuest progress for one UTC day.
// A nil answer means the card was not answered yet.
type GameState struct {
	CurrentCardIndex int     `json:"currentCardIndex"`
	Answers          []*bool `json:"answers"`
	SkippedIndices   []int   `json:"skippedIndices"`
	HintsUsed        int     `json:"hintsUsed"`
	ShuffleCount     int     `json:"shuffleCount"`
	IsComplete       bool    `json:"isComplete"`
}

// CardResult is one graded card of a finished LinkQuest game
type CardResult struct {
	Title    string `json:"title"`
	IsLinked bool   `json:"isLinked"`
	Answer   bool   `json:"answer"`
	Correct  bool   `json:"correct"`
}

// GameResult is the stored outcome of a finished LinkQuest game
type GameResult struct {
	DateKey         string       `json:"dateKey"`
	FeaturedArticle string       `json:"featuredArticle"`
	Score           int          `json:"score"`
	Total           int          `json:"total"`
	HintsUsed       int          `json:"hintsUsed"`
	ShuffleCount    int          `json:"shuffleCount"`
	Cards           []CardResult `json:"cards"`
}

// Knowledge Web layout slots
const (
	PositionTopLeft     = "top-left"
	PositionTopRight    = "top-right"
	PositionBottomLeft  = "bottom-left"
	PositionBottomRight = "bottom-right"
)

// Positions lists the Knowledge Web slots in layout order
var Positions = [4]string{PositionTopLeft, PositionTopRight, PositionBottomLeft, PositionBottomRight}

// WebArticle is an article placed on the Knowledge Web board
type WebArticle struct {
	Title    string `json:"title"`
	Image    string `json:"image,omitempty"`
	Position string `json:"position,omitempty"`
}

// WebConnection links a surrounding article to the connector that bridges it to the featured article.
// Fallback connections were picked without proving the connector leads back to the surrounding article.
type WebConnection struct {
	Position           string `json:"position"`
	SurroundingArticle string `json:"surrounding_article"`
	ConnectingArticle  string `json:"connecting_article"`
	ConnectingImage    string `json:"connecting_image,omitempty"`
	Evidence           string `json:"evidence,omitempty"`
	Fallback           bool   `json:"fallback,omitempty"`
}

// KnowledgeWebPuzzle is the Knowledge Web puzzle of a single UTC day
type KnowledgeWebPuzzle struct {
	PuzzleID            string           `json:"puzzle_id"`
	FeaturedArticle     WebArticle       `json:"featured_article"`
	SurroundingArticles [4]WebArticle    `json:"surrounding_articles"`
	Connections         [4]WebConnection `json:"connections"`
	AnswerPool          []string         `json:"answer_pool"`
}

// ConnectionResult grades one slot of a submission
type ConnectionResult struct {
	Position  string `json:"position"`
	Submitted string `json:"submitted"`
	IsCorrect bool   `json:"is_correct"`
}

// Submission is one graded Knowledge Web attempt
type Submission struct {
	Results    [4]ConnectionResult `json:"results"`
	AllCorrect bool                `json:"all_correct"`
	Timestamp  int64               `json:"timestamp"`
}

// KnowledgeWebGameState is the persisted Knowledge Web progress for one UTC day
type KnowledgeWebGameState struct {
	PuzzleID            string       `json:"puzzle_id"`
	Submissions         []Submission `json:"submissions"`
	CurrentConnections  [4]string    `json:"current_connections"`
	IsComplete          bool         `json:"is_complete"`
	FinalScore          int          `json:"final_score"`
	PerfectFirstAttempt bool         `json:"perfect_first_attempt"`
	AttemptsRemaining   int          `json:"attempts_remaining"`
}

// WikiPuzzle is the What-in-the-Wiki puzzle of a single UTC day
type WikiPuzzle struct {
	DateKey      string   `json:"dateKey"`
	Title        string   `json:"title"`
	Options      []string `json:"options"`
	Categories   []string `json:"categories"`
	Sections     []string `json:"sections"`
	Image        string   `json:"image,omitempty"`
	RedactedLead string   `json:"redactedLead"`
	FullLead     string   `json:"fullLead"`
	ArticleURL   string   `json:"articleUrl"`
}

// WikiGameState is the persisted What-in-the-Wiki progress for one UTC day
type WikiGameState struct {
	DateKey     string   `json:"dateKey"`
	RevealLevel int      `json:"revealLevel"`
	Guesses     []string `json:"guesses"`
	IsComplete  bool     `json:"isComplete"`
	IsWon       bool     `json:"isWon"`
}

// Streak tracks consecutive UTC days a game was completed
type Streak struct {
	Current    int    `json:"current"`
	Max        int    `json:"max"`
	LastPlayed string `json:"lastPlayed"`
}
