package domain

// ArticleImage is a File: page resolved to a displayable image URL
type ArticleImage struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// SearchResult represents one candidate article in search and recommendation flows
type SearchResult struct {
	Title         string         `json:"title"`
	Snippet       string         `json:"snippet,omitempty"`
	PageID        int64          `json:"pageid,omitempty"`
	Images        []ArticleImage `json:"images,omitempty"`
	ImagesLoading bool           `json:"imagesLoading,omitempty"`
}

// ArticleSummary is the REST page summary of an article
type ArticleSummary struct {
	Title       string `json:"title"`
	Extract     string `json:"extract"`
	Description string `json:"description,omitempty"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	URL         string `json:"url,omitempty"`
}

// Section is a table-of-contents entry of a parsed article
type Section struct {
	Index  string `json:"index"`
	Level  int    `json:"level"`
	Line   string `json:"line"`
	Anchor string `json:"anchor"`
}

// DYKFact is a single "Did you know" hook
type DYKFact struct {
	Text          string `json:"text"`
	HTML          string `json:"html"`
	LinkedArticle string `json:"linkedArticle,omitempty"`
}

// TrendingArticle is an entry of the daily top-pageviews list
type TrendingArticle struct {
	Title string `json:"title"`
	Views int64  `json:"views"`
	Rank  int    `json:"rank"`
}
