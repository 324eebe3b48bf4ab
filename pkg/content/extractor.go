// Package content turns rendered article HTML into a plain-text reading view
package content

import (
	"errors"
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/markusmobius/go-trafilatura"
)

// ErrNoText is returned when nothing readable is left after extraction
var ErrNoText = errors.New("no text content extracted")

// Extractor extracts the main text of article HTML using trafilatura
type Extractor struct {
	base *url.URL
}

// NewExtractor makes an extractor resolving relative links against baseURL, may be empty
func NewExtractor(baseURL string) *Extractor {
	res := &Extractor{}
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		res.base = u
	}
	return res
}

// Extract returns the plain text of the article HTML. Tables are kept, comments, images and
// links are dropped.
func (e *Extractor) Extract(articleHTML, title string) (string, error) {
	if strings.TrimSpace(articleHTML) == "" {
		return "", ErrNoText
	}

	// trafilatura expects a whole document, the parser output is a fragment
	doc := "<!DOCTYPE html><html><head><title>" + html.EscapeString(title) + "</title></head><body><article>" + articleHTML + "</article></body></html>"

	opts := trafilatura.Options{
		EnableFallback:  true,
		ExcludeComments: true,
		ExcludeTables:   false,
		IncludeImages:   false,
		IncludeLinks:    false,
		Deduplicate:     true,
		OriginalURL:     e.base,
	}
	result, err := trafilatura.Extract(strings.NewReader(doc), opts)
	if err != nil {
		return "", fmt.Errorf("extract text of %q: %w", title, err)
	}
	if result == nil || strings.TrimSpace(result.ContentText) == "" {
		return "", fmt.Errorf("%q: %w", title, ErrNoText)
	}
	return strings.TrimSpace(result.ContentText), nil
}
