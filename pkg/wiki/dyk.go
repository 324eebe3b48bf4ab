package wiki

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/umputun/wikidaily/pkg/domain"
	"github.com/umputun/wikidaily/pkg/extract"
)

const (
	dykPage      = "Template:Did you know"
	dykPrefix    = "... "
	minFactLen   = 40
	maxFactCount = 50
)

var dykAnnotation = regexp.MustCompile(`\s*\((?:pictured|listen|illustrated)\)`)

// lines containing these are template navigation and administration, not hooks
var dykBlocklist = []string{"nominate", "nomination", "archives", "start a new article", "expand an article",
	"suggestions", "purge", "discussion", "template:", "wikipedia:", "more did you know", "recently featured"}

// DidYouKnowFacts scrapes up to limit hooks from the "Did you know" template. Only list items
// starting with "... " count; media annotations are removed and the first bold link names
// the linked article.
func (c *Client) DidYouKnowFacts(ctx context.Context, limit int) []domain.DYKFact {
	if limit <= 0 || limit > maxFactCount {
		limit = maxFactCount
	}

	params := url.Values{}
	params.Set("action", "parse")
	params.Set("page", dykPage)
	params.Set("prop", "text")

	var resp parseResponse
	if err := c.query(ctx, params, &resp); err != nil {
		logFail("API_DYK_ERROR", err)
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.Parse.Text))
	if err != nil {
		logFail("API_DYK_ERROR", err)
		return nil
	}

	var facts []domain.DYKFact
	doc.Find("li").EachWithBreak(func(_ int, li *goquery.Selection) bool {
		if fact, ok := c.parseFact(li); ok {
			facts = append(facts, fact)
		}
		return len(facts) < limit
	})
	return facts
}

func (c *Client) parseFact(li *goquery.Selection) (domain.DYKFact, bool) {
	text := strings.Join(strings.Fields(li.Text()), " ")
	if !strings.HasPrefix(text, dykPrefix) {
		return domain.DYKFact{}, false
	}
	text = strings.TrimSpace(dykAnnotation.ReplaceAllString(text, ""))
	if len(text) < minFactLen {
		return domain.DYKFact{}, false
	}
	lower := strings.ToLower(text)
	for _, word := range dykBlocklist {
		if strings.Contains(lower, word) {
			return domain.DYKFact{}, false
		}
	}

	fragment, err := li.Html()
	if err != nil {
		return domain.DYKFact{}, false
	}
	fact := domain.DYKFact{
		Text: text,
		HTML: strings.TrimSpace(dykAnnotation.ReplaceAllString(c.factHTML.Sanitize(fragment), "")),
	}
	li.Find("b a[href], a[href] b").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		link := s
		if goquery.NodeName(s) != "a" {
			link = s.ParentsFiltered("a[href]").First()
		}
		if title, ok := extract.TitleFromHref(link.AttrOr("href", "")); ok {
			fact.LinkedArticle = title
			return false
		}
		return true
	})
	return fact, true
}
