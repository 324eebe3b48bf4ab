package extract

import (
	"strings"

	"golang.org/x/net/html"
)

// introTextLimit is how much body text counts as the introduction when an article has no <h2>
const introTextLimit = 1000

// LinkOptions tune link enumeration
type LinkOptions struct {
	ExcludeFirstParagraph bool // drop links of the introduction (before the first <h2>)
	CaseInsensitive       bool // dedupe titles ignoring case
	IncludeBoilerplate    bool // keep links of infoboxes, navboxes, captions and the like
}

// link is an article anchor found outside boilerplate regions
type link struct {
	title   string
	inIntro bool
	node    *html.Node
}

// ExtractLinks enumerates outbound article links of the HTML in document order, deduplicated.
// Links inside infoboxes, references, navboxes, image captions and other boilerplate are skipped
// unless opts.IncludeBoilerplate is set.
func ExtractLinks(content string, opts LinkOptions) []string {
	doc := parseHTML(content)
	if doc == nil {
		return nil
	}

	links := collectLinks(doc)
	if opts.IncludeBoilerplate {
		links = allAnchors(doc)
	}
	seen := map[string]bool{}
	var res []string
	for _, l := range links {
		if opts.ExcludeFirstParagraph && l.inIntro {
			continue
		}
		key := l.title
		if opts.CaseInsensitive {
			key = strings.ToLower(key)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		res = append(res, l.title)
	}
	return res
}

// Partition splits the article links into introduction links and body links, case-insensitively.
// A title linked in the introduction is never reported as a body link.
func Partition(content string) (intro, body []string) {
	doc := parseHTML(content)
	if doc == nil {
		return nil, nil
	}

	links := collectLinks(doc)
	introSeen := map[string]bool{}
	for _, l := range links {
		key := strings.ToLower(l.title)
		if l.inIntro && !introSeen[key] {
			introSeen[key] = true
			intro = append(intro, l.title)
		}
	}

	bodySeen := map[string]bool{}
	for _, l := range links {
		key := strings.ToLower(l.title)
		if l.inIntro || introSeen[key] || bodySeen[key] {
			continue
		}
		bodySeen[key] = true
		body = append(body, l.title)
	}
	return intro, body
}

// collectLinks walks the document once, marking each eligible anchor as inside or after the introduction
func collectLinks(doc *html.Node) []link {
	boundary := firstHeading(doc)
	passed := false
	textLen := 0

	var res []link
	walk(doc, func(n *html.Node) bool {
		if isExcludedContainer(n) {
			return false
		}
		if n == boundary {
			passed = true
		}
		if boundary == nil && n.Type == html.TextNode && !passed {
			textLen += len(strings.TrimSpace(n.Data))
			if textLen >= introTextLimit {
				passed = true
			}
		}
		if isElement(n, "a") {
			if title, ok := TitleFromHref(getAttr(n, "href")); ok {
				res = append(res, link{title: title, inIntro: !passed, node: n})
			}
		}
		return true
	})
	return res
}

// firstHeading returns the first <h2> outside boilerplate regions, the end of the introduction
func firstHeading(doc *html.Node) *html.Node {
	var found *html.Node
	walk(doc, func(n *html.Node) bool {
		if found != nil || isExcludedContainer(n) {
			return false
		}
		if isElement(n, "h2") {
			found = n
			return false
		}
		return true
	})
	return found
}

// firstParagraph returns the first non-empty <p> outside boilerplate regions
func firstParagraph(doc *html.Node) *html.Node {
	var found *html.Node
	walk(doc, func(n *html.Node) bool {
		if found != nil || isExcludedContainer(n) {
			return false
		}
		if isElement(n, "p") && !strings.Contains(getAttr(n, "class"), "mw-empty-elt") &&
			strings.TrimSpace(textContent(n)) != "" {
			found = n
			return false
		}
		return true
	})
	return found
}

// anchorsIn returns the eligible article anchors below root with their titles
func anchorsIn(root *html.Node) []link {
	var res []link
	walk(root, func(n *html.Node) bool {
		if isExcludedContainer(n) {
			return false
		}
		if isElement(n, "a") {
			if title, ok := TitleFromHref(getAttr(n, "href")); ok {
				res = append(res, link{title: title, node: n})
			}
		}
		return true
	})
	return res
}

// allAnchors returns every article anchor of the document, boilerplate regions included.
// Intro marking is not tracked, so these links never count as introduction links.
func allAnchors(doc *html.Node) []link {
	var res []link
	walk(doc, func(n *html.Node) bool {
		if isElement(n, "a") {
			if title, ok := TitleFromHref(getAttr(n, "href")); ok {
				res = append(res, link{title: title, node: n})
			}
		}
		return true
	})
	return res
}
