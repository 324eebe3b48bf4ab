// Package extract answers "what does this article link to, and where and how" over raw
// MediaWiki article HTML: link enumeration outside boilerplate regions, context snippets
// around a link, and mention checks used to validate puzzle chains.
//
// Region exclusion is a hand-tuned list of template class names. MediaWiki markup carries no
// structural "body text" signal, so these rules are heuristic and follow template changes.
package extract

import (
	"bytes"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// excludedClassFragments match any class token containing them (infobox, infobox-image, navbox-inner...)
var excludedClassFragments = []string{"infobox", "navbox"}

var excludedClasses = map[string]bool{
	"reference":                 true,
	"references":                true,
	"reflist":                   true,
	"refbegin":                  true,
	"mw-references-wrap":        true,
	"mw-cite-backlink":          true,
	"thumb":                     true,
	"thumbinner":                true,
	"thumbcaption":              true,
	"gallery":                   true,
	"gallerytext":               true,
	"hatnote":                   true,
	"sidebar":                   true,
	"metadata":                  true,
	"ambox":                     true,
	"mw-editsection":            true,
	"toc":                       true,
	"catlinks":                  true,
	"noprint":                   true,
	"shortdescription":          true,
	"navigation-not-searchable": true,
}

var excludedTags = map[string]bool{
	"figcaption": true,
	"figure":     true,
	"style":      true,
	"script":     true,
}

// specialNamespaces are never treated as article links
var specialNamespaces = map[string]bool{
	"file": true, "image": true, "template": true, "template talk": true, "category": true,
	"help": true, "portal": true, "wikipedia": true, "wp": true, "special": true, "talk": true,
	"user": true, "user talk": true, "module": true, "draft": true, "mediawiki": true,
}

func parseHTML(s string) *html.Node {
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return nil
	}
	return doc
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	attrs := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			attrs = append(attrs, a)
		}
	}
	n.Attr = attrs
}

func isElement(n *html.Node, tags ...string) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	if len(tags) == 0 {
		return true
	}
	for _, t := range tags {
		if n.Data == t {
			return true
		}
	}
	return false
}

// isExcludedContainer reports whether n itself opens a boilerplate region
func isExcludedContainer(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if excludedTags[n.Data] || getAttr(n, "id") == "toc" || getAttr(n, "role") == "navigation" {
		return true
	}
	for _, c := range strings.Fields(getAttr(n, "class")) {
		if excludedClasses[c] {
			return true
		}
		for _, frag := range excludedClassFragments {
			if strings.Contains(c, frag) {
				return true
			}
		}
	}
	return false
}

// inExcludedRegion reports whether n or any ancestor is a boilerplate container
func inExcludedRegion(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if isExcludedContainer(p) {
			return true
		}
	}
	return false
}

// walk visits nodes in document order. Returning false from fn skips the node's children.
func walk(n *html.Node, fn func(*html.Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

// textContent concatenates the text of n, skipping boilerplate regions
func textContent(n *html.Node) string {
	var sb strings.Builder
	walk(n, func(c *html.Node) bool {
		if c != n && isExcludedContainer(c) {
			return false
		}
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
		return true
	})
	return sb.String()
}

func cloneNode(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		c.AppendChild(cloneNode(child))
	}
	return c
}

// childPath returns the child indexes leading from root down to target
func childPath(root, target *html.Node) []int {
	var path []int
	for n := target; n != nil && n != root; n = n.Parent {
		idx := 0
		for s := n.PrevSibling; s != nil; s = s.PrevSibling {
			idx++
		}
		path = append([]int{idx}, path...)
	}
	return path
}

func followPath(root *html.Node, path []int) *html.Node {
	n := root
	for _, idx := range path {
		c := n.FirstChild
		for i := 0; i < idx && c != nil; i++ {
			c = c.NextSibling
		}
		if c == nil {
			return nil
		}
		n = c
	}
	return n
}

func renderChildren(n *html.Node) string {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return ""
		}
	}
	return buf.String()
}

// TitleFromHref turns a wiki link href into an article title. It accepts relative
// "/wiki/..." links and absolute links to a wikipedia.org host, decodes percent escapes,
// converts underscores to spaces and drops fragments. Special namespaces are rejected.
func TitleFromHref(href string) (string, bool) {
	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if u.Host != "" && !strings.HasSuffix(u.Host, "wikipedia.org") {
		return "", false
	}
	if !strings.HasPrefix(u.Path, "/wiki/") || u.RawQuery != "" {
		return "", false
	}
	title := strings.TrimSpace(strings.ReplaceAll(strings.TrimPrefix(u.Path, "/wiki/"), "_", " "))
	if title == "" || IsSpecialNamespace(title) {
		return "", false
	}
	return title, true
}

// IsSpecialNamespace reports whether title lives in a non-article namespace (File:, Category:...)
func IsSpecialNamespace(title string) bool {
	idx := strings.Index(title, ":")
	if idx <= 0 {
		return false
	}
	return specialNamespaces[strings.ToLower(strings.TrimSpace(title[:idx]))]
}

// NormalizeTitle converts underscores to spaces and collapses whitespace
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(title, "_", " ")), " ")
}
