package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// context window tuning, in bytes of paragraph text
const (
	maxBackward    = 300 // how far back to look for sentence starts
	minBackward    = 100 // minimal lead-in when no sentence start is usable
	maxForward     = 450 // how far forward to look for the sentence end
	forwardLookout = 50  // extra reach past maxForward to end on a sentence boundary
	ellipsis       = "..."
)

// HighlightAttr marks the target anchor inside a context snippet
const HighlightAttr = "data-highlight"

var blockTags = []string{"p", "li", "dd", "dt", "blockquote", "td", "th"}

var inlineTags = map[string]bool{
	"a": true, "b": true, "i": true, "em": true, "strong": true, "span": true, "sup": true, "sub": true,
	"small": true, "abbr": true, "code": true, "s": true, "u": true, "q": true, "cite": true, "bdi": true,
}

// Context is the text window around a link
type Context struct {
	HTML           string `json:"html"`           // inline HTML with the target anchor flagged data-highlight="true"
	Text           string `json:"text"`           // the same window as plain text
	SectionHeading string `json:"sectionHeading"` // nearest preceding heading, empty in the introduction
}

// LinkContext finds the first eligible anchor linking to linkTitle (case-insensitive) and
// extracts the surrounding sentences with inline markup preserved. Returns nil if the article
// has no such anchor outside boilerplate regions.
func LinkContext(content, linkTitle string) *Context {
	want := NormalizeTitle(linkTitle)
	return linkContext(content, func(title string) bool { return strings.EqualFold(title, want) })
}

func linkContext(content string, match func(string) bool) *Context {
	doc := parseHTML(content)
	if doc == nil {
		return nil
	}

	var anchor *html.Node
	for _, l := range anchorsIn(doc) {
		if match(l.title) {
			anchor = l.node
			break
		}
	}
	if anchor == nil {
		return nil
	}

	ctx := contextWindow(anchor)
	if ctx == nil {
		return nil
	}
	ctx.SectionHeading = sectionHeading(anchor)
	return ctx
}

// contextWindow materializes the sentences around anchor from a clone of its block element
func contextWindow(anchor *html.Node) *Context {
	block := anchor.Parent
	for p := anchor.Parent; p != nil; p = p.Parent {
		if isElement(p, blockTags...) {
			block = p
			break
		}
	}
	if block == nil {
		return nil
	}

	clone := cloneNode(block)
	target := followPath(clone, childPath(block, anchor))
	if target == nil {
		return nil
	}
	stripBoilerplate(clone)
	walk(clone, func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			removeAttr(n, HighlightAttr)
		}
		return true
	})

	text, segments, aStart, aEnd := layoutText(clone, target)
	if aStart < 0 || aEnd < aStart {
		return nil
	}
	start := windowStart(text, aStart)
	end := windowEnd(text, aEnd)

	for _, seg := range segments {
		switch {
		case seg.end <= start || seg.start >= end:
			seg.node.Data = ""
		default:
			from := max(seg.start, start) - seg.start
			to := min(seg.end, end) - seg.start
			seg.node.Data = seg.node.Data[from:to]
		}
	}
	pruneEmpty(clone, target)
	setAttr(target, HighlightAttr, "true")

	snippet := strings.TrimSpace(renderChildren(clone))
	plain := strings.TrimSpace(text[start:end])
	if start > 0 {
		snippet = ellipsis + snippet
		plain = ellipsis + plain
	}
	if strings.TrimSpace(text[end:]) != "" {
		snippet += ellipsis
		plain += ellipsis
	}
	return &Context{HTML: snippet, Text: plain}
}

// stripBoilerplate removes citation markers, edit links and similar regions from a detached tree
func stripBoilerplate(root *html.Node) {
	var victims []*html.Node
	walk(root, func(n *html.Node) bool {
		if n != root && isExcludedContainer(n) {
			victims = append(victims, n)
			return false
		}
		return true
	})
	for _, v := range victims {
		v.Parent.RemoveChild(v)
	}
}

type textSegment struct {
	node       *html.Node
	start, end int
}

// layoutText flattens the text of root and locates the byte range covered by target
func layoutText(root, target *html.Node) (text string, segments []textSegment, aStart, aEnd int) {
	var sb strings.Builder
	aStart, aEnd = -1, -1
	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		if n == target {
			aStart = sb.Len()
		}
		if n.Type == html.TextNode {
			segments = append(segments, textSegment{node: n, start: sb.Len(), end: sb.Len() + len(n.Data)})
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
		if n == target {
			aEnd = sb.Len()
		}
	}
	visit(root)
	return sb.String(), segments, aStart, aEnd
}

// isSentenceEnd reports whether text[i] terminates a sentence
func isSentenceEnd(text string, i int) bool {
	if i < 0 || i >= len(text) {
		return false
	}
	switch text[i] {
	case '.', '!', '?':
	default:
		return false
	}
	if i+1 < len(text) && !isSpace(text[i+1]) {
		return false
	}
	// single-letter initials such as "J. R. R. Tolkien"
	if text[i] == '.' && i >= 1 && text[i-1] < utf8.RuneSelf && unicode.IsUpper(rune(text[i-1])) && (i == 1 || isSpace(text[i-2])) {
		return false
	}
	return true
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}

// windowStart walks back from the anchor to the start of the previous sentence
func windowStart(text string, aStart int) int {
	lo := max(0, aStart-maxBackward)
	var starts []int
	for i := aStart - 1; i >= lo && len(starts) < 2; i-- {
		if isSentenceEnd(text, i) {
			pos := i + 1
			for pos < aStart && isSpace(text[pos]) {
				pos++
			}
			starts = append(starts, pos)
		}
	}

	switch {
	case len(starts) >= 2:
		return starts[1]
	case lo == 0:
		return 0
	case len(starts) == 1 && aStart-starts[0] >= minBackward:
		return starts[0]
	}

	// no usable sentence start, take a word-aligned lead-in
	pos := max(lo, aStart-minBackward)
	for pos < aStart && !isSpace(text[pos]) {
		pos++
	}
	for pos < aStart && isSpace(text[pos]) {
		pos++
	}
	return pos
}

// windowEnd walks forward from the anchor to the end of its sentence
func windowEnd(text string, aEnd int) int {
	hi := min(len(text), aEnd+maxForward)
	for j := aEnd; j < hi; j++ {
		if isSentenceEnd(text, j) {
			return j + 1
		}
	}
	if hi == len(text) {
		return hi
	}
	look := min(len(text), hi+forwardLookout)
	for j := hi; j < look; j++ {
		if isSentenceEnd(text, j) {
			return j + 1
		}
	}

	// no sentence end in reach, cut at the last word boundary
	pos := hi
	for pos > aEnd && !isSpace(text[pos-1]) {
		pos--
	}
	if pos == aEnd {
		pos = hi
		for pos < len(text) && !utf8.RuneStart(text[pos]) {
			pos++
		}
	}
	return pos
}

// pruneEmpty drops empty text nodes and inline elements left without text after trimming
func pruneEmpty(root, keep *html.Node) {
	var prune func(n *html.Node) bool // reports whether n still carries content
	prune = func(n *html.Node) bool {
		if n.Type == html.TextNode {
			return n.Data != ""
		}
		hasContent := false
		for c := n.FirstChild; c != nil; {
			next := c.NextSibling
			if prune(c) {
				hasContent = true
			} else {
				n.RemoveChild(c)
			}
			c = next
		}
		if n == root || n == keep {
			return true
		}
		if n.Type == html.ElementNode && !inlineTags[n.Data] {
			return true // images, line breaks and other non-text elements stay
		}
		return hasContent
	}
	prune(root)
}

// sectionHeading returns the text of the nearest heading preceding n in the document
func sectionHeading(n *html.Node) string {
	for p := n; p != nil; p = p.Parent {
		for s := p.PrevSibling; s != nil; s = s.PrevSibling {
			if h := headingText(s); h != "" {
				return h
			}
		}
	}
	return ""
}

func headingText(n *html.Node) string {
	if isElement(n, "h2", "h3", "h4", "h5", "h6") {
		return strings.Join(strings.Fields(textContent(n)), " ")
	}
	// newer parser output wraps headings in <div class="mw-heading mw-heading2">
	if isElement(n, "div") && strings.Contains(getAttr(n, "class"), "mw-heading") {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if h := headingText(c); h != "" {
				return h
			}
		}
	}
	return ""
}
