package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var parenthetical = regexp.MustCompile(`\s*\([^)]*\)\s*$`)

// BaseTitle drops a trailing disambiguation, "Mercury (planet)" becomes "Mercury"
func BaseTitle(title string) string {
	return strings.TrimSpace(parenthetical.ReplaceAllString(NormalizeTitle(title), ""))
}

// TitleMatcher decides whether two article titles name the same subject
type TitleMatcher func(a, b string) bool

// DefaultMatcher is the fuzzy matcher used by the mention checks
var DefaultMatcher TitleMatcher = TitlesMatch

// TitlesMatch is a best-effort fuzzy comparison of two article titles. It ignores case,
// underscores and simple plural forms, and accepts containment when both titles are longer
// than three characters. It is used for validating puzzle chains, not for exact identity.
func TitlesMatch(a, b string) bool {
	a, b = strings.ToLower(NormalizeTitle(a)), strings.ToLower(NormalizeTitle(b))
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	for _, v := range pluralForms(a) {
		if v == b {
			return true
		}
	}
	for _, v := range pluralForms(b) {
		if v == a {
			return true
		}
	}
	if len(a) > 3 && len(b) > 3 && (strings.Contains(a, b) || strings.Contains(b, a)) {
		return true
	}
	return false
}

func pluralForms(s string) []string {
	res := []string{s + "s", s + "es"}
	if strings.HasSuffix(s, "y") {
		res = append(res, strings.TrimSuffix(s, "y")+"ies")
	}
	return res
}

// MentionPattern builds a case-insensitive matcher of title as a whole phrase.
// Word boundaries are only asserted where the title starts or ends with a word character.
func MentionPattern(title string) *WordMatcher {
	return WordPattern(NormalizeTitle(title))
}

// WordMatcher finds whole-word, case-insensitive occurrences of a phrase. Word characters are
// unicode letters, digits, marks and underscore, so "Æthelstan" is bounded like "Ohio". The
// regexp \b can't be used for this, it only knows ASCII word characters.
type WordMatcher struct {
	re          *regexp.Regexp
	left, right bool // whether the phrase edge needs a word boundary
}

// WordPattern matches s case-insensitively as a whole word, nil for an empty s
func WordPattern(s string) *WordMatcher {
	if s == "" {
		return nil
	}
	first, _ := utf8.DecodeRuneInString(s)
	last, _ := utf8.DecodeLastRuneInString(s)
	return &WordMatcher{
		re:    regexp.MustCompile(`(?i)` + regexp.QuoteMeta(s)),
		left:  isWordRune(first),
		right: isWordRune(last),
	}
}

// FindStringIndex returns the location of the first whole-word match in text, nil if none
func (m *WordMatcher) FindStringIndex(text string) []int {
	return m.find(text, 0)
}

// MatchString reports whether text contains a whole-word match
func (m *WordMatcher) MatchString(text string) bool {
	return m.find(text, 0) != nil
}

// ReplaceAllString replaces every whole-word match with repl, taken literally
func (m *WordMatcher) ReplaceAllString(text, repl string) string {
	var sb strings.Builder
	prev := 0
	for loc := m.find(text, 0); loc != nil; loc = m.find(text, loc[1]) {
		sb.WriteString(text[prev:loc[0]])
		sb.WriteString(repl)
		prev = loc[1]
	}
	sb.WriteString(text[prev:])
	return sb.String()
}

// find looks for a whole-word match starting at byte offset from, boundaries are checked
// against the whole text
func (m *WordMatcher) find(text string, from int) []int {
	for off := from; off <= len(text); {
		loc := m.re.FindStringIndex(text[off:])
		if loc == nil {
			return nil
		}
		start, end := off+loc[0], off+loc[1]
		if m.bounded(text, start, end) {
			return []int{start, end}
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		off = start + max(size, 1)
	}
	return nil
}

func (m *WordMatcher) bounded(text string, start, end int) bool {
	if m.left && start > 0 {
		if r, _ := utf8.DecodeLastRuneInString(text[:start]); isWordRune(r) {
			return false
		}
	}
	if m.right && end < len(text) {
		if r, _ := utf8.DecodeRuneInString(text[end:]); isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

// IsTitleLinkedInArticle reports whether any anchor outside boilerplate regions points to title
func IsTitleLinkedInArticle(content, title string) bool {
	doc := parseHTML(content)
	if doc == nil {
		return false
	}
	for _, l := range anchorsIn(doc) {
		if DefaultMatcher(l.title, title) {
			return true
		}
	}
	return false
}

// IsTitleLinkedInFirstParagraph reports whether the first paragraph links to title
func IsTitleLinkedInFirstParagraph(content, title string) bool {
	doc := parseHTML(content)
	if doc == nil {
		return false
	}
	p := firstParagraph(doc)
	if p == nil {
		return false
	}
	for _, l := range anchorsIn(p) {
		if DefaultMatcher(l.title, title) {
			return true
		}
	}
	return false
}

// MentionsInFirstParagraph reports whether the first paragraph links to title or names it in
// plain text. The base title without a disambiguation suffix counts as a mention too.
func MentionsInFirstParagraph(content, title string) bool {
	doc := parseHTML(content)
	if doc == nil {
		return false
	}
	p := firstParagraph(doc)
	if p == nil {
		return false
	}
	for _, l := range anchorsIn(p) {
		if DefaultMatcher(l.title, title) {
			return true
		}
	}
	return mentionSentence(textContent(p), title) != ""
}

// NodeMentionInConnector returns the text that ties connector content to title: the context
// around a link to title, or failing that the first-paragraph sentence naming it.
func NodeMentionInConnector(content, title string) (string, bool) {
	if ctx := linkContext(content, func(t string) bool { return DefaultMatcher(t, title) }); ctx != nil {
		return ctx.Text, true
	}

	doc := parseHTML(content)
	if doc == nil {
		return "", false
	}
	p := firstParagraph(doc)
	if p == nil {
		return "", false
	}
	if s := mentionSentence(textContent(p), title); s != "" {
		return s, true
	}
	return "", false
}

// mentionSentence finds the sentence of text naming title or its base title
func mentionSentence(text, title string) string {
	text = strings.Join(strings.Fields(text), " ")
	candidates := []string{NormalizeTitle(title)}
	if base := BaseTitle(title); base != "" && !strings.EqualFold(base, candidates[0]) {
		candidates = append(candidates, base)
	}

	for _, c := range candidates {
		re := MentionPattern(c)
		if re == nil {
			continue
		}
		loc := re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		start, end := 0, len(text)
		for i := loc[0] - 1; i >= 0; i-- {
			if isSentenceEnd(text, i) {
				start = i + 1
				break
			}
		}
		for j := loc[1]; j < len(text); j++ {
			if isSentenceEnd(text, j) {
				end = j + 1
				break
			}
		}
		return strings.TrimSpace(text[start:end])
	}
	return ""
}

// FirstParagraphText returns the plain text of the first paragraph, whitespace collapsed
func FirstParagraphText(content string) string {
	doc := parseHTML(content)
	if doc == nil {
		return ""
	}
	p := firstParagraph(doc)
	if p == nil {
		return ""
	}
	return strings.Join(strings.Fields(textContent(p)), " ")
}
