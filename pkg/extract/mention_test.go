package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTitlesMatch(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"Cat", "cats", true},
		{"Box", "boxes", true},
		{"City", "cities", true},
		{"Star_Wars", "star wars", true},
		{"Mercury (planet)", "Mercury", true},
		{"Cat", "Category", false},
		{"Paris", "London", false},
		{"", "London", false},
	}
	for _, tt := range tests {
		t.Run(tt.a+"~"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, TitlesMatch(tt.a, tt.b))
			assert.Equal(t, tt.want, TitlesMatch(tt.b, tt.a), "symmetric")
		})
	}
}

func TestBaseTitle(t *testing.T) {
	assert.Equal(t, "Mercury", BaseTitle("Mercury (planet)"))
	assert.Equal(t, "Mercury", BaseTitle("Mercury"))
	assert.Equal(t, "New York City", BaseTitle("New_York_City"))
}

func TestMentionPattern(t *testing.T) {
	re := MentionPattern("Rome")
	require.NotNil(t, re)
	assert.True(t, re.MatchString("ancient rome was big"))
	assert.False(t, re.MatchString("Romeo and Juliet"))

	re = MentionPattern("C++")
	require.NotNil(t, re)
	assert.True(t, re.MatchString("written in C++ mostly"))

	assert.Nil(t, MentionPattern("  "))
}

func TestWordPattern_NonASCIIEdges(t *testing.T) {
	tests := []struct {
		word, text string
		want       bool
	}{
		{"Æthelstan", "succeeded by his son Æthelstan, who ruled", true},
		{"Æthelstan", "æthelstan was crowned", true},
		{"Æthelstan", "the Æthelstanian reforms", false},
		{"Chloé", "a novel by Chloé.", true},
		{"Chloé", "Chloés and others", false},
		{"Émile Zola", "Émile Zola wrote it", true},
		{"Émile Zola", "XÉmile Zola wrote it", false},
		{"Ohio", "born in Ohio.", true},
		{"Ohio", "Ohioan voters", false},
	}
	for _, tt := range tests {
		t.Run(tt.word+"/"+tt.text, func(t *testing.T) {
			re := WordPattern(tt.word)
			require.NotNil(t, re)
			assert.Equal(t, tt.want, re.MatchString(tt.text))
		})
	}
}

func TestWordMatcher_ReplaceAllString(t *testing.T) {
	re := WordPattern("Æthelstan")
	require.NotNil(t, re)
	assert.Equal(t, "X was notable. Later X again, not Æthelstanian.",
		re.ReplaceAllString("Æthelstan was notable. Later Æthelstan again, not Æthelstanian.", "X"))
	assert.Equal(t, "nothing here", re.ReplaceAllString("nothing here", "X"))

	loc := re.FindStringIndex("king Æthelstan.")
	require.NotNil(t, loc)
	assert.Equal(t, "Æthelstan", "king Æthelstan."[loc[0]:loc[1]])
}

func TestIsTitleLinked(t *testing.T) {
	assert.True(t, IsTitleLinkedInArticle(articleFixture, "Delta"))
	assert.True(t, IsTitleLinkedInArticle(articleFixture, "gamma_river"))
	assert.False(t, IsTitleLinkedInArticle(articleFixture, "Infobox Link"))
	assert.False(t, IsTitleLinkedInArticle(articleFixture, "Navbox Link"))

	assert.True(t, IsTitleLinkedInFirstParagraph(articleFixture, "Beta"))
	assert.False(t, IsTitleLinkedInFirstParagraph(articleFixture, "Delta"))
	assert.False(t, IsTitleLinkedInFirstParagraph("", "Delta"))
}

func TestMentionsInFirstParagraph(t *testing.T) {
	content := `<p class="mw-empty-elt"> </p>
<p>Alpha is near <a href="/wiki/Beta_City">Beta</a>. It borders Gamma land.</p>
<p>Later it met Delta.</p>`

	assert.True(t, MentionsInFirstParagraph(content, "Beta City"), "linked")
	assert.True(t, MentionsInFirstParagraph(content, "gamma"), "plain text mention")
	assert.True(t, MentionsInFirstParagraph(content, "Gamma (region)"), "base title mention")
	assert.False(t, MentionsInFirstParagraph(content, "Delta"), "only the first paragraph counts")
	assert.False(t, MentionsInFirstParagraph(content, "Gam"), "whole words only")

	content = `<p>Edward was succeeded by his son Æthelstan, who ruled England.</p>`
	assert.True(t, MentionsInFirstParagraph(content, "Æthelstan"), "non-ascii first letter")
	assert.True(t, MentionsInFirstParagraph(`<p>The painting hangs near Chloé today.</p>`, "Chloé"),
		"non-ascii last letter")
}

func TestNodeMentionInConnector(t *testing.T) {
	t.Run("linked", func(t *testing.T) {
		content := `<p>Intro text.</p><h2>Work</h2><p>She studied under <a href="/wiki/Target_Person">Target Person</a> for years.</p>`
		text, ok := NodeMentionInConnector(content, "Target Person")
		require.True(t, ok)
		assert.Equal(t, "She studied under Target Person for years.", text)
	})

	t.Run("mentioned", func(t *testing.T) {
		content := `<p>The bridge opened in 1932. It spans the Target River near town. It is long.</p>`
		text, ok := NodeMentionInConnector(content, "Target River")
		require.True(t, ok)
		assert.Equal(t, "It spans the Target River near town.", text)
	})

	t.Run("absent", func(t *testing.T) {
		_, ok := NodeMentionInConnector(`<p>Unrelated text.</p>`, "Target")
		assert.False(t, ok)
	})
}

func TestFirstParagraphText(t *testing.T) {
	assert.Equal(t, "Alpha is a city in Beta near Gamma River.", FirstParagraphText(articleFixture))
	assert.Empty(t, FirstParagraphText(""))
}
