package filecontext

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSummarizeShortTextUnchanged(t *testing.T) {
	text := "A short note. Nothing else."
	if got := Summarize(text, 500); got != text {
		t.Fatalf("expected unchanged text, got %q", got)
	}
	assert.Equal(t, "", Summarize("", 10))
}

func TestSummarizeKeepsWholeSentences(t *testing.T) {
	text := "First sentence here. Second sentence is here. Third one pushes past the limit."
	got := Summarize(text, 50)
	assert.Equal(t, "First sentence here. Second sentence is here.", got)
	assert.LessOrEqual(t, utf8.RuneCountInString(got), 50)
}

func TestSummarizeFallsBackToTruncation(t *testing.T) {
	text := strings.Repeat("x", 40)
	assert.Equal(t, strings.Repeat("x", 10)+"...", Summarize(text, 10))
}

func TestExtractKeywordsRanksByFrequency(t *testing.T) {
	got := ExtractKeywords("machine learning machine learning neural networks", 20)
	assert.Equal(t, []string{"machine", "learning", "neural", "networks"}, got)
}

func TestExtractKeywordsFilters(t *testing.T) {
	text := "The cats, the dogs! Those were their toys; with these 2024 reports would could."
	got := ExtractKeywords(text, 3)
	assert.LessOrEqual(t, len(got), 3)
	for _, w := range got {
		if utf8.RuneCountInString(w) <= 3 {
			t.Fatalf("short token %q returned", w)
		}
		if _, stop := stopWords[w]; stop {
			t.Fatalf("stop-word %q returned", w)
		}
	}
	assert.Equal(t, []string{"cats", "dogs", "toys"}, got)
	assert.Contains(t, ExtractKeywords(text, 20), "2024")
}

func TestExtractKeywordsEmpty(t *testing.T) {
	assert.Empty(t, ExtractKeywords("", 5))
	assert.Empty(t, ExtractKeywords("a an the of", 5))
}
