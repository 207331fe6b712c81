package filecontext

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	SummaryMaxLength = 500
	MaxKeywords      = 20
	keywordBonus     = 5
	fallbackSnippet  = 1000
)

var stopWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`the a an and or but in on at to for of with by is are was were
		be been have has had do does did will would could should may might can this that these those
		i you he she it we they me him her us them my your his its our their`) {
		stopWords[w] = struct{}{}
	}
}

// Summarize keeps whole leading sentences of text within maxLength runes.
func Summarize(text string, maxLength int) string {
	if text == "" || utf8.RuneCountInString(text) <= maxLength {
		return text
	}
	var b strings.Builder
	size := 0
	for _, sentence := range strings.Split(text, ".") {
		n := utf8.RuneCountInString(sentence) + 1
		if size+n > maxLength {
			break
		}
		b.WriteString(sentence)
		b.WriteByte('.')
		size += n
	}
	summary := strings.TrimSpace(b.String())
	if summary == "" {
		return truncateRunes(text, maxLength) + "..."
	}
	return summary
}

// ExtractKeywords returns up to maxCount of the most frequent content words.
// Ties keep the order in which words first appear.
func ExtractKeywords(text string, maxCount int) []string {
	if text == "" || maxCount <= 0 {
		return nil
	}
	counts := make(map[string]int)
	var order []string
	for _, field := range strings.Fields(strings.ToLower(text)) {
		word := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return r
			}
			return -1
		}, field)
		if utf8.RuneCountInString(word) <= 3 {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		if counts[word] == 0 {
			order = append(order, word)
		}
		counts[word]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > maxCount {
		order = order[:maxCount]
	}
	return order
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
