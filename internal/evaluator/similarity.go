package evaluator

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// contextPrefixRunes bounds how much of the surrounding sentence participates
// in the cache key. Long passages beyond this prefix do not change identity.
const contextPrefixRunes = 64

// normalizeText lowercases and removes diacritics, so "Café" and "cafe"
// normalize to the same word. The transform chain is stateful and cannot be
// shared across goroutines, so it is built per call.
func normalizeText(text string) string {
	stripDiacritics := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	lowered := strings.ToLower(strings.TrimSpace(text))
	stripped, _, err := transform.String(stripDiacritics, lowered)
	if err != nil {
		return lowered
	}
	return stripped
}

// keySuffix combines the non-word components of the cache key. Two requests
// with the same normalized word and the same suffix are the same question.
func keySuffix(contextText string, difficulty Difficulty, pageContext PageContext) string {
	prefix := normalizeText(contextText)
	if r := []rune(prefix); len(r) > contextPrefixRunes {
		prefix = string(r[:contextPrefixRunes])
	}
	return prefix + "|" + string(difficulty) + "|" + string(pageContext)
}

// similarityRatio is 1 - distance/max(len), computed over runes, so a single
// edit in a five-letter word scores 0.8.
func similarityRatio(a, b string) float64 {
	if a == b {
		return 1
	}
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 0
	}
	distance := levenshtein.ComputeDistance(a, b)
	return 1 - float64(distance)/float64(maxLen)
}
