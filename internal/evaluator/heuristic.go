package evaluator

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// spanishFunctionWords is a short closed list of high-frequency function and
// greeting words, stored in normalized (diacritic-free) form.
var spanishFunctionWords = map[string]bool{
	"el": true, "la": true, "los": true, "las": true,
	"un": true, "una": true, "unos": true, "unas": true,
	"de": true, "del": true, "al": true, "a": true, "en": true,
	"y": true, "o": true, "que": true, "se": true, "no": true, "si": true,
	"es": true, "son": true, "esta": true, "estan": true, "hay": true,
	"por": true, "para": true, "con": true, "sin": true,
	"lo": true, "le": true, "les": true, "me": true, "te": true, "nos": true,
	"mi": true, "tu": true, "su": true, "sus": true,
	"yo": true, "ella": true, "usted": true,
	"pero": true, "mas": true, "muy": true, "como": true,
	"hola": true, "adios": true, "gracias": true, "bien": true,
}

// spanishEndings are characteristic suffixes, matched against the normalized
// word so "ción" appears as "cion".
var spanishEndings = []string{
	"ar", "er", "ir",
	"cion", "sion", "dad", "tad", "tud", "mente",
	"oso", "osa", "ito", "ita", "illo", "illa",
	"ero", "era", "ista", "anza", "encia",
}

// looksLikeSpanish is a cheap orthographic plausibility check: the word is on
// the function-word list, carries Spanish diacritics, or ends like a Spanish
// word.
func looksLikeSpanish(word, normWord string) bool {
	if spanishFunctionWords[normWord] {
		return true
	}
	if strings.ContainsAny(word, "áéíóúüñÁÉÍÓÚÜÑ¿¡") {
		return true
	}
	for _, ending := range spanishEndings {
		if utf8.RuneCountInString(normWord) > len(ending)+1 && strings.HasSuffix(normWord, ending) {
			return true
		}
	}
	return false
}

// appearsInContext reports whether the normalized word occurs as a token of
// the normalized context. Multi-word expressions fall back to a substring
// check.
func appearsInContext(normWord, normContext string) bool {
	if strings.ContainsRune(normWord, ' ') {
		return strings.Contains(normContext, normWord)
	}
	for _, token := range strings.FieldsFunc(normContext, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	}) {
		if token == normWord {
			return true
		}
	}
	return false
}

func plausibleLength(normWord string) bool {
	n := utf8.RuneCountInString(normWord)
	return n >= 2 && n <= 14
}

// heuristic produces a deterministic, local grading with no network access.
// It is the last resort and always yields a well-formed result.
func (s *Service) heuristic(word, contextText string, req Request) Result {
	normWord := normalizeText(word)
	normContext := normalizeText(contextText)

	looks := looksLikeSpanish(word, normWord)
	inContext := appearsInContext(normWord, normContext)
	lengthOK := plausibleLength(normWord)

	score := 30
	if looks {
		score += 25
	}
	if inContext {
		score += 30
	}
	if lengthOK {
		score += 10
	}
	score += pageAdjustment(req.PageContext, normWord, normContext, looks, inContext, lengthOK)
	score += s.jitter()
	score = clampScore(score)

	status := StatusForScore(score)
	return Result{
		Status:     status,
		Confidence: float64(score) / 100 * 0.75,
		Score:      score,
		Feedback:   heuristicFeedback(req.PageContext, status, word, looks, inContext),
	}
}

// pageAdjustment applies the small per-page bonus or penalty from the
// evaluation focus of the requesting page.
func pageAdjustment(page PageContext, normWord, normContext string, looks, inContext, lengthOK bool) int {
	switch page {
	case PagePractice:
		// Grammar focus: knowing the particles is most of the battle.
		if spanishFunctionWords[normWord] {
			return 5
		}
		if !looks {
			return -5
		}
	case PageReading:
		// Comprehension focus: recurring words carry the passage.
		if inContext && strings.Count(normContext, normWord) > 1 {
			return 5
		}
		if inContext {
			return 3
		}
		return -3
	case PageMemorization:
		// Recall focus: short, regular words are easiest to retain.
		if looks && lengthOK {
			return 3
		}
		return -3
	case PageConversation:
		// Fluency focus: the word has to sound natural in the exchange.
		if looks && inContext {
			return 5
		}
		if !inContext {
			return -5
		}
	}
	return 0
}

func heuristicFeedback(page PageContext, status Status, word string, looks, inContext bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] ", pageTag(page))

	switch status {
	case StatusCorrect:
		fmt.Fprintf(&b, "%q works well here.", word)
	case StatusClose:
		fmt.Fprintf(&b, "%q is close, but check the form before moving on.", word)
	default:
		fmt.Fprintf(&b, "%q does not fit this sentence.", word)
	}

	if looks {
		b.WriteString(" It follows Spanish spelling patterns.")
	} else {
		b.WriteString(" It does not look like a Spanish word.")
	}
	if inContext {
		b.WriteString(" It appears in the sentence you are working with.")
	}
	return b.String()
}

func pageTag(page PageContext) string {
	switch page {
	case PageReading, PageMemorization, PageConversation:
		return string(page)
	default:
		return string(PagePractice)
	}
}
