// Package readability computes surface reading-difficulty statistics.
package readability

import (
	"regexp"
	"strings"

	"github.com/FrankUSC/WebBriefer/internal/page"
)

var (
	sentenceRe = regexp.MustCompile(`[.!?]+`)
	nonAlphaRe = regexp.MustCompile(`[^a-z]`)
	vowelRe    = regexp.MustCompile(`[aeiouy]+`)
)

// Analyze returns Flesch-Kincaid statistics for text. A text with no words
// or no sentences scores zero everywhere rather than dividing by zero.
// Tokens without letters count as words but add no syllables.
func Analyze(text string) page.Readability {
	words := strings.Fields(text)
	sentences := 0
	for _, s := range sentenceRe.Split(text, -1) {
		if strings.TrimSpace(s) != "" {
			sentences++
		}
	}
	out := page.Readability{WordCount: len(words), SentenceCount: sentences}
	if len(words) == 0 || sentences == 0 {
		return out
	}
	syllables := 0
	for _, w := range words {
		syllables += Syllables(w)
	}
	wps := float64(len(words)) / float64(sentences)
	spw := float64(syllables) / float64(len(words))
	out.AverageWordsPerSentence = wps
	out.AverageSyllablesPerWord = spw
	out.EstimatedGradeLevel = 0.39*wps + 11.8*spw - 15.59
	return out
}

// Syllables estimates the syllable count of a single word by counting vowel
// groups, discounting a silent trailing "e". A word with letters has at least
// one syllable; one without letters has none.
func Syllables(word string) int {
	w := nonAlphaRe.ReplaceAllString(strings.ToLower(word), "")
	if w == "" {
		return 0
	}
	n := len(vowelRe.FindAllString(w, -1))
	if strings.HasSuffix(w, "e") {
		n--
	}
	return max(n, 1)
}
