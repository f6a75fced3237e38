// Package normalize cleans extracted page text and provides the word metrics
// shared by the extractor and the summary pipeline.
package normalize

import (
	"math"
	"regexp"
	"strings"
	"unicode"
)

// Boilerplate phrases removed from extracted text regardless of case.
var denylist = []string{
	"Advertisement",
	"Sponsored",
	"Click here",
	"Read more",
	"Continue reading",
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	denylistRe   = buildDenylist(denylist)
	decorationRe = regexp.MustCompile(`[*•\-]`)
)

func buildDenylist(phrases []string) *regexp.Regexp {
	parts := make([]string, 0, len(phrases))
	for _, p := range phrases {
		fields := strings.Fields(p)
		for i := range fields {
			fields[i] = regexp.QuoteMeta(fields[i])
		}
		parts = append(parts, strings.Join(fields, `\s+`))
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(parts, "|") + `)\b`)
}

// Text collapses whitespace runs to a single space, trims the result and
// strips boilerplate phrases. Removing a phrase can leave a new denylisted
// phrase behind ("Read Click here more"), so stripping repeats until the text
// stops changing. Text(Text(s)) == Text(s) for every s.
func Text(s string) string {
	out := collapse(s)
	for {
		next := collapse(denylistRe.ReplaceAllString(out, " "))
		if next == out {
			return out
		}
		out = next
	}
}

func collapse(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// CountWords counts whitespace-separated tokens.
func CountWords(s string) int {
	return len(strings.Fields(s))
}

// ReadingTime estimates minutes at 200 words per minute, rounded up.
func ReadingTime(words int) int {
	if words <= 0 {
		return 0
	}
	return int(math.Ceil(float64(words) / 200.0))
}

// CountSemanticWords counts words in generated Markdown. List bullets and
// emphasis markers are not words, and a token must contain at least one
// letter, digit or underscore to count.
func CountSemanticWords(s string) int {
	cleaned := decorationRe.ReplaceAllString(s, " ")
	n := 0
	for _, tok := range strings.Fields(cleaned) {
		if hasWordChar(tok) {
			n++
		}
	}
	return n
}

func hasWordChar(tok string) bool {
	for _, r := range tok {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// Truncate cuts s to at most max runes and appends marker when anything was
// removed.
func Truncate(s string, max int, marker string) string {
	if max < 0 {
		max = 0
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + marker
}
