// Package budget estimates prompt sizes against model context windows.
package budget

import (
	"math"
	"strings"
	"unicode/utf8"
)

// EstimateTokensFromChars converts a character count into an estimated token
// count using a conservative heuristic (~4 chars per token in English). The
// result is always at least 1 when chars > 0.
func EstimateTokensFromChars(charCount int) int {
	if charCount <= 0 {
		return 0
	}
	return int(math.Ceil(float64(charCount) / 4.0))
}

// EstimateTokens returns the estimated token count of a string.
func EstimateTokens(s string) int {
	return EstimateTokensFromChars(utf8.RuneCountInString(s))
}

// EstimatePromptTokens estimates the total tokens for a system plus user
// message pair.
func EstimatePromptTokens(system string, user string) int {
	return EstimateTokens(system) + EstimateTokens(user)
}

// ModelContextTokens returns an estimated maximum context window for a given
// model name. Unknown models fall back to a sensible default.
func ModelContextTokens(modelName string) int {
	name := strings.ToLower(strings.TrimSpace(modelName))
	if name == "" {
		return 8192
	}
	if v, ok := knownModelMax[name]; ok {
		return v
	}
	for _, s := range []struct {
		suffix string
		tokens int
	}{
		{"1m", 1_000_000},
		{"512k", 512_000},
		{"200k", 200_000},
		{"128k", 128_000},
		{"32k", 32_768},
	} {
		if strings.HasSuffix(name, s.suffix) {
			return s.tokens
		}
	}
	if strings.Contains(name, "-mini") {
		return 128_000
	}
	return 8192
}

// RemainingContext computes the remaining input token budget given a model,
// a desired reservation for output generation, and the estimated prompt tokens.
// The result is never negative.
func RemainingContext(modelName string, reservedForOutput int, promptTokens int) int {
	if reservedForOutput < 0 {
		reservedForOutput = 0
	}
	remaining := ModelContextTokens(modelName) - reservedForOutput - promptTokens
	if remaining < 0 {
		return 0
	}
	return remaining
}

// FitsInContext reports whether the prompt can fit into the model's context
// window when reserving the specified number of output tokens.
func FitsInContext(modelName string, reservedForOutput int, promptTokens int) bool {
	return RemainingContext(modelName, reservedForOutput, promptTokens) > 0
}

// TruncateToFit shortens text so that system plus text fits the model window
// with reservedForOutput tokens left over. It returns text unchanged when it
// already fits and reports whether it cut anything.
func TruncateToFit(modelName string, reservedForOutput int, system, text string) (string, bool) {
	if FitsInContext(modelName, reservedForOutput, EstimatePromptTokens(system, text)) {
		return text, false
	}
	avail := ModelContextTokens(modelName) - reservedForOutput - EstimateTokens(system) - 1
	if avail <= 0 {
		return "", text != ""
	}
	r := []rune(text)
	maxChars := avail * 4
	if maxChars >= len(r) {
		return text, false
	}
	return string(r[:maxChars]), true
}

// knownModelMax contains rough context sizes for common model identifiers.
var knownModelMax = map[string]int{
	"gpt-4o":        128_000,
	"gpt-4o-mini":   128_000,
	"gpt-4.1-mini":  1_000_000,
	"gpt-3.5-turbo": 16_384,

	"llama-3":     8_192,
	"llama-3.1":   128_000,
	"llama3.2:3b": 128_000,
	"gemma-2":     8_192,
	"gemma2:2b":   8_192,
	"gemma3:4b":   128_000,
	"phi-3-mini":  4_096,
	"qwen2.5:3b":  32_768,

	"gpt-oss-20b":        4_096,
	"openai/gpt-oss-20b": 4_096,
}
