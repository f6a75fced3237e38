// Package translate turns English text into the reader's language using the
// best capability at hand.
package translate

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/FrankUSC/WebBriefer/internal/capability"
	"github.com/FrankUSC/WebBriefer/internal/llm"
	"github.com/FrankUSC/WebBriefer/internal/prompt"
	"github.com/FrankUSC/WebBriefer/internal/session"
)

// Source is the language every generated text is written in.
const Source = "en"

// Tier names the capability that produced a translation.
type Tier string

const (
	TierTranslator    Tier = "translator"
	TierLanguageModel Tier = "languageModel"
	TierNone          Tier = "none"
)

// Chain tries the dedicated translator, then the assistant session, then
// gives the input back unchanged. It never returns an error.
type Chain struct {
	Capabilities *capability.Negotiator
	Sessions     *session.Registry
}

// Translate returns text in target, or text itself when no tier succeeds.
func (c *Chain) Translate(ctx context.Context, text, target string) string {
	out, _ := c.TranslateTier(ctx, text, target)
	return out
}

// TranslateTier is Translate that also reports which tier answered.
func (c *Chain) TranslateTier(ctx context.Context, text, target string) (string, Tier) {
	target = strings.ToLower(strings.TrimSpace(target))
	if target == "" || target == Source || strings.TrimSpace(text) == "" {
		return text, TierNone
	}
	if c.Capabilities == nil {
		return text, TierNone
	}
	backend := c.Capabilities.Backend

	if c.Capabilities.Status(llm.KindTranslator) == capability.Available {
		out, err := translateOnce(ctx, backend.Translator, text, target)
		if err == nil {
			return out, TierTranslator
		}
		log.Warn().Err(err).Str("target", target).Msg("translator failed; falling back to language model")
	}

	if c.Capabilities.Status(llm.KindLanguageModel) == capability.Available && c.Sessions != nil {
		s, err := c.Sessions.Assistant(ctx, backend.LanguageModel, prompt.MainSystemPrompt)
		if err == nil {
			var out string
			out, err = s.Prompt(ctx, prompt.TranslatePrompt(text, target))
			if err == nil {
				return out, TierLanguageModel
			}
		}
		log.Warn().Err(err).Str("target", target).Msg("language model translation failed; returning original text")
	}
	return text, TierNone
}

// translateOnce runs a one-off translator session and always releases it.
func translateOnce(ctx context.Context, f llm.TranslatorFactory, text, target string) (string, error) {
	if f == nil {
		return "", llm.ErrUnavailable
	}
	t, err := f.Create(ctx, llm.TranslatorOptions{SourceLanguage: Source, TargetLanguage: target}, nil)
	if err != nil {
		return "", err
	}
	defer t.Destroy()
	return t.Translate(ctx, text)
}
