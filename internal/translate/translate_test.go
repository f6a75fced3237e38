package translate

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FrankUSC/WebBriefer/internal/capability"
	"github.com/FrankUSC/WebBriefer/internal/llm"
	"github.com/FrankUSC/WebBriefer/internal/llm/llmfake"
	"github.com/FrankUSC/WebBriefer/internal/session"
)

func newChain(t *testing.T, fb *llmfake.Backend) *Chain {
	t.Helper()
	n := capability.NewNegotiator(fb.Backend())
	n.Init(context.Background())
	return &Chain{Capabilities: n, Sessions: session.NewRegistry()}
}

func TestTranslate_PrefersTranslatorAndReleasesIt(t *testing.T) {
	fb := &llmfake.Backend{
		Translator:    &llmfake.Surface{Availability: llm.Readily, Reply: func(in string) string { return "hola" }},
		LanguageModel: &llmfake.Surface{Availability: llm.Readily},
	}
	c := newChain(t, fb)
	out, tier := c.TranslateTier(context.Background(), "hello", "es")
	assert.Equal(t, "hola", out)
	assert.Equal(t, TierTranslator, tier)
	assert.Equal(t, 1, fb.Destroyed(llm.KindTranslator))
	assert.Zero(t, fb.CallsTo(llm.KindLanguageModel))
	opts := fb.TranslatorOptions()
	require.Len(t, opts, 1)
	assert.Equal(t, llm.TranslatorOptions{SourceLanguage: "en", TargetLanguage: "es"}, opts[0])
}

func TestTranslate_FallsBackToLanguageModel(t *testing.T) {
	fb := &llmfake.Backend{
		Translator:    &llmfake.Surface{Availability: llm.Readily, CallErr: llmfake.ErrInjected},
		LanguageModel: &llmfake.Surface{Availability: llm.Readily, Reply: func(in string) string { return "bonjour" }},
	}
	c := newChain(t, fb)
	out, tier := c.TranslateTier(context.Background(), "hello", "fr")
	assert.Equal(t, "bonjour", out)
	assert.Equal(t, TierLanguageModel, tier)
	assert.Equal(t, 1, fb.Destroyed(llm.KindTranslator))

	calls := fb.Calls()
	require.Len(t, calls, 2)
	assert.True(t, strings.HasPrefix(calls[1], "languageModel:Please translate the following text from English to French."))
}

func TestTranslate_AllTiersFailReturnsInput(t *testing.T) {
	fb := &llmfake.Backend{
		Translator:    &llmfake.Surface{Availability: llm.Readily, CreateErr: llmfake.ErrInjected},
		LanguageModel: &llmfake.Surface{Availability: llm.Readily, CallErr: llmfake.ErrInjected},
	}
	c := newChain(t, fb)
	out, tier := c.TranslateTier(context.Background(), "hello", "de")
	assert.Equal(t, "hello", out)
	assert.Equal(t, TierNone, tier)
}

func TestTranslate_SkipsUnavailableTiers(t *testing.T) {
	fb := &llmfake.Backend{
		Translator:    &llmfake.Surface{Availability: llm.AfterDownload},
		LanguageModel: &llmfake.Surface{Availability: llm.No},
	}
	c := newChain(t, fb)
	assert.Equal(t, "hello", c.Translate(context.Background(), "hello", "it"))
	assert.Empty(t, fb.Calls())
	assert.Zero(t, fb.Created(llm.KindTranslator))
}

func TestTranslate_EnglishTargetIsIdentity(t *testing.T) {
	fb := &llmfake.Backend{Translator: &llmfake.Surface{Availability: llm.Readily}}
	c := newChain(t, fb)
	assert.Equal(t, "hello", c.Translate(context.Background(), "hello", "EN"))
	assert.Equal(t, "hello", c.Translate(context.Background(), "hello", ""))
	assert.Empty(t, fb.Calls())
}

func TestTranslate_NilChainPieces(t *testing.T) {
	var c Chain
	assert.Equal(t, "x", c.Translate(context.Background(), "x", "es"))
}
