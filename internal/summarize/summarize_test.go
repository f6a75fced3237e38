package summarize

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FrankUSC/WebBriefer/internal/capability"
	"github.com/FrankUSC/WebBriefer/internal/errs"
	"github.com/FrankUSC/WebBriefer/internal/llm"
	"github.com/FrankUSC/WebBriefer/internal/llm/llmfake"
	"github.com/FrankUSC/WebBriefer/internal/page"
	"github.com/FrankUSC/WebBriefer/internal/profile"
	"github.com/FrankUSC/WebBriefer/internal/session"
)

var fixedNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newOrchestrator(fb *llmfake.Backend) (*Orchestrator, *[]State) {
	n := capability.NewNegotiator(fb.Backend())
	n.Init(context.Background())
	o := New(n, session.NewRegistry())
	o.Now = func() time.Time { return fixedNow }
	var states []State
	o.Trace = func(s State) { states = append(states, s) }
	return o, &states
}

func sampleContent() *page.Content {
	return &page.Content{
		URL:   "https://example.com/post",
		Title: "Tides",
		Text: page.Text{
			Raw:         "The moon pulls the ocean. Tides follow the moon.",
			Paragraphs:  []string{"The moon pulls the ocean toward it, producing two bulges of water on opposite sides."},
			Headings:    []page.Heading{{Level: 2, Text: "Gravity"}},
			WordCount:   9,
			ReadingTime: 1,
		},
	}
}

func english() profile.Profile {
	p := profile.Defaults(fixedNow)
	p.Occupation = "sailor"
	return p
}

func TestGenerate_MissingContent(t *testing.T) {
	o, states := newOrchestrator(&llmfake.Backend{Summarizer: &llmfake.Surface{Availability: llm.Readily}})
	_, err := o.Generate(context.Background(), nil, english())
	require.ErrorIs(t, err, errs.ErrMissingContent)
	assert.Equal(t, []State{StateStart, StateValidateContent, StateFailed}, *states)
}

func TestGenerate_EmptyContent(t *testing.T) {
	o, _ := newOrchestrator(&llmfake.Backend{Summarizer: &llmfake.Surface{Availability: llm.Readily}})
	_, err := o.Generate(context.Background(), &page.Content{Text: page.Text{Raw: "  \n "}}, english())
	require.ErrorIs(t, err, errs.ErrEmptyContent)
}

func TestGenerate_NoAIAvailable(t *testing.T) {
	o, _ := newOrchestrator(&llmfake.Backend{Translator: &llmfake.Surface{Availability: llm.Readily}})
	_, err := o.Generate(context.Background(), sampleContent(), english())
	require.ErrorIs(t, err, errs.ErrNoAIAvailable)
}

func TestGenerate_RefusesWhenDownloadable(t *testing.T) {
	fb := &llmfake.Backend{
		Summarizer:    &llmfake.Surface{Availability: llm.AfterDownload},
		Translator:    &llmfake.Surface{Availability: llm.Readily},
		LanguageModel: &llmfake.Surface{Availability: llm.No},
	}
	o, states := newOrchestrator(fb)
	_, err := o.Generate(context.Background(), sampleContent(), english())

	var dr *errs.DownloadRequiredError
	require.ErrorAs(t, err, &dr)
	assert.Equal(t, []string{"summarizer"}, dr.Models)
	assert.Equal(t, errs.CodeModelsDownloadable, errs.Code(err))
	assert.Equal(t, StateRefuseDownloadRequired, (*states)[len(*states)-1])
	assert.Empty(t, fb.Calls())
}

func TestGenerate_PrefersSummarizer(t *testing.T) {
	fb := &llmfake.Backend{
		Summarizer:    &llmfake.Surface{Availability: llm.Readily, Reply: func(string) string { return "**Tides** follow the moon" }},
		LanguageModel: &llmfake.Surface{Availability: llm.Readily},
	}
	o, states := newOrchestrator(fb)
	s, err := o.Generate(context.Background(), sampleContent(), english())
	require.NoError(t, err)

	assert.Equal(t, "**Tides** follow the moon", s.Original)
	assert.Equal(t, s.Original, s.Translated)
	assert.Equal(t, "en", s.Language)
	assert.Equal(t, 4, s.WordCount)
	assert.Equal(t, fixedNow, s.GeneratedAt)
	assert.Equal(t, TierSummarizer, s.Generator)
	assert.Equal(t, 1, fb.Destroyed(llm.KindSummarizer))
	assert.Zero(t, fb.CallsTo(llm.KindLanguageModel))
	assert.Equal(t, []State{StateStart, StateValidateContent, StateCheckCapabilities, StateGenerate, StateDone}, *states)
}

func TestGenerate_SummarizerFailureFallsToLanguageModel(t *testing.T) {
	fb := &llmfake.Backend{
		Summarizer:    &llmfake.Surface{Availability: llm.Readily, CallErr: llmfake.ErrInjected},
		LanguageModel: &llmfake.Surface{Availability: llm.Readily, Reply: func(string) string { return "LM summary" }},
	}
	o, _ := newOrchestrator(fb)
	s, err := o.Generate(context.Background(), sampleContent(), english())
	require.NoError(t, err)
	assert.Equal(t, "LM summary", s.Original)
	assert.Equal(t, TierLanguageModel, s.Generator)
	assert.Equal(t, 1, fb.Destroyed(llm.KindSummarizer), "failed summarizer must still be released")

	calls := fb.Calls()
	require.Len(t, calls, 2)
	assert.True(t, strings.HasPrefix(calls[0], "summarizer:"))
	assert.Contains(t, calls[1], "- Occupation: sailor")
}

func TestGenerate_SummarizerFailureFallsToLocal(t *testing.T) {
	fb := &llmfake.Backend{
		Summarizer:    &llmfake.Surface{Availability: llm.Readily, CreateErr: llmfake.ErrInjected},
		LanguageModel: &llmfake.Surface{Availability: llm.No},
	}
	o, _ := newOrchestrator(fb)
	s, err := o.Generate(context.Background(), sampleContent(), english())
	require.NoError(t, err)
	assert.Equal(t, TierLocal, s.Generator)
	assert.True(t, strings.HasPrefix(s.Original, "# Summary of Tides"))
}

func TestGenerate_LanguageModelFailureIsFatal(t *testing.T) {
	fb := &llmfake.Backend{LanguageModel: &llmfake.Surface{Availability: llm.Readily, CallErr: llmfake.ErrInjected}}
	o, states := newOrchestrator(fb)
	_, err := o.Generate(context.Background(), sampleContent(), english())
	require.ErrorIs(t, err, llmfake.ErrInjected)
	var be *errs.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, StateFailed, (*states)[len(*states)-1])
}

func TestGenerate_TranslationFailureKeepsOriginal(t *testing.T) {
	fb := &llmfake.Backend{
		Summarizer:    &llmfake.Surface{Availability: llm.Readily, Reply: func(string) string { return "one two three" }},
		Translator:    &llmfake.Surface{Availability: llm.Readily, CallErr: llmfake.ErrInjected},
		LanguageModel: &llmfake.Surface{Availability: llm.Readily, CallErr: llmfake.ErrInjected},
	}
	o, states := newOrchestrator(fb)
	p := english()
	p.PreferredLanguage = "es"
	s, err := o.Generate(context.Background(), sampleContent(), p)
	require.NoError(t, err)
	assert.Equal(t, s.Original, s.Translated)
	assert.Equal(t, "es", s.Language)
	assert.Equal(t, 3, s.WordCount)
	assert.Contains(t, *states, StateTranslate)
}

func TestGenerate_TranslatesAndCountsOriginal(t *testing.T) {
	fb := &llmfake.Backend{
		Summarizer: &llmfake.Surface{Availability: llm.Readily, Reply: func(string) string { return "one two three" }},
		Translator: &llmfake.Surface{Availability: llm.Readily, Reply: func(string) string { return "uno dos tres cuatro cinco" }},
	}
	o, _ := newOrchestrator(fb)
	p := english()
	p.PreferredLanguage = "es"
	s, err := o.Generate(context.Background(), sampleContent(), p)
	require.NoError(t, err)
	assert.Equal(t, "uno dos tres cuatro cinco", s.Translated)
	assert.Equal(t, 3, s.WordCount)
}

func TestGenerate_SummaryStyleSelectsSummarizerOptions(t *testing.T) {
	fb := &llmfake.Backend{Summarizer: &llmfake.Surface{Availability: llm.Readily}}
	o, _ := newOrchestrator(fb)
	p := english()
	p.SummaryStyle = "brief"
	_, err := o.Generate(context.Background(), sampleContent(), p)
	require.NoError(t, err)
	opts := fb.SummarizerOptions()
	require.Len(t, opts, 1)
	assert.Equal(t, llm.SummarizerOptions{Type: "tldr", Format: "markdown", Length: "short"}, opts[0])
}
