// Package llm describes the generative backend as three optional capability
// surfaces (language model, summarizer, translator) and provides an adapter
// over OpenAI-compatible servers.
package llm

import (
	"context"
	"errors"
)

// Kind names one capability surface.
type Kind string

const (
	KindLanguageModel Kind = "languageModel"
	KindSummarizer    Kind = "summarizer"
	KindTranslator    Kind = "translator"
)

// Kinds lists every surface in summary-planning priority order.
var Kinds = []Kind{KindSummarizer, KindLanguageModel, KindTranslator}

// ParseKind accepts the wire names of the three surfaces.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindLanguageModel, KindSummarizer, KindTranslator:
		return Kind(s), true
	}
	return "", false
}

// Availability is the raw answer of a backend availability query.
type Availability string

const (
	Readily       Availability = "readily"
	AfterDownload Availability = "after-download"
	No            Availability = "no"
)

// Monitor receives download progress in [0, 1]. It may be nil.
type Monitor func(loaded float64)

// ErrDestroyed is returned by a session used after Destroy.
var ErrDestroyed = errors.New("session destroyed")

// SummarizerOptions mirror the knobs of a dedicated summarization model.
type SummarizerOptions struct {
	Type          string
	Format        string
	Length        string
	SharedContext string
}

// DefaultSummarizerOptions produce key points as Markdown of medium length.
var DefaultSummarizerOptions = SummarizerOptions{Type: "key-points", Format: "markdown", Length: "medium"}

type TranslatorOptions struct {
	SourceLanguage string
	TargetLanguage string
}

type LanguageModelOptions struct {
	SystemPrompt string
}

type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
	Destroy()
}

type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
	Destroy()
}

type LanguageModel interface {
	Prompt(ctx context.Context, input string) (string, error)
	Destroy()
}

type SummarizerFactory interface {
	Availability(ctx context.Context, opts SummarizerOptions) (Availability, error)
	Create(ctx context.Context, opts SummarizerOptions, monitor Monitor) (Summarizer, error)
}

type TranslatorFactory interface {
	Availability(ctx context.Context, opts TranslatorOptions) (Availability, error)
	Create(ctx context.Context, opts TranslatorOptions, monitor Monitor) (Translator, error)
}

type LanguageModelFactory interface {
	Availability(ctx context.Context) (Availability, error)
	Create(ctx context.Context, opts LanguageModelOptions, monitor Monitor) (LanguageModel, error)
}

// Backend groups the surfaces a runtime exposes. A nil field means the
// surface does not exist at all, which is different from existing but being
// unavailable.
type Backend struct {
	LanguageModel LanguageModelFactory
	Summarizer    SummarizerFactory
	Translator    TranslatorFactory
}

// Has reports whether the surface for k exists.
func (b Backend) Has(k Kind) bool {
	switch k {
	case KindLanguageModel:
		return b.LanguageModel != nil
	case KindSummarizer:
		return b.Summarizer != nil
	case KindTranslator:
		return b.Translator != nil
	}
	return false
}
