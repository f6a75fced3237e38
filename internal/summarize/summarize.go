// Package summarize drives one summary run: validate the page, negotiate a
// backend, generate, translate.
package summarize

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/FrankUSC/WebBriefer/internal/capability"
	"github.com/FrankUSC/WebBriefer/internal/errs"
	"github.com/FrankUSC/WebBriefer/internal/llm"
	"github.com/FrankUSC/WebBriefer/internal/normalize"
	"github.com/FrankUSC/WebBriefer/internal/page"
	"github.com/FrankUSC/WebBriefer/internal/profile"
	"github.com/FrankUSC/WebBriefer/internal/prompt"
	"github.com/FrankUSC/WebBriefer/internal/session"
	"github.com/FrankUSC/WebBriefer/internal/template"
	"github.com/FrankUSC/WebBriefer/internal/translate"
)

// Summary is the result of one run. A retry produces a new Summary.
type Summary struct {
	Original    string    `json:"original"`
	Translated  string    `json:"translated"`
	Language    string    `json:"language"`
	WordCount   int       `json:"wordCount"`
	GeneratedAt time.Time `json:"generatedAt"`
	// Generator is the tier that wrote Original.
	Generator Tier `json:"-"`
}

// Tier names a generation backend in preference order.
type Tier string

const (
	TierSummarizer    Tier = "summarizer"
	TierLanguageModel Tier = "languageModel"
	TierLocal         Tier = "local"
)

// State is a step of the run.
type State string

const (
	StateStart                  State = "START"
	StateValidateContent        State = "VALIDATE_CONTENT"
	StateCheckCapabilities      State = "CHECK_CAPABILITIES"
	StateRefuseDownloadRequired State = "REFUSE_DOWNLOAD_REQUIRED"
	StateGenerate               State = "GENERATE"
	StateTranslate              State = "TRANSLATE"
	StateDone                   State = "DONE"
	StateFailed                 State = "FAILED"
)

// Orchestrator runs summaries against a negotiated backend.
type Orchestrator struct {
	Capabilities *capability.Negotiator
	Sessions     *session.Registry
	Translator   *translate.Chain
	Now          func() time.Time
	// Trace, when set, receives every state a run enters.
	Trace func(State)
}

// New wires an orchestrator whose translation chain shares its negotiator
// and session registry.
func New(n *capability.Negotiator, r *session.Registry) *Orchestrator {
	return &Orchestrator{
		Capabilities: n,
		Sessions:     r,
		Translator:   &translate.Chain{Capabilities: n, Sessions: r},
	}
}

func (o *Orchestrator) enter(s State) {
	if o.Trace != nil {
		o.Trace(s)
	}
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *Orchestrator) fail(err error) (Summary, error) {
	o.enter(StateFailed)
	return Summary{}, err
}

// Generate produces a summary of c for p. A nil c is missing content.
// Download-required refusals are returned as *errs.DownloadRequiredError.
func (o *Orchestrator) Generate(ctx context.Context, c *page.Content, p profile.Profile) (Summary, error) {
	o.enter(StateStart)

	o.enter(StateValidateContent)
	if c == nil {
		return o.fail(errs.ErrMissingContent)
	}
	if strings.TrimSpace(c.Text.Raw) == "" {
		return o.fail(errs.ErrEmptyContent)
	}

	o.enter(StateCheckCapabilities)
	if o.Capabilities == nil || (!o.Capabilities.Present(llm.KindSummarizer) && !o.Capabilities.Present(llm.KindLanguageModel)) {
		return o.fail(errs.ErrNoAIAvailable)
	}
	if plan := o.Capabilities.PlanForSummary(); len(plan) > 0 {
		o.enter(StateRefuseDownloadRequired)
		models := make([]string, len(plan))
		for i, k := range plan {
			models[i] = string(k)
		}
		return Summary{}, &errs.DownloadRequiredError{Models: models}
	}

	o.enter(StateGenerate)
	original, tier, err := o.generate(ctx, c, p)
	if err != nil {
		return o.fail(err)
	}

	lang := p.PreferredLanguage
	if lang == "" {
		lang = translate.Source
	}
	translated := original
	if lang != translate.Source && o.Translator != nil {
		o.enter(StateTranslate)
		translated = o.Translator.Translate(ctx, original, lang)
	}

	o.enter(StateDone)
	return Summary{
		Original:    original,
		Translated:  translated,
		Language:    lang,
		WordCount:   normalize.CountSemanticWords(original),
		GeneratedAt: o.now(),
		Generator:   tier,
	}, nil
}

// generate walks the tiers summarizer, language model, local. Only a
// summarizer failure falls through; a language-model failure is returned.
func (o *Orchestrator) generate(ctx context.Context, c *page.Content, p profile.Profile) (string, Tier, error) {
	backend := o.Capabilities.Backend

	if o.Capabilities.Status(llm.KindSummarizer) == capability.Available {
		out, err := summarizeOnce(ctx, backend.Summarizer, template.GetProfile(p.SummaryStyle).SummarizerOptions(), c.Text.Raw)
		if err == nil {
			return out, TierSummarizer, nil
		}
		log.Warn().Err(err).Str("url", c.URL).Msg("summarizer failed; falling back to language model")
	}

	if o.Capabilities.Status(llm.KindLanguageModel) == capability.Available && o.Sessions != nil {
		s, err := o.Sessions.Assistant(ctx, backend.LanguageModel, prompt.MainSystemPrompt)
		if err != nil {
			return "", "", &errs.BackendError{Kind: string(llm.KindLanguageModel), Err: err}
		}
		out, err := s.Prompt(ctx, prompt.SummaryPrompt(*c, p))
		if err != nil {
			return "", "", &errs.BackendError{Kind: string(llm.KindLanguageModel), Err: err}
		}
		return out, TierLanguageModel, nil
	}

	return Local(*c), TierLocal, nil
}

// summarizeOnce runs a one-off summarizer session and always releases it.
func summarizeOnce(ctx context.Context, f llm.SummarizerFactory, opts llm.SummarizerOptions, text string) (string, error) {
	if f == nil {
		return "", llm.ErrUnavailable
	}
	s, err := f.Create(ctx, opts, nil)
	if err != nil {
		return "", err
	}
	defer s.Destroy()
	return s.Summarize(ctx, text)
}
