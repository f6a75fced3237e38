package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/FrankUSC/WebBriefer/internal/budget"
	"github.com/FrankUSC/WebBriefer/internal/cache"
)

// System prompt prefixes of the dedicated surfaces. The stub server keys its
// canned replies on them.
const (
	SummarizerPromptPrefix = "You are a summarization engine."
	TranslatorPromptPrefix = "You are a translation engine."
)

// reservedOutputTokens is kept free in the context window for the reply.
const reservedOutputTokens = 1024

var (
	// ErrEmptyResponse indicates the model returned no usable content.
	ErrEmptyResponse = errors.New("empty model response")
	// ErrUnavailable is returned by Create for a model that is neither
	// served nor downloadable.
	ErrUnavailable = errors.New("model unavailable")
)

// Models names the model behind each surface. An empty name leaves that
// surface out of the Backend.
type Models struct {
	LanguageModel string
	Summarizer    string
	Translator    string
}

// OpenAI serves all three surfaces from an OpenAI-compatible chat server.
// A model the server lists is readily available. A model it does not list is
// downloadable when AllowDownload is set; creating a session for it sends a
// warm-up request, which makes servers such as Ollama pull and load it.
type OpenAI struct {
	Client        Client
	Models        Models
	Cache         *cache.Replies
	AllowDownload bool
	Temperature   float32
	// ListTTL bounds how long a model listing is reused. Zero means
	// DefaultListTTL; a negative value lists on every query.
	ListTTL time.Duration

	mu     sync.Mutex
	pulled map[string]bool
	listed modelSet
}

// Backend exposes the configured surfaces.
func (o *OpenAI) Backend() Backend {
	var b Backend
	if o.Models.LanguageModel != "" {
		b.LanguageModel = &lmFactory{o: o}
	}
	if o.Models.Summarizer != "" {
		b.Summarizer = &summarizerFactory{o: o}
	}
	if o.Models.Translator != "" {
		b.Translator = &translatorFactory{o: o}
	}
	return b
}

func (o *OpenAI) availability(ctx context.Context, model string) (Availability, error) {
	if model == "" || o.Client == nil {
		return No, nil
	}
	o.mu.Lock()
	pulled := o.pulled[model]
	o.mu.Unlock()
	if pulled {
		return Readily, nil
	}
	lister, ok := o.Client.(ModelLister)
	if !ok {
		return Readily, nil
	}
	served, err := o.listed.has(ctx, lister, model, o.listTTL())
	if err != nil {
		return "", fmt.Errorf("list models: %w", err)
	}
	if served {
		return Readily, nil
	}
	if o.AllowDownload {
		return AfterDownload, nil
	}
	return No, nil
}

func (o *OpenAI) listTTL() time.Duration {
	switch {
	case o.ListTTL < 0:
		return 0
	case o.ListTTL == 0:
		return DefaultListTTL
	}
	return o.ListTTL
}

// prepare makes model usable, downloading it first when needed.
func (o *OpenAI) prepare(ctx context.Context, model string, monitor Monitor) error {
	a, err := o.availability(ctx, model)
	if err != nil {
		return err
	}
	switch a {
	case Readily:
		return nil
	case AfterDownload:
		return o.warm(ctx, model, monitor)
	}
	return fmt.Errorf("%w: %s", ErrUnavailable, model)
}

func (o *OpenAI) warm(ctx context.Context, model string, monitor Monitor) error {
	report := func(v float64) {
		if monitor != nil {
			monitor(v)
		}
	}
	report(0)
	log.Info().Str("model", model).Msg("downloading model")
	req := openai.ChatCompletionRequest{
		Model:     model,
		Messages:  []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "ping"}},
		MaxTokens: 1,
	}
	if _, err := o.Client.CreateChatCompletion(ctx, req); err != nil {
		return fmt.Errorf("download %s: %w", model, err)
	}
	o.mu.Lock()
	if o.pulled == nil {
		o.pulled = map[string]bool{}
	}
	o.pulled[model] = true
	o.mu.Unlock()
	o.listed.forget()
	report(1)
	return nil
}

func (o *OpenAI) complete(ctx context.Context, model, system, user string) (string, error) {
	if cut, truncated := budget.TruncateToFit(model, reservedOutputTokens, system, user); truncated {
		log.Warn().Str("model", model).Int("context", budget.ModelContextTokens(model)).Msg("prompt exceeds context window; truncating input")
		user = cut
	}

	prompt := cache.Prompt{Model: model, System: system, User: user, Temperature: o.Temperature}
	if out, ok := o.Cache.Lookup(prompt); ok {
		return out, nil
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: user})
	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: o.Temperature,
		N:           1,
	}
	resp, err := o.Client.CreateChatCompletion(ctx, req)
	if err != nil {
		// single retry after a short fixed backoff; the context still bounds it
		sleepFunc(100)
		resp, err = o.Client.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", fmt.Errorf("chat completion (after retry): %w", err)
		}
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", ErrEmptyResponse
	}
	if err := o.Cache.Store(prompt, out); err != nil {
		log.Debug().Err(err).Msg("reply cache store failed")
	}
	return out, nil
}

// sleepFunc allows tests to replace the retry backoff (milliseconds).
var sleepFunc = func(ms int) {
	time.Sleep(time.Duration(ms) * time.Millisecond)
}

// SummarizerSystemPrompt renders the instruction used for summarizer sessions.
func SummarizerSystemPrompt(opts SummarizerOptions) string {
	if opts.Type == "" {
		opts.Type = DefaultSummarizerOptions.Type
	}
	if opts.Format == "" {
		opts.Format = DefaultSummarizerOptions.Format
	}
	if opts.Length == "" {
		opts.Length = DefaultSummarizerOptions.Length
	}
	var sb strings.Builder
	sb.WriteString(SummarizerPromptPrefix)
	sb.WriteString(" Summarize the text the user provides as ")
	sb.WriteString(opts.Type)
	sb.WriteString(" in ")
	sb.WriteString(opts.Format)
	sb.WriteString(" format, ")
	sb.WriteString(opts.Length)
	sb.WriteString(" length.")
	if c := strings.TrimSpace(opts.SharedContext); c != "" {
		sb.WriteString(" Context: ")
		sb.WriteString(c)
	}
	sb.WriteString(" Output only the summary.")
	return sb.String()
}

// TranslatorSystemPrompt renders the instruction used for translator sessions.
func TranslatorSystemPrompt(opts TranslatorOptions) string {
	return fmt.Sprintf("%s Translate the user's text from %s to %s. Output only the translation.",
		TranslatorPromptPrefix, opts.SourceLanguage, opts.TargetLanguage)
}

type lmFactory struct{ o *OpenAI }

func (f *lmFactory) Availability(ctx context.Context) (Availability, error) {
	return f.o.availability(ctx, f.o.Models.LanguageModel)
}

func (f *lmFactory) Create(ctx context.Context, opts LanguageModelOptions, monitor Monitor) (LanguageModel, error) {
	if err := f.o.prepare(ctx, f.o.Models.LanguageModel, monitor); err != nil {
		return nil, err
	}
	return &chatSession{o: f.o, model: f.o.Models.LanguageModel, system: opts.SystemPrompt}, nil
}

type summarizerFactory struct{ o *OpenAI }

func (f *summarizerFactory) Availability(ctx context.Context, _ SummarizerOptions) (Availability, error) {
	return f.o.availability(ctx, f.o.Models.Summarizer)
}

func (f *summarizerFactory) Create(ctx context.Context, opts SummarizerOptions, monitor Monitor) (Summarizer, error) {
	if err := f.o.prepare(ctx, f.o.Models.Summarizer, monitor); err != nil {
		return nil, err
	}
	return &chatSession{o: f.o, model: f.o.Models.Summarizer, system: SummarizerSystemPrompt(opts)}, nil
}

type translatorFactory struct{ o *OpenAI }

func (f *translatorFactory) Availability(ctx context.Context, _ TranslatorOptions) (Availability, error) {
	return f.o.availability(ctx, f.o.Models.Translator)
}

func (f *translatorFactory) Create(ctx context.Context, opts TranslatorOptions, monitor Monitor) (Translator, error) {
	if err := f.o.prepare(ctx, f.o.Models.Translator, monitor); err != nil {
		return nil, err
	}
	return &chatSession{o: f.o, model: f.o.Models.Translator, system: TranslatorSystemPrompt(opts)}, nil
}

// chatSession is stateless between calls: every call sends the session's
// system prompt and the new input only.
type chatSession struct {
	o      *OpenAI
	model  string
	system string

	mu        sync.Mutex
	destroyed bool
}

func (s *chatSession) run(ctx context.Context, input string) (string, error) {
	s.mu.Lock()
	dead := s.destroyed
	s.mu.Unlock()
	if dead {
		return "", ErrDestroyed
	}
	return s.o.complete(ctx, s.model, s.system, input)
}

func (s *chatSession) Prompt(ctx context.Context, input string) (string, error) {
	return s.run(ctx, input)
}

func (s *chatSession) Summarize(ctx context.Context, text string) (string, error) {
	return s.run(ctx, text)
}

func (s *chatSession) Translate(ctx context.Context, text string) (string, error) {
	return s.run(ctx, text)
}

func (s *chatSession) Destroy() {
	s.mu.Lock()
	s.destroyed = true
	s.mu.Unlock()
}
