// Package llmfake is an in-memory llm.Backend for tests.
package llmfake

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/FrankUSC/WebBriefer/internal/llm"
)

// ErrInjected is returned by sessions configured to fail.
var ErrInjected = errors.New("injected failure")

// Surface configures one fake capability.
type Surface struct {
	Availability llm.Availability
	AvailErr     error
	CreateErr    error
	// CallErr makes every session call fail.
	CallErr error
	// Reply builds the output; nil echoes a kind-specific default.
	Reply func(input string) string
}

// Backend records every interaction.
type Backend struct {
	LanguageModel *Surface
	Summarizer    *Surface
	Translator    *Surface

	mu        sync.Mutex
	calls     []string
	created   map[llm.Kind]int
	destroyed map[llm.Kind]int
	Progress  []float64
	lmOpts    []llm.LanguageModelOptions
	trOpts    []llm.TranslatorOptions
	sumOpts   []llm.SummarizerOptions
}

// Backend exposes the configured surfaces. Nil surfaces are absent.
func (b *Backend) Backend() llm.Backend {
	var out llm.Backend
	if b.LanguageModel != nil {
		out.LanguageModel = lmFactory{b}
	}
	if b.Summarizer != nil {
		out.Summarizer = sumFactory{b}
	}
	if b.Translator != nil {
		out.Translator = trFactory{b}
	}
	return out
}

// Calls returns the session calls made, as "kind:input".
func (b *Backend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

// CallsTo counts session calls made to kind.
func (b *Backend) CallsTo(k llm.Kind) int {
	n := 0
	for _, c := range b.Calls() {
		if strings.HasPrefix(c, string(k)+":") {
			n++
		}
	}
	return n
}

// Created counts sessions created for kind.
func (b *Backend) Created(k llm.Kind) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.created[k]
}

// Destroyed counts sessions destroyed for kind.
func (b *Backend) Destroyed(k llm.Kind) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.destroyed[k]
}

// TranslatorOptions returns the options of every translator created.
func (b *Backend) TranslatorOptions() []llm.TranslatorOptions {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]llm.TranslatorOptions(nil), b.trOpts...)
}

// SummarizerOptions returns the options of every summarizer created.
func (b *Backend) SummarizerOptions() []llm.SummarizerOptions {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]llm.SummarizerOptions(nil), b.sumOpts...)
}

// LanguageModelOptions returns the options of every LM session created.
func (b *Backend) LanguageModelOptions() []llm.LanguageModelOptions {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]llm.LanguageModelOptions(nil), b.lmOpts...)
}

func (b *Backend) create(k llm.Kind, s *Surface, monitor llm.Monitor) (*session, error) {
	if s.CreateErr != nil {
		return nil, s.CreateErr
	}
	if monitor != nil {
		for _, p := range []float64{0, 0.5, 1} {
			monitor(p)
			b.mu.Lock()
			b.Progress = append(b.Progress, p)
			b.mu.Unlock()
		}
	}
	b.mu.Lock()
	if b.created == nil {
		b.created = map[llm.Kind]int{}
	}
	b.created[k]++
	// A successful create counts as a finished download.
	if s.Availability == llm.AfterDownload {
		s.Availability = llm.Readily
	}
	b.mu.Unlock()
	return &session{b: b, kind: k, s: s}, nil
}

func (b *Backend) availability(s *Surface) (llm.Availability, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return s.Availability, s.AvailErr
}

type session struct {
	b    *Backend
	kind llm.Kind
	s    *Surface
	done bool
}

func (s *session) call(input string) (string, error) {
	if s.done {
		return "", llm.ErrDestroyed
	}
	s.b.mu.Lock()
	s.b.calls = append(s.b.calls, string(s.kind)+":"+input)
	s.b.mu.Unlock()
	if s.s.CallErr != nil {
		return "", s.s.CallErr
	}
	if s.s.Reply != nil {
		return s.s.Reply(input), nil
	}
	return string(s.kind) + " output", nil
}

func (s *session) Prompt(_ context.Context, in string) (string, error)    { return s.call(in) }
func (s *session) Summarize(_ context.Context, in string) (string, error) { return s.call(in) }
func (s *session) Translate(_ context.Context, in string) (string, error) { return s.call(in) }

func (s *session) Destroy() {
	if s.done {
		return
	}
	s.done = true
	s.b.mu.Lock()
	if s.b.destroyed == nil {
		s.b.destroyed = map[llm.Kind]int{}
	}
	s.b.destroyed[s.kind]++
	s.b.mu.Unlock()
}

type lmFactory struct{ b *Backend }

func (f lmFactory) Availability(context.Context) (llm.Availability, error) {
	return f.b.availability(f.b.LanguageModel)
}

func (f lmFactory) Create(_ context.Context, opts llm.LanguageModelOptions, m llm.Monitor) (llm.LanguageModel, error) {
	s, err := f.b.create(llm.KindLanguageModel, f.b.LanguageModel, m)
	if err != nil {
		return nil, err
	}
	f.b.mu.Lock()
	f.b.lmOpts = append(f.b.lmOpts, opts)
	f.b.mu.Unlock()
	return s, nil
}

type sumFactory struct{ b *Backend }

func (f sumFactory) Availability(context.Context, llm.SummarizerOptions) (llm.Availability, error) {
	return f.b.availability(f.b.Summarizer)
}

func (f sumFactory) Create(_ context.Context, opts llm.SummarizerOptions, m llm.Monitor) (llm.Summarizer, error) {
	s, err := f.b.create(llm.KindSummarizer, f.b.Summarizer, m)
	if err != nil {
		return nil, err
	}
	f.b.mu.Lock()
	f.b.sumOpts = append(f.b.sumOpts, opts)
	f.b.mu.Unlock()
	return s, nil
}

type trFactory struct{ b *Backend }

func (f trFactory) Availability(context.Context, llm.TranslatorOptions) (llm.Availability, error) {
	return f.b.availability(f.b.Translator)
}

func (f trFactory) Create(_ context.Context, opts llm.TranslatorOptions, m llm.Monitor) (llm.Translator, error) {
	s, err := f.b.create(llm.KindTranslator, f.b.Translator, m)
	if err != nil {
		return nil, err
	}
	f.b.mu.Lock()
	f.b.trOpts = append(f.b.trOpts, opts)
	f.b.mu.Unlock()
	return s, nil
}
