// Package session keeps long-lived language-model sessions shared across
// requests.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/FrankUSC/WebBriefer/internal/llm"
)

// Main is the name of the assistant session used for Q&A and translation.
const Main = "main"

// ErrClosed is returned after Close.
var ErrClosed = errors.New("session registry closed")

var errNoLanguageModel = errors.New("no language model surface")

// CreateFunc builds a new session when none exists under a name.
type CreateFunc func(ctx context.Context) (llm.LanguageModel, error)

// Registry maps names to sessions. Creating a session that already exists
// returns the existing one; concurrent creations of the same name share a
// single call.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]llm.LanguageModel
	closed   bool
	group    singleflight.Group
}

func NewRegistry() *Registry {
	return &Registry{sessions: map[string]llm.LanguageModel{}}
}

// Get returns the session stored under name.
func (r *Registry) Get(name string) (llm.LanguageModel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[name]
	return s, ok
}

// GetOrCreate returns the session under name, creating it with create if
// needed.
func (r *Registry) GetOrCreate(ctx context.Context, name string, create CreateFunc) (llm.LanguageModel, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	if s, ok := r.sessions[name]; ok {
		r.mu.Unlock()
		return s, nil
	}
	r.mu.Unlock()

	v, err, _ := r.group.Do(name, func() (any, error) {
		r.mu.Lock()
		if s, ok := r.sessions[name]; ok {
			r.mu.Unlock()
			return s, nil
		}
		r.mu.Unlock()

		s, err := create(ctx)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		if r.closed {
			s.Destroy()
			return nil, ErrClosed
		}
		r.sessions[name] = s
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(llm.LanguageModel), nil
}

// Assistant returns the Main session, creating it from f with the given
// system prompt.
func (r *Registry) Assistant(ctx context.Context, f llm.LanguageModelFactory, system string) (llm.LanguageModel, error) {
	if f == nil {
		return nil, errNoLanguageModel
	}
	return r.GetOrCreate(ctx, Main, func(ctx context.Context) (llm.LanguageModel, error) {
		s, err := f.Create(ctx, llm.LanguageModelOptions{SystemPrompt: system}, nil)
		if err != nil {
			return nil, fmt.Errorf("create language model session: %w", err)
		}
		return s, nil
	})
}

// Drop destroys and forgets the session under name.
func (r *Registry) Drop(name string) {
	r.mu.Lock()
	s, ok := r.sessions[name]
	delete(r.sessions, name)
	r.mu.Unlock()
	if ok {
		s.Destroy()
	}
}

// Len reports how many sessions are retained.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close destroys every retained session. Later calls to GetOrCreate fail.
func (r *Registry) Close() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = map[string]llm.LanguageModel{}
	r.closed = true
	r.mu.Unlock()
	for _, s := range all {
		s.Destroy()
	}
}
