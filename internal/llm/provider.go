package llm

import (
	"context"
	"net/http"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/singleflight"
)

// Client is the chat surface of an OpenAI-compatible server. *openai.Client
// satisfies it.
type Client interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ModelLister is implemented by clients that can enumerate served models.
// Without it every configured model counts as served.
type ModelLister interface {
	ListModels(ctx context.Context) (openai.ModelsList, error)
}

// NewClient configures a go-openai client for baseURL. hc may be nil.
func NewClient(baseURL, apiKey string, hc *http.Client) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if hc != nil {
		cfg.HTTPClient = hc
	}
	return openai.NewClientWithConfig(cfg)
}

// DefaultListTTL is how long one model listing answers availability
// queries. A capability refresh asks about three surfaces back to back.
const DefaultListTTL = 2 * time.Second

// modelSet memoizes the served model IDs.
type modelSet struct {
	mu  sync.Mutex
	at  time.Time
	ids map[string]bool
	sf  singleflight.Group
}

func (s *modelSet) has(ctx context.Context, l ModelLister, id string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	fresh := s.ids != nil && time.Since(s.at) < ttl
	ids := s.ids
	s.mu.Unlock()
	if fresh {
		return ids[id], nil
	}
	v, err, _ := s.sf.Do("list", func() (any, error) {
		list, err := l.ListModels(ctx)
		if err != nil {
			return nil, err
		}
		m := make(map[string]bool, len(list.Models))
		for _, model := range list.Models {
			m[model.ID] = true
		}
		s.mu.Lock()
		s.ids, s.at = m, time.Now()
		s.mu.Unlock()
		return m, nil
	})
	if err != nil {
		return false, err
	}
	return v.(map[string]bool)[id], nil
}

// forget drops the memo so the next query lists again.
func (s *modelSet) forget() {
	s.mu.Lock()
	s.ids = nil
	s.mu.Unlock()
}
