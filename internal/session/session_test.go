package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FrankUSC/WebBriefer/internal/llm"
	"github.com/FrankUSC/WebBriefer/internal/llm/llmfake"
)

type fakeLM struct{ destroyed atomic.Int32 }

func (f *fakeLM) Prompt(context.Context, string) (string, error) { return "ok", nil }
func (f *fakeLM) Destroy()                                        { f.destroyed.Add(1) }

func TestGetOrCreate_ReturnsExisting(t *testing.T) {
	r := NewRegistry()
	var creates int
	create := func(context.Context) (llm.LanguageModel, error) {
		creates++
		return &fakeLM{}, nil
	}
	a, err := r.GetOrCreate(context.Background(), Main, create)
	require.NoError(t, err)
	b, err := r.GetOrCreate(context.Background(), Main, create)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, creates)
}

func TestGetOrCreate_ConcurrentCreatesOnce(t *testing.T) {
	r := NewRegistry()
	var creates atomic.Int32
	create := func(context.Context) (llm.LanguageModel, error) {
		creates.Add(1)
		time.Sleep(20 * time.Millisecond)
		return &fakeLM{}, nil
	}
	var wg sync.WaitGroup
	got := make([]llm.LanguageModel, 10)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := r.GetOrCreate(context.Background(), Main, create)
			assert.NoError(t, err)
			got[i] = s
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), creates.Load())
	for _, s := range got {
		assert.Same(t, got[0], s)
	}
}

func TestGetOrCreate_ErrorNotCached(t *testing.T) {
	r := NewRegistry()
	_, err := r.GetOrCreate(context.Background(), Main, func(context.Context) (llm.LanguageModel, error) {
		return nil, errors.New("nope")
	})
	require.Error(t, err)
	_, ok := r.Get(Main)
	assert.False(t, ok)

	s, err := r.GetOrCreate(context.Background(), Main, func(context.Context) (llm.LanguageModel, error) {
		return &fakeLM{}, nil
	})
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestCloseDestroysAll(t *testing.T) {
	r := NewRegistry()
	a, b := &fakeLM{}, &fakeLM{}
	_, _ = r.GetOrCreate(context.Background(), "a", func(context.Context) (llm.LanguageModel, error) { return a, nil })
	_, _ = r.GetOrCreate(context.Background(), "b", func(context.Context) (llm.LanguageModel, error) { return b, nil })
	assert.Equal(t, 2, r.Len())

	r.Close()
	assert.Equal(t, int32(1), a.destroyed.Load())
	assert.Equal(t, int32(1), b.destroyed.Load())
	assert.Zero(t, r.Len())

	_, err := r.GetOrCreate(context.Background(), "a", func(context.Context) (llm.LanguageModel, error) { return &fakeLM{}, nil })
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDrop(t *testing.T) {
	r := NewRegistry()
	a := &fakeLM{}
	_, _ = r.GetOrCreate(context.Background(), Main, func(context.Context) (llm.LanguageModel, error) { return a, nil })
	r.Drop(Main)
	r.Drop(Main)
	assert.Equal(t, int32(1), a.destroyed.Load())
}

func TestAssistant_UsesSystemPromptOnce(t *testing.T) {
	fb := &llmfake.Backend{LanguageModel: &llmfake.Surface{Availability: llm.Readily}}
	r := NewRegistry()
	a, err := r.Assistant(context.Background(), fb.Backend().LanguageModel, "be helpful")
	require.NoError(t, err)
	b, err := r.Assistant(context.Background(), fb.Backend().LanguageModel, "be helpful")
	require.NoError(t, err)
	assert.Same(t, a, b)
	require.Len(t, fb.LanguageModelOptions(), 1)
	assert.Equal(t, "be helpful", fb.LanguageModelOptions()[0].SystemPrompt)

	_, err = NewRegistry().Assistant(context.Background(), nil, "x")
	assert.Error(t, err)
}
