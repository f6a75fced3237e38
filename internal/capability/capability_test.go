package capability

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FrankUSC/WebBriefer/internal/errs"
	"github.com/FrankUSC/WebBriefer/internal/llm"
	"github.com/FrankUSC/WebBriefer/internal/llm/llmfake"
)

func TestFromAvailability(t *testing.T) {
	assert.Equal(t, Available, FromAvailability(llm.Readily))
	assert.Equal(t, Downloadable, FromAvailability(llm.AfterDownload))
	assert.Equal(t, Unavailable, FromAvailability(llm.No))
	assert.Equal(t, Unavailable, FromAvailability("weird"))
}

func TestStore_NeverRegressesFromAvailable(t *testing.T) {
	s := NewStore()
	assert.Equal(t, Unavailable, s.Get(llm.KindSummarizer))
	s.Set(llm.KindSummarizer, Downloadable)
	s.Set(llm.KindSummarizer, Available)
	s.Set(llm.KindSummarizer, Unavailable)
	s.Set(llm.KindSummarizer, Downloadable)
	assert.Equal(t, Available, s.Get(llm.KindSummarizer))
}

func TestRefresh_MapsStatusesAndAbsorbsErrors(t *testing.T) {
	fb := &llmfake.Backend{
		LanguageModel: &llmfake.Surface{AvailErr: errors.New("boom")},
		Summarizer:    &llmfake.Surface{Availability: llm.AfterDownload},
	}
	n := NewNegotiator(fb.Backend())
	n.Init(context.Background())

	got := n.Availability()
	assert.Equal(t, Availability{LanguageModel: Unavailable, Summarizer: Downloadable, Translator: Unavailable}, got)
	assert.False(t, n.Present(llm.KindTranslator))
	assert.True(t, n.Present(llm.KindLanguageModel))
	assert.False(t, n.AnyAvailable())
}

func TestPlanForSummary_PriorityOrder(t *testing.T) {
	fb := &llmfake.Backend{
		LanguageModel: &llmfake.Surface{Availability: llm.AfterDownload},
		Summarizer:    &llmfake.Surface{Availability: llm.AfterDownload},
		Translator:    &llmfake.Surface{Availability: llm.AfterDownload},
	}
	n := NewNegotiator(fb.Backend())
	n.Init(context.Background())
	assert.Equal(t, []llm.Kind{llm.KindSummarizer, llm.KindLanguageModel, llm.KindTranslator}, n.PlanForSummary())
}

func TestPlanForSummary_OnlyDownloadable(t *testing.T) {
	fb := &llmfake.Backend{
		LanguageModel: &llmfake.Surface{Availability: llm.No},
		Summarizer:    &llmfake.Surface{Availability: llm.AfterDownload},
		Translator:    &llmfake.Surface{Availability: llm.Readily},
	}
	n := NewNegotiator(fb.Backend())
	n.Init(context.Background())
	assert.Equal(t, []llm.Kind{llm.KindSummarizer}, n.PlanForSummary())
	assert.True(t, n.AnyAvailable())
}

func TestRequestDownload_RequiresActivation(t *testing.T) {
	fb := &llmfake.Backend{Summarizer: &llmfake.Surface{Availability: llm.AfterDownload}}
	n := NewNegotiator(fb.Backend())
	n.Init(context.Background())

	err := n.RequestDownload(context.Background(), llm.KindSummarizer, Activation{}, nil)
	require.ErrorIs(t, err, errs.ErrActivationRequired)
	assert.Equal(t, Downloadable, n.Status(llm.KindSummarizer))
	assert.Zero(t, fb.Created(llm.KindSummarizer))
}

func TestRequestDownload_StaleActivation(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	fb := &llmfake.Backend{Summarizer: &llmfake.Surface{Availability: llm.AfterDownload}}
	n := NewNegotiator(fb.Backend())
	n.Now = func() time.Time { return now }
	n.Init(context.Background())

	err := n.RequestDownload(context.Background(), llm.KindSummarizer, Activation{Active: true, At: now.Add(-time.Minute)}, nil)
	require.ErrorIs(t, err, errs.ErrActivationRequired)

	err = n.RequestDownload(context.Background(), llm.KindSummarizer, Activation{Active: true, At: now.Add(-time.Second)}, nil)
	require.NoError(t, err)
}

func TestRequestDownload_SuccessForwardsProgressAndIsIdempotent(t *testing.T) {
	fb := &llmfake.Backend{Summarizer: &llmfake.Surface{Availability: llm.AfterDownload}}
	n := NewNegotiator(fb.Backend())
	n.Init(context.Background())

	var seen []float64
	err := n.RequestDownload(context.Background(), llm.KindSummarizer, Activation{Active: true}, func(p float64) { seen = append(seen, p) })
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.5, 1}, seen)
	assert.Equal(t, Available, n.Status(llm.KindSummarizer))
	assert.Equal(t, 1, fb.Destroyed(llm.KindSummarizer))

	// Already available: no second create, no activation needed.
	require.NoError(t, n.RequestDownload(context.Background(), llm.KindSummarizer, Activation{}, nil))
	assert.Equal(t, 1, fb.Created(llm.KindSummarizer))
}

func TestRequestDownload_NotDownloadable(t *testing.T) {
	fb := &llmfake.Backend{Translator: &llmfake.Surface{Availability: llm.No}}
	n := NewNegotiator(fb.Backend())
	n.Init(context.Background())

	err := n.RequestDownload(context.Background(), llm.KindTranslator, Activation{Active: true}, nil)
	require.ErrorIs(t, err, errs.ErrNotDownloadable)
	err = n.RequestDownload(context.Background(), llm.KindSummarizer, Activation{Active: true}, nil)
	require.ErrorIs(t, err, errs.ErrNotDownloadable)
}

func TestRequestDownload_BackendFailureLeavesStatus(t *testing.T) {
	cause := errors.New("disk full")
	fb := &llmfake.Backend{LanguageModel: &llmfake.Surface{Availability: llm.AfterDownload, CreateErr: cause}}
	n := NewNegotiator(fb.Backend())
	n.Init(context.Background())

	err := n.RequestDownload(context.Background(), llm.KindLanguageModel, Activation{Active: true}, nil)
	require.ErrorIs(t, err, cause)
	var be *errs.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "languageModel", be.Kind)
	assert.Equal(t, Downloadable, n.Status(llm.KindLanguageModel))
}

func TestRequestDownload_ConcurrentCallsDownloadOnce(t *testing.T) {
	fb := &llmfake.Backend{Translator: &llmfake.Surface{Availability: llm.AfterDownload}}
	n := NewNegotiator(fb.Backend())
	n.Init(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, n.RequestDownload(context.Background(), llm.KindTranslator, Activation{Active: true}, nil))
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, fb.Created(llm.KindTranslator))
	opts := fb.TranslatorOptions()
	require.Len(t, opts, 1)
	assert.Equal(t, llm.TranslatorOptions{SourceLanguage: "en", TargetLanguage: "es"}, opts[0])
}

func TestRefresh_KeepsAvailableAfterDownload(t *testing.T) {
	fb := &llmfake.Backend{Summarizer: &llmfake.Surface{Availability: llm.AfterDownload}}
	n := NewNegotiator(fb.Backend())
	n.Init(context.Background())
	require.NoError(t, n.RequestDownload(context.Background(), llm.KindSummarizer, Activation{Active: true}, nil))

	fb.Summarizer.AvailErr = errors.New("flaky")
	n.Refresh(context.Background())
	assert.Equal(t, Available, n.Status(llm.KindSummarizer))
}
