// Package capability tracks which generative surfaces are usable and drives
// user-initiated model downloads.
package capability

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/FrankUSC/WebBriefer/internal/errs"
	"github.com/FrankUSC/WebBriefer/internal/llm"
)

// Status is the normalized state of one surface.
type Status string

const (
	Unavailable  Status = "unavailable"
	Downloadable Status = "downloadable"
	Available    Status = "available"
)

// FromAvailability maps a raw backend answer to a Status.
func FromAvailability(a llm.Availability) Status {
	switch a {
	case llm.Readily:
		return Available
	case llm.AfterDownload:
		return Downloadable
	}
	return Unavailable
}

// Store holds the status of every surface for the life of the process.
// A surface that became available stays available.
type Store struct {
	mu sync.RWMutex
	m  map[llm.Kind]Status
}

func NewStore() *Store {
	return &Store{m: map[llm.Kind]Status{}}
}

// Get returns Unavailable for a surface never recorded.
func (s *Store) Get(k llm.Kind) Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.m[k]; ok {
		return st
	}
	return Unavailable
}

// Set records st unless it would move k out of Available.
func (s *Store) Set(k llm.Kind, st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m[k] == Available && st != Available {
		return
	}
	s.m[k] = st
}

// Availability is the per-surface status snapshot returned to callers.
type Availability struct {
	LanguageModel Status `json:"languageModel"`
	Summarizer    Status `json:"summarizer"`
	Translator    Status `json:"translator"`
}

// Get returns the status of k.
func (a Availability) Get(k llm.Kind) Status {
	switch k {
	case llm.KindLanguageModel:
		return a.LanguageModel
	case llm.KindSummarizer:
		return a.Summarizer
	case llm.KindTranslator:
		return a.Translator
	}
	return Unavailable
}

// Activation is the host's assertion that a user gesture happened.
type Activation struct {
	Active bool
	// At is when the gesture happened. Zero means "now".
	At time.Time
}

// DefaultActivationWindow is how long a gesture stays usable.
const DefaultActivationWindow = 5 * time.Second

// Probe languages used to ask whether a translator exists at all.
const (
	ProbeSource = "en"
	ProbeTarget = "es"
)

// Negotiator queries the backend and owns the capability Store.
type Negotiator struct {
	Backend llm.Backend
	Store   *Store
	// ActivationWindow bounds how old a gesture may be. Zero means
	// DefaultActivationWindow.
	ActivationWindow time.Duration
	Now              func() time.Time

	dl sync.Mutex
}

// NewNegotiator returns a negotiator with a fresh Store.
func NewNegotiator(b llm.Backend) *Negotiator {
	return &Negotiator{Backend: b, Store: NewStore()}
}

func (n *Negotiator) now() time.Time {
	if n.Now != nil {
		return n.Now()
	}
	return time.Now()
}

// Init performs the first availability query.
func (n *Negotiator) Init(ctx context.Context) {
	n.Refresh(ctx)
}

// Refresh re-queries every surface. Query failures degrade that surface to
// Unavailable; they are logged and never returned.
func (n *Negotiator) Refresh(ctx context.Context) {
	for _, k := range llm.Kinds {
		n.Store.Set(k, n.query(ctx, k))
	}
}

func (n *Negotiator) query(ctx context.Context, k llm.Kind) Status {
	if !n.Backend.Has(k) {
		return Unavailable
	}
	var (
		a   llm.Availability
		err error
	)
	switch k {
	case llm.KindLanguageModel:
		a, err = n.Backend.LanguageModel.Availability(ctx)
	case llm.KindSummarizer:
		a, err = n.Backend.Summarizer.Availability(ctx, llm.DefaultSummarizerOptions)
	case llm.KindTranslator:
		a, err = n.Backend.Translator.Availability(ctx, llm.TranslatorOptions{SourceLanguage: ProbeSource, TargetLanguage: ProbeTarget})
	}
	if err != nil {
		log.Warn().Err(err).Str("capability", string(k)).Msg("availability check failed")
		return Unavailable
	}
	return FromAvailability(a)
}

// Status returns the cached status of k.
func (n *Negotiator) Status(k llm.Kind) Status {
	return n.Store.Get(k)
}

// Present reports whether the backend exposes k at all.
func (n *Negotiator) Present(k llm.Kind) bool {
	return n.Backend.Has(k)
}

// Availability returns a snapshot of every surface.
func (n *Negotiator) Availability() Availability {
	return Availability{
		LanguageModel: n.Store.Get(llm.KindLanguageModel),
		Summarizer:    n.Store.Get(llm.KindSummarizer),
		Translator:    n.Store.Get(llm.KindTranslator),
	}
}

// PlanForSummary lists the downloadable surfaces in priority order
// summarizer, language model, translator.
func (n *Negotiator) PlanForSummary() []llm.Kind {
	var plan []llm.Kind
	for _, k := range llm.Kinds {
		if n.Store.Get(k) == Downloadable {
			plan = append(plan, k)
		}
	}
	return plan
}

// AnyAvailable reports whether any surface can serve requests now.
func (n *Negotiator) AnyAvailable() bool {
	for _, k := range llm.Kinds {
		if n.Store.Get(k) == Available {
			return true
		}
	}
	return false
}

// RequestDownload downloads k by creating and discarding a session, with
// progress forwarded to monitor. It is a no-op for an available surface.
// Downloads are serialized, so concurrent requests for the same surface
// cause at most one download.
func (n *Negotiator) RequestDownload(ctx context.Context, k llm.Kind, act Activation, monitor llm.Monitor) error {
	n.dl.Lock()
	defer n.dl.Unlock()

	switch n.Store.Get(k) {
	case Available:
		return nil
	case Downloadable:
	default:
		return errs.ErrNotDownloadable
	}
	if !n.activationValid(act) {
		return errs.ErrActivationRequired
	}
	if err := n.createAndDiscard(ctx, k, monitor); err != nil {
		log.Warn().Err(err).Str("capability", string(k)).Msg("model download failed")
		return &errs.BackendError{Kind: string(k), Err: err}
	}
	n.Store.Set(k, Available)
	log.Info().Str("capability", string(k)).Msg("model ready")
	return nil
}

func (n *Negotiator) activationValid(act Activation) bool {
	if !act.Active {
		return false
	}
	if act.At.IsZero() {
		return true
	}
	window := n.ActivationWindow
	if window <= 0 {
		window = DefaultActivationWindow
	}
	return n.now().Sub(act.At) <= window
}

func (n *Negotiator) createAndDiscard(ctx context.Context, k llm.Kind, monitor llm.Monitor) error {
	switch k {
	case llm.KindLanguageModel:
		s, err := n.Backend.LanguageModel.Create(ctx, llm.LanguageModelOptions{}, monitor)
		if err != nil {
			return err
		}
		s.Destroy()
	case llm.KindSummarizer:
		s, err := n.Backend.Summarizer.Create(ctx, llm.DefaultSummarizerOptions, monitor)
		if err != nil {
			return err
		}
		s.Destroy()
	case llm.KindTranslator:
		s, err := n.Backend.Translator.Create(ctx, llm.TranslatorOptions{SourceLanguage: ProbeSource, TargetLanguage: ProbeTarget}, monitor)
		if err != nil {
			return err
		}
		s.Destroy()
	default:
		return errs.ErrUnknownModel
	}
	return nil
}
