// Package pagectx keeps the per-page state of a session: the extracted
// content, the latest summary and the Q&A history. Entries expire after a
// period of inactivity.
package pagectx

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/FrankUSC/WebBriefer/internal/page"
	"github.com/FrankUSC/WebBriefer/internal/qa"
	"github.com/FrankUSC/WebBriefer/internal/summarize"
)

const (
	DefaultTTL     = 2 * time.Hour
	DefaultCleanup = 10 * time.Minute
)

// Entry is the state of one page.
type Entry struct {
	mu      sync.Mutex
	content *page.Content
	summary *summarize.Summary
	History qa.History
}

// Content returns the stored content, if any.
func (e *Entry) Content() (*page.Content, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.content, e.content != nil
}

// Summary returns the latest summary, if any.
func (e *Entry) Summary() (summarize.Summary, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.summary == nil {
		return summarize.Summary{}, false
	}
	return *e.summary, true
}

// Store maps page keys (usually the page URL) to entries.
type Store struct {
	c  *cache.Cache
	mu sync.Mutex
}

// New returns a store whose entries live ttl after their last write.
func New(ttl, cleanup time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if cleanup <= 0 {
		cleanup = DefaultCleanup
	}
	return &Store{c: cache.New(ttl, cleanup)}
}

// Entry returns the entry for key, creating an empty one.
func (s *Store) Entry(key string) *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.c.Get(key); ok {
		return v.(*Entry)
	}
	e := &Entry{}
	s.c.Set(key, e, cache.DefaultExpiration)
	return e
}

// Lookup returns the entry for key without creating one.
func (s *Store) Lookup(key string) (*Entry, bool) {
	v, ok := s.c.Get(key)
	if !ok {
		return nil, false
	}
	return v.(*Entry), true
}

// SetContent records freshly extracted content. A new extraction of the
// same page starts a new cycle, so the summary and history are dropped.
func (s *Store) SetContent(key string, c page.Content) {
	e := s.Entry(key)
	e.mu.Lock()
	e.content = &c
	e.summary = nil
	e.mu.Unlock()
	e.History.Reset()
	s.touch(key, e)
}

// SetSummary records sum as the page's summary. It supersedes any earlier
// summary and clears the Q&A history.
func (s *Store) SetSummary(key string, sum summarize.Summary) {
	e := s.Entry(key)
	e.mu.Lock()
	e.summary = &sum
	e.mu.Unlock()
	e.History.Reset()
	s.touch(key, e)
}

// Reset forgets key entirely.
func (s *Store) Reset(key string) {
	s.c.Delete(key)
}

// Len reports the number of live entries.
func (s *Store) Len() int {
	return s.c.ItemCount()
}

func (s *Store) touch(key string, e *Entry) {
	s.c.Set(key, e, cache.DefaultExpiration)
}
