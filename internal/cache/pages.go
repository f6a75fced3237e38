package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Page is a stored HTTP response with the validators needed to revalidate it.
type Page struct {
	URL          string    `json:"url"`
	ContentType  string    `json:"content_type"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	SavedAt      time.Time `json:"saved_at"`
	Body         []byte    `json:"body"`
}

// Revalidatable reports whether the server can answer 304 for p.
func (p *Page) Revalidatable() bool {
	return p != nil && (p.ETag != "" || p.LastModified != "")
}

// SetConditional adds If-None-Match and If-Modified-Since to h.
func (p *Page) SetConditional(h http.Header) {
	if p == nil {
		return
	}
	if p.ETag != "" {
		h.Set("If-None-Match", p.ETag)
	}
	if p.LastModified != "" {
		h.Set("If-Modified-Since", p.LastModified)
	}
}

// Pages stores fetched pages keyed by URL. A nil *Pages is an always-missing
// cache.
type Pages struct {
	dir    string
	strict bool
}

func (s *Pages) path(url string) string {
	h := sha256.Sum256([]byte(url))
	return filepath.Join(s.dir, hex.EncodeToString(h[:])+".json")
}

// Lookup returns the stored page for url.
func (s *Pages) Lookup(url string) (*Page, bool) {
	if s == nil {
		return nil, false
	}
	p, err := readPage(s.path(url))
	if err != nil || p.URL != url {
		return nil, false
	}
	return p, true
}

// Store records p, replacing any earlier copy of the same URL.
func (s *Pages) Store(p Page) error {
	if s == nil {
		return nil
	}
	if p.SavedAt.IsZero() {
		p.SavedAt = time.Now().UTC()
	}
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return writeFile(s.path(p.URL), b, s.strict)
}

func readPage(path string) (*Page, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Page
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
