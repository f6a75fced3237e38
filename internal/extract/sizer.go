package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/disintegration/imaging"
)

// ImageSizer reports the pixel dimensions of an image URL.
type ImageSizer interface {
	Size(ctx context.Context, src string) (width, height int, err error)
}

// RemoteSizer downloads and decodes images to measure them. Results,
// including failures, are memoized per URL for the lifetime of the sizer.
type RemoteSizer struct {
	HTTPClient *http.Client
	// MaxBytes caps how much of an image body is read. Zero means 5 MiB.
	MaxBytes int64
	Timeout  time.Duration

	mu   sync.Mutex
	seen map[string]size
}

type size struct {
	w, h int
	err  error
}

func (s *RemoteSizer) Size(ctx context.Context, src string) (int, int, error) {
	s.mu.Lock()
	if s.seen == nil {
		s.seen = map[string]size{}
	}
	if v, ok := s.seen[src]; ok {
		s.mu.Unlock()
		return v.w, v.h, v.err
	}
	s.mu.Unlock()

	w, h, err := s.measure(ctx, src)

	s.mu.Lock()
	s.seen[src] = size{w: w, h: h, err: err}
	s.mu.Unlock()
	return w, h, err
}

func (s *RemoteSizer) measure(ctx context.Context, src string) (int, int, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("new request: %w", err)
	}
	client := s.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, 0, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	limit := s.MaxBytes
	if limit <= 0 {
		limit = 5 << 20
	}
	img, err := imaging.Decode(io.LimitReader(resp.Body, limit))
	if err != nil {
		return 0, 0, fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	return b.Dx(), b.Dy(), nil
}
