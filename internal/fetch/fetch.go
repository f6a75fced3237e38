// Package fetch downloads HTML pages for briefing.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/FrankUSC/WebBriefer/internal/cache"
)

// DefaultMaxBodyBytes caps page bodies at 10 MiB.
const DefaultMaxBodyBytes = 10 << 20

const defaultRedirectHops = 5

// ErrNotHTML is returned for responses that are not HTML documents.
var ErrNotHTML = errors.New("not an HTML document")

// StatusError reports a non-2xx, non-304 response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.Code, http.StatusText(e.Code))
}

// retryable reports whether trying again may succeed.
func (e *StatusError) retryable() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

// Page is a fetched HTML document.
type Page struct {
	Body        []byte
	ContentType string
	// FinalURL is the URL after redirects; relative links resolve against it.
	FinalURL  string
	FromCache bool
	// Truncated is set when the body hit the size cap.
	Truncated bool
}

// Client fetches pages with bounded retry, a concurrency cap and conditional
// revalidation against an optional page cache.
type Client struct {
	HTTPClient *http.Client
	UserAgent  string
	// MaxAttempts includes the initial attempt. Minimum 1.
	MaxAttempts int
	// PerRequestTimeout bounds each attempt.
	PerRequestTimeout time.Duration
	Cache             *cache.Pages
	// BypassCache skips revalidation but still stores the response.
	BypassCache bool
	// RedirectMaxHops caps redirect following. Zero means 5.
	RedirectMaxHops int
	// MaxConcurrent limits in-flight requests. Zero means unlimited.
	MaxConcurrent int
	// MaxBodyBytes caps the body size. Zero means DefaultMaxBodyBytes.
	MaxBodyBytes int64

	semOnce sync.Once
	sem     *semaphore.Weighted
}

// Get fetches rawURL. A cached copy with validators is revalidated and served
// on 304 Not Modified.
func (c *Client) Get(ctx context.Context, rawURL string) (Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Page{}, fmt.Errorf("parse url: %w", err)
	}
	if !isHTTPScheme(u) {
		return Page{}, fmt.Errorf("unsupported URL scheme: %q", u.Scheme)
	}

	var cached *cache.Page
	if !c.BypassCache {
		if p, ok := c.Cache.Lookup(rawURL); ok && p.Revalidatable() {
			cached = p
		}
	}

	attempts := max(c.MaxAttempts, 1)
	for i := 1; ; i++ {
		page, err := c.attempt(ctx, rawURL, cached)
		if err == nil {
			return page, nil
		}
		if i == attempts || !transient(err) {
			return Page{}, err
		}
		select {
		case <-ctx.Done():
			return Page{}, ctx.Err()
		case <-time.After(time.Duration(i) * 200 * time.Millisecond):
		}
	}
}

func (c *Client) attempt(ctx context.Context, rawURL string, cached *cache.Page) (Page, error) {
	if err := c.acquire(ctx); err != nil {
		return Page{}, err
	}
	defer c.release()

	if c.PerRequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.PerRequestTimeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Page{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.1")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	cached.SetConditional(req.Header)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return Page{}, err
	}
	defer resp.Body.Close()
	final := resp.Request.URL.String()

	if resp.StatusCode == http.StatusNotModified {
		if cached == nil {
			return Page{}, &StatusError{Code: resp.StatusCode}
		}
		return Page{Body: cached.Body, ContentType: cached.ContentType, FinalURL: final, FromCache: true}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Page{}, &StatusError{Code: resp.StatusCode}
	}
	ct := resp.Header.Get("Content-Type")
	if !isHTML(ct) {
		return Page{}, fmt.Errorf("%w: %s", ErrNotHTML, ct)
	}

	limit := c.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return Page{}, fmt.Errorf("read body: %w", err)
	}
	page := Page{Body: body, ContentType: ct, FinalURL: final}
	if int64(len(body)) > limit {
		page.Body, page.Truncated = body[:limit], true
	}

	if !page.Truncated {
		_ = c.Cache.Store(cache.Page{
			URL:          rawURL,
			ContentType:  ct,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			Body:         page.Body,
		})
	}
	return page, nil
}

func transient(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.retryable()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// httpClient copies the configured client so the redirect policy does not
// leak into the caller's.
func (c *Client) httpClient() *http.Client {
	var hc http.Client
	if c.HTTPClient != nil {
		hc = *c.HTTPClient
	} else {
		hc.Timeout = c.PerRequestTimeout
	}
	hops := c.RedirectMaxHops
	if hops <= 0 {
		hops = defaultRedirectHops
	}
	hc.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= hops {
			return fmt.Errorf("stopped after %d redirects", hops)
		}
		if !isHTTPScheme(req.URL) {
			return errors.New("redirect to unsupported scheme")
		}
		return nil
	}
	return &hc
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return true
	}
	return false
}

func isHTML(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "text/html" || mt == "application/xhtml+xml"
}

func (c *Client) acquire(ctx context.Context) error {
	if c.MaxConcurrent <= 0 {
		return nil
	}
	c.semOnce.Do(func() { c.sem = semaphore.NewWeighted(int64(c.MaxConcurrent)) })
	return c.sem.Acquire(ctx, 1)
}

func (c *Client) release() {
	if c.sem != nil {
		c.sem.Release(1)
	}
}
