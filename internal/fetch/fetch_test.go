package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/FrankUSC/WebBriefer/internal/cache"
)

const article = `<html><head><title>Cats</title></head><body><article><p>Cats sleep a lot.</p></article></body></html>`

func htmlHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}
}

func TestGet_Article(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		htmlHandler(article)(w, r)
	}))
	defer srv.Close()

	c := &Client{UserAgent: "webbriefer-test", PerRequestTimeout: 2 * time.Second}
	p, err := c.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(p.Body) != article || p.FinalURL != srv.URL || p.FromCache || p.Truncated {
		t.Fatalf("page %+v", p)
	}
	if ua != "webbriefer-test" {
		t.Fatalf("user agent %q", ua)
	}
}

func TestGet_RetriesTransientStatus(t *testing.T) {
	for _, code := range []int{http.StatusBadGateway, http.StatusTooManyRequests} {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				w.WriteHeader(code)
				return
			}
			htmlHandler(article)(w, r)
		}))
		c := &Client{MaxAttempts: 2, PerRequestTimeout: 2 * time.Second}
		if _, err := c.Get(context.Background(), srv.URL); err != nil {
			t.Fatalf("%d: expected success after retry, got %v", code, err)
		}
		srv.Close()
	}
}

func TestGet_NotFoundIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := &Client{MaxAttempts: 3}
	_, err := c.Get(context.Background(), srv.URL)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Fatalf("expected 404 StatusError, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("calls=%d, want 1", calls)
	}
}

func TestGet_RevalidatesCachedPage(t *testing.T) {
	var calls int32
	etag := `"rev-7"`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
		htmlHandler(article)(w, r)
	}))
	defer srv.Close()

	dir, err := cache.Open(t.TempDir(), false)
	if err != nil {
		t.Fatal(err)
	}
	c := &Client{Cache: dir.Pages()}

	first, err := c.Get(context.Background(), srv.URL)
	if err != nil || first.FromCache {
		t.Fatalf("first: %+v %v", first, err)
	}
	second, err := c.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if !second.FromCache || string(second.Body) != article || !strings.HasPrefix(second.ContentType, "text/html") {
		t.Fatalf("expected cached page, got %+v", second)
	}

	c.BypassCache = true
	third, err := c.Get(context.Background(), srv.URL)
	if err != nil || third.FromCache {
		t.Fatalf("bypass: %+v %v", third, err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("calls=%d, want 3", calls)
	}
}

func TestGet_NotModifiedWithoutCopy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	_, err := (&Client{}).Get(context.Background(), srv.URL)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotModified {
		t.Fatalf("got %v", err)
	}
}

func TestGet_RejectsNonHTTP(t *testing.T) {
	if _, err := (&Client{}).Get(context.Background(), "file:///etc/hosts"); err == nil {
		t.Fatal("expected error for file scheme")
	}
}

func TestGet_RejectsNonHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.7"))
	}))
	defer srv.Close()

	if _, err := (&Client{}).Get(context.Background(), srv.URL); !errors.Is(err, ErrNotHTML) {
		t.Fatalf("expected ErrNotHTML, got %v", err)
	}
}

func TestGet_Redirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/old":
			http.Redirect(w, r, "/blog/cats", http.StatusMovedPermanently)
		case "/loop":
			http.Redirect(w, r, "/old", http.StatusFound)
		default:
			htmlHandler(article)(w, r)
		}
	}))
	defer srv.Close()

	c := &Client{}
	p, err := c.Get(context.Background(), srv.URL+"/old")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.FinalURL != srv.URL+"/blog/cats" {
		t.Fatalf("final url %q", p.FinalURL)
	}

	c = &Client{RedirectMaxHops: 1}
	if _, err := c.Get(context.Background(), srv.URL+"/loop"); err == nil {
		t.Fatal("expected redirect limit error")
	}
}

func TestGet_MaxConcurrent(t *testing.T) {
	var inFlight, peak int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(100 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		htmlHandler(article)(w, r)
	}))
	defer srv.Close()

	c := &Client{MaxConcurrent: 2, PerRequestTimeout: 2 * time.Second}
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Get(context.Background(), srv.URL)
		}()
	}
	wg.Wait()
	if atomic.LoadInt32(&peak) > 2 {
		t.Fatalf("peak concurrency %d, want <= 2", peak)
	}
}

func TestGet_WaitingForSlotHonorsContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		htmlHandler(article)(w, r)
	}))
	defer srv.Close()
	defer close(release)

	c := &Client{MaxConcurrent: 1}
	go func() { _, _ = c.Get(context.Background(), srv.URL) }()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.Get(ctx, srv.URL); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestGet_TruncatesLargeBody(t *testing.T) {
	srv := httptest.NewServer(htmlHandler(strings.Repeat("a", 1000)))
	defer srv.Close()

	dir, err := cache.Open(t.TempDir(), false)
	if err != nil {
		t.Fatal(err)
	}
	c := &Client{MaxBodyBytes: 10, Cache: dir.Pages()}
	p, err := c.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(p.Body) != 10 || !p.Truncated {
		t.Fatalf("body length %d truncated=%v", len(p.Body), p.Truncated)
	}
	if _, ok := dir.Pages().Lookup(srv.URL); ok {
		t.Fatal("truncated page should not be cached")
	}
}
