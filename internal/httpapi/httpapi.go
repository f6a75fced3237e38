// Package httpapi exposes the message contract over HTTP for hosts that
// cannot use native messaging.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/FrankUSC/WebBriefer/internal/message"
)

// Handler answers one request.
type Handler interface {
	Handle(ctx context.Context, req message.Request) message.Response
}

// Options tune the server. Zero values pick the defaults below.
type Options struct {
	AllowedOrigins []string
	// RequestsPerSecond and Burst configure a process-wide token bucket.
	RequestsPerSecond float64
	Burst             int
	MaxBodyBytes      int64
}

const (
	defaultRPS          = 5
	defaultBurst        = 10
	defaultMaxBodyBytes = 16 << 20
	subscriberBuffer    = 32
)

// Server routes POST /message to the handler, streams notifications on
// GET /events and answers GET /healthz.
type Server struct {
	handler Handler
	opts    Options
	limiter *rate.Limiter

	mu   sync.Mutex
	subs map[chan message.Notification]struct{}

	// closed ends every event stream when the server shuts down.
	closed    chan struct{}
	closeOnce sync.Once
}

func New(h Handler, opts Options) *Server {
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = defaultRPS
	}
	if opts.Burst <= 0 {
		opts.Burst = defaultBurst
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &Server{
		handler: h,
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
		subs:    map[chan message.Notification]struct{}{},
		closed:  make(chan struct{}),
	}
}

// Routes returns the full handler chain: CORS, then rate limiting, then the
// mux.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /message", s.handleMessage)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, message.Response{Success: true, Message: "ok"})
	})

	c := cors.New(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Origin", "Content-Length", "Content-Type"},
	})
	return c.Handler(s.rateLimit(mux))
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Event streams are long-lived and not counted.
		if r.URL.Path != "/events" && !s.limiter.Allow() {
			writeJSON(w, http.StatusTooManyRequests, message.Response{Success: false, Error: "Too Many Requests"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	var req message.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, message.Response{Success: false, Error: "Malformed request: " + err.Error()})
		return
	}
	resp := s.handler.Handle(r.Context(), req)
	resp.ID = req.ID
	// Failures are part of the contract, not transport errors.
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	ch := s.subscribe()
	defer s.unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.closed:
			return
		case n := <-ch:
			b, err := json.Marshal(n)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", n.Type, b); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// Notify fans n out to every connected event stream. Slow subscribers miss
// updates rather than block the caller.
func (s *Server) Notify(n message.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- n:
		default:
		}
	}
}

func (s *Server) subscribe() chan message.Notification {
	ch := make(chan message.Notification, subscriberBuffer)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

func (s *Server) unsubscribe(ch chan message.Notification) {
	s.mu.Lock()
	delete(s.subs, ch)
	s.mu.Unlock()
}

// Subscribers reports the number of open event streams.
func (s *Server) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// CloseStreams ends every open event stream. Streams opened afterwards end
// immediately.
func (s *Server) CloseStreams() {
	s.closeOnce.Do(func() { close(s.closed) })
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(s.CloseStreams)
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Msg("http api listening")
		errc <- srv.Serve(ln)
	}()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("write response")
	}
}
