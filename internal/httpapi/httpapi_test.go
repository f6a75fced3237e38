package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FrankUSC/WebBriefer/internal/message"
)

type stubHandler struct{}

func (stubHandler) Handle(_ context.Context, r message.Request) message.Response {
	if r.Action == "ping" {
		return message.Response{Success: true, Message: "pong"}
	}
	return message.Response{Success: false, Error: "Unknown action"}
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/message", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMessage(t *testing.T) {
	h := New(stubHandler{}, Options{}).Routes()

	rec := post(t, h, `{"id":7,"action":"ping"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "pong", resp["message"])
	assert.Equal(t, float64(7), resp["id"])

	rec = post(t, h, `{"action":"other"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unknown action")

	rec = post(t, h, `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMessage_MethodNotAllowed(t *testing.T) {
	h := New(stubHandler{}, Options{}).Routes()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/message", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMessage_BodyLimit(t *testing.T) {
	h := New(stubHandler{}, Options{MaxBodyBytes: 16}).Routes()
	rec := post(t, h, `{"action":"ping","text":"`+strings.Repeat("x", 64)+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimit(t *testing.T) {
	h := New(stubHandler{}, Options{RequestsPerSecond: 0.001, Burst: 2}).Routes()
	assert.Equal(t, http.StatusOK, post(t, h, `{"action":"ping"}`).Code)
	assert.Equal(t, http.StatusOK, post(t, h, `{"action":"ping"}`).Code)
	rec := post(t, h, `{"action":"ping"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "Too Many Requests")
}

func TestCORSPreflight(t *testing.T) {
	h := New(stubHandler{}, Options{AllowedOrigins: []string{"chrome-extension://abc"}}).Routes()
	req := httptest.NewRequest(http.MethodOptions, "/message", nil)
	req.Header.Set("Origin", "chrome-extension://abc")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "chrome-extension://abc", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodPost, "/message", strings.NewReader(`{"action":"ping"}`))
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealthz(t *testing.T) {
	h := New(stubHandler{}, Options{}).Routes()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEvents(t *testing.T) {
	s := New(stubHandler{}, Options{})
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, "text/event-stream", res.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return s.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	s.Notify(message.Notification{Type: message.NotificationDownloadProgress, Model: "translator", Progress: 30})

	sc := bufio.NewScanner(res.Body)
	var lines []string
	for sc.Scan() {
		if sc.Text() == "" {
			break
		}
		lines = append(lines, sc.Text())
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "event: downloadProgress", lines[0])
	assert.JSONEq(t, `{"type":"downloadProgress","model":"translator","progress":30}`, strings.TrimPrefix(lines[1], "data: "))
}

func TestServe_ShutdownEndsEventStreams(t *testing.T) {
	s := New(stubHandler{}, Options{})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	res, err := http.Get("http://" + ln.Addr().String() + "/events")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Eventually(t, func() bool { return s.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	start := time.Now()
	stop()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("shutdown waited on the open event stream")
	}
	assert.Less(t, time.Since(start), 3*time.Second)
	assert.Equal(t, 0, s.Subscribers())
}
