package app

import (
	"net/http"
	"testing"
)

func TestNewHTTPClient_Profiles(t *testing.T) {
	for _, p := range []transportProfile{llmTransport, fetchTransport} {
		c := newHTTPClient(p)
		if c.Timeout != p.timeout {
			t.Fatalf("timeout=%s, want %s", c.Timeout, p.timeout)
		}
		tr, ok := c.Transport.(*http.Transport)
		if !ok {
			t.Fatalf("transport %T", c.Transport)
		}
		if tr == http.DefaultTransport || tr.MaxIdleConnsPerHost != p.perHost {
			t.Fatalf("transport not tuned: per-host=%d", tr.MaxIdleConnsPerHost)
		}
	}
	if llmTransport.timeout <= fetchTransport.timeout {
		t.Fatal("model requests need a longer timeout than page fetches")
	}
}
