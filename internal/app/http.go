package app

import (
	"net"
	"net/http"
	"time"
)

// transportProfile sizes an outbound client. The model server is one host
// answering slow requests; page fetches spread over many hosts.
type transportProfile struct {
	timeout time.Duration
	perHost int
}

var (
	llmTransport   = transportProfile{timeout: 120 * time.Second, perHost: 32}
	fetchTransport = transportProfile{timeout: 30 * time.Second, perHost: 4}
)

func newHTTPClient(p transportProfile) *http.Client {
	return &http.Client{
		Timeout: p.timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConnsPerHost:   p.perHost,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ResponseHeaderTimeout: p.timeout,
		},
	}
}
