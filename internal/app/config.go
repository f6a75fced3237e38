package app

import "time"

// Config holds runtime configuration for the application.
type Config struct {
	// LLM
	LLMBaseURL      string
	LLMAPIKey       string
	LLMModel        string
	SummarizerModel string
	TranslatorModel string
	AllowDownload   bool

	// Persistence
	StoreURL         string
	CacheDir         string
	CacheMaxAge      time.Duration
	CacheClear       bool
	CacheStrictPerms bool
	// PageTTL bounds how long per-page summaries and Q&A history are kept.
	PageTTL time.Duration

	// Server
	HTTPAddr       string
	AllowedOrigins []string
	RateLimit      float64
	RateBurst      int

	// Behavior
	UserAgent string
	// IgnoreRobots skips the robots.txt check on page fetches.
	IgnoreRobots bool
	ExportDir string
	Verbose   bool
	LogJSON   bool
}

// Defaults applied by the CLI flag layer. ApplyFileConfig treats a field that
// still holds its default as unset.
const (
	DefaultHTTPAddr  = "127.0.0.1:8787"
	DefaultUserAgent = "WebBriefer/1.0 (+https://github.com/FrankUSC/WebBriefer)"
	DefaultExportDir = "briefs"
	DefaultPageTTL   = 2 * time.Hour
)
