package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/FrankUSC/WebBriefer/internal/cache"
	"github.com/FrankUSC/WebBriefer/internal/capability"
	"github.com/FrankUSC/WebBriefer/internal/dom"
	"github.com/FrankUSC/WebBriefer/internal/errs"
	"github.com/FrankUSC/WebBriefer/internal/extract"
	"github.com/FrankUSC/WebBriefer/internal/fetch"
	"github.com/FrankUSC/WebBriefer/internal/kv"
	"github.com/FrankUSC/WebBriefer/internal/langdetect"
	"github.com/FrankUSC/WebBriefer/internal/llm"
	"github.com/FrankUSC/WebBriefer/internal/message"
	"github.com/FrankUSC/WebBriefer/internal/page"
	"github.com/FrankUSC/WebBriefer/internal/pagectx"
	"github.com/FrankUSC/WebBriefer/internal/profile"
	"github.com/FrankUSC/WebBriefer/internal/qa"
	"github.com/FrankUSC/WebBriefer/internal/robots"
	"github.com/FrankUSC/WebBriefer/internal/session"
	"github.com/FrankUSC/WebBriefer/internal/summarize"
	"github.com/FrankUSC/WebBriefer/internal/translate"
)

// LLM reply cache bounds enforced at startup.
const (
	replyCacheMaxBytes = 256 << 20
	replyCacheMaxCount = 5000
)

// ErrNoSource is returned by Load for an empty source argument.
var ErrNoSource = errors.New("no page source given")

// App owns every long-lived component. The CLI drives it directly; the
// serve command hands Dispatcher to a transport.
type App struct {
	cfg       Config
	ai        *openai.Client
	store     kv.Store
	fetcher   *fetch.Client
	robots    *robots.Checker
	extractor *extract.HeuristicExtractor

	Capabilities *capability.Negotiator
	Sessions     *session.Registry
	Summaries    *summarize.Orchestrator
	Answers      *qa.Orchestrator
	Translator   *translate.Chain
	Profiles     *profile.Repository
	Pages        *pagectx.Store
	Languages    *langdetect.Detector
	Dispatcher   *message.Dispatcher
}

// New builds the component graph and runs the startup capability query.
// An unreachable backend is not fatal: its surfaces report unavailable and
// the local fallbacks take over.
func New(ctx context.Context, cfg Config) (*App, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	a := &App{cfg: cfg}

	var (
		replies *cache.Replies
		pages   *cache.Pages
	)
	if cfg.CacheDir != "" {
		dir, err := cache.Open(cfg.CacheDir, cfg.CacheStrictPerms)
		if err != nil {
			return nil, err
		}
		if cfg.CacheClear {
			if err := dir.Clear(); err != nil {
				log.Warn().Err(err).Str("dir", cfg.CacheDir).Msg("cache not cleared")
			}
		}
		if n, err := dir.Prune(cfg.CacheMaxAge); err == nil && n != (cache.Pruned{}) {
			log.Debug().Int("replies", n.Replies).Int("pages", n.Pages).Msg("pruned stale cache entries")
		}
		if _, err := dir.Trim(replyCacheMaxBytes, replyCacheMaxCount); err != nil {
			log.Warn().Err(err).Str("dir", cfg.CacheDir).Msg("reply cache limits not enforced")
		}
		replies, pages = dir.Replies(), dir.Pages()
	}

	store, err := kv.Open(ctx, cfg.StoreURL)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.store = store

	backend := a.backend(ctx, replies)

	a.Capabilities = capability.NewNegotiator(backend)
	a.Capabilities.Init(ctx)
	a.Sessions = session.NewRegistry()
	a.Summaries = summarize.New(a.Capabilities, a.Sessions)
	a.Translator = a.Summaries.Translator
	a.Answers = &qa.Orchestrator{Capabilities: a.Capabilities, Sessions: a.Sessions}
	a.Profiles = &profile.Repository{Store: store}
	ttl := cfg.PageTTL
	if ttl <= 0 {
		ttl = DefaultPageTTL
	}
	a.Pages = pagectx.New(ttl, pagectx.DefaultCleanup)
	a.Languages = langdetect.New()

	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	fetchClient := newHTTPClient(fetchTransport)
	a.fetcher = &fetch.Client{
		HTTPClient:        fetchClient,
		UserAgent:         ua,
		MaxAttempts:       2,
		PerRequestTimeout: fetchTransport.timeout,
		Cache:             pages,
		RedirectMaxHops:   5,
		MaxConcurrent:     4,
		MaxBodyBytes:      16 << 20,
	}
	if !cfg.IgnoreRobots {
		a.robots = robots.NewChecker(fetchClient, ua, robots.DefaultTTL)
	}
	a.extractor = &extract.HeuristicExtractor{
		Sizer: &extract.RemoteSizer{HTTPClient: fetchClient, Timeout: 5 * time.Second},
	}

	a.Dispatcher = &message.Dispatcher{
		Capabilities: a.Capabilities,
		Summaries:    a.Summaries,
		Answers:      a.Answers,
		Translator:   a.Translator,
		// Host-supplied HTML is never followed out to the network.
		Extractor: &extract.HeuristicExtractor{},
		Profiles:     a.Profiles,
		Pages:        a.Pages,
		Languages:    a.Languages,
	}

	av := a.Capabilities.Availability()
	log.Info().
		Str("languageModel", string(av.LanguageModel)).
		Str("summarizer", string(av.Summarizer)).
		Str("translator", string(av.Translator)).
		Msg("capabilities")
	return a, nil
}

// backend connects to the OpenAI-compatible server when one is configured.
func (a *App) backend(ctx context.Context, replies *cache.Replies) llm.Backend {
	if strings.TrimSpace(a.cfg.LLMBaseURL) == "" {
		log.Info().Msg("no LLM server configured; using local fallbacks")
		return llm.Backend{}
	}
	a.ai = llm.NewClient(a.cfg.LLMBaseURL, a.cfg.LLMAPIKey, newHTTPClient(llmTransport))

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	models, err := a.ai.ListModels(pctx)
	switch {
	case err != nil:
		log.Warn().Err(err).Str("base", a.cfg.LLMBaseURL).Msg("LLM model list failed; continuing")
	case len(models.Models) == 0:
		log.Warn().Msg("LLM returned zero models")
	default:
		log.Info().Int("count", len(models.Models)).Msg("LLM models available")
	}

	adapter := &llm.OpenAI{
		Client: a.ai,
		Models: llm.Models{
			LanguageModel: a.cfg.LLMModel,
			Summarizer:    a.cfg.SummarizerModel,
			Translator:    a.cfg.TranslatorModel,
		},
		Cache:         replies,
		AllowDownload: a.cfg.AllowDownload,
	}
	return adapter.Backend()
}

// Close destroys retained sessions and closes the store.
func (a *App) Close() {
	if a.Sessions != nil {
		a.Sessions.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Warn().Err(err).Msg("store close failed")
		}
	}
}

// Load extracts a page from an http(s) URL, a local HTML file, or "-" for
// stdin. The result is recorded as the page's current content.
func (a *App) Load(ctx context.Context, source string) (page.Content, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return page.Content{}, ErrNoSource
	}
	body, pageURL, err := a.read(ctx, source)
	if err != nil {
		return page.Content{}, err
	}
	doc, err := dom.Parse(bytes.NewReader(body))
	if err != nil {
		return page.Content{}, fmt.Errorf("parse %s: %w", source, err)
	}
	c := a.extractor.Extract(ctx, doc, pageURL)
	a.Pages.SetContent(c.URL, c)
	return c, nil
}

func (a *App) read(ctx context.Context, source string) ([]byte, string, error) {
	if source == "-" {
		b, err := io.ReadAll(os.Stdin)
		return b, "", err
	}
	if u, err := url.Parse(source); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		if a.robots != nil {
			if err := a.robots.Check(ctx, source); err != nil {
				return nil, "", err
			}
		}
		p, err := a.fetcher.Get(ctx, source)
		if err != nil {
			return nil, "", fmt.Errorf("fetch %s: %w", source, err)
		}
		if p.FromCache {
			log.Debug().Str("url", source).Msg("page served from cache")
		}
		if p.Truncated {
			log.Warn().Str("url", source).Int("bytes", len(p.Body)).Msg("page body truncated")
		}
		final := p.FinalURL
		if final == "" {
			final = source
		}
		return p.Body, final, nil
	}
	b, err := os.ReadFile(source)
	if err != nil {
		return nil, "", err
	}
	abs, err := filepath.Abs(source)
	if err != nil {
		abs = source
	}
	return b, (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}

// Profile returns the stored reader profile. lang, when set, overrides the
// preferred language for this call only.
func (a *App) Profile(ctx context.Context, lang string) (profile.Profile, error) {
	p, err := a.Profiles.Load(ctx)
	if err != nil {
		return profile.Profile{}, err
	}
	if lang = strings.ToLower(strings.TrimSpace(lang)); lang != "" {
		if !profile.IsISO6391(lang) {
			return profile.Profile{}, fmt.Errorf("invalid language code %q", lang)
		}
		p.PreferredLanguage = lang
	}
	return p, nil
}

// Summarize summarizes c for the stored profile and records the summary.
func (a *App) Summarize(ctx context.Context, c page.Content, lang string) (summarize.Summary, error) {
	p, err := a.Profile(ctx, lang)
	if err != nil {
		return summarize.Summary{}, err
	}
	s, err := a.Summaries.Generate(ctx, &c, p)
	if err != nil {
		return summarize.Summary{}, err
	}
	a.Pages.SetSummary(c.URL, s)
	return s, nil
}

// Ask answers question about c, summarizing it first when no summary is
// recorded for the page.
func (a *App) Ask(ctx context.Context, c page.Content, question string) (qa.Exchange, error) {
	p, err := a.Profile(ctx, "")
	if err != nil {
		return qa.Exchange{}, err
	}
	entry := a.Pages.Entry(c.URL)
	s, ok := entry.Summary()
	if !ok {
		if s, err = a.Summaries.Generate(ctx, &c, p); err != nil {
			return qa.Exchange{}, err
		}
		a.Pages.SetSummary(c.URL, s)
	}
	return a.Answers.Answer(ctx, question, s.Original, &c, p, &entry.History)
}

// Translate translates English text to target and reports the detected
// language of the input.
func (a *App) Translate(ctx context.Context, text, target string) (translated, detected string, tier translate.Tier) {
	translated, tier = a.Translator.TranslateTier(ctx, text, target)
	return translated, a.Languages.Detect(text), tier
}

// Availability re-queries the backend.
func (a *App) Availability(ctx context.Context) capability.Availability {
	a.Capabilities.Refresh(ctx)
	return a.Capabilities.Availability()
}

// Download prepares a downloadable model. Running the command counts as the
// user gesture a download requires.
func (a *App) Download(ctx context.Context, modelType string, progress llm.Monitor) error {
	k, ok := llm.ParseKind(modelType)
	if !ok {
		return fmt.Errorf("%w: %q", errs.ErrUnknownModel, modelType)
	}
	a.Capabilities.Refresh(ctx)
	act := capability.Activation{Active: true, At: time.Now()}
	return a.Capabilities.RequestDownload(ctx, k, act, progress)
}

// Export writes s as Markdown, or as PDF when the path ends in .pdf. An
// empty path derives one under the export directory.
func (a *App) Export(s summarize.Summary, c page.Content, path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		path = ExportPath(a.cfg.ExportDir, c.Title, c.URL, ".md")
	}
	md := SummaryMarkdown(s, c)
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		if err := WriteSummaryPDF(md, path); err != nil {
			return "", fmt.Errorf("write pdf: %w", err)
		}
		return path, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(md), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// SummaryMarkdown is the exported document: the displayed summary text
// followed by a source footer.
func SummaryMarkdown(s summarize.Summary, c page.Content) string {
	var b strings.Builder
	text := s.Translated
	if strings.TrimSpace(text) == "" {
		text = s.Original
	}
	b.WriteString(strings.TrimSpace(text))
	b.WriteString("\n\n---\n\n")
	if c.Title != "" {
		fmt.Fprintf(&b, "Source: [%s](%s)\n", c.Title, c.URL)
	} else if c.URL != "" {
		fmt.Fprintf(&b, "Source: %s\n", c.URL)
	}
	if !s.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "Generated: %s\n", s.GeneratedAt.UTC().Format(time.RFC3339))
	}
	if s.Language != "" {
		fmt.Fprintf(&b, "Language: %s\n", s.Language)
	}
	return b.String()
}
