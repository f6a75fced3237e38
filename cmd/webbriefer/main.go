package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/FrankUSC/WebBriefer/internal/app"
	"github.com/FrankUSC/WebBriefer/internal/errs"
)

func main() {
	if err := newCLI(os.Stdout).Run(os.Args); err != nil {
		ev := log.Error().Err(err)
		if code := errs.Code(err); code != "" {
			ev = ev.Str("errorCode", code)
		}
		var dl *errs.DownloadRequiredError
		if errors.As(err, &dl) {
			ev = ev.Strs("downloadable", dl.Models)
		}
		ev.Msg("command failed")
		os.Exit(1)
	}
}

func newCLI(out io.Writer) *cli.App {
	return &cli.App{
		Name:                 "webbriefer",
		Usage:                "summarize web pages, answer questions about them and translate text",
		Version:              app.VersionString(),
		Writer:               out,
		ErrWriter:            os.Stderr,
		EnableBashCompletion: true,
		Flags:                globalFlags(),
		Before:               setupLogging,
		Commands: []*cli.Command{
			extractCommand(),
			summarizeCommand(),
			askCommand(),
			translateCommand(),
			availabilityCommand(),
			downloadCommand(),
			profileCommand(),
			serveCommand(),
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Usage: "YAML or JSON config file"},
		&cli.StringSliceFlag{Name: "env-file", Value: cli.NewStringSlice(".env"), Usage: "dotenv files to load; later files win"},
		&cli.StringFlag{Name: "llm.base", Usage: "OpenAI-compatible base URL"},
		&cli.StringFlag{Name: "llm.key", Usage: "API key for the LLM server"},
		&cli.StringFlag{Name: "llm.model", Usage: "general language model"},
		&cli.StringFlag{Name: "summarizer.model", Usage: "dedicated summarization model"},
		&cli.StringFlag{Name: "translator.model", Usage: "dedicated translation model"},
		&cli.BoolFlag{Name: "allow-download", Usage: "treat models the server does not list as downloadable"},
		&cli.StringFlag{Name: "store", Usage: "profile store: memory:, file:<path>, sqlite:<path> or redis://..."},
		&cli.StringFlag{Name: "cache.dir", Usage: "cache directory for fetched pages and model replies"},
		&cli.DurationFlag{Name: "cache.maxAge", Usage: "purge cache entries older than this at startup"},
		&cli.BoolFlag{Name: "cache.clear", Usage: "clear the cache directory at startup"},
		&cli.BoolFlag{Name: "cache.strictPerms", Usage: "0700 cache dirs and 0600 files"},
		&cli.StringFlag{Name: "export.dir", Value: app.DefaultExportDir, Usage: "directory for exported briefs"},
		&cli.StringFlag{Name: "user-agent", Value: app.DefaultUserAgent, Usage: "User-Agent for page fetches"},
		&cli.BoolFlag{Name: "ignore-robots", Usage: "fetch pages robots.txt disallows"},
		&cli.BoolFlag{Name: "verbose", Usage: "debug logging"},
		&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "only log errors"},
		&cli.BoolFlag{Name: "log.json", Usage: "JSON log lines instead of console output"},
	}
}

func setupLogging(c *cli.Context) error {
	zerolog.TimeFieldFormat = time.RFC3339
	verbose := c.Bool("verbose") || isTruthy(os.Getenv("VERBOSE"))
	if c.Bool("log.json") || isTruthy(os.Getenv("LOG_JSON")) {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	switch {
	case c.Bool("quiet"):
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case verbose:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	return nil
}

func isTruthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// loadConfig merges flags, environment and the config file, in that order
// of precedence.
func loadConfig(c *cli.Context) (app.Config, error) {
	if err := app.LoadEnvFiles(c.StringSlice("env-file")...); err != nil {
		return app.Config{}, fmt.Errorf("load env: %w", err)
	}
	cfg := app.Config{
		LLMBaseURL:       c.String("llm.base"),
		LLMAPIKey:        c.String("llm.key"),
		LLMModel:         c.String("llm.model"),
		SummarizerModel:  c.String("summarizer.model"),
		TranslatorModel:  c.String("translator.model"),
		AllowDownload:    c.Bool("allow-download"),
		StoreURL:         c.String("store"),
		CacheDir:         c.String("cache.dir"),
		CacheMaxAge:      c.Duration("cache.maxAge"),
		CacheClear:       c.Bool("cache.clear"),
		CacheStrictPerms: c.Bool("cache.strictPerms"),
		PageTTL:          app.DefaultPageTTL,
		HTTPAddr:         app.DefaultHTTPAddr,
		ExportDir:        c.String("export.dir"),
		UserAgent:        c.String("user-agent"),
		IgnoreRobots:     c.Bool("ignore-robots"),
		Verbose:          c.Bool("verbose"),
		LogJSON:          c.Bool("log.json"),
	}
	app.ApplyEnvToConfig(&cfg)
	if path := strings.TrimSpace(c.String("config")); path != "" {
		fc, err := app.LoadConfigFile(path)
		if err != nil {
			return app.Config{}, fmt.Errorf("load config: %w", err)
		}
		if err := app.ApplyFileConfig(&cfg, fc); err != nil {
			return app.Config{}, err
		}
	}
	return cfg, app.ValidateConfig(cfg)
}

// withApp builds the app for one command and closes it afterwards.
func withApp(c *cli.Context, fn func(a *app.App) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	a, err := app.New(c.Context, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()
	return fn(a)
}
