package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/FrankUSC/WebBriefer/internal/app"
	"github.com/FrankUSC/WebBriefer/internal/httpapi"
	"github.com/FrankUSC/WebBriefer/internal/message"
	"github.com/FrankUSC/WebBriefer/internal/nativemsg"
	"github.com/FrankUSC/WebBriefer/internal/profile"
)

var errUsage = errors.New("missing argument")

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func extractCommand() *cli.Command {
	return &cli.Command{
		Name:      "extract",
		Usage:     "extract structured content from a page",
		ArgsUsage: "<url|file|->",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("%w: page source", errUsage)
			}
			return withApp(c, func(a *app.App) error {
				content, err := a.Load(c.Context, c.Args().First())
				if err != nil {
					return err
				}
				return printJSON(c.App.Writer, content)
			})
		},
	}
}

func summarizeCommand() *cli.Command {
	return &cli.Command{
		Name:      "summarize",
		Usage:     "summarize a page for the stored reader profile",
		ArgsUsage: "<url|file|->",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "lang", Usage: "ISO-639-1 language of the summary (default: profile language)"},
			&cli.StringFlag{Name: "out", Usage: "write the summary as Markdown to this path"},
			&cli.StringFlag{Name: "pdf", Usage: "write the summary as PDF to this path"},
			&cli.BoolFlag{Name: "export", Usage: "write Markdown under --export.dir with a derived name"},
			&cli.BoolFlag{Name: "json", Usage: "print the summary record as JSON"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("%w: page source", errUsage)
			}
			return withApp(c, func(a *app.App) error {
				content, err := a.Load(c.Context, c.Args().First())
				if err != nil {
					return err
				}
				s, err := a.Summarize(c.Context, content, c.String("lang"))
				if err != nil {
					return err
				}
				log.Info().Str("generator", string(s.Generator)).Int("words", s.WordCount).Msg("summary ready")

				var paths []string
				if c.Bool("export") {
					paths = append(paths, "")
				}
				for _, name := range []string{"out", "pdf"} {
					if p := c.String(name); p != "" {
						paths = append(paths, p)
					}
				}
				for _, p := range paths {
					written, err := a.Export(s, content, p)
					if err != nil {
						return err
					}
					log.Info().Str("path", written).Msg("summary exported")
				}

				if c.Bool("json") {
					return printJSON(c.App.Writer, s)
				}
				_, err = fmt.Fprintln(c.App.Writer, strings.TrimSpace(s.Translated))
				return err
			})
		},
	}
}

func askCommand() *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "answer a question about a page",
		ArgsUsage: "<url|file|-> <question...>",
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return fmt.Errorf("%w: page source and question", errUsage)
			}
			question := strings.Join(c.Args().Tail(), " ")
			return withApp(c, func(a *app.App) error {
				content, err := a.Load(c.Context, c.Args().First())
				if err != nil {
					return err
				}
				ex, err := a.Ask(c.Context, content, question)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(c.App.Writer, ex.Answer)
				return err
			})
		},
	}
}

func translateCommand() *cli.Command {
	return &cli.Command{
		Name:      "translate",
		Usage:     "translate English text; reads stdin when no text is given",
		ArgsUsage: "<text...>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "to", Required: true, Usage: "ISO-639-1 target language"},
		},
		Action: func(c *cli.Context) error {
			text := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(text) == "" {
				b, err := io.ReadAll(os.Stdin)
				if err != nil {
					return err
				}
				text = string(b)
			}
			return withApp(c, func(a *app.App) error {
				out, detected, tier := a.Translate(c.Context, text, c.String("to"))
				log.Debug().Str("originalLanguage", detected).Str("via", string(tier)).Msg("translated")
				_, err := fmt.Fprintln(c.App.Writer, out)
				return err
			})
		},
	}
}

func availabilityCommand() *cli.Command {
	return &cli.Command{
		Name:  "availability",
		Usage: "show the status of the language model, summarizer and translator",
		Action: func(c *cli.Context) error {
			return withApp(c, func(a *app.App) error {
				return printJSON(c.App.Writer, a.Availability(c.Context))
			})
		},
	}
}

func downloadCommand() *cli.Command {
	return &cli.Command{
		Name:      "download",
		Usage:     "download a model reported as downloadable",
		ArgsUsage: "<languageModel|summarizer|translator>",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("%w: model type", errUsage)
			}
			kind := c.Args().First()
			return withApp(c, func(a *app.App) error {
				err := a.Download(c.Context, kind, func(p float64) {
					log.Info().Str("model", kind).Int("progress", int(math.Round(p*100))).Msg("download progress")
				})
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(c.App.Writer, "%s ready\n", kind)
				return err
			})
		},
	}
}

func profileCommand() *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "show or update the reader profile",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "print the stored profile",
				Action: func(c *cli.Context) error {
					return withApp(c, func(a *app.App) error {
						p, err := a.Profiles.Load(c.Context)
						if err != nil {
							return err
						}
						return printJSON(c.App.Writer, p)
					})
				},
			},
			{
				Name:  "set",
				Usage: "update profile fields; unset flags keep their stored value",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "age"},
					&cli.StringFlag{Name: "occupation"},
					&cli.StringFlag{Name: "education"},
					&cli.StringFlag{Name: "language"},
					&cli.StringFlag{Name: "style", Usage: "balanced, brief, detailed, technical or simple"},
					&cli.StringSliceFlag{Name: "focus", Usage: "keyPoints, numbers, quotes, actions (replaces the stored set)"},
				},
				Action: func(c *cli.Context) error {
					return withApp(c, func(a *app.App) error {
						p, err := a.Profiles.Load(c.Context)
						if err != nil {
							return err
						}
						if err := applyProfileFlags(c, &p); err != nil {
							return err
						}
						saved, err := a.Profiles.Save(c.Context, p)
						if err != nil {
							return err
						}
						return printJSON(c.App.Writer, saved)
					})
				},
			},
		},
	}
}

func applyProfileFlags(c *cli.Context, p *profile.Profile) error {
	if c.IsSet("age") {
		p.Age = c.Int("age")
	}
	if c.IsSet("occupation") {
		p.Occupation = c.String("occupation")
	}
	if c.IsSet("education") {
		p.Education = c.String("education")
	}
	if c.IsSet("language") {
		p.PreferredLanguage = c.String("language")
	}
	if c.IsSet("style") {
		p.SummaryStyle = c.String("style")
	}
	if c.IsSet("focus") {
		var f profile.Focus
		for _, name := range c.StringSlice("focus") {
			switch strings.ToLower(strings.TrimSpace(name)) {
			case "keypoints", "key-points":
				f.KeyPoints = true
			case "numbers":
				f.Numbers = true
			case "quotes":
				f.Quotes = true
			case "actions":
				f.Actions = true
			default:
				return fmt.Errorf("unknown focus area %q", name)
			}
		}
		p.ContentFocus = f
	}
	return nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve the message protocol over native-messaging stdio or HTTP",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "stdio", Usage: "length-prefixed JSON on stdin/stdout"},
			&cli.StringFlag{Name: "addr", Usage: "HTTP listen address (default " + app.DefaultHTTPAddr + ")"},
			&cli.StringSliceFlag{Name: "origins", Usage: "allowed CORS origins"},
			&cli.Float64Flag{Name: "rate", Usage: "requests per second"},
			&cli.IntFlag{Name: "burst", Usage: "rate limiter burst"},
		},
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if v := c.String("addr"); v != "" {
				cfg.HTTPAddr = v
			}
			if v := c.StringSlice("origins"); len(v) > 0 {
				cfg.AllowedOrigins = v
			}
			if c.IsSet("rate") {
				cfg.RateLimit = c.Float64("rate")
			}
			if c.IsSet("burst") {
				cfg.RateBurst = c.Int("burst")
			}
			a, err := app.New(ctx, cfg)
			if err != nil {
				return fmt.Errorf("init app: %w", err)
			}
			defer a.Close()

			if c.Bool("stdio") {
				srv := &nativemsg.Server{Handler: a.Dispatcher, In: os.Stdin, Out: os.Stdout}
				a.Dispatcher.Notify = srv.Notify
				log.Info().Msg("serving native messaging on stdio")
				return srv.Serve(ctx)
			}
			srv := httpapi.New(a.Dispatcher, httpapi.Options{
				AllowedOrigins:    cfg.AllowedOrigins,
				RequestsPerSecond: cfg.RateLimit,
				Burst:             cfg.RateBurst,
			})
			a.Dispatcher.Notify = func(n message.Notification) { srv.Notify(n) }
			log.Info().Str("addr", cfg.HTTPAddr).Strs("origins", cfg.AllowedOrigins).Msg("serving HTTP")
			return srv.ListenAndServe(ctx, cfg.HTTPAddr)
		},
	}
}
