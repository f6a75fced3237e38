package message

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/FrankUSC/WebBriefer/internal/capability"
	"github.com/FrankUSC/WebBriefer/internal/dom"
	"github.com/FrankUSC/WebBriefer/internal/errs"
	"github.com/FrankUSC/WebBriefer/internal/extract"
	"github.com/FrankUSC/WebBriefer/internal/langdetect"
	"github.com/FrankUSC/WebBriefer/internal/llm"
	"github.com/FrankUSC/WebBriefer/internal/pagectx"
	"github.com/FrankUSC/WebBriefer/internal/profile"
	"github.com/FrankUSC/WebBriefer/internal/qa"
	"github.com/FrankUSC/WebBriefer/internal/summarize"
	"github.com/FrankUSC/WebBriefer/internal/translate"
)

// PingMessage answers ActionPing.
const PingMessage = "Content script is active"

// Dispatcher routes requests to the orchestrators. Every error, including a
// panic inside a handler, becomes a {success:false} response.
type Dispatcher struct {
	Capabilities *capability.Negotiator
	Summaries    *summarize.Orchestrator
	Answers      *qa.Orchestrator
	Translator   *translate.Chain
	Extractor    extract.Extractor
	Profiles     *profile.Repository
	Pages        *pagectx.Store
	Languages    *langdetect.Detector
	// Notify receives download progress. It may be nil.
	Notify func(Notification)
	Now    func() time.Time

	extracting atomic.Bool
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now().UTC()
}

// Handle answers one request.
func (d *Dispatcher) Handle(ctx context.Context, req Request) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("action", req.Action).Interface("panic", r).Msg("handler panicked")
			resp = failure(fmt.Errorf("internal error: %v", r))
		}
	}()

	p, err := req.payload()
	if err != nil {
		return failure(err)
	}

	switch req.Action {
	case ActionGenerateSummary:
		resp, err = d.generateSummary(ctx, p)
	case ActionTranslateText:
		resp, err = d.translateText(ctx, p)
	case ActionAnswerQuestion:
		resp, err = d.answerQuestion(ctx, p)
	case ActionCheckAIAvailability:
		resp, err = d.checkAvailability(ctx)
	case ActionDownloadModel:
		resp, err = d.downloadModel(ctx, p)
	case ActionExtractContent:
		resp, err = d.extractContent(ctx, p)
	case ActionPing:
		resp = Response{Success: true, Message: PingMessage}
	case ActionGetProfile:
		resp, err = d.getProfile(ctx)
	case ActionSaveProfile:
		resp, err = d.saveProfile(ctx, p)
	case ActionGetHistory:
		resp, err = d.getHistory(p)
	default:
		err = errUnknownAction
	}
	if err != nil {
		if !errors.As(err, new(*errs.DownloadRequiredError)) {
			log.Warn().Err(err).Str("action", req.Action).Msg("request failed")
		}
		return failure(err)
	}
	return resp
}

// failure converts err into the wire error shape.
func failure(err error) Response {
	r := Response{Success: false, Error: err.Error(), ErrorCode: errs.Code(err)}
	var dr *errs.DownloadRequiredError
	if errors.As(err, &dr) {
		if dr.Single && len(dr.Models) == 1 {
			r.ModelType = dr.Models[0]
		} else {
			r.DownloadableModels = dr.Models
		}
	}
	return r
}

// userProfile returns the request profile, the stored one, or defaults.
func (d *Dispatcher) userProfile(ctx context.Context, p Payload) profile.Profile {
	if p.UserProfile != nil {
		return profile.Normalize(*p.UserProfile)
	}
	if d.Profiles != nil {
		stored, err := d.Profiles.Load(ctx)
		if err == nil {
			return stored
		}
		log.Warn().Err(err).Msg("profile load failed; using defaults")
	}
	return profile.Defaults(d.now())
}

func (d *Dispatcher) generateSummary(ctx context.Context, p Payload) (Response, error) {
	if d.Summaries == nil {
		return Response{}, errs.ErrNoAIAvailable
	}
	c, err := p.content()
	if err != nil {
		return Response{}, err
	}
	s, err := d.Summaries.Generate(ctx, c, d.userProfile(ctx, p))
	if err != nil {
		return Response{}, err
	}
	if d.Pages != nil && c.URL != "" {
		d.Pages.SetContent(c.URL, *c)
		d.Pages.SetSummary(c.URL, s)
	}
	log.Info().Str("url", c.URL).Str("generator", string(s.Generator)).Int("words", s.WordCount).Msg("summary generated")
	return Response{Success: true, Summary: &s}, nil
}

func (d *Dispatcher) translateText(ctx context.Context, p Payload) (Response, error) {
	if strings.TrimSpace(p.Text) == "" || strings.TrimSpace(p.TargetLanguage) == "" {
		return Response{}, errTranslateArgs
	}
	if n := d.Capabilities; n != nil {
		if n.Present(llm.KindTranslator) && n.Status(llm.KindTranslator) == capability.Downloadable {
			return Response{}, &errs.DownloadRequiredError{Models: []string{string(llm.KindTranslator)}, Single: true}
		}
		if !n.Present(llm.KindTranslator) && n.Present(llm.KindLanguageModel) && n.Status(llm.KindLanguageModel) == capability.Downloadable {
			return Response{}, &errs.DownloadRequiredError{Models: []string{string(llm.KindLanguageModel)}, Single: true}
		}
	}

	out := p.Text
	if d.Translator != nil {
		out = d.Translator.Translate(ctx, p.Text, p.TargetLanguage)
	}
	original := langdetect.Default
	if d.Languages != nil {
		original = d.Languages.Detect(p.Text)
	}
	return Response{
		Success:          true,
		TranslatedText:   out,
		OriginalLanguage: original,
		TargetLanguage:   p.TargetLanguage,
	}, nil
}

func (d *Dispatcher) answerQuestion(ctx context.Context, p Payload) (Response, error) {
	if d.Answers == nil {
		return Response{}, errs.ErrNoAIAvailable
	}
	c, err := p.content()
	if err != nil {
		return Response{}, err
	}
	key := p.URL
	if c != nil && c.URL != "" {
		key = c.URL
	}

	summary := p.summaryText()
	var hist *qa.History
	if d.Pages != nil && key != "" {
		if e, ok := d.Pages.Lookup(key); ok {
			if summary == "" {
				if s, ok := e.Summary(); ok {
					summary = s.Original
				}
			}
			if c == nil {
				c, _ = e.Content()
			}
		}
		hist = &d.Pages.Entry(key).History
	}

	ex, err := d.Answers.Answer(ctx, p.Question, summary, c, d.userProfile(ctx, p), hist)
	if err != nil {
		return Response{}, err
	}
	at := ex.Timestamp
	return Response{Success: true, Answer: ex.Answer, Question: ex.Question, GeneratedAt: &at}, nil
}

func (d *Dispatcher) checkAvailability(ctx context.Context) (Response, error) {
	if d.Capabilities == nil {
		a := capability.Availability{LanguageModel: capability.Unavailable, Summarizer: capability.Unavailable, Translator: capability.Unavailable}
		return Response{Success: true, Availability: &a, Capabilities: legacy(a)}, nil
	}
	d.Capabilities.Refresh(ctx)
	a := d.Capabilities.Availability()
	return Response{Success: true, Availability: &a, Capabilities: legacy(a)}, nil
}

// legacy renders the older capability shape: booleans for "usable now or
// after a download", raw availability for the language model and
// ready/downloadable/unavailable for the rest.
func legacy(a capability.Availability) *LegacyCapabilities {
	usable := func(s capability.Status) bool { return s == capability.Available || s == capability.Downloadable }
	raw := map[capability.Status]string{
		capability.Available:    string(llm.Readily),
		capability.Downloadable: string(llm.AfterDownload),
		capability.Unavailable:  string(llm.No),
	}
	short := map[capability.Status]string{
		capability.Available:    "ready",
		capability.Downloadable: "downloadable",
		capability.Unavailable:  "unavailable",
	}
	return &LegacyCapabilities{
		LanguageModel:       usable(a.LanguageModel),
		Summarizer:          usable(a.Summarizer),
		Translator:          usable(a.Translator),
		LanguageModelStatus: raw[a.LanguageModel],
		SummarizerStatus:    short[a.Summarizer],
		TranslatorStatus:    short[a.Translator],
	}
}

func (d *Dispatcher) downloadModel(ctx context.Context, p Payload) (Response, error) {
	if strings.TrimSpace(p.ModelType) == "" {
		return Response{}, errModelTypeMissing
	}
	kind, ok := llm.ParseKind(p.ModelType)
	if !ok {
		return Response{}, fmt.Errorf("%w: %s", errs.ErrUnknownModel, p.ModelType)
	}
	if d.Capabilities == nil {
		return Response{}, errs.ErrNotDownloadable
	}
	act := capability.Activation{Active: p.UserActivation}
	if p.ActivatedAt != nil {
		act.At = *p.ActivatedAt
	}
	monitor := func(loaded float64) {
		if d.Notify == nil {
			return
		}
		d.Notify(Notification{
			Type:     NotificationDownloadProgress,
			Model:    string(kind),
			Progress: int(math.Round(loaded * 100)),
		})
	}
	if err := d.Capabilities.RequestDownload(ctx, kind, act, monitor); err != nil {
		return Response{}, err
	}
	ok = true
	return Response{Success: true, Downloaded: &ok}, nil
}

func (d *Dispatcher) extractContent(ctx context.Context, p Payload) (Response, error) {
	if !d.extracting.CompareAndSwap(false, true) {
		return Response{}, errs.ErrBusy
	}
	defer d.extracting.Store(false)

	if strings.TrimSpace(p.HTML) == "" {
		return Response{}, errNoHTML
	}
	doc, err := dom.ParseString(p.HTML)
	if err != nil {
		return Response{}, fmt.Errorf("parse html: %w", err)
	}
	x := d.Extractor
	if x == nil {
		x = &extract.HeuristicExtractor{}
	}
	c := x.Extract(ctx, doc, p.URL)
	if d.Pages != nil && p.URL != "" {
		d.Pages.SetContent(p.URL, c)
	}
	return Response{Success: true, Content: &c}, nil
}

func (d *Dispatcher) getProfile(ctx context.Context) (Response, error) {
	if d.Profiles == nil {
		return Response{}, errNoProfileStore
	}
	pr, err := d.Profiles.Load(ctx)
	if err != nil {
		return Response{}, err
	}
	return Response{Success: true, Profile: &pr}, nil
}

func (d *Dispatcher) saveProfile(ctx context.Context, p Payload) (Response, error) {
	if d.Profiles == nil {
		return Response{}, errNoProfileStore
	}
	in := p.Profile
	if in == nil {
		in = p.UserProfile
	}
	if in == nil {
		return Response{}, errors.New("Profile is required")
	}
	saved, err := d.Profiles.Save(ctx, *in)
	if err != nil {
		return Response{}, err
	}
	return Response{Success: true, Profile: &saved}, nil
}

func (d *Dispatcher) getHistory(p Payload) (Response, error) {
	if d.Pages == nil || p.URL == "" {
		return Response{Success: true, History: []qa.Exchange{}}, nil
	}
	e, ok := d.Pages.Lookup(p.URL)
	if !ok {
		return Response{Success: true, History: []qa.Exchange{}}, nil
	}
	return Response{Success: true, History: e.History.All()}, nil
}
