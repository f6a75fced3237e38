// Package qa answers follow-up questions about a summarized page.
package qa

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/FrankUSC/WebBriefer/internal/capability"
	"github.com/FrankUSC/WebBriefer/internal/errs"
	"github.com/FrankUSC/WebBriefer/internal/llm"
	"github.com/FrankUSC/WebBriefer/internal/page"
	"github.com/FrankUSC/WebBriefer/internal/profile"
	"github.com/FrankUSC/WebBriefer/internal/prompt"
	"github.com/FrankUSC/WebBriefer/internal/session"
)

// Exchange is one question and its answer.
type Exchange struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
}

// History is the ordered list of exchanges for one page. It is never
// deduplicated or reordered.
type History struct {
	mu    sync.Mutex
	items []Exchange
}

func (h *History) Append(e Exchange) {
	h.mu.Lock()
	h.items = append(h.items, e)
	h.mu.Unlock()
}

// All returns a copy of the exchanges in insertion order.
func (h *History) All() []Exchange {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Exchange(nil), h.items...)
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.items)
}

// Reset drops every exchange.
func (h *History) Reset() {
	h.mu.Lock()
	h.items = nil
	h.mu.Unlock()
}

// Orchestrator answers questions with the assistant session when it can and
// with LocalAnswer otherwise.
type Orchestrator struct {
	Capabilities *capability.Negotiator
	Sessions     *session.Registry
	Now          func() time.Time
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Answer answers question about a page summarized as summary. c may be nil.
// When h is non-nil the exchange is appended to it.
func (o *Orchestrator) Answer(ctx context.Context, question, summary string, c *page.Content, p profile.Profile, h *History) (Exchange, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Exchange{}, errs.ErrMissingQuestion
	}
	if strings.TrimSpace(summary) == "" {
		return Exchange{}, errs.ErrMissingSummary
	}

	answer, err := o.answer(ctx, question, summary, c, p)
	if err != nil {
		return Exchange{}, err
	}
	e := Exchange{Question: question, Answer: answer, Timestamp: o.now()}
	if h != nil {
		h.Append(e)
	}
	return e, nil
}

func (o *Orchestrator) answer(ctx context.Context, question, summary string, c *page.Content, p profile.Profile) (string, error) {
	if o.Capabilities == nil || o.Sessions == nil || o.Capabilities.Status(llm.KindLanguageModel) != capability.Available {
		return LocalAnswer(question, summary), nil
	}
	s, err := o.Sessions.Assistant(ctx, o.Capabilities.Backend.LanguageModel, prompt.MainSystemPrompt)
	if err != nil {
		return "", &errs.BackendError{Kind: string(llm.KindLanguageModel), Err: err}
	}
	out, err := s.Prompt(ctx, prompt.AnswerPrompt(question, summary, c, p))
	if err != nil {
		log.Warn().Err(err).Msg("answer generation failed")
		return "", &errs.BackendError{Kind: string(llm.KindLanguageModel), Err: err}
	}
	return out, nil
}

// Fixed replies of LocalAnswer.
const (
	NoInformation = "I don't have enough information in the summary to answer that specific question. You might want to read the full article for more details."
	NoQuestion    = "I need a valid question to provide an answer."
	NoSummary     = "I don't have a summary available to answer your question. Please try generating a summary first."
)

var (
	interrogatives = []string{"what", "who", "when", "where", "how", "why"}
	sentenceBreak  = regexp.MustCompile(`[.!?]+`)
)

const (
	minKeywordRunes  = 4
	maxLocalSentence = 2
)

// LocalAnswer picks up to two summary sentences sharing a word longer than
// three characters with an interrogative question. Matching is plain
// case-insensitive substring search.
func LocalAnswer(question, summary string) string {
	if strings.TrimSpace(question) == "" {
		return NoQuestion
	}
	if strings.TrimSpace(summary) == "" {
		return NoSummary
	}

	lq := strings.ToLower(question)
	asked := false
	for _, w := range interrogatives {
		if strings.Contains(lq, w) {
			asked = true
			break
		}
	}
	if !asked {
		return NoInformation
	}

	var keywords []string
	for _, w := range strings.Split(question, " ") {
		if utf8.RuneCountInString(w) >= minKeywordRunes {
			keywords = append(keywords, strings.ToLower(w))
		}
	}

	var picked []string
	for _, s := range sentenceBreak.Split(summary, -1) {
		ls := strings.ToLower(s)
		for _, k := range keywords {
			if strings.Contains(ls, k) {
				picked = append(picked, strings.TrimSpace(s))
				break
			}
		}
		if len(picked) == maxLocalSentence {
			break
		}
	}
	if len(picked) == 0 {
		return NoInformation
	}
	return strings.Join(picked, ". ") + "."
}
