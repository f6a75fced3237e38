// Package message implements the request/response contract spoken by the
// browser host: one JSON object per request, keyed by action.
package message

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/FrankUSC/WebBriefer/internal/capability"
	"github.com/FrankUSC/WebBriefer/internal/page"
	"github.com/FrankUSC/WebBriefer/internal/profile"
	"github.com/FrankUSC/WebBriefer/internal/qa"
	"github.com/FrankUSC/WebBriefer/internal/summarize"
)

// Actions.
const (
	ActionGenerateSummary     = "generateSummary"
	ActionTranslateText       = "translateText"
	ActionAnswerQuestion      = "answerQuestion"
	ActionCheckAIAvailability = "checkAIAvailability"
	ActionDownloadModel       = "downloadModel"
	ActionExtractContent      = "extractContent"
	ActionPing                = "ping"
	ActionGetProfile          = "getProfile"
	ActionSaveProfile         = "saveProfile"
	ActionGetHistory          = "getHistory"
)

// Payload carries the fields any action may read.
type Payload struct {
	PageContent    json.RawMessage  `json:"pageContent,omitempty"`
	UserProfile    *profile.Profile `json:"userProfile,omitempty"`
	Text           string           `json:"text,omitempty"`
	TargetLanguage string           `json:"targetLanguage,omitempty"`
	Question       string           `json:"question,omitempty"`
	Summary        json.RawMessage  `json:"summary,omitempty"`
	ModelType      string           `json:"modelType,omitempty"`
	UserActivation bool             `json:"userActivation,omitempty"`
	ActivatedAt    *time.Time       `json:"activatedAt,omitempty"`
	HTML           string           `json:"html,omitempty"`
	URL            string           `json:"url,omitempty"`
	Profile        *profile.Profile `json:"profile,omitempty"`
}

// Request is one inbound message. When Data is set it replaces the
// top-level payload fields.
type Request struct {
	// ID is echoed on the response by transports that multiplex requests.
	ID     json.RawMessage `json:"id,omitempty"`
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
	Payload
}

// LegacyCapabilities mirrors the older availability shape some hosts read.
type LegacyCapabilities struct {
	LanguageModel       bool   `json:"languageModel"`
	Summarizer          bool   `json:"summarizer"`
	Translator          bool   `json:"translator"`
	LanguageModelStatus string `json:"languageModelStatus"`
	SummarizerStatus    string `json:"summarizerStatus"`
	TranslatorStatus    string `json:"translatorStatus"`
}

// Response is the reply to every request. Unset fields are omitted.
type Response struct {
	ID      json.RawMessage `json:"id,omitempty"`
	Success bool            `json:"success"`

	Error              string   `json:"error,omitempty"`
	ErrorCode          string   `json:"errorCode,omitempty"`
	DownloadableModels []string `json:"downloadableModels,omitempty"`
	ModelType          string   `json:"modelType,omitempty"`

	Summary          *summarize.Summary `json:"summary,omitempty"`
	TranslatedText   string             `json:"translatedText,omitempty"`
	OriginalLanguage string             `json:"originalLanguage,omitempty"`
	TargetLanguage   string             `json:"targetLanguage,omitempty"`

	Answer      string     `json:"answer,omitempty"`
	Question    string     `json:"question,omitempty"`
	GeneratedAt *time.Time `json:"generatedAt,omitempty"`

	Availability *capability.Availability `json:"availability,omitempty"`
	Capabilities *LegacyCapabilities      `json:"capabilities,omitempty"`
	Downloaded   *bool                    `json:"downloaded,omitempty"`

	Content *page.Content    `json:"content,omitempty"`
	Message string           `json:"message,omitempty"`
	Profile *profile.Profile `json:"profile,omitempty"`
	History []qa.Exchange    `json:"history,omitempty"`
}

// Notification is pushed to the host outside the request/response cycle.
type Notification struct {
	Type     string `json:"type"`
	Model    string `json:"model"`
	Progress int    `json:"progress"`
}

// NotificationDownloadProgress is the Type of download progress updates.
const NotificationDownloadProgress = "downloadProgress"

var (
	errUnknownAction    = errors.New("Unknown action")
	errTranslateArgs    = errors.New("Text and target language are required for translation")
	errModelTypeMissing = errors.New("Model type is required")
	errNoHTML           = errors.New("No page HTML provided for extraction")
	errNoProfileStore   = errors.New("Profile storage is not configured")
)

// payload resolves the effective payload of r.
func (r Request) payload() (Payload, error) {
	if len(r.Data) == 0 || bytes.Equal(bytes.TrimSpace(r.Data), []byte("null")) {
		return r.Payload, nil
	}
	var p Payload
	if err := json.Unmarshal(r.Data, &p); err != nil {
		return Payload{}, fmt.Errorf("decode data: %w", err)
	}
	return p, nil
}

// content decodes pageContent. It returns nil when the content, its text or
// its raw text is absent.
func (p Payload) content() (*page.Content, error) {
	if isNull(p.PageContent) {
		return nil, nil
	}
	var probe struct {
		Text *struct {
			Raw *string `json:"raw"`
		} `json:"text"`
	}
	if err := json.Unmarshal(p.PageContent, &probe); err != nil {
		return nil, fmt.Errorf("decode pageContent: %w", err)
	}
	if probe.Text == nil || probe.Text.Raw == nil {
		return nil, nil
	}
	var c page.Content
	if err := json.Unmarshal(p.PageContent, &c); err != nil {
		return nil, fmt.Errorf("decode pageContent: %w", err)
	}
	return &c, nil
}

// summaryText accepts a summary object or a bare string. For an object the
// English original is used.
func (p Payload) summaryText() string {
	if isNull(p.Summary) {
		return ""
	}
	var s string
	if json.Unmarshal(p.Summary, &s) == nil {
		return s
	}
	var obj summarize.Summary
	if json.Unmarshal(p.Summary, &obj) == nil {
		if obj.Original != "" {
			return obj.Original
		}
		return obj.Translated
	}
	return ""
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}
