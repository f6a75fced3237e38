package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/FrankUSC/WebBriefer/internal/llm"
)

// Markers of the prompts the stub recognizes.
const (
	translateMarker = "Please translate the following text from English to "
	questionMarker  = "User's Question: "
	contentMarker   = "Content to Summarize:"
)

var (
	targetRe   = regexp.MustCompile(` to ([A-Za-z-]+)\. Output only`)
	sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]?`)
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	addr := os.Getenv("ADDR")
	if strings.TrimSpace(addr) == "" {
		addr = ":8081"
	}
	models := splitModels(os.Getenv("MODELS"))
	log.Info().Str("addr", addr).Strs("models", models).Msg("openai-stub listening")
	if err := http.ListenAndServe(addr, newMux(models)); err != nil {
		log.Fatal().Err(err).Msg("serve")
	}
}

func splitModels(s string) []string {
	var out []string
	for _, m := range strings.Split(s, ",") {
		if m = strings.TrimSpace(m); m != "" {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		out = []string{"assistant", "summarizer", "translator"}
	}
	return out
}

// newMux serves /v1/models and /v1/chat/completions. Replies are
// deterministic and depend only on the prompts.
func newMux(models []string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		data := make([]map[string]any, 0, len(models))
		for _, id := range models {
			data = append(data, map[string]any{"id": id, "object": "model", "owned_by": "stub"})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if !contains(models, req.Model) {
			http.Error(w, fmt.Sprintf("model %q not found", req.Model), http.StatusNotFound)
			return
		}
		sys, user := "", req.Messages[len(req.Messages)-1].Content
		if req.Messages[0].Role == "system" {
			sys = strings.TrimSpace(req.Messages[0].Content)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "stub-1",
			"object":  "chat.completion",
			"model":   req.Model,
			"choices": []map[string]any{{"index": 0, "finish_reason": "stop", "message": map[string]string{"role": "assistant", "content": reply(sys, user)}}},
		})
	})
	return mux
}

func reply(system, user string) string {
	switch {
	case strings.HasPrefix(system, llm.SummarizerPromptPrefix):
		return bullets(user, 3)
	case strings.HasPrefix(system, llm.TranslatorPromptPrefix):
		target := "xx"
		if m := targetRe.FindStringSubmatch(system); m != nil {
			target = m[1]
		}
		return "[" + target + "] " + strings.TrimSpace(user)
	case strings.Contains(user, translateMarker):
		rest := user[strings.Index(user, translateMarker)+len(translateMarker):]
		lang, text, _ := strings.Cut(rest, ". ")
		if i := strings.Index(text, "\n\n"); i >= 0 {
			text = text[i+2:]
		}
		return "[" + lang + "] " + strings.TrimSpace(text)
	case strings.Contains(user, questionMarker):
		q := user[strings.Index(user, questionMarker)+len(questionMarker):]
		q, _, _ = strings.Cut(q, "\n")
		return "Stub answer to: " + strings.TrimSpace(q)
	case strings.Contains(user, contentMarker):
		body := user[strings.Index(user, contentMarker)+len(contentMarker):]
		return "## Key Points\n" + bullets(body, 3)
	}
	return "ok"
}

// bullets lists the first n sentences of text.
func bullets(text string, n int) string {
	var b strings.Builder
	for _, s := range sentenceRe.FindAllString(text, -1) {
		s = strings.Join(strings.Fields(s), " ")
		if len(s) < 3 {
			continue
		}
		b.WriteString("- ")
		b.WriteString(s)
		b.WriteString("\n")
		if n--; n == 0 {
			break
		}
	}
	if b.Len() == 0 {
		return "- (empty)"
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
