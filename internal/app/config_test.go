package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigFile_YAMLAndJSON(t *testing.T) {
	dir := t.TempDir()
	yml := filepath.Join(dir, "webbriefer.yaml")
	if err := os.WriteFile(yml, []byte(`
llm:
  base: http://localhost:11434/v1
  model: llama3
  allowDownload: true
summarizer:
  model: sum
store: sqlite:/tmp/wb.db
cache:
  dir: .wb-cache
  maxAge: 48h
server:
  addr: 0.0.0.0:9000
  allowedOrigins: [chrome-extension://abc]
  rateLimit: 2.5
`), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	fc, err := LoadConfigFile(yml)
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	if fc.LLM.Model != "llama3" || !fc.LLM.AllowDownload || fc.Summarizer.Model != "sum" {
		t.Fatalf("llm section=%+v summarizer=%+v", fc.LLM, fc.Summarizer)
	}
	if fc.Server.RateLimit != 2.5 || len(fc.Server.AllowedOrigins) != 1 {
		t.Fatalf("server=%+v", fc.Server)
	}

	js := filepath.Join(dir, "webbriefer.json")
	if err := os.WriteFile(js, []byte(`{"translator":{"model":"tr"},"exportDir":"out"}`), 0o644); err != nil {
		t.Fatalf("write json: %v", err)
	}
	fc, err = LoadConfigFile(js)
	if err != nil {
		t.Fatalf("load json: %v", err)
	}
	if fc.Translator.Model != "tr" || fc.ExportDir != "out" {
		t.Fatalf("json config=%+v", fc)
	}
}

func TestApplyFileConfig_FlagsWin(t *testing.T) {
	var fc FileConfig
	fc.LLM.BaseURL = "http://file/v1"
	fc.LLM.Model = "file-model"
	fc.Cache.MaxAge = "12h"
	fc.Server.Addr = "0.0.0.0:9000"
	fc.ExportDir = "exports"

	cfg := Config{LLMModel: "flag-model", HTTPAddr: DefaultHTTPAddr, ExportDir: DefaultExportDir}
	if err := ApplyFileConfig(&cfg, fc); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if cfg.LLMModel != "flag-model" {
		t.Fatalf("flag value overwritten: %q", cfg.LLMModel)
	}
	if cfg.LLMBaseURL != "http://file/v1" || cfg.CacheMaxAge != 12*time.Hour {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.HTTPAddr != "0.0.0.0:9000" || cfg.ExportDir != "exports" {
		t.Fatalf("defaults not replaced: addr=%q export=%q", cfg.HTTPAddr, cfg.ExportDir)
	}
}

func TestApplyFileConfig_BadDuration(t *testing.T) {
	var fc FileConfig
	fc.Cache.MaxAge = "two days"
	var cfg Config
	if err := ApplyFileConfig(&cfg, fc); err == nil || !strings.Contains(err.Error(), "cache.maxAge") {
		t.Fatalf("err=%v, want cache.maxAge error", err)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"empty is valid", Config{}, false},
		{"model without base", Config{LLMModel: "m"}, true},
		{"model with base", Config{LLMBaseURL: "http://x/v1", TranslatorModel: "t"}, false},
		{"negative rate", Config{RateLimit: -1}, true},
		{"negative ttl", Config{PageTTL: -time.Second}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateConfig(tc.cfg)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err=%v, wantErr=%v", err, tc.wantErr)
			}
		})
	}
}

func TestExportPath_Stable(t *testing.T) {
	a := ExportPath("out", "Cats & Dogs: A Guide", "https://example.com/a", "md")
	b := ExportPath("out", "Cats & Dogs: A Guide", "https://example.com/a", ".md")
	if a != b {
		t.Fatalf("unstable path %s vs %s", a, b)
	}
	if !strings.HasPrefix(filepath.Base(a), "cats-dogs-a-guide-") || filepath.Ext(a) != ".md" {
		t.Fatalf("path=%s", a)
	}
	if c := ExportPath("out", "Cats & Dogs: A Guide", "https://example.com/b", ".md"); c == a {
		t.Fatalf("different URLs share a path")
	}
	if d := ExportPath("", "", "", ".pdf"); !strings.HasPrefix(d, filepath.Join(DefaultExportDir, "page-")) {
		t.Fatalf("default path=%s", d)
	}
}
