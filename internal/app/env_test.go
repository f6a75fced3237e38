package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadEnvFiles_LoadsKeyValues(t *testing.T) {
	t.Setenv("FOO", "")
	t.Setenv("BAR", "")

	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "\n# sample dotenv file\nFOO=alpha\nBAR=\"beta gamma\"\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}
	if err := LoadEnvFiles(envPath); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}
	if got := os.Getenv("FOO"); got != "alpha" {
		t.Fatalf("FOO=%q, want alpha", got)
	}
	if got := os.Getenv("BAR"); got != "beta gamma" {
		t.Fatalf("BAR=%q, want beta gamma", got)
	}
}

func TestLoadEnvFiles_OverrideOrderAndMissing(t *testing.T) {
	t.Setenv("K", "")
	dir := t.TempDir()
	a := filepath.Join(dir, ".env.a")
	b := filepath.Join(dir, ".env.b")
	if err := os.WriteFile(a, []byte("K=first\n"), 0o600); err != nil {
		t.Fatalf("write a: %v", err)
	}
	if err := os.WriteFile(b, []byte("K=second\n"), 0o600); err != nil {
		t.Fatalf("write b: %v", err)
	}
	if err := LoadEnvFiles(a, filepath.Join(dir, "missing.env"), b, ""); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}
	if got := os.Getenv("K"); got != "second" {
		t.Fatalf("override order failed: got %q, want second", got)
	}
}

func TestApplyEnvToConfig_FromEnv(t *testing.T) {
	t.Setenv("LLM_BASE_URL", "http://llm.local/v1")
	t.Setenv("LLM_MODEL", "assistant")
	t.Setenv("SUMMARIZER_MODEL", "sum")
	t.Setenv("TRANSLATOR_MODEL", "")
	t.Setenv("STORE_URL", "")
	t.Setenv("REDIS_URL", "redis://cache:6379/0")
	t.Setenv("CACHE_DIR", "/tmp/wb-cache")
	t.Setenv("CACHE_MAX_AGE", "36h")
	t.Setenv("ALLOWED_ORIGINS", "chrome-extension://abc, http://localhost:3000")
	t.Setenv("ALLOW_DOWNLOAD", "yes")

	cfg := Config{LLMModel: "explicit"}
	ApplyEnvToConfig(&cfg)
	if cfg.LLMBaseURL != "http://llm.local/v1" {
		t.Fatalf("LLMBaseURL=%q", cfg.LLMBaseURL)
	}
	if cfg.LLMModel != "explicit" {
		t.Fatalf("explicit model overwritten: %q", cfg.LLMModel)
	}
	if cfg.SummarizerModel != "sum" || cfg.TranslatorModel != "" {
		t.Fatalf("models=%q/%q", cfg.SummarizerModel, cfg.TranslatorModel)
	}
	if cfg.StoreURL != "redis://cache:6379/0" {
		t.Fatalf("StoreURL=%q, want REDIS_URL fallback", cfg.StoreURL)
	}
	if cfg.CacheDir != "/tmp/wb-cache" || cfg.CacheMaxAge != 36*time.Hour {
		t.Fatalf("cache=%q %s", cfg.CacheDir, cfg.CacheMaxAge)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "http://localhost:3000" {
		t.Fatalf("origins=%v", cfg.AllowedOrigins)
	}
	if !cfg.AllowDownload {
		t.Fatalf("ALLOW_DOWNLOAD=yes should enable downloads")
	}
}
