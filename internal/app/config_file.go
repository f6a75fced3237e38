package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// FileConfig represents the single-file configuration schema.
type FileConfig struct {
	LLM struct {
		BaseURL       string `yaml:"base" json:"base"`
		Model         string `yaml:"model" json:"model"`
		APIKey        string `yaml:"key" json:"key"`
		AllowDownload bool   `yaml:"allowDownload" json:"allowDownload"`
	} `yaml:"llm" json:"llm"`

	Summarizer struct {
		Model string `yaml:"model" json:"model"`
	} `yaml:"summarizer" json:"summarizer"`

	Translator struct {
		Model string `yaml:"model" json:"model"`
	} `yaml:"translator" json:"translator"`

	Store string `yaml:"store" json:"store"`

	Cache struct {
		Dir         string `yaml:"dir" json:"dir"`
		MaxAge      string `yaml:"maxAge" json:"maxAge"`
		Clear       bool   `yaml:"clear" json:"clear"`
		StrictPerms bool   `yaml:"strictPerms" json:"strictPerms"`
		PageTTL     string `yaml:"pageTTL" json:"pageTTL"`
	} `yaml:"cache" json:"cache"`

	Server struct {
		Addr           string   `yaml:"addr" json:"addr"`
		AllowedOrigins []string `yaml:"allowedOrigins" json:"allowedOrigins"`
		RateLimit      float64  `yaml:"rateLimit" json:"rateLimit"`
		Burst          int      `yaml:"burst" json:"burst"`
	} `yaml:"server" json:"server"`

	UserAgent    string `yaml:"userAgent" json:"userAgent"`
	IgnoreRobots bool   `yaml:"ignoreRobots" json:"ignoreRobots"`
	ExportDir string `yaml:"exportDir" json:"exportDir"`
	Verbose   bool   `yaml:"verbose" json:"verbose"`
	LogJSON   bool   `yaml:"logJSON" json:"logJSON"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays values from FileConfig into cfg for any fields that
// are currently unset or still at their flag default. Explicit flags win.
func ApplyFileConfig(cfg *Config, fc FileConfig) error {
	if cfg == nil {
		return nil
	}
	if cfg.LLMBaseURL == "" && fc.LLM.BaseURL != "" {
		cfg.LLMBaseURL = fc.LLM.BaseURL
	}
	if cfg.LLMModel == "" && fc.LLM.Model != "" {
		cfg.LLMModel = fc.LLM.Model
	}
	if cfg.LLMAPIKey == "" && fc.LLM.APIKey != "" {
		cfg.LLMAPIKey = fc.LLM.APIKey
	}
	if !cfg.AllowDownload && fc.LLM.AllowDownload {
		cfg.AllowDownload = true
	}
	if cfg.SummarizerModel == "" && fc.Summarizer.Model != "" {
		cfg.SummarizerModel = fc.Summarizer.Model
	}
	if cfg.TranslatorModel == "" && fc.Translator.Model != "" {
		cfg.TranslatorModel = fc.Translator.Model
	}
	if cfg.StoreURL == "" && fc.Store != "" {
		cfg.StoreURL = fc.Store
	}

	if cfg.CacheDir == "" && fc.Cache.Dir != "" {
		cfg.CacheDir = fc.Cache.Dir
	}
	if cfg.CacheMaxAge == 0 && fc.Cache.MaxAge != "" {
		d, err := time.ParseDuration(fc.Cache.MaxAge)
		if err != nil {
			return fmt.Errorf("config: cache.maxAge: %w", err)
		}
		cfg.CacheMaxAge = d
	}
	if !cfg.CacheClear && fc.Cache.Clear {
		cfg.CacheClear = true
	}
	if !cfg.CacheStrictPerms && fc.Cache.StrictPerms {
		cfg.CacheStrictPerms = true
	}
	if (cfg.PageTTL == 0 || cfg.PageTTL == DefaultPageTTL) && fc.Cache.PageTTL != "" {
		d, err := time.ParseDuration(fc.Cache.PageTTL)
		if err != nil {
			return fmt.Errorf("config: cache.pageTTL: %w", err)
		}
		cfg.PageTTL = d
	}

	if (cfg.HTTPAddr == "" || cfg.HTTPAddr == DefaultHTTPAddr) && fc.Server.Addr != "" {
		cfg.HTTPAddr = fc.Server.Addr
	}
	if len(cfg.AllowedOrigins) == 0 && len(fc.Server.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = append([]string{}, fc.Server.AllowedOrigins...)
	}
	if cfg.RateLimit == 0 && fc.Server.RateLimit > 0 {
		cfg.RateLimit = fc.Server.RateLimit
	}
	if cfg.RateBurst == 0 && fc.Server.Burst > 0 {
		cfg.RateBurst = fc.Server.Burst
	}

	if (cfg.UserAgent == "" || cfg.UserAgent == DefaultUserAgent) && fc.UserAgent != "" {
		cfg.UserAgent = fc.UserAgent
	}
	if !cfg.IgnoreRobots && fc.IgnoreRobots {
		cfg.IgnoreRobots = true
	}
	if (cfg.ExportDir == "" || cfg.ExportDir == DefaultExportDir) && fc.ExportDir != "" {
		cfg.ExportDir = fc.ExportDir
	}
	if !cfg.Verbose && fc.Verbose {
		cfg.Verbose = true
	}
	if !cfg.LogJSON && fc.LogJSON {
		cfg.LogJSON = true
	}
	return nil
}

// ValidateConfig performs minimal validation. No model is required: without
// one every operation runs on its local fallback.
func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.LLMBaseURL) == "" && hasAnyModel(cfg) {
		return errors.New("config: llm.base is required when a model is configured (or set LLM_BASE_URL)")
	}
	if cfg.CacheMaxAge < 0 || cfg.PageTTL < 0 {
		return errors.New("config: negative durations are not allowed")
	}
	if cfg.RateLimit < 0 || cfg.RateBurst < 0 {
		return errors.New("config: negative rate limits are not allowed")
	}
	return nil
}

func hasAnyModel(cfg Config) bool {
	return strings.TrimSpace(cfg.LLMModel) != "" ||
		strings.TrimSpace(cfg.SummarizerModel) != "" ||
		strings.TrimSpace(cfg.TranslatorModel) != ""
}
