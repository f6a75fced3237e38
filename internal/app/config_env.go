package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvToConfig populates unset fields of cfg from environment variables.
// Explicit cfg values take precedence over env.
func ApplyEnvToConfig(cfg *Config) {
	if cfg == nil {
		return
	}
	setString := func(dst *string, keys ...string) {
		if *dst != "" {
			return
		}
		for _, k := range keys {
			if v := strings.TrimSpace(os.Getenv(k)); v != "" {
				*dst = v
				return
			}
		}
	}
	setString(&cfg.LLMBaseURL, "LLM_BASE_URL")
	setString(&cfg.LLMAPIKey, "LLM_API_KEY")
	setString(&cfg.LLMModel, "LLM_MODEL")
	setString(&cfg.SummarizerModel, "SUMMARIZER_MODEL")
	setString(&cfg.TranslatorModel, "TRANSLATOR_MODEL")
	// REDIS_URL is accepted so a shared store can be picked up from the
	// same variable other services use.
	setString(&cfg.StoreURL, "STORE_URL", "REDIS_URL")
	setString(&cfg.CacheDir, "CACHE_DIR")

	if cfg.CacheMaxAge == 0 {
		if s := os.Getenv("CACHE_MAX_AGE"); s != "" {
			if d, err := time.ParseDuration(s); err == nil {
				cfg.CacheMaxAge = d
			}
		}
	}
	if cfg.RateLimit == 0 {
		if s := os.Getenv("RATE_LIMIT"); s != "" {
			if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
				cfg.RateLimit = f
			}
		}
	}
	if len(cfg.AllowedOrigins) == 0 {
		if s := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); s != "" {
			for _, o := range strings.Split(s, ",") {
				if o = strings.TrimSpace(o); o != "" {
					cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
				}
			}
		}
	}

	setBool(&cfg.AllowDownload, "ALLOW_DOWNLOAD")
	setBool(&cfg.CacheStrictPerms, "CACHE_STRICT_PERMS")
	setBool(&cfg.Verbose, "VERBOSE")
	setBool(&cfg.LogJSON, "LOG_JSON")
}

func setBool(dst *bool, envKey string) {
	if *dst {
		return
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv(envKey))) {
	case "1", "true", "yes", "on":
		*dst = true
	}
}
