package config

import (
	"fmt"
	"time"

	"github.com/linkdigest/linkdigest/internal/faults"
	"github.com/linkdigest/linkdigest/pkg/models"
)

// Config holds all application configuration. It is assembled once at
// startup and handed to component constructors; components never
// mutate it.
type Config struct {
	Network  Network  `mapstructure:"network"`
	Cache    Cache    `mapstructure:"cache"`
	LLM      LLM      `mapstructure:"llm"`
	Format   Format   `mapstructure:"format"`
	Analysis Analysis `mapstructure:"analysis"`
	Groups   Groups   `mapstructure:"groups"`
	Domains  Domains  `mapstructure:"domains"`
	Storage  Storage  `mapstructure:"storage"`
}

// Network holds content fetching configuration.
type Network struct {
	Timeout          time.Duration `mapstructure:"timeout"`
	UserAgent        string        `mapstructure:"user_agent"`
	MaxContentLength int           `mapstructure:"max_content_length"`
	MaxConcurrency   int           `mapstructure:"max_concurrency"`
	EnableScreenshot bool          `mapstructure:"enable_screenshot"`
}

// Cache holds result cache configuration. A non-empty RedisAddr
// selects the Redis backend; otherwise results stay in memory.
type Cache struct {
	Enabled    bool          `mapstructure:"enabled"`
	TTL        time.Duration `mapstructure:"ttl"`
	MaxEntries int           `mapstructure:"max_entries"`
	RedisAddr  string        `mapstructure:"redis_addr"`
}

// LLM holds model provider configuration for summary generation.
type LLM struct {
	Enabled           bool          `mapstructure:"enabled"`
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	Model             string        `mapstructure:"model"`
	Timeout           time.Duration `mapstructure:"timeout"`
	CustomPrompt      string        `mapstructure:"custom_prompt"`
	MaxSummaryLength  int           `mapstructure:"max_summary_length"`
	EnableTranslation bool          `mapstructure:"enable_translation"`
	TargetLanguage    string        `mapstructure:"target_language"`
	TranslationPrompt string        `mapstructure:"translation_prompt"`
}

// Format holds result presentation configuration.
type Format struct {
	EnableEmoji          bool   `mapstructure:"enable_emoji"`
	EnableStatistics     bool   `mapstructure:"enable_statistics"`
	EnableCustomTemplate bool   `mapstructure:"enable_custom_template"`
	ResultTemplate       string `mapstructure:"result_template"`
	CollapseThreshold    int    `mapstructure:"collapse_threshold"`
	SendContentType      string `mapstructure:"send_content_type"`
}

// Analysis holds pipeline behavior configuration.
type Analysis struct {
	Mode models.AnalysisMode `mapstructure:"mode"`
}

// Groups holds chat group controls.
type Groups struct {
	Blacklist []string `mapstructure:"blacklist"`
}

// Domains restricts which hosts may be fetched. Blocked entries win
// over allowed ones; an empty allowed list admits every host that is
// not blocked. An entry matches the host itself and its subdomains.
type Domains struct {
	Allowed []string `mapstructure:"allowed"`
	Blocked []string `mapstructure:"blocked"`
}

// Storage holds S3/MinIO export upload configuration.
type Storage struct {
	Endpoint        string `mapstructure:"endpoint"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Network: Network{
			Timeout:          30 * time.Second,
			UserAgent:        "linkdigest/1.0",
			MaxContentLength: 10000,
			MaxConcurrency:   5,
		},
		Cache: Cache{
			Enabled:    true,
			TTL:        24 * time.Hour,
			MaxEntries: 100,
		},
		LLM: LLM{
			Enabled:          false, // Disabled by default, requires a provider endpoint
			Model:            "gpt-4o-mini",
			Timeout:          60 * time.Second,
			MaxSummaryLength: 2000,
			TargetLanguage:   "en",
		},
		Format: Format{
			EnableEmoji:       true,
			EnableStatistics:  true,
			CollapseThreshold: 1500,
			SendContentType:   "both",
		},
		Analysis: Analysis{
			Mode: models.ModeAuto,
		},
	}
}

// Validate reports startup-fatal configuration problems.
func (c Config) Validate() error {
	if c.Network.Timeout <= 0 {
		return configErr("network.timeout must be positive")
	}
	if c.Network.MaxConcurrency < 1 || c.Network.MaxConcurrency > 20 {
		return configErr("network.max_concurrency must be between 1 and 20")
	}
	if c.Network.MaxContentLength < 100 {
		return configErr("network.max_content_length must be at least 100")
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return configErr("cache.ttl must be positive when the cache is enabled")
	}
	if c.LLM.Enabled {
		if c.LLM.BaseURL == "" {
			return configErr("llm.base_url is required when the LLM is enabled")
		}
		if c.LLM.Model == "" {
			return configErr("llm.model is required when the LLM is enabled")
		}
		if c.LLM.MaxSummaryLength < 100 {
			return configErr("llm.max_summary_length must be at least 100")
		}
		if c.LLM.EnableTranslation && c.LLM.TargetLanguage == "" {
			return configErr("llm.target_language is required when translation is enabled")
		}
	}
	if !models.ValidMode(c.Analysis.Mode) {
		return configErr(fmt.Sprintf("analysis.mode %q is not one of auto, manual, hybrid, llmtool", c.Analysis.Mode))
	}
	switch c.Format.SendContentType {
	case "text", "image", "both":
	default:
		return configErr(fmt.Sprintf("format.send_content_type %q is not one of text, image, both", c.Format.SendContentType))
	}
	return nil
}

func configErr(msg string) error {
	return faults.New(faults.KindConfig, "startup", "", fmt.Errorf("%s", msg))
}
