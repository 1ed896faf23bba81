package config

import (
	"errors"
	"testing"
	"time"

	"github.com/linkdigest/linkdigest/internal/faults"
	"github.com/linkdigest/linkdigest/pkg/models"
)

func TestDefaultsValidate(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("Defaults().Validate() = %v, want nil", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		wantOK bool
	}{
		{"zero timeout", func(c *Config) { c.Network.Timeout = 0 }, false},
		{"concurrency too low", func(c *Config) { c.Network.MaxConcurrency = 0 }, false},
		{"concurrency too high", func(c *Config) { c.Network.MaxConcurrency = 21 }, false},
		{"content length too small", func(c *Config) { c.Network.MaxContentLength = 50 }, false},
		{"cache enabled without ttl", func(c *Config) { c.Cache.TTL = 0 }, false},
		{"cache disabled ignores ttl", func(c *Config) { c.Cache.Enabled = false; c.Cache.TTL = 0 }, true},
		{"llm enabled without base url", func(c *Config) { c.LLM.Enabled = true }, false},
		{"llm enabled complete", func(c *Config) {
			c.LLM.Enabled = true
			c.LLM.BaseURL = "http://localhost:8080/v1"
		}, true},
		{"invalid mode", func(c *Config) { c.Analysis.Mode = "fancy" }, false},
		{"llmtool mode", func(c *Config) { c.Analysis.Mode = models.ModeLLMTool }, true},
		{"invalid send content type", func(c *Config) { c.Format.SendContentType = "video" }, false},
		{"translation without target language", func(c *Config) {
			c.LLM.Enabled = true
			c.LLM.BaseURL = "http://localhost:8080/v1"
			c.LLM.EnableTranslation = true
			c.LLM.TargetLanguage = ""
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.Network.Timeout = 30 * time.Second
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantOK && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if !tt.wantOK {
				if err == nil {
					t.Fatal("Validate() = nil, want error")
				}
				var f *faults.Fault
				if !errors.As(err, &f) || f.Kind != faults.KindConfig {
					t.Errorf("Validate() error = %v, want config fault", err)
				}
			}
		})
	}
}
