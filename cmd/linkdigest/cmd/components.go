package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/linkdigest/linkdigest/internal/cache"
	"github.com/linkdigest/linkdigest/internal/command"
	"github.com/linkdigest/linkdigest/internal/config"
	"github.com/linkdigest/linkdigest/internal/fetcher"
	"github.com/linkdigest/linkdigest/internal/formatter"
	"github.com/linkdigest/linkdigest/internal/llm"
	"github.com/linkdigest/linkdigest/internal/pipeline"
)

// components is the assembled application: one orchestrator plus the
// pieces commands need direct access to.
type components struct {
	store        cache.Store
	orchestrator *pipeline.Orchestrator
	registry     *command.Registry
	closers      []func() error
}

func (c *components) Close() {
	for _, fn := range c.closers {
		if err := fn(); err != nil {
			slog.Warn("failed to close component", "error", err)
		}
	}
}

// newComponents validates the configuration and builds the pipeline.
func newComponents(ctx context.Context, cfg config.Config) (*components, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &components{}

	if cfg.Cache.Enabled {
		if cfg.Cache.RedisAddr != "" {
			store := cache.NewRedis(&redis.Options{Addr: cfg.Cache.RedisAddr})
			if err := store.Ping(ctx); err != nil {
				return nil, fmt.Errorf("redis at %s unreachable: %w", cfg.Cache.RedisAddr, err)
			}
			c.store = store
			c.closers = append(c.closers, store.Close)
			slog.Info("using redis cache", "addr", cfg.Cache.RedisAddr)
		} else {
			c.store = cache.NewMemory(cfg.Cache.MaxEntries)
		}
	}

	f := fetcher.New(fetcher.Config{
		Timeout:          cfg.Network.Timeout,
		UserAgent:        cfg.Network.UserAgent,
		MaxContentLength: cfg.Network.MaxContentLength,
		EnableScreenshot: cfg.Network.EnableScreenshot,
	})

	var summarizer pipeline.Summarizer
	if cfg.LLM.Enabled {
		client, err := llm.NewClient(llm.Config{
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM client: %w", err)
		}
		analyzer := llm.NewAnalyzer(client, cfg.LLM.CustomPrompt, cfg.LLM.MaxSummaryLength)
		if cfg.LLM.EnableTranslation {
			analyzer = analyzer.WithTranslation(cfg.LLM.TargetLanguage, cfg.LLM.TranslationPrompt)
			slog.Info("translation enabled", "target_language", cfg.LLM.TargetLanguage)
		}
		summarizer = analyzer
		slog.Info("LLM summarization enabled", "model", cfg.LLM.Model)
	}

	fm := formatter.New(formatter.Settings{
		EnableEmoji:          cfg.Format.EnableEmoji,
		EnableStatistics:     cfg.Format.EnableStatistics,
		EnableCustomTemplate: cfg.Format.EnableCustomTemplate,
		ResultTemplate:       cfg.Format.ResultTemplate,
		CollapseThreshold:    cfg.Format.CollapseThreshold,
	})

	c.orchestrator = pipeline.New(f, summarizer, c.store, fm, pipeline.Config{
		Mode:           cfg.Analysis.Mode,
		CacheEnabled:   cfg.Cache.Enabled,
		CacheTTL:       cfg.Cache.TTL,
		MaxConcurrency: cfg.Network.MaxConcurrency,
		Blacklist:      cfg.Groups.Blacklist,
		AllowedDomains: cfg.Domains.Allowed,
		BlockedDomains: cfg.Domains.Blocked,
	})

	c.registry = command.NewRegistry()
	if err := command.RegisterBuiltins(c.registry, command.Deps{
		Orchestrator: c.orchestrator,
		Store:        c.store,
		Config:       cfg,
	}); err != nil {
		return nil, fmt.Errorf("failed to register commands: %w", err)
	}

	return c, nil
}
