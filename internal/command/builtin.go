package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/linkdigest/linkdigest/internal/cache"
	"github.com/linkdigest/linkdigest/internal/config"
	"github.com/linkdigest/linkdigest/internal/export"
	"github.com/linkdigest/linkdigest/internal/faults"
	"github.com/linkdigest/linkdigest/internal/pipeline"
	"github.com/linkdigest/linkdigest/pkg/models"
)

// Deps holds everything the built-in commands operate on.
type Deps struct {
	Orchestrator *pipeline.Orchestrator
	Store        cache.Store // nil when caching is disabled
	Config       config.Config
}

// RegisterBuiltins wires the standard command set into a registry.
func RegisterBuiltins(r *Registry, deps Deps) error {
	b := &builtins{deps: deps, registry: r}

	for _, d := range []Descriptor{
		{
			Name:        "help",
			Aliases:     []string{"h"},
			Usage:       "help",
			Description: "List available commands",
			Permission:  PermEveryone,
			Handler:     b.help,
		},
		{
			Name:        "analyze",
			Aliases:     []string{"a"},
			Usage:       "analyze <url> [url...]",
			Description: "Analyze one or more URLs",
			Permission:  PermEveryone,
			Handler:     b.analyze,
		},
		{
			Name:        "config",
			Usage:       "config",
			Description: "Show the current configuration",
			Permission:  PermAdmin,
			Handler:     b.showConfig,
		},
		{
			Name:        "cache",
			Usage:       "cache <stats|clear>",
			Description: "Inspect or clear the result cache",
			Permission:  PermAdmin,
			Handler:     b.cache,
		},
		{
			Name:        "mode",
			Usage:       "mode [auto|manual|hybrid|llmtool]",
			Description: "Show or switch the analysis mode",
			Permission:  PermAdmin,
			Handler:     b.mode,
		},
		{
			Name:        "blacklist",
			Aliases:     []string{"bl"},
			Usage:       "blacklist <add|remove|list|clear> [group]",
			Description: "Manage the group blacklist",
			Permission:  PermAdmin,
			Handler:     b.blacklist,
		},
		{
			Name:        "export",
			Usage:       "export <md|json|txt> [url]",
			Description: "Export cached analysis results, optionally one URL only",
			Permission:  PermEveryone,
			Handler:     b.export,
		},
	} {
		if err := r.Register(d); err != nil {
			return err
		}
	}
	return nil
}

type builtins struct {
	deps     Deps
	registry *Registry
}

func (b *builtins) help(_ context.Context, req Request) (string, error) {
	var out strings.Builder
	out.WriteString("Available commands:\n")
	for _, d := range b.registry.List() {
		if d.Permission == PermAdmin && !req.Admin {
			continue
		}
		fmt.Fprintf(&out, "  %-40s %s", d.Usage, d.Description)
		if d.Permission == PermAdmin {
			out.WriteString(" (admin)")
		}
		out.WriteString("\n")
	}
	return out.String(), nil
}

func (b *builtins) analyze(ctx context.Context, req Request) (string, error) {
	if len(req.Args) == 0 {
		return "", usageErr("analyze <url> [url...]")
	}
	outcomes := b.deps.Orchestrator.ProcessBatch(ctx, req.Args)

	parts := make([]string, 0, len(outcomes))
	for _, out := range outcomes {
		parts = append(parts, out.Presented)
	}
	return strings.Join(parts, "\n\n"), nil
}

func (b *builtins) showConfig(_ context.Context, _ Request) (string, error) {
	cfg := b.deps.Config
	var out strings.Builder
	fmt.Fprintf(&out, "mode: %s\n", b.deps.Orchestrator.Mode())
	fmt.Fprintf(&out, "network: timeout=%s concurrency=%d max_content=%d\n",
		cfg.Network.Timeout, cfg.Network.MaxConcurrency, cfg.Network.MaxContentLength)
	fmt.Fprintf(&out, "cache: enabled=%t ttl=%s", cfg.Cache.Enabled, cfg.Cache.TTL)
	if cfg.Cache.RedisAddr != "" {
		fmt.Fprintf(&out, " backend=redis(%s)", cfg.Cache.RedisAddr)
	} else {
		out.WriteString(" backend=memory")
	}
	out.WriteString("\n")
	fmt.Fprintf(&out, "llm: enabled=%t model=%s\n", cfg.LLM.Enabled, cfg.LLM.Model)
	fmt.Fprintf(&out, "blacklist: %d groups\n", len(b.deps.Orchestrator.BlacklistedGroups()))
	return out.String(), nil
}

func (b *builtins) cache(ctx context.Context, req Request) (string, error) {
	if b.deps.Store == nil {
		return "cache is disabled", nil
	}
	if len(req.Args) == 0 {
		return "", usageErr("cache <stats|clear>")
	}

	switch req.Args[0] {
	case "stats":
		stats, err := b.deps.Store.Stats(ctx)
		if err != nil {
			return "", faults.Classify(err, "cache", "")
		}
		return fmt.Sprintf("cache: %d entries (%d valid, %d expired)",
			stats.Total, stats.Valid, stats.Expired), nil
	case "clear":
		if err := b.deps.Store.Clear(ctx); err != nil {
			return "", faults.Classify(err, "cache", "")
		}
		return "cache cleared", nil
	}
	return "", usageErr("cache <stats|clear>")
}

func (b *builtins) mode(_ context.Context, req Request) (string, error) {
	if len(req.Args) == 0 {
		return fmt.Sprintf("analysis mode: %s", b.deps.Orchestrator.Mode()), nil
	}
	mode := models.AnalysisMode(req.Args[0])
	if err := b.deps.Orchestrator.SetMode(mode); err != nil {
		return "", err
	}
	return fmt.Sprintf("analysis mode set to %s", mode), nil
}

func (b *builtins) blacklist(_ context.Context, req Request) (string, error) {
	if len(req.Args) == 0 {
		return "", usageErr("blacklist <add|remove|list|clear> [group]")
	}

	switch req.Args[0] {
	case "list":
		groups := b.deps.Orchestrator.BlacklistedGroups()
		if len(groups) == 0 {
			return "blacklist is empty", nil
		}
		return "blacklisted groups:\n  " + strings.Join(groups, "\n  "), nil
	case "add":
		if len(req.Args) < 2 {
			return "", usageErr("blacklist add <group>")
		}
		b.deps.Orchestrator.BlacklistGroup(req.Args[1])
		return fmt.Sprintf("group %s blacklisted", req.Args[1]), nil
	case "remove":
		if len(req.Args) < 2 {
			return "", usageErr("blacklist remove <group>")
		}
		b.deps.Orchestrator.UnblacklistGroup(req.Args[1])
		return fmt.Sprintf("group %s removed from blacklist", req.Args[1]), nil
	case "clear":
		groups := b.deps.Orchestrator.BlacklistedGroups()
		for _, g := range groups {
			b.deps.Orchestrator.UnblacklistGroup(g)
		}
		return fmt.Sprintf("blacklist cleared (%d groups)", len(groups)), nil
	}
	return "", usageErr("blacklist <add|remove|list|clear> [group]")
}

func (b *builtins) export(ctx context.Context, req Request) (string, error) {
	if len(req.Args) == 0 {
		return "", usageErr("export <md|json|txt> [url]")
	}
	format, err := export.ParseFormat(req.Args[0])
	if err != nil {
		return "", err
	}
	if b.deps.Store == nil {
		return "nothing to export: cache is disabled", nil
	}

	var only string
	if len(req.Args) > 1 {
		only, err = cache.CanonicalURL(req.Args[1])
		if err != nil {
			return "", faults.Classify(err, "export", req.Args[1])
		}
	}

	entries, err := b.deps.Store.Entries(ctx)
	if err != nil {
		return "", faults.Classify(err, "export", "")
	}
	results := make([]models.AnalysisResult, 0, len(entries))
	for _, e := range entries {
		if only != "" {
			canonical, err := cache.CanonicalURL(e.Result.Raw.URL)
			if err != nil || canonical != only {
				continue
			}
		}
		results = append(results, e.Result)
	}
	if only != "" && len(results) == 0 {
		return "no cached result for " + req.Args[1], nil
	}

	data, err := export.Render(results, format)
	if err != nil {
		return "", err
	}
	header := fmt.Sprintf("%s (%d results)\n\n", format.Filename(time.Now()), len(results))
	return header + string(data), nil
}

func usageErr(usage string) error {
	return faults.New(faults.KindUnknownCommand, "dispatch", "",
		fmt.Errorf("usage: %s", usage))
}
