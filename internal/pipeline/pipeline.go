// Package pipeline orchestrates URL analysis: extraction of URLs from
// messages, cached fetch-and-summarize of each URL, and batch fan-out
// with per-item failure isolation.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/linkdigest/linkdigest/internal/cache"
	"github.com/linkdigest/linkdigest/internal/events"
	"github.com/linkdigest/linkdigest/internal/faults"
	"github.com/linkdigest/linkdigest/internal/formatter"
	"github.com/linkdigest/linkdigest/internal/llm"
	"github.com/linkdigest/linkdigest/pkg/models"
)

// ContentFetcher retrieves one page as structured content.
type ContentFetcher interface {
	Fetch(ctx context.Context, url string) (models.ContentData, error)
}

// Summarizer produces an LLM summary for fetched content.
type Summarizer interface {
	Available() bool
	Summarize(ctx context.Context, data models.ContentData, contentType models.ContentType) (string, error)
}

// Config holds orchestrator configuration.
type Config struct {
	Mode           models.AnalysisMode
	CacheEnabled   bool
	CacheTTL       time.Duration
	MaxConcurrency int
	Blacklist      []string
	AllowedDomains []string
	BlockedDomains []string
}

// Outcome is the result of processing one URL. Exactly one of Result
// or Fault is set; Presented always carries user-facing text.
type Outcome struct {
	URL       string
	Presented string
	Result    *models.AnalysisResult
	Fault     *faults.Fault
	CacheHit  bool
}

// Orchestrator runs the analysis pipeline. Mode and blacklist are
// runtime-mutable; everything else is fixed at construction.
type Orchestrator struct {
	fetcher    ContentFetcher
	summarizer Summarizer
	store      cache.Store
	formatter  *formatter.Formatter
	config     Config

	group singleflight.Group

	allowedDomains []string
	blockedDomains []string

	mu        sync.RWMutex
	mode      models.AnalysisMode
	blacklist map[string]struct{}
	listener  events.Listener
}

// SetListener attaches an event listener. Pass nil to detach.
func (o *Orchestrator) SetListener(l events.Listener) {
	o.mu.Lock()
	o.listener = l
	o.mu.Unlock()
}

func (o *Orchestrator) emitAnalysis(out Outcome) {
	o.mu.RLock()
	l := o.listener
	o.mu.RUnlock()
	if l == nil {
		return
	}
	ev := events.AnalysisCompleteEvent{
		URL:       out.URL,
		CacheHit:  out.CacheHit,
		Failed:    out.Fault != nil,
		Timestamp: time.Now(),
	}
	if out.Result != nil {
		ev.ContentType = string(out.Result.ContentType)
	}
	l.AnalysisComplete(ev)
}

func (o *Orchestrator) emitBatch(ev events.BatchCompleteEvent) {
	o.mu.RLock()
	l := o.listener
	o.mu.RUnlock()
	if l != nil {
		l.BatchComplete(ev)
	}
}

// New creates an Orchestrator. store may be nil when caching is disabled.
func New(f ContentFetcher, s Summarizer, store cache.Store, fm *formatter.Formatter, config Config) *Orchestrator {
	if config.MaxConcurrency < 1 {
		config.MaxConcurrency = 5
	}
	if !models.ValidMode(config.Mode) {
		config.Mode = models.ModeAuto
	}
	bl := make(map[string]struct{}, len(config.Blacklist))
	for _, g := range config.Blacklist {
		bl[g] = struct{}{}
	}
	return &Orchestrator{
		fetcher:        f,
		summarizer:     s,
		store:          store,
		formatter:      fm,
		config:         config,
		allowedDomains: lowerAll(config.AllowedDomains),
		blockedDomains: lowerAll(config.BlockedDomains),
		mode:           config.Mode,
		blacklist:      bl,
	}
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// DomainAllowed reports whether the URL's host passes the domain
// rules: blocked entries win, and a non-empty allowed list admits only
// listed hosts. An entry covers the host itself and its subdomains.
// Unparseable URLs pass; they fail later with a proper validate fault.
func (o *Orchestrator) DomainAllowed(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Hostname() == "" {
		return true
	}
	host := strings.ToLower(u.Hostname())

	for _, d := range o.blockedDomains {
		if hostWithin(host, d) {
			return false
		}
	}
	if len(o.allowedDomains) == 0 {
		return true
	}
	for _, d := range o.allowedDomains {
		if hostWithin(host, d) {
			return true
		}
	}
	return false
}

func hostWithin(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// Mode returns the current analysis mode.
func (o *Orchestrator) Mode() models.AnalysisMode {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.mode
}

// SetMode switches the analysis mode at runtime.
func (o *Orchestrator) SetMode(mode models.AnalysisMode) error {
	if !models.ValidMode(mode) {
		return faults.New(faults.KindConfig, "mode", "",
			&modeError{mode: mode})
	}
	o.mu.Lock()
	o.mode = mode
	o.mu.Unlock()
	slog.Info("analysis mode changed", "mode", mode)
	return nil
}

type modeError struct{ mode models.AnalysisMode }

func (e *modeError) Error() string { return "unsupported mode: " + string(e.mode) }

// Blacklisted reports whether a group is excluded from analysis.
func (o *Orchestrator) Blacklisted(groupID string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.blacklist[groupID]
	return ok
}

// BlacklistGroup excludes a group. Adding an existing entry is a no-op.
func (o *Orchestrator) BlacklistGroup(groupID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.blacklist[groupID] = struct{}{}
}

// UnblacklistGroup re-enables a group. Removing a missing entry is a no-op.
func (o *Orchestrator) UnblacklistGroup(groupID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.blacklist, groupID)
}

// BlacklistedGroups returns the excluded groups in stable order.
func (o *Orchestrator) BlacklistedGroups() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]string, 0, len(o.blacklist))
	for g := range o.blacklist {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// HandleMessage processes a chat message: URLs are extracted and,
// when the mode and group allow it, analyzed as a batch. explicit
// marks a user-triggered analysis command as opposed to a passively
// observed message. The returned slice is empty when nothing was
// analyzed; a blacklisted group never triggers a fetch.
func (o *Orchestrator) HandleMessage(ctx context.Context, groupID, message string, explicit bool) []Outcome {
	if o.Blacklisted(groupID) {
		slog.Debug("group is blacklisted, skipping", "group", groupID)
		return nil
	}
	urls := ExtractURLs(message)
	if len(urls) == 0 {
		return nil
	}
	if !o.shouldAnalyze(message, urls, explicit) {
		return nil
	}

	// Disallowed domains are skipped silently in the message path.
	allowed := urls[:0]
	for _, u := range urls {
		if o.DomainAllowed(u) {
			allowed = append(allowed, u)
		} else {
			slog.Debug("domain not allowed, skipping", "url", u)
		}
	}
	if len(allowed) == 0 {
		return nil
	}
	return o.ProcessBatch(ctx, allowed)
}

// shouldAnalyze applies the mode gate. auto analyzes everything,
// manual only explicit requests, hybrid explicit requests plus
// URL-only messages, and llmtool nothing (analysis happens through
// the tool surface instead).
func (o *Orchestrator) shouldAnalyze(message string, urls []string, explicit bool) bool {
	switch o.Mode() {
	case models.ModeAuto:
		return true
	case models.ModeManual:
		return explicit
	case models.ModeHybrid:
		return explicit || isURLOnly(message, urls)
	case models.ModeLLMTool:
		return false
	}
	return false
}

// ProcessURL analyzes one URL, serving from cache when possible.
// Concurrent requests for the same URL and mode share one fetch.
func (o *Orchestrator) ProcessURL(ctx context.Context, rawURL string) Outcome {
	out := o.processURL(ctx, rawURL)
	o.emitAnalysis(out)
	return out
}

func (o *Orchestrator) processURL(ctx context.Context, rawURL string) Outcome {
	key, err := cache.NewKey(rawURL, o.Mode())
	if err != nil {
		f := faults.Classify(err, "validate", rawURL)
		return Outcome{URL: rawURL, Presented: faults.Render(f), Fault: f}
	}

	if !o.DomainAllowed(rawURL) {
		f := faults.New(faults.KindPermission, "validate", rawURL,
			fmt.Errorf("domain is not allowed"))
		return Outcome{URL: rawURL, Presented: faults.Render(f), Fault: f}
	}

	if o.cacheEnabled() {
		if result, ok, err := o.store.Get(ctx, key); err == nil && ok {
			slog.Debug("cache hit", "url", rawURL)
			return Outcome{
				URL:       rawURL,
				Presented: o.formatter.Format(result),
				Result:    &result,
				CacheHit:  true,
			}
		}
	}

	v, err, shared := o.group.Do(string(key), func() (any, error) {
		return o.analyze(ctx, rawURL, key)
	})
	if err != nil {
		f := faults.Classify(err, "analyze", rawURL)
		return Outcome{URL: rawURL, Presented: faults.Render(f), Fault: f}
	}

	result := v.(models.AnalysisResult)
	if shared {
		slog.Debug("fetch shared with concurrent request", "url", rawURL)
	}
	return Outcome{
		URL:       rawURL,
		Presented: o.formatter.Format(result),
		Result:    &result,
	}
}

// analyze runs the uncached path: fetch, classify, summarize, store.
// An unavailable or failing LLM degrades to base formatting rather
// than failing the analysis.
func (o *Orchestrator) analyze(ctx context.Context, rawURL string, key cache.Key) (models.AnalysisResult, error) {
	data, err := o.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return models.AnalysisResult{}, err
	}

	contentType := llm.DetectContentType(data)
	result := models.AnalysisResult{
		Raw:         data,
		ContentType: contentType,
		Specific:    data.Specific,
		AnalyzedAt:  time.Now().UTC(),
	}

	if o.summarizer != nil && o.summarizer.Available() {
		summary, err := o.summarizer.Summarize(ctx, data, contentType)
		if err != nil {
			slog.Warn("summary unavailable, using base analysis", "url", rawURL, "error", err)
		} else {
			result.LLMSummary = summary
		}
	}

	if o.cacheEnabled() {
		if err := o.store.Put(ctx, key, result, o.config.CacheTTL); err != nil {
			slog.Warn("failed to cache result", "url", rawURL, "error", err)
		}
	}
	return result, nil
}

func (o *Orchestrator) cacheEnabled() bool {
	return o.config.CacheEnabled && o.store != nil
}

// ProcessBatch analyzes a set of URLs concurrently. The output is
// ordered like the input and always has the same length: one failed
// item never affects the others. URLs that normalize to the same
// cache key are fetched once and the outcome is shared.
func (o *Orchestrator) ProcessBatch(ctx context.Context, urls []string) []Outcome {
	if len(urls) == 0 {
		return nil
	}

	batchID := uuid.NewString()
	start := time.Now()
	slog.Info("processing batch", "batch_id", batchID, "urls", len(urls))

	outcomes := make([]Outcome, len(urls))
	sem := make(chan struct{}, o.config.MaxConcurrency)
	var wg sync.WaitGroup

	// First occurrence of each key does the work; duplicates copy it.
	type slot struct {
		first int
		dups  []int
	}
	seen := map[cache.Key]*slot{}
	order := make([]*slot, 0, len(urls))
	for i, raw := range urls {
		key, err := cache.NewKey(raw, o.Mode())
		if err != nil {
			s := &slot{first: i}
			order = append(order, s)
			continue
		}
		if s, ok := seen[key]; ok {
			s.dups = append(s.dups, i)
			continue
		}
		s := &slot{first: i}
		seen[key] = s
		order = append(order, s)
	}

	for _, s := range order {
		wg.Add(1)
		go func(s *slot) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			outcomes[s.first] = o.ProcessURL(ctx, urls[s.first])
			for _, d := range s.dups {
				dup := outcomes[s.first]
				dup.URL = urls[d]
				outcomes[d] = dup
			}
		}(s)
	}
	wg.Wait()

	var failed int
	for i := range outcomes {
		if outcomes[i].Fault != nil {
			failed++
		}
	}
	slog.Info("batch complete",
		"batch_id", batchID,
		"urls", len(urls),
		"failed", failed,
		"duration", time.Since(start))
	o.emitBatch(events.BatchCompleteEvent{
		BatchID:   batchID,
		URLCount:  len(urls),
		Failed:    failed,
		Duration:  time.Since(start),
		Timestamp: time.Now(),
	})
	return outcomes
}

// Refresh re-analyzes a URL, replacing any cached result.
func (o *Orchestrator) Refresh(ctx context.Context, rawURL string) Outcome {
	if o.cacheEnabled() {
		if key, err := cache.NewKey(rawURL, o.Mode()); err == nil {
			if err := o.store.Invalidate(ctx, key); err != nil {
				slog.Warn("failed to invalidate cache entry", "url", rawURL, "error", err)
			}
		}
	}
	return o.ProcessURL(ctx, rawURL)
}
