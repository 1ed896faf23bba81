package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/linkdigest/linkdigest/internal/cache"
	"github.com/linkdigest/linkdigest/internal/events"
	"github.com/linkdigest/linkdigest/internal/faults"
	"github.com/linkdigest/linkdigest/internal/formatter"
	"github.com/linkdigest/linkdigest/pkg/models"
)

type fakeFetcher struct {
	mu      sync.Mutex
	calls   atomic.Int64
	delay   time.Duration
	failing map[string]error
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (models.ContentData, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return models.ContentData{}, ctx.Err()
		}
	}
	f.mu.Lock()
	err := f.failing[url]
	f.mu.Unlock()
	if err != nil {
		return models.ContentData{}, err
	}
	return models.ContentData{
		URL:       url,
		Title:     "Title for " + url,
		Content:   "Body content of the page at " + url + ". It has enough words to format.",
		FetchedAt: time.Now(),
	}, nil
}

type fakeSummarizer struct {
	summary   string
	err       error
	available bool
	calls     atomic.Int64
}

func (s *fakeSummarizer) Available() bool { return s.available }

func (s *fakeSummarizer) Summarize(_ context.Context, _ models.ContentData, _ models.ContentType) (string, error) {
	s.calls.Add(1)
	return s.summary, s.err
}

func newTestOrchestrator(f ContentFetcher, s Summarizer, config Config) *Orchestrator {
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = 4
	}
	return New(f, s, cache.NewMemory(0), formatter.New(formatter.Settings{EnableEmoji: true}), config)
}

func TestProcessURL_Success(t *testing.T) {
	fetcher := &fakeFetcher{}
	summarizer := &fakeSummarizer{summary: "a fine summary", available: true}
	o := newTestOrchestrator(fetcher, summarizer, Config{Mode: models.ModeAuto, CacheEnabled: true, CacheTTL: time.Minute})

	out := o.ProcessURL(t.Context(), "https://example.com/a")
	require.Nil(t, out.Fault)
	require.NotNil(t, out.Result)
	require.Equal(t, "a fine summary", out.Result.LLMSummary)
	require.Contains(t, out.Presented, "a fine summary")
	require.False(t, out.CacheHit)
}

func TestProcessURL_CacheHitSkipsFetch(t *testing.T) {
	fetcher := &fakeFetcher{}
	o := newTestOrchestrator(fetcher, nil, Config{Mode: models.ModeAuto, CacheEnabled: true, CacheTTL: time.Minute})

	first := o.ProcessURL(t.Context(), "https://example.com/a")
	require.Nil(t, first.Fault)
	second := o.ProcessURL(t.Context(), "https://example.com/a")
	require.Nil(t, second.Fault)
	require.True(t, second.CacheHit)
	require.EqualValues(t, 1, fetcher.calls.Load())
}

func TestProcessURL_EquivalentURLsShareCacheSlot(t *testing.T) {
	fetcher := &fakeFetcher{}
	o := newTestOrchestrator(fetcher, nil, Config{Mode: models.ModeAuto, CacheEnabled: true, CacheTTL: time.Minute})

	o.ProcessURL(t.Context(), "https://example.com/a?x=1&y=2")
	out := o.ProcessURL(t.Context(), "HTTPS://EXAMPLE.COM/a?y=2&x=1")
	require.True(t, out.CacheHit)
	require.EqualValues(t, 1, fetcher.calls.Load())
}

func TestProcessURL_ConcurrentRequestsShareOneFetch(t *testing.T) {
	fetcher := &fakeFetcher{delay: 50 * time.Millisecond}
	o := newTestOrchestrator(fetcher, nil, Config{Mode: models.ModeAuto, CacheEnabled: true, CacheTTL: time.Minute})

	var wg sync.WaitGroup
	outcomes := make([]Outcome, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = o.ProcessURL(context.Background(), "https://example.com/shared")
		}(i)
	}
	wg.Wait()

	for _, out := range outcomes {
		require.Nil(t, out.Fault)
		require.NotNil(t, out.Result)
	}
	require.EqualValues(t, 1, fetcher.calls.Load(), "concurrent identical requests should share one fetch")
}

func TestProcessURL_LLMFailureDegrades(t *testing.T) {
	fetcher := &fakeFetcher{}
	summarizer := &fakeSummarizer{err: faults.New(faults.KindLLMUnavailable, "summarize", "", errors.New("down")), available: true}
	o := newTestOrchestrator(fetcher, summarizer, Config{Mode: models.ModeAuto})

	out := o.ProcessURL(t.Context(), "https://example.com/a")
	require.Nil(t, out.Fault, "LLM failure must not fail the analysis")
	require.NotNil(t, out.Result)
	require.Empty(t, out.Result.LLMSummary)
	require.Contains(t, out.Presented, "Overview", "degraded output should carry the base analysis")
}

func TestProcessURL_FetchFailureIsFault(t *testing.T) {
	fetcher := &fakeFetcher{failing: map[string]error{
		"https://example.com/bad": faults.New(faults.KindNetwork, "fetch", "https://example.com/bad", errors.New("refused")),
	}}
	o := newTestOrchestrator(fetcher, nil, Config{Mode: models.ModeAuto, CacheEnabled: true, CacheTTL: time.Minute})

	out := o.ProcessURL(t.Context(), "https://example.com/bad")
	require.NotNil(t, out.Fault)
	require.Equal(t, faults.KindNetwork, out.Fault.Kind)
	require.Nil(t, out.Result)
	require.Contains(t, out.Presented, "❌")

	// Failures are not cached; the next attempt fetches again.
	o.ProcessURL(t.Context(), "https://example.com/bad")
	require.EqualValues(t, 2, fetcher.calls.Load())
}

func TestProcessURL_InvalidURL(t *testing.T) {
	o := newTestOrchestrator(&fakeFetcher{}, nil, Config{Mode: models.ModeAuto})
	out := o.ProcessURL(t.Context(), "not-a-url")
	require.NotNil(t, out.Fault)
	require.NotEmpty(t, out.Presented)
}

func TestProcessBatch_OrderLengthAndIsolation(t *testing.T) {
	fetcher := &fakeFetcher{failing: map[string]error{
		"https://example.com/2": errors.New("boom"),
	}}
	o := newTestOrchestrator(fetcher, nil, Config{Mode: models.ModeAuto, MaxConcurrency: 3})

	urls := []string{
		"https://example.com/1",
		"https://example.com/2",
		"https://example.com/3",
	}
	outcomes := o.ProcessBatch(t.Context(), urls)
	require.Len(t, outcomes, len(urls))
	for i, out := range outcomes {
		require.Equal(t, urls[i], out.URL, "outcomes must keep input order")
	}
	require.Nil(t, outcomes[0].Fault)
	require.NotNil(t, outcomes[1].Fault, "one failure must not affect the batch")
	require.Nil(t, outcomes[2].Fault)
}

func TestProcessBatch_DeduplicatesEquivalentURLs(t *testing.T) {
	fetcher := &fakeFetcher{}
	o := newTestOrchestrator(fetcher, nil, Config{Mode: models.ModeAuto})

	urls := []string{
		"https://example.com/p?a=1&b=2",
		"https://example.com/p?b=2&a=1",
		"https://example.com/other",
	}
	outcomes := o.ProcessBatch(t.Context(), urls)
	require.Len(t, outcomes, 3)
	require.EqualValues(t, 2, fetcher.calls.Load(), "equivalent URLs should be fetched once")
	require.Equal(t, urls[1], outcomes[1].URL, "duplicate outcome keeps its own input URL")
	require.Nil(t, outcomes[1].Fault)
}

type boundedFetcher struct {
	inFlight atomic.Int64
	peak     atomic.Int64
}

func (b *boundedFetcher) Fetch(_ context.Context, url string) (models.ContentData, error) {
	n := b.inFlight.Add(1)
	for {
		p := b.peak.Load()
		if n <= p || b.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	b.inFlight.Add(-1)
	return models.ContentData{URL: url, Title: "t", Content: "c"}, nil
}

func TestProcessBatch_RespectsConcurrencyBound(t *testing.T) {
	fetcher := &boundedFetcher{}
	o := newTestOrchestrator(fetcher, nil, Config{Mode: models.ModeAuto, MaxConcurrency: 2})

	urls := make([]string, 10)
	for i := range urls {
		urls[i] = "https://example.com/p" + string(rune('a'+i))
	}
	o.ProcessBatch(t.Context(), urls)
	require.LessOrEqual(t, fetcher.peak.Load(), int64(2))
}

func TestHandleMessage_ModeGating(t *testing.T) {
	tests := []struct {
		name     string
		mode     models.AnalysisMode
		message  string
		explicit bool
		analyzed bool
	}{
		{"auto analyzes chatter", models.ModeAuto, "look https://example.com/a here", false, true},
		{"manual ignores chatter", models.ModeManual, "look https://example.com/a here", false, false},
		{"manual honors explicit", models.ModeManual, "https://example.com/a", true, true},
		{"hybrid ignores chatter", models.ModeHybrid, "look https://example.com/a here", false, false},
		{"hybrid analyzes bare url", models.ModeHybrid, "https://example.com/a", false, true},
		{"hybrid honors explicit", models.ModeHybrid, "look https://example.com/a here", true, true},
		{"llmtool never analyzes messages", models.ModeLLMTool, "https://example.com/a", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &fakeFetcher{}
			o := newTestOrchestrator(fetcher, nil, Config{Mode: tt.mode})
			outcomes := o.HandleMessage(t.Context(), "group-1", tt.message, tt.explicit)
			if tt.analyzed {
				require.NotEmpty(t, outcomes)
			} else {
				require.Empty(t, outcomes)
				require.Zero(t, fetcher.calls.Load())
			}
		})
	}
}

func TestHandleMessage_NoURLs(t *testing.T) {
	fetcher := &fakeFetcher{}
	o := newTestOrchestrator(fetcher, nil, Config{Mode: models.ModeAuto})
	require.Empty(t, o.HandleMessage(t.Context(), "group-1", "no links here", false))
	require.Zero(t, fetcher.calls.Load())
}

func TestHandleMessage_BlacklistedGroupNeverFetches(t *testing.T) {
	fetcher := &fakeFetcher{}
	o := newTestOrchestrator(fetcher, nil, Config{Mode: models.ModeAuto, Blacklist: []string{"group-banned"}})

	outcomes := o.HandleMessage(t.Context(), "group-banned", "https://example.com/a", true)
	require.Empty(t, outcomes)
	require.Zero(t, fetcher.calls.Load())

	o.UnblacklistGroup("group-banned")
	outcomes = o.HandleMessage(t.Context(), "group-banned", "https://example.com/a", true)
	require.NotEmpty(t, outcomes)
}

func TestProcessURL_BlockedDomainIsPermissionFault(t *testing.T) {
	fetcher := &fakeFetcher{}
	o := newTestOrchestrator(fetcher, nil, Config{Mode: models.ModeAuto, BlockedDomains: []string{"Evil.example"}})

	for _, url := range []string{
		"https://evil.example/page",
		"https://cdn.evil.example/asset", // subdomains are covered too
	} {
		out := o.ProcessURL(t.Context(), url)
		require.NotNil(t, out.Fault, url)
		require.Equal(t, faults.KindPermission, out.Fault.Kind)
		require.Contains(t, out.Presented, "❌")
	}
	require.Zero(t, fetcher.calls.Load(), "blocked domains must never be fetched")
}

func TestProcessURL_AllowedListRestrictsHosts(t *testing.T) {
	fetcher := &fakeFetcher{}
	o := newTestOrchestrator(fetcher, nil, Config{Mode: models.ModeAuto, AllowedDomains: []string{"example.com"}})

	require.Nil(t, o.ProcessURL(t.Context(), "https://example.com/a").Fault)
	require.Nil(t, o.ProcessURL(t.Context(), "https://docs.example.com/b").Fault)

	out := o.ProcessURL(t.Context(), "https://other.org/c")
	require.NotNil(t, out.Fault)
	require.Equal(t, faults.KindPermission, out.Fault.Kind)
	require.EqualValues(t, 2, fetcher.calls.Load())

	// A lookalike suffix is not a subdomain.
	out = o.ProcessURL(t.Context(), "https://notexample.com/d")
	require.NotNil(t, out.Fault)
}

func TestProcessURL_BlockedWinsOverAllowed(t *testing.T) {
	fetcher := &fakeFetcher{}
	o := newTestOrchestrator(fetcher, nil, Config{
		Mode:           models.ModeAuto,
		AllowedDomains: []string{"example.com"},
		BlockedDomains: []string{"internal.example.com"},
	})

	out := o.ProcessURL(t.Context(), "https://internal.example.com/secret")
	require.NotNil(t, out.Fault)
	require.Equal(t, faults.KindPermission, out.Fault.Kind)
	require.Zero(t, fetcher.calls.Load())
}

func TestHandleMessage_SkipsDisallowedDomainsSilently(t *testing.T) {
	fetcher := &fakeFetcher{}
	o := newTestOrchestrator(fetcher, nil, Config{Mode: models.ModeAuto, BlockedDomains: []string{"evil.example"}})

	outcomes := o.HandleMessage(t.Context(), "group-1",
		"see https://example.com/ok and https://evil.example/bad", false)
	require.Len(t, outcomes, 1, "disallowed URLs are dropped, not faulted, in messages")
	require.Equal(t, "https://example.com/ok", outcomes[0].URL)
	require.Nil(t, outcomes[0].Fault)

	outcomes = o.HandleMessage(t.Context(), "group-1", "https://evil.example/only", true)
	require.Empty(t, outcomes)
	require.EqualValues(t, 1, fetcher.calls.Load())
}

func TestBlacklistOps(t *testing.T) {
	o := newTestOrchestrator(&fakeFetcher{}, nil, Config{Mode: models.ModeAuto})

	o.BlacklistGroup("g2")
	o.BlacklistGroup("g1")
	o.BlacklistGroup("g1") // duplicate add is a no-op
	require.Equal(t, []string{"g1", "g2"}, o.BlacklistedGroups())
	require.True(t, o.Blacklisted("g1"))

	o.UnblacklistGroup("g1")
	o.UnblacklistGroup("missing") // removing a missing entry is a no-op
	require.Equal(t, []string{"g2"}, o.BlacklistedGroups())
}

func TestSetMode(t *testing.T) {
	o := newTestOrchestrator(&fakeFetcher{}, nil, Config{Mode: models.ModeAuto})

	require.NoError(t, o.SetMode(models.ModeHybrid))
	require.Equal(t, models.ModeHybrid, o.Mode())

	err := o.SetMode("bogus")
	require.Error(t, err)
	var f *faults.Fault
	require.ErrorAs(t, err, &f)
	require.Equal(t, faults.KindConfig, f.Kind)
	require.Equal(t, models.ModeHybrid, o.Mode(), "failed switch keeps the previous mode")
}

func TestModeChangeSeparatesCacheSlots(t *testing.T) {
	fetcher := &fakeFetcher{}
	o := newTestOrchestrator(fetcher, nil, Config{Mode: models.ModeAuto, CacheEnabled: true, CacheTTL: time.Minute})

	o.ProcessURL(t.Context(), "https://example.com/a")
	require.NoError(t, o.SetMode(models.ModeManual))
	out := o.ProcessURL(t.Context(), "https://example.com/a")
	require.False(t, out.CacheHit, "a different mode must not reuse the old slot")
	require.EqualValues(t, 2, fetcher.calls.Load())
}

func TestRefresh_ReplacesCachedResult(t *testing.T) {
	fetcher := &fakeFetcher{}
	o := newTestOrchestrator(fetcher, nil, Config{Mode: models.ModeAuto, CacheEnabled: true, CacheTTL: time.Minute})

	o.ProcessURL(t.Context(), "https://example.com/a")
	out := o.Refresh(t.Context(), "https://example.com/a")
	require.Nil(t, out.Fault)
	require.False(t, out.CacheHit)
	require.EqualValues(t, 2, fetcher.calls.Load(), "refresh must bypass the cache")
}

type recordingListener struct {
	mu       sync.Mutex
	analyses []events.AnalysisCompleteEvent
	batches  []events.BatchCompleteEvent
}

func (r *recordingListener) AnalysisComplete(ev events.AnalysisCompleteEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.analyses = append(r.analyses, ev)
}

func (r *recordingListener) BatchComplete(ev events.BatchCompleteEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, ev)
}

func TestListenerReceivesEvents(t *testing.T) {
	fetcher := &fakeFetcher{failing: map[string]error{
		"https://example.com/bad": errors.New("boom"),
	}}
	o := newTestOrchestrator(fetcher, nil, Config{Mode: models.ModeAuto, CacheEnabled: true, CacheTTL: time.Minute})
	listener := &recordingListener{}
	o.SetListener(listener)

	o.ProcessBatch(t.Context(), []string{
		"https://example.com/ok",
		"https://example.com/bad",
	})
	out := o.ProcessURL(t.Context(), "https://example.com/ok")
	require.True(t, out.CacheHit)

	listener.mu.Lock()
	defer listener.mu.Unlock()
	require.Len(t, listener.analyses, 3)
	require.Len(t, listener.batches, 1)

	var failed, hits int
	for _, ev := range listener.analyses {
		if ev.Failed {
			failed++
		}
		if ev.CacheHit {
			hits++
		}
	}
	require.Equal(t, 1, failed)
	require.Equal(t, 1, hits)

	batch := listener.batches[0]
	require.NotEmpty(t, batch.BatchID)
	require.Equal(t, 2, batch.URLCount)
	require.Equal(t, 1, batch.Failed)
}

func TestProcessURL_CacheDisabled(t *testing.T) {
	fetcher := &fakeFetcher{}
	o := New(fetcher, nil, nil, formatter.New(formatter.Settings{}), Config{Mode: models.ModeAuto})

	o.ProcessURL(t.Context(), "https://example.com/a")
	out := o.ProcessURL(t.Context(), "https://example.com/a")
	require.Nil(t, out.Fault)
	require.False(t, out.CacheHit)
	require.EqualValues(t, 2, fetcher.calls.Load())
}
