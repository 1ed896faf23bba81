// Package cache stores analysis results keyed by normalized URL and
// analysis mode, with TTL expiry. Freshness is re-checked on every read
// so correctness never depends on sweep timing.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/linkdigest/linkdigest/pkg/models"
)

// Entry is one cached analysis with its freshness window.
type Entry struct {
	Key       Key                   `json:"key"`
	Result    models.AnalysisResult `json:"result"`
	CreatedAt time.Time             `json:"created_at"`
	TTL       time.Duration         `json:"ttl"`
}

// Fresh reports whether the entry is still within its TTL.
func (e Entry) Fresh(now time.Time) bool {
	return now.Sub(e.CreatedAt) <= e.TTL
}

// Stats summarizes store occupancy.
type Stats struct {
	Total   int
	Valid   int
	Expired int
}

// Store is the cache contract. Implementations must make Put,
// Invalidate and Clear atomic with respect to concurrent Gets on the
// same key; a Get after Clear or Invalidate never sees the old value.
type Store interface {
	Get(ctx context.Context, key Key) (models.AnalysisResult, bool, error)
	Put(ctx context.Context, key Key, result models.AnalysisResult, ttl time.Duration) error
	Invalidate(ctx context.Context, key Key) error
	Clear(ctx context.Context) error
	Entries(ctx context.Context) ([]Entry, error)
	Stats(ctx context.Context) (Stats, error)
}

const defaultMaxEntries = 100

// Memory is an in-process Store guarded by a single mutex. Stale
// entries are purged lazily: on Get of an expired key and on Put when
// the store is at capacity.
type Memory struct {
	mu         sync.Mutex
	entries    map[Key]Entry
	maxEntries int
}

// NewMemory creates an in-memory store. maxEntries <= 0 selects the default cap.
func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &Memory{
		entries:    make(map[Key]Entry),
		maxEntries: maxEntries,
	}
}

func (m *Memory) Get(_ context.Context, key Key) (models.AnalysisResult, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return models.AnalysisResult{}, false, nil
	}
	if !entry.Fresh(time.Now()) {
		delete(m.entries, key)
		return models.AnalysisResult{}, false, nil
	}
	return entry.Result, true, nil
}

func (m *Memory) Put(_ context.Context, key Key, result models.AnalysisResult, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.maxEntries {
		m.sweepLocked(now)
		if len(m.entries) >= m.maxEntries {
			m.evictOldestLocked()
		}
	}

	m.entries[key] = Entry{Key: key, Result: result, CreatedAt: now, TTL: ttl}
	return nil
}

func (m *Memory) Invalidate(_ context.Context, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[Key]Entry)
	return nil
}

func (m *Memory) Entries(_ context.Context) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		if e.Fresh(now) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *Memory) Stats(_ context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	s := Stats{Total: len(m.entries)}
	for _, e := range m.entries {
		if e.Fresh(now) {
			s.Valid++
		} else {
			s.Expired++
		}
	}
	return s, nil
}

func (m *Memory) sweepLocked(now time.Time) {
	for k, e := range m.entries {
		if !e.Fresh(now) {
			delete(m.entries, k)
		}
	}
}

func (m *Memory) evictOldestLocked() {
	var oldest Key
	var oldestTime time.Time
	for k, e := range m.entries {
		if oldest == "" || e.CreatedAt.Before(oldestTime) {
			oldest = k
			oldestTime = e.CreatedAt
		}
	}
	if oldest != "" {
		delete(m.entries, oldest)
	}
}
