package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/linkdigest/linkdigest/pkg/models"
)

func testResult(url string) models.AnalysisResult {
	return models.AnalysisResult{
		Raw:         models.ContentData{URL: url, Title: "t", Content: "c"},
		ContentType: models.TypeGeneric,
		AnalyzedAt:  time.Now().UTC().Truncate(time.Second),
	}
}

// runStoreContract exercises the Store semantics every backend must satisfy.
func runStoreContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	key, err := NewKey("https://example.com/a", models.ModeAuto)
	require.NoError(t, err)

	// Miss before Put.
	_, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.False(t, ok)

	// Put then hit with identical result.
	want := testResult("https://example.com/a")
	require.NoError(t, store.Put(ctx, key, want, time.Minute))
	got, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, want.Raw.URL, got.Raw.URL)
	require.Equal(t, want.ContentType, got.ContentType)

	// Invalidate is immediately visible.
	require.NoError(t, store.Invalidate(ctx, key))
	_, ok, err = store.Get(ctx, key)
	require.NoError(t, err)
	require.False(t, ok)

	// Clear removes everything.
	other, err := NewKey("https://example.com/b", models.ModeAuto)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, key, want, time.Minute))
	require.NoError(t, store.Put(ctx, other, testResult("https://example.com/b"), time.Minute))
	require.NoError(t, store.Clear(ctx))
	_, ok, err = store.Get(ctx, key)
	require.NoError(t, err)
	require.False(t, ok)
	entries, err := store.Entries(ctx)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestMemory_StoreContract(t *testing.T) {
	runStoreContract(t, NewMemory(0))
}

func TestRedis_StoreContract(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewRedis(&redis.Options{Addr: mr.Addr()})
	defer store.Close()

	runStoreContract(t, store)
}

func TestMemory_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(0)
	key, err := NewKey("https://example.com/ttl", models.ModeAuto)
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, key, testResult("https://example.com/ttl"), 20*time.Millisecond))

	_, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok, "entry should be fresh before TTL elapses")

	time.Sleep(40 * time.Millisecond)

	_, ok, err = store.Get(ctx, key)
	require.NoError(t, err)
	require.False(t, ok, "entry should be a miss after TTL elapses")
}

func TestRedis_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	store := NewRedis(&redis.Options{Addr: mr.Addr()})
	defer store.Close()

	key, err := NewKey("https://example.com/ttl", models.ModeAuto)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, key, testResult("https://example.com/ttl"), time.Second))

	_, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)

	// miniredis only expires keys when the clock is advanced explicitly.
	mr.FastForward(2 * time.Second)

	_, ok, err = store.Get(ctx, key)
	require.NoError(t, err)
	require.False(t, ok, "entry should be gone after Redis expiry")
}

func TestMemory_EvictsOldestAtCapacity(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(2)

	k1, _ := NewKey("https://example.com/1", models.ModeAuto)
	k2, _ := NewKey("https://example.com/2", models.ModeAuto)
	k3, _ := NewKey("https://example.com/3", models.ModeAuto)

	require.NoError(t, store.Put(ctx, k1, testResult("https://example.com/1"), time.Minute))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, store.Put(ctx, k2, testResult("https://example.com/2"), time.Minute))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, store.Put(ctx, k3, testResult("https://example.com/3"), time.Minute))

	_, ok, err := store.Get(ctx, k1)
	require.NoError(t, err)
	require.False(t, ok, "oldest entry should be evicted at capacity")

	_, ok, err = store.Get(ctx, k3)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMemory_Stats(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(0)

	fresh, _ := NewKey("https://example.com/fresh", models.ModeAuto)
	stale, _ := NewKey("https://example.com/stale", models.ModeAuto)
	require.NoError(t, store.Put(ctx, fresh, testResult("https://example.com/fresh"), time.Minute))
	require.NoError(t, store.Put(ctx, stale, testResult("https://example.com/stale"), time.Millisecond))
	time.Sleep(10 * time.Millisecond)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Total)
	require.Equal(t, 1, stats.Valid)
	require.Equal(t, 1, stats.Expired)
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(0)
	key, _ := NewKey("https://example.com/conc", models.ModeAuto)

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				_ = store.Put(ctx, key, testResult("https://example.com/conc"), time.Minute)
				_, _, _ = store.Get(ctx, key)
				if j%25 == 0 {
					_ = store.Invalidate(ctx, key)
				}
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
