package cache

import (
	"context"
	"errors"
	"path"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/searcher/ranker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memStore) DeleteByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func sampleResult() *executor.SearchResult {
	return &executor.SearchResult{
		Query:     "cats",
		Terms:     []string{"cat"},
		TotalHits: 1,
		Results:   []ranker.ScoredDoc{{DocID: 0, URL: "http://pets.com/0", Score: 1.5}},
	}
}

func TestGetOrComputeCachesResult(t *testing.T) {
	c := New(newMemStore(), time.Minute, nil)
	ctx := context.Background()
	calls := 0
	compute := func() (*executor.SearchResult, error) {
		calls++
		return sampleResult(), nil
	}

	res, hit, err := c.GetOrCompute(ctx, "Cats", compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, sampleResult(), res)

	res, hit, err = c.GetOrCompute(ctx, "  cats!", compute)
	require.NoError(t, err)
	assert.True(t, hit, "case and punctuation must share a key")
	assert.Equal(t, sampleResult(), res)
	assert.Equal(t, 1, calls)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(2), misses, "the first lookup misses twice: before and inside the flight")
}

func TestGetOrComputeDoesNotCacheErrors(t *testing.T) {
	c := New(newMemStore(), time.Minute, nil)
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), "q", func() (*executor.SearchResult, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	_, ok := c.Get(context.Background(), "q")
	assert.False(t, ok)
}

func TestGetOrComputeCollapsesConcurrentMisses(t *testing.T) {
	c := New(newMemStore(), time.Minute, nil)
	var calls atomic.Int32
	release := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.GetOrCompute(context.Background(), "dogs", func() (*executor.SearchResult, error) {
				calls.Add(1)
				<-release
				return sampleResult(), nil
			})
			assert.NoError(t, err)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestInvalidate(t *testing.T) {
	store := newMemStore()
	store.data["unrelated"] = []byte("x")
	c := New(store, time.Minute, nil)
	ctx := context.Background()
	c.Set(ctx, "a", sampleResult())
	c.Set(ctx, "b", sampleResult())

	n, err := c.Invalidate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	_, ok := c.Get(ctx, "a")
	assert.False(t, ok)
	assert.Contains(t, store.data, "unrelated")
}
