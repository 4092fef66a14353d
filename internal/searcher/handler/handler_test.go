package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/field"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/registry"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/errors"
)

type fakeSearcher struct {
	mu       sync.Mutex
	calls    int
	hits     int
	err      error
	lastTerm string
	lastKind field.Kind
}

func (f *fakeSearcher) Search(_ context.Context, query string) (*executor.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	res := &executor.SearchResult{Query: query, Terms: []string{"cat"}, TotalHits: f.hits, Results: []ranker.ScoredDoc{}}
	for i := 0; i < f.hits; i++ {
		res.Results = append(res.Results, ranker.ScoredDoc{
			DocID: registry.DocID(i),
			URL:   fmt.Sprintf("http://d%d", i),
			Score: float64(f.hits - i),
		})
	}
	return res, nil
}

func (f *fakeSearcher) LookupTerm(_ context.Context, term string, kind field.Kind) (segment.Block, error) {
	f.lastTerm, f.lastKind = term, kind
	if f.err != nil {
		return segment.Block{}, f.err
	}
	return segment.Block{Term: term, IDF: 0.5, Merged: true, Entries: []segment.Entry{{DocID: 2, Weight: 1.5}}}, nil
}

func (f *fakeSearcher) ResolveURL(doc registry.DocID) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	if int(doc) >= f.hits {
		return "", false, nil
	}
	return fmt.Sprintf("http://d%d", doc), true, nil
}

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
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

func (m *memStore) DeleteByPattern(_ context.Context, _ string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.data))
	m.data = make(map[string][]byte)
	return n, nil
}

func newMux(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	h.Register(mux)
	return mux
}

func do(t *testing.T, mux http.Handler, method, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestSearchPaginates(t *testing.T) {
	s := &fakeSearcher{hits: 25}
	mux := newMux(New(s, nil, nil, nil, 10, 20))

	rec, body := do(t, mux, http.MethodGet, "/api/v1/search?q=cats&page=2&limit=10")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(25), body["total_hits"])
	assert.Equal(t, float64(2), body["page"])
	results := body["results"].([]any)
	require.Len(t, results, 10)
	assert.Equal(t, float64(10), results[0].(map[string]any)["doc_id"])

	_, body = do(t, mux, http.MethodGet, "/api/v1/search?q=cats&page=3&limit=10")
	assert.Len(t, body["results"].([]any), 5)

	_, body = do(t, mux, http.MethodGet, "/api/v1/search?q=cats&page=9")
	assert.Empty(t, body["results"].([]any))

	_, body = do(t, mux, http.MethodGet, "/api/v1/search?q=cats&limit=500")
	assert.Equal(t, float64(20), body["limit"])
	assert.Len(t, body["results"].([]any), 20)
}

func TestSearchValidatesParams(t *testing.T) {
	mux := newMux(New(&fakeSearcher{}, nil, nil, nil, 10, 20))
	for _, target := range []string{
		"/api/v1/search",
		"/api/v1/search?q=%20",
		"/api/v1/search?q=x&page=0",
		"/api/v1/search?q=x&limit=abc",
	} {
		rec, body := do(t, mux, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.NotEmpty(t, body["error"], target)
	}
}

func TestSearchMapsErrors(t *testing.T) {
	s := &fakeSearcher{err: apperrors.ErrIndexNotBuilt}
	mux := newMux(New(s, nil, nil, nil, 10, 20))
	rec, _ := do(t, mux, http.MethodGet, "/api/v1/search?q=cats")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	s.err = fmt.Errorf("disk on fire")
	rec, body := do(t, mux, http.MethodGet, "/api/v1/search?q=cats")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "search failed", body["error"])

	s.err = fmt.Errorf("reading shard: %w", context.DeadlineExceeded)
	rec, body = do(t, mux, http.MethodGet, "/api/v1/search?q=cats")
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Equal(t, "search timed out", body["error"])
}

func TestSearchParamErrorsCarryMessage(t *testing.T) {
	mux := newMux(New(&fakeSearcher{}, nil, nil, nil, 10, 20))
	_, body := do(t, mux, http.MethodGet, "/api/v1/search?q=x&page=-1")
	assert.Equal(t, "page must be a positive integer", body["error"])
	_, body = do(t, mux, http.MethodGet, "/api/v1/search")
	assert.Equal(t, "query parameter 'q' is required", body["error"])
}

func TestDocumentLookup(t *testing.T) {
	s := &fakeSearcher{hits: 3}
	mux := newMux(New(s, nil, nil, nil, 10, 20))

	rec, body := do(t, mux, http.MethodGet, "/api/v1/documents/2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["doc_id"])
	assert.Equal(t, "http://d2", body["url"])

	rec, body = do(t, mux, http.MethodGet, "/api/v1/documents/9")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "document 9 not found", body["error"])

	rec, _ = do(t, mux, http.MethodGet, "/api/v1/documents/abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s.err = apperrors.ErrIndexNotBuilt
	rec, _ = do(t, mux, http.MethodGet, "/api/v1/documents/1")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSearchUsesCache(t *testing.T) {
	s := &fakeSearcher{hits: 3}
	qc := cache.New(&memStore{data: map[string][]byte{}}, time.Minute, nil)
	mux := newMux(New(s, qc, nil, nil, 10, 20))

	do(t, mux, http.MethodGet, "/api/v1/search?q=Cats")
	do(t, mux, http.MethodGet, "/api/v1/search?q=cats&page=2&limit=1")
	assert.Equal(t, 1, s.calls)

	_, stats := do(t, mux, http.MethodGet, "/api/v1/cache/stats")
	assert.Equal(t, float64(1), stats["hits"])

	rec, body := do(t, mux, http.MethodPost, "/api/v1/cache/invalidate")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["keys_deleted"])

	do(t, mux, http.MethodGet, "/api/v1/search?q=cats")
	assert.Equal(t, 2, s.calls)
}

func TestCacheEndpointsWhenDisabled(t *testing.T) {
	mux := newMux(New(&fakeSearcher{}, nil, nil, nil, 10, 20))
	_, body := do(t, mux, http.MethodGet, "/api/v1/cache/stats")
	assert.Equal(t, "disabled", body["status"])
	rec, _ := do(t, mux, http.MethodPost, "/api/v1/cache/invalidate")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTermLookup(t *testing.T) {
	s := &fakeSearcher{}
	mux := newMux(New(s, nil, nil, nil, 10, 20))

	rec, body := do(t, mux, http.MethodGet, "/api/v1/terms/h1/Running")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "run", s.lastTerm)
	assert.Equal(t, field.H1, s.lastKind)
	assert.Equal(t, "h1", body["field"])
	assert.Equal(t, float64(1), body["doc_freq"])

	do(t, mux, http.MethodGet, "/api/v1/terms/frequency/Running?raw=true")
	assert.Equal(t, "running", s.lastTerm)
	assert.Equal(t, field.Frequency, s.lastKind)

	rec, body = do(t, mux, http.MethodGet, "/api/v1/terms/blink/x")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, strings.Contains(body["error"].(string), "blink"))
}
