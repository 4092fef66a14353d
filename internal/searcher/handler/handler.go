// Package handler exposes the query engine over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/field"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/registry"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/metrics"
)

// Searcher is satisfied by *executor.Reloadable.
type Searcher interface {
	Search(ctx context.Context, query string) (*executor.SearchResult, error)
	LookupTerm(ctx context.Context, term string, kind field.Kind) (segment.Block, error)
	ResolveURL(doc registry.DocID) (string, bool, error)
}

type Handler struct {
	searcher     Searcher
	cache        *cache.QueryCache
	tokenizer    *tokenizer.Tokenizer
	metrics      *metrics.Metrics
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

// New builds a Handler. queryCache and m may be nil.
func New(s Searcher, queryCache *cache.QueryCache, tok *tokenizer.Tokenizer, m *metrics.Metrics, defaultLimit, maxResults int) *Handler {
	if tok == nil {
		tok = tokenizer.New(nil)
	}
	return &Handler{
		searcher:     s,
		cache:        queryCache,
		tokenizer:    tok,
		metrics:      m,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		logger:       logger.WithComponent("search-handler"),
	}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/terms/{field}/{term}", h.Term)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.Document)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

type searchResponse struct {
	Query     string             `json:"query"`
	Terms     []string           `json:"terms"`
	TotalHits int                `json:"total_hits"`
	Page      int                `json:"page"`
	Limit     int                `json:"limit"`
	Results   []ranker.ScoredDoc `json:"results"`
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		h.writeAppError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query parameter 'q' is required"))
		return
	}
	page, err := positiveParam(r, "page", 1)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	limit, err := positiveParam(r, "limit", h.defaultLimit)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	if limit > h.maxResults {
		limit = h.maxResults
	}

	var result *executor.SearchResult
	cacheStatus := "disabled"
	if h.cache != nil {
		var hit bool
		result, hit, err = h.cache.GetOrCompute(ctx, query, func() (*executor.SearchResult, error) {
			return h.searcher.Search(ctx, query)
		})
		cacheStatus = "miss"
		if hit {
			cacheStatus = "hit"
		}
	} else {
		result, err = h.searcher.Search(ctx, query)
	}
	if err != nil {
		h.metrics.SearchServed("error", cacheStatus, 0, time.Since(start))
		log.Error("search failed", "query", query, "error", err)
		h.writeAppError(w, clientError(err, "search"))
		return
	}

	results := paginate(result.Results, page, limit)
	resultType := "hit"
	if result.TotalHits == 0 {
		resultType = "zero_result"
	}
	h.metrics.SearchServed(resultType, cacheStatus, len(results), time.Since(start))
	log.Info("search completed",
		"query", query,
		"terms", result.Terms,
		"total_hits", result.TotalHits,
		"returned", len(results),
		"cache", cacheStatus,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, searchResponse{
		Query:     result.Query,
		Terms:     result.Terms,
		TotalHits: result.TotalHits,
		Page:      page,
		Limit:     limit,
		Results:   results,
	})
}

func paginate(all []ranker.ScoredDoc, page, limit int) []ranker.ScoredDoc {
	from := (page - 1) * limit
	if from >= len(all) {
		return []ranker.ScoredDoc{}
	}
	to := min(from+limit, len(all))
	return all[from:to]
}

func positiveParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "%s must be a positive integer", name)
	}
	return n, nil
}

// clientError turns an internal failure of op into the error the client sees.
// Deadlines become ErrTimeout and unclassified errors become ErrInternal so
// their text is not leaked.
func clientError(err error, op string) error {
	switch {
	case apperrors.Is(err, context.DeadlineExceeded):
		return apperrors.Newf(apperrors.ErrTimeout, http.StatusGatewayTimeout, "%s timed out", op)
	case apperrors.HTTPStatusCode(err) == http.StatusInternalServerError:
		return apperrors.Newf(apperrors.ErrInternal, http.StatusInternalServerError, "%s failed", op)
	}
	return err
}

type posting struct {
	DocID  int     `json:"doc_id"`
	Weight float64 `json:"weight"`
}

type termResponse struct {
	Field    string    `json:"field"`
	Term     string    `json:"term"`
	IDF      float64   `json:"idf"`
	DocFreq  int       `json:"doc_freq"`
	Postings []posting `json:"postings"`
}

// Term returns the merged postings of one term. The path term is stemmed
// unless raw=true.
func (h *Handler) Term(w http.ResponseWriter, r *http.Request) {
	kind, err := field.ParseKind(r.PathValue("field"))
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	term := strings.ToLower(r.PathValue("term"))
	if r.URL.Query().Get("raw") != "true" {
		term = h.tokenizer.Stem(term)
	}
	block, err := h.searcher.LookupTerm(r.Context(), term, kind)
	if err != nil {
		logger.FromContext(r.Context()).Error("term lookup failed", "term", term, "field", kind.String(), "error", err)
		h.writeAppError(w, clientError(err, "term lookup"))
		return
	}
	resp := termResponse{
		Field:    kind.String(),
		Term:     term,
		IDF:      block.IDF,
		DocFreq:  len(block.Entries),
		Postings: make([]posting, 0, len(block.Entries)),
	}
	for _, e := range block.Entries {
		resp.Postings = append(resp.Postings, posting{DocID: int(e.DocID), Weight: e.Weight})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type documentResponse struct {
	DocID int    `json:"doc_id"`
	URL   string `json:"url"`
}

// Document resolves a doc id from search results back to its canonical url.
func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id < 0 {
		h.writeAppError(w, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid document id %q", r.PathValue("id")))
		return
	}
	url, ok, err := h.searcher.ResolveURL(registry.DocID(id))
	if err != nil {
		logger.FromContext(r.Context()).Error("document lookup failed", "doc_id", id, "error", err)
		h.writeAppError(w, clientError(err, "document lookup"))
		return
	}
	if !ok {
		h.writeAppError(w, apperrors.Newf(apperrors.ErrDocumentNotFound, http.StatusNotFound, "document %d not found", id))
		return
	}
	h.writeJSON(w, http.StatusOK, documentResponse{DocID: id, URL: url})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeAppError(w, apperrors.New(apperrors.ErrInternal, http.StatusInternalServerError, "cache invalidation failed"))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	msg := err.Error()
	var appErr *apperrors.AppError
	if apperrors.As(err, &appErr) {
		msg = appErr.Message
	}
	h.writeError(w, apperrors.HTTPStatusCode(err), msg)
}
