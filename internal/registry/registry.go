// Package registry assigns dense document ids to canonical urls, records
// duplicate submissions, and persists a line-indexed dump that the query
// engine can seek into by document id.
package registry

import (
	"crypto/sha256"
	"log/slog"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/metrics"
)

// DocID is a dense, zero-based document identifier assigned in first-seen
// order.
type DocID int

type Document struct {
	ID           DocID
	SourceName   string
	CanonicalURL string
}

// Duplicate is a rejected submission of an already registered url.
type Duplicate struct {
	SourceName   string
	CanonicalURL string
	OriginalID   DocID
}

// Registry is not safe for concurrent use; ingestion is sequential.
type Registry struct {
	docs       []Document
	byURL      map[[sha256.Size]byte]DocID
	duplicates []Duplicate
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func New(m *metrics.Metrics) *Registry {
	return &Registry{
		byURL:   make(map[[sha256.Size]byte]DocID),
		metrics: m,
		logger:  slog.Default().With("component", "registry"),
	}
}

// NormalizeURL drops any fragment and then a single trailing slash.
func NormalizeURL(raw string) string {
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		raw = raw[:i]
	}
	return strings.TrimSuffix(raw, "/")
}

func urlKey(canonical string) [sha256.Size]byte {
	return sha256.Sum256([]byte(canonical))
}

// Register returns the id of rawURL, assigning the next id when the canonical
// url has not been seen. The boolean reports whether the submission was a
// duplicate; duplicates keep the original id and are recorded for auditing.
func (r *Registry) Register(sourceName, rawURL string) (DocID, bool) {
	canonical := NormalizeURL(rawURL)
	key := urlKey(canonical)
	if id, ok := r.byURL[key]; ok {
		r.duplicates = append(r.duplicates, Duplicate{
			SourceName:   sourceName,
			CanonicalURL: canonical,
			OriginalID:   id,
		})
		r.metrics.DocumentRegistered(true)
		r.logger.Debug("duplicate document",
			"source", sourceName,
			"url", canonical,
			"doc_id", id,
		)
		return id, true
	}
	id := DocID(len(r.docs))
	r.docs = append(r.docs, Document{
		ID:           id,
		SourceName:   sourceName,
		CanonicalURL: canonical,
	})
	r.byURL[key] = id
	r.metrics.DocumentRegistered(false)
	return id, false
}

// LookupID normalizes rawURL and returns its id if registered.
func (r *Registry) LookupID(rawURL string) (DocID, bool) {
	id, ok := r.byURL[urlKey(NormalizeURL(rawURL))]
	return id, ok
}

// Len is the number of distinct registered documents.
func (r *Registry) Len() int {
	return len(r.docs)
}

func (r *Registry) Documents() []Document {
	out := make([]Document, len(r.docs))
	copy(out, r.docs)
	return out
}

func (r *Registry) Duplicates() []Duplicate {
	out := make([]Duplicate, len(r.duplicates))
	copy(out, r.duplicates)
	return out
}
