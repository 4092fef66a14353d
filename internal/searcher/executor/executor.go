// Package executor answers term lookups and ranked searches against a merged
// index directory.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/field"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/indexer/merger"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/registry"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/errors"
)

type SearchResult struct {
	Query     string             `json:"query"`
	Terms     []string           `json:"terms"`
	TotalHits int                `json:"total_hits"`
	Results   []ranker.ScoredDoc `json:"results"`
}

type weightedField struct {
	kind   field.Kind
	weight float64
}

// Engine is read-only after Open and safe for concurrent use. Each shard
// file has one handle whose scans are serialized.
type Engine struct {
	root       string
	manifest   *merger.Manifest
	dump       *registry.Dump
	readers    map[field.Kind]map[string]*segment.Reader
	parser     *parser.Parser
	importance []weightedField
	maxResults int
	logger     *slog.Logger
}

// Open loads the index rooted at root. It fails with ErrIndexNotBuilt when
// no successful build has completed there.
func Open(root string, cfg config.SearchConfig, tok *tokenizer.Tokenizer) (*Engine, error) {
	importance, err := parseWeights(cfg.ImportanceWeights)
	if err != nil {
		return nil, err
	}
	manifest, err := merger.ReadManifest(root)
	if err != nil {
		return nil, err
	}
	layout := shard.NewLayout(root)
	if err := layout.Check(); err != nil {
		return nil, err
	}
	dump, err := registry.OpenDump(root)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		root:       root,
		manifest:   manifest,
		dump:       dump,
		readers:    make(map[field.Kind]map[string]*segment.Reader, len(field.All)),
		parser:     parser.New(tok, cfg.LongQueryThreshold),
		importance: importance,
		maxResults: cfg.MaxResults,
		logger:     slog.Default().With("component", "query-engine"),
	}
	for _, k := range field.All {
		files, err := layout.ShardFiles(k)
		if err != nil {
			e.Close()
			return nil, err
		}
		byKey := make(map[string]*segment.Reader, len(files))
		for _, path := range files {
			r, err := segment.OpenReader(path)
			if err != nil {
				e.Close()
				return nil, err
			}
			byKey[strings.TrimSuffix(filepath.Base(path), shard.FileExt)] = r
		}
		e.readers[k] = byKey
	}
	e.logger.Info("index opened",
		"root", root,
		"total_docs", manifest.TotalDocs,
		"built_at", manifest.BuiltAt,
	)
	return e, nil
}

func parseWeights(weights map[string]float64) ([]weightedField, error) {
	var out []weightedField
	for _, k := range field.Importance {
		w, ok := weights[k.String()]
		if ok && w != 0 {
			out = append(out, weightedField{kind: k, weight: w})
		}
	}
	for tag, w := range weights {
		if _, err := field.ParseTag(tag); err != nil {
			return nil, fmt.Errorf("importance weights: %w", err)
		}
		if !config.ValidImportanceWeight(w) {
			return nil, fmt.Errorf("importance weights: %w: %s weight %v must be 0 or a finite value >= 1", apperrors.ErrInvalidInput, tag, w)
		}
	}
	return out, nil
}

func (e *Engine) Manifest() *merger.Manifest {
	return e.manifest
}

// ResolveURL seeks to doc's line in the registry dump.
func (e *Engine) ResolveURL(doc registry.DocID) (string, bool, error) {
	return e.dump.ResolveURL(doc)
}

// LookupTerm returns term's merged block in kind. An absent term or shard
// yields an empty block and no error.
func (e *Engine) LookupTerm(ctx context.Context, term string, kind field.Kind) (segment.Block, error) {
	if err := ctx.Err(); err != nil {
		return segment.Block{}, err
	}
	r, ok := e.readers[kind][shard.Key(term)]
	if !ok {
		return segment.Block{Term: term}, nil
	}
	b, found, err := r.Lookup(term)
	if err != nil {
		return segment.Block{}, fmt.Errorf("looking up %q in %s: %w", term, kind, err)
	}
	if !found {
		return segment.Block{Term: term}, nil
	}
	return b, nil
}

// Search scores every document matching a query term and returns them
// ranked, capped at the configured maximum.
func (e *Engine) Search(ctx context.Context, query string) (*SearchResult, error) {
	plan := e.parser.Parse(query)
	result := &SearchResult{
		Query:   query,
		Terms:   plan.Terms,
		Results: []ranker.ScoredDoc{},
	}
	if len(plan.Terms) == 0 {
		return result, nil
	}

	scores := ranker.Scores{}
	for _, term := range plan.Terms {
		freq, err := e.LookupTerm(ctx, term, field.Frequency)
		if err != nil {
			return nil, err
		}
		scores.AddFrequency(freq.Entries, freq.IDF)
		for _, wf := range e.importance {
			b, err := e.LookupTerm(ctx, term, wf.kind)
			if err != nil {
				return nil, err
			}
			scores.AddImportance(b.Entries, b.IDF, wf.weight)
		}
	}

	result.TotalHits = ranker.Hits(scores)
	for _, doc := range ranker.Rank(scores, e.maxResults) {
		url, ok, err := e.ResolveURL(doc.DocID)
		if err != nil {
			e.logger.Warn("dropping result with unreadable registry line", "doc_id", int(doc.DocID), "error", err)
			continue
		}
		if !ok {
			e.logger.Warn("dropping result without registry line", "doc_id", int(doc.DocID))
			continue
		}
		doc.URL = url
		result.Results = append(result.Results, doc)
	}
	e.logger.Info("query executed",
		"query", query,
		"terms", plan.Terms,
		"stop_words_removed", plan.StopWordsRemoved,
		"hits", result.TotalHits,
		"results", len(result.Results),
	)
	return result, nil
}

func (e *Engine) Close() error {
	var errs *multierror.Error
	for _, byKey := range e.readers {
		for _, r := range byKey {
			if err := r.Close(); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
	}
	if e.dump != nil {
		if err := e.dump.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}
