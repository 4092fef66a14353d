// Package merger consolidates the unmerged flush blocks of every shard file
// into one sorted, idf-annotated block per term.
package merger

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/field"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/registry"
	apperrors "github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/metrics"
)

// ShardResult describes the outcome of merging one shard file.
type ShardResult struct {
	Kind    field.Kind
	Path    string
	Terms   int
	Skipped bool
}

type Merger struct {
	layout  shard.Layout
	workers int
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(layout shard.Layout, workers int, m *metrics.Metrics) *Merger {
	if workers <= 0 {
		workers = 1
	}
	return &Merger{
		layout:  layout,
		workers: workers,
		metrics: m,
		logger:  slog.Default().With("component", "merger"),
	}
}

// MergeAll merges every shard of every field. Shards are independent: a
// failing shard does not stop the others, and the returned error lists all
// failures. The manifest is written only when every shard merged.
func (m *Merger) MergeAll(ctx context.Context, totalDocs int) (*Manifest, error) {
	if err := m.layout.Check(); err != nil {
		return nil, err
	}

	type job struct {
		kind field.Kind
		path string
	}
	var jobs []job
	for _, k := range field.All {
		files, err := m.layout.ShardFiles(k)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			jobs = append(jobs, job{kind: k, path: f})
		}
	}

	var (
		mu      sync.Mutex
		errs    *multierror.Error
		results = make([]ShardResult, 0, len(jobs))
	)
	var g errgroup.Group
	g.SetLimit(m.workers)
	for _, j := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				mu.Lock()
				errs = multierror.Append(errs, fmt.Errorf("%s %s: %w", j.kind, j.path, err))
				mu.Unlock()
				return nil
			}
			start := time.Now()
			res, err := MergeShard(j.path, j.kind, totalDocs)
			status := "merged"
			switch {
			case err != nil:
				status = "failed"
			case res.Skipped:
				status = "skipped"
			}
			m.metrics.ShardMerged(j.kind.String(), status, time.Since(start))

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				m.logger.Error("shard merge failed", "field", j.kind.String(), "shard", j.path, "error", err)
				errs = multierror.Append(errs, fmt.Errorf("%s %s: %w", j.kind, j.path, err))
				return nil
			}
			m.logger.Debug("shard merged",
				"field", j.kind.String(),
				"shard", j.path,
				"terms", res.Terms,
				"skipped", res.Skipped,
			)
			results = append(results, res)
			return nil
		})
	}
	_ = g.Wait()

	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	manifest := &Manifest{
		TotalDocs:     totalDocs,
		TermsPerField: make(map[string]int, len(field.All)),
		ShardsMerged:  len(results),
		BuiltAt:       time.Now().UTC(),
		FormatVersion: FormatVersion,
	}
	for _, k := range field.All {
		manifest.TermsPerField[k.String()] = 0
	}
	for _, r := range results {
		manifest.TermsPerField[r.Kind.String()] += r.Terms
	}
	if err := writeManifest(m.layout, manifest); err != nil {
		return nil, err
	}
	m.logger.Info("index merged",
		"total_docs", totalDocs,
		"shards", len(results),
		"frequency_terms", manifest.TermsPerField[field.Frequency.String()],
	)
	return manifest, nil
}

// MergeShard rewrites the shard file at path as merged blocks. Raw counts
// are summed per (term, doc) across all flush blocks before kind's weight
// transform is applied. A shard that is already fully merged is left as is.
func MergeShard(path string, kind field.Kind, totalDocs int) (ShardResult, error) {
	res := ShardResult{Kind: kind, Path: path}

	f, err := os.Open(path)
	if err != nil {
		return res, fmt.Errorf("opening shard: %w", err)
	}
	acc := make(map[string]map[registry.DocID]int64)
	merged, partial := 0, 0
	s := segment.NewScanner(bufio.NewReader(f), path)
	for s.Next() {
		b := s.Block()
		if b.Merged {
			merged++
			continue
		}
		partial++
		docs, ok := acc[b.Term]
		if !ok {
			docs = make(map[registry.DocID]int64, len(b.Entries))
			acc[b.Term] = docs
		}
		for _, e := range b.Entries {
			if e.Weight != math.Trunc(e.Weight) {
				f.Close()
				return res, fmt.Errorf("%w: %s: non-integral raw count %v for term %q", apperrors.ErrMalformedShard, path, e.Weight, b.Term)
			}
			docs[e.DocID] += int64(e.Weight)
		}
	}
	f.Close()
	if err := s.Err(); err != nil {
		return res, err
	}
	if merged > 0 && partial > 0 {
		return res, fmt.Errorf("%w: %s mixes %d merged and %d unmerged blocks", apperrors.ErrMalformedShard, path, merged, partial)
	}
	if partial == 0 {
		res.Terms = merged
		res.Skipped = true
		return res, nil
	}

	blocks := buildBlocks(acc, kind, totalDocs)
	if err := segment.WriteMerged(path, blocks); err != nil {
		return res, err
	}
	res.Terms = len(blocks)
	return res, nil
}

func buildBlocks(acc map[string]map[registry.DocID]int64, kind field.Kind, totalDocs int) []segment.Block {
	terms := make([]string, 0, len(acc))
	for t := range acc {
		terms = append(terms, t)
	}
	sort.Strings(terms)

	blocks := make([]segment.Block, 0, len(terms))
	for _, t := range terms {
		docs := acc[t]
		entries := make([]segment.Entry, 0, len(docs))
		for doc, count := range docs {
			if count <= 0 {
				continue
			}
			entries = append(entries, segment.Entry{DocID: doc, Weight: kind.Transform(count)})
		}
		if len(entries) == 0 {
			continue
		}
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].DocID < entries[j].DocID
		})
		blocks = append(blocks, segment.Block{
			Term:    t,
			IDF:     field.IDF(totalDocs, len(entries)),
			Merged:  true,
			Entries: entries,
		})
	}
	return blocks
}
