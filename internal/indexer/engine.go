package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/indexer/merger"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/indexer/source"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/registry"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/tracing"
)

// BuildReport summarizes one full build.
type BuildReport struct {
	Documents  int
	Duplicates int
	Flushes    int
	Manifest   *merger.Manifest
	Elapsed    time.Duration
}

// Engine drives ingestion: every document is registered, tokenized and
// turned into postings before the next one starts.
type Engine struct {
	cfg       config.IndexerConfig
	layout    shard.Layout
	tokenizer *tokenizer.Tokenizer
	registry  *registry.Registry
	builder   *Builder
	merger    *merger.Merger
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewEngine(cfg config.IndexerConfig, tok *tokenizer.Tokenizer, m *metrics.Metrics) (*Engine, error) {
	if err := os.MkdirAll(cfg.IndexDir, 0755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}
	if tok == nil {
		tok = tokenizer.New(nil)
	}
	layout := shard.NewLayout(cfg.IndexDir)
	return &Engine{
		cfg:       cfg,
		layout:    layout,
		tokenizer: tok,
		registry:  registry.New(m),
		builder:   NewBuilder(layout, cfg, m),
		merger:    merger.New(layout, cfg.MergeWorkers, m),
		metrics:   m,
		logger:    slog.Default().With("component", "indexer"),
	}, nil
}

// Registry exposes the registry of the current build.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// IndexDocument registers doc and emits its postings. A duplicate url keeps
// the original id and contributes no postings.
func (e *Engine) IndexDocument(ctx context.Context, doc source.Document) (registry.DocID, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	id, dup := e.registry.Register(doc.SourceName, doc.URL)
	if dup {
		return id, true, nil
	}

	perPosting := e.builder.Mode() == config.FlushByBytes
	tokens := 0
	for _, run := range doc.Runs {
		for _, term := range e.tokenizer.Terms(run.Text) {
			tokens++
			e.builder.AddPosting(term, id)
			if perPosting {
				if err := e.builder.MaybeFlush(); err != nil {
					return id, false, err
				}
			}
			for _, tag := range run.Tags {
				if err := e.builder.AddImportancePosting(term, id, tag); err != nil {
					return id, false, fmt.Errorf("indexing %s: %w", doc.SourceName, err)
				}
				if perPosting {
					if err := e.builder.MaybeFlush(); err != nil {
						return id, false, err
					}
				}
			}
		}
	}
	if !perPosting {
		if err := e.builder.MaybeFlush(); err != nil {
			return id, false, err
		}
	}
	e.logger.Debug("document indexed",
		"doc_id", int(id),
		"source", doc.SourceName,
		"token_count", tokens,
	)
	return id, false, nil
}

// Build resets the index directory, ingests every document of src, persists
// the registry and merges all shards.
func (e *Engine) Build(ctx context.Context, src source.Source) (*BuildReport, error) {
	start := time.Now()
	ctx, span := tracing.Start(ctx, "build")
	defer func() {
		span.End()
		span.Log(e.logger)
	}()

	if err := e.layout.Reset(); err != nil {
		return nil, err
	}
	e.registry = registry.New(e.metrics)
	e.builder = NewBuilder(e.layout, e.cfg, e.metrics)

	e.logger.Info("build started", "index_dir", e.cfg.IndexDir, "flush_mode", string(e.cfg.FlushMode))
	err := phase(ctx, "ingest", func(context.Context) error {
		return src.Walk(ctx, func(doc source.Document) error {
			_, _, err := e.IndexDocument(ctx, doc)
			return err
		})
	})
	if err != nil {
		return nil, fmt.Errorf("ingesting corpus: %w", err)
	}
	if err := phase(ctx, "finalize", func(context.Context) error { return e.builder.Finalize() }); err != nil {
		return nil, fmt.Errorf("finalizing partial index: %w", err)
	}
	if err := phase(ctx, "persist", func(context.Context) error { return e.registry.Persist(e.cfg.IndexDir) }); err != nil {
		return nil, fmt.Errorf("persisting registry: %w", err)
	}
	var manifest *merger.Manifest
	err = phase(ctx, "merge", func(ctx context.Context) error {
		var err error
		manifest, err = e.merger.MergeAll(ctx, e.registry.Len())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("merging index: %w", err)
	}

	report := &BuildReport{
		Documents:  e.registry.Len(),
		Duplicates: len(e.registry.Duplicates()),
		Flushes:    e.builder.Flushes(),
		Manifest:   manifest,
		Elapsed:    time.Since(start),
	}
	span.SetAttr("documents", report.Documents)
	span.SetAttr("flushes", report.Flushes)
	e.logger.Info("build complete",
		"documents", report.Documents,
		"duplicates", report.Duplicates,
		"flushes", report.Flushes,
		"elapsed", report.Elapsed,
	)
	return report, nil
}

func phase(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := tracing.Start(ctx, name)
	defer span.End()
	err := fn(ctx)
	if err != nil {
		span.SetAttr("error", err.Error())
	}
	return err
}

// Merge re-runs the merge over an existing index directory, taking the
// document count from the persisted registry. Already merged shards are
// left untouched.
func (e *Engine) Merge(ctx context.Context) (*merger.Manifest, error) {
	dump, err := registry.OpenDump(e.cfg.IndexDir)
	if err != nil {
		return nil, err
	}
	total := dump.Count()
	dump.Close()
	return e.merger.MergeAll(ctx, total)
}
