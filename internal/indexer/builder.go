package indexer

import (
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/field"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/registry"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/metrics"
)

// Builder accumulates postings for one flush window at a time and appends
// each window to the sharded partial files when its threshold is reached.
type Builder struct {
	layout     shard.Layout
	partial    *index.PartialIndex
	mode       config.FlushMode
	flushDocs  int
	flushBytes int64
	flushes    int
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func NewBuilder(layout shard.Layout, cfg config.IndexerConfig, m *metrics.Metrics) *Builder {
	return &Builder{
		layout:     layout,
		partial:    index.NewPartialIndex(),
		mode:       cfg.FlushMode,
		flushDocs:  cfg.FlushDocuments,
		flushBytes: cfg.FlushBytes,
		metrics:    m,
		logger:     slog.Default().With("component", "builder"),
	}
}

// AddPosting increments the frequency count of (term, doc).
func (b *Builder) AddPosting(term string, doc registry.DocID) {
	b.partial.Add(field.Frequency, term, doc)
	b.metrics.PostingAdded(field.Frequency.String())
}

// AddImportancePosting increments the count of (term, doc) in the importance
// field tag. Any kind other than the eight importance fields is rejected.
func (b *Builder) AddImportancePosting(term string, doc registry.DocID, tag field.Kind) error {
	if !tag.IsImportance() {
		return fmt.Errorf("%w: %s", apperrors.ErrUnknownTag, tag)
	}
	b.partial.Add(tag, term, doc)
	b.metrics.PostingAdded(tag.String())
	return nil
}

// Mode reports whether MaybeFlush should be called per document or per
// posting.
func (b *Builder) Mode() config.FlushMode {
	return b.mode
}

// MaybeFlush flushes when the configured threshold has been reached.
func (b *Builder) MaybeFlush() error {
	var reached bool
	switch b.mode {
	case config.FlushByBytes:
		reached = b.partial.Size() >= b.flushBytes
	default:
		reached = b.partial.DocCount() >= b.flushDocs
	}
	if !reached {
		return nil
	}
	b.logger.Info("partial index reached threshold, flushing",
		"mode", string(b.mode),
		"docs", b.partial.DocCount(),
		"size", b.partial.Size(),
	)
	return b.Flush()
}

// Finalize flushes whatever is left after ingestion ends.
func (b *Builder) Finalize() error {
	return b.Flush()
}

// Flush appends the current window to the shard files and clears it.
func (b *Builder) Flush() error {
	if b.partial.Empty() {
		return nil
	}
	for _, kind := range b.partial.Kinds() {
		if err := b.flushKind(kind); err != nil {
			b.metrics.Flushed("failed")
			return fmt.Errorf("flushing %s postings: %w", kind, err)
		}
	}
	b.flushes++
	b.metrics.Flushed("ok")
	b.logger.Debug("partial index flushed",
		"flush", b.flushes,
		"docs", b.partial.DocCount(),
		"size", b.partial.Size(),
	)
	b.partial.Reset()
	return nil
}

// Flushes is the number of windows written so far.
func (b *Builder) Flushes() int {
	return b.flushes
}

func (b *Builder) flushKind(kind field.Kind) error {
	entries := b.partial.Snapshot(kind)
	// entries are sorted by term, so shard keys arrive in runs.
	start := 0
	for start < len(entries) {
		key := shard.Key(entries[start].Term)
		end := start + 1
		for end < len(entries) && shard.Key(entries[end].Term) == key {
			end++
		}
		if err := segment.AppendPartial(b.layout.ShardPath(kind, key), entries[start:end]); err != nil {
			return err
		}
		start = end
	}
	return nil
}
