// Package consumer listens for index-complete events and swaps the
// searcher onto the freshly built index.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/kafka"
)

// Reloader reopens the served index. *executor.Reloadable satisfies it.
type Reloader interface {
	Reload() error
}

// Invalidator drops cached results. *cache.QueryCache satisfies it.
type Invalidator interface {
	Invalidate(ctx context.Context) (int64, error)
}

type ReloadConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

func New(kafkaConsumer *kafka.Consumer) *ReloadConsumer {
	return &ReloadConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "reload-consumer"),
	}
}

// Start blocks until ctx is cancelled.
func (rc *ReloadConsumer) Start(ctx context.Context) error {
	rc.logger.Info("reload consumer starting")
	return rc.consumer.Start(ctx)
}

// HandleIndexComplete returns a MessageHandler that reloads the engine and
// then invalidates the cache. Events for a different index directory are
// ignored. inv may be nil.
func HandleIndexComplete(r Reloader, inv Invalidator, indexDir string) kafka.MessageHandler {
	logger := slog.Default().With("component", "reload-consumer")
	served := filepath.Clean(indexDir)
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[kafka.IndexCompleteEvent](value)
		if err != nil {
			logger.Error("failed to decode index-complete event", "error", err, "key", string(key))
			return nil
		}
		if event.IndexDir != "" && filepath.Clean(event.IndexDir) != served {
			logger.Debug("ignoring event for another index", "index_dir", event.IndexDir)
			return nil
		}
		if err := r.Reload(); err != nil {
			return fmt.Errorf("reloading index: %w", err)
		}
		var deleted int64
		if inv != nil {
			if deleted, err = inv.Invalidate(ctx); err != nil {
				logger.Error("cache invalidation after reload failed", "error", err)
			}
		}
		logger.Info("index reloaded",
			"total_docs", event.TotalDocs,
			"built_at", event.BuiltAt,
			"cache_keys_deleted", deleted,
		)
		return nil
	}
}
