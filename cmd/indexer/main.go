package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/indexer/source"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/registry"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	corpusDir := flag.String("corpus", "", "corpus directory (overrides indexer.corpusDir)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *corpusDir != "" {
		cfg.Indexer.CorpusDir = *corpusDir
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting indexer",
		"corpus_dir", cfg.Indexer.CorpusDir,
		"index_dir", cfg.Indexer.IndexDir,
		"flush_mode", string(cfg.Indexer.FlushMode),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(prometheus.DefaultRegisterer)
		shutdown := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdown(shutdownCtx)
		}()
	}

	if err := run(ctx, cfg, m); err != nil {
		slog.Error("indexer failed", "error", err)
		os.Exit(1)
	}
	slog.Info("indexer stopped")
}

func run(ctx context.Context, cfg *config.Config, m *metrics.Metrics) error {
	corpus, err := source.OpenCorpus(cfg.Indexer.CorpusDir)
	if err != nil {
		return err
	}
	engine, err := indexer.NewEngine(cfg.Indexer, tokenizer.New(nil), m)
	if err != nil {
		return err
	}
	report, err := engine.Build(ctx, corpus)
	if err != nil {
		return err
	}
	slog.Info("index built",
		"documents", report.Documents,
		"duplicates", report.Duplicates,
		"flushes", report.Flushes,
		"terms", report.Manifest.TermsPerField,
		"elapsed", report.Elapsed,
	)

	if cfg.Postgres.Enabled {
		if err := syncCatalog(ctx, cfg.Postgres, engine.Registry()); err != nil {
			// The on-disk index is already complete; the catalog is a mirror.
			slog.Error("catalog sync failed", "error", err)
		}
	}

	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		defer producer.Close()
		err := producer.Publish(ctx, kafka.Event{
			Key: cfg.Indexer.IndexDir,
			Value: kafka.IndexCompleteEvent{
				IndexDir:      cfg.Indexer.IndexDir,
				TotalDocs:     report.Documents,
				Duplicates:    report.Duplicates,
				TermsPerField: report.Manifest.TermsPerField,
				BuiltAt:       report.Manifest.BuiltAt,
			},
		})
		if err != nil {
			return fmt.Errorf("announcing index: %w", err)
		}
		slog.Info("index-complete event published", "topic", cfg.Kafka.Topics.IndexComplete)
	}
	return nil
}

func syncCatalog(ctx context.Context, cfg config.PostgresConfig, reg *registry.Registry) error {
	db, err := postgres.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	catalog := registry.NewCatalog(db)
	if err := catalog.EnsureSchema(ctx); err != nil {
		return err
	}
	return catalog.Sync(ctx, reg)
}
