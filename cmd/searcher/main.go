package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/searcher/consumer"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "index_dir", cfg.Indexer.IndexDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(prometheus.DefaultRegisterer)
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	tok := tokenizer.New(nil)
	engine, err := executor.NewReloadable(cfg.Indexer.IndexDir, cfg.Search, tok)
	if err != nil {
		slog.Error("failed to open index", "error", err)
		os.Exit(1)
	}
	defer engine.Close()
	if !engine.Ready() {
		slog.Warn("index not built yet, searches will fail until a build completes", "index_dir", cfg.Indexer.IndexDir)
	}

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	if cfg.Kafka.Enabled {
		var inv consumer.Invalidator
		if queryCache != nil {
			inv = queryCache
		}
		handle := consumer.HandleIndexComplete(engine, inv, cfg.Indexer.IndexDir)
		reloads := consumer.New(kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete, handle))
		go func() {
			if err := reloads.Start(ctx); err != nil {
				slog.Error("reload consumer error", "error", err)
			}
		}()
		slog.Info("listening for index-complete events", "topic", cfg.Kafka.Topics.IndexComplete)
	}

	checker := health.NewChecker()
	checker.Register("index", health.Ready(engine.Ready, "index not built"))
	if redisClient != nil {
		checker.Register("redis", health.Ping(redisClient.Ping, health.StatusDegraded))
	}

	h := handler.New(engine, queryCache, tok, m, cfg.Search.DefaultLimit, cfg.Search.MaxResults)
	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	chain := middleware.Chain(mux,
		middleware.RequestID,
		middleware.Timeout(cfg.Server.WriteTimeout),
		middleware.Metrics(m),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}
