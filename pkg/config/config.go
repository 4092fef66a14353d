// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Indexer, Search, Redis, Kafka, Postgres, etc.).
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Indexer  IndexerConfig  `yaml:"indexer"`
	Search   SearchConfig   `yaml:"search"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Postgres PostgresConfig `yaml:"postgres"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// FlushMode selects what the partial-index builder measures against its
// threshold.
type FlushMode string

const (
	FlushByDocuments FlushMode = "documents"
	FlushByBytes     FlushMode = "bytes"
)

// IndexerConfig controls where the corpus is read from, where the index is
// written, and when the in-memory partial index spills to disk.
type IndexerConfig struct {
	CorpusDir      string    `yaml:"corpusDir"`
	IndexDir       string    `yaml:"indexDir"`
	FlushMode      FlushMode `yaml:"flushMode"`
	FlushDocuments int       `yaml:"flushDocuments"`
	FlushBytes     int64     `yaml:"flushBytes"`
	MergeWorkers   int       `yaml:"mergeWorkers"`
}

// SearchConfig controls query execution and scoring.
type SearchConfig struct {
	MaxResults         int                `yaml:"maxResults"`
	DefaultLimit       int                `yaml:"defaultLimit"`
	LongQueryThreshold int                `yaml:"longQueryThreshold"`
	ImportanceWeights  map[string]float64 `yaml:"importanceWeights"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	IndexComplete string `yaml:"indexComplete"`
}

// PostgresConfig holds the connection parameters of the optional document
// catalog mirror.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided), applies environment-variable
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config with defaults suitable for local development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Indexer: IndexerConfig{
			CorpusDir:      "DEV",
			IndexDir:       "index",
			FlushMode:      FlushByDocuments,
			FlushDocuments: 10000,
			FlushBytes:     256 * 1024 * 1024,
			MergeWorkers:   4,
		},
		Search: SearchConfig{
			MaxResults:         100,
			DefaultLimit:       10,
			LongQueryThreshold: 3,
			ImportanceWeights:  DefaultImportanceWeights(),
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "tagweight-searcher",
			Topics: KafkaTopics{
				IndexComplete: "index.complete",
			},
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "tagweight",
			User:            "tagweight",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// DefaultImportanceWeights returns the per-tag weight constants applied by
// the query engine. b, i and em are disabled.
func DefaultImportanceWeights() map[string]float64 {
	return map[string]float64{
		"title":  100,
		"h1":     100,
		"h2":     50,
		"h3":     25,
		"strong": 25,
		"b":      0,
		"i":      0,
		"em":     0,
	}
}

// ValidImportanceWeight reports whether w can scale an importance score.
// Zero disables the tag; anything else must be a finite value of at least 1
// so that log10(count*w) stays non-negative.
func ValidImportanceWeight(w float64) bool {
	return w == 0 || (w >= 1 && !math.IsInf(w, 0))
}

// Validate reports configuration errors before any component starts.
func (c *Config) Validate() error {
	switch c.Indexer.FlushMode {
	case FlushByDocuments:
		if c.Indexer.FlushDocuments <= 0 {
			return fmt.Errorf("%w: indexer.flushDocuments must be positive", apperrors.ErrInvalidInput)
		}
	case FlushByBytes:
		if c.Indexer.FlushBytes <= 0 {
			return fmt.Errorf("%w: indexer.flushBytes must be positive", apperrors.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown indexer.flushMode %q", apperrors.ErrInvalidInput, c.Indexer.FlushMode)
	}
	if c.Indexer.IndexDir == "" {
		return fmt.Errorf("%w: indexer.indexDir is required", apperrors.ErrInvalidInput)
	}
	if c.Search.LongQueryThreshold < 0 {
		return fmt.Errorf("%w: search.longQueryThreshold must not be negative", apperrors.ErrInvalidInput)
	}
	if c.Search.DefaultLimit <= 0 || c.Search.MaxResults < c.Search.DefaultLimit {
		return fmt.Errorf("%w: search limits must satisfy 0 < defaultLimit <= maxResults", apperrors.ErrInvalidInput)
	}
	for tag, w := range c.Search.ImportanceWeights {
		if !ValidImportanceWeight(w) {
			return fmt.Errorf("%w: search.importanceWeights.%s must be 0 or a finite value >= 1, got %v", apperrors.ErrInvalidInput, tag, w)
		}
	}
	return nil
}

// applyEnvOverrides reads SP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SP_INDEXER_CORPUS_DIR"); v != "" {
		cfg.Indexer.CorpusDir = v
	}
	if v := os.Getenv("SP_INDEXER_INDEX_DIR"); v != "" {
		cfg.Indexer.IndexDir = v
	}
	if v := os.Getenv("SP_INDEXER_FLUSH_MODE"); v != "" {
		cfg.Indexer.FlushMode = FlushMode(v)
	}
	if v := os.Getenv("SP_INDEXER_FLUSH_DOCUMENTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Indexer.FlushDocuments = n
		}
	}
	if v := os.Getenv("SP_INDEXER_FLUSH_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Indexer.FlushBytes = n
		}
	}
	if v := os.Getenv("SP_INDEXER_MERGE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Indexer.MergeWorkers = n
		}
	}
	if v := os.Getenv("SP_REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled = parseBool(v, cfg.Redis.Enabled)
	}
	if v := os.Getenv("SP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SP_KAFKA_ENABLED"); v != "" {
		cfg.Kafka.Enabled = parseBool(v, cfg.Kafka.Enabled)
	}
	if v := os.Getenv("SP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SP_POSTGRES_ENABLED"); v != "" {
		cfg.Postgres.Enabled = parseBool(v, cfg.Postgres.Enabled)
	}
	if v := os.Getenv("SP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SP_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("SP_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("SP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("SP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("SP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("SP_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
