package registry

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// skipIfNoPostgres skips the test when PostgreSQL is unavailable.
func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	port, _ := strconv.Atoi(envOrDefault("TEST_POSTGRES_PORT", "5432"))
	db, err := postgres.Open(context.Background(), config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            port,
		Database:        envOrDefault("TEST_POSTGRES_DB", "tagweight_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "tagweight"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	})
	if err != nil {
		t.Skipf("skipping catalog test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestCatalogSync(t *testing.T) {
	db := skipIfNoPostgres(t)
	ctx := context.Background()

	r := New(nil)
	r.Register("a.json", "http://a.com")
	r.Register("b.json", "http://b.com")
	r.Register("c.json", "http://a.com/")

	c := NewCatalog(db)
	require.NoError(t, c.EnsureSchema(ctx))
	require.NoError(t, c.Sync(ctx, r))
	require.NoError(t, c.Sync(ctx, r))

	var docs, dups int
	require.NoError(t, db.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&docs))
	require.NoError(t, db.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM duplicate_documents`).Scan(&dups))
	assert.Equal(t, 2, docs)
	assert.Equal(t, 1, dups)

	var url string
	require.NoError(t, db.DB.QueryRowContext(ctx, `SELECT url FROM documents WHERE doc_id = 1`).Scan(&url))
	assert.Equal(t, "http://b.com", url)
}
