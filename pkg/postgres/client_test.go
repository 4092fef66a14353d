package postgres

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/config"
)

func TestCopyStatement(t *testing.T) {
	tbl := Table{Name: "documents", Columns: []string{"doc_id", "source_name", "url"}}
	assert.Equal(t, `COPY "documents" ("doc_id", "source_name", "url") FROM STDIN`, tbl.copyStatement())
}

func TestTruncateStatementQuotesEveryTable(t *testing.T) {
	stmt := truncateStatement([]Load{
		{Table: Table{Name: "documents"}},
		{Table: Table{Name: `odd"name`}},
	})
	assert.Equal(t, `TRUNCATE "documents", "odd""name"`, stmt)
}

func testClient(t *testing.T) *Client {
	t.Helper()
	port, _ := strconv.Atoi(envOrDefault("TEST_POSTGRES_PORT", "5432"))
	c, err := Open(context.Background(), config.PostgresConfig{
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
		t.Skipf("postgres unavailable: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestReplaceRollsBackOnShortRow(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	require.NoError(t, c.Migrate(ctx, `CREATE TABLE IF NOT EXISTS replace_test (id INTEGER, name TEXT)`))
	tbl := Table{Name: "replace_test", Columns: []string{"id", "name"}}

	names := []string{"a", "b", "c"}
	require.NoError(t, c.Replace(ctx, Load{Table: tbl, Rows: len(names), Row: func(i int) []any {
		return []any{i, names[i]}
	}}))

	err := c.Replace(ctx, Load{Table: tbl, Rows: 2, Row: func(i int) []any {
		if i == 1 {
			return []any{i}
		}
		return []any{i, "x"}
	}})
	require.Error(t, err)

	var n int
	require.NoError(t, c.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM replace_test`).Scan(&n))
	assert.Equal(t, 3, n, "failed replace must leave previous rows")
}
