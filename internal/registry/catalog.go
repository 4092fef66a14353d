package registry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/postgres"
)

var catalogSchema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
    doc_id      INTEGER PRIMARY KEY,
    source_name TEXT NOT NULL,
    url         TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS duplicate_documents (
    source_name TEXT NOT NULL,
    url         TEXT NOT NULL,
    original_id INTEGER NOT NULL
)`,
}

var (
	documentsTable  = postgres.Table{Name: "documents", Columns: []string{"doc_id", "source_name", "url"}}
	duplicatesTable = postgres.Table{Name: "duplicate_documents", Columns: []string{"source_name", "url", "original_id"}}
)

// Catalog mirrors a finished registry into PostgreSQL so presentation layers
// can page through documents without reading the dump files. The dump remains
// the source of truth for the query engine.
type Catalog struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewCatalog(db *postgres.Client) *Catalog {
	return &Catalog{
		db:     db,
		logger: logger.WithComponent("registry-catalog"),
	}
}

func (c *Catalog) EnsureSchema(ctx context.Context) error {
	if err := c.db.Migrate(ctx, catalogSchema...); err != nil {
		return fmt.Errorf("creating catalog schema: %w", err)
	}
	return nil
}

// Sync replaces the catalog contents with the registry's documents and
// duplicates in a single transaction.
func (c *Catalog) Sync(ctx context.Context, r *Registry) error {
	docs := r.Documents()
	dups := r.Duplicates()
	err := c.db.Replace(ctx,
		postgres.Load{Table: documentsTable, Rows: len(docs), Row: func(i int) []any {
			return []any{int(docs[i].ID), docs[i].SourceName, docs[i].CanonicalURL}
		}},
		postgres.Load{Table: duplicatesTable, Rows: len(dups), Row: func(i int) []any {
			return []any{dups[i].SourceName, dups[i].CanonicalURL, int(dups[i].OriginalID)}
		}},
	)
	if err != nil {
		return fmt.Errorf("syncing catalog: %w", err)
	}
	c.logger.Info("catalog synced",
		"documents", len(docs),
		"duplicates", len(dups),
	)
	return nil
}
