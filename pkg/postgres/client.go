// Package postgres holds the lib/pq connection pool behind the document
// catalog and the bulk-load helpers it is filled with.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/logger"
)

const pingTimeout = 5 * time.Second

type Client struct {
	DB     *sql.DB
	logger *slog.Logger
}

// Open connects with cfg and pings the server before returning.
func Open(ctx context.Context, cfg config.PostgresConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres at %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &Client{
		DB:     db,
		logger: logger.WithComponent("postgres").With("database", cfg.Database),
	}, nil
}

func (c *Client) Close() error {
	return c.DB.Close()
}

// InTx runs fn inside a transaction, committing on nil and rolling back
// otherwise.
func (c *Client) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back transaction after error %v: %w", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Migrate applies idempotent DDL statements in order, in one transaction.
func (c *Client) Migrate(ctx context.Context, statements ...string) error {
	return c.InTx(ctx, func(tx *sql.Tx) error {
		for i, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("schema statement %d: %w", i, err)
			}
		}
		return nil
	})
}

// Table names a bulk-loaded table and the columns COPY fills, in row order.
type Table struct {
	Name    string
	Columns []string
}

func (t Table) copyStatement() string {
	return pq.CopyIn(t.Name, t.Columns...)
}

// Load is one table's replacement contents. Row(i) returns the values of row
// i in Table.Columns order.
type Load struct {
	Table Table
	Rows  int
	Row   func(i int) []any
}

func truncateStatement(loads []Load) string {
	names := make([]string, len(loads))
	for i, l := range loads {
		names[i] = pq.QuoteIdentifier(l.Table.Name)
	}
	return "TRUNCATE " + strings.Join(names, ", ")
}

// Replace truncates every table named in loads and refills it with COPY FROM
// STDIN. Readers see either the old contents or the new, never a mix.
func (c *Client) Replace(ctx context.Context, loads ...Load) error {
	if len(loads) == 0 {
		return nil
	}
	err := c.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, truncateStatement(loads)); err != nil {
			return fmt.Errorf("truncating: %w", err)
		}
		for _, l := range loads {
			if err := copyIn(ctx, tx, l); err != nil {
				return fmt.Errorf("copying into %s: %w", l.Table.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, l := range loads {
		c.logger.Debug("table replaced", "table", l.Table.Name, "rows", l.Rows)
	}
	return nil
}

func copyIn(ctx context.Context, tx *sql.Tx, l Load) error {
	stmt, err := tx.PrepareContext(ctx, l.Table.copyStatement())
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i := 0; i < l.Rows; i++ {
		row := l.Row(i)
		if len(row) != len(l.Table.Columns) {
			return fmt.Errorf("row %d has %d values for %d columns", i, len(row), len(l.Table.Columns))
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return err
		}
	}
	// An argument-less Exec flushes the buffered COPY data.
	if _, err := stmt.ExecContext(ctx); err != nil {
		return err
	}
	return nil
}
