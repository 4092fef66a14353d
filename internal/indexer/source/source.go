// Package source feeds documents to the indexer. The default source walks a
// corpus directory of JSON files shaped {"url": ..., "content": "<html>"}.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/indexer/extract"
	apperrors "github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/errors"
)

// Document is one content blob ready for indexing.
type Document struct {
	SourceName string
	URL        string
	Runs       []extract.Run
}

// Source yields documents in a deterministic order. Walk stops at the first
// error returned by fn.
type Source interface {
	Walk(ctx context.Context, fn func(Document) error) error
}

// Documents is an in-memory Source.
type Documents []Document

func (d Documents) Walk(ctx context.Context, fn func(Document) error) error {
	for _, doc := range d {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return nil
}

type rawDocument struct {
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Corpus walks a directory tree of JSON documents in lexical path order.
type Corpus struct {
	root   string
	logger *slog.Logger
}

// OpenCorpus returns ErrInvalidCorpus when root is missing or not a
// directory.
func OpenCorpus(root string) (*Corpus, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidCorpus, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", apperrors.ErrInvalidCorpus, root)
	}
	return &Corpus{
		root:   root,
		logger: slog.Default().With("component", "corpus"),
	}, nil
}

// Walk decodes every *.json file under the corpus root. Files that fail to
// decode or lack a url are logged and skipped.
func (c *Corpus) Walk(ctx context.Context, fn func(Document) error) error {
	return filepath.WalkDir(c.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walking corpus: %w", err)
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".json") {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(c.root, path)
		if err != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		doc, ok := c.load(path, rel)
		if !ok {
			return nil
		}
		return fn(doc)
	})
}

func (c *Corpus) load(path, name string) (Document, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		c.logger.Warn("skipping unreadable document", "source", name, "error", err)
		return Document{}, false
	}
	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		c.logger.Warn("skipping undecodable document", "source", name, "error", err)
		return Document{}, false
	}
	if raw.URL == "" {
		c.logger.Warn("skipping document without url", "source", name)
		return Document{}, false
	}
	runs, err := extract.FromString(raw.Content)
	if err != nil {
		c.logger.Warn("skipping document with unparsable content", "source", name, "error", err)
		return Document{}, false
	}
	return Document{SourceName: name, URL: raw.URL, Runs: runs}, true
}
