package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/field"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/indexer/merger"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/registry"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/errors"
)

// Reloadable serves queries from the current Engine and swaps in a fresh one
// when the index is rebuilt. Until the first successful open every call
// fails with ErrIndexNotBuilt.
type Reloadable struct {
	mu     sync.RWMutex
	engine *Engine
	root   string
	cfg    config.SearchConfig
	tok    *tokenizer.Tokenizer
	logger *slog.Logger
}

// NewReloadable opens root if it holds a built index. A missing build is not
// an error here; any other failure is.
func NewReloadable(root string, cfg config.SearchConfig, tok *tokenizer.Tokenizer) (*Reloadable, error) {
	r := &Reloadable{
		root:   root,
		cfg:    cfg,
		tok:    tok,
		logger: slog.Default().With("component", "reloadable-engine"),
	}
	if err := r.Reload(); err != nil {
		if !errors.Is(err, apperrors.ErrIndexNotBuilt) {
			return nil, err
		}
		r.logger.Warn("index not built yet, serving unavailable until reload", "root", root)
	}
	return r, nil
}

// Reload opens the index again and replaces the current engine. In-flight
// queries finish on the old engine before it is closed.
func (r *Reloadable) Reload() error {
	next, err := Open(r.root, r.cfg, r.tok)
	if err != nil {
		return err
	}
	r.mu.Lock()
	prev := r.engine
	r.engine = next
	r.mu.Unlock()
	if prev != nil {
		if err := prev.Close(); err != nil {
			r.logger.Error("closing previous engine", "error", err)
		}
	}
	r.logger.Info("engine reloaded", "total_docs", next.Manifest().TotalDocs)
	return nil
}

func (r *Reloadable) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.engine != nil
}

func (r *Reloadable) Manifest() (*merger.Manifest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.engine == nil {
		return nil, r.notBuilt()
	}
	return r.engine.Manifest(), nil
}

func (r *Reloadable) Search(ctx context.Context, query string) (*SearchResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.engine == nil {
		return nil, r.notBuilt()
	}
	return r.engine.Search(ctx, query)
}

func (r *Reloadable) LookupTerm(ctx context.Context, term string, kind field.Kind) (segment.Block, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.engine == nil {
		return segment.Block{}, r.notBuilt()
	}
	return r.engine.LookupTerm(ctx, term, kind)
}

func (r *Reloadable) ResolveURL(doc registry.DocID) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.engine == nil {
		return "", false, r.notBuilt()
	}
	return r.engine.ResolveURL(doc)
}

func (r *Reloadable) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.engine == nil {
		return nil
	}
	err := r.engine.Close()
	r.engine = nil
	return err
}

func (r *Reloadable) notBuilt() error {
	return fmt.Errorf("%w: %s", apperrors.ErrIndexNotBuilt, r.root)
}
