// Package shard routes terms to per-field shard files by their first
// character and manages the on-disk directory layout of an index.
package shard

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/field"
	apperrors "github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/errors"
)

const (
	// OtherShard holds every term whose first character is not a-z.
	OtherShard   = "other"
	FileExt      = ".txt"
	ManifestFile = "manifest.json"
)

var keys = func() []string {
	k := make([]string, 0, 27)
	for c := 'a'; c <= 'z'; c++ {
		k = append(k, string(c))
	}
	return append(k, OtherShard)
}()

// Keys returns all shard keys: "a" through "z", then OtherShard.
func Keys() []string {
	out := make([]string, len(keys))
	copy(out, keys)
	return out
}

// Key returns the shard key of term.
func Key(term string) string {
	if term == "" {
		return OtherShard
	}
	c := term[0]
	if c >= 'a' && c <= 'z' {
		return string(c)
	}
	return OtherShard
}

// Layout resolves field directories and shard files under an index root.
type Layout struct {
	root string
}

func NewLayout(root string) Layout {
	return Layout{root: root}
}

func (l Layout) Root() string {
	return l.root
}

func (l Layout) FieldDir(kind field.Kind) string {
	return filepath.Join(l.root, kind.Dir())
}

// Path returns the shard file that holds term for kind.
func (l Layout) Path(kind field.Kind, term string) string {
	return l.ShardPath(kind, Key(term))
}

func (l Layout) ShardPath(kind field.Kind, key string) string {
	return filepath.Join(l.FieldDir(kind), key+FileExt)
}

func (l Layout) ManifestPath() string {
	return filepath.Join(l.root, ManifestFile)
}

// Ensure creates every field directory.
func (l Layout) Ensure() error {
	for _, k := range field.All {
		if err := os.MkdirAll(l.FieldDir(k), 0755); err != nil {
			return fmt.Errorf("creating %s directory: %w", k, err)
		}
	}
	return nil
}

// Reset deletes all shard files and the manifest, then recreates the empty
// field directories. Other files under the root are left alone.
func (l Layout) Reset() error {
	for _, p := range []string{
		filepath.Join(l.root, field.FrequencyDir),
		filepath.Join(l.root, field.ImportanceDir),
		l.ManifestPath(),
	} {
		if err := os.RemoveAll(p); err != nil {
			return fmt.Errorf("resetting index directory: %w", err)
		}
	}
	return l.Ensure()
}

// Check reports ErrIndexLayout when a field directory is missing.
func (l Layout) Check() error {
	for _, k := range field.All {
		info, err := os.Stat(l.FieldDir(k))
		if err != nil || !info.IsDir() {
			return fmt.Errorf("%w: missing %s", apperrors.ErrIndexLayout, l.FieldDir(k))
		}
	}
	return nil
}

// ShardFiles lists the existing shard files of kind in key order.
func (l Layout) ShardFiles(kind field.Kind) ([]string, error) {
	entries, err := os.ReadDir(l.FieldDir(kind))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrIndexLayout, err)
		}
		return nil, fmt.Errorf("reading %s shards: %w", kind, err)
	}
	present := make(map[string]bool, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), FileExt) {
			present[strings.TrimSuffix(e.Name(), FileExt)] = true
		}
	}
	var files []string
	for _, k := range keys {
		if present[k] {
			files = append(files, l.ShardPath(kind, k))
		}
	}
	return files, nil
}
