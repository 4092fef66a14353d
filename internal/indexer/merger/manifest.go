package merger

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/indexer/shard"
	apperrors "github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/errors"
)

const FormatVersion = 1

// Manifest marks an index directory as fully merged and queryable.
type Manifest struct {
	TotalDocs     int            `json:"total_docs"`
	TermsPerField map[string]int `json:"terms_per_field"`
	ShardsMerged  int            `json:"shards_merged"`
	BuiltAt       time.Time      `json:"built_at"`
	FormatVersion int            `json:"format_version"`
}

func writeManifest(layout shard.Layout, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	path := layout.ManifestPath()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming manifest: %w", err)
	}
	return nil
}

// ReadManifest loads the manifest of the index rooted at root. A missing
// manifest means the index was never successfully built.
func ReadManifest(root string) (*Manifest, error) {
	path := shard.NewLayout(root).ManifestPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: no manifest in %s", apperrors.ErrIndexNotBuilt, root)
		}
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: corrupt manifest: %v", apperrors.ErrIndexNotBuilt, err)
	}
	if m.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("%w: manifest format %d, want %d", apperrors.ErrIndexNotBuilt, m.FormatVersion, FormatVersion)
	}
	return &m, nil
}
