package kafka

import "time"

// IndexCompleteEvent announces that a full build finished and the index
// directory holds a fresh manifest.
type IndexCompleteEvent struct {
	IndexDir      string         `json:"index_dir"`
	TotalDocs     int            `json:"total_docs"`
	Duplicates    int            `json:"duplicates"`
	TermsPerField map[string]int `json:"terms_per_field"`
	BuiltAt       time.Time      `json:"built_at"`
}
