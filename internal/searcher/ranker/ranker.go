// Package ranker accumulates per-document relevance scores and orders them.
package ranker

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/registry"
)

type ScoredDoc struct {
	DocID registry.DocID `json:"doc_id"`
	URL   string         `json:"url"`
	Score float64        `json:"score"`
}

// Scores is a running score per document.
type Scores map[registry.DocID]float64

// AddFrequency adds weight*idf for every posting. Frequency weights are
// already tf-transformed.
func (s Scores) AddFrequency(entries []segment.Entry, idf float64) {
	for _, e := range entries {
		s[e.DocID] += e.Weight * idf
	}
}

// AddImportance adds log10(count*weight)*idf for every posting with a
// positive raw count. A zero weight disables the field.
func (s Scores) AddImportance(entries []segment.Entry, idf, weight float64) {
	if weight == 0 {
		return
	}
	for _, e := range entries {
		if e.Weight <= 0 {
			continue
		}
		s[e.DocID] += math.Log10(e.Weight*weight) * idf
	}
}

// Rank orders documents with a non-zero score by descending score, ties by
// ascending doc id. limit <= 0 returns every document.
func Rank(scores Scores, limit int) []ScoredDoc {
	if limit > 0 && limit < len(scores) {
		return topK(scores, limit)
	}
	result := make([]ScoredDoc, 0, len(scores))
	for id, score := range scores {
		if score == 0 {
			continue
		}
		result = append(result, ScoredDoc{DocID: id, Score: score})
	}
	sort.Slice(result, func(i, j int) bool {
		return before(result[i], result[j])
	})
	return result
}

// Hits counts documents with a non-zero score.
func Hits(scores Scores) int {
	n := 0
	for _, s := range scores {
		if s != 0 {
			n++
		}
	}
	return n
}

func before(a, b ScoredDoc) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.DocID < b.DocID
}
