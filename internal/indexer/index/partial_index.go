package index

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/field"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/registry"
)

const (
	termOverhead    = 48
	postingOverhead = 16
)

// PartialIndex accumulates raw counts for one flush window. It is owned by a
// single builder and is not safe for concurrent use.
type PartialIndex struct {
	fields map[field.Kind]map[string]map[registry.DocID]int64
	docs   map[registry.DocID]struct{}
	size   int64
}

func NewPartialIndex() *PartialIndex {
	p := &PartialIndex{}
	p.Reset()
	return p
}

// Add increments the count of (term, doc) in kind.
func (p *PartialIndex) Add(kind field.Kind, term string, doc registry.DocID) {
	terms, ok := p.fields[kind]
	if !ok {
		terms = make(map[string]map[registry.DocID]int64)
		p.fields[kind] = terms
	}
	docs, ok := terms[term]
	if !ok {
		docs = make(map[registry.DocID]int64)
		terms[term] = docs
		p.size += int64(len(term)) + termOverhead
	}
	if _, seen := docs[doc]; !seen {
		p.size += postingOverhead
	}
	docs[doc]++
	p.docs[doc] = struct{}{}
}

// Size is an estimate of the in-memory footprint in bytes.
func (p *PartialIndex) Size() int64 {
	return p.size
}

// DocCount is the number of distinct documents seen in this window.
func (p *PartialIndex) DocCount() int {
	return len(p.docs)
}

func (p *PartialIndex) Empty() bool {
	return len(p.fields) == 0
}

// Kinds returns the fields holding postings, in field.All order.
func (p *PartialIndex) Kinds() []field.Kind {
	kinds := make([]field.Kind, 0, len(p.fields))
	for _, k := range field.All {
		if len(p.fields[k]) > 0 {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// Snapshot returns the postings of kind with terms sorted and postings
// ordered by ascending doc id.
func (p *PartialIndex) Snapshot(kind field.Kind) []TermEntry {
	terms := p.fields[kind]
	entries := make([]TermEntry, 0, len(terms))
	for term, docs := range terms {
		postings := make(PostingList, 0, len(docs))
		for doc, count := range docs {
			postings = append(postings, Posting{DocID: doc, Count: count})
		}
		sort.Slice(postings, func(i, j int) bool {
			return postings[i].DocID < postings[j].DocID
		})
		entries = append(entries, TermEntry{Term: term, Postings: postings})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	return entries
}

func (p *PartialIndex) Reset() {
	p.fields = make(map[field.Kind]map[string]map[registry.DocID]int64)
	p.docs = make(map[registry.DocID]struct{})
	p.size = 0
}
