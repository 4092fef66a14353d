package index

import "github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/registry"

// Posting is one document's raw occurrence count for a term within a field.
type Posting struct {
	DocID registry.DocID
	Count int64
}

type PostingList []Posting

type TermEntry struct {
	Term     string
	Postings PostingList
}
