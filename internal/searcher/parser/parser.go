// Package parser turns raw query text into the distinct terms to score.
package parser

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/indexer/tokenizer"
)

// StopWords are the English function words dropped from long queries.
var StopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
}

type QueryPlan struct {
	RawQuery string
	// Tokens are the lower-cased query words before stop-word removal.
	Tokens []string
	// Terms are the distinct stemmed terms in first-seen order.
	Terms            []string
	StopWordsRemoved bool
}

type Parser struct {
	tokenizer *tokenizer.Tokenizer
	threshold int
}

// New returns a Parser that removes stop words only from queries with more
// than longQueryThreshold whitespace-separated words. Punctuation inside a
// word does not add to the count, so "state-of-the-art" is one word even
// though it splits into four tokens.
func New(tok *tokenizer.Tokenizer, longQueryThreshold int) *Parser {
	if tok == nil {
		tok = tokenizer.New(nil)
	}
	return &Parser{tokenizer: tok, threshold: longQueryThreshold}
}

func (p *Parser) Parse(query string) *QueryPlan {
	plan := &QueryPlan{
		RawQuery: query,
		Tokens:   tokenizer.Split(query),
	}
	words := plan.Tokens
	if len(strings.Fields(query)) > p.threshold {
		kept := make([]string, 0, len(words))
		for _, w := range words {
			if _, stop := StopWords[w]; !stop {
				kept = append(kept, w)
			}
		}
		plan.StopWordsRemoved = len(kept) != len(words)
		words = kept
	}
	seen := make(map[string]struct{}, len(words))
	plan.Terms = make([]string, 0, len(words))
	for _, w := range words {
		term := p.tokenizer.Stem(w)
		if term == "" {
			continue
		}
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		plan.Terms = append(plan.Terms, term)
	}
	return plan
}
