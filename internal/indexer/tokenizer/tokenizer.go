// Package tokenizer splits text runs into raw word-like tokens and maps raw
// tokens to index terms through a pluggable Stemmer. Stop-word handling is
// query-side only and lives in the searcher's parser.
package tokenizer

import (
	"log/slog"
	"strings"
	"unicode"

	"github.com/reiver/go-porterstemmer"
	"golang.org/x/text/unicode/norm"
)

// Stemmer maps a raw token to its canonical term. Implementations must be
// pure and deterministic.
type Stemmer interface {
	Stem(raw string) string
}

// StemFunc adapts a plain function to Stemmer.
type StemFunc func(raw string) string

func (f StemFunc) Stem(raw string) string { return f(raw) }

// PorterStemmer is the default English normalizer.
type PorterStemmer struct{}

func (PorterStemmer) Stem(raw string) (term string) {
	lower := strings.ToLower(raw)
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("stemmer panicked, keeping raw token", "token", lower, "panic", r)
			term = lower
		}
	}()
	return porterstemmer.StemString(lower)
}

// MaxTermBytes bounds the length of a token. Longer runs are dropped both at
// index time and at query time.
const MaxTermBytes = 255

// Split lower-cases text and returns its maximal runs of letters and digits,
// skipping runs longer than MaxTermBytes.
func Split(text string) []string {
	text = strings.ToLower(norm.NFC.String(text))
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	kept := words[:0]
	for _, w := range words {
		if len(w) <= MaxTermBytes {
			kept = append(kept, w)
		}
	}
	return kept
}

type Tokenizer struct {
	stemmer Stemmer
}

func New(stemmer Stemmer) *Tokenizer {
	if stemmer == nil {
		stemmer = PorterStemmer{}
	}
	return &Tokenizer{stemmer: stemmer}
}

// Stem maps a single raw token to its term.
func (t *Tokenizer) Stem(raw string) string {
	return t.stemmer.Stem(raw)
}

// Terms splits text and stems every token, dropping empty stems.
func (t *Tokenizer) Terms(text string) []string {
	words := Split(text)
	terms := make([]string, 0, len(words))
	for _, w := range words {
		if term := t.stemmer.Stem(w); term != "" {
			terms = append(terms, term)
		}
	}
	return terms
}
