// Package extract turns an HTML document into plain-text runs, each tagged
// with the importance fields of the elements enclosing it.
package extract

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/field"
)

// Run is a contiguous piece of visible text. Tags lists each enclosing
// importance field once, outermost first.
type Run struct {
	Text string
	Tags []field.Kind
}

var skipped = map[string]bool{
	"#comment": true,
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

// Runs parses HTML from r.
func Runs(r io.Reader) ([]Run, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}
	var runs []Run
	walk(doc.Selection, nil, &runs)
	return runs, nil
}

// FromString parses an HTML string.
func FromString(html string) ([]Run, error) {
	return Runs(strings.NewReader(html))
}

func walk(sel *goquery.Selection, tags []field.Kind, out *[]Run) {
	sel.Contents().Each(func(_ int, c *goquery.Selection) {
		name := goquery.NodeName(c)
		if skipped[name] {
			return
		}
		if name == "#text" {
			text := c.Text()
			if strings.TrimSpace(text) == "" {
				return
			}
			*out = append(*out, Run{Text: text, Tags: tags})
			return
		}
		next := tags
		if k, err := field.ParseTag(name); err == nil && !hasKind(tags, k) {
			next = make([]field.Kind, len(tags), len(tags)+1)
			copy(next, tags)
			next = append(next, k)
		}
		walk(c, next, out)
	})
}

func hasKind(tags []field.Kind, k field.Kind) bool {
	for _, t := range tags {
		if t == k {
			return true
		}
	}
	return false
}
