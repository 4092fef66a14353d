package segment

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/registry"
	apperrors "github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/errors"
)

// maxLineSize fits a term line at MaxTermBytes; posting and idf lines are
// far shorter.
const maxLineSize = 2 * MaxTermBytes

// Scanner reads blocks from a shard file one at a time. Any deviation from
// the block grammar stops the scan with an error wrapping ErrMalformedShard.
type Scanner struct {
	sc    *bufio.Scanner
	name  string
	line  int
	block Block
	err   error
}

// NewScanner reads blocks from r. name is used in error messages.
func NewScanner(r io.Reader, name string) *Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Scanner{sc: sc, name: name}
}

// Next advances to the next block. It returns false at EOF or on error.
func (s *Scanner) Next() bool {
	if s.err != nil {
		return false
	}
	inBlock := false
	for s.sc.Scan() {
		s.line++
		text := strings.TrimSuffix(s.sc.Text(), "\r")
		if !inBlock {
			if text == "" {
				continue
			}
			term, ok := strings.CutPrefix(text, termPrefix)
			if !ok {
				return s.fail("expected term header, got %q", text)
			}
			if term == "" {
				return s.fail("empty term")
			}
			s.block = Block{Term: term}
			inBlock = true
			continue
		}
		switch {
		case text == "":
			return true
		case strings.HasPrefix(text, idfPrefix):
			if s.block.Merged {
				return s.fail("duplicate idf line for term %q", s.block.Term)
			}
			if len(s.block.Entries) > 0 {
				return s.fail("idf line after postings for term %q", s.block.Term)
			}
			v, err := strconv.ParseFloat(text[len(idfPrefix):], 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				return s.fail("bad idf %q", text)
			}
			s.block.IDF = v
			s.block.Merged = true
		case strings.HasPrefix(text, termPrefix):
			return s.fail("block for term %q not terminated by a blank line", s.block.Term)
		default:
			e, err := parseEntry(text)
			if err != nil {
				return s.fail("%v", err)
			}
			s.block.Entries = append(s.block.Entries, e)
		}
	}
	if err := s.sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return s.fail("line longer than %d bytes", maxLineSize)
		}
		s.err = fmt.Errorf("reading %s: %w", s.name, err)
		return false
	}
	return inBlock
}

func (s *Scanner) Block() Block {
	return s.block
}

func (s *Scanner) Err() error {
	return s.err
}

func (s *Scanner) fail(format string, args ...any) bool {
	s.err = fmt.Errorf("%w: %s line %d: %s", apperrors.ErrMalformedShard, s.name, s.line, fmt.Sprintf(format, args...))
	return false
}

func parseEntry(text string) (Entry, error) {
	inner, ok := strings.CutPrefix(text, "(")
	if ok {
		inner, ok = strings.CutSuffix(inner, ")")
	}
	if !ok {
		return Entry{}, fmt.Errorf("bad posting line %q", text)
	}
	docText, weightText, ok := strings.Cut(inner, ",")
	if !ok {
		return Entry{}, fmt.Errorf("bad posting line %q", text)
	}
	doc, err := strconv.Atoi(docText)
	if err != nil || doc < 0 {
		return Entry{}, fmt.Errorf("bad doc id in %q", text)
	}
	w, err := strconv.ParseFloat(weightText, 64)
	if err != nil || w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
		return Entry{}, fmt.Errorf("bad weight in %q", text)
	}
	return Entry{DocID: registry.DocID(doc), Weight: w}, nil
}

// Reader serves term lookups against one merged shard file. Lookups are
// serialized because each scan repositions the shared file cursor.
type Reader struct {
	mu       sync.Mutex
	file     *os.File
	filePath string
}

func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening shard file: %w", err)
	}
	return &Reader{file: f, filePath: path}, nil
}

// Lookup scans for term's block. Blocks are sorted, so the scan stops once
// it passes the position term would occupy.
func (r *Reader) Lookup(term string) (Block, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.file.Seek(0, io.SeekStart); err != nil {
		return Block{}, false, fmt.Errorf("rewinding %s: %w", r.filePath, err)
	}
	s := NewScanner(bufio.NewReader(r.file), r.filePath)
	for s.Next() {
		b := s.Block()
		if b.Term == term {
			return b, true, nil
		}
		if b.Term > term {
			break
		}
	}
	return Block{}, false, s.Err()
}

func (r *Reader) Path() string {
	return r.filePath
}

func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}
