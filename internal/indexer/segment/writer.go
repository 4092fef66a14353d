// Package segment encodes and decodes shard files. A shard file is a plain
// text sequence of blocks:
//
//	term = <term>
//	idf = <float>          (merged blocks only)
//	(<doc_id>,<weight>)
//	...
//	<blank line>
//
// Flushes append unmerged blocks with raw integer counts. The merger
// rewrites a shard as sorted merged blocks carrying idf.
package segment

import (
	"bufio"
	"fmt"
	"os"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/registry"
	apperrors "github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/errors"
)

const (
	termPrefix = "term = "
	idfPrefix  = "idf = "
)

type Entry struct {
	DocID  registry.DocID
	Weight float64
}

// Block is one term's postings within a shard file. Merged is set when the
// block carried an idf line.
type Block struct {
	Term    string
	IDF     float64
	Merged  bool
	Entries []Entry
}

// MaxTermBytes is the longest term the shard files accept.
const MaxTermBytes = 4096

func checkTerm(term string) error {
	if len(term) > MaxTermBytes {
		return fmt.Errorf("%w: term of %d bytes exceeds %d", apperrors.ErrInvalidInput, len(term), MaxTermBytes)
	}
	return nil
}

// FormatFloat renders weights and idf values. Integral values print without
// a fractional part.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// AppendPartial appends one unmerged block per entry to the shard at path,
// creating the file if needed.
func AppendPartial(path string, entries []index.TermEntry) error {
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if err := checkTerm(e.Term); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening shard for append: %w", err)
	}
	w := bufio.NewWriter(f)
	var buf []byte
	for _, e := range entries {
		buf = buf[:0]
		buf = append(buf, termPrefix...)
		buf = append(buf, e.Term...)
		buf = append(buf, '\n')
		for _, p := range e.Postings {
			buf = append(buf, '(')
			buf = strconv.AppendInt(buf, int64(p.DocID), 10)
			buf = append(buf, ',')
			buf = strconv.AppendInt(buf, p.Count, 10)
			buf = append(buf, ")\n"...)
		}
		buf = append(buf, '\n')
		if _, err := w.Write(buf); err != nil {
			f.Close()
			return fmt.Errorf("writing block for term %q: %w", e.Term, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flushing shard %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing shard %s: %w", path, err)
	}
	return f.Close()
}

// WriteMerged atomically replaces the shard at path with blocks. It writes
// to a .tmp file first and renames on success.
func WriteMerged(path string, blocks []Block) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp shard file: %w", err)
	}
	defer os.Remove(tmpPath)

	w := bufio.NewWriter(f)
	for _, b := range blocks {
		if err := writeBlock(w, b); err != nil {
			f.Close()
			return fmt.Errorf("writing block for term %q: %w", b.Term, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flushing merged shard: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing merged shard: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing merged shard: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming merged shard: %w", err)
	}
	return nil
}

func writeBlock(w *bufio.Writer, b Block) error {
	if err := checkTerm(b.Term); err != nil {
		return err
	}
	buf := make([]byte, 0, 32+len(b.Term)+len(b.Entries)*16)
	buf = append(buf, termPrefix...)
	buf = append(buf, b.Term...)
	buf = append(buf, '\n')
	if b.Merged {
		buf = append(buf, idfPrefix...)
		buf = strconv.AppendFloat(buf, b.IDF, 'f', -1, 64)
		buf = append(buf, '\n')
	}
	for _, e := range b.Entries {
		buf = append(buf, '(')
		buf = strconv.AppendInt(buf, int64(e.DocID), 10)
		buf = append(buf, ',')
		buf = strconv.AppendFloat(buf, e.Weight, 'f', -1, 64)
		buf = append(buf, ")\n"...)
	}
	buf = append(buf, '\n')
	_, err := w.Write(buf)
	return err
}
