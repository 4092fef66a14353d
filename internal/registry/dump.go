package registry

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/errors"
)

const (
	DocumentsFile  = "documents.tsv"
	OffsetsFile    = "documents.idx"
	DuplicatesFile = "duplicates.tsv"

	offsetWidth = 8
)

var fieldSanitizer = strings.NewReplacer("\t", " ", "\n", " ", "\r", " ")

// Persist writes the document dump, its offset table and the duplicates dump
// into dir. Line k of the document dump describes doc id k.
func (r *Registry) Persist(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating registry directory: %w", err)
	}

	var offsets []byte
	err := writeAtomic(filepath.Join(dir, DocumentsFile), func(w *bufio.Writer) error {
		offsets = make([]byte, 0, len(r.docs)*offsetWidth)
		var pos uint64
		for _, doc := range r.docs {
			offsets = binary.LittleEndian.AppendUint64(offsets, pos)
			line := fmt.Sprintf("%d\t%s\t%s\n",
				doc.ID,
				fieldSanitizer.Replace(doc.SourceName),
				fieldSanitizer.Replace(doc.CanonicalURL),
			)
			n, err := w.WriteString(line)
			if err != nil {
				return err
			}
			pos += uint64(n)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing document dump: %w", err)
	}

	err = writeAtomic(filepath.Join(dir, OffsetsFile), func(w *bufio.Writer) error {
		_, err := w.Write(offsets)
		return err
	})
	if err != nil {
		return fmt.Errorf("writing document offsets: %w", err)
	}

	err = writeAtomic(filepath.Join(dir, DuplicatesFile), func(w *bufio.Writer) error {
		for _, dup := range r.duplicates {
			if _, err := fmt.Fprintf(w, "%s\t%s\t%d\n",
				fieldSanitizer.Replace(dup.SourceName),
				fieldSanitizer.Replace(dup.CanonicalURL),
				dup.OriginalID,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing duplicates dump: %w", err)
	}

	r.logger.Info("registry persisted",
		"dir", dir,
		"documents", len(r.docs),
		"duplicates", len(r.duplicates),
	)
	return nil
}

// writeAtomic writes to a .tmp file first and renames on success. The .tmp
// file never outlives a failed write.
func writeAtomic(path string, fill func(w *bufio.Writer) error) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	defer os.Remove(tmpPath)
	defer f.Close()
	w := bufio.NewWriter(f)
	if err := fill(w); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// Dump gives O(1) access to persisted documents by id. Reads use ReadAt, so
// a Dump is safe for concurrent use.
type Dump struct {
	docs     *os.File
	offsets  *os.File
	count    int
	docsSize int64
}

// OpenDump opens the document dump written by Persist.
func OpenDump(dir string) (*Dump, error) {
	docs, err := os.Open(filepath.Join(dir, DocumentsFile))
	if err != nil {
		return nil, fmt.Errorf("%w: opening document dump: %v", apperrors.ErrIndexNotBuilt, err)
	}
	offsets, err := os.Open(filepath.Join(dir, OffsetsFile))
	if err != nil {
		docs.Close()
		return nil, fmt.Errorf("%w: opening document offsets: %v", apperrors.ErrIndexNotBuilt, err)
	}
	docsInfo, err := docs.Stat()
	if err != nil {
		docs.Close()
		offsets.Close()
		return nil, fmt.Errorf("stat document dump: %w", err)
	}
	offInfo, err := offsets.Stat()
	if err != nil {
		docs.Close()
		offsets.Close()
		return nil, fmt.Errorf("stat document offsets: %w", err)
	}
	if offInfo.Size()%offsetWidth != 0 {
		docs.Close()
		offsets.Close()
		return nil, fmt.Errorf("%w: offset table size %d is not a multiple of %d",
			apperrors.ErrIndexNotBuilt, offInfo.Size(), offsetWidth)
	}
	return &Dump{
		docs:     docs,
		offsets:  offsets,
		count:    int(offInfo.Size() / offsetWidth),
		docsSize: docsInfo.Size(),
	}, nil
}

// Count is the number of persisted documents.
func (d *Dump) Count() int {
	return d.count
}

// Document reads line id of the dump. A missing line reports false with no
// error.
func (d *Dump) Document(id DocID) (Document, bool, error) {
	if id < 0 || int(id) >= d.count {
		return Document{}, false, nil
	}
	start, err := d.offsetAt(int(id))
	if err != nil {
		return Document{}, false, err
	}
	end := d.docsSize
	if int(id)+1 < d.count {
		if end, err = d.offsetAt(int(id) + 1); err != nil {
			return Document{}, false, err
		}
	}
	if start > end || end > d.docsSize {
		return Document{}, false, fmt.Errorf("corrupt offset table at doc %d", id)
	}
	buf := make([]byte, end-start)
	if _, err := d.docs.ReadAt(buf, start); err != nil && err != io.EOF {
		return Document{}, false, fmt.Errorf("reading document %d: %w", id, err)
	}
	line, _, _ := strings.Cut(string(buf), "\n")
	parts := strings.SplitN(line, "\t", 3)
	if len(parts) != 3 {
		return Document{}, false, fmt.Errorf("document line %d has %d fields", id, len(parts))
	}
	lineID, err := strconv.Atoi(parts[0])
	if err != nil || DocID(lineID) != id {
		return Document{}, false, fmt.Errorf("document line %d carries id %q", id, parts[0])
	}
	return Document{ID: id, SourceName: parts[1], CanonicalURL: parts[2]}, true, nil
}

// ResolveURL returns the canonical url of id.
func (d *Dump) ResolveURL(id DocID) (string, bool, error) {
	doc, ok, err := d.Document(id)
	if err != nil || !ok {
		return "", ok, err
	}
	return doc.CanonicalURL, true, nil
}

func (d *Dump) offsetAt(i int) (int64, error) {
	var b [offsetWidth]byte
	if _, err := d.offsets.ReadAt(b[:], int64(i)*offsetWidth); err != nil {
		return 0, fmt.Errorf("reading offset %d: %w", i, err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

func (d *Dump) Close() error {
	err := d.docs.Close()
	if oerr := d.offsets.Close(); err == nil {
		err = oerr
	}
	return err
}
