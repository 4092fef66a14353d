// Package field enumerates the posting kinds stored by the index: the plain
// frequency field and the eight HTML importance fields. Each kind owns its
// own directory and its own merge-time weight transform.
package field

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/errors"
)

type Kind uint8

const (
	Frequency Kind = iota
	Title
	H1
	H2
	H3
	B
	I
	Strong
	Em
)

const (
	FrequencyDir  = "Frequency_Index"
	ImportanceDir = "Importance_Index"
)

var tagNames = [...]string{
	Frequency: "frequency",
	Title:     "title",
	H1:        "h1",
	H2:        "h2",
	H3:        "h3",
	B:         "b",
	I:         "i",
	Strong:    "strong",
	Em:        "em",
}

// All lists every kind, frequency first.
var All = []Kind{Frequency, Title, H1, H2, H3, B, I, Strong, Em}

// Importance lists the eight importance kinds in a fixed order.
var Importance = []Kind{Title, H1, H2, H3, B, I, Strong, Em}

func (k Kind) String() string {
	if int(k) < len(tagNames) {
		return tagNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

func (k Kind) IsImportance() bool {
	return k != Frequency && int(k) < len(tagNames)
}

// Dir returns the directory of this kind relative to the index root.
func (k Kind) Dir() string {
	if k == Frequency {
		return FrequencyDir
	}
	return filepath.Join(ImportanceDir, k.String())
}

// Transform maps an accumulated raw count to the weight stored in the merged
// index. Frequency weights are tf-transformed; importance weights stay raw
// until query time.
func (k Kind) Transform(rawCount int64) float64 {
	if rawCount <= 0 {
		return 0
	}
	if k == Frequency {
		return TF(rawCount)
	}
	return float64(rawCount)
}

// ParseTag resolves an importance label such as "h1" or "Strong".
func ParseTag(tag string) (Kind, error) {
	t := strings.ToLower(strings.TrimSpace(tag))
	for _, k := range Importance {
		if tagNames[k] == t {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", apperrors.ErrUnknownTag, tag)
}

// ParseKind accepts "frequency" in addition to the importance labels.
func ParseKind(name string) (Kind, error) {
	if strings.EqualFold(strings.TrimSpace(name), tagNames[Frequency]) {
		return Frequency, nil
	}
	return ParseTag(name)
}

// TF is 1 + log10(count).
func TF(count int64) float64 {
	return 1 + math.Log10(float64(count))
}

// IDF is log10((totalDocs + 1) / docFreq). A zero document frequency yields 0.
func IDF(totalDocs, docFreq int) float64 {
	if docFreq <= 0 {
		return 0
	}
	return math.Log10(float64(totalDocs+1) / float64(docFreq))
}
