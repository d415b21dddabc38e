// Package detect finds which indexed assays occur in a document.
package detect

import (
	"sort"
	"strings"

	apperrors "github.com/a3tai/assay-sheets/internal/errors"
	"github.com/a3tai/assay-sheets/internal/rules"
)

// AssayMatch is one assay key found in the normalized text
type AssayMatch struct {
	AssayKey string `json:"assay_key"`
	// OccurrenceIndex is always 1: only the first occurrence of a key counts
	OccurrenceIndex int `json:"occurrence_index"`
	Position        int `json:"position"`
}

// Detect loads the index at indexPath and searches normText for every key
// it lists
func Detect(normText, indexPath string) ([]AssayMatch, error) {
	idx, err := rules.LoadIndex(indexPath)
	if err != nil {
		return nil, err
	}

	keys := idx.Keys()
	if len(keys) == 0 {
		return nil, apperrors.Config("index.json contains no assay_key entries")
	}
	return DetectKeys(normText, keys), nil
}

// DetectKeys performs a case-sensitive substring search for each key. The
// result is ordered by first position in the text, ties keep key order, and
// each key appears at most once.
func DetectKeys(normText string, keys []string) []AssayMatch {
	matches := make([]AssayMatch, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		if key == "" || seen[key] {
			continue
		}
		pos := strings.Index(normText, key)
		if pos < 0 {
			continue
		}
		seen[key] = true
		matches = append(matches, AssayMatch{AssayKey: key, OccurrenceIndex: 1, Position: pos})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Position < matches[j].Position
	})
	return matches
}

// Keys returns the assay keys of matches in order
func Keys(matches []AssayMatch) []string {
	keys := make([]string, len(matches))
	for i, m := range matches {
		keys[i] = m.AssayKey
	}
	return keys
}
