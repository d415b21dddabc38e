package rules

import (
	"encoding/json"
	"os"

	apperrors "github.com/a3tai/assay-sheets/internal/errors"
)

// IndexEntry pairs an assay key with the rule file describing it
type IndexEntry struct {
	AssayKey    string `json:"assay_key"`
	RulesetFile string `json:"ruleset_file"`
}

// Index is the parsed rules/index.json
type Index struct {
	Assays []IndexEntry `json:"assays"`
}

// LoadIndex reads and parses an index file
func LoadIndex(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindConfig, err, "Cannot read index.json")
	}

	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, apperrors.Wrap(apperrors.KindConfig, err, "Cannot read index.json")
	}
	return &idx, nil
}

// Keys returns the non-empty assay keys in index order
func (idx *Index) Keys() []string {
	keys := make([]string, 0, len(idx.Assays))
	for _, a := range idx.Assays {
		if a.AssayKey != "" {
			keys = append(keys, a.AssayKey)
		}
	}
	return keys
}

// RulesetFile returns the rule file for key. Entries missing either field
// are ignored; for duplicate keys the last entry wins.
func (idx *Index) RulesetFile(key string) (string, bool) {
	file, found := "", false
	for _, a := range idx.Assays {
		if a.AssayKey == "" || a.RulesetFile == "" {
			continue
		}
		if a.AssayKey == key {
			file, found = a.RulesetFile, true
		}
	}
	return file, found
}
