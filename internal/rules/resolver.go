package rules

import (
	"encoding/json"
	"os"
	"path/filepath"

	apperrors "github.com/a3tai/assay-sheets/internal/errors"
)

// Resolve loads the rule set of assayKey. The index names the rule file,
// the file's own assay_key must equal assayKey, and lot_rule,
// extract_rules and excel_rules must all be present.
func Resolve(assayKey, rulesDir, indexPath string) (*RuleSet, error) {
	idx, err := LoadIndex(indexPath)
	if err != nil {
		return nil, err
	}
	return ResolveWithIndex(assayKey, rulesDir, idx)
}

// ResolveWithIndex is Resolve with an already loaded index
func ResolveWithIndex(assayKey, rulesDir string, idx *Index) (*RuleSet, error) {
	file, ok := idx.RulesetFile(assayKey)
	if !ok {
		return nil, apperrors.Config("Unknown assay_key: %s", assayKey).WithKey(assayKey)
	}

	path := filepath.Join(rulesDir, file)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, apperrors.Config("RuleSet file not found: %s", path).WithKey(assayKey)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindConfig, err, "Cannot read RuleSet file").WithKey(assayKey)
	}

	var sections map[string]json.RawMessage
	if err := json.Unmarshal(data, &sections); err != nil {
		return nil, apperrors.Wrap(apperrors.KindConfig, err, "Cannot parse RuleSet JSON").WithKey(assayKey)
	}

	var rs RuleSet
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, apperrors.Wrap(apperrors.KindConfig, err, "Cannot parse RuleSet JSON").WithKey(assayKey)
	}

	if rs.AssayKey != assayKey {
		return nil, apperrors.Config("RuleSet assay_key mismatch: %s declares %q", file, rs.AssayKey).WithKey(assayKey)
	}

	for _, req := range RequiredSections {
		if _, ok := sections[req]; !ok {
			return nil, apperrors.Config("RuleSet missing required section: %s (%s)", req, assayKey).WithKey(assayKey)
		}
	}

	rs.RulesetFile = file
	return &rs, nil
}
