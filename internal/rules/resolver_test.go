package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/a3tai/assay-sheets/internal/errors"
)

const tpoRules = `{
  "assay_key": "(5f03)",
  "assay_name": "Anti-TPO IgG",
  "lot_rule": {"regex": "Lot:\\s*(\\S+)"},
  "extract_rules": {"fields": [
    {"key": "test", "regex": "Test:\\s*(\\S+)", "required": true},
    {"key": "date", "regex": "Date:\\s*(\\S+)", "required": true},
    {"key": "time", "regex": "Time:\\s*(\\S+)", "required": true},
    {"key": "expiry_raw", "regex": "Expiry:\\s*(\\S+)", "required": false}
  ]},
  "excel_rules": {
    "excel_filename_template": "{assay_name}.xlsx",
    "sheetname_template": "{lot_id}",
    "column_mapping": {"expiry_raw": "Haltbarkeit"}
  }
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	index := writeFile(t, dir, "index.json", `{"assays": [
		{"assay_key": "(5f03)", "ruleset_file": "tpo.json"},
		{"assay_key": "(6bd7)", "ruleset_file": "missing.json"},
		{"assay_key": "(aaaa)", "ruleset_file": "mismatch.json"},
		{"assay_key": "(bbbb)", "ruleset_file": "nosection.json"},
		{"assay_key": "(cccc)", "ruleset_file": "broken.json"}
	]}`)
	writeFile(t, dir, "tpo.json", tpoRules)
	writeFile(t, dir, "mismatch.json", `{"assay_key": "(zzzz)", "lot_rule": {}, "extract_rules": {}, "excel_rules": {}}`)
	writeFile(t, dir, "nosection.json", `{"assay_key": "(bbbb)", "lot_rule": {"regex": "x"}, "extract_rules": {"fields": []}}`)
	writeFile(t, dir, "broken.json", `{"assay_key": `)

	t.Run("valid rule file", func(t *testing.T) {
		rs, err := Resolve("(5f03)", dir, index)
		require.NoError(t, err)
		assert.Equal(t, "(5f03)", rs.AssayKey)
		assert.Equal(t, "tpo.json", rs.RulesetFile)
		assert.Equal(t, "Anti-TPO IgG", rs.AssayName)
		assert.Equal(t, `Lot:\s*(\S+)`, rs.LotRule.Regex)
		require.Len(t, rs.Extract.Fields, 4)
		assert.Equal(t, "expiry_raw", rs.Extract.Fields[3].Key)
		assert.False(t, rs.Extract.Fields[3].Required)
		assert.Equal(t, "Haltbarkeit", rs.Excel.ColumnMapping["expiry_raw"])
	})

	failures := []struct {
		name    string
		key     string
		message string
	}{
		{"unknown key", "(ffff)", "Unknown assay_key"},
		{"missing file", "(6bd7)", "RuleSet file not found"},
		{"key mismatch", "(aaaa)", "RuleSet assay_key mismatch"},
		{"missing section", "(bbbb)", "RuleSet missing required section: excel_rules"},
		{"malformed json", "(cccc)", "Cannot parse RuleSet JSON"},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			rs, err := Resolve(tt.key, dir, index)
			require.Error(t, err)
			assert.Nil(t, rs)
			assert.Equal(t, apperrors.KindConfig, apperrors.KindOf(err))
			assert.Equal(t, tt.key, apperrors.KeyOf(err))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestResolve_BadIndex(t *testing.T) {
	dir := t.TempDir()
	_, err := Resolve("(5f03)", dir, filepath.Join(dir, "index.json"))
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConfig, apperrors.KindOf(err))

	bad := writeFile(t, dir, "index.json", "not json")
	_, err = Resolve("(5f03)", dir, bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Cannot read index.json")
}

func TestIndex_KeysAndLookup(t *testing.T) {
	idx := &Index{Assays: []IndexEntry{
		{AssayKey: "(1111)", RulesetFile: "a.json"},
		{AssayKey: "", RulesetFile: "orphan.json"},
		{AssayKey: "(2222)"},
		{AssayKey: "(1111)", RulesetFile: "b.json"},
	}}

	assert.Equal(t, []string{"(1111)", "(2222)", "(1111)"}, idx.Keys())

	file, ok := idx.RulesetFile("(1111)")
	assert.True(t, ok)
	assert.Equal(t, "b.json", file)

	_, ok = idx.RulesetFile("(2222)")
	assert.False(t, ok)
}

func TestRuleSet_Defaults(t *testing.T) {
	rs := &RuleSet{AssayKey: "(5f03)"}
	assert.Equal(t, DefaultFilenameTemplate, rs.FilenameTemplate())
	assert.Equal(t, DefaultSheetnameTemplate, rs.SheetnameTemplate())
	assert.Equal(t, "(5f03)", rs.DisplayName())

	rs.AssayName = "Anti-TPO IgG"
	rs.Excel.SheetnameTemplate = "Lot {lot_id}"
	assert.Equal(t, "Lot {lot_id}", rs.SheetnameTemplate())
	assert.Equal(t, "Anti-TPO IgG", rs.DisplayName())
}
