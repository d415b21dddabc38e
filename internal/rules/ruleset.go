package rules

// Default templates used when a rule file leaves them out
const (
	DefaultFilenameTemplate  = "{assay_name}.xlsx"
	DefaultSheetnameTemplate = "{lot_id}"
)

// RequiredSections must all be present in a rule file
var RequiredSections = []string{"lot_rule", "extract_rules", "excel_rules"}

// LotRule locates the lot identifier in an assay block
type LotRule struct {
	Regex string `json:"regex"`
}

// FieldRule extracts one named field
type FieldRule struct {
	Key      string `json:"key"`
	Regex    string `json:"regex"`
	Required bool   `json:"required"`
}

// ExtractRules lists the fields of an assay in output order
type ExtractRules struct {
	Fields []FieldRule `json:"fields"`
}

// ExcelRules controls workbook and sheet naming and column display names
type ExcelRules struct {
	FilenameTemplate  string            `json:"excel_filename_template"`
	SheetnameTemplate string            `json:"sheetname_template"`
	ColumnMapping     map[string]string `json:"column_mapping"`
}

// RuleSet is the loaded, validated rule file of one assay
type RuleSet struct {
	AssayKey    string       `json:"assay_key"`
	RulesetFile string       `json:"ruleset_file"`
	AssayName   string       `json:"assay_name"`
	LotRule     LotRule      `json:"lot_rule"`
	Extract     ExtractRules `json:"extract_rules"`
	Excel       ExcelRules   `json:"excel_rules"`
}

// FilenameTemplate returns the workbook template, applying the default
func (rs *RuleSet) FilenameTemplate() string {
	if rs.Excel.FilenameTemplate == "" {
		return DefaultFilenameTemplate
	}
	return rs.Excel.FilenameTemplate
}

// SheetnameTemplate returns the sheet template, applying the default
func (rs *RuleSet) SheetnameTemplate() string {
	if rs.Excel.SheetnameTemplate == "" {
		return DefaultSheetnameTemplate
	}
	return rs.Excel.SheetnameTemplate
}

// DisplayName returns the label used for workbook naming, falling back to
// the assay key
func (rs *RuleSet) DisplayName() string {
	if rs.AssayName != "" {
		return rs.AssayName
	}
	return rs.AssayKey
}
