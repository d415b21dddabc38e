// Package extract applies an assay's rule set to its text block.
package extract

import (
	"regexp"
	"strings"

	apperrors "github.com/a3tai/assay-sheets/internal/errors"
	"github.com/a3tai/assay-sheets/internal/rules"
)

// DedupeFields are the fields every record must carry, in dedupe key order
var DedupeFields = []string{"test", "date", "time"}

// Field is one extracted value. Present is false for an optional field
// whose pattern did not match.
type Field struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Present bool   `json:"present"`
}

// AssayRecord is one test run of one assay
type AssayRecord struct {
	AssayKey  string  `json:"assay_key"`
	LotID     string  `json:"lot_id"`
	DedupeKey string  `json:"dedupe_key"`
	Fields    []Field `json:"fields"`
}

// Value returns the value of key and whether it is present
func (r *AssayRecord) Value(key string) (string, bool) {
	for _, f := range r.Fields {
		if f.Key == key {
			return f.Value, f.Present
		}
	}
	return "", false
}

// Data returns the fields as a map; absent values are nil
func (r *AssayRecord) Data() map[string]*string {
	data := make(map[string]*string, len(r.Fields))
	for _, f := range r.Fields {
		if !f.Present {
			data[f.Key] = nil
			continue
		}
		v := f.Value
		data[f.Key] = &v
	}
	return data
}

// Record extracts the lot id and all configured fields from block
func Record(block string, rs *rules.RuleSet) (*AssayRecord, error) {
	lotID, err := lotID(block, rs.LotRule)
	if err != nil {
		return nil, keyed(err, rs.AssayKey)
	}

	fields, err := extractFields(block, rs.Extract.Fields)
	if err != nil {
		return nil, keyed(err, rs.AssayKey)
	}

	rec := &AssayRecord{AssayKey: rs.AssayKey, LotID: lotID, Fields: fields}

	parts := make([]string, len(DedupeFields))
	for i, key := range DedupeFields {
		v, err := requireValue(rec, key)
		if err != nil {
			return nil, keyed(err, rs.AssayKey)
		}
		parts[i] = v
	}
	rec.DedupeKey = strings.Join(parts, "|")
	return rec, nil
}

func lotID(block string, rule rules.LotRule) (string, error) {
	if rule.Regex == "" {
		return "", apperrors.Extract("lot_rule.regex missing")
	}
	re, err := compile(rule.Regex, "lot_rule")
	if err != nil {
		return "", err
	}
	v, ok := capture(re, block)
	if !ok {
		return "", apperrors.Extract("lot_id not found")
	}
	return v, nil
}

func extractFields(block string, fieldRules []rules.FieldRule) ([]Field, error) {
	if len(fieldRules) == 0 {
		return nil, apperrors.Extract("extract_rules.fields missing/empty")
	}

	fields := make([]Field, 0, len(fieldRules))
	pos := make(map[string]int, len(fieldRules))
	for _, r := range fieldRules {
		if r.Key == "" || r.Regex == "" {
			return nil, apperrors.Extract("field requires key+regex")
		}
		re, err := compile(r.Regex, r.Key)
		if err != nil {
			return nil, err
		}

		f := Field{Key: r.Key}
		if v, ok := capture(re, block); ok {
			f.Value, f.Present = v, true
		} else if r.Required {
			return nil, apperrors.Extract("required field not found: %s", r.Key)
		}

		// a repeated key overwrites the earlier value in place
		if i, dup := pos[r.Key]; dup {
			fields[i] = f
			continue
		}
		pos[r.Key] = len(fields)
		fields = append(fields, f)
	}
	return fields, nil
}

func requireValue(rec *AssayRecord, key string) (string, error) {
	v, ok := rec.Value(key)
	if !ok {
		return "", apperrors.Extract("required field missing: %s", key)
	}
	if v == "" {
		return "", apperrors.Extract("required field empty: %s", key)
	}
	return v, nil
}

// capture returns group 1 when the pattern has groups, else the whole match
func capture(re *regexp.Regexp, text string) (string, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	if re.NumSubexp() > 0 {
		return strings.TrimSpace(m[1]), true
	}
	return strings.TrimSpace(m[0]), true
}

func compile(pattern, name string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindConfig, err, "invalid regex for "+name)
	}
	return re, nil
}

func keyed(err error, key string) error {
	if e, ok := err.(*apperrors.Error); ok {
		return e.WithKey(key)
	}
	return err
}
