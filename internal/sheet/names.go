package sheet

import (
	"regexp"
	"strings"
	"unicode"

	apperrors "github.com/a3tai/assay-sheets/internal/errors"
)

const (
	// MaxSheetNameLength is the spreadsheet limit on sheet names
	MaxSheetNameLength = 31
	// FallbackSheetName is used when a lot id sanitizes to nothing
	FallbackSheetName = "LOT"
)

var leftoverPlaceholder = regexp.MustCompile(`\{[^{}]*\}`)

// SanitizeFilename keeps letters, digits, space, underscore, dash and dot,
// trims the result and turns spaces into underscores
func SanitizeFilename(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune(" _-.", r) {
			b.WriteRune(r)
		}
	}
	return strings.ReplaceAll(strings.TrimSpace(b.String()), " ", "_")
}

// SanitizeSheetName drops the characters spreadsheets reject in sheet
// names, trims whitespace and outer single quotes and truncates to
// MaxSheetNameLength runes
func SanitizeSheetName(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(`:\/?"*[]`, r) {
			continue
		}
		b.WriteRune(r)
	}
	cleaned := trimSheetName(b.String())
	if runes := []rune(cleaned); len(runes) > MaxSheetNameLength {
		cleaned = trimSheetName(string(runes[:MaxSheetNameLength]))
	}
	if cleaned == "" {
		return FallbackSheetName
	}
	return cleaned
}

// trimSheetName strips whitespace and the single quotes a sheet name may
// not start or end with
func trimSheetName(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return r == '\'' || unicode.IsSpace(r)
	})
}

// render substitutes {name} placeholders. A placeholder without a value is
// a configuration error.
func render(template string, values map[string]string) (string, error) {
	pairs := make([]string, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, "{"+k+"}", v)
	}
	out := strings.NewReplacer(pairs...).Replace(template)
	if left := leftoverPlaceholder.FindString(out); left != "" {
		return "", apperrors.Config("unknown placeholder %s in template %q", left, template)
	}
	return out, nil
}
