// Package normalize collapses horizontal whitespace in extracted lines.
package normalize

import (
	"regexp"
	"strings"
)

var horizontalSpace = regexp.MustCompile(`[ \t\f\v]+`)

// Lines collapses runs of spaces, tabs, form feeds and vertical tabs to a
// single space and trims each line. The output always has the same length
// and order as the input; empty lines stay as empty strings.
func Lines(lines []string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = strings.TrimSpace(horizontalSpace.ReplaceAllString(line, " "))
	}
	return out
}

// Text joins normalized lines into the document text used by detection and
// splitting.
func Text(lines []string) string {
	return strings.Join(lines, "\n")
}
