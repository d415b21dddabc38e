// Package probe helps rule authors try patterns against the normalized and
// per-assay block dumps a job leaves in the jobs directory.
package probe

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// ContextLines is how many lines around a hit are shown
const ContextLines = 6

// Flags selects regex modes
type Flags int

const (
	FlagMultiline Flags = 1 << iota
	FlagDotAll

	FlagNone Flags = 0
)

// ParseFlags accepts NONE, MULTILINE, DOTALL or MULTILINE|DOTALL (any case)
func ParseFlags(s string) (Flags, error) {
	var f Flags
	for _, part := range strings.Split(strings.ToUpper(strings.TrimSpace(s)), "|") {
		switch strings.TrimSpace(part) {
		case "", "NONE":
		case "MULTILINE":
			f |= FlagMultiline
		case "DOTALL":
			f |= FlagDotAll
		default:
			return 0, fmt.Errorf("unknown regex flag %q", part)
		}
	}
	return f, nil
}

// String renders the flags the way ParseFlags accepts them
func (f Flags) String() string {
	switch {
	case f&FlagMultiline != 0 && f&FlagDotAll != 0:
		return "MULTILINE|DOTALL"
	case f&FlagMultiline != 0:
		return "MULTILINE"
	case f&FlagDotAll != 0:
		return "DOTALL"
	default:
		return "NONE"
	}
}

// Match is the first hit of a pattern
type Match struct {
	Found   bool     `json:"found"`
	Text    string   `json:"match,omitempty"`
	Groups  []string `json:"groups,omitempty"`
	Start   int      `json:"start"`
	End     int      `json:"end"`
	Line    int      `json:"line,omitempty"`
	Context string   `json:"context,omitempty"`
}

// Compile builds pattern with the inline modes for flags
func Compile(pattern string, flags Flags) (*regexp.Regexp, error) {
	prefix := ""
	if flags&FlagMultiline != 0 {
		prefix += "m"
	}
	if flags&FlagDotAll != 0 {
		prefix += "s"
	}
	if prefix != "" {
		pattern = "(?" + prefix + ")" + pattern
	}
	return regexp.Compile(pattern)
}

// Test runs pattern against text and reports the first match with its
// surrounding lines
func Test(text, pattern string, flags Flags) (*Match, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("pattern cannot be empty")
	}
	re, err := Compile(pattern, flags)
	if err != nil {
		return nil, err
	}

	loc := re.FindStringSubmatchIndex(text)
	if loc == nil {
		return &Match{}, nil
	}

	m := &Match{Found: true, Start: loc[0], End: loc[1], Text: text[loc[0]:loc[1]]}
	for g := 1; g <= re.NumSubexp(); g++ {
		if loc[2*g] < 0 {
			m.Groups = append(m.Groups, "")
			continue
		}
		m.Groups = append(m.Groups, text[loc[2*g]:loc[2*g+1]])
	}
	m.Line, m.Context = matchContext(text, loc[0], ContextLines)
	return m, nil
}

// matchContext returns the 1-based line of offset and up to n lines on
// each side, the hit line marked with ">> "
func matchContext(text string, offset, n int) (int, string) {
	lines := strings.Split(text, "\n")
	hit, pos := 0, 0
	for i, ln := range lines {
		next := pos + len(ln) + 1
		if offset >= pos && offset < next {
			hit = i
			break
		}
		pos = next
	}

	lo := hit - n
	if lo < 0 {
		lo = 0
	}
	hi := hit + n + 1
	if hi > len(lines) {
		hi = len(lines)
	}

	out := make([]string, 0, hi-lo)
	for i := lo; i < hi; i++ {
		prefix := "   "
		if i == hit {
			prefix = ">> "
		}
		out = append(out, prefix+lines[i])
	}
	return hit + 1, strings.Join(out, "\n")
}

// ListDumps returns the debug dumps in jobsDir: for jobID if set, else for
// every job. Normalized dumps come first, then block dumps, each sorted.
func ListDumps(jobsDir, jobID string) ([]string, error) {
	prefix := "*"
	if jobID != "" {
		if strings.ContainsAny(jobID, `/\*?[`) {
			return nil, fmt.Errorf("invalid job id %q", jobID)
		}
		prefix = jobID
	}

	var out []string
	for _, pattern := range []string{prefix + "_normalized.txt", prefix + "_*_block.txt"} {
		matches, err := filepath.Glob(filepath.Join(jobsDir, pattern))
		if err != nil {
			return nil, err
		}
		sort.Strings(matches)
		out = append(out, matches...)
	}
	return out, nil
}

// TestFile runs Test against a dump file
func TestFile(path, pattern string, flags Flags) (*Match, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Test(string(data), pattern, flags)
}
