package pdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func frag(text string, x0, y0, x1, y1 float64) TextFragment {
	return TextFragment{Text: text, X0: x0, Y0: y0, X1: x1, Y1: y1}
}

func TestClusterLines(t *testing.T) {
	tests := []struct {
		name  string
		frags []TextFragment
		want  []string
	}{
		{
			name:  "empty page",
			frags: nil,
			want:  []string{},
		},
		{
			name: "adjacent fragments join without space",
			frags: []TextFragment{
				frag("Lo", 10, 100, 20, 110),
				frag("t", 20, 100, 25, 110),
			},
			want: []string{"Lot"},
		},
		{
			name: "small gap inserts one space",
			frags: []TextFragment{
				frag("Lot:", 10, 100, 30, 110),
				frag("A1", 33, 100, 45, 110),
			},
			want: []string{"Lot: A1"},
		},
		{
			name: "gap below threshold is ignored",
			frags: []TextFragment{
				frag("A", 10, 100, 20, 110),
				frag("B", 21.5, 100, 30, 110),
			},
			want: []string{"AB"},
		},
		{
			name: "wide gap inserts proportional spaces",
			frags: []TextFragment{
				frag("Test", 0, 100, 40, 110),
				frag("Value", 85, 100, 120, 110),
			},
			// gap 45 -> 1 + floor(45/20) = 3 spaces
			want: []string{"Test   Value"},
		},
		{
			name: "lines sorted top to bottom and fragments left to right",
			frags: []TextFragment{
				frag("second", 50, 200, 90, 210),
				frag("first", 10, 100, 40, 110),
				frag("line", 12, 200, 40, 210),
			},
			want: []string{"first", "line second"},
		},
		{
			name: "slightly offset baselines join the same line",
			frags: []TextFragment{
				frag("Date:", 10, 100, 40, 110),
				frag("2024-01-02", 45, 101.5, 100, 111.5),
			},
			want: []string{"Date: 2024-01-02"},
		},
		{
			name: "whitespace only line is dropped",
			frags: []TextFragment{
				frag("   ", 10, 100, 20, 110),
				frag("kept", 10, 150, 30, 160),
			},
			want: []string{"kept"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClusterLines(tt.frags)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClusterLines_RunningMeanAbsorbsDrift(t *testing.T) {
	// Centers 105, 106.5, 107.5: the third is 2.5 from the first fragment but
	// within tolerance of the running mean (105.75).
	frags := []TextFragment{
		frag("a", 0, 100, 5, 110),
		frag("b", 5, 101.5, 10, 111.5),
		frag("c", 10, 102.5, 15, 112.5),
	}
	assert.Equal(t, []string{"abc"}, ClusterLines(frags))

	// A fragment well outside the tolerance opens its own line.
	frags = append(frags, frag("d", 0, 120, 5, 130))
	assert.Equal(t, []string{"abc", "d"}, ClusterLines(frags))
}

func TestClusterLines_Deterministic(t *testing.T) {
	frags := []TextFragment{
		frag("X", 40, 100, 45, 110),
		frag("Y", 10, 100, 15, 110),
		frag("Z", 10, 300, 15, 310),
		frag("W", 10, 200, 15, 210),
	}
	first := ClusterLines(frags)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ClusterLines(frags))
	}
	// input order must not matter
	reversed := []TextFragment{frags[3], frags[2], frags[1], frags[0]}
	assert.Equal(t, first, ClusterLines(reversed))
}

func TestParsedDocument_Lines(t *testing.T) {
	doc := &ParsedDocument{Pages: []ParsedPage{
		{PageNumber: 1, Lines: []string{"a", "b"}},
		{PageNumber: 2, Lines: []string{}},
		{PageNumber: 3, Lines: []string{"c"}},
	}}
	assert.Equal(t, []string{"a", "b", "c"}, doc.Lines())
}
