package pdf

// Layout constants for turning positioned fragments into reading-order lines.
const (
	// LineYTolerance is the maximum distance between a fragment's vertical
	// center and a line's running mean center for the fragment to join it.
	LineYTolerance = 2.0
	// MinXGapForSpace is the horizontal gap above which a space is inserted.
	MinXGapForSpace = 1.5
	// MultiSpaceGapStep adds one extra space per step of horizontal gap.
	MultiSpaceGapStep = 20.0
	// MinPrintableChars is the minimum trimmed length for a line to be kept.
	MinPrintableChars = 1
)

// DefaultMaxFileSize caps the size of an input PDF
const DefaultMaxFileSize int64 = 100 * 1024 * 1024 // 100MB

// EnginePositional identifies the extraction engine in document metadata
const EnginePositional = "ledongthuc_positional"

// TextFragment is one positioned glyph run on a page. Coordinates are in
// page units with Y growing downwards, so Y0 is the top edge.
type TextFragment struct {
	Text string  `json:"text"`
	X0   float64 `json:"x0"`
	Y0   float64 `json:"y0"`
	X1   float64 `json:"x1"`
	Y1   float64 `json:"y1"`
}

// YCenter returns the vertical center of the fragment
func (f TextFragment) YCenter() float64 {
	return (f.Y0 + f.Y1) / 2.0
}

// ParsedPage holds the ordered lines of one page
type ParsedPage struct {
	PageNumber int      `json:"page_number"`
	Lines      []string `json:"lines"`
}

// DocumentMeta describes how a document was parsed
type DocumentMeta struct {
	PageCount int    `json:"page_count"`
	Engine    string `json:"engine"`
}

// ParsedDocument is the extractor's only output
type ParsedDocument struct {
	SourcePath string       `json:"source_path"`
	Pages      []ParsedPage `json:"pages"`
	Meta       DocumentMeta `json:"meta"`
}

// Lines returns all lines of the document in page order
func (d *ParsedDocument) Lines() []string {
	var out []string
	for _, p := range d.Pages {
		out = append(out, p.Lines...)
	}
	return out
}
