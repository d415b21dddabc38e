package pdf

import (
	"fmt"

	"github.com/ledongthuc/pdf"

	apperrors "github.com/a3tai/assay-sheets/internal/errors"
)

// defaultGlyphHeight is used when the engine reports a zero font size
const defaultGlyphHeight = 12.0

// Parser turns a PDF into ordered lines per page
type Parser struct {
	validator *Validator
}

// NewParser creates a parser enforcing the given maximum file size
func NewParser(maxFileSize int64) *Parser {
	return &Parser{validator: NewValidator(maxFileSize)}
}

// Parse extracts every page of the document. Any engine failure, including
// a panic inside the engine, fails the whole document; no partial output
// is returned.
func (p *Parser) Parse(path string) (doc *ParsedDocument, err error) {
	expectedPages, err := p.validator.ValidateFile(path)
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = apperrors.Parse(fmt.Errorf("%v", r), "PDF engine panic")
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, apperrors.Parse(err, "failed to open PDF")
	}
	defer func() { _ = f.Close() }()

	numPages := reader.NumPage()
	if numPages != expectedPages {
		return nil, apperrors.Parse(
			fmt.Errorf("engine reports %d pages, structure has %d", numPages, expectedPages),
			"page count mismatch")
	}

	pages := make([]ParsedPage, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		var lines []string
		if !page.V.IsNull() {
			lines = ClusterLines(pageFragments(page))
		}
		if lines == nil {
			lines = []string{}
		}
		pages = append(pages, ParsedPage{PageNumber: i, Lines: lines})
	}

	return &ParsedDocument{
		SourcePath: path,
		Pages:      pages,
		Meta: DocumentMeta{
			PageCount: len(pages),
			Engine:    EnginePositional,
		},
	}, nil
}

// pageFragments converts the engine's glyph runs into fragments. PDF space
// has Y growing upwards; the sign is flipped so that smaller Y is higher on
// the page.
func pageFragments(page pdf.Page) []TextFragment {
	content := page.Content()
	frags := make([]TextFragment, 0, len(content.Text))
	for _, t := range content.Text {
		if t.S == "" {
			continue
		}
		height := t.FontSize
		if height == 0 {
			height = defaultGlyphHeight
		}
		frags = append(frags, TextFragment{
			Text: t.S,
			X0:   t.X,
			Y0:   -(t.Y + height),
			X1:   t.X + t.W,
			Y1:   -t.Y,
		})
	}
	return frags
}
