package pdf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/a3tai/assay-sheets/internal/errors"
)

func TestParser_Parse(t *testing.T) {
	dir := t.TempDir()
	path := writeTestPDF(t, dir, [][]textLine{
		{
			{x: 72, y: 720, text: "Anti-TPO IgG (5f03)"},
			{x: 72, y: 700, text: "Lot: L123"},
			{x: 72, y: 680, text: "Test:"},
			{x: 200, y: 680, text: "T1"},
		},
		{
			{x: 72, y: 720, text: "Date: 2024-01-02"},
		},
	})

	doc, err := NewParser(1024 * 1024).Parse(path)
	require.NoError(t, err)

	assert.Equal(t, path, doc.SourcePath)
	assert.Equal(t, 2, doc.Meta.PageCount)
	assert.Equal(t, EnginePositional, doc.Meta.Engine)
	require.Len(t, doc.Pages, 2)

	assert.Equal(t, 1, doc.Pages[0].PageNumber)
	// "Test:" ends at x=97, "T1" starts at 200: gap 103 -> 1 + 5 spaces
	assert.Equal(t, []string{"Anti-TPO IgG (5f03)", "Lot: L123", "Test:      T1"}, doc.Pages[0].Lines)
	assert.Equal(t, 2, doc.Pages[1].PageNumber)
	assert.Equal(t, []string{"Date: 2024-01-02"}, doc.Pages[1].Lines)
}

func TestParser_ParseIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	path := writeTestPDF(t, dir, [][]textLine{{
		{x: 300, y: 500, text: "right"},
		{x: 72, y: 500, text: "left"},
		{x: 72, y: 600, text: "top"},
	}})

	parser := NewParser(1024 * 1024)
	first, err := parser.Parse(path)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := parser.Parse(path)
		require.NoError(t, err)
		assert.Equal(t, first.Pages, again.Pages)
	}
}

func TestParser_ParseFailures(t *testing.T) {
	dir := t.TempDir()

	garbage := filepath.Join(dir, "garbage.pdf")
	require.NoError(t, os.WriteFile(garbage, []byte("this is not a pdf at all"), 0o644))

	empty := filepath.Join(dir, "empty.pdf")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))

	tests := []struct {
		name     string
		path     string
		maxSize  int64
		wantKind apperrors.Kind
	}{
		{name: "missing file", path: filepath.Join(dir, "missing.pdf"), maxSize: 1024, wantKind: apperrors.KindInput},
		{name: "directory", path: dir, maxSize: 1024, wantKind: apperrors.KindInput},
		{name: "empty file", path: empty, maxSize: 1024, wantKind: apperrors.KindInput},
		{name: "too large", path: garbage, maxSize: 4, wantKind: apperrors.KindInput},
		{name: "not a pdf", path: garbage, maxSize: 1024, wantKind: apperrors.KindParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := NewParser(tt.maxSize).Parse(tt.path)
			require.Error(t, err)
			assert.Nil(t, doc)
			assert.Equal(t, tt.wantKind, apperrors.KindOf(err))
		})
	}
}
