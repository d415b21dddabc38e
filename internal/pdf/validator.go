package pdf

import (
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	apperrors "github.com/a3tai/assay-sheets/internal/errors"
)

// Validator checks that a file is a structurally readable PDF before the
// positional extraction runs
type Validator struct {
	maxFileSize int64
}

// NewValidator creates a new PDF validator with the specified constraints
func NewValidator(maxFileSize int64) *Validator {
	return &Validator{
		maxFileSize: maxFileSize,
	}
}

// ValidateFile checks size limits and reads the document structure with
// pdfcpu. It returns the page count pdfcpu reports.
func (v *Validator) ValidateFile(filePath string) (int, error) {
	if filePath == "" {
		return 0, apperrors.New(apperrors.KindInput, "path cannot be empty")
	}

	fileInfo, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return 0, apperrors.Newf(apperrors.KindInput, "file does not exist: %s", filePath)
	}
	if err != nil {
		return 0, apperrors.Wrap(apperrors.KindInput, err, "cannot access file")
	}

	if err := v.ValidateFileInfo(filePath, fileInfo); err != nil {
		return 0, err
	}

	f, err := os.Open(filePath)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.KindInput, err, "cannot open file")
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(f, conf)
	if err != nil {
		return 0, apperrors.Parse(err, "invalid PDF file")
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return 0, apperrors.Parse(err, "failed to read page tree")
	}

	return ctx.PageCount, nil
}

// ValidateFileInfo performs the checks that do not need to open the file
func (v *Validator) ValidateFileInfo(filePath string, fileInfo os.FileInfo) error {
	if fileInfo.IsDir() {
		return apperrors.Newf(apperrors.KindInput, "path is a directory, not a file: %s", filePath)
	}

	if fileInfo.Size() == 0 {
		return apperrors.Newf(apperrors.KindInput, "file is empty: %s", filePath)
	}

	if v.maxFileSize > 0 && fileInfo.Size() > v.maxFileSize {
		return apperrors.New(apperrors.KindInput,
			fmt.Sprintf("file too large: %d bytes (max: %d bytes)", fileInfo.Size(), v.maxFileSize))
	}

	return nil
}
