// Package sheet appends assay records to per-assay workbooks, one sheet per
// lot, skipping records whose dedupe key is already present.
package sheet

import (
	"errors"
	"os"
	"path/filepath"
	"sort"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	apperrors "github.com/a3tai/assay-sheets/internal/errors"
	"github.com/a3tai/assay-sheets/internal/extract"
	"github.com/a3tai/assay-sheets/internal/lock"
	"github.com/a3tai/assay-sheets/internal/rules"
)

// WriterLockName is the global lock file inside an output directory
const WriterLockName = ".excel_writer.lock"

// Fixed leading columns of every sheet
const (
	ColumnAssayKey  = "assay_key"
	ColumnLotID     = "lot_id"
	ColumnDedupeKey = "dedupe_key"
)

// Status is the outcome of a write
type Status string

const (
	StatusCreated  Status = "created"
	StatusAppended Status = "appended"
	StatusSkipped  Status = "skipped"
)

// WriteResult describes where a record went
type WriteResult struct {
	ExcelPath string `json:"excel_path"`
	SheetName string `json:"sheet"`
	Status    Status `json:"status"`
}

// Writer writes records into workbooks
type Writer struct {
	logger *zap.Logger
}

// NewWriter creates a writer. A nil logger disables logging.
func NewWriter(logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{logger: logger}
}

// Target resolves the workbook path and sheet name for a record without
// touching the filesystem
func Target(record *extract.AssayRecord, rs *rules.RuleSet, outputDir string) (string, string, error) {
	excelName, err := render(rs.FilenameTemplate(), map[string]string{
		"assay_key":  SanitizeFilename(rs.AssayKey),
		"assay_name": SanitizeFilename(rs.DisplayName()),
	})
	if err != nil {
		return "", "", err
	}

	sheetName, err := render(rs.SheetnameTemplate(), map[string]string{
		"lot_id": SanitizeSheetName(record.LotID),
	})
	if err != nil {
		return "", "", err
	}
	return filepath.Join(outputDir, excelName), SanitizeSheetName(sheetName), nil
}

// Write appends record to its workbook. The whole read-modify-write cycle
// runs under the output directory's global writer lock; if that lock is
// held the write fails immediately.
func (w *Writer) Write(record *extract.AssayRecord, rs *rules.RuleSet, outputDir string) (*WriteResult, error) {
	excelPath, sheetName, err := Target(record, rs, outputDir)
	if err != nil {
		return nil, withKey(err, record.AssayKey)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, apperrors.Wrap(apperrors.KindWrite, err, "failed to create output directory").WithKey(record.AssayKey)
	}

	l, err := lock.Acquire(filepath.Join(outputDir, WriterLockName))
	if err != nil {
		if errors.Is(err, lock.ErrHeld) {
			return nil, apperrors.New(apperrors.KindLock, "excel_writer_lock_exists").WithKey(record.AssayKey)
		}
		return nil, apperrors.Wrap(apperrors.KindWrite, err, "failed to acquire writer lock").WithKey(record.AssayKey)
	}
	defer func() {
		if err := l.Release(); err != nil {
			w.logger.Warn("Failed to release writer lock", zap.String("path", l.Path()), zap.Error(err))
		}
	}()

	status, err := w.writeWithDedupe(excelPath, sheetName, record, rs.Excel.ColumnMapping)
	if err != nil {
		return nil, withKey(err, record.AssayKey)
	}

	w.logger.Info("Record written",
		zap.String("assay_key", record.AssayKey),
		zap.String("excel_path", excelPath),
		zap.String("sheet", sheetName),
		zap.String("dedupe_key", record.DedupeKey),
		zap.String("status", string(status)))

	return &WriteResult{ExcelPath: excelPath, SheetName: sheetName, Status: status}, nil
}

func (w *Writer) writeWithDedupe(excelPath, sheetName string, record *extract.AssayRecord, mapping map[string]string) (Status, error) {
	f, base, err := openOrCreate(excelPath, sheetName)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindWrite, err, "failed to read sheet "+sheetName)
	}

	headers, err := ensureHeaders(f, sheetName, rows, record, mapping)
	if err != nil {
		return "", err
	}

	if hasDedupeKey(rows, headers, record.DedupeKey) {
		if err := f.SaveAs(excelPath); err != nil {
			return "", apperrors.Wrap(apperrors.KindWrite, err, "failed to save workbook")
		}
		return StatusSkipped, nil
	}

	reverse := reverseMapping(mapping)
	data := record.Data()
	rowNum := len(rows) + 1
	if len(rows) == 0 {
		rowNum = 2
	}
	for i, h := range headers {
		if h == "" {
			continue
		}
		var value *string
		switch h {
		case ColumnAssayKey:
			value = &record.AssayKey
		case ColumnLotID:
			value = &record.LotID
		case ColumnDedupeKey:
			value = &record.DedupeKey
		default:
			key := h
			if internal, ok := reverse[h]; ok {
				key = internal
			}
			value = data[key]
		}
		if value == nil {
			continue
		}
		if err := setCell(f, sheetName, i+1, rowNum, *value); err != nil {
			return "", err
		}
	}

	if err := f.SaveAs(excelPath); err != nil {
		return "", apperrors.Wrap(apperrors.KindWrite, err, "failed to save workbook")
	}
	return base, nil
}

// openOrCreate opens an existing workbook (appended) or starts a new one
// (created), and makes sure sheetName exists
func openOrCreate(path, sheetName string) (*excelize.File, Status, error) {
	var (
		f    *excelize.File
		base Status
	)
	if _, err := os.Stat(path); err == nil {
		f, err = excelize.OpenFile(path)
		if err != nil {
			return nil, "", apperrors.Wrap(apperrors.KindWrite, err, "failed to open workbook")
		}
		base = StatusAppended
	} else {
		f = excelize.NewFile()
		base = StatusCreated
	}

	idx, err := f.GetSheetIndex(sheetName)
	if err != nil {
		_ = f.Close()
		return nil, "", apperrors.Wrap(apperrors.KindWrite, err, "invalid sheet name "+sheetName)
	}
	if idx == -1 {
		if idx, err = f.NewSheet(sheetName); err != nil {
			_ = f.Close()
			return nil, "", apperrors.Wrap(apperrors.KindWrite, err, "failed to create sheet "+sheetName)
		}
	}

	if base == StatusCreated {
		// drop the default sheet of a fresh workbook
		if def := f.GetSheetName(0); def != sheetName && len(f.GetSheetList()) > 1 {
			if err := f.DeleteSheet(def); err != nil {
				_ = f.Close()
				return nil, "", apperrors.Wrap(apperrors.KindWrite, err, "failed to remove default sheet")
			}
		}
		if idx, err = f.GetSheetIndex(sheetName); err == nil {
			f.SetActiveSheet(idx)
		}
	}
	return f, base, nil
}

// ensureHeaders writes or extends the header row and returns it indexed by
// column. Existing columns keep their position, blank ones included;
// missing names are appended after the last used column.
func ensureHeaders(f *excelize.File, sheet string, rows [][]string, record *extract.AssayRecord, mapping map[string]string) ([]string, error) {
	desired := []string{ColumnAssayKey, ColumnLotID, ColumnDedupeKey}
	for _, field := range record.Fields {
		name := field.Key
		if display, ok := mapping[field.Key]; ok {
			name = display
		}
		desired = append(desired, name)
	}

	// header positions are the real column numbers, blank cells included
	var existing []string
	if len(rows) > 0 {
		existing = append(existing, rows[0]...)
	}

	have := make(map[string]bool, len(existing))
	for _, h := range existing {
		if h != "" {
			have[h] = true
		}
	}

	if len(have) == 0 {
		for i, h := range desired {
			if err := setCell(f, sheet, i+1, 1, h); err != nil {
				return nil, err
			}
		}
		return desired, nil
	}

	for _, h := range desired {
		if have[h] {
			continue
		}
		have[h] = true
		existing = append(existing, h)
		if err := setCell(f, sheet, len(existing), 1, h); err != nil {
			return nil, err
		}
	}
	return existing, nil
}

func hasDedupeKey(rows [][]string, headers []string, key string) bool {
	col := -1
	for i, h := range headers {
		if h == ColumnDedupeKey {
			col = i
			break
		}
	}
	if col < 0 || len(rows) < 2 {
		return false
	}
	for _, row := range rows[1:] {
		if col < len(row) && row[col] != "" && row[col] == key {
			return true
		}
	}
	return false
}

// reverseMapping maps display names back to field keys. Keys are visited
// in sorted order so a display name claimed twice resolves the same way
// every run.
func reverseMapping(mapping map[string]string) map[string]string {
	keys := make([]string, 0, len(mapping))
	for k := range mapping {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	reverse := make(map[string]string, len(mapping))
	for _, k := range keys {
		reverse[mapping[k]] = k
	}
	return reverse
}

func setCell(f *excelize.File, sheet string, col, row int, value string) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return apperrors.Wrap(apperrors.KindWrite, err, "invalid cell")
	}
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		return apperrors.Wrap(apperrors.KindWrite, err, "failed to set cell "+cell)
	}
	return nil
}

func withKey(err error, key string) error {
	var e *apperrors.Error
	if errors.As(err, &e) && e.Key == "" {
		e.Key = key
	}
	return err
}
