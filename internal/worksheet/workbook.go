package worksheet

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Workbook is an excelize-backed workbook owned by a single processing job.
type Workbook struct {
	f      *excelize.File
	path   string
	logger *zap.Logger
}

// Open loads a workbook from disk.
func Open(path string, logger *zap.Logger) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	return &Workbook{f: f, path: path, logger: logger}, nil
}

// NewWorkbook wraps an already-open excelize file (used by tests and the
// template extraction CLI).
func NewWorkbook(f *excelize.File, logger *zap.Logger) *Workbook {
	return &Workbook{f: f, logger: logger}
}

// File exposes the underlying excelize file for operations the Sheet
// interface does not cover (merges, styles).
func (w *Workbook) File() *excelize.File {
	return w.f
}

// Path returns the file path the workbook was opened from.
func (w *Workbook) Path() string {
	return w.path
}

// Sheet returns a handle for the named sheet.
func (w *Workbook) Sheet(name string) (Sheet, error) {
	idx, err := w.f.GetSheetIndex(name)
	if err != nil {
		return nil, err
	}
	if idx < 0 {
		return nil, fmt.Errorf("sheet %q not found", name)
	}
	return &sheetRef{f: w.f, name: name}, nil
}

// SheetNames lists the workbook's sheets in order.
func (w *Workbook) SheetNames() []string {
	return w.f.GetSheetList()
}

// Save writes the workbook back to the path it was opened from.
func (w *Workbook) Save() error {
	return w.f.Save()
}

// SaveAs writes the workbook to a new path.
func (w *Workbook) SaveAs(path string) error {
	w.path = path
	return w.f.SaveAs(path)
}

// Close releases the underlying file.
func (w *Workbook) Close() error {
	return w.f.Close()
}

// MarkFullCalcOnLoad asks the spreadsheet application to recalculate every
// formula when the file is next opened. The engine never computes formula
// results itself.
func (w *Workbook) MarkFullCalcOnLoad() error {
	// Drop cached values first: UpdateLinkedValue resets the workbook's
	// calculation properties, so it must run before the flag is set.
	if err := w.f.UpdateLinkedValue(); err != nil {
		return fmt.Errorf("failed to drop cached formula values: %w", err)
	}
	fullCalc := true
	if err := w.f.SetCalcProps(&excelize.CalcPropsOptions{FullCalcOnLoad: &fullCalc}); err != nil {
		return fmt.Errorf("failed to set recalculation flag: %w", err)
	}
	return nil
}

// CleanFromRow blanks a sheet from fromRow down while preserving its shape:
// merged ranges that begin at or below fromRow are unmerged, cell values are
// cleared, and everything above fromRow (headers, formatting) is untouched.
func (w *Workbook) CleanFromRow(sheet string, fromRow int) (int, error) {
	merges, err := w.f.GetMergeCells(sheet)
	if err != nil {
		return 0, fmt.Errorf("failed to list merged cells: %w", err)
	}
	for _, mc := range merges {
		_, startRow, err := excelize.CellNameToCoordinates(mc.GetStartAxis())
		if err != nil {
			continue
		}
		if startRow >= fromRow {
			if err := w.f.UnmergeCell(sheet, mc.GetStartAxis(), mc.GetEndAxis()); err != nil {
				return 0, fmt.Errorf("failed to unmerge %s: %w", mc.GetStartAxis(), err)
			}
		}
	}

	rows, err := w.f.GetRows(sheet)
	if err != nil {
		return 0, fmt.Errorf("failed to read rows: %w", err)
	}

	cleared := 0
	for rowIdx := fromRow; rowIdx <= len(rows); rowIdx++ {
		for colIdx := range rows[rowIdx-1] {
			if rows[rowIdx-1][colIdx] == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx)
			if err != nil {
				continue
			}
			if err := w.f.SetCellValue(sheet, cell, nil); err != nil {
				return cleared, fmt.Errorf("failed to clear %s: %w", cell, err)
			}
			cleared++
		}
	}

	if w.logger != nil {
		w.logger.Debug("Cleaned sheet region",
			zap.String("sheet", sheet),
			zap.Int("from_row", fromRow),
			zap.Int("cells_cleared", cleared))
	}
	return cleared, nil
}

// LastRowWithValue scans column for the last non-empty cell at or below
// startRow. Returns 0 when the column holds no data in that region.
func (w *Workbook) LastRowWithValue(sheet, column string, startRow int) (int, error) {
	rows, err := w.f.GetRows(sheet)
	if err != nil {
		return 0, err
	}
	colIdx, err := excelize.ColumnNameToNumber(column)
	if err != nil {
		return 0, err
	}

	last := 0
	for rowIdx := startRow; rowIdx <= len(rows); rowIdx++ {
		row := rows[rowIdx-1]
		if colIdx <= len(row) && strings.TrimSpace(row[colIdx-1]) != "" {
			last = rowIdx
		}
	}
	return last, nil
}

// sheetRef implements Sheet over an excelize file.
type sheetRef struct {
	f    *excelize.File
	name string
}

func (s *sheetRef) Name() string { return s.name }

func (s *sheetRef) CellValue(column string, row int) (string, error) {
	return s.f.GetCellValue(s.name, cellName(column, row))
}

func (s *sheetRef) CellFormula(column string, row int) (string, error) {
	return s.f.GetCellFormula(s.name, cellName(column, row))
}

func (s *sheetRef) SetCellFormula(column string, row int, formula string) error {
	return s.f.SetCellFormula(s.name, cellName(column, row), formula)
}

func (s *sheetRef) SetCellValue(column string, row int, value interface{}) error {
	return s.f.SetCellValue(s.name, cellName(column, row), value)
}

func (s *sheetRef) UsedRange() (int, int, error) {
	rows, err := s.f.GetRows(s.name)
	if err != nil {
		return 0, 0, err
	}
	maxCol := 0
	for _, row := range rows {
		if len(row) > maxCol {
			maxCol = len(row)
		}
	}
	return maxCol, len(rows), nil
}

func cellName(column string, row int) string {
	return fmt.Sprintf("%s%d", column, row)
}
