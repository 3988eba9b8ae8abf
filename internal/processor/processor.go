package processor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/roadworks/boq-generator/internal/storage"
	"github.com/roadworks/boq-generator/internal/worksheet"
)

var (
	// ErrInputMissing means a required input workbook was not uploaded.
	ErrInputMissing = errors.New("input file missing")

	// ErrNoDataRows means the working sheet holds no chainage rows to
	// process.
	ErrNoDataRows = errors.New("no data rows in working sheet")
)

// Job carries everything one pipeline run needs: the working workbook, the
// categorized input files, and the layout of the Quantity sheet. Each job
// owns its workbook exclusively.
type Job struct {
	SessionID string
	Workbook  *worksheet.Workbook
	Inputs    map[storage.Category]string

	// Sheet is the working sheet name, normally "Quantity".
	Sheet string
	// StartRow is the first data row; everything above it is headers.
	StartRow int
	// RefColumn is scanned to find the last populated data row.
	RefColumn string
}

// LastDataRow returns the last populated row of the reference column, or
// ErrNoDataRows when the data region is empty.
func (j *Job) LastDataRow() (int, error) {
	last, err := j.Workbook.LastRowWithValue(j.Sheet, j.RefColumn, j.StartRow)
	if err != nil {
		return 0, fmt.Errorf("failed to scan reference column %s: %w", j.RefColumn, err)
	}
	if last == 0 {
		return 0, fmt.Errorf("%w: column %s from row %d", ErrNoDataRows, j.RefColumn, j.StartRow)
	}
	return last, nil
}

// InputPath returns the uploaded file path for a category.
func (j *Job) InputPath(cat storage.Category) (string, error) {
	path, ok := j.Inputs[cat]
	if !ok || path == "" {
		return "", fmt.Errorf("%w: %s", ErrInputMissing, cat)
	}
	return path, nil
}

// Processor is one step of the population pipeline. Processors mutate the
// job's working workbook and read, never write, the uploaded inputs.
type Processor interface {
	Name() string
	Process(ctx context.Context, job *Job) error
}

// parseNumber reads a spreadsheet cell value as a float. Thousands
// separators are tolerated because chainage columns are often formatted.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// setCellNumeric writes a parsed number when the text is numeric and the raw
// text otherwise, so type information survives the copy.
func setCellNumeric(sheet worksheet.Sheet, col string, row int, text string) error {
	if v, ok := parseNumber(text); ok {
		return sheet.SetCellValue(col, row, v)
	}
	return sheet.SetCellValue(col, row, text)
}
