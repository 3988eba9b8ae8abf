package formula

import (
	"fmt"

	"github.com/roadworks/boq-generator/internal/worksheet"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Extractor reads an exemplar row and generalizes its formulas into a
// reusable template. Extraction is a pure read: the worksheet is never
// modified and the result is deterministic for a given snapshot.
type Extractor struct {
	logger *zap.Logger
}

// NewExtractor creates a new extractor.
func NewExtractor(logger *zap.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract builds a template named name from the formulas found on
// templateRow in the given columns. An empty columns list scans the whole
// row across the sheet's used columns. Columns whose cell on that row holds
// no formula are left out of the template; if none of the columns hold a
// formula the extraction fails with ErrNoFormulas.
func (e *Extractor) Extract(sheet worksheet.Sheet, name string, templateRow int, columns []string) (*Template, error) {
	if templateRow < 1 {
		return nil, fmt.Errorf("%w: row %d", ErrRowNotFound, templateRow)
	}
	maxCol, maxRow, err := sheet.UsedRange()
	if err != nil {
		return nil, fmt.Errorf("failed to query used range: %w", err)
	}
	if templateRow > maxRow {
		return nil, fmt.Errorf("%w: row %d, used range ends at row %d", ErrRowNotFound, templateRow, maxRow)
	}
	if len(columns) == 0 {
		if columns, err = usedColumns(maxCol); err != nil {
			return nil, err
		}
	}

	t := &Template{
		Name:      name,
		SheetName: sheet.Name(),
		SourceRow: templateRow,
		Formulas:  make(map[string]string, len(columns)),
	}

	for _, col := range columns {
		text, err := sheet.CellFormula(col, templateRow)
		if err != nil {
			return nil, fmt.Errorf("failed to read formula at %s%d: %w", col, templateRow, err)
		}
		if text == "" {
			continue
		}
		t.Columns = append(t.Columns, col)
		t.Formulas[col] = Generalize(text, templateRow)
	}

	if t.IsEmpty() {
		return nil, fmt.Errorf("%w: sheet %q row %d", ErrNoFormulas, sheet.Name(), templateRow)
	}

	e.logger.Info("Extracted formula template",
		zap.String("template", name),
		zap.String("sheet", sheet.Name()),
		zap.Int("source_row", templateRow),
		zap.Int("formulas", len(t.Formulas)))
	return t, nil
}

// ExtractSummary builds a template from the formulas on summaryRow, the row
// directly below an exemplar data region. Generalization runs against
// summaryRow-1, so a closing range endpoint like SUM(GY7:GY5090) under data
// ending at row 5090 becomes SUM(GY7:GY{row}). An empty columns list scans
// the whole summary row across the sheet's used columns. The resulting
// template is meant for Applier.ApplySummary.
func (e *Extractor) ExtractSummary(sheet worksheet.Sheet, name string, summaryRow int, columns []string) (*Template, error) {
	if summaryRow < 2 {
		return nil, fmt.Errorf("%w: summary row %d", ErrRowNotFound, summaryRow)
	}
	maxCol, maxRow, err := sheet.UsedRange()
	if err != nil {
		return nil, fmt.Errorf("failed to query used range: %w", err)
	}
	if summaryRow > maxRow {
		return nil, fmt.Errorf("%w: row %d, used range ends at row %d", ErrRowNotFound, summaryRow, maxRow)
	}
	if len(columns) == 0 {
		if columns, err = usedColumns(maxCol); err != nil {
			return nil, err
		}
	}

	sourceRow := summaryRow - 1
	t := &Template{
		Name:      name,
		SheetName: sheet.Name(),
		SourceRow: sourceRow,
		Formulas:  make(map[string]string, len(columns)),
	}

	for _, col := range columns {
		text, err := sheet.CellFormula(col, summaryRow)
		if err != nil {
			return nil, fmt.Errorf("failed to read formula at %s%d: %w", col, summaryRow, err)
		}
		if text == "" {
			continue
		}
		t.Columns = append(t.Columns, col)
		t.Formulas[col] = Generalize(text, sourceRow)
	}

	if t.IsEmpty() {
		return nil, fmt.Errorf("%w: sheet %q row %d", ErrNoFormulas, sheet.Name(), summaryRow)
	}

	e.logger.Info("Extracted summary template",
		zap.String("template", name),
		zap.String("sheet", sheet.Name()),
		zap.Int("summary_row", summaryRow),
		zap.Int("formulas", len(t.Formulas)))
	return t, nil
}

// usedColumns lists every column letter up to maxCol.
func usedColumns(maxCol int) ([]string, error) {
	cols := make([]string, 0, maxCol)
	for i := 1; i <= maxCol; i++ {
		name, err := excelize.ColumnNumberToName(i)
		if err != nil {
			return nil, fmt.Errorf("failed to name column %d: %w", i, err)
		}
		cols = append(cols, name)
	}
	return cols, nil
}
