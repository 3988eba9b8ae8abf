package formula

import (
	"fmt"

	"github.com/roadworks/boq-generator/internal/worksheet"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// RowRange is a contiguous, 1-indexed target region for template application.
type RowRange struct {
	Sheet string `json:"sheet,omitempty"`
	First int    `json:"first_row"`
	Last  int    `json:"last_row"`
}

// Outcome classifies the result of writing one cell.
type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// CellResult is the per-cell outcome of an application.
type CellResult struct {
	Column  string  `json:"column"`
	Row     int     `json:"row"`
	Outcome Outcome `json:"outcome"`
	Reason  string  `json:"reason,omitempty"`
}

// Status is the overall state of one row-range application.
type Status string

const (
	StatusPending               Status = "pending"
	StatusApplying              Status = "applying"
	StatusCompleted             Status = "completed"
	StatusCompletedWithWarnings Status = "completed_with_warnings"
	StatusFailed                Status = "failed"
)

// Report aggregates everything that happened during one Apply call.
type Report struct {
	Template string       `json:"template"`
	Rows     RowRange     `json:"rows"`
	Status   Status       `json:"status"`
	Results  []CellResult `json:"results,omitempty"`
	Warnings []string     `json:"warnings,omitempty"`
	Applied  int          `json:"applied"`
	Skipped  int          `json:"skipped"`
	Failed   int          `json:"failed"`
}

// ApplierConfig tunes the applier.
type ApplierConfig struct {
	// HeaderRow is the row whose cells decide whether a template column
	// exists in the destination sheet. 0 falls back to the sheet's used
	// column extent.
	HeaderRow int
}

// Applier writes a template's formulas across a row range. Rows are
// processed in ascending order and columns in the template's declared order,
// so repeated runs over unchanged data produce byte-identical formula text.
type Applier struct {
	cfg    ApplierConfig
	logger *zap.Logger
}

// NewApplier creates a new applier.
func NewApplier(cfg ApplierConfig, logger *zap.Logger) *Applier {
	return &Applier{cfg: cfg, logger: logger}
}

// Apply substitutes the concrete row number into each generalized formula
// and writes it to (column, row) for every row in rows.
//
// Recoverable per-cell problems never fail the call: cells holding a manual
// (non-formula) value are skipped so user overrides survive, and a template
// column absent from the destination raises one aggregated warning for the
// whole range. Only structural problems (empty template, bad row range)
// return an error.
func (a *Applier) Apply(sheet worksheet.Sheet, tpl *Template, rows RowRange) (*Report, error) {
	report := &Report{Template: templateName(tpl), Rows: rows, Status: StatusPending}

	if tpl.IsEmpty() {
		report.Status = StatusFailed
		return report, ErrEmptyTemplate
	}
	if rows.Sheet != "" && rows.Sheet != sheet.Name() {
		report.Status = StatusFailed
		return report, fmt.Errorf("%w: range names %q, sheet is %q", ErrSheetMismatch, rows.Sheet, sheet.Name())
	}
	if rows.First < 1 || rows.First > rows.Last {
		report.Status = StatusFailed
		return report, fmt.Errorf("%w: [%d, %d]", ErrRowRangeInvalid, rows.First, rows.Last)
	}

	maxCol, maxRow, err := sheet.UsedRange()
	if err != nil {
		report.Status = StatusFailed
		return report, fmt.Errorf("failed to query used range: %w", err)
	}
	if rows.Last > maxRow {
		report.Status = StatusFailed
		return report, fmt.Errorf("%w: last row %d, used range ends at row %d", ErrRowRangeOutOfBounds, rows.Last, maxRow)
	}

	// Resolve column presence once per column, not once per row.
	var columns []string
	for _, col := range tpl.ColumnOrder() {
		present, err := a.columnPresent(sheet, col, maxCol)
		if err != nil {
			report.Status = StatusFailed
			return report, err
		}
		if !present {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("column %s not present in destination sheet %q; skipped for rows %d-%d",
					col, sheet.Name(), rows.First, rows.Last))
			continue
		}
		columns = append(columns, col)
	}

	report.Status = StatusApplying
	for row := rows.First; row <= rows.Last; row++ {
		for _, col := range columns {
			res := a.applyCell(sheet, col, row, tpl.Formulas[col])
			switch res.Outcome {
			case OutcomeApplied:
				report.Applied++
			case OutcomeSkipped:
				report.Skipped++
			case OutcomeFailed:
				report.Failed++
			}
			report.Results = append(report.Results, res)
		}
	}

	if report.Skipped > 0 || report.Failed > 0 || len(report.Warnings) > 0 {
		report.Status = StatusCompletedWithWarnings
	} else {
		report.Status = StatusCompleted
	}

	a.logger.Info("Applied formula template",
		zap.String("template", report.Template),
		zap.String("sheet", sheet.Name()),
		zap.Int("first_row", rows.First),
		zap.Int("last_row", rows.Last),
		zap.Int("applied", report.Applied),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Int("warnings", len(report.Warnings)))
	return report, nil
}

// ApplySummary writes the template's formulas to the summary row directly
// below the data region. The {row} placeholder substitutes to lastDataRow,
// so range endpoints like SUM(GY7:GY{row}) close over the full data region
// while the formulas themselves land on lastDataRow+1.
func (a *Applier) ApplySummary(sheet worksheet.Sheet, tpl *Template, lastDataRow int) (*Report, error) {
	target := lastDataRow + 1
	report := &Report{
		Template: templateName(tpl),
		Rows:     RowRange{First: target, Last: target},
		Status:   StatusPending,
	}

	if tpl.IsEmpty() {
		report.Status = StatusFailed
		return report, ErrEmptyTemplate
	}
	if lastDataRow < 1 {
		report.Status = StatusFailed
		return report, fmt.Errorf("%w: last data row %d", ErrRowRangeInvalid, lastDataRow)
	}

	maxCol, _, err := sheet.UsedRange()
	if err != nil {
		report.Status = StatusFailed
		return report, fmt.Errorf("failed to query used range: %w", err)
	}

	report.Status = StatusApplying
	for _, col := range tpl.ColumnOrder() {
		present, err := a.columnPresent(sheet, col, maxCol)
		if err != nil {
			report.Status = StatusFailed
			return report, err
		}
		if !present {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("column %s not present in destination sheet %q; summary cell skipped",
					col, sheet.Name()))
			continue
		}

		res := a.applyCellAt(sheet, col, target, lastDataRow, tpl.Formulas[col])
		switch res.Outcome {
		case OutcomeApplied:
			report.Applied++
		case OutcomeSkipped:
			report.Skipped++
		case OutcomeFailed:
			report.Failed++
		}
		report.Results = append(report.Results, res)
	}

	if report.Skipped > 0 || report.Failed > 0 || len(report.Warnings) > 0 {
		report.Status = StatusCompletedWithWarnings
	} else {
		report.Status = StatusCompleted
	}

	a.logger.Info("Applied summary template",
		zap.String("template", report.Template),
		zap.String("sheet", sheet.Name()),
		zap.Int("summary_row", target),
		zap.Int("last_data_row", lastDataRow),
		zap.Int("applied", report.Applied),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))
	return report, nil
}

// applyCell writes one substituted formula, honoring the manual-value skip
// policy.
func (a *Applier) applyCell(sheet worksheet.Sheet, col string, row int, generalized string) CellResult {
	return a.applyCellAt(sheet, col, row, row, generalized)
}

// applyCellAt substitutes substituteRow into the generalized formula and
// writes the result at writeRow.
func (a *Applier) applyCellAt(sheet worksheet.Sheet, col string, writeRow, substituteRow int, generalized string) CellResult {
	existing, err := sheet.CellFormula(col, writeRow)
	if err != nil {
		return CellResult{Column: col, Row: writeRow, Outcome: OutcomeFailed, Reason: err.Error()}
	}
	if existing == "" {
		value, err := sheet.CellValue(col, writeRow)
		if err != nil {
			return CellResult{Column: col, Row: writeRow, Outcome: OutcomeFailed, Reason: err.Error()}
		}
		if value != "" {
			return CellResult{Column: col, Row: writeRow, Outcome: OutcomeSkipped,
				Reason: "cell holds a manually entered value"}
		}
	}

	text := Substitute(generalized, substituteRow)
	if err := sheet.SetCellFormula(col, writeRow, text); err != nil {
		return CellResult{Column: col, Row: writeRow, Outcome: OutcomeFailed, Reason: err.Error()}
	}
	return CellResult{Column: col, Row: writeRow, Outcome: OutcomeApplied}
}

func (a *Applier) columnPresent(sheet worksheet.Sheet, col string, maxCol int) (bool, error) {
	if a.cfg.HeaderRow > 0 {
		header, err := sheet.CellValue(col, a.cfg.HeaderRow)
		if err != nil {
			return false, fmt.Errorf("failed to read header cell %s%d: %w", col, a.cfg.HeaderRow, err)
		}
		return header != "", nil
	}
	idx, err := excelize.ColumnNameToNumber(col)
	if err != nil {
		return false, fmt.Errorf("invalid template column %q: %w", col, err)
	}
	return idx <= maxCol, nil
}

func templateName(t *Template) string {
	if t == nil {
		return ""
	}
	return t.Name
}
