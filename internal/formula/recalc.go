package formula

import (
	"fmt"

	"github.com/roadworks/boq-generator/internal/worksheet"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ReferenceIssue describes a formula reference that does not resolve to a
// populated cell. Issues are reported, never repaired; deciding what to do
// with them is a downstream call.
type ReferenceIssue struct {
	Cell      string `json:"cell"`      // e.g. "Quantity!GE12"
	Reference string `json:"reference"` // the offending reference text
	Reason    string `json:"reason"`
}

// Validator statically checks the references of formulas written into a row
// range. It does not evaluate formulas; recalculation is delegated to the
// spreadsheet application via the workbook's full-calc-on-load flag.
type Validator struct {
	logger *zap.Logger
}

// NewValidator creates a new validator.
func NewValidator(logger *zap.Logger) *Validator {
	return &Validator{logger: logger}
}

// Validate walks every formula cell in rows and reports each reference that
// points beyond the used range of its target sheet, plus unanchored
// same-sheet references that reach below the populated range. Cross-sheet
// references are resolved through resolver; a nil resolver flags them as
// unresolvable. Per-reference problems are returned as issues, never as an
// error.
func (v *Validator) Validate(sheet worksheet.Sheet, rows RowRange, resolver worksheet.Resolver) ([]ReferenceIssue, error) {
	maxCol, maxRow, err := sheet.UsedRange()
	if err != nil {
		return nil, fmt.Errorf("failed to query used range: %w", err)
	}

	last := rows.Last
	if last > maxRow {
		last = maxRow
	}

	var issues []ReferenceIssue
	for row := rows.First; row <= last; row++ {
		for colIdx := 1; colIdx <= maxCol; colIdx++ {
			col, err := excelize.ColumnNumberToName(colIdx)
			if err != nil {
				continue
			}
			text, err := sheet.CellFormula(col, row)
			if err != nil || text == "" {
				continue
			}

			cell := fmt.Sprintf("%s!%s%d", sheet.Name(), col, row)
			for _, ref := range References(text) {
				if issue, bad := v.checkRef(sheet, ref, rows, resolver); bad {
					issue.Cell = cell
					issues = append(issues, issue)
				}
			}
		}
	}

	if len(issues) > 0 {
		v.logger.Warn("Reference validation found issues",
			zap.String("sheet", sheet.Name()),
			zap.Int("first_row", rows.First),
			zap.Int("last_row", rows.Last),
			zap.Int("issues", len(issues)))
	}
	return issues, nil
}

func (v *Validator) checkRef(sheet worksheet.Sheet, ref Ref, rows RowRange, resolver worksheet.Resolver) (ReferenceIssue, bool) {
	if ref.IsPlaceholder {
		return ReferenceIssue{Reference: ref.String(), Reason: "unsubstituted row placeholder"}, true
	}

	target := sheet
	sameSheet := ref.Sheet == "" || ref.Sheet == sheet.Name()
	if !sameSheet {
		if resolver == nil {
			return ReferenceIssue{Reference: ref.String(), Reason: "cross-sheet reference cannot be resolved"}, true
		}
		var err error
		target, err = resolver.Sheet(ref.Sheet)
		if err != nil {
			return ReferenceIssue{Reference: ref.String(), Reason: fmt.Sprintf("sheet %q not found", ref.Sheet)}, true
		}
	}

	maxCol, maxRow, err := target.UsedRange()
	if err != nil {
		return ReferenceIssue{Reference: ref.String(), Reason: err.Error()}, true
	}

	colIdx, err := excelize.ColumnNameToNumber(ref.Column)
	if err != nil {
		return ReferenceIssue{Reference: ref.String(), Reason: "invalid column"}, true
	}

	if ref.Row > maxRow {
		return ReferenceIssue{Reference: ref.String(),
			Reason: fmt.Sprintf("row %d beyond used range (last row %d)", ref.Row, maxRow)}, true
	}
	if colIdx > maxCol {
		return ReferenceIssue{Reference: ref.String(),
			Reason: fmt.Sprintf("column %s beyond used range", ref.Column)}, true
	}
	// Unanchored same-sheet refs must stay within the populated range or the
	// region above it; anything below rows.Last would read unpopulated cells.
	if sameSheet && !ref.AbsRow && ref.Row > rows.Last {
		return ReferenceIssue{Reference: ref.String(),
			Reason: fmt.Sprintf("row %d beyond the populated range (last row %d)", ref.Row, rows.Last)}, true
	}
	return ReferenceIssue{}, false
}
