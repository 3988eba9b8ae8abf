package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func quantityTemplate() *Template {
	return &Template{
		Name:      "quantity_rows",
		SheetName: "Quantity",
		SourceRow: 5,
		Columns:   []string{"D"},
		Formulas:  map[string]string{"D": "=B{row}*C{row}"},
	}
}

// seedDataRows populates literal chainage data for rows first..last so the
// row range lies within the sheet's used bounds.
func seedDataRows(t *testing.T, f *excelize.File, sheet string, first, last int) {
	t.Helper()
	for row := first; row <= last; row++ {
		require.NoError(t, f.SetCellValue(sheet, cell("B", row), row*100))
		require.NoError(t, f.SetCellValue(sheet, cell("C", row), 25))
		require.NoError(t, f.SetCellValue(sheet, cell("E", row), "x"))
	}
}

func cell(col string, row int) string {
	name, _ := excelize.JoinCellName(col, row)
	return name
}

func TestApplier_Apply(t *testing.T) {
	logger := zap.NewNop()

	t.Run("substitutes the concrete row into every target row", func(t *testing.T) {
		wb, f := newTestWorkbook(t, "Quantity")
		seedDataRows(t, f, "Quantity", 10, 12)

		sheet := testSheet(t, wb, "Quantity")
		report, err := NewApplier(ApplierConfig{}, logger).Apply(sheet, quantityTemplate(), RowRange{First: 10, Last: 12})
		require.NoError(t, err)

		assert.Equal(t, StatusCompleted, report.Status)
		assert.Equal(t, 3, report.Applied)

		for row, want := range map[int]string{10: "=B10*C10", 11: "=B11*C11", 12: "=B12*C12"} {
			got, err := f.GetCellFormula("Quantity", cell("D", row))
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	})

	t.Run("keeps anchored references identical across rows", func(t *testing.T) {
		wb, f := newTestWorkbook(t, "Quantity")
		seedDataRows(t, f, "Quantity", 10, 12)

		tpl := &Template{
			Name:     "anchored",
			Columns:  []string{"D"},
			Formulas: map[string]string{"D": "=B{row}*$D$2"},
		}
		sheet := testSheet(t, wb, "Quantity")
		_, err := NewApplier(ApplierConfig{}, logger).Apply(sheet, tpl, RowRange{First: 10, Last: 12})
		require.NoError(t, err)

		for row := 10; row <= 12; row++ {
			got, err := f.GetCellFormula("Quantity", cell("D", row))
			require.NoError(t, err)
			assert.Contains(t, got, "$D$2")
		}
	})

	t.Run("never overwrites manually entered values", func(t *testing.T) {
		wb, f := newTestWorkbook(t, "Quantity")
		seedDataRows(t, f, "Quantity", 10, 12)
		require.NoError(t, f.SetCellValue("Quantity", "D11", 999))

		sheet := testSheet(t, wb, "Quantity")
		report, err := NewApplier(ApplierConfig{}, logger).Apply(sheet, quantityTemplate(), RowRange{First: 10, Last: 12})
		require.NoError(t, err)

		assert.Equal(t, StatusCompletedWithWarnings, report.Status)
		assert.Equal(t, 2, report.Applied)
		assert.Equal(t, 1, report.Skipped)

		value, err := f.GetCellValue("Quantity", "D11")
		require.NoError(t, err)
		assert.Equal(t, "999", value)
		gotFormula, err := f.GetCellFormula("Quantity", "D11")
		require.NoError(t, err)
		assert.Empty(t, gotFormula)

		var skipped *CellResult
		for i := range report.Results {
			if report.Results[i].Outcome == OutcomeSkipped {
				skipped = &report.Results[i]
			}
		}
		require.NotNil(t, skipped)
		assert.Equal(t, 11, skipped.Row)
	})

	t.Run("warns once for a column missing from the destination", func(t *testing.T) {
		wb, f := newTestWorkbook(t, "Quantity")
		seedDataRows(t, f, "Quantity", 10, 12)
		require.NoError(t, f.SetCellValue("Quantity", "B1", "From"))
		require.NoError(t, f.SetCellValue("Quantity", "C1", "To"))
		require.NoError(t, f.SetCellValue("Quantity", "D1", "Qty"))

		tpl := quantityTemplate()
		tpl.Columns = append(tpl.Columns, "ZZ")
		tpl.Formulas["ZZ"] = "=D{row}*2"

		sheet := testSheet(t, wb, "Quantity")
		report, err := NewApplier(ApplierConfig{HeaderRow: 1}, logger).Apply(sheet, tpl, RowRange{First: 10, Last: 12})
		require.NoError(t, err)

		assert.Equal(t, StatusCompletedWithWarnings, report.Status)
		require.Len(t, report.Warnings, 1)
		assert.Contains(t, report.Warnings[0], "ZZ")
		// the present column was still applied to all rows
		assert.Equal(t, 3, report.Applied)
	})

	t.Run("reapplication is byte-identical", func(t *testing.T) {
		wb, f := newTestWorkbook(t, "Quantity")
		seedDataRows(t, f, "Quantity", 10, 12)

		sheet := testSheet(t, wb, "Quantity")
		applier := NewApplier(ApplierConfig{}, logger)

		_, err := applier.Apply(sheet, quantityTemplate(), RowRange{First: 10, Last: 12})
		require.NoError(t, err)
		first := make(map[int]string)
		for row := 10; row <= 12; row++ {
			first[row], _ = f.GetCellFormula("Quantity", cell("D", row))
		}

		_, err = applier.Apply(sheet, quantityTemplate(), RowRange{First: 10, Last: 12})
		require.NoError(t, err)
		for row := 10; row <= 12; row++ {
			got, _ := f.GetCellFormula("Quantity", cell("D", row))
			assert.Equal(t, first[row], got)
		}
	})

	t.Run("fails on an empty template", func(t *testing.T) {
		wb, f := newTestWorkbook(t, "Quantity")
		seedDataRows(t, f, "Quantity", 10, 12)

		sheet := testSheet(t, wb, "Quantity")
		report, err := NewApplier(ApplierConfig{}, logger).Apply(sheet, &Template{Name: "empty"}, RowRange{First: 10, Last: 12})
		assert.ErrorIs(t, err, ErrEmptyTemplate)
		assert.Equal(t, StatusFailed, report.Status)
	})

	t.Run("fails on an inverted row range", func(t *testing.T) {
		wb, f := newTestWorkbook(t, "Quantity")
		seedDataRows(t, f, "Quantity", 10, 12)

		sheet := testSheet(t, wb, "Quantity")
		_, err := NewApplier(ApplierConfig{}, logger).Apply(sheet, quantityTemplate(), RowRange{First: 12, Last: 10})
		assert.ErrorIs(t, err, ErrRowRangeInvalid)
	})

	t.Run("fails when the range runs past the used rows", func(t *testing.T) {
		wb, f := newTestWorkbook(t, "Quantity")
		seedDataRows(t, f, "Quantity", 10, 12)

		sheet := testSheet(t, wb, "Quantity")
		_, err := NewApplier(ApplierConfig{}, logger).Apply(sheet, quantityTemplate(), RowRange{First: 10, Last: 500})
		assert.ErrorIs(t, err, ErrRowRangeOutOfBounds)
	})

	t.Run("fails when the range names a different sheet", func(t *testing.T) {
		wb, f := newTestWorkbook(t, "Quantity")
		seedDataRows(t, f, "Quantity", 10, 12)

		sheet := testSheet(t, wb, "Quantity")
		_, err := NewApplier(ApplierConfig{}, logger).Apply(sheet, quantityTemplate(), RowRange{Sheet: "BOQ", First: 10, Last: 12})
		assert.ErrorIs(t, err, ErrSheetMismatch)
	})
}

func TestApplier_RoundTripWithExtractor(t *testing.T) {
	// extract from row R, apply back to row R: output equals the original.
	wb, f := newTestWorkbook(t, "Quantity")
	require.NoError(t, f.SetCellValue("Quantity", "B9", 1))
	require.NoError(t, f.SetCellValue("Quantity", "C9", 2))
	const original = "=SUM(B9:C9)*$F$1"
	require.NoError(t, f.SetCellFormula("Quantity", "D9", original))

	logger := zap.NewNop()
	sheet := testSheet(t, wb, "Quantity")

	tpl, err := NewExtractor(logger).Extract(sheet, "roundtrip", 9, []string{"D"})
	require.NoError(t, err)

	report, err := NewApplier(ApplierConfig{}, logger).Apply(sheet, tpl, RowRange{First: 9, Last: 9})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, report.Status)

	got, err := f.GetCellFormula("Quantity", "D9")
	require.NoError(t, err)
	assert.Equal(t, original, got)
}
