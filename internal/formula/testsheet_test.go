package formula

import (
	"testing"

	"github.com/roadworks/boq-generator/internal/worksheet"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// newTestWorkbook builds an in-memory workbook with the given sheets and
// returns it wrapped in the worksheet adapter.
func newTestWorkbook(t *testing.T, sheets ...string) (*worksheet.Workbook, *excelize.File) {
	t.Helper()

	f := excelize.NewFile()
	for i, name := range sheets {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", name))
			continue
		}
		_, err := f.NewSheet(name)
		require.NoError(t, err)
	}
	t.Cleanup(func() { _ = f.Close() })

	return worksheet.NewWorkbook(f, zap.NewNop()), f
}

func testSheet(t *testing.T, wb *worksheet.Workbook, name string) worksheet.Sheet {
	t.Helper()
	sheet, err := wb.Sheet(name)
	require.NoError(t, err)
	return sheet
}
