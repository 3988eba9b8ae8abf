package processor

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roadworks/boq-generator/internal/storage"
	"github.com/roadworks/boq-generator/internal/worksheet"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// saveTempWorkbook writes an excelize file to a temp path and returns it.
func saveTempWorkbook(t *testing.T, f *excelize.File, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

// newScheduleFile builds a TCS schedule workbook: title row, header row, then
// one section per entry of rows, each [from, to, length, type].
func newScheduleFile(t *testing.T, rows [][4]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "TCS"))
	require.NoError(t, f.SetCellValue("TCS", "A1", "TCS SCHEDULE"))
	for i, h := range []string{"S#", "From", "To", "Length (m.)", "C/S Type"} {
		col, err := excelize.ColumnNumberToName(i + 1)
		require.NoError(t, err)
		require.NoError(t, f.SetCellValue("TCS", col+"2", h))
	}
	for i, r := range rows {
		row := i + 3
		require.NoError(t, f.SetCellValue("TCS", cellName("A", row), i+1))
		require.NoError(t, f.SetCellValue("TCS", cellName("B", row), r[0]))
		require.NoError(t, f.SetCellValue("TCS", cellName("C", row), r[1]))
		require.NoError(t, f.SetCellValue("TCS", cellName("D", row), r[2]))
		require.NoError(t, f.SetCellValue("TCS", cellName("E", row), r[3]))
	}
	return saveTempWorkbook(t, f, "TCS Schedule.xlsx")
}

// newWorkingWorkbook builds an in-memory Quantity workbook with a header row
// and returns it ready for a job.
func newWorkingWorkbook(t *testing.T) (*worksheet.Workbook, *excelize.File) {
	t.Helper()
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "Quantity"))
	for i, h := range []string{"From", "To", "Length", "Type"} {
		col, err := excelize.ColumnNumberToName(i + 1)
		require.NoError(t, err)
		require.NoError(t, f.SetCellValue("Quantity", col+"6", h))
	}
	t.Cleanup(func() { _ = f.Close() })
	return worksheet.NewWorkbook(f, zap.NewNop()), f
}

func newJob(t *testing.T, wb *worksheet.Workbook, inputs map[storage.Category]string) *Job {
	t.Helper()
	return &Job{
		SessionID: "test_session",
		Workbook:  wb,
		Inputs:    inputs,
		Sheet:     "Quantity",
		StartRow:  7,
		RefColumn: "C",
	}
}

func worksheetFromFile(t *testing.T, f *excelize.File) *worksheet.Workbook {
	t.Helper()
	return worksheet.NewWorkbook(f, zap.NewNop())
}

func cellName(col string, row int) string {
	name, err := excelize.JoinCellName(col, row)
	if err != nil {
		panic(err)
	}
	return name
}

func runProcessor(t *testing.T, p Processor, job *Job) error {
	t.Helper()
	return p.Process(context.Background(), job)
}
