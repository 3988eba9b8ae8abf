package processor

import (
	"testing"

	"github.com/roadworks/boq-generator/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// newPavementFile builds a key/value pavement workbook with thickness labels
// in columns B and E and their millimetre values in C and F.
func newPavementFile(t *testing.T, entries map[string]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "Pavement"))
	require.NoError(t, f.SetCellValue("Pavement", "B1", "MCW"))
	require.NoError(t, f.SetCellValue("Pavement", "E1", "SR"))
	for cell, value := range entries {
		require.NoError(t, f.SetCellValue("Pavement", cell, value))
	}
	return saveTempWorkbook(t, f, "Pavement Input.xlsx")
}

func seedSections(t *testing.T, f *excelize.File, first, last int) {
	t.Helper()
	for row := first; row <= last; row++ {
		require.NoError(t, f.SetCellValue("Quantity", cellName("A", row), (row-first)*25))
		require.NoError(t, f.SetCellValue("Quantity", cellName("B", row), (row-first+1)*25))
		require.NoError(t, f.SetCellValue("Quantity", cellName("C", row), 25))
	}
}

func TestPavementProcessor(t *testing.T) {
	logger := zap.NewNop()

	t.Run("fills thickness columns in metres", func(t *testing.T) {
		input := newPavementFile(t, map[string]interface{}{
			"E9": "CTSB", "F9": 200.0,
			"E11": "AIL", "F11": 50.0,
			"B23": "DLC", "C23": 150.0,
			"B24": "PQC", "C24": 300.0,
		})

		wb, f := newWorkingWorkbook(t)
		seedSections(t, f, 7, 9)

		job := newJob(t, wb, map[storage.Category]string{storage.CategoryPavement: input})
		require.NoError(t, runProcessor(t, NewPavementProcessor(logger), job))

		for row := 7; row <= 9; row++ {
			v, err := f.GetCellValue("Quantity", cellName("AX", row))
			require.NoError(t, err)
			assert.Equal(t, "0.2", v)
		}

		v, err := f.GetCellValue("Quantity", "BB7")
		require.NoError(t, err)
		assert.Equal(t, "0.05", v)

		v, err = f.GetCellValue("Quantity", "BC7")
		require.NoError(t, err)
		assert.Equal(t, "0.15", v)

		v, err = f.GetCellValue("Quantity", "BD7")
		require.NoError(t, err)
		assert.Equal(t, "0.3", v)
	})

	t.Run("wrong label zeroes the bound column", func(t *testing.T) {
		input := newPavementFile(t, map[string]interface{}{
			"E9": "WMM", "F9": 200.0, // AX expects CTSB here
		})

		wb, f := newWorkingWorkbook(t)
		seedSections(t, f, 7, 7)

		job := newJob(t, wb, map[storage.Category]string{storage.CategoryPavement: input})
		require.NoError(t, runProcessor(t, NewPavementProcessor(logger), job))

		v, err := f.GetCellValue("Quantity", "AX7")
		require.NoError(t, err)
		assert.Equal(t, "0", v)
	})

	t.Run("missing input fails the step", func(t *testing.T) {
		wb, f := newWorkingWorkbook(t)
		seedSections(t, f, 7, 7)

		job := newJob(t, wb, nil)
		err := runProcessor(t, NewPavementProcessor(logger), job)
		assert.ErrorIs(t, err, ErrInputMissing)
	})
}

func TestConstantFillProcessor(t *testing.T) {
	logger := zap.NewNop()

	t.Run("fills configured columns over data rows", func(t *testing.T) {
		wb, f := newWorkingWorkbook(t)
		seedSections(t, f, 7, 9)
		// row 10 has no length, must stay untouched
		require.NoError(t, f.SetCellValue("Quantity", "A10", 75))

		p := NewConstantFillProcessor(map[string]float64{"BF": 1.0, "BG": 2.5}, logger)
		require.NoError(t, runProcessor(t, p, newJob(t, wb, nil)))

		v, err := f.GetCellValue("Quantity", "BF8")
		require.NoError(t, err)
		assert.Equal(t, "1", v)

		v, err = f.GetCellValue("Quantity", "BG9")
		require.NoError(t, err)
		assert.Equal(t, "2.5", v)

		v, err = f.GetCellValue("Quantity", "BF10")
		require.NoError(t, err)
		assert.Empty(t, v)
	})

	t.Run("no constants is a no-op", func(t *testing.T) {
		wb, _ := newWorkingWorkbook(t)
		p := NewConstantFillProcessor(nil, logger)
		require.NoError(t, runProcessor(t, p, newJob(t, wb, nil)))
	})
}
