// Command extract-template pulls the formulas of one workbook row into a
// reusable formula template. Run it against a hand-built reference workbook
// once; the server applies the stored template to every session afterwards.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/roadworks/boq-generator/internal/formula"
	"github.com/roadworks/boq-generator/internal/worksheet"
	"github.com/roadworks/boq-generator/pkg/utils"
)

func main() {
	var (
		workbookPath = flag.String("workbook", "", "reference workbook to read formulas from")
		sheetName    = flag.String("sheet", "Quantity", "worksheet holding the formulas")
		row          = flag.Int("row", 7, "row to extract")
		columns      = flag.String("columns", "", "comma-separated columns to extract (default: every formula cell across the sheet's used columns)")
		name         = flag.String("name", "", "template name to save under")
		outDir       = flag.String("out", "configs/templates", "directory the template is written to")
		summary      = flag.Bool("summary", false, "treat the row as a summary row whose ranges end one row above it")
		logLevel     = flag.String("log-level", "info", "log level")
	)
	flag.Parse()

	if *workbookPath == "" || *name == "" {
		fmt.Fprintln(os.Stderr, "both -workbook and -name are required")
		flag.Usage()
		os.Exit(2)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      *logLevel,
		OutputPath: "stderr",
		Format:     "console",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(*workbookPath, *sheetName, *name, *outDir, *columns, *row, *summary, logger); err != nil {
		logger.Fatal("extraction failed", zap.Error(err))
	}
}

func run(workbookPath, sheetName, name, outDir, columns string, row int, summary bool, logger *zap.Logger) error {
	wb, err := worksheet.Open(workbookPath, logger)
	if err != nil {
		return fmt.Errorf("open workbook: %w", err)
	}
	defer wb.Close()

	sheet, err := wb.Sheet(sheetName)
	if err != nil {
		return err
	}

	var cols []string
	if columns != "" {
		for _, c := range strings.Split(columns, ",") {
			if c = strings.TrimSpace(c); c != "" {
				cols = append(cols, strings.ToUpper(c))
			}
		}
	}

	extractor := formula.NewExtractor(logger)

	var tpl *formula.Template
	if summary {
		tpl, err = extractor.ExtractSummary(sheet, name, row, cols)
	} else {
		tpl, err = extractor.Extract(sheet, name, row, cols)
	}
	if err != nil {
		return fmt.Errorf("extract row %d: %w", row, err)
	}
	if tpl.IsEmpty() {
		return fmt.Errorf("row %d of sheet %q holds no formulas", row, sheetName)
	}

	store := formula.NewStore(outDir, logger)
	if err := store.Save(tpl); err != nil {
		return fmt.Errorf("save template: %w", err)
	}

	logger.Info("template saved",
		zap.String("name", name),
		zap.Int("columns", len(tpl.ColumnOrder())),
		zap.String("dir", outDir))
	return nil
}
