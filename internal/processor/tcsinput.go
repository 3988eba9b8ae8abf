package processor

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roadworks/boq-generator/internal/storage"
	"github.com/roadworks/boq-generator/internal/worksheet"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	tcsInputSheetName = "Input"
	tcsInputHeaderRow = 2
	tcsInputDataRow   = 3
	// Cross-section type lives in column C of the input sheet.
	tcsInputTypeCol = "C"
	// Specifications land in the working sheet from column E onwards.
	tcsSpecFirstCol = 5
)

// Specification column ranges of the input sheet. D-V carries the left-hand
// side of the cross section, AA-AS the right-hand side; both are copied
// adjacently into the working sheet.
var tcsSpecRanges = [][2]string{
	{"D", "V"},
	{"AA", "AS"},
}

// TCSInputProcessor copies the per-type cross-section specifications into
// the working sheet. Each chainage row is matched to its specification row
// by cross-section type, case-insensitively.
type TCSInputProcessor struct {
	logger *zap.Logger
}

// NewTCSInputProcessor creates a new TCSInputProcessor.
func NewTCSInputProcessor(logger *zap.Logger) *TCSInputProcessor {
	return &TCSInputProcessor{logger: logger}
}

func (p *TCSInputProcessor) Name() string { return "tcs_input" }

// specTable holds one specification row per cross-section type, with values
// in input column order.
type specTable struct {
	headers []string
	byType  map[string][]string
}

func (p *TCSInputProcessor) Process(ctx context.Context, job *Job) error {
	path, err := job.InputPath(storage.CategoryTCSInput)
	if err != nil {
		return err
	}

	in, err := worksheet.Open(path, p.logger)
	if err != nil {
		return fmt.Errorf("failed to open TCS input workbook: %w", err)
	}
	defer in.Close()

	src, err := in.Sheet(tcsInputSheetName)
	if err != nil {
		return fmt.Errorf("TCS input workbook: %w", err)
	}

	table, err := p.readSpecifications(src)
	if err != nil {
		return err
	}

	dst, err := job.Workbook.Sheet(job.Sheet)
	if err != nil {
		return err
	}
	last, err := job.LastDataRow()
	if err != nil {
		return err
	}

	matched := 0
	unmatched := map[string]bool{}
	for row := job.StartRow; row <= last; row++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		csType, err := dst.CellValue("D", row)
		if err != nil {
			return err
		}
		if strings.TrimSpace(csType) == "" {
			continue
		}

		specs, ok := table.byType[strings.ToLower(strings.TrimSpace(csType))]
		if !ok {
			unmatched[csType] = true
			continue
		}

		for i, value := range specs {
			if value == "" {
				continue
			}
			col, err := excelize.ColumnNumberToName(tcsSpecFirstCol + i)
			if err != nil {
				return err
			}
			if err := setCellNumeric(dst, col, row, value); err != nil {
				return err
			}
		}
		matched++
	}

	if len(unmatched) > 0 {
		types := make([]string, 0, len(unmatched))
		for t := range unmatched {
			types = append(types, t)
		}
		sort.Strings(types)
		p.logger.Warn("No specifications for some cross-section types",
			zap.String("session_id", job.SessionID),
			zap.Strings("types", types))
	}

	p.logger.Info("Populated cross-section specifications",
		zap.String("session_id", job.SessionID),
		zap.Int("types", len(table.byType)),
		zap.Int("columns", len(table.headers)),
		zap.Int("matched_rows", matched))
	return nil
}

// readSpecifications builds the type keyed specification table from the
// input sheet. Duplicate headers across the two ranges get _LHS and _RHS
// suffixes so both sides stay distinguishable in logs and reports.
func (p *TCSInputProcessor) readSpecifications(src worksheet.Sheet) (*specTable, error) {
	cols, err := specColumns()
	if err != nil {
		return nil, err
	}

	raw := make([]string, len(cols))
	counts := map[string]int{}
	for i, col := range cols {
		h, err := src.CellValue(col, tcsInputHeaderRow)
		if err != nil {
			return nil, err
		}
		raw[i] = strings.TrimSpace(h)
		if raw[i] != "" {
			counts[raw[i]]++
		}
	}

	headers := make([]string, len(raw))
	seen := map[string]int{}
	for i, h := range raw {
		switch {
		case h == "":
			headers[i] = ""
		case counts[h] > 1:
			seen[h]++
			if seen[h] == 1 {
				headers[i] = h + "_LHS"
			} else {
				headers[i] = h + "_RHS"
			}
		default:
			headers[i] = h
		}
	}

	_, maxRow, err := src.UsedRange()
	if err != nil {
		return nil, fmt.Errorf("failed to query input extent: %w", err)
	}

	byType := map[string][]string{}
	for row := tcsInputDataRow; row <= maxRow; row++ {
		csType, err := src.CellValue(tcsInputTypeCol, row)
		if err != nil {
			return nil, err
		}
		csType = strings.TrimSpace(csType)
		if csType == "" {
			continue
		}

		values := make([]string, len(cols))
		for i, col := range cols {
			v, err := src.CellValue(col, row)
			if err != nil {
				return nil, err
			}
			values[i] = v
		}
		byType[strings.ToLower(csType)] = values
	}

	if len(byType) == 0 {
		return nil, fmt.Errorf("%w: input sheet %q holds no specification rows", ErrNoDataRows, tcsInputSheetName)
	}
	return &specTable{headers: headers, byType: byType}, nil
}

// specColumns expands the configured ranges into a flat, ordered column
// list.
func specColumns() ([]string, error) {
	var cols []string
	for _, r := range tcsSpecRanges {
		first, err := excelize.ColumnNameToNumber(r[0])
		if err != nil {
			return nil, err
		}
		last, err := excelize.ColumnNameToNumber(r[1])
		if err != nil {
			return nil, err
		}
		for i := first; i <= last; i++ {
			name, err := excelize.ColumnNumberToName(i)
			if err != nil {
				return nil, err
			}
			cols = append(cols, name)
		}
	}
	return cols, nil
}
