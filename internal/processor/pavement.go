package processor

import (
	"context"
	"fmt"
	"strings"

	"github.com/roadworks/boq-generator/internal/storage"
	"github.com/roadworks/boq-generator/internal/worksheet"
	"go.uber.org/zap"
)

// Pavement input layout: labels in columns B and E from row 9, their values
// one column to the right (C and F).
const pavementLabelRow = 9

// pavementBinding wires one labeled thickness of the pavement input sheet to
// a working-sheet column. Thicknesses arrive in millimetres and are written
// in metres. When label is set the source cell must carry that label or the
// target stays zero.
type pavementBinding struct {
	target   string // working sheet column
	labelCol string // input column holding the label
	labelRow int    // input row holding the label
	label    string // expected label text, empty accepts any
}

var pavementBindings = []pavementBinding{
	{target: "AX", labelCol: "E", labelRow: 9, label: "CTSB"},
	{target: "BB", labelCol: "E", labelRow: 11},
	{target: "BC", labelCol: "B", labelRow: 23},
	{target: "BD", labelCol: "B", labelRow: 24},
}

// valueColumnFor maps a label column to the column carrying its value.
var valueColumnFor = map[string]string{
	"B": "C",
	"E": "F",
}

// PavementProcessor reads the pavement layer thicknesses from the key/value
// style input sheet and fills their designated working-sheet columns with a
// constant value per column over all data rows.
type PavementProcessor struct {
	logger *zap.Logger
}

// NewPavementProcessor creates a new PavementProcessor.
func NewPavementProcessor(logger *zap.Logger) *PavementProcessor {
	return &PavementProcessor{logger: logger}
}

func (p *PavementProcessor) Name() string { return "pavement_input" }

func (p *PavementProcessor) Process(ctx context.Context, job *Job) error {
	path, err := job.InputPath(storage.CategoryPavement)
	if err != nil {
		return err
	}

	in, err := worksheet.Open(path, p.logger)
	if err != nil {
		return fmt.Errorf("failed to open pavement workbook: %w", err)
	}
	defer in.Close()

	names := in.SheetNames()
	if len(names) == 0 {
		return fmt.Errorf("pavement workbook has no sheets")
	}
	src, err := in.Sheet(names[0])
	if err != nil {
		return err
	}

	values := map[string]float64{}
	for _, b := range pavementBindings {
		v, err := p.resolveBinding(src, b)
		if err != nil {
			return err
		}
		values[b.target] = v
	}

	dst, err := job.Workbook.Sheet(job.Sheet)
	if err != nil {
		return err
	}
	last, err := job.LastDataRow()
	if err != nil {
		return err
	}

	for _, b := range pavementBindings {
		if err := ctx.Err(); err != nil {
			return err
		}
		for row := job.StartRow; row <= last; row++ {
			if err := dst.SetCellValue(b.target, row, values[b.target]); err != nil {
				return err
			}
		}
		p.logger.Debug("Filled pavement column",
			zap.String("session_id", job.SessionID),
			zap.String("column", b.target),
			zap.Float64("value", values[b.target]))
	}

	p.logger.Info("Populated pavement thicknesses",
		zap.String("session_id", job.SessionID),
		zap.Int("columns", len(pavementBindings)),
		zap.Int("rows", last-job.StartRow+1))
	return nil
}

// resolveBinding reads one thickness from the input sheet, converting
// millimetres to metres. A missing or mismatched label yields zero, matching
// how an absent layer is quantified.
func (p *PavementProcessor) resolveBinding(src worksheet.Sheet, b pavementBinding) (float64, error) {
	label, err := src.CellValue(b.labelCol, b.labelRow)
	if err != nil {
		return 0, err
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return 0, nil
	}
	if b.label != "" && !strings.EqualFold(label, b.label) {
		return 0, nil
	}

	valueCol, ok := valueColumnFor[b.labelCol]
	if !ok {
		return 0, fmt.Errorf("no value column for label column %s", b.labelCol)
	}
	raw, err := src.CellValue(valueCol, b.labelRow)
	if err != nil {
		return 0, err
	}
	v, ok := parseNumber(raw)
	if !ok {
		return 0, nil
	}
	return v / 1000, nil
}
