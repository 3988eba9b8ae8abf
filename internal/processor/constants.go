package processor

import (
	"context"
	"sort"

	"go.uber.org/zap"
)

// ConstantFillProcessor writes fixed values into configured columns for
// every populated data row. Rows whose reference length is empty or zero are
// left alone.
type ConstantFillProcessor struct {
	constants map[string]float64
	logger    *zap.Logger
}

// NewConstantFillProcessor creates a processor filling the given
// column-to-value constants.
func NewConstantFillProcessor(constants map[string]float64, logger *zap.Logger) *ConstantFillProcessor {
	return &ConstantFillProcessor{constants: constants, logger: logger}
}

func (p *ConstantFillProcessor) Name() string { return "constant_fill" }

func (p *ConstantFillProcessor) Process(ctx context.Context, job *Job) error {
	if len(p.constants) == 0 {
		p.logger.Debug("No constants configured, nothing to fill",
			zap.String("session_id", job.SessionID))
		return nil
	}

	dst, err := job.Workbook.Sheet(job.Sheet)
	if err != nil {
		return err
	}
	last, err := job.LastDataRow()
	if err != nil {
		return err
	}

	columns := make([]string, 0, len(p.constants))
	for col := range p.constants {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	applied := 0
	for _, col := range columns {
		if err := ctx.Err(); err != nil {
			return err
		}
		for row := job.StartRow; row <= last; row++ {
			length, ok := cellNumber(dst, job.RefColumn, row)
			if !ok || length == 0 {
				continue
			}
			if err := dst.SetCellValue(col, row, p.constants[col]); err != nil {
				return err
			}
			applied++
		}
	}

	p.logger.Info("Applied constant fills",
		zap.String("session_id", job.SessionID),
		zap.Strings("columns", columns),
		zap.Int("cells", applied))
	return nil
}
