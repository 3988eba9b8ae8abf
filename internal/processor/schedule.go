package processor

import (
	"context"
	"fmt"

	"github.com/roadworks/boq-generator/internal/storage"
	"github.com/roadworks/boq-generator/internal/worksheet"
	"go.uber.org/zap"
)

const (
	scheduleSheetName = "TCS"
	// Row 1 is the title, row 2 the header labels, data starts at row 3.
	scheduleDataRow = 3
)

// ScheduleProcessor copies the chainage sections of the TCS schedule into
// the working sheet: from, to, length and cross-section type land in columns
// A-D starting at the data start row. It runs first because every later step
// keys off the rows it writes.
type ScheduleProcessor struct {
	logger *zap.Logger
}

// NewScheduleProcessor creates a new ScheduleProcessor.
func NewScheduleProcessor(logger *zap.Logger) *ScheduleProcessor {
	return &ScheduleProcessor{logger: logger}
}

func (p *ScheduleProcessor) Name() string { return "tcs_schedule" }

func (p *ScheduleProcessor) Process(ctx context.Context, job *Job) error {
	path, err := job.InputPath(storage.CategorySchedule)
	if err != nil {
		return err
	}

	in, err := worksheet.Open(path, p.logger)
	if err != nil {
		return fmt.Errorf("failed to open schedule workbook: %w", err)
	}
	defer in.Close()

	src, err := in.Sheet(scheduleSheetName)
	if err != nil {
		return fmt.Errorf("schedule workbook: %w", err)
	}
	_, maxRow, err := src.UsedRange()
	if err != nil {
		return fmt.Errorf("failed to query schedule extent: %w", err)
	}

	dst, err := job.Workbook.Sheet(job.Sheet)
	if err != nil {
		return err
	}

	written := 0
	target := job.StartRow
	for row := scheduleDataRow; row <= maxRow; row++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		// Schedule layout: A=S#, B=from, C=to, D=length, E=C/S type.
		from, err := src.CellValue("B", row)
		if err != nil {
			return err
		}
		to, err := src.CellValue("C", row)
		if err != nil {
			return err
		}
		length, err := src.CellValue("D", row)
		if err != nil {
			return err
		}
		csType, err := src.CellValue("E", row)
		if err != nil {
			return err
		}

		fromV, okFrom := parseNumber(from)
		toV, okTo := parseNumber(to)
		lengthV, okLen := parseNumber(length)
		if !okFrom || !okTo || !okLen {
			continue
		}

		if err := dst.SetCellValue("A", target, fromV); err != nil {
			return err
		}
		if err := dst.SetCellValue("B", target, toV); err != nil {
			return err
		}
		if err := dst.SetCellValue("C", target, lengthV); err != nil {
			return err
		}
		if err := dst.SetCellValue("D", target, csType); err != nil {
			return err
		}
		target++
		written++
	}

	if written == 0 {
		return fmt.Errorf("%w: schedule sheet %q holds no chainage rows", ErrNoDataRows, scheduleSheetName)
	}

	p.logger.Info("Populated chainage sections from schedule",
		zap.String("session_id", job.SessionID),
		zap.Int("rows", written))
	return nil
}
