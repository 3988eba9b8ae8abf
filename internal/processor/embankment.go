package processor

import (
	"context"
	"fmt"
	"sort"

	"github.com/roadworks/boq-generator/internal/storage"
	"github.com/roadworks/boq-generator/internal/worksheet"
	"go.uber.org/zap"
)

const (
	embSheetName = "Emb Height"
	embDataRow   = 7
)

// Embankment output columns of the working sheet: height at section start,
// height at section end, average height, and volume over the section length.
const (
	embStartCol  = "BJ"
	embEndCol    = "BK"
	embAvgCol    = "BL"
	embVolumeCol = "BM"
)

// levelPoint is one surveyed chainage with its existing and proposed levels.
type levelPoint struct {
	chainage float64
	height   float64 // proposed minus existing, clamped at zero
}

// EmbankmentProcessor interpolates embankment heights at each section's start
// and end chainage from the surveyed level points and writes height and
// volume columns for every data row.
type EmbankmentProcessor struct {
	logger *zap.Logger
}

// NewEmbankmentProcessor creates a new EmbankmentProcessor.
func NewEmbankmentProcessor(logger *zap.Logger) *EmbankmentProcessor {
	return &EmbankmentProcessor{logger: logger}
}

func (p *EmbankmentProcessor) Name() string { return "embankment_heights" }

func (p *EmbankmentProcessor) Process(ctx context.Context, job *Job) error {
	path, err := job.InputPath(storage.CategoryEmbankment)
	if err != nil {
		return err
	}

	in, err := worksheet.Open(path, p.logger)
	if err != nil {
		return fmt.Errorf("failed to open embankment workbook: %w", err)
	}
	defer in.Close()

	src, err := in.Sheet(embSheetName)
	if err != nil {
		return fmt.Errorf("embankment workbook: %w", err)
	}

	points, err := readLevelPoints(src)
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

	processed := 0
	for row := job.StartRow; row <= last; row++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		from, okFrom := cellNumber(dst, "A", row)
		to, okTo := cellNumber(dst, "B", row)
		length, okLen := cellNumber(dst, "C", row)
		if !okFrom || !okTo || !okLen || length == 0 {
			continue
		}

		start := heightAt(points, from)
		end := heightAt(points, to)
		avg := (start + end) / 2

		if err := dst.SetCellValue(embStartCol, row, start); err != nil {
			return err
		}
		if err := dst.SetCellValue(embEndCol, row, end); err != nil {
			return err
		}
		if err := dst.SetCellValue(embAvgCol, row, avg); err != nil {
			return err
		}
		if err := dst.SetCellValue(embVolumeCol, row, avg*length); err != nil {
			return err
		}
		processed++
	}

	p.logger.Info("Calculated embankment heights",
		zap.String("session_id", job.SessionID),
		zap.Int("level_points", len(points)),
		zap.Int("rows", processed))
	return nil
}

// readLevelPoints reads (chainage, existing level, proposed level) triples
// from columns B-D of the survey sheet and returns them sorted by chainage.
func readLevelPoints(src worksheet.Sheet) ([]levelPoint, error) {
	_, maxRow, err := src.UsedRange()
	if err != nil {
		return nil, fmt.Errorf("failed to query survey extent: %w", err)
	}

	var points []levelPoint
	for row := embDataRow; row <= maxRow; row++ {
		chainage, okC := cellNumber(src, "B", row)
		existing, okE := cellNumber(src, "C", row)
		proposed, okP := cellNumber(src, "D", row)
		if !okC || !okE || !okP {
			continue
		}

		height := proposed - existing
		if height < 0 {
			height = 0
		}
		points = append(points, levelPoint{chainage: chainage, height: height})
	}

	if len(points) == 0 {
		return nil, fmt.Errorf("%w: sheet %q holds no level points", ErrNoDataRows, embSheetName)
	}

	sort.Slice(points, func(i, j int) bool { return points[i].chainage < points[j].chainage })
	return points, nil
}

// heightAt linearly interpolates the embankment height at a chainage.
// Chainages outside the surveyed range take the nearest point's height.
func heightAt(points []levelPoint, chainage float64) float64 {
	if len(points) == 0 {
		return 0
	}
	if chainage <= points[0].chainage {
		return points[0].height
	}
	if chainage >= points[len(points)-1].chainage {
		return points[len(points)-1].height
	}

	idx := sort.Search(len(points), func(i int) bool { return points[i].chainage >= chainage })
	before, after := points[idx-1], points[idx]
	if after.chainage == before.chainage {
		return after.height
	}

	ratio := (chainage - before.chainage) / (after.chainage - before.chainage)
	h := before.height + ratio*(after.height-before.height)
	if h < 0 {
		return 0
	}
	return h
}

// cellNumber reads a cell as a float, reporting whether it held a number.
func cellNumber(sheet worksheet.Sheet, col string, row int) (float64, bool) {
	v, err := sheet.CellValue(col, row)
	if err != nil {
		return 0, false
	}
	return parseNumber(v)
}
