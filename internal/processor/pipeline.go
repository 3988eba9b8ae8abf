package processor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/roadworks/boq-generator/internal/formula"
	"github.com/roadworks/boq-generator/internal/storage"
	"github.com/roadworks/boq-generator/internal/worksheet"
	"go.uber.org/zap"
)

// PipelineConfig fixes the workbook layout and template names one run uses.
type PipelineConfig struct {
	// TemplateWorkbook is the pristine deliverable workbook copied per
	// session before population.
	TemplateWorkbook string
	// SheetName is the working sheet, normally "Quantity".
	SheetName string
	// StartRow is the first data row of the working sheet.
	StartRow int
	// RefColumn is scanned to find the last data row.
	RefColumn string
	// MainTemplate and FinalSumTemplate name the stored formula templates.
	MainTemplate     string
	FinalSumTemplate string
}

// StepResult records how one pipeline step ended.
type StepResult struct {
	Step    string `json:"step"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// JobReport aggregates everything one pipeline run produced.
type JobReport struct {
	SessionID  string                   `json:"session_id"`
	OutputPath string                   `json:"output_path,omitempty"`
	Status     formula.Status           `json:"status"`
	Steps      []StepResult             `json:"steps"`
	Main       *formula.Report          `json:"main_template,omitempty"`
	FinalSum   *formula.Report          `json:"final_sum_template,omitempty"`
	Issues     []formula.ReferenceIssue `json:"reference_issues,omitempty"`
	FailedStep string                   `json:"failed_step,omitempty"`
	Error      string                   `json:"error,omitempty"`
}

// Pipeline drives one session's population end to end: clean the working
// template, run the domain processors, apply the row and summary formula
// templates, validate references, flag the workbook for recalculation and
// save the deliverable. A pipeline is stateless across runs; every run owns
// its own workbook.
type Pipeline struct {
	cfg        PipelineConfig
	processors []Processor
	store      *formula.Store
	applier    *formula.Applier
	validator  *formula.Validator
	logger     *zap.Logger
}

// NewPipeline creates a pipeline running the given processors in order.
func NewPipeline(cfg PipelineConfig, processors []Processor, store *formula.Store,
	applier *formula.Applier, validator *formula.Validator, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		processors: processors,
		store:      store,
		applier:    applier,
		validator:  validator,
		logger:     logger,
	}
}

// Run executes the pipeline for one session. The returned report is always
// non-nil; on error its FailedStep and Error fields say where the run died.
func (p *Pipeline) Run(ctx context.Context, sessionID, sessionDir string, inputs map[storage.Category]string) (*JobReport, error) {
	report := &JobReport{SessionID: sessionID, Status: formula.StatusPending}

	outputPath := filepath.Join(sessionDir, sessionID+"_main_carriageway.xlsx")
	if err := p.fail(report, "prepare_working_copy", copyFile(p.cfg.TemplateWorkbook, outputPath)); err != nil {
		return report, err
	}
	report.OutputPath = outputPath

	wb, err := worksheet.Open(outputPath, p.logger)
	if err = p.fail(report, "open_working_copy", err); err != nil {
		return report, err
	}
	defer wb.Close()

	_, err = wb.CleanFromRow(p.cfg.SheetName, p.cfg.StartRow)
	if err = p.fail(report, "clean_template", err); err != nil {
		return report, err
	}
	report.Steps = append(report.Steps, StepResult{Step: "clean_template", Status: "executed"})

	job := &Job{
		SessionID: sessionID,
		Workbook:  wb,
		Inputs:    inputs,
		Sheet:     p.cfg.SheetName,
		StartRow:  p.cfg.StartRow,
		RefColumn: p.cfg.RefColumn,
	}

	for _, proc := range p.processors {
		if err := ctx.Err(); err != nil {
			return report, p.fail(report, proc.Name(), err)
		}
		if err := proc.Process(ctx, job); err != nil {
			return report, p.fail(report, proc.Name(), err)
		}
		report.Steps = append(report.Steps, StepResult{Step: proc.Name(), Status: "executed"})
	}

	last, err := job.LastDataRow()
	if err = p.fail(report, "detect_data_rows", err); err != nil {
		return report, err
	}

	sheet, err := wb.Sheet(p.cfg.SheetName)
	if err = p.fail(report, "open_working_sheet", err); err != nil {
		return report, err
	}

	mainTpl, err := p.store.Load(p.cfg.MainTemplate)
	if err = p.fail(report, "load_main_template", err); err != nil {
		return report, err
	}
	report.Main, err = p.applier.Apply(sheet, mainTpl, formula.RowRange{
		Sheet: p.cfg.SheetName,
		First: p.cfg.StartRow,
		Last:  last,
	})
	if err = p.fail(report, "apply_main_template", err); err != nil {
		return report, err
	}
	report.Steps = append(report.Steps, StepResult{Step: "apply_main_template", Status: "executed"})

	finalTpl, err := p.store.Load(p.cfg.FinalSumTemplate)
	if err = p.fail(report, "load_final_sum_template", err); err != nil {
		return report, err
	}
	report.FinalSum, err = p.applier.ApplySummary(sheet, finalTpl, last)
	if err = p.fail(report, "apply_final_sum_template", err); err != nil {
		return report, err
	}
	report.Steps = append(report.Steps, StepResult{Step: "apply_final_sum_template", Status: "executed"})

	report.Issues, err = p.validator.Validate(sheet, formula.RowRange{First: p.cfg.StartRow, Last: last + 1}, wb)
	if err = p.fail(report, "validate_references", err); err != nil {
		return report, err
	}
	report.Steps = append(report.Steps, StepResult{Step: "validate_references", Status: "executed"})

	if err = p.fail(report, "mark_recalculation", wb.MarkFullCalcOnLoad()); err != nil {
		return report, err
	}
	if err = p.fail(report, "save_deliverable", wb.Save()); err != nil {
		return report, err
	}

	report.Status = formula.StatusCompleted
	if len(report.Issues) > 0 ||
		(report.Main != nil && report.Main.Status == formula.StatusCompletedWithWarnings) ||
		(report.FinalSum != nil && report.FinalSum.Status == formula.StatusCompletedWithWarnings) {
		report.Status = formula.StatusCompletedWithWarnings
	}

	p.logger.Info("Pipeline run finished",
		zap.String("session_id", sessionID),
		zap.String("status", string(report.Status)),
		zap.String("output", outputPath),
		zap.Int("data_rows", last-p.cfg.StartRow+1),
		zap.Int("reference_issues", len(report.Issues)))
	return report, nil
}

// fail records a step failure on the report and passes the error through.
func (p *Pipeline) fail(report *JobReport, step string, err error) error {
	if err == nil {
		return nil
	}
	report.Status = formula.StatusFailed
	report.FailedStep = step
	report.Error = err.Error()
	report.Steps = append(report.Steps, StepResult{Step: step, Status: "failed", Message: err.Error()})
	p.logger.Error("Pipeline step failed",
		zap.String("session_id", report.SessionID),
		zap.String("step", step),
		zap.Error(err))
	return fmt.Errorf("%s: %w", step, err)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open template workbook: %w", err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create working copy: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy template workbook: %w", err)
	}
	return out.Close()
}
