package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/roadworks/boq-generator/internal/formula"
	"github.com/roadworks/boq-generator/internal/processor"
	"github.com/roadworks/boq-generator/internal/session"
	"github.com/roadworks/boq-generator/internal/storage"
	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned by Enqueue when the job queue has no room.
	ErrQueueFull = errors.New("calculation queue is full")
	// ErrNotRunning is returned by Enqueue before Start or after Stop.
	ErrNotRunning = errors.New("calculation worker is not running")
)

// Runner executes the population pipeline for one session.
type Runner interface {
	Run(ctx context.Context, sessionID, sessionDir string, inputs map[storage.Category]string) (*processor.JobReport, error)
}

// Sessions is the slice of the session manager the worker needs.
type Sessions interface {
	Get(id string) (*session.Session, error)
	SessionDir(id string) string
	CompleteExecution(id string, status session.Status, outputPath string) error
	FailExecution(id, failedStep, message string) error
}

// CalculationWorker drains the calculation queue one session at a time: it
// runs the pipeline against the session's uploaded inputs and records the
// outcome on the session record. Reports of finished runs stay available
// in memory until the worker stops.
type CalculationWorker struct {
	queue      chan string
	runner     Runner
	sessions   Sessions
	jobTimeout time.Duration
	logger     *zap.Logger

	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	isRunning bool
	reports   map[string]*processor.JobReport
	processed int
	failed    int
}

func NewCalculationWorker(runner Runner, sessions Sessions, queueSize int, jobTimeout time.Duration, logger *zap.Logger) *CalculationWorker {
	if queueSize <= 0 {
		queueSize = 16
	}
	if jobTimeout <= 0 {
		jobTimeout = 5 * time.Minute
	}
	return &CalculationWorker{
		queue:      make(chan string, queueSize),
		runner:     runner,
		sessions:   sessions,
		jobTimeout: jobTimeout,
		logger:     logger,
		reports:    make(map[string]*processor.JobReport),
	}
}

func (w *CalculationWorker) Name() string { return "calculation" }

// Start launches the queue consumer loop.
func (w *CalculationWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return fmt.Errorf("worker %s already running", w.Name())
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.isRunning = true
	w.mu.Unlock()

	w.logger.Info("calculation worker started",
		zap.Int("queue_size", cap(w.queue)),
		zap.Duration("job_timeout", w.jobTimeout))

	go w.loop()
	return nil
}

// Stop cancels the consumer loop and waits for an in-flight job to finish.
func (w *CalculationWorker) Stop() {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return
	}
	w.isRunning = false
	done := w.done
	w.mu.Unlock()

	w.cancel()
	<-done

	w.mu.RLock()
	defer w.mu.RUnlock()
	w.logger.Info("calculation worker stopped",
		zap.Int("processed", w.processed),
		zap.Int("failed", w.failed))
}

// Enqueue schedules a session for calculation without blocking.
func (w *CalculationWorker) Enqueue(sessionID string) error {
	w.mu.RLock()
	running := w.isRunning
	w.mu.RUnlock()
	if !running {
		return ErrNotRunning
	}

	select {
	case w.queue <- sessionID:
		return nil
	default:
		return ErrQueueFull
	}
}

// Report returns the pipeline report of a finished run, if one exists.
func (w *CalculationWorker) Report(sessionID string) (*processor.JobReport, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	r, ok := w.reports[sessionID]
	return r, ok
}

func (w *CalculationWorker) loop() {
	defer close(w.done)

	for {
		select {
		case <-w.ctx.Done():
			return
		case sessionID := <-w.queue:
			w.execute(sessionID)
		}
	}
}

func (w *CalculationWorker) execute(sessionID string) {
	logger := w.logger.With(zap.String("session_id", sessionID))

	sess, err := w.sessions.Get(sessionID)
	if err != nil {
		logger.Error("session lookup failed before calculation", zap.Error(err))
		w.recordFailure(sessionID, "load_session", err)
		return
	}

	ctx, cancel := context.WithTimeout(w.ctx, w.jobTimeout)
	defer cancel()

	started := time.Now()
	report, runErr := w.runner.Run(ctx, sessionID, w.sessions.SessionDir(sessionID), sess.Inputs())

	w.mu.Lock()
	if report != nil {
		w.reports[sessionID] = report
	}
	w.mu.Unlock()

	if runErr != nil {
		step, msg := "pipeline", runErr.Error()
		if report != nil && report.FailedStep != "" {
			step, msg = report.FailedStep, report.Error
		}
		logger.Error("calculation failed",
			zap.String("step", step),
			zap.Duration("elapsed", time.Since(started)),
			zap.Error(runErr))
		w.recordFailure(sessionID, step, errors.New(msg))
		return
	}

	status := session.StatusCompleted
	if report.Status == formula.StatusCompletedWithWarnings {
		status = session.StatusCompletedWithWarnings
	}
	if err := w.sessions.CompleteExecution(sessionID, status, report.OutputPath); err != nil {
		logger.Error("failed to record calculation result", zap.Error(err))
		return
	}

	w.mu.Lock()
	w.processed++
	w.mu.Unlock()

	logger.Info("calculation finished",
		zap.String("status", string(status)),
		zap.String("output", report.OutputPath),
		zap.Duration("elapsed", time.Since(started)))
}

func (w *CalculationWorker) recordFailure(sessionID, step string, cause error) {
	w.mu.Lock()
	w.failed++
	w.mu.Unlock()

	if err := w.sessions.FailExecution(sessionID, step, cause.Error()); err != nil {
		w.logger.Error("failed to record calculation failure",
			zap.String("session_id", sessionID),
			zap.Error(err))
	}
}
