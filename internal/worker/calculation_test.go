package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/roadworks/boq-generator/internal/formula"
	"github.com/roadworks/boq-generator/internal/processor"
	"github.com/roadworks/boq-generator/internal/session"
	"github.com/roadworks/boq-generator/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockRunner struct {
	mu     sync.Mutex
	report *processor.JobReport
	err    error
	ran    chan string
}

func newMockRunner(report *processor.JobReport, err error) *mockRunner {
	return &mockRunner{report: report, err: err, ran: make(chan string, 8)}
}

func (m *mockRunner) Run(_ context.Context, sessionID, _ string, _ map[storage.Category]string) (*processor.JobReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ran <- sessionID
	return m.report, m.err
}

type mockSessions struct {
	mu         sync.Mutex
	session    *session.Session
	completed  chan session.Status
	failures   chan string
	outputPath string
}

func newMockSessions(id string) *mockSessions {
	return &mockSessions{
		session: &session.Session{
			ID:     id,
			Status: session.StatusExecuting,
			Files: []session.File{
				{Category: storage.CategorySchedule, Path: "/in/schedule.xlsx"},
			},
		},
		completed: make(chan session.Status, 8),
		failures:  make(chan string, 8),
	}
}

func (m *mockSessions) Get(id string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil || m.session.ID != id {
		return nil, session.ErrSessionNotFound
	}
	return m.session, nil
}

func (m *mockSessions) SessionDir(id string) string { return "/sessions/" + id }

func (m *mockSessions) CompleteExecution(_ string, status session.Status, outputPath string) error {
	m.mu.Lock()
	m.outputPath = outputPath
	m.mu.Unlock()
	m.completed <- status
	return nil
}

func (m *mockSessions) FailExecution(_, failedStep, _ string) error {
	m.failures <- failedStep
	return nil
}

func waitFor[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for worker")
		panic("unreachable")
	}
}

func TestCalculationWorker_Success(t *testing.T) {
	report := &processor.JobReport{
		SessionID:  "s1",
		OutputPath: "/sessions/s1/s1_main_carriageway.xlsx",
		Status:     formula.StatusCompleted,
	}
	runner := newMockRunner(report, nil)
	sessions := newMockSessions("s1")

	w := NewCalculationWorker(runner, sessions, 4, time.Minute, zap.NewNop())
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, w.Enqueue("s1"))

	assert.Equal(t, "s1", waitFor(t, runner.ran))
	assert.Equal(t, session.StatusCompleted, waitFor(t, sessions.completed))

	got, ok := w.Report("s1")
	require.True(t, ok)
	assert.Equal(t, report.OutputPath, got.OutputPath)
}

func TestCalculationWorker_WarningsPropagate(t *testing.T) {
	report := &processor.JobReport{
		SessionID:  "s1",
		OutputPath: "/out.xlsx",
		Status:     formula.StatusCompletedWithWarnings,
	}
	sessions := newMockSessions("s1")

	w := NewCalculationWorker(newMockRunner(report, nil), sessions, 4, time.Minute, zap.NewNop())
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, w.Enqueue("s1"))
	assert.Equal(t, session.StatusCompletedWithWarnings, waitFor(t, sessions.completed))
}

func TestCalculationWorker_FailureRecordsStep(t *testing.T) {
	report := &processor.JobReport{
		SessionID:  "s1",
		Status:     formula.StatusFailed,
		FailedStep: "embankment_heights",
		Error:      "embankment_heights: required input file missing",
	}
	sessions := newMockSessions("s1")

	w := NewCalculationWorker(newMockRunner(report, errors.New("boom")), sessions, 4, time.Minute, zap.NewNop())
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, w.Enqueue("s1"))
	assert.Equal(t, "embankment_heights", waitFor(t, sessions.failures))
}

func TestCalculationWorker_UnknownSession(t *testing.T) {
	sessions := newMockSessions("other")

	w := NewCalculationWorker(newMockRunner(nil, nil), sessions, 4, time.Minute, zap.NewNop())
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, w.Enqueue("missing"))
	assert.Equal(t, "load_session", waitFor(t, sessions.failures))
}

func TestCalculationWorker_Enqueue(t *testing.T) {
	w := NewCalculationWorker(newMockRunner(nil, nil), newMockSessions("s1"), 4, time.Minute, zap.NewNop())

	assert.ErrorIs(t, w.Enqueue("s1"), ErrNotRunning)

	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	assert.ErrorIs(t, w.Enqueue("s1"), ErrNotRunning)
}
