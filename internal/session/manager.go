package session

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/roadworks/boq-generator/internal/storage"
	"go.uber.org/zap"
)

// ErrUnsupportedFile means an upload is not a spreadsheet the pipeline can
// read.
var ErrUnsupportedFile = errors.New("unsupported file type")

// Manager ties the session records to their on-disk folders: it creates
// sessions, stores uploads into the session folder, and drives status
// transitions around pipeline runs.
type Manager struct {
	repo    *Repository
	folders *storage.FolderManager
	files   storage.FileStorage
	logger  *zap.Logger
	now     func() time.Time
}

// NewManager creates a new session manager.
func NewManager(repo *Repository, folders *storage.FolderManager, files storage.FileStorage, logger *zap.Logger) *Manager {
	return &Manager{
		repo:    repo,
		folders: folders,
		files:   files,
		logger:  logger,
		now:     time.Now,
	}
}

// Create starts a new session: a timestamped ID, its folder, and a session
// record in the uploaded state.
func (m *Manager) Create() (*Session, error) {
	id := m.now().Format("20060102_150405")
	// Same-second creations need distinct IDs.
	for i := 2; m.folders.FolderExists(id); i++ {
		id = fmt.Sprintf("%s_%d", m.now().Format("20060102_150405"), i)
	}

	if _, err := m.folders.CreateSessionFolder(id); err != nil {
		return nil, err
	}

	s := &Session{ID: id, Status: StatusUploaded}
	if err := m.repo.Create(s); err != nil {
		return nil, err
	}

	m.logger.Info("Session created", zap.String("session_id", id))
	return s, nil
}

// Get loads a session with its files.
func (m *Manager) Get(id string) (*Session, error) {
	return m.repo.GetByID(id)
}

// List returns all sessions, newest first.
func (m *Manager) List() ([]Session, error) {
	return m.repo.List()
}

// SaveUpload stores one uploaded workbook in the session folder, categorizes
// it by filename, and records it on the session.
func (m *Manager) SaveUpload(sessionID, filename string, content []byte) (*File, error) {
	s, err := m.repo.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	if len(s.Files) >= MaxFilesPerSession {
		return nil, fmt.Errorf("%w: session %s already holds %d files",
			ErrTooManyFiles, sessionID, len(s.Files))
	}

	// Strip any client-supplied path components.
	filename = filepath.Base(filename)
	if !storage.AllowedFile(filename) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, filename)
	}

	path := filepath.Join(m.folders.SessionFolderPath(sessionID), filename)
	if err := m.files.SaveFile(path, content); err != nil {
		return nil, err
	}

	f := &File{
		SessionID: sessionID,
		Category:  storage.Categorize(filename),
		Filename:  filename,
		Path:      path,
		Size:      int64(len(content)),
	}
	if err := m.repo.AddFile(f); err != nil {
		return nil, err
	}

	m.logger.Info("Input file uploaded",
		zap.String("session_id", sessionID),
		zap.String("filename", filename),
		zap.String("category", string(f.Category)),
		zap.Int64("size", f.Size))
	return f, nil
}

// BeginExecution validates that the session can run and marks it executing.
func (m *Manager) BeginExecution(sessionID string) (*Session, error) {
	s, err := m.repo.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	if len(s.Files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoInputFiles, sessionID)
	}
	if err := m.repo.SetExecuting(sessionID); err != nil {
		return nil, err
	}
	s.Status = StatusExecuting
	return s, nil
}

// CompleteExecution records the deliverable and final status of a run.
func (m *Manager) CompleteExecution(sessionID string, status Status, outputPath string) error {
	return m.repo.SetCompleted(sessionID, status, outputPath)
}

// FailExecution records which step broke the run.
func (m *Manager) FailExecution(sessionID, failedStep, message string) error {
	return m.repo.SetError(sessionID, failedStep, message)
}

// SessionDir returns the session's folder path.
func (m *Manager) SessionDir(sessionID string) string {
	return m.folders.SessionFolderPath(sessionID)
}
