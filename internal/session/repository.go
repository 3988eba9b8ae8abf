package session

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/roadworks/boq-generator/internal/storage"
	"go.uber.org/zap"
)

// Repository persists sessions and their uploaded files in sqlite.
type Repository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRepository creates a new session repository.
func NewRepository(db *sql.DB, logger *zap.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new session record.
func (r *Repository) Create(s *Session) error {
	now := time.Now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = s.CreatedAt
	if s.Status == "" {
		s.Status = StatusUploaded
	}

	query := `
		INSERT INTO sessions (session_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`
	if _, err := r.db.Exec(query, s.ID, s.Status, s.CreatedAt, s.UpdatedAt); err != nil {
		r.logger.Error("Failed to create session",
			zap.String("session_id", s.ID),
			zap.Error(err))
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetByID loads a session and its files.
func (r *Repository) GetByID(id string) (*Session, error) {
	query := `
		SELECT session_id, status, created_at, updated_at,
		       started_at, completed_at, output_path, failed_step, error_message
		FROM sessions WHERE session_id = ?
	`
	s := &Session{}
	var startedAt, completedAt sql.NullTime
	var outputPath, failedStep, errorMessage sql.NullString

	err := r.db.QueryRow(query, id).Scan(
		&s.ID, &s.Status, &s.CreatedAt, &s.UpdatedAt,
		&startedAt, &completedAt, &outputPath, &failedStep, &errorMessage,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}

	if startedAt.Valid {
		s.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		s.CompletedAt = &completedAt.Time
	}
	s.OutputPath = outputPath.String
	s.FailedStep = failedStep.String
	s.ErrorMessage = errorMessage.String

	files, err := r.filesBySession(id)
	if err != nil {
		return nil, err
	}
	s.Files = files
	return s, nil
}

// List returns all sessions, newest first, without their file lists.
func (r *Repository) List() ([]Session, error) {
	query := `
		SELECT session_id, status, created_at, updated_at,
		       output_path, failed_step, error_message
		FROM sessions ORDER BY created_at DESC
	`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		var outputPath, failedStep, errorMessage sql.NullString
		if err := rows.Scan(&s.ID, &s.Status, &s.CreatedAt, &s.UpdatedAt,
			&outputPath, &failedStep, &errorMessage); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		s.OutputPath = outputPath.String
		s.FailedStep = failedStep.String
		s.ErrorMessage = errorMessage.String
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// AddFile records an uploaded input file.
func (r *Repository) AddFile(f *File) error {
	if f.UploadedAt.IsZero() {
		f.UploadedAt = time.Now()
	}

	query := `
		INSERT INTO session_files (session_id, category, filename, file_path, file_size, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.Exec(query, f.SessionID, f.Category, f.Filename, f.Path, f.Size, f.UploadedAt)
	if err != nil {
		r.logger.Error("Failed to record session file",
			zap.String("session_id", f.SessionID),
			zap.String("filename", f.Filename),
			zap.Error(err))
		return fmt.Errorf("failed to record session file: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	f.ID = id

	return r.touch(f.SessionID)
}

// SetExecuting marks the session as running and stamps its start time.
func (r *Repository) SetExecuting(id string) error {
	now := time.Now()
	return r.update(id, `
		UPDATE sessions
		SET status = ?, started_at = ?, failed_step = NULL, error_message = NULL, updated_at = ?
		WHERE session_id = ?
	`, StatusExecuting, now, now, id)
}

// SetCompleted records a finished run and its deliverable path.
func (r *Repository) SetCompleted(id string, status Status, outputPath string) error {
	now := time.Now()
	return r.update(id, `
		UPDATE sessions
		SET status = ?, output_path = ?, completed_at = ?, updated_at = ?
		WHERE session_id = ?
	`, status, outputPath, now, now, id)
}

// SetError records where and why a run failed.
func (r *Repository) SetError(id, failedStep, message string) error {
	now := time.Now()
	return r.update(id, `
		UPDATE sessions
		SET status = ?, failed_step = ?, error_message = ?, completed_at = ?, updated_at = ?
		WHERE session_id = ?
	`, StatusFailed, failedStep, message, now, now, id)
}

// UpdateStatus sets only the lifecycle state.
func (r *Repository) UpdateStatus(id string, status Status) error {
	return r.update(id, `
		UPDATE sessions SET status = ?, updated_at = ? WHERE session_id = ?
	`, status, time.Now(), id)
}

func (r *Repository) update(id, query string, args ...interface{}) error {
	result, err := r.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update session %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update of session %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

func (r *Repository) touch(id string) error {
	return r.update(id, `
		UPDATE sessions SET updated_at = ? WHERE session_id = ?
	`, time.Now(), id)
}

func (r *Repository) filesBySession(id string) ([]File, error) {
	query := `
		SELECT id, session_id, category, filename, file_path, file_size, uploaded_at
		FROM session_files WHERE session_id = ? ORDER BY uploaded_at, id
	`
	rows, err := r.db.Query(query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session files: %w", err)
	}
	defer rows.Close()

	var files []File
	for rows.Next() {
		var f File
		var category string
		if err := rows.Scan(&f.ID, &f.SessionID, &category, &f.Filename, &f.Path, &f.Size, &f.UploadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session file: %w", err)
		}
		f.Category = storage.Category(category)
		files = append(files, f)
	}
	return files, rows.Err()
}
