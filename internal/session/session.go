package session

import (
	"errors"
	"time"

	"github.com/roadworks/boq-generator/internal/storage"
)

var (
	// ErrSessionNotFound means no session exists with the given ID.
	ErrSessionNotFound = errors.New("session not found")

	// ErrNoInputFiles means execution was requested before any upload.
	ErrNoInputFiles = errors.New("session has no input files")

	// ErrTooManyFiles guards the per-session upload limit.
	ErrTooManyFiles = errors.New("too many files for session")
)

// MaxFilesPerSession bounds uploads: one workbook per input category.
const MaxFilesPerSession = 4

// Status is the lifecycle state of a session.
type Status string

const (
	StatusUploaded              Status = "uploaded"
	StatusExecuting             Status = "executing"
	StatusCompleted             Status = "completed"
	StatusCompletedWithWarnings Status = "completed_with_warnings"
	StatusFailed                Status = "failed"
)

// Session is one upload-and-calculate cycle. Its ID doubles as the session
// folder name.
type Session struct {
	ID           string     `json:"session_id"`
	Status       Status     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	OutputPath   string     `json:"output_path,omitempty"`
	FailedStep   string     `json:"failed_step,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	Files        []File     `json:"files,omitempty"`
}

// File is one uploaded input workbook.
type File struct {
	ID         int64            `json:"id"`
	SessionID  string           `json:"session_id"`
	Category   storage.Category `json:"category"`
	Filename   string           `json:"filename"`
	Path       string           `json:"path"`
	Size       int64            `json:"size"`
	UploadedAt time.Time        `json:"uploaded_at"`
}

// Inputs maps the session's files by category. When a category was uploaded
// more than once the most recent upload wins.
func (s *Session) Inputs() map[storage.Category]string {
	inputs := make(map[storage.Category]string, len(s.Files))
	for _, f := range s.Files {
		inputs[f.Category] = f.Path
	}
	return inputs
}

// Terminal reports whether the session reached a final state.
func (s *Session) Terminal() bool {
	switch s.Status {
	case StatusCompleted, StatusCompletedWithWarnings, StatusFailed:
		return true
	}
	return false
}
