package http

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/roadworks/boq-generator/internal/processor"
	"github.com/roadworks/boq-generator/internal/session"
	"github.com/roadworks/boq-generator/internal/worker"
)

// SessionService is the slice of the session manager the handlers need.
type SessionService interface {
	Create() (*session.Session, error)
	Get(id string) (*session.Session, error)
	List() ([]session.Session, error)
	SaveUpload(sessionID, filename string, content []byte) (*session.File, error)
	BeginExecution(sessionID string) (*session.Session, error)
}

// CalculationService schedules pipeline runs and serves their reports.
type CalculationService interface {
	Enqueue(sessionID string) error
	Report(sessionID string) (*processor.JobReport, bool)
}

// Handlers contains all HTTP request handlers.
type Handlers struct {
	sessions       SessionService
	calculations   CalculationService
	maxUploadBytes int64
	logger         *zap.Logger
}

func NewHandlers(sessions SessionService, calculations CalculationService, maxUploadBytes int64, logger *zap.Logger) *Handlers {
	return &Handlers{
		sessions:       sessions,
		calculations:   calculations,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// Response is the standard JSON envelope.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// FileResponse describes one uploaded input file.
type FileResponse struct {
	Category   string `json:"category"`
	Filename   string `json:"filename"`
	Size       int64  `json:"size"`
	UploadedAt string `json:"uploaded_at"`
}

// SessionResponse describes a session in API responses.
type SessionResponse struct {
	SessionID    string         `json:"session_id"`
	Status       string         `json:"status"`
	CreatedAt    string         `json:"created_at"`
	UpdatedAt    string         `json:"updated_at"`
	StartedAt    *string        `json:"started_at,omitempty"`
	CompletedAt  *string        `json:"completed_at,omitempty"`
	OutputFile   string         `json:"output_file,omitempty"`
	FailedStep   string         `json:"failed_step,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Files        []FileResponse `json:"files,omitempty"`
}

// StatusResponse pairs the session record with the pipeline report of its
// latest run, when one is available.
type StatusResponse struct {
	SessionResponse
	Report *processor.JobReport `json:"report,omitempty"`
}

// HealthCheck handles GET /health.
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// UploadInputs handles POST /api/upload-inputs. It creates a session and
// stores every file of the multipart "files" field in it.
func (h *Handlers) UploadInputs(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		h.fail(c, http.StatusBadRequest, "invalid multipart form")
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		h.fail(c, http.StatusBadRequest, "no files provided")
		return
	}
	if len(files) > session.MaxFilesPerSession {
		h.fail(c, http.StatusBadRequest, "too many files in one session")
		return
	}

	sess, err := h.sessions.Create()
	if err != nil {
		h.logger.Error("failed to create session", zap.Error(err))
		h.fail(c, http.StatusInternalServerError, "failed to create session")
		return
	}

	for _, fh := range files {
		if err := h.storeUpload(sess.ID, fh); err != nil {
			h.uploadError(c, fh.Filename, err)
			return
		}
	}

	sess, err = h.sessions.Get(sess.ID)
	if err != nil {
		h.logger.Error("failed to reload session", zap.String("session_id", sess.ID), zap.Error(err))
		h.fail(c, http.StatusInternalServerError, "failed to load session")
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    toSessionResponse(sess),
		Message: "input files uploaded",
	})
}

// UploadToSession handles POST /api/sessions/:id/upload. It adds one file
// from the multipart "file" field to an existing session.
func (h *Handlers) UploadToSession(c *gin.Context) {
	id := c.Param("id")

	fh, err := c.FormFile("file")
	if err != nil {
		h.fail(c, http.StatusBadRequest, "missing file field")
		return
	}

	if err := h.storeUpload(id, fh); err != nil {
		h.uploadError(c, fh.Filename, err)
		return
	}

	sess, err := h.sessions.Get(id)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "failed to load session")
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toSessionResponse(sess),
		Message: "file uploaded",
	})
}

// ExecuteCalculationRequest is the body of POST /api/execute-calculation.
type ExecuteCalculationRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

// ExecuteCalculation handles POST /api/execute-calculation. It marks the
// session as executing and hands it to the calculation worker.
func (h *Handlers) ExecuteCalculation(c *gin.Context) {
	var req ExecuteCalculationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, "session_id is required")
		return
	}

	sess, err := h.sessions.BeginExecution(req.SessionID)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrSessionNotFound):
			h.fail(c, http.StatusNotFound, "session not found")
		case errors.Is(err, session.ErrNoInputFiles):
			h.fail(c, http.StatusBadRequest, "session has no input files")
		default:
			h.logger.Error("failed to start execution", zap.String("session_id", req.SessionID), zap.Error(err))
			h.fail(c, http.StatusInternalServerError, "failed to start execution")
		}
		return
	}

	if err := h.calculations.Enqueue(req.SessionID); err != nil {
		h.logger.Error("failed to enqueue calculation", zap.String("session_id", req.SessionID), zap.Error(err))
		if errors.Is(err, worker.ErrQueueFull) {
			h.fail(c, http.StatusServiceUnavailable, "calculation queue is full, retry later")
			return
		}
		h.fail(c, http.StatusInternalServerError, "failed to schedule calculation")
		return
	}

	c.JSON(http.StatusAccepted, Response{
		Success: true,
		Data:    toSessionResponse(sess),
		Message: "calculation started",
	})
}

// ListSessions handles GET /api/sessions.
func (h *Handlers) ListSessions(c *gin.Context) {
	sessions, err := h.sessions.List()
	if err != nil {
		h.logger.Error("failed to list sessions", zap.Error(err))
		h.fail(c, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	responses := make([]SessionResponse, 0, len(sessions))
	for i := range sessions {
		responses = append(responses, toSessionResponse(&sessions[i]))
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: responses})
}

// SessionStatus handles GET /api/sessions/:id/status.
func (h *Handlers) SessionStatus(c *gin.Context) {
	id := c.Param("id")

	sess, err := h.sessions.Get(id)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			h.fail(c, http.StatusNotFound, "session not found")
			return
		}
		h.logger.Error("failed to load session", zap.String("session_id", id), zap.Error(err))
		h.fail(c, http.StatusInternalServerError, "failed to load session")
		return
	}

	status := StatusResponse{SessionResponse: toSessionResponse(sess)}
	if report, ok := h.calculations.Report(id); ok {
		status.Report = report
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: status})
}

// DownloadResult handles GET /api/sessions/:id/result. It streams the
// populated workbook once the calculation has finished.
func (h *Handlers) DownloadResult(c *gin.Context) {
	id := c.Param("id")

	sess, err := h.sessions.Get(id)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			h.fail(c, http.StatusNotFound, "session not found")
			return
		}
		h.fail(c, http.StatusInternalServerError, "failed to load session")
		return
	}

	if sess.OutputPath == "" {
		h.fail(c, http.StatusConflict, "calculation has not produced a result yet")
		return
	}
	if _, err := os.Stat(sess.OutputPath); err != nil {
		h.logger.Error("result file missing on disk",
			zap.String("session_id", id),
			zap.String("path", sess.OutputPath))
		h.fail(c, http.StatusNotFound, "result file not found")
		return
	}

	c.FileAttachment(sess.OutputPath, filepath.Base(sess.OutputPath))
}

func (h *Handlers) storeUpload(sessionID string, fh *multipart.FileHeader) error {
	if h.maxUploadBytes > 0 && fh.Size > h.maxUploadBytes {
		return errUploadTooLarge
	}

	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return err
	}

	_, err = h.sessions.SaveUpload(sessionID, fh.Filename, content)
	return err
}

var errUploadTooLarge = errors.New("uploaded file exceeds the size limit")

func (h *Handlers) uploadError(c *gin.Context, filename string, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		h.fail(c, http.StatusNotFound, "session not found")
	case errors.Is(err, session.ErrUnsupportedFile):
		h.fail(c, http.StatusBadRequest, "unsupported file type: "+filename)
	case errors.Is(err, session.ErrTooManyFiles):
		h.fail(c, http.StatusBadRequest, "session already holds the maximum number of files")
	case errors.Is(err, errUploadTooLarge):
		h.fail(c, http.StatusRequestEntityTooLarge, "file too large: "+filename)
	default:
		h.logger.Error("failed to store upload", zap.String("filename", filename), zap.Error(err))
		h.fail(c, http.StatusInternalServerError, "failed to store upload")
	}
}

func (h *Handlers) fail(c *gin.Context, status int, message string) {
	c.JSON(status, Response{Success: false, Error: message})
}

func toSessionResponse(sess *session.Session) SessionResponse {
	resp := SessionResponse{
		SessionID:    sess.ID,
		Status:       string(sess.Status),
		CreatedAt:    sess.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    sess.UpdatedAt.Format(time.RFC3339),
		OutputFile:   filepath.Base(sess.OutputPath),
		FailedStep:   sess.FailedStep,
		ErrorMessage: sess.ErrorMessage,
	}
	if sess.OutputPath == "" {
		resp.OutputFile = ""
	}
	if sess.StartedAt != nil {
		v := sess.StartedAt.Format(time.RFC3339)
		resp.StartedAt = &v
	}
	if sess.CompletedAt != nil {
		v := sess.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &v
	}
	for _, f := range sess.Files {
		resp.Files = append(resp.Files, FileResponse{
			Category:   string(f.Category),
			Filename:   f.Filename,
			Size:       f.Size,
			UploadedAt: f.UploadedAt.Format(time.RFC3339),
		})
	}
	return resp
}
