package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// FolderManager manages session-specific folders under the upload base dir.
type FolderManager struct {
	baseDir string
	logger  *zap.Logger
}

// NewFolderManager creates a new FolderManager.
func NewFolderManager(baseDir string, logger *zap.Logger) *FolderManager {
	return &FolderManager{
		baseDir: baseDir,
		logger:  logger,
	}
}

// CreateSessionFolder creates {baseDir}/{sessionID}/ and returns its path.
func (m *FolderManager) CreateSessionFolder(sessionID string) (string, error) {
	if sessionID == "" {
		return "", fmt.Errorf("cannot create folder: empty session ID")
	}

	// Sanitize the folder name to prevent path traversal
	safeName := m.SanitizeFolderName(sessionID)
	folderPath := filepath.Join(m.baseDir, safeName)

	if err := os.MkdirAll(folderPath, 0755); err != nil {
		m.logger.Error("Failed to create session folder",
			zap.String("session_id", sessionID),
			zap.String("folder_path", folderPath),
			zap.Error(err))
		return "", fmt.Errorf("failed to create folder: %w", err)
	}

	m.logger.Debug("Created session folder",
		zap.String("session_id", sessionID),
		zap.String("folder_path", folderPath))

	return folderPath, nil
}

// SessionFolderPath returns the path for a session folder without creating it.
func (m *FolderManager) SessionFolderPath(sessionID string) string {
	safeName := m.SanitizeFolderName(sessionID)
	return filepath.Join(m.baseDir, safeName)
}

// FolderExists checks whether the session folder already exists.
func (m *FolderManager) FolderExists(sessionID string) bool {
	info, err := os.Stat(m.SessionFolderPath(sessionID))
	if err != nil {
		return false
	}
	return info.IsDir()
}

// DeleteSessionFolder removes a session folder and all contents. Deleting a
// missing folder is not an error.
func (m *FolderManager) DeleteSessionFolder(sessionID string) error {
	folderPath := m.SessionFolderPath(sessionID)

	if _, err := os.Stat(folderPath); os.IsNotExist(err) {
		return nil
	}

	if err := os.RemoveAll(folderPath); err != nil {
		m.logger.Error("Failed to delete session folder",
			zap.String("session_id", sessionID),
			zap.String("folder_path", folderPath),
			zap.Error(err))
		return fmt.Errorf("failed to delete folder: %w", err)
	}

	m.logger.Debug("Deleted session folder",
		zap.String("session_id", sessionID),
		zap.String("folder_path", folderPath))

	return nil
}

// SanitizeFolderName returns a filesystem-safe version of the name.
// Removes path separators and special characters to prevent directory
// traversal.
func (m *FolderManager) SanitizeFolderName(name string) string {
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "")
	name = strings.ReplaceAll(name, "\\", "")

	re := regexp.MustCompile(`[^a-zA-Z0-9\-_]`)
	return re.ReplaceAllString(name, "")
}
