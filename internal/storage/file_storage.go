package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Category classifies an uploaded input workbook by what it feeds.
type Category string

const (
	CategorySchedule   Category = "schedule"
	CategoryTCSInput   Category = "tcs_input"
	CategoryEmbankment Category = "embankment"
	CategoryPavement   Category = "pavement"
	CategoryUnknown    Category = "unknown"
)

// allowedExtensions are the upload formats the pipeline can read.
var allowedExtensions = map[string]bool{
	".xlsx": true,
	".xls":  true,
}

// Categorize maps an uploaded filename to its input category by keyword.
// "schedule" is checked before "tcs" because schedule files are usually
// named "TCS Schedule".
func Categorize(filename string) Category {
	name := strings.ToLower(filename)
	switch {
	case strings.Contains(name, "schedule"):
		return CategorySchedule
	case strings.Contains(name, "tcs"):
		return CategoryTCSInput
	case strings.Contains(name, "embankment"), strings.Contains(name, "emb"):
		return CategoryEmbankment
	case strings.Contains(name, "pavement"):
		return CategoryPavement
	default:
		return CategoryUnknown
	}
}

// AllowedFile reports whether the filename has an accepted spreadsheet
// extension.
func AllowedFile(filename string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// FileStorage defines the interface for file storage operations.
type FileStorage interface {
	// SaveFile writes content to the specified full path, creating parent
	// directories if needed.
	SaveFile(fullPath string, content []byte) error

	// ValidatePath checks path security (no traversal, within base).
	ValidatePath(fullPath string) error
}

// LocalFileStorage implements FileStorage for the local filesystem.
type LocalFileStorage struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalFileStorage creates a new LocalFileStorage rooted at baseDir.
func NewLocalFileStorage(baseDir string, logger *zap.Logger) *LocalFileStorage {
	return &LocalFileStorage{
		baseDir: baseDir,
		logger:  logger,
	}
}

// SaveFile writes content to the specified full path.
func (s *LocalFileStorage) SaveFile(fullPath string, content []byte) error {
	if err := s.ValidatePath(fullPath); err != nil {
		return err
	}

	parentDir := filepath.Dir(fullPath)
	if err := os.MkdirAll(parentDir, 0755); err != nil {
		s.logger.Error("Failed to create parent directories",
			zap.String("path", parentDir),
			zap.Error(err))
		return fmt.Errorf("failed to create directories: %w", err)
	}

	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		s.logger.Error("Failed to write file",
			zap.String("path", fullPath),
			zap.Error(err))
		return fmt.Errorf("failed to write file: %w", err)
	}

	s.logger.Debug("File saved",
		zap.String("path", fullPath),
		zap.Int("size", len(content)))

	return nil
}

// ValidatePath checks that the path is safe and within baseDir.
func (s *LocalFileStorage) ValidatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) && absPath != absBase {
		return fmt.Errorf("path escapes base directory: %s", fullPath)
	}

	return nil
}
