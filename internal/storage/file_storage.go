package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// SourceStorage reads approved document files from the source directory
type SourceStorage struct {
	baseDir string
	logger  *zap.Logger
}

// NewSourceStorage creates a new SourceStorage
func NewSourceStorage(baseDir string, logger *zap.Logger) *SourceStorage {
	return &SourceStorage{
		baseDir: baseDir,
		logger:  logger,
	}
}

// Resolve maps a stored source path to a file inside baseDir. Relative paths are joined to baseDir.
func (s *SourceStorage) Resolve(sourcePath string) (string, error) {
	if sourcePath == "" {
		return "", fmt.Errorf("empty source path")
	}
	fullPath := sourcePath
	if !filepath.IsAbs(fullPath) {
		fullPath = filepath.Join(s.baseDir, sourcePath)
	}
	if err := s.ValidatePath(fullPath); err != nil {
		return "", err
	}
	return fullPath, nil
}

// Open opens a source file for reading
func (s *SourceStorage) Open(sourcePath string) (io.ReadCloser, error) {
	fullPath, err := s.Resolve(sourcePath)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fullPath)
	if err != nil {
		s.logger.Error("Failed to open source file",
			zap.String("path", fullPath),
			zap.Error(err))
		return nil, fmt.Errorf("failed to open source file: %w", err)
	}
	return f, nil
}

// ValidatePath checks that the path is safe and within baseDir
func (s *SourceStorage) ValidatePath(fullPath string) error {
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
