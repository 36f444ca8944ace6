package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/garyjia/submission-packager/internal/models"
	"github.com/gofrs/flock"
	"github.com/google/renameio"
	"go.uber.org/zap"
)

var (
	ErrInvalidPackageID = errors.New("invalid package id")
	ErrPackageNotFound  = errors.New("package not found")
	ErrStudyLocked      = errors.New("another export is running for this study")
)

const (
	archiveExt  = ".zip"
	manifestExt = ".manifest.json"

	studyLockTimeout = 30 * time.Second
	studyLockRetry   = 200 * time.Millisecond
)

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9\-_]`)

// ExportInfo describes one archive found on disk
type ExportInfo struct {
	PackageID string    `json:"package_id"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// PackageStore keeps finished archives under exports/study-{id}/{packageId}.zip
type PackageStore struct {
	baseDir     string
	lockExports bool
	logger      *zap.Logger
}

// NewPackageStore creates a new PackageStore
func NewPackageStore(baseDir string, lockExports bool, logger *zap.Logger) *PackageStore {
	return &PackageStore{
		baseDir:     baseDir,
		lockExports: lockExports,
		logger:      logger,
	}
}

// StudyFolder returns the folder holding a study's archives. It is not created.
func (s *PackageStore) StudyFolder(studyID int64) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("study-%d", studyID))
}

// GetPackageZipPath resolves the archive location for (studyID, packageID)
func (s *PackageStore) GetPackageZipPath(studyID int64, packageID string) (string, error) {
	if packageID == "" || SanitizeName(packageID) != packageID {
		return "", fmt.Errorf("%w: %q", ErrInvalidPackageID, packageID)
	}
	return filepath.Join(s.StudyFolder(studyID), packageID+archiveExt), nil
}

// ExportExists checks whether a finished archive is on disk
func (s *PackageStore) ExportExists(studyID int64, packageID string) bool {
	path, err := s.GetPackageZipPath(studyID, packageID)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// ListExports returns a study's archives, newest first
func (s *PackageStore) ListExports(studyID int64) ([]ExportInfo, error) {
	entries, err := os.ReadDir(s.StudyFolder(studyID))
	if os.IsNotExist(err) {
		return []ExportInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}

	exports := []ExportInfo{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, archiveExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		exports = append(exports, ExportInfo{
			PackageID: strings.TrimSuffix(name, archiveExt),
			Path:      filepath.Join(s.StudyFolder(studyID), name),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}
	sort.SliceStable(exports, func(i, j int) bool {
		return exports[i].CreatedAt.After(exports[j].CreatedAt)
	})
	return exports, nil
}

// WriteArchive streams an archive through write and renames it into place only when write succeeds.
// A failed or abandoned write never leaves a file at the final path.
func (s *PackageStore) WriteArchive(studyID int64, packageID string, write func(io.Writer) error) (string, int64, error) {
	path, err := s.GetPackageZipPath(studyID, packageID)
	if err != nil {
		return "", 0, err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		s.logger.Error("Failed to create study export folder",
			zap.Int64("study_id", studyID),
			zap.String("folder_path", dir),
			zap.Error(err))
		return "", 0, fmt.Errorf("failed to create folder: %w", err)
	}

	pending, err := renameio.TempFile(dir, path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temporary archive: %w", err)
	}
	defer pending.Cleanup()

	if err := write(pending); err != nil {
		return "", 0, fmt.Errorf("failed to write archive: %w", err)
	}
	if err := pending.Chmod(0644); err != nil {
		return "", 0, fmt.Errorf("failed to set archive permissions: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return "", 0, fmt.Errorf("failed to finalize archive: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to stat archive: %w", err)
	}

	s.logger.Debug("Archive written",
		zap.Int64("study_id", studyID),
		zap.String("package_id", packageID),
		zap.String("path", path),
		zap.Int64("size", info.Size()))

	return path, info.Size(), nil
}

// WriteManifest stores the manifest next to its archive
func (s *PackageStore) WriteManifest(manifest *models.PackageManifest) error {
	path, err := s.manifestPath(manifest.StudyID, manifest.PackageID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create folder: %w", err)
	}
	if err := renameio.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// ReadManifest loads the manifest stored by WriteManifest
func (s *PackageStore) ReadManifest(studyID int64, packageID string) (*models.PackageManifest, error) {
	path, err := s.manifestPath(studyID, packageID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrPackageNotFound, packageID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var manifest models.PackageManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &manifest, nil
}

// DeletePackage removes an archive and its manifest. Missing packages are not an error.
func (s *PackageStore) DeletePackage(studyID int64, packageID string) error {
	zipPath, err := s.GetPackageZipPath(studyID, packageID)
	if err != nil {
		return err
	}
	manifestPath, _ := s.manifestPath(studyID, packageID)

	for _, p := range []string{zipPath, manifestPath} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			s.logger.Error("Failed to delete package file",
				zap.Int64("study_id", studyID),
				zap.String("path", p),
				zap.Error(err))
			return fmt.Errorf("failed to delete package: %w", err)
		}
	}

	s.logger.Debug("Deleted package",
		zap.Int64("study_id", studyID),
		zap.String("package_id", packageID))
	return nil
}

// LockStudy serializes exports of one study across processes when locking is enabled.
// The returned func releases the lock and is safe to call when locking is disabled.
func (s *PackageStore) LockStudy(ctx context.Context, studyID int64) (func(), error) {
	if !s.lockExports {
		return func() {}, nil
	}
	dir := s.StudyFolder(studyID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return func() {}, fmt.Errorf("failed to create folder: %w", err)
	}

	fl := flock.New(filepath.Join(dir, ".export.lock"))
	ctx, cancel := context.WithTimeout(ctx, studyLockTimeout)
	unlock := func() {
		cancel()
		_ = fl.Unlock()
	}
	locked, err := fl.TryLockContext(ctx, studyLockRetry)
	if err != nil {
		unlock()
		if errors.Is(err, context.DeadlineExceeded) {
			return func() {}, ErrStudyLocked
		}
		return func() {}, fmt.Errorf("failed to lock study: %w", err)
	}
	if !locked {
		unlock()
		return func() {}, ErrStudyLocked
	}
	return unlock, nil
}

func (s *PackageStore) manifestPath(studyID int64, packageID string) (string, error) {
	zipPath, err := s.GetPackageZipPath(studyID, packageID)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(zipPath, archiveExt) + manifestExt, nil
}

// SanitizeName returns a filesystem-safe version of the name.
// Path separators, parent references and anything outside [a-zA-Z0-9-_] are removed.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "")
	name = strings.ReplaceAll(name, "\\", "")
	return unsafeNameChars.ReplaceAllString(name, "")
}
