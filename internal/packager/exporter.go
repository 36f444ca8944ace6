// Package packager assembles checksummed submission archives for a study.
package packager

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/garyjia/submission-packager/internal/bookmark"
	"github.com/garyjia/submission-packager/internal/compliance"
	"github.com/garyjia/submission-packager/internal/ectd"
	"github.com/garyjia/submission-packager/internal/models"
	"github.com/garyjia/submission-packager/internal/outline"
	"github.com/garyjia/submission-packager/internal/readiness"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StudyRepository supplies the study, its readiness inputs and the files selected for export
type StudyRepository interface {
	readiness.StudySource
	ListPackageFiles(ctx context.Context, studyID int64) ([]*models.PackageFile, error)
}

// ReadinessChecker computes the export gate
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context, studyID int64) (*readiness.Status, error)
}

// ArchiveStore persists finished archives keyed by (studyID, packageID)
type ArchiveStore interface {
	GetPackageZipPath(studyID int64, packageID string) (string, error)
	ExportExists(studyID int64, packageID string) bool
	WriteArchive(studyID int64, packageID string, write func(io.Writer) error) (string, int64, error)
	WriteManifest(manifest *models.PackageManifest) error
	LockStudy(ctx context.Context, studyID int64) (func(), error)
}

// SourceFiles gives access to the approved source documents
type SourceFiles interface {
	Resolve(sourcePath string) (string, error)
	Open(sourcePath string) (io.ReadCloser, error)
}

// ExportRegistry records finished exports
type ExportRegistry interface {
	RecordExport(ctx context.Context, record *models.ExportRecord) error
}

// Options configures the exporter
type Options struct {
	Bookmarks              bookmark.Config
	Compliance             compliance.Options
	ChecksumAlgorithm      string // leaf checksum written to index.xml, md5 or sha256
	SkipChecksumValidation bool
	NavigationFont         string // UTF-8 TrueType font for navigation.pdf; empty uses Helvetica (cp1252)
}

// DefaultOptions returns the default bookmark limits and content check options
func DefaultOptions() Options {
	return Options{
		Bookmarks:         bookmark.DefaultConfig(),
		Compliance:        compliance.DefaultOptions(),
		ChecksumAlgorithm: ectd.ChecksumMD5,
	}
}

// ExportOptions customizes one export call
type ExportOptions struct {
	// Force builds the archive even when the study is not ready
	Force bool `json:"force"`
}

// Validation summarizes the checks run while assembling the archive
type Validation struct {
	XMLValid      bool           `json:"xml_valid"`
	ErrorCount    int            `json:"error_count"`
	WarningCount  int            `json:"warning_count"`
	PackageReport *PackageReport `json:"package_report"`
}

// ExportResult is created once per export call
type ExportResult struct {
	Success    bool                     `json:"success"`
	PackageID  string                   `json:"package_id,omitempty"`
	ZipPath    string                   `json:"-"`
	ZipSize    int64                    `json:"zip_size"`
	FileCount  int                      `json:"file_count"`
	Manifest   []models.ManifestEntry   `json:"manifest,omitempty"`
	Validation *Validation              `json:"validation,omitempty"`
	Readiness  *readiness.Status        `json:"readiness,omitempty"`
	Bookmarks  *outline.InjectionResult `json:"bookmarks,omitempty"`
	Forced     bool                     `json:"forced"`
	Error      string                   `json:"error,omitempty"`
}

// Exporter orchestrates readiness, manifest, validation, navigation and archive steps
type Exporter struct {
	repo      StudyRepository
	readiness ReadinessChecker
	store     ArchiveStore
	sources   SourceFiles
	registry  ExportRegistry
	injector  *outline.Injector
	checker   *compliance.Checker
	opts      Options
	logger    *zap.Logger

	now   func() time.Time
	newID func() string
}

// NewExporter creates a new Exporter. registry may be nil.
func NewExporter(
	repo StudyRepository,
	gate ReadinessChecker,
	store ArchiveStore,
	sources SourceFiles,
	registry ExportRegistry,
	opts Options,
	logger *zap.Logger,
) *Exporter {
	return &Exporter{
		repo:      repo,
		readiness: gate,
		store:     store,
		sources:   sources,
		registry:  registry,
		injector:  outline.NewInjector(logger),
		checker:   compliance.NewChecker(opts.Compliance, logger),
		opts:      opts,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// GetPackageZipPath resolves the archive location for a finished export
func (e *Exporter) GetPackageZipPath(studyID int64, packageID string) (string, error) {
	return e.store.GetPackageZipPath(studyID, packageID)
}

// ExportExists reports whether a finished archive exists
func (e *Exporter) ExportExists(studyID int64, packageID string) bool {
	return e.store.ExportExists(studyID, packageID)
}

// ExportPackage builds, validates and stores a new archive for the study.
// Every call produces a fresh package id. The returned error is also reflected in result.Error.
func (e *Exporter) ExportPackage(ctx context.Context, studyID int64, opts ExportOptions) (*ExportResult, error) {
	result := &ExportResult{Forced: opts.Force}

	e.logger.Info("Starting package export",
		zap.Int64("study_id", studyID),
		zap.Bool("force", opts.Force))

	unlock, err := e.store.LockStudy(ctx, studyID)
	if err != nil {
		return e.fail(result, studyID, "Failed to lock study", err)
	}
	defer unlock()

	// Step 1: Readiness gate
	status, err := e.readiness.CheckReadiness(ctx, studyID)
	if err != nil {
		return e.fail(result, studyID, "Failed to compute readiness", err)
	}
	result.Readiness = status
	if !status.Ready && !opts.Force {
		err := fmt.Errorf("%w: %s", ErrNotReady, strings.Join(status.Reasons(), "; "))
		e.logger.Warn("Export blocked by readiness gate",
			zap.Int64("study_id", studyID),
			zap.Strings("reasons", status.Reasons()))
		result.Error = err.Error()
		return result, err
	}

	// Step 2: Load inputs and build the manifest
	study, err := e.repo.GetStudy(ctx, studyID)
	if err != nil {
		return e.fail(result, studyID, "Failed to load study", err)
	}
	if study == nil {
		return e.fail(result, studyID, "Study disappeared during export", readiness.ErrStudyNotFound)
	}
	files, err := e.repo.ListPackageFiles(ctx, studyID)
	if err != nil {
		return e.fail(result, studyID, "Failed to list package files", err)
	}
	if len(files) == 0 {
		return e.fail(result, studyID, "Nothing to export", ErrNoFiles)
	}
	if err := validateTargets(files); err != nil {
		return e.fail(result, studyID, "Invalid package file set", err)
	}

	entries, err := e.buildManifest(files)
	if err != nil {
		return e.fail(result, studyID, "Failed to build manifest", err)
	}
	result.Manifest = entries
	result.FileCount = len(entries)

	packageID := e.newID()
	generatedAt := e.now().UTC()

	e.logger.Info("Manifest built",
		zap.Int64("study_id", studyID),
		zap.String("package_id", packageID),
		zap.Int("file_count", len(entries)))

	// Step 3: Render and validate the manifest documents, then check every file
	indexXML, err := ectd.RenderIndex(ectd.BuildIndexData(study, entries, generatedAt, e.opts.ChecksumAlgorithm))
	if err != nil {
		return e.fail(result, studyID, "Failed to render index.xml", err)
	}
	regionalXML, err := ectd.RenderRegional(ectd.BuildRegionalData(study))
	if err != nil {
		return e.fail(result, studyID, "Failed to render us-regional.xml", err)
	}
	xmlResult := ectd.ValidateEctdXML(indexXML, regionalXML, ectd.IndexOptions{
		SkipChecksumValidation: e.opts.SkipChecksumValidation,
		PackageFiles:           files,
	})
	fileReports := e.checkFiles(files)

	// Step 4: Navigation document with the normalized bookmark tree
	tree := bookmark.NormalizeTree(bookmark.BuildSectionBookmarks(files), e.opts.Bookmarks)
	navigation, injection, err := e.buildNavigation(study, tree, generatedAt)
	result.Bookmarks = injection
	if err != nil {
		return e.fail(result, studyID, "Failed to build navigation document", err)
	}

	report := NewPackageReport(study, packageID, generatedAt, xmlResult, fileReports, injection)
	reportJSON, err := report.JSON()
	if err != nil {
		return e.fail(result, studyID, "Failed to encode package report", err)
	}
	reportXLSX, err := report.XLSX()
	if err != nil {
		return e.fail(result, studyID, "Failed to build package report workbook", err)
	}

	manifest := &models.PackageManifest{
		StudyID:     studyID,
		PackageID:   packageID,
		Sequence:    study.Sequence,
		GeneratedAt: generatedAt,
		TotalFiles:  len(entries),
		Files:       entries,
	}

	// Step 5: Serialize the archive
	contents := &archiveContents{
		sequence:    sequenceFolder(study.Sequence),
		indexXML:    indexXML,
		regionalXML: regionalXML,
		navigation:  navigation,
		manifest:    manifest,
		reportJSON:  reportJSON,
		reportXLSX:  reportXLSX,
		files:       files,
		generatedAt: generatedAt,
	}
	zipPath, zipSize, err := e.store.WriteArchive(studyID, packageID, func(w io.Writer) error {
		return e.writeArchive(w, contents)
	})
	if err != nil {
		return e.fail(result, studyID, "Failed to write archive", err)
	}

	if err := e.store.WriteManifest(manifest); err != nil {
		e.logger.Warn("Failed to store manifest sidecar",
			zap.Int64("study_id", studyID),
			zap.String("package_id", packageID),
			zap.Error(err))
	}

	// Step 6: Result
	result.Success = true
	result.PackageID = packageID
	result.ZipPath = zipPath
	result.ZipSize = zipSize
	result.Validation = &Validation{
		XMLValid:      xmlResult.CombinedValid,
		ErrorCount:    xmlResult.TotalErrors,
		WarningCount:  xmlResult.TotalWarnings,
		PackageReport: report,
	}

	e.record(ctx, result, studyID)

	e.logger.Info("Package exported successfully",
		zap.Int64("study_id", studyID),
		zap.String("package_id", packageID),
		zap.String("zip_path", zipPath),
		zap.Int64("zip_size", zipSize),
		zap.Int("file_count", result.FileCount),
		zap.Bool("xml_valid", xmlResult.CombinedValid),
		zap.Int("content_failures", report.Summary.FailedFiles))

	return result, nil
}

func (e *Exporter) checkFiles(files []*models.PackageFile) []*compliance.FileReport {
	reports := make([]*compliance.FileReport, 0, len(files))
	for _, f := range files {
		path, err := e.sources.Resolve(f.SourcePath)
		if err != nil {
			// the naming check still runs against the target name
			path = f.SourcePath
		}
		reports = append(reports, e.checker.CheckFile(path, f.TargetPath))
	}
	return reports
}

func (e *Exporter) record(ctx context.Context, result *ExportResult, studyID int64) {
	if e.registry == nil {
		return
	}
	record := &models.ExportRecord{
		StudyID:   studyID,
		PackageID: result.PackageID,
		ZipPath:   result.ZipPath,
		ZipSize:   result.ZipSize,
		FileCount: result.FileCount,
		XMLValid:  result.Validation.XMLValid,
		Forced:    result.Forced,
		CreatedAt: e.now().UTC(),
	}
	if err := e.registry.RecordExport(ctx, record); err != nil {
		e.logger.Warn("Failed to record export",
			zap.Int64("study_id", studyID),
			zap.String("package_id", result.PackageID),
			zap.Error(err))
	}
}

func (e *Exporter) fail(result *ExportResult, studyID int64, msg string, err error) (*ExportResult, error) {
	e.logger.Error(msg,
		zap.Int64("study_id", studyID),
		zap.Error(err))
	result.Success = false
	result.Error = err.Error()
	return result, err
}

// validateTargets rejects file sets that cannot be laid out in one sequence folder
func validateTargets(files []*models.PackageFile) error {
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		target := strings.TrimPrefix(f.TargetPath, "./")
		switch {
		case target == "",
			strings.Contains(target, `\`),
			strings.HasPrefix(target, "/"),
			target == ".." || strings.HasPrefix(target, "../") || strings.Contains(target, "/../"):
			return fmt.Errorf("%w: %q", ErrInvalidTargetPath, f.TargetPath)
		case reservedTargets[target]:
			return fmt.Errorf("%w: %q is reserved", ErrInvalidTargetPath, f.TargetPath)
		case seen[target]:
			return fmt.Errorf("%w: %q", ErrDuplicateTarget, f.TargetPath)
		}
		seen[target] = true
	}
	return nil
}
