package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/submission-packager/internal/models"
	"go.uber.org/zap"
)

// ExportRepository is the registry of finished archives
type ExportRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewExportRepository creates a new export repository
func NewExportRepository(db *sql.DB, logger *zap.Logger) *ExportRepository {
	return &ExportRepository{
		db:     db,
		logger: logger,
	}
}

// RecordExport inserts an export record and sets its ID
func (r *ExportRepository) RecordExport(ctx context.Context, record *models.ExportRecord) error {
	query := `
		INSERT INTO exports (
			study_id, package_id, zip_path, zip_size, file_count, xml_valid, forced, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	result, err := r.db.ExecContext(ctx, query,
		record.StudyID,
		record.PackageID,
		record.ZipPath,
		record.ZipSize,
		record.FileCount,
		record.XMLValid,
		record.Forced,
		record.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to record export",
			zap.Int64("study_id", record.StudyID),
			zap.String("package_id", record.PackageID),
			zap.Error(err))
		return fmt.Errorf("failed to record export: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	record.ID = id

	r.logger.Debug("Export recorded",
		zap.Int64("id", id),
		zap.Int64("study_id", record.StudyID),
		zap.String("package_id", record.PackageID))
	return nil
}

// GetByPackageID returns the export record, or nil when none exists
func (r *ExportRepository) GetByPackageID(ctx context.Context, packageID string) (*models.ExportRecord, error) {
	query := `
		SELECT id, study_id, package_id, zip_path, zip_size, file_count, xml_valid, forced, created_at
		FROM exports
		WHERE package_id = ?
	`

	record, err := scanExport(r.db.QueryRowContext(ctx, query, packageID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get export: %w", err)
	}
	return record, nil
}

// ListByStudy returns a study's exports, newest first
func (r *ExportRepository) ListByStudy(ctx context.Context, studyID int64) ([]*models.ExportRecord, error) {
	query := `
		SELECT id, study_id, package_id, zip_path, zip_size, file_count, xml_valid, forced, created_at
		FROM exports
		WHERE study_id = ?
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, studyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}
	defer rows.Close()

	records := []*models.ExportRecord{}
	for rows.Next() {
		record, err := scanExport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan export: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExport(row scanner) (*models.ExportRecord, error) {
	record := &models.ExportRecord{}
	err := row.Scan(
		&record.ID,
		&record.StudyID,
		&record.PackageID,
		&record.ZipPath,
		&record.ZipSize,
		&record.FileCount,
		&record.XMLValid,
		&record.Forced,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return record, nil
}
