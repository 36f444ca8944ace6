package repository

import (
	"context"
	"database/sql"
	"fmt"
	"path"
	"strings"

	"github.com/garyjia/submission-packager/internal/models"
	"go.uber.org/zap"
)

// StudyRepository reads the study data the packaging engine evaluates.
// It implements readiness.StudySource and packager.StudyRepository.
type StudyRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStudyRepository creates a new study repository
func NewStudyRepository(db *sql.DB, logger *zap.Logger) *StudyRepository {
	return &StudyRepository{
		db:     db,
		logger: logger,
	}
}

// GetStudy returns the study, or nil when it does not exist
func (r *StudyRepository) GetStudy(ctx context.Context, studyID int64) (*models.Study, error) {
	query := `
		SELECT id, study_number, title, sponsor, application_number, submission_type, sequence, template_id
		FROM studies
		WHERE id = ?
	`

	study := &models.Study{}
	err := r.db.QueryRowContext(ctx, query, studyID).Scan(
		&study.ID,
		&study.StudyNumber,
		&study.Title,
		&study.Sponsor,
		&study.ApplicationNumber,
		&study.SubmissionType,
		&study.Sequence,
		&study.TemplateID,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get study", zap.Int64("study_id", studyID), zap.Error(err))
		return nil, fmt.Errorf("failed to get study: %w", err)
	}
	return study, nil
}

// ListStudies returns every study ordered by id
func (r *StudyRepository) ListStudies(ctx context.Context) ([]*models.Study, error) {
	query := `
		SELECT id, study_number, title, sponsor, application_number, submission_type, sequence, template_id
		FROM studies
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list studies: %w", err)
	}
	defer rows.Close()

	studies := []*models.Study{}
	for rows.Next() {
		study := &models.Study{}
		if err := rows.Scan(
			&study.ID,
			&study.StudyNumber,
			&study.Title,
			&study.Sponsor,
			&study.ApplicationNumber,
			&study.SubmissionType,
			&study.Sequence,
			&study.TemplateID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan study: %w", err)
		}
		studies = append(studies, study)
	}
	return studies, rows.Err()
}

// ListTemplateNodes returns the nodes of a template ordered by id
func (r *StudyRepository) ListTemplateNodes(ctx context.Context, templateID int64) ([]*models.TemplateNode, error) {
	query := `
		SELECT id, code, title, required
		FROM template_nodes
		WHERE template_id = ?
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, templateID)
	if err != nil {
		r.logger.Error("Failed to list template nodes", zap.Int64("template_id", templateID), zap.Error(err))
		return nil, fmt.Errorf("failed to list template nodes: %w", err)
	}
	defer rows.Close()

	nodes := []*models.TemplateNode{}
	for rows.Next() {
		node := &models.TemplateNode{}
		if err := rows.Scan(&node.ID, &node.Code, &node.Title, &node.Required); err != nil {
			return nil, fmt.Errorf("failed to scan template node: %w", err)
		}
		nodes = append(nodes, node)
	}
	return nodes, rows.Err()
}

// ListDocuments returns the study's documents with their node code and title
func (r *StudyRepository) ListDocuments(ctx context.Context, studyID int64) ([]*models.StudyDocument, error) {
	query := `
		SELECT d.id, d.node_id, n.code, n.title, d.file_name, d.status
		FROM documents d
		JOIN template_nodes n ON n.id = d.node_id
		WHERE d.study_id = ?
		ORDER BY d.id
	`

	rows, err := r.db.QueryContext(ctx, query, studyID)
	if err != nil {
		r.logger.Error("Failed to list documents", zap.Int64("study_id", studyID), zap.Error(err))
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	documents := []*models.StudyDocument{}
	for rows.Next() {
		doc := &models.StudyDocument{}
		if err := rows.Scan(&doc.ID, &doc.NodeID, &doc.NodeCode, &doc.NodeTitle, &doc.FileName, &doc.Status); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		documents = append(documents, doc)
	}
	return documents, rows.Err()
}

// CountBlockingValidationResults counts unresolved ERROR validation results
func (r *StudyRepository) CountBlockingValidationResults(ctx context.Context, studyID int64) (int, error) {
	query := `SELECT COUNT(*) FROM validation_results WHERE study_id = ? AND severity = ? AND resolved = 0`

	var count int
	if err := r.db.QueryRowContext(ctx, query, studyID, models.SeverityError).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count validation results: %w", err)
	}
	return count, nil
}

// CountBlockingAnnotations counts open review comments marked as blocking
func (r *StudyRepository) CountBlockingAnnotations(ctx context.Context, studyID int64) (int, error) {
	query := `SELECT COUNT(*) FROM annotations WHERE study_id = ? AND blocking = 1 AND resolved = 0`

	var count int
	if err := r.db.QueryRowContext(ctx, query, studyID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count annotations: %w", err)
	}
	return count, nil
}

// ListPackageFiles snapshots the approved and published documents as package files.
// The target path is the node's target folder joined with the file name.
func (r *StudyRepository) ListPackageFiles(ctx context.Context, studyID int64) ([]*models.PackageFile, error) {
	query := `
		SELECT d.id, d.file_path, d.file_name, d.file_size, d.version, n.code, n.title, n.target_folder
		FROM documents d
		JOIN template_nodes n ON n.id = d.node_id
		WHERE d.study_id = ? AND d.status IN (?, ?)
		ORDER BY d.id
	`

	rows, err := r.db.QueryContext(ctx, query, studyID, models.DocumentStatusApproved, models.DocumentStatusPublished)
	if err != nil {
		r.logger.Error("Failed to list package files", zap.Int64("study_id", studyID), zap.Error(err))
		return nil, fmt.Errorf("failed to list package files: %w", err)
	}
	defer rows.Close()

	files := []*models.PackageFile{}
	for rows.Next() {
		f := &models.PackageFile{}
		var folder string
		if err := rows.Scan(&f.SourceDocumentID, &f.SourcePath, &f.FileName, &f.FileSize, &f.Version,
			&f.NodeCode, &f.NodeTitle, &folder); err != nil {
			return nil, fmt.Errorf("failed to scan package file: %w", err)
		}
		f.TargetPath = targetPath(folder, f.FileName)
		files = append(files, f)
	}
	return files, rows.Err()
}

func targetPath(folder, fileName string) string {
	folder = strings.Trim(strings.ReplaceAll(folder, `\`, "/"), "/")
	if folder == "" {
		return fileName
	}
	return path.Join(folder, fileName)
}
