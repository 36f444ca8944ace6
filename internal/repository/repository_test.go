package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/garyjia/submission-packager/internal/models"
	"github.com/garyjia/submission-packager/internal/readiness"
	"github.com/garyjia/submission-packager/migrations"
	"github.com/garyjia/submission-packager/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	logger := zap.NewNop()
	db, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "repo.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).RunMigrationsFS(migrations.FS))
	return db
}

// seedStudy inserts one study with two required nodes, one optional node and three documents
func seedStudy(t *testing.T, db *database.DB) int64 {
	t.Helper()

	exec := func(query string, args ...any) int64 {
		res, err := db.Exec(query, args...)
		require.NoError(t, err)
		id, err := res.LastInsertId()
		require.NoError(t, err)
		return id
	}

	studyID := exec(`INSERT INTO studies (study_number, title, sponsor, application_number, submission_type, sequence, template_id)
		VALUES ('ACME-301', 'Phase III', 'Acme Pharma', 'IND 123456', 'original', '0001', 9)`)
	synopsis := exec(`INSERT INTO template_nodes (template_id, code, title, target_folder, required)
		VALUES (9, '16.1', 'Synopsis', 'm5/53-clin-stud-rep/', 1)`)
	listings := exec(`INSERT INTO template_nodes (template_id, code, title, target_folder, required)
		VALUES (9, '16.2', 'Listings', '', 1)`)
	exec(`INSERT INTO template_nodes (template_id, code, title, required) VALUES (9, '16.3', 'Appendices', 0)`)
	exec(`INSERT INTO template_nodes (template_id, code, title, required) VALUES (8, '1.1', 'Other template', 1)`)

	exec(`INSERT INTO documents (study_id, node_id, file_name, file_path, file_size, version, status)
		VALUES (?, ?, 'synopsis.pdf', 'docs/synopsis.pdf', 1200, 2, 'APPROVED')`, studyID, synopsis)
	exec(`INSERT INTO documents (study_id, node_id, file_name, file_path, file_size, version, status)
		VALUES (?, ?, 'listings.pdf', 'docs/listings.pdf', 800, 1, 'PUBLISHED')`, studyID, listings)
	exec(`INSERT INTO documents (study_id, node_id, file_name, file_path, status)
		VALUES (?, ?, 'draft.pdf', 'docs/draft.pdf', 'DRAFT')`, studyID, listings)

	return studyID
}

func TestStudyRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStudyRepository(db.DB, zap.NewNop())
	studyID := seedStudy(t, db)
	ctx := context.Background()

	t.Run("gets a study", func(t *testing.T) {
		study, err := repo.GetStudy(ctx, studyID)
		require.NoError(t, err)
		require.NotNil(t, study)
		assert.Equal(t, "ACME-301", study.StudyNumber)
		assert.Equal(t, "0001", study.Sequence)
		assert.Equal(t, int64(9), study.TemplateID)
	})

	t.Run("returns nil for an unknown study", func(t *testing.T) {
		study, err := repo.GetStudy(ctx, 999)
		require.NoError(t, err)
		assert.Nil(t, study)
	})

	t.Run("lists studies", func(t *testing.T) {
		studies, err := repo.ListStudies(ctx)
		require.NoError(t, err)
		assert.Len(t, studies, 1)
	})

	t.Run("lists the template nodes of one template", func(t *testing.T) {
		nodes, err := repo.ListTemplateNodes(ctx, 9)
		require.NoError(t, err)
		require.Len(t, nodes, 3)
		assert.True(t, nodes[0].Required)
		assert.False(t, nodes[2].Required)
	})

	t.Run("lists documents with node details", func(t *testing.T) {
		docs, err := repo.ListDocuments(ctx, studyID)
		require.NoError(t, err)
		require.Len(t, docs, 3)
		assert.Equal(t, "16.2", docs[2].NodeCode)
		assert.Equal(t, models.DocumentStatusDraft, docs[2].Status)
	})

	t.Run("lists only approved documents as package files", func(t *testing.T) {
		files, err := repo.ListPackageFiles(ctx, studyID)
		require.NoError(t, err)
		require.Len(t, files, 2)

		assert.Equal(t, "m5/53-clin-stud-rep/synopsis.pdf", files[0].TargetPath)
		assert.Equal(t, "docs/synopsis.pdf", files[0].SourcePath)
		assert.Equal(t, 2, files[0].Version)
		assert.Equal(t, int64(1200), files[0].FileSize)
		assert.Equal(t, "listings.pdf", files[1].TargetPath)
	})

	t.Run("counts only blocking conditions", func(t *testing.T) {
		_, err := db.Exec(`INSERT INTO validation_results (study_id, rule, severity, resolved) VALUES
			(?, 'pdf-version', 'ERROR', 0), (?, 'fonts', 'ERROR', 1), (?, 'bookmarks', 'WARNING', 0)`,
			studyID, studyID, studyID)
		require.NoError(t, err)
		_, err = db.Exec(`INSERT INTO annotations (study_id, comment, blocking, resolved) VALUES
			(?, 'fix table 3', 1, 0), (?, 'typo', 0, 0), (?, 'done', 1, 1)`,
			studyID, studyID, studyID)
		require.NoError(t, err)

		validations, err := repo.CountBlockingValidationResults(ctx, studyID)
		require.NoError(t, err)
		assert.Equal(t, 1, validations)

		annotations, err := repo.CountBlockingAnnotations(ctx, studyID)
		require.NoError(t, err)
		assert.Equal(t, 1, annotations)
	})

	t.Run("feeds the readiness gate", func(t *testing.T) {
		status, err := readiness.NewChecker(repo, zap.NewNop()).CheckReadiness(ctx, studyID)
		require.NoError(t, err)

		assert.False(t, status.Ready)
		assert.Empty(t, status.MissingRequired)
		require.Len(t, status.PendingApproval, 1)
		assert.Equal(t, "draft.pdf", status.PendingApproval[0].FileName)
		assert.Equal(t, 2, status.TotalRequiredNodes)
	})
}

func TestExportRepository(t *testing.T) {
	db := setupTestDB(t)
	studyID := seedStudy(t, db)
	repo := NewExportRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	older := &models.ExportRecord{
		StudyID: studyID, PackageID: "pkg-old", ZipPath: "/exports/old.zip", ZipSize: 10, FileCount: 2,
		XMLValid: true, CreatedAt: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
	}
	newer := &models.ExportRecord{
		StudyID: studyID, PackageID: "pkg-new", ZipPath: "/exports/new.zip", ZipSize: 20, FileCount: 3,
		Forced: true, CreatedAt: time.Date(2026, 10, 2, 9, 0, 0, 0, time.UTC),
	}

	t.Run("records exports", func(t *testing.T) {
		require.NoError(t, repo.RecordExport(ctx, older))
		require.NoError(t, repo.RecordExport(ctx, newer))
		assert.Positive(t, older.ID)
		assert.Greater(t, newer.ID, older.ID)
	})

	t.Run("rejects duplicate package ids", func(t *testing.T) {
		dup := *older
		assert.Error(t, repo.RecordExport(ctx, &dup))
	})

	t.Run("gets by package id", func(t *testing.T) {
		record, err := repo.GetByPackageID(ctx, "pkg-new")
		require.NoError(t, err)
		require.NotNil(t, record)
		assert.True(t, record.Forced)
		assert.False(t, record.XMLValid)
		assert.Equal(t, 3, record.FileCount)
		assert.True(t, newer.CreatedAt.Equal(record.CreatedAt))

		missing, err := repo.GetByPackageID(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("lists newest first", func(t *testing.T) {
		records, err := repo.ListByStudy(ctx, studyID)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "pkg-new", records[0].PackageID)
		assert.Equal(t, "pkg-old", records[1].PackageID)
	})
}
