// Package container wires the packaging components together and owns their lifecycle.
package container

import (
	"fmt"
	"os"

	"github.com/garyjia/submission-packager/internal/config"
	"github.com/garyjia/submission-packager/internal/packager"
	"github.com/garyjia/submission-packager/internal/readiness"
	"github.com/garyjia/submission-packager/internal/repository"
	"github.com/garyjia/submission-packager/internal/storage"
	"github.com/garyjia/submission-packager/migrations"
	"github.com/garyjia/submission-packager/pkg/database"
	"go.uber.org/zap"
)

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Study  *repository.StudyRepository
	Export *repository.ExportRepository
}

// StorageBundle holds storage-related components.
type StorageBundle struct {
	Sources  *storage.SourceStorage
	Packages *storage.PackageStore
}

// ServiceBundle groups the packaging services.
type ServiceBundle struct {
	Readiness *readiness.Checker
	Exporter  *packager.Exporter
}

// ProvideDatabase opens the database and applies pending migrations.
// An empty MigrationsDir applies the schema embedded in the binary.
func ProvideDatabase(cfg *config.Config, logger *zap.Logger) (*database.DB, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(cfg.DatabaseSettings(), logger)
	if err != nil {
		return nil, err
	}

	migrator := database.NewMigrator(db, logger)
	if cfg.Database.MigrationsDir != "" {
		err = migrator.RunMigrations(cfg.Database.MigrationsDir)
	} else {
		err = migrator.RunMigrationsFS(migrations.FS)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// ProvideRepositories creates all repository implementations.
func ProvideRepositories(db *database.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}

	return &RepositoryBundle{
		Study:  repository.NewStudyRepository(db.DB, logger),
		Export: repository.NewExportRepository(db.DB, logger),
	}, nil
}

// ProvideStorage creates the source and export stores, creating their directories.
func ProvideStorage(cfg *config.StorageConfig, logger *zap.Logger) (*StorageBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config is required")
	}

	for _, dir := range []string{cfg.SourceDir, cfg.ExportDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return &StorageBundle{
		Sources:  storage.NewSourceStorage(cfg.SourceDir, logger),
		Packages: storage.NewPackageStore(cfg.ExportDir, cfg.LockExports, logger),
	}, nil
}

// ProvideServices creates the readiness gate and the exporter.
func ProvideServices(cfg *config.Config, repos *RepositoryBundle, stores *StorageBundle, logger *zap.Logger) (*ServiceBundle, error) {
	if repos == nil || stores == nil {
		return nil, fmt.Errorf("repositories and storage are required")
	}

	gate := readiness.NewChecker(repos.Study, logger)
	exporter := packager.NewExporter(
		repos.Study,
		gate,
		stores.Packages,
		stores.Sources,
		repos.Export,
		cfg.PackagerOptions(),
		logger,
	)

	return &ServiceBundle{
		Readiness: gate,
		Exporter:  exporter,
	}, nil
}
