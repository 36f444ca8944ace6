package database

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// ErrMigrationChanged is returned when an applied migration file no longer matches its recorded checksum
var ErrMigrationChanged = errors.New("applied migration has been modified")

// Migration is one versioned schema file, e.g. 002_exports.sql
type Migration struct {
	Version  int
	Name     string
	SQL      string
	Checksum string // sha256 of SQL
}

// MigrationState reports whether a migration is applied
type MigrationState struct {
	Version int    `json:"version"`
	Name    string `json:"name"`
	Applied bool   `json:"applied"`
}

// Migrator applies schema files in version order, each in its own transaction
type Migrator struct {
	db     *DB
	logger *zap.Logger
}

// NewMigrator creates a new migrator
func NewMigrator(db *DB, logger *zap.Logger) *Migrator {
	return &Migrator{db: db, logger: logger}
}

// RunMigrations applies pending migrations from a directory on disk
func (m *Migrator) RunMigrations(migrationsDir string) error {
	m.logger.Info("Starting database migrations", zap.String("dir", migrationsDir))
	return m.RunMigrationsFS(os.DirFS(migrationsDir))
}

// RunMigrationsFS applies pending migrations found in fsys, e.g. the embedded schema.
// Applied migrations whose content changed abort the run with ErrMigrationChanged.
func (m *Migrator) RunMigrationsFS(fsys fs.FS) error {
	ctx := context.Background()

	pending, err := m.plan(ctx, fsys)
	if err != nil {
		return err
	}

	for _, migration := range pending {
		m.logger.Info("Applying migration",
			zap.Int("version", migration.Version),
			zap.String("name", migration.Name))

		if err := m.apply(ctx, migration); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", migration.Version, err)
		}
	}

	m.logger.Info("Database migrations completed", zap.Int("applied", len(pending)))
	return nil
}

// Status lists every migration in fsys with its applied state
func (m *Migrator) Status(fsys fs.FS) ([]MigrationState, error) {
	ctx := context.Background()
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}
	migrations, err := LoadMigrations(fsys)
	if err != nil {
		return nil, err
	}

	states := make([]MigrationState, 0, len(migrations))
	for _, mg := range migrations {
		_, ok := applied[mg.Version]
		states = append(states, MigrationState{Version: mg.Version, Name: mg.Name, Applied: ok})
	}
	return states, nil
}

// plan returns the migrations still to apply after checking applied ones for drift
func (m *Migrator) plan(ctx context.Context, fsys fs.FS) ([]Migration, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}
	migrations, err := LoadMigrations(fsys)
	if err != nil {
		return nil, err
	}

	var pending []Migration
	for _, mg := range migrations {
		recorded, ok := applied[mg.Version]
		if !ok {
			pending = append(pending, mg)
			continue
		}
		// rows written before checksums were recorded carry an empty value
		if recorded != "" && recorded != mg.Checksum {
			return nil, fmt.Errorf("%w: %03d_%s", ErrMigrationChanged, mg.Version, mg.Name)
		}
	}
	return pending, nil
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			checksum TEXT NOT NULL DEFAULT '',
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// applied maps version to recorded checksum
func (m *Migrator) applied(ctx context.Context) (map[int]string, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT version, checksum FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}
	defer rows.Close()

	out := make(map[int]string)
	for rows.Next() {
		var version int
		var checksum string
		if err := rows.Scan(&version, &checksum); err != nil {
			return nil, err
		}
		out[version] = checksum
	}
	return out, rows.Err()
}

func (m *Migrator) apply(ctx context.Context, migration Migration) error {
	return m.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			return fmt.Errorf("failed to execute migration SQL: %w", err)
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, name, checksum) VALUES (?, ?, ?)",
			migration.Version, migration.Name, migration.Checksum)
		if err != nil {
			return fmt.Errorf("failed to record migration: %w", err)
		}
		return nil
	})
}

// LoadMigrations reads NNN_name.sql files from the root of fsys, sorted by version
func LoadMigrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}

	var migrations []Migration
	seen := make(map[int]string)
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}

		version, name, err := parseMigrationName(entry.Name())
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("duplicate migration version %d (%s, %s)", version, prev, entry.Name())
		}
		seen[version] = entry.Name()

		content, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", entry.Name(), err)
		}
		sum := sha256.Sum256(content)

		migrations = append(migrations, Migration{
			Version:  version,
			Name:     name,
			SQL:      string(content),
			Checksum: hex.EncodeToString(sum[:]),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// parseMigrationName splits "001_initial_schema.sql" into 1 and "initial_schema"
func parseMigrationName(filename string) (int, string, error) {
	base := strings.TrimSuffix(filename, ".sql")
	prefix, name, _ := strings.Cut(base, "_")
	version, err := strconv.Atoi(prefix)
	if err != nil || version <= 0 {
		return 0, "", fmt.Errorf("invalid migration filename format: %s", filename)
	}
	return version, name, nil
}
