package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "data/submissions.db", cfg.Database.Path)
	assert.Equal(t, "data/exports", cfg.Storage.ExportDir)
	assert.False(t, cfg.Storage.LockExports)
	assert.Equal(t, 4, cfg.Bookmarks.MaxDepth)
	assert.Equal(t, 128, cfg.Bookmarks.MaxTitleLength)
	assert.Equal(t, "...", cfg.Bookmarks.TruncationSuffix)
	assert.Equal(t, "md5", cfg.Validation.ChecksumAlgorithm)
	assert.Equal(t, 64, cfg.Validation.FileNaming.MaxLength)
	assert.True(t, cfg.Validation.FileNaming.RequireLowercase)
	assert.Empty(t, cfg.Validation.NavigationFont)
	assert.Equal(t, "info", cfg.Logger.Level)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  write_timeout: 2m
storage:
  export_dir: /srv/exports
  lock_exports: true
bookmarks:
  max_depth: 2
validation:
  checksum_algorithm: sha256
  file_naming:
    max_length: 40
    require_lowercase: false
  allow_external_links: true
  navigation_font: /usr/share/fonts/DejaVuSans.ttf
`)
	t.Setenv("PACKAGER_LOGGER_LEVEL", "debug")
	t.Setenv("SOURCE_DIR", "/srv/documents")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 2*time.Minute, cfg.Server.WriteTimeout)
	assert.Equal(t, "/srv/exports", cfg.Storage.ExportDir)
	assert.Equal(t, "/srv/documents", cfg.Storage.SourceDir)
	assert.True(t, cfg.Storage.LockExports)
	assert.Equal(t, 2, cfg.Bookmarks.MaxDepth)
	assert.Equal(t, "debug", cfg.Logger.Level)

	opts := cfg.PackagerOptions()
	assert.Equal(t, "sha256", opts.ChecksumAlgorithm)
	assert.Equal(t, 2, opts.Bookmarks.MaxDepth)
	assert.Equal(t, 40, opts.Compliance.Naming.MaxLength)
	assert.False(t, opts.Compliance.Naming.RequireLowercase)
	assert.True(t, opts.Compliance.Links.AllowExternal)
	assert.Equal(t, "/usr/share/fonts/DejaVuSans.ttf", opts.NavigationFont)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	path := writeConfig(t, "validation:\n  checksum_algorithm: crc32\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum_algorithm")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		message string
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"empty database path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"empty export dir", func(c *Config) { c.Storage.ExportDir = "" }, "storage.export_dir"},
		{"empty source dir", func(c *Config) { c.Storage.SourceDir = "" }, "storage.source_dir"},
		{"zero depth", func(c *Config) { c.Bookmarks.MaxDepth = 0 }, "bookmarks.max_depth"},
		{"title shorter than suffix", func(c *Config) { c.Bookmarks.MaxTitleLength = 2 }, "bookmarks.max_title_length"},
		{"zero name length", func(c *Config) { c.Validation.FileNaming.MaxLength = 0 }, "file_naming.max_length"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestDatabaseSettings(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	db := cfg.DatabaseSettings()
	assert.Equal(t, cfg.Database.Path, db.Path)
	assert.Equal(t, 25, db.MaxOpenConns)
	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
}
