package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/garyjia/submission-packager/internal/bookmark"
	"github.com/garyjia/submission-packager/internal/compliance"
	"github.com/garyjia/submission-packager/internal/ectd"
	"github.com/garyjia/submission-packager/internal/packager"
	"github.com/garyjia/submission-packager/pkg/database"
	"github.com/garyjia/submission-packager/pkg/utils"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// EnvPrefix prefixes every environment override, e.g. PACKAGER_STORAGE_EXPORT_DIR
const EnvPrefix = "PACKAGER"

// Config holds all application configuration
type Config struct {
	Server     ServerConfig       `mapstructure:"server"`
	Database   DatabaseConfig     `mapstructure:"database"`
	Storage    StorageConfig      `mapstructure:"storage"`
	Bookmarks  bookmark.Config    `mapstructure:"bookmarks"`
	Validation ValidationConfig   `mapstructure:"validation"`
	Logger     utils.LoggerConfig `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"` // empty uses the embedded schema
}

// StorageConfig holds source and export locations
type StorageConfig struct {
	SourceDir   string `mapstructure:"source_dir"`
	ExportDir   string `mapstructure:"export_dir"`
	LockExports bool   `mapstructure:"lock_exports"`
}

// ValidationConfig holds manifest and content check options
type ValidationConfig struct {
	ChecksumAlgorithm      string                   `mapstructure:"checksum_algorithm"`
	SkipChecksumValidation bool                     `mapstructure:"skip_checksum_validation"`
	FileNaming             compliance.NamingOptions `mapstructure:"file_naming"`
	AllowExternalLinks     bool                     `mapstructure:"allow_external_links"`
	NavigationFont         string                   `mapstructure:"navigation_font"`
}

// Load loads configuration from an optional .env file, the config file and environment variables.
// An empty configPath uses defaults and environment only.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Override with environment variables
	if err := bindEnvVars(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv exports variables from path without overriding the real environment
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)

	// Database defaults
	v.SetDefault("database.path", "data/submissions.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.migrations_dir", "")

	// Storage defaults
	v.SetDefault("storage.source_dir", "data/documents")
	v.SetDefault("storage.export_dir", "data/exports")
	v.SetDefault("storage.lock_exports", false)

	// Bookmark defaults
	bm := bookmark.DefaultConfig()
	v.SetDefault("bookmarks.max_depth", bm.MaxDepth)
	v.SetDefault("bookmarks.max_title_length", bm.MaxTitleLength)
	v.SetDefault("bookmarks.truncation_suffix", bm.TruncationSuffix)

	// Validation defaults
	naming := compliance.DefaultNamingOptions()
	v.SetDefault("validation.checksum_algorithm", ectd.ChecksumMD5)
	v.SetDefault("validation.skip_checksum_validation", false)
	v.SetDefault("validation.file_naming.max_length", naming.MaxLength)
	v.SetDefault("validation.file_naming.require_lowercase", naming.RequireLowercase)
	v.SetDefault("validation.allow_external_links", false)
	v.SetDefault("validation.navigation_font", "")

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds the unprefixed deployment variables
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string]string{
		"database.path":      "DATABASE_PATH",
		"storage.source_dir": "SOURCE_DIR",
		"storage.export_dir": "EXPORT_DIR",
		"logger.level":       "LOG_LEVEL",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return err
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Storage.SourceDir == "" {
		return fmt.Errorf("storage.source_dir is required")
	}
	if c.Storage.ExportDir == "" {
		return fmt.Errorf("storage.export_dir is required")
	}

	if c.Bookmarks.MaxDepth < 1 {
		return fmt.Errorf("bookmarks.max_depth must be at least 1")
	}
	if c.Bookmarks.MaxTitleLength < len([]rune(c.Bookmarks.TruncationSuffix)) {
		return fmt.Errorf("bookmarks.max_title_length must not be shorter than the truncation suffix")
	}

	switch c.Validation.ChecksumAlgorithm {
	case ectd.ChecksumMD5, ectd.ChecksumSHA256:
	default:
		return fmt.Errorf("validation.checksum_algorithm must be %s or %s", ectd.ChecksumMD5, ectd.ChecksumSHA256)
	}
	if c.Validation.FileNaming.MaxLength < 1 {
		return fmt.Errorf("validation.file_naming.max_length must be at least 1")
	}

	return nil
}

// DatabaseSettings returns the connection settings for pkg/database
func (c *Config) DatabaseSettings() database.Config {
	return database.Config{
		Path:            c.Database.Path,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
	}
}

// PackagerOptions returns the exporter options
func (c *Config) PackagerOptions() packager.Options {
	return packager.Options{
		Bookmarks: c.Bookmarks,
		Compliance: compliance.Options{
			Naming: c.Validation.FileNaming,
			Links:  compliance.LinkOptions{AllowExternal: c.Validation.AllowExternalLinks},
		},
		ChecksumAlgorithm:      c.Validation.ChecksumAlgorithm,
		SkipChecksumValidation: c.Validation.SkipChecksumValidation,
		NavigationFont:         c.Validation.NavigationFont,
	}
}

// Address returns host:port for the HTTP server
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
