package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/garyjia/submission-packager/internal/config"
	"github.com/garyjia/submission-packager/pkg/database"
	"go.uber.org/zap"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *config.Config
	logger *zap.Logger

	db           *database.DB
	repositories *RepositoryBundle
	storage      *StorageBundle
	services     *ServiceBundle

	mu     sync.RWMutex
	ready  atomic.Bool
	closed atomic.Bool
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components:
// 1. Database, migrations and repositories
// 2. Source and export storage
// 3. Readiness gate and exporter
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization")

	db, err := ProvideDatabase(c.config, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.db = db

	repos, err := ProvideRepositories(db, c.logger)
	if err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize repositories: %w", err)
	}
	c.repositories = repos
	c.logger.Info("Database initialized")

	stores, err := ProvideStorage(&c.config.Storage, c.logger)
	if err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.storage = stores
	c.logger.Info("Storage initialized",
		zap.String("source_dir", c.config.Storage.SourceDir),
		zap.String("export_dir", c.config.Storage.ExportDir))

	services, err := ProvideServices(c.config, repos, stores, c.logger)
	if err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.services = services

	if err := ctx.Err(); err != nil {
		c.closeDatabase()
		return err
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// Close releases all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	err := c.closeDatabase()

	c.closed.Store(true)
	c.ready.Store(false)

	if err != nil {
		return fmt.Errorf("close database: %w", err)
	}

	c.logger.Info("Container closed successfully")
	return nil
}

func (c *Container) closeDatabase() error {
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	if err != nil {
		c.logger.Error("Failed to close database", zap.Error(err))
	}
	c.db = nil
	return err
}

// Ready reports whether Start completed.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health checks the database connection.
func (c *Container) Health(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return c.db.Health(ctx)
}

// HealthStatus reports the health of every component.
func (c *Container) HealthStatus(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	if err := c.Health(ctx); err != nil {
		status.Components["database"] = ComponentHealth{Healthy: false, Message: err.Error()}
		status.Overall = false
	} else {
		status.Components["database"] = ComponentHealth{Healthy: true}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.services != nil {
		status.Components["exporter"] = ComponentHealth{Healthy: true}
	} else {
		status.Components["exporter"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	}

	return status
}

// Repositories returns the repository bundle.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Storage returns the storage bundle.
func (c *Container) Storage() *StorageBundle {
	return c.storage
}

// Services returns the service bundle.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Config returns the configuration the container was built from.
func (c *Container) Config() *config.Config {
	return c.config
}
