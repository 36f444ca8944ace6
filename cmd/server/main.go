package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/garyjia/submission-packager/internal/config"
	"github.com/garyjia/submission-packager/internal/container"
	httpapi "github.com/garyjia/submission-packager/internal/interfaces/http"
	"github.com/garyjia/submission-packager/pkg/utils"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	configPath := flag.String("config", os.Getenv("PACKAGER_CONFIG"), "path to config.yaml")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting submission packager",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database, storage and services
	c, err := container.NewContainer(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create container", zap.Error(err))
	}
	if err := c.Start(ctx); err != nil {
		logger.Fatal("Failed to start container", zap.Error(err))
	}
	defer c.Close()

	services := c.Services()
	stores := c.Storage()
	httpLogger := httpapi.NewZapLogger(logger)

	httpapi.Version = version
	handlers := httpapi.NewHandlers(services.Exporter, services.Readiness, stores.Packages, c, httpLogger)
	server := httpapi.NewServer(httpapi.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, handlers, httpLogger)

	// Blocks until SIGINT/SIGTERM
	if err := server.Start(ctx); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		return
	}

	logger.Info("Server exited successfully")
}
