// Package main is the submission-packager command line.
// It validates manifests and documents offline and drives exports against the study database.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/submission-packager/internal/config"
	"github.com/garyjia/submission-packager/internal/container"
	"github.com/garyjia/submission-packager/pkg/utils"
)

// version is set at build time via ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "packager",
	Short: "Build and validate eCTD submission packages",
	Long: `packager assembles approved study documents into an eCTD sequence archive
with a generated index.xml, us-regional.xml, navigation PDF and validation report.

The validate and check-file commands work on local files and need no database.
The readiness, bookmarks and export commands read the study database configured
in the config file or PACKAGER_* environment variables.`,
	SilenceUsage: true,
	Version:      version,
}

func init() {
	rootCmd.PersistentFlags().String("config", os.Getenv("PACKAGER_CONFIG"), "path to config.yaml")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log progress to stderr")
	rootCmd.PersistentFlags().Bool("json", false, "print results as JSON")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the configuration named by --config
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

// newLogger builds the stderr logger honoring --verbose
func newLogger(cmd *cobra.Command) (*zap.Logger, error) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	return utils.NewCLILogger(verbose)
}

// withContainer starts the application container, runs fn and closes it again
func withContainer(cmd *cobra.Command, fn func(ctx context.Context, c *container.Container) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	c, err := container.NewContainer(cfg, logger)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer c.Close()

	return fn(ctx, c)
}

func jsonOutput(cmd *cobra.Command) bool {
	asJSON, _ := cmd.Flags().GetBool("json")
	return asJSON
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseStudyID(raw string) (int64, error) {
	id, err := utils.ParseID(raw)
	if err != nil {
		return 0, fmt.Errorf("study id: %w", err)
	}
	return id, nil
}
