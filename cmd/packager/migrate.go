package main

import (
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/garyjia/submission-packager/migrations"
	"github.com/garyjia/submission-packager/pkg/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	Long: `migrate applies the schema to the configured database. It uses
database.migrations_dir when set and the schema built into the binary otherwise.
With --status it only lists migrations and whether they are applied.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().Bool("status", false, "list migrations without applying them")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := database.New(cfg.DatabaseSettings(), logger)
	if err != nil {
		return err
	}
	defer db.Close()

	var schema fs.FS = migrations.FS
	if cfg.Database.MigrationsDir != "" {
		schema = os.DirFS(cfg.Database.MigrationsDir)
	}

	migrator := database.NewMigrator(db, logger)
	if status, _ := cmd.Flags().GetBool("status"); !status {
		if err := migrator.RunMigrationsFS(schema); err != nil {
			return err
		}
	}

	states, err := migrator.Status(schema)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if jsonOutput(cmd) {
		return printJSON(out, states)
	}
	for _, s := range states {
		state := "pending"
		if s.Applied {
			state = "applied"
		}
		fmt.Fprintf(out, "%03d  %-24s %s\n", s.Version, s.Name, state)
	}
	return nil
}
