package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/garyjia/submission-packager/internal/compliance"
	"github.com/garyjia/submission-packager/internal/outline"
)

var checkFileCmd = &cobra.Command{
	Use:   "check-file <file>...",
	Short: "Run naming, hyperlink and JavaScript checks on documents",
	Long: `check-file runs the same content checks the exporter records in the package
report. PDF files also report their page count and whether they already carry
bookmarks. The command fails when any file fails a check.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheckFile,
}

// fileCheck is the printed outcome for one file
type fileCheck struct {
	*compliance.FileReport
	Pages        int  `json:"pages,omitempty"`
	HasBookmarks bool `json:"has_bookmarks"`
}

func init() {
	rootCmd.AddCommand(checkFileCmd)
}

func runCheckFile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	checker := compliance.NewChecker(cfg.PackagerOptions().Compliance, logger)
	out := cmd.OutOrStdout()

	var checks []fileCheck
	failed := 0
	for _, path := range args {
		check := fileCheck{FileReport: checker.CheckFile(path, filepath.Base(path))}
		if doc, err := outline.Open(path); err == nil {
			check.Pages = doc.PageCount()
			check.HasBookmarks = outline.HasBookmarks(doc)
		}
		if !check.Passed {
			failed++
		}
		checks = append(checks, check)
	}

	if jsonOutput(cmd) {
		if err := printJSON(out, checks); err != nil {
			return err
		}
	} else {
		for _, c := range checks {
			status := "PASS"
			if !c.Passed {
				status = "FAIL"
			}
			fmt.Fprintf(out, "%s  %s", status, c.TargetPath)
			if c.Pages > 0 {
				fmt.Fprintf(out, " (%d pages, bookmarks: %t)", c.Pages, c.HasBookmarks)
			}
			fmt.Fprintln(out)
			for _, msg := range c.Failures() {
				fmt.Fprintf(out, "      - %s\n", msg)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed", failed, len(args))
	}
	return nil
}
