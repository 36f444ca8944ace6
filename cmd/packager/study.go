package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/garyjia/submission-packager/internal/bookmark"
	"github.com/garyjia/submission-packager/internal/container"
	"github.com/garyjia/submission-packager/internal/packager"
)

var readinessCmd = &cobra.Command{
	Use:   "readiness <study-id>",
	Short: "Show whether a study can be exported",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		studyID, err := parseStudyID(args[0])
		if err != nil {
			return err
		}
		return withContainer(cmd, func(ctx context.Context, c *container.Container) error {
			status, err := c.Services().Readiness.CheckReadiness(ctx, studyID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOutput(cmd) {
				return printJSON(out, status)
			}
			fmt.Fprintf(out, "Study %d: ready=%t (%d document(s), %d required section(s))\n",
				studyID, status.Ready, status.TotalFiles, status.TotalRequiredNodes)
			for _, m := range status.MissingRequired {
				fmt.Fprintf(out, "  missing   %s %s\n", m.Code, m.Title)
			}
			for _, p := range status.PendingApproval {
				fmt.Fprintf(out, "  pending   %s %s [%s]\n", p.NodeCode, p.FileName, p.Status)
			}
			for _, r := range status.Reasons() {
				fmt.Fprintf(out, "  - %s\n", r)
			}
			return nil
		})
	},
}

var bookmarksCmd = &cobra.Command{
	Use:   "bookmarks <study-id>",
	Short: "Preview the normalized bookmark tree of a study's next package",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		studyID, err := parseStudyID(args[0])
		if err != nil {
			return err
		}
		return withContainer(cmd, func(ctx context.Context, c *container.Container) error {
			files, err := c.Repositories().Study.ListPackageFiles(ctx, studyID)
			if err != nil {
				return err
			}
			tree := bookmark.NormalizeTree(bookmark.BuildSectionBookmarks(files), c.Config().Bookmarks)
			out := cmd.OutOrStdout()
			if jsonOutput(cmd) {
				return printJSON(out, tree)
			}
			fmt.Fprintf(out, "%d bookmark(s), depth %d\n", bookmark.CountBookmarks(tree), bookmark.CalculateMaxDepth(tree))
			printTree(cmd, tree, 0)
			return nil
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <study-id>",
	Short: "Build a submission archive for a study",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		studyID, err := parseStudyID(args[0])
		if err != nil {
			return err
		}
		force, _ := cmd.Flags().GetBool("force")
		return withContainer(cmd, func(ctx context.Context, c *container.Container) error {
			result, err := c.Services().Exporter.ExportPackage(ctx, studyID, packager.ExportOptions{Force: force})
			out := cmd.OutOrStdout()
			if jsonOutput(cmd) && result != nil {
				if perr := printJSON(out, result); perr != nil {
					return perr
				}
			}
			if err != nil {
				return err
			}
			if !jsonOutput(cmd) {
				fmt.Fprintf(out, "Package %s: %d file(s), %d bytes\n", result.PackageID, result.FileCount, result.ZipSize)
				fmt.Fprintf(out, "Archive: %s\n", result.ZipPath)
				if v := result.Validation; v != nil {
					fmt.Fprintf(out, "XML valid: %t (%d error(s), %d warning(s))\n", v.XMLValid, v.ErrorCount, v.WarningCount)
				}
			}
			return nil
		})
	},
}

var exportsCmd = &cobra.Command{
	Use:   "exports <study-id>",
	Short: "List stored archives of a study, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		studyID, err := parseStudyID(args[0])
		if err != nil {
			return err
		}
		return withContainer(cmd, func(ctx context.Context, c *container.Container) error {
			records, err := c.Repositories().Export.ListByStudy(ctx, studyID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOutput(cmd) {
				return printJSON(out, records)
			}
			for _, r := range records {
				present := c.Storage().Packages.ExportExists(studyID, r.PackageID)
				fmt.Fprintf(out, "%s  %s  %d file(s)  xml_valid=%t forced=%t on_disk=%t\n",
					r.CreatedAt.Format("2006-01-02 15:04:05"), r.PackageID, r.FileCount, r.XMLValid, r.Forced, present)
			}
			return nil
		})
	},
}

func init() {
	exportCmd.Flags().Bool("force", false, "export even when the readiness gate fails")
	rootCmd.AddCommand(readinessCmd, bookmarksCmd, exportCmd, exportsCmd)
}

func printTree(cmd *cobra.Command, nodes []*bookmark.Node, level int) {
	for _, n := range nodes {
		marker := ""
		if n.IsSynthesized() {
			marker = " *"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s%s%s\n", strings.Repeat("  ", level), n.Title, marker)
		printTree(cmd, n.Children, level+1)
	}
}
