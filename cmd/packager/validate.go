package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/garyjia/submission-packager/internal/ectd"
)

var validateCmd = &cobra.Command{
	Use:   "validate <index.xml> [us-regional.xml]",
	Short: "Validate eCTD manifest documents",
	Long: `Validate checks index.xml and, when given, us-regional.xml for well-formedness,
required elements, namespaces, leaf ids, checksums and hrefs. With both files
the combined verdict is reported. The command fails when any ERROR is found.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().Bool("skip-checksums", false, "do not validate leaf checksums")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	skip, _ := cmd.Flags().GetBool("skip-checksums")
	opts := ectd.IndexOptions{SkipChecksumValidation: skip}
	out := cmd.OutOrStdout()

	index, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	if len(args) == 1 {
		result := ectd.ValidateIndexXML(string(index), opts)
		if jsonOutput(cmd) {
			if err := printJSON(out, result); err != nil {
				return err
			}
		} else {
			fmt.Fprint(out, ectd.FormatXMLValidationReport(result))
		}
		if !result.Valid {
			return fmt.Errorf("%s: %d error(s)", args[0], result.ErrorCount)
		}
		return nil
	}

	regional, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[1], err)
	}

	result := ectd.ValidateEctdXML(string(index), string(regional), opts)
	if jsonOutput(cmd) {
		if err := printJSON(out, result); err != nil {
			return err
		}
	} else {
		fmt.Fprint(out, ectd.FormatCombinedReport(result))
	}
	if !result.CombinedValid {
		return fmt.Errorf("manifests invalid: %d error(s)", result.TotalErrors)
	}
	return nil
}
