package ectd

import (
	"fmt"
	"strings"
)

const reportRule = "=================================================="

// FormatXMLValidationReport renders a deterministic plain-text report
func FormatXMLValidationReport(result *Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "eCTD XML Validation Report (%s.xml)\n", result.XMLType)
	b.WriteString(reportRule + "\n")
	if result.Valid {
		b.WriteString("Status: VALID\n")
	} else {
		b.WriteString("Status: INVALID\n")
	}
	fmt.Fprintf(&b, "Sequence: %s\n", orNone(result.Metadata.Sequence))
	if result.XMLType == DocumentTypeUSRegional {
		fmt.Fprintf(&b, "Application: %s\n", orNone(result.Metadata.ApplicationNumber))
	} else {
		fmt.Fprintf(&b, "Study: %s\n", orNone(result.Metadata.StudyNumber))
		fmt.Fprintf(&b, "Leaves: %d\n", result.Metadata.LeafCount)
	}
	fmt.Fprintf(&b, "Errors: %d, Warnings: %d\n", result.ErrorCount, result.WarningCount)

	if errs := result.Errors(); !result.Valid && len(errs) > 0 {
		b.WriteString("\nERRORS:\n")
		writeIssues(&b, errs)
	}
	if warnings := result.Warnings(); len(warnings) > 0 {
		b.WriteString("\nWARNINGS:\n")
		writeIssues(&b, warnings)
	}
	return b.String()
}

// FormatCombinedReport renders both manifest reports under one verdict
func FormatCombinedReport(result *CombinedResult) string {
	var b strings.Builder
	if result.CombinedValid {
		b.WriteString("Combined status: VALID\n")
	} else {
		b.WriteString("Combined status: INVALID\n")
	}
	fmt.Fprintf(&b, "Total errors: %d, Total warnings: %d\n\n", result.TotalErrors, result.TotalWarnings)
	b.WriteString(FormatXMLValidationReport(result.Index))
	b.WriteString("\n")
	b.WriteString(FormatXMLValidationReport(result.Regional))
	return b.String()
}

func writeIssues(b *strings.Builder, issues []Issue) {
	for i, issue := range issues {
		fmt.Fprintf(b, "  %d. [%s] %s", i+1, issue.Rule, issue.Message)
		if issue.Location != "" {
			fmt.Fprintf(b, " (%s)", issue.Location)
		}
		b.WriteString("\n")
	}
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
