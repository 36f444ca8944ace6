// Package compliance runs per-file content checks on documents destined for a submission archive.
package compliance

import (
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// CheckResult is the outcome of one content check
type CheckResult struct {
	Passed  bool    `json:"passed"`
	Message string  `json:"message"`
	Details Details `json:"details"`
}

// Details carries the check-specific findings
type Details struct {
	Violations        []string `json:"violations,omitempty"`
	ExternalLinkCount int      `json:"external_link_count,omitempty"`
	ExternalLinks     []string `json:"external_links,omitempty"`
	ScriptCount       int      `json:"script_count,omitempty"`
	Skipped           bool     `json:"skipped,omitempty"`
}

// Options groups the per-check options as they appear in configuration
type Options struct {
	Naming NamingOptions `mapstructure:"file_naming"`
	Links  LinkOptions   `mapstructure:"links"`
}

// DefaultOptions returns the submission defaults
func DefaultOptions() Options {
	return Options{
		Naming: DefaultNamingOptions(),
		Links:  LinkOptions{AllowExternal: false},
	}
}

// FileReport collects every check run against one file
type FileReport struct {
	TargetPath string      `json:"target_path"`
	FileName   string      `json:"file_name"`
	Passed     bool        `json:"passed"`
	Naming     CheckResult `json:"naming"`
	Links      CheckResult `json:"external_links"`
	JavaScript CheckResult `json:"javascript"`
}

// Failures lists the messages of the failed checks
func (r *FileReport) Failures() []string {
	var out []string
	for _, c := range []CheckResult{r.Naming, r.Links, r.JavaScript} {
		if !c.Passed {
			out = append(out, c.Message)
		}
	}
	return out
}

// Checker runs all content checks with a fixed set of options
type Checker struct {
	opts   Options
	logger *zap.Logger
}

// NewChecker creates a new content checker
func NewChecker(opts Options, logger *zap.Logger) *Checker {
	return &Checker{opts: opts, logger: logger}
}

// CheckFile runs the naming check against the target name and the document checks against the source bytes.
// Non-PDF files pass the document checks as skipped.
func (c *Checker) CheckFile(sourcePath, targetPath string) *FileReport {
	name := filepath.Base(targetPath)
	report := &FileReport{
		TargetPath: targetPath,
		FileName:   name,
		Naming:     CheckFileNaming(name, c.opts.Naming),
	}

	if isPDFName(name) {
		report.Links = CheckExternalHyperlinks(sourcePath, c.opts.Links)
		report.JavaScript = CheckNoJavaScript(sourcePath)
	} else {
		report.Links = skipped()
		report.JavaScript = skipped()
	}

	report.Passed = report.Naming.Passed && report.Links.Passed && report.JavaScript.Passed
	if !report.Passed {
		c.logger.Warn("Content checks failed",
			zap.String("target_path", targetPath),
			zap.Strings("failures", report.Failures()))
	}
	return report
}

func skipped() CheckResult {
	return CheckResult{
		Passed:  true,
		Message: "Not a PDF document, check skipped",
		Details: Details{Skipped: true},
	}
}

func isPDFName(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}
