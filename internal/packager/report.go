package packager

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/garyjia/submission-packager/internal/compliance"
	"github.com/garyjia/submission-packager/internal/ectd"
	"github.com/garyjia/submission-packager/internal/models"
	"github.com/garyjia/submission-packager/internal/outline"
	"github.com/xuri/excelize/v2"
)

// ReportSummary holds the package-level counts
type ReportSummary struct {
	TotalFiles       int  `json:"total_files"`
	PassedFiles      int  `json:"passed_files"`
	FailedFiles      int  `json:"failed_files"`
	XMLValid         bool `json:"xml_valid"`
	XMLErrors        int  `json:"xml_errors"`
	XMLWarnings      int  `json:"xml_warnings"`
	BookmarkCount    int  `json:"bookmark_count"`
	BookmarkWarnings int  `json:"bookmark_warnings"`
}

// DocumentIssue is a structural issue raised against one generated manifest document
type DocumentIssue struct {
	Document string        `json:"document"`
	Rule     ectd.Rule     `json:"rule"`
	Severity ectd.Severity `json:"severity"`
	Message  string        `json:"message"`
	Location string        `json:"location,omitempty"`
}

// PackageReport is written into the archive as JSON and XLSX
type PackageReport struct {
	StudyID        int64                    `json:"study_id"`
	StudyNumber    string                   `json:"study_number"`
	PackageID      string                   `json:"package_id"`
	Sequence       string                   `json:"sequence"`
	GeneratedAt    time.Time                `json:"generated_at"`
	Summary        ReportSummary            `json:"summary"`
	Files          []*compliance.FileReport `json:"files"`
	DocumentIssues []DocumentIssue          `json:"document_issues"`
	BookmarkNotes  []string                 `json:"bookmark_warnings,omitempty"`
}

// NewPackageReport combines manifest validation, content checks and bookmark injection results
func NewPackageReport(
	study *models.Study,
	packageID string,
	generatedAt time.Time,
	xmlResult *ectd.CombinedResult,
	files []*compliance.FileReport,
	injection *outline.InjectionResult,
) *PackageReport {
	report := &PackageReport{
		StudyID:        study.ID,
		StudyNumber:    study.StudyNumber,
		PackageID:      packageID,
		Sequence:       study.Sequence,
		GeneratedAt:    generatedAt,
		Files:          files,
		DocumentIssues: []DocumentIssue{},
	}

	report.Summary.TotalFiles = len(files)
	for _, f := range files {
		if f.Passed {
			report.Summary.PassedFiles++
		} else {
			report.Summary.FailedFiles++
		}
	}

	if xmlResult != nil {
		report.Summary.XMLValid = xmlResult.CombinedValid
		report.Summary.XMLErrors = xmlResult.TotalErrors
		report.Summary.XMLWarnings = xmlResult.TotalWarnings
		report.addIssues("index.xml", xmlResult.Index)
		report.addIssues("us-regional.xml", xmlResult.Regional)
	}

	if injection != nil {
		report.Summary.BookmarkCount = injection.BookmarkCount
		report.Summary.BookmarkWarnings = len(injection.Warnings)
		report.BookmarkNotes = injection.Warnings
	}
	return report
}

func (r *PackageReport) addIssues(document string, result *ectd.Result) {
	if result == nil {
		return
	}
	for _, issue := range result.Issues {
		r.DocumentIssues = append(r.DocumentIssues, DocumentIssue{
			Document: document,
			Rule:     issue.Rule,
			Severity: issue.Severity,
			Message:  issue.Message,
			Location: issue.Location,
		})
	}
}

// JSON encodes the report
func (r *PackageReport) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	return data, nil
}

const (
	summarySheet = "Summary"
	filesSheet   = "Files"
	issuesSheet  = "Document Issues"
)

// XLSX renders the report as a workbook with summary, files and issues sheets
func (r *PackageReport) XLSX() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	for _, name := range []string{filesSheet, issuesSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	summary := [][]interface{}{
		{"Study", r.StudyNumber},
		{"Package", r.PackageID},
		{"Sequence", r.Sequence},
		{"Generated", r.GeneratedAt.Format(time.RFC3339)},
		{"Total files", r.Summary.TotalFiles},
		{"Passed files", r.Summary.PassedFiles},
		{"Failed files", r.Summary.FailedFiles},
		{"XML valid", r.Summary.XMLValid},
		{"XML errors", r.Summary.XMLErrors},
		{"XML warnings", r.Summary.XMLWarnings},
		{"Bookmarks", r.Summary.BookmarkCount},
		{"Bookmark warnings", r.Summary.BookmarkWarnings},
	}
	if err := writeRows(f, summarySheet, summary); err != nil {
		return nil, err
	}

	files := [][]interface{}{{"Target path", "Passed", "Naming", "External links", "JavaScript"}}
	for _, fr := range r.Files {
		files = append(files, []interface{}{
			fr.TargetPath, fr.Passed, fr.Naming.Message, fr.Links.Message, fr.JavaScript.Message,
		})
	}
	if err := writeRows(f, filesSheet, files); err != nil {
		return nil, err
	}

	issues := [][]interface{}{{"Document", "Rule", "Severity", "Message", "Location"}}
	for _, is := range r.DocumentIssues {
		issues = append(issues, []interface{}{
			is.Document, is.Rule.String(), string(is.Severity), is.Message, is.Location,
		})
	}
	if err := writeRows(f, issuesSheet, issues); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate Excel file: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
