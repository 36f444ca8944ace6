package packager

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/garyjia/submission-packager/internal/bookmark"
	"github.com/garyjia/submission-packager/internal/models"
	"github.com/garyjia/submission-packager/internal/outline"
	"github.com/jung-kurt/gofpdf"
)

// buildNavigation renders a cover page plus one page per bookmark node and writes the tree
// into the document outline, each bookmark bound to its page
func (e *Exporter) buildNavigation(study *models.Study, tree []*bookmark.Node, generatedAt time.Time) ([]byte, *outline.InjectionResult, error) {
	raw, entries, err := renderNavigation(study, tree, generatedAt, e.opts.NavigationFont)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrNavigationFailed, err)
	}

	doc, err := outline.Read(bytes.NewReader(raw))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrNavigationFailed, err)
	}

	injection := e.injector.InjectBookmarks(doc, entries)
	if !injection.Success {
		return nil, injection, fmt.Errorf("%w: %s", ErrNavigationFailed, injection.Error)
	}

	out, err := doc.Bytes()
	if err != nil {
		return nil, injection, fmt.Errorf("%w: %v", ErrNavigationFailed, err)
	}
	return out, injection, nil
}

const navigationFamily = "navigation"

// navigationFont registers the UTF-8 TrueType font at fontPath for regular and bold text.
// Without a font path pages use Helvetica and text is mapped to cp1252.
func navigationFont(pdf *gofpdf.Fpdf, fontPath string) (string, func(string) string, error) {
	if fontPath == "" {
		return "Helvetica", pdf.UnicodeTranslatorFromDescriptor(""), nil
	}
	raw, err := os.ReadFile(fontPath)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read navigation font: %w", err)
	}
	pdf.AddUTF8FontFromBytes(navigationFamily, "", raw)
	pdf.AddUTF8FontFromBytes(navigationFamily, "B", raw)
	if pdf.Err() {
		return "", nil, fmt.Errorf("failed to load navigation font: %w", pdf.Error())
	}
	return navigationFamily, func(s string) string { return s }, nil
}

// renderNavigation lays out the pages and returns the matching outline entries
func renderNavigation(study *models.Study, tree []*bookmark.Node, generatedAt time.Time, fontPath string) ([]byte, []*outline.Entry, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	family, tr, err := navigationFont(pdf, fontPath)
	if err != nil {
		return nil, nil, err
	}

	pdf.SetTitle(study.Title, true)
	pdf.SetAuthor(study.Sponsor, true)
	pdf.SetCreator("submission-packager", true)
	pdf.SetCreationDate(generatedAt)

	pdf.AddPage()
	pdf.SetFont(family, "B", 18)
	pdf.MultiCell(0, 10, tr(study.Title), "", "L", false)
	pdf.Ln(4)
	pdf.SetFont(family, "", 12)
	for _, line := range []string{
		"Study: " + study.StudyNumber,
		"Sponsor: " + study.Sponsor,
		"Application: " + study.ApplicationNumber,
		"Submission type: " + study.SubmissionType,
		"Sequence: " + study.Sequence,
		"Generated: " + generatedAt.Format(time.RFC3339),
	} {
		pdf.CellFormat(0, 8, tr(line), "", 1, "L", false, 0, "")
	}

	coverTitle := study.StudyNumber
	if coverTitle == "" {
		coverTitle = "Cover"
	}
	entries := []*outline.Entry{outline.NewEntry(coverTitle, 1)}
	entries = append(entries, navigationPages(pdf, family, tr, tree)...)

	if pdf.Err() {
		return nil, nil, pdf.Error()
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, nil, err
	}
	return buf.Bytes(), entries, nil
}

// navigationPages adds one page per node in pre-order; top-level entries start expanded
func navigationPages(pdf *gofpdf.Fpdf, family string, tr func(string) string, nodes []*bookmark.Node) []*outline.Entry {
	entries := make([]*outline.Entry, 0, len(nodes))
	for _, n := range nodes {
		pdf.AddPage()
		page := pdf.PageNo()

		pdf.SetFont(family, "B", 14)
		pdf.MultiCell(0, 8, tr(n.Title), "", "L", false)
		pdf.Ln(2)
		pdf.SetFont(family, "", 11)
		if f := n.File; f != nil {
			pdf.CellFormat(0, 7, tr("File: "+f.TargetPath), "", 1, "L", false, 0, "")
			pdf.CellFormat(0, 7, fmt.Sprintf("Version: %d", f.Version), "", 1, "L", false, 0, "")
		} else {
			pdf.CellFormat(0, 7, tr("Section "+n.Code), "", 1, "L", false, 0, "")
		}

		entry := &outline.Entry{
			Title:      n.Title,
			PageNumber: page,
			IsOpen:     n.Level <= 1,
		}
		entry.Children = navigationPages(pdf, family, tr, n.Children)
		entries = append(entries, entry)
	}
	return entries
}
