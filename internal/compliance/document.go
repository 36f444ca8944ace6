package compliance

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

var pdfHeader = []byte("%PDF-")

// scriptMarker finds script actions in uncompressed object bodies
var scriptMarker = regexp.MustCompile(`/S\s*/JavaScript\b|/JS\s*[(<\[]`)

// LinkOptions configures CheckExternalHyperlinks
type LinkOptions struct {
	AllowExternal bool `mapstructure:"allow_external"`
}

// CheckExternalHyperlinks counts outbound link annotations in the PDF at path
func CheckExternalHyperlinks(path string, opts LinkOptions) CheckResult {
	if err := checkPDFHeader(path); err != nil {
		return unableToCheck(err)
	}

	doc, err := fitz.New(path)
	if err != nil {
		return unableToCheck(err)
	}
	defer doc.Close()

	var external []string
	for n := 0; n < doc.NumPage(); n++ {
		links, err := doc.Links(n)
		if err != nil {
			return unableToCheck(fmt.Errorf("page %d: %w", n+1, err))
		}
		for _, link := range links {
			if isExternalURI(link.URI) {
				external = append(external, link.URI)
			}
		}
	}

	details := Details{ExternalLinkCount: len(external), ExternalLinks: external}
	switch {
	case len(external) == 0:
		return CheckResult{Passed: true, Message: "No external hyperlinks found", Details: details}
	case opts.AllowExternal:
		return CheckResult{Passed: true, Message: fmt.Sprintf("Found %d external hyperlink(s)", len(external)), Details: details}
	default:
		return CheckResult{
			Passed:  false,
			Message: fmt.Sprintf("Found %d external hyperlink(s); external links are not allowed", len(external)),
			Details: details,
		}
	}
}

// CheckNoJavaScript fails when the PDF at path carries any JavaScript action
func CheckNoJavaScript(path string) CheckResult {
	raw, err := os.ReadFile(path)
	if err != nil {
		return unableToCheck(err)
	}
	if !bytes.HasPrefix(bytes.TrimLeft(raw, "\x00\t\r\n "), pdfHeader) {
		return unableToCheck(fmt.Errorf("%s is not a PDF document", path))
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadContext(bytes.NewReader(raw), conf)
	if err != nil {
		return unableToCheck(err)
	}

	count := countScriptObjects(ctx)
	if count == 0 {
		// object streams are decoded by the reader, the raw scan covers anything it skipped
		count = len(scriptMarker.FindAll(raw, -1))
	}

	if count > 0 {
		return CheckResult{
			Passed:  false,
			Message: fmt.Sprintf("Document contains %d JavaScript action(s)", count),
			Details: Details{ScriptCount: count},
		}
	}
	return CheckResult{Passed: true, Message: "No JavaScript found"}
}

// countScriptObjects walks the cross-reference table for JavaScript actions and name trees
func countScriptObjects(ctx *model.Context) int {
	count := 0
	for _, entry := range ctx.Table {
		if entry == nil || entry.Free || entry.Object == nil {
			continue
		}
		var d types.Dict
		switch obj := entry.Object.(type) {
		case types.Dict:
			d = obj
		case types.StreamDict:
			d = obj.Dict
		default:
			continue
		}
		if isScriptAction(d) {
			count++
		}
	}
	return count
}

func isScriptAction(d types.Dict) bool {
	if s := d.NameEntry("S"); s != nil && *s == "JavaScript" {
		return true
	}
	_, hasJS := d.Find("JS")
	return hasJS
}

func checkPDFHeader(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	head := make([]byte, 1024)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return err
	}
	if !bytes.HasPrefix(bytes.TrimLeft(head[:n], "\x00\t\r\n "), pdfHeader) {
		return fmt.Errorf("%s is not a PDF document", path)
	}
	return nil
}

func isExternalURI(uri string) bool {
	uri = strings.TrimSpace(uri)
	return uri != "" && !strings.HasPrefix(uri, "#")
}

func unableToCheck(err error) CheckResult {
	return CheckResult{Passed: false, Message: fmt.Sprintf("Unable to check document: %v", err)}
}
