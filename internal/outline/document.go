// Package outline writes navigation bookmarks into the native outline of PDF documents.
package outline

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

var (
	ErrNoPages   = errors.New("document has no pages")
	ErrNotOpen   = errors.New("document is not open")
	ErrNoCatalog = errors.New("document has no catalog")
)

// Document is an open PDF held in memory
type Document struct {
	ctx       *model.Context
	pageCount int
}

// Open reads and validates the PDF at path
func Open(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return Read(bytes.NewReader(raw))
}

// Read parses a PDF from rs
func Read(rs io.ReadSeeker) (*Document, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(rs, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to validate document: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("failed to count pages: %w", err)
	}
	return &Document{ctx: ctx, pageCount: ctx.PageCount}, nil
}

// PageCount returns the number of pages in the document
func (d *Document) PageCount() int {
	return d.pageCount
}

// Write serializes the document, including any outline changes
func (d *Document) Write(w io.Writer) error {
	if d.ctx == nil {
		return ErrNotOpen
	}
	if err := api.WriteContext(d.ctx, w); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}

// Bytes serializes the document into memory
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (d *Document) catalog() (types.Dict, error) {
	if d.ctx == nil {
		return nil, ErrNotOpen
	}
	root, err := d.ctx.Catalog()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoCatalog, err)
	}
	return root, nil
}

// outlinesDict returns the catalog's outline root, nil when the document has none
func (d *Document) outlinesDict() (types.Dict, error) {
	root, err := d.catalog()
	if err != nil {
		return nil, err
	}
	obj, found := root.Find("Outlines")
	if !found || obj == nil {
		return nil, nil
	}
	return d.ctx.DereferenceDict(obj)
}

// HasBookmarks reports whether the document carries a non-empty outline
func HasBookmarks(doc *Document) bool {
	outlines, err := doc.outlinesDict()
	if err != nil || outlines == nil {
		return false
	}
	first, found := outlines.Find("First")
	return found && first != nil
}

// RemoveBookmarks clears the outline. Documents without one are left untouched.
func RemoveBookmarks(doc *Document) error {
	root, err := doc.catalog()
	if err != nil {
		return err
	}
	if _, found := root.Find("Outlines"); !found {
		return nil
	}
	delete(root, "Outlines")
	if mode := root.NameEntry("PageMode"); mode != nil && *mode == "UseOutlines" {
		delete(root, "PageMode")
	}
	return nil
}
