package outline

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"go.uber.org/zap"
)

// Entry is a bookmark bound to a 1-indexed page of the target document
type Entry struct {
	Title      string   `json:"title"`
	PageNumber int      `json:"page_number"`
	Children   []*Entry `json:"children,omitempty"`
	IsOpen     bool     `json:"is_open"`
}

// NewEntry returns an entry that is displayed expanded
func NewEntry(title string, page int, children ...*Entry) *Entry {
	return &Entry{Title: title, PageNumber: page, Children: children, IsOpen: true}
}

// InjectionResult reports the outcome of one injection call
type InjectionResult struct {
	Success       bool     `json:"success"`
	BookmarkCount int      `json:"bookmark_count"`
	MaxDepth      int      `json:"max_depth"`
	Warnings      []string `json:"warnings"`
	Error         string   `json:"error,omitempty"`
}

// item is a validated entry ready to become an outline item dictionary
type item struct {
	title string
	page  int
	open  bool
	kids  []*item
}

// Injector writes bookmark entries into documents
type Injector struct {
	logger *zap.Logger
}

// NewInjector creates a new Injector
func NewInjector(logger *zap.Logger) *Injector {
	return &Injector{logger: logger}
}

// InjectBookmarks replaces the document outline with entries, written in the given order.
// Entries pointing outside the document are skipped with a warning; their children are
// still checked and, when valid, take the skipped entry's place. When no entry is valid
// the document, including any existing outline, is left as it was.
func (i *Injector) InjectBookmarks(doc *Document, entries []*Entry) *InjectionResult {
	result := &InjectionResult{
		MaxDepth: CalculateBookmarkDepth(entries),
		Warnings: []string{},
	}

	if doc == nil || doc.PageCount() == 0 {
		result.Error = fmt.Sprintf("cannot inject bookmarks: %v", ErrNoPages)
		i.logger.Warn("Bookmark injection rejected", zap.String("reason", result.Error))
		return result
	}

	if len(entries) == 0 {
		result.Success = true
		result.Warnings = append(result.Warnings, "No bookmarks to inject")
		return result
	}

	pageCount := doc.PageCount()
	items := i.convert(entries, pageCount, result)

	if len(items) == 0 {
		result.Success = true
		return result
	}

	if err := writeOutline(doc, items); err != nil {
		result.Error = fmt.Sprintf("failed to write outline: %v", err)
		result.BookmarkCount = 0
		i.logger.Error("Failed to write outline", zap.Error(err))
		return result
	}

	result.Success = true
	i.logger.Debug("Bookmarks injected",
		zap.Int("bookmark_count", result.BookmarkCount),
		zap.Int("max_depth", result.MaxDepth),
		zap.Int("warning_count", len(result.Warnings)),
		zap.Int("page_count", pageCount))

	return result
}

// convert validates entries against the page range, keeping caller order
func (i *Injector) convert(entries []*Entry, pageCount int, result *InjectionResult) []*item {
	var items []*item

	for _, e := range entries {
		if e == nil {
			continue
		}
		kids := i.convert(e.Children, pageCount, result)

		if e.PageNumber < 1 || e.PageNumber > pageCount {
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"Skipped bookmark %q: page %d is out of range (document has %d pages)",
				e.Title, e.PageNumber, pageCount))
			items = append(items, kids...)
			continue
		}

		result.BookmarkCount++
		items = append(items, &item{title: e.Title, page: e.PageNumber, open: e.IsOpen, kids: kids})
	}
	return items
}

// writeOutline replaces the catalog's outline root with items
func writeOutline(doc *Document, items []*item) error {
	root, err := doc.catalog()
	if err != nil {
		return err
	}

	outlines := types.Dict{"Type": types.Name("Outlines")}
	outlinesRef, err := doc.ctx.IndRefForNewObject(outlines)
	if err != nil {
		return err
	}

	first, last, visible, err := writeItems(doc, items, *outlinesRef)
	if err != nil {
		return err
	}
	outlines["First"] = *first
	outlines["Last"] = *last
	outlines["Count"] = types.Integer(visible)

	root["Outlines"] = *outlinesRef
	return nil
}

// writeItems links one sibling level under parent and returns its first and last
// references plus the number of items visible when the level is shown.
// Closed items carry a negative Count.
func writeItems(doc *Document, items []*item, parent types.IndirectRef) (*types.IndirectRef, *types.IndirectRef, int, error) {
	var (
		first, last *types.IndirectRef
		prev        types.Dict
		visible     int
	)

	for _, it := range items {
		_, pageRef, _, err := doc.ctx.PageDict(it.page, false)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("page %d: %w", it.page, err)
		}
		if pageRef == nil {
			return nil, nil, 0, fmt.Errorf("page %d: no page reference", it.page)
		}

		title, err := types.EscapedUTF16String(it.title)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("title %q: %w", it.title, err)
		}

		d := types.Dict{
			"Title":  types.StringLiteral(*title),
			"Parent": parent,
			"Dest":   types.Array{*pageRef, types.Name("Fit")},
		}
		ref, err := doc.ctx.IndRefForNewObject(d)
		if err != nil {
			return nil, nil, 0, err
		}

		if len(it.kids) > 0 {
			kidFirst, kidLast, kidVisible, err := writeItems(doc, it.kids, *ref)
			if err != nil {
				return nil, nil, 0, err
			}
			d["First"] = *kidFirst
			d["Last"] = *kidLast
			if it.open {
				d["Count"] = types.Integer(kidVisible)
				visible += kidVisible
			} else {
				d["Count"] = types.Integer(-kidVisible)
			}
		}

		if prev != nil {
			d["Prev"] = *last
			prev["Next"] = *ref
		}
		if first == nil {
			first = ref
		}
		prev, last = d, ref
		visible++
	}
	return first, last, visible, nil
}

// CountBookmarkEntries returns the number of entries in the tree, nested ones included
func CountBookmarkEntries(entries []*Entry) int {
	count := 0
	for _, e := range entries {
		if e == nil {
			continue
		}
		count += 1 + CountBookmarkEntries(e.Children)
	}
	return count
}

// CalculateBookmarkDepth returns the nesting depth of the tree, 0 when empty
func CalculateBookmarkDepth(entries []*Entry) int {
	depth := 0
	for _, e := range entries {
		if e == nil {
			continue
		}
		if d := 1 + CalculateBookmarkDepth(e.Children); d > depth {
			depth = d
		}
	}
	return depth
}
