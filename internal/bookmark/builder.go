// Package bookmark derives the navigation tree of a submission from its coded files.
package bookmark

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/garyjia/submission-packager/internal/models"
)

// Node is one entry of the navigation tree
type Node struct {
	Title    string  `json:"title"`
	Level    int     `json:"level"` // 1-indexed depth
	Code     string  `json:"code,omitempty"`
	Children []*Node `json:"children,omitempty"`

	// File is set for nodes created from a concrete package file
	File *models.PackageFile `json:"-"`
}

// IsSynthesized reports whether the node was created to fill a gap in the code hierarchy
func (n *Node) IsSynthesized() bool {
	return n.File == nil
}

// section groups everything filed under one code
type section struct {
	code     string
	segments []string
	nodes    []*Node // one per file, first one owns the sub-sections
	children map[string]*section
	order    int
}

// BuildSectionBookmarks turns a flat list of coded files into a nested tree.
// Missing ancestor codes are synthesized and titled with their own code.
// Siblings are ordered numerically per segment; files sharing a code keep arrival order.
func BuildSectionBookmarks(files []*models.PackageFile) []*Node {
	if len(files) == 0 {
		return []*Node{}
	}

	root := &section{children: make(map[string]*section)}
	arrival := 0

	var uncoded []*Node
	for _, f := range files {
		if f == nil {
			continue
		}
		segments := splitCode(f.NodeCode)
		if len(segments) == 0 {
			uncoded = append(uncoded, &Node{Title: leafTitle("", f), Level: 1, File: f})
			continue
		}

		current := root
		for depth := range segments {
			code := strings.Join(segments[:depth+1], ".")
			child, ok := current.children[code]
			if !ok {
				child = &section{
					code:     code,
					segments: segments[:depth+1],
					children: make(map[string]*section),
					order:    arrival,
				}
				arrival++
				current.children[code] = child
			}
			current = child
		}
		current.nodes = append(current.nodes, &Node{
			Title: leafTitle(current.code, f),
			Level: len(segments),
			Code:  current.code,
			File:  f,
		})
	}

	tree := flattenSections(root)
	return append(tree, uncoded...)
}

// flattenSections converts the section map into ordered node slices
func flattenSections(parent *section) []*Node {
	children := make([]*section, 0, len(parent.children))
	for _, s := range parent.children {
		children = append(children, s)
	}
	sort.SliceStable(children, func(i, j int) bool {
		if c := CompareCodes(children[i].code, children[j].code); c != 0 {
			return c < 0
		}
		return children[i].order < children[j].order
	})

	var out []*Node
	for _, s := range children {
		nested := flattenSections(s)
		if len(s.nodes) == 0 {
			out = append(out, &Node{
				Title:    s.code,
				Level:    len(s.segments),
				Code:     s.code,
				Children: nested,
			})
			continue
		}
		s.nodes[0].Children = nested
		out = append(out, s.nodes...)
	}
	return out
}

func leafTitle(code string, f *models.PackageFile) string {
	title := f.NodeTitle
	if title == "" {
		title = f.FileName
	}
	if code == "" {
		return title
	}
	return fmt.Sprintf("%s - %s", code, title)
}

func splitCode(code string) []string {
	code = strings.Trim(strings.TrimSpace(code), ".")
	if code == "" {
		return nil
	}
	var segments []string
	for _, s := range strings.Split(code, ".") {
		if s = strings.TrimSpace(s); s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// CompareCodes orders dot-segmented codes segment by segment.
// Numeric segments compare as integers and sort before non-numeric ones; a prefix sorts first.
func CompareCodes(a, b string) int {
	as, bs := splitCode(a), splitCode(b)
	for i := 0; i < len(as) && i < len(bs); i++ {
		if c := compareSegment(as[i], bs[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(as) < len(bs):
		return -1
	case len(as) > len(bs):
		return 1
	}
	return 0
}

func compareSegment(a, b string) int {
	an, aErr := strconv.Atoi(a)
	bn, bErr := strconv.Atoi(b)
	switch {
	case aErr == nil && bErr == nil:
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		}
		return 0
	case aErr == nil:
		return -1
	case bErr == nil:
		return 1
	}
	return strings.Compare(a, b)
}
