package ectd

import (
	"encoding/xml"
	"errors"
	"io"
	"regexp"
	"strings"
)

var moduleElement = regexp.MustCompile(`^m[1-5](-|$)`)

// element is a start tag seen while scanning
type element struct {
	name  string // qualified, e.g. "ectd:ectd"
	local string
	attrs map[string]string
	line  int
	text  strings.Builder
}

func (e *element) attr(names ...string) (string, bool) {
	for _, n := range names {
		if v, ok := e.attrs[n]; ok {
			return v, true
		}
	}
	return "", false
}

// scan is a lenient structural view of a manifest.
// Start and end tags are not required to match, so structure problems are reported as rule
// issues instead of aborting the whole validation.
type scan struct {
	root            *element
	rootClosed      bool
	counts          map[string]int
	texts           map[string]string
	leaves          []*element
	unclosedModules []*element
	syntaxErr       error
	syntaxLine      int
}

func scanDocument(text string) *scan {
	s := &scan{
		counts: make(map[string]int),
		texts:  make(map[string]string),
	}

	d := xml.NewDecoder(strings.NewReader(text))
	d.Strict = false

	var stack []*element
	for {
		tok, err := d.RawToken()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.syntaxErr = err
				s.syntaxLine, _ = d.InputPos()
			}
			break
		}
		line, _ := d.InputPos()

		switch t := tok.(type) {
		case xml.StartElement:
			el := &element{
				name:  qualified(t.Name),
				local: t.Name.Local,
				attrs: make(map[string]string, len(t.Attr)),
				line:  line,
			}
			for _, a := range t.Attr {
				el.attrs[qualified(a.Name)] = a.Value
			}
			if len(stack) == 0 && s.root == nil {
				s.root = el
			}
			s.counts[el.local]++
			if el.local == "leaf" {
				s.leaves = append(s.leaves, el)
			}
			stack = append(stack, el)

		case xml.EndElement:
			name := qualified(t.Name)
			idx := -1
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i].name == name {
					idx = i
					break
				}
			}
			if idx < 0 {
				continue
			}
			for _, open := range stack[idx+1:] {
				s.closeElement(open, false)
			}
			s.closeElement(stack[idx], true)
			if stack[idx] == s.root {
				s.rootClosed = true
			}
			stack = stack[:idx]

		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}

	for i := len(stack) - 1; i >= 0; i-- {
		s.closeElement(stack[i], false)
	}
	return s
}

// closeElement records the element text and notes modules left open
func (s *scan) closeElement(el *element, matched bool) {
	if _, seen := s.texts[el.local]; !seen {
		s.texts[el.local] = strings.TrimSpace(el.text.String())
	}
	if !matched && moduleElement.MatchString(el.local) {
		s.unclosedModules = append(s.unclosedModules, el)
	}
}

func (s *scan) has(local string) bool {
	return s.counts[local] > 0
}

func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

// hasDeclaration reports whether the text opens with an XML declaration
func hasDeclaration(text string) bool {
	text = strings.TrimPrefix(text, "\uFEFF")
	return strings.HasPrefix(strings.TrimLeft(text, " \t\r\n"), "<?xml")
}
