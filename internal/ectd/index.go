package ectd

import (
	"regexp"
	"strings"

	"github.com/garyjia/submission-packager/internal/models"
)

const (
	IndexRootElement    = "ectd:ectd"
	RegionalRootElement = "fda-regional:fda-regional"

	NamespaceECTD     = "http://www.ich.org/ectd"
	NamespaceXlink    = "http://www.w3c.org/1999/xlink"
	NamespaceRegional = "http://www.ich.org/fda"

	ChecksumMD5    = "md5"
	ChecksumSHA256 = "sha256"
)

var (
	sequencePattern = regexp.MustCompile(`^\d{4}$`)

	checksumLengths = map[string]int{
		ChecksumMD5:    32,
		ChecksumSHA256: 64,
	}
)

// requiredField is a mandatory element and the label used in messages
type requiredField struct {
	element string
	label   string
}

var indexRequired = []requiredField{
	{"sequence", "submission sequence"},
	{"submission-type", "submission type"},
	{"submission-date", "submission date"},
	{"applicant", "applicant name"},
	{"study-number", "study number"},
}

var indexNamespaces = map[string]string{
	"xmlns:ectd":  NamespaceECTD,
	"xmlns:xlink": NamespaceXlink,
}

// IndexOptions tunes index.xml validation
type IndexOptions struct {
	// SkipChecksumValidation disables the checksum-format rule
	SkipChecksumValidation bool

	// PackageFiles, when non-nil, enables the href-reference rule against their target paths
	PackageFiles []*models.PackageFile
}

// ValidateIndexXML checks an index.xml manifest against the structural rule set
func ValidateIndexXML(text string, opts IndexOptions) *Result {
	result := &Result{XMLType: DocumentTypeIndex}
	s := scanDocument(text)

	checkDeclaration(result, text)
	checkSyntax(result, s)
	checkRoot(result, s, IndexRootElement)
	checkRequired(result, s, indexRequired)
	checkSequence(result, s)
	checkNamespaces(result, s, indexNamespaces)
	checkLeaves(result, s, opts)
	checkModules(result, s)

	result.Metadata = Metadata{
		Sequence:       s.texts["sequence"],
		SubmissionType: s.texts["submission-type"],
		StudyNumber:    s.texts["study-number"],
		Sponsor:        s.texts["applicant"],
		LeafCount:      len(s.leaves),
	}
	return result.finish()
}

func checkDeclaration(result *Result, text string) {
	if !hasDeclaration(text) {
		result.add(RuleXMLDeclaration, SeverityError, lineLocation(1),
			"Document must begin with an XML declaration (<?xml version=\"1.0\" ...?>)")
	}
}

func checkSyntax(result *Result, s *scan) {
	if s.syntaxErr != nil {
		result.add(RuleXMLSyntax, SeverityError, lineLocation(s.syntaxLine),
			"Document is not well-formed: %v", s.syntaxErr)
	}
}

func checkRoot(result *Result, s *scan, expected string) {
	if s.root == nil {
		result.add(RuleRootElement, SeverityError, "", "Missing root element <%s>", expected)
		return
	}
	if s.root.name != expected {
		result.add(RuleRootElement, SeverityError, lineLocation(s.root.line),
			"Root element must be <%s>, found <%s>", expected, s.root.name)
	}
}

func checkRequired(result *Result, s *scan, fields []requiredField) {
	for _, f := range fields {
		if !s.has(f.element) {
			result.add(RuleRequiredElement, SeverityError, "",
				"Missing required element <%s> (%s)", f.element, f.label)
			continue
		}
		if s.texts[f.element] == "" {
			result.add(RuleRequiredElement, SeverityError, "",
				"Required element <%s> (%s) is empty", f.element, f.label)
		}
	}
}

func checkSequence(result *Result, s *scan) {
	if !s.has("sequence") {
		return
	}
	if seq := s.texts["sequence"]; !sequencePattern.MatchString(seq) {
		result.add(RuleSequenceFormat, SeverityError, "",
			"Sequence number must be exactly 4 digits, got %q", seq)
	}
}

func checkNamespaces(result *Result, s *scan, required map[string]string) {
	if s.root == nil {
		return
	}
	for _, attr := range sortedKeys(required) {
		want := required[attr]
		got, ok := s.root.attrs[attr]
		switch {
		case !ok:
			result.add(RuleNamespace, SeverityError, lineLocation(s.root.line),
				"Root element is missing namespace declaration %s=%q", attr, want)
		case got != want:
			result.add(RuleNamespace, SeverityWarning, lineLocation(s.root.line),
				"Namespace %s is %q, expected %q", attr, got, want)
		}
	}
}

func checkLeaves(result *Result, s *scan, opts IndexOptions) {
	var targets map[string]bool
	if opts.PackageFiles != nil {
		targets = make(map[string]bool, len(opts.PackageFiles))
		for _, f := range opts.PackageFiles {
			if f != nil {
				targets[normalizeHref(f.TargetPath)] = true
			}
		}
	}

	firstSeen := make(map[string]int)
	for _, leaf := range s.leaves {
		loc := lineLocation(leaf.line)

		id, hasID := leaf.attr("ID", "id")
		if !hasID || id == "" {
			result.add(RuleLeafAttribute, SeverityError, loc, "Leaf is missing its ID attribute")
		} else if line, dup := firstSeen[id]; dup {
			result.add(RuleDuplicateID, SeverityError, loc,
				"Duplicate leaf ID %q (first defined at line %d)", id, line)
		} else {
			firstSeen[id] = leaf.line
		}

		checksum, hasChecksum := leaf.attr("checksum")
		if !hasChecksum || checksum == "" {
			result.add(RuleLeafAttribute, SeverityError, loc, "Leaf %q is missing its checksum attribute", id)
		} else if !opts.SkipChecksumValidation {
			checkChecksum(result, leaf, id, checksum)
		}

		href, hasHref := leaf.attr("xlink:href", "href")
		if !hasHref || href == "" {
			result.add(RuleLeafAttribute, SeverityError, loc, "Leaf %q is missing its xlink:href attribute", id)
			continue
		}
		checkHref(result, loc, id, href)
		if targets != nil && !targets[normalizeHref(href)] {
			result.add(RuleHrefReference, SeverityError, loc,
				"Leaf %q references %q which is not part of the package", id, href)
		}
	}
}

func checkChecksum(result *Result, leaf *element, id, checksum string) {
	loc := lineLocation(leaf.line)
	algorithm, _ := leaf.attr("checksum-type")
	algorithm = strings.ToLower(strings.TrimSpace(algorithm))
	if algorithm == "" {
		algorithm = ChecksumMD5
	}
	length, known := checksumLengths[algorithm]
	if !known {
		result.add(RuleChecksumFormat, SeverityWarning, loc,
			"Leaf %q declares unsupported checksum-type %q", id, algorithm)
		return
	}
	if !IsHexDigest(checksum, length) {
		result.add(RuleChecksumFormat, SeverityError, loc,
			"Leaf %q checksum must be %d hexadecimal characters for %s, got %q", id, length, algorithm, checksum)
	}
}

func checkHref(result *Result, loc, id, href string) {
	if strings.Contains(href, `\`) {
		result.add(RuleHrefFormat, SeverityError, loc,
			"Leaf %q href %q must use forward slashes only", id, href)
		return
	}
	if strings.HasPrefix(href, "/") || strings.Contains(href, "../") {
		result.add(RuleHrefFormat, SeverityWarning, loc,
			"Leaf %q href %q should be relative to the sequence folder", id, href)
	}
}

func checkModules(result *Result, s *scan) {
	for _, m := range s.unclosedModules {
		result.add(RuleUnclosedModule, SeverityError, lineLocation(m.line),
			"Module element <%s> is not closed before the root element ends", m.name)
	}
	if s.root != nil && !s.rootClosed && s.syntaxErr == nil {
		result.add(RuleUnclosedModule, SeverityError, lineLocation(s.root.line),
			"Root element <%s> is never closed", s.root.name)
	}
}

// IsHexDigest reports whether s is exactly length hexadecimal characters
func IsHexDigest(s string, length int) bool {
	if len(s) != length {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

func normalizeHref(p string) string {
	p = strings.TrimSpace(p)
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	return p
}
