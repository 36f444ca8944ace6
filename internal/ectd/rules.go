// Package ectd renders and validates the index.xml and us-regional.xml manifests of a submission sequence.
package ectd

import (
	"fmt"
	"strings"
)

// Rule identifies one structural check
type Rule int

const (
	RuleXMLDeclaration Rule = iota
	RuleXMLSyntax
	RuleRootElement
	RuleRequiredElement
	RuleSequenceFormat
	RuleNamespace
	RuleLeafAttribute
	RuleDuplicateID
	RuleChecksumFormat
	RuleHrefFormat
	RuleHrefReference
	RuleUnclosedModule
)

// AllRules lists every rule in evaluation order
var AllRules = []Rule{
	RuleXMLDeclaration,
	RuleXMLSyntax,
	RuleRootElement,
	RuleRequiredElement,
	RuleSequenceFormat,
	RuleNamespace,
	RuleLeafAttribute,
	RuleDuplicateID,
	RuleChecksumFormat,
	RuleHrefFormat,
	RuleHrefReference,
	RuleUnclosedModule,
}

// String returns the stable rule identifier
func (r Rule) String() string {
	switch r {
	case RuleXMLDeclaration:
		return "xml-declaration"
	case RuleXMLSyntax:
		return "xml-syntax"
	case RuleRootElement:
		return "root-element"
	case RuleRequiredElement:
		return "required-element"
	case RuleSequenceFormat:
		return "sequence-format"
	case RuleNamespace:
		return "namespace"
	case RuleLeafAttribute:
		return "leaf-attribute"
	case RuleDuplicateID:
		return "duplicate-id"
	case RuleChecksumFormat:
		return "checksum-format"
	case RuleHrefFormat:
		return "href-format"
	case RuleHrefReference:
		return "href-reference"
	case RuleUnclosedModule:
		return "unclosed-module"
	}
	return fmt.Sprintf("rule(%d)", int(r))
}

// MarshalText encodes the rule as its identifier
func (r Rule) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a rule identifier
func (r *Rule) UnmarshalText(text []byte) error {
	id := strings.TrimSpace(string(text))
	for _, rule := range AllRules {
		if rule.String() == id {
			*r = rule
			return nil
		}
	}
	return fmt.Errorf("unknown rule %q", id)
}

// Severity of a validation issue
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO" // reserved, no structural rule emits it yet
)

// Issue is one rule violation
type Issue struct {
	Rule     Rule     `json:"rule"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Location string   `json:"location,omitempty"`
}

// DocumentType names the manifest being validated
type DocumentType string

const (
	DocumentTypeIndex      DocumentType = "index"
	DocumentTypeUSRegional DocumentType = "us-regional"
)

// Metadata is extracted on a best-effort basis, even from invalid documents
type Metadata struct {
	Sequence          string `json:"sequence,omitempty"`
	SubmissionType    string `json:"submission_type,omitempty"`
	StudyNumber       string `json:"study_number,omitempty"`
	Sponsor           string `json:"sponsor,omitempty"`
	ApplicationNumber string `json:"application_number,omitempty"`
	LeafCount         int    `json:"leaf_count"`
}

// Result is the outcome of validating one manifest
type Result struct {
	Valid        bool         `json:"valid"`
	ErrorCount   int          `json:"error_count"`
	WarningCount int          `json:"warning_count"`
	XMLType      DocumentType `json:"xml_type"`
	Metadata     Metadata     `json:"metadata"`
	Issues       []Issue      `json:"issues"`
}

// Errors returns the ERROR issues in document order
func (r *Result) Errors() []Issue {
	return r.filter(SeverityError)
}

// Warnings returns the WARNING issues in document order
func (r *Result) Warnings() []Issue {
	return r.filter(SeverityWarning)
}

// HasRule reports whether any issue was raised by rule
func (r *Result) HasRule(rule Rule) bool {
	for _, issue := range r.Issues {
		if issue.Rule == rule {
			return true
		}
	}
	return false
}

func (r *Result) filter(severity Severity) []Issue {
	var out []Issue
	for _, issue := range r.Issues {
		if issue.Severity == severity {
			out = append(out, issue)
		}
	}
	return out
}

// add records an issue and keeps the counters in step
func (r *Result) add(rule Rule, severity Severity, location, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{
		Rule:     rule,
		Severity: severity,
		Message:  fmt.Sprintf(format, args...),
		Location: location,
	})
	switch severity {
	case SeverityError:
		r.ErrorCount++
	case SeverityWarning:
		r.WarningCount++
	}
}

func (r *Result) finish() *Result {
	r.Valid = r.ErrorCount == 0
	if r.Issues == nil {
		r.Issues = []Issue{}
	}
	return r
}

func lineLocation(line int) string {
	if line <= 0 {
		return ""
	}
	return fmt.Sprintf("line %d", line)
}
