package ectd

import "sort"

var regionalRequired = []requiredField{
	{"submission-type", "submission type"},
	{"application-number", "application number"},
}

var regionalNamespaces = map[string]string{
	"xmlns:fda-regional": NamespaceRegional,
}

// ValidateUSRegionalXML checks a us-regional.xml addendum
func ValidateUSRegionalXML(text string) *Result {
	result := &Result{XMLType: DocumentTypeUSRegional}
	s := scanDocument(text)

	checkDeclaration(result, text)
	checkSyntax(result, s)
	checkRoot(result, s, RegionalRootElement)
	checkRequired(result, s, regionalRequired)
	checkNamespaces(result, s, regionalNamespaces)

	result.Metadata = Metadata{
		Sequence:          s.texts["sequence-number"],
		SubmissionType:    s.texts["submission-type"],
		Sponsor:           s.texts["company-name"],
		ApplicationNumber: s.texts["application-number"],
	}
	return result.finish()
}

// CombinedResult joins the index and regional results of one sequence
type CombinedResult struct {
	CombinedValid bool    `json:"combined_valid"`
	TotalErrors   int     `json:"total_errors"`
	TotalWarnings int     `json:"total_warnings"`
	Index         *Result `json:"index"`
	Regional      *Result `json:"regional"`
}

// ValidateEctdXML validates both manifests independently and combines the verdicts
func ValidateEctdXML(indexText, regionalText string, opts IndexOptions) *CombinedResult {
	index := ValidateIndexXML(indexText, opts)
	regional := ValidateUSRegionalXML(regionalText)
	return &CombinedResult{
		CombinedValid: index.Valid && regional.Valid,
		TotalErrors:   index.ErrorCount + regional.ErrorCount,
		TotalWarnings: index.WarningCount + regional.WarningCount,
		Index:         index,
		Regional:      regional,
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
