package ectd

import (
	"strings"
	"testing"

	"github.com/garyjia/submission-packager/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validIndex = `<?xml version="1.0" encoding="UTF-8"?>
<ectd:ectd xmlns:ectd="http://www.ich.org/ectd" xmlns:xlink="http://www.w3c.org/1999/xlink" dtd-version="3.2">
  <submission>
    <sequence>0001</sequence>
    <submission-type>original</submission-type>
    <submission-date>2026-10-19</submission-date>
  </submission>
  <applicant>Acme Pharma</applicant>
  <study-number>ACME-301</study-number>
  <m5-clinical-study-reports>
    <leaf ID="leaf-0001" operation="new" checksum="0123456789abcdef0123456789abcdef" checksum-type="md5" xlink:href="m5/study/16-1-synopsis.pdf">
      <title>16.1 - Synopsis</title>
    </leaf>
    <leaf ID="leaf-0002" operation="new" checksum="fedcba9876543210fedcba9876543210" checksum-type="md5" xlink:href="m5/study/16-2-listings.pdf">
      <title>16.2 - Listings</title>
    </leaf>
  </m5-clinical-study-reports>
</ectd:ectd>
`

func TestValidateIndexXML_Valid(t *testing.T) {
	result := ValidateIndexXML(validIndex, IndexOptions{})

	assert.True(t, result.Valid, FormatXMLValidationReport(result))
	assert.Equal(t, 0, result.ErrorCount)
	assert.Equal(t, 0, result.WarningCount)
	assert.Equal(t, DocumentTypeIndex, result.XMLType)
	assert.Equal(t, "0001", result.Metadata.Sequence)
	assert.Equal(t, "original", result.Metadata.SubmissionType)
	assert.Equal(t, "ACME-301", result.Metadata.StudyNumber)
	assert.Equal(t, "Acme Pharma", result.Metadata.Sponsor)
	assert.Equal(t, 2, result.Metadata.LeafCount)
	assert.NotNil(t, result.Issues)
}

func TestValidateIndexXML_Rules(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(string) string
		opts     IndexOptions
		rule     Rule
		severity Severity
		contains string
	}{
		{
			name:     "sequence must be four digits",
			mutate:   func(s string) string { return strings.Replace(s, "<sequence>0001<", "<sequence>1<", 1) },
			rule:     RuleSequenceFormat,
			severity: SeverityError,
			contains: `"1"`,
		},
		{
			name:     "declaration is required",
			mutate:   func(s string) string { return strings.Replace(s, `<?xml version="1.0" encoding="UTF-8"?>`+"\n", "", 1) },
			rule:     RuleXMLDeclaration,
			severity: SeverityError,
		},
		{
			name:     "root element must match",
			mutate:   func(s string) string { return strings.ReplaceAll(s, "ectd:ectd", "ectd:other") },
			rule:     RuleRootElement,
			severity: SeverityError,
			contains: "ectd:other",
		},
		{
			name:     "study number is required",
			mutate:   func(s string) string { return strings.Replace(s, "  <study-number>ACME-301</study-number>\n", "", 1) },
			rule:     RuleRequiredElement,
			severity: SeverityError,
			contains: "study-number",
		},
		{
			name: "namespace declarations are required",
			mutate: func(s string) string {
				return strings.Replace(s, ` xmlns:xlink="http://www.w3c.org/1999/xlink"`, "", 1)
			},
			rule:     RuleNamespace,
			severity: SeverityError,
			contains: "xmlns:xlink",
		},
		{
			name:     "leaf identifiers must be unique",
			mutate:   func(s string) string { return strings.Replace(s, `ID="leaf-0002"`, `ID="leaf-0001"`, 1) },
			rule:     RuleDuplicateID,
			severity: SeverityError,
			contains: "leaf-0001",
		},
		{
			name: "checksum must be 32 hex characters",
			mutate: func(s string) string {
				return strings.Replace(s, "0123456789abcdef0123456789abcdef", "not-a-checksum", 1)
			},
			rule:     RuleChecksumFormat,
			severity: SeverityError,
			contains: "32",
		},
		{
			name: "href must use forward slashes",
			mutate: func(s string) string {
				return strings.Replace(s, "m5/study/16-1-synopsis.pdf", `m5\study\16-1-synopsis.pdf`, 1)
			},
			rule:     RuleHrefFormat,
			severity: SeverityError,
		},
		{
			name:     "modules must be closed",
			mutate:   func(s string) string { return strings.Replace(s, "  </m5-clinical-study-reports>\n", "", 1) },
			rule:     RuleUnclosedModule,
			severity: SeverityError,
			contains: "m5-clinical-study-reports",
		},
		{
			name:     "href must reference a package file",
			mutate:   func(s string) string { return s },
			opts:     IndexOptions{PackageFiles: []*models.PackageFile{{TargetPath: "m5/study/16-1-synopsis.pdf"}}},
			rule:     RuleHrefReference,
			severity: SeverityError,
			contains: "16-2-listings.pdf",
		},
		{
			name:     "leaf needs an href",
			mutate:   func(s string) string { return strings.Replace(s, ` xlink:href="m5/study/16-2-listings.pdf"`, "", 1) },
			rule:     RuleLeafAttribute,
			severity: SeverityError,
			contains: "leaf-0002",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateIndexXML(tt.mutate(validIndex), tt.opts)

			require.True(t, result.HasRule(tt.rule), FormatXMLValidationReport(result))
			var found bool
			for _, issue := range result.Issues {
				if issue.Rule != tt.rule {
					continue
				}
				found = true
				assert.Equal(t, tt.severity, issue.Severity)
				if tt.contains != "" {
					assert.Contains(t, issue.Message, tt.contains)
				}
			}
			assert.True(t, found)
			assert.False(t, result.Valid)
			assert.Equal(t, len(result.Errors()), result.ErrorCount)
		})
	}
}

func TestValidateIndexXML_MissingFieldsAreReportedSeparately(t *testing.T) {
	doc := `<?xml version="1.0"?>
<ectd:ectd xmlns:ectd="http://www.ich.org/ectd" xmlns:xlink="http://www.w3c.org/1999/xlink">
  <applicant>Acme</applicant>
</ectd:ectd>`

	result := ValidateIndexXML(doc, IndexOptions{})

	var missing int
	for _, issue := range result.Issues {
		if issue.Rule == RuleRequiredElement {
			missing++
		}
	}
	assert.Equal(t, 4, missing)
	assert.False(t, result.HasRule(RuleSequenceFormat))
	assert.Equal(t, "Acme", result.Metadata.Sponsor)
}

func TestValidateIndexXML_ChecksumOptions(t *testing.T) {
	bad := strings.Replace(validIndex, "0123456789abcdef0123456789abcdef", "abc", 1)

	t.Run("skips checksum validation when asked", func(t *testing.T) {
		result := ValidateIndexXML(bad, IndexOptions{SkipChecksumValidation: true})
		assert.False(t, result.HasRule(RuleChecksumFormat))
		assert.True(t, result.Valid)
	})

	t.Run("uses the declared algorithm length", func(t *testing.T) {
		sha := strings.Repeat("a", 64)
		doc := strings.Replace(validIndex, `checksum="0123456789abcdef0123456789abcdef" checksum-type="md5"`,
			`checksum="`+sha+`" checksum-type="sha256"`, 1)

		result := ValidateIndexXML(doc, IndexOptions{})
		assert.True(t, result.Valid, FormatXMLValidationReport(result))
	})

	t.Run("warns on unknown algorithms", func(t *testing.T) {
		doc := strings.Replace(validIndex, `checksum-type="md5"`, `checksum-type="crc32"`, 1)

		result := ValidateIndexXML(doc, IndexOptions{})
		assert.True(t, result.Valid)
		assert.Equal(t, 1, result.WarningCount)
		assert.True(t, result.HasRule(RuleChecksumFormat))
	})
}

func TestValidateIndexXML_HrefReferenceMatches(t *testing.T) {
	files := []*models.PackageFile{
		{TargetPath: "m5/study/16-1-synopsis.pdf"},
		{TargetPath: "./m5/study/16-2-listings.pdf"},
	}

	result := ValidateIndexXML(validIndex, IndexOptions{PackageFiles: files})

	assert.False(t, result.HasRule(RuleHrefReference))
	assert.True(t, result.Valid)
}

func TestValidateIndexXML_GarbageInput(t *testing.T) {
	result := ValidateIndexXML("this is not xml <<<", IndexOptions{})

	assert.False(t, result.Valid)
	assert.True(t, result.HasRule(RuleXMLDeclaration))
	assert.True(t, result.HasRule(RuleRootElement))
}

func TestRuleIdentifiers(t *testing.T) {
	seen := make(map[string]bool)
	for _, rule := range AllRules {
		id := rule.String()
		assert.NotContains(t, id, "rule(")
		assert.False(t, seen[id], "duplicate identifier %s", id)
		seen[id] = true

		var decoded Rule
		require.NoError(t, decoded.UnmarshalText([]byte(id)))
		assert.Equal(t, rule, decoded)
	}

	var r Rule
	assert.Error(t, r.UnmarshalText([]byte("no-such-rule")))
}
