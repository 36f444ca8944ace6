package ectd

import (
	"strings"
	"testing"
	"time"

	"github.com/garyjia/submission-packager/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStudy() *models.Study {
	return &models.Study{
		ID:                7,
		StudyNumber:       "ACME-301",
		Title:             "Phase III efficacy & safety",
		Sponsor:           "Acme <Pharma>",
		ApplicationNumber: "IND 123456",
		SubmissionType:    "original",
		Sequence:          "0001",
	}
}

func testEntries() []models.ManifestEntry {
	return []models.ManifestEntry{
		{TargetPath: "m5/study/16-1.pdf", NodeCode: "16.1", NodeTitle: "Synopsis", MD5: strings.Repeat("a", 32)},
		{TargetPath: "m1/us/cover.pdf", NodeCode: "1.1", NodeTitle: "Cover letter", MD5: strings.Repeat("b", 32)},
		{TargetPath: "listings/16-2.pdf", NodeCode: "16.2", NodeTitle: "Listings", MD5: strings.Repeat("c", 32)},
	}
}

func TestRenderedManifestsValidate(t *testing.T) {
	study := testStudy()
	entries := testEntries()

	index, err := RenderIndex(BuildIndexData(study, entries, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), ChecksumMD5))
	require.NoError(t, err)
	regional, err := RenderRegional(BuildRegionalData(study))
	require.NoError(t, err)

	files := []*models.PackageFile{
		{TargetPath: "m5/study/16-1.pdf"},
		{TargetPath: "m1/us/cover.pdf"},
		{TargetPath: "listings/16-2.pdf"},
	}
	combined := ValidateEctdXML(index, regional, IndexOptions{PackageFiles: files})

	assert.True(t, combined.CombinedValid, FormatCombinedReport(combined))
	assert.Equal(t, 0, combined.TotalErrors)
	assert.Equal(t, 3, combined.Index.Metadata.LeafCount)
	assert.Equal(t, "Acme <Pharma>", combined.Index.Metadata.Sponsor)
	assert.Equal(t, "IND 123456", combined.Regional.Metadata.ApplicationNumber)
	assert.Equal(t, "0001", combined.Regional.Metadata.Sequence)

	// m1 renders before m5 and unknown folders fall into m5
	assert.Less(t, strings.Index(index, "<m1-"), strings.Index(index, "<m5-"))
	assert.Equal(t, 1, strings.Count(index, "<m5-clinical-study-reports>"))
}

func TestBuildIndexData_SHA256(t *testing.T) {
	entries := testEntries()
	for i := range entries {
		entries[i].SHA256 = strings.Repeat("d", 64)
	}

	data := BuildIndexData(testStudy(), entries, time.Now(), ChecksumSHA256)
	index, err := RenderIndex(data)
	require.NoError(t, err)

	assert.Contains(t, index, `checksum-type="sha256"`)
	result := ValidateIndexXML(index, IndexOptions{})
	assert.True(t, result.Valid, FormatXMLValidationReport(result))
}

func TestBuildIndexData_GroupsByTargetFolder(t *testing.T) {
	entries := []models.ManifestEntry{
		{TargetPath: "m1/us/16-1.pdf", NodeCode: "16.1", NodeTitle: "Synopsis"},
		{TargetPath: "m3/quality/1-1.pdf", NodeCode: "1.1", NodeTitle: "Quality"},
		{TargetPath: "cover.pdf", NodeCode: "1.2", NodeTitle: "Cover"},
		{TargetPath: "m9/other.pdf", NodeCode: "2.1", NodeTitle: "Other"},
	}

	data := BuildIndexData(testStudy(), entries, time.Now(), ChecksumMD5)

	require.Len(t, data.Modules, 3)
	assert.Equal(t, moduleNames["m1"], data.Modules[0].Element)
	assert.Equal(t, "m1/us/16-1.pdf", data.Modules[0].Leaves[0].Href)
	assert.Equal(t, moduleNames["m3"], data.Modules[1].Element)
	assert.Equal(t, "m3/quality/1-1.pdf", data.Modules[1].Leaves[0].Href)
	assert.Equal(t, moduleNames["m5"], data.Modules[2].Element)
	require.Len(t, data.Modules[2].Leaves, 2)
	assert.Equal(t, "cover.pdf", data.Modules[2].Leaves[0].Href)
	assert.Equal(t, "m9/other.pdf", data.Modules[2].Leaves[1].Href)
}

func TestValidateUSRegionalXML(t *testing.T) {
	regional, err := RenderRegional(BuildRegionalData(testStudy()))
	require.NoError(t, err)

	t.Run("accepts the rendered addendum", func(t *testing.T) {
		result := ValidateUSRegionalXML(regional)
		assert.True(t, result.Valid, FormatXMLValidationReport(result))
		assert.Equal(t, DocumentTypeUSRegional, result.XMLType)
	})

	t.Run("requires the declaration", func(t *testing.T) {
		result := ValidateUSRegionalXML(strings.TrimPrefix(regional, `<?xml version="1.0" encoding="UTF-8"?>`))
		assert.False(t, result.Valid)
		assert.True(t, result.HasRule(RuleXMLDeclaration))
	})

	t.Run("requires the regional root", func(t *testing.T) {
		result := ValidateUSRegionalXML(validIndex)
		assert.False(t, result.Valid)
		assert.True(t, result.HasRule(RuleRootElement))
	})
}

func TestValidateEctdXML_CombinesCounts(t *testing.T) {
	regional, err := RenderRegional(BuildRegionalData(testStudy()))
	require.NoError(t, err)
	badIndex := strings.Replace(validIndex, "<sequence>0001<", "<sequence>12<", 1)

	combined := ValidateEctdXML(badIndex, regional, IndexOptions{})

	assert.False(t, combined.CombinedValid)
	assert.False(t, combined.Index.Valid)
	assert.True(t, combined.Regional.Valid)
	assert.Equal(t, combined.Index.ErrorCount+combined.Regional.ErrorCount, combined.TotalErrors)
}

func TestFormatXMLValidationReport(t *testing.T) {
	t.Run("valid report", func(t *testing.T) {
		report := FormatXMLValidationReport(ValidateIndexXML(validIndex, IndexOptions{}))

		assert.True(t, strings.HasPrefix(report, "eCTD XML Validation Report (index.xml)\n"))
		assert.Contains(t, report, "Status: VALID")
		assert.Contains(t, report, "Sequence: 0001")
		assert.Contains(t, report, "Study: ACME-301")
		assert.NotContains(t, report, "ERRORS:")
	})

	t.Run("invalid report lists errors", func(t *testing.T) {
		doc := strings.Replace(validIndex, "<sequence>0001<", "<sequence>1<", 1)
		result := ValidateIndexXML(doc, IndexOptions{})
		report := FormatXMLValidationReport(result)

		assert.Contains(t, report, "Status: INVALID")
		assert.Contains(t, report, "ERRORS:")
		assert.Contains(t, report, "[sequence-format]")
		assert.Equal(t, report, FormatXMLValidationReport(result))
	})
}
