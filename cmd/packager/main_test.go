package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/garyjia/submission-packager/internal/ectd"
	"github.com/garyjia/submission-packager/internal/models"
	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the root command and returns its stdout
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	// flags keep their values between executions
	rootCmd.SetArgs(append([]string{"--json=false", "--config="}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func writeManifests(t *testing.T) (string, string) {
	t.Helper()
	study := &models.Study{
		StudyNumber:       "ACME-301",
		Title:             "Phase III",
		Sponsor:           "Acme",
		ApplicationNumber: "IND 123456",
		SubmissionType:    "original",
		Sequence:          "0001",
	}
	entries := []models.ManifestEntry{
		{TargetPath: "m5/study/16-1.pdf", NodeCode: "16.1", NodeTitle: "Synopsis", MD5: strings.Repeat("a", 32)},
	}
	index, err := ectd.RenderIndex(ectd.BuildIndexData(study, entries, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), ectd.ChecksumMD5))
	require.NoError(t, err)
	regional, err := ectd.RenderRegional(ectd.BuildRegionalData(study))
	require.NoError(t, err)

	dir := t.TempDir()
	indexPath := filepath.Join(dir, "index.xml")
	regionalPath := filepath.Join(dir, "us-regional.xml")
	require.NoError(t, os.WriteFile(indexPath, []byte(index), 0644))
	require.NoError(t, os.WriteFile(regionalPath, []byte(regional), 0644))
	return indexPath, regionalPath
}

func TestValidateCommand(t *testing.T) {
	indexPath, regionalPath := writeManifests(t)

	t.Run("valid pair reports combined status", func(t *testing.T) {
		out, err := run(t, "validate", indexPath, regionalPath)
		require.NoError(t, err)
		assert.Contains(t, out, "Combined status: VALID")
	})

	t.Run("single index file", func(t *testing.T) {
		out, err := run(t, "validate", indexPath)
		require.NoError(t, err)
		assert.Contains(t, out, "Study: ACME-301")
	})

	t.Run("broken file fails", func(t *testing.T) {
		broken := filepath.Join(t.TempDir(), "index.xml")
		require.NoError(t, os.WriteFile(broken, []byte("<ectd:ectd>"), 0644))

		out, err := run(t, "validate", broken)
		assert.Error(t, err)
		assert.Contains(t, out, "Status: INVALID")
	})

	t.Run("missing file fails", func(t *testing.T) {
		_, err := run(t, "validate", filepath.Join(t.TempDir(), "nope.xml"))
		assert.Error(t, err)
	})
}

func TestCheckFileCommand(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "16-1-synopsis.pdf")
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(40, 10, "Synopsis")
	require.NoError(t, pdf.OutputFileAndClose(good))

	out, err := run(t, "check-file", good)
	require.NoError(t, err)
	assert.Contains(t, out, "PASS  16-1-synopsis.pdf (1 pages, bookmarks: false)")

	bad := filepath.Join(dir, "Bad Name.txt")
	require.NoError(t, os.WriteFile(bad, []byte("notes"), 0644))

	out, err = run(t, "check-file", good, bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 file(s) failed")
	assert.Contains(t, out, "FAIL  Bad Name.txt")
	assert.Contains(t, out, "File name contains spaces")
}

func TestParseStudyID(t *testing.T) {
	id, err := parseStudyID("12")
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)

	_, err = parseStudyID("x")
	assert.Error(t, err)

	_, err = run(t, "readiness", "x")
	assert.Error(t, err)
}

func TestMigrateCommand(t *testing.T) {
	t.Setenv("PACKAGER_DATABASE_PATH", filepath.Join(t.TempDir(), "cli.db"))

	out, err := run(t, "migrate", "--status=true")
	require.NoError(t, err)
	assert.Contains(t, out, "001  initial_schema")
	assert.Contains(t, out, "pending")

	out, err = run(t, "migrate", "--status=false")
	require.NoError(t, err)
	assert.NotContains(t, out, "pending")
	assert.Contains(t, out, "002  exports")
}
