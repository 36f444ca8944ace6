package packager

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/garyjia/submission-packager/internal/models"
	"github.com/garyjia/submission-packager/internal/storage"
)

const (
	indexFile      = "index.xml"
	indexMD5File   = "index-md5.txt"
	regionalFile   = "m1/us/us-regional.xml"
	navigationFile = "navigation.pdf"

	manifestFile   = "manifest.json"
	reportJSONFile = "validation-report.json"
	reportXLSXFile = "validation-report.xlsx"

	unsequencedFolder = "unsequenced"
)

// reservedTargets are generated inside the sequence folder and cannot be package files
var reservedTargets = map[string]bool{
	indexFile:      true,
	indexMD5File:   true,
	regionalFile:   true,
	navigationFile: true,
}

// archiveContents is everything written into one archive
type archiveContents struct {
	sequence    string
	indexXML    string
	regionalXML string
	navigation  []byte
	manifest    *models.PackageManifest
	reportJSON  []byte
	reportXLSX  []byte
	files       []*models.PackageFile
	generatedAt time.Time
}

// archive adds deflated entries with a fixed modification time
type archive struct {
	zw       *zip.Writer
	modified time.Time
}

func (a *archive) create(name string) (io.Writer, error) {
	header := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: a.modified,
	}
	w, err := a.zw.CreateHeader(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create zip entry for %s: %w", name, err)
	}
	return w, nil
}

func (a *archive) addBytes(name string, data []byte) error {
	w, err := a.create(name)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write zip entry %s: %w", name, err)
	}
	return nil
}

func (a *archive) addFrom(name string, r io.Reader) error {
	w, err := a.create(name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("failed to write zip entry %s: %w", name, err)
	}
	return nil
}

// writeArchive lays out {sequence}/index.xml, the regional addendum, navigation and every file,
// plus the manifest and package report at the archive root
func (e *Exporter) writeArchive(w io.Writer, c *archiveContents) error {
	zw := zip.NewWriter(w)
	a := &archive{zw: zw, modified: c.generatedAt}
	seq := func(name string) string { return path.Join(c.sequence, name) }

	if err := a.addBytes(seq(indexFile), []byte(c.indexXML)); err != nil {
		return err
	}
	if err := a.addBytes(seq(indexMD5File), []byte(md5Hex([]byte(c.indexXML)))); err != nil {
		return err
	}
	if err := a.addBytes(seq(regionalFile), []byte(c.regionalXML)); err != nil {
		return err
	}
	if err := a.addBytes(seq(navigationFile), c.navigation); err != nil {
		return err
	}

	for _, f := range c.files {
		if err := e.copySource(a, seq(strings.TrimPrefix(f.TargetPath, "./")), f); err != nil {
			return err
		}
	}

	manifestJSON, err := json.MarshalIndent(c.manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := a.addBytes(manifestFile, manifestJSON); err != nil {
		return err
	}
	if err := a.addBytes(reportJSONFile, c.reportJSON); err != nil {
		return err
	}
	if err := a.addBytes(reportXLSXFile, c.reportXLSX); err != nil {
		return err
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize zip: %w", err)
	}
	return nil
}

func (e *Exporter) copySource(a *archive, name string, f *models.PackageFile) error {
	rc, err := e.sources.Open(f.SourcePath)
	if err != nil {
		return fmt.Errorf("file %s: %w", f.TargetPath, err)
	}
	defer rc.Close()
	return a.addFrom(name, rc)
}

func sequenceFolder(sequence string) string {
	if s := storage.SanitizeName(sequence); s != "" {
		return s
	}
	return unsequencedFolder
}
