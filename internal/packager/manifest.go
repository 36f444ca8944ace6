package packager

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/garyjia/submission-packager/internal/models"
	"go.uber.org/zap"
)

// buildManifest hashes every source file once, in arrival order
func (e *Exporter) buildManifest(files []*models.PackageFile) ([]models.ManifestEntry, error) {
	entries := make([]models.ManifestEntry, 0, len(files))
	for _, f := range files {
		entry, err := e.hashFile(f)
		if err != nil {
			return nil, err
		}
		if f.FileSize > 0 && f.FileSize != entry.Size {
			e.logger.Warn("Source file size differs from recorded size",
				zap.String("target_path", f.TargetPath),
				zap.Int64("recorded", f.FileSize),
				zap.Int64("actual", entry.Size))
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (e *Exporter) hashFile(f *models.PackageFile) (models.ManifestEntry, error) {
	rc, err := e.sources.Open(f.SourcePath)
	if err != nil {
		return models.ManifestEntry{}, fmt.Errorf("file %s: %w", f.TargetPath, err)
	}
	defer rc.Close()

	md5Hash := md5.New()
	shaHash := sha256.New()
	size, err := io.Copy(io.MultiWriter(md5Hash, shaHash), rc)
	if err != nil {
		return models.ManifestEntry{}, fmt.Errorf("failed to hash %s: %w", f.TargetPath, err)
	}

	name := f.FileName
	if name == "" {
		name = path.Base(f.TargetPath)
	}
	return models.ManifestEntry{
		TargetPath: strings.TrimPrefix(f.TargetPath, "./"),
		NodeCode:   f.NodeCode,
		NodeTitle:  f.NodeTitle,
		FileName:   name,
		Size:       size,
		MD5:        hex.EncodeToString(md5Hash.Sum(nil)),
		SHA256:     hex.EncodeToString(shaHash.Sum(nil)),
	}, nil
}

// md5Hex returns the hex MD5 digest of data
func md5Hex(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
