package models

import "time"

// PackageFile is an immutable snapshot of one file destined for a submission archive
type PackageFile struct {
	SourceDocumentID int64  `json:"source_document_id"`
	SourcePath       string `json:"source_path"`
	TargetPath       string `json:"target_path"` // forward-slash path inside the sequence folder
	NodeCode         string `json:"node_code"`   // dot-segmented, e.g. "16.2.1"
	NodeTitle        string `json:"node_title"`
	FileName         string `json:"file_name"`
	Version          int    `json:"version"`
	FileSize         int64  `json:"file_size"`
}

// ManifestEntry is one archived file with its computed checksums
type ManifestEntry struct {
	TargetPath string `json:"target_path"`
	NodeCode   string `json:"node_code"`
	NodeTitle  string `json:"node_title"`
	FileName   string `json:"file_name"`
	Size       int64  `json:"size"`
	MD5        string `json:"md5"`
	SHA256     string `json:"sha256"`
}

// PackageManifest describes the contents of a generated archive
type PackageManifest struct {
	StudyID     int64           `json:"study_id"`
	PackageID   string          `json:"package_id"`
	Sequence    string          `json:"sequence"`
	GeneratedAt time.Time       `json:"generated_at"`
	TotalFiles  int             `json:"total_files"`
	Files       []ManifestEntry `json:"files"`
}

// ExportRecord is the registry row written after an archive is complete
type ExportRecord struct {
	ID        int64     `json:"id"`
	StudyID   int64     `json:"study_id"`
	PackageID string    `json:"package_id"`
	ZipPath   string    `json:"zip_path"`
	ZipSize   int64     `json:"zip_size"`
	FileCount int       `json:"file_count"`
	XMLValid  bool      `json:"xml_valid"`
	Forced    bool      `json:"forced"`
	CreatedAt time.Time `json:"created_at"`
}
