package packager

import "errors"

// Domain errors for archive assembly
var (
	// Gating errors
	ErrNotReady = errors.New("study is not ready for export")

	// Input errors
	ErrNoFiles           = errors.New("study has no files to package")
	ErrDuplicateTarget   = errors.New("more than one file uses the same target path")
	ErrInvalidTargetPath = errors.New("invalid target path")

	// Assembly errors
	ErrNavigationFailed = errors.New("failed to build navigation document")
)
