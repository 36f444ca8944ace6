package storage

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSourceStorage_Open(t *testing.T) {
	tempDir := t.TempDir()
	logger, _ := zap.NewDevelopment()
	storage := NewSourceStorage(tempDir, logger)

	require.NoError(t, os.MkdirAll(filepath.Join(tempDir, "docs"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "docs", "csr.pdf"), []byte("%PDF-1.4"), 0644))

	t.Run("opens relative paths inside base directory", func(t *testing.T) {
		rc, err := storage.Open("docs/csr.pdf")
		require.NoError(t, err)
		defer rc.Close()

		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "%PDF-1.4", string(content))
	})

	t.Run("accepts absolute paths inside base directory", func(t *testing.T) {
		path, err := storage.Resolve(filepath.Join(tempDir, "docs", "csr.pdf"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(tempDir, "docs", "csr.pdf"), path)
	})

	t.Run("rejects traversal", func(t *testing.T) {
		_, err := storage.Open("../../etc/passwd")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "escapes base directory")
	})

	t.Run("rejects empty path", func(t *testing.T) {
		_, err := storage.Resolve("")
		assert.Error(t, err)
	})

	t.Run("missing file is wrapped", func(t *testing.T) {
		_, err := storage.Open("docs/missing.pdf")
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestSourceStorage_ValidatePath(t *testing.T) {
	tempDir := t.TempDir()
	storage := NewSourceStorage(tempDir, zap.NewNop())

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"valid path within base", filepath.Join(tempDir, "subfolder", "file.pdf"), false},
		{"base directory itself", tempDir, false},
		{"path escaping base", filepath.Join(tempDir, "..", "outside.pdf"), true},
		{"sibling with shared prefix", tempDir + "-other/file.pdf", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := storage.ValidatePath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
