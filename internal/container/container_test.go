package container

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/garyjia/submission-packager/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)

	dir := t.TempDir()
	cfg.Database.Path = filepath.Join(dir, "packager.db")
	cfg.Storage.SourceDir = filepath.Join(dir, "documents")
	cfg.Storage.ExportDir = filepath.Join(dir, "exports")
	return cfg
}

func TestNewContainer_Validation(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(testConfig(t), nil)
	assert.Error(t, err)

	cfg := testConfig(t)
	cfg.Bookmarks.MaxDepth = 0
	_, err = NewContainer(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestContainer_Lifecycle(t *testing.T) {
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	assert.False(t, c.Ready())
	assert.Error(t, c.Health(context.Background()))

	require.NoError(t, c.Start(context.Background()))
	assert.True(t, c.Ready())
	assert.Error(t, c.Start(context.Background()), "second start")

	require.NotNil(t, c.Services().Exporter)
	require.NotNil(t, c.Repositories().Study)
	assert.DirExists(t, c.Config().Storage.ExportDir)

	status := c.HealthStatus(context.Background())
	assert.True(t, status.Overall)
	assert.True(t, status.Components["database"].Healthy)

	// the embedded schema is applied
	studies, err := c.Repositories().Study.ListStudies(context.Background())
	require.NoError(t, err)
	assert.Empty(t, studies)

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close())
	assert.Error(t, c.Start(context.Background()))
}

func TestContainer_StartHonorsCancelledContext(t *testing.T) {
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, c.Start(ctx), context.Canceled)
	assert.False(t, c.Ready())
}
