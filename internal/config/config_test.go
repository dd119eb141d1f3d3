package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 1000.0, cfg.Pipeline.MaxPairDistance)
	assert.Equal(t, 0.7, cfg.Pipeline.MinTextConfidence)
	assert.Equal(t, "unknown", cfg.Pipeline.UnknownText)
	assert.Equal(t, "centerline", cfg.Pipeline.Aligner)
	assert.Equal(t, 0.3, cfg.Pipeline.SmoothingFactor)
	assert.Equal(t, 0.1, cfg.Pipeline.Padding)
	assert.Equal(t, 5*time.Minute, cfg.Pipeline.RunInterval)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "parkmap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
environment: production
pipeline:
  max_pair_distance: 50
  aligner: baseline
  run_interval: 30s
vision:
  uploads_dir: /data/uploads
`), 0o644))

	t.Setenv("PARKMAP_PIPELINE_PADDING", "0.2")
	t.Setenv("PARKMAP_AUTH_JWT_SECRET", "s3cret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, 50.0, cfg.Pipeline.MaxPairDistance)
	assert.Equal(t, "baseline", cfg.Pipeline.Aligner)
	assert.Equal(t, 30*time.Second, cfg.Pipeline.RunInterval)
	assert.Equal(t, 0.2, cfg.Pipeline.Padding)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, "/data/uploads", cfg.Vision.UploadsDir)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)

	bad := *cfg
	bad.Pipeline.MaxPairDistance = 0
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Pipeline.Padding = 0.5
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Pipeline.SmoothingFactor = 1.5
	assert.Error(t, bad.Validate())
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
