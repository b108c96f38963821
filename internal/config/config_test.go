package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1080, cfg.Render.Width)
	assert.Equal(t, 1920, cfg.Render.Height)
	assert.InDelta(t, 1.0/30.0, cfg.Render.FramePeriod(), 1e-12)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "beatcut.yaml")
	content := `
concurrency: 3
ffmpeg:
  encoder: libx264
library:
  root: /srv/broll
  cache_backend: sqlite
render:
  max_duration_s: 12
  enable_grain: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Concurrency)
	assert.Equal(t, EncoderX264, cfg.FFmpeg.Encoder)
	assert.Equal(t, 12.0, cfg.Render.MaxDurationS)
	assert.False(t, cfg.Render.EnableGrain)
	// untouched fields keep defaults
	assert.Equal(t, 5.0, cfg.Render.MinDurationS)
	assert.Equal(t, "ffprobe", cfg.FFmpeg.ProbePath)
	assert.Equal(t, filepath.Join("/srv/broll", "_cache.db"), cfg.CachePath())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Render, cfg.Render)
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("render:\n  min_duration_s: 20\n"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_duration_s")
}

func TestRenderValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RenderConfig)
	}{
		{"odd width", func(r *RenderConfig) { r.Width = 1081 }},
		{"zero fps", func(r *RenderConfig) { r.FPS = 0 }},
		{"inverted speed", func(r *RenderConfig) { r.SpeedMin, r.SpeedMax = 1.2, 1.0 }},
		{"bad preset", func(r *RenderConfig) { r.X264Preset = "ludicrous" }},
		{"crf range", func(r *RenderConfig) { r.CRF = 60 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := DefaultRender()
			tt.mutate(&r)
			assert.Error(t, r.Validate())
		})
	}
}

func TestContextRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Concurrency = 7
	ctx := WithConfig(context.Background(), cfg)
	assert.Same(t, cfg, FromContext(ctx))
	assert.Equal(t, 1, FromContext(context.Background()).Concurrency)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Default()
	cfg.Library.Root = "/data/broll"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/broll", loaded.Library.Root)
}
