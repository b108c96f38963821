package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/keagan/beatcut/internal/beat"
	"github.com/keagan/beatcut/internal/clips"
	"github.com/keagan/beatcut/internal/config"
	"github.com/keagan/beatcut/internal/errkind"
	"github.com/keagan/beatcut/internal/planner"
	"github.com/keagan/beatcut/internal/render"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAnalyzer struct {
	grid *beat.Grid
	err  error
}

func (f *fakeAnalyzer) Analyze(_ context.Context, path string) (*beat.Grid, error) {
	if f.err != nil {
		return nil, &errkind.AnalysisError{Path: path, Err: f.err}
	}
	return f.grid, nil
}

type fakeIndexer struct{}

func (fakeIndexer) Index(_ context.Context, candidates []clips.Candidate) ([]clips.ClipMeta, error) {
	metas := make([]clips.ClipMeta, 0, len(candidates))
	for i, c := range candidates {
		metas = append(metas, clips.ClipMeta{
			Path:     c.Path,
			Duration: 10,
			Width:    1920,
			Height:   1080,
			FPS:      30,
			Motion:   float64(i) / float64(len(candidates)),
		})
	}
	return metas, nil
}

type fakeRenderer struct {
	mu       sync.Mutex
	requests []render.Request
	err      error
}

func (f *fakeRenderer) Render(_ context.Context, req render.Request, _ config.RenderConfig) error {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if err := os.MkdirAll(filepath.Dir(req.Output), 0755); err != nil {
		return err
	}
	return os.WriteFile(req.Output, []byte("video"), 0644)
}

type env struct {
	root     string
	out      string
	audio    string
	cfg      *config.Config
	renderer *fakeRenderer
	pipeline *Pipeline
}

func newEnv(t *testing.T, analyzer Analyzer) env {
	t.Helper()
	root := t.TempDir()
	library := filepath.Join(root, "broll")
	theme := filepath.Join(library, "city")
	require.NoError(t, os.MkdirAll(theme, 0755))
	for _, name := range []string{"a.mp4", "b.mp4", "c.mov", "d.mp4", "e.mp4", "f.jpg", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(theme, name), []byte("x"), 0644))
	}

	audio := filepath.Join(root, "track.mp3")
	require.NoError(t, os.WriteFile(audio, []byte("x"), 0644))

	cfg := config.Default()
	cfg.Library.Root = library
	cfg.WorkDir = filepath.Join(root, "work")

	renderer := &fakeRenderer{}
	if analyzer == nil {
		analyzer = &fakeAnalyzer{grid: &beat.Grid{BPM: 124, StartOffset: 0.35}}
	}
	p := NewWithDeps(zerolog.Nop(), cfg, Deps{
		Analyzer: analyzer,
		Indexer:  fakeIndexer{},
		Renderer: renderer,
	})

	return env{
		root:     root,
		out:      filepath.Join(root, "out"),
		audio:    audio,
		cfg:      cfg,
		renderer: renderer,
		pipeline: p,
	}
}

func (e env) job() Job {
	return Job{
		Audio:     e.audio,
		Source:    clips.Theme("city"),
		OutputDir: e.out,
		Variants:  2,
	}
}

func TestRunRendersVariants(t *testing.T) {
	e := newEnv(t, nil)
	job := e.job()
	job.ExtraOffset = 0.1
	job.Hook = "watch this"

	res, err := e.pipeline.Run(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, 124.0, res.Grid.BPM)
	assert.Equal(t, 6, res.Clips)
	require.Len(t, res.Variants, 2)
	require.Len(t, e.renderer.requests, 2)

	for i, v := range res.Variants {
		assert.Equal(t, planner.VariantName(i), v.Name)
		assert.Equal(t, filepath.Join(e.out, "track_"+v.Name+".mp4"), v.Output)
		assert.Equal(t, planner.SeedFrom("track.mp3", "city", v.Name), v.Seed)
		assert.False(t, v.Skipped)
		require.NotNil(t, v.Plan)
		assert.Equal(t, v.Seed, v.Plan.Seed)
		assert.FileExists(t, v.PlanPath)

		req := e.renderer.requests[i]
		assert.Equal(t, v.Output, req.Output)
		assert.Equal(t, e.audio, req.Audio)
		assert.InDelta(t, 0.45, req.AudioOffset, 1e-9)
		require.Len(t, req.Overlays, 1)
		assert.Equal(t, "watch this", req.Overlays[0].Text)
	}
	assert.NotEqual(t, res.Variants[0].Seed, res.Variants[1].Seed)
}

func TestRunSkipsExistingOutputs(t *testing.T) {
	e := newEnv(t, nil)
	job := e.job()

	existing := e.pipeline.OutputPath(job, 0)
	require.NoError(t, os.MkdirAll(filepath.Dir(existing), 0755))
	require.NoError(t, os.WriteFile(existing, []byte("old"), 0644))

	res, err := e.pipeline.Run(context.Background(), job)
	require.NoError(t, err)
	require.Len(t, res.Variants, 2)
	assert.True(t, res.Variants[0].Skipped)
	assert.Nil(t, res.Variants[0].Plan)
	assert.False(t, res.Variants[1].Skipped)
	require.Len(t, e.renderer.requests, 1)

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))

	job.Overwrite = true
	res, err = e.pipeline.Run(context.Background(), job)
	require.NoError(t, err)
	assert.False(t, res.Variants[0].Skipped)
	assert.True(t, e.renderer.requests[len(e.renderer.requests)-1].Overwrite)
	assert.Len(t, e.renderer.requests, 3)
}

func TestRunWithoutSidecar(t *testing.T) {
	e := newEnv(t, nil)
	e.cfg.Render.WritePlan = false

	res, err := e.pipeline.Run(context.Background(), e.job())
	require.NoError(t, err)
	for _, v := range res.Variants {
		assert.Empty(t, v.PlanPath)
		assert.NoFileExists(t, planner.SidecarPath(v.Output))
	}
}

func TestRunAnalysisFailure(t *testing.T) {
	e := newEnv(t, &fakeAnalyzer{err: errors.New("decode failed")})

	_, err := e.pipeline.Run(context.Background(), e.job())
	var analysis *errkind.AnalysisError
	require.True(t, errors.As(err, &analysis))
	assert.Empty(t, e.renderer.requests)
}

func TestRunEmptyTheme(t *testing.T) {
	e := newEnv(t, nil)
	require.NoError(t, os.MkdirAll(filepath.Join(e.cfg.Library.Root, "empty"), 0755))

	job := e.job()
	job.Source = clips.Theme("empty")
	_, err := e.pipeline.Run(context.Background(), job)

	var insufficient *errkind.InsufficientMediaError
	require.True(t, errors.As(err, &insufficient))
}

func TestRunMissingTheme(t *testing.T) {
	e := newEnv(t, nil)
	job := e.job()
	job.Source = clips.Theme("nowhere")

	_, err := e.pipeline.Run(context.Background(), job)
	var missing *errkind.MissingAssetError
	require.True(t, errors.As(err, &missing))
}

func TestRunRenderFailure(t *testing.T) {
	e := newEnv(t, nil)
	e.renderer.err = errkind.NewExternalToolError("ffmpeg", nil, "boom", errors.New("exit status 1"))

	res, err := e.pipeline.Run(context.Background(), e.job())
	var toolErr *errkind.ExternalToolError
	require.True(t, errors.As(err, &toolErr))
	require.NotNil(t, res)
	assert.Empty(t, res.Variants)
}

func TestExplicitSeed(t *testing.T) {
	e := newEnv(t, nil)
	job := e.job()
	seed := int64(99)
	job.Seed = &seed

	assert.Equal(t, int64(99), e.pipeline.Seed(job, 0))
	assert.Equal(t, int64(100), e.pipeline.Seed(job, 1))

	a, _, err := e.pipeline.Plan(context.Background(), job, 0)
	require.NoError(t, err)
	b, _, err := e.pipeline.Plan(context.Background(), job, 0)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestPoolSizeLimitsClips(t *testing.T) {
	e := newEnv(t, nil)
	job := e.job()
	job.PoolSize = 2

	plan, grid, err := e.pipeline.Plan(context.Background(), job, 0)
	require.NoError(t, err)
	assert.Equal(t, 124.0, grid.BPM)
	assert.LessOrEqual(t, len(plan.UsedVideos), 2)
}

func TestOutputPathDefaults(t *testing.T) {
	e := newEnv(t, nil)
	job := Job{Audio: "/music/Song 128bpm.mp3"}
	assert.Equal(t, filepath.Join(e.cfg.WorkDir, "Song 128bpm_v1.mp4"), e.pipeline.OutputPath(job, 0))

	job.Name = "promo"
	job.OutputDir = "/out"
	assert.Equal(t, filepath.Join("/out", "promo_v3.mp4"), e.pipeline.OutputPath(job, 2))
}

func TestPoolRequiresSource(t *testing.T) {
	e := newEnv(t, nil)
	_, err := e.pipeline.Pool(context.Background(), nil)
	assert.Error(t, err)
}
