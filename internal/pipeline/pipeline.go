// Package pipeline runs a job end to end: beat analysis, clip indexing,
// planning and rendering of every requested variant.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/keagan/beatcut/internal/beat"
	"github.com/keagan/beatcut/internal/cache"
	"github.com/keagan/beatcut/internal/clips"
	"github.com/keagan/beatcut/internal/config"
	"github.com/keagan/beatcut/internal/ffmpeg"
	"github.com/keagan/beatcut/internal/logging"
	"github.com/keagan/beatcut/internal/overlays"
	"github.com/keagan/beatcut/internal/planner"
	"github.com/keagan/beatcut/internal/render"
	"github.com/keagan/beatcut/pkg/util"
	"github.com/rs/zerolog"
)

// Pipeline orchestrates the whole workflow
type Pipeline struct {
	logger   zerolog.Logger
	config   *config.Config
	analyzer Analyzer
	indexer  Indexer
	renderer Renderer
	closer   io.Closer
}

// Deps are the stages a Pipeline drives
type Deps struct {
	Analyzer Analyzer
	Indexer  Indexer
	Renderer Renderer
	// Closer releases shared resources such as the metadata store
	Closer io.Closer
}

// New creates a pipeline backed by ffmpeg and the configured metadata cache
func New(ctx context.Context, logger zerolog.Logger, cfg *config.Config) (*Pipeline, error) {
	executor, err := ffmpeg.New(logger, ffmpeg.Options{
		BinaryPath: cfg.FFmpeg.BinaryPath,
		ProbePath:  cfg.FFmpeg.ProbePath,
		Threads:    cfg.FFmpeg.Threads,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ffmpeg: %w", err)
	}

	store, err := cache.Open(logger, cfg.Library.CacheBackend, cfg.CachePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata cache: %w", err)
	}

	codec := executor.DetectEncoder(ctx, cfg.FFmpeg.Encoder)
	logger.Info().Str("codec", codec).Msg("video encoder selected")

	analyzer := beat.NewAnalyzer(logger, executor, beat.DefaultOptions())
	index := clips.NewIndex(logger, executor, executor, store, clips.Options{Concurrency: cfg.Concurrency})
	renderer := render.New(logger, executor, overlays.NewRenderer(cfg.Text), render.Options{
		Concurrency: cfg.Concurrency,
		TempDir:     cfg.TempDir,
		Codec:       codec,
	})

	return NewWithDeps(logger, cfg, Deps{
		Analyzer: analyzer,
		Indexer:  index,
		Renderer: renderer,
		Closer:   store,
	}), nil
}

// NewWithDeps creates a pipeline around existing stages
func NewWithDeps(logger zerolog.Logger, cfg *config.Config, deps Deps) *Pipeline {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Pipeline{
		logger:   logging.Component(logger, "pipeline"),
		config:   cfg,
		analyzer: deps.Analyzer,
		indexer:  deps.Indexer,
		renderer: deps.Renderer,
		closer:   deps.Closer,
	}
}

// Config returns the configuration the pipeline was built with
func (p *Pipeline) Config() *config.Config {
	return p.config
}

// Close releases pipeline resources
func (p *Pipeline) Close() error {
	if p.closer != nil {
		return p.closer.Close()
	}
	return nil
}

// Analyze returns the beat grid of audioPath
func (p *Pipeline) Analyze(ctx context.Context, audioPath string) (*beat.Grid, error) {
	if audioPath == "" {
		return nil, fmt.Errorf("audio path cannot be empty")
	}
	return p.analyzer.Analyze(ctx, audioPath)
}

// Pool resolves src against the library root and indexes the result
func (p *Pipeline) Pool(ctx context.Context, src clips.Source) ([]clips.ClipMeta, error) {
	if src == nil {
		return nil, fmt.Errorf("clip source is required")
	}
	candidates, err := clips.Resolve(src, p.config.Library.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve clips: %w", err)
	}
	return p.indexer.Index(ctx, candidates)
}

// Seed returns the seed of variant i of job
func (p *Pipeline) Seed(job Job, i int) int64 {
	if job.Seed != nil {
		return *job.Seed + int64(i)
	}
	return planner.SeedFrom(filepath.Base(job.Audio), clips.Label(job.Source), planner.VariantName(i))
}

// PlanVariant plans variant i of job from an analyzed grid and indexed pool
func (p *Pipeline) PlanVariant(job Job, grid *beat.Grid, pool []clips.ClipMeta, i int) (*planner.EditPlan, error) {
	seed := p.Seed(job, i)

	if job.PoolSize > 0 && len(pool) > job.PoolSize {
		pool = clips.Select(pool, job.PoolSize, true, planner.NewRand(seed))
	}

	plan, err := planner.Plan(pool, grid, p.config.Render, seed, planner.Options{CutDurations: job.CutDurations})
	if err != nil {
		return nil, err
	}

	p.logger.Info().
		Str("variant", planner.VariantName(i)).
		Int64("seed", seed).
		Int("segments", len(plan.Segments)).
		Int("clips", len(plan.UsedVideos)).
		Float64("duration", plan.Duration).
		Msg("edit plan ready")
	return plan, nil
}

// Plan analyzes and indexes job, then plans variant i without rendering
func (p *Pipeline) Plan(ctx context.Context, job Job, i int) (*planner.EditPlan, *beat.Grid, error) {
	grid, err := p.Analyze(ctx, job.Audio)
	if err != nil {
		return nil, nil, fmt.Errorf("beat analysis: %w", err)
	}
	pool, err := p.Pool(ctx, job.Source)
	if err != nil {
		return nil, nil, err
	}
	plan, err := p.PlanVariant(job, grid, pool, i)
	if err != nil {
		return nil, nil, err
	}
	return plan, grid, nil
}

// OutputPath returns where variant i of job is written
func (p *Pipeline) OutputPath(job Job, i int) string {
	name := job.Name
	if name == "" {
		name = util.Stem(job.Audio)
	}
	dir := job.OutputDir
	if dir == "" {
		dir = p.config.WorkDir
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%s.mp4", name, planner.VariantName(i)))
}

// Run analyzes, indexes, plans and renders every variant of job. Variants
// whose output already exists are skipped unless job.Overwrite is set.
func (p *Pipeline) Run(ctx context.Context, job Job) (*Result, error) {
	start := time.Now()
	variants := max(job.Variants, 1)

	p.logger.Info().
		Str("audio", job.Audio).
		Str("source", clips.Label(job.Source)).
		Int("variants", variants).
		Msg("starting job")

	grid, err := p.Analyze(ctx, job.Audio)
	if err != nil {
		return nil, fmt.Errorf("beat analysis: %w", err)
	}

	pool, err := p.Pool(ctx, job.Source)
	if err != nil {
		return nil, err
	}
	for _, line := range clips.Summary(pool, p.config.Library.Root, 5) {
		p.logger.Debug().Str("clip", line).Msg("top motion")
	}

	result := &Result{Grid: grid, Clips: len(pool)}
	timeline := overlays.NewTimeline(job.Hook, job.Overlays...)

	for i := range variants {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		vr := VariantResult{
			Name:   planner.VariantName(i),
			Output: p.OutputPath(job, i),
			Seed:   p.Seed(job, i),
		}
		if util.FileExists(vr.Output) && !job.Overwrite {
			p.logger.Info().Str("output", vr.Output).Msg("output exists, skipping variant")
			vr.Skipped = true
			result.Variants = append(result.Variants, vr)
			continue
		}

		plan, err := p.PlanVariant(job, grid, pool, i)
		if err != nil {
			return result, fmt.Errorf("plan %s: %w", vr.Name, err)
		}
		vr.Plan = plan

		err = p.renderer.Render(ctx, render.Request{
			Plan:        plan,
			Audio:       job.Audio,
			AudioOffset: grid.StartOffset + job.ExtraOffset,
			Output:      vr.Output,
			Overlays:    timeline,
			Overwrite:   job.Overwrite,
		}, p.config.Render)
		if errors.Is(err, render.ErrOutputExists) {
			vr.Skipped = true
			result.Variants = append(result.Variants, vr)
			continue
		}
		if err != nil {
			return result, fmt.Errorf("render %s: %w", vr.Name, err)
		}

		if p.config.Render.WritePlan {
			path, err := planner.WriteSidecar(plan, vr.Output)
			if err != nil {
				p.logger.Warn().Err(err).Str("output", vr.Output).Msg("failed to write plan sidecar")
			} else {
				vr.PlanPath = path
			}
		}

		result.Variants = append(result.Variants, vr)
	}

	p.logger.Info().
		Int("variants", len(result.Variants)).
		Dur("elapsed", time.Since(start)).
		Msg("job complete")
	return result, nil
}
