package clips

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/keagan/beatcut/internal/cache"
	"github.com/keagan/beatcut/internal/errkind"
	"github.com/keagan/beatcut/internal/ffmpeg"
	"github.com/keagan/beatcut/internal/logging"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Prober reads technical metadata from a media file
type Prober interface {
	Probe(ctx context.Context, path string) (*ffmpeg.MediaInfo, error)
}

// FrameSampler extracts a short window of grayscale frames
type FrameSampler interface {
	SampleGrayFrames(ctx context.Context, path string, window float64, rate, width, height int) ([]*image.Gray, error)
}

// Options tunes indexing
type Options struct {
	Concurrency  int
	SampleWindow float64
	SampleRate   int
	SampleWidth  int
}

// DefaultOptions samples one second at 15 fps, 160 px wide
func DefaultOptions() Options {
	return Options{
		Concurrency:  1,
		SampleWindow: 1.0,
		SampleRate:   15,
		SampleWidth:  160,
	}
}

// Index probes and scores library files through a metadata store
type Index struct {
	logger  zerolog.Logger
	prober  Prober
	sampler FrameSampler
	store   cache.Store
	scorer  *MotionScorer
	opts    Options
}

// NewIndex creates an index
func NewIndex(logger zerolog.Logger, prober Prober, sampler FrameSampler, store cache.Store, opts Options) *Index {
	def := DefaultOptions()
	if opts.Concurrency < 1 {
		opts.Concurrency = def.Concurrency
	}
	if opts.SampleWindow <= 0 {
		opts.SampleWindow = def.SampleWindow
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = def.SampleRate
	}
	if opts.SampleWidth <= 0 {
		opts.SampleWidth = def.SampleWidth
	}
	return &Index{
		logger:  logging.Component(logger, "clips"),
		prober:  prober,
		sampler: sampler,
		store:   store,
		scorer:  NewMotionScorer(),
		opts:    opts,
	}
}

// Index returns metadata for every usable candidate, in candidate order.
// The store is flushed once if anything was computed.
func (x *Index) Index(ctx context.Context, candidates []Candidate) ([]ClipMeta, error) {
	results := make([]*ClipMeta, len(candidates))
	var dirty atomic.Bool

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(x.opts.Concurrency)

	for i, c := range candidates {
		g.Go(func() error {
			meta, changed, err := x.load(gctx, c.Path)
			if changed {
				dirty.Store(true)
			}
			if err != nil {
				if c.Required {
					return fmt.Errorf("index %s: %w", c.Path, err)
				}
				x.logger.Warn().Err(err).Str("path", c.Path).Msg("excluding candidate")
				return nil
			}
			results[i] = meta
			return nil
		})
	}

	err := g.Wait()

	if dirty.Load() {
		if ferr := x.store.Flush(); ferr != nil {
			x.logger.Warn().Err(ferr).Msg("metadata cache write failed")
		}
	}
	if err != nil {
		return nil, err
	}

	metas := make([]ClipMeta, 0, len(results))
	excluded := 0
	for i, m := range results {
		if m == nil {
			continue
		}
		if !m.Usable() {
			if candidates[i].Required {
				return nil, &errkind.InsufficientMediaError{
					Reason: fmt.Sprintf("%s is not usable (%.2fs, %dx%d)", m.Path, m.Duration, m.Width, m.Height),
				}
			}
			excluded++
			x.logger.Debug().
				Str("path", m.Path).
				Float64("duration", m.Duration).
				Int("width", m.Width).
				Int("height", m.Height).
				Msg("clip not usable")
			continue
		}
		metas = append(metas, *m)
	}

	x.logger.Info().
		Int("candidates", len(candidates)).
		Int("usable", len(metas)).
		Int("excluded", excluded).
		Msg("clip index built")

	return metas, nil
}

// load returns metadata for one file, reusing the cached record when its
// fingerprint still matches. changed reports a store update.
func (x *Index) load(ctx context.Context, path string) (*ClipMeta, bool, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, false, err
	}

	fp, err := cache.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, &errkind.MissingAssetError{Path: abs}
		}
		return nil, false, err
	}

	still := IsImage(abs)
	rec, ok := x.store.Get(abs)
	changed := false

	if !ok || !rec.Matches(fp) {
		info, err := x.prober.Probe(ctx, abs)
		if err != nil {
			return nil, false, err
		}
		rec = cache.Record{
			Duration:    info.Duration,
			Width:       info.Width,
			Height:      info.Height,
			FPS:         info.FPS,
			Fingerprint: fp,
		}
		if still {
			rec.Duration = StillDuration
		}
		if rec.FPS <= 0 {
			rec.FPS = DefaultFPS
		}
		changed = true
	}

	if !rec.MotionComputed {
		switch {
		case still:
			rec.Motion = 0
			rec.MotionComputed = true
			changed = true
		case rec.Width > 0 && rec.Height > 0 && rec.Duration > 0:
			motion, err := x.sampleMotion(ctx, abs, rec)
			if err != nil {
				x.logger.Warn().Err(err).Str("path", abs).Msg("motion sampling failed")
			} else {
				rec.Motion = motion
				rec.MotionComputed = true
				changed = true
			}
		}
	}

	if changed {
		x.store.Put(abs, rec)
	}

	return &ClipMeta{
		Path:     abs,
		Duration: rec.Duration,
		Width:    rec.Width,
		Height:   rec.Height,
		FPS:      rec.FPS,
		Motion:   rec.Motion,
		Still:    still,
	}, changed, nil
}

func (x *Index) sampleMotion(ctx context.Context, path string, rec cache.Record) (float64, error) {
	width := x.opts.SampleWidth
	height := int(float64(width)*float64(rec.Height)/float64(rec.Width)) / 2 * 2
	if height < 2 {
		height = 2
	}

	window := min(x.opts.SampleWindow, rec.Duration)
	frames, err := x.sampler.SampleGrayFrames(ctx, path, window, x.opts.SampleRate, width, height)
	if err != nil {
		return 0, err
	}
	return x.scorer.Score(frames), nil
}
