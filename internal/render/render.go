// Package render turns an edit plan into a finished video in two passes:
// one encode per segment, then a stream-copy concat with the audio muxed in.
package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/keagan/beatcut/internal/config"
	"github.com/keagan/beatcut/internal/errkind"
	"github.com/keagan/beatcut/internal/ffmpeg"
	"github.com/keagan/beatcut/internal/logging"
	"github.com/keagan/beatcut/internal/overlays"
	"github.com/keagan/beatcut/internal/planner"
	"github.com/keagan/beatcut/pkg/util"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrOutputExists is returned when the output is present and overwrite is off
var ErrOutputExists = errors.New("output already exists")

// Transcoder is the external media tool used by both passes
type Transcoder interface {
	EncodeSegment(ctx context.Context, spec ffmpeg.SegmentSpec) error
	ConcatWithAudio(ctx context.Context, spec ffmpeg.MuxSpec) error
	HasFilter(ctx context.Context, name string) bool
}

// Options configures a Pipeline
type Options struct {
	// Concurrency bounds parallel segment encodes
	Concurrency int
	// TempDir holds the per-render work directory; empty uses os.TempDir
	TempDir string
	// Codec is ffmpeg.CodecX264 or ffmpeg.CodecNVENC
	Codec string
}

// Request is one render job
type Request struct {
	Plan        *planner.EditPlan
	Audio       string
	AudioOffset float64
	Output      string
	Overlays    overlays.Timeline
	Overwrite   bool
}

// Pipeline renders edit plans
type Pipeline struct {
	logger zerolog.Logger
	tx     Transcoder
	text   *overlays.Renderer
	opts   Options
}

// New creates a render pipeline
func New(logger zerolog.Logger, tx Transcoder, text *overlays.Renderer, opts Options) *Pipeline {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if opts.Codec == "" {
		opts.Codec = ffmpeg.CodecX264
	}
	return &Pipeline{
		logger: logging.Component(logger, "render"),
		tx:     tx,
		text:   text,
		opts:   opts,
	}
}

// EncoderSettings maps the render config onto the chosen codec
func EncoderSettings(codec string, cfg config.RenderConfig) ffmpeg.EncoderSettings {
	if codec == ffmpeg.CodecNVENC {
		return ffmpeg.EncoderSettings{
			Codec:   ffmpeg.CodecNVENC,
			Preset:  cfg.NVENCPreset,
			Bitrate: cfg.VideoBitrate,
			Maxrate: cfg.Maxrate,
			Bufsize: cfg.Bufsize,
			FPS:     cfg.FPS,
		}
	}
	return ffmpeg.EncoderSettings{
		Codec:  ffmpeg.CodecX264,
		Preset: cfg.X264Preset,
		CRF:    cfg.CRF,
		FPS:    cfg.FPS,
	}
}

// Render writes req.Output. Temporary files are removed whatever the outcome,
// and a failed render never leaves a partial file at the output path.
func (p *Pipeline) Render(ctx context.Context, req Request, cfg config.RenderConfig) error {
	if err := p.validate(req); err != nil {
		return err
	}

	if util.FileExists(req.Output) && !req.Overwrite {
		return fmt.Errorf("%s: %w", req.Output, ErrOutputExists)
	}

	workDir := filepath.Join(p.opts.TempDir, "beatcut-"+uuid.NewString())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return fmt.Errorf("failed to create work dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			p.logger.Warn().Err(err).Str("dir", workDir).Msg("failed to remove work dir")
		}
	}()

	timeline := req.Overlays
	if len(timeline) > 0 && !p.tx.HasFilter(ctx, "drawtext") {
		p.logger.Warn().Int("overlays", len(timeline)).Msg("ffmpeg lacks drawtext, rendering without text")
		timeline = nil
	}

	start := time.Now()
	segments, err := p.encodeSegments(ctx, req.Plan, timeline, workDir, cfg)
	if err != nil {
		return err
	}
	p.logger.Info().
		Int("segments", len(segments)).
		Dur("elapsed", time.Since(start)).
		Msg("pass 1 complete")

	if err := p.mux(ctx, req, segments, workDir, cfg); err != nil {
		return err
	}

	p.logger.Info().
		Str("output", req.Output).
		Float64("duration", req.Plan.Duration).
		Dur("elapsed", time.Since(start)).
		Msg("render complete")
	return nil
}

func (p *Pipeline) validate(req Request) error {
	if req.Plan == nil || len(req.Plan.Segments) == 0 {
		return &errkind.InsufficientMediaError{Reason: "edit plan has no segments"}
	}
	if req.Output == "" {
		return fmt.Errorf("output path cannot be empty")
	}
	if !util.FileExists(req.Audio) {
		return &errkind.MissingAssetError{Path: req.Audio}
	}
	for _, seg := range req.Plan.Segments {
		if !util.FileExists(seg.Src) {
			return &errkind.MissingAssetError{Path: seg.Src}
		}
	}
	return nil
}

// encodeSegments runs pass 1 and returns the segment files in plan order
func (p *Pipeline) encodeSegments(ctx context.Context, plan *planner.EditPlan, timeline overlays.Timeline, workDir string, cfg config.RenderConfig) ([]string, error) {
	enc := EncoderSettings(p.opts.Codec, cfg)
	outputs := make([]string, len(plan.Segments))

	p.logger.Info().
		Int("segments", len(plan.Segments)).
		Str("codec", enc.Codec).
		Int("concurrency", p.opts.Concurrency).
		Msg("pass 1: encoding segments")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)

	offset := 0.0
	for i, seg := range plan.Segments {
		out := filepath.Join(workDir, fmt.Sprintf("seg_%04d.mp4", i))
		outputs[i] = out
		spec := ffmpeg.SegmentSpec{
			Input:   seg.Src,
			Still:   seg.Still,
			InStart: seg.InStart,
			InDur:   seg.InDur,
			OutDur:  seg.OutDur,
			Filter:  p.segmentFilter(seg, timeline.Localize(offset, seg.OutDur), cfg),
			Output:  out,
			Encoder: enc,
		}
		offset += seg.OutDur

		g.Go(func() error {
			if err := p.tx.EncodeSegment(gctx, spec); err != nil {
				return fmt.Errorf("segment %d (%s): %w", i, filepath.Base(spec.Input), err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outputs, nil
}

func (p *Pipeline) segmentFilter(seg planner.Segment, local []overlays.TextOverlay, cfg config.RenderConfig) string {
	fb := ffmpeg.NewFilterBuilder()
	if !seg.Still {
		fb.SetPTS(seg.Speed)
	}
	fb.ScaleFill(cfg.Width, cfg.Height).
		CenterCrop(cfg.Width, cfg.Height).
		SetSAR().
		FPS(cfg.FPS).
		Eq(cfg.Contrast, cfg.Saturation, cfg.Brightness, cfg.Gamma)
	if cfg.EnableGrain {
		fb.Noise(cfg.GrainStrength)
	}
	if p.text != nil {
		p.text.Apply(fb, local)
	}
	return fb.Format("yuv420p").Build()
}

// mux runs pass 2 into a sibling partial file and renames it into place
func (p *Pipeline) mux(ctx context.Context, req Request, segments []string, workDir string, cfg config.RenderConfig) error {
	if err := util.EnsureDir(filepath.Dir(req.Output)); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	partial := filepath.Join(filepath.Dir(req.Output), "."+util.Stem(req.Output)+".partial"+filepath.Ext(req.Output))

	p.logger.Info().
		Float64("audio_offset", req.AudioOffset).
		Float64("duration", req.Plan.Duration).
		Msg("pass 2: concat and mux")

	err := p.tx.ConcatWithAudio(ctx, ffmpeg.MuxSpec{
		Audio:        req.Audio,
		AudioOffset:  req.AudioOffset,
		Segments:     segments,
		ListPath:     filepath.Join(workDir, "concat.txt"),
		Duration:     req.Plan.Duration,
		AudioBitrate: cfg.AudioBitrate,
		Output:       partial,
	})
	if err != nil {
		_ = util.CleanupFiles(partial)
		return fmt.Errorf("mux: %w", err)
	}

	if err := os.Rename(partial, req.Output); err != nil {
		_ = util.CleanupFiles(partial)
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}
