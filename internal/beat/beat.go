// Package beat extracts a tempo grid from an audio track.
package beat

import (
	"context"
	"fmt"
	"os"

	"github.com/keagan/beatcut/internal/errkind"
	"github.com/keagan/beatcut/internal/logging"
	"github.com/rs/zerolog"
)

// Grid is the tempo and beat positions of a track. Beat times are absolute
// positions in the source audio, already shifted by the leading silence.
type Grid struct {
	BPM         float64   `json:"bpm"`
	Beats       []float64 `json:"beats"`
	StartOffset float64   `json:"start_offset"`
}

// Period returns one beat in seconds
func (g *Grid) Period() float64 {
	if g.BPM <= 0 {
		return 0
	}
	return 60.0 / g.BPM
}

// PCMDecoder decodes an audio file to mono float samples
type PCMDecoder interface {
	DecodePCM(ctx context.Context, path string, sampleRate int) ([]float32, error)
}

// Options tunes the analysis
type Options struct {
	SampleRate  int
	FrameLength int
	HopLength   int
	// TopDB is the silence threshold below the loudest frame
	TopDB      float64
	DefaultBPM float64
	Tightness  float64
}

// DefaultOptions returns the analysis defaults
func DefaultOptions() Options {
	return Options{
		SampleRate:  22050,
		FrameLength: 2048,
		HopLength:   512,
		TopDB:       30,
		DefaultBPM:  128,
		Tightness:   100,
	}
}

// Analyzer turns audio files into beat grids
type Analyzer struct {
	logger  zerolog.Logger
	decoder PCMDecoder
	opts    Options
}

// NewAnalyzer creates an analyzer backed by decoder
func NewAnalyzer(logger zerolog.Logger, decoder PCMDecoder, opts Options) *Analyzer {
	def := DefaultOptions()
	if opts.SampleRate <= 0 {
		opts.SampleRate = def.SampleRate
	}
	if opts.FrameLength <= 0 {
		opts.FrameLength = def.FrameLength
	}
	if opts.HopLength <= 0 {
		opts.HopLength = def.HopLength
	}
	if opts.TopDB <= 0 {
		opts.TopDB = def.TopDB
	}
	if opts.DefaultBPM <= 0 {
		opts.DefaultBPM = def.DefaultBPM
	}
	if opts.Tightness <= 0 {
		opts.Tightness = def.Tightness
	}
	return &Analyzer{
		logger:  logging.Component(logger, "beat"),
		decoder: decoder,
		opts:    opts,
	}
}

// Analyze decodes audioPath and returns its beat grid
func (a *Analyzer) Analyze(ctx context.Context, audioPath string) (*Grid, error) {
	if _, err := os.Stat(audioPath); err != nil {
		return nil, &errkind.MissingAssetError{Path: audioPath}
	}

	samples, err := a.decoder.DecodePCM(ctx, audioPath, a.opts.SampleRate)
	if err != nil {
		return nil, &errkind.AnalysisError{Path: audioPath, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	startBPM := a.opts.DefaultBPM
	hint := HintFromName(audioPath)
	if hint > 0 {
		startBPM = hint
	}

	grid, err := a.AnalyzeSamples(samples, startBPM)
	if err != nil {
		return nil, &errkind.AnalysisError{Path: audioPath, Err: err}
	}

	a.logger.Info().
		Str("audio", audioPath).
		Float64("bpm", grid.BPM).
		Float64("hint", hint).
		Int("beats", len(grid.Beats)).
		Float64("start_offset", grid.StartOffset).
		Msg("beat analysis complete")

	return grid, nil
}

// AnalyzeSamples runs trim, onset detection, tempo estimation and beat
// tracking over mono samples at the configured rate.
func (a *Analyzer) AnalyzeSamples(samples []float32, startBPM float64) (*Grid, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("no audio samples decoded")
	}

	trimmed, lead, ok := TrimSilence(samples, a.opts.TopDB, a.opts.FrameLength, a.opts.HopLength)
	if !ok {
		return nil, fmt.Errorf("audio is silent")
	}
	if len(trimmed) < a.opts.FrameLength {
		return nil, fmt.Errorf("audio too short after trimming: %d samples", len(trimmed))
	}

	sr := float64(a.opts.SampleRate)
	offset := float64(lead) / sr
	frameRate := sr / float64(a.opts.HopLength)

	env := OnsetStrength(trimmed, a.opts.FrameLength, a.opts.HopLength)
	bpm := EstimateTempo(env, frameRate, startBPM)
	frames := TrackBeats(env, frameRate, bpm, a.opts.Tightness)

	grid := &Grid{
		BPM:         bpm,
		Beats:       make([]float64, len(frames)),
		StartOffset: offset,
	}
	for i, f := range frames {
		grid.Beats[i] = offset + float64(f)/frameRate
	}
	if len(grid.Beats) > 0 {
		grid.StartOffset = grid.Beats[0]
	}

	a.logger.Debug().
		Float64("trim_offset", offset).
		Int("onset_frames", len(env)).
		Float64("start_bpm", startBPM).
		Msg("onset envelope computed")

	return grid, nil
}
