package ffmpeg

import (
	"context"
	"fmt"

	"github.com/keagan/beatcut/pkg/util"
)

// EncodeSegment renders one segment without audio
func (e *Executor) EncodeSegment(ctx context.Context, spec SegmentSpec) error {
	args, err := BuildSegmentArgs(spec)
	if err != nil {
		return fmt.Errorf("invalid segment: %w", err)
	}

	e.logger.Debug().
		Str("input", spec.Input).
		Str("output", spec.Output).
		Float64("in_start", spec.InStart).
		Float64("out_dur", spec.OutDur).
		Msg("encoding segment")

	return e.Run(ctx, RunOptions{
		Args: args,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("segment output")
		},
	})
}

// BuildSegmentArgs returns the ffmpeg arguments for a pass-1 segment
func BuildSegmentArgs(spec SegmentSpec) ([]string, error) {
	if spec.Input == "" {
		return nil, fmt.Errorf("input path is required")
	}
	if spec.Output == "" {
		return nil, fmt.Errorf("output path is required")
	}
	if spec.OutDur <= 0 {
		return nil, fmt.Errorf("output duration must be positive")
	}

	var args []string
	if spec.Still {
		args = append(args,
			"-loop", "1",
			"-t", util.FormatSeconds(spec.OutDur),
			"-i", spec.Input,
		)
	} else {
		if spec.InDur <= 0 {
			return nil, fmt.Errorf("input duration must be positive")
		}
		args = append(args,
			"-ss", util.FormatSeconds(spec.InStart),
			"-t", util.FormatSeconds(spec.InDur),
			"-i", spec.Input,
		)
	}

	if spec.Filter != "" {
		args = append(args, "-vf", spec.Filter)
	}

	args = append(args, "-t", util.FormatSeconds(spec.OutDur), "-an")
	args = append(args, encoderArgs(spec.Encoder)...)
	args = append(args, spec.Output)

	return args, nil
}

func encoderArgs(enc EncoderSettings) []string {
	var args []string
	switch enc.Codec {
	case CodecNVENC:
		preset := enc.Preset
		if preset == "" {
			preset = "p1"
		}
		args = append(args, "-c:v", CodecNVENC, "-preset", preset, "-rc:v", "vbr")
		if enc.Bitrate != "" {
			args = append(args, "-b:v", enc.Bitrate)
		}
		if enc.Maxrate != "" {
			args = append(args, "-maxrate", enc.Maxrate)
		}
		if enc.Bufsize != "" {
			args = append(args, "-bufsize", enc.Bufsize)
		}
	default:
		preset := enc.Preset
		if preset == "" {
			preset = "ultrafast"
		}
		args = append(args, "-c:v", CodecX264, "-preset", preset, "-crf", fmt.Sprintf("%d", enc.CRF))
	}

	if enc.FPS > 0 {
		args = append(args, "-r", fmt.Sprintf("%d", enc.FPS))
	}
	return append(args, "-pix_fmt", "yuv420p")
}
