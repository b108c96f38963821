package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/keagan/beatcut/pkg/util"
)

// ConcatWithAudio stream-copies the segments in order and muxes the audio
// track trimmed from AudioOffset, capped to Duration.
func (e *Executor) ConcatWithAudio(ctx context.Context, spec MuxSpec) error {
	if len(spec.Segments) == 0 {
		return fmt.Errorf("no input files provided")
	}
	if spec.Output == "" {
		return fmt.Errorf("output path is required")
	}
	if spec.ListPath == "" {
		return fmt.Errorf("concat list path is required")
	}

	e.logger.Info().
		Int("inputs", len(spec.Segments)).
		Str("output", spec.Output).
		Msg("concatenating segments")

	if err := WriteConcatList(spec.ListPath, spec.Segments); err != nil {
		return fmt.Errorf("failed to create concat file: %w", err)
	}

	return e.Run(ctx, RunOptions{
		Args: BuildMuxArgs(spec),
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("concatenating")
		},
	})
}

// BuildMuxArgs returns the ffmpeg arguments for the pass-2 mux
func BuildMuxArgs(spec MuxSpec) []string {
	audioBitrate := spec.AudioBitrate
	if audioBitrate == "" {
		audioBitrate = "192k"
	}

	args := []string{
		"-ss", util.FormatSeconds(spec.AudioOffset),
		"-i", spec.Audio,
		"-f", "concat",
		"-safe", "0",
		"-i", spec.ListPath,
		"-map", "1:v:0",
		"-map", "0:a:0",
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", audioBitrate,
	}
	if spec.Duration > 0 {
		args = append(args, "-t", util.FormatSeconds(spec.Duration))
	}
	args = append(args, "-shortest", "-movflags", "+faststart", spec.Output)
	return args
}

// WriteConcatList generates the file list for the ffmpeg concat demuxer
func WriteConcatList(path string, inputs []string) error {
	var b strings.Builder
	for _, input := range inputs {
		absPath, err := filepath.Abs(input)
		if err != nil {
			return err
		}
		// concat demuxer quoting: ' becomes '\''
		quoted := strings.ReplaceAll(filepath.ToSlash(absPath), "'", `'\''`)
		fmt.Fprintf(&b, "file '%s'\n", quoted)
	}
	return os.WriteFile(path, []byte(b.String()), 0644)
}
