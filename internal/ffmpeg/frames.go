package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"image"
)

// SampleGrayFrames extracts window seconds of frames from the start of input,
// scaled to width x height single-channel images at the given rate.
func (e *Executor) SampleGrayFrames(ctx context.Context, input string, window float64, rate, width, height int) ([]*image.Gray, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid sample size %dx%d", width, height)
	}
	if rate <= 0 {
		rate = 15
	}

	filter := NewFilterBuilder().
		FPS(rate).
		Scale(width, height).
		Format("gray").
		Build()

	var stdout bytes.Buffer
	opts := RunOptions{
		Args: []string{
			"-ss", "0",
			"-t", formatFloat(window),
			"-i", input,
			"-an",
			"-vf", filter,
			"-f", "rawvideo",
			"-pix_fmt", "gray",
			"pipe:1",
		},
		Stdout: &stdout,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("frame sampling")
		},
	}

	if err := e.Run(ctx, opts); err != nil {
		return nil, err
	}

	return splitGrayFrames(stdout.Bytes(), width, height), nil
}

// splitGrayFrames slices a rawvideo gray stream into frames
func splitGrayFrames(data []byte, width, height int) []*image.Gray {
	size := width * height
	if size <= 0 {
		return nil
	}
	frames := make([]*image.Gray, 0, len(data)/size)
	for off := 0; off+size <= len(data); off += size {
		img := image.NewGray(image.Rect(0, 0, width, height))
		copy(img.Pix, data[off:off+size])
		frames = append(frames, img)
	}
	return frames
}
