package ffmpeg

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
)

// PCMFormat defines the raw decode target
type PCMFormat struct {
	SampleRate int
	Channels   int
}

// DefaultAnalysisFormat is mono 22.05 kHz, enough for onset detection
func DefaultAnalysisFormat() PCMFormat {
	return PCMFormat{
		SampleRate: 22050,
		Channels:   1,
	}
}

// DecodePCM decodes an audio file to interleaved float32 samples
func (e *Executor) DecodePCM(ctx context.Context, input string, sampleRate int) ([]float32, error) {
	format := DefaultAnalysisFormat()
	if sampleRate > 0 {
		format.SampleRate = sampleRate
	}

	e.logger.Debug().
		Str("input", input).
		Int("sample_rate", format.SampleRate).
		Msg("decoding audio")

	var stdout bytes.Buffer
	opts := RunOptions{
		Args: []string{
			"-i", input,
			"-vn", // no video
			"-ac", fmt.Sprintf("%d", format.Channels),
			"-ar", fmt.Sprintf("%d", format.SampleRate),
			"-f", "f32le",
			"pipe:1",
		},
		Stdout: &stdout,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("audio decode")
		},
	}

	if err := e.Run(ctx, opts); err != nil {
		return nil, err
	}

	return decodeF32LE(stdout.Bytes()), nil
}

// decodeF32LE converts little-endian float32 bytes, dropping a partial tail
func decodeF32LE(data []byte) []float32 {
	n := len(data) / 4
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return samples
}
