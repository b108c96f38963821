package beat

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/keagan/beatcut/internal/errkind"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRate = 22050

type fakeDecoder struct {
	samples []float32
	err     error
	calls   int
	rate    int
}

func (f *fakeDecoder) DecodePCM(_ context.Context, _ string, sampleRate int) ([]float32, error) {
	f.calls++
	f.rate = sampleRate
	return f.samples, f.err
}

// clickTrack renders decaying 1 kHz clicks at bpm after lead seconds of silence
func clickTrack(bpm, lead float64, clicks int) []float32 {
	period := 60 / bpm
	total := lead + period*float64(clicks) + 0.5
	out := make([]float32, int(total*testRate))
	for k := 0; k < clicks; k++ {
		start := int((lead + float64(k)*period) * testRate)
		for j := 0; j < 441 && start+j < len(out); j++ {
			v := math.Sin(2*math.Pi*1000*float64(j)/testRate) * math.Exp(-float64(j)/80)
			out[start+j] = float32(0.8 * v)
		}
	}
	return out
}

func tone(seconds float64) []float32 {
	out := make([]float32, int(seconds*testRate))
	for i := range out {
		out[i] = float32(math.Sin(2 * math.Pi * 440 * float64(i) / testRate))
	}
	return out
}

func touch(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	return path
}

func TestHintFromName(t *testing.T) {
	tests := []struct {
		path string
		want float64
	}{
		{"/music/song_127bpm.mp3", 127},
		{"Track 90 BPM.wav", 90},
		{"funk_100_bpm_final.mp3", 100},
		{"/music/hyper_250bpm.mp3", 0},
		{"slow_55bpm.mp3", 0},
		{"/music/140bpm/untitled.mp3", 0},
		{"no tempo here.mp3", 0},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, HintFromName(tt.path))
		})
	}
}

func TestTrimSilence(t *testing.T) {
	signal := make([]float32, testRate)
	signal = append(signal, tone(1.0)...)
	signal = append(signal, make([]float32, testRate/2)...)

	trimmed, lead, ok := TrimSilence(signal, 30, 2048, 512)
	require.True(t, ok)

	assert.InDelta(t, 1.0, float64(lead)/testRate, 0.1)
	assert.GreaterOrEqual(t, len(trimmed), testRate)
	assert.LessOrEqual(t, len(trimmed), int(1.2*testRate))
}

func TestTrimSilenceAllQuiet(t *testing.T) {
	_, _, ok := TrimSilence(make([]float32, testRate), 30, 2048, 512)
	assert.False(t, ok)
}

func TestOnsetStrengthPeaksOnClicks(t *testing.T) {
	samples := clickTrack(120, 0, 8)
	env := OnsetStrength(samples, 2048, 512)
	frameRate := float64(testRate) / 512

	// the first click sits at sample 0 and has no rising edge, so start at 1
	maxEnv := slices.Max(env)
	for k := 1; k < 8; k++ {
		center := int(float64(k) * 0.5 * frameRate)
		peak := 0.0
		for f := max(0, center-2); f <= min(len(env)-1, center+2); f++ {
			peak = math.Max(peak, env[f])
		}
		assert.Greater(t, peak, 0.2*maxEnv, "click %d", k)
	}

	// quiet stretch between clicks
	mid := int(0.25 * frameRate * 3)
	assert.Less(t, env[mid], 0.05*maxEnv)
}

func TestEstimateTempoWithoutPeriodicity(t *testing.T) {
	env := make([]float64, 400)
	assert.Equal(t, 128.0, EstimateTempo(env, 43.07, 128))
}

func TestAnalyzeSamplesClickTrack(t *testing.T) {
	a := NewAnalyzer(zerolog.Nop(), &fakeDecoder{}, DefaultOptions())

	grid, err := a.AnalyzeSamples(clickTrack(120, 1.0, 20), 128)
	require.NoError(t, err)

	assert.InDelta(t, 120, grid.BPM, 4)
	require.GreaterOrEqual(t, len(grid.Beats), 15)
	assert.True(t, slices.IsSorted(grid.Beats))
	assert.Equal(t, grid.Beats[0], grid.StartOffset)
	assert.InDelta(t, 1.0, grid.StartOffset, 0.06)

	intervals := make([]float64, 0, len(grid.Beats)-1)
	for i := 1; i < len(grid.Beats); i++ {
		intervals = append(intervals, grid.Beats[i]-grid.Beats[i-1])
	}
	slices.Sort(intervals)
	assert.InDelta(t, 0.5, intervals[len(intervals)/2], 0.03)
}

func TestAnalyzeSamplesTooShort(t *testing.T) {
	a := NewAnalyzer(zerolog.Nop(), &fakeDecoder{}, DefaultOptions())

	_, err := a.AnalyzeSamples(tone(0.05), 128)
	assert.Error(t, err)

	_, err = a.AnalyzeSamples(nil, 128)
	assert.Error(t, err)
}

func TestAnalyzeMissingFile(t *testing.T) {
	dec := &fakeDecoder{}
	a := NewAnalyzer(zerolog.Nop(), dec, Options{})

	_, err := a.Analyze(context.Background(), filepath.Join(t.TempDir(), "gone.mp3"))
	require.Error(t, err)
	assert.True(t, errkind.IsMissingAsset(err))
	assert.Zero(t, dec.calls)
}

func TestAnalyzeDecodeFailureIsAnalysisError(t *testing.T) {
	decodeErr := errors.New("decoder exploded")
	a := NewAnalyzer(zerolog.Nop(), &fakeDecoder{err: decodeErr}, Options{})

	_, err := a.Analyze(context.Background(), touch(t, "track.mp3"))
	require.Error(t, err)

	var analysisErr *errkind.AnalysisError
	require.True(t, errors.As(err, &analysisErr))
	assert.ErrorIs(t, err, decodeErr)
}

func TestAnalyzeSilentIsAnalysisError(t *testing.T) {
	a := NewAnalyzer(zerolog.Nop(), &fakeDecoder{samples: make([]float32, testRate)}, Options{})

	_, err := a.Analyze(context.Background(), touch(t, "silence.wav"))
	var analysisErr *errkind.AnalysisError
	assert.True(t, errors.As(err, &analysisErr))
}

func TestAnalyzeDecodesAtAnalysisRate(t *testing.T) {
	dec := &fakeDecoder{samples: clickTrack(120, 0.5, 12)}
	a := NewAnalyzer(zerolog.Nop(), dec, Options{})

	grid, err := a.Analyze(context.Background(), touch(t, "beat_120bpm.wav"))
	require.NoError(t, err)
	assert.Equal(t, testRate, dec.rate)
	assert.Greater(t, grid.BPM, 0.0)
	assert.InDelta(t, 0.5, grid.Period(), 0.03)
}
