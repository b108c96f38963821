package config

import (
	"fmt"
	"math"
)

var allowedX264Presets = map[string]struct{}{
	"ultrafast": {},
	"superfast": {},
	"veryfast":  {},
	"faster":    {},
	"fast":      {},
	"medium":    {},
	"slow":      {},
	"slower":    {},
	"veryslow":  {},
}

// RenderConfig is the read-only parameter bag shared by the planner and the
// render pipeline. Components receive it by value and never modify it.
type RenderConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	FPS    int `yaml:"fps"`

	MinDurationS float64 `yaml:"min_duration_s"`
	MaxDurationS float64 `yaml:"max_duration_s"`

	ClipMinS float64 `yaml:"clip_min_s"`
	ClipMaxS float64 `yaml:"clip_max_s"`

	SpeedMin float64 `yaml:"speed_min"`
	SpeedMax float64 `yaml:"speed_max"`

	// Color grade
	Contrast      float64 `yaml:"contrast"`
	Saturation    float64 `yaml:"saturation"`
	Brightness    float64 `yaml:"brightness"`
	Gamma         float64 `yaml:"gamma"`
	EnableGrain   bool    `yaml:"enable_grain"`
	GrainStrength int     `yaml:"grain_strength"`

	// Encoding
	VideoBitrate string `yaml:"video_bitrate"`
	Maxrate      string `yaml:"maxrate"`
	Bufsize      string `yaml:"bufsize"`
	NVENCPreset  string `yaml:"nvenc_preset"`
	X264Preset   string `yaml:"x264_preset"`
	CRF          int    `yaml:"crf"`
	AudioBitrate string `yaml:"audio_bitrate"`

	// Loop enables the first/last segment loop illusion
	Loop      bool `yaml:"loop"`
	WritePlan bool `yaml:"write_plan"`
}

// DefaultRender returns the 9:16 defaults
func DefaultRender() RenderConfig {
	return RenderConfig{
		Width:         1080,
		Height:        1920,
		FPS:           30,
		MinDurationS:  5.0,
		MaxDurationS:  9.0,
		ClipMinS:      0.25,
		ClipMaxS:      0.8,
		SpeedMin:      0.95,
		SpeedMax:      1.05,
		Contrast:      1.18,
		Saturation:    0.86,
		Brightness:    -0.02,
		Gamma:         1.02,
		EnableGrain:   true,
		GrainStrength: 6,
		VideoBitrate:  "14M",
		Maxrate:       "18M",
		Bufsize:       "28M",
		NVENCPreset:   "p1",
		X264Preset:    "ultrafast",
		CRF:           18,
		AudioBitrate:  "192k",
		Loop:          true,
		WritePlan:     true,
	}
}

// FramePeriod returns the duration of one output frame in seconds
func (r RenderConfig) FramePeriod() float64 {
	if r.FPS <= 0 {
		return 0
	}
	return 1.0 / float64(r.FPS)
}

// Validate rejects settings no component can honor
func (r RenderConfig) Validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("frame size must be positive, got %dx%d", r.Width, r.Height)
	}
	if r.Width%2 != 0 || r.Height%2 != 0 {
		return fmt.Errorf("frame size must be even for yuv420p, got %dx%d", r.Width, r.Height)
	}
	if r.FPS <= 0 {
		return fmt.Errorf("fps must be positive")
	}
	if r.MinDurationS <= 0 || r.MaxDurationS <= 0 {
		return fmt.Errorf("duration bounds must be positive")
	}
	if r.MinDurationS > r.MaxDurationS {
		return fmt.Errorf("min_duration_s %.2f exceeds max_duration_s %.2f", r.MinDurationS, r.MaxDurationS)
	}
	if r.ClipMinS > r.ClipMaxS {
		return fmt.Errorf("clip_min_s %.2f exceeds clip_max_s %.2f", r.ClipMinS, r.ClipMaxS)
	}
	if r.SpeedMin <= 0 || r.SpeedMax <= 0 || r.SpeedMin > r.SpeedMax {
		return fmt.Errorf("speed bounds must satisfy 0 < speed_min <= speed_max")
	}
	if math.IsNaN(r.Contrast) || math.IsNaN(r.Saturation) || math.IsNaN(r.Gamma) {
		return fmt.Errorf("color grade values must be numbers")
	}
	if r.GrainStrength < 0 {
		return fmt.Errorf("grain_strength cannot be negative")
	}
	if r.CRF < 0 || r.CRF > 51 {
		return fmt.Errorf("crf must be between 0 and 51")
	}
	if _, ok := allowedX264Presets[r.X264Preset]; !ok {
		return fmt.Errorf("unknown x264 preset %q", r.X264Preset)
	}
	return nil
}
