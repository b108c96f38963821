package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"
)

// FilterBuilder helps construct complex ffmpeg filter chains
type FilterBuilder struct {
	filters []string
}

// NewFilterBuilder creates a new filter builder
func NewFilterBuilder() *FilterBuilder {
	return &FilterBuilder{
		filters: make([]string, 0),
	}
}

// SetPTS changes playback rate; speed > 1 plays faster
func (fb *FilterBuilder) SetPTS(speed float64) *FilterBuilder {
	if speed <= 0 || speed == 1 {
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("setpts=PTS/%s", formatFloat(speed)))
	return fb
}

// Scale adds a scale filter
func (fb *FilterBuilder) Scale(width, height int) *FilterBuilder {
	if width <= 0 || height <= 0 {
		// Return self without adding filter - allows chaining to continue
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("scale=%d:%d", width, height))
	return fb
}

// ScaleFill scales so the frame covers width x height, keeping aspect
func (fb *FilterBuilder) ScaleFill(width, height int) *FilterBuilder {
	if width <= 0 || height <= 0 {
		return fb
	}
	fb.filters = append(fb.filters,
		fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase", width, height))
	return fb
}

// Crop adds a crop filter
func (fb *FilterBuilder) Crop(width, height, x, y int) *FilterBuilder {
	if width <= 0 || height <= 0 {
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("crop=%d:%d:%d:%d", width, height, x, y))
	return fb
}

// CenterCrop crops width x height from the middle of the frame
func (fb *FilterBuilder) CenterCrop(width, height int) *FilterBuilder {
	if width <= 0 || height <= 0 {
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("crop=%d:%d", width, height))
	return fb
}

// SetSAR forces square pixels
func (fb *FilterBuilder) SetSAR() *FilterBuilder {
	fb.filters = append(fb.filters, "setsar=1")
	return fb
}

// FPS adds an fps filter
func (fb *FilterBuilder) FPS(fps int) *FilterBuilder {
	if fps <= 0 {
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("fps=%d", fps))
	return fb
}

// Eq adds a color grade
func (fb *FilterBuilder) Eq(contrast, saturation, brightness, gamma float64) *FilterBuilder {
	fb.filters = append(fb.filters, fmt.Sprintf("eq=contrast=%s:saturation=%s:brightness=%s:gamma=%s",
		formatFloat(contrast), formatFloat(saturation), formatFloat(brightness), formatFloat(gamma)))
	return fb
}

// Noise adds temporal film grain
func (fb *FilterBuilder) Noise(strength int) *FilterBuilder {
	if strength <= 0 {
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("noise=alls=%d:allf=t", strength))
	return fb
}

// DrawText burns a text overlay
func (fb *FilterBuilder) DrawText(opts DrawTextOptions) *FilterBuilder {
	if strings.TrimSpace(opts.Text) == "" {
		return fb
	}
	fb.filters = append(fb.filters, opts.String())
	return fb
}

// Format adds a pixel format conversion
func (fb *FilterBuilder) Format(pixFmt string) *FilterBuilder {
	if pixFmt == "" {
		return fb
	}
	fb.filters = append(fb.filters, "format="+pixFmt)
	return fb
}

// Custom adds a custom filter string
func (fb *FilterBuilder) Custom(filter string) *FilterBuilder {
	fb.filters = append(fb.filters, filter)
	return fb
}

// Build returns the complete filter string joined with commas
func (fb *FilterBuilder) Build() string {
	if len(fb.filters) == 0 {
		return ""
	}
	return strings.Join(fb.filters, ",")
}

// BuildAll returns all filters as a slice
func (fb *FilterBuilder) BuildAll() []string {
	return fb.filters
}

// DrawTextOptions configures a drawtext filter
type DrawTextOptions struct {
	Text        string
	FontFile    string
	FontSize    int
	FontColor   string
	BorderWidth int
	BorderColor string
	LineSpacing int
	ShadowColor string
	ShadowX     int
	ShadowY     int
	// X and Y are ffmpeg expressions
	X string
	Y string
	// Start and End bound the visible window in output-local seconds.
	// A zero End shows the text for the whole input.
	Start float64
	End   float64
}

// String renders the drawtext filter expression
func (o DrawTextOptions) String() string {
	parts := []string{}
	if o.FontFile != "" {
		parts = append(parts, fmt.Sprintf("fontfile='%s'", escapeFilterPath(o.FontFile)))
	}
	parts = append(parts, fmt.Sprintf("text='%s'", escapeText(o.Text)))

	size := o.FontSize
	if size <= 0 {
		size = 64
	}
	parts = append(parts, fmt.Sprintf("fontsize=%d", size))

	color := o.FontColor
	if color == "" {
		color = "white"
	}
	parts = append(parts, "fontcolor="+color)

	if o.BorderWidth > 0 {
		border := o.BorderColor
		if border == "" {
			border = "black"
		}
		parts = append(parts, fmt.Sprintf("borderw=%d", o.BorderWidth), "bordercolor="+border)
	}
	if o.LineSpacing > 0 {
		parts = append(parts, fmt.Sprintf("line_spacing=%d", o.LineSpacing))
	}
	if o.ShadowColor != "" {
		parts = append(parts, "shadowcolor="+o.ShadowColor,
			fmt.Sprintf("shadowx=%d", o.ShadowX), fmt.Sprintf("shadowy=%d", o.ShadowY))
	}

	x := o.X
	if x == "" {
		x = "(w-text_w)/2"
	}
	y := o.Y
	if y == "" {
		y = "(h-text_h)/2"
	}
	parts = append(parts, "x="+x, "y="+y)

	if o.End > 0 {
		parts = append(parts, fmt.Sprintf("enable='between(t,%.3f,%.3f)'", o.Start, o.End))
	}

	return "drawtext=" + strings.Join(parts, ":")
}

func escapeText(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, "", `:`, `\:`, `%`, `\%`)
	return r.Replace(s)
}

func escapeFilterPath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	return strings.ReplaceAll(p, ":", `\:`)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
