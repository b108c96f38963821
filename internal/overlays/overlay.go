// Package overlays holds timed text burned into rendered segments.
package overlays

import (
	"sort"
	"strings"

	"github.com/keagan/beatcut/internal/config"
	"github.com/keagan/beatcut/internal/ffmpeg"
)

// Style selects how an overlay is laid out
type Style string

const (
	// StyleHook is the headline shown near the top third
	StyleHook Style = "hook"
	// StyleLyric is a timed line near the bottom
	StyleLyric Style = "lyric"
)

// TextOverlay is one text window on the output timeline. An End of zero
// keeps the text on screen for the whole video.
type TextOverlay struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end,omitempty"`
	Style Style   `json:"style,omitempty"`
}

// Whole reports whether the overlay spans the entire video
func (o TextOverlay) Whole() bool {
	return o.End <= 0
}

// Timeline is an ordered set of overlays in output time
type Timeline []TextOverlay

// NewTimeline builds a timeline from an optional whole-video hook and any
// timed windows. Empty texts and empty windows are dropped.
func NewTimeline(hook string, windows ...TextOverlay) Timeline {
	var tl Timeline
	if strings.TrimSpace(hook) != "" {
		tl = append(tl, TextOverlay{Text: hook, Style: StyleHook})
	}
	for _, w := range windows {
		if strings.TrimSpace(w.Text) == "" {
			continue
		}
		if !w.Whole() && w.End <= w.Start {
			continue
		}
		if w.Style == "" {
			w.Style = StyleLyric
		}
		tl = append(tl, w)
	}
	sort.SliceStable(tl, func(i, j int) bool {
		return tl[i].Start < tl[j].Start
	})
	return tl
}

// Localize returns the overlays visible during [segStart, segStart+segDur)
// translated to segment-local time and clipped to the segment.
func (t Timeline) Localize(segStart, segDur float64) []TextOverlay {
	if segDur <= 0 {
		return nil
	}
	segEnd := segStart + segDur

	var local []TextOverlay
	for _, o := range t {
		if o.Whole() {
			local = append(local, o)
			continue
		}
		if o.End <= segStart || o.Start >= segEnd {
			continue
		}
		o.Start = max(0, o.Start-segStart)
		o.End = min(segDur, o.End-segStart)
		local = append(local, o)
	}
	return local
}

// CleanText upper-cases text and removes characters that break drawtext quoting
func CleanText(s string) string {
	s = strings.ToUpper(s)
	s = strings.NewReplacer("'", "", ":", "").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// Wrap breaks text at word boundaries into lines of about maxChars.
// Words longer than maxChars stay whole on their own line.
func Wrap(text string, maxChars int) string {
	words := strings.Fields(text)
	if maxChars <= 0 || len(words) == 0 {
		return strings.Join(words, " ")
	}

	var lines []string
	var line []string
	length := 0
	for _, w := range words {
		if length+len(w) > maxChars && len(line) > 0 {
			lines = append(lines, strings.Join(line, " "))
			line = line[:0]
			length = 0
		}
		line = append(line, w)
		length += len(w) + 1
	}
	if len(line) > 0 {
		lines = append(lines, strings.Join(line, " "))
	}
	return strings.Join(lines, "\n")
}

// Layout describes how a style is drawn
type Layout struct {
	FontSize    int
	Wrap        int
	Y           string
	LineSpacing int
	ShadowColor string
	ShadowX     int
	ShadowY     int
}

// Registry manages the layouts available to overlays
type Registry struct {
	layouts map[Style]Layout
}

// NewRegistry creates a registry with the hook and lyric layouts
func NewRegistry(cfg config.TextConfig) *Registry {
	r := &Registry{layouts: make(map[Style]Layout)}
	r.Register(StyleHook, Layout{
		FontSize:    cfg.HookSize,
		Wrap:        cfg.HookWrap,
		Y:           "(h-text_h)/3",
		LineSpacing: 10,
		ShadowColor: "black@0.7",
		ShadowX:     4,
		ShadowY:     4,
	})
	r.Register(StyleLyric, Layout{
		FontSize:    cfg.LyricSize,
		Wrap:        cfg.LyricWrap,
		Y:           "(h-text_h)*0.8",
		LineSpacing: 5,
		ShadowColor: "black@0.8",
		ShadowX:     3,
		ShadowY:     3,
	})
	return r
}

// Register adds or replaces a layout
func (r *Registry) Register(style Style, layout Layout) {
	r.layouts[style] = layout
}

// Get retrieves the layout for a style
func (r *Registry) Get(style Style) (Layout, bool) {
	l, ok := r.layouts[style]
	return l, ok
}

// List returns all registered styles in name order
func (r *Registry) List() []Style {
	styles := make([]Style, 0, len(r.layouts))
	for s := range r.layouts {
		styles = append(styles, s)
	}
	sort.Slice(styles, func(i, j int) bool { return styles[i] < styles[j] })
	return styles
}

// Renderer turns overlays into drawtext filters
type Renderer struct {
	fontFile string
	registry *Registry
}

// NewRenderer creates a renderer using the configured font and sizes
func NewRenderer(cfg config.TextConfig) *Renderer {
	return &Renderer{fontFile: cfg.FontFile, registry: NewRegistry(cfg)}
}

// DrawText returns the drawtext options for a segment-local overlay
func (r *Renderer) DrawText(o TextOverlay) ffmpeg.DrawTextOptions {
	layout, ok := r.registry.Get(o.Style)
	if !ok {
		layout, _ = r.registry.Get(StyleLyric)
	}

	opts := ffmpeg.DrawTextOptions{
		Text:        Wrap(CleanText(o.Text), layout.Wrap),
		FontFile:    r.fontFile,
		FontSize:    layout.FontSize,
		FontColor:   "white",
		LineSpacing: layout.LineSpacing,
		ShadowColor: layout.ShadowColor,
		ShadowX:     layout.ShadowX,
		ShadowY:     layout.ShadowY,
		Y:           layout.Y,
	}
	if !o.Whole() {
		opts.Start = o.Start
		opts.End = o.End
	}
	return opts
}

// Apply appends a drawtext filter per overlay
func (r *Renderer) Apply(fb *ffmpeg.FilterBuilder, local []TextOverlay) *ffmpeg.FilterBuilder {
	for _, o := range local {
		fb.DrawText(r.DrawText(o))
	}
	return fb
}
