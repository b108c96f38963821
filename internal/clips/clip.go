// Package clips indexes the b-roll library: discovery, probing, motion
// scoring and selection.
package clips

import "github.com/keagan/beatcut/pkg/util"

// Still images have no natural length; they are held for as long as needed
const (
	StillDuration = 3600.0
	DefaultFPS    = 30.0

	// MinUsableDuration excludes clips too short to cut from
	MinUsableDuration = 0.5
)

var videoExts = map[string]struct{}{
	".mp4":  {},
	".mov":  {},
	".m4v":  {},
	".mkv":  {},
	".webm": {},
	".avi":  {},
}

var imageExts = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
	".bmp":  {},
}

// ClipMeta describes one library file
type ClipMeta struct {
	Path     string  `json:"path"`
	Duration float64 `json:"duration"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	FPS      float64 `json:"fps"`
	Motion   float64 `json:"motion"`
	Still    bool    `json:"still,omitempty"`
}

// Usable reports whether the clip can be cut from
func (c ClipMeta) Usable() bool {
	return c.Duration > MinUsableDuration && c.Width > 0 && c.Height > 0
}

// IsImage reports whether path has a still-image extension
func IsImage(path string) bool {
	_, ok := imageExts[util.Ext(path)]
	return ok
}

// IsVideo reports whether path has a video extension
func IsVideo(path string) bool {
	_, ok := videoExts[util.Ext(path)]
	return ok
}

// IsMedia reports whether path is a known video or image file
func IsMedia(path string) bool {
	return IsVideo(path) || IsImage(path)
}
