package util

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatSeconds renders a position in seconds for ffmpeg -ss/-t arguments.
// Microsecond precision keeps segment boundaries stable across runs.
func FormatSeconds(s float64) string {
	if s < 0 {
		s = 0
	}
	return strconv.FormatFloat(s, 'f', 6, 64)
}

// FormatClock formats seconds as HH:MM:SS.mmm for logs and sidecars
func FormatClock(s float64) string {
	if s < 0 {
		s = 0
	}
	hours := int(s / 3600)
	minutes := int((s - float64(hours*3600)) / 60)
	secs := s - float64(hours*3600) - float64(minutes*60)
	return fmt.Sprintf("%02d:%02d:%06.3f", hours, minutes, secs)
}

// ParseFrameRate parses frame rate from ffprobe format (e.g., "30000/1001").
// Plain decimal values are accepted as well.
func ParseFrameRate(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	parts := strings.Split(s, "/")
	if len(parts) == 1 {
		v, err := strconv.ParseFloat(parts[0], 64)
		if err != nil || v < 0 {
			return 0
		}
		return v
	}
	if len(parts) != 2 {
		return 0
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}
