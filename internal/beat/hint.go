package beat

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/keagan/beatcut/pkg/util"
)

var bpmPattern = regexp.MustCompile(`(?i)(\d{2,3})\s*bpm`)

// Plausible range for a name-derived tempo hint
const (
	MinHintBPM = 60
	MaxHintBPM = 200
)

// HintFromName returns a tempo hint embedded in the file name ("song_127bpm.mp3"),
// or 0 when none is present or it is out of range.
func HintFromName(path string) float64 {
	stem := util.Stem(path)
	stem = strings.ReplaceAll(stem, "_", " ")

	m := bpmPattern.FindStringSubmatch(stem)
	if m == nil {
		return 0
	}
	v, err := strconv.Atoi(m[1])
	if err != nil || v < MinHintBPM || v > MaxHintBPM {
		return 0
	}
	return float64(v)
}
