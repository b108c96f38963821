package beat

import "math"

// Lag search range for tempo estimation
const (
	minTempoBPM = 30.0
	maxTempoBPM = 320.0
)

// EstimateTempo picks the onset autocorrelation peak weighted by a
// log-normal prior (one octave wide) centered on startBPM. It returns
// startBPM when the envelope carries no periodicity.
func EstimateTempo(env []float64, frameRate, startBPM float64) float64 {
	if startBPM <= 0 {
		startBPM = DefaultOptions().DefaultBPM
	}

	minLag := int(math.Ceil(60 * frameRate / maxTempoBPM))
	maxLag := int(math.Floor(60 * frameRate / minTempoBPM))
	maxLag = min(maxLag, len(env)-1)
	if minLag < 1 {
		minLag = 1
	}
	if maxLag <= minLag {
		return startBPM
	}

	weighted := make([]float64, maxLag+2)
	best := -1
	for lag := minLag; lag <= maxLag; lag++ {
		var ac float64
		for t := 0; t+lag < len(env); t++ {
			ac += env[t] * env[t+lag]
		}
		bpm := 60 * frameRate / float64(lag)
		prior := math.Exp(-0.5 * math.Pow(math.Log2(bpm)-math.Log2(startBPM), 2))
		weighted[lag] = ac * prior
		if best < 0 || weighted[lag] > weighted[best] {
			best = lag
		}
	}

	if best < 0 || weighted[best] <= 0 {
		return startBPM
	}

	// parabolic refinement around the integer peak
	lag := float64(best)
	if best > minLag && best < maxLag {
		y0, y1, y2 := weighted[best-1], weighted[best], weighted[best+1]
		denom := y0 - 2*y1 + y2
		if denom < 0 {
			shift := 0.5 * (y0 - y2) / denom
			lag += math.Max(-0.5, math.Min(0.5, shift))
		}
	}

	return 60 * frameRate / lag
}
