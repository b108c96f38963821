// Package schedule turns a tempo into a sequence of beat-locked cut durations.
package schedule

import "math/rand/v2"

// Rhythm is a phrase-level multiplier regime
type Rhythm int

const (
	Normal Rhythm = iota
	Fast
	Slow
	Mixed
)

func (r Rhythm) String() string {
	switch r {
	case Normal:
		return "normal"
	case Fast:
		return "fast"
	case Slow:
		return "slow"
	case Mixed:
		return "mixed"
	}
	return "unknown"
}

const (
	// MinCut is the shortest cut that still reads on screen
	MinCut = 0.18

	ultraFastChance = 0.15
	ultraFast       = 0.25

	minPhraseBeats = 4
	maxPhraseBeats = 8

	maxPhrases    = 1000
	maxPhraseCuts = 20

	// slack allowed past the target when placing a cut, and the distance
	// from the target at which the schedule is considered complete
	overshoot   = 0.05
	closeEnough = 0.1
)

var mixedMultipliers = [...]float64{0.5, 1, 2}

// Schedule returns cut durations for a clip of at most maxDuration seconds
// at the given tempo. The result is never empty for positive inputs.
func Schedule(maxDuration, bpm float64, rng *rand.Rand) []float64 {
	if maxDuration <= 0 || bpm <= 0 {
		return nil
	}
	period := 60.0 / bpm

	var durations []float64
	total := 0.0

	for phrase := 0; phrase < maxPhrases && total < maxDuration-closeEnough; phrase++ {
		rhythm := Rhythm(rng.IntN(4))
		target := float64(minPhraseBeats + rng.IntN(maxPhraseBeats-minPhraseBeats+1))
		acc := 0.0

		for cut := 0; cut < maxPhraseCuts && acc < target; cut++ {
			m := multiplier(rhythm, rng)
			dur := m * period

			// snap short cuts up by whole doublings until they clear the floor
			for dur < MinCut {
				m *= 2
				dur = m * period
			}

			if total+dur > maxDuration+overshoot {
				break
			}

			durations = append(durations, dur)
			total += dur
			acc += m
		}
	}

	if len(durations) == 0 {
		// degenerate tempo/duration: whole beats until the target is met
		for total < maxDuration-overshoot || len(durations) == 0 {
			durations = append(durations, period)
			total += period
		}
	}

	return durations
}

func multiplier(rhythm Rhythm, rng *rand.Rand) float64 {
	var m float64
	switch rhythm {
	case Fast:
		m = 0.5
	case Slow:
		m = 2
	case Mixed:
		m = mixedMultipliers[rng.IntN(len(mixedMultipliers))]
	default:
		m = 1
	}

	if (rhythm == Fast || rhythm == Mixed) && rng.Float64() < ultraFastChance {
		m = ultraFast
	}
	return m
}

// Total sums durations
func Total(durations []float64) float64 {
	var sum float64
	for _, d := range durations {
		sum += d
	}
	return sum
}
