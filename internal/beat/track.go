package beat

import (
	"math"
	"slices"
)

// TrackBeats runs dynamic-programming beat tracking over an onset envelope
// and returns beat frame indices in ascending order. tightness controls how
// strongly inter-beat intervals are held to the tempo period.
func TrackBeats(env []float64, frameRate, bpm, tightness float64) []int {
	if len(env) == 0 || bpm <= 0 || frameRate <= 0 {
		return nil
	}

	std := stddev(env)
	if std == 0 {
		return nil
	}

	period := 60 * frameRate / bpm
	local := localScore(env, std, period)

	localMax := 0.0
	for _, v := range local {
		localMax = math.Max(localMax, v)
	}
	firstThreshold := 0.01 * localMax

	n := len(local)
	cumscore := make([]float64, n)
	backlink := make([]int, n)

	lo := int(math.Round(2 * period))
	hi := int(math.Round(period / 2))
	if hi < 1 {
		hi = 1
	}

	firstBeat := true
	for i := 0; i < n; i++ {
		bestScore := math.Inf(-1)
		bestPrev := -1
		for prev := i - lo; prev <= i-hi; prev++ {
			score := -tightness * math.Pow(math.Log(float64(i-prev)/period), 2)
			if prev >= 0 {
				score += cumscore[prev]
			}
			if score > bestScore {
				bestScore = score
				bestPrev = prev
			}
		}
		if math.IsInf(bestScore, -1) {
			bestScore = 0
		}

		cumscore[i] = local[i] + bestScore
		if firstBeat && local[i] < firstThreshold {
			backlink[i] = -1
		} else {
			backlink[i] = max(bestPrev, -1)
			firstBeat = false
		}
	}

	last := lastBeat(cumscore)
	if last < 0 {
		return nil
	}

	beats := []int{last}
	for b := backlink[last]; b >= 0; b = backlink[b] {
		beats = append(beats, b)
	}
	slices.Reverse(beats)

	return trimWeakBeats(beats, local)
}

// localScore smooths the normalized envelope with a narrow gaussian
func localScore(env []float64, std, period float64) []float64 {
	half := int(math.Round(period))
	kernel := make([]float64, 2*half+1)
	for k := -half; k <= half; k++ {
		x := float64(k) * 32 / period
		kernel[k+half] = math.Exp(-0.5 * x * x)
	}

	out := make([]float64, len(env))
	for i := range env {
		var sum float64
		for k := -half; k <= half; k++ {
			j := i + k
			if j < 0 || j >= len(env) {
				continue
			}
			sum += env[j] / std * kernel[k+half]
		}
		out[i] = sum
	}
	return out
}

// lastBeat finds the final cumulative-score peak that is at least half the
// median peak height
func lastBeat(cumscore []float64) int {
	var peaks []int
	for i := range cumscore {
		left := i == 0 || cumscore[i] > cumscore[i-1]
		right := i == len(cumscore)-1 || cumscore[i] >= cumscore[i+1]
		if left && right {
			peaks = append(peaks, i)
		}
	}
	if len(peaks) == 0 {
		return -1
	}

	heights := make([]float64, len(peaks))
	for i, p := range peaks {
		heights[i] = cumscore[p]
	}
	slices.Sort(heights)
	median := heights[len(heights)/2]

	for i := len(peaks) - 1; i >= 0; i-- {
		if cumscore[peaks[i]] > 0.5*median {
			return peaks[i]
		}
	}
	return peaks[len(peaks)-1]
}

// trimWeakBeats drops leading and trailing beats whose onset support is
// below half the RMS support of all beats
func trimWeakBeats(beats []int, local []float64) []int {
	if len(beats) == 0 {
		return beats
	}
	var sq float64
	for _, b := range beats {
		sq += local[b] * local[b]
	}
	threshold := 0.5 * math.Sqrt(sq/float64(len(beats)))

	start, end := 0, len(beats)
	for start < end && local[beats[start]] <= threshold {
		start++
	}
	for end > start && local[beats[end-1]] <= threshold {
		end--
	}
	return beats[start:end]
}

func stddev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	var v float64
	for _, x := range xs {
		v += (x - mean) * (x - mean)
	}
	return math.Sqrt(v / float64(len(xs)))
}
