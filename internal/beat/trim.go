package beat

import "math"

// TrimSilence drops leading and trailing frames quieter than topDB below the
// loudest frame. It returns the kept samples, the index of the first kept
// sample, and false when the whole signal is silent.
func TrimSilence(samples []float32, topDB float64, frameLength, hop int) ([]float32, int, bool) {
	rms := frameRMS(samples, frameLength, hop)

	peak := 0.0
	for _, v := range rms {
		peak = math.Max(peak, v)
	}
	if peak <= 0 {
		return nil, 0, false
	}

	threshold := peak * math.Pow(10, -topDB/20)
	first, last := -1, -1
	for i, v := range rms {
		if v > threshold {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return nil, 0, false
	}

	start := first * hop
	end := min(len(samples), last*hop+frameLength)
	return samples[start:end], start, true
}

// frameRMS computes root-mean-square energy per frame, zero padding the tail
func frameRMS(samples []float32, frameLength, hop int) []float64 {
	n := 1
	if len(samples) > frameLength {
		n = 1 + (len(samples)-frameLength+hop-1)/hop
	}
	out := make([]float64, n)
	for i := range out {
		start := i * hop
		end := min(len(samples), start+frameLength)
		var sum float64
		for _, s := range samples[start:end] {
			sum += float64(s) * float64(s)
		}
		out[i] = math.Sqrt(sum / float64(frameLength))
	}
	return out
}
