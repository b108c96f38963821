package beat

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// OnsetStrength returns a spectral-flux onset envelope, one value per hop.
// Frames are centered, so frame t describes the signal around t*hop.
func OnsetStrength(samples []float32, frameLength, hop int) []float64 {
	if len(samples) == 0 || frameLength <= 0 || hop <= 0 {
		return nil
	}

	window := hann(frameLength)
	fft := fourier.NewFFT(frameLength)
	pad := frameLength / 2

	nFrames := 1 + len(samples)/hop
	env := make([]float64, nFrames)

	frame := make([]float64, frameLength)
	var coeffs []complex128
	bins := frameLength/2 + 1
	prev := make([]float64, bins)
	cur := make([]float64, bins)

	for t := 0; t < nFrames; t++ {
		start := t*hop - pad
		for j := range frame {
			idx := start + j
			if idx < 0 || idx >= len(samples) {
				frame[j] = 0
				continue
			}
			frame[j] = float64(samples[idx]) * window[j]
		}

		coeffs = fft.Coefficients(coeffs, frame)
		for k, c := range coeffs {
			cur[k] = math.Log1p(cmplx.Abs(c))
		}

		if t > 0 {
			var flux float64
			for k := range cur {
				if d := cur[k] - prev[k]; d > 0 {
					flux += d
				}
			}
			env[t] = flux / float64(bins)
		}
		prev, cur = cur, prev
	}

	return env
}

// hann returns a periodic Hann window
func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}
