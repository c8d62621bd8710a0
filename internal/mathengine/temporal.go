package mathengine

import "math"

// differentiate returns the backward difference out[i] = x[i]-x[i-1],
// with out[0] repeating out[1] so the output length matches the input.
func differentiate(x []float64) []float64 {
	out := make([]float64, len(x))
	for i := 1; i < len(x); i++ {
		out[i] = x[i] - x[i-1]
	}
	if len(x) > 1 {
		out[0] = out[1]
	}
	return out
}

// integrate returns the running (cumulative) sum.
func integrate(x []float64) []float64 {
	out := make([]float64, len(x))
	var acc float64
	for i, v := range x {
		acc += v
		out[i] = acc
	}
	return out
}

// smooth applies a centered moving-average over 2*(n/2)+1 samples (so
// an even n uses n+1), truncated at the edges (n<2 is a no-op copy).
func smooth(x []float64, n int) []float64 {
	if n < 2 {
		return append([]float64(nil), x...)
	}
	out := make([]float64, len(x))
	half := n / 2
	for i := range x {
		var sum float64
		var count int
		for k := -half; k <= half; k++ {
			j := i + k
			if j < 0 || j >= len(x) {
				continue
			}
			sum += x[j]
			count++
		}
		out[i] = sum / float64(count)
	}
	return out
}

// envelope returns the magnitude of the analytic signal approximated
// via a discrete Hilbert transform (90-degree phase shift FIR),
// giving the instantaneous amplitude envelope.
func envelope(x []float64) []float64 {
	h := hilbertKernel(31)
	imagPart := convolveCentered(x, h)
	out := make([]float64, len(x))
	for i := range x {
		out[i] = math.Hypot(x[i], imagPart[i])
	}
	return out
}

// hilbertKernel builds an odd-length ideal discrete Hilbert
// transformer, windowed with a Hann taper to limit ringing.
func hilbertKernel(n int) []float64 {
	if n%2 == 0 {
		n++
	}
	h := make([]float64, n)
	center := n / 2
	for i := range h {
		k := i - center
		if k == 0 || k%2 == 0 {
			h[i] = 0
			continue
		}
		h[i] = 2 / (math.Pi * float64(k))
		// Hann taper.
		h[i] *= 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return h
}

func convolveCentered(x, h []float64) []float64 {
	half := len(h) / 2
	out := make([]float64, len(x))
	for i := range out {
		var sum float64
		for k, coeff := range h {
			j := i + k - half
			if j < 0 || j >= len(x) {
				continue
			}
			sum += x[j] * coeff
		}
		out[i] = sum
	}
	return out
}

// timeShiftTaps is the sinc interpolation kernel length used for
// sub-sample time_shift (spec §4.10: "truncated to 32 taps and
// Blackman-windowed").
const timeShiftTaps = 32

// timeShift delays x by shiftSec seconds (negative advances it),
// realized as a fractional-sample convolution with a windowed-sinc
// kernel.
func timeShift(x []float64, shiftSec, sampleRateHz float64) []float64 {
	if sampleRateHz <= 0 || shiftSec == 0 {
		return append([]float64(nil), x...)
	}
	shiftSamples := shiftSec * sampleRateHz
	intPart := math.Floor(shiftSamples)
	frac := shiftSamples - intPart

	kernel := sincBlackman(frac, timeShiftTaps)
	half := len(kernel) / 2
	out := make([]float64, len(x))
	for i := range out {
		var sum float64
		for k, coeff := range kernel {
			j := i - int(intPart) + k - half
			if j < 0 || j >= len(x) {
				continue
			}
			sum += x[j] * coeff
		}
		out[i] = sum
	}
	return out
}

func sincBlackman(frac float64, taps int) []float64 {
	kernel := make([]float64, taps)
	center := taps / 2
	for i := range kernel {
		x := float64(i-center) + frac
		var s float64
		if x == 0 {
			s = 1
		} else {
			pix := math.Pi * x
			s = math.Sin(pix) / pix
		}
		w := 0.42 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(taps-1)) + 0.08*math.Cos(4*math.Pi*float64(i)/float64(taps-1))
		kernel[i] = s * w
	}
	return kernel
}
