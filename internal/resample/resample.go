// Package resample implements per-channel integer/fractional resampling,
// peak-detect bucketing, and persistence-fold ring buffers (spec §4.9).
package resample

import (
	"fmt"
	"math"

	"github.com/haasoctl/haasoctl/internal/fftutil"
)

// KaiserBeta is the Kaiser window shape parameter used for the
// polyphase interpolation filter.
const KaiserBeta = 8.6

// polyphaseTapsPerPhase sets kernel length relative to the resample
// factor; a longer kernel trades latency for less ripple.
const polyphaseTapsPerPhase = 16

// Factor is a supported resample_factor value.
type Factor int

const (
	Factor1 Factor = 1
	Factor2 Factor = 2
	Factor4 Factor = 4
	Factor8 Factor = 8
)

func validFactor(f Factor) bool {
	switch f {
	case Factor1, Factor2, Factor4, Factor8:
		return true
	}
	return false
}

// Resample applies polyphase interpolation to upsample samples by
// factor, using a windowed-sinc kernel (Kaiser β=8.6). Factor 1 is a
// no-op copy.
func Resample(samples []float32, factor Factor) ([]float32, error) {
	if !validFactor(factor) {
		return nil, fmt.Errorf("resample: invalid factor %d", factor)
	}
	if factor == Factor1 || len(samples) == 0 {
		return append([]float32(nil), samples...), nil
	}

	kernel := sincKernel(int(factor), polyphaseTapsPerPhase)
	n := len(samples)
	out := make([]float32, n*int(factor))

	// Zero-stuff then filter: conceptually upsample by inserting
	// factor-1 zeros between samples and convolving with the
	// interpolation kernel; computed directly per polyphase branch to
	// avoid allocating the stuffed array.
	half := len(kernel) / 2
	for outIdx := range out {
		phase := outIdx % int(factor)
		centerIn := outIdx / int(factor)
		var sum float64
		for k, coeff := range kernel {
			// kernel index k corresponds to zero-stuffed offset
			// k-half relative to centerIn*factor + phase.
			srcStuffed := centerIn*int(factor) + phase - (k - half)
			if srcStuffed%int(factor) != 0 {
				continue
			}
			srcIdx := srcStuffed / int(factor)
			if srcIdx < 0 || srcIdx >= n {
				continue
			}
			sum += float64(samples[srcIdx]) * coeff
		}
		out[outIdx] = float32(sum)
	}
	return out, nil
}

// sincKernel builds a windowed-sinc low-pass kernel for interpolation
// by the given factor, tapsPerPhase taps on each side of center.
func sincKernel(factor, tapsPerPhase int) []float64 {
	n := 2*tapsPerPhase*factor + 1
	window := fftutil.Kaiser(n, KaiserBeta)
	kernel := make([]float64, n)
	center := n / 2
	for i := range kernel {
		x := float64(i-center) / float64(factor)
		kernel[i] = sinc(x) * window[i]
	}
	// Normalize for unit DC gain across one period, i.e. the filter
	// preserves the original sample values at integer multiples of
	// factor.
	var sum float64
	for i := center; i < n; i += factor {
		sum += kernel[i]
	}
	if sum != 0 {
		for i := range kernel {
			kernel[i] /= sum
		}
	}
	return kernel
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	pix := math.Pi * x
	return math.Sin(pix) / pix
}
