// Package fftengine computes per-channel windowed spectra — magnitude
// in dBFS and phase — plus peak detection over them (spec §4.11).
package fftengine

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/haasoctl/haasoctl/internal/fftutil"
)

// Window selects the analysis window applied before transforming.
type Window string

const (
	WindowRect     Window = "rect"
	WindowHann     Window = "hann"
	WindowHamming  Window = "hamming"
	WindowBlackman Window = "blackman"
	WindowFlatTop  Window = "flat_top"
	WindowKaiser   Window = "kaiser"
)

// FullScaleVolts is the reference level for dBFS magnitude (spec
// §4.11: "full-scale = ±1 V").
const FullScaleVolts = 1.0

// Spectrum is one channel's computed FFT result.
type Spectrum struct {
	Freqs     []float64
	MagDBFS   []float64
	PhaseRad  []float64
	SampleLen int
}

// Peak is one detected spectral peak.
type Peak struct {
	BinIndex  float64 // parabolically-interpolated fractional bin
	FreqHz    float64
	MagDBFS   float64
	PhaseRad  float64
}

func windowFunc(w Window, n int, kaiserBeta float64) ([]float64, error) {
	switch w {
	case WindowRect, "":
		out := make([]float64, n)
		for i := range out {
			out[i] = 1
		}
		return out, nil
	case WindowHann:
		return fftutil.Hann(n), nil
	case WindowHamming:
		return fftutil.Hamming(n), nil
	case WindowBlackman:
		return fftutil.Blackman(n), nil
	case WindowFlatTop:
		return fftutil.FlatTop(n), nil
	case WindowKaiser:
		return fftutil.Kaiser(n, kaiserBeta), nil
	default:
		return nil, fmt.Errorf("fftengine: unknown window %q", w)
	}
}

// Compute runs a windowed FFT over samples sampled at sampleRateHz.
func Compute(samples []float64, sampleRateHz float64, w Window, kaiserBeta float64) (Spectrum, error) {
	n := len(samples)
	if n == 0 {
		return Spectrum{}, fmt.Errorf("fftengine: empty input")
	}
	win, err := windowFunc(w, n, kaiserBeta)
	if err != nil {
		return Spectrum{}, err
	}

	var coherentGain float64
	x := make([]complex128, n)
	for i, v := range samples {
		x[i] = complex(v*win[i], 0)
		coherentGain += win[i]
	}
	coherentGain /= float64(n)
	if coherentGain == 0 {
		coherentGain = 1
	}

	X := fftutil.DFT(x)
	half := n/2 + 1

	sp := Spectrum{
		Freqs:     make([]float64, half),
		MagDBFS:   make([]float64, half),
		PhaseRad:  make([]float64, half),
		SampleLen: n,
	}
	for k := 0; k < half; k++ {
		sp.Freqs[k] = float64(k) * sampleRateHz / float64(n)
		mag := cmplx.Abs(X[k]) / (float64(n) * coherentGain)
		if k != 0 && k != n/2 {
			mag *= 2 // fold one-sided spectral energy
		}
		sp.MagDBFS[k] = 20 * math.Log10(mag/FullScaleVolts+1e-300)
		sp.PhaseRad[k] = cmplx.Phase(X[k])
	}
	return sp, nil
}

// DetectPeaks finds local maxima in sp.MagDBFS exceeding
// (max - prominenceDB) and separated by at least minBinGap bins,
// refining each peak's location by parabolic interpolation.
func DetectPeaks(sp Spectrum, prominenceDB float64, minBinGap int) []Peak {
	if len(sp.MagDBFS) == 0 {
		return nil
	}
	if prominenceDB <= 0 {
		prominenceDB = 20
	}
	maxDB := sp.MagDBFS[0]
	for _, v := range sp.MagDBFS {
		if v > maxDB {
			maxDB = v
		}
	}
	threshold := maxDB - prominenceDB

	var peaks []Peak
	lastBin := -1 << 30
	for k := 1; k < len(sp.MagDBFS)-1; k++ {
		v := sp.MagDBFS[k]
		if v < threshold {
			continue
		}
		if v <= sp.MagDBFS[k-1] || v <= sp.MagDBFS[k+1] {
			continue
		}
		if k-lastBin < minBinGap {
			continue
		}
		frac := parabolicPeak(sp.MagDBFS[k-1], v, sp.MagDBFS[k+1])
		binPos := float64(k) + frac
		freq := binPos * (sp.Freqs[1] - sp.Freqs[0])
		peaks = append(peaks, Peak{
			BinIndex: binPos,
			FreqHz:   freq,
			MagDBFS:  v,
			PhaseRad: sp.PhaseRad[k],
		})
		lastBin = k
	}
	return peaks
}

// parabolicPeak fits a parabola through three equally-spaced samples
// and returns the fractional offset of its vertex from the center
// sample.
func parabolicPeak(left, center, right float64) float64 {
	denom := left - 2*center + right
	if denom == 0 {
		return 0
	}
	return 0.5 * (left - right) / denom
}
