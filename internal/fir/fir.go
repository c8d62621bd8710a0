// Package fir implements per-mode FIR frequency-response correction
// (spec §4.8): calibration against a 10 MHz square wave, zero-phase
// application, and JSON persistence with sample-rate re-validation.
package fir

import (
	"math"
	"math/cmplx"

	"github.com/haasoctl/haasoctl/internal/fftutil"
)

// Mode selects which of the three correction kernels applies.
type Mode string

const (
	ModeNormal      Mode = "normal"
	ModeOversampled Mode = "oversampled"
	ModeInterleaved Mode = "interleaved"
)

// DesignFFTDepth is the depth chosen so 10 MHz harmonics land on bin
// centers, at both 3.2 GHz and 6.4 GHz interleaved rates (spec §4.8
// step 3).
const DesignFFTDepth = 640

// InverseFFTDepth is the fixed size used for the final inverse
// transform (spec §4.8 step 7).
const InverseFFTDepth = 2048

// CalibrationToneHz is the calibration signal's fundamental frequency.
const CalibrationToneHz = 10e6

// CalibrationCaptures is how many captures are averaged (spec §4.8).
const CalibrationCaptures = 50

// FrequencyResponse optionally records the measured correction curve
// for diagnostics. Bank.Save does not write it to the *.fir file.
type FrequencyResponse struct {
	Freqs []float64
	Mag   []float64
	Phase []float64
}

// Calibration is one mode's designed FIR kernel (spec §3).
type Calibration struct {
	Coefficients            []float32
	CalibrationSampleRateHz float64
	Source                  Mode
	FreqResponse            *FrequencyResponse
}

// AlignAndAverage cross-correlates each capture against the first
// (the reference) and averages after an integer-sample shift, the
// "fine cross-correlation alignment" step of spec §4.8.
func AlignAndAverage(captures [][]float64) []float64 {
	if len(captures) == 0 {
		return nil
	}
	ref := captures[0]
	n := len(ref)
	sum := make([]float64, n)
	for _, c := range captures {
		lag := bestLag(ref, c, n/4)
		for i := range sum {
			srcIdx := i + lag
			if srcIdx < 0 || srcIdx >= len(c) {
				continue
			}
			sum[i] += c[srcIdx]
		}
	}
	for i := range sum {
		sum[i] /= float64(len(captures))
	}
	return sum
}

// bestLag searches lags in [-maxLag, maxLag] for the shift of c that
// best cross-correlates with ref.
func bestLag(ref, c []float64, maxLag int) int {
	bestScore := math.Inf(-1)
	bestShift := 0
	n := len(ref)
	for lag := -maxLag; lag <= maxLag; lag++ {
		var score float64
		count := 0
		for i := 0; i < n; i++ {
			j := i + lag
			if j < 0 || j >= len(c) {
				continue
			}
			score += ref[i] * c[j]
			count++
		}
		if count == 0 {
			continue
		}
		score /= float64(count)
		if score > bestScore {
			bestScore = score
			bestShift = lag
		}
	}
	return bestShift
}

// GenerateIdealSquare synthesizes an n-sample 50%-duty square wave at
// CalibrationToneHz sampled at sampleRateHz, starting at the given
// phase in radians (step 1).
func GenerateIdealSquare(n int, sampleRateHz, phase float64) []float64 {
	out := make([]float64, n)
	period := sampleRateHz / CalibrationToneHz
	for i := range out {
		pos := math.Mod(float64(i)+phase*period/(2*math.Pi), period)
		if pos < period/2 {
			out[i] = 1
		} else {
			out[i] = -1
		}
	}
	return out
}

func rms(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	if len(x) == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(len(x)))
}

// Design runs the full calibration procedure of spec §4.8 steps 2-7 on
// an already-averaged, already-aligned `measured` capture, producing a
// Calibration with `taps` coefficients (taps in {64,128,256}).
func Design(measured []float64, sampleRateHz float64, taps int, mode Mode) Calibration {
	n := DesignFFTDepth
	meas := resizeReal(measured, n)
	ideal := GenerateIdealSquare(n, sampleRateHz, 0)

	// Step 2: normalize measured RMS to ideal RMS.
	idealRMS := rms(ideal)
	measRMS := rms(meas)
	if measRMS > 0 {
		scale := idealRMS / measRMS
		for i := range meas {
			meas[i] *= scale
		}
	}

	// Step 3: FFT both.
	measFFT := fftutil.DFT(toComplex(meas))
	idealFFT := fftutil.DFT(toComplex(ideal))

	// Step 4: H(f) only at bins where |ideal FFT| >= 1% of peak.
	idealPeak := 0.0
	for _, v := range idealFFT {
		if m := cmplx.Abs(v); m > idealPeak {
			idealPeak = m
		}
	}
	threshold := 0.01 * idealPeak

	H := make([]complex128, n)
	significant := make([]bool, n)
	for k := range H {
		if cmplx.Abs(idealFFT[k]) >= threshold && idealFFT[k] != 0 {
			H[k] = measFFT[k] / idealFFT[k]
			significant[k] = true
		} else {
			H[k] = complex(1, 0)
		}
	}
	H[0] = complex(1, 0)
	significant[0] = true

	// Step 5: desired correction C(f) = 1/(H(f)+eps), clip to +-20dB,
	// then sqrt (zero-phase filtering applies the kernel twice).
	maxH := 0.0
	for _, v := range H {
		if m := cmplx.Abs(v); m > maxH {
			maxH = m
		}
	}
	eps := complex(0.001*maxH, 0)
	C := make([]complex128, n)
	for k := range C {
		c := 1 / (H[k] + eps)
		c = clipMagnitudeDB(c, 20)
		C[k] = cmplx.Sqrt(c)
	}

	// Step 6: linearly interpolate C between significant bins only.
	C = interpolateSignificant(C, significant)

	// Step 7: inverse FFT at InverseFFTDepth, fftshift, Blackman window,
	// extract center `taps`, normalize for unit DC gain.
	spectrum := resizeSpectrum(C, InverseFFTDepth)
	timeDomain := fftutil.IDFT(spectrum)
	shifted := fftutil.FFTShift(timeDomain)

	window := fftutil.Blackman(InverseFFTDepth)
	windowed := make([]float64, InverseFFTDepth)
	for i := range windowed {
		windowed[i] = real(shifted[i]) * window[i]
	}

	center := InverseFFTDepth / 2
	half := taps / 2
	coeffs := make([]float32, taps)
	for i := 0; i < taps; i++ {
		coeffs[i] = float32(windowed[center-half+i])
	}
	normalizeUnitDCGain(coeffs)

	return Calibration{
		Coefficients:            coeffs,
		CalibrationSampleRateHz: sampleRateHz,
		Source:                  mode,
	}
}

func clipMagnitudeDB(c complex128, limitDB float64) complex128 {
	mag := cmplx.Abs(c)
	if mag == 0 {
		return c
	}
	db := 20 * math.Log10(mag)
	if db > limitDB {
		return c * complex(math.Pow(10, limitDB/20)/mag, 0)
	}
	if db < -limitDB {
		return c * complex(math.Pow(10, -limitDB/20)/mag, 0)
	}
	return c
}

func interpolateSignificant(C []complex128, significant []bool) []complex128 {
	var sigIdx []int
	for i, ok := range significant {
		if ok {
			sigIdx = append(sigIdx, i)
		}
	}
	if len(sigIdx) < 2 {
		return C
	}
	out := append([]complex128(nil), C...)
	for s := 0; s < len(sigIdx)-1; s++ {
		a, b := sigIdx[s], sigIdx[s+1]
		if b-a <= 1 {
			continue
		}
		for i := a + 1; i < b; i++ {
			frac := float64(i-a) / float64(b-a)
			out[i] = C[a] + complex(frac, 0)*(C[b]-C[a])
		}
	}
	return out
}

func normalizeUnitDCGain(coeffs []float32) {
	var sum float32
	for _, c := range coeffs {
		sum += c
	}
	if sum == 0 {
		return
	}
	for i := range coeffs {
		coeffs[i] /= sum
	}
}

func toComplex(x []float64) []complex128 {
	out := make([]complex128, len(x))
	for i, v := range x {
		out[i] = complex(v, 0)
	}
	return out
}

// resizeReal truncates or zero-pads x to exactly n samples.
func resizeReal(x []float64, n int) []float64 {
	out := make([]float64, n)
	copy(out, x)
	return out
}

// resizeSpectrum maps a length-m one-sided-ish design spectrum onto an
// n-point spectrum by nearest-bin mapping proportional to frequency,
// preserving conjugate symmetry so the inverse transform is real.
func resizeSpectrum(C []complex128, n int) []complex128 {
	m := len(C)
	out := make([]complex128, n)
	for k := 0; k < n; k++ {
		// Map k (0..n-1, wrapped around Nyquist) to the corresponding
		// design-spectrum bin by frequency fraction.
		freqFrac := k
		if k > n/2 {
			freqFrac = k - n
		}
		srcBin := int(math.Round(float64(freqFrac) * float64(m) / float64(n)))
		srcBin = ((srcBin % m) + m) % m
		out[k] = C[srcBin]
	}
	return out
}
