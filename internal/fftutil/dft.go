// Package fftutil implements the small DFT/windowing primitives shared
// by internal/fir and internal/fftengine. No third-party FFT library
// appears anywhere in the retrieved example corpus (see DESIGN.md); a
// direct-summation DFT is used instead of hand-rolling a full mixed-
// radix FFT, since every caller here is an offline calibration or
// per-shot display computation, not a real-time path, and several of
// the spec's required transform sizes (640-point) are not powers of two
// anyway.
package fftutil

import "math"

// DFT computes the discrete Fourier transform of x (any length).
func DFT(x []complex128) []complex128 {
	n := len(x)
	out := make([]complex128, n)
	for k := 0; k < n; k++ {
		var sum complex128
		for t := 0; t < n; t++ {
			angle := -2 * math.Pi * float64(k) * float64(t) / float64(n)
			sum += x[t] * complex(math.Cos(angle), math.Sin(angle))
		}
		out[k] = sum
	}
	return out
}

// IDFT computes the inverse discrete Fourier transform of X.
func IDFT(X []complex128) []complex128 {
	n := len(X)
	out := make([]complex128, n)
	for t := 0; t < n; t++ {
		var sum complex128
		for k := 0; k < n; k++ {
			angle := 2 * math.Pi * float64(k) * float64(t) / float64(n)
			sum += X[k] * complex(math.Cos(angle), math.Sin(angle))
		}
		out[t] = sum / complex(float64(n), 0)
	}
	return out
}

// FFTShift swaps the two halves of x, moving the zero-frequency/zero-
// lag term to the center — used by FirBank's filter-kernel design step.
func FFTShift(x []complex128) []complex128 {
	n := len(x)
	out := make([]complex128, n)
	mid := n / 2
	copy(out, x[mid:])
	copy(out[n-mid:], x[:mid])
	return out
}

// Blackman returns an n-point Blackman window.
func Blackman(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		x := float64(i) / float64(n-1)
		w[i] = 0.42 - 0.5*math.Cos(2*math.Pi*x) + 0.08*math.Cos(4*math.Pi*x)
	}
	return w
}

// Hann returns an n-point Hann window.
func Hann(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// Hamming returns an n-point Hamming window.
func Hamming(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// FlatTop returns an n-point flat-top window (5-term, per the common
// scope/analyzer coefficient set).
func FlatTop(n int) []float64 {
	const (
		a0, a1, a2, a3, a4 = 0.21557895, 0.41663158, 0.277263158, 0.083578947, 0.006947368
	)
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		x := 2 * math.Pi * float64(i) / float64(n-1)
		w[i] = a0 - a1*math.Cos(x) + a2*math.Cos(2*x) - a3*math.Cos(3*x) + a4*math.Cos(4*x)
	}
	return w
}

// Kaiser returns an n-point Kaiser window with shape parameter beta.
func Kaiser(n int, beta float64) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	denom := besselI0(beta)
	m := float64(n - 1)
	for i := range w {
		r := 2*float64(i)/m - 1
		w[i] = besselI0(beta*math.Sqrt(1-r*r)) / denom
	}
	return w
}

// besselI0 is the zeroth-order modified Bessel function of the first
// kind, via its power series (sufficient precision for window design).
func besselI0(x float64) float64 {
	sum := 1.0
	term := 1.0
	halfX := x / 2
	for k := 1; k < 40; k++ {
		term *= (halfX * halfX) / (float64(k) * float64(k))
		sum += term
		if term < 1e-15*sum {
			break
		}
	}
	return sum
}
