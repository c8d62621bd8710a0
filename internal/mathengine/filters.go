package mathengine

import (
	"fmt"
	"math"
)

// SOS is one second-order section of a digital IIR filter in direct
// form II transposed, normalized so A[0] == 1.
type SOS struct {
	B [3]float64
	A [3]float64
}

func applyFilter(op Operator, x []float64, p Params) ([]float64, error) {
	if p.SampleRateHz <= 0 {
		return nil, fmt.Errorf("mathengine: %s requires a sample rate", op)
	}
	order := p.Order
	if order < 1 {
		order = 2
	}
	ripple := p.RippleDB
	if ripple <= 0 {
		ripple = 0.5
	}

	var sections, stopHigh []SOS
	switch op {
	case OpButterLP:
		sections = butterworthSOS(order, p.CornerHz, p.SampleRateHz, false)
	case OpButterHP:
		sections = butterworthSOS(order, p.CornerHz, p.SampleRateHz, true)
	case OpButterBP:
		lp := butterworthSOS(order, p.CornerHighHz, p.SampleRateHz, false)
		hp := butterworthSOS(order, p.CornerHz, p.SampleRateHz, true)
		sections = append(lp, hp...)
	case OpButterBS:
		sections = butterworthSOS(order, p.CornerHz, p.SampleRateHz, false)
		stopHigh = butterworthSOS(order, p.CornerHighHz, p.SampleRateHz, true)
	case OpCheby1LP:
		sections = cheby1SOS(order, p.CornerHz, p.SampleRateHz, ripple, false)
	case OpCheby1HP:
		sections = cheby1SOS(order, p.CornerHz, p.SampleRateHz, ripple, true)
	case OpCheby1BP:
		lp := cheby1SOS(order, p.CornerHighHz, p.SampleRateHz, ripple, false)
		hp := cheby1SOS(order, p.CornerHz, p.SampleRateHz, ripple, true)
		sections = append(lp, hp...)
	case OpCheby1BS:
		sections = cheby1SOS(order, p.CornerHz, p.SampleRateHz, ripple, false)
		stopHigh = cheby1SOS(order, p.CornerHighHz, p.SampleRateHz, ripple, true)
	default:
		return nil, fmt.Errorf("mathengine: unknown filter operator %q", op)
	}

	if stopHigh != nil {
		// Bandstop: lowpass below the lower corner plus highpass above
		// the upper corner, each filtered independently.
		low, high := filtfilt(x, sections), filtfilt(x, stopHigh)
		for i := range low {
			low[i] += high[i]
		}
		return low, nil
	}
	return filtfilt(x, sections), nil
}

// butterworthSOS designs an order-N Butterworth lowpass (or, with
// highpass=true, highpass) filter as cascaded second-order sections
// via the bilinear transform of the analog prototype's pole pairs.
func butterworthSOS(order int, cornerHz, sampleRateHz float64, highpass bool) []SOS {
	warped := prewarp(cornerHz, sampleRateHz)
	poles := butterworthAnalogPoles(order)
	if highpass {
		for i, p := range poles {
			poles[i] = complex(1, 0) / p
		}
	}
	return polesToSOS(poles, warped, sampleRateHz, highpass)
}

// cheby1SOS designs an order-N Chebyshev type I filter with the given
// passband ripple in dB.
func cheby1SOS(order int, cornerHz, sampleRateHz, rippleDB float64, highpass bool) []SOS {
	warped := prewarp(cornerHz, sampleRateHz)
	poles := cheby1AnalogPoles(order, rippleDB)
	if highpass {
		for i, p := range poles {
			poles[i] = complex(1, 0) / p
		}
	}
	return polesToSOS(poles, warped, sampleRateHz, highpass)
}

// prewarp maps the desired digital corner frequency to the analog
// frequency the bilinear transform needs, per Ω = 2*fs*tan(π*f/fs).
func prewarp(cornerHz, sampleRateHz float64) float64 {
	return 2 * sampleRateHz * math.Tan(math.Pi*cornerHz/sampleRateHz)
}

// butterworthAnalogPoles returns the unit-cutoff Butterworth
// prototype's poles (all in the left half-plane).
func butterworthAnalogPoles(order int) []complex128 {
	poles := make([]complex128, order)
	for k := 0; k < order; k++ {
		theta := math.Pi * (2*float64(k) + float64(order) + 1) / (2 * float64(order))
		poles[k] = complex(math.Cos(theta), math.Sin(theta))
	}
	return poles
}

// cheby1AnalogPoles returns the unit-cutoff Chebyshev type I
// prototype's poles for the given passband ripple.
func cheby1AnalogPoles(order int, rippleDB float64) []complex128 {
	epsilon := math.Sqrt(math.Pow(10, rippleDB/10) - 1)
	mu := math.Asinh(1/epsilon) / float64(order)
	poles := make([]complex128, order)
	for k := 0; k < order; k++ {
		theta := math.Pi * (2*float64(k) + 1) / (2 * float64(order))
		re := -math.Sinh(mu) * math.Sin(theta)
		im := math.Cosh(mu) * math.Cos(theta)
		poles[k] = complex(re, im)
	}
	return poles
}

// polesToSOS scales the prototype poles to the prewarped corner
// frequency, bilinear-transforms each conjugate pair into a digital
// second-order section, and pairs up a trailing real pole if order is
// odd.
func polesToSOS(poles []complex128, warpedCorner, sampleRateHz float64, highpass bool) []SOS {
	scaled := make([]complex128, len(poles))
	for i, p := range poles {
		scaled[i] = p * complex(warpedCorner, 0)
	}

	var sections []SOS
	used := make([]bool, len(scaled))
	fs2 := 2 * sampleRateHz

	pairSOS := func(p1, p2 complex128) SOS {
		// Analog section: H(s) = k / ((s-p1)(s-p2)) for lowpass
		// prototype (numerator order 0), or s^2-scaled for highpass
		// (numerator matches denominator order so DC is blocked).
		a2 := real(p1 * p2)
		a1 := -(real(p1) + real(p2))
		// Denominator: s^2 + a1*s + a2 (since poles are roots of
		// s^2 - (p1+p2)s + p1*p2, and p1+p2 is real for conjugates).
		return bilinearSOS(a1, a2, fs2, highpass)
	}

	for i := 0; i < len(scaled); i++ {
		if used[i] {
			continue
		}
		if imag(scaled[i]) == 0 {
			// Real pole: treat as its own first-order section folded
			// into an SOS with a trivial second pole at the same
			// location's conjugate (itself).
			sections = append(sections, pairSOS(scaled[i], scaled[i]))
			used[i] = true
			continue
		}
		// Find its conjugate partner.
		for j := i + 1; j < len(scaled); j++ {
			if used[j] {
				continue
			}
			if math.Abs(imag(scaled[j])+imag(scaled[i])) < 1e-9*math.Abs(imag(scaled[i])) && math.Abs(real(scaled[j])-real(scaled[i])) < 1e-6 {
				sections = append(sections, pairSOS(scaled[i], scaled[j]))
				used[i] = true
				used[j] = true
				break
			}
		}
		if !used[i] {
			sections = append(sections, pairSOS(scaled[i], scaled[i]))
			used[i] = true
		}
	}
	return sections
}

// bilinearSOS converts one analog second-order section
// s^2 + a1*s + a2 in the denominator (numerator a2 for lowpass, giving
// unity gain at DC; s^2 for highpass) into a digital SOS via
// s = fs2*(z-1)/(z+1).
func bilinearSOS(a1, a2, fs2 float64, highpass bool) SOS {
	// Denominator coefficients after substitution and multiplying
	// through by (z+1)^2.
	d0 := fs2*fs2 + a1*fs2 + a2
	d1 := 2*a2 - 2*fs2*fs2
	d2 := fs2*fs2 - a1*fs2 + a2

	var n0, n1, n2 float64
	if highpass {
		// Numerator s^2 -> (fs2*(z-1))^2 = fs2^2*(z^2-2z+1).
		n0 = fs2 * fs2
		n1 = -2 * fs2 * fs2
		n2 = fs2 * fs2
	} else {
		// Numerator a2, a constant in s, becomes a2*(z+1)^2 after the
		// same multiply-through.
		n0 = a2
		n1 = 2 * a2
		n2 = a2
	}

	return SOS{
		B: [3]float64{n0 / d0, n1 / d0, n2 / d0},
		A: [3]float64{1, d1 / d0, d2 / d0},
	}
}

// filtfilt applies every section forward, then applies them again over
// the reversed result and reverses back, canceling group delay for
// zero-phase output (spec §4.10).
func filtfilt(x []float64, sections []SOS) []float64 {
	y := append([]float64(nil), x...)
	for _, s := range sections {
		y = applySOS(y, s)
	}
	y = reverse(y)
	for _, s := range sections {
		y = applySOS(y, s)
	}
	return reverse(y)
}

func applySOS(x []float64, s SOS) []float64 {
	out := make([]float64, len(x))
	var z1, z2 float64 // direct form II transposed state
	for i, v := range x {
		w := v - s.A[1]*z1 - s.A[2]*z2
		y := s.B[0]*w + s.B[1]*z1 + s.B[2]*z2
		z2 = z1
		z1 = w
		out[i] = y
	}
	return out
}

func reverse(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[len(x)-1-i] = v
	}
	return out
}
