// Package measure computes per-channel derived scalar measurements
// from a corrected waveform (spec §4.12).
package measure

import (
	"errors"
	"math"
)

// ErrInsufficientData is returned by measurements that need at least
// two detected transitions (rise/fall time, frequency) when fewer are
// found.
var ErrInsufficientData = errors.New("measure: insufficient data")

// Basic holds the amplitude/timing scalars that never fail given any
// non-empty waveform.
type Basic struct {
	Vpp   float64
	Vrms  float64
	Vmean float64
}

// Timing holds the scalars that need at least two level crossings.
type Timing struct {
	FrequencyHz float64
	DutyCycle   float64
}

// EdgeStat is a mean±stddev summary over several measured transitions.
type EdgeStat struct {
	MeanSec   float64
	StdDevSec float64
	N         int
}

// ComputeBasic returns Vpp/Vrms/Vmean over samples.
func ComputeBasic(samples []float32) Basic {
	if len(samples) == 0 {
		return Basic{}
	}
	minV, maxV := samples[0], samples[0]
	var sum, sumSq float64
	for _, s := range samples {
		v := float64(s)
		if s < minV {
			minV = s
		}
		if s > maxV {
			maxV = s
		}
		sum += v
		sumSq += v * v
	}
	n := float64(len(samples))
	return Basic{
		Vpp:   float64(maxV - minV),
		Vrms:  math.Sqrt(sumSq / n),
		Vmean: sum / n,
	}
}

// risingMidCrossings returns the fractional-sample indices where
// samples crosses the waveform's mid-level (midpoint of min/max) on a
// rising edge.
func risingMidCrossings(samples []float32) []float64 {
	if len(samples) < 2 {
		return nil
	}
	minV, maxV := samples[0], samples[0]
	for _, s := range samples {
		if s < minV {
			minV = s
		}
		if s > maxV {
			maxV = s
		}
	}
	mid := (float64(minV) + float64(maxV)) / 2
	var crossings []float64
	for i := 1; i < len(samples); i++ {
		prev, cur := float64(samples[i-1]), float64(samples[i])
		if prev < mid && cur >= mid {
			frac := (mid - prev) / (cur - prev)
			crossings = append(crossings, float64(i-1)+frac)
		}
	}
	return crossings
}

// ComputeFrequency derives frequency as the inverse of the mean
// interval between successive rising mid-crossings.
func ComputeFrequency(samples []float32, dt float64) (float64, error) {
	crossings := risingMidCrossings(samples)
	if len(crossings) < 2 {
		return 0, ErrInsufficientData
	}
	var sum float64
	for i := 1; i < len(crossings); i++ {
		sum += crossings[i] - crossings[i-1]
	}
	meanIntervalSamples := sum / float64(len(crossings)-1)
	if meanIntervalSamples <= 0 {
		return 0, ErrInsufficientData
	}
	return 1 / (meanIntervalSamples * dt), nil
}

// ComputeDutyCycle is high_time / period, measured between the first
// rising crossing and the next falling crossing, divided by the
// period derived from successive rising crossings.
func ComputeDutyCycle(samples []float32) (float64, error) {
	rising := risingMidCrossings(samples)
	if len(rising) < 2 {
		return 0, ErrInsufficientData
	}
	minV, maxV := samples[0], samples[0]
	for _, s := range samples {
		if s < minV {
			minV = s
		}
		if s > maxV {
			maxV = s
		}
	}
	mid := (float64(minV) + float64(maxV)) / 2

	start := int(math.Ceil(rising[0]))
	var fallingIdx = -1.0
	for i := start + 1; i < len(samples); i++ {
		prev, cur := float64(samples[i-1]), float64(samples[i])
		if prev >= mid && cur < mid {
			frac := (prev - mid) / (prev - cur)
			fallingIdx = float64(i-1) + frac
			break
		}
	}
	if fallingIdx < 0 {
		return 0, ErrInsufficientData
	}
	period := rising[1] - rising[0]
	if period <= 0 {
		return 0, ErrInsufficientData
	}
	highTime := fallingIdx - rising[0]
	return highTime / period, nil
}

// ComputeRiseFall measures, around every detected transition, the
// time between the 10% and 90% amplitude crossings and reports the
// mean and standard deviation across all transitions found. Rising
// and falling edges are reported separately.
func ComputeRiseFall(samples []float32, dt float64) (rise, fall EdgeStat, err error) {
	if len(samples) < 2 {
		return EdgeStat{}, EdgeStat{}, ErrInsufficientData
	}
	minV, maxV := samples[0], samples[0]
	for _, s := range samples {
		if s < minV {
			minV = s
		}
		if s > maxV {
			maxV = s
		}
	}
	span := float64(maxV - minV)
	if span == 0 {
		return EdgeStat{}, EdgeStat{}, ErrInsufficientData
	}
	lo := float64(minV) + 0.1*span
	hi := float64(minV) + 0.9*span

	var riseTimes, fallTimes []float64
	for i := 1; i < len(samples); i++ {
		prev, cur := float64(samples[i-1]), float64(samples[i])
		if prev < lo && cur >= lo {
			// Rising edge: find where it later crosses hi.
			for j := i; j < len(samples); j++ {
				p2, c2 := float64(samples[j-1]), float64(samples[j])
				if p2 < hi && c2 >= hi {
					loFrac := float64(i-1) + (lo-prev)/(cur-prev)
					hiFrac := float64(j-1) + (hi-p2)/(c2-p2)
					if hiFrac > loFrac {
						riseTimes = append(riseTimes, (hiFrac-loFrac)*dt)
					}
					break
				}
			}
		}
		if prev > hi && cur <= hi {
			for j := i; j < len(samples); j++ {
				p2, c2 := float64(samples[j-1]), float64(samples[j])
				if p2 > lo && c2 <= lo {
					hiFrac := float64(i-1) + (prev-hi)/(prev-cur)
					loFrac := float64(j-1) + (p2-lo)/(p2-c2)
					if loFrac > hiFrac {
						fallTimes = append(fallTimes, (loFrac-hiFrac)*dt)
					}
					break
				}
			}
		}
	}

	if len(riseTimes) < 2 && len(fallTimes) < 2 {
		return EdgeStat{}, EdgeStat{}, ErrInsufficientData
	}
	return meanStdDev(riseTimes), meanStdDev(fallTimes), nil
}

func meanStdDev(x []float64) EdgeStat {
	if len(x) < 2 {
		return EdgeStat{N: len(x)}
	}
	var sum float64
	for _, v := range x {
		sum += v
	}
	mean := sum / float64(len(x))
	var sq float64
	for _, v := range x {
		d := v - mean
		sq += d * d
	}
	return EdgeStat{
		MeanSec:   mean,
		StdDevSec: math.Sqrt(sq / float64(len(x))),
		N:         len(x),
	}
}
