package fir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateIdealSquareIsBipolar(t *testing.T) {
	sq := GenerateIdealSquare(640, 3.2e9, 0)
	for _, v := range sq {
		assert.True(t, v == 1 || v == -1)
	}
}

func TestAlignAndAverageShiftsIntoPhase(t *testing.T) {
	ref := make([]float64, 64)
	for i := range ref {
		ref[i] = math.Sin(2 * math.Pi * float64(i) / 16)
	}
	shifted := make([]float64, 64)
	copy(shifted, ref[4:])
	copy(shifted[60:], ref[:4])

	avg := AlignAndAverage([][]float64{ref, shifted})
	require.Len(t, avg, 64)
	// Averaging two in-phase copies of the same signal should closely
	// reproduce it.
	var diff float64
	for i := range ref {
		d := avg[i] - ref[i]
		diff += d * d
	}
	assert.Less(t, diff/float64(len(ref)), 0.05)
}

func TestDesignProducesNormalizedUnitDCGain(t *testing.T) {
	sampleRate := 3.2e9
	measured := GenerateIdealSquare(DesignFFTDepth, sampleRate, 0)
	cal := Design(measured, sampleRate, 64, ModeNormal)

	require.Len(t, cal.Coefficients, 64)
	var sum float32
	for _, c := range cal.Coefficients {
		sum += c
	}
	assert.InDelta(t, 1.0, sum, 1e-3)
	assert.Equal(t, ModeNormal, cal.Source)
	assert.Equal(t, sampleRate, cal.CalibrationSampleRateHz)
}

func TestDesignIsDeterministic(t *testing.T) {
	sampleRate := 6.4e9
	measured := GenerateIdealSquare(DesignFFTDepth, sampleRate, 0.3)

	a := Design(measured, sampleRate, 128, ModeInterleaved)
	b := Design(measured, sampleRate, 128, ModeInterleaved)
	assert.Equal(t, a.Coefficients, b.Coefficients)
}

func TestClipMagnitudeDBRespectsLimit(t *testing.T) {
	huge := complex(1000, 0)
	clipped := clipMagnitudeDB(huge, 20)
	db := 20 * math.Log10(realAbs(clipped))
	assert.InDelta(t, 20, db, 1e-6)
}

func realAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}
