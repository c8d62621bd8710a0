package fftutil

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDFTIDFTRoundTrip(t *testing.T) {
	x := []complex128{1, 2, 3, 4, 5, 6, 7}
	X := DFT(x)
	back := IDFT(X)
	require.Len(t, back, len(x))
	for i := range x {
		assert.InDelta(t, real(x[i]), real(back[i]), 1e-9)
		assert.InDelta(t, imag(x[i]), imag(back[i]), 1e-9)
	}
}

func TestDFTDCBinIsSum(t *testing.T) {
	x := []complex128{1, 1, 1, 1}
	X := DFT(x)
	assert.InDelta(t, 4, real(X[0]), 1e-9)
	assert.InDelta(t, 0, imag(X[0]), 1e-9)
}

func TestDFTSineProducesExpectedBin(t *testing.T) {
	n := 64
	x := make([]complex128, n)
	for i := range x {
		x[i] = complex(math.Sin(2*math.Pi*3*float64(i)/float64(n)), 0)
	}
	X := DFT(x)
	// Energy should concentrate at bins 3 and n-3.
	peak := 0
	peakMag := 0.0
	for k, v := range X {
		if m := cmplx.Abs(v); m > peakMag {
			peakMag = m
			peak = k
		}
	}
	assert.True(t, peak == 3 || peak == n-3, "expected peak near bin 3, got %d", peak)
}

func TestFFTShiftMovesZeroToCenter(t *testing.T) {
	x := []complex128{0, 1, 2, 3, 4, 5}
	shifted := FFTShift(x)
	assert.Equal(t, complex(0, 0), shifted[3])
	assert.Equal(t, complex(3, 0), shifted[0])
}

func TestWindowEndpointsAndSymmetry(t *testing.T) {
	for _, w := range [][]float64{Blackman(64), Hann(64), Hamming(64), FlatTop(64)} {
		require.Len(t, w, 64)
		for i := 0; i < len(w)/2; i++ {
			assert.InDelta(t, w[i], w[len(w)-1-i], 1e-9)
		}
	}
}

func TestKaiserAtBetaZeroIsFlat(t *testing.T) {
	w := Kaiser(16, 0)
	for _, v := range w {
		assert.InDelta(t, 1.0, v, 1e-9)
	}
}

func TestBesselI0AtZeroIsOne(t *testing.T) {
	assert.InDelta(t, 1.0, besselI0(0), 1e-12)
}
