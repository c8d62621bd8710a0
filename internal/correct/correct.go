// Package correct implements the per-waveform correction pipeline (spec
// §4.7): DC block, gain/offset calibration, trigger-phase realignment,
// the per-cycle trigger stabilizer, time-skew correction, and the LVDS
// delay software residual. Apply is a deterministic function of
// (waveform, config); applying it again to its own output is not the
// identity, because the gain/offset and shift stages compound.
package correct

import (
	"math"

	"github.com/haasoctl/haasoctl/internal/board"
	"github.com/haasoctl/haasoctl/internal/decode"
	"github.com/haasoctl/haasoctl/internal/state"
)

// Config holds everything one channel's correction pass needs, gathered
// from the StateStore snapshot, the board's calibration tables, and the
// LVDS calibrator's output.
type Config struct {
	Coupling                 state.Coupling
	Calibration              board.GainCalibration
	TriggerType              state.TriggerType
	PerCycleStabilizeEnabled bool // spec §9 redesign note; default true
	SkewPicoseconds          float64
	LvdsResidualSamples      float64 // software residual from spec §4.5 step 6
	// DCBlockAlpha overrides the exponential-smoothing coefficient;
	// zero selects the spec default of 1/depth.
	DCBlockAlpha float64
}

// DefaultConfig returns a Config with the spec's defaults.
func DefaultConfig() Config {
	return Config{
		Calibration:              board.GainCalibration{Slope: 1, Intercept: 0},
		PerCycleStabilizeEnabled: true,
	}
}

// Apply runs the full six-stage pipeline on wf and returns the
// corrected Waveform. wf is never mutated in place.
func Apply(wf decode.Waveform, cfg Config) decode.Waveform {
	out := decode.Waveform{
		Board:   wf.Board,
		Channel: wf.Channel,
		Dt:      wf.Dt,
		Samples: append([]float32(nil), wf.Samples...),
		Meta:    wf.Meta,
	}

	dcBlock(out.Samples, cfg)
	applyGainOffset(out.Samples, cfg.Calibration)

	fracOrigin := triggerPhaseOffset(out.Meta.TriggerPhase)
	originShift := fracOrigin
	if cfg.PerCycleStabilizeEnabled && cfg.TriggerType != state.TriggerAuto {
		originShift += perCycleEdgeFit(out.Samples, out.Dt)
	}
	originShift += skewSamples(cfg.SkewPicoseconds, out.Dt)
	originShift += cfg.LvdsResidualSamples

	out.Samples = fractionalShift(out.Samples, originShift)
	out.T0 = -originShift * out.Dt
	return out
}

// dcBlock subtracts a running mean from an AC-coupled channel using
// exponential smoothing with alpha = 1/depth by default (spec §4.7
// step 1). DC-coupled channels are passed through unchanged.
func dcBlock(samples []float32, cfg Config) {
	if cfg.Coupling != state.CouplingAC || len(samples) == 0 {
		return
	}
	alpha := cfg.DCBlockAlpha
	if alpha <= 0 {
		alpha = 1.0 / float64(len(samples))
	}
	mean := float64(samples[0])
	for i := 1; i < len(samples); i++ {
		mean += alpha * (float64(samples[i]) - mean)
	}
	for i := range samples {
		samples[i] -= float32(mean)
	}
}

// applyGainOffset converts ADC codes to volts: v = code*slope + intercept
// (spec §4.7 step 2).
func applyGainOffset(samples []float32, cal board.GainCalibration) {
	for i, s := range samples {
		samples[i] = float32(float64(s)*cal.Slope + cal.Intercept)
	}
}

// triggerPhaseOffset maps the firmware's 0..511 trigger_phase into a
// fractional sample offset in [-4, +4) (spec §4.7 step 3).
func triggerPhaseOffset(triggerPhase int) float64 {
	return (float64(triggerPhase)/512.0)*8.0 - 4.0
}

// skewSamples converts a calibrated sub-sample skew in picoseconds into
// a fractional sample count at the waveform's sample period (spec §4.7
// step 5).
func skewSamples(skewPs float64, dt float64) float64 {
	if dt <= 0 {
		return 0
	}
	return (skewPs * 1e-12) / dt
}

// perCycleEdgeFit fits a local linear edge through the first rising
// zero-crossing near the nominal trigger point (the waveform's mid
// index), enforcing that t=0 lands on the fit (spec §4.7 step 4). It
// returns the additional fractional-sample correction needed.
func perCycleEdgeFit(samples []float32, dt float64) float64 {
	if len(samples) < 2 {
		return 0
	}
	mid := len(samples) / 2
	searchStart := mid - 8
	if searchStart < 1 {
		searchStart = 1
	}
	searchEnd := mid + 8
	if searchEnd > len(samples)-1 {
		searchEnd = len(samples) - 1
	}

	for i := searchStart; i < searchEnd; i++ {
		prev, cur := float64(samples[i-1]), float64(samples[i])
		if prev < 0 && cur >= 0 {
			// Linear interpolation between the two samples bracketing
			// the crossing gives the sub-sample zero position.
			frac := -prev / (cur - prev)
			return float64(i-mid) + frac
		}
	}
	return 0
}

// fractionalShift resamples samples so that the new index origin sits
// `shift` (possibly fractional) samples after the old one, via linear
// interpolation (spec §4.7 step 3: "linear interpolation on a resampled
// copy; integer part adjusts the index origin").
func fractionalShift(samples []float32, shift float64) []float32 {
	if shift == 0 || len(samples) == 0 {
		return samples
	}
	out := make([]float32, len(samples))
	for i := range out {
		src := float64(i) + shift
		lo := math.Floor(src)
		frac := src - lo
		loIdx := clampIndex(int(lo), len(samples))
		hiIdx := clampIndex(int(lo)+1, len(samples))
		out[i] = float32((1-frac)*float64(samples[loIdx]) + frac*float64(samples[hiIdx]))
	}
	return out
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
