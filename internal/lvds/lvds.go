// Package lvds implements inter-board LVDS trigger propagation-delay
// calibration: measuring, per follower board, how many LVDS cycles (8
// samples each) its trigger edge lags the source board's, so the Corrector can
// realign their waveforms (spec §4.5).
package lvds

import (
	"errors"
	"fmt"
	"math"

	"github.com/haasoctl/haasoctl/internal/diag"
	"github.com/haasoctl/haasoctl/internal/protocol"
)

// MaxRetriesPerBoard bounds how many acquisition cycles the calibrator
// waits for a given follower's phase measurement to lock and repeat
// before giving up on that board.
const MaxRetriesPerBoard = 50

// BackwardTuningDivisor is the empirical correction applied to
// backward-echo measurements: delay += delay/11.5 (spec §4.5 step 3).
const BackwardTuningDivisor = 11.5

// BoardPairOffsetCycles is the fixed systematic offset subtracted from
// every follower after each accepted board: 16ns / 2.5ns-per-cycle
// (spec §4.5 step 4).
const BoardPairOffsetCycles = 16.0 / 2.5

// PllSource issues the register reads and phase nudges the calibrator
// needs from the source board's driver.
type PllSource interface {
	ReadPhaseCounter(backward bool) (protocol.RegisterWord, error)
	SetPhase(pll, output, dir int) error
	PllResetPending() bool
}

// ErrTimedOut is returned when a follower's phase measurement never
// locks within MaxRetriesPerBoard cycles.
var ErrTimedOut = errors.New("lvds: phase measurement timed out")

// ErrPllUnstable is returned when the source board's own PLL-phase
// calibration isn't yet stable (spec §4.5: "only after the main
// PLL-phase calibration for s is known stable").
var ErrPllUnstable = errors.New("lvds: source board PLL not yet stable")

// Calibrator measures and persists per-source LVDS delay tables.
type Calibrator struct {
	bus *diag.Bus
	// delays[sourceIndex][followerIndex] = calibrated cycle delay.
	delays map[int]map[int]float64
}

// New creates a Calibrator.
func New(bus *diag.Bus) *Calibrator {
	return &Calibrator{bus: bus, delays: make(map[int]map[int]float64)}
}

// Get returns the calibrated delay (cycles) for (sourceIndex,
// followerIndex), and whether it has been measured yet.
func (c *Calibrator) Get(sourceIndex, followerIndex int) (float64, bool) {
	m, ok := c.delays[sourceIndex]
	if !ok {
		return 0, false
	}
	v, ok := m[followerIndex]
	return v, ok
}

// MeasureOnce measures the LVDS propagation delay between sourceIdx
// and followerIdx using one phase-counter register read per call.
// sourceStable reports whether sourceIdx's own PLL-phase calibration
// has converged (stability flag -10, spec §4.5); MeasureOnce returns
// ErrPllUnstable until it has. The caller drives the retry loop across
// acquisition cycles: a call returns (0, false, nil) when the counter
// has not locked, and (measured, false, nil) when it has locked but
// havePrev is false or measured differs from prevMeasurement.
func (c *Calibrator) MeasureOnce(source PllSource, sourceIdx, followerIdx int, sourceStable bool, prevMeasurement float64, havePrev bool) (delay float64, accepted bool, err error) {
	if !sourceStable {
		return 0, false, ErrPllUnstable
	}
	backward := followerIdx < sourceIdx

	word, err := source.ReadPhaseCounter(backward)
	if err != nil {
		return 0, false, fmt.Errorf("lvds: read phase counter for pair (%d,%d): %w", sourceIdx, followerIdx, err)
	}
	if !word.Locked() {
		return 0, false, nil
	}

	measured := float64(int(word.High)+int(word.Low)) / 4
	if !havePrev || measured != prevMeasurement {
		// Not yet stable across two consecutive reads.
		return measured, false, nil
	}

	if backward {
		measured += measured / BackwardTuningDivisor
		measured = math.Round(measured*10) / 10
	}

	c.emit(diag.LevelInfo, "lvds pair accepted", map[string]any{
		"source": sourceIdx, "follower": followerIdx, "delay_cycles": measured, "backward": backward,
	})
	return measured, true, nil
}

// AcceptPair records an accepted pair's delay for sourceIdx and
// subtracts the systematic board-pair offset from the entry of every
// index in allFollowers under sourceIdx, creating entries that did not
// exist yet (spec §4.5 step 4).
func (c *Calibrator) AcceptPair(sourceIdx, followerIdx int, delay float64, allFollowers []int) {
	m, ok := c.delays[sourceIdx]
	if !ok {
		m = make(map[int]float64)
		c.delays[sourceIdx] = m
	}
	m[followerIdx] = delay
	for _, f := range allFollowers {
		m[f] -= BoardPairOffsetCycles
	}
}

func (c *Calibrator) emit(level diag.Level, msg string, fields map[string]any) {
	if c.bus == nil {
		return
	}
	c.bus.Emitf("lvds", level, msg, fields)
}

// Split divides a calibrated cycle delay into its firmware-level
// coarse component (quantized in 40-sample chunks, adjusted by
// downsample factor and interleave factor k) and the residual sample
// count the Corrector must still subtract so the combination is
// sample-accurate (spec §4.5 "Compensation split").
func Split(delayCycles float64, downsampleFactor int, interleaveK int) (firmwareTriggerPositionDelta int, softwareResidualSamples float64) {
	if downsampleFactor < 1 {
		downsampleFactor = 1
	}
	if interleaveK < 1 {
		interleaveK = 1
	}
	rawSamples := 8 * delayCycles
	coarseChunks := math.Floor(rawSamples / 40 / float64(downsampleFactor) / float64(interleaveK))
	firmwareTriggerPositionDelta = int(coarseChunks)

	totalSamples := math.Round(rawSamples / float64(downsampleFactor))
	firmwareSamples := 40 * interleaveK * int(coarseChunks)
	softwareResidualSamples = totalSamples - float64(firmwareSamples)
	return firmwareTriggerPositionDelta, softwareResidualSamples
}
