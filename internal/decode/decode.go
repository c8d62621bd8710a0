// Package decode unpacks the board's raw 12-bit packed LVDS stream into
// per-channel Waveforms (spec §4.6): lane de-interleave, sign extension,
// ADC-code scaling.
//
// Lane layout grounded on the teacher's own bit-packed frame decoding
// idiom (src/ax25_pad2.go's HDLC bit-stuffing/unstuffing) and on
// other_examples/27bed282_nasa-jpl-golaborate__acromag-ap235-ap235.go.go's
// multi-channel sample layout.
package decode

import (
	"encoding/binary"
	"fmt"

	"github.com/haasoctl/haasoctl/internal/board"
	"github.com/haasoctl/haasoctl/internal/state"
)

// LanesPerLvdsCycle is the firmware's fixed fan-out: 40 ADC channels
// packed into every LVDS cycle (spec §4.6).
const LanesPerLvdsCycle = 40

// Waveform is the decoder's (and every downstream stage's) output unit
// (spec §3). Samples are always float32, dt in seconds.
type Waveform struct {
	Board   int
	Channel int
	T0      float64
	Dt      float64
	Samples []float32
	Meta    board.Acquisition
}

// Validate checks the Waveform invariant from spec §3.
func (w Waveform) Validate() error {
	if len(w.Samples) < 1 {
		return fmt.Errorf("waveform board=%d channel=%d has no samples", w.Board, w.Channel)
	}
	if w.Dt <= 0 {
		return fmt.Errorf("waveform board=%d channel=%d has non-positive dt", w.Board, w.Channel)
	}
	return nil
}

// sign12Extend sign-extends a 12-bit left-justified, big-endian 16-bit
// sample (sign bit in the MSB of the high byte) to a signed 16-bit
// value, per spec §6's wire layout note.
func sign12Extend(word uint16) int16 {
	// word is already left-justified across the full 16 bits, so an
	// arithmetic right shift by 4 simply divides by 16, discarding the
	// low 4 don't-care bits while preserving sign.
	return int16(word) >> 4
}

// Decode unpacks raw into two Waveforms (dual mode) or one (single
// interleaved mode) for one board, per spec §4.6.
//
// dt is the nominal sample period implied by the board's configured
// sample rate (1/sample_rate_hz, doubled for interleaved mode at the
// caller's discretion via state.BoardConfig.SampleRateHz).
func Decode(boardIdx int, raw []byte, meta board.Acquisition, mode state.ChannelMode, dt float64) ([]Waveform, error) {
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("board %d: raw payload length %d is not a multiple of 2", boardIdx, len(raw))
	}
	numWords := len(raw) / 2
	if numWords%LanesPerLvdsCycle != 0 {
		return nil, fmt.Errorf("board %d: raw payload holds %d samples, not a multiple of %d lanes", boardIdx, numWords, LanesPerLvdsCycle)
	}
	depth := numWords / LanesPerLvdsCycle

	switch mode {
	case state.ChannelModeDual:
		return decodeDual(boardIdx, raw, meta, depth, dt)
	case state.ChannelModeSingleInterleaved:
		return decodeSingleInterleaved(boardIdx, raw, meta, depth, dt)
	default:
		return nil, fmt.Errorf("board %d: unknown channel mode %v", boardIdx, mode)
	}
}

// decodeDual: even lanes -> channel 0, odd lanes -> channel 1 (spec
// §4.6). Output sample count per channel is depth*40/2.
func decodeDual(boardIdx int, raw []byte, meta board.Acquisition, depth int, dt float64) ([]Waveform, error) {
	n := depth * LanesPerLvdsCycle / 2
	ch0 := make([]float32, 0, n)
	ch1 := make([]float32, 0, n)

	for cycle := 0; cycle < depth; cycle++ {
		base := cycle * LanesPerLvdsCycle * 2
		for lane := 0; lane < LanesPerLvdsCycle; lane++ {
			word := binary.BigEndian.Uint16(raw[base+lane*2 : base+lane*2+2])
			sample := float32(sign12Extend(word))
			if lane%2 == 0 {
				ch0 = append(ch0, sample)
			} else {
				ch1 = append(ch1, sample)
			}
		}
	}

	return []Waveform{
		{Board: boardIdx, Channel: 0, Dt: dt, Samples: ch0, Meta: meta},
		{Board: boardIdx, Channel: 1, Dt: dt, Samples: ch1, Meta: meta},
	}, nil
}

// decodeSingleInterleaved: all 40 lanes feed a single channel at 2x
// effective rate (spec §4.6). Output sample count is depth*40.
func decodeSingleInterleaved(boardIdx int, raw []byte, meta board.Acquisition, depth int, dt float64) ([]Waveform, error) {
	n := depth * LanesPerLvdsCycle
	samples := make([]float32, 0, n)

	for cycle := 0; cycle < depth; cycle++ {
		base := cycle * LanesPerLvdsCycle * 2
		for lane := 0; lane < LanesPerLvdsCycle; lane++ {
			word := binary.BigEndian.Uint16(raw[base+lane*2 : base+lane*2+2])
			samples = append(samples, float32(sign12Extend(word)))
		}
	}

	return []Waveform{
		{Board: boardIdx, Channel: 0, Dt: dt, Samples: samples, Meta: meta},
	}, nil
}
