package fir

import (
	"encoding/json"
	"fmt"
	"os"
)

// Bank holds one Calibration per Mode and knows how to persist them to
// a *.fir file (spec §4.8: "persisted per mode, keyed by mode name").
type Bank struct {
	entries map[Mode]Calibration
}

// NewBank returns an empty Bank.
func NewBank() *Bank {
	return &Bank{entries: make(map[Mode]Calibration)}
}

// Set stores (or replaces) the calibration for a mode.
func (b *Bank) Set(cal Calibration) {
	b.entries[cal.Source] = cal
}

// Get returns the calibration for a mode and whether it's present.
func (b *Bank) Get(mode Mode) (Calibration, bool) {
	cal, ok := b.entries[mode]
	return cal, ok
}

type persistedCal struct {
	Coefficients            []float32 `json:"coefficients"`
	CalibrationSampleRateHz float64   `json:"calibration_sample_rate_hz"`
}

type persistedBank struct {
	Entries map[Mode]persistedCal `json:"entries"`
}

// Save writes every stored mode's calibration to path as JSON.
func (b *Bank) Save(path string) error {
	doc := persistedBank{Entries: make(map[Mode]persistedCal, len(b.entries))}
	for mode, cal := range b.entries {
		doc.Entries[mode] = persistedCal{
			Coefficients:            cal.Coefficients,
			CalibrationSampleRateHz: cal.CalibrationSampleRateHz,
		}
	}
	bytes, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fir bank: %w", err)
	}
	if err := os.WriteFile(path, bytes, 0o644); err != nil {
		return fmt.Errorf("write fir bank %s: %w", path, err)
	}
	return nil
}

// StaleMode is reported by LoadBank when a persisted mode's calibration
// sample rate doesn't match the rate requested at load time, since a
// kernel designed for one sample rate is invalid at another (spec
// §4.8: "a sample-rate mismatch on load must warn, not silently
// reuse").
type StaleMode struct {
	Mode         Mode
	SavedRateHz  float64
	WantedRateHz float64
}

// LoadBank reads a *.fir file. currentRateHz, if nonzero, is compared
// against each mode's recorded calibration rate; mismatches are
// returned as StaleMode entries but the calibration is still loaded
// into the Bank so a caller can choose to keep using it.
func LoadBank(path string, currentRateHz float64) (*Bank, []StaleMode, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read fir bank %s: %w", path, err)
	}
	var doc persistedBank
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil, fmt.Errorf("parse fir bank %s: %w", path, err)
	}

	bank := NewBank()
	var stale []StaleMode
	for mode, pc := range doc.Entries {
		bank.entries[mode] = Calibration{
			Coefficients:            pc.Coefficients,
			CalibrationSampleRateHz: pc.CalibrationSampleRateHz,
			Source:                  mode,
		}
		if currentRateHz > 0 && pc.CalibrationSampleRateHz > 0 && pc.CalibrationSampleRateHz != currentRateHz {
			stale = append(stale, StaleMode{Mode: mode, SavedRateHz: pc.CalibrationSampleRateHz, WantedRateHz: currentRateHz})
		}
	}
	return bank, stale, nil
}

// Apply runs zero-phase FIR filtering (forward convolution followed by
// a reversed-order convolution, cancelling group delay) using the
// mode's stored coefficients. Samples outside the input are treated as
// zero.
func (b *Bank) Apply(mode Mode, samples []float32) []float32 {
	cal, ok := b.entries[mode]
	if !ok || len(cal.Coefficients) == 0 {
		return samples
	}
	fwd := convolveSame(samples, cal.Coefficients)
	both := convolveSame(reverseFloat32(fwd), cal.Coefficients)
	return reverseFloat32(both)
}

func convolveSame(x []float32, h []float32) []float32 {
	n := len(x)
	m := len(h)
	half := m / 2
	out := make([]float32, n)
	for i := range out {
		var sum float32
		for k := 0; k < m; k++ {
			srcIdx := i + k - half
			if srcIdx < 0 || srcIdx >= n {
				continue
			}
			sum += x[srcIdx] * h[k]
		}
		out[i] = sum
	}
	return out
}

func reverseFloat32(x []float32) []float32 {
	out := make([]float32, len(x))
	for i, v := range x {
		out[len(x)-1-i] = v
	}
	return out
}
