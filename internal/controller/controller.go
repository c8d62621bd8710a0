// Package controller wires the whole acquisition pipeline together:
// transport discovery, per-board drivers, the acquisition scheduler,
// decode/correct/FIR/resample, the derived engines, and push to
// external sinks (spec §5, §6).
package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/haasoctl/haasoctl/internal/acquire"
	"github.com/haasoctl/haasoctl/internal/board"
	"github.com/haasoctl/haasoctl/internal/correct"
	"github.com/haasoctl/haasoctl/internal/decode"
	"github.com/haasoctl/haasoctl/internal/diag"
	"github.com/haasoctl/haasoctl/internal/fftengine"
	"github.com/haasoctl/haasoctl/internal/fir"
	"github.com/haasoctl/haasoctl/internal/lvds"
	"github.com/haasoctl/haasoctl/internal/mathengine"
	"github.com/haasoctl/haasoctl/internal/measure"
	"github.com/haasoctl/haasoctl/internal/resample"
	"github.com/haasoctl/haasoctl/internal/state"
	"github.com/haasoctl/haasoctl/internal/transport"
)

// DefaultCycleTimeout is the default per-cycle acquisition deadline
// (spec §5).
const DefaultCycleTimeout = 1 * time.Second

// WaveformSink receives every corrected, resampled waveform.
type WaveformSink interface {
	PushWaveform(boardIdx, channel int, wf decode.Waveform)
}

// MeasurementSink receives derived scalar measurements per channel.
type MeasurementSink interface {
	PushMeasurements(boardIdx, channel int, basic measure.Basic)
}

// FftSink receives computed spectra per channel.
type FftSink interface {
	PushSpectrum(boardIdx, channel int, sp fftengine.Spectrum)
}

// Options configures one controller run (spec §6 CLI flags).
type Options struct {
	Sockets    []string
	MaxDevices int
	Testing    bool
}

// Controller owns every board driver and the per-board supporting
// state needed to run acquisition cycles end to end.
type Controller struct {
	opts  Options
	bus   *diag.Bus
	store *state.Store

	drivers   []*board.Driver
	firBanks  map[int]*fir.Bank
	trackers  map[string]*mathengine.Tracker
	lvdsCal   *lvds.Calibrator

	WaveformSink    WaveformSink
	MeasurementSink MeasurementSink
	FftSink         FftSink
}

// New creates a Controller; Discover/Connect populate its boards.
func New(opts Options, bus *diag.Bus) *Controller {
	return &Controller{
		opts:     opts,
		bus:      bus,
		store:    state.New(),
		firBanks: make(map[int]*fir.Bank),
		trackers: make(map[string]*mathengine.Tracker),
		lvdsCal:  lvds.New(bus),
	}
}

// Discover enumerates USB boards (up to opts.MaxDevices) and any
// explicit --socket TCP endpoints, falling back to
// transport.FallbackSocket when nothing else is found (spec §4.1/§6).
func (c *Controller) Discover() ([]transport.Endpoint, error) {
	var endpoints []transport.Endpoint

	usb, err := transport.DiscoverUSB(c.opts.MaxDevices)
	if err != nil {
		c.emit(diag.LevelWarn, "usb discovery failed", map[string]any{"error": err.Error()})
	} else {
		endpoints = append(endpoints, usb...)
	}

	for _, addr := range c.opts.Sockets {
		endpoints = append(endpoints, transport.Endpoint{Description: addr, Addr: addr})
	}

	if len(endpoints) == 0 {
		fallback := transport.FallbackSocket()
		endpoints = append(endpoints, transport.Endpoint{Description: fallback, Addr: fallback})
	}

	ordered := transport.Order(endpoints)
	if ordered.UnstableOrdering {
		c.emit(diag.LevelWarn, "unstable device ordering", nil)
	}
	return ordered.Endpoints, nil
}

// Connect opens every endpoint's Transport and brings up a
// board.Driver session on each, populating the StateStore.
func (c *Controller) Connect(endpoints []transport.Endpoint) error {
	var boards []state.Board
	for i, ep := range endpoints {
		t, err := ep.Open()
		if err != nil {
			return fmt.Errorf("controller: open endpoint %q: %w", ep.Description, err)
		}
		d := board.New(i, t, c.bus)
		if _, err := d.Connect(); err != nil {
			return fmt.Errorf("controller: connect board %d: %w", i, err)
		}
		c.drivers = append(c.drivers, d)
		c.firBanks[i] = fir.NewBank()
		boards = append(boards, state.Board{Index: i, Caps: state.DefaultCaps(), State: state.BoardReady})
	}
	c.store.SetBoards(boards)
	return nil
}

// RunCycle executes exactly one acquisition cycle: arm, wait, read,
// decode, correct, FIR, resample, and publish every downstream engine
// output to the configured sinks.
func (c *Controller) RunCycle(ctx context.Context) (acquire.CycleState, error) {
	snap := c.store.Snapshot()
	handles := make([]acquire.BoardHandle, len(c.drivers))
	for i, d := range c.drivers {
		handles[i] = d
	}

	if err := c.applyConfig(snap); err != nil {
		return acquire.StateAborted, fmt.Errorf("apply config: %w", err)
	}

	cycle := acquire.New(handles, snap, c.bus)
	cancel := acquire.NewCancelToken()
	cycleState, results, err := cycle.Run(ctx, cancel, DefaultCycleTimeout)
	if err != nil {
		return cycleState, err
	}

	for _, res := range results {
		if err := c.processBoardResult(snap, res); err != nil {
			c.emit(diag.LevelError, "board processing failed", map[string]any{
				"board": res.BoardIndex, "error": err.Error(),
			})
		}
	}
	return cycleState, nil
}

// applyConfig pushes each board's current BoardConfig and each physical
// channel's front-end settings down to hardware before the cycle arms,
// so oversample/interleave mode and gain/offset/coupling/impedance
// changes actually reach the board (spec §4.2 OpSetAFE, §4.3 Apply).
func (c *Controller) applyConfig(snap state.Snapshot) error {
	for i, d := range c.drivers {
		if i >= len(snap.BoardConfigs) {
			continue
		}
		if err := d.Apply(snap.BoardConfigs[i]); err != nil {
			return fmt.Errorf("board %d: %w", i, err)
		}

		first, second := snap.ChannelsForBoard(i)
		for _, ch := range []int{first, second} {
			if ch < 0 || ch >= len(snap.ChannelConfig) {
				continue
			}
			if err := d.ApplyChannel(ch, snap.ChannelConfig[ch]); err != nil {
				return fmt.Errorf("board %d channel %d: %w", i, ch, err)
			}
		}
	}
	return nil
}

func (c *Controller) processBoardResult(snap state.Snapshot, res acquire.BoardResult) error {
	boardIdx := res.BoardIndex
	cfg := snap.BoardConfigs[boardIdx]
	caps := snap.Boards[boardIdx].Caps
	mode := cfg.ChannelMode
	dt := 1 / cfg.SampleRateHz(caps)

	waveforms, err := decode.Decode(boardIdx, res.Acquisition.Raw, res.Acquisition, mode, dt)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	first, second := snap.ChannelsForBoard(boardIdx)
	channelIdx := []int{first, second}

	for i, wf := range waveforms {
		ch := channelIdx[i]
		if ch < 0 || ch >= len(snap.ChannelConfig) {
			continue
		}
		chCfg := snap.ChannelConfig[ch]

		driver := c.drivers[boardIdx]
		corrected := correct.Apply(wf, correct.Config{
			Coupling:                 chCfg.Coupling,
			Calibration:              driver.Calibration(chCfg.GainDB, chCfg.Coupling),
			TriggerType:              cfg.TriggerType,
			PerCycleStabilizeEnabled: true,
			LvdsResidualSamples:      cfg.LvdsDelayCycles,
		})

		firMode := selectFirMode(cfg)
		filtered := append([]float32(nil), corrected.Samples...)
		filtered = c.firBanks[boardIdx].Apply(firMode, filtered)
		corrected.Samples = filtered

		resampled := corrected
		if chCfg.ResampFactor > 1 {
			out, err := resample.Resample(corrected.Samples, resample.Factor(chCfg.ResampFactor))
			if err == nil {
				resampled.Samples = out
				resampled.Dt = corrected.Dt / float64(chCfg.ResampFactor)
			}
		}

		if c.WaveformSink != nil {
			c.WaveformSink.PushWaveform(boardIdx, ch, resampled)
		}
		if c.MeasurementSink != nil {
			c.MeasurementSink.PushMeasurements(boardIdx, ch, measure.ComputeBasic(resampled.Samples))
		}
		if c.FftSink != nil {
			floatSamples := make([]float64, len(resampled.Samples))
			for k, v := range resampled.Samples {
				floatSamples[k] = float64(v)
			}
			if sp, err := fftengine.Compute(floatSamples, 1/resampled.Dt, fftengine.WindowBlackman, 0); err == nil {
				c.FftSink.PushSpectrum(boardIdx, ch, sp)
			}
		}
	}
	return nil
}

func selectFirMode(cfg state.BoardConfig) fir.Mode {
	switch {
	case cfg.OversampleWithNeighbor && cfg.ChannelMode == state.ChannelModeSingleInterleaved:
		return fir.ModeInterleaved
	case cfg.OversampleWithNeighbor:
		return fir.ModeOversampled
	default:
		return fir.ModeNormal
	}
}

func (c *Controller) emit(level diag.Level, msg string, fields map[string]any) {
	if c.bus == nil {
		return
	}
	c.bus.Emitf("controller", level, msg, fields)
}

// Store exposes the underlying StateStore for CLI/UI layers.
func (c *Controller) Store() *state.Store {
	return c.store
}
