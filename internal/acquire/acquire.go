// Package acquire implements the multi-board acquisition scheduler
// (spec §4.4): plan, arm (followers then source), wait, read (strict
// discovery order), publish, with cooperative cancellation. No
// back-pressure is applied: GlobalConfig.DropOnOverrun is copied into
// the Cycle but does not affect when or whether boards are read.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/haasoctl/haasoctl/internal/board"
	"github.com/haasoctl/haasoctl/internal/diag"
	"github.com/haasoctl/haasoctl/internal/state"
)

// CycleState is the Acquirer's per-cycle state machine (spec §4.4).
type CycleState int

const (
	StateIdle CycleState = iota
	StateArming
	StateArmedWaiting
	StateOneReady
	StateAllReady
	StateReading
	StateAborted
)

func (s CycleState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateArming:
		return "ARMING"
	case StateArmedWaiting:
		return "ARMED_WAITING"
	case StateOneReady:
		return "ONE_READY"
	case StateAllReady:
		return "ALL_READY"
	case StateReading:
		return "READING"
	case StateAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// ErrAcquisitionTimeout is returned when no board reached ready_to_read
// before the deadline (spec §7).
var ErrAcquisitionTimeout = errors.New("acquisition timeout")

// ErrAborted is returned when CancelToken was triggered mid-cycle.
var ErrAborted = errors.New("acquisition aborted")

// BoardHandle is the subset of board.Driver the Acquirer needs, kept as
// an interface so the scheduler can be tested against a fake.
type BoardHandle interface {
	Arm(cfg state.BoardConfig, caps state.Caps) error
	PollReady() (board.AcqPhase, error)
	ReadPayload(cfg state.BoardConfig, caps state.Caps, buf []byte) (board.Acquisition, error)
}

// CancelToken is checked at every suspension point (spec §5). Cancel is
// safe to call concurrently and any number of times.
type CancelToken struct {
	ch chan struct{}
}

// NewCancelToken returns a fresh, uncancelled token.
func NewCancelToken() *CancelToken {
	return &CancelToken{ch: make(chan struct{})}
}

// Cancel marks the token cancelled. Idempotent.
func (c *CancelToken) Cancel() {
	select {
	case <-c.ch:
	default:
		close(c.ch)
	}
}

// Cancelled reports whether Cancel has been called.
func (c *CancelToken) Cancelled() bool {
	select {
	case <-c.ch:
		return true
	default:
		return false
	}
}

// BoardResult is one board's published result for a cycle.
type BoardResult struct {
	BoardIndex  int
	Acquisition board.Acquisition
}

// Cycle runs one full plan->arm->wait->read->publish pass across
// snap.Boards, in strict discovery order, returning the results in the
// same order (spec §4.4, §5 ordering guarantees).
type Cycle struct {
	boards  []BoardHandle
	snap    state.Snapshot
	bus     *diag.Bus
	dropOnOverrun bool
}

// New creates a Cycle driver for the given per-board handles (indexed
// identically to snap.Boards/snap.BoardConfigs) and configuration
// snapshot.
func New(boards []BoardHandle, snap state.Snapshot, bus *diag.Bus) *Cycle {
	return &Cycle{boards: boards, snap: snap, bus: bus, dropOnOverrun: snap.Global.DropOnOverrun}
}

// plan partitions boards into (source index, follower indices) per spec
// §4.4 step 1. Exactly one source is expected unless only one board
// exists, in which case it is its own, implicit source.
func (c *Cycle) plan() (sourceIdx int, followers []int) {
	sourceIdx = c.snap.TriggerSourceIndex()
	if sourceIdx < 0 && len(c.boards) == 1 {
		sourceIdx = 0
	}
	for i := range c.boards {
		if i != sourceIdx {
			followers = append(followers, i)
		}
	}
	return sourceIdx, followers
}

// Run executes one acquisition cycle. Each board's read buffer is sized
// from its board config Length.
func (c *Cycle) Run(ctx context.Context, cancel *CancelToken, timeout time.Duration) (CycleState, []BoardResult, error) {
	sourceIdx, followers := c.plan()
	if sourceIdx < 0 {
		return StateAborted, nil, fmt.Errorf("no trigger source board configured")
	}

	cycleState := StateArming
	c.emit(diag.LevelDebug, "plan", map[string]any{"source": sourceIdx, "followers": followers})

	// Arm followers first, then the source (spec §4.4 step 2): externals
	// must be waiting before the source fires.
	armOrder := append(append([]int(nil), followers...), sourceIdx)
	for _, idx := range armOrder {
		if cancel.Cancelled() {
			c.abort(armOrder)
			return StateAborted, nil, ErrAborted
		}
		if err := c.boards[idx].Arm(c.snap.BoardConfigs[idx], c.snap.Boards[idx].Caps); err != nil {
			c.abort(armOrder)
			return StateAborted, nil, fmt.Errorf("arm board %d: %w", idx, err)
		}
	}
	cycleState = StateArmedWaiting

	// Wait: poll acqstate at >= 1kHz, honoring the deadline unless
	// rolling/auto makes it effectively infinite (spec §4.4 step 3).
	deadline := time.Now().Add(timeout)
	srcCfg := c.snap.BoardConfigs[sourceIdx]
	infinite := timeout <= 0 || srcCfg.RollingTriggerOn || srcCfg.TriggerType == state.TriggerAuto
	readyCount := 0
	total := len(c.boards)
	pollInterval := time.Millisecond

	for readyCount < total {
		if cancel.Cancelled() {
			c.abort(nil)
			return StateAborted, nil, ErrAborted
		}
		if !infinite && time.Now().After(deadline) {
			c.abort(nil)
			return StateAborted, nil, ErrAcquisitionTimeout
		}

		readyCount = 0
		for i := range c.boards {
			phase, err := c.boards[i].PollReady()
			if err != nil {
				c.abort(nil)
				return StateAborted, nil, fmt.Errorf("poll board %d: %w", i, err)
			}
			if phase == board.PhaseReadyToRead {
				readyCount++
			}
		}
		if readyCount == 1 && readyCount < total {
			cycleState = StateOneReady
		}

		select {
		case <-ctx.Done():
			c.abort(nil)
			return StateAborted, nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
	cycleState = StateAllReady
	cycleState = StateReading

	// Read: sequentially issue BulkRead in discovery order, never
	// interleaved, because the byte stream is per-board and may be
	// multiplexed by the host USB controller (spec §4.4 step 4).
	results := make([]BoardResult, 0, total)
	for i := range c.boards {
		if cancel.Cancelled() {
			c.abort(nil)
			return StateAborted, results, ErrAborted
		}
		cfg := c.snap.BoardConfigs[i]
		buf := make([]byte, cfg.Length*40*2)
		acq, err := c.boards[i].ReadPayload(cfg, c.snap.Boards[i].Caps, buf)
		if err != nil {
			c.abort(nil)
			return StateAborted, results, fmt.Errorf("read board %d: %w", i, err)
		}
		results = append(results, BoardResult{BoardIndex: i, Acquisition: acq})
	}

	return cycleState, results, nil
}

// abort issues ArmTrigger(disabled) to every board, ignoring errors
// (best effort). It does not read or discard pending bulk data, and
// the armed argument is not used.
func (c *Cycle) abort(armed []int) {
	disabled := state.DefaultBoardConfig()
	disabled.TriggerType = state.TriggerDisabled
	for i := range c.boards {
		_ = c.boards[i].Arm(disabled, c.snap.Boards[i].Caps)
	}
}

func (c *Cycle) emit(level diag.Level, msg string, fields map[string]any) {
	if c.bus == nil {
		return
	}
	c.bus.Emitf("acquirer", level, msg, fields)
}
