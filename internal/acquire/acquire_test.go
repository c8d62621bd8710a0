package acquire

import (
	"context"
	"testing"
	"time"

	"github.com/haasoctl/haasoctl/internal/board"
	"github.com/haasoctl/haasoctl/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBoard struct {
	armCalls  []state.BoardConfig
	readyAt   int
	polls     int
	readCalls int
	id        int
	armLog    *[]int
}

func (f *fakeBoard) Arm(cfg state.BoardConfig, caps state.Caps) error {
	f.armCalls = append(f.armCalls, cfg)
	if f.armLog != nil {
		*f.armLog = append(*f.armLog, f.id)
	}
	return nil
}

func (f *fakeBoard) PollReady() (board.AcqPhase, error) {
	f.polls++
	if f.polls >= f.readyAt {
		return board.PhaseReadyToRead, nil
	}
	return board.PhaseWaiting, nil
}

func (f *fakeBoard) ReadPayload(cfg state.BoardConfig, caps state.Caps, buf []byte) (board.Acquisition, error) {
	f.readCalls++
	return board.Acquisition{Raw: buf, TriggerPhase: 42}, nil
}

func snapshotFor(n int) state.Snapshot {
	s := state.New()
	boards := make([]state.Board, n)
	for i := range boards {
		boards[i] = state.Board{Serial: string(rune('A' + i)), Caps: state.DefaultCaps()}
	}
	s.SetBoards(boards)
	cfg := state.DefaultBoardConfig()
	cfg.TriggerType = state.TriggerRising
	cfg.Length = 100
	_ = s.SetBoardConfig(0, cfg)
	return s.Snapshot()
}

func TestCyclePublishesEveryBoardOnce(t *testing.T) {
	snap := snapshotFor(3)
	boards := []BoardHandle{&fakeBoard{readyAt: 1}, &fakeBoard{readyAt: 1}, &fakeBoard{readyAt: 1}}

	cycle := New(boards, snap, nil)
	finalState, results, err := cycle.Run(context.Background(), NewCancelToken(), 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, StateReading, finalState)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, i, r.BoardIndex)
	}
}

func TestCycleArmsFollowersBeforeSource(t *testing.T) {
	snap := snapshotFor(2)
	var armOrder []int
	f0 := &fakeBoard{readyAt: 1, id: 0, armLog: &armOrder}
	f1 := &fakeBoard{readyAt: 1, id: 1, armLog: &armOrder}
	boards := []BoardHandle{f0, f1}

	_, _, err := New(boards, snap, nil).Run(context.Background(), NewCancelToken(), time.Second)
	require.NoError(t, err)
	// board 1 is the external follower (board 0 is the source); it must
	// be armed before the source per spec §4.4 step 2.
	assert.Len(t, f1.armCalls, 1)
	assert.Len(t, f0.armCalls, 1)
	assert.Equal(t, []int{1, 0}, armOrder)
}

func TestCycleTimesOutWhenNoBoardReady(t *testing.T) {
	snap := snapshotFor(1)
	boards := []BoardHandle{&fakeBoard{readyAt: 1 << 20}}

	finalState, _, err := New(boards, snap, nil).Run(context.Background(), NewCancelToken(), 5*time.Millisecond)
	require.ErrorIs(t, err, ErrAcquisitionTimeout)
	assert.Equal(t, StateAborted, finalState)
}

func TestCycleCancelledMidWaitReturnsAborted(t *testing.T) {
	snap := snapshotFor(1)
	boards := []BoardHandle{&fakeBoard{readyAt: 1 << 20}}
	cancel := NewCancelToken()

	go func() {
		time.Sleep(2 * time.Millisecond)
		cancel.Cancel()
	}()

	finalState, _, err := New(boards, snap, nil).Run(context.Background(), cancel, time.Minute)
	require.ErrorIs(t, err, ErrAborted)
	assert.Equal(t, StateAborted, finalState)
}
