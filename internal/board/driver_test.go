package board

import (
	"testing"
	"time"

	"github.com/haasoctl/haasoctl/internal/protocol"
	"github.com/haasoctl/haasoctl/internal/state"
	"github.com/stretchr/testify/require"
)

// scriptedTransport replies with a fixed 4-byte status/register frame to
// every command, regardless of what was written; enough to exercise the
// Driver's framing and sequencing logic without a live board.
type scriptedTransport struct {
	reply []byte
	sent  [][]byte
}

func (s *scriptedTransport) WriteAll(buf []byte) error {
	cp := append([]byte(nil), buf...)
	s.sent = append(s.sent, cp)
	return nil
}

func (s *scriptedTransport) ReadExact(buf []byte) error {
	copy(buf, s.reply)
	return nil
}

func (s *scriptedTransport) SetTimeouts(time.Duration, time.Duration) {}
func (s *scriptedTransport) FlushInput() error                        { return nil }
func (s *scriptedTransport) Close() error                              { return nil }
func (s *scriptedTransport) Description() string                      { return "scripted" }

func TestConnectReadsFirmwareVersion(t *testing.T) {
	tr := &scriptedTransport{reply: []byte{0x34, 0x12, 0, 0}}
	d := New(0, tr, nil)

	st, err := d.Connect()
	require.NoError(t, err)
	require.Equal(t, state.BoardReady, st)
	require.Equal(t, uint16(0x1234), d.firmwareVer)
}

func TestArmSucceedsOnNonZeroAcqState(t *testing.T) {
	tr := &scriptedTransport{reply: []byte{1, 0x10, 10, 0}}
	d := New(0, tr, nil)
	cfg := state.DefaultBoardConfig()
	cfg.TriggerType = state.TriggerAuto

	err := d.Arm(cfg, state.DefaultCaps())
	require.NoError(t, err)
}

func TestArmFailsOnZeroAcqState(t *testing.T) {
	tr := &scriptedTransport{reply: []byte{1, 0x10, 0, 0}}
	d := New(0, tr, nil)
	cfg := state.DefaultBoardConfig()

	err := d.Arm(cfg, state.DefaultCaps())
	require.ErrorIs(t, err, ErrPllLockLost)
	require.True(t, d.PllResetPending())
}

// sequencedTransport replies with one fixed 4-byte frame per WriteAll
// call, in order, cycling the last reply once exhausted.
type sequencedTransport struct {
	replies [][]byte
	idx     int
	sent    [][]byte
}

func (s *sequencedTransport) WriteAll(buf []byte) error {
	cp := append([]byte(nil), buf...)
	s.sent = append(s.sent, cp)
	return nil
}

func (s *sequencedTransport) ReadExact(buf []byte) error {
	i := s.idx
	if i >= len(s.replies) {
		i = len(s.replies) - 1
	}
	copy(buf, s.replies[i])
	s.idx++
	return nil
}

func (s *sequencedTransport) SetTimeouts(time.Duration, time.Duration) {}
func (s *sequencedTransport) FlushInput() error                        { return nil }
func (s *sequencedTransport) Close() error                              { return nil }
func (s *sequencedTransport) Description() string                      { return "sequenced" }

func TestWriteSPIVerifiedSucceedsWhenReadbackMatches(t *testing.T) {
	tr := &sequencedTransport{replies: [][]byte{
		{5, 0, 0, 0}, // WriteSpi ack
		{2, 0, 9, 0}, // ReadRegister echoes val=9
	}}
	d := New(0, tr, nil)

	err := d.writeSPIVerified(0, 1, 9)
	require.NoError(t, err)
	require.Len(t, tr.sent, 2)
}

func TestWriteSPIVerifiedRetriesOnReadbackMismatch(t *testing.T) {
	tr := &sequencedTransport{replies: [][]byte{
		{5, 0, 0, 0}, // write ack
		{2, 0, 1, 0}, // readback mismatch (wrote 9, reads 1)
		{5, 0, 0, 0},
		{2, 0, 1, 0},
		{5, 0, 0, 0},
		{2, 0, 1, 0},
	}}
	d := New(0, tr, nil)

	err := d.writeSPIVerified(0, 1, 9)
	require.Error(t, err)
	require.Len(t, tr.sent, 6)
}

func TestApplyChannelEmitsSetAFEOnlyOnChange(t *testing.T) {
	tr := &scriptedTransport{reply: []byte{4, 0, 0, 0}}
	d := New(0, tr, nil)

	cfg := state.DefaultChannelConfig()
	cfg.GainDB = 10

	require.NoError(t, d.ApplyChannel(0, cfg))
	require.Len(t, tr.sent, 1)
	require.Equal(t, byte(protocol.OpSetAFE), tr.sent[0][0])

	// Reapplying the same settings must not emit a second command.
	require.NoError(t, d.ApplyChannel(0, cfg))
	require.Len(t, tr.sent, 1)

	cfg.OffsetV = 0.05
	require.NoError(t, d.ApplyChannel(0, cfg))
	require.Len(t, tr.sent, 2)
}
