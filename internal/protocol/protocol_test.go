package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandEncode(t *testing.T) {
	cmd := Command{Op: OpGetID, Sub: 0, A: 0, B: 0}
	assert.Equal(t, []byte{0, 0, 0, 0}, cmd.Encode())
}

func TestDecodeStatusReplyMismatchOpcode(t *testing.T) {
	_, err := DecodeStatusReply(OpArmTrigger, 0, []byte{byte(OpGetID), 0, 251, 0})
	require.ErrorIs(t, err, ErrProtocolDesync)
}

func TestDecodeStatusReplyMismatchSequence(t *testing.T) {
	buf := []byte{byte(OpArmTrigger), 0x30, 251, 0}
	_, err := DecodeStatusReply(OpArmTrigger, 0x01, buf)
	require.ErrorIs(t, err, ErrProtocolDesync)
}

func TestDecodeStatusReplyOK(t *testing.T) {
	buf := []byte{byte(OpArmTrigger), 0x10, AcqStateReady, 0}
	reply, err := DecodeStatusReply(OpArmTrigger, 0x01, buf)
	require.NoError(t, err)
	assert.Equal(t, byte(AcqStateReady), reply.AcqState)
}

func TestRegisterWordLocked(t *testing.T) {
	locked, err := DecodeRegisterWord([]byte{5, 5, 0, 0})
	require.NoError(t, err)
	assert.True(t, locked.Locked())

	unlocked, err := DecodeRegisterWord([]byte{5, 6, 0, 0})
	require.NoError(t, err)
	assert.False(t, unlocked.Locked())
}

func TestBulkPayloadLen(t *testing.T) {
	assert.Equal(t, 1000*40*2, BulkPayloadLen(1000, 40))
}

func TestArmTriggerPayloadEncodeLength(t *testing.T) {
	p := ArmTriggerPayload{Length: 1000, TotSamples: 2}
	assert.Len(t, p.Encode(), 2+2+1+4+4+4+4+1+1+1+1)
}
