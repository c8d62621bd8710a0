// Package protocol implements the board command/response wire format
// (spec §4.2): fixed 4-byte little-endian command frames, op-specific
// response lengths, and the reply checks (opcode echo, sequence
// nibble) that detect a desync.
//
// Grounded on the teacher's own framed binary protocol
// (src/agwpe.go and src/appserver.go's AGWPE header encode/decode) and on
// the FTDI MPSSE command/response framing shown in
// other_examples/3654612e_periph-host__ftdi-mpsse.go.go.
package protocol

import (
	"encoding/binary"
	"fmt"
)

// Opcode enumerates the board's recognized command opcodes (spec §4.2).
type Opcode byte

const (
	OpGetID          Opcode = 0
	OpArmTrigger     Opcode = 1
	OpReadRegister   Opcode = 2
	OpBulkRead       Opcode = 3
	OpSetAFE         Opcode = 4 // gain/offset/impedance/coupling
	OpWriteSPI       Opcode = 5
	OpPllPhase       Opcode = 6 // PllReset / PhaseAdjust
	OpFanTemp        Opcode = 7
	OpSetOversample  Opcode = 11
)

// Register sub-addresses recognized by OpReadRegister.
const (
	RegForwardPhaseCounter  byte = 12
	RegBackwardPhaseCounter byte = 13
)

// AcqStateReady is the status value a board reports once its bulk
// payload is available to read (spec §4.3: "ready_to_read when
// acqstate == 251").
const AcqStateReady byte = 251

// Command is a 4-byte little-endian tuple [op, sub, a, b] as defined by
// spec §4.2. Some opcodes additionally carry a variable-length payload
// appended after the fixed header (ArmTrigger's extra fields, SetAFE's
// offset);
// Payload is nil for opcodes that need none.
type Command struct {
	Op      Opcode
	Sub     byte
	A       byte
	B       byte
	Payload []byte
}

// Encode serializes the command to its wire bytes: the 4-byte header
// followed by any extra payload.
func (c Command) Encode() []byte {
	out := make([]byte, 4+len(c.Payload))
	out[0] = byte(c.Op)
	out[1] = c.Sub
	out[2] = c.A
	out[3] = c.B
	copy(out[4:], c.Payload)
	return out
}

// StatusReply is the fixed 4-byte status response most commands return.
type StatusReply struct {
	AcqState       byte
	EventCounterLo uint16
	Raw            [4]byte
}

// DecodeStatusReply parses a 4-byte status reply. The echo byte (byte 0)
// must match the opcode that was sent, and a sequence nibble embedded in
// byte 1's high nibble must match what was expected; a mismatch is
// reported as an error wrapping ErrProtocolDesync.
func DecodeStatusReply(op Opcode, seq byte, buf []byte) (StatusReply, error) {
	if len(buf) != 4 {
		return StatusReply{}, fmt.Errorf("%w: status reply must be 4 bytes, got %d", ErrProtocolDesync, len(buf))
	}
	if buf[0] != byte(op) {
		return StatusReply{}, fmt.Errorf("%w: opcode echo mismatch: sent %d got %d", ErrProtocolDesync, op, buf[0])
	}
	if buf[1]>>4 != seq&0x0f {
		return StatusReply{}, fmt.Errorf("%w: sequence nibble mismatch: sent %d got %d", ErrProtocolDesync, seq&0x0f, buf[1]>>4)
	}
	var reply StatusReply
	copy(reply.Raw[:], buf)
	reply.AcqState = buf[2]
	reply.EventCounterLo = binary.LittleEndian.Uint16(buf[2:4])
	return reply, nil
}

// RegisterWord is the 4-byte response to OpReadRegister. Bytes 0/1 carry
// the phase-counter high/low halves used by the LVDS calibrator.
type RegisterWord struct {
	High byte
	Low  byte
	Raw  [4]byte
}

// DecodeRegisterWord parses a 4-byte register read response.
func DecodeRegisterWord(buf []byte) (RegisterWord, error) {
	if len(buf) != 4 {
		return RegisterWord{}, fmt.Errorf("%w: register reply must be 4 bytes, got %d", ErrProtocolDesync, len(buf))
	}
	var w RegisterWord
	copy(w.Raw[:], buf)
	w.High = buf[0]
	w.Low = buf[1]
	return w, nil
}

// Locked reports whether the two phase-counter halves agree, meaning
// the LVDS phase measurement has settled (spec §4.5 step 2).
func (w RegisterWord) Locked() bool {
	return w.High == w.Low
}

// BulkPayloadLen returns the expected byte length of a BulkRead response
// for depth LVDS cycles across `lanes` channels, 2 bytes/sample
// (spec §6: "depth LVDS ticks x 40 lanes x 2 bytes").
func BulkPayloadLen(depth, lanes int) int {
	return depth * lanes * 2
}

// ArmTriggerPayload builds the extra bytes ArmTrigger appends after its
// 4-byte header, encoding the full trigger configuration (spec §4.2).
type ArmTriggerPayload struct {
	ThresholdUpperCode int16
	ThresholdLowerCode int16
	TotSamples         uint8
	TriggerDelay       uint32
	Holdoff            uint32
	Prelength          uint32
	Length             uint32
	DownsampleExp      uint8
	Merging            uint8
	FirstLastRole      uint8
	Rolling            bool
}

// Encode serializes the ArmTrigger payload in a fixed field order.
func (p ArmTriggerPayload) Encode() []byte {
	buf := make([]byte, 2+2+1+4+4+4+4+1+1+1+1)
	i := 0
	binary.LittleEndian.PutUint16(buf[i:], uint16(p.ThresholdUpperCode))
	i += 2
	binary.LittleEndian.PutUint16(buf[i:], uint16(p.ThresholdLowerCode))
	i += 2
	buf[i] = p.TotSamples
	i++
	binary.LittleEndian.PutUint32(buf[i:], p.TriggerDelay)
	i += 4
	binary.LittleEndian.PutUint32(buf[i:], p.Holdoff)
	i += 4
	binary.LittleEndian.PutUint32(buf[i:], p.Prelength)
	i += 4
	binary.LittleEndian.PutUint32(buf[i:], p.Length)
	i += 4
	buf[i] = p.DownsampleExp
	i++
	buf[i] = p.Merging
	i++
	buf[i] = p.FirstLastRole
	i++
	if p.Rolling {
		buf[i] = 1
	}
	return buf
}
