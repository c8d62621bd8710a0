package board

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/haasoctl/haasoctl/internal/diag"
	"github.com/haasoctl/haasoctl/internal/protocol"
	"github.com/haasoctl/haasoctl/internal/state"
	"github.com/haasoctl/haasoctl/internal/transport"
)

// ErrPllLockLost is surfaced when the PLL lock is lost during an arm
// (spec §7 PllLockLost): the current cycle is cancelled and the board
// is marked pll_reset_pending.
var ErrPllLockLost = errors.New("pll lock lost during arm")

// SpiReadbackRetries is how many times a SPI write is read back and
// retried before the driver gives up (spec §4.3).
const SpiReadbackRetries = 3

// GainCalibration is one (slope, intercept) pair converting ADC codes
// to volts for a specific (gain_db, coupling) combination (spec §4.3).
type GainCalibration struct {
	Slope     float64
	Intercept float64
}

// calKey identifies one calibration table entry.
type calKey struct {
	gainDB   float64
	coupling state.Coupling
}

// Driver is a stateful per-board session: owns the Transport, the last
// applied BoardConfig (for diffing), calibration constants, and PLL/
// telemetry status.
type Driver struct {
	Index     int
	transport transport.Transport
	bus       *diag.Bus

	seq            byte
	lastApplied    state.BoardConfig
	hasApplied     bool
	lastAFE        map[int]afeSettings
	pllLocked      bool
	pllResetPend   bool
	firmwareVer    uint16
	calibration    map[calKey]GainCalibration
	fanTempCode    byte
}

// afeSettings is the subset of ChannelConfig that OpSetAFE actually
// programs; ApplyChannel diffs against this, not the full ChannelConfig,
// so display-only fields like PersistOn never trigger a write.
type afeSettings struct {
	GainDB         float64
	OffsetV        float64
	Coupling       state.Coupling
	Impedance      state.Impedance
	BandwidthLimit state.BandwidthLimit
}

// New creates a Driver for boardIndex over the given Transport.
func New(boardIndex int, t transport.Transport, bus *diag.Bus) *Driver {
	return &Driver{
		Index:       boardIndex,
		transport:   t,
		bus:         bus,
		calibration: make(map[calKey]GainCalibration),
		lastAFE:     make(map[int]afeSettings),
		pllLocked:   true,
	}
}

// SetCalibration installs the (slope, intercept) pair for a given
// (gain_db, coupling) combination, typically loaded from a *.cal file.
func (d *Driver) SetCalibration(gainDB float64, coupling state.Coupling, cal GainCalibration) {
	d.calibration[calKey{gainDB, coupling}] = cal
}

// Calibration looks up the (slope, intercept) pair for the given
// channel settings, falling back to the nominal slope
// lsbVoltsAtUnityGain / 10^(gainDB/20) with zero intercept if no
// explicit entry was loaded.
func (d *Driver) Calibration(gainDB float64, coupling state.Coupling) GainCalibration {
	if cal, ok := d.calibration[calKey{gainDB, coupling}]; ok {
		return cal
	}
	return GainCalibration{Slope: lsbVoltsAtUnityGain / math.Pow(10, gainDB/20), Intercept: 0}
}

func (d *Driver) nextSeq() byte {
	d.seq = (d.seq + 1) & 0x0f
	return d.seq
}

func (d *Driver) command(cmd protocol.Command, readLen int) ([]byte, error) {
	if err := d.transport.WriteAll(cmd.Encode()); err != nil {
		return nil, fmt.Errorf("board %d: write command: %w", d.Index, err)
	}
	buf := make([]byte, readLen)
	if err := d.transport.ReadExact(buf); err != nil {
		return nil, fmt.Errorf("board %d: read response: %w", d.Index, err)
	}
	return buf, nil
}

// Connect performs GetId -> PLL reset -> default SPI program and
// initial DAC offsets (spec §4.3). The firmware version from GetId is
// recorded but not compared against anything, so Connect never
// reports state.BoardVersionMismatch.
func (d *Driver) Connect() (state.BoardLifecycleState, error) {
	buf, err := d.command(protocol.Command{Op: protocol.OpGetID}, 4)
	if err != nil {
		return state.BoardDisconnected, err
	}
	d.firmwareVer = uint16(buf[0]) | uint16(buf[1])<<8

	if err := d.resetPll(); err != nil {
		return state.BoardPllUnlocked, err
	}
	if err := d.programDefaultSPI(); err != nil {
		return state.BoardDisconnected, err
	}

	d.emit(diag.LevelInfo, "connected", map[string]any{"firmware_version": d.firmwareVer})
	return state.BoardReady, nil
}

func (d *Driver) resetPll() error {
	_, err := d.command(protocol.Command{Op: protocol.OpPllPhase, Sub: 0}, 4)
	if err != nil {
		return err
	}
	d.pllLocked = true
	d.pllResetPend = false
	return nil
}

func (d *Driver) programDefaultSPI() error {
	// Default SPI program and initial DAC offsets: a short, fixed
	// sequence of writes, each read-back verified.
	writes := [][3]byte{{0, 0, 0}, {0, 1, 0}}
	for _, w := range writes {
		if err := d.writeSPIVerified(w[0], w[1], w[2]); err != nil {
			return err
		}
	}
	return nil
}

// writeSPIVerified issues WriteSpi, reads the register back via
// ReadRegister, and retries up to SpiReadbackRetries times whenever the
// transport errors or the read-back value disagrees with what was
// written (spec §4.3: "SPI writes are read-back verified up to 3 times").
func (d *Driver) writeSPIVerified(bus, addr, val byte) error {
	var lastErr error
	for attempt := 0; attempt < SpiReadbackRetries; attempt++ {
		if _, err := d.command(protocol.Command{Op: protocol.OpWriteSPI, Sub: bus, A: addr, B: val}, 4); err != nil {
			lastErr = err
			continue
		}
		readback, err := d.command(protocol.Command{Op: protocol.OpReadRegister, Sub: bus, A: addr}, 4)
		if err != nil {
			lastErr = err
			continue
		}
		if readback[2] == val {
			return nil
		}
		lastErr = fmt.Errorf("readback mismatch at bus=%d addr=%d: wrote %d, read %d", bus, addr, val, readback[2])
	}
	return fmt.Errorf("board %d: spi write bus=%d addr=%d failed after %d attempts: %w",
		d.Index, bus, addr, SpiReadbackRetries, lastErr)
}

// Apply computes the diff against the last applied BoardConfig and
// emits only the changed commands (spec §4.3).
func (d *Driver) Apply(cfg state.BoardConfig) error {
	if !d.hasApplied {
		d.lastApplied = state.BoardConfig{}
	}
	prev := d.lastApplied

	if cfg.OversampleWithNeighbor != prev.OversampleWithNeighbor || cfg.ChannelMode != prev.ChannelMode {
		if err := d.setOversampleInterleave(cfg); err != nil {
			return err
		}
	}

	d.lastApplied = cfg
	d.hasApplied = true
	return nil
}

func (d *Driver) setOversampleInterleave(cfg state.BoardConfig) error {
	var b byte
	if cfg.OversampleWithNeighbor {
		b |= 1
	}
	if cfg.ChannelMode == state.ChannelModeSingleInterleaved {
		b |= 2
	}
	_, err := d.command(protocol.Command{Op: protocol.OpSetOversample, A: b}, 4)
	return err
}

// ApplyChannel diffs the given physical channel's gain/offset/coupling/
// impedance/bandwidth against what was last programmed and, if anything
// changed, emits OpSetAFE (spec §4.2 opcode 4, §4.3). channel is the
// physical channel index (0/1 on a single board).
func (d *Driver) ApplyChannel(channel int, cfg state.ChannelConfig) error {
	want := afeSettings{
		GainDB:         cfg.GainDB,
		OffsetV:        cfg.OffsetV,
		Coupling:       cfg.Coupling,
		Impedance:      cfg.Impedance,
		BandwidthLimit: cfg.BandwidthLimit,
	}
	if prev, ok := d.lastAFE[channel]; ok && prev == want {
		return nil
	}
	if err := d.setAFE(channel, want); err != nil {
		return err
	}
	d.lastAFE[channel] = want
	return nil
}

// setAFE encodes and sends one channel's analog front-end settings:
// gain in the A byte (signed dB), the offset (millivolts) as a payload
// appended after the 4-byte header, and coupling/impedance/bandwidth
// packed into flag bits of the B byte.
func (d *Driver) setAFE(channel int, s afeSettings) error {
	var flags byte
	if s.Coupling == state.CouplingAC {
		flags |= 1
	}
	if s.Impedance == state.Impedance50Ohm {
		flags |= 2
	}
	if s.BandwidthLimit == state.Bandwidth20MHz {
		flags |= 4
	}
	payload := make([]byte, 2)
	binary.LittleEndian.PutUint16(payload, uint16(int16(math.Round(s.OffsetV*1000))))

	cmd := protocol.Command{
		Op:      protocol.OpSetAFE,
		Sub:     byte(channel),
		A:       byte(int8(math.Round(s.GainDB))),
		B:       flags,
		Payload: payload,
	}
	_, err := d.command(cmd, 4)
	return err
}

// FanTempTelemetry is the board's fan/temperature status reported by
// OpFanTemp (spec §4.2 opcode 7).
type FanTempTelemetry struct {
	TempCode byte
	FanDuty  byte
}

// ReadFanTemp polls the board's fan controller and temperature sensor,
// caching the reading for diagnostics.
func (d *Driver) ReadFanTemp() (FanTempTelemetry, error) {
	buf, err := d.command(protocol.Command{Op: protocol.OpFanTemp}, 4)
	if err != nil {
		return FanTempTelemetry{}, err
	}
	d.fanTempCode = buf[2]
	return FanTempTelemetry{TempCode: buf[2], FanDuty: buf[3]}, nil
}

// Arm sends ArmTrigger and returns immediately (spec §4.4 step 2).
func (d *Driver) Arm(cfg state.BoardConfig, caps state.Caps) error {
	payload := protocol.ArmTriggerPayload{
		ThresholdUpperCode: int16(cfg.ThresholdUpperCode),
		ThresholdLowerCode: int16(cfg.ThresholdLowerCode),
		TotSamples:         uint8(cfg.TotSamples),
		TriggerDelay:        uint32(cfg.TriggerDelay),
		Holdoff:            uint32(cfg.Holdoff),
		Prelength:          uint32(cfg.Prelength),
		Length:             uint32(cfg.Length),
		DownsampleExp:      uint8(cfg.DownsampleExp),
		Merging:            uint8(cfg.DownsampleMerging),
		FirstLastRole:      uint8(cfg.FirstLastRole),
		Rolling:            cfg.RollingTriggerOn,
	}
	cmd := protocol.Command{
		Op:      protocol.OpArmTrigger,
		Sub:     byte(cfg.TriggerType),
		A:       byte(cfg.TriggerChannel),
		Payload: payload.Encode(),
	}
	buf, err := d.command(cmd, 4)
	if err != nil {
		return err
	}
	reply, err := protocol.DecodeStatusReply(protocol.OpArmTrigger, d.nextSeq(), buf)
	if err != nil {
		return err
	}
	if reply.AcqState == 0 {
		d.pllResetPend = true
		return ErrPllLockLost
	}
	return nil
}

// PollReady issues a status query and classifies the board's acqstate
// into an AcqPhase (spec §4.3/§4.4).
func (d *Driver) PollReady() (AcqPhase, error) {
	buf, err := d.command(protocol.Command{Op: protocol.OpReadRegister, Sub: 0}, 4)
	if err != nil {
		return PhaseArming, err
	}
	switch {
	case buf[2] == protocol.AcqStateReady:
		return PhaseReadyToRead, nil
	case buf[2] == 0:
		return PhaseArming, nil
	case buf[2] < protocol.AcqStateReady:
		return PhaseWaiting, nil
	default:
		return PhaseTriggered, nil
	}
}

// ReadPayload issues BulkRead, returning the raw payload written into
// buf and the Acquisition metadata parsed from the preceding status
// packet (spec §4.3/§4.4 step 4).
func (d *Driver) ReadPayload(cfg state.BoardConfig, caps state.Caps, buf []byte) (Acquisition, error) {
	lanes := 40
	want := protocol.BulkPayloadLen(cfg.Length, lanes)
	if len(buf) != want {
		return Acquisition{}, fmt.Errorf("board %d: read buffer is %d bytes, need %d", d.Index, len(buf), want)
	}

	statusBuf, err := d.command(protocol.Command{Op: protocol.OpBulkRead, A: byte(cfg.Length), B: byte(cfg.Length >> 8)}, 4)
	if err != nil {
		return Acquisition{}, err
	}
	reply, err := protocol.DecodeStatusReply(protocol.OpBulkRead, d.nextSeq(), statusBuf)
	if err != nil {
		return Acquisition{}, err
	}
	if reply.AcqState < protocol.AcqStateReady {
		return Acquisition{}, fmt.Errorf("board %d: bulk read issued before ready (acqstate=%d)", d.Index, reply.AcqState)
	}

	if err := d.transport.ReadExact(buf); err != nil {
		return Acquisition{}, fmt.Errorf("board %d: bulk payload read: %w", d.Index, err)
	}

	meta := decodeAcquisitionMeta(reply, buf)
	return meta, nil
}

func decodeAcquisitionMeta(reply protocol.StatusReply, raw []byte) Acquisition {
	return Acquisition{
		Raw:                 raw,
		TriggerPhase:        int(reply.EventCounterLo & 0x1ff),
		SampleTriggeredMask: uint32(reply.EventCounterLo) & 0xfffff,
		EventTimeCounter:    uint32(reply.EventCounterLo),
	}
}

// SetPhase nudges a PLL's output clock phase by one quantum (spec
// §4.3/§4.5 step 6 via LvdsCalibrator).
func (d *Driver) SetPhase(pll, output int, dir int) error {
	_, err := d.command(protocol.Command{Op: protocol.OpPllPhase, Sub: byte(pll), A: byte(output), B: byte(dir)}, 4)
	return err
}

// ReadPhaseCounter issues ReadRegister for the forward (sub=12) or
// backward (sub=13) phase counter used by LvdsCalibrator (spec §4.5).
func (d *Driver) ReadPhaseCounter(backward bool) (protocol.RegisterWord, error) {
	sub := protocol.RegForwardPhaseCounter
	if backward {
		sub = protocol.RegBackwardPhaseCounter
	}
	buf, err := d.command(protocol.Command{Op: protocol.OpReadRegister, Sub: sub}, 4)
	if err != nil {
		return protocol.RegisterWord{}, err
	}
	return protocol.DecodeRegisterWord(buf)
}

// PllResetPending reports whether the board needs a PLL reset before
// the next arm (spec §7 PllLockLost).
func (d *Driver) PllResetPending() bool {
	return d.pllResetPend
}

func (d *Driver) emit(level diag.Level, msg string, fields map[string]any) {
	if d.bus == nil {
		return
	}
	d.bus.Emitf(fmt.Sprintf("board[%d]", d.Index), level, msg, fields)
}
