// Package mathengine implements named math channels computed over
// acquired waveforms: arithmetic, temporal, cross-shot tracking, and
// zero-phase IIR filter operators (spec §4.10). Every operator works
// on pre-resample source waveforms; resampling to the display rate
// happens after evaluation, outside this package.
package mathengine

import "fmt"

// Operator names every math-channel operation the engine supports.
type Operator string

const (
	OpAdd    Operator = "add"
	OpSub    Operator = "sub"
	OpMul    Operator = "mul"
	OpDiv    Operator = "div"
	OpAbs    Operator = "abs"
	OpSquare Operator = "square"
	OpSqrt   Operator = "sqrt"
	OpLog    Operator = "log"
	OpExp    Operator = "exp"

	OpDifferentiate Operator = "differentiate"
	OpIntegrate     Operator = "integrate"
	OpSmooth        Operator = "smooth"
	OpEnvelope      Operator = "envelope"
	OpTimeShift     Operator = "time_shift"

	OpMinTracker Operator = "min_tracker"
	OpMaxTracker Operator = "max_tracker"

	OpButterLP Operator = "butter_lp"
	OpButterHP Operator = "butter_hp"
	OpButterBP Operator = "butter_bp"
	OpButterBS Operator = "butter_bs"
	OpCheby1LP Operator = "cheby1_lp"
	OpCheby1HP Operator = "cheby1_hp"
	OpCheby1BP Operator = "cheby1_bp"
	OpCheby1BS Operator = "cheby1_bs"
)

// Channel is one named math channel's definition.
type Channel struct {
	Name     string
	Operator Operator
	Inputs   []string // source channel names; arithmetic ops take 2, most others take 1
	Params   Params
}

// Params bundles every operator's optional arguments; only the fields
// relevant to Channel.Operator are read.
type Params struct {
	SmoothWindow int
	TimeShiftSec float64
	SampleRateHz float64
	Order        int
	CornerHz     float64
	CornerHighHz float64 // second corner for bandpass/bandstop
	RippleDB     float64 // cheby1 passband ripple, defaults to 0.5dB
}

// Tracker holds min/max-tracker state across successive acquisition
// shots (spec §4.10: "across successive shots").
type Tracker struct {
	min []float64
	max []float64
}

// Evaluate computes one channel given its resolved input waveforms (in
// the order of Channel.Inputs) and, for the tracking operators, the
// Tracker carrying state from prior shots.
func Evaluate(ch Channel, inputs [][]float64, tracker *Tracker) ([]float64, error) {
	switch ch.Operator {
	case OpAdd, OpSub, OpMul, OpDiv:
		if len(inputs) != 2 {
			return nil, fmt.Errorf("mathengine: %s requires 2 inputs, got %d", ch.Operator, len(inputs))
		}
		return binaryOp(ch.Operator, inputs[0], inputs[1])
	case OpAbs, OpSquare, OpSqrt, OpLog, OpExp:
		if len(inputs) != 1 {
			return nil, fmt.Errorf("mathengine: %s requires 1 input, got %d", ch.Operator, len(inputs))
		}
		return unaryOp(ch.Operator, inputs[0])
	case OpDifferentiate:
		return differentiate(single(inputs)), nil
	case OpIntegrate:
		return integrate(single(inputs)), nil
	case OpSmooth:
		return smooth(single(inputs), ch.Params.SmoothWindow), nil
	case OpEnvelope:
		return envelope(single(inputs)), nil
	case OpTimeShift:
		return timeShift(single(inputs), ch.Params.TimeShiftSec, ch.Params.SampleRateHz), nil
	case OpMinTracker:
		return tracker.applyMin(single(inputs)), nil
	case OpMaxTracker:
		return tracker.applyMax(single(inputs)), nil
	case OpButterLP, OpButterHP, OpButterBP, OpButterBS,
		OpCheby1LP, OpCheby1HP, OpCheby1BP, OpCheby1BS:
		return applyFilter(ch.Operator, single(inputs), ch.Params)
	default:
		return nil, fmt.Errorf("mathengine: unknown operator %q", ch.Operator)
	}
}

func single(inputs [][]float64) []float64 {
	if len(inputs) == 0 {
		return nil
	}
	return inputs[0]
}

func binaryOp(op Operator, a, b []float64) ([]float64, error) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		switch op {
		case OpAdd:
			out[i] = a[i] + b[i]
		case OpSub:
			out[i] = a[i] - b[i]
		case OpMul:
			out[i] = a[i] * b[i]
		case OpDiv:
			if b[i] == 0 {
				out[i] = 0
				continue
			}
			out[i] = a[i] / b[i]
		}
	}
	return out, nil
}

// applyMin/applyMax are defined in tracking.go.
