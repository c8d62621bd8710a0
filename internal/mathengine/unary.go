package mathengine

import "math"

func unaryOp(op Operator, x []float64) ([]float64, error) {
	out := make([]float64, len(x))
	for i, v := range x {
		switch op {
		case OpAbs:
			out[i] = math.Abs(v)
		case OpSquare:
			out[i] = v * v
		case OpSqrt:
			out[i] = math.Sqrt(math.Abs(v))
		case OpLog:
			if v <= 0 {
				out[i] = math.Inf(-1)
				continue
			}
			out[i] = math.Log(v)
		case OpExp:
			out[i] = math.Exp(v)
		}
	}
	return out, nil
}
