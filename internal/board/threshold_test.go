package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestThresholdCodesClampRange(t *testing.T) {
	upper, lower := ThresholdCodes(1000.0, 0, 0, DefaultHysteresisCodes, true)
	assert.Equal(t, CodeMax, upper)
	assert.LessOrEqual(t, lower, upper)

	upper, lower = ThresholdCodes(-1000.0, 0, 0, DefaultHysteresisCodes, true)
	assert.Equal(t, CodeMin, upper)
	assert.GreaterOrEqual(t, lower, CodeMin)
}

func TestThresholdCodesRisingOrdering(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		v := rapid.Float64Range(-0.5, 0.5).Draw(rt, "v")
		gain := rapid.Float64Range(0, 40).Draw(rt, "gain")
		upper, lower := ThresholdCodes(v, gain, 0, DefaultHysteresisCodes, true)
		assert.LessOrEqual(rt, lower, upper, "rising trigger's lower bound must not exceed upper")
	})
}
