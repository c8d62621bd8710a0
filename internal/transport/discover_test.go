package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderBySuffix(t *testing.T) {
	in := []Endpoint{
		{Description: "HAASOSCOPE_2"},
		{Description: "HAASOSCOPE_0"},
		{Description: "HAASOSCOPE_1"},
	}
	res := Order(in)
	assert.False(t, res.UnstableOrdering)
	assert.Equal(t, []string{"HAASOSCOPE_0", "HAASOSCOPE_1", "HAASOSCOPE_2"}, descriptions(res.Endpoints))
}

func TestOrderFallsBackWhenSuffixMissing(t *testing.T) {
	in := []Endpoint{
		{Description: "board-b"},
		{Description: "board-a"},
	}
	res := Order(in)
	assert.True(t, res.UnstableOrdering)
	assert.Equal(t, []string{"board-a", "board-b"}, descriptions(res.Endpoints))
}

func TestOrderFallsBackOnDuplicateSuffix(t *testing.T) {
	in := []Endpoint{
		{Description: "HAASOSCOPE_1"},
		{Description: "ALT_1"},
	}
	res := Order(in)
	assert.True(t, res.UnstableOrdering)
}

func descriptions(eps []Endpoint) []string {
	out := make([]string, len(eps))
	for i, e := range eps {
		out[i] = e.Description
	}
	return out
}
