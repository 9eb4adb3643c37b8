package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	assert.Nil(t, Summarize(nil))

	s := Summarize([]float64{12, 8, 10, 14, 6})
	require.NotNil(t, s)
	assert.Equal(t, 5, s.Samples)
	assert.Equal(t, 10.0, s.Mean)
	assert.Equal(t, 10.0, s.Median)
	assert.Equal(t, 13.2, s.P90)
	assert.Equal(t, 14.0, s.Max)
}

func TestSummarizeDoesNotReorderInput(t *testing.T) {
	in := []float64{3, 1, 2}
	Summarize(in)
	assert.Equal(t, []float64{3, 1, 2}, in)
}

func TestPercentile(t *testing.T) {
	values := []float64{1, 2, 3, 4}
	assert.Equal(t, 0.0, Percentile(nil, 50))
	assert.Equal(t, 1.0, Percentile(values, -5))
	assert.Equal(t, 4.0, Percentile(values, 150))
	assert.InDelta(t, 2.5, Percentile(values, 50), 1e-9)
	assert.Equal(t, 7.0, Percentile([]float64{7}, 90))
}
