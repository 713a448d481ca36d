package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func repeatLabels(counts map[int]int) []int {
	var labels []int
	for l := 0; l < 10; l++ {
		for range counts[l] {
			labels = append(labels, l)
		}
	}
	return labels
}

func TestNewDistribution(t *testing.T) {
	perSample := []int{2, 0, 2, 1, 2, 0}
	d := NewDistribution(perSample)
	assert.Equal(t, []int{0, 1, 2}, d.Labels)
	assert.Equal(t, []int{2, 1, 3}, d.Counts)
	assert.Equal(t, perSample, d.PerSample)
	assert.Equal(t, 6, d.Total())
	assert.Equal(t, 3, d.NumClasses())
	assert.Equal(t, 3, d.Count(2))
	assert.Equal(t, 0, d.Count(7))

	sum := 0
	for _, c := range d.Counts {
		sum += c
	}
	assert.Equal(t, len(d.PerSample), sum)
	assert.Len(t, d.Counts, len(d.Labels))

	empty := NewDistribution(nil)
	assert.Empty(t, empty.Labels)
	assert.Zero(t, empty.Total())
}

func TestBalancedWeights(t *testing.T) {
	weights, err := BalancedWeights(repeatLabels(map[int]int{0: 700, 1: 300}))
	require.NoError(t, err)
	assert.InDelta(t, 1000.0/(2*700), weights[0], 1e-12)
	assert.InDelta(t, 1000.0/(2*300), weights[1], 1e-12)
	assert.Greater(t, weights[1], weights[0])

	_, err = BalancedWeights(nil)
	require.ErrorIs(t, err, ErrEmpty)
}

func TestImbalance(t *testing.T) {
	score, err := Imbalance([]int{700, 300})
	require.NoError(t, err)
	assert.InDelta(t, 0.8813, score, 1e-4)

	score, err = Imbalance([]int{250, 250, 250, 250})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-12)

	prev := 1.0
	for _, minority := range []int{400, 100, 10, 1} {
		score, err := Imbalance([]int{1000, minority})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.Less(t, score, prev)
		prev = score
	}
	assert.Less(t, prev, 0.02)

	_, err = Imbalance([]int{10})
	require.ErrorIs(t, err, ErrDegenerate)
	_, err = Imbalance([]int{10, 0})
	require.ErrorIs(t, err, ErrDegenerate)
	_, err = Imbalance(nil)
	require.ErrorIs(t, err, ErrEmpty)
	_, err = Imbalance([]int{1, -1})
	require.Error(t, err)
}

func TestSampleEntropy(t *testing.T) {
	raw, normalized := SampleEntropy([]float32{1, 1, 1, 1})
	assert.Zero(t, raw)
	assert.Zero(t, normalized)

	raw, normalized = SampleEntropy([]float32{0, 1, 0, 1})
	assert.InDelta(t, math.Ln2, raw, 1e-12)
	assert.InDelta(t, 1.0, normalized, 1e-12)

	raw, normalized = SampleEntropy([]float32{0, 0, 0, 1})
	assert.InDelta(t, -(0.75*math.Log(0.75) + 0.25*math.Log(0.25)), raw, 1e-12)
	assert.Less(t, normalized, 1.0)

	raw, _ = SampleEntropy(nil)
	assert.Zero(t, raw)
}

func TestSummarize(t *testing.T) {
	summary, err := Summarize([][]float32{
		{1, 1, 1, 1},
		{0, 1, 0, 1},
		{0, 1, 2, 3},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Samples)
	assert.Equal(t, 1, summary.ConstantSamples)
	assert.InDelta(t, 0.0, summary.Raw.Min, 1e-12)
	assert.InDelta(t, math.Log(4), summary.Raw.Max, 1e-12)
	assert.InDelta(t, (math.Ln2+math.Log(4))/3, summary.Raw.Avg, 1e-12)
	assert.InDelta(t, 1.0, summary.Normalized.Max, 1e-12)
	assert.InDelta(t, 2.0/3.0, summary.Normalized.Avg, 1e-12)

	_, err = Summarize(nil)
	require.ErrorIs(t, err, ErrEmpty)
}
