package services

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuantileLinear(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}

	tests := []struct {
		p    float64
		want float64
	}{
		{0, 1},
		{0.25, 1.75},
		{0.5, 2.5},
		{0.75, 3.25},
		{0.99, 3.97},
		{1, 4},
	}
	for _, tt := range tests {
		assert.InDeltaf(t, tt.want, quantile(sorted, tt.p), 1e-9, "quantile(%v)", tt.p)
	}
}

func TestQuantileEdgeCases(t *testing.T) {
	assert.True(t, math.IsNaN(quantile(nil, 0.5)))
	assert.Equal(t, 7.0, quantile([]float64{7}, 0.99))
}

func TestMedianDoesNotReorderInput(t *testing.T) {
	in := []float64{5, 1, 3}
	m, ok := median(in)
	assert.True(t, ok)
	assert.Equal(t, 3.0, m)
	assert.Equal(t, []float64{5, 1, 3}, in)

	_, ok = median(nil)
	assert.False(t, ok)
}

func TestStddevSample(t *testing.T) {
	s, ok := stddev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.True(t, ok)
	assert.InDelta(t, 2.138, s, 1e-3)
}

func TestPearson(t *testing.T) {
	r, ok := pearson([]float64{1, 2, 3}, []float64{2, 4, 6})
	assert.True(t, ok)
	assert.InDelta(t, 1.0, r, 1e-12)

	_, ok = pearson([]float64{1, 1, 1}, []float64{2, 4, 6})
	assert.False(t, ok, "constant series has no correlation")
}

func TestPtrDropsNonFinite(t *testing.T) {
	assert.Nil(t, ptr(math.Inf(1), true))
	assert.Nil(t, ptr(1, false))
	assert.Equal(t, 1.23, *ptr(1.2345, true))
}

func TestQuantileAcrossTheFloatRange(t *testing.T) {
	q := quantile([]float64{-math.MaxFloat64, math.MaxFloat64}, 0.5)
	assert.False(t, math.IsInf(q, 0))
	assert.InDelta(t, 0, q, 1)
}

func TestPtrKeepsHugeValuesFinite(t *testing.T) {
	p := ptr(1e307, true)
	if assert.NotNil(t, p) {
		assert.Equal(t, 1e307, *p)
	}
	assert.Nil(t, ptr(math.Inf(1), true))
	assert.Equal(t, math.MaxFloat64, finite(math.Inf(1)))
	assert.Equal(t, -math.MaxFloat64, finite(math.Inf(-1)))
	assert.Equal(t, 2.5, finite(2.5))
}
