package randengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSameSeedSameSequence(t *testing.T) {
	a, b := New(42), New(42)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Uint64(), b.Uint64())
	}
}

func TestDiscreteDistribution(t *testing.T) {
	e := New(1)
	for i := 0; i < 100; i++ {
		// zero weights are never drawn
		got := e.DiscreteDistribution([]float64{0, 3, 0, 1})
		assert.Contains(t, []int32{1, 3}, got)
	}
	assert.Equal(t, int32(0), e.DiscreteDistribution([]float64{1}))
}
