package loadest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimator_PrimesIndependently(t *testing.T) {
	e := New(4, 8)
	for i := 0; i < 4; i++ {
		e.Push(true)
	}
	assert.True(t, e.FastPrimed())
	assert.False(t, e.SlowPrimed())

	for i := 0; i < 4; i++ {
		e.Push(true)
	}
	assert.True(t, e.SlowPrimed())
}

func TestEstimator_RatiosMatchExactFraction(t *testing.T) {
	e := New(4, 4)
	fast, slow := e.Push(true)
	assert.InDelta(t, 0.25, fast, 1e-9)
	assert.InDelta(t, 0.25, slow, 1e-9)
}
