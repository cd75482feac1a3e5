package voltage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dwtoledo/bc250-governor/internal/config"
)

func samplePoints() []config.SafePoint {
	return []config.SafePoint{
		{FrequencyMHz: 350, VoltageMV: 570},
		{FrequencyMHz: 860, VoltageMV: 600},
		{FrequencyMHz: 1090, VoltageMV: 650},
		{FrequencyMHz: 2230, VoltageMV: 1050},
	}
}

func TestVoltage_BelowLowest(t *testing.T) {
	c := NewCurve(samplePoints())
	assert.EqualValues(t, 570, c.Voltage(300))
	assert.EqualValues(t, 570, c.Voltage(350))
}

func TestVoltage_AboveHighest(t *testing.T) {
	c := NewCurve(samplePoints())
	assert.EqualValues(t, 1050, c.Voltage(2500))
	assert.EqualValues(t, 1050, c.Voltage(2230))
}

func TestVoltage_Interpolates(t *testing.T) {
	c := NewCurve(samplePoints())
	// midpoint between (860,600) and (1090,650): frac = 115/230 = 0.5 -> 625.
	assert.EqualValues(t, 625, c.Voltage(975))
}

func TestVoltage_RoundsUp(t *testing.T) {
	points := []config.SafePoint{
		{FrequencyMHz: 0, VoltageMV: 100},
		{FrequencyMHz: 100, VoltageMV: 101},
	}
	c := NewCurve(points)
	// frac = 1/100, delta = 1 -> v = 100.01 -> ceil -> 101
	assert.EqualValues(t, 101, c.Voltage(1))
}

func TestVoltage_MonotonicNonDecreasing(t *testing.T) {
	c := NewCurve(samplePoints())
	prev := c.Voltage(0)
	for f := uint32(0); f <= 2600; f += 17 {
		v := c.Voltage(f)
		assert.GreaterOrEqual(t, v, prev)
		prev = v
	}
}

func TestVoltage_EqualsSafePointAtExactFrequency(t *testing.T) {
	c := NewCurve(samplePoints())
	for _, p := range samplePoints() {
		assert.EqualValues(t, p.VoltageMV, c.Voltage(p.FrequencyMHz))
	}
}
