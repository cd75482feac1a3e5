package thermal

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dwtoledo/bc250-governor/internal/config"
)

func sampleFanPoints() []config.FanPoint {
	return []config.FanPoint{
		{TempC: 40, PWMPercent: 20},
		{TempC: 60, PWMPercent: 40},
		{TempC: 80, PWMPercent: 70},
		{TempC: 90, PWMPercent: 100},
	}
}

func TestFanCurve_ClampsBelowRange(t *testing.T) {
	c := NewFanCurve(sampleFanPoints())
	assert.EqualValues(t, 20, c.PWMPercent(10))
}

func TestFanCurve_ClampsAboveRange(t *testing.T) {
	c := NewFanCurve(sampleFanPoints())
	assert.EqualValues(t, 100, c.PWMPercent(120))
}

func TestFanCurve_Interpolates(t *testing.T) {
	c := NewFanCurve(sampleFanPoints())
	// midpoint between (60,40) and (80,70): 55.
	assert.EqualValues(t, 55, c.PWMPercent(70))
}
