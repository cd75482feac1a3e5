package thermal

import (
	"math"

	"github.com/dwtoledo/bc250-governor/internal/config"
)

// FanCurve is a pure, stateless piecewise-linear mapping from temperature to
// fan PWM percentage (spec.md §3, §4.6).
type FanCurve struct {
	points []config.FanPoint
}

// NewFanCurve builds a FanCurve from already-validated, ascending points.
func NewFanCurve(points []config.FanPoint) FanCurve {
	return FanCurve{points: points}
}

// PWMPercent returns the fan PWM percentage for a given temperature,
// clamping to the endpoints outside the configured range and interpolating
// linearly inside it.
func (f FanCurve) PWMPercent(tempC float32) uint8 {
	pts := f.points
	if len(pts) == 0 {
		return 0
	}
	if tempC <= pts[0].TempC {
		return pts[0].PWMPercent
	}
	last := pts[len(pts)-1]
	if tempC >= last.TempC {
		return last.PWMPercent
	}

	for i := 0; i < len(pts)-1; i++ {
		lo, hi := pts[i], pts[i+1]
		if tempC >= lo.TempC && tempC < hi.TempC {
			span := float64(hi.TempC - lo.TempC)
			frac := float64(tempC-lo.TempC) / span
			v := float64(lo.PWMPercent) + frac*float64(int(hi.PWMPercent)-int(lo.PWMPercent))
			return uint8(math.Round(v))
		}
	}
	return last.PWMPercent
}
