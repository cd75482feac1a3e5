// Package voltage implements the piecewise-linear safe-point interpolator
// (spec.md §4.3): a pure function from target frequency to a safe voltage.
package voltage

import (
	"math"

	"github.com/dwtoledo/bc250-governor/internal/config"
)

// Curve wraps an ordered, validated set of safe points.
type Curve struct {
	points []config.SafePoint
}

// NewCurve builds a Curve from already-validated, ascending safe points.
// config.Config.Validate is responsible for the ordering invariants; NewCurve
// trusts its caller.
func NewCurve(points []config.SafePoint) Curve {
	return Curve{points: points}
}

// Voltage returns the safe voltage, in millivolts, for a target frequency in
// MHz. Below the lowest safe point it clamps to the lowest voltage; above the
// highest it clamps to the highest. Inside a segment it interpolates linearly
// and rounds up, biasing safety toward the higher voltage.
func (c Curve) Voltage(freqMHz uint32) uint32 {
	pts := c.points
	if freqMHz <= pts[0].FrequencyMHz {
		return pts[0].VoltageMV
	}
	last := pts[len(pts)-1]
	if freqMHz >= last.FrequencyMHz {
		return last.VoltageMV
	}

	for i := 0; i < len(pts)-1; i++ {
		lo, hi := pts[i], pts[i+1]
		if freqMHz >= lo.FrequencyMHz && freqMHz < hi.FrequencyMHz {
			span := float64(hi.FrequencyMHz - lo.FrequencyMHz)
			frac := float64(freqMHz-lo.FrequencyMHz) / span
			v := float64(lo.VoltageMV) + frac*float64(hi.VoltageMV-lo.VoltageMV)
			return uint32(math.Ceil(v))
		}
	}
	// Unreachable given the clamps above and pts being strictly increasing.
	return last.VoltageMV
}
