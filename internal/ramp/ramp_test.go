package ramp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dwtoledo/bc250-governor/internal/config"
	"github.com/dwtoledo/bc250-governor/internal/voltage"
)

func testCurve() voltage.Curve {
	return voltage.NewCurve([]config.SafePoint{
		{FrequencyMHz: 350, VoltageMV: 570},
		{FrequencyMHz: 860, VoltageMV: 600},
		{FrequencyMHz: 1090, VoltageMV: 650},
		{FrequencyMHz: 2230, VoltageMV: 1050},
	})
}

func TestController_Idle256FalseRampsDown(t *testing.T) {
	th := Thresholds{Upper: 0.95, Medium: 0.8, Slow: 0.5, Crawl: 0.2, Lower: 0.1}
	rates := Rates{Down: 0.2}
	c := New(th, rates, 12, 350, 2230, testCurve(), 1500)

	tick := 3 * time.Millisecond
	for i := 0; i < 333; i++ {
		c.Tick(0, 0, tick, false)
	}
	// 333 ticks * 3ms * 0.2 MHz/ms = ~200 MHz down from 1500.
	assert.InDelta(t, 1300, c.CurrentFreqMHz(), 1.0)
}

func TestController_SustainedLoadBurstsAndCapsAtMax(t *testing.T) {
	th := Thresholds{Upper: 0.95, Medium: 0.8, Slow: 0.5, Crawl: 0.2, Lower: 0.1}
	rates := Rates{Burst: 1.23}
	c := New(th, rates, 12, 350, 2230, testCurve(), 350)

	tick := 3 * time.Millisecond
	var lastDecision Decision
	for i := 0; i < 333; i++ {
		lastDecision = c.Tick(1.0, 1.0, tick, false)
	}
	assert.Equal(t, TierBurst, lastDecision.Tier)
	assert.LessOrEqual(t, c.CurrentFreqMHz(), 2230.0)
}

func TestController_BurstRequiresConfirmation(t *testing.T) {
	th := Thresholds{Upper: 0.95, Medium: 0.8, Slow: 0.5, Crawl: 0.2, Lower: 0.1}
	rates := Rates{Burst: 10, Up: 1}
	c := New(th, rates, 12, 350, 2230, testCurve(), 350)

	tick := time.Millisecond
	var decisions []Decision
	for i := 0; i < 13; i++ {
		decisions = append(decisions, c.Tick(1.0, 1.0, tick, false))
	}
	// First 11 ticks (consecutive count 1..11) stay UpFast; burst engages once
	// consecutive_high_samples reaches burst-samples=12, i.e. on the 12th tick.
	for i := 0; i < 11; i++ {
		assert.Equal(t, TierUpFast, decisions[i].Tier, "tick %d", i)
	}
	assert.Equal(t, TierBurst, decisions[11].Tier)
	assert.Equal(t, TierBurst, decisions[12].Tier)
}

func TestController_BurstExitsOnFirstDrop(t *testing.T) {
	th := Thresholds{Upper: 0.95, Medium: 0.8, Slow: 0.5, Crawl: 0.2, Lower: 0.1}
	rates := Rates{Burst: 10, Up: 1}
	c := New(th, rates, 2, 350, 2230, testCurve(), 350)

	tick := time.Millisecond
	c.Tick(1.0, 1.0, tick, false)
	c.Tick(1.0, 1.0, tick, false)
	d := c.Tick(1.0, 1.0, tick, false)
	assert.Equal(t, TierBurst, d.Tier)

	d = c.Tick(0.5, 1.0, tick, false)
	assert.Equal(t, TierUpSlow, d.Tier)
}

func TestController_PerformanceLockForcesMax(t *testing.T) {
	th := Thresholds{Upper: 0.95, Medium: 0.8, Slow: 0.5, Crawl: 0.2, Lower: 0.1}
	rates := Rates{Burst: 1}
	c := New(th, rates, 12, 350, 2230, testCurve(), 350)

	d := c.Tick(0, 0, time.Millisecond, true)
	assert.Equal(t, TierBurst, d.Tier)
	assert.EqualValues(t, 2230, d.TargetFreqMHz)
}

func TestController_StaysWithinBounds(t *testing.T) {
	th := Thresholds{Upper: 0.95, Medium: 0.8, Slow: 0.5, Crawl: 0.2, Lower: 0.1}
	rates := Rates{Burst: 1000, Up: 1000, Down: 1000}
	c := New(th, rates, 1, 350, 2230, testCurve(), 1000)

	for i := 0; i < 50; i++ {
		c.Tick(1.0, 1.0, time.Second, false)
		assert.GreaterOrEqual(t, c.CurrentFreqMHz(), 350.0)
		assert.LessOrEqual(t, c.CurrentFreqMHz(), 2230.0)
	}
	for i := 0; i < 50; i++ {
		c.Tick(0, 0, time.Second, false)
		assert.GreaterOrEqual(t, c.CurrentFreqMHz(), 350.0)
		assert.LessOrEqual(t, c.CurrentFreqMHz(), 2230.0)
	}
}

func TestController_ElapsedClampedToSanityCeiling(t *testing.T) {
	th := Thresholds{Upper: 2, Medium: 2, Slow: 2, Crawl: 2, Lower: 1.5} // never triggers up tiers; always Down
	rates := Rates{Down: 1}
	c := New(th, rates, 1, 350, 2230, testCurve(), 2230)

	// A 10s elapsed stall must clamp to the 1s sanity ceiling (spec.md §4.5).
	c.Tick(0, 0, 10*time.Second, false)
	assert.InDelta(t, 1230, c.CurrentFreqMHz(), 1.0)
}
