// Package ramp implements the Ramp Controller (spec.md §4.5): the policy
// engine that turns load ratios and burst confirmation into a target
// frequency, tracked as a fractional value to avoid rounding drift (spec.md
// §9, "Floating-point in ramp state").
package ramp

import (
	"time"

	"github.com/dwtoledo/bc250-governor/internal/config"
	"github.com/dwtoledo/bc250-governor/internal/voltage"
)

// Tier names the policy's output space, each selecting a ramp rate.
type Tier int

const (
	TierHold Tier = iota
	TierDown
	TierUpCrawl
	TierUpSlow
	TierUpMedium
	TierUpFast
	TierBurst
)

func (t Tier) String() string {
	switch t {
	case TierHold:
		return "hold"
	case TierDown:
		return "down"
	case TierUpCrawl:
		return "up-crawl"
	case TierUpSlow:
		return "up-slow"
	case TierUpMedium:
		return "up-medium"
	case TierUpFast:
		return "up-fast"
	case TierBurst:
		return "burst"
	default:
		return "unknown"
	}
}

// sanityCeilingMS is the elapsed-time clamp for a stalled loop (spec.md §4.5
// edge cases).
const sanityCeilingMS = 1000

// Thresholds mirrors config.LoadTarget; kept separate so the controller
// doesn't import the whole Config.
type Thresholds struct {
	Upper, Medium, Slow, Crawl, Lower float64
}

// Rates mirrors config.RampRates, in MHz per millisecond.
type Rates struct {
	Burst, Up, UpMedium, UpSlow, UpCrawl, Down float64
}

// Decision is what one Tick produces: the tier chosen, the updated fractional
// frequency, its rounded projection, and the voltage the curve maps it to.
type Decision struct {
	Tier          Tier
	CurrentFreq   float64
	TargetFreqMHz uint32
	VoltageMV     uint32
}

// Controller holds the fractional tracking state across ticks.
type Controller struct {
	thresholds Thresholds
	rates      Rates
	burstAfter uint32
	minFreq    float64
	maxFreq    float64
	curve      voltage.Curve

	currentFreq           float64
	consecutiveHighSample uint32
	inBurst               bool
}

// New builds a Controller starting at startFreqMHz (typically the last
// committed frequency, or the lowest safe point at cold start).
func New(th Thresholds, rates Rates, burstSamples uint32, minFreq, maxFreq uint32, curve voltage.Curve, startFreqMHz uint32) *Controller {
	return &Controller{
		thresholds:  th,
		rates:       rates,
		burstAfter:  burstSamples,
		minFreq:     float64(minFreq),
		maxFreq:     float64(maxFreq),
		curve:       curve,
		currentFreq: float64(startFreqMHz),
	}
}

// Tick runs one policy evaluation. performanceLock forces Burst to max
// regardless of load (spec.md §4.5 rule 1); emergencyOverride (set by the
// Thermal Supervisor) is handled by the caller forcing minFreq directly - see
// orchestrator.
func (c *Controller) Tick(fastRatio, slowRatio float64, elapsed time.Duration, performanceLock bool) Decision {
	elapsedMS := float64(elapsed) / float64(time.Millisecond)
	if elapsedMS > sanityCeilingMS {
		elapsedMS = sanityCeilingMS
	}

	tier := c.selectTier(fastRatio, slowRatio, performanceLock)

	var target float64
	if tier == TierBurst && performanceLock {
		target = c.maxFreq
	} else {
		delta := c.rate(tier) * elapsedMS
		target = clamp(c.currentFreq+delta, c.minFreq, c.maxFreq)
	}
	c.currentFreq = target

	rounded := uint32(roundHalfAwayFromZero(c.currentFreq))
	return Decision{
		Tier:          tier,
		CurrentFreq:   c.currentFreq,
		TargetFreqMHz: rounded,
		VoltageMV:     c.curve.Voltage(rounded),
	}
}

// ForceFreq overrides the fractional tracking value directly, used by the
// Thermal Supervisor's emergency override to drive to minFreq without waiting
// for the down ramp rate (spec.md §4.6 step 2, "force ... toward min_freq").
func (c *Controller) ForceFreq(freqMHz uint32) Decision {
	c.currentFreq = clamp(float64(freqMHz), c.minFreq, c.maxFreq)
	rounded := uint32(roundHalfAwayFromZero(c.currentFreq))
	return Decision{
		Tier:          TierDown,
		CurrentFreq:   c.currentFreq,
		TargetFreqMHz: rounded,
		VoltageMV:     c.curve.Voltage(rounded),
	}
}

func (c *Controller) selectTier(fastRatio, slowRatio float64, performanceLock bool) Tier {
	if performanceLock {
		c.inBurst = true
		c.consecutiveHighSample = 0
		return TierBurst
	}

	if fastRatio >= c.thresholds.Upper {
		c.consecutiveHighSample++
	} else {
		c.consecutiveHighSample = 0
		c.inBurst = false
	}

	if c.inBurst && fastRatio >= c.thresholds.Upper {
		return TierBurst
	}
	if c.consecutiveHighSample >= c.burstAfter && fastRatio >= c.thresholds.Upper {
		c.inBurst = true
		return TierBurst
	}

	switch {
	case fastRatio >= c.thresholds.Upper:
		return TierUpFast
	case fastRatio >= c.thresholds.Medium:
		return TierUpMedium
	case fastRatio >= c.thresholds.Slow:
		return TierUpSlow
	case fastRatio >= c.thresholds.Crawl:
		return TierUpCrawl
	}

	if slowRatio < c.thresholds.Lower {
		return TierDown
	}
	return TierHold
}

func (c *Controller) rate(t Tier) float64 {
	switch t {
	case TierBurst:
		return c.rates.Burst
	case TierUpFast:
		return c.rates.Up
	case TierUpMedium:
		return c.rates.UpMedium
	case TierUpSlow:
		return c.rates.UpSlow
	case TierUpCrawl:
		return c.rates.UpCrawl
	case TierDown:
		return -c.rates.Down
	default: // TierHold
		return 0
	}
}

// CurrentFreqMHz returns the controller's fractional frequency, for metrics
// and tests.
func (c *Controller) CurrentFreqMHz() float64 { return c.currentFreq }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func roundHalfAwayFromZero(v float64) float64 {
	if v >= 0 {
		return float64(int64(v + 0.5))
	}
	return float64(int64(v - 0.5))
}

// ConfigThresholds and ConfigRates adapt config.Config's nested structs into
// this package's flatter Thresholds/Rates, so callers outside config don't
// need to reach into config.LoadTarget/config.RampRates directly.
func ConfigThresholds(lt config.LoadTarget) Thresholds {
	return Thresholds{Upper: lt.Upper, Medium: lt.Medium, Slow: lt.Slow, Crawl: lt.Crawl, Lower: lt.Lower}
}

func ConfigRates(rr config.RampRates) Rates {
	return Rates{Burst: rr.Burst, Up: rr.Up, UpMedium: rr.UpMedium, UpSlow: rr.UpSlow, UpCrawl: rr.UpCrawl, Down: rr.Down}
}
