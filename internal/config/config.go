// Package config loads and validates the governor's TOML configuration,
// mirroring the shape of gpud's pkg/config: a Config struct, a Load
// constructor, and a Validate method that returns errs.ErrConfigInvalid.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/dwtoledo/bc250-governor/internal/errs"
)

// SafePoint is an (frequency, voltage) pair known stable on this hardware.
type SafePoint struct {
	FrequencyMHz uint32 `mapstructure:"frequency"`
	VoltageMV    uint32 `mapstructure:"voltage"`
}

type Intervals struct {
	SampleUS   uint64 `mapstructure:"sample"`
	AdjustUS   uint64 `mapstructure:"adjust"`
	FinetuneUS uint64 `mapstructure:"finetune"`
}

type RampRates struct {
	Burst    float64 `mapstructure:"burst"`
	Up       float64 `mapstructure:"up"`
	UpMedium float64 `mapstructure:"up-medium"`
	UpSlow   float64 `mapstructure:"up-slow"`
	UpCrawl  float64 `mapstructure:"up-crawl"`
	Down     float64 `mapstructure:"down"`
}

type Timing struct {
	BurstSamples    uint32    `mapstructure:"burst-samples"`
	RampUpSamples   uint32    `mapstructure:"ramp-up-samples"`
	RampDownSamples uint32    `mapstructure:"ramp-down-samples"`
	Intervals       Intervals `mapstructure:"intervals"`
	RampRates       RampRates `mapstructure:"ramp-rates"`
}

type FrequencyThresholds struct {
	AdjustMHz   uint32 `mapstructure:"adjust"`
	FinetuneMHz uint32 `mapstructure:"finetune"`
}

type LoadTarget struct {
	Upper  float64 `mapstructure:"upper"`
	Medium float64 `mapstructure:"medium"`
	Slow   float64 `mapstructure:"slow"`
	Crawl  float64 `mapstructure:"crawl"`
	Lower  float64 `mapstructure:"lower"`
}

type PerformanceMode struct {
	Enabled       bool   `mapstructure:"enabled"`
	ControlFile   string `mapstructure:"control_file"`
	CheckInterval uint64 `mapstructure:"check_interval"`
}

type FanPoint struct {
	TempC      float32
	PWMPercent uint8
}

type FanControl struct {
	Enabled bool       `mapstructure:"enabled"`
	Curve   [][]float64 `mapstructure:"curve"`
}

type Thermal struct {
	MonitorIntervalMS uint64     `mapstructure:"monitor_interval"`
	MaxSafeTempC      float32    `mapstructure:"max_safe_temp"`
	EmergencyTempC    float32    `mapstructure:"emergency_temp"`
	FanControlIndex   uint32     `mapstructure:"fan_control_index"`
	FanControl        FanControl `mapstructure:"fan-control"`
}

// Telemetry is an addition beyond spec.md: an optional, read-only HTTP
// surface for health and Prometheus metrics, bound to Listen (loopback
// 127.0.0.1:9250 by default; other addresses are accepted). It never
// accepts an actuation request; the sentinel file remains the sole
// out-of-band control surface (see SPEC_FULL.md §11).
type Telemetry struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

type Config struct {
	SafePoints          []SafePoint         `mapstructure:"safe-points"`
	Timing              Timing              `mapstructure:"timing"`
	FrequencyThresholds FrequencyThresholds `mapstructure:"frequency-thresholds"`
	LoadTarget          LoadTarget          `mapstructure:"load-target"`
	PerformanceMode     PerformanceMode     `mapstructure:"performance-mode"`
	Thermal             Thermal             `mapstructure:"thermal"`
	Telemetry           Telemetry           `mapstructure:"telemetry"`

	// FanCurvePoints is the validated, sorted projection of
	// Thermal.FanControl.Curve, built at Validate time.
	FanCurvePoints []FanPoint `mapstructure:"-"`
}

// DefaultConfigPath is the default location, overridable by the first CLI
// positional argument.
const DefaultConfigPath = "/etc/bc250-governor/config.toml"

// Load reads and parses the TOML file at path without validating it -
// callers must call Validate before trusting the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", errs.ErrConfigInvalid, path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", errs.ErrConfigInvalid, path, err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("performance-mode.control_file", "/tmp/bc250-max-performance")
	v.SetDefault("performance-mode.check_interval", 500)
	v.SetDefault("thermal.monitor_interval", 1000)
	v.SetDefault("telemetry.listen", "127.0.0.1:9250")
}

// Validate checks every invariant spec.md places on the data model: safe
// points must be at least two, strictly increasing in frequency and
// non-decreasing in voltage; load thresholds ordered; fan curve strictly
// increasing in temperature. It also materializes FanCurvePoints.
func (c *Config) Validate() error {
	if len(c.SafePoints) < 2 {
		return fmt.Errorf("%w: need at least two safe-points, got %d", errs.ErrConfigInvalid, len(c.SafePoints))
	}
	for i := 1; i < len(c.SafePoints); i++ {
		prev, cur := c.SafePoints[i-1], c.SafePoints[i]
		if cur.FrequencyMHz <= prev.FrequencyMHz {
			return fmt.Errorf("%w: safe-points frequencies must be strictly increasing (index %d: %d <= %d)",
				errs.ErrConfigInvalid, i, cur.FrequencyMHz, prev.FrequencyMHz)
		}
		if cur.VoltageMV < prev.VoltageMV {
			return fmt.Errorf("%w: safe-points voltages must be non-decreasing (index %d: %d < %d)",
				errs.ErrConfigInvalid, i, cur.VoltageMV, prev.VoltageMV)
		}
	}

	lt := c.LoadTarget
	if !(lt.Upper >= lt.Medium && lt.Medium >= lt.Slow && lt.Slow >= lt.Crawl && lt.Crawl >= lt.Lower) {
		return fmt.Errorf("%w: load-target thresholds must satisfy upper >= medium >= slow >= crawl >= lower", errs.ErrConfigInvalid)
	}
	for name, v := range map[string]float64{"upper": lt.Upper, "medium": lt.Medium, "slow": lt.Slow, "crawl": lt.Crawl, "lower": lt.Lower} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: load-target.%s must be in [0,1], got %v", errs.ErrConfigInvalid, name, v)
		}
	}

	if c.Timing.RampUpSamples == 0 || c.Timing.RampDownSamples == 0 {
		return fmt.Errorf("%w: ramp-up-samples and ramp-down-samples must be non-zero", errs.ErrConfigInvalid)
	}

	pts, err := buildFanCurve(c.Thermal.FanControl.Curve)
	if err != nil {
		return err
	}
	c.FanCurvePoints = pts

	if c.Thermal.EmergencyTempC <= c.Thermal.MaxSafeTempC {
		return fmt.Errorf("%w: thermal.emergency_temp (%v) must exceed thermal.max_safe_temp (%v)",
			errs.ErrConfigInvalid, c.Thermal.EmergencyTempC, c.Thermal.MaxSafeTempC)
	}

	return nil
}

func buildFanCurve(raw [][]float64) ([]FanPoint, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	pts := make([]FanPoint, 0, len(raw))
	for i, pair := range raw {
		if len(pair) != 2 {
			return nil, fmt.Errorf("%w: thermal.fan-control.curve[%d] must be [temp, pwm_percent]", errs.ErrConfigInvalid, i)
		}
		pts = append(pts, FanPoint{TempC: float32(pair[0]), PWMPercent: uint8(pair[1])})
	}
	for i := 1; i < len(pts); i++ {
		if pts[i].TempC <= pts[i-1].TempC {
			return nil, fmt.Errorf("%w: thermal.fan-control.curve must be strictly increasing in temperature (index %d)", errs.ErrConfigInvalid, i)
		}
	}
	return pts, nil
}

// MinFreqMHz and MaxFreqMHz are the first and last safe-point frequencies;
// callers must only invoke these after Validate has succeeded.
func (c *Config) MinFreqMHz() uint32 { return c.SafePoints[0].FrequencyMHz }
func (c *Config) MaxFreqMHz() uint32 { return c.SafePoints[len(c.SafePoints)-1].FrequencyMHz }
