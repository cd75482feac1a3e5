// Package telemetry registers the governor's Prometheus gauges. This is
// read-only observability (SPEC_FULL.md §11); nothing in this package can
// change governor behavior.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles every gauge/counter the control and thermal loops update.
type Registry struct {
	CurrentFreqMHz     prometheus.Gauge
	CommittedVoltageMV prometheus.Gauge
	FastLoadRatio      prometheus.Gauge
	SlowLoadRatio      prometheus.Gauge
	GPUEdgeTempC       prometheus.Gauge
	FanPWMPercent      prometheus.Gauge
	ThermalEmergencies prometheus.Counter
	SysfsCommits       prometheus.Counter
}

// NewRegistry builds and registers every metric on reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		CurrentFreqMHz: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bc250_governor", Name: "current_freq_mhz",
			Help: "Current tracked GPU core frequency in MHz.",
		}),
		CommittedVoltageMV: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bc250_governor", Name: "committed_voltage_mv",
			Help: "Last committed GPU core voltage in millivolts.",
		}),
		FastLoadRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bc250_governor", Name: "fast_load_ratio",
			Help: "Fraction of busy samples in the fast (ramp-up) window.",
		}),
		SlowLoadRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bc250_governor", Name: "slow_load_ratio",
			Help: "Fraction of busy samples in the slow (ramp-down) window.",
		}),
		GPUEdgeTempC: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bc250_governor", Name: "gpu_edge_temp_c",
			Help: "Last observed GPU edge temperature in Celsius.",
		}),
		FanPWMPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bc250_governor", Name: "fan_pwm_percent",
			Help: "Last committed fan PWM percentage.",
		}),
		ThermalEmergencies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bc250_governor", Name: "thermal_emergencies_total",
			Help: "Count of thermal emergency latch entries.",
		}),
		SysfsCommits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bc250_governor", Name: "sysfs_commits_total",
			Help: "Count of clock/voltage commits written to pp_od_clk_voltage.",
		}),
	}

	reg.MustRegister(
		r.CurrentFreqMHz, r.CommittedVoltageMV, r.FastLoadRatio, r.SlowLoadRatio,
		r.GPUEdgeTempC, r.FanPWMPercent, r.ThermalEmergencies, r.SysfsCommits,
	)
	return r
}
