package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const validTOML = `
safe-points = [
  { frequency = 350, voltage = 570 },
  { frequency = 860, voltage = 600 },
  { frequency = 1090, voltage = 650 },
  { frequency = 2230, voltage = 1050 },
]

[timing]
burst-samples = 12
ramp-up-samples = 64
ramp-down-samples = 256
intervals = { sample = 3000, adjust = 8000, finetune = 20000 }
ramp-rates = { burst = 1.23, up = 0.5, up-medium = 0.3, up-slow = 0.2, up-crawl = 0.1, down = 0.2 }

[frequency-thresholds]
adjust = 100
finetune = 10

[load-target]
upper = 0.95
medium = 0.8
slow = 0.5
crawl = 0.2
lower = 0.1

[performance-mode]
enabled = true
control_file = "/tmp/bc250-max-performance"
check_interval = 500

[thermal]
monitor_interval = 1000
max_safe_temp = 85
emergency_temp = 95
fan_control_index = 0

[thermal.fan-control]
enabled = true
curve = [[40, 20], [60, 40], [80, 70], [90, 100]]
`

func writeTOML(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadAndValidate_Valid(t *testing.T) {
	path := writeTOML(t, validTOML)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.EqualValues(t, 350, cfg.MinFreqMHz())
	require.EqualValues(t, 2230, cfg.MaxFreqMHz())
	require.Len(t, cfg.FanCurvePoints, 4)
}

func TestValidate_RejectsTooFewSafePoints(t *testing.T) {
	cfg := &Config{SafePoints: []SafePoint{{FrequencyMHz: 100, VoltageMV: 600}}}
	err := cfg.Validate()
	require.Error(t, err)
}

func TestValidate_RejectsNonIncreasingFrequency(t *testing.T) {
	cfg := &Config{SafePoints: []SafePoint{
		{FrequencyMHz: 500, VoltageMV: 600},
		{FrequencyMHz: 500, VoltageMV: 650},
	}}
	err := cfg.Validate()
	require.Error(t, err)
}

func TestValidate_RejectsDecreasingVoltage(t *testing.T) {
	cfg := &Config{SafePoints: []SafePoint{
		{FrequencyMHz: 500, VoltageMV: 700},
		{FrequencyMHz: 600, VoltageMV: 650},
	}}
	err := cfg.Validate()
	require.Error(t, err)
}

func TestValidate_RejectsDisorderedFanCurve(t *testing.T) {
	path := writeTOML(t, validTOML)
	cfg, err := Load(path)
	require.NoError(t, err)
	cfg.Thermal.FanControl.Curve = [][]float64{{60, 40}, {40, 20}}
	err = cfg.Validate()
	require.Error(t, err)
}

func TestValidate_RejectsEmergencyNotAboveMaxSafe(t *testing.T) {
	path := writeTOML(t, validTOML)
	cfg, err := Load(path)
	require.NoError(t, err)
	cfg.Thermal.EmergencyTempC = cfg.Thermal.MaxSafeTempC
	err = cfg.Validate()
	require.Error(t, err)
}
