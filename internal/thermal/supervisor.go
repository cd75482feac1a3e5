// Package thermal is the Thermal Supervisor (spec.md §4.6): an independent
// loop reading temperatures, applying the fan curve, and enforcing the
// emergency latch. There is no separate warning threshold.
package thermal

import (
	"context"
	"sync/atomic"

	"github.com/avast/retry-go"

	"github.com/dwtoledo/bc250-governor/internal/hwmon"
	"github.com/dwtoledo/bc250-governor/internal/log"
)

// State mirrors spec.md §3's ThermalState.
type State struct {
	LastTempC      float32
	LastFanPercent uint8
	InEmergency    bool
}

// Sensors abstracts the hwmon reads a tick needs, so Supervisor can be
// tested without real sysfs files.
type Sensors interface {
	ReadGPUEdgeTempC() (float32, error)
	ReadCPUPackageTempC() (float32, bool, error) // ok=false if not wired
}

// FanActuator abstracts the one fan this governor drives.
type FanActuator interface {
	EnsureManual() error
	SetPercent(percent uint8) error
	Restore() error
}

// EmergencyFlag is the shared atomic the control loop polls each tick
// (spec.md §5).
type EmergencyFlag struct {
	v atomic.Bool
}

func (f *EmergencyFlag) Set(on bool) { f.v.Store(on) }
func (f *EmergencyFlag) Get() bool   { return f.v.Load() }

// Supervisor owns ThermalState and ticks at MonitorInterval.
type Supervisor struct {
	sensors Sensors
	fan     FanActuator
	curve   FanCurve

	maxSafeTempC   float32
	emergencyTempC float32
	hysteresisC    float32
	fanEnabled     bool

	state         State
	emergencyFlag *EmergencyFlag
	failureStreak int
}

// Config bundles the thermal tuning knobs a Supervisor needs.
type Config struct {
	MaxSafeTempC   float32
	EmergencyTempC float32
	HysteresisC    float32 // spec.md default ~5 C
	FanEnabled     bool
}

func NewSupervisor(sensors Sensors, fan FanActuator, curve FanCurve, cfg Config, flag *EmergencyFlag) *Supervisor {
	hyst := cfg.HysteresisC
	if hyst == 0 {
		hyst = 5
	}
	return &Supervisor{
		sensors:        sensors,
		fan:            fan,
		curve:          curve,
		maxSafeTempC:   cfg.MaxSafeTempC,
		emergencyTempC: cfg.EmergencyTempC,
		hysteresisC:    hyst,
		fanEnabled:     cfg.FanEnabled,
		emergencyFlag:  flag,
	}
}

// Tick performs one thermal evaluation (spec.md §4.6 steps 1-4). Runtime
// hwmon read failures are non-fatal: logged once per failure burst and the
// tick is skipped, per spec.md §7.
func (s *Supervisor) Tick(ctx context.Context) {
	temp, err := s.readTempWithRetry(ctx)
	if err != nil {
		s.failureStreak++
		if s.failureStreak == 1 {
			log.Logger.Warnw("thermal sensor read failed, skipping tick", "error", err)
		}
		return
	}
	s.failureStreak = 0
	s.state.LastTempC = temp

	if cpuTemp, ok, cerr := s.sensors.ReadCPUPackageTempC(); ok && cerr == nil {
		log.Logger.Debugw("cpu package temperature", "tempC", cpuTemp)
	}

	s.evaluateEmergency(temp)

	if !s.state.InEmergency && s.fanEnabled {
		s.applyFanCurve(temp)
	}
}

func (s *Supervisor) readTempWithRetry(ctx context.Context) (float32, error) {
	var temp float32
	err := retry.Do(
		func() error {
			t, err := s.sensors.ReadGPUEdgeTempC()
			if err != nil {
				return err
			}
			temp = t
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	return temp, err
}

func (s *Supervisor) evaluateEmergency(temp float32) {
	switch {
	case temp >= s.emergencyTempC:
		s.enterEmergency(temp)
	case s.state.InEmergency:
		if temp < s.maxSafeTempC-s.hysteresisC {
			s.clearEmergency()
		}
	}
}

func (s *Supervisor) enterEmergency(temp float32) {
	if !s.state.InEmergency {
		log.Logger.Errorw("thermal emergency: latching max fan and min frequency", "tempC", temp)
	}
	s.state.InEmergency = true
	if s.emergencyFlag != nil {
		s.emergencyFlag.Set(true)
	}
	if s.fanEnabled {
		if err := s.fan.EnsureManual(); err != nil {
			log.Logger.Warnw("failed to set fan manual mode during emergency", "error", err)
		}
		if err := s.fan.SetPercent(100); err != nil {
			log.Logger.Warnw("failed to set fan to 100% during emergency", "error", err)
		} else {
			s.state.LastFanPercent = 100
		}
	}
}

func (s *Supervisor) clearEmergency() {
	log.Logger.Infow("thermal emergency cleared", "tempC", s.state.LastTempC)
	s.state.InEmergency = false
	if s.emergencyFlag != nil {
		s.emergencyFlag.Set(false)
	}
}

func (s *Supervisor) applyFanCurve(temp float32) {
	pct := s.curve.PWMPercent(temp)
	if absDiffU8(pct, s.state.LastFanPercent) < 1 {
		return
	}
	if err := s.fan.EnsureManual(); err != nil {
		log.Logger.Warnw("failed to set fan manual mode", "error", err)
		return
	}
	if err := s.fan.SetPercent(pct); err != nil {
		log.Logger.Warnw("failed to write fan pwm", "error", err)
		return
	}
	s.state.LastFanPercent = pct
}

// State returns a snapshot of the supervisor's current state, for metrics.
func (s *Supervisor) State() State { return s.state }

// Shutdown restores the fan to the mode observed at startup.
func (s *Supervisor) Shutdown() error {
	if !s.fanEnabled {
		return nil
	}
	return s.fan.Restore()
}

func absDiffU8(a, b uint8) int {
	if a > b {
		return int(a) - int(b)
	}
	return int(b) - int(a)
}

// HwmonSensors adapts the real hwmon package onto the Sensors interface.
type HwmonSensors struct {
	GPUEdgeTempPath string
	CPUPackageTempPath string // empty if not discovered
}

func (h HwmonSensors) ReadGPUEdgeTempC() (float32, error) {
	return hwmon.ReadTempC(h.GPUEdgeTempPath)
}

func (h HwmonSensors) ReadCPUPackageTempC() (float32, bool, error) {
	if h.CPUPackageTempPath == "" {
		return 0, false, nil
	}
	t, err := hwmon.ReadTempC(h.CPUPackageTempPath)
	return t, true, err
}

// *hwmon.Fan satisfies FanActuator directly; this assertion documents the
// wiring point.
var _ FanActuator = (*hwmon.Fan)(nil)
