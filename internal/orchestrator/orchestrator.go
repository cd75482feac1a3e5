// Package orchestrator is the Main Orchestrator (spec.md §4.8): it composes
// every component, handles startup order, and restores safe defaults on
// exit.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dwtoledo/bc250-governor/internal/config"
	"github.com/dwtoledo/bc250-governor/internal/hwmon"
	"github.com/dwtoledo/bc250-governor/internal/httpapi"
	"github.com/dwtoledo/bc250-governor/internal/loadest"
	"github.com/dwtoledo/bc250-governor/internal/log"
	"github.com/dwtoledo/bc250-governor/internal/mmio"
	"github.com/dwtoledo/bc250-governor/internal/perflock"
	"github.com/dwtoledo/bc250-governor/internal/ramp"
	"github.com/dwtoledo/bc250-governor/internal/sysfs"
	"github.com/dwtoledo/bc250-governor/internal/telemetry"
	"github.com/dwtoledo/bc250-governor/internal/thermal"
	"github.com/dwtoledo/bc250-governor/internal/voltage"

	"github.com/prometheus/client_golang/prometheus"
)

// Options are the process-level knobs that don't belong in the TOML config:
// paths that vary by machine and are usually auto-discovered, but can be
// overridden for testing or unusual topologies. When empty, both are
// resolved by scanning /sys/class/drm for the AMD GPU device.
type Options struct {
	ConfigPath      string
	GPUResourcePath string // /sys/bus/pci/devices/<bdf>/resource0, or "" to auto-discover
	ClkVoltagePath  string // pp_od_clk_voltage, or "" to auto-discover
}

// drmRoot is where DRM exposes one directory per display/render device.
const drmRoot = "/sys/class/drm"

// amdVendorID is AMD's PCI vendor ID, used to pick out the right card
// directory when more than one GPU is present (spec.md §9).
const amdVendorID = "0x1002"

// discoverAMDGPUDevice scans /sys/class/drm/card*/device for the first AMD
// GPU whose device directory carries both resource0 and pp_od_clk_voltage -
// the direct sysfs scan spec.md §4.1/§4.2/§9 call for ("locating the PCI
// device for the integrated GPU", "under the GPU's DRM device", "a direct
// sysfs scan suffices"). It returns the device directory so callers can
// join whichever file they need.
func discoverAMDGPUDevice() (string, error) {
	matches, err := filepath.Glob(filepath.Join(drmRoot, "card*", "device"))
	if err != nil {
		return "", fmt.Errorf("globbing %s: %w", drmRoot, err)
	}
	sort.Strings(matches)

	for _, dev := range matches {
		vendor, err := os.ReadFile(filepath.Join(dev, "vendor"))
		if err != nil || strings.TrimSpace(string(vendor)) != amdVendorID {
			continue
		}
		if _, err := os.Stat(filepath.Join(dev, "resource0")); err != nil {
			continue
		}
		if _, err := os.Stat(filepath.Join(dev, "pp_od_clk_voltage")); err != nil {
			continue
		}
		return dev, nil
	}
	return "", fmt.Errorf("no AMD GPU device with pp_od_clk_voltage found under %s", drmRoot)
}

// resourcePath resolves the PCI BAR resource file to map, honoring an
// explicit override before falling back to discovery.
func (o *Orchestrator) resourcePath() (string, error) {
	if o.opt.GPUResourcePath != "" {
		return o.opt.GPUResourcePath, nil
	}
	dev, err := discoverAMDGPUDevice()
	if err != nil {
		return "", err
	}
	return filepath.Join(dev, "resource0"), nil
}

// clkVoltagePath resolves the pp_od_clk_voltage file, honoring an explicit
// override before falling back to discovery.
func (o *Orchestrator) clkVoltagePath() (string, error) {
	if o.opt.ClkVoltagePath != "" {
		return o.opt.ClkVoltagePath, nil
	}
	dev, err := discoverAMDGPUDevice()
	if err != nil {
		return "", err
	}
	return filepath.Join(dev, "pp_od_clk_voltage"), nil
}

// Orchestrator owns every long-lived resource and the two cooperating
// tasks plus the performance-lock watcher.
type Orchestrator struct {
	cfg *config.Config
	opt Options

	reg *mmio.Reader
	act *sysfs.Actuator
	gpuFan *hwmon.Fan

	ramp    *ramp.Controller
	loadest *loadest.Estimator

	perfFlag      *perflock.Flag
	emergencyFlag *thermal.EmergencyFlag

	thermalSup *thermal.Supervisor

	metrics *telemetry.Registry
	promReg *prometheus.Registry

	telemetryServer *httpapi.Server
}

// New performs the startup order from spec.md §4.8: load config, validate
// safe points, init register reader, init sysfs actuator (probing the
// variant), init hwmon driver, build the control-loop and thermal state.
func New(ctx context.Context, opt Options) (*Orchestrator, error) {
	cfg, err := config.Load(opt.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &Orchestrator{cfg: cfg, opt: opt}

	if err := o.initRegisterReader(); err != nil {
		return nil, err
	}
	if err := o.initActuator(); err != nil {
		return nil, err
	}
	if err := o.initHwmon(); err != nil {
		return nil, err
	}
	o.initControlState()
	o.initTelemetry()

	log.Logger.Infow("startup complete",
		"minFreqMHz", cfg.MinFreqMHz(), "maxFreqMHz", cfg.MaxFreqMHz(),
		"actuatorVariant", variantString(o.act.Variant()),
	)

	return o, nil
}

func (o *Orchestrator) initRegisterReader() error {
	path, err := o.resourcePath()
	if err != nil {
		return err
	}
	reg, err := mmio.Open(path)
	if err != nil {
		return err
	}
	o.reg = reg
	return nil
}

func (o *Orchestrator) initActuator() error {
	path, err := o.clkVoltagePath()
	if err != nil {
		return err
	}
	th := o.cfg.FrequencyThresholds
	intervals := o.cfg.Timing.Intervals
	act, err := sysfs.New(
		path,
		th.AdjustMHz, time.Duration(intervals.AdjustUS)*time.Microsecond,
		th.FinetuneMHz, time.Duration(intervals.FinetuneUS)*time.Microsecond,
	)
	if err != nil {
		return err
	}
	o.act = act
	return nil
}

func (o *Orchestrator) initHwmon() error {
	chips, err := hwmon.Discover()
	if err != nil {
		return err
	}

	gpuChip, ok := hwmon.FindByName(chips, "amdgpu")
	if !ok {
		return fmt.Errorf("amdgpu hwmon chip not found")
	}
	tempInputs, err := hwmon.TempInputs(gpuChip)
	if err != nil || len(tempInputs) == 0 {
		return fmt.Errorf("no temp*_input found under amdgpu hwmon chip: %w", err)
	}

	fanChip, ok := hwmon.FindByName(chips, "nct6687")
	if !ok {
		return fmt.Errorf("nct6687 hwmon chip not found")
	}
	fanIndex := int(o.cfg.Thermal.FanControlIndex)
	pwmFiles, err := hwmon.PWMFiles(fanChip)
	if err != nil || fanIndex >= len(pwmFiles) {
		return fmt.Errorf("fan_control_index %d out of range for nct6687 hwmon chip: %w", fanIndex, err)
	}

	fan, err := hwmon.NewFan(pwmFiles[fanIndex])
	if err != nil {
		return err
	}
	o.gpuFan = fan

	var cpuTempPath string
	if cpuChip, ok := hwmon.FindByName(chips, "k10temp"); ok {
		if inputs, err := hwmon.TempInputs(cpuChip); err == nil && len(inputs) > 0 {
			cpuTempPath = inputs[0]
		}
	}

	sensors := thermal.HwmonSensors{
		GPUEdgeTempPath:    tempInputs[0],
		CPUPackageTempPath: cpuTempPath,
	}
	curve := thermal.NewFanCurve(o.cfg.FanCurvePoints)
	o.emergencyFlag = &thermal.EmergencyFlag{}
	o.thermalSup = thermal.NewSupervisor(sensors, o.gpuFan, curve, thermal.Config{
		MaxSafeTempC:   o.cfg.Thermal.MaxSafeTempC,
		EmergencyTempC: o.cfg.Thermal.EmergencyTempC,
		FanEnabled:     o.cfg.Thermal.FanControl.Enabled,
	}, o.emergencyFlag)

	return nil
}

func (o *Orchestrator) initControlState() {
	curve := voltage.NewCurve(o.cfg.SafePoints)
	th := ramp.ConfigThresholds(o.cfg.LoadTarget)
	rates := ramp.ConfigRates(o.cfg.Timing.RampRates)
	o.ramp = ramp.New(th, rates, o.cfg.Timing.BurstSamples, o.cfg.MinFreqMHz(), o.cfg.MaxFreqMHz(), curve, o.cfg.MinFreqMHz())
	o.loadest = loadest.New(int(o.cfg.Timing.RampUpSamples), int(o.cfg.Timing.RampDownSamples))
	o.perfFlag = &perflock.Flag{}
}

func (o *Orchestrator) initTelemetry() {
	o.promReg = prometheus.NewRegistry()
	o.metrics = telemetry.NewRegistry(o.promReg)
	if o.cfg.Telemetry.Enabled {
		o.telemetryServer = httpapi.New(o.cfg.Telemetry.Listen, o.promReg)
	}
}

func variantString(v sysfs.Variant) string {
	switch v {
	case sysfs.VariantVC:
		return "vc"
	case sysfs.VariantVO:
		return "vo"
	default:
		return "unknown"
	}
}

// Run starts the control loop, the thermal loop, and the performance-lock
// watcher, and blocks until ctx is canceled (spec.md §5). On return it
// performs best-effort restoration of safe defaults (spec.md §4.8).
func (o *Orchestrator) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		o.runControlLoop(gctx)
		return nil
	})
	g.Go(func() error {
		o.runThermalLoop(gctx)
		return nil
	})

	if o.cfg.PerformanceMode.Enabled {
		watcher := perflock.NewWatcher(
			o.cfg.PerformanceMode.ControlFile,
			time.Duration(o.cfg.PerformanceMode.CheckInterval)*time.Millisecond,
			o.perfFlag,
		)
		g.Go(func() error {
			watcher.Run(gctx)
			return nil
		})
	}

	if o.telemetryServer != nil {
		g.Go(func() error {
			return o.telemetryServer.Run(gctx)
		})
	}

	err := g.Wait()
	o.shutdown()
	return err
}

func (o *Orchestrator) runControlLoop(ctx context.Context) {
	interval := time.Duration(o.cfg.Timing.Intervals.SampleUS) * time.Microsecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	failureStreak := 0
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			last = now
			o.controlTick(elapsed, &failureStreak)
		}
	}
}

func (o *Orchestrator) controlTick(elapsed time.Duration, failureStreak *int) {
	busy, err := o.reg.Sample()
	if err != nil {
		*failureStreak++
		if *failureStreak == 1 {
			log.Logger.Warnw("register sample failed, skipping tick", "error", err)
		}
		if *failureStreak == 3 {
			log.Logger.Warnw("three consecutive sample failures, reinitializing register reader")
			if reinitErr := o.reinitRegisterReader(); reinitErr != nil {
				log.Logger.Errorw("register reader reinitialization failed", "error", reinitErr)
			} else {
				*failureStreak = 0
			}
		}
		return
	}
	*failureStreak = 0

	fastRatio, slowRatio := o.loadest.Push(busy)
	if !o.loadest.FastPrimed() || !o.loadest.SlowPrimed() {
		return
	}

	var decision ramp.Decision
	if o.emergencyFlag.Get() {
		decision = o.ramp.ForceFreq(o.cfg.MinFreqMHz())
	} else {
		decision = o.ramp.Tick(fastRatio, slowRatio, elapsed, o.perfFlag.Get())
	}

	o.metrics.FastLoadRatio.Set(fastRatio)
	o.metrics.SlowLoadRatio.Set(slowRatio)
	o.metrics.CurrentFreqMHz.Set(decision.CurrentFreq)

	committed, err := o.act.Commit(decision.TargetFreqMHz, decision.VoltageMV)
	if err != nil {
		log.Logger.Warnw("sysfs commit failed, tick skipped", "error", err)
		return
	}
	if committed {
		o.metrics.CommittedVoltageMV.Set(float64(decision.VoltageMV))
		o.metrics.SysfsCommits.Inc()
	}
}

func (o *Orchestrator) reinitRegisterReader() error {
	if o.reg != nil {
		_ = o.reg.Close()
	}
	path, err := o.resourcePath()
	if err != nil {
		return err
	}
	reg, err := mmio.Open(path)
	if err != nil {
		return err
	}
	o.reg = reg
	return nil
}

func (o *Orchestrator) runThermalLoop(ctx context.Context) {
	interval := time.Duration(o.cfg.Thermal.MonitorIntervalMS) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	wasEmergency := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.thermalSup.Tick(ctx)
			st := o.thermalSup.State()
			o.metrics.GPUEdgeTempC.Set(float64(st.LastTempC))
			o.metrics.FanPWMPercent.Set(float64(st.LastFanPercent))
			if st.InEmergency && !wasEmergency {
				o.metrics.ThermalEmergencies.Inc()
			}
			wasEmergency = st.InEmergency
		}
	}
}

// shutdown drives frequency/voltage to the lowest safe point, restores the
// fan's enable mode to the value read at startup, and releases mappings -
// each step best-effort and independently logged (spec.md §4.8, §9).
func (o *Orchestrator) shutdown() {
	minFreq := o.cfg.MinFreqMHz()
	voltageCurve := voltage.NewCurve(o.cfg.SafePoints)
	minVoltage := voltageCurve.Voltage(minFreq)

	if err := o.act.ForceCommit(minFreq, minVoltage); err != nil {
		log.Logger.Warnw("failed to restore minimum frequency/voltage on shutdown", "error", err)
	} else {
		log.Logger.Infow("restored minimum frequency/voltage", "freqMHz", minFreq, "voltageMV", minVoltage)
	}

	if o.thermalSup != nil {
		if err := o.thermalSup.Shutdown(); err != nil {
			log.Logger.Warnw("failed to restore fan enable mode", "error", err)
		} else {
			log.Logger.Infow("restored fan enable mode")
		}
	}

	if o.reg != nil {
		if err := o.reg.Close(); err != nil {
			log.Logger.Warnw("failed to unmap GPU MMIO region", "error", err)
		}
	}
}
