// Package sysfs is the Sysfs Actuator (spec.md §4.2): it commits
// (frequency, voltage) pairs to the kernel's power-play overclocking
// interface, rate-limited against the adjust/finetune thresholds and
// intervals. Write idiom grounded on the pack's other_examples
// (rockpi-penta-golang's pkg/hardware/fan, which writes small integer sysfs
// files and re-opens on every write rather than holding a buffered handle).
package sysfs

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dwtoledo/bc250-governor/internal/errs"
)

// Variant is the pp_od_clk_voltage command set detected at startup (spec.md
// §9, "Kernel interface variance").
type Variant int

const (
	VariantUnknown Variant = iota
	VariantVC               // "vc 1 <freq> <mv>"
	VariantVO               // "vo <offset_mv>"
)

// Actuator owns the pp_od_clk_voltage file path and the rate-limit state.
type Actuator struct {
	path    string
	variant Variant

	adjustThresholdMHz   uint32
	adjustInterval       time.Duration
	finetuneThresholdMHz uint32
	finetuneInterval     time.Duration

	lastCommittedFreq uint32
	lastCommitTime    time.Time
	hasCommitted      bool
}

// New builds an Actuator and probes the interface variant by reading the
// file once, per spec.md §4.2/§9: "Probe at startup by reading the file; the
// first section names reveal the variant."
func New(path string, adjustThresholdMHz uint32, adjustInterval time.Duration, finetuneThresholdMHz uint32, finetuneInterval time.Duration) (*Actuator, error) {
	a := &Actuator{
		path:                 path,
		adjustThresholdMHz:   adjustThresholdMHz,
		adjustInterval:       adjustInterval,
		finetuneThresholdMHz: finetuneThresholdMHz,
		finetuneInterval:     finetuneInterval,
	}

	variant, err := probeVariant(path)
	if err != nil {
		return nil, err
	}
	a.variant = variant
	return a, nil
}

func probeVariant(path string) (Variant, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsPermission(err) {
			return VariantUnknown, fmt.Errorf("%w: probing %s: %v", errs.ErrPermissionDenied, path, err)
		}
		return VariantUnknown, fmt.Errorf("%w: probing %s: %v", errs.ErrHardwareAccess, path, err)
	}
	text := string(data)
	if strings.Contains(text, "OD_VDDC_CURVE") || strings.Contains(text, "VDDC_CURVE_SCLK") {
		return VariantVC, nil
	}
	if strings.Contains(text, "OD_RANGE") || strings.Contains(text, "vddc") {
		return VariantVO, nil
	}
	// Default to the vc-style interface, which is the more common one on
	// the GFX9/10 generations this governor targets.
	return VariantVC, nil
}

// Variant exposes the probed interface variant, for logging at startup
// (SPEC_FULL.md §12).
func (a *Actuator) Variant() Variant { return a.variant }

// Commit offers (freqMHz, voltageMV) to the actuator. It rate-limits per
// spec.md §4.2: no commit if |delta| < adjustThreshold and the adjust
// interval hasn't elapsed, and no commit if |delta| < finetuneThreshold and
// the finetune interval hasn't elapsed. Once both intervals have elapsed any
// value is committed, including an unchanged one. Returns whether a commit
// was actually written.
func (a *Actuator) Commit(freqMHz, voltageMV uint32) (bool, error) {
	now := time.Now()

	if a.hasCommitted {
		delta := absDiff(freqMHz, a.lastCommittedFreq)
		sinceCommit := now.Sub(a.lastCommitTime)

		// "no two commits within the adjust interval unless |delta| >= adjust
		// threshold" (spec.md §4.2, §8).
		passesAdjust := sinceCommit >= a.adjustInterval || delta >= a.adjustThresholdMHz
		// "no commits smaller than the finetune threshold within the
		// finetune interval" (spec.md §4.2, §8).
		passesFinetune := sinceCommit >= a.finetuneInterval || delta >= a.finetuneThresholdMHz

		if !passesAdjust || !passesFinetune {
			return false, nil
		}
	}

	if err := a.write(freqMHz, voltageMV); err != nil {
		return false, err
	}

	a.lastCommittedFreq = freqMHz
	a.lastCommitTime = now
	a.hasCommitted = true
	return true, nil
}

// write performs the bit-exact three-step protocol from spec.md §4.2.
func (a *Actuator) write(freqMHz, voltageMV uint32) error {
	if err := a.writeLine(fmt.Sprintf("s 1 %d", freqMHz)); err != nil {
		return err
	}

	switch a.variant {
	case VariantVC:
		if err := a.writeLine(fmt.Sprintf("vc 1 %d %d", freqMHz, voltageMV)); err != nil {
			return err
		}
	case VariantVO:
		if err := a.writeLine(fmt.Sprintf("vo %d", voltageMV)); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown pp_od_clk_voltage variant", errs.ErrSysfsWrite)
	}

	return a.writeLine("c")
}

// writeLine opens the file fresh for every write (never held across ticks
// with pending data, per spec.md §5) and appends the trailing newline the
// kernel interface requires.
func (a *Actuator) writeLine(line string) error {
	f, err := os.OpenFile(a.path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %v", errs.ErrSysfsWrite, a.path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("%w: writing %q to %s: %v", errs.ErrSysfsWrite, line, a.path, err)
	}
	return nil
}

// ForceCommit writes unconditionally, bypassing rate limits - used for the
// shutdown restoration sequence (spec.md §4.8).
func (a *Actuator) ForceCommit(freqMHz, voltageMV uint32) error {
	if err := a.write(freqMHz, voltageMV); err != nil {
		return err
	}
	a.lastCommittedFreq = freqMHz
	a.lastCommitTime = time.Now()
	a.hasCommitted = true
	return nil
}

func absDiff(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}
