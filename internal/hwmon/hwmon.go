// Package hwmon is the Hwmon Driver (spec.md §4.3): it discovers NCT6687
// sensors and fans through /sys/class/hwmon and drives temperature reads and
// PWM writes, with enable-mode management and restoration on shutdown.
package hwmon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dwtoledo/bc250-governor/internal/errs"
)

// Enable modes for pwm*_enable (spec.md §6).
const (
	EnableOff  = 0
	EnableManual = 1
	EnableAuto   = 2
	// EnableHardwareDefault is the NCT6687's hardware-default mode; some
	// variants restore to this rather than EnableAuto (spec.md §9).
	EnableHardwareDefault = 5
)

const hwmonRoot = "/sys/class/hwmon"

// Chip identifies one discovered hwmon device by its name file contents.
type Chip struct {
	Name string
	Path string
}

// Discover scans /sys/class/hwmon/hwmon* and returns every chip along with
// its name ("nct6687", "amdgpu", "k10temp", ...).
func Discover() ([]Chip, error) {
	entries, err := os.ReadDir(hwmonRoot)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", errs.ErrHardwareAccess, hwmonRoot, err)
	}

	var chips []Chip
	for _, e := range entries {
		path := filepath.Join(hwmonRoot, e.Name())
		nameBytes, err := os.ReadFile(filepath.Join(path, "name"))
		if err != nil {
			continue
		}
		chips = append(chips, Chip{Name: strings.TrimSpace(string(nameBytes)), Path: path})
	}
	if len(chips) == 0 {
		return nil, fmt.Errorf("%w: no hwmon chips found under %s", errs.ErrHardwareAccess, hwmonRoot)
	}
	return chips, nil
}

// FindByName returns the first discovered chip whose name matches exactly.
func FindByName(chips []Chip, name string) (Chip, bool) {
	for _, c := range chips {
		if c.Name == name {
			return c, true
		}
	}
	return Chip{}, false
}

// TempInputs returns the sorted list of temp*_input file paths under a chip.
func TempInputs(chip Chip) ([]string, error) {
	return globSensors(chip, "temp*_input")
}

// PWMFiles returns the sorted list of pwm* (not pwm*_enable) file paths.
func PWMFiles(chip Chip) ([]string, error) {
	all, err := globSensors(chip, "pwm*")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, p := range all {
		if !strings.Contains(filepath.Base(p), "_") {
			out = append(out, p)
		}
	}
	return out, nil
}

func globSensors(chip Chip, pattern string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(chip.Path, pattern))
	if err != nil {
		return nil, fmt.Errorf("%w: globbing %s in %s: %v", errs.ErrHardwareAccess, pattern, chip.Path, err)
	}
	return matches, nil
}

// ReadTempC reads a temp*_input file (millidegrees C) and converts to
// Celsius.
func ReadTempC(path string) (float32, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("%w: reading %s: %v", errs.ErrHardwareAccess, path, err)
	}
	milli, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, fmt.Errorf("%w: parsing %s: %v", errs.ErrHardwareAccess, path, err)
	}
	return float32(milli) / 1000.0, nil
}

// Fan owns one pwm*/pwm*_enable pair and remembers the enable mode observed
// at startup so shutdown can restore it exactly (spec.md §9: "should be read
// and remembered at startup rather than hard-coded").
type Fan struct {
	pwmPath       string
	enablePath    string
	startupEnable int
	lastPercent   uint8
	manualSet     bool
}

// NewFan opens the fan at pwmPath (its *_enable sibling is derived) and
// records the enable mode present at startup.
func NewFan(pwmPath string) (*Fan, error) {
	enablePath := pwmPath + "_enable"
	raw, err := os.ReadFile(enablePath)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", errs.ErrHardwareAccess, enablePath, err)
	}
	mode, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", errs.ErrHardwareAccess, enablePath, err)
	}

	return &Fan{pwmPath: pwmPath, enablePath: enablePath, startupEnable: mode}, nil
}

// EnsureManual writes pwm*_enable=1 exactly once (spec.md §4.6 fan-write
// protocol).
func (f *Fan) EnsureManual() error {
	if f.manualSet {
		return nil
	}
	if err := writeIntFile(f.enablePath, EnableManual); err != nil {
		return err
	}
	f.manualSet = true
	return nil
}

// SetPercent writes pwm* scaled from a 0-100 percentage to 0-255, skipping
// the write if the percentage hasn't changed (spec.md §4.6 step 4).
func (f *Fan) SetPercent(percent uint8) error {
	if f.manualSet && f.lastPercent == percent {
		return nil
	}
	raw := uint32(percent) * 255 / 100
	if err := writeIntFile(f.pwmPath, int(raw)); err != nil {
		return err
	}
	f.lastPercent = percent
	return nil
}

// LastPercent returns the last percentage written.
func (f *Fan) LastPercent() uint8 { return f.lastPercent }

// Restore writes back the enable mode observed at startup (spec.md §4.6,
// "on shutdown, restore pwm*_enable = 2 or 5 depending on the chip
// variant").
func (f *Fan) Restore() error {
	return writeIntFile(f.enablePath, f.startupEnable)
}

func writeIntFile(path string, v int) error {
	if err := os.WriteFile(path, []byte(strconv.Itoa(v)), 0644); err != nil {
		return fmt.Errorf("%w: writing %d to %s: %v", errs.ErrSysfsWrite, v, path, err)
	}
	return nil
}
