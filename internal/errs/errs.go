// Package errs holds the governor's error kinds. These are sentinels, not
// types: callers match with errors.Is and wrap with fmt.Errorf("...: %w", ...).
package errs

import "errors"

var (
	// ErrConfigInvalid covers malformed TOML, missing required keys,
	// non-monotonic safe points, and fan-curve disorder. Fatal at startup.
	ErrConfigInvalid = errors.New("config invalid")

	// ErrHardwareAccess covers MMIO mapping failure, missing PCI device, and
	// missing hwmon nodes. Fatal at startup; retried at runtime for hwmon
	// reads only.
	ErrHardwareAccess = errors.New("hardware access failed")

	// ErrSysfsWrite covers a transient write failure to pp_od_clk_voltage or
	// a hwmon pwm/enable file. Never fatal; the tick that hit it is skipped.
	ErrSysfsWrite = errors.New("sysfs write failed")

	// ErrPermissionDenied covers insufficient privileges on sysfs or MMIO.
	// Fatal at startup.
	ErrPermissionDenied = errors.New("permission denied")
)
