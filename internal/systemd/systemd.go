// Package systemd is the thin interface the core exposes to the systemd
// integration (spec.md §1 names it an external collaborator): readiness and
// stopping notifications, grounded on gpud's cmd/gpud/command/signals.go.
package systemd

import (
	"context"
	"os/exec"

	sd "github.com/coreos/go-systemd/v22/daemon"

	"github.com/dwtoledo/bc250-governor/internal/log"
)

// SystemctlExists reports whether this host runs systemd at all, so the
// notify calls are skipped cleanly on non-systemd hosts.
func SystemctlExists() bool {
	_, err := exec.LookPath("systemctl")
	return err == nil
}

// NotifyReady tells systemd the daemon has finished startup.
func NotifyReady(ctx context.Context) error {
	return notify(ctx, sd.SdNotifyReady)
}

// NotifyStopping tells systemd the daemon is about to stop.
func NotifyStopping(ctx context.Context) error {
	return notify(ctx, sd.SdNotifyStopping)
}

func notify(_ context.Context, state string) error {
	notified, err := sd.SdNotify(false, state)
	log.Logger.Debugw("sd_notify", "state", state, "notified", notified, "error", err)
	return err
}
