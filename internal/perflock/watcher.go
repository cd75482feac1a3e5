// Package perflock is the Performance-Lock Watcher (spec.md §4.7): it polls
// a sentinel file's existence and exposes it as a shared atomic boolean. No
// inotify, per spec.md: polling keeps the dependency surface minimal.
package perflock

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/dwtoledo/bc250-governor/internal/log"
)

// Flag is the shared atomic the Ramp Controller reads each tick.
type Flag struct {
	v atomic.Bool
}

func (f *Flag) Get() bool { return f.v.Load() }
func (f *Flag) set(v bool) {
	if f.v.Swap(v) != v {
		if v {
			log.Logger.Infow("performance lock asserted")
		} else {
			log.Logger.Infow("performance lock released")
		}
	}
}

// Watcher stats ControlFile on every tick.
type Watcher struct {
	controlFile string
	interval    time.Duration
	flag        *Flag
}

func NewWatcher(controlFile string, interval time.Duration, flag *Flag) *Watcher {
	return &Watcher{controlFile: controlFile, interval: interval, flag: flag}
}

// Run polls until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, err := os.Stat(w.controlFile)
			w.flag.set(err == nil)
		}
	}
}
