package command

import (
	"context"
	"os"

	"golang.org/x/sys/unix"

	"github.com/dwtoledo/bc250-governor/internal/log"
	pkgsystemd "github.com/dwtoledo/bc250-governor/internal/systemd"
)

// handledSignals registers SIGINT and SIGTERM, spec.md §5's shutdown set,
// plus SIGPIPE, which is swallowed below rather than acted on - caught only
// to avoid nested-signal noise the way gpud's signal handler does.
var handledSignals = []os.Signal{
	unix.SIGTERM,
	unix.SIGINT,
	unix.SIGPIPE,
}

func handleSignals(ctx context.Context, cancel context.CancelFunc, signals chan os.Signal) chan struct{} {
	done := make(chan struct{}, 1)
	go func() {
		for s := range signals {
			if s == unix.SIGPIPE {
				continue
			}

			log.Logger.Infow("received signal, shutting down", "signal", s)

			if pkgsystemd.SystemctlExists() {
				if err := pkgsystemd.NotifyStopping(ctx); err != nil {
					log.Logger.Warnw("systemd notify stopping failed", "error", err)
				}
			}

			cancel()
			close(done)
			return
		}
	}()
	return done
}
