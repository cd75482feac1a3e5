package command

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"time"

	"github.com/urfave/cli"

	"github.com/dwtoledo/bc250-governor/internal/log"
	"github.com/dwtoledo/bc250-governor/internal/orchestrator"
	pkgsystemd "github.com/dwtoledo/bc250-governor/internal/systemd"
)

func cmdRun(cliCtx *cli.Context) error {
	if runtime.GOOS != "linux" {
		return fmt.Errorf("bc250-governor run on %q not supported", runtime.GOOS)
	}

	logLevel = cliCtx.String("log-level")
	logFile = cliCtx.String("log-file")
	gpuResourcePath = cliCtx.String("gpu-resource")
	clkVoltagePath = cliCtx.String("pp-od-clk-voltage")

	zapLvl, err := log.ParseLogLevel(logLevel)
	if err != nil {
		return err
	}
	log.Logger = log.CreateLogger(zapLvl, logFile)

	start := time.Now()
	log.Logger.Infow("starting bc250-governor")

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	signals := make(chan os.Signal, 16)
	done := handleSignals(rootCtx, rootCancel, signals)
	signal.Notify(signals, handledSignals...)

	orch, err := orchestrator.New(rootCtx, orchestrator.Options{
		ConfigPath:      configPath(cliCtx),
		GPUResourcePath: gpuResourcePath,
		ClkVoltagePath:  clkVoltagePath,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize governor: %w", err)
	}

	if pkgsystemd.SystemctlExists() {
		if err := pkgsystemd.NotifyReady(rootCtx); err != nil {
			log.Logger.Warnw("systemd notify ready failed", "error", err)
		}
	} else {
		log.Logger.Debugw("skipped sd_notify: systemd not available")
	}

	log.Logger.Infow("successfully booted", "tookSeconds", time.Since(start).Seconds())

	runErr := make(chan error, 1)
	go func() { runErr <- orch.Run(rootCtx) }()

	select {
	case <-done:
	case err := <-runErr:
		if err != nil {
			log.Logger.Errorw("governor exited with error", "error", err)
		}
	}

	<-done
	return nil
}
