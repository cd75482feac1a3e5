package command

import (
	"github.com/urfave/cli"

	"github.com/dwtoledo/bc250-governor/internal/config"
	"github.com/dwtoledo/bc250-governor/internal/version"
)

const usage = `
# to start the governor as a systemd unit (recommended)
sudo bc250-governor run /etc/bc250-governor/config.toml

# to start it directly
sudo bc250-governor run
`

var (
	logLevel string
	logFile  string

	gpuResourcePath string
	clkVoltagePath  string
)

// App builds the CLI surface: a single "run" daemon command plus the
// diagnostic subcommands named in spec.md §6, which are out of core scope
// and stubbed accordingly.
func App() *cli.App {
	app := cli.NewApp()

	app.Name = "bc250-governor"
	app.Version = version.Version
	app.Usage = usage
	app.Description = "userspace frequency/voltage governor for the BC-250 APU"

	runFlags := []cli.Flag{
		cli.StringFlag{
			Name:  "log-level",
			Usage: "log level (debug, info, warn, error)",
			Value: "info",
		},
		cli.StringFlag{
			Name:  "log-file",
			Usage: "additional file to write structured JSON logs to",
		},
		cli.StringFlag{
			Name:  "gpu-resource",
			Usage: "path to the GPU's PCI BAR resource file (resource0); auto-discovered under /sys/class/drm if unset",
		},
		cli.StringFlag{
			Name:  "pp-od-clk-voltage",
			Usage: "path to the GPU's pp_od_clk_voltage sysfs file; auto-discovered under /sys/class/drm if unset",
		},
	}

	app.Commands = []cli.Command{
		{
			Name:      "run",
			Usage:     "run the governor in the foreground",
			UsageText: "bc250-governor run [config path]",
			Action:    cmdRun,
			Flags:     runFlags,
		},
		{
			Name:   "list",
			Usage:  "list discovered hwmon sensors and fans (diagnostics, not implemented in this build)",
			Action: notImplemented("list"),
		},
		{
			Name:   "current-fan",
			Usage:  "print the current fan PWM percentage (diagnostics, not implemented in this build)",
			Action: notImplemented("current-fan"),
		},
		{
			Name:   "probe-fans",
			Usage:  "probe every hwmon fan channel (diagnostics, not implemented in this build)",
			Action: notImplemented("probe-fans"),
		},
		{
			Name:   "pulse-fan",
			Usage:  "pulse a fan channel to identify it (diagnostics, not implemented in this build)",
			Action: notImplemented("pulse-fan"),
		},
	}

	return app
}

func notImplemented(name string) cli.ActionFunc {
	return func(*cli.Context) error {
		return cli.NewExitError(name+" is a diagnostic subcommand, out of scope for this build", 1)
	}
}

func configPath(cliCtx *cli.Context) string {
	if cliCtx.NArg() > 0 {
		return cliCtx.Args().Get(0)
	}
	return config.DefaultConfigPath
}
