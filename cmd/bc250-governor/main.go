package main

import (
	"fmt"
	"os"

	"github.com/dwtoledo/bc250-governor/cmd/bc250-governor/command"
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	app := command.App()
	if err := app.Run(args); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "✘ %s\n", err)
		return 1
	}
	return 0
}
