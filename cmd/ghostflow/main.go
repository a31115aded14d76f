// Command ghostflow is the CLI front-end for the ghostflow library
// (spec.md §6), wiring github.com/alecthomas/kong the same way
// tozd-gitlab-config's cmd/gitlab-config/main.go wires its own commands.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/ghostflow/ghostflow"
)

const exitCode = 2

// Set during build time using "-X" ldflags.
var version = "" //nolint:gochecknoglobals

func main() {
	var commands ghostflow.Commands
	ctx := kong.Parse(&commands,
		kong.Description("Orchestrate check/reformat/merge/stage/test automation against a hosted git project."),
		kong.Vars{
			"version": fmt.Sprintf("version %s", version),
		},
		kong.UsageOnError(),
		kong.Writers(
			os.Stderr,
			os.Stderr,
		),
	)

	err := ctx.Run(&commands.Globals)
	if err != nil {
		fmt.Fprintf(ctx.Stderr, "error: %+v", err)
		ctx.Exit(exitCode)
	}
}
