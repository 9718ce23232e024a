package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/ocflkit/ocfl/cmd/ocfl/run"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run.CLI(ctx, os.Args, os.Stdout, os.Stderr); err != nil {
		stop()
		os.Exit(run.ExitCode(err))
	}
}
