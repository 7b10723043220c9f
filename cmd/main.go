package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/trackdrop/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)

	if err := shared.LoadEnv(); err != nil {
		logger.Warn("failed to load .env", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := NewRunner(RunnerOpts{Logger: logger})

	if err := runner.command().Run(ctx, os.Args); err != nil {
		logger.Error("trackdrop failed", "error", err)
		stop()
		os.Exit(exitCode(err))
	}
}

// exitCode maps a command error to the process exit status.
//
// 2 means the catalog rejected our credentials and 3 means an artist pass was aborted.
// Every other failure, including configuration faults and interrupts, exits 1.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, shared.ErrCatalogAuth):
		return 2
	case errors.Is(err, errPassAborted):
		return 3
	default:
		return 1
	}
}
