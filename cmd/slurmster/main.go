package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sourceplane/slurmster/internal/errors"
	"github.com/sourceplane/slurmster/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logger.Cleanup()

	if err != nil {
		printError(err)
		os.Exit(1)
	}
}

func printError(err error) {
	if category := errors.Category(err); category != "error" {
		fmt.Fprintf(os.Stderr, "✗ %s: %v\n", category, err)
	} else {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
	}
	if hints := errors.FlattenHints(err); hints != "" {
		fmt.Fprintf(os.Stderr, "  hint: %s\n", hints)
	}
}
