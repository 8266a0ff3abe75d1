package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Cloudsky01/relstage/internal/apperr"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var levelVar slog.LevelVar
	levelVar.Set(slog.LevelInfo)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(newApp(&levelVar))
	err := root.ExecuteContext(ctx)
	if err != nil && ctx.Err() != nil && !errors.Is(err, context.Canceled) {
		err = fmt.Errorf("%w: %v", context.Canceled, err)
	}
	os.Exit(reportError(os.Stderr, err))
}

// exitCode maps an error to the process exit status
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, context.Canceled) {
		return 130
	}
	return apperr.KindOf(err).ExitCode()
}

// reportError prints err as a single line and returns the exit status
func reportError(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(w, "error: interrupted")
	} else {
		fmt.Fprintf(w, "error: %v\n", err)
	}
	return exitCode(err)
}
