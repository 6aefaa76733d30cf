// ./main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/xkilldash9x/inmate-bot/cmd"
	"github.com/xkilldash9x/inmate-bot/internal/observability"
)

// osExit allows tests to intercept the exit code.
var osExit = os.Exit

func main() {
	defer handlePanic()

	// SIGINT/SIGTERM cancel the run, which closes the browser session.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := cmd.Execute(ctx)
	observability.Sync()
	if err != nil && !errors.Is(err, context.Canceled) {
		osExit(1)
	}
}

func handlePanic() {
	if r := recover(); r != nil {
		observability.Sync()
		fmt.Fprintf(os.Stderr, "inmate-bot panicked: %v\n%s", r, debug.Stack())
		osExit(2)
	}
}
