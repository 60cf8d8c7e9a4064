// Command parley runs and controls voice interview calls.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rbright/parley/internal/app"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run ends an attached call cleanly on interrupt, terminate, or hangup.
func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()
	return app.Execute(ctx, args, os.Stdout, os.Stderr)
}
