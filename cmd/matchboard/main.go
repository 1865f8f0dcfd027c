// Package main is the matchboard command-line client: it lists the upcoming
// schedule through the same coordinator and cache the web service uses.
package main

import (
	"context"
	"os"
	"os/signal"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
