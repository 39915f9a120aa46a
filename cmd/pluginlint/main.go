package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/bpe-tools/pluginlint/pkg/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := cli.NewRootCommand(version).ExecuteContext(ctx)
	stop()
	if err != nil {
		cli.PrintValidationError(err)
		os.Exit(1)
	}
}
