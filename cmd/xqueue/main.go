// Command xqueue produces, consumes and inspects work on an xqueue broker.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	_ "github.com/trickstertwo/xqueue/adapter/memory"
	_ "github.com/trickstertwo/xqueue/adapter/redisstream"
	_ "github.com/trickstertwo/xqueue/adapter/zmq"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cobra.CheckErr(newRootCmd().ExecuteContext(ctx))
}
