// Command logpoller subscribes to new chain logs over a websocket
// endpoint and enqueues a log job for each new block they appear in.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/csic-platform/eth-indexer/internal/bootstrap"
	"github.com/csic-platform/eth-indexer/internal/httpserver"
	"github.com/csic-platform/eth-indexer/internal/logging"
	"github.com/csic-platform/eth-indexer/internal/poller"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.Build(ctx, bootstrap.ChainModeWS)
	if err != nil {
		log.Fatalf("bootstrap failed: %v", err)
	}
	defer deps.Close()

	lp := poller.NewLogPoller(deps.Chain, deps.Queue, deps.Log)

	ops := httpserver.New("logpoller", httpserver.DBReadiness{DB: deps.SQL}, deps.Log)
	go func() {
		if err := ops.Run(ctx, deps.Config.Metrics.GetServerAddress()); err != nil {
			deps.Log.Error("ops server stopped with error", logging.Err(err))
		}
	}()

	if err := lp.Run(ctx); err != nil && ctx.Err() == nil {
		deps.Log.Error("log poller stopped with error", logging.Err(err))
	}
	deps.Log.Info("log poller shut down")
}
