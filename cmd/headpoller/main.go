// Command headpoller subscribes to new chain heads over a websocket
// endpoint and enqueues a block job for each one.
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

	hp := poller.NewHeadPoller(deps.Chain, deps.Queue, deps.Log)

	ops := httpserver.New("headpoller", httpserver.DBReadiness{DB: deps.SQL}, deps.Log)
	go func() {
		if err := ops.Run(ctx, deps.Config.Metrics.GetServerAddress()); err != nil {
			deps.Log.Error("ops server stopped with error", logging.Err(err))
		}
	}()

	if err := hp.Run(ctx); err != nil && ctx.Err() == nil {
		deps.Log.Error("head poller stopped with error", logging.Err(err))
	}
	deps.Log.Info("head poller shut down")
}
