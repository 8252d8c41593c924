// Command logworker consumes log jobs from the queue, decodes each raw
// event, and writes the normalized transfer/approval/swap rows.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/csic-platform/eth-indexer/internal/bootstrap"
	"github.com/csic-platform/eth-indexer/internal/httpserver"
	"github.com/csic-platform/eth-indexer/internal/logging"
	"github.com/csic-platform/eth-indexer/internal/worker/logprocessor"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.Build(ctx, bootstrap.ChainModeHTTP)
	if err != nil {
		log.Fatalf("bootstrap failed: %v", err)
	}
	defer deps.Close()

	proc := logprocessor.New(deps.Queue, deps.Chain, deps.Store, deps.DeadLet, deps.Tokens, deps.Pools, deps.Log, deps.Config.Queue.BlockPopTimeout)

	ops := httpserver.New("logworker", httpserver.DBReadiness{DB: deps.SQL}, deps.Log)
	go func() {
		if err := ops.Run(ctx, deps.Config.Metrics.GetServerAddress()); err != nil {
			deps.Log.Error("ops server stopped with error", logging.Err(err))
		}
	}()

	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		deps.Log.Error("log worker stopped with error", logging.Err(err))
	}
	deps.Log.Info("log worker shut down")
}
