// Command blockworker consumes block jobs from the queue, fetches and
// parses each block, and writes the results to the relational store.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/csic-platform/eth-indexer/internal/bootstrap"
	"github.com/csic-platform/eth-indexer/internal/httpserver"
	"github.com/csic-platform/eth-indexer/internal/logging"
	"github.com/csic-platform/eth-indexer/internal/worker/blockprocessor"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.Build(ctx, bootstrap.ChainModeHTTP)
	if err != nil {
		log.Fatalf("bootstrap failed: %v", err)
	}
	defer deps.Close()

	proc := blockprocessor.New(deps.Queue, deps.Chain, deps.Store, deps.DeadLet, deps.Tokens, deps.Log, deps.Config.Queue.BlockPopTimeout)

	ops := httpserver.New("blockworker", httpserver.DBReadiness{DB: deps.SQL}, deps.Log)
	go func() {
		if err := ops.Run(ctx, deps.Config.Metrics.GetServerAddress()); err != nil {
			deps.Log.Error("ops server stopped with error", logging.Err(err))
		}
	}()

	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		deps.Log.Error("block worker stopped with error", logging.Err(err))
	}
	deps.Log.Info("block worker shut down")
}
