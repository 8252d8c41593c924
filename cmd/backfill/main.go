// Command backfill plans and executes historical ingestion for a block
// range, then exits. Usage: backfill <start> <end>.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/csic-platform/eth-indexer/internal/backfill"
	"github.com/csic-platform/eth-indexer/internal/bootstrap"
	"github.com/csic-platform/eth-indexer/internal/logging"
)

func main() {
	if len(os.Args) != 3 {
		log.Fatalf("usage: %s <start-block> <end-block>", os.Args[0])
	}
	start, err := strconv.ParseUint(os.Args[1], 10, 64)
	if err != nil {
		log.Fatalf("invalid start block %q: %v", os.Args[1], err)
	}
	end, err := strconv.ParseUint(os.Args[2], 10, 64)
	if err != nil {
		log.Fatalf("invalid end block %q: %v", os.Args[2], err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.Build(ctx, bootstrap.ChainModeHTTP)
	if err != nil {
		log.Fatalf("bootstrap failed: %v", err)
	}
	defer deps.Close()

	planner := backfill.New(deps.Queue, deps.Chain, backfill.Config{
		InitialBatchSize:   uint64(deps.Config.Backfill.InitialBatchSize),
		MinBatchSize:       uint64(deps.Config.Backfill.MinBatchSize),
		TimestampCacheSize: deps.Config.Backfill.TimestampCacheSize,
	}, deps.Log)

	result, err := planner.Run(ctx, start, end)
	if err != nil {
		deps.Log.Error("backfill failed", logging.Uint64("start", start), logging.Uint64("end", end), logging.Err(err))
		os.Exit(1)
	}

	deps.Log.Info("backfill run finished",
		logging.Uint64("start", start), logging.Uint64("end", end),
		logging.Int("blocks_queued", result.BlocksQueued), logging.Int("logs_queued", result.LogsQueued),
	)
}
