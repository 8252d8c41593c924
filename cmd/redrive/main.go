// Command redrive runs the periodic maintenance scheduler: sweeping the
// dead-letter store for jobs to retry and keeping the ETH/USD price
// cache warm. It has no work loop of its own beyond the cron schedule.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/csic-platform/eth-indexer/internal/bootstrap"
	"github.com/csic-platform/eth-indexer/internal/httpserver"
	"github.com/csic-platform/eth-indexer/internal/logging"
	"github.com/csic-platform/eth-indexer/internal/scheduler"
)

const (
	redriveSweepCron = "*/5 * * * *"
	priceWarmCron    = "* * * * *"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.Build(ctx, bootstrap.ChainModeHTTP)
	if err != nil {
		log.Fatalf("bootstrap failed: %v", err)
	}
	defer deps.Close()

	sched := scheduler.New(deps.DeadLet, deps.Tokens, deps.Log)
	if err := sched.RegisterRedriveSweep(ctx, redriveSweepCron); err != nil {
		log.Fatalf("register redrive sweep: %v", err)
	}
	if err := sched.RegisterPriceWarm(ctx, priceWarmCron); err != nil {
		log.Fatalf("register price warm: %v", err)
	}
	sched.Start()

	ops := httpserver.New("redrive", httpserver.DBReadiness{DB: deps.SQL}, deps.Log)
	go func() {
		if err := ops.Run(ctx, deps.Config.Metrics.GetServerAddress()); err != nil {
			deps.Log.Error("ops server stopped with error", logging.Err(err))
		}
	}()

	deps.Log.Info("redrive scheduler started")
	<-ctx.Done()

	stopCtx := sched.Stop()
	<-stopCtx.Done()
	deps.Log.Info("redrive scheduler shut down")
}
