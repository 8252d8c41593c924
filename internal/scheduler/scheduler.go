// Package scheduler runs the periodic ambient jobs the pipeline needs
// beyond its main request-driven workers: sweeping the dead-letter store
// for jobs to redrive, and keeping the ETH/USD price cache warm.
package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/csic-platform/eth-indexer/internal/domain"
	"github.com/csic-platform/eth-indexer/internal/logging"
	"github.com/csic-platform/eth-indexer/internal/ports"
)

// Scheduler wraps a robfig/cron runner with the indexer's periodic
// maintenance tasks.
type Scheduler struct {
	cron       *cron.Cron
	deadLetter ports.DeadLetterStore
	tokens     ports.TokenCache
	log        *logging.Logger
}

// New builds a Scheduler.
func New(deadLetter ports.DeadLetterStore, tokens ports.TokenCache, log *logging.Logger) *Scheduler {
	return &Scheduler{
		cron:       cron.New(),
		deadLetter: deadLetter,
		tokens:     tokens,
		log:        log,
	}
}

// RegisterRedriveSweep redrives ERROR-status block and log jobs on the
// given cron expression (e.g. "*/5 * * * *" for every five minutes).
func (s *Scheduler) RegisterRedriveSweep(ctx context.Context, cronExpr string) error {
	_, err := s.cron.AddFunc(cronExpr, func() {
		for _, jt := range []domain.JobType{domain.JobTypeBlock, domain.JobTypeLog} {
			count, err := s.deadLetter.Redrive(ctx, jt)
			if err != nil {
				s.log.Error("redrive sweep failed", logging.String("job_type", string(jt)), logging.Err(err))
				continue
			}
			if count > 0 {
				s.log.Info("redrive sweep republished jobs", logging.String("job_type", string(jt)), logging.Int("count", count))
			}
		}
	})
	return err
}

// RegisterPriceWarm refreshes the ETH/USD price cache on the given cron
// expression, so the first live request after a quiet period doesn't pay
// the oracle round trip.
func (s *Scheduler) RegisterPriceWarm(ctx context.Context, cronExpr string) error {
	_, err := s.cron.AddFunc(cronExpr, func() {
		if _, err := s.tokens.GetEthPriceUSD(ctx); err != nil {
			s.log.Warn("price cache warm failed", logging.Err(err))
		}
	})
	return err
}

// Start begins running registered jobs in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the scheduler and returns a context that is done once
// in-flight jobs have finished; it does not wait itself.
func (s *Scheduler) Stop() context.Context { return s.cron.Stop() }
