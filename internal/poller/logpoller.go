package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/csic-platform/eth-indexer/internal/chain"
	"github.com/csic-platform/eth-indexer/internal/domain"
	"github.com/csic-platform/eth-indexer/internal/logging"
	"github.com/csic-platform/eth-indexer/internal/ports"
)

// LogPoller subscribes to new logs matching a filter and enqueues one
// LogJob per block height they appear in, deduplicating consecutive logs
// from the same block into a single job.
type LogPoller struct {
	client *chain.Client
	queue  ports.Queue
	log    *logging.Logger
}

// NewLogPoller builds a LogPoller.
func NewLogPoller(client *chain.Client, queue ports.Queue, log *logging.Logger) *LogPoller {
	return &LogPoller{client: client, queue: queue, log: log}
}

// Run subscribes to all logs and enqueues a log job per run of
// consecutive logs from the same block height, reconnecting on error or
// receive timeout.
func (l *LogPoller) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := l.streamOnce(ctx); err != nil {
			l.log.Warn("log subscription dropped, reconnecting", logging.Err(err))
			select {
			case <-time.After(reconnectDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (l *LogPoller) streamOnce(ctx context.Context) error {
	logCh := make(chan types.Log)
	sub, err := l.client.Raw().SubscribeFilterLogs(ctx, ethereum.FilterQuery{}, logCh)
	if err != nil {
		return fmt.Errorf("subscribe filter logs: %w", err)
	}
	defer sub.Unsubscribe()

	l.log.Info("log poller subscribed")

	var lastBlock uint64
	var haveLast bool

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return fmt.Errorf("log subscription error: %w", err)
		case <-time.After(receiveTimeout):
			return fmt.Errorf("no new log received within %s, treating as disconnect", receiveTimeout)
		case lg := <-logCh:
			if haveLast && lg.BlockNumber == lastBlock {
				continue
			}
			lastBlock = lg.BlockNumber
			haveLast = true

			job := domain.LogJob{
				JobID:       fmt.Sprintf("log-%d-%s", lg.BlockNumber, lg.BlockHash.Hex()),
				BlockNumber: lg.BlockNumber,
				BlockHash:   lg.BlockHash.Hex(),
				Status:      "new",
			}
			if err := l.queue.PushLogJob(ctx, job); err != nil {
				l.log.Error("could not enqueue log job", logging.Uint64("block_number", job.BlockNumber), logging.Err(err))
				continue
			}
			l.log.Info("enqueued log job", logging.Uint64("block_number", job.BlockNumber))
		}
	}
}
