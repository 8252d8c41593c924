// Package poller subscribes to live chain events over a websocket
// connection and turns them into queued jobs, reconnecting with backoff
// whenever the subscription drops.
package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/csic-platform/eth-indexer/internal/chain"
	"github.com/csic-platform/eth-indexer/internal/domain"
	"github.com/csic-platform/eth-indexer/internal/logging"
	"github.com/csic-platform/eth-indexer/internal/ports"
)

const (
	reconnectDelay   = 2 * time.Second
	receiveTimeout   = 60 * time.Second
)

// HeadPoller subscribes to new block headers and enqueues one BlockJob
// per head, the live-tip counterpart to the historical backfill planner.
type HeadPoller struct {
	client *chain.Client
	queue  ports.Queue
	log    *logging.Logger
}

// NewHeadPoller builds a HeadPoller.
func NewHeadPoller(client *chain.Client, queue ports.Queue, log *logging.Logger) *HeadPoller {
	return &HeadPoller{client: client, queue: queue, log: log}
}

// Run subscribes to new heads and enqueues a block job for each one,
// reconnecting on any subscription error or receive timeout until ctx is
// cancelled.
func (h *HeadPoller) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := h.streamOnce(ctx); err != nil {
			h.log.Warn("head subscription dropped, reconnecting", logging.Err(err))
			select {
			case <-time.After(reconnectDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (h *HeadPoller) streamOnce(ctx context.Context) error {
	headCh := make(chan *types.Header)
	sub, err := h.client.Raw().SubscribeNewHead(ctx, headCh)
	if err != nil {
		return fmt.Errorf("subscribe new heads: %w", err)
	}
	defer sub.Unsubscribe()

	h.log.Info("head poller subscribed")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return fmt.Errorf("head subscription error: %w", err)
		case <-time.After(receiveTimeout):
			return fmt.Errorf("no new head received within %s, treating as disconnect", receiveTimeout)
		case header := <-headCh:
			job := domain.BlockJob{
				JobID:       fmt.Sprintf("block-%d-%s", header.Number.Uint64(), header.Hash().Hex()),
				BlockNumber: header.Number.Uint64(),
				BlockHash:   header.Hash().Hex(),
				Status:      "new",
			}
			if err := h.queue.PushBlockJob(ctx, job); err != nil {
				h.log.Error("could not enqueue block job", logging.Uint64("block_number", job.BlockNumber), logging.Err(err))
				continue
			}
			h.log.Info("enqueued block job", logging.Uint64("block_number", job.BlockNumber))
		}
	}
}
