// Package backfill plans and executes historical range ingestion: queue
// one block job per height, then sweep the range for logs in adaptively
// sized windows, shrinking the window whenever the node refuses a
// request for returning too many results.
package backfill

import (
	"context"
	"fmt"
	"strings"

	"github.com/csic-platform/eth-indexer/internal/domain"
	"github.com/csic-platform/eth-indexer/internal/logging"
	"github.com/csic-platform/eth-indexer/internal/metrics"
	"github.com/csic-platform/eth-indexer/internal/ports"
)

// MaxRangeBlocks bounds a single backfill request to avoid an
// unbounded node-side scan.
const MaxRangeBlocks = 50_000

// Planner drives historical ingestion over [Start, End].
type Planner struct {
	queue            ports.Queue
	chain            ports.ChainClient
	log              *logging.Logger
	initialBatchSize uint64
	minBatchSize     uint64
	tsCache          *timestampCache
}

// Config tunes the planner's adaptive batching.
type Config struct {
	InitialBatchSize   uint64
	MinBatchSize       uint64
	TimestampCacheSize int
}

// New builds a Planner.
func New(queue ports.Queue, chain ports.ChainClient, cfg Config, log *logging.Logger) *Planner {
	if cfg.InitialBatchSize == 0 {
		cfg.InitialBatchSize = 2000
	}
	if cfg.MinBatchSize == 0 {
		cfg.MinBatchSize = 10
	}
	return &Planner{
		queue: queue, chain: chain, log: log,
		initialBatchSize: cfg.InitialBatchSize, minBatchSize: cfg.MinBatchSize,
		tsCache: newTimestampCache(cfg.TimestampCacheSize),
	}
}

// blockTimestamp resolves a block's timestamp via the LRU cache first,
// only falling back to a header fetch on a miss.
func (p *Planner) blockTimestamp(ctx context.Context, blockNumber uint64) uint64 {
	if ts, ok := p.tsCache.get(blockNumber); ok {
		return ts
	}
	header, err := p.chain.HeaderByNumber(ctx, blockNumber)
	if err != nil {
		p.log.Warn("could not fetch block timestamp", logging.Uint64("block_number", blockNumber), logging.Err(err))
		p.tsCache.put(blockNumber, 0)
		return 0
	}
	ts := header.Time
	p.tsCache.put(blockNumber, ts)
	return ts
}

// Result summarizes one backfill run.
type Result struct {
	BlocksQueued int
	LogsQueued   int
}

// Run validates the range, enqueues one block job per height, then
// sweeps the range for logs with adaptive batch shrinking.
func (p *Planner) Run(ctx context.Context, start, end uint64) (*Result, error) {
	if end < start {
		return nil, fmt.Errorf("invalid range: end %d before start %d", end, start)
	}
	blockCount := end - start + 1
	if blockCount > MaxRangeBlocks {
		return nil, fmt.Errorf("range too large: maximum %d blocks allowed, requested %d", MaxRangeBlocks, blockCount)
	}

	result := &Result{}

	for n := start; n <= end; n++ {
		job := domain.BlockJob{JobID: fmt.Sprintf("backfill-block-%d", n), BlockNumber: n, Status: "new"}
		if err := p.queue.PushBlockJob(ctx, job); err != nil {
			return result, fmt.Errorf("enqueue block job %d: %w", n, err)
		}
		result.BlocksQueued++
	}

	logsQueued, err := p.sweepLogs(ctx, start, end)
	result.LogsQueued = logsQueued
	if err != nil {
		return result, err
	}

	p.log.Info("backfill complete",
		logging.Uint64("start", start), logging.Uint64("end", end),
		logging.Int("blocks_queued", result.BlocksQueued), logging.Int("logs_queued", result.LogsQueued),
	)
	return result, nil
}

// sweepLogs walks [start, end] in windows of currentBatch blocks,
// halving the window whenever the node reports too many results and
// failing once the window shrinks below minBatchSize.
func (p *Planner) sweepLogs(ctx context.Context, start, end uint64) (int, error) {
	current := start
	currentBatch := p.initialBatchSize
	totalLogs := 0
	seenBlocks := make(map[uint64]struct{}, 256)

	for current <= end {
		batchEnd := current + currentBatch - 1
		if batchEnd > end {
			batchEnd = end
		}

		logs, err := p.chain.FilterLogs(ctx, current, batchEnd, nil)
		if err != nil {
			if isTooManyResults(err) {
				currentBatch = currentBatch / 2
				if currentBatch < 1 {
					currentBatch = 1
				}
				if currentBatch < p.minBatchSize {
					return totalLogs, fmt.Errorf("unable to fetch logs even in small batches (failed at block %d): %w", current, err)
				}
				continue
			}
			return totalLogs, fmt.Errorf("filter logs [%d,%d]: %w", current, batchEnd, err)
		}

		metrics.BackfillRangeSize.Observe(float64(batchEnd - current + 1))

		for _, l := range logs {
			if _, ok := seenBlocks[l.BlockNumber]; ok {
				continue
			}
			seenBlocks[l.BlockNumber] = struct{}{}
			p.blockTimestamp(ctx, l.BlockNumber)

			job := domain.LogJob{
				JobID:       fmt.Sprintf("backfill-log-%d", l.BlockNumber),
				BlockNumber: l.BlockNumber,
				BlockHash:   l.BlockHash.Hex(),
				Status:      "new",
			}
			if err := p.queue.PushLogJob(ctx, job); err != nil {
				return totalLogs, fmt.Errorf("enqueue log job for block %d: %w", l.BlockNumber, err)
			}
			totalLogs++
		}

		current = batchEnd + 1
		currentBatch = p.initialBatchSize
	}

	return totalLogs, nil
}

func isTooManyResults(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "-32005") || strings.Contains(msg, "more than 10000 results") || strings.Contains(msg, "too many results")
}
