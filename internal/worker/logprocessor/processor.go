// Package logprocessor implements the log-job worker: re-fetch the logs
// of the block (or block range) a job names, decode each one, and persist
// the normalized transfer/approval/swap rows, updating token-transfer
// address stats as it goes.
package logprocessor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	"github.com/csic-platform/eth-indexer/internal/decode"
	"github.com/csic-platform/eth-indexer/internal/domain"
	"github.com/csic-platform/eth-indexer/internal/logging"
	"github.com/csic-platform/eth-indexer/internal/metrics"
	"github.com/csic-platform/eth-indexer/internal/ports"
	"github.com/csic-platform/eth-indexer/internal/store"
)

// Processor consumes log jobs, decodes them, and persists normalized
// events.
type Processor struct {
	queue      ports.Queue
	chain      ports.ChainClient
	store      *store.Store
	deadLetter ports.DeadLetterStore
	tokens     ports.TokenCache
	pools      ports.PoolResolver
	log        *logging.Logger

	popTimeoutSeconds int
}

// New builds a Processor.
func New(queue ports.Queue, chain ports.ChainClient, st *store.Store, deadLetter ports.DeadLetterStore, tokens ports.TokenCache, pools ports.PoolResolver, log *logging.Logger, popTimeoutSeconds int) *Processor {
	return &Processor{
		queue: queue, chain: chain, store: st, deadLetter: deadLetter,
		tokens: tokens, pools: pools, log: log, popTimeoutSeconds: popTimeoutSeconds,
	}
}

// Run blocks, pulling jobs until ctx is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	p.log.Info("log processor listening")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		job, err := p.queue.PopLogJob(ctx, p.popTimeoutSeconds)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.log.Error("pop log job failed", logging.Err(err))
			continue
		}
		if job == nil {
			continue
		}

		start := time.Now()
		err = p.processJob(ctx, job)
		metrics.LogProcessDuration.Observe(time.Since(start).Seconds())

		if err != nil {
			p.log.Error("error processing log job", logging.String("job_id", job.JobID), logging.Err(err))
			metrics.JobsFailed.WithLabelValues("log").Inc()
			if recErr := p.deadLetter.Record(ctx, domain.FailedJob{
				ID: job.JobID, JobType: domain.JobTypeLog, Payload: mustMarshal(job), LastError: err.Error(),
			}); recErr != nil {
				p.log.Error("CRITICAL: could not record dead letter, job left in queue", logging.String("job_id", job.JobID), logging.Err(recErr))
				if pushErr := p.queue.PushLogJob(ctx, *job); pushErr != nil {
					p.log.Error("could not put log job back on the queue", logging.String("job_id", job.JobID), logging.Err(pushErr))
				}
				continue
			}
			_ = p.queue.Ack(ctx, job.JobID)
			continue
		}

		_ = p.queue.Ack(ctx, job.JobID)
		metrics.JobsProcessed.WithLabelValues("log").Inc()
		if job.Status == "retrying" {
			if err := p.deadLetter.Remove(ctx, job.JobID); err != nil {
				p.log.Warn("could not remove job from dead letters", logging.String("job_id", job.JobID), logging.Err(err))
			}
		}
	}
}

func mustMarshal(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

// processJob re-fetches the block's logs in the job's range and decodes
// each one. A LogJob names a block (or range) rather than carrying the
// full raw log, keeping queue payloads small.
func (p *Processor) processJob(ctx context.Context, job *domain.LogJob) error {
	from, to := job.FromBlock, job.ToBlock
	if from == 0 && to == 0 {
		from, to = job.BlockNumber, job.BlockNumber
	}

	logs, err := p.chain.FilterLogs(ctx, from, to, nil)
	if err != nil {
		return fmt.Errorf("filter logs [%d,%d]: %w", from, to, err)
	}

	for _, l := range logs {
		if err := p.processLog(ctx, l); err != nil {
			p.log.Warn("error decoding log, skipped", logging.String("tx_hash", l.TxHash.Hex()), logging.Err(err))
		}
	}
	return nil
}

func (p *Processor) processLog(ctx context.Context, l gethtypes.Log) error {
	if len(l.Topics) == 0 {
		return nil
	}

	switch l.Topics[0].Hex() {
	case decode.TopicTransfer:
		return p.handleTransfer(ctx, l)
	case decode.TopicApproval:
		return p.handleApproval(ctx, l)
	case decode.TopicERC1155Single:
		return p.handleERC1155Single(ctx, l)
	case decode.TopicERC1155Batch:
		return p.handleERC1155Batch(ctx, l)
	case decode.TopicUniswapV2Swap:
		return p.handleUniswapV2Swap(ctx, l)
	case decode.TopicUniswapV3Swap:
		return p.handleUniswapV3Swap(ctx, l)
	default:
		return nil
	}
}

func (p *Processor) handleTransfer(ctx context.Context, l gethtypes.Log) error {
	ev, err := decode.DecodeTransfer(l)
	if err != nil {
		return err
	}

	tokenAddr := strings.ToLower(l.Address.Hex())
	tok, _ := p.tokens.GetMetadata(ctx, tokenAddr, ev.TokenType)

	amount := decimal.NewFromBigInt(ev.Amount, 0)
	normalized := normalizedAmount(amount, tok, ev.TokenType)

	t := domain.Transfer{
		TransactionHash: l.TxHash.Hex(), LogIndex: uint(l.Index), TransactionIndex: uint(l.TxIndex),
		BlockNumber: uint64(l.BlockNumber), TokenAddress: tokenAddr, TokenType: ev.TokenType,
		FromAddress: ev.From, ToAddress: ev.To, Value: amount, NormalizedAmount: &normalized,
		TokenID: ev.TokenID, RawLog: mustMarshal(l),
	}
	if err := p.store.WriteTransfer(ctx, t); err != nil {
		return err
	}

	if ev.TokenType == domain.TokenTypeERC721 && ev.TokenID != nil && ev.To != "" {
		if err := p.store.UpsertNftMetadata(ctx, domain.NftMetadata{TokenAddress: tokenAddr, TokenID: ev.TokenID, OwnerAddress: ev.To}); err != nil {
			p.log.Warn("could not upsert nft metadata", logging.Err(err))
		}
	}

	return p.bumpTransferStats(ctx, ev.From, ev.To, uint64(l.BlockNumber))
}

func (p *Processor) handleApproval(ctx context.Context, l gethtypes.Log) error {
	ev, err := decode.DecodeApproval(l)
	if err != nil {
		return err
	}
	a := domain.Approval{
		TransactionHash: l.TxHash.Hex(), LogIndex: uint(l.Index), BlockNumber: uint64(l.BlockNumber),
		TokenAddress: strings.ToLower(l.Address.Hex()), OwnerAddress: ev.Owner, SpenderAddress: ev.Spender,
		Value: decimal.NewFromBigInt(ev.Value, 0),
	}
	return p.store.WriteApproval(ctx, a)
}

func (p *Processor) handleERC1155Single(ctx context.Context, l gethtypes.Log) error {
	ev, err := decode.DecodeERC1155Single(l)
	if err != nil {
		return err
	}

	tokenAddr := strings.ToLower(l.Address.Hex())
	t := domain.Transfer{
		TransactionHash: l.TxHash.Hex(), LogIndex: uint(l.Index), TransactionIndex: uint(l.TxIndex),
		BlockNumber: uint64(l.BlockNumber), TokenAddress: tokenAddr, TokenType: domain.TokenTypeERC1155,
		FromAddress: ev.From, ToAddress: ev.To, Value: decimal.NewFromBigInt(ev.Amount, 0), TokenID: ev.TokenID,
		RawLog: mustMarshal(l),
	}
	if err := p.store.WriteTransfer(ctx, t); err != nil {
		return err
	}
	if ev.To != "" {
		if err := p.store.UpsertNftMetadata(ctx, domain.NftMetadata{TokenAddress: tokenAddr, TokenID: ev.TokenID, OwnerAddress: ev.To}); err != nil {
			p.log.Warn("could not upsert nft metadata", logging.Err(err))
		}
	}
	return p.bumpTransferStats(ctx, ev.From, ev.To, uint64(l.BlockNumber))
}

func (p *Processor) handleERC1155Batch(ctx context.Context, l gethtypes.Log) error {
	ev, err := decode.DecodeERC1155Batch(l)
	if err != nil {
		return err
	}

	tokenAddr := strings.ToLower(l.Address.Hex())
	for i, item := range ev.BatchItems {
		t := domain.Transfer{
			TransactionHash: l.TxHash.Hex(), LogIndex: decode.BatchLogIndex(uint(l.Index), i), TransactionIndex: uint(l.TxIndex),
			BlockNumber: uint64(l.BlockNumber), TokenAddress: tokenAddr, TokenType: domain.TokenTypeERC1155,
			FromAddress: ev.From, ToAddress: ev.To, Value: decimal.NewFromBigInt(item.Amount, 0), TokenID: item.TokenID,
			RawLog: mustMarshal(l),
		}
		if err := p.store.WriteTransfer(ctx, t); err != nil {
			return fmt.Errorf("batch item %d: %w", i, err)
		}
		if ev.To != "" {
			if err := p.store.UpsertNftMetadata(ctx, domain.NftMetadata{TokenAddress: tokenAddr, TokenID: item.TokenID, OwnerAddress: ev.To}); err != nil {
				p.log.Warn("could not upsert nft metadata", logging.Err(err))
			}
		}
	}
	return p.bumpTransferStats(ctx, ev.From, ev.To, uint64(l.BlockNumber))
}

func (p *Processor) handleUniswapV2Swap(ctx context.Context, l gethtypes.Log) error {
	ev, err := decode.DecodeUniswapV2Swap(l)
	if err != nil {
		return err
	}

	poolAddr := strings.ToLower(l.Address.Hex())
	factory, _ := p.pools.Factory(ctx, poolAddr)
	return p.writeSwap(ctx, l, ev, decode.DexNameForFactory(factory))
}

func (p *Processor) handleUniswapV3Swap(ctx context.Context, l gethtypes.Log) error {
	ev, err := decode.DecodeUniswapV3Swap(l)
	if err != nil {
		return err
	}
	return p.writeSwap(ctx, l, ev, "uniswap_v3")
}

func (p *Processor) writeSwap(ctx context.Context, l gethtypes.Log, ev *decode.SwapEvent, dexName string) error {
	poolAddr := strings.ToLower(l.Address.Hex())
	token0, token1, err := p.pools.Tokens(ctx, poolAddr)
	if err != nil {
		p.log.Warn("could not resolve pool tokens, skipping swap", logging.String("pool", poolAddr), logging.Err(err))
		return nil
	}

	s := domain.Swap{
		TransactionHash: l.TxHash.Hex(), LogIndex: uint(l.Index), BlockNumber: uint64(l.BlockNumber),
		DexName: dexName, PoolAddress: poolAddr, SenderAddress: ev.Sender, RecipientAddress: ev.Recipient,
		Token0Address: strings.ToLower(token0), Token1Address: strings.ToLower(token1),
		Amount0In: decimal.NewFromBigInt(ev.Amount0In, 0), Amount1In: decimal.NewFromBigInt(ev.Amount1In, 0),
		Amount0Out: decimal.NewFromBigInt(ev.Amount0Out, 0), Amount1Out: decimal.NewFromBigInt(ev.Amount1Out, 0),
		Tick: ev.Tick,
	}
	if ev.SqrtPriceX96 != nil {
		d := decimal.NewFromBigInt(ev.SqrtPriceX96, 0)
		s.SqrtPriceX96 = &d
	}
	if ev.Liquidity != nil {
		d := decimal.NewFromBigInt(ev.Liquidity, 0)
		s.Liquidity = &d
	}
	return p.store.WriteSwap(ctx, s)
}

// bumpTransferStats updates per-address directional transfer counts,
// excluding the conventional zero address used for mint/burn.
func (p *Processor) bumpTransferStats(ctx context.Context, from, to string, blockNumber uint64) error {
	var deltas []domain.AddressStatsDelta
	if from != "" && !strings.EqualFold(from, decode.ZeroAddress) {
		deltas = append(deltas, domain.AddressStatsDelta{Address: from, BlockNumber: blockNumber, TokenTransfersSentDelta: 1})
	}
	if to != "" && !strings.EqualFold(to, decode.ZeroAddress) {
		deltas = append(deltas, domain.AddressStatsDelta{Address: to, BlockNumber: blockNumber, TokenTransfersReceivedDelta: 1})
	}
	if len(deltas) == 0 {
		return nil
	}
	return p.store.UpsertAddressStats(ctx, deltas)
}

// normalizedAmount adjusts a raw amount by a token's decimals, used
// alongside (never in place of) the raw amount column. ERC-721 transfers
// always normalize to exactly one token.
func normalizedAmount(amount decimal.Decimal, tok *domain.Token, tokenType domain.TokenType) decimal.Decimal {
	if tokenType == domain.TokenTypeERC721 {
		return decimal.NewFromInt(1)
	}
	if tokenType == domain.TokenTypeERC20 && tok != nil && tok.Decimals > 0 {
		return amount.Shift(-tok.Decimals)
	}
	return amount
}
