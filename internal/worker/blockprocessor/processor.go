// Package blockprocessor implements the block-job worker: fetch a block,
// detect reorgs against the canonical chain, parse its transactions and
// contract creations, and persist them inside one transaction per block
// with a savepoint per transaction.
package blockprocessor

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/csic-platform/eth-indexer/internal/domain"
	"github.com/csic-platform/eth-indexer/internal/logging"
	"github.com/csic-platform/eth-indexer/internal/metrics"
	"github.com/csic-platform/eth-indexer/internal/ports"
	"github.com/csic-platform/eth-indexer/internal/store"
)

// Processor consumes block jobs and writes parsed blocks to the store.
type Processor struct {
	queue      ports.Queue
	chain      ports.ChainClient
	store      *store.Store
	deadLetter ports.DeadLetterStore
	tokens     ports.TokenCache
	log        *logging.Logger

	popTimeoutSeconds int
}

// New builds a Processor.
func New(queue ports.Queue, chain ports.ChainClient, st *store.Store, deadLetter ports.DeadLetterStore, tokens ports.TokenCache, log *logging.Logger, popTimeoutSeconds int) *Processor {
	return &Processor{
		queue: queue, chain: chain, store: st, deadLetter: deadLetter, tokens: tokens,
		log: log, popTimeoutSeconds: popTimeoutSeconds,
	}
}

// Run blocks, pulling jobs until ctx is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	p.log.Info("block processor listening")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		job, err := p.queue.PopBlockJob(ctx, p.popTimeoutSeconds)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.log.Error("pop block job failed", logging.Err(err))
			continue
		}
		if job == nil {
			continue
		}

		isRetry := job.Status == "retrying"
		if isRetry {
			p.log.Info("processing block (retry)", logging.Uint64("block_number", job.BlockNumber))
		} else {
			p.log.Info("processing block", logging.Uint64("block_number", job.BlockNumber))
		}

		start := time.Now()
		err = p.processBlock(ctx, job.BlockNumber, job.BlockHash)
		metrics.BlockProcessDuration.Observe(time.Since(start).Seconds())

		if err != nil {
			p.log.Error("error processing block", logging.Uint64("block_number", job.BlockNumber), logging.Err(err))
			metrics.JobsFailed.WithLabelValues("block").Inc()
			if recErr := p.deadLetter.Record(ctx, domain.FailedJob{
				ID: job.JobID, JobType: domain.JobTypeBlock, Payload: mustMarshal(job), LastError: err.Error(),
			}); recErr != nil {
				p.log.Error("CRITICAL: could not record dead letter, job left in queue", logging.String("job_id", job.JobID), logging.Err(recErr))
				if pushErr := p.queue.PushBlockJob(ctx, *job); pushErr != nil {
					p.log.Error("could not put block job back on the queue", logging.String("job_id", job.JobID), logging.Err(pushErr))
				}
				continue
			}
			_ = p.queue.Ack(ctx, job.JobID)
			continue
		}

		_ = p.queue.Ack(ctx, job.JobID)
		metrics.JobsProcessed.WithLabelValues("block").Inc()
		if isRetry {
			if err := p.deadLetter.Remove(ctx, job.JobID); err != nil {
				p.log.Warn("could not remove job from dead letters", logging.String("job_id", job.JobID), logging.Err(err))
			}
		}
	}
}

func mustMarshal(v any) string {
	b, _ := jsonMarshal(v)
	return string(b)
}

func (p *Processor) processBlock(ctx context.Context, blockNumber uint64, queuedHash string) error {
	block, err := p.chain.BlockByNumber(ctx, blockNumber)
	if err != nil {
		return fmt.Errorf("fetch block %d: %w", blockNumber, err)
	}

	actualHash := block.Hash().Hex()
	canonical := actualHash == queuedHash
	if !canonical {
		p.log.Warn("block reorg detected",
			logging.Uint64("block_number", blockNumber),
			logging.String("queued_hash", queuedHash),
			logging.String("canonical_hash", actualHash),
		)
		queuedHash = actualHash
	}

	blockTS := time.Unix(int64(block.Time()), 0).UTC()

	tx, err := p.store.BeginBlockTx(ctx)
	if err != nil {
		return fmt.Errorf("begin block tx: %w", err)
	}
	defer tx.Rollback(ctx)

	b := domain.Block{
		Number: blockNumber, Hash: queuedHash, ParentHash: block.ParentHash().Hex(),
		Timestamp: blockTS, Canonical: true,
	}
	if err := p.store.WriteBlockHeader(ctx, tx, b); err != nil {
		return err
	}

	ethPrice, _ := p.tokens.GetEthPriceUSD(ctx)

	txCount := 0
	for _, gtx := range block.Transactions() {
		txCount++
		err := store.WithSavepoint(ctx, tx, func(sp pgx.Tx) error {
			return p.processTransaction(ctx, sp, gtx, block, blockNumber, queuedHash, blockTS, ethPrice)
		})
		if err != nil {
			p.log.Warn("error parsing transaction, skipped", logging.String("tx_hash", gtx.Hash().Hex()), logging.Err(err))
		}
	}

	if err := p.store.FinishBlock(ctx, tx, blockNumber, domain.StatusDone); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit block %d: %w", blockNumber, err)
	}

	p.log.Info("block completed", logging.Uint64("block_number", blockNumber), logging.Int("tx_count", txCount))
	return nil
}

func (p *Processor) processTransaction(ctx context.Context, sp pgx.Tx, gtx *gethTx, block *gethBlock, blockNumber uint64, blockHash string, blockTS time.Time, ethPrice float64) error {
	from, err := senderAddress(gtx)
	if err != nil {
		from = ""
	}

	var to *string
	var contract *domain.Contract
	if gtx.To() == nil {
		receipt, err := p.chain.TransactionReceipt(ctx, gtx.Hash().Hex())
		if err == nil && receipt != nil && receipt.ContractAddress != (gethAddressZero) {
			addr := receipt.ContractAddress.Hex()
			contract = &domain.Contract{
				Address: strings.ToLower(addr), CreatorAddress: strings.ToLower(from),
				TransactionHash: gtx.Hash().Hex(), BlockNumber: blockNumber, CreatedAt: blockTS,
			}
		}
	} else {
		toAddr := strings.ToLower(gtx.To().Hex())
		to = &toAddr
	}

	effective := effectiveGasPrice(gtx, block)

	value := weiToDecimal(gtx.Value())
	valueUSD := computeValueUSD(value, ethPrice)

	var maxFeePerGas, maxPriorityFeePerGas *decimal.Decimal
	var txnType *int32
	if gtx.Type() == types.DynamicFeeTxType {
		f := weiToDecimal(gtx.GasFeeCap())
		maxFeePerGas = &f
		pr := weiToDecimal(gtx.GasTipCap())
		maxPriorityFeePerGas = &pr
	}
	tt := int32(gtx.Type())
	txnType = &tt

	t := domain.Transaction{
		Hash: gtx.Hash().Hex(), BlockNumber: blockNumber, BlockHash: blockHash, BlockTimestamp: blockTS,
		FromAddress: strings.ToLower(from), ToAddress: to,
		Value: value, ValueUSD: valueUSD, GasUsed: gtx.Gas(),
		GasPrice: weiToDecimal(gtx.GasPrice()), EffectiveGasPrice: weiToDecimal(effective),
		MaxFeePerGas: maxFeePerGas, MaxPriorityFeePerGas: maxPriorityFeePerGas, TxnType: txnType,
		Status: 1, Nonce: gtx.Nonce(),
	}

	if err := p.store.WriteTransactionWithinSavepoint(ctx, sp, t, contract); err != nil {
		return err
	}

	var deltas []domain.AddressStatsDelta
	if t.FromAddress != "" {
		deltas = append(deltas, domain.AddressStatsDelta{
			Address: t.FromAddress, BlockNumber: blockNumber, TxCountDelta: 1, EthSentDelta: value,
		})
	}
	if to != nil {
		isContract, err := p.store.IsContractAddress(ctx, sp, *to)
		if err != nil {
			return err
		}
		deltas = append(deltas, domain.AddressStatsDelta{
			Address: *to, BlockNumber: blockNumber, TxCountDelta: 1, EthReceivedDelta: value, IsContract: isContract,
		})
	}
	if contract != nil {
		deltas = append(deltas, domain.AddressStatsDelta{
			Address: contract.CreatorAddress, BlockNumber: blockNumber, ContractDeploymentsDelta: 1,
		})
	}
	if len(deltas) > 0 {
		if err := p.store.UpsertAddressStatsTx(ctx, sp, deltas); err != nil {
			return err
		}
	}

	return nil
}

// computeValueUSD converts a wei-denominated value to its USD fiat
// valuation given an ETH/USD price, returning nil when no price is
// available (a price-oracle miss means "no fiat valuation", not zero).
func computeValueUSD(weiValue decimal.Decimal, ethPrice float64) *decimal.Decimal {
	if ethPrice <= 0 {
		return nil
	}
	v := weiValue.Shift(-18).Mul(decimal.NewFromFloat(ethPrice))
	return &v
}

func weiToDecimal(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, 0)
}
