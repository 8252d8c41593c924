// Package store is the pgx-backed relational writer for parsed block,
// transaction, transfer, approval, swap, and address-stats data. The
// block processor writes within one outer transaction per job and a
// nested SAVEPOINT per transaction so a single bad item rolls back
// without discarding the rest of the job. The log processor's writes run
// directly on the pool, each statement on its own, with address-stat
// upserts grouped in a short transaction of their own.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/csic-platform/eth-indexer/internal/domain"
)

// Store is the pgx/v5-backed implementation of ports.Store.
type Store struct {
	pool *pgxpool.Pool
}

// New builds a Store over an existing connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// WithSavepoint runs fn inside a nested transaction (SAVEPOINT) of tx.
// pgx opens a real SAVEPOINT whenever Begin is called on an already-open
// pgx.Tx, giving per-item isolation within one outer job transaction.
func WithSavepoint(ctx context.Context, tx pgx.Tx, fn func(pgx.Tx) error) error {
	sp, err := tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin savepoint: %w", err)
	}
	if err := fn(sp); err != nil {
		if rbErr := sp.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}
	if err := sp.Commit(ctx); err != nil {
		return fmt.Errorf("commit savepoint: %w", err)
	}
	return nil
}

// BeginBlockTx opens the outer transaction a block job writes within.
func (s *Store) BeginBlockTx(ctx context.Context) (pgx.Tx, error) {
	return s.pool.Begin(ctx)
}

// WriteBlockHeader upserts the block row within the given transaction,
// marking it PROCESSING on first insert. Transactions and contract rows
// are written separately through WriteTransactionWithinSavepoint.
func (s *Store) WriteBlockHeader(ctx context.Context, tx pgx.Tx, b domain.Block) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO blocks (block_number, block_hash, parent_hash, block_timestamp, canonical, worker_status)
		VALUES ($1, $2, $3, $4, $5, 'PROCESSING')
		ON CONFLICT (block_number) DO UPDATE SET
			block_hash = EXCLUDED.block_hash,
			parent_hash = EXCLUDED.parent_hash,
			block_timestamp = EXCLUDED.block_timestamp,
			canonical = EXCLUDED.canonical
	`, b.Number, b.Hash, b.ParentHash, b.Timestamp, b.Canonical)
	if err != nil {
		return fmt.Errorf("upsert block %d: %w", b.Number, err)
	}
	return nil
}

// FinishBlock marks the block row DONE or ERROR.
func (s *Store) FinishBlock(ctx context.Context, tx pgx.Tx, blockNumber uint64, status domain.WorkerStatus) error {
	_, err := tx.Exec(ctx, `UPDATE blocks SET worker_status = $1 WHERE block_number = $2`, status, blockNumber)
	if err != nil {
		return fmt.Errorf("finish block %d: %w", blockNumber, err)
	}
	return nil
}

// WriteTransactionWithinSavepoint inserts one transaction row and its
// optional contract-creation row, meant to run inside a per-tx savepoint.
func (s *Store) WriteTransactionWithinSavepoint(ctx context.Context, tx pgx.Tx, t domain.Transaction, contract *domain.Contract) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO transactions (
			tx_hash, block_number, block_hash, block_timestamp, transaction_index, from_address,
			to_address, value, value_usd, gas_used, gas_price, effective_gas_price,
			max_fee_per_gas, max_priority_fee_per_gas, txn_type, status, nonce
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		ON CONFLICT (tx_hash) DO NOTHING
	`, t.Hash, t.BlockNumber, t.BlockHash, t.BlockTimestamp, t.TransactionIndex, t.FromAddress,
		t.ToAddress, t.Value, t.ValueUSD, t.GasUsed, t.GasPrice, t.EffectiveGasPrice,
		t.MaxFeePerGas, t.MaxPriorityFeePerGas, t.TxnType, t.Status, t.Nonce)
	if err != nil {
		return fmt.Errorf("insert transaction %s: %w", t.Hash, err)
	}

	if contract != nil {
		_, err := tx.Exec(ctx, `
			INSERT INTO contracts (contract_address, creator_address, tx_hash, block_number, created_at)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT (contract_address) DO NOTHING
		`, contract.Address, contract.CreatorAddress, contract.TransactionHash, contract.BlockNumber, contract.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert contract %s: %w", contract.Address, err)
		}
	}

	return nil
}

// IsContractAddress reports whether address has a contracts row.
func (s *Store) IsContractAddress(ctx context.Context, tx pgx.Tx, address string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM contracts WHERE contract_address = $1)`, address).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check contract address %s: %w", address, err)
	}
	return exists, nil
}

// UpsertAddressStatsTx applies one or more per-address stat deltas
// within tx. Deltas are sorted lexicographically by address before the
// upserts run so two concurrent workers touching the same address set
// always acquire row locks in the same order, avoiding a classic upsert
// deadlock. is_contract only ever gets OR'd true, never reset false,
// and first_seen_block is fixed at insert time and never overwritten.
func (s *Store) UpsertAddressStatsTx(ctx context.Context, tx pgx.Tx, deltas []domain.AddressStatsDelta) error {
	sorted := append([]domain.AddressStatsDelta(nil), deltas...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Address < sorted[j].Address })

	for _, d := range sorted {
		addr := strings.ToLower(d.Address)
		_, err := tx.Exec(ctx, `
			INSERT INTO address_stats (
				address, tx_count, eth_sent, eth_received, contract_deployments,
				token_transfers_sent, token_transfers_received, first_seen_block,
				last_seen_block, is_contract
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8, $9)
			ON CONFLICT (address) DO UPDATE SET
				tx_count = address_stats.tx_count + $2,
				eth_sent = address_stats.eth_sent + $3,
				eth_received = address_stats.eth_received + $4,
				contract_deployments = address_stats.contract_deployments + $5,
				token_transfers_sent = address_stats.token_transfers_sent + $6,
				token_transfers_received = address_stats.token_transfers_received + $7,
				last_seen_block = GREATEST(address_stats.last_seen_block, $8),
				is_contract = address_stats.is_contract OR $9
		`, addr, d.TxCountDelta, d.EthSentDelta, d.EthReceivedDelta, d.ContractDeploymentsDelta,
			d.TokenTransfersSentDelta, d.TokenTransfersReceivedDelta, d.BlockNumber, d.IsContract)
		if err != nil {
			return fmt.Errorf("upsert address stats %s: %w", addr, err)
		}
	}
	return nil
}

// CanonicalHash returns the stored block hash and whether the row is
// already marked canonical.
func (s *Store) CanonicalHash(ctx context.Context, blockNumber uint64) (string, bool, error) {
	var hash string
	var canonical bool
	err := s.pool.QueryRow(ctx, `SELECT block_hash, canonical FROM blocks WHERE block_number = $1`, blockNumber).Scan(&hash, &canonical)
	if err != nil {
		return "", false, fmt.Errorf("lookup canonical hash for block %d: %w", blockNumber, err)
	}
	return hash, canonical, nil
}

// WriteTransfer inserts a normalized transfer row, ignoring duplicates
// (the same log can be reprocessed on redrive).
func (s *Store) WriteTransfer(ctx context.Context, t domain.Transfer) error {
	var tokenID any
	if t.TokenID != nil {
		tokenID = t.TokenID.String()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO transfers (
			tx_hash, log_index, transaction_index, block_number, token_address,
			token_type, from_address, to_address, value, normalized_amount, amount_usd,
			token_id, raw_log, inserted_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13, now())
		ON CONFLICT (tx_hash, log_index) DO NOTHING
	`, t.TransactionHash, t.LogIndex, t.TransactionIndex, t.BlockNumber, t.TokenAddress,
		t.TokenType, t.FromAddress, t.ToAddress, t.Value, t.NormalizedAmount, t.AmountUSD,
		tokenID, t.RawLog)
	if err != nil {
		return fmt.Errorf("insert transfer %s#%d: %w", t.TransactionHash, t.LogIndex, err)
	}
	return nil
}

// WriteApproval inserts a normalized approval row.
func (s *Store) WriteApproval(ctx context.Context, a domain.Approval) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO approvals (tx_hash, log_index, block_number, token_address, owner_address, spender_address, value)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (tx_hash, log_index) DO NOTHING
	`, a.TransactionHash, a.LogIndex, a.BlockNumber, a.TokenAddress, a.OwnerAddress, a.SpenderAddress, a.Value)
	if err != nil {
		return fmt.Errorf("insert approval %s#%d: %w", a.TransactionHash, a.LogIndex, err)
	}
	return nil
}

// WriteSwap inserts a normalized DEX swap row.
func (s *Store) WriteSwap(ctx context.Context, sw domain.Swap) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO swaps (
			tx_hash, log_index, block_number, dex_name, pool_address, sender_address,
			recipient_address, token0_address, token1_address, amount0_in, amount1_in,
			amount0_out, amount1_out, sqrt_price_x96, liquidity, tick
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (tx_hash, log_index) DO NOTHING
	`, sw.TransactionHash, sw.LogIndex, sw.BlockNumber, sw.DexName, sw.PoolAddress, sw.SenderAddress,
		sw.RecipientAddress, sw.Token0Address, sw.Token1Address, sw.Amount0In, sw.Amount1In,
		sw.Amount0Out, sw.Amount1Out, sw.SqrtPriceX96, sw.Liquidity, sw.Tick)
	if err != nil {
		return fmt.Errorf("insert swap %s#%d: %w", sw.TransactionHash, sw.LogIndex, err)
	}
	return nil
}

// UpsertNftMetadata upserts an NFT owner stub, the minimal "who owns
// this token id right now" record kept alongside transfer processing.
func (s *Store) UpsertNftMetadata(ctx context.Context, n domain.NftMetadata) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO nft_metadata (token_address, token_id, owner_address, updated_at)
		VALUES ($1,$2,$3, now())
		ON CONFLICT (token_address, token_id) DO UPDATE SET
			owner_address = EXCLUDED.owner_address,
			updated_at = now()
	`, n.TokenAddress, n.TokenID.String(), n.OwnerAddress)
	if err != nil {
		return fmt.Errorf("upsert nft metadata %s#%s: %w", n.TokenAddress, n.TokenID.String(), err)
	}
	return nil
}

// UpsertAddressStats is the non-transactional entry point used by the log
// processor, which writes one transfer/approval/swap at a time rather
// than a whole block inside one outer transaction.
func (s *Store) UpsertAddressStats(ctx context.Context, deltas []domain.AddressStatsDelta) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin address stats tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.UpsertAddressStatsTx(ctx, tx, deltas); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// UpsertToken upserts cached token metadata.
func (s *Store) UpsertToken(ctx context.Context, tok domain.Token) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tokens (token_address, token_type, name, symbol, decimals, failed, fetched_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (token_address) DO UPDATE SET
			name = EXCLUDED.name, symbol = EXCLUDED.symbol, decimals = EXCLUDED.decimals,
			failed = EXCLUDED.failed, fetched_at = EXCLUDED.fetched_at
	`, tok.Address, tok.TokenType, tok.Name, tok.Symbol, tok.Decimals, tok.Failed, tok.FetchedAt)
	if err != nil {
		return fmt.Errorf("upsert token %s: %w", tok.Address, err)
	}
	return nil
}

// WriteBlock satisfies ports.Store's single-call signature for callers
// (tests, simple scripts) that don't need per-tx savepoint granularity;
// the block worker itself uses BeginBlockTx/WriteBlockHeader/
// WriteTransactionWithinSavepoint/FinishBlock directly for that control.
func (s *Store) WriteBlock(ctx context.Context, b domain.Block, txs []domain.Transaction, contracts []domain.Contract) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin block tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.WriteBlockHeader(ctx, tx, b); err != nil {
		return err
	}

	contractByCreator := make(map[string]*domain.Contract, len(contracts))
	for i := range contracts {
		contractByCreator[contracts[i].TransactionHash] = &contracts[i]
	}

	for _, t := range txs {
		t := t
		err := WithSavepoint(ctx, tx, func(sp pgx.Tx) error {
			return s.WriteTransactionWithinSavepoint(ctx, sp, t, contractByCreator[t.Hash])
		})
		if err != nil {
			return fmt.Errorf("write transaction %s: %w", t.Hash, err)
		}
	}

	if err := s.FinishBlock(ctx, tx, b.Number, domain.StatusDone); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
