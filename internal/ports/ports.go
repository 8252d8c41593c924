// Package ports declares the interfaces workers and pollers depend on,
// so adapters (Redis queue, Postgres store, RPC chain client) can be
// swapped or mocked independently of business logic.
package ports

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/csic-platform/eth-indexer/internal/domain"
)

// Queue is the FIFO job queue backing the block/log worker pools.
type Queue interface {
	PushBlockJob(ctx context.Context, job domain.BlockJob) error
	PushLogJob(ctx context.Context, job domain.LogJob) error
	PopBlockJob(ctx context.Context, timeoutSeconds int) (*domain.BlockJob, error)
	PopLogJob(ctx context.Context, timeoutSeconds int) (*domain.LogJob, error)
	Ack(ctx context.Context, jobID string) error
}

// DeadLetterStore records and redrives permanently failed jobs.
type DeadLetterStore interface {
	Record(ctx context.Context, fj domain.FailedJob) error
	Remove(ctx context.Context, jobID string) error
	Redrive(ctx context.Context, jobType domain.JobType) (int, error)
}

// TokenCache resolves and caches on-chain token metadata and the ETH/USD
// price.
type TokenCache interface {
	GetMetadata(ctx context.Context, address string, tokenType domain.TokenType) (*domain.Token, error)
	GetEthPriceUSD(ctx context.Context) (float64, error)
}

// ChainClient is the subset of Ethereum RPC access the pipeline needs.
type ChainClient interface {
	BlockByNumber(ctx context.Context, number uint64) (*types.Block, error)
	HeaderByNumber(ctx context.Context, number uint64) (*types.Header, error)
	TransactionReceipt(ctx context.Context, txHash string) (*types.Receipt, error)
	CodeAt(ctx context.Context, address string) ([]byte, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []string) ([]types.Log, error)
	CallView(ctx context.Context, address string, selector [4]byte) ([]byte, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
}

// Store is the relational persistence layer for the parsed domain model.
type Store interface {
	WriteBlock(ctx context.Context, b domain.Block, txs []domain.Transaction, contracts []domain.Contract) error
	WriteTransfer(ctx context.Context, t domain.Transfer) error
	WriteApproval(ctx context.Context, a domain.Approval) error
	WriteSwap(ctx context.Context, s domain.Swap) error
	UpsertNftMetadata(ctx context.Context, n domain.NftMetadata) error
	UpsertAddressStats(ctx context.Context, deltas []domain.AddressStatsDelta) error
	UpsertToken(ctx context.Context, tok domain.Token) error
	CanonicalHash(ctx context.Context, blockNumber uint64) (string, bool, error)
}

// PoolResolver resolves the two underlying tokens and originating
// factory of an AMM pool address, caching results since pool
// composition never changes.
type PoolResolver interface {
	Tokens(ctx context.Context, poolAddress string) (token0, token1 string, err error)
	Factory(ctx context.Context, poolAddress string) (factory string, err error)
}

// BigIntOrZero returns x, or zero if x is nil, to keep decode helpers
// terse when a field is optional.
func BigIntOrZero(x *big.Int) *big.Int {
	if x == nil {
		return big.NewInt(0)
	}
	return x
}
