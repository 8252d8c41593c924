// Package domain holds the persistence-agnostic entities written and read
// by the indexing pipeline.
package domain

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// WorkerStatus mirrors the lifecycle of a queued unit of work.
type WorkerStatus string

const (
	StatusProcessing WorkerStatus = "PROCESSING"
	StatusDone       WorkerStatus = "DONE"
	StatusError      WorkerStatus = "ERROR"
	StatusRetrying   WorkerStatus = "RETRYING"
)

// JobType distinguishes the two queues a FailedJob can belong to.
type JobType string

const (
	JobTypeBlock JobType = "block"
	JobTypeLog   JobType = "log"
)

// TokenType is used to pick the right ABI when probing a contract.
type TokenType string

const (
	TokenTypeERC20    TokenType = "ERC20"
	TokenTypeERC721   TokenType = "ERC721"
	TokenTypeERC1155  TokenType = "ERC1155"
	TokenTypeUnknown  TokenType = "UNKNOWN"
)

// Block is the canonical-at-write-time view of a fetched block header.
type Block struct {
	Number     uint64
	Hash       string
	ParentHash string
	Timestamp  time.Time
	Canonical  bool
	Extra      map[string]any
}

// Transaction is one tx within a processed block.
type Transaction struct {
	Hash                 string
	BlockNumber          uint64
	BlockHash            string
	BlockTimestamp       time.Time
	TransactionIndex     uint
	FromAddress          string
	ToAddress            *string
	Value                decimal.Decimal
	ValueUSD             *decimal.Decimal
	GasUsed              uint64
	GasPrice             decimal.Decimal
	EffectiveGasPrice    decimal.Decimal
	MaxFeePerGas         *decimal.Decimal
	MaxPriorityFeePerGas *decimal.Decimal
	TxnType              *int32
	Status               uint64
	Nonce                uint64
	InputData            []byte
}

// Contract records a detected contract-creation transaction.
type Contract struct {
	Address         string
	CreatorAddress  string
	TransactionHash string
	BlockNumber     uint64
	CreatedAt       time.Time
}

// Transfer is a normalized ERC-20/721/1155 transfer event. Value always
// holds the raw on-chain uint256 amount; NormalizedAmount is the
// decimals-adjusted quantity kept as a separate column so the raw value
// is never lost to a token's decimals().
type Transfer struct {
	TransactionHash  string
	LogIndex         uint
	TransactionIndex uint
	BlockNumber      uint64
	TokenAddress     string
	TokenType        TokenType
	FromAddress      string
	ToAddress        string
	Value            decimal.Decimal
	NormalizedAmount *decimal.Decimal
	AmountUSD        *decimal.Decimal
	TokenID          *big.Int
	RawLog           string
	InsertedAt       time.Time
}

// Approval is a normalized Approval event.
type Approval struct {
	TransactionHash string
	LogIndex        uint
	BlockNumber     uint64
	TokenAddress    string
	OwnerAddress    string
	SpenderAddress  string
	Value           decimal.Decimal
}

// Swap is a normalized DEX swap event (Uniswap V2/V3 family). The four
// amount columns are directional (in/out per side) rather than a single
// signed net amount, matching how the pool contracts themselves emit
// the event. SqrtPriceX96/Liquidity/Tick are V3-only and nil for V2.
type Swap struct {
	TransactionHash  string
	LogIndex         uint
	BlockNumber      uint64
	DexName          string
	PoolAddress      string
	SenderAddress    string
	RecipientAddress string
	Token0Address    string
	Token1Address    string
	Amount0In        decimal.Decimal
	Amount1In        decimal.Decimal
	Amount0Out       decimal.Decimal
	Amount1Out       decimal.Decimal
	SqrtPriceX96     *decimal.Decimal
	Liquidity        *decimal.Decimal
	Tick             *int32
}

// NftMetadata is an owner-stub row maintained alongside transfer processing.
type NftMetadata struct {
	TokenAddress string
	TokenID      *big.Int
	OwnerAddress string
	UpdatedAt    time.Time
}

// AddressStats accumulates per-address activity counters.
type AddressStats struct {
	Address                string
	TxCount                int64
	EthSent                decimal.Decimal
	EthReceived            decimal.Decimal
	ContractDeployments    int64
	TokenTransfersSent     int64
	TokenTransfersReceived int64
	FirstSeenBlock         uint64
	LastSeenBlock          uint64
	IsContract             bool
}

// AddressStatsDelta is one address's contribution to an AddressStats
// upsert. Callers issue one delta per address per role (sender,
// recipient, deployer, transfer counterparty) rather than applying a
// single shared delta across a batch, since each role touches different
// columns.
type AddressStatsDelta struct {
	Address                     string
	BlockNumber                 uint64
	TxCountDelta                int64
	EthSentDelta                decimal.Decimal
	EthReceivedDelta            decimal.Decimal
	ContractDeploymentsDelta    int64
	TokenTransfersSentDelta     int64
	TokenTransfersReceivedDelta int64
	IsContract                  bool
}

// Token caches on-chain metadata so it is probed via RPC at most once.
type Token struct {
	Address   string
	TokenType TokenType
	Name      string
	Symbol    string
	Decimals  int32
	Failed    bool
	FetchedAt time.Time
	Extra     map[string]any
}

// FailedJob is a dead-lettered unit of work awaiting redrive.
type FailedJob struct {
	ID           string
	JobType      JobType
	Payload      string
	Status       WorkerStatus
	Retries      int
	LastError    string
	CreatedAt    time.Time
	LastRetryAt  *time.Time
}
