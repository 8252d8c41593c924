// Package chain wraps go-ethereum's ethclient with the retry and
// canonicality semantics the block/log processors rely on.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/csic-platform/eth-indexer/internal/logging"
)

// Client adapts ethclient.Client to ports.ChainClient, adding bounded
// exponential-backoff retry around every RPC call: a call is attempted
// once and, on any error, retried up to maxRetries more times with a
// delay of baseDelay·2^(n-1) before the n-th retry. Errors are not
// classified, so rate limits and permanent failures are retried alike.
type Client struct {
	eth        *ethclient.Client
	log        *logging.Logger
	maxRetries int
	baseDelay  time.Duration
}

// New dials the given HTTP/WS JSON-RPC endpoint.
func New(ctx context.Context, endpoint string, maxRetries int, baseDelay time.Duration, log *logging.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("dial chain endpoint: %w", err)
	}
	return &Client{eth: eth, log: log, maxRetries: maxRetries, baseDelay: baseDelay}, nil
}

// Raw exposes the underlying ethclient for callers (the pollers) that
// need the full surface, e.g. subscriptions.
func (c *Client) Raw() *ethclient.Client { return c.eth }

func (c *Client) withRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.baseDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			if c.log != nil {
				c.log.Warn("retrying chain call", logging.String("op", op), logging.Int("attempt", attempt))
			}
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("%s: exhausted retries: %w", op, lastErr)
}

// BlockByNumber fetches a full block including transaction bodies.
func (c *Client) BlockByNumber(ctx context.Context, number uint64) (*types.Block, error) {
	var block *types.Block
	err := c.withRetry(ctx, "BlockByNumber", func() error {
		var err error
		block, err = c.eth.BlockByNumber(ctx, new(big.Int).SetUint64(number))
		return err
	})
	return block, err
}

// HeaderByNumber fetches just the block header, used by the backfill
// planner to resolve block timestamps.
func (c *Client) HeaderByNumber(ctx context.Context, number uint64) (*types.Header, error) {
	var header *types.Header
	err := c.withRetry(ctx, "HeaderByNumber", func() error {
		var err error
		header, err = c.eth.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
		return err
	})
	return header, err
}

// TransactionReceipt fetches the receipt for a transaction hash.
func (c *Client) TransactionReceipt(ctx context.Context, txHash string) (*types.Receipt, error) {
	var receipt *types.Receipt
	err := c.withRetry(ctx, "TransactionReceipt", func() error {
		var err error
		receipt, err = c.eth.TransactionReceipt(ctx, common.HexToHash(txHash))
		return err
	})
	return receipt, err
}

// CodeAt returns the deployed bytecode at address.
func (c *Client) CodeAt(ctx context.Context, address string) ([]byte, error) {
	var code []byte
	err := c.withRetry(ctx, "CodeAt", func() error {
		var err error
		code, err = c.eth.CodeAt(ctx, common.HexToAddress(address), nil)
		return err
	})
	return code, err
}

// FilterLogs retrieves logs in [fromBlock, toBlock] for the given
// contract addresses, or all addresses if none are given.
func (c *Client) FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []string) ([]types.Log, error) {
	addrs := make([]common.Address, len(addresses))
	for i, a := range addresses {
		addrs[i] = common.HexToAddress(a)
	}
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: addrs,
	}
	var logs []types.Log
	err := c.withRetry(ctx, "FilterLogs", func() error {
		var err error
		logs, err = c.eth.FilterLogs(ctx, query)
		return err
	})
	return logs, err
}

// CallView performs a read-only contract call given a 4-byte selector
// with no arguments, the shape needed for symbol()/name()/decimals()/
// token0()/token1()/factory().
func (c *Client) CallView(ctx context.Context, address string, selector [4]byte) ([]byte, error) {
	to := common.HexToAddress(address)
	msg := ethereum.CallMsg{To: &to, Data: selector[:]}
	var out []byte
	err := c.withRetry(ctx, "CallView", func() error {
		var err error
		out, err = c.eth.CallContract(ctx, msg, nil)
		return err
	})
	return out, err
}

// LatestBlockNumber returns the current chain head height.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	var num uint64
	err := c.withRetry(ctx, "LatestBlockNumber", func() error {
		header, err := c.eth.HeaderByNumber(ctx, nil)
		if err != nil {
			return err
		}
		num = header.Number.Uint64()
		return nil
	})
	return num, err
}
