// Package tokencache resolves on-chain token metadata (symbol, name,
// decimals) through a two-tier cache: the Postgres tokens table first,
// falling back to a live contract call only on a cache miss, and the
// ETH/USD price through a short-TTL Redis cache backed by an HTTP oracle.
package tokencache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/csic-platform/eth-indexer/internal/domain"
	"github.com/csic-platform/eth-indexer/internal/logging"
	"github.com/csic-platform/eth-indexer/internal/ports"
)

// selectors for the minimal read-only ABI this cache understands. Each is
// the first 4 bytes of keccak256(signature), computed once and pinned
// here rather than recomputed at runtime.
var (
	selectorSymbol   = [4]byte{0x95, 0xd8, 0x9b, 0x41} // symbol()
	selectorName     = [4]byte{0x06, 0xfd, 0xde, 0x03} // name()
	selectorDecimals = [4]byte{0x31, 0x3c, 0xe5, 0x67} // decimals()
)

// Cache implements ports.TokenCache.
type Cache struct {
	db        *sql.DB
	redis     *redis.Client
	chain     ports.ChainClient
	oracleURL string
	cacheTTL  time.Duration
	httpc     *http.Client
	log       *logging.Logger
}

// Config configures oracle endpoint and TTL.
type Config struct {
	OracleURL string
	CacheTTL  time.Duration
}

// New builds a Cache.
func New(db *sql.DB, redisClient *redis.Client, chain ports.ChainClient, cfg Config, log *logging.Logger) *Cache {
	return &Cache{
		db:        db,
		redis:     redisClient,
		chain:     chain,
		oracleURL: cfg.OracleURL,
		cacheTTL:  cfg.CacheTTL,
		httpc:     &http.Client{Timeout: 5 * time.Second},
		log:       log,
	}
}

// GetMetadata resolves token metadata for address, checking the database
// cache first and only probing the chain on a miss.
func (c *Cache) GetMetadata(ctx context.Context, address string, tokenType domain.TokenType) (*domain.Token, error) {
	address = strings.ToLower(address)

	tok, err := c.lookupDB(ctx, address)
	if err != nil {
		return nil, err
	}
	if tok != nil {
		return tok, nil
	}

	tok = c.fetchFromChain(ctx, address, tokenType)
	if err := c.saveToDB(ctx, *tok); err != nil {
		c.log.Warn("could not persist token metadata", logging.String("address", address), logging.Err(err))
	}
	return tok, nil
}

func (c *Cache) lookupDB(ctx context.Context, address string) (*domain.Token, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT token_address, token_type, name, symbol, decimals, failed, fetched_at
		FROM tokens WHERE token_address = $1
	`, address)

	var tok domain.Token
	var name, symbol sql.NullString
	var decimals sql.NullInt32
	err := row.Scan(&tok.Address, &tok.TokenType, &name, &symbol, &decimals, &tok.Failed, &tok.FetchedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup token %s: %w", address, err)
	}
	tok.Name = name.String
	tok.Symbol = symbol.String
	tok.Decimals = decimals.Int32
	return &tok, nil
}

func (c *Cache) fetchFromChain(ctx context.Context, address string, tokenType domain.TokenType) *domain.Token {
	tok := &domain.Token{
		Address:   address,
		TokenType: tokenType,
		FetchedAt: time.Now().UTC(),
	}

	symbol, errSym := c.callString(ctx, address, selectorSymbol)
	name, errName := c.callString(ctx, address, selectorName)

	var decimals int32
	var errDec error
	if tokenType == domain.TokenTypeERC20 {
		decimals, errDec = c.callUint8(ctx, address, selectorDecimals)
	}

	if errSym != nil && errName != nil {
		c.log.Warn("could not fetch any token metadata", logging.String("address", address))
		tok.Failed = true
		return tok
	}

	tok.Symbol = symbol
	tok.Name = name
	if tokenType == domain.TokenTypeERC20 && errDec == nil {
		tok.Decimals = decimals
	}
	return tok
}

func (c *Cache) saveToDB(ctx context.Context, tok domain.Token) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO tokens (token_address, token_type, name, symbol, decimals, failed, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (token_address) DO UPDATE SET
			name = EXCLUDED.name, symbol = EXCLUDED.symbol, decimals = EXCLUDED.decimals,
			failed = EXCLUDED.failed, fetched_at = EXCLUDED.fetched_at
	`, tok.Address, tok.TokenType, tok.Name, tok.Symbol, tok.Decimals, tok.Failed, tok.FetchedAt)
	if err != nil {
		return fmt.Errorf("save token %s: %w", tok.Address, err)
	}
	return nil
}

// callString calls a no-arg view function returning a single ABI-encoded
// string.
func (c *Cache) callString(ctx context.Context, address string, selector [4]byte) (string, error) {
	out, err := c.chain.CallView(ctx, address, selector)
	if err != nil {
		return "", err
	}
	return decodeABIString(out)
}

// callUint8 calls a no-arg view function returning a single uint8,
// left-padded to 32 bytes per the ABI encoding.
func (c *Cache) callUint8(ctx context.Context, address string, selector [4]byte) (int32, error) {
	out, err := c.chain.CallView(ctx, address, selector)
	if err != nil {
		return 0, err
	}
	if len(out) < 32 {
		return 0, fmt.Errorf("short return data for uint8 call")
	}
	return int32(out[31]), nil
}

// decodeABIString decodes a dynamic ABI string return value: a 32-byte
// offset word, a 32-byte length word, then the UTF-8 bytes padded to a
// 32-byte boundary. Some non-conformant ERC-20s return a fixed bytes32
// instead; fall back to trimming trailing NULs in that case.
func decodeABIString(data []byte) (string, error) {
	if len(data) == 32 {
		return strings.TrimRight(string(data), "\x00"), nil
	}
	if len(data) < 64 {
		return "", fmt.Errorf("short return data for string call")
	}
	length := new(bigIntLite).setBytes(data[32:64])
	start := 64
	end := start + length.val
	if end > len(data) {
		return "", fmt.Errorf("truncated string payload")
	}
	return string(data[start:end]), nil
}

// bigIntLite avoids pulling math/big into a 32-byte-length decode; the
// string length of a token symbol/name is always far smaller than
// math.MaxInt, so a plain uint64 accumulator is enough.
type bigIntLite struct{ val int }

func (b *bigIntLite) setBytes(data []byte) *bigIntLite {
	var v uint64
	for _, byt := range data[len(data)-8:] {
		v = v<<8 | uint64(byt)
	}
	b.val = int(v)
	return b
}

// oracleResponse matches cryptocompare's `?fsym=ETH&tsyms=USD` shape.
type oracleResponse struct {
	USD float64 `json:"USD"`
}

// GetEthPriceUSD returns the current ETH/USD price, serving from a Redis
// cache when available and refreshing from the oracle on miss or expiry.
func (c *Cache) GetEthPriceUSD(ctx context.Context) (float64, error) {
	const cacheKey = "indexer:price:eth_usd"

	if c.redis != nil {
		if cached, err := c.redis.Get(ctx, cacheKey).Result(); err == nil {
			if v, perr := strconv.ParseFloat(cached, 64); perr == nil {
				return v, nil
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.oracleURL, nil)
	if err != nil {
		return 0, fmt.Errorf("build price oracle request: %w", err)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch eth price: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read eth price response: %w", err)
	}
	var parsed oracleResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, fmt.Errorf("parse eth price response: %w", err)
	}

	if c.redis != nil {
		if err := c.redis.Set(ctx, cacheKey, strconv.FormatFloat(parsed.USD, 'f', -1, 64), c.cacheTTL).Err(); err != nil {
			c.log.Warn("could not cache eth price", logging.Err(err))
		}
	}

	return parsed.USD, nil
}
