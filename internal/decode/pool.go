package decode

import (
	"context"
	"fmt"
	"sync"

	"github.com/csic-platform/eth-indexer/internal/ports"
)

var (
	selectorToken0  = [4]byte{0x0d, 0xfe, 0x16, 0x81} // token0()
	selectorToken1  = [4]byte{0xd2, 0x12, 0x20, 0xa7} // token1()
	selectorFactory = [4]byte{0xc4, 0x5a, 0x01, 0x55} // factory()
)

// PoolResolver resolves an AMM pool's underlying token0/token1 and
// factory address, caching results in-process since a pool's composition
// never changes once deployed.
type PoolResolver struct {
	chain        ports.ChainClient
	tokenCache   sync.Map // pool address -> [2]string{token0, token1}
	factoryCache sync.Map // pool address -> string
}

// NewPoolResolver builds a PoolResolver over chain.
func NewPoolResolver(chain ports.ChainClient) *PoolResolver {
	return &PoolResolver{chain: chain}
}

// Tokens returns the pool's token0 and token1 addresses.
func (r *PoolResolver) Tokens(ctx context.Context, poolAddress string) (string, string, error) {
	if cached, ok := r.tokenCache.Load(poolAddress); ok {
		pair := cached.([2]string)
		return pair[0], pair[1], nil
	}

	token0, err := r.callAddress(ctx, poolAddress, selectorToken0)
	if err != nil {
		return "", "", fmt.Errorf("resolve token0 for pool %s: %w", poolAddress, err)
	}
	token1, err := r.callAddress(ctx, poolAddress, selectorToken1)
	if err != nil {
		return "", "", fmt.Errorf("resolve token1 for pool %s: %w", poolAddress, err)
	}

	r.tokenCache.Store(poolAddress, [2]string{token0, token1})
	return token0, token1, nil
}

// Factory returns the pool's originating factory address, used to label
// the DEX the swap belongs to.
func (r *PoolResolver) Factory(ctx context.Context, poolAddress string) (string, error) {
	if cached, ok := r.factoryCache.Load(poolAddress); ok {
		return cached.(string), nil
	}

	factory, err := r.callAddress(ctx, poolAddress, selectorFactory)
	if err != nil {
		// V3 pools expose factory(); not every V2-family pool does, so a
		// failure here just means "unknown", not a hard error.
		return "", nil
	}

	r.factoryCache.Store(poolAddress, factory)
	return factory, nil
}

func (r *PoolResolver) callAddress(ctx context.Context, address string, selector [4]byte) (string, error) {
	out, err := r.chain.CallView(ctx, address, selector)
	if err != nil {
		return "", err
	}
	if len(out) < 32 {
		return "", fmt.Errorf("short return data for address call")
	}
	return "0x" + hexEncode(out[12:32]), nil
}

const hexDigits = "0123456789abcdef"

func hexEncode(b []byte) string {
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hexDigits[v>>4]
		out[i*2+1] = hexDigits[v&0x0f]
	}
	return string(out)
}
