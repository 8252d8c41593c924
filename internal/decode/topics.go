// Package decode turns raw Ethereum log topics/data into the normalized
// Transfer/Approval/Swap domain events, dispatching on topic0 the way
// the original log processor did.
package decode

// Event signatures (topic0), keccak256 of the event's canonical
// signature string.
const (
	TopicTransfer          = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"
	TopicApproval          = "0x8c5be1e5ebec7d5bd14f71427d1e84f3dd0314c0f7b2291e5b200ac8c7c3b925"
	TopicERC1155Single     = "0xc3d58168c5ae7397731d063d5bbf3d657854427343f4c083240f7aacaa2d0f62"
	TopicERC1155Batch      = "0x4a39dc06d4c0dbc64b70af90fd698a233a518aa5d07e595d983b8c0526c8f7fb"
	TopicUniswapV2Swap     = "0xd78ad95fa46c994b6551d0da85fc275fe613ce37657fb8d5e3d130840159d822"
	TopicUniswapV3Swap     = "0xc42079f94a6350d7e6235f29174924f928cc2ac818eb64fed8004e115fbcca67"
)

// Factory addresses used to label the DEX a pool belongs to.
const (
	UniswapV2Factory = "0x5c69bee701ef814a2b6a3edd4b1652cb9cc5aa6f"
	UniswapV3Factory = "0x1f98431c8ad98523631ae4a59f267346ea31f984"
	SushiswapFactory = "0xc0aee478e3658e2610c5f7a4a2e1777ce9e4f2ac"
)

// ZeroAddress is the conventional mint/burn sentinel address, excluded
// from address-stats transfer-count bookkeeping.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// DexNameForFactory maps a pool's factory address to a human-readable
// DEX name, defaulting to "uniswap_v2" when the factory is unrecognized
// (matching the original processor's fallback).
func DexNameForFactory(factory string) string {
	switch factory {
	case UniswapV2Factory:
		return "uniswap_v2"
	case SushiswapFactory:
		return "sushiswap"
	case UniswapV3Factory:
		return "uniswap_v3"
	default:
		return "uniswap_v2"
	}
}
