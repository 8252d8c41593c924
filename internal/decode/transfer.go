package decode

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/csic-platform/eth-indexer/internal/domain"
)

// topicAddress extracts the right-aligned 20-byte address from a
// 32-byte indexed topic.
func topicAddress(topic string) string {
	topic = strings.TrimPrefix(topic, "0x")
	if len(topic) < 40 {
		return "0x" + topic
	}
	return "0x" + topic[len(topic)-40:]
}

// TransferEvent is an ERC-20/721/1155 transfer decoded from a raw log,
// ready to become one or more domain.Transfer rows.
type TransferEvent struct {
	TokenType  domain.TokenType
	From       string
	To         string
	TokenID    *big.Int // nil for ERC-20
	Amount     *big.Int
	BatchItems []BatchItem // populated only for ERC-1155 TransferBatch
}

// BatchItem is one (tokenId, amount) pair from an ERC-1155 TransferBatch.
type BatchItem struct {
	TokenID *big.Int
	Amount  *big.Int
}

// DecodeTransfer dispatches a Transfer-shaped log to the ERC-20 or
// ERC-721 decoder based on topic count: ERC-721 indexes tokenId as a
// third topic, ERC-20 carries the amount in data.
func DecodeTransfer(log gethtypes.Log) (*TransferEvent, error) {
	if len(log.Topics) < 3 {
		return nil, fmt.Errorf("transfer log has too few topics (%d)", len(log.Topics))
	}

	from := topicAddress(log.Topics[1].Hex())
	to := topicAddress(log.Topics[2].Hex())

	if len(log.Topics) == 4 {
		tokenID := new(big.Int).SetBytes(log.Topics[3].Bytes())
		return &TransferEvent{
			TokenType: domain.TokenTypeERC721,
			From:      from,
			To:        to,
			TokenID:   tokenID,
			Amount:    big.NewInt(1),
		}, nil
	}

	amount := new(big.Int)
	if len(log.Data) > 0 {
		amount.SetBytes(log.Data)
	}
	return &TransferEvent{
		TokenType: domain.TokenTypeERC20,
		From:      from,
		To:        to,
		Amount:    amount,
	}, nil
}

// DecodeERC1155Single decodes a TransferSingle event: operator is
// topics[1] (ignored by the domain model), from is topics[2], to is
// topics[3], and data is the fixed (uint256 id, uint256 value) pair.
func DecodeERC1155Single(log gethtypes.Log) (*TransferEvent, error) {
	if len(log.Topics) < 4 {
		return nil, fmt.Errorf("erc1155 single log has too few topics (%d)", len(log.Topics))
	}
	if len(log.Data) < 64 {
		return nil, fmt.Errorf("erc1155 single log data too short (%d bytes)", len(log.Data))
	}

	from := topicAddress(log.Topics[2].Hex())
	to := topicAddress(log.Topics[3].Hex())

	tokenID := new(big.Int).SetBytes(log.Data[0:32])
	amount := new(big.Int).SetBytes(log.Data[32:64])

	return &TransferEvent{
		TokenType: domain.TokenTypeERC1155,
		From:      from,
		To:        to,
		TokenID:   tokenID,
		Amount:    amount,
	}, nil
}

var uint256ArrayType, _ = abi.NewType("uint256[]", "", nil)

// DecodeERC1155Batch decodes a TransferBatch event. ids/values are
// dynamic uint256[] arrays ABI-encoded in data, which needs a real ABI
// decoder rather than fixed byte offsets.
func DecodeERC1155Batch(log gethtypes.Log) (*TransferEvent, error) {
	if len(log.Topics) < 4 {
		return nil, fmt.Errorf("erc1155 batch log has too few topics (%d)", len(log.Topics))
	}
	if len(log.Data) < 64 {
		return nil, fmt.Errorf("erc1155 batch log data too short (%d bytes)", len(log.Data))
	}

	from := topicAddress(log.Topics[2].Hex())
	to := topicAddress(log.Topics[3].Hex())

	args := abi.Arguments{{Type: uint256ArrayType}, {Type: uint256ArrayType}}
	unpacked, err := args.Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("unpack erc1155 batch payload: %w", err)
	}
	if len(unpacked) != 2 {
		return nil, fmt.Errorf("erc1155 batch payload unpacked to %d values, want 2", len(unpacked))
	}

	ids, ok := unpacked[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("erc1155 batch ids not []*big.Int")
	}
	values, ok := unpacked[1].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("erc1155 batch values not []*big.Int")
	}
	if len(ids) != len(values) {
		return nil, fmt.Errorf("erc1155 batch mismatched arrays (ids: %d, values: %d)", len(ids), len(values))
	}

	items := make([]BatchItem, len(ids))
	for i := range ids {
		items[i] = BatchItem{TokenID: ids[i], Amount: values[i]}
	}

	return &TransferEvent{
		TokenType:  domain.TokenTypeERC1155,
		From:       from,
		To:         to,
		BatchItems: items,
	}, nil
}

// BatchLogIndex computes the synthetic per-item log index used when one
// TransferBatch log fans out into multiple transfer rows, since each row
// needs a unique (tx_hash, log_index) key.
func BatchLogIndex(baseLogIndex uint, i int) uint {
	return baseLogIndex*1000 + uint(i)
}
