package decode

import (
	"fmt"
	"math/big"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

// ApprovalEvent is a decoded ERC-20 Approval event.
type ApprovalEvent struct {
	Owner   string
	Spender string
	Value   *big.Int
}

// DecodeApproval decodes an Approval(owner indexed, spender indexed,
// value) event.
func DecodeApproval(log gethtypes.Log) (*ApprovalEvent, error) {
	if len(log.Topics) < 3 {
		return nil, fmt.Errorf("approval log has too few topics (%d)", len(log.Topics))
	}

	owner := topicAddress(log.Topics[1].Hex())
	spender := topicAddress(log.Topics[2].Hex())

	value := new(big.Int)
	if len(log.Data) > 0 {
		value.SetBytes(log.Data)
	}

	return &ApprovalEvent{Owner: owner, Spender: spender, Value: value}, nil
}
