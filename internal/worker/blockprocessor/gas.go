package blockprocessor

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// type aliases so processor.go reads close to plain go-ethereum types
// without importing them in three places.
type (
	gethTx    = types.Transaction
	gethBlock = types.Block
)

var gethAddressZero = common.Address{}

func jsonMarshal(v any) ([]byte, error) { return json.Marshal(v) }

// senderAddress recovers the From address using go-ethereum's latest
// signer for the transaction's chain id, which also accepts older
// transaction types.
func senderAddress(tx *types.Transaction) (string, error) {
	signer := types.LatestSignerForChainID(tx.ChainId())
	addr, err := types.Sender(signer, tx)
	if err != nil {
		return "", err
	}
	return addr.Hex(), nil
}

// effectiveGasPrice returns the gas price the transaction actually paid:
// for EIP-1559 (type 2) transactions this is min(maxFeePerGas,
// baseFee + maxPriorityFeePerGas); legacy and type-1 transactions simply
// pay their fixed gasPrice.
func effectiveGasPrice(tx *types.Transaction, block *types.Block) *big.Int {
	if tx.Type() != types.DynamicFeeTxType {
		return tx.GasPrice()
	}

	baseFee := block.BaseFee()
	if baseFee == nil {
		return tx.GasPrice()
	}

	tip := tx.GasTipCap()
	feeCap := tx.GasFeeCap()

	priced := new(big.Int).Add(baseFee, tip)
	if priced.Cmp(feeCap) > 0 {
		return feeCap
	}
	return priced
}
