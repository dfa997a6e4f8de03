package core

import (
	"math/big"

	"github.com/evmkit/evmkit/core/types"
)

// Message is a transaction flattened into the shape the EVM needs to execute
// it: a sender, an optional recipient (nil means contract creation), a value
// transfer, input data, and the access list to pre-warm.
type Message struct {
	From       types.Address
	To         *types.Address // nil for contract creation
	Nonce      uint64
	Value      *big.Int
	GasLimit   uint64
	GasPrice   *big.Int
	GasFeeCap  *big.Int
	GasTipCap  *big.Int
	Data       []byte
	AccessList types.AccessList
	TxType     uint8
}

// TransactionToMessage converts a signed transaction into a Message ready for
// execution. The transaction must already carry a recovered sender.
func TransactionToMessage(tx *types.Transaction) Message {
	msg := Message{
		Nonce:      tx.Nonce(),
		GasLimit:   tx.Gas(),
		GasPrice:   tx.GasPrice(),
		GasFeeCap:  tx.GasFeeCap(),
		GasTipCap:  tx.GasTipCap(),
		Data:       tx.Data(),
		AccessList: tx.AccessList(),
		TxType:     tx.Type(),
	}
	if sender := tx.Sender(); sender != nil {
		msg.From = *sender
	}
	if tx.To() != nil {
		to := *tx.To()
		msg.To = &to
	}
	if v := tx.Value(); v != nil {
		msg.Value = new(big.Int).Set(v)
	} else {
		msg.Value = new(big.Int)
	}
	return msg
}

// IsCreate reports whether this message deploys a new contract.
func (m *Message) IsCreate() bool { return m.To == nil }

// EffectiveGasPrice returns the price actually paid per unit of gas: for
// EIP-1559 (type >= 2) transactions, the tip capped by the fee cap minus the
// base fee, plus the base fee itself; for legacy/access-list transactions,
// GasPrice directly.
func (m *Message) EffectiveGasPrice(baseFee *big.Int) *big.Int {
	if m.TxType < types.DynamicFeeTxType || baseFee == nil || m.GasFeeCap == nil || m.GasTipCap == nil {
		if m.GasPrice != nil {
			return new(big.Int).Set(m.GasPrice)
		}
		return new(big.Int)
	}
	tip := new(big.Int).Sub(m.GasFeeCap, baseFee)
	if tip.Cmp(m.GasTipCap) > 0 {
		tip.Set(m.GasTipCap)
	}
	return new(big.Int).Add(baseFee, tip)
}
