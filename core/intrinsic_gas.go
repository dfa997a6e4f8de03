package core

import "github.com/evmkit/evmkit/core/types"

const (
	// TxGas is the base gas cost of every transaction.
	TxGas uint64 = 21000
	// TxDataZeroGas is the gas cost per zero byte of transaction data.
	TxDataZeroGas uint64 = 4
	// TxDataNonZeroGas is the gas cost per non-zero byte of transaction data.
	TxDataNonZeroGas uint64 = 16
	// TxCreateGas is the extra gas charged for contract-creation transactions.
	TxCreateGas uint64 = 32000
	// InitCodeWordGas is the EIP-3860 surcharge per 32-byte word of init code.
	InitCodeWordGas uint64 = 2

	// TxAccessListAddressGas is the EIP-2930 cost per address in an access list.
	TxAccessListAddressGas uint64 = 2400
	// TxAccessListStorageKeyGas is the EIP-2930 cost per storage key in an access list.
	TxAccessListStorageKeyGas uint64 = 1900
)

// IntrinsicGas computes the gas a transaction must pay before a single
// opcode executes: the flat base cost, a per-byte calldata cost, the extra
// charge for contract creation, EIP-3860's per-word init-code surcharge, and
// EIP-2930's access-list pre-declaration cost.
func IntrinsicGas(data []byte, accessList types.AccessList, isCreate bool) uint64 {
	gas := TxGas
	if isCreate {
		gas += TxCreateGas
	}
	for _, b := range data {
		if b == 0 {
			gas += TxDataZeroGas
		} else {
			gas += TxDataNonZeroGas
		}
	}
	if isCreate {
		words := (uint64(len(data)) + 31) / 32
		gas += words * InitCodeWordGas
	}
	for _, tuple := range accessList {
		gas += TxAccessListAddressGas
		gas += uint64(len(tuple.StorageKeys)) * TxAccessListStorageKeyGas
	}
	return gas
}
