package state

import (
	"math/big"

	"github.com/evmkit/evmkit/core/types"
)

// StateDB is the storage-backend contract the transaction pipeline and the
// interpreter share: account balances/nonces/code, persistent and transient
// storage, the EIP-2929 access list, the refund counter, journaled
// snapshot/revert, and per-transaction log collection. It has the same
// method set as vm.StateDB (duplicated here rather than imported, so that
// core/state does not depend on core/vm) plus the few operations that are
// only meaningful to a concrete backend: Commit, logs, and pre-state setup.
type StateDB interface {
	CreateAccount(addr types.Address)
	GetBalance(addr types.Address) *big.Int
	AddBalance(addr types.Address, amount *big.Int)
	SubBalance(addr types.Address, amount *big.Int)
	GetNonce(addr types.Address) uint64
	SetNonce(addr types.Address, nonce uint64)
	GetCode(addr types.Address) []byte
	SetCode(addr types.Address, code []byte)
	GetCodeHash(addr types.Address) types.Hash
	GetCodeSize(addr types.Address) int

	GetState(addr types.Address, key types.Hash) types.Hash
	SetState(addr types.Address, key types.Hash, value types.Hash)
	GetCommittedState(addr types.Address, key types.Hash) types.Hash

	GetTransientState(addr types.Address, key types.Hash) types.Hash
	SetTransientState(addr types.Address, key types.Hash, value types.Hash)
	ClearTransientStorage()

	SelfDestruct(addr types.Address)
	HasSelfDestructed(addr types.Address) bool

	Exist(addr types.Address) bool
	Empty(addr types.Address) bool

	Snapshot() int
	RevertToSnapshot(id int)

	AddLog(log *types.Log)
	GetLogs(txHash types.Hash) []*types.Log
	SetTxContext(txHash types.Hash, txIndex int)

	AddRefund(gas uint64)
	SubRefund(gas uint64)
	GetRefund() uint64

	AddAddressToAccessList(addr types.Address)
	AddSlotToAccessList(addr types.Address, slot types.Hash)
	AddressInAccessList(addr types.Address) bool
	SlotInAccessList(addr types.Address, slot types.Hash) (addressOk bool, slotOk bool)

	Prefetch(addrs []types.Address)
	PrefetchStorage(addr types.Address, keys []types.Hash)
	FinalizePreState()

	// Commit flushes dirty storage into committed storage for every touched
	// account. It does not compute or return a state root; the on-disk
	// representation is left entirely to the backend.
	Commit() error
}
