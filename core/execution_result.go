package core

import "github.com/evmkit/evmkit/core/types"

// ExecutionResult holds the outcome of running a single transaction's Message
// through the EVM: the gas it consumed, any revert/failure data, and, for a
// contract-creation message, the address the new contract was deployed to.
type ExecutionResult struct {
	UsedGas         uint64
	Err             error
	ReturnData      []byte
	ContractAddress types.Address
}

// Unwrap exposes the underlying execution error to errors.Is/As.
func (r *ExecutionResult) Unwrap() error { return r.Err }

// Failed reports whether execution reverted or errored.
func (r *ExecutionResult) Failed() bool { return r.Err != nil }

// Return returns the data returned by a successful execution, or nil if it failed.
func (r *ExecutionResult) Return() []byte {
	if r.Failed() {
		return nil
	}
	return r.ReturnData
}

// Revert returns the revert reason data of a failed execution, or nil if it succeeded.
func (r *ExecutionResult) Revert() []byte {
	if r.Failed() {
		return r.ReturnData
	}
	return nil
}
