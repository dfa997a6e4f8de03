// Package geth provides adapters between this module and go-ethereum.
//
// extensions.go wraps this module's precompiles so they can be run through
// go-ethereum's EVM via SetPrecompiles, and maps a ChainConfig to a fork
// level for access-list warming.
//
// Custom opcode injection is NOT possible from an external package because
// go-ethereum's `operation` struct and `JumpTable` are unexported: this
// module's own opcode extensions only run through its native interpreter
// (core/vm/).
package geth

import (
	gethvm "github.com/ethereum/go-ethereum/core/vm"

	"github.com/evmkit/evmkit/core/vm"
)

// PrecompileAdapter wraps one of this module's PrecompiledContract values to
// satisfy go-ethereum's PrecompiledContract interface (which adds Name()).
type PrecompileAdapter struct {
	inner vm.PrecompiledContract
	name  string
}

// RequiredGas delegates to the wrapped precompile.
func (a *PrecompileAdapter) RequiredGas(input []byte) uint64 {
	return a.inner.RequiredGas(input)
}

// Run delegates to the wrapped precompile.
func (a *PrecompileAdapter) Run(input []byte) ([]byte, error) {
	return a.inner.Run(input)
}

// Name returns the human-readable name for this precompile.
func (a *PrecompileAdapter) Name() string {
	return a.name
}

// NewPrecompileAdapter wraps a precompile for use with go-ethereum's EVM.
func NewPrecompileAdapter(inner vm.PrecompiledContract, name string) gethvm.PrecompiledContract {
	return &PrecompileAdapter{inner: inner, name: name}
}

// OpcodeExtensionNote documents a permanent limitation of the conformance
// harness: go-ethereum's JumpTable and operation types are unexported, so a
// bytecode program using opcodes this module implements but go-ethereum does
// not (or vice versa) cannot be diffed opcode-for-opcode — only at the level
// of gas used, return data, logs, and post-state.
const OpcodeExtensionNote = "go-ethereum's operation struct is unexported; opcode-level diffing is not possible, only whole-execution diffing"
