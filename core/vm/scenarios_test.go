package vm

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/evmkit/evmkit/core/state"
	"github.com/evmkit/evmkit/core/types"
)

// End-to-end scenarios S1-S6: each constructs the literal bytecode and
// asserts the exact observable outputs (return data, gas used, storage
// post-state), run through the real interpreter and a MemoryStateDB.

func newScenarioEVM() (*EVM, *state.MemoryStateDB) {
	stateDB := state.NewMemoryStateDB()
	evm := NewEVMWithState(
		BlockContext{
			BlockNumber: big.NewInt(1),
			Time:        1700000000,
			GasLimit:    30000000,
			BaseFee:     big.NewInt(1000000000),
		},
		TxContext{
			GasPrice: big.NewInt(2000000000),
		},
		Config{},
		stateDB,
	)
	return evm, stateDB
}

func deployScenario(t *testing.T, stateDB *state.MemoryStateDB, addr types.Address, code []byte) {
	t.Helper()
	stateDB.CreateAccount(addr)
	stateDB.SetCode(addr, code)
	stateDB.AddAddressToAccessList(addr)
}

// S1: PUSH1 10 PUSH1 20 ADD MSTORE(0) RETURN(0,32) returns 30 big-endian.
func TestScenarioS1ArithmeticReturn(t *testing.T) {
	evm, stateDB := newScenarioEVM()
	caller := types.BytesToAddress([]byte{0x01})
	target := types.BytesToAddress([]byte{0xA1})
	stateDB.CreateAccount(caller)

	code := []byte{
		0x60, 0x0A, // PUSH1 10
		0x60, 0x14, // PUSH1 20
		0x01,       // ADD
		0x60, 0x00, // PUSH1 0
		0x52,       // MSTORE
		0x60, 0x20, // PUSH1 32
		0x60, 0x00, // PUSH1 0
		0xF3, // RETURN
	}
	deployScenario(t, stateDB, target, code)

	ret, _, err := evm.Call(caller, target, nil, 100000, big.NewInt(0))
	if err != nil {
		t.Fatalf("S1: unexpected error: %v", err)
	}
	if len(ret) != 32 {
		t.Fatalf("S1: expected 32 bytes of return data, got %d", len(ret))
	}
	if ret[31] != 0x1E {
		t.Fatalf("S1: expected return_data[31] == 0x1E, got 0x%02x", ret[31])
	}
	want := make([]byte, 32)
	want[31] = 0x1E
	if !bytes.Equal(ret, want) {
		t.Fatalf("S1: expected %x, got %x", want, ret)
	}
}

// S2: PUSH1 0x42 PUSH1 1 SSTORE PUSH1 1 SLOAD MSTORE(0) RETURN(0,32).
func TestScenarioS2StorageRoundTrip(t *testing.T) {
	evm, stateDB := newScenarioEVM()
	caller := types.BytesToAddress([]byte{0x01})
	target := types.BytesToAddress([]byte{0xA2})
	stateDB.CreateAccount(caller)

	code := []byte{
		0x60, 0x42, // PUSH1 0x42
		0x60, 0x01, // PUSH1 1
		0x55,       // SSTORE
		0x60, 0x01, // PUSH1 1
		0x54,       // SLOAD
		0x60, 0x00, // PUSH1 0
		0x52,       // MSTORE
		0x60, 0x20, // PUSH1 32
		0x60, 0x00, // PUSH1 0
		0xF3, // RETURN
	}
	deployScenario(t, stateDB, target, code)
	stateDB.AddSlotToAccessList(target, types.BytesToHash([]byte{0x01}))

	ret, _, err := evm.Call(caller, target, nil, 100000, big.NewInt(0))
	if err != nil {
		t.Fatalf("S2: unexpected error: %v", err)
	}
	if ret[31] != 0x42 {
		t.Fatalf("S2: expected return_data[31] == 0x42, got 0x%02x", ret[31])
	}
	slot := stateDB.GetState(target, types.BytesToHash([]byte{0x01}))
	if slot[31] != 0x42 {
		t.Fatalf("S2: expected storage slot 1 == 0x42, got 0x%02x", slot[31])
	}
}

// S3: PUSH1 8 JUMP PUSH1 0xFF STOP JUMPDEST PUSH1 0x42 STOP.
// Executes the JUMPDEST branch and ends in STOP, skipping the dead PUSH1/STOP pair.
func TestScenarioS3Jump(t *testing.T) {
	evm, stateDB := newScenarioEVM()
	caller := types.BytesToAddress([]byte{0x01})
	target := types.BytesToAddress([]byte{0xA3})
	stateDB.CreateAccount(caller)

	// PUSH1 8 JUMP PUSH1 0xFF STOP JUMPDEST PUSH1 0x42 STOP. JUMPDEST sits at
	// offset 6; the dead PUSH1 0xFF / STOP pair at offsets 3-5 is never reached.
	code := []byte{0x60, 0x08, 0x56, 0x60, 0xFF, 0x00, 0x5B, 0x60, 0x42, 0x00}
	deployScenario(t, stateDB, target, code)

	_, gasLeft, err := evm.Call(caller, target, nil, 100000, big.NewInt(0))
	if err != nil {
		t.Fatalf("S3: unexpected error: %v", err)
	}
	// Only PUSH1, JUMP, JUMPDEST, PUSH1, STOP execute; the dead PUSH1 0xFF / STOP
	// at offsets 3-5 are skipped entirely, so gas used reflects five cheap opcodes.
	gasUsed := uint64(100000) - gasLeft
	if gasUsed == 0 || gasUsed > 50 {
		t.Fatalf("S3: expected a handful of gas units for the jump path, used %d", gasUsed)
	}
}

// S4: writes slot 0 <- 1, then REVERTs with payload 0xDEADBEEF.
func TestScenarioS4RevertAtomicity(t *testing.T) {
	evm, stateDB := newScenarioEVM()
	caller := types.BytesToAddress([]byte{0x01})
	target := types.BytesToAddress([]byte{0xA4})
	stateDB.CreateAccount(caller)

	code := []byte{
		0x60, 0x01, // PUSH1 1
		0x60, 0x00, // PUSH1 0
		0x55, // SSTORE slot0 <- 1
		0x63, 0xDE, 0xAD, 0xBE, 0xEF, // PUSH4 0xDEADBEEF
		0x60, 0x00, // PUSH1 0
		0x52,       // MSTORE(0, 0xDEADBEEF) -- stores right-aligned in a 32-byte word
		0x60, 0x04, // PUSH1 4
		0x60, 0x1C, // PUSH1 28 (offset of the 4 significant bytes)
		0xFD, // REVERT(28, 4)
	}
	deployScenario(t, stateDB, target, code)
	stateDB.AddSlotToAccessList(target, types.BytesToHash([]byte{0x00}))

	ret, _, err := evm.Call(caller, target, nil, 100000, big.NewInt(0))
	if err == nil {
		t.Fatalf("S4: expected revert failure, got success")
	}
	want := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	if !bytes.Equal(ret, want) {
		t.Fatalf("S4: expected return_data %x, got %x", want, ret)
	}
	slot := stateDB.GetState(target, types.BytesToHash([]byte{0x00}))
	var zero types.Hash
	if slot != zero {
		t.Fatalf("S4: expected slot 0 to read zero after reverted commit, got %x", slot)
	}
}

// S5: MSTORE at offset 2^24 with a 50,000 gas limit runs out of gas expanding memory.
func TestScenarioS5OutOfGasOnMemory(t *testing.T) {
	evm, stateDB := newScenarioEVM()
	caller := types.BytesToAddress([]byte{0x01})
	target := types.BytesToAddress([]byte{0xA5})
	stateDB.CreateAccount(caller)

	code := []byte{
		0x60, 0x00, // PUSH1 0 (value)
		0x63, 0x01, 0x00, 0x00, 0x00, // PUSH4 0x01000000 (2^24, offset)
		0x52, // MSTORE
		0x00, // STOP
	}
	deployScenario(t, stateDB, target, code)

	ret, gasLeft, err := evm.Call(caller, target, nil, 50000, big.NewInt(0))
	if err == nil {
		t.Fatalf("S5: expected out-of-gas failure, got success")
	}
	if gasLeft != 0 {
		t.Fatalf("S5: expected all gas consumed on out-of-gas, got %d left", gasLeft)
	}
	if len(ret) != 0 {
		t.Fatalf("S5: expected no observable memory/return data, got %d bytes", len(ret))
	}
}

// S6: STATICCALL into a callee that executes SSTORE fails the callee frame;
// the caller observes 0 on its stack (no storage change) and itself succeeds.
func TestScenarioS6StaticViolation(t *testing.T) {
	evm, stateDB := newScenarioEVM()
	caller := types.BytesToAddress([]byte{0x01})
	parent := types.BytesToAddress([]byte{0xA6})
	callee := types.BytesToAddress([]byte{0xB6})
	stateDB.CreateAccount(caller)

	// Callee: SSTORE slot 0 <- 1, STOP (illegal under a static context).
	calleeCode := []byte{
		0x60, 0x01, // PUSH1 1
		0x60, 0x00, // PUSH1 0
		0x55, // SSTORE
		0x00, // STOP
	}
	deployScenario(t, stateDB, callee, calleeCode)
	stateDB.AddSlotToAccessList(callee, types.BytesToHash([]byte{0x00}))

	// Parent: STATICCALL(gas, callee, 0, 0, 0, 0); store result at slot 0; STOP.
	parentCode := []byte{
		0x60, 0x00, // PUSH1 0  (retLen)
		0x60, 0x00, // PUSH1 0  (retOffset)
		0x60, 0x00, // PUSH1 0  (argsLen)
		0x60, 0x00, // PUSH1 0  (argsOffset)
		0x73, // PUSH20 callee
	}
	parentCode = append(parentCode, callee[:]...)
	parentCode = append(parentCode,
		0x5A,       // GAS
		0xFA,       // STATICCALL
		0x60, 0x00, // PUSH1 0
		0x55, // SSTORE slot0 <- staticcall result
		0x00, // STOP
	)
	deployScenario(t, stateDB, parent, parentCode)
	stateDB.AddSlotToAccessList(parent, types.BytesToHash([]byte{0x00}))

	_, _, err := evm.Call(caller, parent, nil, 200000, big.NewInt(0))
	if err != nil {
		t.Fatalf("S6: parent call should succeed despite callee's static violation: %v", err)
	}

	// The parent's own slot 0 holds the STATICCALL result: 0 (failure).
	parentSlot := stateDB.GetState(parent, types.BytesToHash([]byte{0x00}))
	var zero types.Hash
	if parentSlot != zero {
		t.Fatalf("S6: expected parent to observe 0 from the failed STATICCALL, got %x", parentSlot)
	}

	// The callee's storage must be untouched.
	calleeSlot := stateDB.GetState(callee, types.BytesToHash([]byte{0x00}))
	if calleeSlot != zero {
		t.Fatalf("S6: expected callee storage to be unchanged, got %x", calleeSlot)
	}
}

// TestScenarioDeterminism runs S1 and S2 twice each and asserts identical
// (return_data, gas_used, state) — property 3.
func TestScenarioDeterminism(t *testing.T) {
	run := func() ([]byte, uint64, types.Hash) {
		evm, stateDB := newScenarioEVM()
		caller := types.BytesToAddress([]byte{0x01})
		target := types.BytesToAddress([]byte{0xA2})
		stateDB.CreateAccount(caller)
		code := []byte{
			0x60, 0x42, 0x60, 0x01, 0x55,
			0x60, 0x01, 0x54,
			0x60, 0x00, 0x52,
			0x60, 0x20, 0x60, 0x00, 0xF3,
		}
		deployScenario(t, stateDB, target, code)
		stateDB.AddSlotToAccessList(target, types.BytesToHash([]byte{0x01}))

		ret, gasLeft, err := evm.Call(caller, target, nil, 100000, big.NewInt(0))
		if err != nil {
			t.Fatalf("determinism run: unexpected error: %v", err)
		}
		return ret, gasLeft, stateDB.GetState(target, types.BytesToHash([]byte{0x01}))
	}

	ret1, gas1, slot1 := run()
	ret2, gas2, slot2 := run()
	if !bytes.Equal(ret1, ret2) || gas1 != gas2 || slot1 != slot2 {
		t.Fatalf("nondeterministic execution: (%x,%d,%x) vs (%x,%d,%x)", ret1, gas1, slot1, ret2, gas2, slot2)
	}
}

// TestScenarioJournalAtomicity runs S4's revert twice with a forced sub-call
// revert and asserts identical post-state each time — property 8.
func TestScenarioJournalAtomicity(t *testing.T) {
	run := func() types.Hash {
		evm, stateDB := newScenarioEVM()
		caller := types.BytesToAddress([]byte{0x01})
		target := types.BytesToAddress([]byte{0xA4})
		stateDB.CreateAccount(caller)
		code := []byte{
			0x60, 0x01, 0x60, 0x00, 0x55,
			0x63, 0xDE, 0xAD, 0xBE, 0xEF,
			0x60, 0x00, 0x52,
			0x60, 0x04, 0x60, 0x1C, 0xFD,
		}
		deployScenario(t, stateDB, target, code)
		stateDB.AddSlotToAccessList(target, types.BytesToHash([]byte{0x00}))

		if _, _, err := evm.Call(caller, target, nil, 100000, big.NewInt(0)); err == nil {
			t.Fatalf("journal atomicity run: expected revert failure")
		}
		return stateDB.GetState(target, types.BytesToHash([]byte{0x00}))
	}

	slot1 := run()
	slot2 := run()
	if slot1 != slot2 {
		t.Fatalf("journal atomicity mismatch across runs: %x vs %x", slot1, slot2)
	}
	var zero types.Hash
	if slot1 != zero {
		t.Fatalf("expected reverted slot to read pre-call value (zero), got %x", slot1)
	}
}
