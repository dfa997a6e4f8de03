package core

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/evmkit/evmkit/core/state"
	"github.com/evmkit/evmkit/core/types"
	"github.com/evmkit/evmkit/core/vm"
	"github.com/evmkit/evmkit/log"
	"github.com/evmkit/evmkit/metrics"
)

var (
	ErrNonceTooLow          = errors.New("nonce too low")
	ErrNonceTooHigh         = errors.New("nonce too high")
	ErrInsufficientBalance  = errors.New("insufficient balance for transfer")
	ErrIntrinsicGasTooLow   = errors.New("intrinsic gas exceeds gas limit")
	ErrMaxInitCodeSizeExceeded = errors.New("max initcode size exceeded")
)

// MaxCodeSize is the EIP-170 cap on deployed contract bytecode.
const MaxCodeSize = 24576

// MaxInitCodeSize is the EIP-3860 cap on contract-creation init code.
const MaxInitCodeSize = 2 * MaxCodeSize

var (
	metricGasUsed   = metrics.NewCounter("core/pipeline/gas_used")
	metricCallsOK   = metrics.NewCounter("core/pipeline/calls_ok")
	metricCallsFail = metrics.NewCounter("core/pipeline/calls_failed")
)

// ApplyTransaction executes a single transaction against statedb, charging
// its gas against gp, and returns the resulting receipt. This is the
// transaction pipeline: intrinsic gas check, frame construction, CREATE vs
// CALL routing, interpreter execution, code-size enforcement, gas/refund
// accounting, and snapshot commit-or-revert — all scoped to one transaction,
// with no block-level concerns (no chain-config fork gating beyond what the
// caller already resolved into BlockContext, no withdrawals, no blob
// machinery).
func ApplyTransaction(config *ChainConfig, statedb state.StateDB, header *types.Header, tx *types.Transaction, gp *GasPool) (*types.Receipt, uint64, error) {
	msg := TransactionToMessage(tx)

	if err := gp.SubGas(msg.GasLimit); err != nil {
		return nil, 0, err
	}

	stateNonce := statedb.GetNonce(msg.From)
	if msg.Nonce < stateNonce {
		gp.AddGas(msg.GasLimit)
		return nil, 0, fmt.Errorf("%w: address %v, tx nonce: %d, state nonce: %d", ErrNonceTooLow, msg.From, msg.Nonce, stateNonce)
	}
	if msg.Nonce > stateNonce {
		gp.AddGas(msg.GasLimit)
		return nil, 0, fmt.Errorf("%w: address %v, tx nonce: %d, state nonce: %d", ErrNonceTooHigh, msg.From, msg.Nonce, stateNonce)
	}

	isCreate := msg.IsCreate()
	if isCreate && len(msg.Data) > MaxInitCodeSize {
		gp.AddGas(msg.GasLimit)
		return nil, 0, fmt.Errorf("%w: size %d, limit %d", ErrMaxInitCodeSizeExceeded, len(msg.Data), MaxInitCodeSize)
	}

	gasPrice := msg.EffectiveGasPrice(header.BaseFee)
	gasCost := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(msg.GasLimit))
	totalCost := new(big.Int).Add(msg.Value, gasCost)
	if balance := statedb.GetBalance(msg.From); balance.Cmp(totalCost) < 0 {
		gp.AddGas(msg.GasLimit)
		return nil, 0, fmt.Errorf("%w: address %v have %v want %v", ErrInsufficientBalance, msg.From, balance, totalCost)
	}
	statedb.SubBalance(msg.From, gasCost)

	if !isCreate {
		statedb.SetNonce(msg.From, msg.Nonce+1)
	}

	igas := IntrinsicGas(msg.Data, msg.AccessList, isCreate)
	if igas > msg.GasLimit {
		gp.AddGas(msg.GasLimit)
		return nil, 0, fmt.Errorf("%w: have %d, want %d", ErrIntrinsicGasTooLow, msg.GasLimit, igas)
	}
	gasLeft := msg.GasLimit - igas

	blockCtx := vm.BlockContext{
		GetHash:     func(uint64) types.Hash { return types.Hash{} },
		BlockNumber: header.Number,
		Time:        header.Time,
		Coinbase:    header.Coinbase,
		GasLimit:    header.GasLimit,
		BaseFee:     header.BaseFee,
		PrevRandao:  header.MixDigest,
	}
	txCtx := vm.TxContext{
		Origin:   msg.From,
		GasPrice: gasPrice,
	}
	evm := vm.NewEVMWithState(blockCtx, txCtx, vm.Config{}, statedb)
	evm.SetJumpTable(jumpTableForConfig(config, header))
	evm.SetForkRules(forkRulesForConfig(config, header))
	evm.PreWarmAccessList(msg.From, msg.To)
	for _, tuple := range msg.AccessList {
		statedb.AddAddressToAccessList(tuple.Address)
		for _, key := range tuple.StorageKeys {
			statedb.AddSlotToAccessList(tuple.Address, key)
		}
	}

	snapshot := statedb.Snapshot()
	log.Debug("applying transaction", "from", msg.From, "to", msg.To, "gas", msg.GasLimit, "create", isCreate)

	var (
		ret             []byte
		leftOverGas     uint64
		contractAddress types.Address
		execErr         error
	)
	if isCreate {
		ret, contractAddress, leftOverGas, execErr = evm.Create(msg.From, msg.Data, gasLeft, msg.Value)
	} else {
		ret, leftOverGas, execErr = evm.Call(msg.From, *msg.To, msg.Data, gasLeft, msg.Value)
	}

	if execErr != nil {
		statedb.RevertToSnapshot(snapshot)
		metricCallsFail.Inc()
	} else {
		metricCallsOK.Inc()
	}

	gasUsedByExec := gasLeft - leftOverGas
	refund := statedb.GetRefund()
	totalGasUsed := igas + gasUsedByExec
	if max := totalGasUsed / 5; refund > max {
		refund = max
	}
	totalGasUsed -= refund
	leftOverGas = msg.GasLimit - totalGasUsed

	statedb.AddBalance(msg.From, new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(leftOverGas)))
	gp.AddGas(leftOverGas)

	tip := new(big.Int).Sub(gasPrice, header.BaseFee)
	if tip.Sign() < 0 {
		tip = new(big.Int)
	}
	statedb.AddBalance(header.Coinbase, new(big.Int).Mul(tip, new(big.Int).SetUint64(totalGasUsed)))

	metricGasUsed.Add(int64(totalGasUsed))

	status := types.ReceiptStatusSuccessful
	if execErr != nil {
		status = types.ReceiptStatusFailed
	}
	receipt := types.NewReceipt(status, totalGasUsed)
	receipt.GasUsed = totalGasUsed
	receipt.Logs = statedb.GetLogs(tx.Hash())
	receipt.Bloom = types.LogsBloom(receipt.Logs)
	if isCreate && execErr == nil {
		receipt.ContractAddress = contractAddress
	}

	if execErr != nil {
		log.Warn("transaction execution failed", "from", msg.From, "err", execErr)
		return receipt, totalGasUsed, nil
	}

	log.Debug("transaction applied", "gasUsed", totalGasUsed, "returnDataLen", len(ret))
	return receipt, totalGasUsed, nil
}

// jumpTableForConfig picks the opcode table matching the highest fork this
// chain config and block have activated. A nil config means "latest".
func jumpTableForConfig(config *ChainConfig, header *types.Header) vm.JumpTable {
	if config == nil {
		return vm.NewPragueJumpTable()
	}
	switch {
	case config.IsPrague(header.Time):
		return vm.NewPragueJumpTable()
	case config.IsCancun(header.Time):
		return vm.NewCancunJumpTable()
	case config.IsShanghai(header.Time):
		return vm.NewShanghaiJumpTable()
	case config.IsMerge():
		return vm.NewMergeJumpTable()
	case config.IsLondon(header.Number):
		return vm.NewLondonJumpTable()
	case config.IsBerlin(header.Number):
		return vm.NewBerlinJumpTable()
	case config.IsIstanbul(header.Number):
		return vm.NewIstanbulJumpTable()
	case config.IsConstantinople(header.Number):
		return vm.NewConstantinopleJumpTable()
	case config.IsByzantium(header.Number):
		return vm.NewByzantiumJumpTable()
	case config.IsEIP158(header.Number):
		return vm.NewSpuriousDragonJumpTable()
	case config.IsEIP150(header.Number):
		return vm.NewTangerineWhistleJumpTable()
	case config.IsHomestead(header.Number):
		return vm.NewHomesteadJumpTable()
	default:
		return vm.NewFrontierJumpTable()
	}
}

// forkRulesForConfig mirrors jumpTableForConfig's fork resolution into the
// ForkRules the interpreter consults for gas-schedule branching that isn't
// captured by the jump table alone (e.g. EIP-2929 cold/warm access).
func forkRulesForConfig(config *ChainConfig, header *types.Header) vm.ForkRules {
	if config == nil {
		return vm.ForkRules{IsPrague: true, IsCancun: true, IsShanghai: true, IsMerge: true, IsLondon: true, IsBerlin: true, IsIstanbul: true, IsConstantinople: true, IsByzantium: true, IsEIP158: true, IsHomestead: true}
	}
	return vm.ForkRules{
		IsPrague:         config.IsPrague(header.Time),
		IsCancun:         config.IsCancun(header.Time),
		IsShanghai:       config.IsShanghai(header.Time),
		IsMerge:          config.IsMerge(),
		IsLondon:         config.IsLondon(header.Number),
		IsBerlin:         config.IsBerlin(header.Number),
		IsIstanbul:       config.IsIstanbul(header.Number),
		IsConstantinople: config.IsConstantinople(header.Number),
		IsByzantium:      config.IsByzantium(header.Number),
		IsEIP158:         config.IsEIP158(header.Number),
		IsHomestead:      config.IsHomestead(header.Number),
	}
}
