// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package floria

import (
	"context"
	"fmt"

	"github.com/Fantom-foundation/Rigoletto/go/log"
	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	"github.com/Fantom-foundation/Rigoletto/go/state"
	"github.com/Fantom-foundation/Rigoletto/go/transaction"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var logger = log.NewLogger("floria")

// Mode selects how a transaction is executed.
type Mode int

const (
	// Commit validates the transaction and writes its effects into the state.
	Commit Mode = iota
	// DryRun validates the transaction and executes it on a private copy
	// of the state.
	DryRun
	// GuaranteedDryRun executes the transaction on a private copy of the
	// state without nonce, balance, fee or sender code checks. No gas is
	// bought and no fees are paid.
	GuaranteedDryRun
)

func (m Mode) String() string {
	switch m {
	case Commit:
		return "commit"
	case DryRun:
		return "dry-run"
	case GuaranteedDryRun:
		return "guaranteed-dry-run"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Config contains the chain settings relevant for the execution of
// transactions.
type Config struct {
	ChainID               uint64
	LimitContractCodeSize *uint64
	LimitInitcodeSize     *uint64
	DisableBlockGasLimit  bool
	DisableEip3607        bool
}

func (c Config) maxCodeSize() uint64 {
	if c.LimitContractCodeSize != nil {
		return *c.LimitContractCodeSize
	}
	return transaction.MaxCodeSize
}

func (c Config) rules(revision rigoletto.Revision) transaction.Rules {
	return transaction.Rules{
		ChainID:           c.ChainID,
		Revision:          revision,
		LimitInitcodeSize: c.LimitInitcodeSize,
		DisableEip3607:    c.DisableEip3607,
	}
}

// BlockContext describes the block a transaction is executed in.
type BlockContext struct {
	rigoletto.BlockParameters
	// GetHash resolves the hashes of recent blocks, optional. Errors abort
	// the transaction.
	GetHash func(number int64) (rigoletto.Hash, error)
}

// BaseFee returns the base fee of the block, nil before London.
func (b BlockContext) BaseFee() *rigoletto.Value {
	if !b.Revision.IsAtLeast(rigoletto.London) {
		return nil
	}
	fee := b.BlockParameters.BaseFee
	return &fee
}

// Outcome is the result of executing a single transaction.
type Outcome struct {
	Result            rigoletto.ExecutionResult
	Caller            rigoletto.Address
	ContractAddress   *rigoletto.Address // < set for contract creations, even failed ones
	GasUsed           uint64
	EffectiveGasPrice rigoletto.Value
	BlobGasUsed       uint64
	Logs              []rigoletto.Log
	// State is the state after the transaction. In Commit mode this is the
	// state passed to Execute.
	State *state.State
}

// Processor executes transactions using an interpreter for the contract code.
type Processor struct {
	interpreter rigoletto.Interpreter
	config      Config
}

func New(interpreter rigoletto.Interpreter, config Config) *Processor {
	return &Processor{
		interpreter: interpreter,
		config:      config,
	}
}

func (p *Processor) Config() Config {
	return p.config
}

// Execute runs a transaction on top of the given state. Reverts and halts are
// reported through the result. Errors are returned if the transaction is
// invalid, in which case no state is modified, or if the execution could not
// be completed, for instance because remote state could not be fetched.
func (p *Processor) Execute(
	ctx context.Context,
	s *state.State,
	block BlockContext,
	tx *transaction.Signed,
	mode Mode,
	hooks *rigoletto.TraceHooks,
) (*Outcome, error) {
	revision := block.Revision.Resolve()
	if !revision.IsValid() || revision > rigoletto.NewestRevision {
		return nil, &rigoletto.ErrUnsupportedRevision{Revision: block.Revision}
	}
	block.Revision = revision
	rules := p.config.rules(revision)

	var caller rigoletto.Address
	var err error
	if mode == GuaranteedDryRun {
		caller, err = tx.Caller()
	} else {
		caller, err = transaction.ValidateStatic(tx, rules)
	}
	if err != nil {
		return nil, err
	}
	intrinsicGas, err := transaction.IntrinsicGas(tx, revision)
	if err != nil {
		return nil, err
	}
	if tx.GasLimit() < intrinsicGas {
		return nil, fmt.Errorf("%w: have %d, want %d", rigoletto.ErrIntrinsicGasTooLow, tx.GasLimit(), intrinsicGas)
	}

	var exec *execution
	execute := func(work *state.State) (err error) {
		exec, err = p.run(ctx, work, block, tx, mode, hooks, caller, intrinsicGas, rules)
		return err
	}
	if mode == Commit {
		err = s.Commit(execute)
	} else {
		err = execute(s.Clone())
	}
	if err != nil {
		return nil, err
	}
	res, gasUsed, refund, logs, kind := exec.res, exec.gasUsed, exec.refund, exec.logs, exec.kind
	work := exec.state
	if mode == Commit {
		work = s
	}

	outcome := &Outcome{
		Caller:            caller,
		GasUsed:           gasUsed,
		EffectiveGasPrice: exec.gasPrice,
		BlobGasUsed:       tx.BlobGas(),
		Logs:              logs,
		State:             work,
	}
	if tx.IsCreate() {
		address := rigoletto.Address(crypto.CreateAddress(common.Address(caller), exec.nonce))
		outcome.ContractAddress = &address
	}

	switch {
	case res.Success:
		var output rigoletto.Output = &rigoletto.CallOutput{Data: res.Output}
		if kind == rigoletto.Create {
			created := res.createdAddress
			output = &rigoletto.CreateOutput{Data: res.Output, Address: &created}
		}
		outcome.Result = &rigoletto.Success{
			Reason:      res.Reason,
			GasUsed:     gasUsed,
			GasRefunded: refund,
			Logs:        logs,
			Output:      output,
		}
	case res.Reverted:
		outcome.Result = &rigoletto.Revert{GasUsed: gasUsed, Output: res.Output}
	default:
		halt := res.Halt
		if halt == rigoletto.HaltNone {
			halt = rigoletto.HaltOutOfGas
		}
		outcome.Result = &rigoletto.Halt{Reason: halt, GasUsed: gasUsed}
	}

	logger.Debug().
		Stringer("hash", tx.Hash()).
		Stringer("mode", mode).
		Uint64("gasUsed", gasUsed).
		Bool("success", res.Success).
		Msg("executed transaction")
	return outcome, nil
}

// execution is the result of running a transaction on a working copy of the
// state.
type execution struct {
	state    *state.State
	res      frameResult
	kind     rigoletto.CallKind
	nonce    uint64
	gasPrice rigoletto.Value
	gasUsed  uint64
	refund   uint64
	logs     []rigoletto.Log
}

// run executes a transaction passing the static checks on the given working
// state. Errors leave the working state in an undefined condition.
func (p *Processor) run(
	ctx context.Context,
	work *state.State,
	block BlockContext,
	tx *transaction.Signed,
	mode Mode,
	hooks *rigoletto.TraceHooks,
	caller rigoletto.Address,
	intrinsicGas uint64,
	rules transaction.Rules,
) (*execution, error) {
	revision := block.Revision
	txc := newTransactionContext(ctx, work, revision, block.GetHash)
	baseFee := block.BaseFee()
	gasPrice := transaction.EffectiveGasPrice(tx, baseFee)

	if mode != GuaranteedDryRun {
		if err := p.validate(txc, &block, tx, caller, rules); err != nil {
			return nil, err
		}
		// Buy gas.
		cost := gasPrice.Scale(tx.GasLimit())
		cost = rigoletto.Add(cost, block.BlobBaseFee.Scale(tx.BlobGas()))
		txc.SetBalance(caller, rigoletto.Sub(txc.GetBalance(caller), cost))
	} else if balance := txc.GetBalance(caller); balance.Cmp(tx.Value()) < 0 {
		// Without balance checks the transferred value must still be covered.
		txc.SetBalance(caller, tx.Value())
	}

	nonce := txc.GetNonce(caller)
	if !tx.IsCreate() {
		txc.SetNonce(caller, nonce+1)
	}

	if revision >= rigoletto.Berlin {
		txc.AccessAccount(caller)
		if to := tx.To(); to != nil {
			txc.AccessAccount(*to)
		}
		for _, address := range PrecompiledAddresses(revision) {
			txc.AccessAccount(address)
		}
		for _, tuple := range tx.AccessList() {
			txc.AccessAccount(tuple.Address)
			for _, key := range tuple.StorageKeys {
				txc.AccessStorage(tuple.Address, key)
			}
		}
		if revision >= rigoletto.Shanghai {
			txc.AccessAccount(block.Coinbase)
		}
	}
	if txc.err != nil {
		return nil, txc.err
	}

	runContext := &runContext{
		transactionContext: txc,
		interpreter:        p.interpreter,
		block:              block.BlockParameters,
		txParams: rigoletto.TransactionParameters{
			Origin:     caller,
			GasPrice:   gasPrice,
			BlobHashes: tx.BlobHashes(),
		},
		config: p.config,
		hooks:  hooks,
	}
	parameters := rigoletto.CallParameters{
		Sender: caller,
		Value:  tx.Value(),
		Input:  tx.Input(),
		Gas:    rigoletto.Gas(tx.GasLimit() - intrinsicGas),
	}
	kind := rigoletto.Create
	if to := tx.To(); to != nil {
		kind = rigoletto.Call
		parameters.Recipient = *to
		parameters.CodeAddress = *to
	}
	res, err := runContext.execute(kind, parameters, 0, false)
	if err != nil {
		return nil, err
	}

	gasLeft := uint64(0)
	if res.Success || res.Reverted {
		gasLeft = uint64(res.GasLeft)
	}
	gasUsed := tx.GasLimit() - gasLeft
	refund := uint64(0)
	if res.Success && res.GasRefund > 0 {
		refund = min(uint64(res.GasRefund), gasUsed/refundQuotient(revision))
	}
	gasUsed -= refund

	if mode != GuaranteedDryRun {
		returned := gasPrice.Scale(tx.GasLimit() - gasUsed)
		txc.SetBalance(caller, rigoletto.Add(txc.GetBalance(caller), returned))
		fee := transaction.EffectiveMinerFee(tx, baseFee).Scale(gasUsed)
		txc.SetBalance(block.Coinbase, rigoletto.Add(txc.GetBalance(block.Coinbase), fee))
	}

	var logs []rigoletto.Log
	if res.Success {
		logs = txc.GetLogs()
	}
	txc.finalize()
	if err := txc.commit(); err != nil {
		return nil, err
	}
	return &execution{
		state:    work,
		res:      res,
		kind:     kind,
		nonce:    nonce,
		gasPrice: gasPrice,
		gasUsed:  gasUsed,
		refund:   refund,
		logs:     logs,
	}, nil
}

// validate runs the checks depending on the state of the sender and the
// block.
func (p *Processor) validate(
	txc *transactionContext,
	block *BlockContext,
	tx *transaction.Signed,
	caller rigoletto.Address,
	rules transaction.Rules,
) error {
	account := &state.Account{
		Balance: txc.GetBalance(caller),
		Nonce:   txc.GetNonce(caller),
	}
	if code := txc.GetCode(caller); len(code) > 0 {
		account.Code = rigoletto.NewBytecode(code)
	}
	if txc.err != nil {
		return txc.err
	}
	if tx.Nonce() > account.Nonce {
		return fmt.Errorf("%w: address %v, tx: %d state: %d", rigoletto.ErrNonceTooHigh, caller, tx.Nonce(), account.Nonce)
	}
	if baseFee := block.BaseFee(); baseFee != nil && tx.MaxFeePerGas().Cmp(*baseFee) < 0 {
		return fmt.Errorf("%w: address %v, max fee %v, base fee %v", rigoletto.ErrFeeCapTooLow, caller, tx.MaxFeePerGas(), *baseFee)
	}
	if tx.Type() == transaction.BlobType {
		if tx.IsCreate() {
			return rigoletto.ErrBlobCreate
		}
		if tx.MaxFeePerBlobGas().Cmp(block.BlobBaseFee) < 0 {
			return fmt.Errorf("%w: address %v, blob fee cap %v, blob base fee %v", rigoletto.ErrBlobFeeCapTooLow, caller, tx.MaxFeePerBlobGas(), block.BlobBaseFee)
		}
	}
	if !p.config.DisableBlockGasLimit && tx.GasLimit() > uint64(block.GasLimit) {
		return fmt.Errorf("%w: have %d, block limit %d", rigoletto.ErrGasLimitExceeded, tx.GasLimit(), block.GasLimit)
	}
	return transaction.ValidateSender(tx, caller, account, rules)
}

// refundQuotient limits refunds to a fraction of the used gas (EIP-3529).
func refundQuotient(revision rigoletto.Revision) uint64 {
	if revision >= rigoletto.London {
		return 5
	}
	return 2
}
