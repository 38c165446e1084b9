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
	"math"

	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// MaxCallDepth is the maximum depth of nested call frames, the
	// transaction level frame having depth 0.
	MaxCallDepth = 1024

	createDataGas = 200
)

// runContext provides the interpreter with access to the transaction context
// and handles nested calls and creates. Each call frame gets its own copy
// tracking depth and static mode.
type runContext struct {
	*transactionContext
	interpreter rigoletto.Interpreter
	block       rigoletto.BlockParameters
	txParams    rigoletto.TransactionParameters
	config      Config
	hooks       *rigoletto.TraceHooks
	depth       int
	static      bool
}

type frameResult struct {
	rigoletto.Result
	createdAddress rigoletto.Address
}

func (r *runContext) Call(kind rigoletto.CallKind, parameters rigoletto.CallParameters) (rigoletto.CallResult, error) {
	res, err := r.execute(kind, parameters, r.depth+1, r.static || kind == rigoletto.StaticCall)
	if err != nil {
		return rigoletto.CallResult{}, err
	}
	return rigoletto.CallResult{
		Output:         res.Output,
		GasLeft:        res.GasLeft,
		GasRefund:      res.GasRefund,
		CreatedAddress: res.createdAddress,
		Success:        res.Success,
	}, nil
}

// execute runs a call frame of the given depth and reports it to the call
// level trace hooks.
func (r *runContext) execute(
	kind rigoletto.CallKind,
	parameters rigoletto.CallParameters,
	depth int,
	static bool,
) (frameResult, error) {
	if r.hooks != nil && r.hooks.OnEnter != nil {
		frame := rigoletto.CallFrame{
			Depth:       depth,
			Kind:        kind,
			Sender:      parameters.Sender,
			Recipient:   parameters.Recipient,
			CodeAddress: parameters.CodeAddress,
			Input:       parameters.Input,
			Value:       parameters.Value,
			Gas:         parameters.Gas,
		}
		if kind.IsCreate() {
			frame.Code = rigoletto.Code(parameters.Input)
			frame.Input = nil
		} else {
			frame.Code = r.GetCode(parameters.CodeAddress)
		}
		r.hooks.OnEnter(frame)
	}

	var res frameResult
	var err error
	if kind.IsCreate() {
		res, err = r.create(kind, parameters, depth, static)
	} else {
		res, err = r.call(kind, parameters, depth, static)
	}
	if err == nil {
		err = r.err
	}
	if err != nil {
		return frameResult{}, err
	}

	if r.hooks != nil && r.hooks.OnExit != nil {
		exit := rigoletto.CallFrameResult{
			Depth:    depth,
			Output:   res.Output,
			GasUsed:  parameters.Gas - res.GasLeft,
			Success:  res.Success,
			Reverted: res.Reverted,
			Halt:     res.Halt,
		}
		if kind.IsCreate() && res.Success {
			created := res.createdAddress
			exit.CreatedAddress = &created
		}
		r.hooks.OnExit(exit)
	}
	return res, nil
}

func (r *runContext) call(
	kind rigoletto.CallKind,
	parameters rigoletto.CallParameters,
	depth int,
	static bool,
) (frameResult, error) {
	failed := frameResult{Result: rigoletto.Result{GasLeft: parameters.Gas}}
	if depth > MaxCallDepth {
		return failed, nil
	}
	transfersValue := kind == rigoletto.Call || kind == rigoletto.CallCode
	if transfersValue && !r.canTransfer(parameters.Sender, parameters.Value) {
		return failed, nil
	}

	snapshot := r.CreateSnapshot()
	switch kind {
	case rigoletto.Call:
		if !r.AccountExists(parameters.Recipient) &&
			!isPrecompiled(parameters.CodeAddress, r.revision) &&
			r.revision >= rigoletto.SpuriousDragon &&
			parameters.Value.IsZero() {
			return frameResult{Result: rigoletto.Result{
				Success: true,
				GasLeft: parameters.Gas,
			}}, nil
		}
		if !r.AccountExists(parameters.Recipient) {
			// Before EIP-161 calls leave an empty account behind.
			r.SetBalance(parameters.Recipient, rigoletto.Value{})
		}
		r.transfer(parameters.Sender, parameters.Recipient, parameters.Value)
	case rigoletto.CallCode:
		r.transfer(parameters.Sender, parameters.Recipient, parameters.Value)
	case rigoletto.StaticCall:
		r.touch(parameters.Recipient)
	}

	if res, found := runPrecompiled(r.revision, parameters.CodeAddress, parameters.Input, parameters.Gas); found {
		if !res.Success {
			r.RestoreSnapshot(snapshot)
		}
		return frameResult{Result: res}, nil
	}

	code := r.GetCode(parameters.CodeAddress)
	if len(code) == 0 {
		return frameResult{Result: rigoletto.Result{
			Success: true,
			GasLeft: parameters.Gas,
		}}, nil
	}
	codeHash := r.GetCodeHash(parameters.CodeAddress)

	res, err := r.run(rigoletto.Parameters{
		Kind:      kind,
		Static:    static,
		Depth:     depth,
		Gas:       parameters.Gas,
		Recipient: parameters.Recipient,
		Sender:    parameters.Sender,
		Input:     parameters.Input,
		Value:     parameters.Value,
		CodeHash:  &codeHash,
		Code:      code,
	})
	if err != nil {
		return frameResult{}, err
	}
	if !res.Success {
		r.RestoreSnapshot(snapshot)
	}
	return frameResult{Result: res}, nil
}

func (r *runContext) create(
	kind rigoletto.CallKind,
	parameters rigoletto.CallParameters,
	depth int,
	static bool,
) (frameResult, error) {
	failed := frameResult{Result: rigoletto.Result{GasLeft: parameters.Gas}}
	if depth > MaxCallDepth {
		return failed, nil
	}
	if !r.canTransfer(parameters.Sender, parameters.Value) {
		return failed, nil
	}
	nonce := r.GetNonce(parameters.Sender)
	if nonce == math.MaxUint64 {
		failed.Halt = rigoletto.HaltNonceOverflow
		return failed, nil
	}
	r.SetNonce(parameters.Sender, nonce+1)

	code := rigoletto.Code(parameters.Input)
	codeHash := rigoletto.Keccak256(code)
	address := createAddress(kind, parameters.Sender, nonce, parameters.Salt, codeHash)
	if r.revision >= rigoletto.Berlin {
		r.AccessAccount(address)
	}

	if r.GetNonce(address) != 0 || r.GetCodeSize(address) != 0 {
		return frameResult{Result: rigoletto.Result{Halt: rigoletto.HaltCreateCollision}}, nil
	}

	snapshot := r.CreateSnapshot()
	r.createAccount(address)
	if r.revision >= rigoletto.SpuriousDragon {
		r.SetNonce(address, 1)
	}
	r.transfer(parameters.Sender, address, parameters.Value)

	res, err := r.run(rigoletto.Parameters{
		Kind:      kind,
		Static:    static,
		Depth:     depth,
		Gas:       parameters.Gas,
		Recipient: address,
		Sender:    parameters.Sender,
		Value:     parameters.Value,
		CodeHash:  &codeHash,
		Code:      code,
	})
	if err != nil {
		return frameResult{}, err
	}
	if !res.Success {
		r.RestoreSnapshot(snapshot)
		return frameResult{Result: res}, nil
	}

	deployed := res.Output
	halt := rigoletto.HaltNone
	switch {
	case r.revision >= rigoletto.SpuriousDragon && uint64(len(deployed)) > r.config.maxCodeSize():
		halt = rigoletto.HaltCreateContractSizeLimit
	case r.revision >= rigoletto.London && len(deployed) > 0 && deployed[0] == 0xEF:
		halt = rigoletto.HaltCreateContractStartingWithEF
	default:
		cost := rigoletto.Gas(len(deployed)) * createDataGas
		if res.GasLeft >= cost {
			res.GasLeft -= cost
			r.SetCode(address, rigoletto.Code(deployed))
		} else if r.revision >= rigoletto.Homestead {
			halt = rigoletto.HaltOutOfGas
		}
		// Before Homestead a create not able to pay for its code succeeds
		// without code.
	}
	if halt != rigoletto.HaltNone {
		r.RestoreSnapshot(snapshot)
		return frameResult{Result: rigoletto.Result{Halt: halt}}, nil
	}
	return frameResult{Result: res, createdAddress: address}, nil
}

// run executes code on the interpreter. Failed executions report no refunds
// and only reverts return unused gas.
func (r *runContext) run(params rigoletto.Parameters) (rigoletto.Result, error) {
	frame := *r
	frame.depth = params.Depth
	frame.static = params.Static

	params.BlockParameters = r.block
	params.TransactionParameters = r.txParams
	params.Context = &frame
	params.Hooks = r.hooks

	res, err := r.interpreter.Run(params)
	if err != nil {
		return rigoletto.Result{}, err
	}
	if !res.Success {
		res.GasRefund = 0
		if !res.Reverted {
			res.GasLeft = 0
			res.Output = nil
		}
	}
	return res, nil
}

func (r *runContext) canTransfer(sender rigoletto.Address, value rigoletto.Value) bool {
	return value.IsZero() || r.GetBalance(sender).Cmp(value) >= 0
}

// transfer moves value between accounts. The recipient is touched even if no
// value is transferred.
func (r *runContext) transfer(sender, recipient rigoletto.Address, value rigoletto.Value) {
	if value.IsZero() {
		r.touch(recipient)
		return
	}
	r.SetBalance(sender, rigoletto.Sub(r.GetBalance(sender), value))
	r.SetBalance(recipient, rigoletto.Add(r.GetBalance(recipient), value))
}

func createAddress(
	kind rigoletto.CallKind,
	sender rigoletto.Address,
	nonce uint64,
	salt rigoletto.Hash,
	initHash rigoletto.Hash,
) rigoletto.Address {
	if kind == rigoletto.Create {
		return rigoletto.Address(crypto.CreateAddress(common.Address(sender), nonce))
	}
	return rigoletto.Address(crypto.CreateAddress2(common.Address(sender), common.Hash(salt), initHash[:]))
}
