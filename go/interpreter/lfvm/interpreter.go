// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package lfvm

import (
	"errors"
	"fmt"

	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	"github.com/holiman/uint256"
)

// status is enumeration of the execution state of an interpreter run.
type status byte

const (
	statusRunning        status = iota // < all fine, ops are processed
	statusStopped                      // < execution stopped with a STOP
	statusReverted                     // < execution stopped with a REVERT
	statusReturned                     // < execution stopped with a RETURN
	statusSelfDestructed               // < execution stopped with a SELF-DESTRUCT
	statusFailed                       // < execution stopped with a logic error
)

// context is the execution environment of an interpreter run. It contains all
// the necessary state to execute a contract, including input parameters, the
// contract code, and internal execution state such as the program counter,
// stack, and memory. For each contract execution, a new context is created.
type context struct {
	// Inputs
	params    rigoletto.Parameters
	context   rigoletto.RunContext
	revision  rigoletto.Revision
	code      []byte
	jumpDests jumpDests

	// Execution state
	pc     uint64
	gas    rigoletto.Gas
	refund rigoletto.Gas
	stack  *stack
	memory *Memory

	// Intermediate data
	returnData []byte // < the result of the last nested contract call
	output     []byte // < the data produced by RETURN or REVERT

	// Tracing, only maintained if opcode hooks are installed
	tracing         bool
	callGasReturned rigoletto.Gas
	storageAccess   *rigoletto.StorageAccess

	// Configuration flags
	withShaCache bool
	shaCache     *sha3HashCache
}

// useGas reduces the gas level by the given amount. If the gas level drops
// below zero, errOutOfGas is returned and the caller should stop the execution.
func (c *context) useGas(amount rigoletto.Gas) error {
	if c.gas < 0 || amount < 0 || c.gas < amount {
		return errOutOfGas
	}
	c.gas -= amount
	return nil
}

// isAtLeast returns true if the interpreter is running at least at the given
// revision or newer, false otherwise.
func (c *context) isAtLeast(revision rigoletto.Revision) bool {
	return c.revision >= revision
}

func (c *context) hash(data []byte) rigoletto.Hash {
	if c.withShaCache && c.shaCache != nil {
		return c.shaCache.hash(data)
	}
	return Keccak256(data)
}

// --- Interpreter ---

func run(
	config interpreterConfig,
	params rigoletto.Parameters,
	jumpDests jumpDests,
) (rigoletto.Result, error) {
	// Don't bother with the execution if there's no code.
	if len(params.Code) == 0 {
		return rigoletto.Result{
			Success: true,
			Reason:  rigoletto.SuccessStop,
			GasLeft: params.Gas,
		}, nil
	}

	hooks := params.Hooks
	var ctxt = context{
		params:       params,
		context:      params.Context,
		revision:     params.Revision.Resolve(),
		code:         params.Code,
		jumpDests:    jumpDests,
		gas:          params.Gas,
		stack:        NewStack(),
		memory:       NewMemory(),
		tracing:      hooks != nil && (hooks.OnOpcode != nil || hooks.OnOpcodeEnd != nil),
		withShaCache: config.withShaCache,
		shaCache:     config.shaCache,
	}
	defer ReturnStack(ctxt.stack)

	status, err := steps(&ctxt, false)
	if callErr := (*callError)(nil); errors.As(err, &callErr) {
		return rigoletto.Result{}, callErr.err
	}
	if err != nil {
		status = statusFailed
	}
	return generateResult(status, &ctxt, err)
}

func generateResult(status status, ctxt *context, err error) (rigoletto.Result, error) {
	switch status {
	case statusStopped:
		return rigoletto.Result{
			Success:   true,
			Reason:    rigoletto.SuccessStop,
			GasLeft:   ctxt.gas,
			GasRefund: ctxt.refund,
		}, nil
	case statusSelfDestructed:
		return rigoletto.Result{
			Success:   true,
			Reason:    rigoletto.SuccessSelfDestruct,
			GasLeft:   ctxt.gas,
			GasRefund: ctxt.refund,
		}, nil
	case statusReturned:
		return rigoletto.Result{
			Success:   true,
			Reason:    rigoletto.SuccessReturn,
			Output:    ctxt.output,
			GasLeft:   ctxt.gas,
			GasRefund: ctxt.refund,
		}, nil
	case statusReverted:
		return rigoletto.Result{
			Reverted: true,
			Output:   ctxt.output,
			GasLeft:  ctxt.gas,
		}, nil
	case statusFailed:
		return rigoletto.Result{
			Halt: toHalt(err),
		}, nil
	default:
		return rigoletto.Result{}, fmt.Errorf("unexpected error in interpreter, unknown status: %v", status)
	}
}

// --- Execution ---

// steps executes the contract code in the given context. If oneStepOnly is
// true, only the instruction pointed to by the program counter is executed.
// steps returns the status of the execution and an error if the contract
// execution yields any execution violation (i.e. out of gas, stack underflow, etc).
func steps(c *context, oneStepOnly bool) (status, error) {
	staticGasPrices := getStaticGasPrices(c.revision)

	status := statusRunning
	for status == statusRunning {
		if c.pc >= uint64(len(c.code)) {
			return statusStopped, nil
		}

		op := OpCode(c.code[c.pc])
		gasBefore := c.gas
		if c.tracing {
			c.callGasReturned = 0
			c.storageAccess = nil
			c.traceStep(op)
		}

		var err error
		status, err = step(c, op, staticGasPrices)

		if c.tracing {
			c.traceStepEnd(gasBefore, err)
		}
		if err != nil {
			return statusFailed, err
		}
		if oneStepOnly {
			return status, nil
		}
	}
	return status, nil
}

// step runs a single instruction and moves the program counter to the next.
func step(c *context, op OpCode, staticGasPrices *[256]rigoletto.Gas) (status, error) {
	if !op.isDefined() {
		return statusFailed, errInvalidOpCode
	}
	if op == INVALID {
		return statusFailed, errDesignatedInvalid
	}
	if !op.isAvailable(c.revision) {
		return statusFailed, errInvalidRevision
	}

	// Check stack boundary for every instruction
	if err := checkStackLimits(c.stack.len(), op); err != nil {
		return statusFailed, err
	}

	// Consume static gas price for instruction before execution
	if err := c.useGas(staticGasPrices[op]); err != nil {
		return statusFailed, err
	}

	status := statusRunning
	var err error

	switch {
	case PUSH1 <= op && op <= PUSH32:
		opPush(c, op.pushSize())
		return statusRunning, nil
	case DUP1 <= op && op <= DUP16:
		opDup(c, int(op-DUP1)+1)
	case SWAP1 <= op && op <= SWAP16:
		opSwap(c, int(op-SWAP1)+1)
	case LOG0 <= op && op <= LOG4:
		err = opLog(c, int(op-LOG0))
	default:
		switch op {
		case STOP:
			status = opStop()
		case POP:
			opPop(c)
		case PUSH0:
			opPush0(c)
		case JUMP:
			return statusRunning, opJump(c)
		case JUMPI:
			return statusRunning, opJumpi(c)
		case JUMPDEST:
			// nothing
		case AND:
			opAnd(c)
		case OR:
			opOr(c)
		case XOR:
			opXor(c)
		case NOT:
			opNot(c)
		case ISZERO:
			opIszero(c)
		case EQ:
			opEq(c)
		case LT:
			opLt(c)
		case GT:
			opGt(c)
		case SLT:
			opSlt(c)
		case SGT:
			opSgt(c)
		case ADD:
			opAdd(c)
		case SUB:
			opSub(c)
		case MUL:
			opMul(c)
		case DIV:
			opDiv(c)
		case SDIV:
			opSDiv(c)
		case MOD:
			opMod(c)
		case SMOD:
			opSMod(c)
		case ADDMOD:
			opAddMod(c)
		case MULMOD:
			opMulMod(c)
		case EXP:
			err = opExp(c)
		case SIGNEXTEND:
			opSignExtend(c)
		case BYTE:
			opByte(c)
		case SHL:
			opShl(c)
		case SHR:
			opShr(c)
		case SAR:
			opSar(c)
		case SHA3:
			err = opSha3(c)
		case PC:
			opPc(c)
		case GAS:
			opGas(c)
		case MSIZE:
			opMsize(c)
		case MLOAD:
			err = opMload(c)
		case MSTORE:
			err = opMstore(c)
		case MSTORE8:
			err = opMstore8(c)
		case MCOPY:
			err = opMcopy(c)
		case ADDRESS:
			opAddress(c)
		case ORIGIN:
			opOrigin(c)
		case CALLER:
			opCaller(c)
		case CALLVALUE:
			opCallvalue(c)
		case CALLDATALOAD:
			opCallDataload(c)
		case CALLDATASIZE:
			opCallDatasize(c)
		case CALLDATACOPY:
			err = genericDataCopy(c, c.params.Input)
		case CODESIZE:
			opCodeSize(c)
		case CODECOPY:
			err = genericDataCopy(c, c.code)
		case GASPRICE:
			opGasPrice(c)
		case RETURNDATASIZE:
			opReturnDataSize(c)
		case RETURNDATACOPY:
			err = opReturnDataCopy(c)
		case BALANCE:
			err = opBalance(c)
		case SELFBALANCE:
			opSelfbalance(c)
		case EXTCODESIZE:
			err = opExtcodesize(c)
		case EXTCODEHASH:
			err = opExtcodehash(c)
		case EXTCODECOPY:
			err = opExtCodeCopy(c)
		case BLOCKHASH:
			opBlockhash(c)
		case COINBASE:
			opCoinbase(c)
		case TIMESTAMP:
			opTimestamp(c)
		case NUMBER:
			opNumber(c)
		case PREVRANDAO:
			opPrevRandao(c)
		case GASLIMIT:
			opGasLimit(c)
		case CHAINID:
			opChainId(c)
		case BASEFEE:
			opBaseFee(c)
		case BLOBHASH:
			opBlobHash(c)
		case BLOBBASEFEE:
			opBlobBaseFee(c)
		case SLOAD:
			err = opSload(c)
		case SSTORE:
			err = opSstore(c)
		case TLOAD:
			opTload(c)
		case TSTORE:
			err = opTstore(c)
		case CALL:
			err = genericCall(c, rigoletto.Call)
		case CALLCODE:
			err = genericCall(c, rigoletto.CallCode)
		case DELEGATECALL:
			err = genericCall(c, rigoletto.DelegateCall)
		case STATICCALL:
			err = genericCall(c, rigoletto.StaticCall)
		case CREATE:
			err = genericCreate(c, rigoletto.Create)
		case CREATE2:
			err = genericCreate(c, rigoletto.Create2)
		case RETURN:
			err = opEndWithResult(c)
			status = statusReturned
		case REVERT:
			err = opEndWithResult(c)
			status = statusReverted
		case SELFDESTRUCT:
			status, err = opSelfdestruct(c)
		default:
			err = errInvalidOpCode
		}
	}

	if err != nil {
		return statusFailed, err
	}
	c.pc++
	return status, nil
}

// --- Tracing ---

func (c *context) traceStep(op OpCode) {
	hooks := c.params.Hooks
	if hooks.OnOpcode == nil {
		return
	}
	s := &rigoletto.OpcodeStep{
		Depth:      c.params.Depth,
		Pc:         c.pc,
		Op:         byte(op),
		OpName:     op.String(),
		Gas:        c.gas,
		Address:    c.params.Recipient,
		MemorySize: int(c.memory.length()),
	}
	if c.stack.len() > 0 {
		top := *c.stack.peek()
		s.StackTop = &top
	}
	if hooks.CaptureStack {
		s.Stack = c.stack.snapshot()
	}
	if hooks.CaptureMemory {
		s.Memory = c.memory.snapshot()
	}
	hooks.OnOpcode(s)
}

// traceStepEnd reports the gas consumed by the last instruction. Gas handed
// back by nested calls is not part of the cost of the instruction.
func (c *context) traceStepEnd(gasBefore rigoletto.Gas, err error) {
	hooks := c.params.Hooks
	if hooks.OnOpcodeEnd == nil {
		return
	}
	res := rigoletto.OpcodeResult{
		Depth:   c.params.Depth,
		GasCost: gasBefore - c.gas + c.callGasReturned,
		Storage: c.storageAccess,
	}
	if err != nil {
		res.Halt = toHalt(err)
	}
	hooks.OnOpcodeEnd(res)
}

func (c *context) recordStorageAccess(key *uint256.Int, value *uint256.Int) {
	if !c.tracing {
		return
	}
	c.storageAccess = &rigoletto.StorageAccess{
		Key:   rigoletto.Key(key.Bytes32()),
		Value: rigoletto.Word(value.Bytes32()),
	}
}
