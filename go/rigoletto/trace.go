// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package rigoletto

import "github.com/holiman/uint256"

// TraceHooks is a set of optional callbacks observing an execution. Call
// level hooks are invoked by the transaction processor, opcode level hooks
// by the interpreter. Nil hooks are skipped.
//
// For every instruction OnOpcode is called before and OnOpcodeEnd after its
// execution. Instructions starting nested calls see the complete trace of the
// nested execution between those two events.
type TraceHooks struct {
	OnEnter     func(CallFrame)
	OnExit      func(CallFrameResult)
	OnOpcode    func(*OpcodeStep)
	OnOpcodeEnd func(OpcodeResult)

	// The interpreter only copies the stack and memory into an OpcodeStep
	// if requested.
	CaptureStack  bool
	CaptureMemory bool
}

type CallFrame struct {
	Depth       int
	Kind        CallKind
	Sender      Address
	Recipient   Address
	CodeAddress Address
	Input       Data
	Code        Code
	Value       Value
	Gas         Gas
}

type CallFrameResult struct {
	Depth          int
	Output         Data
	GasUsed        Gas
	Success        bool
	Reverted       bool
	Halt           ExceptionalHalt
	CreatedAddress *Address
}

type OpcodeStep struct {
	Depth      int
	Pc         uint64
	Op         byte
	OpName     string
	Gas        Gas // < gas left before the instruction
	Address    Address
	StackTop   *uint256.Int  // < nil for an empty stack
	Stack      []uint256.Int // < bottom to top, only with CaptureStack
	Memory     []byte        // < only with CaptureMemory
	MemorySize int
}

type OpcodeResult struct {
	Depth   int
	GasCost Gas
	Storage *StorageAccess // < set for SLOAD and SSTORE
	Halt    ExceptionalHalt
}

// StorageAccess is a slot read or written by an instruction.
type StorageAccess struct {
	Key   Key
	Value Word
}
