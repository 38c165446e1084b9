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

import (
	"encoding/json"
	"fmt"
)

// ExecutionResult is the outcome of executing a transaction. It is a closed
// set of variants: *Success, *Revert and *Halt. Use a type switch to
// distinguish them.
//
// Note that reverts and halts are regular outcomes of a transaction, not
// failures of the execution. Failures are reported as errors instead.
type ExecutionResult interface {
	// UsedGas is the gas charged to the sender, after refunds.
	UsedGas() uint64
	// ReturnData is the output of a Success or Revert, nil for a Halt.
	ReturnData() Data

	isExecutionResult()
}

type SuccessReason int

const (
	SuccessStop SuccessReason = iota
	SuccessReturn
	SuccessSelfDestruct
)

func (r SuccessReason) String() string {
	switch r {
	case SuccessStop:
		return "Stop"
	case SuccessReturn:
		return "Return"
	case SuccessSelfDestruct:
		return "SelfDestruct"
	}
	return fmt.Sprintf("SuccessReason(%d)", int(r))
}

// ExceptionalHalt is the reason for an exceptional end of an execution.
type ExceptionalHalt int

const (
	HaltNone ExceptionalHalt = iota
	HaltOutOfGas
	HaltOpcodeNotFound
	HaltInvalidFEOpcode
	HaltInvalidJump
	HaltNotActivated
	HaltStackUnderflow
	HaltStackOverflow
	HaltOutOfOffset
	HaltCreateCollision
	HaltPrecompileError
	HaltNonceOverflow
	HaltCreateContractSizeLimit
	HaltCreateContractStartingWithEF
	HaltCreateInitcodeSizeLimit
	HaltStateChangeDuringStaticCall
)

func (h ExceptionalHalt) String() string {
	switch h {
	case HaltNone:
		return "None"
	case HaltOutOfGas:
		return "OutOfGas"
	case HaltOpcodeNotFound:
		return "OpcodeNotFound"
	case HaltInvalidFEOpcode:
		return "InvalidFEOpcode"
	case HaltInvalidJump:
		return "InvalidJump"
	case HaltNotActivated:
		return "NotActivated"
	case HaltStackUnderflow:
		return "StackUnderflow"
	case HaltStackOverflow:
		return "StackOverflow"
	case HaltOutOfOffset:
		return "OutOfOffset"
	case HaltCreateCollision:
		return "CreateCollision"
	case HaltPrecompileError:
		return "PrecompileError"
	case HaltNonceOverflow:
		return "NonceOverflow"
	case HaltCreateContractSizeLimit:
		return "CreateContractSizeLimit"
	case HaltCreateContractStartingWithEF:
		return "CreateContractStartingWithEF"
	case HaltCreateInitcodeSizeLimit:
		return "CreateInitcodeSizeLimit"
	case HaltStateChangeDuringStaticCall:
		return "StateChangeDuringStaticCall"
	}
	return fmt.Sprintf("ExceptionalHalt(%d)", int(h))
}

func (h ExceptionalHalt) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// Output is the payload of a successful execution: either *CallOutput or
// *CreateOutput.
type Output interface {
	Bytes() Data
	isOutput()
}

type CallOutput struct {
	Data Data `json:"data"`
}

type CreateOutput struct {
	Data    Data     `json:"data"`
	Address *Address `json:"address,omitempty"`
}

func (o *CallOutput) Bytes() Data   { return o.Data }
func (o *CreateOutput) Bytes() Data { return o.Data }
func (*CallOutput) isOutput()       {}
func (*CreateOutput) isOutput()     {}

type Success struct {
	Reason      SuccessReason
	GasUsed     uint64
	GasRefunded uint64
	Logs        []Log
	Output      Output
}

type Revert struct {
	GasUsed uint64
	Output  Data
}

// Halt is an exceptional end of the execution. It always consumes the full
// gas limit of the transaction.
type Halt struct {
	Reason  ExceptionalHalt
	GasUsed uint64
}

func (r *Success) UsedGas() uint64 { return r.GasUsed }
func (r *Revert) UsedGas() uint64  { return r.GasUsed }
func (r *Halt) UsedGas() uint64    { return r.GasUsed }

func (r *Success) ReturnData() Data {
	if r.Output == nil {
		return nil
	}
	return r.Output.Bytes()
}
func (r *Revert) ReturnData() Data { return r.Output }
func (r *Halt) ReturnData() Data   { return nil }

func (*Success) isExecutionResult() {}
func (*Revert) isExecutionResult()  {}
func (*Halt) isExecutionResult()    {}

// IsSuccess reports whether the result is the Success variant.
func IsSuccess(r ExecutionResult) bool {
	_, ok := r.(*Success)
	return ok
}

func (r *Success) MarshalJSON() ([]byte, error) {
	type output struct {
		Data    Data     `json:"data"`
		Address *Address `json:"address,omitempty"`
	}
	var out output
	switch o := r.Output.(type) {
	case *CallOutput:
		out.Data = o.Data
	case *CreateOutput:
		out.Data = o.Data
		out.Address = o.Address
	}
	return json.Marshal(struct {
		Type        string `json:"type"`
		Reason      string `json:"reason"`
		GasUsed     uint64 `json:"gasUsed"`
		GasRefunded uint64 `json:"gasRefunded"`
		Logs        []Log  `json:"logs"`
		Output      output `json:"output"`
	}{"success", r.Reason.String(), r.GasUsed, r.GasRefunded, r.Logs, out})
}

func (r *Revert) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    string `json:"type"`
		GasUsed uint64 `json:"gasUsed"`
		Output  Data   `json:"output"`
	}{"revert", r.GasUsed, r.Output})
}

func (r *Halt) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    string `json:"type"`
		Reason  string `json:"reason"`
		GasUsed uint64 `json:"gasUsed"`
	}{"halt", r.Reason.String(), r.GasUsed})
}
