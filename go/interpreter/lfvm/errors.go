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

import "github.com/Fantom-foundation/Rigoletto/go/rigoletto"

// Errors ending the execution of a frame exceptionally. They never leave the
// interpreter: Run reports them as the halt reason of the result.
const (
	errOutOfGas               = rigoletto.ConstError("out of gas")
	errOverflow               = rigoletto.ConstError("offset or size overflow")
	errGasUintOverflow        = rigoletto.ConstError("gas uint64 overflow")
	errInvalidOpCode          = rigoletto.ConstError("invalid opcode")
	errDesignatedInvalid      = rigoletto.ConstError("designated invalid instruction")
	errInvalidRevision        = rigoletto.ConstError("instruction not available in revision")
	errInvalidJump            = rigoletto.ConstError("invalid jump destination")
	errStackOverflow          = rigoletto.ConstError("stack overflow")
	errStackUnderflow         = rigoletto.ConstError("stack underflow")
	errReturnDataOutOfBounds  = rigoletto.ConstError("return data out of bounds")
	errStaticContextViolation = rigoletto.ConstError("state modification in static context")
	errInitCodeTooLarge       = rigoletto.ConstError("init code larger than allowed")
)

var haltReasons = map[error]rigoletto.ExceptionalHalt{
	errOutOfGas:               rigoletto.HaltOutOfGas,
	errOverflow:               rigoletto.HaltOutOfGas,
	errGasUintOverflow:        rigoletto.HaltOutOfGas,
	errInvalidOpCode:          rigoletto.HaltOpcodeNotFound,
	errDesignatedInvalid:      rigoletto.HaltInvalidFEOpcode,
	errInvalidRevision:        rigoletto.HaltNotActivated,
	errInvalidJump:            rigoletto.HaltInvalidJump,
	errStackOverflow:          rigoletto.HaltStackOverflow,
	errStackUnderflow:         rigoletto.HaltStackUnderflow,
	errReturnDataOutOfBounds:  rigoletto.HaltOutOfOffset,
	errStaticContextViolation: rigoletto.HaltStateChangeDuringStaticCall,
	errInitCodeTooLarge:       rigoletto.HaltCreateInitcodeSizeLimit,
}

// toHalt maps an execution error to the reported halt reason.
func toHalt(err error) rigoletto.ExceptionalHalt {
	if reason, found := haltReasons[err]; found {
		return reason
	}
	return rigoletto.HaltOutOfGas
}

// callError wraps a failure of a nested call that could not be processed at
// all. It aborts the execution instead of being reported as a halt.
type callError struct {
	err error
}

func (e *callError) Error() string {
	return "nested call failed: " + e.err.Error()
}

func (e *callError) Unwrap() error {
	return e.err
}
