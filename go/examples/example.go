// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package examples provides contracts computing functions of a single
// integer, each with a Go reference implementation. They are used to check
// and benchmark the execution engine end to end.
package examples

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/Fantom-foundation/Rigoletto/go/chain"
	"github.com/Fantom-foundation/Rigoletto/go/engine"
	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	"github.com/Fantom-foundation/Rigoletto/go/state"
	"github.com/Fantom-foundation/Rigoletto/go/transaction"
)

// Example is a contract with an entry point of signature (uint32)->uint32.
type Example struct {
	Name      string
	Code      rigoletto.Code
	selector  uint32 // < ignored by hand written contracts
	reference func(int) int
}

type Result struct {
	Result  int
	UsedGas uint64
}

// All lists the available examples.
func All() []Example {
	return []Example{
		GetArithmeticExample(),
		GetGasBurnerExample(),
		GetSha3Example(),
		GetStaticOverheadExample(),
		GetJumpdestAnalysisExample(),
		GetStopAnalysisExample(),
		GetPush1AnalysisExample(),
		GetPush32AnalysisExample(),
	}
}

// ByName returns the example with the given name.
func ByName(name string) (Example, bool) {
	for _, example := range All() {
		if example.Name == name {
			return example, true
		}
	}
	return Example{}, false
}

// Deploy installs the code of the example at the given address.
func (e *Example) Deploy(s *state.State, address rigoletto.Address) {
	s.Put(address, state.Account{Code: rigoletto.NewBytecode(e.Code)})
}

// Request creates a call of the example deployed at the given address.
func (e *Example) Request(from, to rigoletto.Address, argument int) *transaction.Request {
	return &transaction.Request{
		From:  from,
		To:    &to,
		Input: encodeArgument(e.selector, argument),
	}
}

// RunOn calls the example deployed at the given address as a guaranteed dry
// run on top of the given state.
func (e *Example) RunOn(
	ctx context.Context,
	eng *engine.Engine,
	blockchain *chain.Blockchain,
	s *state.State,
	address rigoletto.Address,
	argument int,
) (Result, error) {
	res, err := eng.GuaranteedDryRun(ctx, blockchain, s, e.Request(rigoletto.Address{}, address, argument), engine.BlockConfig{}, false)
	if err != nil {
		return Result{}, err
	}
	if !rigoletto.IsSuccess(res.Result) {
		return Result{}, fmt.Errorf("example %s did not succeed: %T", e.Name, res.Result)
	}
	result, err := decodeOutput(res.Result.ReturnData())
	if err != nil {
		return Result{}, err
	}
	return Result{Result: result, UsedGas: res.Result.UsedGas()}, nil
}

// RunReference computes the expected result of the example.
func (e *Example) RunReference(argument int) int {
	return e.reference(argument)
}

// encodeArgument produces the ABI encoding of a call with a single uint32
// argument.
func encodeArgument(selector uint32, argument int) rigoletto.Data {
	data := make(rigoletto.Data, 4+32)
	binary.BigEndian.PutUint32(data[0:], selector)
	binary.BigEndian.PutUint32(data[4+28:], uint32(argument))
	return data
}

func decodeOutput(output rigoletto.Data) (int, error) {
	if len(output) != 32 {
		return 0, fmt.Errorf("unexpected output length, wanted 32, got %d", len(output))
	}
	return int(binary.BigEndian.Uint32(output[28:])), nil
}
