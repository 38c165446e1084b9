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
	"strings"
	"testing"
)

func TestExecutionResult_VariantsAreDistinguishable(t *testing.T) {
	address := Address{1}
	results := []ExecutionResult{
		&Success{Reason: SuccessReturn, GasUsed: 21000, Output: &CallOutput{Data: Data{1}}},
		&Success{Reason: SuccessStop, GasUsed: 53000, Output: &CreateOutput{Address: &address}},
		&Revert{GasUsed: 30000, Output: Data{2}},
		&Halt{Reason: HaltOutOfGas, GasUsed: 100000},
	}
	var successes, reverts, halts int
	for _, result := range results {
		switch result.(type) {
		case *Success:
			successes++
		case *Revert:
			reverts++
		case *Halt:
			halts++
		}
	}
	if successes != 2 || reverts != 1 || halts != 1 {
		t.Errorf("unexpected classification: %d/%d/%d", successes, reverts, halts)
	}
	if want, got := uint64(100000), results[3].UsedGas(); want != got {
		t.Errorf("wanted %v, got %v", want, got)
	}
	if results[3].ReturnData() != nil {
		t.Errorf("halts have no return data")
	}
	if want, got := byte(2), results[2].ReturnData()[0]; want != got {
		t.Errorf("wanted %v, got %v", want, got)
	}
}

func TestExecutionResult_JSONContainsVariantType(t *testing.T) {
	tests := map[string]ExecutionResult{
		`"type":"success"`:                  &Success{Output: &CallOutput{}},
		`"type":"revert"`:                   &Revert{},
		`"reason":"InvalidJump"`:            &Halt{Reason: HaltInvalidJump},
		`"address":"0x01000000000000000000`: &Success{Output: &CreateOutput{Address: &Address{1}}},
	}
	for want, result := range tests {
		encoded, err := json.Marshal(result)
		if err != nil {
			t.Fatalf("failed to encode: %v", err)
		}
		if !strings.Contains(string(encoded), want) {
			t.Errorf("encoding %s does not contain %s", encoded, want)
		}
	}
}

func TestExceptionalHalt_String(t *testing.T) {
	if want, got := "CreateContractStartingWithEF", HaltCreateContractStartingWithEF.String(); want != got {
		t.Errorf("wanted %v, got %v", want, got)
	}
}
