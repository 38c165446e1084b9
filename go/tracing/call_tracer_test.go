// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package tracing

import (
	"testing"

	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	"github.com/holiman/uint256"
)

func callingCode(target rigoletto.Address) []byte {
	code := []byte{
		0x60, 0x00, // PUSH1 0 (return size)
		0x60, 0x00, // PUSH1 0 (return offset)
		0x60, 0x00, // PUSH1 0 (input size)
		0x60, 0x00, // PUSH1 0 (input offset)
		0x60, 0x00, // PUSH1 0 (value)
		0x73, // PUSH20
	}
	code = append(code, target[:]...)
	return append(code,
		0x5a, // GAS
		0xf1, // CALL
		0x00, // STOP
	)
}

func TestCallTracer_RecordsNestedCalls(t *testing.T) {
	revertingCode := []byte{0x60, 0x00, 0x60, 0x00, 0xfd}
	tracer := NewCallTracer(true)
	runTraced(t, tracer.Hooks(), callingCode(contractAddress(1)), revertingCode)

	events := tracer.Events()
	if want, got := 1+9+1+3+1+1, len(events); want != got {
		t.Fatalf("unexpected number of events, wanted %d, got %d", want, got)
	}
	if events[0].Enter == nil || events[len(events)-1].Exit == nil {
		t.Errorf("trace should start with an entry and end with an exit")
	}

	root, err := tracer.Tree()
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}
	if want, got := contractAddress(0), root.Address; want != got {
		t.Errorf("unexpected root address, wanted %v, got %v", want, got)
	}
	if want, got := testSender, root.Sender; want != got {
		t.Errorf("unexpected root sender, wanted %v, got %v", want, got)
	}
	if !root.Success {
		t.Errorf("root call should succeed")
	}
	if want, got := 9, len(root.Steps); want != got {
		t.Errorf("unexpected number of root steps, wanted %d, got %d", want, got)
	}
	if want, got := 1, len(root.Calls); want != got {
		t.Fatalf("unexpected number of nested calls, wanted %d, got %d", want, got)
	}

	nested := root.Calls[0]
	if want, got := contractAddress(1), nested.Address; want != got {
		t.Errorf("unexpected nested address, wanted %v, got %v", want, got)
	}
	if want, got := contractAddress(0), nested.Sender; want != got {
		t.Errorf("unexpected nested sender, wanted %v, got %v", want, got)
	}
	if want, got := 1, nested.Depth; want != got {
		t.Errorf("unexpected depth, wanted %d, got %d", want, got)
	}
	if nested.Success || !nested.Reverted {
		t.Errorf("nested call should revert")
	}
	if want, got := 7, nested.ParentStep; want != got {
		t.Errorf("nested call should be started by CALL, wanted step %d, got %d", want, got)
	}
	if want, got := byte(0xf1), root.Steps[nested.ParentStep].Opcode; want != got {
		t.Errorf("unexpected opcode of parent step, wanted %x, got %x", want, got)
	}
	if want, got := 3, len(nested.Steps); want != got {
		t.Errorf("unexpected number of nested steps, wanted %d, got %d", want, got)
	}
	if top := root.Steps[6].StackTop; top == nil || top.Cmp(contractAddressAsWord(1)) != 0 {
		t.Errorf("unexpected stack top before GAS: %v", top)
	}
}

func contractAddressAsWord(i int) *uint256.Int {
	address := contractAddress(i)
	return new(uint256.Int).SetBytes(address[:])
}

func TestCallTracer_StepsAreOptional(t *testing.T) {
	tracer := NewCallTracer(false)
	runTraced(t, tracer.Hooks(), []byte{0x00})

	if want, got := 2, len(tracer.Events()); want != got {
		t.Fatalf("unexpected number of events, wanted %d, got %d", want, got)
	}
	root, err := tracer.Tree()
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}
	if len(root.Steps) != 0 || len(root.Calls) != 0 {
		t.Errorf("unexpected content of root %+v", root)
	}
}

func TestCallTracer_CreatedContractsAreReportedWithAddress(t *testing.T) {
	created := rigoletto.Address{0xaa}
	tracer := NewCallTracer(false)
	hooks := tracer.Hooks()
	hooks.OnEnter(rigoletto.CallFrame{Kind: rigoletto.Create, Code: rigoletto.Code{0x00}})
	hooks.OnExit(rigoletto.CallFrameResult{Success: true, CreatedAddress: &created})

	root, err := tracer.Tree()
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}
	if want, got := created, root.Address; want != got {
		t.Errorf("unexpected address, wanted %v, got %v", want, got)
	}
}

func TestCallTracer_TreeDetectsMalformedTraces(t *testing.T) {
	enter := func(h *rigoletto.TraceHooks) { h.OnEnter(rigoletto.CallFrame{}) }
	exit := func(h *rigoletto.TraceHooks) { h.OnExit(rigoletto.CallFrameResult{}) }
	step := func(h *rigoletto.TraceHooks) { h.OnOpcode(&rigoletto.OpcodeStep{}) }

	tests := map[string][]func(*rigoletto.TraceHooks){
		"empty":                nil,
		"exit without entry":   {exit},
		"unfinished frame":     {enter, enter, exit},
		"multiple root frames": {enter, exit, enter, exit},
		"step outside frame":   {step},
	}
	for name, events := range tests {
		t.Run(name, func(t *testing.T) {
			tracer := NewCallTracer(true)
			hooks := tracer.Hooks()
			for _, event := range events {
				event(hooks)
			}
			if _, err := tracer.Tree(); err == nil {
				t.Errorf("expected an error")
			}
		})
	}
}

func TestCallTracer_ResetClearsTrace(t *testing.T) {
	tracer := NewCallTracer(false)
	hooks := tracer.Hooks()
	hooks.OnEnter(rigoletto.CallFrame{})
	tracer.Reset()
	if want, got := 0, len(tracer.Events()); want != got {
		t.Errorf("unexpected number of events, wanted %d, got %d", want, got)
	}
}
