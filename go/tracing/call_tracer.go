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
	"fmt"

	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	"github.com/holiman/uint256"
)

// Step is an instruction executed within a call frame.
type Step struct {
	Depth    int          `json:"depth"`
	Pc       uint64       `json:"pc"`
	Opcode   byte         `json:"opcode"`
	StackTop *uint256.Int `json:"stackTop,omitempty"`
}

// Event is an element of the flat call trace. Exactly one field is set.
type Event struct {
	Enter *rigoletto.CallFrame
	Exit  *rigoletto.CallFrameResult
	Step  *Step
}

// CallTracer records the entry and exit of every call frame, optionally
// together with the instructions executed in the frames.
type CallTracer struct {
	withSteps bool
	events    []Event
}

func NewCallTracer(withSteps bool) *CallTracer {
	return &CallTracer{withSteps: withSteps}
}

// Hooks returns the trace hooks feeding this tracer.
func (t *CallTracer) Hooks() *rigoletto.TraceHooks {
	hooks := &rigoletto.TraceHooks{
		OnEnter: func(frame rigoletto.CallFrame) {
			t.events = append(t.events, Event{Enter: &frame})
		},
		OnExit: func(result rigoletto.CallFrameResult) {
			t.events = append(t.events, Event{Exit: &result})
		},
	}
	if t.withSteps {
		hooks.OnOpcode = func(step *rigoletto.OpcodeStep) {
			var top *uint256.Int
			if step.StackTop != nil {
				top = new(uint256.Int).Set(step.StackTop)
			}
			t.events = append(t.events, Event{Step: &Step{
				Depth:    step.Depth,
				Pc:       step.Pc,
				Opcode:   step.Op,
				StackTop: top,
			}})
		}
	}
	return hooks
}

// Events returns the flat trace in the order the events occurred.
func (t *CallTracer) Events() []Event {
	return t.events
}

// CallNode is a call frame of a call tree.
type CallNode struct {
	Kind           rigoletto.CallKind `json:"kind"`
	Depth          int                `json:"depth"`
	Sender         rigoletto.Address  `json:"sender"`
	Address        rigoletto.Address  `json:"address"`
	CodeAddress    rigoletto.Address  `json:"codeAddress"`
	Code           rigoletto.Code     `json:"code"`
	Input          rigoletto.Data     `json:"input"`
	Value          rigoletto.Value    `json:"value"`
	Gas            rigoletto.Gas      `json:"gas"`
	GasUsed        rigoletto.Gas      `json:"gasUsed"`
	Output         rigoletto.Data     `json:"output"`
	Success        bool               `json:"success"`
	Reverted       bool               `json:"reverted,omitempty"`
	Halt           string             `json:"halt,omitempty"`
	CreatedAddress *rigoletto.Address `json:"createdAddress,omitempty"`
	Steps          []Step             `json:"steps,omitempty"`
	Calls          []*CallNode        `json:"calls,omitempty"`
	// ParentStep is the index of the step of the parent frame starting
	// this call, -1 for the root or if steps are not recorded.
	ParentStep int `json:"parentStep"`
}

// Tree rebuilds the recorded events into a call tree.
func (t *CallTracer) Tree() (*CallNode, error) {
	return BuildTree(t.events)
}

// BuildTree rebuilds a flat trace into a call tree. The trace must consist
// of exactly one completed top level frame.
func BuildTree(events []Event) (*CallNode, error) {
	var root *CallNode
	var stack []*CallNode
	for i, event := range events {
		switch {
		case event.Enter != nil:
			if root != nil && len(stack) == 0 {
				return nil, fmt.Errorf("event %d: multiple top level frames", i)
			}
			node := newCallNode(event.Enter)
			if len(stack) == 0 {
				root = node
			} else {
				parent := stack[len(stack)-1]
				node.ParentStep = len(parent.Steps) - 1
				parent.Calls = append(parent.Calls, node)
			}
			stack = append(stack, node)
		case event.Exit != nil:
			if len(stack) == 0 {
				return nil, fmt.Errorf("event %d: exit without matching entry", i)
			}
			stack[len(stack)-1].complete(event.Exit)
			stack = stack[:len(stack)-1]
		case event.Step != nil:
			if len(stack) == 0 {
				return nil, fmt.Errorf("event %d: step outside of a call frame", i)
			}
			current := stack[len(stack)-1]
			current.Steps = append(current.Steps, *event.Step)
		}
	}
	if root == nil {
		return nil, fmt.Errorf("empty call trace")
	}
	if len(stack) != 0 {
		return nil, fmt.Errorf("%d call frames not completed", len(stack))
	}
	return root, nil
}

// Reset clears the recorded trace.
func (t *CallTracer) Reset() {
	t.events = nil
}

func newCallNode(frame *rigoletto.CallFrame) *CallNode {
	return &CallNode{
		Kind:        frame.Kind,
		Depth:       frame.Depth,
		Sender:      frame.Sender,
		Address:     frame.Recipient,
		CodeAddress: frame.CodeAddress,
		Code:        frame.Code,
		Input:       frame.Input,
		Value:       frame.Value,
		Gas:         frame.Gas,
		ParentStep:  -1,
	}
}

func (n *CallNode) complete(result *rigoletto.CallFrameResult) {
	n.GasUsed = result.GasUsed
	n.Output = result.Output
	n.Success = result.Success
	n.Reverted = result.Reverted
	if result.Halt != rigoletto.HaltNone {
		n.Halt = result.Halt.String()
	}
	n.CreatedAddress = result.CreatedAddress
	if result.CreatedAddress != nil {
		n.Address = *result.CreatedAddress
	}
}
