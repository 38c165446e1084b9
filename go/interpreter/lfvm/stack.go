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
	"fmt"
	"strings"
	"sync"

	"github.com/holiman/uint256"
)

const maxStackSize = 1024

// stack is the 1024-element 256-bit word-wide stack used by the VM. It has a
// fixed size to avoid reallocations during execution. Boundaries are not
// checked. The interpreter checks the stack requirements of every instruction
// before executing it.
//
// Stacks are 32KB each and are reused through a pool:
//
//	s := NewStack()
//	defer ReturnStack(s)
//
// The stack is not thread-safe. NewStack() and ReturnStack() are.
type stack struct {
	data         [maxStackSize]uint256.Int
	stackPointer int
}

func (s *stack) push(d *uint256.Int) {
	s.data[s.stackPointer] = *d
	s.stackPointer++
}

// pushUndefined adds an element with an undefined value and returns a pointer
// to it, to be set by the caller.
func (s *stack) pushUndefined() *uint256.Int {
	s.stackPointer++
	return &s.data[s.stackPointer-1]
}

// pop removes the top element and returns a pointer to it. The pointer is
// valid until the next push.
func (s *stack) pop() *uint256.Int {
	s.stackPointer--
	return &s.data[s.stackPointer]
}

func (s *stack) peek() *uint256.Int {
	return &s.data[s.len()-1]
}

// peekN returns the n-th element from the top; peekN(0) is the top.
func (s *stack) peekN(n int) *uint256.Int {
	return &s.data[s.len()-n-1]
}

func (s *stack) len() int {
	return s.stackPointer
}

// swap exchanges the top element with the n-th element from the top.
func (s *stack) swap(n int) {
	s.data[s.len()-n-1], s.data[s.len()-1] = s.data[s.len()-1], s.data[s.len()-n-1]
}

// dup pushes a copy of the n-th element from the top; dup(0) duplicates the top.
func (s *stack) dup(n int) {
	s.data[s.stackPointer] = s.data[s.stackPointer-n-1]
	s.stackPointer++
}

// get returns the element at the given index, counted from the bottom.
func (s *stack) get(i int) *uint256.Int {
	return &s.data[i]
}

// snapshot copies the stack content, bottom to top.
func (s *stack) snapshot() []uint256.Int {
	res := make([]uint256.Int, s.len())
	copy(res, s.data[:s.len()])
	return res
}

func (s *stack) String() string {
	toHex := func(z *uint256.Int) string {
		b := strings.Builder{}
		b.WriteString("0x")
		bytes := z.Bytes32()
		for i, cur := range bytes {
			b.WriteString(fmt.Sprintf("%02x", cur))
			if (i+1)%8 == 0 && i+1 < len(bytes) {
				b.WriteString(" ")
			}
		}
		return b.String()
	}
	b := strings.Builder{}
	for i := 0; i < s.len(); i++ {
		b.WriteString(fmt.Sprintf("    [%4d] %v\n", s.len()-i-1, toHex(s.peekN(i))))
	}
	return b.String()
}

var stackPool = sync.Pool{
	New: func() any {
		return &stack{}
	},
}

// NewStack obtains an empty stack from the pool.
func NewStack() *stack {
	return stackPool.Get().(*stack)
}

// ReturnStack puts a stack back into the pool. A stack may only be returned
// once.
func ReturnStack(s *stack) {
	s.stackPointer = 0
	stackPool.Put(s)
}

// checkStackLimits verifies that op can be executed with the given stack size.
func checkStackLimits(stackLen int, op OpCode) error {
	info := &opCodeInfos[op]
	if stackLen < info.pops {
		return errStackUnderflow
	}
	if stackLen-info.pops+info.pushes > maxStackSize {
		return errStackOverflow
	}
	return nil
}
