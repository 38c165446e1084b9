// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package examples

import (
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/crypto"
)

// maxAnalysisCodeSize is the size of the analysis examples, the EIP-170
// limit of deployed code.
const maxAnalysisCodeSize = 0x6000

// returnWord returns the word at memory offset zero.
var returnWord = []byte{
	byte(vm.PUSH1), 32,
	byte(vm.PUSH1), 0,
	byte(vm.RETURN),
}

// GetSha3Example hashes a zero word as often as requested, feeding each hash
// into the next round, and returns the last byte of the result.
func GetSha3Example() Example {
	code := []byte{
		byte(vm.PUSH1), 4,
		byte(vm.CALLDATALOAD), // counter

		// loop: if counter == 0 goto done
		byte(vm.JUMPDEST),
		byte(vm.DUP1),
		byte(vm.ISZERO),
		byte(vm.PUSH1), 24,
		byte(vm.JUMPI),

		// mem[0] = keccak256(mem[0:32])
		byte(vm.PUSH1), 32,
		byte(vm.PUSH1), 0,
		byte(vm.KECCAK256),
		byte(vm.PUSH1), 0,
		byte(vm.MSTORE),

		// counter--, goto loop
		byte(vm.PUSH1), 1,
		byte(vm.SWAP1),
		byte(vm.SUB),
		byte(vm.PUSH1), 3,
		byte(vm.JUMP),

		// done: mem[0] = mem[0] & 0xff
		byte(vm.JUMPDEST),
		byte(vm.PUSH1), 0,
		byte(vm.MLOAD),
		byte(vm.PUSH1), 0xff,
		byte(vm.AND),
		byte(vm.PUSH1), 0,
		byte(vm.MSTORE),
	}
	return Example{
		Name:      "sha3",
		Code:      append(code, returnWord...),
		reference: repeatedHash,
	}
}

func repeatedHash(rounds int) int {
	hash := make([]byte, 32)
	for i := 0; i < rounds; i++ {
		hash = crypto.Keccak256(hash)
	}
	return int(hash[31])
}

// GetStaticOverheadExample echoes its argument with as few instructions as
// possible while still expanding memory and producing output.
func GetStaticOverheadExample() Example {
	code := []byte{
		byte(vm.PUSH1), 4, // size
		byte(vm.PUSH1), 32, // call data offset
		byte(vm.PUSH1), 28, // memory offset
		byte(vm.CALLDATACOPY),
	}
	return Example{
		Name:      "static_overhead",
		Code:      append(code, returnWord...),
		reference: identity,
	}
}

// analysisCode builds a contract of maximum size echoing its argument. The
// bulk of the code is filler skipped by a jump, so the run time is dominated
// by the jump destination analysis of the filler.
func analysisCode(filler []byte) []byte {
	head := []byte{
		byte(vm.PUSH1), 4,
		byte(vm.CALLDATALOAD),
		byte(vm.PUSH1), 0,
		byte(vm.MSTORE),
		byte(vm.PUSH2), 0, 0, // < target, patched below
		byte(vm.JUMP),
	}
	tail := append([]byte{byte(vm.JUMPDEST)}, returnWord...)

	repetitions := (maxAnalysisCodeSize - len(head) - len(tail)) / len(filler)
	code := make([]byte, 0, maxAnalysisCodeSize)
	code = append(code, head...)
	for i := 0; i < repetitions; i++ {
		code = append(code, filler...)
	}
	target := len(code)
	code[7] = byte(target >> 8)
	code[8] = byte(target)
	return append(code, tail...)
}

func GetJumpdestAnalysisExample() Example {
	return Example{
		Name:      "jumpdest",
		Code:      analysisCode([]byte{byte(vm.JUMPDEST)}),
		reference: identity,
	}
}

func GetStopAnalysisExample() Example {
	return Example{
		Name:      "stop",
		Code:      analysisCode([]byte{byte(vm.STOP)}),
		reference: identity,
	}
}

func GetPush1AnalysisExample() Example {
	return Example{
		Name:      "push1",
		Code:      analysisCode([]byte{byte(vm.PUSH1), 0}),
		reference: identity,
	}
}

func GetPush32AnalysisExample() Example {
	return Example{
		Name:      "push32",
		Code:      analysisCode(append([]byte{byte(vm.PUSH32)}, make([]byte, 32)...)),
		reference: identity,
	}
}
