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

	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
)

// OpCode is a single byte EVM instruction.
type OpCode byte

const (
	STOP           OpCode = 0x00
	ADD            OpCode = 0x01
	MUL            OpCode = 0x02
	SUB            OpCode = 0x03
	DIV            OpCode = 0x04
	SDIV           OpCode = 0x05
	MOD            OpCode = 0x06
	SMOD           OpCode = 0x07
	ADDMOD         OpCode = 0x08
	MULMOD         OpCode = 0x09
	EXP            OpCode = 0x0A
	SIGNEXTEND     OpCode = 0x0B
	LT             OpCode = 0x10
	GT             OpCode = 0x11
	SLT            OpCode = 0x12
	SGT            OpCode = 0x13
	EQ             OpCode = 0x14
	ISZERO         OpCode = 0x15
	AND            OpCode = 0x16
	OR             OpCode = 0x17
	XOR            OpCode = 0x18
	NOT            OpCode = 0x19
	BYTE           OpCode = 0x1A
	SHL            OpCode = 0x1B
	SHR            OpCode = 0x1C
	SAR            OpCode = 0x1D
	SHA3           OpCode = 0x20
	ADDRESS        OpCode = 0x30
	BALANCE        OpCode = 0x31
	ORIGIN         OpCode = 0x32
	CALLER         OpCode = 0x33
	CALLVALUE      OpCode = 0x34
	CALLDATALOAD   OpCode = 0x35
	CALLDATASIZE   OpCode = 0x36
	CALLDATACOPY   OpCode = 0x37
	CODESIZE       OpCode = 0x38
	CODECOPY       OpCode = 0x39
	GASPRICE       OpCode = 0x3A
	EXTCODESIZE    OpCode = 0x3B
	EXTCODECOPY    OpCode = 0x3C
	RETURNDATASIZE OpCode = 0x3D
	RETURNDATACOPY OpCode = 0x3E
	EXTCODEHASH    OpCode = 0x3F
	BLOCKHASH      OpCode = 0x40
	COINBASE       OpCode = 0x41
	TIMESTAMP      OpCode = 0x42
	NUMBER         OpCode = 0x43
	PREVRANDAO     OpCode = 0x44 // < DIFFICULTY before the Merge
	GASLIMIT       OpCode = 0x45
	CHAINID        OpCode = 0x46
	SELFBALANCE    OpCode = 0x47
	BASEFEE        OpCode = 0x48
	BLOBHASH       OpCode = 0x49
	BLOBBASEFEE    OpCode = 0x4A
	POP            OpCode = 0x50
	MLOAD          OpCode = 0x51
	MSTORE         OpCode = 0x52
	MSTORE8        OpCode = 0x53
	SLOAD          OpCode = 0x54
	SSTORE         OpCode = 0x55
	JUMP           OpCode = 0x56
	JUMPI          OpCode = 0x57
	PC             OpCode = 0x58
	MSIZE          OpCode = 0x59
	GAS            OpCode = 0x5A
	JUMPDEST       OpCode = 0x5B
	TLOAD          OpCode = 0x5C
	TSTORE         OpCode = 0x5D
	MCOPY          OpCode = 0x5E
	PUSH0          OpCode = 0x5F
	PUSH1          OpCode = 0x60
	PUSH2          OpCode = 0x61
	PUSH3          OpCode = 0x62
	PUSH4          OpCode = 0x63
	PUSH5          OpCode = 0x64
	PUSH6          OpCode = 0x65
	PUSH7          OpCode = 0x66
	PUSH8          OpCode = 0x67
	PUSH9          OpCode = 0x68
	PUSH10         OpCode = 0x69
	PUSH11         OpCode = 0x6A
	PUSH12         OpCode = 0x6B
	PUSH13         OpCode = 0x6C
	PUSH14         OpCode = 0x6D
	PUSH15         OpCode = 0x6E
	PUSH16         OpCode = 0x6F
	PUSH17         OpCode = 0x70
	PUSH18         OpCode = 0x71
	PUSH19         OpCode = 0x72
	PUSH20         OpCode = 0x73
	PUSH21         OpCode = 0x74
	PUSH22         OpCode = 0x75
	PUSH23         OpCode = 0x76
	PUSH24         OpCode = 0x77
	PUSH25         OpCode = 0x78
	PUSH26         OpCode = 0x79
	PUSH27         OpCode = 0x7A
	PUSH28         OpCode = 0x7B
	PUSH29         OpCode = 0x7C
	PUSH30         OpCode = 0x7D
	PUSH31         OpCode = 0x7E
	PUSH32         OpCode = 0x7F
	DUP1           OpCode = 0x80
	DUP16          OpCode = 0x8F
	SWAP1          OpCode = 0x90
	SWAP16         OpCode = 0x9F
	LOG0           OpCode = 0xA0
	LOG1           OpCode = 0xA1
	LOG2           OpCode = 0xA2
	LOG3           OpCode = 0xA3
	LOG4           OpCode = 0xA4
	CREATE         OpCode = 0xF0
	CALL           OpCode = 0xF1
	CALLCODE       OpCode = 0xF2
	RETURN         OpCode = 0xF3
	DELEGATECALL   OpCode = 0xF4
	CREATE2        OpCode = 0xF5
	STATICCALL     OpCode = 0xFA
	REVERT         OpCode = 0xFD
	INVALID        OpCode = 0xFE
	SELFDESTRUCT   OpCode = 0xFF
)

// opCodeInfo summarizes the static properties of an instruction.
type opCodeInfo struct {
	name   string
	pops   int
	pushes int
	since  rigoletto.Revision // < first revision the instruction is available in
}

var opCodeInfos = [256]opCodeInfo{}

func init() {
	def := func(op OpCode, name string, pops, pushes int, since rigoletto.Revision) {
		opCodeInfos[op] = opCodeInfo{name: name, pops: pops, pushes: pushes, since: since}
	}
	f := rigoletto.Frontier

	def(STOP, "STOP", 0, 0, f)
	def(ADD, "ADD", 2, 1, f)
	def(MUL, "MUL", 2, 1, f)
	def(SUB, "SUB", 2, 1, f)
	def(DIV, "DIV", 2, 1, f)
	def(SDIV, "SDIV", 2, 1, f)
	def(MOD, "MOD", 2, 1, f)
	def(SMOD, "SMOD", 2, 1, f)
	def(ADDMOD, "ADDMOD", 3, 1, f)
	def(MULMOD, "MULMOD", 3, 1, f)
	def(EXP, "EXP", 2, 1, f)
	def(SIGNEXTEND, "SIGNEXTEND", 2, 1, f)
	def(LT, "LT", 2, 1, f)
	def(GT, "GT", 2, 1, f)
	def(SLT, "SLT", 2, 1, f)
	def(SGT, "SGT", 2, 1, f)
	def(EQ, "EQ", 2, 1, f)
	def(ISZERO, "ISZERO", 1, 1, f)
	def(AND, "AND", 2, 1, f)
	def(OR, "OR", 2, 1, f)
	def(XOR, "XOR", 2, 1, f)
	def(NOT, "NOT", 1, 1, f)
	def(BYTE, "BYTE", 2, 1, f)
	def(SHL, "SHL", 2, 1, rigoletto.Constantinople)
	def(SHR, "SHR", 2, 1, rigoletto.Constantinople)
	def(SAR, "SAR", 2, 1, rigoletto.Constantinople)
	def(SHA3, "KECCAK256", 2, 1, f)
	def(ADDRESS, "ADDRESS", 0, 1, f)
	def(BALANCE, "BALANCE", 1, 1, f)
	def(ORIGIN, "ORIGIN", 0, 1, f)
	def(CALLER, "CALLER", 0, 1, f)
	def(CALLVALUE, "CALLVALUE", 0, 1, f)
	def(CALLDATALOAD, "CALLDATALOAD", 1, 1, f)
	def(CALLDATASIZE, "CALLDATASIZE", 0, 1, f)
	def(CALLDATACOPY, "CALLDATACOPY", 3, 0, f)
	def(CODESIZE, "CODESIZE", 0, 1, f)
	def(CODECOPY, "CODECOPY", 3, 0, f)
	def(GASPRICE, "GASPRICE", 0, 1, f)
	def(EXTCODESIZE, "EXTCODESIZE", 1, 1, f)
	def(EXTCODECOPY, "EXTCODECOPY", 4, 0, f)
	def(RETURNDATASIZE, "RETURNDATASIZE", 0, 1, rigoletto.Byzantium)
	def(RETURNDATACOPY, "RETURNDATACOPY", 3, 0, rigoletto.Byzantium)
	def(EXTCODEHASH, "EXTCODEHASH", 1, 1, rigoletto.Constantinople)
	def(BLOCKHASH, "BLOCKHASH", 1, 1, f)
	def(COINBASE, "COINBASE", 0, 1, f)
	def(TIMESTAMP, "TIMESTAMP", 0, 1, f)
	def(NUMBER, "NUMBER", 0, 1, f)
	def(PREVRANDAO, "PREVRANDAO", 0, 1, f)
	def(GASLIMIT, "GASLIMIT", 0, 1, f)
	def(CHAINID, "CHAINID", 0, 1, rigoletto.Istanbul)
	def(SELFBALANCE, "SELFBALANCE", 0, 1, rigoletto.Istanbul)
	def(BASEFEE, "BASEFEE", 0, 1, rigoletto.London)
	def(BLOBHASH, "BLOBHASH", 1, 1, rigoletto.Cancun)
	def(BLOBBASEFEE, "BLOBBASEFEE", 0, 1, rigoletto.Cancun)
	def(POP, "POP", 1, 0, f)
	def(MLOAD, "MLOAD", 1, 1, f)
	def(MSTORE, "MSTORE", 2, 0, f)
	def(MSTORE8, "MSTORE8", 2, 0, f)
	def(SLOAD, "SLOAD", 1, 1, f)
	def(SSTORE, "SSTORE", 2, 0, f)
	def(JUMP, "JUMP", 1, 0, f)
	def(JUMPI, "JUMPI", 2, 0, f)
	def(PC, "PC", 0, 1, f)
	def(MSIZE, "MSIZE", 0, 1, f)
	def(GAS, "GAS", 0, 1, f)
	def(JUMPDEST, "JUMPDEST", 0, 0, f)
	def(TLOAD, "TLOAD", 1, 1, rigoletto.Cancun)
	def(TSTORE, "TSTORE", 2, 0, rigoletto.Cancun)
	def(MCOPY, "MCOPY", 3, 0, rigoletto.Cancun)
	def(PUSH0, "PUSH0", 0, 1, rigoletto.Shanghai)
	for i := 1; i <= 32; i++ {
		def(PUSH1+OpCode(i-1), fmt.Sprintf("PUSH%d", i), 0, 1, f)
	}
	for i := 1; i <= 16; i++ {
		def(DUP1+OpCode(i-1), fmt.Sprintf("DUP%d", i), i, i+1, f)
		def(SWAP1+OpCode(i-1), fmt.Sprintf("SWAP%d", i), i+1, i+1, f)
	}
	for i := 0; i <= 4; i++ {
		def(LOG0+OpCode(i), fmt.Sprintf("LOG%d", i), i+2, 0, f)
	}
	def(CREATE, "CREATE", 3, 1, f)
	def(CALL, "CALL", 7, 1, f)
	def(CALLCODE, "CALLCODE", 7, 1, f)
	def(RETURN, "RETURN", 2, 0, f)
	def(DELEGATECALL, "DELEGATECALL", 6, 1, rigoletto.Homestead)
	def(CREATE2, "CREATE2", 4, 1, rigoletto.Constantinople)
	def(STATICCALL, "STATICCALL", 6, 1, rigoletto.Byzantium)
	def(REVERT, "REVERT", 2, 0, rigoletto.Byzantium)
	def(INVALID, "INVALID", 0, 0, f)
	def(SELFDESTRUCT, "SELFDESTRUCT", 1, 0, f)
}

func (op OpCode) String() string {
	if name := opCodeInfos[op].name; name != "" {
		return name
	}
	return fmt.Sprintf("0x%02x", byte(op))
}

// isDefined reports whether op is an instruction of any revision. INVALID is
// a defined instruction that always halts.
func (op OpCode) isDefined() bool {
	return opCodeInfos[op].name != ""
}

// isAvailable reports whether op may be executed in the given revision.
func (op OpCode) isAvailable(revision rigoletto.Revision) bool {
	info := &opCodeInfos[op]
	return info.name != "" && revision >= info.since
}

// pushSize returns the number of immediate bytes following a PUSH instruction.
func (op OpCode) pushSize() int {
	if PUSH1 <= op && op <= PUSH32 {
		return int(op-PUSH1) + 1
	}
	return 0
}

// Width is the number of code bytes occupied by the instruction.
func (op OpCode) Width() int {
	return op.pushSize() + 1
}
