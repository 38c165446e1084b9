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
	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
)

const (
	CallNewAccountGas    rigoletto.Gas = 25000 // Paid for CALL when the destination address didn't exist prior.
	CallValueTransferGas rigoletto.Gas = 9000  // Paid for CALL when the value transfer is non-zero.
	CallStipend          rigoletto.Gas = 2300  // Free gas given at beginning of call.

	ColdSloadCostEIP2929         rigoletto.Gas = 2100
	ColdAccountAccessCostEIP2929 rigoletto.Gas = 2600
	WarmStorageReadCostEIP2929   rigoletto.Gas = 100

	CreateBySelfdestructGas rigoletto.Gas = 25000
	SelfdestructGasEIP150   rigoletto.Gas = 5000
	SelfdestructRefundGas   rigoletto.Gas = 24000

	SstoreSetGas           rigoletto.Gas = 20000 // from zero to non-zero
	SstoreResetGas         rigoletto.Gas = 5000  // from non-zero to anything else
	SstoreClearRefund      rigoletto.Gas = 15000
	SstoreSentryGasEIP2200 rigoletto.Gas = 2300 // minimum gas required for SSTORE since Istanbul, not consumed

	// SstoreClearsScheduleRefundEIP3529 is SSTORE_RESET_GAS - COLD_SLOAD_COST
	// + ACCESS_LIST_STORAGE_KEY_COST = 5000 - 2100 + 1900.
	SstoreClearsScheduleRefundEIP3529 rigoletto.Gas = 4800

	InitCodeWordGas  rigoletto.Gas = 2
	CopyGas          rigoletto.Gas = 3
	Keccak256WordGas rigoletto.Gas = 6
	LogDataGas       rigoletto.Gas = 8

	MaxCodeSize     = 24576
	MaxInitCodeSize = 2 * MaxCodeSize
)

// staticGasPrices holds the gas charged for every instruction before its
// execution, per revision.
var staticGasPrices [rigoletto.Latest][256]rigoletto.Gas

func init() {
	for revision := rigoletto.Frontier; revision < rigoletto.Latest; revision++ {
		for op := 0; op < 256; op++ {
			staticGasPrices[revision][op] = getStaticGasPriceInternal(OpCode(op), revision)
		}
	}
}

func getStaticGasPrices(revision rigoletto.Revision) *[256]rigoletto.Gas {
	return &staticGasPrices[revision]
}

func getStaticGasPriceInternal(op OpCode, revision rigoletto.Revision) rigoletto.Gas {
	if PUSH1 <= op && op <= PUSH32 {
		return 3
	}
	if DUP1 <= op && op <= DUP16 {
		return 3
	}
	if SWAP1 <= op && op <= SWAP16 {
		return 3
	}
	if LT <= op && op <= SAR {
		return 3
	}
	if LOG0 <= op && op <= LOG4 {
		return 375 * rigoletto.Gas(op-LOG0+1)
	}
	// EIP-2929 moves the account and slot access costs into dynamic costs.
	berlin := revision >= rigoletto.Berlin
	switch op {
	case STOP, RETURN, REVERT, INVALID, SSTORE:
		return 0
	case ADD, SUB, CALLDATALOAD, CALLDATACOPY, CODECOPY, RETURNDATACOPY,
		MLOAD, MSTORE, MSTORE8, MCOPY, BLOBHASH:
		return 3
	case MUL, DIV, SDIV, MOD, SMOD, SIGNEXTEND, SELFBALANCE:
		return 5
	case ADDMOD, MULMOD, JUMP:
		return 8
	case EXP, JUMPI:
		return 10
	case SHA3:
		return 30
	case BLOCKHASH:
		return 20
	case JUMPDEST:
		return 1
	case TLOAD, TSTORE:
		return 100
	case CREATE, CREATE2:
		return 32000
	case ADDRESS, ORIGIN, CALLER, CALLVALUE, CALLDATASIZE, CODESIZE, GASPRICE,
		RETURNDATASIZE, COINBASE, TIMESTAMP, NUMBER, PREVRANDAO, GASLIMIT,
		CHAINID, BASEFEE, BLOBBASEFEE, POP, PC, MSIZE, GAS, PUSH0:
		return 2
	case BALANCE:
		switch {
		case berlin:
			return 0
		case revision >= rigoletto.Istanbul:
			return 700
		case revision >= rigoletto.Tangerine:
			return 400
		}
		return 20
	case EXTCODEHASH:
		switch {
		case berlin:
			return 0
		case revision >= rigoletto.Istanbul:
			return 700
		}
		return 400
	case EXTCODESIZE, EXTCODECOPY:
		switch {
		case berlin:
			return 0
		case revision >= rigoletto.Tangerine:
			return 700
		}
		return 20
	case SLOAD:
		switch {
		case berlin:
			return 0
		case revision >= rigoletto.Istanbul:
			return 800
		case revision >= rigoletto.Tangerine:
			return 200
		}
		return 50
	case CALL, CALLCODE, DELEGATECALL, STATICCALL:
		switch {
		case berlin:
			return 0
		case revision >= rigoletto.Tangerine:
			return 700
		}
		return 40
	case SELFDESTRUCT:
		if revision >= rigoletto.Tangerine {
			return SelfdestructGasEIP150
		}
		return 0
	}
	return 0
}

// getAccessCost is the EIP-2929 cost of an account access.
func getAccessCost(accessStatus rigoletto.AccessStatus) rigoletto.Gas {
	if accessStatus == rigoletto.ColdAccess {
		return ColdAccountAccessCostEIP2929
	}
	return WarmStorageReadCostEIP2929
}

// expByteGas is the cost per byte of the exponent of EXP (EIP-160).
func expByteGas(revision rigoletto.Revision) rigoletto.Gas {
	if revision >= rigoletto.SpuriousDragon {
		return 50
	}
	return 10
}

// sstoreCosts defines the gas prices of SSTORE under net gas metering.
type sstoreCosts struct {
	read        rigoletto.Gas // < charged for no-ops and dirty slots
	set         rigoletto.Gas
	reset       rigoletto.Gas
	clearRefund rigoletto.Gas
}

func getSstoreCosts(revision rigoletto.Revision) sstoreCosts {
	switch {
	case revision >= rigoletto.London:
		return sstoreCosts{WarmStorageReadCostEIP2929, SstoreSetGas, SstoreResetGas - ColdSloadCostEIP2929, SstoreClearsScheduleRefundEIP3529}
	case revision >= rigoletto.Berlin:
		return sstoreCosts{WarmStorageReadCostEIP2929, SstoreSetGas, SstoreResetGas - ColdSloadCostEIP2929, SstoreClearRefund}
	case revision >= rigoletto.Istanbul:
		return sstoreCosts{800, SstoreSetGas, SstoreResetGas, SstoreClearRefund}
	}
	// EIP-1283 in Constantinople
	return sstoreCosts{200, SstoreSetGas, SstoreResetGas, SstoreClearRefund}
}

// usesNetGasMetering reports whether SSTORE costs depend on the original
// value of a slot. EIP-1283 was active in Constantinople only and was
// reintroduced as EIP-2200 in Istanbul.
func usesNetGasMetering(revision rigoletto.Revision) bool {
	return revision == rigoletto.Constantinople || revision >= rigoletto.Istanbul
}

// getDynamicCostsForSstore returns the gas charged for an update of the given
// classification, without EIP-2929 cold access costs.
func getDynamicCostsForSstore(revision rigoletto.Revision, status rigoletto.StorageStatus) rigoletto.Gas {
	if !usesNetGasMetering(revision) {
		switch status {
		case rigoletto.StorageAdded, rigoletto.StorageDeletedAdded, rigoletto.StorageDeletedRestored:
			return SstoreSetGas
		}
		return SstoreResetGas
	}
	costs := getSstoreCosts(revision)
	switch status {
	case rigoletto.StorageAdded:
		return costs.set
	case rigoletto.StorageModified, rigoletto.StorageDeleted:
		return costs.reset
	}
	return costs.read
}

// getRefundForSstore returns the refund granted, or revoked if negative, for
// an update of the given classification.
func getRefundForSstore(revision rigoletto.Revision, status rigoletto.StorageStatus) rigoletto.Gas {
	if !usesNetGasMetering(revision) {
		switch status {
		case rigoletto.StorageDeleted, rigoletto.StorageModifiedDeleted, rigoletto.StorageAddedDeleted:
			return SstoreClearRefund
		}
		return 0
	}
	costs := getSstoreCosts(revision)
	switch status {
	case rigoletto.StorageDeleted, rigoletto.StorageModifiedDeleted:
		return costs.clearRefund
	case rigoletto.StorageDeletedAdded:
		return -costs.clearRefund
	case rigoletto.StorageDeletedRestored:
		return costs.reset - costs.read - costs.clearRefund
	case rigoletto.StorageAddedDeleted:
		return costs.set - costs.read
	case rigoletto.StorageModifiedRestored:
		return costs.reset - costs.read
	}
	return 0
}

// selfDestructNewAccountCost is charged when SELFDESTRUCT sends a balance to
// an account that has to be created (EIP-150, refined by EIP-161).
func selfDestructNewAccountCost(revision rigoletto.Revision, beneficiaryIsNew bool, balance rigoletto.Value) rigoletto.Gas {
	if revision < rigoletto.Tangerine || !beneficiaryIsNew {
		return 0
	}
	if revision >= rigoletto.SpuriousDragon && balance == (rigoletto.Value{}) {
		return 0
	}
	return CreateBySelfdestructGas
}

// selfDestructRefund is granted for the first destruction of an account in a
// transaction until London (EIP-3529).
func selfDestructRefund(destructed bool, revision rigoletto.Revision) rigoletto.Gas {
	if destructed && revision < rigoletto.London {
		return SelfdestructRefundGas
	}
	return 0
}

// computeCodeSizeCost returns the EIP-3860 cost of an init code or an error if
// it is too large.
func computeCodeSizeCost(size uint64) (rigoletto.Gas, error) {
	if size > MaxInitCodeSize {
		return 0, errInitCodeTooLarge
	}
	return InitCodeWordGas * rigoletto.Gas(rigoletto.SizeInWords(size)), nil
}
