// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package transaction

import (
	"math"

	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
)

const (
	TxGas                     = 21_000
	TxGasContractCreation     = 53_000
	TxDataZeroGas             = 4
	TxDataNonZeroGasFrontier  = 68
	TxDataNonZeroGasIstanbul  = 16
	TxAccessListAddressGas    = 2400
	TxAccessListStorageKeyGas = 1900
	InitCodeWordGas           = 2

	MaxCodeSize     = 24_576
	MaxInitCodeSize = 2 * MaxCodeSize

	BlobGasPerBlob = 1 << 17
)

// IntrinsicGas computes the gas charged before the first instruction of a
// transaction is executed.
func IntrinsicGas(tx *Signed, revision rigoletto.Revision) (uint64, error) {
	return intrinsicGas(tx.Input(), tx.AccessList(), tx.IsCreate(), revision)
}

func intrinsicGas(input []byte, accessList AccessList, isCreate bool, revision rigoletto.Revision) (uint64, error) {
	var gas uint64 = TxGas
	if isCreate && revision.IsAtLeast(rigoletto.Homestead) {
		gas = TxGasContractCreation
	}

	if len(input) > 0 {
		var nonZero uint64
		for _, b := range input {
			if b != 0 {
				nonZero++
			}
		}
		zero := uint64(len(input)) - nonZero

		nonZeroGas := uint64(TxDataNonZeroGasFrontier)
		if revision.IsAtLeast(rigoletto.Istanbul) {
			nonZeroGas = TxDataNonZeroGasIstanbul
		}
		if (math.MaxUint64-gas)/nonZeroGas < nonZero {
			return 0, rigoletto.ErrGasUintOverflow
		}
		gas += nonZero * nonZeroGas
		if (math.MaxUint64-gas)/TxDataZeroGas < zero {
			return 0, rigoletto.ErrGasUintOverflow
		}
		gas += zero * TxDataZeroGas

		if isCreate && revision.IsAtLeast(rigoletto.Shanghai) {
			words := rigoletto.SizeInWords(uint64(len(input)))
			if (math.MaxUint64-gas)/InitCodeWordGas < words {
				return 0, rigoletto.ErrGasUintOverflow
			}
			gas += words * InitCodeWordGas
		}
	}

	gas += uint64(len(accessList)) * TxAccessListAddressGas
	gas += uint64(accessList.StorageKeys()) * TxAccessListStorageKeyGas
	return gas, nil
}

// EffectiveGasPrice is the price per gas paid by the sender. For fee market
// transactions it is the base fee plus the tip, capped by the fee cap. A nil
// base fee stands for blocks before London.
func EffectiveGasPrice(tx *Signed, baseFee *rigoletto.Value) rigoletto.Value {
	if !tx.IsFeeMarket() || baseFee == nil {
		return tx.GasPrice()
	}
	price, overflow := rigoletto.AddOverflow(*baseFee, tx.MaxPriorityFeePerGas())
	if overflow {
		return tx.MaxFeePerGas()
	}
	return rigoletto.Min(price, tx.MaxFeePerGas())
}

// EffectiveMinerFee is the price per gas received by the block beneficiary,
// zero if the transaction cannot pay the base fee.
func EffectiveMinerFee(tx *Signed, baseFee *rigoletto.Value) rigoletto.Value {
	if baseFee == nil {
		return tx.GasPrice()
	}
	if tx.MaxFeePerGas().Cmp(*baseFee) < 0 {
		return rigoletto.Value{}
	}
	headroom := rigoletto.Sub(tx.MaxFeePerGas(), *baseFee)
	if !tx.IsFeeMarket() {
		return headroom
	}
	return rigoletto.Min(tx.MaxPriorityFeePerGas(), headroom)
}

// UpfrontCost is the balance a sender needs to submit the transaction: the
// gas limit at the maximum gas price, the blob gas at the maximum blob gas
// price, and the transferred value.
func UpfrontCost(tx *Signed) (rigoletto.Value, bool) {
	gasCost, overflow := tx.MaxFeePerGas().ScaleOverflow(tx.GasLimit())
	if overflow {
		return rigoletto.Value{}, false
	}
	blobCost, overflow := tx.MaxFeePerBlobGas().ScaleOverflow(tx.BlobGas())
	if overflow {
		return rigoletto.Value{}, false
	}
	res, overflow := rigoletto.AddOverflow(gasCost, blobCost)
	if overflow {
		return rigoletto.Value{}, false
	}
	res, overflow = rigoletto.AddOverflow(res, tx.Value())
	return res, !overflow
}
