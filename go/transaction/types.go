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
	"fmt"
	"math/big"

	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

// Type is the EIP-2718 type of a transaction.
type Type uint8

const (
	LegacyType     Type = types.LegacyTxType
	AccessListType Type = types.AccessListTxType
	DynamicFeeType Type = types.DynamicFeeTxType
	BlobType       Type = types.BlobTxType
)

func (t Type) String() string {
	switch t {
	case LegacyType:
		return "legacy"
	case AccessListType:
		return "eip2930"
	case DynamicFeeType:
		return "eip1559"
	case BlobType:
		return "eip4844"
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// MinRevision is the first revision accepting transactions of the type.
func (t Type) MinRevision() rigoletto.Revision {
	switch t {
	case AccessListType:
		return rigoletto.Berlin
	case DynamicFeeType:
		return rigoletto.London
	case BlobType:
		return rigoletto.Cancun
	}
	return rigoletto.Frontier
}

type AccessTuple struct {
	Address     rigoletto.Address `json:"address"`
	StorageKeys []rigoletto.Key   `json:"storageKeys"`
}

type AccessList []AccessTuple

// StorageKeys counts the keys of all tuples.
func (l AccessList) StorageKeys() int {
	res := 0
	for _, tuple := range l {
		res += len(tuple.StorageKeys)
	}
	return res
}

// TxData is the unsigned content of a transaction. It is implemented by
// *Legacy, *Eip2930, *Eip1559 and *Eip4844 only.
type TxData interface {
	txType() Type
	toGeth() types.TxData
}

// Legacy is a pre EIP-2718 transaction. A nil ChainID marks a transaction
// without EIP-155 replay protection.
type Legacy struct {
	ChainID  *uint64
	Nonce    uint64
	GasPrice rigoletto.Value
	GasLimit uint64
	To       *rigoletto.Address // < nil for contract creations
	Value    rigoletto.Value
	Input    rigoletto.Data
}

// Eip2930 is a transaction with an access list.
type Eip2930 struct {
	ChainID    uint64
	Nonce      uint64
	GasPrice   rigoletto.Value
	GasLimit   uint64
	To         *rigoletto.Address
	Value      rigoletto.Value
	Input      rigoletto.Data
	AccessList AccessList
}

// Eip1559 is a fee market transaction.
type Eip1559 struct {
	ChainID              uint64
	Nonce                uint64
	MaxPriorityFeePerGas rigoletto.Value
	MaxFeePerGas         rigoletto.Value
	GasLimit             uint64
	To                   *rigoletto.Address
	Value                rigoletto.Value
	Input                rigoletto.Data
	AccessList           AccessList
}

// Eip4844 is a blob carrying transaction. Blob transactions cannot create
// contracts.
type Eip4844 struct {
	ChainID              uint64
	Nonce                uint64
	MaxPriorityFeePerGas rigoletto.Value
	MaxFeePerGas         rigoletto.Value
	GasLimit             uint64
	To                   rigoletto.Address
	Value                rigoletto.Value
	Input                rigoletto.Data
	AccessList           AccessList
	MaxFeePerBlobGas     rigoletto.Value
	BlobHashes           []rigoletto.Hash
}

func (*Legacy) txType() Type  { return LegacyType }
func (*Eip2930) txType() Type { return AccessListType }
func (*Eip1559) txType() Type { return DynamicFeeType }
func (*Eip4844) txType() Type { return BlobType }

func (tx *Legacy) toGeth() types.TxData {
	return &types.LegacyTx{
		Nonce:    tx.Nonce,
		GasPrice: tx.GasPrice.ToBig(),
		Gas:      tx.GasLimit,
		To:       toGethAddress(tx.To),
		Value:    tx.Value.ToBig(),
		Data:     common.CopyBytes(tx.Input),
	}
}

func (tx *Eip2930) toGeth() types.TxData {
	return &types.AccessListTx{
		ChainID:    new(big.Int).SetUint64(tx.ChainID),
		Nonce:      tx.Nonce,
		GasPrice:   tx.GasPrice.ToBig(),
		Gas:        tx.GasLimit,
		To:         toGethAddress(tx.To),
		Value:      tx.Value.ToBig(),
		Data:       common.CopyBytes(tx.Input),
		AccessList: tx.AccessList.toGeth(),
	}
}

func (tx *Eip1559) toGeth() types.TxData {
	return &types.DynamicFeeTx{
		ChainID:    new(big.Int).SetUint64(tx.ChainID),
		Nonce:      tx.Nonce,
		GasTipCap:  tx.MaxPriorityFeePerGas.ToBig(),
		GasFeeCap:  tx.MaxFeePerGas.ToBig(),
		Gas:        tx.GasLimit,
		To:         toGethAddress(tx.To),
		Value:      tx.Value.ToBig(),
		Data:       common.CopyBytes(tx.Input),
		AccessList: tx.AccessList.toGeth(),
	}
}

func (tx *Eip4844) toGeth() types.TxData {
	hashes := make([]common.Hash, len(tx.BlobHashes))
	for i, hash := range tx.BlobHashes {
		hashes[i] = common.Hash(hash)
	}
	return &types.BlobTx{
		ChainID:    uint256.NewInt(tx.ChainID),
		Nonce:      tx.Nonce,
		GasTipCap:  tx.MaxPriorityFeePerGas.ToUint256(),
		GasFeeCap:  tx.MaxFeePerGas.ToUint256(),
		Gas:        tx.GasLimit,
		To:         common.Address(tx.To),
		Value:      tx.Value.ToUint256(),
		Data:       common.CopyBytes(tx.Input),
		AccessList: tx.AccessList.toGeth(),
		BlobFeeCap: tx.MaxFeePerBlobGas.ToUint256(),
		BlobHashes: hashes,
	}
}

func (l AccessList) toGeth() types.AccessList {
	res := make(types.AccessList, len(l))
	for i, tuple := range l {
		keys := make([]common.Hash, len(tuple.StorageKeys))
		for j, key := range tuple.StorageKeys {
			keys[j] = common.Hash(key)
		}
		res[i] = types.AccessTuple{Address: common.Address(tuple.Address), StorageKeys: keys}
	}
	return res
}

func accessListFromGeth(list types.AccessList) AccessList {
	if len(list) == 0 {
		return nil
	}
	res := make(AccessList, len(list))
	for i, tuple := range list {
		keys := make([]rigoletto.Key, len(tuple.StorageKeys))
		for j, key := range tuple.StorageKeys {
			keys[j] = rigoletto.Key(key)
		}
		res[i] = AccessTuple{Address: rigoletto.Address(tuple.Address), StorageKeys: keys}
	}
	return res
}

func toGethAddress(address *rigoletto.Address) *common.Address {
	if address == nil {
		return nil
	}
	res := common.Address(*address)
	return &res
}

func fromGethAddress(address *common.Address) *rigoletto.Address {
	if address == nil {
		return nil
	}
	res := rigoletto.Address(*address)
	return &res
}

// dataFromGeth extracts the unsigned content of a go-ethereum transaction.
func dataFromGeth(tx *types.Transaction) (TxData, error) {
	value, err := rigoletto.ValueFromBig(tx.Value())
	if err != nil {
		return nil, err
	}
	price, err := rigoletto.ValueFromBig(tx.GasPrice())
	if err != nil {
		return nil, err
	}
	tip, err := rigoletto.ValueFromBig(tx.GasTipCap())
	if err != nil {
		return nil, err
	}
	feeCap, err := rigoletto.ValueFromBig(tx.GasFeeCap())
	if err != nil {
		return nil, err
	}
	chainID := tx.ChainId().Uint64()

	switch tx.Type() {
	case types.LegacyTxType:
		res := &Legacy{
			Nonce:    tx.Nonce(),
			GasPrice: price,
			GasLimit: tx.Gas(),
			To:       fromGethAddress(tx.To()),
			Value:    value,
			Input:    common.CopyBytes(tx.Data()),
		}
		if tx.Protected() {
			res.ChainID = &chainID
		}
		return res, nil
	case types.AccessListTxType:
		return &Eip2930{
			ChainID:    chainID,
			Nonce:      tx.Nonce(),
			GasPrice:   price,
			GasLimit:   tx.Gas(),
			To:         fromGethAddress(tx.To()),
			Value:      value,
			Input:      common.CopyBytes(tx.Data()),
			AccessList: accessListFromGeth(tx.AccessList()),
		}, nil
	case types.DynamicFeeTxType:
		return &Eip1559{
			ChainID:              chainID,
			Nonce:                tx.Nonce(),
			MaxPriorityFeePerGas: tip,
			MaxFeePerGas:         feeCap,
			GasLimit:             tx.Gas(),
			To:                   fromGethAddress(tx.To()),
			Value:                value,
			Input:                common.CopyBytes(tx.Data()),
			AccessList:           accessListFromGeth(tx.AccessList()),
		}, nil
	case types.BlobTxType:
		if tx.To() == nil {
			return nil, rigoletto.ErrBlobCreate
		}
		blobFeeCap, err := rigoletto.ValueFromBig(tx.BlobGasFeeCap())
		if err != nil {
			return nil, err
		}
		hashes := make([]rigoletto.Hash, len(tx.BlobHashes()))
		for i, hash := range tx.BlobHashes() {
			hashes[i] = rigoletto.Hash(hash)
		}
		return &Eip4844{
			ChainID:              chainID,
			Nonce:                tx.Nonce(),
			MaxPriorityFeePerGas: tip,
			MaxFeePerGas:         feeCap,
			GasLimit:             tx.Gas(),
			To:                   rigoletto.Address(*tx.To()),
			Value:                value,
			Input:                common.CopyBytes(tx.Data()),
			AccessList:           accessListFromGeth(tx.AccessList()),
			MaxFeePerBlobGas:     blobFeeCap,
			BlobHashes:           hashes,
		}, nil
	}
	return nil, fmt.Errorf("%w: %d", rigoletto.ErrTxTypeNotSupported, tx.Type())
}
