// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package chain

import (
	"math/big"

	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/consensus/misc/eip1559"
	"github.com/ethereum/go-ethereum/consensus/misc/eip4844"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
)

// DefaultGasLimit is the gas limit of genesis blocks not specifying one.
const DefaultGasLimit = 30_000_000

// BlockOptions overrides header fields of a new block. Nil fields keep the
// derived value.
type BlockOptions struct {
	ParentHash       *rigoletto.Hash
	Beneficiary      *rigoletto.Address
	StateRoot        *rigoletto.Hash
	Difficulty       *big.Int
	Number           *uint64
	GasLimit         *uint64
	Timestamp        *uint64
	ExtraData        []byte
	MixHash          *rigoletto.Hash
	Nonce            *uint64
	BaseFee          *rigoletto.Value
	BlobExcessGas    *uint64
	ParentBeaconRoot *rigoletto.Hash
}

// Apply writes the set options into the given header.
func (o *BlockOptions) Apply(header *types.Header) {
	if o.ParentHash != nil {
		header.ParentHash = common.Hash(*o.ParentHash)
	}
	if o.Beneficiary != nil {
		header.Coinbase = common.Address(*o.Beneficiary)
	}
	if o.StateRoot != nil {
		header.Root = common.Hash(*o.StateRoot)
	}
	if o.Difficulty != nil {
		header.Difficulty = new(big.Int).Set(o.Difficulty)
	}
	if o.Number != nil {
		header.Number = new(big.Int).SetUint64(*o.Number)
	}
	if o.GasLimit != nil {
		header.GasLimit = *o.GasLimit
	}
	if o.Timestamp != nil {
		header.Time = *o.Timestamp
	}
	if o.ExtraData != nil {
		header.Extra = common.CopyBytes(o.ExtraData)
	}
	if o.MixHash != nil {
		header.MixDigest = common.Hash(*o.MixHash)
	}
	if o.Nonce != nil {
		header.Nonce = types.EncodeNonce(*o.Nonce)
	}
	if o.BaseFee != nil && header.BaseFee != nil {
		header.BaseFee = o.BaseFee.ToBig()
	}
	if o.BlobExcessGas != nil && header.ExcessBlobGas != nil {
		excess := *o.BlobExcessGas
		header.ExcessBlobGas = &excess
	}
	if o.ParentBeaconRoot != nil && header.ParentBeaconRoot != nil {
		root := common.Hash(*o.ParentBeaconRoot)
		header.ParentBeaconRoot = &root
	}
}

// emptyHeader creates a header of an empty block with the fork specific
// fields of the given revision present.
func emptyHeader(revision rigoletto.Revision) *types.Header {
	res := &types.Header{
		UncleHash:   types.EmptyUncleHash,
		Root:        types.EmptyRootHash,
		TxHash:      types.EmptyTxsHash,
		ReceiptHash: types.EmptyReceiptsHash,
		Difficulty:  new(big.Int),
		Number:      new(big.Int),
	}
	if revision.IsAtLeast(rigoletto.London) {
		res.BaseFee = new(big.Int)
	}
	if revision.IsAtLeast(rigoletto.Shanghai) {
		hash := types.EmptyWithdrawalsHash
		res.WithdrawalsHash = &hash
	}
	if revision.IsAtLeast(rigoletto.Cancun) {
		res.BlobGasUsed = new(uint64)
		res.ExcessBlobGas = new(uint64)
		res.ParentBeaconRoot = new(common.Hash)
	}
	return res
}

// GenesisHeader creates the header of a genesis block committing to the
// given state root.
func GenesisHeader(revision rigoletto.Revision, stateRoot rigoletto.Hash, opts BlockOptions) *types.Header {
	revision = revision.Resolve()
	res := emptyHeader(revision)
	res.Root = common.Hash(stateRoot)
	res.GasLimit = DefaultGasLimit
	if !revision.IsAtLeast(rigoletto.Merge) {
		res.Difficulty = new(big.Int).Set(params.GenesisDifficulty)
		res.Nonce = types.EncodeNonce(0x42)
	}
	if res.BaseFee != nil {
		res.BaseFee = big.NewInt(params.InitialBaseFee)
	}
	opts.Apply(res)
	return res
}

// NextHeader derives the header of an empty child of the given parent.
// Fields depending on the content of the block are those of an empty block.
func NextHeader(chainID uint64, revision rigoletto.Revision, parent *types.Header, timestamp uint64) *types.Header {
	revision = revision.Resolve()
	res := emptyHeader(revision)
	res.ParentHash = parent.Hash()
	res.Coinbase = parent.Coinbase
	res.Root = parent.Root
	res.Number = new(big.Int).Add(parent.Number, common.Big1)
	res.GasLimit = parent.GasLimit
	res.Time = timestamp

	if !revision.IsAtLeast(rigoletto.Merge) && parent.Difficulty != nil {
		res.Difficulty = new(big.Int).Set(parent.Difficulty)
	}
	if revision.IsAtLeast(rigoletto.Merge) {
		// prevrandao is a hash chain seeded by the genesis mix hash
		res.MixDigest = crypto.Keccak256Hash(parent.MixDigest[:])
	}
	if res.BaseFee != nil {
		if parent.BaseFee == nil {
			res.BaseFee = big.NewInt(params.InitialBaseFee)
		} else {
			res.BaseFee = eip1559.CalcBaseFee(ChainConfig(chainID, revision), parent)
		}
	}
	if res.ExcessBlobGas != nil {
		var parentExcess, parentUsed uint64
		if parent.ExcessBlobGas != nil {
			parentExcess = *parent.ExcessBlobGas
		}
		if parent.BlobGasUsed != nil {
			parentUsed = *parent.BlobGasUsed
		}
		excess := eip4844.CalcExcessBlobGas(parentExcess, parentUsed)
		res.ExcessBlobGas = &excess
	}
	return res
}

// BlobBaseFee returns the price of blob gas in a block with the given
// header, zero before Cancun.
func BlobBaseFee(header *types.Header) rigoletto.Value {
	if header.ExcessBlobGas == nil {
		return rigoletto.Value{}
	}
	fee, err := rigoletto.ValueFromBig(eip4844.CalcBlobFee(*header.ExcessBlobGas))
	if err != nil {
		return rigoletto.Value{}
	}
	return fee
}
