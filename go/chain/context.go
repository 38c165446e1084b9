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
	"context"
	"fmt"

	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	"github.com/ethereum/go-ethereum/core/types"
)

// BlockParameters describes a block with the given header to the
// interpreter.
func BlockParameters(chainID uint64, revision rigoletto.Revision, header *types.Header) rigoletto.BlockParameters {
	res := rigoletto.BlockParameters{
		BlockNumber: header.Number.Int64(),
		Timestamp:   int64(header.Time),
		Coinbase:    rigoletto.Address(header.Coinbase),
		GasLimit:    rigoletto.Gas(header.GasLimit),
		PrevRandao:  rigoletto.Hash(header.MixDigest),
		BlobBaseFee: BlobBaseFee(header),
		Revision:    revision,
	}
	res.ChainID = rigoletto.Word(rigoletto.NewValue(chainID))
	if header.Difficulty != nil {
		res.Difficulty, _ = rigoletto.ValueFromBig(header.Difficulty)
	}
	if header.BaseFee != nil {
		res.BaseFee, _ = rigoletto.ValueFromBig(header.BaseFee)
	}
	return res
}

// BlockHashes resolves the hashes of blocks of the chain for the BLOCKHASH
// instruction. Unknown blocks give a zero hash, failed remote lookups an
// error.
func (b *Blockchain) BlockHashes(ctx context.Context) func(number int64) (rigoletto.Hash, error) {
	return func(number int64) (rigoletto.Hash, error) {
		if number < 0 {
			return rigoletto.Hash{}, nil
		}
		block, err := b.BlockByNumber(ctx, uint64(number))
		if err != nil {
			return rigoletto.Hash{}, fmt.Errorf("failed to resolve hash of block %d: %w", number, err)
		}
		if block == nil {
			return rigoletto.Hash{}, nil
		}
		return block.Hash(), nil
	}
}
