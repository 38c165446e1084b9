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
	"fmt"
	"math/big"

	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	"github.com/Fantom-foundation/Rigoletto/go/transaction"
	"github.com/ethereum/go-ethereum/core/types"
)

// Block is a sealed block. Its hash is derived from the header, which must
// not be modified.
type Block struct {
	Header       *types.Header
	Transactions []*transaction.Signed
	Callers      []rigoletto.Address // < sender of the transaction at the same index
	Withdrawals  []*types.Withdrawal
}

// NewBlock creates a block owning a copy of the given header.
func NewBlock(
	header *types.Header,
	transactions []*transaction.Signed,
	callers []rigoletto.Address,
	withdrawals []*types.Withdrawal,
) *Block {
	return &Block{
		Header:       types.CopyHeader(header),
		Transactions: transactions,
		Callers:      callers,
		Withdrawals:  withdrawals,
	}
}

func (b *Block) Hash() rigoletto.Hash {
	return rigoletto.Hash(b.Header.Hash())
}

func (b *Block) Number() uint64 {
	return b.Header.Number.Uint64()
}

func (b *Block) ParentHash() rigoletto.Hash {
	return rigoletto.Hash(b.Header.ParentHash)
}

func (b *Block) StateRoot() rigoletto.Hash {
	return rigoletto.Hash(b.Header.Root)
}

func (b *Block) Timestamp() uint64 {
	return b.Header.Time
}

func (b *Block) GasLimit() uint64 {
	return b.Header.GasLimit
}

// BaseFee returns the base fee of the block, nil before London.
func (b *Block) BaseFee() *rigoletto.Value {
	if b.Header.BaseFee == nil {
		return nil
	}
	fee, err := rigoletto.ValueFromBig(b.Header.BaseFee)
	if err != nil {
		return nil
	}
	return &fee
}

// Difficulty returns the difficulty of the block, zero for nil.
func (b *Block) Difficulty() *big.Int {
	if b.Header.Difficulty == nil {
		return new(big.Int)
	}
	return b.Header.Difficulty
}

// TransactionIndex returns the position of the transaction with the given
// hash in the block.
func (b *Block) TransactionIndex(hash rigoletto.Hash) (int, bool) {
	for i, tx := range b.Transactions {
		if tx.Hash() == hash {
			return i, true
		}
	}
	return 0, false
}

// blockFromGeth converts a block of a remote chain. Senders are recovered
// from the signatures.
func blockFromGeth(block *types.Block, chainID *big.Int) (*Block, error) {
	signer := types.LatestSignerForChainID(chainID)
	txs := make([]*transaction.Signed, len(block.Transactions()))
	callers := make([]rigoletto.Address, len(block.Transactions()))
	for i, tx := range block.Transactions() {
		sender, err := types.Sender(signer, tx)
		if err != nil {
			return nil, fmt.Errorf("failed to recover sender of transaction %d of block %d: %w", i, block.NumberU64(), err)
		}
		converted, err := transaction.FromGethWithSender(tx, rigoletto.Address(sender))
		if err != nil {
			return nil, err
		}
		txs[i] = converted
		callers[i] = rigoletto.Address(sender)
	}
	return NewBlock(block.Header(), txs, callers, block.Withdrawals()), nil
}
