// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package miner

import (
	"context"
	"testing"

	"github.com/Fantom-foundation/Rigoletto/go/chain"
	"github.com/Fantom-foundation/Rigoletto/go/interpreter/lfvm"
	"github.com/Fantom-foundation/Rigoletto/go/mempool"
	"github.com/Fantom-foundation/Rigoletto/go/processor/floria"
	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	"github.com/Fantom-foundation/Rigoletto/go/state"
	"github.com/Fantom-foundation/Rigoletto/go/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice    = rigoletto.Address{0xa1}
	bob      = rigoletto.Address{0xb0}
	carol    = rigoletto.Address{0xca}
	coinbase = rigoletto.Address{0xc0}
)

var rules = transaction.Rules{ChainID: 1, Revision: rigoletto.Cancun}

type testSetup struct {
	chain     *chain.Blockchain
	state     *state.State
	pool      *mempool.MemPool
	processor *floria.Processor
}

func newTestSetup(t *testing.T, gasLimit uint64) *testSetup {
	t.Helper()
	var accounts []chain.GenesisAccount
	for _, address := range []rigoletto.Address{alice, bob, carol} {
		accounts = append(accounts, chain.GenesisAccount{Address: address, Balance: rigoletto.NewValue(1_000_000_000)})
	}
	blockchain, err := chain.WithGenesisBlock(1, rigoletto.Cancun, chain.BlockOptions{GasLimit: &gasLimit}, accounts)
	require.NoError(t, err)
	s, err := blockchain.StateAtBlockNumber(context.Background(), 0)
	require.NoError(t, err)
	vm, err := lfvm.NewVm(lfvm.Config{})
	require.NoError(t, err)
	return &testSetup{
		chain:     blockchain,
		state:     s,
		pool:      mempool.New(gasLimit),
		processor: floria.New(vm, floria.Config{ChainID: 1}),
	}
}

func (s *testSetup) add(t *testing.T, sender rigoletto.Address, nonce uint64, tip uint64) rigoletto.Hash {
	t.Helper()
	to := rigoletto.Address{0xee}
	signed := transaction.FakeSign(&transaction.Eip1559{
		ChainID:              1,
		Nonce:                nonce,
		MaxPriorityFeePerGas: rigoletto.NewValue(tip),
		MaxFeePerGas:         rigoletto.NewValue(100),
		GasLimit:             21_000,
		To:                   &to,
	}, sender)
	pending, err := transaction.NewPending(context.Background(), s.state, rules, signed)
	require.NoError(t, err)
	require.NoError(t, s.pool.AddTransaction(context.Background(), s.state, pending))
	return signed.Hash()
}

func (s *testSetup) mine(t *testing.T, opts MineOptions) *MineBlockResult {
	t.Helper()
	zero := rigoletto.Value{}
	if opts.BaseFee == nil {
		opts.BaseFee = &zero
	}
	if opts.Beneficiary == (rigoletto.Address{}) {
		opts.Beneficiary = coinbase
	}
	res, err := MineBlock(context.Background(), s.chain, s.state, s.pool, s.processor, opts)
	require.NoError(t, err)
	s.state = res.State
	return res
}

func hashes(block *chain.Block) []rigoletto.Hash {
	res := make([]rigoletto.Hash, len(block.Transactions))
	for i, tx := range block.Transactions {
		res[i] = tx.Hash()
	}
	return res
}

func TestMineBlock_OrderingDeterminesInclusionOrder(t *testing.T) {
	tests := map[Ordering]func(low, high rigoletto.Hash) []rigoletto.Hash{
		Fifo:     func(low, high rigoletto.Hash) []rigoletto.Hash { return []rigoletto.Hash{low, high} },
		Priority: func(low, high rigoletto.Hash) []rigoletto.Hash { return []rigoletto.Hash{high, low} },
	}
	for ordering, want := range tests {
		t.Run(ordering.String(), func(t *testing.T) {
			setup := newTestSetup(t, 30_000_000)
			low := setup.add(t, alice, 0, 1)
			high := setup.add(t, bob, 0, 10)
			res := setup.mine(t, MineOptions{Ordering: ordering})
			assert.Equal(t, want(low, high), hashes(res.Block))
		})
	}
}

func TestMineBlock_PriorityRespectsSenderNonceOrder(t *testing.T) {
	setup := newTestSetup(t, 30_000_000)
	a0 := setup.add(t, alice, 0, 1)
	a1 := setup.add(t, alice, 1, 50)
	b0 := setup.add(t, bob, 0, 5)

	res := setup.mine(t, MineOptions{Ordering: Priority})
	assert.Equal(t, []rigoletto.Hash{b0, a0, a1}, hashes(res.Block))
}

func TestMineBlock_UnderpricedTransactionsAreSkipped(t *testing.T) {
	setup := newTestSetup(t, 30_000_000)
	setup.add(t, alice, 0, 1)
	setup.add(t, alice, 1, 20)
	included := setup.add(t, bob, 0, 10)

	res := setup.mine(t, MineOptions{MinGasPrice: rigoletto.NewValue(5)})
	assert.Equal(t, []rigoletto.Hash{included}, hashes(res.Block))
	assert.True(t, setup.pool.HasPendingTransactions())
}

func TestMineBlock_StopsWhenBlockIsFull(t *testing.T) {
	setup := newTestSetup(t, 50_000)
	first := setup.add(t, alice, 0, 1)
	second := setup.add(t, bob, 0, 1)
	third := setup.add(t, carol, 0, 1)

	res := setup.mine(t, MineOptions{})
	assert.Equal(t, []rigoletto.Hash{first, second}, hashes(res.Block))

	_, found := setup.pool.TransactionByHash(third)
	assert.True(t, found, "transactions not mined stay in the pool")
	_, found = setup.pool.TransactionByHash(first)
	assert.False(t, found, "mined transactions leave the pool")
}

func TestMineBlock_BlockIsAppendedToChain(t *testing.T) {
	setup := newTestSetup(t, 30_000_000)
	setup.add(t, alice, 0, 3)

	res := setup.mine(t, MineOptions{Reward: rigoletto.NewValue(1_000)})
	require.Len(t, res.Results, 1)
	assert.True(t, rigoletto.IsSuccess(res.Results[0]))
	require.Len(t, res.Receipts, 1)
	assert.Nil(t, res.Traces)

	assert.Equal(t, uint64(1), setup.chain.LastBlockNumber())
	assert.Equal(t, res.Block.Hash(), setup.chain.LastBlock().Hash())
	receipt, err := setup.chain.ReceiptByTransactionHash(context.Background(), res.Block.Transactions[0].Hash())
	require.NoError(t, err)
	assert.Equal(t, res.Receipts[0], receipt)

	account, err := res.State.Get(context.Background(), coinbase)
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, rigoletto.NewValue(1_000+3*21_000), account.Balance)
	assert.False(t, setup.pool.HasPendingTransactions())
}

func TestMineBlock_TracesAreCollectedOnRequest(t *testing.T) {
	setup := newTestSetup(t, 30_000_000)
	setup.add(t, alice, 0, 1)
	setup.add(t, bob, 0, 1)

	res := setup.mine(t, MineOptions{WithTrace: true})
	require.Len(t, res.Traces, 2)
	for _, trace := range res.Traces {
		assert.NotEmpty(t, trace)
	}
}

func TestMineBlock_EmptyPoolMinesEmptyBlock(t *testing.T) {
	setup := newTestSetup(t, 30_000_000)
	timestamp := uint64(5_000)
	res := setup.mine(t, MineOptions{Timestamp: &timestamp})
	assert.Empty(t, res.Block.Transactions)
	assert.Equal(t, timestamp, res.Block.Timestamp())
	assert.Equal(t, uint64(1), setup.chain.LastBlockNumber())
}

func TestParseOrdering(t *testing.T) {
	for _, ordering := range []Ordering{Fifo, Priority} {
		parsed, err := ParseOrdering(ordering.String())
		require.NoError(t, err)
		assert.Equal(t, ordering, parsed)
	}
	_, err := ParseOrdering("random")
	assert.Error(t, err)
}
