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
	"errors"
	"math/big"
	"testing"

	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	"github.com/Fantom-foundation/Rigoletto/go/state"
	"github.com/Fantom-foundation/Rigoletto/go/transaction"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestChain(t *testing.T, spec rigoletto.Revision, accounts ...GenesisAccount) *Blockchain {
	t.Helper()
	timestamp := uint64(1000)
	chain, err := WithGenesisBlock(1337, spec, BlockOptions{Timestamp: &timestamp}, accounts)
	require.NoError(t, err)
	return chain
}

// newChild creates a block on top of the given one with a successful
// receipt per transaction.
func newChild(t *testing.T, chain *Blockchain, parent *Block, txs ...*transaction.Signed) (*Block, []*transaction.Receipt) {
	t.Helper()
	header := NextHeader(chain.ChainID(), chain.SpecID(), parent.Header, parent.Timestamp()+12)
	callers := make([]rigoletto.Address, len(txs))
	receipts := make([]*transaction.Receipt, len(txs))
	for i, tx := range txs {
		caller, err := tx.Caller()
		require.NoError(t, err)
		callers[i] = caller
		status := transaction.ReceiptStatusSuccessful
		receipts[i] = &transaction.Receipt{
			Status:           &status,
			GasUsed:          21_000,
			TransactionHash:  tx.Hash(),
			TransactionIndex: uint64(i),
			BlockNumber:      header.Number.Uint64(),
			From:             caller,
		}
	}
	return NewBlock(header, txs, callers, withdrawalsOf(chain.SpecID())), receipts
}

func newTestTx(nonce uint64) *transaction.Signed {
	to := rigoletto.Address{0x7e}
	return transaction.FakeSign(&transaction.Legacy{
		Nonce:    nonce,
		GasPrice: rigoletto.NewValue(10),
		GasLimit: 21_000,
		To:       &to,
		Value:    rigoletto.NewValue(1),
	}, rigoletto.Address{0x5e})
}

func TestWithGenesisBlock_FundsAccounts(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	keyAddress := rigoletto.Address(crypto.PubkeyToAddress(key.PublicKey))
	plain := rigoletto.Address{1, 2, 3}

	chain := newTestChain(t, rigoletto.Cancun,
		GenesisAccount{PrivateKey: key, Balance: rigoletto.NewValue(100)},
		GenesisAccount{Address: plain, Balance: rigoletto.NewValue(200)},
	)
	assert.Equal(t, uint64(0), chain.LastBlockNumber())
	assert.Equal(t, uint64(1337), chain.ChainID())
	assert.Equal(t, rigoletto.Cancun, chain.SpecID())

	s, err := chain.StateAtBlockNumber(context.Background(), 0)
	require.NoError(t, err)
	for address, balance := range map[rigoletto.Address]uint64{keyAddress: 100, plain: 200} {
		account, err := s.Get(context.Background(), address)
		require.NoError(t, err)
		require.NotNil(t, account)
		assert.Equal(t, rigoletto.NewValue(balance), account.Balance)
	}

	root, err := s.StateRoot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, root, chain.LastBlock().StateRoot())
}

func TestWithGenesisBlock_HeaderFollowsRevision(t *testing.T) {
	tests := map[rigoletto.Revision]func(*testing.T, *types.Header){
		rigoletto.Istanbul: func(t *testing.T, h *types.Header) {
			assert.Nil(t, h.BaseFee)
			assert.Equal(t, params.GenesisDifficulty, h.Difficulty)
		},
		rigoletto.London: func(t *testing.T, h *types.Header) {
			assert.Equal(t, big.NewInt(params.InitialBaseFee), h.BaseFee)
			assert.Nil(t, h.WithdrawalsHash)
		},
		rigoletto.Shanghai: func(t *testing.T, h *types.Header) {
			assert.Zero(t, h.Difficulty.Sign())
			require.NotNil(t, h.WithdrawalsHash)
			assert.Equal(t, types.EmptyWithdrawalsHash, *h.WithdrawalsHash)
			assert.Nil(t, h.ExcessBlobGas)
		},
		rigoletto.Cancun: func(t *testing.T, h *types.Header) {
			require.NotNil(t, h.ExcessBlobGas)
			require.NotNil(t, h.BlobGasUsed)
			require.NotNil(t, h.ParentBeaconRoot)
		},
	}
	for revision, check := range tests {
		t.Run(revision.String(), func(t *testing.T) {
			chain := newTestChain(t, revision)
			header := chain.LastBlock().Header
			assert.Equal(t, uint64(DefaultGasLimit), header.GasLimit)
			assert.Equal(t, uint64(1000), header.Time)
			check(t, header)
		})
	}
}

func TestWithGenesisBlock_RejectsInvalidSetups(t *testing.T) {
	number := uint64(1)
	_, err := WithGenesisBlock(1, rigoletto.Cancun, BlockOptions{Number: &number}, nil)
	assert.ErrorIs(t, err, rigoletto.ErrInvalidBlockNumber)

	_, err = WithGenesisBlock(1, rigoletto.Revision(100), BlockOptions{}, nil)
	var unsupported *rigoletto.ErrUnsupportedRevision
	assert.ErrorAs(t, err, &unsupported)
}

func TestBlockchain_InsertedBlocksCanBeLookedUp(t *testing.T) {
	ctx := context.Background()
	chain := newTestChain(t, rigoletto.Cancun)
	tx := newTestTx(0)
	block, receipts := newChild(t, chain, chain.LastBlock(), tx)
	require.NoError(t, chain.InsertBlock(block, state.New(), receipts))

	assert.Equal(t, uint64(1), chain.LastBlockNumber())
	assert.Equal(t, block, chain.LastBlock())

	byNumber, err := chain.BlockByNumber(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, block, byNumber)

	byHash, err := chain.BlockByHash(ctx, block.Hash())
	require.NoError(t, err)
	assert.Equal(t, block, byHash)

	byTx, err := chain.BlockByTransactionHash(ctx, tx.Hash())
	require.NoError(t, err)
	assert.Equal(t, block, byTx)

	receipt, err := chain.ReceiptByTransactionHash(ctx, tx.Hash())
	require.NoError(t, err)
	assert.Equal(t, receipts[0], receipt)

	index, found := block.TransactionIndex(tx.Hash())
	assert.True(t, found)
	assert.Equal(t, 0, index)
}

func TestBlockchain_MissingEntriesAreNil(t *testing.T) {
	ctx := context.Background()
	chain := newTestChain(t, rigoletto.Cancun)

	block, err := chain.BlockByNumber(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, block)

	block, err = chain.BlockByHash(ctx, rigoletto.Hash{1})
	require.NoError(t, err)
	assert.Nil(t, block)

	block, err = chain.BlockByTransactionHash(ctx, rigoletto.Hash{1})
	require.NoError(t, err)
	assert.Nil(t, block)

	receipt, err := chain.ReceiptByTransactionHash(ctx, rigoletto.Hash{1})
	require.NoError(t, err)
	assert.Nil(t, receipt)

	difficulty, err := chain.TotalDifficultyByHash(ctx, rigoletto.Hash{1})
	require.NoError(t, err)
	assert.Nil(t, difficulty)

	_, err = chain.StateAtBlockNumber(ctx, 1)
	assert.ErrorIs(t, err, rigoletto.ErrInvalidBlockNumber)
}

func TestBlockchain_InsertBlockChecksLinkage(t *testing.T) {
	chain := newTestChain(t, rigoletto.Cancun)
	genesis := chain.LastBlock()

	orphan, _ := newChild(t, chain, genesis)
	orphan.Header.ParentHash[0] ^= 1
	orphan = NewBlock(orphan.Header, nil, nil, nil)
	assert.ErrorIs(t, chain.InsertBlock(orphan, state.New(), nil), rigoletto.ErrUnknownParent)

	skipping, _ := newChild(t, chain, genesis)
	skipping.Header.Number.SetUint64(2)
	skipping = NewBlock(skipping.Header, nil, nil, nil)
	assert.ErrorIs(t, chain.InsertBlock(skipping, state.New(), nil), rigoletto.ErrInvalidBlockNumber)

	assert.Equal(t, uint64(0), chain.LastBlockNumber())
}

func TestBlockchain_TotalDifficultyAccumulates(t *testing.T) {
	ctx := context.Background()
	chain := newTestChain(t, rigoletto.London)
	genesis := chain.LastBlock()
	block, _ := newChild(t, chain, genesis)
	require.NoError(t, chain.InsertBlock(block, state.New(), nil))

	difficulty, err := chain.TotalDifficultyByHash(ctx, block.Hash())
	require.NoError(t, err)
	want := new(big.Int).Mul(params.GenesisDifficulty, big.NewInt(2))
	assert.Equal(t, want, difficulty)
}

func TestBlockchain_ReserveBlocksSpacesTimestamps(t *testing.T) {
	ctx := context.Background()
	chain := newTestChain(t, rigoletto.Cancun, GenesisAccount{Address: rigoletto.Address{1}, Balance: rigoletto.NewValue(5)})
	genesis := chain.LastBlock()

	chain.ReserveBlocks(3, 10)
	require.Equal(t, uint64(3), chain.LastBlockNumber())

	parent := genesis
	for number := uint64(1); number <= 3; number++ {
		block, err := chain.BlockByNumber(ctx, number)
		require.NoError(t, err)
		require.NotNil(t, block)
		assert.Equal(t, parent.Hash(), block.ParentHash())
		assert.Equal(t, parent.Timestamp()+10, block.Timestamp())
		assert.Equal(t, genesis.StateRoot(), block.StateRoot())
		assert.Empty(t, block.Transactions)
		assert.Equal(t, -1, block.BaseFee().Cmp(*parent.BaseFee()), "empty blocks lower the base fee")
		parent = block
	}

	s, err := chain.StateAtBlockNumber(ctx, 3)
	require.NoError(t, err)
	account, err := s.Get(ctx, rigoletto.Address{1})
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, rigoletto.NewValue(5), account.Balance)
}

func TestBlockchain_RevertToBlockRemovesLaterBlocks(t *testing.T) {
	ctx := context.Background()
	chain := newTestChain(t, rigoletto.Cancun)
	tx := newTestTx(0)
	first, receipts := newChild(t, chain, chain.LastBlock(), tx)
	require.NoError(t, chain.InsertBlock(first, state.New(), receipts))
	chain.ReserveBlocks(2, 1)

	require.NoError(t, chain.RevertToBlock(0))
	assert.Equal(t, uint64(0), chain.LastBlockNumber())

	block, err := chain.BlockByHash(ctx, first.Hash())
	require.NoError(t, err)
	assert.Nil(t, block)
	block, err = chain.BlockByTransactionHash(ctx, tx.Hash())
	require.NoError(t, err)
	assert.Nil(t, block)
	receipt, err := chain.ReceiptByTransactionHash(ctx, tx.Hash())
	require.NoError(t, err)
	assert.Nil(t, receipt)

	// the chain can grow again on the old head
	again, _ := newChild(t, chain, chain.LastBlock())
	require.NotEqual(t, first.Hash(), again.Hash())
	require.NoError(t, chain.InsertBlock(again, state.New(), nil))

	block, err = chain.BlockByNumber(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, block)
	assert.Equal(t, again.Hash(), block.Hash())
	block, err = chain.BlockByHash(ctx, first.Hash())
	require.NoError(t, err)
	assert.Nil(t, block)
	block, err = chain.BlockByNumber(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, block, "reserved blocks must not survive the revert")
}

func TestBlockchain_RevertToBlockRejectsInvalidNumbers(t *testing.T) {
	chain := newTestChain(t, rigoletto.Cancun)
	chain.ReserveBlocks(2, 1)
	assert.ErrorIs(t, chain.RevertToBlock(3), rigoletto.ErrInvalidBlockNumber)
	assert.Equal(t, uint64(2), chain.LastBlockNumber())
}

func TestBlockchain_LocalChainsUseTheirSpecEverywhere(t *testing.T) {
	chain := newTestChain(t, rigoletto.Berlin)
	for _, number := range []uint64{0, 1, 1_000_000} {
		spec, err := chain.SpecAtBlockNumber(number)
		require.NoError(t, err)
		assert.Equal(t, rigoletto.Berlin, spec)
	}
}

// --- forked chains ---

const testForkBlock = 100

func newRemoteBlock(number uint64) *Block {
	header := emptyHeader(rigoletto.London)
	header.Number = new(big.Int).SetUint64(number)
	header.Difficulty = big.NewInt(7)
	header.BaseFee = big.NewInt(params.InitialBaseFee)
	header.GasLimit = DefaultGasLimit
	header.Time = 5000 + number
	return NewBlock(header, nil, nil, nil)
}

func newForkedChain(t *testing.T, remote *MockRemoteChain, opts ForkOptions) *Blockchain {
	t.Helper()
	remote.EXPECT().ChainID(gomock.Any()).Return(uint64(1), nil).AnyTimes()
	forkBlock := newRemoteBlock(testForkBlock)
	remote.EXPECT().BlockByNumber(gomock.Any(), uint64(testForkBlock)).Return(forkBlock, nil)
	remote.EXPECT().TotalDifficultyByHash(gomock.Any(), forkBlock.Hash()).Return(big.NewInt(1000), nil)

	number := uint64(testForkBlock)
	opts.Remote = remote
	opts.BlockNumber = &number
	if opts.Spec == rigoletto.Frontier {
		opts.Spec = rigoletto.Cancun
	}
	chain, err := Fork(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, chain.Close()) })
	return chain
}

func TestFork_StartsAtForkBlock(t *testing.T) {
	remote := NewMockRemoteChain(gomock.NewController(t))
	chain := newForkedChain(t, remote, ForkOptions{})

	assert.Equal(t, uint64(testForkBlock), chain.LastBlockNumber())
	assert.True(t, chain.IsForked())
	number, forked := chain.ForkBlockNumber()
	assert.True(t, forked)
	assert.Equal(t, uint64(testForkBlock), number)

	difficulty, err := chain.TotalDifficultyByHash(context.Background(), chain.LastBlock().Hash())
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), difficulty)

	// new blocks extend the fork block
	block, _ := newChild(t, chain, chain.LastBlock())
	require.NoError(t, chain.InsertBlock(block, state.New(), nil))
	difficulty, err = chain.TotalDifficultyByHash(context.Background(), block.Hash())
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), difficulty, "blocks after the merge have no difficulty")
}

func TestFork_DefaultsToSafeDistanceFromRemoteHead(t *testing.T) {
	remote := NewMockRemoteChain(gomock.NewController(t))
	remote.EXPECT().ChainID(gomock.Any()).Return(uint64(1), nil).AnyTimes()
	remote.EXPECT().LatestBlockNumber(gomock.Any()).Return(uint64(1000), nil)
	forkBlock := newRemoteBlock(1000 - DefaultSafeBlockDepth)
	remote.EXPECT().BlockByNumber(gomock.Any(), forkBlock.Number()).Return(forkBlock, nil)
	remote.EXPECT().TotalDifficultyByHash(gomock.Any(), forkBlock.Hash()).Return(nil, nil)

	chain, err := Fork(context.Background(), ForkOptions{Remote: remote, Spec: rigoletto.Cancun})
	require.NoError(t, err)
	defer chain.Close()
	assert.Equal(t, forkBlock.Number(), chain.LastBlockNumber())
}

func TestFork_RemoteBlocksAreFetchedOnce(t *testing.T) {
	ctx := context.Background()
	remote := NewMockRemoteChain(gomock.NewController(t))
	chain := newForkedChain(t, remote, ForkOptions{})
	old := newRemoteBlock(50)
	remote.EXPECT().BlockByNumber(gomock.Any(), uint64(50)).Return(old, nil).Times(1)

	for range 2 {
		block, err := chain.BlockByNumber(ctx, 50)
		require.NoError(t, err)
		assert.Equal(t, old, block)
	}
	block, err := chain.BlockByHash(ctx, old.Hash())
	require.NoError(t, err)
	assert.Equal(t, old, block)
}

func TestFork_RemoteBlocksAfterForkAreIgnored(t *testing.T) {
	ctx := context.Background()
	remote := NewMockRemoteChain(gomock.NewController(t))
	chain := newForkedChain(t, remote, ForkOptions{})

	later := newRemoteBlock(testForkBlock + 1)
	remote.EXPECT().BlockByHash(gomock.Any(), later.Hash()).Return(later, nil)
	block, err := chain.BlockByHash(ctx, later.Hash())
	require.NoError(t, err)
	assert.Nil(t, block)

	block, err = chain.BlockByNumber(ctx, testForkBlock+1)
	require.NoError(t, err)
	assert.Nil(t, block)

	status := transaction.ReceiptStatusSuccessful
	remote.EXPECT().ReceiptByTransactionHash(gomock.Any(), rigoletto.Hash{1}).
		Return(&transaction.Receipt{Status: &status, BlockNumber: testForkBlock + 1}, nil)
	receipt, err := chain.ReceiptByTransactionHash(ctx, rigoletto.Hash{1})
	require.NoError(t, err)
	assert.Nil(t, receipt)
}

func TestFork_RemoteTransactionsAreResolved(t *testing.T) {
	ctx := context.Background()
	remote := NewMockRemoteChain(gomock.NewController(t))
	chain := newForkedChain(t, remote, ForkOptions{})

	status := transaction.ReceiptStatusSuccessful
	receipt := &transaction.Receipt{Status: &status, BlockNumber: 20}
	old := newRemoteBlock(20)
	remote.EXPECT().ReceiptByTransactionHash(gomock.Any(), rigoletto.Hash{2}).Return(receipt, nil).Times(2)
	remote.EXPECT().BlockByNumber(gomock.Any(), uint64(20)).Return(old, nil)

	got, err := chain.ReceiptByTransactionHash(ctx, rigoletto.Hash{2})
	require.NoError(t, err)
	assert.Equal(t, receipt, got)

	block, err := chain.BlockByTransactionHash(ctx, rigoletto.Hash{2})
	require.NoError(t, err)
	assert.Equal(t, old, block)
}

func TestFork_SpecOfRemoteBlocksFollowsSchedule(t *testing.T) {
	remote := NewMockRemoteChain(gomock.NewController(t))
	chain := newForkedChain(t, remote, ForkOptions{Spec: rigoletto.Shanghai})

	tests := map[uint64]rigoletto.Revision{
		0:                 rigoletto.Frontier,
		testForkBlock:     rigoletto.Frontier,
		testForkBlock + 1: rigoletto.Shanghai,
	}
	for number, want := range tests {
		got, err := chain.SpecAtBlockNumber(number)
		require.NoError(t, err)
		assert.Equal(t, want, got, "block %d", number)
	}
}

func TestFork_HardforkOverridesReplaceSchedule(t *testing.T) {
	remote := NewMockRemoteChain(gomock.NewController(t))
	chain := newForkedChain(t, remote, ForkOptions{
		HardforkOverrides: map[uint64]Hardforks{
			1: NewHardforks(Activation{50, rigoletto.Berlin}, Activation{0, rigoletto.Istanbul}),
		},
	})

	spec, err := chain.SpecAtBlockNumber(10)
	require.NoError(t, err)
	assert.Equal(t, rigoletto.Istanbul, spec)
	spec, err = chain.SpecAtBlockNumber(60)
	require.NoError(t, err)
	assert.Equal(t, rigoletto.Berlin, spec)
}

func TestFork_GenesisAccountsOverrideRemoteState(t *testing.T) {
	ctx := context.Background()
	remote := NewMockRemoteChain(gomock.NewController(t))
	funded := rigoletto.Address{0xf0}
	remote.EXPECT().Account(gomock.Any(), funded, uint64(testForkBlock)).
		Return(state.RemoteAccount{Balance: rigoletto.NewValue(1), Nonce: 4}, nil).AnyTimes()
	chain := newForkedChain(t, remote, ForkOptions{
		Accounts: []GenesisAccount{{Address: funded, Balance: rigoletto.NewValue(99)}},
	})

	s, err := chain.StateAtBlockNumber(ctx, testForkBlock)
	require.NoError(t, err)
	account, err := s.Get(ctx, funded)
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, rigoletto.NewValue(99), account.Balance)
	assert.Equal(t, uint64(4), account.Nonce)
}

func TestFork_StateOfRemoteBlocksIsFetched(t *testing.T) {
	ctx := context.Background()
	remote := NewMockRemoteChain(gomock.NewController(t))
	chain := newForkedChain(t, remote, ForkOptions{})
	address := rigoletto.Address{0xaa}
	remote.EXPECT().Account(gomock.Any(), address, uint64(10)).
		Return(state.RemoteAccount{Balance: rigoletto.NewValue(3)}, nil)

	s, err := chain.StateAtBlockNumber(ctx, 10)
	require.NoError(t, err)
	number, forked := s.ForkBlockNumber()
	assert.True(t, forked)
	assert.Equal(t, uint64(10), number)
	account, err := s.Get(ctx, address)
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, rigoletto.NewValue(3), account.Balance)
}

func TestFork_RevertStopsAtForkBlock(t *testing.T) {
	remote := NewMockRemoteChain(gomock.NewController(t))
	chain := newForkedChain(t, remote, ForkOptions{})
	chain.ReserveBlocks(2, 12)

	assert.ErrorIs(t, chain.RevertToBlock(testForkBlock-1), rigoletto.ErrInvalidBlockNumber)
	require.NoError(t, chain.RevertToBlock(testForkBlock))
	assert.Equal(t, uint64(testForkBlock), chain.LastBlockNumber())
}

func TestFork_RemoteFailuresAreReported(t *testing.T) {
	remote := NewMockRemoteChain(gomock.NewController(t))
	injected := errors.New("injected")
	remote.EXPECT().ChainID(gomock.Any()).Return(uint64(0), injected)

	_, err := Fork(context.Background(), ForkOptions{Remote: remote, Spec: rigoletto.Cancun})
	assert.ErrorIs(t, err, rigoletto.ErrRemoteFetch)
	assert.ErrorIs(t, err, injected)
}

func TestFork_BlockHashesOfRemoteBlocks(t *testing.T) {
	remote := NewMockRemoteChain(gomock.NewController(t))
	chain := newForkedChain(t, remote, ForkOptions{})
	old := newRemoteBlock(50)
	remote.EXPECT().BlockByNumber(gomock.Any(), uint64(50)).Return(old, nil)
	injected := errors.New("injected")
	remote.EXPECT().BlockByNumber(gomock.Any(), uint64(60)).Return(nil, injected)

	hashes := chain.BlockHashes(context.Background())
	hash, err := hashes(50)
	require.NoError(t, err)
	assert.Equal(t, old.Hash(), hash)

	hash, err = hashes(-1)
	require.NoError(t, err)
	assert.Equal(t, rigoletto.Hash{}, hash)

	_, err = hashes(60)
	assert.ErrorIs(t, err, rigoletto.ErrRemoteFetch)
	assert.ErrorIs(t, err, injected)
}
