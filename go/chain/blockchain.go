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
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"

	"github.com/Fantom-foundation/Rigoletto/go/log"
	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	"github.com/Fantom-foundation/Rigoletto/go/state"
	"github.com/Fantom-foundation/Rigoletto/go/transaction"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru/v2"
)

var logger = log.NewLogger("chain")

// remoteBlockCacheSize is the number of remote blocks kept in memory.
const remoteBlockCacheSize = 1024

// DefaultSafeBlockDepth is the distance to the remote head of the default
// fork block, keeping forks clear of reorganizations.
const DefaultSafeBlockDepth = 64

// GenesisAccount is an account funded at the start of a chain. The address
// is derived from the private key if one is given.
type GenesisAccount struct {
	PrivateKey *ecdsa.PrivateKey
	Address    rigoletto.Address
	Balance    rigoletto.Value
}

func (a *GenesisAccount) address() rigoletto.Address {
	if a.PrivateKey != nil {
		return rigoletto.Address(crypto.PubkeyToAddress(a.PrivateKey.PublicKey))
	}
	return a.Address
}

// ForkOptions configures a chain forked from a remote chain.
type ForkOptions struct {
	Remote RemoteChain
	// Spec is the revision of blocks appended after the fork block.
	Spec rigoletto.Revision
	// BlockNumber is the last remote block. If nil, the remote head minus
	// DefaultSafeBlockDepth is used.
	BlockNumber *uint64
	// CacheDir holds fetched remote state across runs. In memory if empty.
	CacheDir string
	// Accounts are funded on top of the remote state.
	Accounts []GenesisAccount
	// HardforkOverrides replaces the activation schedule per chain id.
	HardforkOverrides map[uint64]Hardforks
}

// entry is a block held by the chain along with the state after it.
type entry struct {
	block           *Block
	state           *state.State
	receipts        []*transaction.Receipt
	totalDifficulty *big.Int
}

type txLocation struct {
	number uint64
	index  int
}

// Blockchain is a sequence of blocks, either starting at a local genesis
// block or continuing a remote chain. All methods are safe for concurrent
// use.
type Blockchain struct {
	mu      sync.RWMutex
	chainID uint64
	spec    rigoletto.Revision

	// local blocks, entries[i] has number base+i
	base    uint64
	entries []*entry
	byHash  map[rigoletto.Hash]uint64
	byTx    map[rigoletto.Hash]txLocation

	// only set for forked chains, serving blocks below base
	remote       RemoteChain
	hardforks    Hardforks
	fetchCache   *state.FetchCache
	remoteByNum  *lru.Cache[uint64, *Block]
	remoteByHash *lru.Cache[rigoletto.Hash, *Block]
}

// WithGenesisBlock creates a chain consisting of a genesis block funding the
// given accounts.
func WithGenesisBlock(
	chainID uint64,
	spec rigoletto.Revision,
	genesis BlockOptions,
	accounts []GenesisAccount,
) (*Blockchain, error) {
	if !spec.IsValid() {
		return nil, &rigoletto.ErrUnsupportedRevision{Revision: spec}
	}
	balances := make(map[rigoletto.Address]rigoletto.Value, len(accounts))
	for i := range accounts {
		balances[accounts[i].address()] = accounts[i].Balance
	}
	s := state.WithGenesisAccounts(balances)
	// A local state never reads remotely.
	root, err := s.StateRoot(context.Background())
	if err != nil {
		return nil, err
	}
	header := GenesisHeader(spec, root, genesis)
	if header.Number.Sign() != 0 {
		return nil, fmt.Errorf("%w: genesis block must have number 0, got %v", rigoletto.ErrInvalidBlockNumber, header.Number)
	}

	res := newBlockchain(chainID, spec, 0)
	res.append(&entry{
		block:           NewBlock(header, nil, nil, nil),
		state:           s,
		totalDifficulty: new(big.Int).Set(header.Difficulty),
	})
	logger.Debug().
		Uint64("chainId", chainID).
		Stringer("spec", spec).
		Int("accounts", len(accounts)).
		Msg("created genesis block")
	return res, nil
}

// Fork creates a chain continuing the given remote chain. Blocks up to and
// including the fork block are served by the remote.
func Fork(ctx context.Context, opts ForkOptions) (*Blockchain, error) {
	if !opts.Spec.IsValid() {
		return nil, &rigoletto.ErrUnsupportedRevision{Revision: opts.Spec}
	}
	remote := opts.Remote
	chainID, err := remote.ChainID(ctx)
	if err != nil {
		return nil, &rigoletto.RemoteFetchError{Op: "chain id", Err: err}
	}

	var number uint64
	if opts.BlockNumber != nil {
		number = *opts.BlockNumber
	} else {
		latest, err := remote.LatestBlockNumber(ctx)
		if err != nil {
			return nil, &rigoletto.RemoteFetchError{Op: "latest block number", Err: err}
		}
		number = latest - min(latest, DefaultSafeBlockDepth)
	}

	block, err := remote.BlockByNumber(ctx, number)
	if err != nil {
		return nil, &rigoletto.RemoteFetchError{Op: "block", BlockNumber: number, Err: err}
	}
	if block == nil {
		return nil, fmt.Errorf("%w: fork block %d not found on remote chain", rigoletto.ErrInvalidBlockNumber, number)
	}
	difficulty, err := remote.TotalDifficultyByHash(ctx, block.Hash())
	if err != nil {
		return nil, &rigoletto.RemoteFetchError{Op: "total difficulty", BlockNumber: number, Err: err}
	}
	if difficulty == nil {
		difficulty = new(big.Int).Set(block.Difficulty())
	}

	var cache *state.FetchCache
	if opts.CacheDir != "" {
		if cache, err = state.NewFetchCache(opts.CacheDir, state.DefaultFetchCacheSize); err != nil {
			return nil, err
		}
	} else {
		cache = state.NewMemoryFetchCache(state.DefaultFetchCacheSize)
	}

	overrides := make(map[rigoletto.Address]state.AccountOverride, len(opts.Accounts))
	for i := range opts.Accounts {
		balance := opts.Accounts[i].Balance
		overrides[opts.Accounts[i].address()] = state.AccountOverride{Balance: &balance}
	}
	s, err := state.ForkRemote(ctx, remote, number, overrides, state.ForkOptions{
		Cache:   cache,
		ChainID: chainID,
	})
	if err != nil {
		cache.Close()
		return nil, err
	}

	hardforks, found := opts.HardforkOverrides[chainID]
	if !found {
		hardforks, _ = knownHardforks(chainID)
	}

	res := newBlockchain(chainID, opts.Spec, number)
	res.remote = remote
	res.hardforks = hardforks
	res.fetchCache = cache
	res.remoteByNum, _ = lru.New[uint64, *Block](remoteBlockCacheSize)
	res.remoteByHash, _ = lru.New[rigoletto.Hash, *Block](remoteBlockCacheSize)
	res.append(&entry{
		block:           block,
		state:           s,
		totalDifficulty: difficulty,
	})
	logger.Debug().
		Uint64("chainId", chainID).
		Uint64("block", number).
		Stringer("spec", opts.Spec).
		Msg("forked remote chain")
	return res, nil
}

func newBlockchain(chainID uint64, spec rigoletto.Revision, base uint64) *Blockchain {
	return &Blockchain{
		chainID: chainID,
		spec:    spec,
		base:    base,
		byHash:  map[rigoletto.Hash]uint64{},
		byTx:    map[rigoletto.Hash]txLocation{},
	}
}

// Close releases the resources of a forked chain. Remote chains providing a
// Close method are closed as well.
func (b *Blockchain) Close() error {
	if closer, ok := b.remote.(interface{ Close() }); ok {
		closer.Close()
	}
	if b.fetchCache != nil {
		return b.fetchCache.Close()
	}
	return nil
}

func (b *Blockchain) ChainID() uint64 {
	return b.chainID
}

// SpecID returns the revision of new blocks.
func (b *Blockchain) SpecID() rigoletto.Revision {
	return b.spec
}

// IsForked reports whether the chain continues a remote chain.
func (b *Blockchain) IsForked() bool {
	return b.remote != nil
}

// ForkBlockNumber returns the last block of the remote chain.
func (b *Blockchain) ForkBlockNumber() (uint64, bool) {
	return b.base, b.remote != nil
}

func (b *Blockchain) LastBlock() *Block {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.head().block
}

func (b *Blockchain) LastBlockNumber() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.headNumber()
}

// SpecAtBlockNumber returns the revision of the block with the given number.
// Remote blocks follow the activation schedule of the remote chain, all
// later blocks the revision of the chain.
func (b *Blockchain) SpecAtBlockNumber(number uint64) (rigoletto.Revision, error) {
	if b.remote == nil || number > b.base {
		return b.spec, nil
	}
	if len(b.hardforks) == 0 {
		return 0, fmt.Errorf("no hardfork activations known for chain %d", b.chainID)
	}
	res, found := b.hardforks.At(number)
	if !found {
		return 0, fmt.Errorf("no hardfork active at block %d of chain %d", number, b.chainID)
	}
	return res, nil
}

// BlockByNumber returns nil if there is no such block.
func (b *Blockchain) BlockByNumber(ctx context.Context, number uint64) (*Block, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if cur := b.local(number); cur != nil {
		return cur.block, nil
	}
	if number < b.base {
		return b.remoteBlockByNumber(ctx, number)
	}
	return nil, nil
}

// BlockByHash returns nil if there is no such block.
func (b *Blockchain) BlockByHash(ctx context.Context, hash rigoletto.Hash) (*Block, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if number, found := b.byHash[hash]; found {
		return b.local(number).block, nil
	}
	return b.remoteBlockByHash(ctx, hash)
}

// BlockByTransactionHash returns the block including the given transaction,
// nil if there is none.
func (b *Blockchain) BlockByTransactionHash(ctx context.Context, hash rigoletto.Hash) (*Block, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if location, found := b.byTx[hash]; found {
		return b.local(location.number).block, nil
	}
	receipt, err := b.remoteReceipt(ctx, hash)
	if err != nil || receipt == nil {
		return nil, err
	}
	if cur := b.local(receipt.BlockNumber); cur != nil {
		return cur.block, nil
	}
	return b.remoteBlockByNumber(ctx, receipt.BlockNumber)
}

// ReceiptByTransactionHash returns nil if the transaction is not included.
func (b *Blockchain) ReceiptByTransactionHash(ctx context.Context, hash rigoletto.Hash) (*transaction.Receipt, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if location, found := b.byTx[hash]; found {
		receipts := b.local(location.number).receipts
		if location.index < len(receipts) {
			return receipts[location.index], nil
		}
		return nil, nil
	}
	return b.remoteReceipt(ctx, hash)
}

// TotalDifficultyByHash returns the sum of the difficulties of all blocks up
// to the given one, nil for unknown blocks.
func (b *Blockchain) TotalDifficultyByHash(ctx context.Context, hash rigoletto.Hash) (*big.Int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if number, found := b.byHash[hash]; found {
		return new(big.Int).Set(b.local(number).totalDifficulty), nil
	}
	block, err := b.remoteBlockByHash(ctx, hash)
	if err != nil || block == nil {
		return nil, err
	}
	res, err := b.remote.TotalDifficultyByHash(ctx, hash)
	if err != nil {
		return nil, &rigoletto.RemoteFetchError{Op: "total difficulty", BlockNumber: block.Number(), Err: err}
	}
	return res, nil
}

// StateAtBlockNumber returns a copy of the state after the given block.
func (b *Blockchain) StateAtBlockNumber(ctx context.Context, number uint64) (*state.State, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if cur := b.local(number); cur != nil {
		return cur.state.Clone(), nil
	}
	if number >= b.base {
		return nil, fmt.Errorf("%w: block %d is beyond head %d", rigoletto.ErrInvalidBlockNumber, number, b.headNumber())
	}
	return state.ForkRemote(ctx, b.remote, number, nil, state.ForkOptions{
		Cache:   b.fetchCache,
		ChainID: b.chainID,
	})
}

// InsertBlock appends a block to the head of the chain. The chain takes
// ownership of the state and receipts.
func (b *Blockchain) InsertBlock(block *Block, s *state.State, receipts []*transaction.Receipt) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	head := b.head()
	if block.ParentHash() != head.block.Hash() {
		return fmt.Errorf("%w: %v is not the head of the chain", rigoletto.ErrUnknownParent, block.ParentHash())
	}
	if want, got := b.headNumber()+1, block.Number(); want != got {
		return fmt.Errorf("%w: expected %d, got %d", rigoletto.ErrInvalidBlockNumber, want, got)
	}
	b.append(&entry{
		block:           block,
		state:           s,
		receipts:        receipts,
		totalDifficulty: new(big.Int).Add(head.totalDifficulty, block.Difficulty()),
	})
	logger.Debug().
		Uint64("number", block.Number()).
		Stringer("hash", block.Hash()).
		Int("transactions", len(block.Transactions)).
		Msg("inserted block")
	return nil
}

// ReserveBlocks appends count empty blocks with timestamps spaced by
// interval seconds. Their state is the state of the current head.
func (b *Blockchain) ReserveBlocks(count uint64, interval uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for range count {
		head := b.head()
		header := NextHeader(b.chainID, b.spec, head.block.Header, head.block.Timestamp()+interval)
		block := NewBlock(header, nil, nil, withdrawalsOf(b.spec))
		b.append(&entry{
			block:           block,
			state:           head.state,
			totalDifficulty: new(big.Int).Add(head.totalDifficulty, block.Difficulty()),
		})
	}
	logger.Debug().
		Uint64("count", count).
		Uint64("interval", interval).
		Uint64("head", b.headNumber()).
		Msg("reserved blocks")
}

// RevertToBlock removes all blocks after the given one. Remote blocks can
// not be removed.
func (b *Blockchain) RevertToBlock(number uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if number < b.base || number > b.headNumber() {
		return fmt.Errorf("%w: cannot revert to %d, local blocks are %d..%d",
			rigoletto.ErrInvalidBlockNumber, number, b.base, b.headNumber())
	}
	keep := int(number-b.base) + 1
	for _, removed := range b.entries[keep:] {
		delete(b.byHash, removed.block.Hash())
		for _, tx := range removed.block.Transactions {
			delete(b.byTx, tx.Hash())
		}
	}
	clear(b.entries[keep:])
	b.entries = b.entries[:keep]
	logger.Debug().Uint64("head", number).Msg("reverted chain")
	return nil
}

func (b *Blockchain) append(e *entry) {
	number := e.block.Number()
	b.entries = append(b.entries, e)
	b.byHash[e.block.Hash()] = number
	// Transactions of the fork block are resolved through the remote.
	if len(b.entries) == 1 && b.remote != nil {
		return
	}
	for i, tx := range e.block.Transactions {
		b.byTx[tx.Hash()] = txLocation{number: number, index: i}
	}
}

func (b *Blockchain) head() *entry {
	return b.entries[len(b.entries)-1]
}

func (b *Blockchain) headNumber() uint64 {
	return b.base + uint64(len(b.entries)) - 1
}

func (b *Blockchain) local(number uint64) *entry {
	if number < b.base || number > b.headNumber() {
		return nil
	}
	return b.entries[number-b.base]
}

func (b *Blockchain) remoteBlockByNumber(ctx context.Context, number uint64) (*Block, error) {
	if b.remote == nil || number >= b.base {
		return nil, nil
	}
	if block, found := b.remoteByNum.Get(number); found {
		return block, nil
	}
	block, err := b.remote.BlockByNumber(ctx, number)
	if err != nil {
		return nil, &rigoletto.RemoteFetchError{Op: "block", BlockNumber: number, Err: err}
	}
	if block != nil {
		b.cacheRemote(block)
	}
	return block, nil
}

func (b *Blockchain) remoteBlockByHash(ctx context.Context, hash rigoletto.Hash) (*Block, error) {
	if b.remote == nil {
		return nil, nil
	}
	if block, found := b.remoteByHash.Get(hash); found {
		return block, nil
	}
	block, err := b.remote.BlockByHash(ctx, hash)
	if err != nil {
		return nil, &rigoletto.RemoteFetchError{Op: "block by hash", BlockNumber: b.base, Err: err}
	}
	// Remote blocks after the fork are not part of this chain.
	if block == nil || block.Number() >= b.base {
		return nil, nil
	}
	b.cacheRemote(block)
	return block, nil
}

func (b *Blockchain) remoteReceipt(ctx context.Context, hash rigoletto.Hash) (*transaction.Receipt, error) {
	if b.remote == nil {
		return nil, nil
	}
	receipt, err := b.remote.ReceiptByTransactionHash(ctx, hash)
	if err != nil {
		return nil, &rigoletto.RemoteFetchError{Op: "receipt", BlockNumber: b.base, Err: err}
	}
	if receipt == nil || receipt.BlockNumber > b.base {
		return nil, nil
	}
	return receipt, nil
}

func (b *Blockchain) cacheRemote(block *Block) {
	b.remoteByNum.Add(block.Number(), block)
	b.remoteByHash.Add(block.Hash(), block)
	logger.Debug().Uint64("number", block.Number()).Msg("fetched remote block")
}

// withdrawalsOf returns the withdrawals of an empty block.
func withdrawalsOf(revision rigoletto.Revision) []*types.Withdrawal {
	if revision.IsAtLeast(rigoletto.Shanghai) {
		return []*types.Withdrawal{}
	}
	return nil
}
