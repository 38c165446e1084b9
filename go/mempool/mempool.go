// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package mempool

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Fantom-foundation/Rigoletto/go/log"
	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	"github.com/Fantom-foundation/Rigoletto/go/state"
	"github.com/Fantom-foundation/Rigoletto/go/transaction"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

var logger = log.NewLogger("mempool")

// OrderedTransaction is a pool entry tagged with its insertion order.
type OrderedTransaction struct {
	Transaction *transaction.Pending
	OrderID     uint64
}

// MemPool holds transactions waiting for inclusion in a block. Per sender,
// transactions with nonces contiguous to the account nonce are pending, all
// others are queued as future transactions. Every sender has at most one
// transaction per nonce.
type MemPool struct {
	mu            sync.RWMutex
	blockGasLimit uint64
	nextOrderID   uint64
	// Both lists of a sender are sorted by nonce. The pending list of a
	// sender starts at its account nonce and has no gaps.
	pending map[rigoletto.Address][]*OrderedTransaction
	future  map[rigoletto.Address][]*OrderedTransaction
	byHash  map[rigoletto.Hash]*OrderedTransaction
}

func New(blockGasLimit uint64) *MemPool {
	return &MemPool{
		blockGasLimit: blockGasLimit,
		pending:       map[rigoletto.Address][]*OrderedTransaction{},
		future:        map[rigoletto.Address][]*OrderedTransaction{},
		byHash:        map[rigoletto.Hash]*OrderedTransaction{},
	}
}

func (p *MemPool) BlockGasLimit() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.blockGasLimit
}

// SetBlockGasLimit changes the gas limit of the pool and drops all
// transactions exceeding it. Pending transactions following a dropped one
// are demoted.
func (p *MemPool) SetBlockGasLimit(ctx context.Context, s *state.State, limit uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.blockGasLimit = limit
	for _, entry := range maps.Values(p.byHash) {
		if entry.Transaction.Transaction().GasLimit() > limit {
			p.remove(entry)
		}
	}
	return p.update(ctx, s)
}

// AddTransaction inserts a transaction validated by the caller into the pool.
// A transaction with the nonce of an existing entry of the same sender
// replaces it unless its priority fee is lower.
func (p *MemPool) AddTransaction(ctx context.Context, s *state.State, tx *transaction.Pending) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	sender := tx.Caller()
	account, err := s.Get(ctx, sender)
	if err != nil {
		return err
	}
	var nonce uint64
	var balance rigoletto.Value
	if account != nil {
		nonce, balance = account.Nonce, account.Balance
	}
	signed := tx.Transaction()
	if signed.Nonce() < nonce {
		return fmt.Errorf("%w: address %v, tx: %d state: %d", rigoletto.ErrNonceTooLow, sender, signed.Nonce(), nonce)
	}
	if signed.GasLimit() > p.blockGasLimit {
		return fmt.Errorf("%w: have %d, limit %d", rigoletto.ErrExceedsBlockGasLimit, signed.GasLimit(), p.blockGasLimit)
	}
	old := p.find(sender, signed.Nonce())
	if old != nil {
		oldFee := old.Transaction.Transaction().MaxPriorityFeePerGas()
		if signed.MaxPriorityFeePerGas().Cmp(oldFee) < 0 {
			return fmt.Errorf("%w: priority fee %v below %v", rigoletto.ErrReplacementUnderpriced, signed.MaxPriorityFeePerGas(), oldFee)
		}
	}
	if cost, ok := transaction.UpfrontCost(signed); !ok || balance.Cmp(cost) < 0 {
		return fmt.Errorf("%w: address %v have %v want %v", rigoletto.ErrInsufficientFunds, sender, balance, cost)
	}

	entry := &OrderedTransaction{Transaction: tx, OrderID: p.nextOrderID}
	p.nextOrderID++
	p.byHash[tx.Hash()] = entry

	if old != nil {
		delete(p.byHash, old.Transaction.Hash())
		replace(p.pending[sender], old, entry)
		replace(p.future[sender], old, entry)
		logger.Debug().Stringer("hash", tx.Hash()).Stringer("replaced", old.Transaction.Hash()).Msg("replaced transaction")
		return nil
	}

	pending := p.pending[sender]
	if signed.Nonce() == nonce+uint64(len(pending)) {
		p.pending[sender] = append(pending, entry)
		p.promote(sender)
		logger.Debug().Stringer("hash", tx.Hash()).Uint64("nonce", signed.Nonce()).Msg("added pending transaction")
	} else {
		p.future[sender] = insertSorted(p.future[sender], entry)
		logger.Debug().Stringer("hash", tx.Hash()).Uint64("nonce", signed.Nonce()).Msg("added future transaction")
	}
	return nil
}

// RemoveTransaction removes the transaction with the given hash. Pending
// transactions of the same sender with higher nonces become future
// transactions. The result reports whether the transaction was found.
func (p *MemPool) RemoveTransaction(hash rigoletto.Hash) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, found := p.byHash[hash]
	if !found {
		return false
	}
	p.remove(entry)
	return true
}

func (p *MemPool) remove(entry *OrderedTransaction) {
	sender := entry.Transaction.Caller()
	delete(p.byHash, entry.Transaction.Hash())

	pending := p.pending[sender]
	if i := slices.Index(pending, entry); i >= 0 {
		demoted := pending[i+1:]
		p.setList(p.pending, sender, pending[:i:i])
		for _, cur := range demoted {
			p.future[sender] = insertSorted(p.future[sender], cur)
		}
		logger.Debug().Stringer("hash", entry.Transaction.Hash()).Int("demoted", len(demoted)).Msg("removed pending transaction")
		return
	}
	future := p.future[sender]
	if i := slices.Index(future, entry); i >= 0 {
		p.setList(p.future, sender, slices.Delete(slices.Clone(future), i, i+1))
	}
}

// Update re-partitions the pool after the state changed. Transactions
// with nonces below the account nonce or whose upfront cost exceeds the
// balance of the sender are dropped.
func (p *MemPool) Update(ctx context.Context, s *state.State) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.update(ctx, s)
}

func (p *MemPool) update(ctx context.Context, s *state.State) error {
	senders := maps.Keys(p.pending)
	for sender := range p.future {
		if _, found := p.pending[sender]; !found {
			senders = append(senders, sender)
		}
	}
	sortAddresses(senders)

	for _, sender := range senders {
		account, err := s.Get(ctx, sender)
		if err != nil {
			return err
		}
		var nonce uint64
		var balance rigoletto.Value
		if account != nil {
			nonce, balance = account.Nonce, account.Balance
		}

		all := append(slices.Clone(p.pending[sender]), p.future[sender]...)
		kept := all[:0]
		for _, entry := range all {
			tx := entry.Transaction.Transaction()
			cost, ok := transaction.UpfrontCost(tx)
			if tx.Nonce() < nonce || !ok || balance.Cmp(cost) < 0 {
				delete(p.byHash, entry.Transaction.Hash())
				logger.Debug().Stringer("hash", entry.Transaction.Hash()).Msg("dropped transaction")
				continue
			}
			kept = append(kept, entry)
		}
		sort.Slice(kept, func(i, j int) bool { return nonceOf(kept[i]) < nonceOf(kept[j]) })

		split := 0
		for split < len(kept) && nonceOf(kept[split]) == nonce+uint64(split) {
			split++
		}
		p.setList(p.pending, sender, kept[:split:split])
		p.setList(p.future, sender, slices.Clone(kept[split:]))
	}
	return nil
}

// promote moves future transactions closing the nonce gap to the pending
// list of the sender.
func (p *MemPool) promote(sender rigoletto.Address) {
	pending, future := p.pending[sender], p.future[sender]
	next := nonceOf(pending[len(pending)-1]) + 1
	promoted := 0
	for promoted < len(future) && nonceOf(future[promoted]) == next {
		pending = append(pending, future[promoted])
		next++
		promoted++
	}
	if promoted > 0 {
		logger.Debug().Stringer("sender", sender).Int("count", promoted).Msg("promoted future transactions")
	}
	p.pending[sender] = pending
	p.setList(p.future, sender, slices.Clone(future[promoted:]))
}

func (p *MemPool) find(sender rigoletto.Address, nonce uint64) *OrderedTransaction {
	for _, list := range [][]*OrderedTransaction{p.pending[sender], p.future[sender]} {
		for _, entry := range list {
			if nonceOf(entry) == nonce {
				return entry
			}
		}
	}
	return nil
}

func (p *MemPool) setList(lists map[rigoletto.Address][]*OrderedTransaction, sender rigoletto.Address, list []*OrderedTransaction) {
	if len(list) == 0 {
		delete(lists, sender)
	} else {
		lists[sender] = list
	}
}

// Transactions returns all transactions in the pool ordered by insertion.
func (p *MemPool) Transactions() []OrderedTransaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	res := make([]OrderedTransaction, 0, len(p.byHash))
	for _, entry := range p.byHash {
		res = append(res, *entry)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].OrderID < res[j].OrderID })
	return res
}

// PendingTransactions returns the pending transactions per sender in nonce
// order.
func (p *MemPool) PendingTransactions() map[rigoletto.Address][]OrderedTransaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return copyLists(p.pending)
}

// FutureTransactions returns the future transactions per sender in nonce
// order.
func (p *MemPool) FutureTransactions() map[rigoletto.Address][]OrderedTransaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return copyLists(p.future)
}

// LastPendingNonce returns the highest nonce of the pending transactions of
// the given sender, false if there are none.
func (p *MemPool) LastPendingNonce(address rigoletto.Address) (uint64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pending := p.pending[address]
	if len(pending) == 0 {
		return 0, false
	}
	return nonceOf(pending[len(pending)-1]), true
}

func (p *MemPool) HasPendingTransactions() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.pending) > 0
}

func (p *MemPool) HasFutureTransactions() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.future) > 0
}

func (p *MemPool) TransactionByHash(hash rigoletto.Hash) (OrderedTransaction, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	entry, found := p.byHash[hash]
	if !found {
		return OrderedTransaction{}, false
	}
	return *entry, true
}

// DeepClone creates an independent copy of the pool. Transactions are
// immutable and shared.
func (p *MemPool) DeepClone() *MemPool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	res := New(p.blockGasLimit)
	res.nextOrderID = p.nextOrderID
	clones := make(map[*OrderedTransaction]*OrderedTransaction, len(p.byHash))
	for hash, entry := range p.byHash {
		clone := *entry
		clones[entry] = &clone
		res.byHash[hash] = &clone
	}
	for sender, list := range p.pending {
		res.pending[sender] = cloneList(list, clones)
	}
	for sender, list := range p.future {
		res.future[sender] = cloneList(list, clones)
	}
	return res
}

func cloneList(list []*OrderedTransaction, clones map[*OrderedTransaction]*OrderedTransaction) []*OrderedTransaction {
	res := make([]*OrderedTransaction, len(list))
	for i, entry := range list {
		res[i] = clones[entry]
	}
	return res
}

func copyLists(lists map[rigoletto.Address][]*OrderedTransaction) map[rigoletto.Address][]OrderedTransaction {
	res := make(map[rigoletto.Address][]OrderedTransaction, len(lists))
	for sender, list := range lists {
		entries := make([]OrderedTransaction, len(list))
		for i, entry := range list {
			entries[i] = *entry
		}
		res[sender] = entries
	}
	return res
}

func replace(list []*OrderedTransaction, old, replacement *OrderedTransaction) {
	if i := slices.Index(list, old); i >= 0 {
		list[i] = replacement
	}
}

func insertSorted(list []*OrderedTransaction, entry *OrderedTransaction) []*OrderedTransaction {
	i := sort.Search(len(list), func(i int) bool { return nonceOf(list[i]) >= nonceOf(entry) })
	return slices.Insert(list, i, entry)
}

func nonceOf(entry *OrderedTransaction) uint64 {
	return entry.Transaction.Nonce()
}

func sortAddresses(addresses []rigoletto.Address) {
	sort.Slice(addresses, func(i, j int) bool {
		return string(addresses[i][:]) < string(addresses[j][:])
	})
}
