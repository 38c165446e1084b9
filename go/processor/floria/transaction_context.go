// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package floria

import (
	"bytes"
	"context"

	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	"github.com/Fantom-foundation/Rigoletto/go/state"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// transactionContext is the view of a transaction on the state. All
// modifications are buffered and only written to the underlying state by
// commit. Every modification registers an undo operation to support nested
// snapshots.
//
// Reads falling through to a remote source may fail. Since the world state
// interface has no error channel, the first failure is retained and reads
// return zero values from then on. The processor checks err after every
// call frame and aborts the transaction.
type transactionContext struct {
	ctx         context.Context
	state       *state.State
	revision    rigoletto.Revision
	blockHashes func(int64) (rigoletto.Hash, error)

	accounts  map[rigoletto.Address]*accountState
	storage   map[slot]*slotState
	transient map[slot]rigoletto.Word

	accessedAccounts map[rigoletto.Address]struct{}
	accessedSlots    map[slot]struct{}

	logs           []rigoletto.Log
	selfDestructed map[rigoletto.Address]struct{}
	created        map[rigoletto.Address]struct{}
	touched        map[rigoletto.Address]struct{}

	undo []func()
	err  error
}

type slot struct {
	address rigoletto.Address
	key     rigoletto.Key
}

type accountState struct {
	exists  bool
	balance rigoletto.Value
	nonce   uint64
	code    *rigoletto.Bytecode
	// cleared is set if the storage of the account was reset in this
	// transaction, making the stored slots invisible.
	cleared bool
}

type slotState struct {
	original rigoletto.Word
	current  rigoletto.Word
}

func newTransactionContext(
	ctx context.Context,
	s *state.State,
	revision rigoletto.Revision,
	blockHashes func(int64) (rigoletto.Hash, error),
) *transactionContext {
	return &transactionContext{
		ctx:              ctx,
		state:            s,
		revision:         revision,
		blockHashes:      blockHashes,
		accounts:         map[rigoletto.Address]*accountState{},
		storage:          map[slot]*slotState{},
		transient:        map[slot]rigoletto.Word{},
		accessedAccounts: map[rigoletto.Address]struct{}{},
		accessedSlots:    map[slot]struct{}{},
		selfDestructed:   map[rigoletto.Address]struct{}{},
		created:          map[rigoletto.Address]struct{}{},
		touched:          map[rigoletto.Address]struct{}{},
	}
}

func (c *transactionContext) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

// account returns the buffered state of an account, loading it on first use.
func (c *transactionContext) account(address rigoletto.Address) *accountState {
	if res, found := c.accounts[address]; found {
		return res
	}
	if c.err != nil {
		return &accountState{}
	}
	loaded, err := c.state.Get(c.ctx, address)
	if err != nil {
		c.fail(err)
		return &accountState{}
	}
	res := &accountState{}
	if loaded != nil {
		res.exists = true
		res.balance = loaded.Balance
		res.nonce = loaded.Nonce
		res.code = loaded.Code
	}
	c.accounts[address] = res
	return res
}

// modify applies fn to the state of an account and records the previous
// state for a snapshot restore. The modified account exists afterwards.
func (c *transactionContext) modify(address rigoletto.Address, fn func(*accountState)) {
	current := c.account(address)
	backup := *current
	c.undo = append(c.undo, func() { *current = backup })
	current.exists = true
	fn(current)
	c.touch(address)
}

// touch marks an account as touched in the sense of EIP-161.
func (c *transactionContext) touch(address rigoletto.Address) {
	if _, found := c.touched[address]; found {
		return
	}
	c.touched[address] = struct{}{}
	c.undo = append(c.undo, func() { delete(c.touched, address) })
}

func (c *transactionContext) AccountExists(address rigoletto.Address) bool {
	return c.account(address).exists
}

func (c *transactionContext) isEmpty(address rigoletto.Address) bool {
	a := c.account(address)
	return a.nonce == 0 && a.balance.IsZero() && a.code.Len() == 0
}

func (c *transactionContext) GetBalance(address rigoletto.Address) rigoletto.Value {
	return c.account(address).balance
}

func (c *transactionContext) SetBalance(address rigoletto.Address, value rigoletto.Value) {
	c.modify(address, func(a *accountState) { a.balance = value })
}

func (c *transactionContext) GetNonce(address rigoletto.Address) uint64 {
	return c.account(address).nonce
}

func (c *transactionContext) SetNonce(address rigoletto.Address, nonce uint64) {
	c.modify(address, func(a *accountState) { a.nonce = nonce })
}

func (c *transactionContext) GetCode(address rigoletto.Address) rigoletto.Code {
	return c.account(address).code.Code()
}

// GetCodeHash returns the zero hash for accounts that do not exist.
func (c *transactionContext) GetCodeHash(address rigoletto.Address) rigoletto.Hash {
	a := c.account(address)
	if !a.exists {
		return rigoletto.Hash{}
	}
	return a.code.Hash()
}

func (c *transactionContext) GetCodeSize(address rigoletto.Address) int {
	return c.account(address).code.Len()
}

func (c *transactionContext) SetCode(address rigoletto.Address, code rigoletto.Code) {
	var bytecode *rigoletto.Bytecode
	if len(code) > 0 {
		bytecode = rigoletto.NewBytecode(code)
	}
	c.modify(address, func(a *accountState) { a.code = bytecode })
}

// slot returns the buffered state of a storage slot, loading it on first use.
func (c *transactionContext) slot(address rigoletto.Address, key rigoletto.Key) *slotState {
	id := slot{address, key}
	if res, found := c.storage[id]; found {
		return res
	}
	res := &slotState{}
	if c.account(address).cleared || c.err != nil {
		return res
	}
	value, err := c.state.GetStorage(c.ctx, address, key)
	if err != nil {
		c.fail(err)
		return res
	}
	res.original = value
	res.current = value
	c.storage[id] = res
	return res
}

func (c *transactionContext) GetStorage(address rigoletto.Address, key rigoletto.Key) rigoletto.Word {
	return c.slot(address, key).current
}

func (c *transactionContext) GetCommittedStorage(address rigoletto.Address, key rigoletto.Key) rigoletto.Word {
	return c.slot(address, key).original
}

func (c *transactionContext) SetStorage(address rigoletto.Address, key rigoletto.Key, value rigoletto.Word) rigoletto.StorageStatus {
	id := slot{address, key}
	current := c.slot(address, key)
	c.storage[id] = current
	status := rigoletto.GetStorageStatus(current.original, current.current, value)
	previous := current.current
	c.undo = append(c.undo, func() { current.current = previous })
	current.current = value
	return status
}

func (c *transactionContext) GetTransientStorage(address rigoletto.Address, key rigoletto.Key) rigoletto.Word {
	return c.transient[slot{address, key}]
}

func (c *transactionContext) SetTransientStorage(address rigoletto.Address, key rigoletto.Key, value rigoletto.Word) {
	id := slot{address, key}
	previous, found := c.transient[id]
	c.undo = append(c.undo, func() {
		if found {
			c.transient[id] = previous
		} else {
			delete(c.transient, id)
		}
	})
	c.transient[id] = value
}

// createAccount resets an account for a contract deployment. Storage left by
// a previous incarnation becomes invisible.
func (c *transactionContext) createAccount(address rigoletto.Address) {
	current := c.account(address)
	backup := *current
	previousSlots := map[slot]*slotState{}
	for id, value := range c.storage {
		if id.address == address {
			previousSlots[id] = value
			delete(c.storage, id)
		}
	}
	_, wasCreated := c.created[address]
	c.undo = append(c.undo, func() {
		*current = backup
		for id := range c.storage {
			if id.address == address {
				delete(c.storage, id)
			}
		}
		for id, value := range previousSlots {
			c.storage[id] = value
		}
		if !wasCreated {
			delete(c.created, address)
		}
	})
	*current = accountState{exists: true, balance: current.balance, cleared: true}
	c.created[address] = struct{}{}
	c.touch(address)
}

func (c *transactionContext) SelfDestruct(address rigoletto.Address, beneficiary rigoletto.Address) bool {
	balance := c.GetBalance(address)
	_, createdInTransaction := c.created[address]

	// Since EIP-6780 only contracts created in the same transaction are
	// removed. Otherwise only the balance is moved.
	if c.revision >= rigoletto.Cancun && !createdInTransaction {
		if address != beneficiary {
			c.SetBalance(beneficiary, rigoletto.Add(c.GetBalance(beneficiary), balance))
			c.SetBalance(address, rigoletto.Value{})
		}
		return false
	}

	if address != beneficiary {
		c.SetBalance(beneficiary, rigoletto.Add(c.GetBalance(beneficiary), balance))
	}
	c.SetBalance(address, rigoletto.Value{})

	if _, found := c.selfDestructed[address]; found {
		return false
	}
	c.selfDestructed[address] = struct{}{}
	c.undo = append(c.undo, func() { delete(c.selfDestructed, address) })
	return true
}

func (c *transactionContext) HasSelfDestructed(address rigoletto.Address) bool {
	_, found := c.selfDestructed[address]
	return found
}

func (c *transactionContext) CreateSnapshot() rigoletto.Snapshot {
	return rigoletto.Snapshot(len(c.undo))
}

func (c *transactionContext) RestoreSnapshot(snapshot rigoletto.Snapshot) {
	id := int(snapshot)
	for len(c.undo) > id {
		c.undo[len(c.undo)-1]()
		c.undo = c.undo[:len(c.undo)-1]
	}
}

func (c *transactionContext) AccessAccount(address rigoletto.Address) rigoletto.AccessStatus {
	if _, found := c.accessedAccounts[address]; found {
		return rigoletto.WarmAccess
	}
	c.accessedAccounts[address] = struct{}{}
	c.undo = append(c.undo, func() { delete(c.accessedAccounts, address) })
	return rigoletto.ColdAccess
}

func (c *transactionContext) AccessStorage(address rigoletto.Address, key rigoletto.Key) rigoletto.AccessStatus {
	id := slot{address, key}
	if _, found := c.accessedSlots[id]; found {
		return rigoletto.WarmAccess
	}
	c.accessedSlots[id] = struct{}{}
	c.undo = append(c.undo, func() { delete(c.accessedSlots, id) })
	return rigoletto.ColdAccess
}

func (c *transactionContext) IsAddressInAccessList(address rigoletto.Address) bool {
	_, found := c.accessedAccounts[address]
	return found
}

func (c *transactionContext) IsSlotInAccessList(address rigoletto.Address, key rigoletto.Key) (bool, bool) {
	_, slotPresent := c.accessedSlots[slot{address, key}]
	return c.IsAddressInAccessList(address), slotPresent
}

func (c *transactionContext) EmitLog(log rigoletto.Log) {
	size := len(c.logs)
	c.undo = append(c.undo, func() { c.logs = c.logs[:size] })
	c.logs = append(c.logs, log)
}

func (c *transactionContext) GetLogs() []rigoletto.Log {
	return slices.Clone(c.logs)
}

func (c *transactionContext) GetBlockHash(number int64) rigoletto.Hash {
	if c.blockHashes == nil || c.err != nil {
		return rigoletto.Hash{}
	}
	hash, err := c.blockHashes(number)
	if err != nil {
		c.fail(err)
		return rigoletto.Hash{}
	}
	return hash
}

// finalize removes self-destructed accounts and, since EIP-161, touched
// accounts left empty. It is called once at the end of the transaction.
func (c *transactionContext) finalize() {
	for address := range c.selfDestructed {
		c.accounts[address] = &accountState{cleared: true}
	}
	if c.revision >= rigoletto.SpuriousDragon {
		for address := range c.touched {
			if c.isEmpty(address) {
				c.accounts[address] = &accountState{cleared: true}
			}
		}
	}
}

// commit writes all buffered modifications into the underlying state.
func (c *transactionContext) commit() error {
	if c.err != nil {
		return c.err
	}
	dirty := map[rigoletto.Address]struct{}{}
	maps.Copy(dirty, c.touched)
	maps.Copy(dirty, c.selfDestructed)
	addresses := maps.Keys(dirty)
	slices.SortFunc(addresses, func(a, b rigoletto.Address) int {
		return bytes.Compare(a[:], b[:])
	})
	for _, address := range addresses {
		account := c.account(address)
		if account.cleared || !account.exists {
			if _, err := c.state.Remove(c.ctx, address); err != nil {
				return err
			}
		}
		if account.exists {
			c.state.Put(address, state.Account{
				Balance: account.balance,
				Nonce:   account.nonce,
				Code:    account.code,
			})
		}
	}
	for id, value := range c.storage {
		account := c.account(id.address)
		switch {
		case !account.exists:
			continue
		case account.cleared && value.current.IsZero():
			continue
		case account.cleared || value.current != value.original:
			c.state.SetStorage(id.address, id.key, value.current)
		}
	}
	return c.err
}
