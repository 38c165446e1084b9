// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package state

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// maxLayerDepth is the length of a layer chain above which a clone flattens
// the chain into a single layer.
const maxLayerDepth = 32

// State is the account state store. Clones share all data written before the
// clone and diverge afterwards (copy-on-write). A forked state falls back to
// a remote source for accounts and slots never written locally.
//
// State is safe for concurrent use. Mutations are serialized, reads may run
// in parallel. Independent clones do not synchronize with each other.
type State struct {
	writeMu sync.Mutex   // serializes mutations, including their remote reads
	mu      sync.RWMutex // protects top
	top     *layer

	codes  *codeStore
	remote *remote // nil unless forked
	nextID *atomic.Uint64
}

// accountEntry is the local record of an address. A nil account marks a
// removed account. The storage id identifies the incarnation of the account,
// so re-creating an account does not resurrect the storage of its
// predecessor. Storage id 0 is the incarnation found in the remote source.
type accountEntry struct {
	account   *Account
	storageID uint64
}

type slotKey struct {
	address   rigoletto.Address
	storageID uint64
	key       rigoletto.Key
}

// layer is a set of changes on top of a parent layer. Layers are immutable
// once a child has been created on top of them.
type layer struct {
	parent   *layer
	depth    int
	accounts map[rigoletto.Address]accountEntry
	storage  map[slotKey]rigoletto.Word
}

func newLayer(parent *layer) *layer {
	depth := 0
	if parent != nil {
		depth = parent.depth + 1
	}
	return &layer{
		parent:   parent,
		depth:    depth,
		accounts: map[rigoletto.Address]accountEntry{},
		storage:  map[slotKey]rigoletto.Word{},
	}
}

func (l *layer) isEmpty() bool {
	return len(l.accounts) == 0 && len(l.storage) == 0
}

func (l *layer) lookupAccount(address rigoletto.Address) (accountEntry, bool) {
	for cur := l; cur != nil; cur = cur.parent {
		if entry, found := cur.accounts[address]; found {
			return entry, true
		}
	}
	return accountEntry{}, false
}

func (l *layer) lookupSlot(key slotKey) (rigoletto.Word, bool) {
	for cur := l; cur != nil; cur = cur.parent {
		if value, found := cur.storage[key]; found {
			return value, true
		}
	}
	return rigoletto.Word{}, false
}

// chain lists the layers from the bottom to l.
func (l *layer) chain() []*layer {
	res := make([]*layer, l.depth+1)
	for cur := l; cur != nil; cur = cur.parent {
		res[cur.depth] = cur
	}
	return res
}

// flatten merges the layer chain ending in l into a single layer.
func (l *layer) flatten() *layer {
	res := newLayer(nil)
	for _, cur := range l.chain() {
		maps.Copy(res.accounts, cur.accounts)
		maps.Copy(res.storage, cur.storage)
	}
	return res
}

// New creates an empty state.
func New() *State {
	return &State{
		top:    newLayer(nil),
		codes:  newCodeStore(),
		nextID: new(atomic.Uint64),
	}
}

// WithGenesisAccounts creates a state holding an account with the given
// balance for every entry of balances.
func WithGenesisAccounts(balances map[rigoletto.Address]rigoletto.Value) *State {
	res := New()
	for _, address := range sortedAddresses(balances) {
		res.put(address, &Account{Balance: balances[address]})
	}
	return res
}

// Get returns the account at the given address or nil if there is none.
func (s *State) Get(ctx context.Context, address rigoletto.Address) (*Account, error) {
	s.mu.RLock()
	entry, found := s.top.lookupAccount(address)
	s.mu.RUnlock()
	if found {
		return entry.account.Copy(), nil
	}
	return s.remoteAccount(ctx, address)
}

func (s *State) remoteAccount(ctx context.Context, address rigoletto.Address) (*Account, error) {
	if s.remote == nil {
		return nil, nil
	}
	fetched, err := s.remote.account(ctx, address)
	if err != nil || fetched.isEmpty() {
		return nil, err
	}
	res := &Account{
		Balance: fetched.Balance,
		Nonce:   fetched.Nonce,
	}
	if len(fetched.Code) > 0 {
		res.Code = s.codes.add(rigoletto.NewBytecode(fetched.Code))
	}
	return res, nil
}

// Put inserts or replaces the account at the given address. The storage of
// an existing account is retained.
func (s *State) Put(address rigoletto.Address, account Account) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.put(address, &account)
}

func (s *State) put(address rigoletto.Address, account *Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if account.Code != nil {
		account.Code = s.codes.add(account.Code)
	}
	entry, _ := s.top.lookupAccount(address)
	s.top.accounts[address] = accountEntry{account: account, storageID: entry.storageID}
}

// Remove deletes the account at the given address together with its storage
// and returns the removed account, nil if there was none.
func (s *State) Remove(ctx context.Context, address rigoletto.Address) (*Account, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.remove(ctx, address)
}

func (s *State) remove(ctx context.Context, address rigoletto.Address) (*Account, error) {
	current, err := s.Get(ctx, address)
	if err != nil || current == nil {
		return nil, err
	}
	s.mu.Lock()
	s.top.accounts[address] = accountEntry{storageID: s.nextID.Add(1)}
	s.mu.Unlock()
	return current, nil
}

// Modify atomically replaces the account at the given address by the result
// of fn. The argument of fn is nil if the account does not exist, and a nil
// result removes the account. An error of fn aborts the modification and is
// returned unchanged. Modifications not changing the account are no-ops.
func (s *State) Modify(
	ctx context.Context,
	address rigoletto.Address,
	fn func(*Account) (*Account, error),
) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current, err := s.Get(ctx, address)
	if err != nil {
		return err
	}
	next, err := fn(current.Copy())
	if err != nil {
		return err
	}
	if current.Equal(next) {
		return nil
	}
	if next == nil {
		_, err := s.remove(ctx, address)
		return err
	}
	s.put(address, next.Copy())
	return nil
}

// ModifyExisting is like Modify but fails with ErrAccountNotFound if there is
// no account at the given address.
func (s *State) ModifyExisting(
	ctx context.Context,
	address rigoletto.Address,
	fn func(*Account) (*Account, error),
) error {
	return s.Modify(ctx, address, func(current *Account) (*Account, error) {
		if current == nil {
			return nil, fmt.Errorf("%w: %v", rigoletto.ErrAccountNotFound, address)
		}
		return fn(current)
	})
}

// GetStorage returns the value of a storage slot, zero if it was never set.
func (s *State) GetStorage(ctx context.Context, address rigoletto.Address, key rigoletto.Key) (rigoletto.Word, error) {
	s.mu.RLock()
	entry, _ := s.top.lookupAccount(address)
	value, found := s.top.lookupSlot(slotKey{address, entry.storageID, key})
	s.mu.RUnlock()
	if found || entry.storageID != 0 || s.remote == nil {
		return value, nil
	}
	return s.remote.storage(ctx, address, key)
}

func (s *State) SetStorage(address rigoletto.Address, key rigoletto.Key, value rigoletto.Word) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, _ := s.top.lookupAccount(address)
	s.top.storage[slotKey{address, entry.storageID, key}] = value
}

// Code looks up code by its hash.
func (s *State) Code(hash rigoletto.Hash) (*rigoletto.Bytecode, bool) {
	return s.codes.get(hash)
}

// Clone creates an independent copy of the state in constant time.
func (s *State) Clone() *State {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.clone()
}

// clone requires the caller to hold writeMu.
func (s *State) clone() *State {
	base := s.freeze()
	return &State{
		top:    newLayer(base),
		codes:  s.codes,
		remote: s.remote,
		nextID: s.nextID,
	}
}

// ReplaceWith makes the state an alias-free copy of other. It is used to
// adopt the result of work performed on a clone.
func (s *State) ReplaceWith(other *State) {
	if s == other {
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.adopt(other)
}

// Commit runs fn on a clone of the state and adopts the clone if fn
// succeeds. Mutations of the state, including other commits, are blocked
// until fn returns, so concurrent commits never overwrite each other. Reads
// of the state see its content before the commit. fn must not mutate the
// state itself, only the clone passed to it.
func (s *State) Commit(fn func(work *State) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	work := s.clone()
	if err := fn(work); err != nil {
		return err
	}
	s.adopt(work)
	return nil
}

// adopt requires the caller to hold writeMu of s but not of other.
func (s *State) adopt(other *State) {
	other.writeMu.Lock()
	base := other.freeze()
	other.writeMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.top = newLayer(base)
	s.codes = other.codes
	s.remote = other.remote
	s.nextID = other.nextID
}

// freeze turns the current top layer into a shared base and starts a new
// private top layer on it. The caller must hold writeMu.
func (s *State) freeze() *layer {
	s.mu.Lock()
	defer s.mu.Unlock()
	base := s.top
	if base.isEmpty() {
		base = base.parent
	}
	if base != nil && base.depth >= maxLayerDepth {
		base = base.flatten()
	}
	s.top = newLayer(base)
	return base
}

// IsForked reports whether the state falls back to a remote source.
func (s *State) IsForked() bool {
	return s.remote != nil
}

// ForkBlockNumber is the remote block a forked state is based on.
func (s *State) ForkBlockNumber() (uint64, bool) {
	if s.remote == nil {
		return 0, false
	}
	return s.remote.block, true
}

// AccountDump is the locally known content of an account.
type AccountDump struct {
	Address rigoletto.Address                `json:"address"`
	Balance rigoletto.Value                  `json:"balance"`
	Nonce   uint64                           `json:"nonce"`
	Code    rigoletto.Code                   `json:"code,omitempty"`
	Storage map[rigoletto.Key]rigoletto.Word `json:"storage,omitempty"`
}

// Accounts lists all locally known accounts ordered by address. Accounts and
// slots only present in the remote source of a forked state are not listed.
func (s *State) Accounts() []AccountDump {
	accounts, storage := s.merged()
	res := make([]AccountDump, 0, len(accounts))
	for _, address := range sortedAddresses(accounts) {
		entry := accounts[address]
		dump := AccountDump{
			Address: address,
			Balance: entry.account.Balance,
			Nonce:   entry.account.Nonce,
			Code:    entry.account.Code.Code(),
		}
		for key, value := range storage {
			if key.address == address && key.storageID == entry.storageID && !value.IsZero() {
				if dump.Storage == nil {
					dump.Storage = map[rigoletto.Key]rigoletto.Word{}
				}
				dump.Storage[key.key] = value
			}
		}
		res = append(res, dump)
	}
	return res
}

// Serialize renders the locally known accounts as indented JSON.
func (s *State) Serialize() ([]byte, error) {
	return json.MarshalIndent(s.Accounts(), "", "  ")
}

// merged collects the live accounts and all slots of the local layers.
func (s *State) merged() (map[rigoletto.Address]accountEntry, map[slotKey]rigoletto.Word) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := map[rigoletto.Address]accountEntry{}
	storage := map[slotKey]rigoletto.Word{}
	for _, cur := range s.top.chain() {
		maps.Copy(accounts, cur.accounts)
		maps.Copy(storage, cur.storage)
	}
	maps.DeleteFunc(accounts, func(_ rigoletto.Address, entry accountEntry) bool {
		return entry.account == nil
	})
	return accounts, storage
}

func sortedAddresses[V any](m map[rigoletto.Address]V) []rigoletto.Address {
	res := maps.Keys(m)
	slices.SortFunc(res, func(a, b rigoletto.Address) int {
		return slices.Compare(a[:], b[:])
	})
	return res
}

// codeStore is the content addressed code registry shared by all clones.
type codeStore struct {
	mu    sync.RWMutex
	codes map[rigoletto.Hash]*rigoletto.Bytecode
}

func newCodeStore() *codeStore {
	return &codeStore{codes: map[rigoletto.Hash]*rigoletto.Bytecode{}}
}

// add registers code and returns the canonical instance for its hash.
func (c *codeStore) add(code *rigoletto.Bytecode) *rigoletto.Bytecode {
	hash := code.Hash()
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, found := c.codes[hash]; found {
		return existing
	}
	c.codes[hash] = code
	return code
}

func (c *codeStore) get(hash rigoletto.Hash) (*rigoletto.Bytecode, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	code, found := c.codes[hash]
	return code, found
}
