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
	"bytes"
	"context"
	"encoding/binary"
	"fmt"

	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"
	"golang.org/x/exp/slices"
)

// StateRoot computes the Merkle-Patricia commitment of all accounts and their
// storage. States with equal roots hold the same content.
//
// A forked state commits to its fork point and the locally written content
// only, since the remote state cannot be enumerated. Its root is therefore
// independent of the remote values read so far.
func (s *State) StateRoot(ctx context.Context) (rigoletto.Hash, error) {
	if err := ctx.Err(); err != nil {
		return rigoletto.Hash{}, err
	}
	accounts, storage := s.merged()

	slots := map[rigoletto.Address]map[rigoletto.Key]rigoletto.Word{}
	for key, value := range storage {
		entry, found := accounts[key.address]
		if !found || entry.storageID != key.storageID || value.IsZero() {
			continue
		}
		if slots[key.address] == nil {
			slots[key.address] = map[rigoletto.Key]rigoletto.Word{}
		}
		slots[key.address][key.key] = value
	}

	leaves := make([]leaf, 0, len(accounts))
	for address, entry := range accounts {
		storageRoot, err := storageRoot(slots[address])
		if err != nil {
			return rigoletto.Hash{}, err
		}
		encoded, err := rlp.EncodeToBytes(&types.StateAccount{
			Nonce:    entry.account.Nonce,
			Balance:  entry.account.Balance.ToUint256(),
			Root:     common.Hash(storageRoot),
			CodeHash: codeHashBytes(entry.account),
		})
		if err != nil {
			return rigoletto.Hash{}, fmt.Errorf("failed to encode account %v: %w", address, err)
		}
		leaves = append(leaves, leaf{crypto.Keccak256(address[:]), encoded})
	}
	root, err := commit(leaves)
	if err != nil || s.remote == nil {
		return root, err
	}

	var anchor [16]byte
	binary.BigEndian.PutUint64(anchor[:8], s.remote.chainID)
	binary.BigEndian.PutUint64(anchor[8:], s.remote.block)
	return rigoletto.Keccak256(anchor[:], root[:]), nil
}

// StorageRoot computes the storage commitment of a single account. Slots only
// present in the remote source of a forked state are not covered.
func (s *State) StorageRoot(ctx context.Context, address rigoletto.Address) (rigoletto.Hash, error) {
	if err := ctx.Err(); err != nil {
		return rigoletto.Hash{}, err
	}
	accounts, storage := s.merged()
	entry, found := accounts[address]
	if !found {
		return rigoletto.Hash(types.EmptyRootHash), nil
	}
	slots := map[rigoletto.Key]rigoletto.Word{}
	for key, value := range storage {
		if key.address == address && key.storageID == entry.storageID && !value.IsZero() {
			slots[key.key] = value
		}
	}
	return storageRoot(slots)
}

func codeHashBytes(account *Account) []byte {
	hash := account.CodeHash()
	return hash[:]
}

func storageRoot(slots map[rigoletto.Key]rigoletto.Word) (rigoletto.Hash, error) {
	leaves := make([]leaf, 0, len(slots))
	for key, value := range slots {
		encoded, err := rlp.EncodeToBytes(common.TrimLeftZeroes(value[:]))
		if err != nil {
			return rigoletto.Hash{}, err
		}
		leaves = append(leaves, leaf{crypto.Keccak256(key[:]), encoded})
	}
	return commit(leaves)
}

type leaf struct {
	key   []byte
	value []byte
}

// commit inserts the leaves into a stack trie, which requires sorted keys.
func commit(leaves []leaf) (rigoletto.Hash, error) {
	slices.SortFunc(leaves, func(a, b leaf) int {
		return bytes.Compare(a.key, b.key)
	})
	st := trie.NewStackTrie(nil)
	for _, cur := range leaves {
		if err := st.Update(cur.key, cur.value); err != nil {
			return rigoletto.Hash{}, err
		}
	}
	return rigoletto.Hash(st.Hash()), nil
}
