// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package lfvm

import (
	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	lru "github.com/hashicorp/golang-lru/v2"
)

// sha3HashCache is a fixed-capacity LRU cache for SHA3 hashes of 32 and 64
// byte inputs, the vast majority of values hashed by contracts (mapping keys
// and nested mapping keys). Other inputs are hashed on demand. The cache is
// thread-safe.
type sha3HashCache struct {
	cache32 *lru.Cache[[32]byte, rigoletto.Hash]
	cache64 *lru.Cache[[64]byte, rigoletto.Hash]
}

func newSha3HashCache(capacity32 int, capacity64 int) *sha3HashCache {
	// only fails for non-positive capacities
	cache32, err := lru.New[[32]byte, rigoletto.Hash](max(capacity32, 1))
	if err != nil {
		panic(err)
	}
	cache64, err := lru.New[[64]byte, rigoletto.Hash](max(capacity64, 1))
	if err != nil {
		panic(err)
	}
	return &sha3HashCache{cache32: cache32, cache64: cache64}
}

// hash fetches a cached hash or computes the hash for the provided data.
func (h *sha3HashCache) hash(data []byte) rigoletto.Hash {
	switch len(data) {
	case 32:
		return getOrHash(h.cache32, [32]byte(data), data)
	case 64:
		return getOrHash(h.cache64, [64]byte(data), data)
	}
	return Keccak256(data)
}

func getOrHash[K comparable](cache *lru.Cache[K, rigoletto.Hash], key K, data []byte) rigoletto.Hash {
	if hash, found := cache.Get(key); found {
		return hash
	}
	hash := Keccak256(data)
	cache.Add(key, hash)
	return hash
}
