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
	"math/rand"
	"sync"
	"testing"
	"time"
)

func TestSha3HashCache_hash_ProducesCorrectHashesForInputs(t *testing.T) {
	inputs := [][]byte{
		{},
		{0},
		{1, 2, 3, 4, 5},
		make([]byte, 32),
		make([]byte, 64),
		make([]byte, 123),
	}

	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	for i := 0; i < 100; i++ {
		input := make([]byte, r.Intn(150))
		r.Read(input)
		inputs = append(inputs, input)
	}

	cache := newSha3HashCache(10, 10)
	for _, input := range inputs {
		want := Keccak256(input)
		got := cache.hash(input)
		if want != got {
			t.Errorf("expected hash to be %x, but got %x", want, got)
		}
	}
}

func TestSha3HashCache_HashesOf32And64ByteInputsAreCached(t *testing.T) {
	cache := newSha3HashCache(10, 10)

	cache.hash(make([]byte, 32))
	cache.hash(make([]byte, 64))
	cache.hash(make([]byte, 48))

	if want, got := 1, cache.cache32.Len(); want != got {
		t.Errorf("unexpected number of 32 byte entries, wanted %d, got %d", want, got)
	}
	if want, got := 1, cache.cache64.Len(); want != got {
		t.Errorf("unexpected number of 64 byte entries, wanted %d, got %d", want, got)
	}
}

func TestSha3HashCache_RespectsCapacity(t *testing.T) {
	cache := newSha3HashCache(4, 2)
	for i := 0; i < 100; i++ {
		input := make([]byte, 32)
		input[0] = byte(i)
		cache.hash(input)
		input64 := make([]byte, 64)
		input64[0] = byte(i)
		cache.hash(input64)
	}
	if want, got := 4, cache.cache32.Len(); want != got {
		t.Errorf("unexpected number of 32 byte entries, wanted %d, got %d", want, got)
	}
	if want, got := 2, cache.cache64.Len(); want != got {
		t.Errorf("unexpected number of 64 byte entries, wanted %d, got %d", want, got)
	}
}

func TestSha3HashCache_NonPositiveCapacitiesAreAccepted(t *testing.T) {
	for _, capacity := range []int{-10, 0, 1} {
		cache := newSha3HashCache(capacity, capacity)
		if want, got := Keccak256(make([]byte, 32)), cache.hash(make([]byte, 32)); want != got {
			t.Errorf("unexpected hash, wanted %v, got %v", want, got)
		}
	}
}

func TestSha3HashCache_AccessesAreThreadSafe(t *testing.T) {
	// this test assumes to be executed using the --race flag.
	const parallelism = 10
	cache := newSha3HashCache(16, 16)

	var wg sync.WaitGroup
	wg.Add(parallelism)
	for i := 0; i < parallelism; i++ {
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				input := make([]byte, 32+32*(j%2))
				input[0] = byte(i + j)
				if want, got := Keccak256(input), cache.hash(input); want != got {
					t.Errorf("unexpected hash, wanted %v, got %v", want, got)
				}
			}
		}(i)
	}
	wg.Wait()
}
