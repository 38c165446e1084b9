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
	"fmt"
	"sync"
	"testing"

	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	"github.com/ethereum/go-ethereum/crypto"
)

func TestKeccak256_ProducesSameHashAsGeth(t *testing.T) {
	tests := [][]byte{
		nil,
		{},
		{1, 2, 3},
		{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		make([]byte, 32),
		make([]byte, 128),
		make([]byte, 1024),
	}
	for _, test := range tests {
		want := rigoletto.Hash(crypto.Keccak256Hash(test))
		got := Keccak256(test)
		if want != got {
			t.Errorf("unexpected hash for %v, wanted %v, got %v", test, want, got)
		}
	}
}

func TestKeccak256_IsThreadSafe(t *testing.T) {
	const parallelism = 8
	var wg sync.WaitGroup
	wg.Add(parallelism)
	for i := 0; i < parallelism; i++ {
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				input := []byte(fmt.Sprintf("%d-%d", i, j))
				if want, got := rigoletto.Hash(crypto.Keccak256Hash(input)), Keccak256(input); want != got {
					t.Errorf("unexpected hash, wanted %v, got %v", want, got)
				}
			}
		}(i)
	}
	wg.Wait()
}

func BenchmarkKeccak256(b *testing.B) {
	for _, size := range []int{32, 64, 1024} {
		data := make([]byte, size)
		b.Run(fmt.Sprintf("size=%d", size), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				Keccak256(data)
			}
		})
	}
}
