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

// AnalysisConfig contains the configuration options of the code analysis.
type AnalysisConfig struct {
	// CacheSize is the maximum size of the cached analysis results in bytes.
	// If set to 0, a default size is used. If negative, no cache is used.
	CacheSize int
}

// jumpDests is a bitmap of the valid jump destinations of a code. Bytes that
// are part of the immediate data of PUSH instructions are never valid
// destinations, even if they encode a JUMPDEST.
type jumpDests []uint64

func (d jumpDests) isValid(pos uint64) bool {
	word := pos / 64
	if word >= uint64(len(d)) {
		return false
	}
	return d[word]&(1<<(pos%64)) != 0
}

func analyze(code []byte) jumpDests {
	res := make(jumpDests, (len(code)+63)/64)
	for i := 0; i < len(code); {
		op := OpCode(code[i])
		if op == JUMPDEST {
			res[i/64] |= 1 << (i % 64)
		}
		i += op.Width()
	}
	return res
}

// Analyzer computes the jump destinations of codes and keeps them in an LRU
// cache indexed by code hash.
type Analyzer struct {
	cache *lru.Cache[rigoletto.Hash, jumpDests]
}

// maxCachedCodeLength is the maximum length of codes with cached analysis
// results: the limit for codes stored on chain (EIP-170). Init codes may be
// longer but are rarely re-run and come without hash.
const maxCachedCodeLength = 24_576

func NewAnalyzer(config AnalysisConfig) (*Analyzer, error) {
	if config.CacheSize == 0 {
		config.CacheSize = 1 << 26 // = 64 MiB
	}
	if config.CacheSize < 0 {
		return &Analyzer{}, nil
	}
	const entrySize = maxCachedCodeLength / 8
	cache, err := lru.New[rigoletto.Hash, jumpDests](max(config.CacheSize/entrySize, 1))
	if err != nil {
		return nil, err
	}
	return &Analyzer{cache: cache}, nil
}

// Analyze returns the jump destinations of the given code. If the hash is not
// nil it must be the hash of the code and is used to cache the result.
func (a *Analyzer) Analyze(code []byte, codeHash *rigoletto.Hash) jumpDests {
	if a.cache == nil || codeHash == nil || len(code) > maxCachedCodeLength {
		return analyze(code)
	}
	if res, found := a.cache.Get(*codeHash); found {
		return res
	}
	res := analyze(code)
	a.cache.Add(*codeHash, res)
	return res
}
