// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package rigoletto

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/crypto"
)

// EmptyCodeHash is the hash of the empty code, shared by all accounts without code.
var EmptyCodeHash = Hash(crypto.Keccak256(nil))

// Keccak256 computes the keccak256 digest of the concatenated inputs.
func Keccak256(data ...[]byte) Hash {
	return Hash(crypto.Keccak256(data...))
}

// Bytecode is a content addressed piece of code. The hash is always the
// keccak256 digest of the code.
type Bytecode struct {
	hash Hash
	code Code
}

// NewBytecode creates a Bytecode by hashing the given code. The code is copied.
func NewBytecode(code Code) *Bytecode {
	c := make(Code, len(code))
	copy(c, code)
	return &Bytecode{hash: Keccak256(c), code: c}
}

// NewBytecodeWithHash creates a Bytecode from a code and its claimed hash,
// failing if the relation does not hold.
func NewBytecodeWithHash(hash Hash, code Code) (*Bytecode, error) {
	b := NewBytecode(code)
	if b.hash != hash {
		return nil, fmt.Errorf("code hash mismatch, claimed %v, computed %v", hash, b.hash)
	}
	return b, nil
}

func (b *Bytecode) Hash() Hash {
	if b == nil {
		return EmptyCodeHash
	}
	return b.hash
}

// Code returns the code. It must not be modified.
func (b *Bytecode) Code() Code {
	if b == nil {
		return nil
	}
	return b.code
}

func (b *Bytecode) Len() int {
	if b == nil {
		return 0
	}
	return len(b.code)
}

// Verify recomputes the hash and reports whether it matches.
func (b *Bytecode) Verify() bool {
	return b.Hash() == Keccak256(b.Code())
}

func (b *Bytecode) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Hash Hash `json:"hash"`
		Code Code `json:"code"`
	}{b.Hash(), b.Code()})
}

func (b *Bytecode) UnmarshalJSON(data []byte) error {
	var raw struct {
		Hash *Hash `json:"hash"`
		Code Code  `json:"code"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	res := NewBytecode(raw.Code)
	if raw.Hash != nil && *raw.Hash != res.hash {
		return fmt.Errorf("code hash mismatch, claimed %v, computed %v", *raw.Hash, res.hash)
	}
	*b = *res
	return nil
}

// SizeInWords returns the number of 32-byte words needed to hold size bytes.
func SizeInWords(size uint64) uint64 {
	if size > math.MaxUint64-31 {
		return math.MaxUint64/32 + 1
	}
	return (size + 31) / 32
}
