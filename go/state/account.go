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
	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
)

// Account is the state of a single address. A nil Code means the account has
// no code, in which case its code hash is rigoletto.EmptyCodeHash.
type Account struct {
	Balance rigoletto.Value
	Nonce   uint64
	Code    *rigoletto.Bytecode
}

func (a *Account) CodeHash() rigoletto.Hash {
	if a == nil {
		return rigoletto.EmptyCodeHash
	}
	return a.Code.Hash()
}

func (a *Account) HasCode() bool {
	return a != nil && a.Code.Len() > 0
}

// IsEmpty reports whether the account is empty as defined by EIP-161: no
// balance, a zero nonce and no code.
func (a *Account) IsEmpty() bool {
	return a == nil || (a.Balance.IsZero() && a.Nonce == 0 && !a.HasCode())
}

// Copy returns an independent copy. Bytecode is immutable and shared.
func (a *Account) Copy() *Account {
	if a == nil {
		return nil
	}
	res := *a
	return &res
}

func (a *Account) Equal(b *Account) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Balance == b.Balance && a.Nonce == b.Nonce && a.CodeHash() == b.CodeHash()
}
