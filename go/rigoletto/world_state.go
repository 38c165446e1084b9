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

import "fmt"

// WorldState is the view on accounts used while executing a transaction.
type WorldState interface {
	AccountExists(Address) bool

	GetBalance(Address) Value
	SetBalance(Address, Value)

	GetNonce(Address) uint64
	SetNonce(Address, uint64)

	GetCode(Address) Code
	GetCodeHash(Address) Hash
	GetCodeSize(Address) int
	SetCode(Address, Code)

	GetStorage(Address, Key) Word
	SetStorage(Address, Key, Word) StorageStatus

	// SelfDestruct transfers the balance of addr to beneficiary and schedules
	// addr for deletion at the end of the transaction, subject to the rules
	// of the active revision. Returns true if it is the first time addr is
	// destroyed in the ongoing transaction, false otherwise.
	SelfDestruct(addr Address, beneficiary Address) bool
}

// StorageStatus classifies a storage update according to EIP-2200.
type StorageStatus int

const (
	// The comment indicates the storage values for the corresponding
	// configuration. X, Y, Z are non-zero numbers, distinct from each other,
	// while 0 is zero.
	//
	// <original> -> <current> -> <new>
	StorageAssigned         StorageStatus = iota
	StorageAdded                          // 0 -> 0 -> Z
	StorageDeleted                        // X -> X -> 0
	StorageModified                       // X -> X -> Z
	StorageDeletedAdded                   // X -> 0 -> Z
	StorageModifiedDeleted                // X -> Y -> 0
	StorageDeletedRestored                // X -> 0 -> X
	StorageAddedDeleted                   // 0 -> Y -> 0
	StorageModifiedRestored               // X -> Y -> X
)

func (s StorageStatus) String() string {
	switch s {
	case StorageAssigned:
		return "StorageAssigned"
	case StorageAdded:
		return "StorageAdded"
	case StorageDeleted:
		return "StorageDeleted"
	case StorageModified:
		return "StorageModified"
	case StorageDeletedAdded:
		return "StorageDeletedAdded"
	case StorageModifiedDeleted:
		return "StorageModifiedDeleted"
	case StorageDeletedRestored:
		return "StorageDeletedRestored"
	case StorageAddedDeleted:
		return "StorageAddedDeleted"
	case StorageModifiedRestored:
		return "StorageModifiedRestored"
	}
	return fmt.Sprintf("StorageStatus(%d)", s)
}

// GetStorageStatus obtains the EIP-2200 classification of an update of a
// slot from current to new, given its value at the start of the transaction.
func GetStorageStatus(original, current, new Word) StorageStatus {
	var zero Word

	if current == new {
		return StorageAssigned
	}
	if original == current {
		if original == zero {
			return StorageAdded // 0 -> 0 -> Z
		}
		if new == zero {
			return StorageDeleted // X -> X -> 0
		}
		return StorageModified // X -> X -> Z
	}
	// original != current
	if original == zero {
		if new == zero {
			return StorageAddedDeleted // 0 -> Y -> 0
		}
		return StorageAssigned // 0 -> Y -> Z
	}
	if current == zero {
		if new == original {
			return StorageDeletedRestored // X -> 0 -> X
		}
		return StorageDeletedAdded // X -> 0 -> Z
	}
	if new == zero {
		return StorageModifiedDeleted // X -> Y -> 0
	}
	if new == original {
		return StorageModifiedRestored // X -> Y -> X
	}
	return StorageAssigned // X -> Y -> Z
}

// AccessStatus reports whether an account or slot was already touched in
// the current transaction (EIP-2929).
type AccessStatus bool

const (
	ColdAccess AccessStatus = false
	WarmAccess AccessStatus = true
)

type Log struct {
	Address Address `json:"address"`
	Topics  []Hash  `json:"topics"`
	Data    Data    `json:"data"`
}
