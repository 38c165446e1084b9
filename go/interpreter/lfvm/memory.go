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
	"math"

	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	"github.com/holiman/uint256"
)

// Memory is the byte addressed, word aligned, expanding memory of a frame.
// Growing it costs 3 gas per word plus the square of the words divided by 512.
type Memory struct {
	store             []byte
	currentMemoryCost rigoletto.Gas
}

func NewMemory() *Memory {
	return &Memory{}
}

// Memory sizes above this bound cost more than any gas limit could pay. The
// bound keeps the cost computation within int64.
const maxMemoryExpansionSize = 0x1FFFFFFFE0

func toValidMemorySize(size uint64) uint64 {
	fullWordsSize := rigoletto.SizeInWords(size) * 32
	if size != 0 && fullWordsSize < size {
		return math.MaxUint64
	}
	return fullWordsSize
}

func memoryCost(size uint64) rigoletto.Gas {
	words := rigoletto.SizeInWords(size)
	return rigoletto.Gas((words*words)/512 + 3*words)
}

// getExpansionCosts returns the gas needed to grow the memory to size bytes.
func (m *Memory) getExpansionCosts(size uint64) rigoletto.Gas {
	if m.length() >= size {
		return 0
	}
	size = toValidMemorySize(size)
	if size > maxMemoryExpansionSize {
		return rigoletto.Gas(math.MaxInt64)
	}
	return memoryCost(size) - m.currentMemoryCost
}

// expandMemory grows the memory to cover [offset, offset+size) and charges
// the context for it. Zero sized accesses never expand the memory.
func (m *Memory) expandMemory(offset, size uint64, c *context) error {
	if size == 0 {
		return nil
	}
	needed := offset + size
	if needed < offset {
		return errGasUintOverflow
	}
	if m.length() < needed {
		if err := c.useGas(m.getExpansionCosts(needed)); err != nil {
			return err
		}
		m.expandMemoryWithoutCharging(needed)
	}
	return nil
}

func (m *Memory) expandMemoryWithoutCharging(needed uint64) {
	needed = toValidMemorySize(needed)
	size := m.length()
	if size < needed {
		m.currentMemoryCost = memoryCost(needed)
		m.store = append(m.store, make([]byte, needed-size)...)
	}
}

func (m *Memory) length() uint64 {
	return uint64(len(m.store))
}

// set writes data at the given offset, expanding the memory as needed.
func (m *Memory) set(offset uint64, data []byte, c *context) error {
	target, err := m.getSlice(offset, uint64(len(data)), c)
	if err != nil {
		return err
	}
	copy(target, data)
	return nil
}

// setWord writes a word at the given offset, expanding the memory as needed.
func (m *Memory) setWord(offset uint64, value *uint256.Int, c *context) error {
	target, err := m.getSlice(offset, 32, c)
	if err != nil {
		return err
	}
	value.WriteToSlice(target)
	return nil
}

// getSlice returns size bytes at offset, backed by the memory itself. The
// slice is invalidated by the next expansion.
func (m *Memory) getSlice(offset, size uint64, c *context) ([]byte, error) {
	if err := m.expandMemory(offset, size, c); err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, nil
	}
	return m.store[offset : offset+size], nil
}

// readWord loads the word at offset into target.
func (m *Memory) readWord(offset uint64, target *uint256.Int, c *context) error {
	data, err := m.getSlice(offset, 32, c)
	if err != nil {
		return err
	}
	target.SetBytes32(data)
	return nil
}

// snapshot returns a copy of the memory content.
func (m *Memory) snapshot() []byte {
	return append([]byte(nil), m.store...)
}
