// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package engine

import (
	"math/big"

	"github.com/Fantom-foundation/Rigoletto/go/chain"
	"github.com/Fantom-foundation/Rigoletto/go/processor/floria"
	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
)

// DefaultInterpreter is the interpreter used if a Config names none.
const DefaultInterpreter = "lfvm"

// Config holds the chain settings of an Engine.
type Config struct {
	ChainID uint64             `mapstructure:"chain-id"`
	SpecID  rigoletto.Revision `mapstructure:"spec"`
	// Interpreter is the name of a registered interpreter implementation.
	Interpreter           string  `mapstructure:"interpreter"`
	LimitContractCodeSize *uint64 `mapstructure:"limit-contract-code-size"`
	LimitInitcodeSize     *uint64 `mapstructure:"limit-initcode-size"`
	DisableBlockGasLimit  bool    `mapstructure:"disable-block-gas-limit"`
	DisableEip3607        bool    `mapstructure:"disable-eip3607"`
}

func (c *Config) processorConfig() floria.Config {
	return floria.Config{
		ChainID:               c.ChainID,
		LimitContractCodeSize: c.LimitContractCodeSize,
		LimitInitcodeSize:     c.LimitInitcodeSize,
		DisableBlockGasLimit:  c.DisableBlockGasLimit,
		DisableEip3607:        c.DisableEip3607,
	}
}

// BlockConfig overrides properties of the block a transaction is executed
// in. Unset fields are derived from the parent block.
type BlockConfig struct {
	Number        *uint64
	Beneficiary   *rigoletto.Address
	Timestamp     *uint64
	Difficulty    *big.Int
	MixHash       *rigoletto.Hash
	BaseFee       *rigoletto.Value
	GasLimit      *uint64
	ParentHash    *rigoletto.Hash
	BlobExcessGas *uint64
}

func (b *BlockConfig) options() chain.BlockOptions {
	return chain.BlockOptions{
		Number:        b.Number,
		Beneficiary:   b.Beneficiary,
		Timestamp:     b.Timestamp,
		Difficulty:    b.Difficulty,
		MixHash:       b.MixHash,
		BaseFee:       b.BaseFee,
		GasLimit:      b.GasLimit,
		ParentHash:    b.ParentHash,
		BlobExcessGas: b.BlobExcessGas,
	}
}
