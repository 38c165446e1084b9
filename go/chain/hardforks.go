// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package chain

import (
	"fmt"
	"math/big"
	"slices"

	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	"github.com/ethereum/go-ethereum/params"
)

// Activation is the first block a revision is in effect for.
type Activation struct {
	BlockNumber uint64
	Revision    rigoletto.Revision
}

// Hardforks is a schedule of revision activations ordered by block number.
type Hardforks []Activation

// NewHardforks creates a schedule from activations given in any order.
func NewHardforks(activations ...Activation) Hardforks {
	res := slices.Clone(activations)
	slices.SortStableFunc(res, func(a, b Activation) int {
		switch {
		case a.BlockNumber < b.BlockNumber:
			return -1
		case a.BlockNumber > b.BlockNumber:
			return 1
		}
		return int(a.Revision) - int(b.Revision)
	})
	return res
}

// At returns the revision in effect for the given block. Blocks before the
// first activation are not covered by the schedule.
func (h Hardforks) At(number uint64) (rigoletto.Revision, bool) {
	var (
		res   rigoletto.Revision
		found bool
	)
	for _, cur := range h {
		if cur.BlockNumber > number {
			break
		}
		res, found = cur.Revision, true
	}
	return res, found
}

// Mainnet activations not described by block numbers in the geth chain
// config. Shanghai and Cancun are timestamp based there.
const (
	mainnetFrontierThawingBlock = 200_000
	mainnetMergeBlock           = 15_537_394
	mainnetShanghaiBlock        = 17_034_870
	mainnetCancunBlock          = 19_426_587
)

// MainnetHardforks returns the activation schedule of Ethereum mainnet.
func MainnetHardforks() Hardforks {
	c := params.MainnetChainConfig
	at := func(b *big.Int) uint64 { return b.Uint64() }
	return NewHardforks(
		Activation{0, rigoletto.Frontier},
		Activation{mainnetFrontierThawingBlock, rigoletto.FrontierThawing},
		Activation{at(c.HomesteadBlock), rigoletto.Homestead},
		Activation{at(c.DAOForkBlock), rigoletto.DaoFork},
		Activation{at(c.EIP150Block), rigoletto.Tangerine},
		Activation{at(c.EIP155Block), rigoletto.SpuriousDragon},
		Activation{at(c.ByzantiumBlock), rigoletto.Byzantium},
		Activation{at(c.ConstantinopleBlock), rigoletto.Constantinople},
		Activation{at(c.PetersburgBlock), rigoletto.Petersburg},
		Activation{at(c.IstanbulBlock), rigoletto.Istanbul},
		Activation{at(c.MuirGlacierBlock), rigoletto.MuirGlacier},
		Activation{at(c.BerlinBlock), rigoletto.Berlin},
		Activation{at(c.LondonBlock), rigoletto.London},
		Activation{at(c.ArrowGlacierBlock), rigoletto.ArrowGlacier},
		Activation{at(c.GrayGlacierBlock), rigoletto.GrayGlacier},
		Activation{mainnetMergeBlock, rigoletto.Merge},
		Activation{mainnetShanghaiBlock, rigoletto.Shanghai},
		Activation{mainnetCancunBlock, rigoletto.Cancun},
	)
}

// knownHardforks returns the schedule of well known chains.
func knownHardforks(chainID uint64) (Hardforks, bool) {
	if chainID == params.MainnetChainConfig.ChainID.Uint64() {
		return MainnetHardforks(), true
	}
	return nil, false
}

// ChainConfig produces a geth chain configuration with every fork up to the
// given revision active from genesis. It is used to evaluate fee formulas.
func ChainConfig(chainID uint64, revision rigoletto.Revision) *params.ChainConfig {
	revision = revision.Resolve()
	zero := uint64(0)
	activeFrom := func(r rigoletto.Revision) *big.Int {
		if revision.IsAtLeast(r) {
			return new(big.Int)
		}
		return nil
	}
	activeAt := func(r rigoletto.Revision) *uint64 {
		if revision.IsAtLeast(r) {
			return &zero
		}
		return nil
	}
	res := &params.ChainConfig{
		ChainID:             new(big.Int).SetUint64(chainID),
		HomesteadBlock:      activeFrom(rigoletto.Homestead),
		DAOForkBlock:        activeFrom(rigoletto.DaoFork),
		DAOForkSupport:      revision.IsAtLeast(rigoletto.DaoFork),
		EIP150Block:         activeFrom(rigoletto.Tangerine),
		EIP155Block:         activeFrom(rigoletto.SpuriousDragon),
		EIP158Block:         activeFrom(rigoletto.SpuriousDragon),
		ByzantiumBlock:      activeFrom(rigoletto.Byzantium),
		ConstantinopleBlock: activeFrom(rigoletto.Constantinople),
		PetersburgBlock:     activeFrom(rigoletto.Petersburg),
		IstanbulBlock:       activeFrom(rigoletto.Istanbul),
		MuirGlacierBlock:    activeFrom(rigoletto.MuirGlacier),
		BerlinBlock:         activeFrom(rigoletto.Berlin),
		LondonBlock:         activeFrom(rigoletto.London),
		ArrowGlacierBlock:   activeFrom(rigoletto.ArrowGlacier),
		GrayGlacierBlock:    activeFrom(rigoletto.GrayGlacier),
		ShanghaiTime:        activeAt(rigoletto.Shanghai),
		CancunTime:          activeAt(rigoletto.Cancun),
	}
	if revision.IsAtLeast(rigoletto.Merge) {
		res.MergeNetsplitBlock = new(big.Int)
		res.TerminalTotalDifficulty = new(big.Int)
	}
	return res
}

func (a Activation) String() string {
	return fmt.Sprintf("%v@%d", a.Revision, a.BlockNumber)
}
