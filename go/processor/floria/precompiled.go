// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package floria

import (
	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	"github.com/ethereum/go-ethereum/common"
	geth "github.com/ethereum/go-ethereum/core/vm"
)

func precompiles(revision rigoletto.Revision) map[common.Address]geth.PrecompiledContract {
	switch {
	case revision >= rigoletto.Cancun:
		return geth.PrecompiledContractsCancun
	case revision >= rigoletto.Berlin:
		return geth.PrecompiledContractsBerlin
	case revision >= rigoletto.Istanbul:
		return geth.PrecompiledContractsIstanbul
	case revision >= rigoletto.Byzantium:
		return geth.PrecompiledContractsByzantium
	}
	return geth.PrecompiledContractsHomestead
}

// PrecompiledAddresses lists the addresses of the precompiled contracts
// available in the given revision.
func PrecompiledAddresses(revision rigoletto.Revision) []rigoletto.Address {
	var addresses []common.Address
	switch {
	case revision >= rigoletto.Cancun:
		addresses = geth.PrecompiledAddressesCancun
	case revision >= rigoletto.Berlin:
		addresses = geth.PrecompiledAddressesBerlin
	case revision >= rigoletto.Istanbul:
		addresses = geth.PrecompiledAddressesIstanbul
	case revision >= rigoletto.Byzantium:
		addresses = geth.PrecompiledAddressesByzantium
	default:
		addresses = geth.PrecompiledAddressesHomestead
	}
	res := make([]rigoletto.Address, len(addresses))
	for i, address := range addresses {
		res[i] = rigoletto.Address(address)
	}
	return res
}

func isPrecompiled(address rigoletto.Address, revision rigoletto.Revision) bool {
	_, found := precompiles(revision)[common.Address(address)]
	return found
}

// runPrecompiled executes a precompiled contract if there is one at the given
// address. Failing contracts consume all gas.
func runPrecompiled(
	revision rigoletto.Revision,
	address rigoletto.Address,
	input rigoletto.Data,
	gas rigoletto.Gas,
) (rigoletto.Result, bool) {
	contract, found := precompiles(revision)[common.Address(address)]
	if !found {
		return rigoletto.Result{}, false
	}
	cost := contract.RequiredGas(input)
	if cost > uint64(gas) {
		return rigoletto.Result{Halt: rigoletto.HaltOutOfGas}, true
	}
	output, err := contract.Run(input)
	if err != nil {
		return rigoletto.Result{Halt: rigoletto.HaltPrecompileError}, true
	}
	return rigoletto.Result{
		Success: true,
		Reason:  rigoletto.SuccessReturn,
		Output:  output,
		GasLeft: gas - rigoletto.Gas(cost),
	}, true
}
