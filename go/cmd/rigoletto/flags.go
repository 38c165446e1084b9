// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"fmt"
	"math/big"

	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	"github.com/urfave/cli/v2"
)

type configFlagType struct {
	cli.StringFlag
}

var ConfigFlag = &configFlagType{
	cli.StringFlag{
		Name:      "config",
		Aliases:   []string{"c"},
		Usage:     "configuration file, rigoletto.toml in the working directory if not set",
		TakesFile: true,
	},
}

func (f *configFlagType) Fetch(context *cli.Context) string {
	return context.String(f.Name)
}

type chainIDFlagType struct {
	cli.Uint64Flag
}

var ChainIDFlag = &chainIDFlagType{
	cli.Uint64Flag{
		Name:  "chain-id",
		Usage: "overrides the configured chain id",
	},
}

// Fetch returns nil if the flag is not set.
func (f *chainIDFlagType) Fetch(context *cli.Context) *uint64 {
	if !context.IsSet(f.Name) {
		return nil
	}
	res := context.Uint64(f.Name)
	return &res
}

type specFlagType struct {
	cli.StringFlag
}

var SpecFlag = &specFlagType{
	cli.StringFlag{
		Name:  "spec",
		Usage: "overrides the configured hard fork, e.g. London or Cancun",
	},
}

func (f *specFlagType) Fetch(context *cli.Context) (*rigoletto.Revision, error) {
	if !context.IsSet(f.Name) {
		return nil, nil
	}
	res, err := rigoletto.ParseRevision(context.String(f.Name))
	if err != nil {
		return nil, err
	}
	return &res, nil
}

type forkURLFlagType struct {
	cli.StringFlag
}

var ForkURLFlag = &forkURLFlagType{
	cli.StringFlag{
		Name:    "fork-url",
		Aliases: []string{"f"},
		Usage:   "JSON-RPC endpoint of the chain to fork",
	},
}

func (f *forkURLFlagType) Fetch(context *cli.Context) string {
	return context.String(f.Name)
}

type forkBlockFlagType struct {
	cli.Uint64Flag
}

var ForkBlockFlag = &forkBlockFlagType{
	cli.Uint64Flag{
		Name:  "fork-block",
		Usage: "block number to fork from, a safe distance below the head if not set",
	},
}

func (f *forkBlockFlagType) Fetch(context *cli.Context) *uint64 {
	if !context.IsSet(f.Name) {
		return nil
	}
	res := context.Uint64(f.Name)
	return &res
}

type cacheDirFlagType struct {
	cli.StringFlag
}

var CacheDirFlag = &cacheDirFlagType{
	cli.StringFlag{
		Name:      "cache-dir",
		Usage:     "directory caching fetched remote state across runs",
		TakesFile: true,
	},
}

func (f *cacheDirFlagType) Fetch(context *cli.Context) string {
	return context.String(f.Name)
}

// Call flags.

type addressFlagType struct {
	cli.StringFlag
}

var FromFlag = &addressFlagType{
	cli.StringFlag{
		Name:  "from",
		Usage: "sender of the call",
		Value: "0x0000000000000000000000000000000000000000",
	},
}

var ToFlag = &addressFlagType{
	cli.StringFlag{
		Name:  "to",
		Usage: "receiver of the call, creates a contract if not set",
	},
}

// Fetch returns nil if the flag is not set.
func (f *addressFlagType) Fetch(context *cli.Context) (*rigoletto.Address, error) {
	text := context.String(f.Name)
	if text == "" {
		return nil, nil
	}
	var res rigoletto.Address
	if err := res.UnmarshalText([]byte(text)); err != nil {
		return nil, fmt.Errorf("invalid %s address: %w", f.Name, err)
	}
	return &res, nil
}

type dataFlagType struct {
	cli.StringFlag
}

var DataFlag = &dataFlagType{
	cli.StringFlag{
		Name:  "data",
		Usage: "hex encoded input of the call",
	},
}

func (f *dataFlagType) Fetch(context *cli.Context) (rigoletto.Data, error) {
	text := context.String(f.Name)
	if text == "" {
		return nil, nil
	}
	var res rigoletto.Data
	if err := res.UnmarshalText([]byte(text)); err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	return res, nil
}

type valueFlagType struct {
	cli.StringFlag
}

var ValueFlag = &valueFlagType{
	cli.StringFlag{
		Name:  "value",
		Usage: "wei transferred with the call, decimal or 0x prefixed hex",
		Value: "0",
	},
}

func (f *valueFlagType) Fetch(context *cli.Context) (rigoletto.Value, error) {
	n, ok := new(big.Int).SetString(context.String(f.Name), 0)
	if !ok || n.Sign() < 0 {
		return rigoletto.Value{}, fmt.Errorf("invalid value %q", context.String(f.Name))
	}
	return rigoletto.ValueFromBig(n)
}

type gasFlagType struct {
	cli.Uint64Flag
}

var GasFlag = &gasFlagType{
	cli.Uint64Flag{
		Name:  "gas",
		Usage: "gas limit of the call, the block gas limit if not set",
	},
}

func (f *gasFlagType) Fetch(context *cli.Context) *uint64 {
	if !context.IsSet(f.Name) {
		return nil
	}
	res := context.Uint64(f.Name)
	return &res
}

var callFlags = []cli.Flag{
	FromFlag,
	ToFlag,
	DataFlag,
	ValueFlag,
	GasFlag,
}
