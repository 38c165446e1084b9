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
	"errors"

	"github.com/Fantom-foundation/Rigoletto/go/config"
	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	"github.com/Fantom-foundation/Rigoletto/go/state"
	"github.com/urfave/cli/v2"
)

var GenesisCmd = cli.Command{
	Action: doGenesis,
	Name:   "genesis",
	Usage:  "Creates the configured genesis block and prints it",
}

var ForkCmd = cli.Command{
	Action: doFork,
	Name:   "fork",
	Usage:  "Forks the configured remote chain and prints the fork block",
}

type blockSummary struct {
	ChainID   uint64              `json:"chainId"`
	Spec      rigoletto.Revision  `json:"spec"`
	Number    uint64              `json:"number"`
	Hash      rigoletto.Hash      `json:"hash"`
	StateRoot rigoletto.Hash      `json:"stateRoot"`
	Timestamp uint64              `json:"timestamp"`
	GasLimit  uint64              `json:"gasLimit"`
	BaseFee   *rigoletto.Value    `json:"baseFee,omitempty"`
	Forked    bool                `json:"forked"`
	Accounts  []state.AccountDump `json:"accounts"`
}

func doGenesis(context *cli.Context) error {
	cfg, err := loadConfig(context)
	if err != nil {
		return err
	}
	cfg.Fork.URL = ""
	return printHead(context, cfg)
}

func doFork(context *cli.Context) error {
	cfg, err := loadConfig(context)
	if err != nil {
		return err
	}
	if cfg.Fork.URL == "" {
		return errors.New("no fork url configured, use --fork-url")
	}
	return printHead(context, cfg)
}

func printHead(context *cli.Context, cfg *config.Config) error {
	n, err := openNode(context, cfg)
	if err != nil {
		return err
	}
	defer n.Close()

	head := n.chain.LastBlock()
	return printJSON(context, blockSummary{
		ChainID:   n.chain.ChainID(),
		Spec:      n.chain.SpecID(),
		Number:    head.Number(),
		Hash:      head.Hash(),
		StateRoot: head.StateRoot(),
		Timestamp: head.Timestamp(),
		GasLimit:  head.GasLimit(),
		BaseFee:   head.BaseFee(),
		Forked:    n.chain.IsForked(),
		Accounts:  n.state.Accounts(),
	})
}
