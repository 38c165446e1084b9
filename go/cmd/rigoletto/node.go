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
	"encoding/json"
	"fmt"

	"github.com/Fantom-foundation/Rigoletto/go/chain"
	"github.com/Fantom-foundation/Rigoletto/go/config"
	"github.com/Fantom-foundation/Rigoletto/go/engine"
	"github.com/Fantom-foundation/Rigoletto/go/state"
	"github.com/urfave/cli/v2"
)

// node bundles the components a command works on.
type node struct {
	config *config.Config
	engine *engine.Engine
	chain  *chain.Blockchain
	state  *state.State // < the state after the head block
}

// loadConfig reads the configuration file and applies the global flags.
func loadConfig(context *cli.Context) (*config.Config, error) {
	res, err := config.Load(ConfigFlag.Fetch(context))
	if err != nil {
		return nil, err
	}
	if id := ChainIDFlag.Fetch(context); id != nil {
		res.Engine.ChainID = *id
	}
	spec, err := SpecFlag.Fetch(context)
	if err != nil {
		return nil, err
	}
	if spec != nil {
		res.Engine.SpecID = *spec
	}
	if url := ForkURLFlag.Fetch(context); url != "" {
		res.Fork.URL = url
	}
	if number := ForkBlockFlag.Fetch(context); number != nil {
		res.Fork.BlockNumber = number
	}
	if dir := CacheDirFlag.Fetch(context); dir != "" {
		res.Fork.CacheDir = dir
	}
	return res, nil
}

func openNode(context *cli.Context, cfg *config.Config) (*node, error) {
	eng, err := engine.New(cfg.Engine)
	if err != nil {
		return nil, err
	}
	blockchain, err := cfg.OpenChain(context.Context)
	if err != nil {
		return nil, err
	}
	s, err := blockchain.StateAtBlockNumber(context.Context, blockchain.LastBlockNumber())
	if err != nil {
		blockchain.Close()
		return nil, err
	}
	return &node{
		config: cfg,
		engine: eng,
		chain:  blockchain,
		state:  s,
	}, nil
}

func (n *node) Close() error {
	return n.chain.Close()
}

func printJSON(context *cli.Context, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(context.App.Writer, string(data))
	return err
}
