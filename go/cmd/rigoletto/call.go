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
	"github.com/Fantom-foundation/Rigoletto/go/engine"
	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	"github.com/Fantom-foundation/Rigoletto/go/tracing"
	"github.com/Fantom-foundation/Rigoletto/go/transaction"
	"github.com/urfave/cli/v2"
)

var CallCmd = cli.Command{
	Action: doCall,
	Name:   "call",
	Usage:  "Executes a call on top of the head block without committing it",
	Flags: append([]cli.Flag{
		&cli.BoolFlag{
			Name:  "checked",
			Usage: "validate nonce, balance and fees of the sender",
		},
		&cli.BoolFlag{
			Name:  "calls",
			Usage: "print the tree of nested calls",
		},
	}, callFlags...),
}

type callOutput struct {
	Result rigoletto.ExecutionResult `json:"result"`
	Calls  *tracing.CallNode         `json:"calls,omitempty"`
}

// fetchRequest builds a request from the call flags.
func fetchRequest(context *cli.Context) (*transaction.Request, error) {
	from, err := FromFlag.Fetch(context)
	if err != nil {
		return nil, err
	}
	to, err := ToFlag.Fetch(context)
	if err != nil {
		return nil, err
	}
	input, err := DataFlag.Fetch(context)
	if err != nil {
		return nil, err
	}
	value, err := ValueFlag.Fetch(context)
	if err != nil {
		return nil, err
	}
	var sender rigoletto.Address
	if from != nil {
		sender = *from
	}
	return &transaction.Request{
		From:     sender,
		To:       to,
		GasLimit: GasFlag.Fetch(context),
		Value:    value,
		Input:    input,
	}, nil
}

func doCall(context *cli.Context) error {
	request, err := fetchRequest(context)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(context)
	if err != nil {
		return err
	}
	n, err := openNode(context, cfg)
	if err != nil {
		return err
	}
	defer n.Close()

	run := n.engine.GuaranteedDryRun
	if context.Bool("checked") {
		run = n.engine.DryRun
	}
	withTrace := context.Bool("calls")
	res, err := run(context.Context, n.chain, n.state, request, engine.BlockConfig{}, withTrace)
	if err != nil {
		return err
	}

	out := callOutput{Result: res.Result}
	if withTrace {
		if out.Calls, err = tracing.BuildTree(res.Trace); err != nil {
			return err
		}
	}
	return printJSON(context, out)
}
