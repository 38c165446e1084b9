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
	"github.com/Fantom-foundation/Rigoletto/go/tracing"
	"github.com/urfave/cli/v2"
)

var TraceCmd = cli.Command{
	Action: doTrace,
	Name:   "trace",
	Usage:  "Prints the executed instructions of a call in the debug_traceCall format",
	Flags: append([]cli.Flag{
		&cli.BoolFlag{Name: "disable-storage", Usage: "omit storage slots"},
		&cli.BoolFlag{Name: "disable-memory", Usage: "omit memory"},
		&cli.BoolFlag{Name: "disable-stack", Usage: "omit the stack"},
	}, callFlags...),
}

func doTrace(context *cli.Context) error {
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

	traceConfig := tracing.StructLoggerConfig{
		DisableStorage: context.Bool("disable-storage"),
		DisableMemory:  context.Bool("disable-memory"),
		DisableStack:   context.Bool("disable-stack"),
	}
	res, err := n.engine.DebugTraceCall(context.Context, n.chain, n.state, traceConfig, request, engine.BlockConfig{})
	if err != nil {
		return err
	}
	return printJSON(context, res)
}
