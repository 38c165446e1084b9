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
	"time"

	"github.com/Fantom-foundation/Rigoletto/go/examples"
	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	"github.com/dsnet/golib/unitconv"
	"github.com/urfave/cli/v2"
)

var BenchCmd = cli.Command{
	Action: doBench,
	Name:   "bench",
	Usage:  "Runs example contracts on top of the head block and reports their throughput",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "example",
			Aliases: []string{"e"},
			Usage:   "examples to run, all if not set",
		},
		&cli.IntFlag{
			Name:  "runs",
			Usage: "number of calls per example",
			Value: 100,
		},
		&cli.IntFlag{
			Name:  "argument",
			Usage: "argument passed to the examples",
			Value: 100,
		},
	},
}

// benchAddress is where the examples are deployed.
var benchAddress = rigoletto.Address{0xbe, 0x4c}

func doBench(context *cli.Context) error {
	selected := examples.All()
	if names := context.StringSlice("example"); len(names) > 0 {
		selected = selected[:0]
		for _, name := range names {
			example, found := examples.ByName(name)
			if !found {
				return fmt.Errorf("unknown example %q", name)
			}
			selected = append(selected, example)
		}
	}
	runs := context.Int("runs")
	argument := context.Int("argument")

	cfg, err := loadConfig(context)
	if err != nil {
		return err
	}
	n, err := openNode(context, cfg)
	if err != nil {
		return err
	}
	defer n.Close()

	out := context.App.Writer
	for _, example := range selected {
		s := n.state.Clone()
		example.Deploy(s, benchAddress)

		var gas uint64
		start := time.Now()
		for i := 0; i < runs; i++ {
			res, err := example.RunOn(context.Context, n.engine, n.chain, s, benchAddress, argument)
			if err != nil {
				return err
			}
			if want := example.RunReference(argument); res.Result != want {
				return fmt.Errorf("example %s returned %d, wanted %d", example.Name, res.Result, want)
			}
			gas += res.UsedGas
		}
		seconds := max(time.Since(start).Seconds(), 1e-9)
		fmt.Fprintf(out, "%-16s %d runs, ~%s calls/s, ~%sgas/s\n",
			example.Name, runs,
			unitconv.FormatPrefix(float64(runs)/seconds, unitconv.SI, 1),
			unitconv.FormatPrefix(float64(gas)/seconds, unitconv.SI, 1),
		)
	}
	return nil
}
