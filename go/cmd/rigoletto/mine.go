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
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/Fantom-foundation/Rigoletto/go/config"
	"github.com/Fantom-foundation/Rigoletto/go/mempool"
	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	"github.com/Fantom-foundation/Rigoletto/go/transaction"
	"github.com/dsnet/golib/unitconv"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/urfave/cli/v2"
	"pgregory.net/rand"
)

var MineCmd = cli.Command{
	Action: doMine,
	Name:   "mine",
	Usage:  "Mines blocks of random transfers between generated accounts",
	Flags: []cli.Flag{
		&cli.Uint64Flag{
			Name:  "blocks",
			Usage: "number of blocks to mine",
			Value: 10,
		},
		&cli.IntFlag{
			Name:  "transactions",
			Usage: "transactions submitted before each block",
			Value: 100,
		},
		&cli.IntFlag{
			Name:  "accounts",
			Usage: "number of generated accounts",
			Value: 16,
		},
		&cli.Uint64Flag{
			Name:    "seed",
			Aliases: []string{"s"},
			Usage:   "seed for the random number generator",
		},
	},
}

const (
	loadMaxFeePerGas = 100_000_000_000 // 100 gwei
	loadMaxTip       = 2_000_000_000
	loadMaxValue     = 1_000_000_000
)

// loadBalance funds each generated account with 1M ether.
var loadBalance = rigoletto.NewValue(1_000_000_000_000_000_000).Scale(1_000_000)

// loadGenerator produces signed transfers between a fixed set of accounts.
type loadGenerator struct {
	rnd       *rand.Rand
	chainID   uint64
	revision  rigoletto.Revision
	keys      []*ecdsa.PrivateKey
	addresses []rigoletto.Address
	nonces    []uint64
}

func newLoadGenerator(seed uint64, accounts int, chainID uint64, revision rigoletto.Revision) (*loadGenerator, error) {
	if accounts <= 0 {
		return nil, fmt.Errorf("at least one account is required, got %d", accounts)
	}
	g := &loadGenerator{
		rnd:      rand.New(seed),
		chainID:  chainID,
		revision: revision.Resolve(),
		nonces:   make([]uint64, accounts),
	}
	for len(g.keys) < accounts {
		var secret [32]byte
		g.rnd.Read(secret[:])
		key, err := crypto.ToECDSA(secret[:])
		if err != nil {
			continue // outside of the curve order
		}
		g.keys = append(g.keys, key)
		g.addresses = append(g.addresses, rigoletto.Address(crypto.PubkeyToAddress(key.PublicKey)))
	}
	return g, nil
}

func (g *loadGenerator) genesisAccounts() []config.AccountConfig {
	res := make([]config.AccountConfig, len(g.addresses))
	for i, address := range g.addresses {
		res[i] = config.AccountConfig{Address: address, Balance: loadBalance}
	}
	return res
}

func (g *loadGenerator) next() (*transaction.Signed, error) {
	from := g.rnd.Intn(len(g.keys))
	to := g.addresses[g.rnd.Intn(len(g.addresses))]
	nonce := g.nonces[from]
	g.nonces[from]++

	value := rigoletto.NewValue(g.rnd.Uint64n(loadMaxValue) + 1)
	tip := rigoletto.NewValue(g.rnd.Uint64n(loadMaxTip) + 1)

	var data transaction.TxData
	if g.revision.IsAtLeast(rigoletto.London) {
		data = &transaction.Eip1559{
			ChainID:              g.chainID,
			Nonce:                nonce,
			MaxPriorityFeePerGas: tip,
			MaxFeePerGas:         rigoletto.NewValue(loadMaxFeePerGas),
			GasLimit:             params.TxGas,
			To:                   &to,
			Value:                value,
		}
	} else {
		legacy := &transaction.Legacy{
			Nonce:    nonce,
			GasPrice: rigoletto.Add(rigoletto.NewValue(loadMaxFeePerGas), tip),
			GasLimit: params.TxGas,
			To:       &to,
			Value:    value,
		}
		if g.revision.IsAtLeast(rigoletto.SpuriousDragon) {
			chainID := g.chainID
			legacy.ChainID = &chainID
		}
		data = legacy
	}
	return transaction.Sign(data, g.keys[from])
}

func doMine(context *cli.Context) error {
	cfg, err := loadConfig(context)
	if err != nil {
		return err
	}
	blocks := context.Uint64("blocks")
	perBlock := context.Int("transactions")
	seed := context.Uint64("seed")

	generator, err := newLoadGenerator(seed, context.Int("accounts"), cfg.Engine.ChainID, cfg.Engine.SpecID)
	if err != nil {
		return err
	}
	cfg.Genesis.Accounts = append(cfg.Genesis.Accounts, generator.genesisAccounts()...)

	n, err := openNode(context, cfg)
	if err != nil {
		return err
	}
	defer n.Close()

	opts, err := cfg.Mining.MineOptions()
	if err != nil {
		return err
	}
	pool := mempool.New(cfg.Mining.BlockGasLimit)
	rules := transaction.Rules{
		ChainID:           cfg.Engine.ChainID,
		Revision:          cfg.Engine.SpecID.Resolve(),
		LimitInitcodeSize: cfg.Engine.LimitInitcodeSize,
		DisableEip3607:    cfg.Engine.DisableEip3607,
	}

	out := context.App.Writer
	fmt.Fprintf(out, "Mining %d blocks with seed %d ...\n", blocks, seed)

	var transactions, gas uint64
	start := time.Now()
	for i := uint64(0); i < blocks; i++ {
		for j := 0; j < perBlock; j++ {
			tx, err := generator.next()
			if err != nil {
				return err
			}
			pending, err := transaction.NewPending(context.Context, n.state, rules, tx)
			if err != nil {
				return fmt.Errorf("generated invalid transaction: %w", err)
			}
			if err := pool.AddTransaction(context.Context, n.state, pending); err != nil {
				return fmt.Errorf("failed to submit transaction: %w", err)
			}
		}

		res, err := n.engine.MineBlock(context.Context, n.chain, n.state, pool, opts)
		if err != nil {
			return fmt.Errorf("failed to mine block: %w", err)
		}
		n.state = res.State

		block := res.Block
		transactions += uint64(len(block.Transactions))
		gas += block.Header.GasUsed
		fmt.Fprintf(out, "block %d: %d transactions, %d gas, hash %v\n",
			block.Number(), len(block.Transactions), block.Header.GasUsed, block.Hash())
	}

	elapsed := time.Since(start)
	seconds := max(elapsed.Seconds(), 1e-9)
	fmt.Fprintf(out, "Mined %d blocks with %d transactions in %v, ~%s tx/s, ~%sgas/s\n",
		blocks, transactions, elapsed.Round(time.Millisecond),
		unitconv.FormatPrefix(float64(transactions)/seconds, unitconv.SI, 1),
		unitconv.FormatPrefix(float64(gas)/seconds, unitconv.SI, 1),
	)
	return nil
}
