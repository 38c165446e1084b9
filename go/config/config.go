// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package config loads the settings of a Rigoletto node.
//
// Settings are read from a toml file, by default rigoletto.toml in the
// working directory, and may be overridden through environment variables
// with the prefix RIGOLETTO, e.g. RIGOLETTO_ENGINE_CHAIN_ID. The file is
// shared with the logger configuration:
//
//	[engine]
//	chain-id = 31337
//	spec = "Cancun"
//
//	[fork]
//	url = "https://rpc.ankr.com/eth"
//	block-number = 19000000
//	cache-dir = "/tmp/rigoletto"
//
//	[genesis]
//	timestamp = 1700000000
//	[[genesis.accounts]]
//	private-key = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
//	balance = "10000000000000000000000"
//
//	[mining]
//	beneficiary = "0xc014ba5ec014ba5ec014ba5ec014ba5ec014ba5e"
//	ordering = "priority"
//	reward = 0
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Fantom-foundation/Rigoletto/go/chain"
	"github.com/Fantom-foundation/Rigoletto/go/engine"
	"github.com/Fantom-foundation/Rigoletto/go/log"
	"github.com/Fantom-foundation/Rigoletto/go/miner"
	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

var logger = log.NewLogger("config")

const (
	envPrefix       = "RIGOLETTO"
	defaultFileName = "rigoletto"

	DefaultChainID = 31337
)

type Config struct {
	Engine  engine.Config `mapstructure:"engine"`
	Fork    ForkConfig    `mapstructure:"fork"`
	Genesis GenesisConfig `mapstructure:"genesis"`
	Mining  MiningConfig  `mapstructure:"mining"`
}

// ForkConfig selects a remote chain to continue. Forking is disabled if no
// URL is set.
type ForkConfig struct {
	URL         string  `mapstructure:"url"`
	BlockNumber *uint64 `mapstructure:"block-number"`
	CacheDir    string  `mapstructure:"cache-dir"`
}

type GenesisConfig struct {
	Timestamp *uint64         `mapstructure:"timestamp"`
	GasLimit  *uint64         `mapstructure:"gas-limit"`
	Accounts  []AccountConfig `mapstructure:"accounts"`
}

// AccountConfig is a funded account. If a private key is given, the address
// is derived from it.
type AccountConfig struct {
	PrivateKey string            `mapstructure:"private-key"`
	Address    rigoletto.Address `mapstructure:"address"`
	Balance    rigoletto.Value   `mapstructure:"balance"`
}

type MiningConfig struct {
	Beneficiary   rigoletto.Address `mapstructure:"beneficiary"`
	Ordering      string            `mapstructure:"ordering"`
	MinGasPrice   rigoletto.Value   `mapstructure:"min-gas-price"`
	Reward        rigoletto.Value   `mapstructure:"reward"`
	BlockGasLimit uint64            `mapstructure:"block-gas-limit"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.chain-id", DefaultChainID)
	v.SetDefault("engine.spec", rigoletto.Latest.String())
	v.SetDefault("engine.interpreter", engine.DefaultInterpreter)
	v.SetDefault("engine.disable-block-gas-limit", false)
	v.SetDefault("engine.disable-eip3607", false)
	v.SetDefault("fork.url", "")
	v.SetDefault("fork.cache-dir", "")
	v.SetDefault("mining.ordering", miner.Priority.String())
	v.SetDefault("mining.min-gas-price", 0)
	v.SetDefault("mining.reward", 0)
	v.SetDefault("mining.block-gas-limit", chain.DefaultGasLimit)
}

// Load reads the configuration from the given file, or from rigoletto.toml
// in the working directory if the path is empty. A missing default file is
// not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(defaultFileName)
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !(errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("failed to read configuration: %w", err)
		}
	}

	config := &Config{}
	hooks := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		valueHook,
		mapstructure.TextUnmarshallerHookFunc(),
	))
	if err := v.Unmarshal(config, hooks); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	logger.Debug().
		Str("file", v.ConfigFileUsed()).
		Uint64("chainId", config.Engine.ChainID).
		Stringer("spec", config.Engine.SpecID).
		Msg("loaded configuration")
	return config, nil
}

func (c *Config) Validate() error {
	if !c.Engine.SpecID.IsValid() {
		return &rigoletto.ErrUnsupportedRevision{Revision: c.Engine.SpecID}
	}
	if _, err := miner.ParseOrdering(c.Mining.Ordering); err != nil {
		return err
	}
	if _, err := c.Genesis.GenesisAccounts(); err != nil {
		return err
	}
	return nil
}

// GenesisAccounts returns the accounts to be funded at genesis or on top of
// a forked chain.
func (c *GenesisConfig) GenesisAccounts() ([]chain.GenesisAccount, error) {
	res := make([]chain.GenesisAccount, 0, len(c.Accounts))
	for i, account := range c.Accounts {
		genesis := chain.GenesisAccount{Address: account.Address, Balance: account.Balance}
		if account.PrivateKey != "" {
			key, err := crypto.HexToECDSA(strings.TrimPrefix(account.PrivateKey, "0x"))
			if err != nil {
				return nil, fmt.Errorf("invalid private key of account %d: %w", i, err)
			}
			genesis.PrivateKey = key
		}
		res = append(res, genesis)
	}
	return res, nil
}

// MineOptions returns the miner settings. Timestamps, base fees and
// prevrandao are left to be derived from the parent block.
func (c *MiningConfig) MineOptions() (miner.MineOptions, error) {
	ordering, err := miner.ParseOrdering(c.Ordering)
	if err != nil {
		return miner.MineOptions{}, err
	}
	return miner.MineOptions{
		Beneficiary: c.Beneficiary,
		MinGasPrice: c.MinGasPrice,
		Ordering:    ordering,
		Reward:      c.Reward,
	}, nil
}

// OpenChain creates the chain described by the configuration, forking the
// remote chain if a URL is configured.
func (c *Config) OpenChain(ctx context.Context) (*chain.Blockchain, error) {
	accounts, err := c.Genesis.GenesisAccounts()
	if err != nil {
		return nil, err
	}
	if c.Fork.URL == "" {
		return chain.WithGenesisBlock(c.Engine.ChainID, c.Engine.SpecID, chain.BlockOptions{
			Timestamp: c.Genesis.Timestamp,
			GasLimit:  c.Genesis.GasLimit,
		}, accounts)
	}

	remote, err := chain.DialRpcChain(ctx, c.Fork.URL)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("url", c.Fork.URL).Msg("forking remote chain")
	res, err := chain.Fork(ctx, chain.ForkOptions{
		Remote:      remote,
		Spec:        c.Engine.SpecID,
		BlockNumber: c.Fork.BlockNumber,
		CacheDir:    c.Fork.CacheDir,
		Accounts:    accounts,
	})
	if err != nil {
		remote.Close()
		return nil, err
	}
	return res, nil
}
