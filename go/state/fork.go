// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package state

//go:generate mockgen -source fork.go -destination fork_mock.go -package state

import (
	"context"
	"fmt"

	"github.com/Fantom-foundation/Rigoletto/go/log"
	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	"github.com/ethereum/go-ethereum/rlp"
)

var logger = log.NewLogger("state")

// RemoteSource is a read-only provider of historic account data of a chain.
type RemoteSource interface {
	ChainID(ctx context.Context) (uint64, error)
	Account(ctx context.Context, address rigoletto.Address, block uint64) (RemoteAccount, error)
	Storage(ctx context.Context, address rigoletto.Address, key rigoletto.Key, block uint64) (rigoletto.Word, error)
}

// RemoteAccount is an account as reported by a RemoteSource.
type RemoteAccount struct {
	Balance rigoletto.Value
	Nonce   uint64
	Code    rigoletto.Code
}

func (a *RemoteAccount) isEmpty() bool {
	return a == nil || (a.Balance.IsZero() && a.Nonce == 0 && len(a.Code) == 0)
}

// AccountOverride replaces parts of a remote account when forking. Nil fields
// keep the remote value.
type AccountOverride struct {
	Balance *rigoletto.Value
	Nonce   *uint64
	Code    rigoletto.Code
	Storage map[rigoletto.Key]rigoletto.Word
}

type ForkOptions struct {
	// Cache holds fetched values. If nil, an in-memory cache private to the
	// forked state is used.
	Cache *FetchCache
	// ChainID of the remote chain. If zero, it is requested from the source.
	ChainID uint64
}

// ForkRemote creates a state based on the state of a remote chain at the
// given block. Overrides are applied on top of the remote accounts.
func ForkRemote(
	ctx context.Context,
	source RemoteSource,
	block uint64,
	overrides map[rigoletto.Address]AccountOverride,
	opts ForkOptions,
) (*State, error) {
	chainID := opts.ChainID
	if chainID == 0 {
		id, err := source.ChainID(ctx)
		if err != nil {
			return nil, &rigoletto.RemoteFetchError{Op: "chain id", BlockNumber: block, Err: err}
		}
		chainID = id
	}
	cache := opts.Cache
	if cache == nil {
		cache = NewMemoryFetchCache(DefaultFetchCacheSize)
	}

	res := New()
	res.remote = &remote{
		source:  source,
		chainID: chainID,
		block:   block,
		cache:   cache,
	}

	for _, address := range sortedAddresses(overrides) {
		override := overrides[address]
		err := res.Modify(ctx, address, func(current *Account) (*Account, error) {
			if current == nil {
				current = &Account{}
			}
			if override.Balance != nil {
				current.Balance = *override.Balance
			}
			if override.Nonce != nil {
				current.Nonce = *override.Nonce
			}
			if override.Code != nil {
				current.Code = rigoletto.NewBytecode(override.Code)
			}
			return current, nil
		})
		if err != nil {
			return nil, err
		}
		for key, value := range override.Storage {
			res.SetStorage(address, key, value)
		}
	}

	logger.Debug().
		Uint64("chainId", chainID).
		Uint64("block", block).
		Int("overrides", len(overrides)).
		Msg("forked remote state")
	return res, nil
}

// remote resolves reads of a forked state through the fetch cache.
type remote struct {
	source  RemoteSource
	chainID uint64
	block   uint64
	cache   *FetchCache
}

func (r *remote) account(ctx context.Context, address rigoletto.Address) (*RemoteAccount, error) {
	key := fmt.Sprintf("account/%d/%d/%x", r.chainID, r.block, address[:])
	data, err := r.cache.fetch(ctx, key, func(ctx context.Context) ([]byte, error) {
		account, err := r.source.Account(ctx, address, r.block)
		if err != nil {
			return nil, err
		}
		return rlp.EncodeToBytes(&account)
	})
	if err != nil {
		return nil, &rigoletto.RemoteFetchError{Op: "account " + address.String(), BlockNumber: r.block, Err: err}
	}
	var res RemoteAccount
	if err := rlp.DecodeBytes(data, &res); err != nil {
		return nil, &rigoletto.RemoteFetchError{Op: "account " + address.String(), BlockNumber: r.block, Err: err}
	}
	return &res, nil
}

func (r *remote) storage(ctx context.Context, address rigoletto.Address, key rigoletto.Key) (rigoletto.Word, error) {
	cacheKey := fmt.Sprintf("storage/%d/%d/%x/%x", r.chainID, r.block, address[:], key[:])
	data, err := r.cache.fetch(ctx, cacheKey, func(ctx context.Context) ([]byte, error) {
		value, err := r.source.Storage(ctx, address, key, r.block)
		if err != nil {
			return nil, err
		}
		return value[:], nil
	})
	if err != nil {
		return rigoletto.Word{}, &rigoletto.RemoteFetchError{Op: "storage " + address.String(), BlockNumber: r.block, Err: err}
	}
	var res rigoletto.Word
	if len(data) != len(res) {
		return res, &rigoletto.RemoteFetchError{
			Op:          "storage " + address.String(),
			BlockNumber: r.block,
			Err:         fmt.Errorf("invalid cached slot size %d", len(data)),
		}
	}
	copy(res[:], data)
	return res, nil
}
