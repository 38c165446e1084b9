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

import (
	"context"
	"fmt"
	"math/big"

	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// RpcSource is a RemoteSource backed by the JSON-RPC interface of a node.
type RpcSource struct {
	client *ethclient.Client
}

func NewRpcSource(client *ethclient.Client) *RpcSource {
	return &RpcSource{client: client}
}

// DialRpcSource connects to the node at the given URL.
func DialRpcSource(ctx context.Context, url string) (*RpcSource, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	return NewRpcSource(client), nil
}

func (s *RpcSource) Client() *ethclient.Client {
	return s.client
}

func (s *RpcSource) Close() {
	s.client.Close()
}

func (s *RpcSource) ChainID(ctx context.Context) (uint64, error) {
	id, err := s.client.ChainID(ctx)
	if err != nil {
		return 0, err
	}
	if !id.IsUint64() {
		return 0, fmt.Errorf("chain id %v out of range", id)
	}
	return id.Uint64(), nil
}

// Account fetches balance, nonce and code in a single batch request.
func (s *RpcSource) Account(ctx context.Context, address rigoletto.Address, block uint64) (RemoteAccount, error) {
	var (
		balance hexutil.Big
		nonce   hexutil.Uint64
		code    hexutil.Bytes
	)
	addr := common.Address(address)
	number := hexutil.EncodeUint64(block)
	batch := []rpc.BatchElem{
		{Method: "eth_getBalance", Args: []any{addr, number}, Result: &balance},
		{Method: "eth_getTransactionCount", Args: []any{addr, number}, Result: &nonce},
		{Method: "eth_getCode", Args: []any{addr, number}, Result: &code},
	}
	if err := s.client.Client().BatchCallContext(ctx, batch); err != nil {
		return RemoteAccount{}, err
	}
	for _, elem := range batch {
		if elem.Error != nil {
			return RemoteAccount{}, fmt.Errorf("%s failed: %w", elem.Method, elem.Error)
		}
	}
	value, err := rigoletto.ValueFromBig((*big.Int)(&balance))
	if err != nil {
		return RemoteAccount{}, err
	}
	return RemoteAccount{
		Balance: value,
		Nonce:   uint64(nonce),
		Code:    rigoletto.Code(code),
	}, nil
}

func (s *RpcSource) Storage(ctx context.Context, address rigoletto.Address, key rigoletto.Key, block uint64) (rigoletto.Word, error) {
	data, err := s.client.StorageAt(ctx, common.Address(address), common.Hash(key), new(big.Int).SetUint64(block))
	if err != nil {
		return rigoletto.Word{}, err
	}
	var res rigoletto.Word
	if len(data) > len(res) {
		return res, fmt.Errorf("invalid storage value of %d bytes", len(data))
	}
	copy(res[len(res)-len(data):], data)
	return res, nil
}
