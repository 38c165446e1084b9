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
	"math/big"
	"testing"

	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// fakeEthService answers the subset of the eth namespace used by RpcSource.
type fakeEthService struct {
	block hexutil.Uint64
}

func (s *fakeEthService) ChainId() hexutil.Uint64 {
	return 250
}

func (s *fakeEthService) GetBalance(address common.Address, block hexutil.Uint64) *hexutil.Big {
	s.block = block
	return (*hexutil.Big)(big.NewInt(int64(address[0]) * 1000))
}

func (s *fakeEthService) GetTransactionCount(address common.Address, block hexutil.Uint64) hexutil.Uint64 {
	return hexutil.Uint64(address[0])
}

func (s *fakeEthService) GetCode(address common.Address, block hexutil.Uint64) hexutil.Bytes {
	return hexutil.Bytes{0x60, address[0]}
}

func (s *fakeEthService) GetStorageAt(address common.Address, key common.Hash, block hexutil.Uint64) hexutil.Bytes {
	return hexutil.Bytes(common.Hash{31: key[31] + 1}.Bytes())
}

func newFakeRpcSource(t *testing.T) (*RpcSource, *fakeEthService) {
	t.Helper()
	service := &fakeEthService{}
	server := rpc.NewServer()
	if err := server.RegisterName("eth", service); err != nil {
		t.Fatalf("failed to register service: %v", err)
	}
	t.Cleanup(server.Stop)
	source := NewRpcSource(ethclient.NewClient(rpc.DialInProc(server)))
	t.Cleanup(source.Close)
	return source, service
}

func TestRpcSource_ChainID(t *testing.T) {
	source, _ := newFakeRpcSource(t)
	id, err := source.ChainID(context.Background())
	if err != nil {
		t.Fatalf("failed to get chain id: %v", err)
	}
	if want, got := uint64(250), id; want != got {
		t.Errorf("wanted %d, got %d", want, got)
	}
}

func TestRpcSource_Account(t *testing.T) {
	source, service := newFakeRpcSource(t)
	account, err := source.Account(context.Background(), rigoletto.Address{3}, 1234)
	if err != nil {
		t.Fatalf("failed to fetch account: %v", err)
	}
	if want, got := rigoletto.NewValue(3000), account.Balance; want != got {
		t.Errorf("unexpected balance, wanted %v, got %v", want, got)
	}
	if want, got := uint64(3), account.Nonce; want != got {
		t.Errorf("unexpected nonce, wanted %v, got %v", want, got)
	}
	if want, got := 2, len(account.Code); want != got {
		t.Errorf("unexpected code size, wanted %v, got %v", want, got)
	}
	if want, got := hexutil.Uint64(1234), service.block; want != got {
		t.Errorf("unexpected block, wanted %v, got %v", want, got)
	}
}

func TestRpcSource_Storage(t *testing.T) {
	source, _ := newFakeRpcSource(t)
	value, err := source.Storage(context.Background(), rigoletto.Address{1}, rigoletto.Key{31: 4}, 10)
	if err != nil {
		t.Fatalf("failed to fetch storage: %v", err)
	}
	if want, got := (rigoletto.Word{31: 5}), value; want != got {
		t.Errorf("wanted %v, got %v", want, got)
	}
}

func TestRpcSource_ServesForkedState(t *testing.T) {
	source, _ := newFakeRpcSource(t)
	s, err := ForkRemote(context.Background(), source, 5, nil, ForkOptions{})
	if err != nil {
		t.Fatalf("failed to fork: %v", err)
	}
	account := mustGet(t, s, rigoletto.Address{2})
	if account == nil || account.Nonce != 2 {
		t.Errorf("unexpected account %v", account)
	}
}
