// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package chain

//go:generate mockgen -source remote.go -destination remote_mock.go -package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	"github.com/Fantom-foundation/Rigoletto/go/state"
	"github.com/Fantom-foundation/Rigoletto/go/transaction"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// RemoteChain provides the blocks, receipts and account data of a chain a
// Blockchain is forked from. Lookups of unknown blocks or receipts return nil
// without an error.
type RemoteChain interface {
	state.RemoteSource
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockByNumber(ctx context.Context, number uint64) (*Block, error)
	BlockByHash(ctx context.Context, hash rigoletto.Hash) (*Block, error)
	ReceiptByTransactionHash(ctx context.Context, hash rigoletto.Hash) (*transaction.Receipt, error)
	TotalDifficultyByHash(ctx context.Context, hash rigoletto.Hash) (*big.Int, error)
}

// RpcChain is a RemoteChain backed by the JSON-RPC interface of a node.
type RpcChain struct {
	*state.RpcSource
}

// DialRpcChain connects to the node at the given URL.
func DialRpcChain(ctx context.Context, url string) (*RpcChain, error) {
	source, err := state.DialRpcSource(ctx, url)
	if err != nil {
		return nil, err
	}
	return &RpcChain{RpcSource: source}, nil
}

func (c *RpcChain) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.Client().BlockNumber(ctx)
}

func (c *RpcChain) BlockByNumber(ctx context.Context, number uint64) (*Block, error) {
	block, err := c.Client().BlockByNumber(ctx, new(big.Int).SetUint64(number))
	return c.convertBlock(ctx, block, err)
}

func (c *RpcChain) BlockByHash(ctx context.Context, hash rigoletto.Hash) (*Block, error) {
	block, err := c.Client().BlockByHash(ctx, common.Hash(hash))
	return c.convertBlock(ctx, block, err)
}

func (c *RpcChain) convertBlock(ctx context.Context, block *types.Block, err error) (*Block, error) {
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	chainID, err := c.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	return blockFromGeth(block, new(big.Int).SetUint64(chainID))
}

// ReceiptByTransactionHash fetches the raw receipt, since the sender and
// recipient are not part of the geth receipt encoding.
func (c *RpcChain) ReceiptByTransactionHash(ctx context.Context, hash rigoletto.Hash) (*transaction.Receipt, error) {
	var raw json.RawMessage
	if err := c.Client().Client().CallContext(ctx, &raw, "eth_getTransactionReceipt", common.Hash(hash)); err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var receipt types.Receipt
	if err := json.Unmarshal(raw, &receipt); err != nil {
		return nil, fmt.Errorf("invalid receipt of %v: %w", hash, err)
	}
	var parties struct {
		From common.Address  `json:"from"`
		To   *common.Address `json:"to"`
	}
	if err := json.Unmarshal(raw, &parties); err != nil {
		return nil, fmt.Errorf("invalid receipt of %v: %w", hash, err)
	}
	res := receiptFromGeth(&receipt)
	res.From = rigoletto.Address(parties.From)
	if parties.To != nil {
		to := rigoletto.Address(*parties.To)
		res.To = &to
	}
	return res, nil
}

func (c *RpcChain) TotalDifficultyByHash(ctx context.Context, hash rigoletto.Hash) (*big.Int, error) {
	var header *struct {
		TotalDifficulty *hexutil.Big `json:"totalDifficulty"`
	}
	if err := c.Client().Client().CallContext(ctx, &header, "eth_getBlockByHash", common.Hash(hash), false); err != nil {
		return nil, err
	}
	if header == nil || header.TotalDifficulty == nil {
		return nil, nil
	}
	return header.TotalDifficulty.ToInt(), nil
}

func receiptFromGeth(receipt *types.Receipt) *transaction.Receipt {
	res := &transaction.Receipt{
		Type:              transaction.Type(receipt.Type),
		CumulativeGasUsed: receipt.CumulativeGasUsed,
		GasUsed:           receipt.GasUsed,
		Logs:              make([]rigoletto.Log, len(receipt.Logs)),
		Bloom:             receipt.Bloom,
		BlobGasUsed:       receipt.BlobGasUsed,
		TransactionHash:   rigoletto.Hash(receipt.TxHash),
		TransactionIndex:  uint64(receipt.TransactionIndex),
		BlockHash:         rigoletto.Hash(receipt.BlockHash),
	}
	if receipt.BlockNumber != nil {
		res.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if len(receipt.PostState) == len(rigoletto.Hash{}) {
		root := rigoletto.Hash(receipt.PostState)
		res.PostState = &root
	} else {
		status := receipt.Status
		res.Status = &status
	}
	if receipt.ContractAddress != (common.Address{}) {
		address := rigoletto.Address(receipt.ContractAddress)
		res.ContractAddress = &address
	}
	if receipt.EffectiveGasPrice != nil {
		if price, err := rigoletto.ValueFromBig(receipt.EffectiveGasPrice); err == nil {
			res.EffectiveGasPrice = price
		}
	}
	for i, log := range receipt.Logs {
		topics := make([]rigoletto.Hash, len(log.Topics))
		for j, topic := range log.Topics {
			topics[j] = rigoletto.Hash(topic)
		}
		res.Logs[i] = rigoletto.Log{
			Address: rigoletto.Address(log.Address),
			Topics:  topics,
			Data:    common.CopyBytes(log.Data),
		}
	}
	return res
}
