// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package transaction

import (
	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/trie"
)

const (
	ReceiptStatusFailed     = uint64(types.ReceiptStatusFailed)
	ReceiptStatusSuccessful = uint64(types.ReceiptStatusSuccessful)
)

// Receipt records the outcome of an included transaction. Exactly one of
// Status (Byzantium and later) and PostState (earlier revisions) is set.
type Receipt struct {
	Type              Type               `json:"type"`
	Status            *uint64            `json:"status,omitempty"`
	PostState         *rigoletto.Hash    `json:"root,omitempty"`
	CumulativeGasUsed uint64             `json:"cumulativeGasUsed"`
	GasUsed           uint64             `json:"gasUsed"`
	Logs              []rigoletto.Log    `json:"logs"`
	Bloom             types.Bloom        `json:"logsBloom"`
	ContractAddress   *rigoletto.Address `json:"contractAddress,omitempty"`
	EffectiveGasPrice rigoletto.Value    `json:"effectiveGasPrice"`
	BlobGasUsed       uint64             `json:"blobGasUsed,omitempty"`

	TransactionHash  rigoletto.Hash     `json:"transactionHash"`
	TransactionIndex uint64             `json:"transactionIndex"`
	BlockHash        rigoletto.Hash     `json:"blockHash"`
	BlockNumber      uint64             `json:"blockNumber"`
	From             rigoletto.Address  `json:"from"`
	To               *rigoletto.Address `json:"to,omitempty"`
}

// IsSuccessful reports the status of receipts of Byzantium and later blocks.
// Earlier receipts carry no status and are reported as successful.
func (r *Receipt) IsSuccessful() bool {
	return r.Status == nil || *r.Status == ReceiptStatusSuccessful
}

// ToGeth converts the consensus fields of the receipt.
func (r *Receipt) ToGeth() *types.Receipt {
	res := &types.Receipt{
		Type:              uint8(r.Type),
		CumulativeGasUsed: r.CumulativeGasUsed,
		Bloom:             r.Bloom,
		Logs:              make([]*types.Log, len(r.Logs)),
		TxHash:            common.Hash(r.TransactionHash),
		GasUsed:           r.GasUsed,
		BlockHash:         common.Hash(r.BlockHash),
		TransactionIndex:  uint(r.TransactionIndex),
	}
	if r.PostState != nil {
		res.PostState = common.CopyBytes(r.PostState[:])
	} else {
		res.Status = ReceiptStatusSuccessful
		if r.Status != nil {
			res.Status = *r.Status
		}
	}
	if r.ContractAddress != nil {
		res.ContractAddress = common.Address(*r.ContractAddress)
	}
	for i, log := range r.Logs {
		res.Logs[i] = toGethLog(log)
	}
	return res
}

func toGethLog(log rigoletto.Log) *types.Log {
	topics := make([]common.Hash, len(log.Topics))
	for i, topic := range log.Topics {
		topics[i] = common.Hash(topic)
	}
	return &types.Log{
		Address: common.Address(log.Address),
		Topics:  topics,
		Data:    common.CopyBytes(log.Data),
	}
}

// LogsBloom computes the bloom filter of the given logs.
func LogsBloom(logs []rigoletto.Log) types.Bloom {
	var bloom types.Bloom
	for _, log := range logs {
		bloom.Add(log.Address[:])
		for _, topic := range log.Topics {
			bloom.Add(topic[:])
		}
	}
	return bloom
}

// ReceiptsRoot computes the commitment stored in a block header.
func ReceiptsRoot(receipts []*Receipt) rigoletto.Hash {
	list := make(types.Receipts, len(receipts))
	for i, receipt := range receipts {
		list[i] = receipt.ToGeth()
	}
	return rigoletto.Hash(types.DeriveSha(list, trie.NewStackTrie(nil)))
}

// TransactionsRoot computes the commitment stored in a block header.
func TransactionsRoot(transactions []*Signed) rigoletto.Hash {
	list := make(types.Transactions, len(transactions))
	for i, tx := range transactions {
		list[i] = tx.ToGeth()
	}
	return rigoletto.Hash(types.DeriveSha(list, trie.NewStackTrie(nil)))
}
