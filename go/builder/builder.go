// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package builder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Fantom-foundation/Rigoletto/go/chain"
	"github.com/Fantom-foundation/Rigoletto/go/log"
	"github.com/Fantom-foundation/Rigoletto/go/processor/floria"
	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	"github.com/Fantom-foundation/Rigoletto/go/state"
	"github.com/Fantom-foundation/Rigoletto/go/tracing"
	"github.com/Fantom-foundation/Rigoletto/go/transaction"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
	"golang.org/x/exp/slices"
)

var logger = log.NewLogger("builder")

// Reward is a balance credited when a block is finalized.
type Reward struct {
	Address rigoletto.Address
	Amount  rigoletto.Value
}

// Result is the outcome of adding a transaction to a block.
type Result struct {
	*floria.Outcome
	Receipt *transaction.Receipt
	// Trace lists the calls and steps of the execution, if requested.
	Trace []tracing.Event
}

// BlockBuilder assembles a block on top of a parent block of a chain. It
// executes the added transactions on its own copy of the state. It is safe
// for concurrent use; transactions are included in the order their
// AddTransaction calls acquire the builder.
type BlockBuilder struct {
	mu sync.Mutex

	chain     *chain.Blockchain
	processor *floria.Processor
	revision  rigoletto.Revision
	parent    *chain.Block
	header    *types.Header
	state     *state.State

	transactions []*transaction.Signed
	callers      []rigoletto.Address
	receipts     []*transaction.Receipt
	blobGasUsed  uint64
	finalized    bool
}

// Create opens a block on top of the head of the chain or the parent named
// in the options. Header fields not set in the options are derived from the
// parent. The state is the state of the parent and is not modified.
func Create(
	ctx context.Context,
	blockchain *chain.Blockchain,
	s *state.State,
	processor *floria.Processor,
	opts chain.BlockOptions,
) (*BlockBuilder, error) {
	parent := blockchain.LastBlock()
	if opts.ParentHash != nil {
		block, err := blockchain.BlockByHash(ctx, *opts.ParentHash)
		if err != nil {
			return nil, err
		}
		if block == nil {
			return nil, fmt.Errorf("%w: %v", rigoletto.ErrUnknownParent, *opts.ParentHash)
		}
		parent = block
	}
	revision, err := blockchain.SpecAtBlockNumber(parent.Number() + 1)
	if err != nil {
		return nil, err
	}
	revision = revision.Resolve()

	timestamp := max(uint64(time.Now().Unix()), parent.Timestamp()+1)
	header := chain.NextHeader(blockchain.ChainID(), revision, parent.Header, timestamp)
	opts.Apply(header)
	if want, got := parent.Number()+1, header.Number.Uint64(); want != got {
		return nil, fmt.Errorf("%w: block on top of %d must have number %d, got %d",
			rigoletto.ErrInvalidBlockNumber, parent.Number(), want, got)
	}

	logger.Debug().
		Uint64("number", header.Number.Uint64()).
		Stringer("revision", revision).
		Uint64("gasLimit", header.GasLimit).
		Msg("opened block")
	return &BlockBuilder{
		chain:     blockchain,
		processor: processor,
		revision:  revision,
		parent:    parent,
		header:    header,
		state:     s.Clone(),
	}, nil
}

// Header returns a view of the header of the block in progress.
func (b *BlockBuilder) Header() *types.Header {
	b.mu.Lock()
	defer b.mu.Unlock()
	return types.CopyHeader(b.header)
}

func (b *BlockBuilder) Revision() rigoletto.Revision {
	return b.revision
}

func (b *BlockBuilder) GasUsed() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.header.GasUsed
}

func (b *BlockBuilder) BlobGasUsed() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.blobGasUsed
}

// GasRemaining is the gas still available to transactions of the block.
func (b *BlockBuilder) GasRemaining() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gasRemaining()
}

func (b *BlockBuilder) gasRemaining() uint64 {
	return b.header.GasLimit - b.header.GasUsed
}

// BlockContext describes the block in progress to the processor.
func (b *BlockBuilder) BlockContext(ctx context.Context) floria.BlockContext {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.blockContext(ctx)
}

func (b *BlockBuilder) blockContext(ctx context.Context) floria.BlockContext {
	return floria.BlockContext{
		BlockParameters: chain.BlockParameters(b.chain.ChainID(), b.revision, b.header),
		GetHash:         b.chain.BlockHashes(ctx),
	}
}

// AddTransaction executes the transaction and includes it in the block.
// Invalid transactions are rejected without modifying the block.
func (b *BlockBuilder) AddTransaction(ctx context.Context, tx *transaction.Signed, withTrace bool) (*Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalized {
		return nil, rigoletto.ErrBuilderFinalized
	}
	if remaining := b.gasRemaining(); !b.processor.Config().DisableBlockGasLimit && tx.GasLimit() > remaining {
		return nil, fmt.Errorf("%w: have %d, want %d", rigoletto.ErrTransactionGasTooHigh, remaining, tx.GasLimit())
	}
	if b.revision.IsAtLeast(rigoletto.Cancun) && b.blobGasUsed+tx.BlobGas() > params.MaxBlobGasPerBlock {
		return nil, fmt.Errorf("%w: have %d, want %d",
			rigoletto.ErrBlobGasLimitExceeded, params.MaxBlobGasPerBlock-b.blobGasUsed, tx.BlobGas())
	}

	var tracer *tracing.CallTracer
	var hooks *rigoletto.TraceHooks
	if withTrace {
		tracer = tracing.NewCallTracer(true)
		hooks = tracer.Hooks()
	}
	outcome, err := b.processor.Execute(ctx, b.state, b.blockContext(ctx), tx, floria.Commit, hooks)
	if err != nil {
		return nil, err
	}

	b.header.GasUsed += outcome.GasUsed
	b.blobGasUsed += outcome.BlobGasUsed
	receipt := &transaction.Receipt{
		Type:              tx.Type(),
		CumulativeGasUsed: b.header.GasUsed,
		GasUsed:           outcome.GasUsed,
		Logs:              outcome.Logs,
		Bloom:             transaction.LogsBloom(outcome.Logs),
		ContractAddress:   outcome.ContractAddress,
		EffectiveGasPrice: outcome.EffectiveGasPrice,
		BlobGasUsed:       outcome.BlobGasUsed,
		TransactionHash:   tx.Hash(),
		TransactionIndex:  uint64(len(b.transactions)),
		BlockNumber:       b.header.Number.Uint64(),
		From:              outcome.Caller,
		To:                tx.To(),
	}
	if b.revision.IsAtLeast(rigoletto.Byzantium) {
		status := transaction.ReceiptStatusFailed
		if rigoletto.IsSuccess(outcome.Result) {
			status = transaction.ReceiptStatusSuccessful
		}
		receipt.Status = &status
	} else {
		root, err := b.state.StateRoot(ctx)
		if err != nil {
			return nil, err
		}
		receipt.PostState = &root
	}

	b.transactions = append(b.transactions, tx)
	b.callers = append(b.callers, outcome.Caller)
	b.receipts = append(b.receipts, receipt)

	res := &Result{Outcome: outcome, Receipt: receipt}
	if tracer != nil {
		res.Trace = tracer.Events()
	}
	return res, nil
}

// Finalize credits the rewards and seals the block. The builder can not be
// used afterwards. If timestamp is set, it replaces the timestamp of the
// block. A failed finalization leaves the builder unchanged.
func (b *BlockBuilder) Finalize(ctx context.Context, rewards []Reward, timestamp *uint64) (*chain.Block, *state.State, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalized {
		return nil, nil, rigoletto.ErrBuilderFinalized
	}
	work := b.state.Clone()
	for _, reward := range rewards {
		err := work.Modify(ctx, reward.Address, func(account *state.Account) (*state.Account, error) {
			if account == nil {
				account = &state.Account{}
			}
			account.Balance = rigoletto.Add(account.Balance, reward.Amount)
			return account, nil
		})
		if err != nil {
			return nil, nil, err
		}
	}

	root, err := work.StateRoot(ctx)
	if err != nil {
		return nil, nil, err
	}
	b.state = work
	header := b.header
	header.Root = common.Hash(root)
	header.TxHash = common.Hash(transaction.TransactionsRoot(b.transactions))
	header.ReceiptHash = common.Hash(transaction.ReceiptsRoot(b.receipts))
	var logs []rigoletto.Log
	for _, receipt := range b.receipts {
		logs = append(logs, receipt.Logs...)
	}
	header.Bloom = transaction.LogsBloom(logs)
	if timestamp != nil {
		header.Time = *timestamp
	}
	var withdrawals []*types.Withdrawal
	if header.WithdrawalsHash != nil {
		withdrawals = []*types.Withdrawal{}
	}
	if header.BlobGasUsed != nil {
		used := b.blobGasUsed
		header.BlobGasUsed = &used
	}

	block := chain.NewBlock(header, b.transactions, b.callers, withdrawals)
	hash := block.Hash()
	for _, receipt := range b.receipts {
		receipt.BlockHash = hash
	}
	b.finalized = true

	logger.Debug().
		Uint64("number", block.Number()).
		Stringer("hash", hash).
		Int("transactions", len(b.transactions)).
		Uint64("gasUsed", header.GasUsed).
		Msg("finalized block")
	return block, b.state, nil
}

// Receipts returns the receipts of the transactions added so far.
func (b *BlockBuilder) Receipts() []*transaction.Receipt {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.receipts)
}
