// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package miner

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Fantom-foundation/Rigoletto/go/builder"
	"github.com/Fantom-foundation/Rigoletto/go/chain"
	"github.com/Fantom-foundation/Rigoletto/go/log"
	"github.com/Fantom-foundation/Rigoletto/go/mempool"
	"github.com/Fantom-foundation/Rigoletto/go/processor/floria"
	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	"github.com/Fantom-foundation/Rigoletto/go/state"
	"github.com/Fantom-foundation/Rigoletto/go/tracing"
	"github.com/Fantom-foundation/Rigoletto/go/transaction"
	"github.com/ethereum/go-ethereum/params"
)

var logger = log.NewLogger("miner")

// Ordering is the order pending transactions are included in a block.
type Ordering int

const (
	// Fifo includes transactions in the order they entered the pool.
	Fifo Ordering = iota
	// Priority includes transactions paying the highest miner fee first.
	Priority
)

func (o Ordering) String() string {
	switch o {
	case Fifo:
		return "fifo"
	case Priority:
		return "priority"
	}
	return fmt.Sprintf("Ordering(%d)", int(o))
}

func ParseOrdering(name string) (Ordering, error) {
	switch strings.ToLower(name) {
	case "fifo":
		return Fifo, nil
	case "priority":
		return Priority, nil
	}
	return 0, fmt.Errorf("unknown ordering: %q", name)
}

type MineOptions struct {
	Timestamp   *uint64
	Beneficiary rigoletto.Address
	// MinGasPrice is the lowest effective gas price of included transactions.
	MinGasPrice rigoletto.Value
	Ordering    Ordering
	// Reward is credited to the beneficiary.
	Reward     rigoletto.Value
	BaseFee    *rigoletto.Value
	PrevRandao *rigoletto.Hash
	WithTrace  bool
}

type MineBlockResult struct {
	Block    *chain.Block
	State    *state.State
	Results  []rigoletto.ExecutionResult
	Receipts []*transaction.Receipt
	// Traces has an entry per transaction if traces were requested.
	Traces [][]tracing.Event
}

// MineBlock builds a block from the pending transactions of the pool,
// appends it to the chain and updates the pool with the resulting state.
func MineBlock(
	ctx context.Context,
	blockchain *chain.Blockchain,
	s *state.State,
	pool *mempool.MemPool,
	processor *floria.Processor,
	opts MineOptions,
) (*MineBlockResult, error) {
	beneficiary := opts.Beneficiary
	b, err := builder.Create(ctx, blockchain, s, processor, chain.BlockOptions{
		Beneficiary: &beneficiary,
		Timestamp:   opts.Timestamp,
		BaseFee:     opts.BaseFee,
		MixHash:     opts.PrevRandao,
	})
	if err != nil {
		return nil, err
	}

	blockContext := b.BlockContext(ctx)
	baseFee := blockContext.BaseFee()
	candidates := newCandidates(pool.PendingTransactions(), opts.Ordering, baseFee)
	res := &MineBlockResult{}
	for candidates.Len() > 0 && b.GasRemaining() >= params.TxGas {
		next := candidates.peek()
		tx := next.Transaction.Transaction()
		if price := transaction.EffectiveGasPrice(tx, baseFee); price.Cmp(opts.MinGasPrice) < 0 {
			logger.Debug().Stringer("hash", tx.Hash()).Stringer("price", price).Msg("skipped underpriced sender")
			candidates.dropSender()
			continue
		}
		if tx.GasLimit() > b.GasRemaining() {
			logger.Debug().Stringer("hash", tx.Hash()).Uint64("gas", tx.GasLimit()).Msg("skipped sender exceeding remaining gas")
			candidates.dropSender()
			continue
		}
		added, err := b.AddTransaction(ctx, tx, opts.WithTrace)
		if err != nil {
			if errors.Is(err, rigoletto.ErrRemoteFetch) || ctx.Err() != nil {
				return nil, err
			}
			logger.Debug().Err(err).Stringer("hash", tx.Hash()).Msg("skipped invalid sender")
			candidates.dropSender()
			continue
		}
		res.Results = append(res.Results, added.Result)
		if opts.WithTrace {
			res.Traces = append(res.Traces, added.Trace)
		}
		candidates.advance()
	}

	var rewards []builder.Reward
	if !opts.Reward.IsZero() {
		rewards = []builder.Reward{{Address: beneficiary, Amount: opts.Reward}}
	}
	block, after, err := b.Finalize(ctx, rewards, nil)
	if err != nil {
		return nil, err
	}
	res.Block = block
	res.State = after
	res.Receipts = b.Receipts()
	if err := blockchain.InsertBlock(block, after.Clone(), res.Receipts); err != nil {
		return nil, err
	}
	if err := pool.Update(ctx, after); err != nil {
		return nil, err
	}
	logger.Debug().
		Uint64("number", block.Number()).
		Int("transactions", len(block.Transactions)).
		Stringer("ordering", opts.Ordering).
		Msg("mined block")
	return res, nil
}

// candidates holds the pending transactions of every sender in nonce
// order. The heap orders senders by their next transaction.
type candidates struct {
	queues   []*senderQueue
	ordering Ordering
	baseFee  *rigoletto.Value
}

type senderQueue struct {
	transactions []mempool.OrderedTransaction
	fee          rigoletto.Value // < miner fee of the first transaction
}

func newCandidates(
	pending map[rigoletto.Address][]mempool.OrderedTransaction,
	ordering Ordering,
	baseFee *rigoletto.Value,
) *candidates {
	res := &candidates{ordering: ordering, baseFee: baseFee}
	for _, list := range pending {
		if len(list) == 0 {
			continue
		}
		queue := &senderQueue{transactions: list}
		res.updateFee(queue)
		res.queues = append(res.queues, queue)
	}
	heap.Init(res)
	return res
}

func (c *candidates) updateFee(queue *senderQueue) {
	queue.fee = transaction.EffectiveMinerFee(queue.transactions[0].Transaction.Transaction(), c.baseFee)
}

func (c *candidates) peek() mempool.OrderedTransaction {
	return c.queues[0].transactions[0]
}

// advance moves on to the next transaction of the current sender.
func (c *candidates) advance() {
	queue := c.queues[0]
	queue.transactions = queue.transactions[1:]
	if len(queue.transactions) == 0 {
		heap.Pop(c)
		return
	}
	c.updateFee(queue)
	heap.Fix(c, 0)
}

// dropSender removes the remaining transactions of the current sender.
func (c *candidates) dropSender() {
	heap.Pop(c)
}

func (c *candidates) Len() int {
	return len(c.queues)
}

func (c *candidates) Less(i, j int) bool {
	a, b := c.queues[i], c.queues[j]
	if c.ordering == Priority {
		if cmp := a.fee.Cmp(b.fee); cmp != 0 {
			return cmp > 0
		}
	}
	return a.transactions[0].OrderID < b.transactions[0].OrderID
}

func (c *candidates) Swap(i, j int) {
	c.queues[i], c.queues[j] = c.queues[j], c.queues[i]
}

func (c *candidates) Push(x any) {
	c.queues = append(c.queues, x.(*senderQueue))
}

func (c *candidates) Pop() any {
	last := c.queues[len(c.queues)-1]
	c.queues[len(c.queues)-1] = nil
	c.queues = c.queues[:len(c.queues)-1]
	return last
}
