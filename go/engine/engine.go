// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/Fantom-foundation/Rigoletto/go/chain"
	_ "github.com/Fantom-foundation/Rigoletto/go/interpreter/lfvm"
	"github.com/Fantom-foundation/Rigoletto/go/log"
	"github.com/Fantom-foundation/Rigoletto/go/mempool"
	"github.com/Fantom-foundation/Rigoletto/go/miner"
	"github.com/Fantom-foundation/Rigoletto/go/processor/floria"
	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	"github.com/Fantom-foundation/Rigoletto/go/state"
	"github.com/Fantom-foundation/Rigoletto/go/tracing"
	"github.com/Fantom-foundation/Rigoletto/go/transaction"
)

var logger = log.NewLogger("engine")

// TransactionResult is the outcome of executing a single transaction.
type TransactionResult struct {
	Result rigoletto.ExecutionResult
	// State is the state after a dry run. Nil for committed transactions,
	// whose effects are applied to the given state.
	State *state.State
	Trace []tracing.Event
}

// Engine executes transactions and mines blocks using the interpreter
// named in its configuration.
type Engine struct {
	config    Config
	processor *floria.Processor
}

func New(config Config) (*Engine, error) {
	if config.Interpreter == "" {
		config.Interpreter = DefaultInterpreter
	}
	if !config.SpecID.IsValid() {
		return nil, &rigoletto.ErrUnsupportedRevision{Revision: config.SpecID}
	}
	interpreter, err := rigoletto.NewInterpreter(config.Interpreter)
	if err != nil {
		return nil, err
	}
	return &Engine{
		config:    config,
		processor: floria.New(interpreter, config.processorConfig()),
	}, nil
}

func (e *Engine) Config() Config {
	return e.config
}

// Run executes a transaction and writes its effects into the given state.
func (e *Engine) Run(
	ctx context.Context,
	blockchain *chain.Blockchain,
	s *state.State,
	tx *transaction.Signed,
	block BlockConfig,
	withTrace bool,
) (*TransactionResult, error) {
	return e.execute(ctx, blockchain, s, tx, block, floria.Commit, withTrace)
}

// DryRun executes a request without modifying the given state.
func (e *Engine) DryRun(
	ctx context.Context,
	blockchain *chain.Blockchain,
	s *state.State,
	request *transaction.Request,
	block BlockConfig,
	withTrace bool,
) (*TransactionResult, error) {
	return e.executeRequest(ctx, blockchain, s, request, block, floria.DryRun, withTrace)
}

// GuaranteedDryRun executes a request without modifying the given state and
// without checking the nonce, balance and fees of the sender.
func (e *Engine) GuaranteedDryRun(
	ctx context.Context,
	blockchain *chain.Blockchain,
	s *state.State,
	request *transaction.Request,
	block BlockConfig,
	withTrace bool,
) (*TransactionResult, error) {
	return e.executeRequest(ctx, blockchain, s, request, block, floria.GuaranteedDryRun, withTrace)
}

// MineBlock mines the pending transactions of the pool into a new block of
// the chain.
func (e *Engine) MineBlock(
	ctx context.Context,
	blockchain *chain.Blockchain,
	s *state.State,
	pool *mempool.MemPool,
	opts miner.MineOptions,
) (*miner.MineBlockResult, error) {
	return miner.MineBlock(ctx, blockchain, s, pool, e.processor, opts)
}

// DebugTraceTransaction replays the transactions of a block up to the one
// with the given hash and returns the struct log trace of it. The state is
// the state before the block and is not modified.
func (e *Engine) DebugTraceTransaction(
	ctx context.Context,
	blockchain *chain.Blockchain,
	s *state.State,
	traceConfig tracing.StructLoggerConfig,
	block BlockConfig,
	transactions []*transaction.Signed,
	hash rigoletto.Hash,
) (*tracing.DebugTraceResult, error) {
	blockContext, err := e.blockContext(ctx, blockchain, block)
	if err != nil {
		return nil, err
	}
	work := s.Clone()
	for _, tx := range transactions {
		if tx.Hash() != hash {
			if _, err := e.processor.Execute(ctx, work, blockContext, tx, floria.Commit, nil); err != nil {
				return nil, fmt.Errorf("failed to replay transaction %v: %w", tx.Hash(), err)
			}
			continue
		}
		tracer := tracing.NewStructLogger(traceConfig)
		outcome, err := e.processor.Execute(ctx, work, blockContext, tx, floria.Commit, tracer.Hooks())
		if err != nil {
			return nil, err
		}
		return tracer.Result(outcome.Result), nil
	}
	return nil, fmt.Errorf("%w: %v", rigoletto.ErrTransactionNotFound, hash)
}

// DebugTraceCall returns the struct log trace of a request executed as a
// guaranteed dry run.
func (e *Engine) DebugTraceCall(
	ctx context.Context,
	blockchain *chain.Blockchain,
	s *state.State,
	traceConfig tracing.StructLoggerConfig,
	request *transaction.Request,
	block BlockConfig,
) (*tracing.DebugTraceResult, error) {
	blockContext, err := e.blockContext(ctx, blockchain, block)
	if err != nil {
		return nil, err
	}
	tx, err := e.resolveRequest(ctx, s, request, &blockContext)
	if err != nil {
		return nil, err
	}
	tracer := tracing.NewStructLogger(traceConfig)
	outcome, err := e.processor.Execute(ctx, s, blockContext, tx, floria.GuaranteedDryRun, tracer.Hooks())
	if err != nil {
		return nil, err
	}
	return tracer.Result(outcome.Result), nil
}

func (e *Engine) executeRequest(
	ctx context.Context,
	blockchain *chain.Blockchain,
	s *state.State,
	request *transaction.Request,
	block BlockConfig,
	mode floria.Mode,
	withTrace bool,
) (*TransactionResult, error) {
	blockContext, err := e.blockContext(ctx, blockchain, block)
	if err != nil {
		return nil, err
	}
	tx, err := e.resolveRequest(ctx, s, request, &blockContext)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, s, blockContext, tx, mode, withTrace)
}

func (e *Engine) execute(
	ctx context.Context,
	blockchain *chain.Blockchain,
	s *state.State,
	tx *transaction.Signed,
	block BlockConfig,
	mode floria.Mode,
	withTrace bool,
) (*TransactionResult, error) {
	blockContext, err := e.blockContext(ctx, blockchain, block)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, s, blockContext, tx, mode, withTrace)
}

func (e *Engine) run(
	ctx context.Context,
	s *state.State,
	block floria.BlockContext,
	tx *transaction.Signed,
	mode floria.Mode,
	withTrace bool,
) (*TransactionResult, error) {
	var tracer *tracing.CallTracer
	var hooks *rigoletto.TraceHooks
	if withTrace {
		tracer = tracing.NewCallTracer(true)
		hooks = tracer.Hooks()
	}
	outcome, err := e.processor.Execute(ctx, s, block, tx, mode, hooks)
	if err != nil {
		return nil, err
	}
	res := &TransactionResult{Result: outcome.Result}
	if mode != floria.Commit {
		res.State = outcome.State
	}
	if tracer != nil {
		res.Trace = tracer.Events()
	}
	return res, nil
}

// resolveRequest turns a request into a transaction. Unset nonces are taken
// from the state, unset gas limits and gas prices from the block.
func (e *Engine) resolveRequest(
	ctx context.Context,
	s *state.State,
	request *transaction.Request,
	block *floria.BlockContext,
) (*transaction.Signed, error) {
	resolved := *request
	if resolved.Nonce == nil {
		account, err := s.Get(ctx, request.From)
		if err != nil {
			return nil, err
		}
		var nonce uint64
		if account != nil {
			nonce = account.Nonce
		}
		resolved.Nonce = &nonce
	}
	if resolved.GasLimit == nil {
		limit := uint64(block.GasLimit)
		resolved.GasLimit = &limit
	}
	if resolved.GasPrice == nil && resolved.GasPriorityFee == nil {
		if fee := block.BaseFee(); fee != nil && !fee.IsZero() {
			resolved.GasPrice = fee
		}
	}
	return resolved.ToSigned(e.config.ChainID, *resolved.Nonce), nil
}

// blockContext derives the block a transaction is executed in from the
// parent block and the overrides of the block config.
func (e *Engine) blockContext(ctx context.Context, blockchain *chain.Blockchain, block BlockConfig) (floria.BlockContext, error) {
	parent := blockchain.LastBlock()
	if block.ParentHash != nil {
		found, err := blockchain.BlockByHash(ctx, *block.ParentHash)
		if err != nil {
			return floria.BlockContext{}, err
		}
		if found == nil {
			return floria.BlockContext{}, fmt.Errorf("%w: %v", rigoletto.ErrUnknownParent, *block.ParentHash)
		}
		parent = found
	}
	spec := e.config.SpecID.Resolve()
	timestamp := max(uint64(time.Now().Unix()), parent.Timestamp()+1)
	header := chain.NextHeader(e.config.ChainID, spec, parent.Header, timestamp)
	options := block.options()
	options.Apply(header)

	logger.Debug().
		Uint64("number", header.Number.Uint64()).
		Stringer("spec", spec).
		Msg("resolved block")
	return floria.BlockContext{
		BlockParameters: chain.BlockParameters(e.config.ChainID, spec, header),
		GetHash:         blockchain.BlockHashes(ctx),
	}, nil
}
