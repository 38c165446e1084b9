// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package floria

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Fantom-foundation/Rigoletto/go/interpreter/lfvm"
	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	"github.com/Fantom-foundation/Rigoletto/go/state"
	"github.com/Fantom-foundation/Rigoletto/go/transaction"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/mock/gomock"
)

var (
	testSender   = rigoletto.Address{0x5e}
	testReceiver = rigoletto.Address{0x7e}
	testCoinbase = rigoletto.Address{0xc0}
)

func newTestProcessor(t *testing.T) *Processor {
	t.Helper()
	vm, err := lfvm.NewVm(lfvm.Config{})
	if err != nil {
		t.Fatalf("failed to create interpreter: %v", err)
	}
	return New(vm, Config{ChainID: 1})
}

func newTestBlock(revision rigoletto.Revision) BlockContext {
	return BlockContext{BlockParameters: rigoletto.BlockParameters{
		ChainID:     rigoletto.Word{31: 1},
		BlockNumber: 10,
		Coinbase:    testCoinbase,
		GasLimit:    30_000_000,
		BaseFee:     rigoletto.NewValue(10),
		Revision:    revision,
	}}
}

func newTestState(accounts map[rigoletto.Address]state.Account) *state.State {
	s := state.New()
	for address, account := range accounts {
		s.Put(address, account)
	}
	return s
}

// newTransfer creates a dynamic fee transaction paying an effective gas
// price of 12, 2 of which go to the coinbase.
func newTransfer(nonce uint64, to *rigoletto.Address, value uint64, gas uint64, input []byte) *transaction.Signed {
	return transaction.FakeSign(&transaction.Eip1559{
		ChainID:              1,
		Nonce:                nonce,
		MaxPriorityFeePerGas: rigoletto.NewValue(2),
		MaxFeePerGas:         rigoletto.NewValue(20),
		GasLimit:             gas,
		To:                   to,
		Value:                rigoletto.NewValue(value),
		Input:                input,
	}, testSender)
}

func TestProcessor_TransferIsCommitted(t *testing.T) {
	p := newTestProcessor(t)
	s := newTestState(map[rigoletto.Address]state.Account{
		testSender: {Balance: rigoletto.NewValue(1_000_000)},
	})
	receiver := testReceiver

	outcome, err := p.Execute(context.Background(), s, newTestBlock(rigoletto.Cancun), newTransfer(0, &receiver, 100, 21_000, nil), Commit, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rigoletto.IsSuccess(outcome.Result) {
		t.Fatalf("unexpected result: %v", outcome.Result)
	}
	if want, got := uint64(21_000), outcome.GasUsed; want != got {
		t.Errorf("unexpected gas used, wanted %d, got %d", want, got)
	}
	if want, got := rigoletto.NewValue(12), outcome.EffectiveGasPrice; want != got {
		t.Errorf("unexpected gas price, wanted %v, got %v", want, got)
	}
	if outcome.State != s {
		t.Errorf("commit mode should report the input state")
	}

	sender := mustGetAccount(t, s, testSender)
	if want, got := rigoletto.NewValue(1_000_000-100-21_000*12), sender.Balance; want != got {
		t.Errorf("unexpected sender balance, wanted %v, got %v", want, got)
	}
	if want, got := uint64(1), sender.Nonce; want != got {
		t.Errorf("unexpected sender nonce, wanted %d, got %d", want, got)
	}
	if want, got := rigoletto.NewValue(100), mustGetAccount(t, s, testReceiver).Balance; want != got {
		t.Errorf("unexpected receiver balance, wanted %v, got %v", want, got)
	}
	if want, got := rigoletto.NewValue(21_000*2), mustGetAccount(t, s, testCoinbase).Balance; want != got {
		t.Errorf("unexpected coinbase balance, wanted %v, got %v", want, got)
	}
}

func TestProcessor_DryRunsDoNotModifyTheInputState(t *testing.T) {
	for _, mode := range []Mode{DryRun, GuaranteedDryRun} {
		t.Run(mode.String(), func(t *testing.T) {
			p := newTestProcessor(t)
			s := newTestState(map[rigoletto.Address]state.Account{
				testSender: {Balance: rigoletto.NewValue(1_000_000)},
			})
			receiver := testReceiver

			outcome, err := p.Execute(context.Background(), s, newTestBlock(rigoletto.Cancun), newTransfer(0, &receiver, 100, 21_000, nil), mode, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if outcome.State == s {
				t.Fatalf("dry runs should report a private state")
			}
			if got := mustGetAccount(t, s, testReceiver); got != nil {
				t.Errorf("input state was modified: %v", got)
			}
			if want, got := rigoletto.NewValue(100), mustGetAccount(t, outcome.State, testReceiver).Balance; want != got {
				t.Errorf("unexpected receiver balance in result state, wanted %v, got %v", want, got)
			}
		})
	}
}

func TestProcessor_GuaranteedDryRunSkipsSenderChecksAndFees(t *testing.T) {
	p := newTestProcessor(t)
	s := newTestState(map[rigoletto.Address]state.Account{
		testSender: {Nonce: 5},
	})
	receiver := testReceiver

	outcome, err := p.Execute(context.Background(), s, newTestBlock(rigoletto.Cancun), newTransfer(0, &receiver, 100, 21_000, nil), GuaranteedDryRun, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rigoletto.IsSuccess(outcome.Result) {
		t.Fatalf("unexpected result: %v", outcome.Result)
	}
	if want, got := rigoletto.NewValue(100), mustGetAccount(t, outcome.State, testReceiver).Balance; want != got {
		t.Errorf("unexpected receiver balance, wanted %v, got %v", want, got)
	}
	if got := mustGetAccount(t, outcome.State, testCoinbase); got != nil {
		t.Errorf("coinbase should not be paid, got %v", got)
	}
}

func TestProcessor_InvalidTransactionsAreRejected(t *testing.T) {
	receiver := testReceiver
	tests := map[string]struct {
		sender state.Account
		tx     *transaction.Signed
		block  func(*BlockContext)
		want   error
	}{
		"nonce too low": {
			sender: state.Account{Balance: rigoletto.NewValue(1_000_000), Nonce: 2},
			tx:     newTransfer(1, &receiver, 0, 21_000, nil),
			want:   rigoletto.ErrNonceTooLow,
		},
		"nonce too high": {
			sender: state.Account{Balance: rigoletto.NewValue(1_000_000)},
			tx:     newTransfer(1, &receiver, 0, 21_000, nil),
			want:   rigoletto.ErrNonceTooHigh,
		},
		"insufficient funds": {
			sender: state.Account{Balance: rigoletto.NewValue(21_000 * 20)},
			tx:     newTransfer(0, &receiver, 1, 21_000, nil),
			want:   rigoletto.ErrInsufficientFunds,
		},
		"fee cap below base fee": {
			sender: state.Account{Balance: rigoletto.NewValue(1_000_000)},
			tx:     newTransfer(0, &receiver, 0, 21_000, nil),
			block:  func(b *BlockContext) { b.BlockParameters.BaseFee = rigoletto.NewValue(21) },
			want:   rigoletto.ErrFeeCapTooLow,
		},
		"gas above block limit": {
			sender: state.Account{Balance: rigoletto.NewValue(1_000_000)},
			tx:     newTransfer(0, &receiver, 0, 21_000, nil),
			block:  func(b *BlockContext) { b.GasLimit = 20_000 },
			want:   rigoletto.ErrGasLimitExceeded,
		},
		"sender with code": {
			sender: state.Account{Balance: rigoletto.NewValue(1_000_000), Code: rigoletto.NewBytecode([]byte{0})},
			tx:     newTransfer(0, &receiver, 0, 21_000, nil),
			want:   rigoletto.ErrSenderHasCode,
		},
		"intrinsic gas too low": {
			sender: state.Account{Balance: rigoletto.NewValue(1_000_000)},
			tx:     newTransfer(0, &receiver, 0, 20_999, nil),
			want:   rigoletto.ErrIntrinsicGasTooLow,
		},
		"wrong chain": {
			sender: state.Account{Balance: rigoletto.NewValue(1_000_000)},
			tx: transaction.FakeSign(&transaction.Eip1559{
				ChainID: 2, MaxFeePerGas: rigoletto.NewValue(20), GasLimit: 21_000, To: &receiver,
			}, testSender),
			want: rigoletto.ErrChainIDMismatch,
		},
		"type not yet supported": {
			sender: state.Account{Balance: rigoletto.NewValue(1_000_000)},
			tx:     newTransfer(0, &receiver, 0, 21_000, nil),
			block:  func(b *BlockContext) { b.Revision = rigoletto.Berlin },
			want:   rigoletto.ErrTxTypeNotSupported,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			p := newTestProcessor(t)
			s := newTestState(map[rigoletto.Address]state.Account{testSender: test.sender})
			block := newTestBlock(rigoletto.Cancun)
			if test.block != nil {
				test.block(&block)
			}

			_, err := p.Execute(context.Background(), s, block, test.tx, Commit, nil)
			if !errors.Is(err, test.want) {
				t.Fatalf("unexpected error, wanted %v, got %v", test.want, err)
			}
			if want, got := test.sender.Balance, mustGetAccount(t, s, testSender).Balance; want != got {
				t.Errorf("state modified by rejected transaction, wanted balance %v, got %v", want, got)
			}
		})
	}
}

func TestProcessor_UnsupportedRevisionIsRejected(t *testing.T) {
	p := newTestProcessor(t)
	receiver := testReceiver
	_, err := p.Execute(context.Background(), state.New(), newTestBlock(rigoletto.Latest+1), newTransfer(0, &receiver, 0, 21_000, nil), GuaranteedDryRun, nil)
	var unsupported *rigoletto.ErrUnsupportedRevision
	if !errors.As(err, &unsupported) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestProcessor_ContractCreationDeploysCode(t *testing.T) {
	p := newTestProcessor(t)
	s := newTestState(map[rigoletto.Address]state.Account{
		testSender: {Balance: rigoletto.NewValue(10_000_000)},
	})
	// Stores 0x2a in memory and returns it as the code of the contract.
	initCode := []byte{
		byte(0x60), 0x2a, // PUSH1 0x2a
		byte(0x60), 0x00, // PUSH1 0
		byte(0x53),       // MSTORE8
		byte(0x60), 0x01, // PUSH1 1
		byte(0x60), 0x00, // PUSH1 0
		byte(0xf3), // RETURN
	}

	outcome, err := p.Execute(context.Background(), s, newTestBlock(rigoletto.Cancun), newTransfer(0, nil, 0, 100_000, initCode), Commit, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	success, ok := outcome.Result.(*rigoletto.Success)
	if !ok {
		t.Fatalf("unexpected result: %v", outcome.Result)
	}
	output, ok := success.Output.(*rigoletto.CreateOutput)
	if !ok {
		t.Fatalf("unexpected output type %T", success.Output)
	}
	want := rigoletto.Address(crypto.CreateAddress(common.Address(testSender), 0))
	if output.Address == nil || *output.Address != want {
		t.Errorf("unexpected created address, wanted %v, got %v", want, output.Address)
	}
	if outcome.ContractAddress == nil || *outcome.ContractAddress != want {
		t.Errorf("unexpected contract address, wanted %v, got %v", want, outcome.ContractAddress)
	}
	if want, got := (rigoletto.Data{0x2a}), output.Data; string(want) != string(got) {
		t.Errorf("unexpected output, wanted %x, got %x", want, got)
	}
	contract := mustGetAccount(t, s, want)
	if contract == nil || string(contract.Code.Code()) != string([]byte{0x2a}) {
		t.Errorf("unexpected contract %v", contract)
	}
	if want, got := uint64(1), mustGetAccount(t, s, testSender).Nonce; want != got {
		t.Errorf("unexpected sender nonce, wanted %d, got %d", want, got)
	}
}

func TestProcessor_EndOfExecutionDeterminesResult(t *testing.T) {
	const gasLimit = 50_000
	tests := map[string]struct {
		code  []byte
		check func(t *testing.T, outcome *Outcome)
	}{
		"revert keeps unused gas": {
			code: []byte{0x60, 0x00, 0x60, 0x00, 0xfd}, // PUSH1 0, PUSH1 0, REVERT
			check: func(t *testing.T, outcome *Outcome) {
				revert, ok := outcome.Result.(*rigoletto.Revert)
				if !ok {
					t.Fatalf("unexpected result %v", outcome.Result)
				}
				if want, got := uint64(21_006), revert.GasUsed; want != got {
					t.Errorf("unexpected gas used, wanted %d, got %d", want, got)
				}
			},
		},
		"halt consumes all gas": {
			code: []byte{0xfe}, // INVALID
			check: func(t *testing.T, outcome *Outcome) {
				halt, ok := outcome.Result.(*rigoletto.Halt)
				if !ok {
					t.Fatalf("unexpected result %v", outcome.Result)
				}
				if want, got := rigoletto.HaltInvalidFEOpcode, halt.Reason; want != got {
					t.Errorf("unexpected halt reason, wanted %v, got %v", want, got)
				}
				if want, got := uint64(gasLimit), halt.GasUsed; want != got {
					t.Errorf("unexpected gas used, wanted %d, got %d", want, got)
				}
			},
		},
		"running out of gas consumes all gas": {
			code: []byte{0x5b, 0x60, 0x00, 0x56}, // JUMPDEST, PUSH1 0, JUMP
			check: func(t *testing.T, outcome *Outcome) {
				halt, ok := outcome.Result.(*rigoletto.Halt)
				if !ok {
					t.Fatalf("unexpected result %v", outcome.Result)
				}
				if want, got := rigoletto.HaltOutOfGas, halt.Reason; want != got {
					t.Errorf("unexpected halt reason, wanted %v, got %v", want, got)
				}
				if want, got := uint64(gasLimit), halt.GasUsed; want != got {
					t.Errorf("unexpected gas used, wanted %d, got %d", want, got)
				}
				if want, got := uint64(gasLimit), outcome.GasUsed; want != got {
					t.Errorf("unexpected gas used, wanted %d, got %d", want, got)
				}
			},
		},
		"logs are reported on success": {
			code: []byte{0x60, 0x00, 0x60, 0x00, 0xa0, 0x00}, // PUSH1 0, PUSH1 0, LOG0, STOP
			check: func(t *testing.T, outcome *Outcome) {
				success, ok := outcome.Result.(*rigoletto.Success)
				if !ok {
					t.Fatalf("unexpected result %v", outcome.Result)
				}
				if want, got := 1, len(success.Logs); want != got {
					t.Fatalf("unexpected number of logs, wanted %d, got %d", want, got)
				}
				if want, got := testReceiver, success.Logs[0].Address; want != got {
					t.Errorf("unexpected log address, wanted %v, got %v", want, got)
				}
			},
		},
		"logs are dropped on failure": {
			code: []byte{0x60, 0x00, 0x60, 0x00, 0xa0, 0xfe}, // PUSH1 0, PUSH1 0, LOG0, INVALID
			check: func(t *testing.T, outcome *Outcome) {
				if want, got := 0, len(outcome.Logs); want != got {
					t.Errorf("unexpected number of logs, wanted %d, got %d", want, got)
				}
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			p := newTestProcessor(t)
			s := newTestState(map[rigoletto.Address]state.Account{
				testSender:   {Balance: rigoletto.NewValue(10_000_000)},
				testReceiver: {Code: rigoletto.NewBytecode(test.code)},
			})
			receiver := testReceiver

			outcome, err := p.Execute(context.Background(), s, newTestBlock(rigoletto.Cancun), newTransfer(0, &receiver, 0, gasLimit, nil), Commit, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			test.check(t, outcome)

			sender := mustGetAccount(t, s, testSender)
			if want, got := uint64(1), sender.Nonce; want != got {
				t.Errorf("nonce should be incremented, wanted %d, got %d", want, got)
			}
			if want, got := rigoletto.NewValue(10_000_000-outcome.GasUsed*12), sender.Balance; want != got {
				t.Errorf("sender should pay for used gas, wanted %v, got %v", want, got)
			}
		})
	}
}

func TestProcessor_RefundsAreCappedByRevision(t *testing.T) {
	// PUSH1 0, PUSH1 1, SSTORE, STOP clearing a non-zero slot.
	code := []byte{0x60, 0x00, 0x60, 0x01, 0x55, 0x00}
	tests := map[rigoletto.Revision]struct {
		refund  uint64
		gasUsed uint64
	}{
		// 26_006 gas used, refund of 15_000 capped at half of it.
		rigoletto.Berlin: {refund: 13_003, gasUsed: 13_003},
		// Refund of 4_800 below the cap of a fifth.
		rigoletto.Cancun: {refund: 4_800, gasUsed: 21_206},
	}

	for revision, test := range tests {
		t.Run(revision.String(), func(t *testing.T) {
			p := newTestProcessor(t)
			s := newTestState(map[rigoletto.Address]state.Account{
				testSender:   {Balance: rigoletto.NewValue(10_000_000)},
				testReceiver: {Code: rigoletto.NewBytecode(code)},
			})
			s.SetStorage(testReceiver, rigoletto.Key{31: 1}, rigoletto.Word{31: 1})
			receiver := testReceiver
			tx := transaction.FakeSign(&transaction.Eip2930{
				ChainID:  1,
				GasPrice: rigoletto.NewValue(20),
				GasLimit: 100_000,
				To:       &receiver,
			}, testSender)

			outcome, err := p.Execute(context.Background(), s, newTestBlock(revision), tx, Commit, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			success, ok := outcome.Result.(*rigoletto.Success)
			if !ok {
				t.Fatalf("unexpected result %v", outcome.Result)
			}
			if want, got := test.refund, success.GasRefunded; want != got {
				t.Errorf("unexpected refund, wanted %d, got %d", want, got)
			}
			if want, got := test.gasUsed, success.GasUsed; want != got {
				t.Errorf("unexpected gas used, wanted %d, got %d", want, got)
			}
			if want, got := (rigoletto.Word{}), mustGetStorage(t, s, testReceiver, rigoletto.Key{31: 1}); want != got {
				t.Errorf("slot should be cleared")
			}
		})
	}
}

func TestProcessor_TransactionFrameIsTraced(t *testing.T) {
	p := newTestProcessor(t)
	s := newTestState(map[rigoletto.Address]state.Account{
		testSender:   {Balance: rigoletto.NewValue(10_000_000)},
		testReceiver: {Code: rigoletto.NewBytecode([]byte{0x00})},
	})
	receiver := testReceiver
	var frames []rigoletto.CallFrame
	var exits []rigoletto.CallFrameResult
	var ops []byte
	hooks := &rigoletto.TraceHooks{
		OnEnter:  func(f rigoletto.CallFrame) { frames = append(frames, f) },
		OnExit:   func(f rigoletto.CallFrameResult) { exits = append(exits, f) },
		OnOpcode: func(step *rigoletto.OpcodeStep) { ops = append(ops, step.Op) },
	}

	if _, err := p.Execute(context.Background(), s, newTestBlock(rigoletto.Cancun), newTransfer(0, &receiver, 5, 30_000, []byte{1}), DryRun, hooks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frames) != 1 || len(exits) != 1 {
		t.Fatalf("unexpected frames %v, exits %v", frames, exits)
	}
	frame := frames[0]
	if frame.Depth != 0 || frame.Kind != rigoletto.Call || frame.Sender != testSender || frame.Recipient != testReceiver {
		t.Errorf("unexpected frame %+v", frame)
	}
	if want, got := rigoletto.Gas(30_000-21_016), frame.Gas; want != got {
		t.Errorf("unexpected frame gas, wanted %d, got %d", want, got)
	}
	if !exits[0].Success {
		t.Errorf("frame should succeed")
	}
	if want, got := []byte{0x00}, ops; string(want) != string(got) {
		t.Errorf("unexpected opcodes, wanted %x, got %x", want, got)
	}
}

func TestProcessor_RemoteFetchFailuresAreReported(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := state.NewMockRemoteSource(ctrl)
	injected := errors.New("injected")
	source.EXPECT().Account(gomock.Any(), gomock.Any(), gomock.Any()).Return(state.RemoteAccount{}, injected).AnyTimes()
	s, err := state.ForkRemote(context.Background(), source, 100, nil, state.ForkOptions{ChainID: 1})
	if err != nil {
		t.Fatalf("failed to fork: %v", err)
	}

	p := newTestProcessor(t)
	receiver := testReceiver
	_, err = p.Execute(context.Background(), s, newTestBlock(rigoletto.Cancun), newTransfer(0, &receiver, 0, 21_000, nil), Commit, nil)
	if !errors.Is(err, rigoletto.ErrRemoteFetch) {
		t.Errorf("unexpected error, wanted %v, got %v", rigoletto.ErrRemoteFetch, err)
	}
}

func TestProcessor_FailedBlockHashLookupsAreReported(t *testing.T) {
	p := newTestProcessor(t)
	s := newTestState(map[rigoletto.Address]state.Account{
		testSender:   {Balance: rigoletto.NewValue(10_000_000)},
		testReceiver: {Code: rigoletto.NewBytecode([]byte{0x60, 0x05, 0x40, 0x00})}, // PUSH1 5, BLOCKHASH, STOP
	})
	block := newTestBlock(rigoletto.Cancun)
	block.GetHash = func(number int64) (rigoletto.Hash, error) {
		return rigoletto.Hash{}, &rigoletto.RemoteFetchError{Op: "block", BlockNumber: uint64(number), Err: errors.New("injected")}
	}
	receiver := testReceiver

	_, err := p.Execute(context.Background(), s, block, newTransfer(0, &receiver, 0, 50_000, nil), Commit, nil)
	if !errors.Is(err, rigoletto.ErrRemoteFetch) {
		t.Fatalf("unexpected error, wanted %v, got %v", rigoletto.ErrRemoteFetch, err)
	}
	sender := mustGetAccount(t, s, testSender)
	if want, got := uint64(0), sender.Nonce; want != got {
		t.Errorf("failed transaction modified the state, wanted nonce %d, got %d", want, got)
	}
}

func TestProcessor_ConcurrentCommitsOnSharedStateAreSerialized(t *testing.T) {
	const senders = 32
	p := newTestProcessor(t)
	accounts := map[rigoletto.Address]state.Account{}
	for i := 0; i < senders; i++ {
		accounts[rigoletto.Address{0x10, byte(i)}] = state.Account{Balance: rigoletto.NewValue(1_000_000)}
	}
	s := newTestState(accounts)
	receiver := testReceiver

	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tx := transaction.FakeSign(&transaction.Eip1559{
				ChainID:      1,
				MaxFeePerGas: rigoletto.NewValue(20),
				GasLimit:     21_000,
				To:           &receiver,
				Value:        rigoletto.NewValue(1),
			}, rigoletto.Address{0x10, byte(i)})
			outcome, err := p.Execute(context.Background(), s, newTestBlock(rigoletto.Cancun), tx, Commit, nil)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if !rigoletto.IsSuccess(outcome.Result) {
				t.Errorf("unexpected result: %v", outcome.Result)
			}
		}(i)
	}
	wg.Wait()

	if want, got := rigoletto.NewValue(senders), mustGetAccount(t, s, testReceiver).Balance; want != got {
		t.Errorf("lost committed transfers, wanted balance %v, got %v", want, got)
	}
	for i := 0; i < senders; i++ {
		if want, got := uint64(1), mustGetAccount(t, s, rigoletto.Address{0x10, byte(i)}).Nonce; want != got {
			t.Errorf("lost nonce update of sender %d, wanted %d, got %d", i, want, got)
		}
	}
}

func TestMode_String(t *testing.T) {
	tests := map[Mode]string{
		Commit:           "commit",
		DryRun:           "dry-run",
		GuaranteedDryRun: "guaranteed-dry-run",
		Mode(7):          "Mode(7)",
	}
	for mode, want := range tests {
		if got := mode.String(); want != got {
			t.Errorf("wanted %q, got %q", want, got)
		}
	}
}
