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
	"context"
	"errors"
	"math"
	"testing"

	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	"github.com/Fantom-foundation/Rigoletto/go/state"
)

func TestValidateStatic_DetectsInvalidTransactions(t *testing.T) {
	to := rigoletto.Address{2}
	limit := uint64(10)
	rules := Rules{ChainID: 1, Revision: rigoletto.Cancun}
	tests := map[string]struct {
		data  TxData
		rules Rules
		want  error
	}{
		"valid": {
			data:  &Eip1559{ChainID: 1, GasLimit: 21_000, To: &to},
			rules: rules,
		},
		"type not yet enabled": {
			data:  &Eip1559{ChainID: 1, GasLimit: 21_000, To: &to},
			rules: Rules{ChainID: 1, Revision: rigoletto.Berlin},
			want:  rigoletto.ErrTxTypeNotSupported,
		},
		"blob type before cancun": {
			data:  &Eip4844{ChainID: 1, GasLimit: 21_000, To: to, BlobHashes: []rigoletto.Hash{{1}}},
			rules: Rules{ChainID: 1, Revision: rigoletto.Shanghai},
			want:  rigoletto.ErrTxTypeNotSupported,
		},
		"wrong chain": {
			data:  &Eip1559{ChainID: 2, GasLimit: 21_000, To: &to},
			rules: rules,
			want:  rigoletto.ErrChainIDMismatch,
		},
		"unprotected legacy on any chain": {
			data:  &Legacy{GasLimit: 21_000, To: &to},
			rules: rules,
		},
		"missing blob hashes": {
			data:  &Eip4844{ChainID: 1, GasLimit: 21_000, To: to},
			rules: rules,
			want:  rigoletto.ErrMissingBlobHashes,
		},
		"tip above fee cap": {
			data: &Eip1559{ChainID: 1, GasLimit: 21_000, To: &to,
				MaxFeePerGas: rigoletto.NewValue(1), MaxPriorityFeePerGas: rigoletto.NewValue(2)},
			rules: rules,
			want:  rigoletto.ErrTipAboveFeeCap,
		},
		"init code too large": {
			data:  &Eip1559{ChainID: 1, GasLimit: 1_000_000, Input: make(rigoletto.Data, 11)},
			rules: Rules{ChainID: 1, Revision: rigoletto.Cancun, LimitInitcodeSize: &limit},
			want:  rigoletto.ErrInitCodeTooLarge,
		},
		"init code limit inactive before shanghai": {
			data:  &Eip1559{ChainID: 1, GasLimit: 1_000_000, Input: make(rigoletto.Data, 11)},
			rules: Rules{ChainID: 1, Revision: rigoletto.London, LimitInitcodeSize: &limit},
		},
		"intrinsic gas too low": {
			data:  &Eip1559{ChainID: 1, GasLimit: 20_999, To: &to},
			rules: rules,
			want:  rigoletto.ErrIntrinsicGasTooLow,
		},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			sender := rigoletto.Address{1}
			caller, err := ValidateStatic(FakeSign(test.data, sender), test.rules)
			if test.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if caller != sender {
					t.Errorf("unexpected caller, wanted %v, got %v", sender, caller)
				}
				return
			}
			if !errors.Is(err, test.want) {
				t.Errorf("unexpected error, wanted %v, got %v", test.want, err)
			}
		})
	}
}

func TestValidateSender_ChecksNonceCodeAndBalance(t *testing.T) {
	to := rigoletto.Address{2}
	rules := Rules{ChainID: 1, Revision: rigoletto.Cancun}
	code := rigoletto.NewBytecode(rigoletto.Code{0x00})
	tx := func(nonce uint64) *Signed {
		return FakeSign(&Eip1559{
			ChainID:      1,
			Nonce:        nonce,
			GasLimit:     21_000,
			To:           &to,
			MaxFeePerGas: rigoletto.NewValue(2),
			Value:        rigoletto.NewValue(100),
		}, rigoletto.Address{1})
	}
	rich := rigoletto.NewValue(1_000_000)
	tests := map[string]struct {
		tx      *Signed
		account *state.Account
		rules   Rules
		want    error
	}{
		"valid":             {tx(5), &state.Account{Nonce: 5, Balance: rich}, rules, nil},
		"future nonce":      {tx(7), &state.Account{Nonce: 5, Balance: rich}, rules, nil},
		"nonce too low":     {tx(4), &state.Account{Nonce: 5, Balance: rich}, rules, rigoletto.ErrNonceTooLow},
		"nonce max":         {tx(math.MaxUint64), &state.Account{Nonce: math.MaxUint64, Balance: rich}, rules, rigoletto.ErrNonceMax},
		"sender with code":  {tx(0), &state.Account{Balance: rich, Code: code}, rules, rigoletto.ErrSenderHasCode},
		"eip-3607 disabled": {tx(0), &state.Account{Balance: rich, Code: code}, Rules{ChainID: 1, Revision: rigoletto.Cancun, DisableEip3607: true}, nil},
		"missing account":   {tx(0), nil, rules, rigoletto.ErrInsufficientFunds},
		"exact balance":     {tx(0), &state.Account{Balance: rigoletto.NewValue(42_100)}, rules, nil},
		"balance too low":   {tx(0), &state.Account{Balance: rigoletto.NewValue(42_099)}, rules, rigoletto.ErrInsufficientFunds},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			err := ValidateSender(test.tx, rigoletto.Address{1}, test.account, test.rules)
			if test.want == nil && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if test.want != nil && !errors.Is(err, test.want) {
				t.Errorf("unexpected error, wanted %v, got %v", test.want, err)
			}
		})
	}
}

func TestNewPending_ValidatesAgainstState(t *testing.T) {
	ctx := context.Background()
	sender := rigoletto.Address{1}
	to := rigoletto.Address{2}
	rules := Rules{ChainID: 1, Revision: rigoletto.Cancun}
	s := state.New()
	s.Put(sender, state.Account{Nonce: 3, Balance: rigoletto.NewValue(1_000_000)})

	tx := FakeSign(&Eip1559{ChainID: 1, Nonce: 3, GasLimit: 21_000, To: &to, MaxFeePerGas: rigoletto.NewValue(1)}, sender)
	pending, err := NewPending(ctx, s, rules, tx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := sender, pending.Caller(); want != got {
		t.Errorf("unexpected caller, wanted %v, got %v", want, got)
	}
	if want, got := tx.Hash(), pending.Hash(); want != got {
		t.Errorf("unexpected hash, wanted %v, got %v", want, got)
	}
	if want, got := uint64(3), pending.Nonce(); want != got {
		t.Errorf("unexpected nonce, wanted %d, got %d", want, got)
	}

	stale := FakeSign(&Eip1559{ChainID: 1, Nonce: 2, GasLimit: 21_000, To: &to, MaxFeePerGas: rigoletto.NewValue(1)}, sender)
	if _, err := NewPending(ctx, s, rules, stale); !errors.Is(err, rigoletto.ErrNonceTooLow) {
		t.Errorf("unexpected error, wanted %v, got %v", rigoletto.ErrNonceTooLow, err)
	}
}
