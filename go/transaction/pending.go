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
	"fmt"
	"math"

	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	"github.com/Fantom-foundation/Rigoletto/go/state"
)

// Rules are the chain settings transactions are validated against.
type Rules struct {
	ChainID  uint64
	Revision rigoletto.Revision
	// LimitInitcodeSize overrides the EIP-3860 init code size limit.
	LimitInitcodeSize *uint64
	// DisableEip3607 allows senders with code.
	DisableEip3607 bool
}

func (r Rules) maxInitCodeSize() uint64 {
	if r.LimitInitcodeSize != nil {
		return *r.LimitInitcodeSize
	}
	return MaxInitCodeSize
}

// ValidateStatic runs all checks not depending on the state and returns the
// sender of the transaction.
func ValidateStatic(tx *Signed, rules Rules) (rigoletto.Address, error) {
	if !rules.Revision.IsAtLeast(tx.Type().MinRevision()) {
		return rigoletto.Address{}, fmt.Errorf("%w: %v in %v", rigoletto.ErrTxTypeNotSupported, tx.Type(), rules.Revision)
	}
	if id, bound := tx.ChainID(); bound && id != rules.ChainID {
		return rigoletto.Address{}, fmt.Errorf("%w: have %d, want %d", rigoletto.ErrChainIDMismatch, id, rules.ChainID)
	}
	caller, err := tx.Caller()
	if err != nil {
		return rigoletto.Address{}, err
	}
	if tx.Type() == BlobType && len(tx.BlobHashes()) == 0 {
		return caller, rigoletto.ErrMissingBlobHashes
	}
	if tx.MaxPriorityFeePerGas().Cmp(tx.MaxFeePerGas()) > 0 {
		return caller, fmt.Errorf("%w: tip %v, fee cap %v", rigoletto.ErrTipAboveFeeCap, tx.MaxPriorityFeePerGas(), tx.MaxFeePerGas())
	}
	if tx.IsCreate() && rules.Revision.IsAtLeast(rigoletto.Shanghai) && uint64(len(tx.Input())) > rules.maxInitCodeSize() {
		return caller, fmt.Errorf("%w: code size %d, limit %d", rigoletto.ErrInitCodeTooLarge, len(tx.Input()), rules.maxInitCodeSize())
	}
	intrinsic, err := IntrinsicGas(tx, rules.Revision)
	if err != nil {
		return caller, err
	}
	if tx.GasLimit() < intrinsic {
		return caller, fmt.Errorf("%w: have %d, want %d", rigoletto.ErrIntrinsicGasTooLow, tx.GasLimit(), intrinsic)
	}
	return caller, nil
}

// ValidateSender checks the transaction against the current state of its
// sender. Nonces above the account nonce are accepted.
func ValidateSender(tx *Signed, caller rigoletto.Address, account *state.Account, rules Rules) error {
	nonce := uint64(0)
	if account != nil {
		nonce = account.Nonce
	}
	if tx.Nonce() < nonce {
		return fmt.Errorf("%w: address %v, tx: %d state: %d", rigoletto.ErrNonceTooLow, caller, tx.Nonce(), nonce)
	}
	if nonce == math.MaxUint64 {
		return fmt.Errorf("%w: address %v", rigoletto.ErrNonceMax, caller)
	}
	if !rules.DisableEip3607 && account.HasCode() {
		return fmt.Errorf("%w: address %v, code hash %v", rigoletto.ErrSenderHasCode, caller, account.CodeHash())
	}
	cost, ok := UpfrontCost(tx)
	if !ok {
		return fmt.Errorf("%w: cost overflows 256 bits", rigoletto.ErrInsufficientFunds)
	}
	var balance rigoletto.Value
	if account != nil {
		balance = account.Balance
	}
	if balance.Cmp(cost) < 0 {
		return fmt.Errorf("%w: address %v have %v want %v", rigoletto.ErrInsufficientFunds, caller, balance, cost)
	}
	return nil
}

// Pending is a transaction validated against a state, ready to be added to
// a pool.
type Pending struct {
	tx     *Signed
	caller rigoletto.Address
}

// NewPending validates the transaction against the given state.
func NewPending(ctx context.Context, s *state.State, rules Rules, tx *Signed) (*Pending, error) {
	caller, err := ValidateStatic(tx, rules)
	if err != nil {
		return nil, err
	}
	account, err := s.Get(ctx, caller)
	if err != nil {
		return nil, err
	}
	if err := ValidateSender(tx, caller, account, rules); err != nil {
		return nil, err
	}
	return &Pending{tx: tx, caller: caller}, nil
}

func (p *Pending) Transaction() *Signed {
	return p.tx
}

func (p *Pending) Caller() rigoletto.Address {
	return p.caller
}

func (p *Pending) Hash() rigoletto.Hash {
	return p.tx.Hash()
}

func (p *Pending) Nonce() uint64 {
	return p.tx.Nonce()
}
