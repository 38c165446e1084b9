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
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"

	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	"github.com/ethereum/go-ethereum/core/types"
)

// Signed is an immutable signed transaction. The sender is recovered from
// the signature once, on first use. Impersonated transactions carry a fake
// signature and an explicit sender instead.
type Signed struct {
	data   TxData
	tx     *types.Transaction
	sender *rigoletto.Address // < set for impersonated transactions

	recoverOnce sync.Once
	caller      rigoletto.Address
	callerErr   error
}

// Sign signs the transaction with the given key. Legacy transactions without
// a chain id are signed without replay protection.
func Sign(data TxData, key *ecdsa.PrivateKey) (*Signed, error) {
	tx, err := types.SignNewTx(key, signerFor(data), data.toGeth())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rigoletto.ErrInvalidSignature, err)
	}
	return &Signed{data: data, tx: tx}, nil
}

// FakeSign attaches a fake signature identifying the given sender. The
// signature does not verify, but makes the hash unique per sender.
func FakeSign(data TxData, sender rigoletto.Address) *Signed {
	var sig [65]byte
	copy(sig[12:32], sender[:])
	copy(sig[44:64], sender[:])
	sig[31] |= 1 // r and s must not be zero
	sig[63] |= 1
	tx, err := types.NewTx(data.toGeth()).WithSignature(signerFor(data), sig[:])
	if err != nil {
		// only fails for chain id mismatches, which cannot happen here
		panic(fmt.Sprintf("failed to fake sign transaction: %v", err))
	}
	return &Signed{data: data, tx: tx, sender: &sender}
}

// FromGeth wraps a signed go-ethereum transaction.
func FromGeth(tx *types.Transaction) (*Signed, error) {
	data, err := dataFromGeth(tx)
	if err != nil {
		return nil, err
	}
	return &Signed{data: data, tx: tx}, nil
}

// FromGethWithSender wraps a go-ethereum transaction with a known sender, as
// delivered by remote nodes.
func FromGethWithSender(tx *types.Transaction, sender rigoletto.Address) (*Signed, error) {
	res, err := FromGeth(tx)
	if err != nil {
		return nil, err
	}
	res.recoverOnce.Do(func() { res.caller = sender })
	return res, nil
}

func signerFor(data TxData) types.Signer {
	switch tx := data.(type) {
	case *Legacy:
		if tx.ChainID == nil {
			return types.HomesteadSigner{}
		}
		return types.LatestSignerForChainID(new(big.Int).SetUint64(*tx.ChainID))
	case *Eip2930:
		return types.LatestSignerForChainID(new(big.Int).SetUint64(tx.ChainID))
	case *Eip1559:
		return types.LatestSignerForChainID(new(big.Int).SetUint64(tx.ChainID))
	case *Eip4844:
		return types.LatestSignerForChainID(new(big.Int).SetUint64(tx.ChainID))
	}
	panic(fmt.Sprintf("unsupported transaction data %T", data))
}

// Caller returns the sender of the transaction.
func (s *Signed) Caller() (rigoletto.Address, error) {
	if s.sender != nil {
		return *s.sender, nil
	}
	s.recoverOnce.Do(func() {
		sender, err := types.Sender(signerFor(s.data), s.tx)
		if err != nil {
			s.callerErr = fmt.Errorf("%w: %v", rigoletto.ErrInvalidSignature, err)
			return
		}
		s.caller = rigoletto.Address(sender)
	})
	return s.caller, s.callerErr
}

func (s *Signed) IsImpersonated() bool {
	return s.sender != nil
}

// Data returns the unsigned content. It must not be modified.
func (s *Signed) Data() TxData {
	return s.data
}

// ToGeth returns the go-ethereum representation including the signature.
func (s *Signed) ToGeth() *types.Transaction {
	return s.tx
}

func (s *Signed) Type() Type {
	return s.data.txType()
}

func (s *Signed) Hash() rigoletto.Hash {
	return rigoletto.Hash(s.tx.Hash())
}

func (s *Signed) Nonce() uint64 {
	return s.tx.Nonce()
}

func (s *Signed) GasLimit() uint64 {
	return s.tx.Gas()
}

// GasPrice is the gas price of legacy and access list transactions and the
// max fee per gas of fee market transactions.
func (s *Signed) GasPrice() rigoletto.Value {
	switch tx := s.data.(type) {
	case *Legacy:
		return tx.GasPrice
	case *Eip2930:
		return tx.GasPrice
	}
	return s.MaxFeePerGas()
}

func (s *Signed) MaxFeePerGas() rigoletto.Value {
	switch tx := s.data.(type) {
	case *Eip1559:
		return tx.MaxFeePerGas
	case *Eip4844:
		return tx.MaxFeePerGas
	}
	return s.GasPrice()
}

// MaxPriorityFeePerGas is the tip cap of fee market transactions and the gas
// price of all others.
func (s *Signed) MaxPriorityFeePerGas() rigoletto.Value {
	switch tx := s.data.(type) {
	case *Eip1559:
		return tx.MaxPriorityFeePerGas
	case *Eip4844:
		return tx.MaxPriorityFeePerGas
	}
	return s.GasPrice()
}

// IsFeeMarket reports whether the gas price is given as a fee cap and a tip.
func (s *Signed) IsFeeMarket() bool {
	switch s.data.(type) {
	case *Eip1559, *Eip4844:
		return true
	}
	return false
}

// To is nil for contract creations.
func (s *Signed) To() *rigoletto.Address {
	return fromGethAddress(s.tx.To())
}

func (s *Signed) IsCreate() bool {
	return s.tx.To() == nil
}

func (s *Signed) Value() rigoletto.Value {
	switch tx := s.data.(type) {
	case *Legacy:
		return tx.Value
	case *Eip2930:
		return tx.Value
	case *Eip1559:
		return tx.Value
	case *Eip4844:
		return tx.Value
	}
	return rigoletto.Value{}
}

// Input must not be modified.
func (s *Signed) Input() rigoletto.Data {
	return s.tx.Data()
}

func (s *Signed) AccessList() AccessList {
	switch tx := s.data.(type) {
	case *Eip2930:
		return tx.AccessList
	case *Eip1559:
		return tx.AccessList
	case *Eip4844:
		return tx.AccessList
	}
	return nil
}

// ChainID returns the chain the transaction is bound to, if any.
func (s *Signed) ChainID() (uint64, bool) {
	switch tx := s.data.(type) {
	case *Legacy:
		if tx.ChainID == nil {
			return 0, false
		}
		return *tx.ChainID, true
	case *Eip2930:
		return tx.ChainID, true
	case *Eip1559:
		return tx.ChainID, true
	case *Eip4844:
		return tx.ChainID, true
	}
	return 0, false
}

func (s *Signed) BlobHashes() []rigoletto.Hash {
	if tx, ok := s.data.(*Eip4844); ok {
		return tx.BlobHashes
	}
	return nil
}

func (s *Signed) MaxFeePerBlobGas() rigoletto.Value {
	if tx, ok := s.data.(*Eip4844); ok {
		return tx.MaxFeePerBlobGas
	}
	return rigoletto.Value{}
}

// BlobGas is the blob gas consumed by the transaction.
func (s *Signed) BlobGas() uint64 {
	return s.tx.BlobGas()
}

func (s *Signed) String() string {
	return fmt.Sprintf("%v(%v, nonce %d)", s.Type(), s.Hash(), s.Nonce())
}
