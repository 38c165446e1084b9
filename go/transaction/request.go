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
	"math"

	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
)

const (
	DefaultRequestGasLimit = math.MaxInt64
	DefaultRequestGasPrice = 1
)

// Request describes a call to be executed on behalf of an account without
// its signature, as used for dry runs and impersonated accounts. Unset fields
// take their defaults when the request is turned into a transaction.
type Request struct {
	From     rigoletto.Address  `json:"from"`
	To       *rigoletto.Address `json:"to,omitempty"` // < nil creates a contract
	GasLimit *uint64            `json:"gasLimit,omitempty"`
	GasPrice *rigoletto.Value   `json:"gasPrice,omitempty"`
	// GasPriorityFee turns the request into a fee market transaction with
	// GasPrice as the fee cap.
	GasPriorityFee   *rigoletto.Value `json:"gasPriorityFee,omitempty"`
	Value            rigoletto.Value  `json:"value"`
	Nonce            *uint64          `json:"nonce,omitempty"`
	Input            rigoletto.Data   `json:"input,omitempty"`
	AccessList       AccessList       `json:"accessList,omitempty"`
	ChainID          *uint64          `json:"chainId,omitempty"`
	BlobHashes       []rigoletto.Hash `json:"blobHashes,omitempty"`
	MaxFeePerBlobGas *rigoletto.Value `json:"maxFeePerBlobGas,omitempty"`
}

// ToSigned converts the request into a transaction fake-signed by its
// sender. The given nonce is used unless the request sets one. The chain id
// of the request overrides the given one.
func (r *Request) ToSigned(chainID uint64, nonce uint64) *Signed {
	if r.Nonce != nil {
		nonce = *r.Nonce
	}
	if r.ChainID != nil {
		chainID = *r.ChainID
	}
	gasLimit := uint64(DefaultRequestGasLimit)
	if r.GasLimit != nil {
		gasLimit = *r.GasLimit
	}
	gasPrice := rigoletto.NewValue(DefaultRequestGasPrice)
	if r.GasPrice != nil {
		gasPrice = *r.GasPrice
	}

	var data TxData
	switch {
	case len(r.BlobHashes) > 0 && r.To != nil:
		tx := &Eip4844{
			ChainID:          chainID,
			Nonce:            nonce,
			MaxFeePerGas:     gasPrice,
			GasLimit:         gasLimit,
			To:               *r.To,
			Value:            r.Value,
			Input:            r.Input,
			AccessList:       r.AccessList,
			BlobHashes:       r.BlobHashes,
			MaxFeePerBlobGas: rigoletto.NewValue(DefaultRequestGasPrice),
		}
		if r.GasPriorityFee != nil {
			tx.MaxPriorityFeePerGas = *r.GasPriorityFee
		}
		if r.MaxFeePerBlobGas != nil {
			tx.MaxFeePerBlobGas = *r.MaxFeePerBlobGas
		}
		data = tx
	case r.GasPriorityFee != nil:
		data = &Eip1559{
			ChainID:              chainID,
			Nonce:                nonce,
			MaxPriorityFeePerGas: *r.GasPriorityFee,
			MaxFeePerGas:         gasPrice,
			GasLimit:             gasLimit,
			To:                   r.To,
			Value:                r.Value,
			Input:                r.Input,
			AccessList:           r.AccessList,
		}
	case len(r.AccessList) > 0:
		data = &Eip2930{
			ChainID:    chainID,
			Nonce:      nonce,
			GasPrice:   gasPrice,
			GasLimit:   gasLimit,
			To:         r.To,
			Value:      r.Value,
			Input:      r.Input,
			AccessList: r.AccessList,
		}
	default:
		data = &Legacy{
			ChainID:  &chainID,
			Nonce:    nonce,
			GasPrice: gasPrice,
			GasLimit: gasLimit,
			To:       r.To,
			Value:    r.Value,
			Input:    r.Input,
		}
	}
	return FakeSign(data, r.From)
}
