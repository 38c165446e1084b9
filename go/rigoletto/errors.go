// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package rigoletto

import "fmt"

// ConstError is an error type for sentinel errors that can be declared as
// constants. Wrap them with fmt.Errorf("%w: ...") to add context.
type ConstError string

func (e ConstError) Error() string {
	return string(e)
}

// Validation errors. A transaction failing with one of these errors was
// rejected before execution: no gas was charged and no state was modified.
const (
	ErrNonceTooLow         = ConstError("nonce too low")
	ErrNonceTooHigh        = ConstError("nonce too high")
	ErrNonceMax            = ConstError("nonce has max value")
	ErrInsufficientFunds   = ConstError("insufficient funds for gas * price + value")
	ErrIntrinsicGasTooLow  = ConstError("intrinsic gas too low")
	ErrSenderHasCode       = ConstError("sender not an eoa")
	ErrChainIDMismatch     = ConstError("chain id mismatch")
	ErrFeeCapTooLow        = ConstError("max fee per gas less than block base fee")
	ErrTipAboveFeeCap      = ConstError("max priority fee per gas higher than max fee per gas")
	ErrGasLimitExceeded    = ConstError("transaction gas limit exceeds block gas limit")
	ErrInitCodeTooLarge    = ConstError("max initcode size exceeded")
	ErrBlobCreate          = ConstError("blob transaction of type create")
	ErrMissingBlobHashes   = ConstError("blob transaction missing blob hashes")
	ErrBlobFeeCapTooLow    = ConstError("max fee per blob gas less than block blob gas fee")
	ErrInvalidSignature    = ConstError("invalid transaction signature")
	ErrGasUintOverflow     = ConstError("gas uint64 overflow")
	ErrInvalidAccessList   = ConstError("malformed access list")
	ErrTxTypeNotSupported  = ConstError("transaction type not supported")
	ErrGasPriceTooLow      = ConstError("gas price below minimum")
	ErrTransactionNotFound = ConstError("transaction not found")
)

// Pool errors.
const (
	ErrReplacementUnderpriced = ConstError("replacement transaction underpriced")
	ErrExceedsBlockGasLimit   = ConstError("transaction gas limit exceeds pool block gas limit")
)

// Infrastructure errors. These signal programming or environment problems and
// are never folded into an ExecutionResult.
const (
	ErrRemoteFetch           = ConstError("remote fetch failed")
	ErrInvalidBlockNumber    = ConstError("invalid block number")
	ErrBuilderFinalized      = ConstError("block builder already finalized")
	ErrAccountNotFound       = ConstError("account not found")
	ErrUnknownParent         = ConstError("unknown parent block")
	ErrTransactionGasTooHigh = ConstError("transaction gas exceeds remaining block gas")
	ErrBlobGasLimitExceeded  = ConstError("transaction blob gas exceeds remaining block blob gas")
)

// RemoteFetchError is returned when a read needed data from a remote source
// and the source failed to deliver it, including cancellation by the caller.
type RemoteFetchError struct {
	Op          string // what was fetched, e.g. "account" or "storage"
	BlockNumber uint64
	Err         error
}

func (e *RemoteFetchError) Error() string {
	return fmt.Sprintf("%v: %s at block %d: %v", ErrRemoteFetch, e.Op, e.BlockNumber, e.Err)
}

func (e *RemoteFetchError) Unwrap() error {
	return e.Err
}

func (e *RemoteFetchError) Is(target error) bool {
	return target == ErrRemoteFetch
}
