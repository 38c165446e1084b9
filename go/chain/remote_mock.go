// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package chain is a generated GoMock package.
package chain

import (
	context "context"
	big "math/big"
	reflect "reflect"

	rigoletto "github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	state "github.com/Fantom-foundation/Rigoletto/go/state"
	transaction "github.com/Fantom-foundation/Rigoletto/go/transaction"
	gomock "go.uber.org/mock/gomock"
)

// MockRemoteChain is a mock of RemoteChain interface.
type MockRemoteChain struct {
	ctrl     *gomock.Controller
	recorder *MockRemoteChainMockRecorder
}

// MockRemoteChainMockRecorder is the mock recorder for MockRemoteChain.
type MockRemoteChainMockRecorder struct {
	mock *MockRemoteChain
}

// NewMockRemoteChain creates a new mock instance.
func NewMockRemoteChain(ctrl *gomock.Controller) *MockRemoteChain {
	mock := &MockRemoteChain{ctrl: ctrl}
	mock.recorder = &MockRemoteChainMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockRemoteChain) EXPECT() *MockRemoteChainMockRecorder {
	return m.recorder
}

// Account mocks base method.
func (m *MockRemoteChain) Account(arg0 context.Context, arg1 rigoletto.Address, arg2 uint64) (state.RemoteAccount, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Account", arg0, arg1, arg2)
	ret0, _ := ret[0].(state.RemoteAccount)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Account indicates an expected call of Account.
func (mr *MockRemoteChainMockRecorder) Account(arg0, arg1, arg2 any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Account", reflect.TypeOf((*MockRemoteChain)(nil).Account), arg0, arg1, arg2)
}

// BlockByHash mocks base method.
func (m *MockRemoteChain) BlockByHash(arg0 context.Context, arg1 rigoletto.Hash) (*Block, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "BlockByHash", arg0, arg1)
	ret0, _ := ret[0].(*Block)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// BlockByHash indicates an expected call of BlockByHash.
func (mr *MockRemoteChainMockRecorder) BlockByHash(arg0, arg1 any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "BlockByHash", reflect.TypeOf((*MockRemoteChain)(nil).BlockByHash), arg0, arg1)
}

// BlockByNumber mocks base method.
func (m *MockRemoteChain) BlockByNumber(arg0 context.Context, arg1 uint64) (*Block, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "BlockByNumber", arg0, arg1)
	ret0, _ := ret[0].(*Block)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// BlockByNumber indicates an expected call of BlockByNumber.
func (mr *MockRemoteChainMockRecorder) BlockByNumber(arg0, arg1 any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "BlockByNumber", reflect.TypeOf((*MockRemoteChain)(nil).BlockByNumber), arg0, arg1)
}

// ChainID mocks base method.
func (m *MockRemoteChain) ChainID(arg0 context.Context) (uint64, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ChainID", arg0)
	ret0, _ := ret[0].(uint64)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ChainID indicates an expected call of ChainID.
func (mr *MockRemoteChainMockRecorder) ChainID(arg0 any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ChainID", reflect.TypeOf((*MockRemoteChain)(nil).ChainID), arg0)
}

// LatestBlockNumber mocks base method.
func (m *MockRemoteChain) LatestBlockNumber(arg0 context.Context) (uint64, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "LatestBlockNumber", arg0)
	ret0, _ := ret[0].(uint64)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// LatestBlockNumber indicates an expected call of LatestBlockNumber.
func (mr *MockRemoteChainMockRecorder) LatestBlockNumber(arg0 any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "LatestBlockNumber", reflect.TypeOf((*MockRemoteChain)(nil).LatestBlockNumber), arg0)
}

// ReceiptByTransactionHash mocks base method.
func (m *MockRemoteChain) ReceiptByTransactionHash(arg0 context.Context, arg1 rigoletto.Hash) (*transaction.Receipt, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ReceiptByTransactionHash", arg0, arg1)
	ret0, _ := ret[0].(*transaction.Receipt)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ReceiptByTransactionHash indicates an expected call of ReceiptByTransactionHash.
func (mr *MockRemoteChainMockRecorder) ReceiptByTransactionHash(arg0, arg1 any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ReceiptByTransactionHash", reflect.TypeOf((*MockRemoteChain)(nil).ReceiptByTransactionHash), arg0, arg1)
}

// Storage mocks base method.
func (m *MockRemoteChain) Storage(arg0 context.Context, arg1 rigoletto.Address, arg2 rigoletto.Key, arg3 uint64) (rigoletto.Word, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Storage", arg0, arg1, arg2, arg3)
	ret0, _ := ret[0].(rigoletto.Word)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Storage indicates an expected call of Storage.
func (mr *MockRemoteChainMockRecorder) Storage(arg0, arg1, arg2, arg3 any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Storage", reflect.TypeOf((*MockRemoteChain)(nil).Storage), arg0, arg1, arg2, arg3)
}

// TotalDifficultyByHash mocks base method.
func (m *MockRemoteChain) TotalDifficultyByHash(arg0 context.Context, arg1 rigoletto.Hash) (*big.Int, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "TotalDifficultyByHash", arg0, arg1)
	ret0, _ := ret[0].(*big.Int)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// TotalDifficultyByHash indicates an expected call of TotalDifficultyByHash.
func (mr *MockRemoteChainMockRecorder) TotalDifficultyByHash(arg0, arg1 any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "TotalDifficultyByHash", reflect.TypeOf((*MockRemoteChain)(nil).TotalDifficultyByHash), arg0, arg1)
}
