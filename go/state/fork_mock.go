// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package state is a generated GoMock package.
package state

import (
	context "context"
	reflect "reflect"

	rigoletto "github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	gomock "go.uber.org/mock/gomock"
)

// MockRemoteSource is a mock of RemoteSource interface.
type MockRemoteSource struct {
	ctrl     *gomock.Controller
	recorder *MockRemoteSourceMockRecorder
}

// MockRemoteSourceMockRecorder is the mock recorder for MockRemoteSource.
type MockRemoteSourceMockRecorder struct {
	mock *MockRemoteSource
}

// NewMockRemoteSource creates a new mock instance.
func NewMockRemoteSource(ctrl *gomock.Controller) *MockRemoteSource {
	mock := &MockRemoteSource{ctrl: ctrl}
	mock.recorder = &MockRemoteSourceMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockRemoteSource) EXPECT() *MockRemoteSourceMockRecorder {
	return m.recorder
}

// Account mocks base method.
func (m *MockRemoteSource) Account(arg0 context.Context, arg1 rigoletto.Address, arg2 uint64) (RemoteAccount, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Account", arg0, arg1, arg2)
	ret0, _ := ret[0].(RemoteAccount)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Account indicates an expected call of Account.
func (mr *MockRemoteSourceMockRecorder) Account(arg0, arg1, arg2 any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Account", reflect.TypeOf((*MockRemoteSource)(nil).Account), arg0, arg1, arg2)
}

// ChainID mocks base method.
func (m *MockRemoteSource) ChainID(arg0 context.Context) (uint64, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ChainID", arg0)
	ret0, _ := ret[0].(uint64)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ChainID indicates an expected call of ChainID.
func (mr *MockRemoteSourceMockRecorder) ChainID(arg0 any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ChainID", reflect.TypeOf((*MockRemoteSource)(nil).ChainID), arg0)
}

// Storage mocks base method.
func (m *MockRemoteSource) Storage(arg0 context.Context, arg1 rigoletto.Address, arg2 rigoletto.Key, arg3 uint64) (rigoletto.Word, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Storage", arg0, arg1, arg2, arg3)
	ret0, _ := ret[0].(rigoletto.Word)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Storage indicates an expected call of Storage.
func (mr *MockRemoteSourceMockRecorder) Storage(arg0, arg1, arg2, arg3 any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Storage", reflect.TypeOf((*MockRemoteSource)(nil).Storage), arg0, arg1, arg2, arg3)
}
