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

import (
	"testing"

	"go.uber.org/mock/gomock"
)

func TestInterpreterRegistry_RegisterAndCreate(t *testing.T) {
	ctrl := gomock.NewController(t)
	interpreter := NewMockInterpreter(ctrl)

	name := "test-registry-interpreter"
	err := RegisterInterpreterFactory(name, func(any) (Interpreter, error) {
		return interpreter, nil
	})
	if err != nil {
		t.Fatalf("failed to register interpreter: %v", err)
	}

	got, err := NewInterpreter("Test-Registry-Interpreter")
	if err != nil {
		t.Fatalf("failed to create interpreter: %v", err)
	}
	if got != interpreter {
		t.Errorf("unexpected interpreter instance")
	}
	if _, found := GetAllRegisteredInterpreters()[name]; !found {
		t.Errorf("interpreter not listed")
	}
}

func TestInterpreterRegistry_DuplicatesAndNilFactoriesAreRejected(t *testing.T) {
	name := "test-duplicate-interpreter"
	factory := func(any) (Interpreter, error) { return nil, nil }
	if err := RegisterInterpreterFactory(name, factory); err != nil {
		t.Fatalf("failed to register interpreter: %v", err)
	}
	if err := RegisterInterpreterFactory(name, factory); err == nil {
		t.Errorf("duplicate registration should fail")
	}
	if err := RegisterInterpreterFactory("test-nil-interpreter", nil); err == nil {
		t.Errorf("nil factory should be rejected")
	}
}

func TestInterpreterRegistry_UnknownInterpreterAndTooManyConfigs(t *testing.T) {
	if _, err := NewInterpreter("test-unknown-interpreter"); err == nil {
		t.Errorf("unknown interpreter should not be created")
	}
	if _, err := NewInterpreter("test-unknown-interpreter", 1, 2); err == nil {
		t.Errorf("too many configurations should be rejected")
	}
}
