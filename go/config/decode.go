// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package config

import (
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
)

var valueType = reflect.TypeOf(rigoletto.Value{})

// valueHook decodes balances and prices given as integers, decimal strings
// or 0x prefixed hex strings.
func valueHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != valueType {
		return data, nil
	}
	switch v := data.(type) {
	case int:
		return signedValue(int64(v))
	case int64:
		return signedValue(v)
	case uint64:
		return rigoletto.NewValue(v), nil
	case string:
		return parseValue(v)
	}
	return data, nil
}

func signedValue(v int64) (rigoletto.Value, error) {
	if v < 0 {
		return rigoletto.Value{}, fmt.Errorf("negative value %d", v)
	}
	return rigoletto.NewValue(uint64(v)), nil
}

func parseValue(s string) (rigoletto.Value, error) {
	s = strings.TrimSpace(s)
	n, ok := new(big.Int).SetString(s, 0)
	if !ok || n.Sign() < 0 {
		return rigoletto.Value{}, fmt.Errorf("invalid value %q", s)
	}
	return rigoletto.ValueFromBig(n)
}
