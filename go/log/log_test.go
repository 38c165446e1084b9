// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func configure(t *testing.T, toml string) {
	t.Helper()
	conf := viper.New()
	conf.SetConfigType("toml")
	require.NoError(t, conf.ReadConfig(strings.NewReader(toml)))
	Configure(conf)
}

func TestNewLogger_ModuleLevelOverridesDefault(t *testing.T) {
	configure(t, `
level = "warn"
formatter = "json"

[state]
level = "debug"
`)
	assert.Equal(t, "warn", NewLogger("mempool").Level())
	assert.Equal(t, "debug", NewLogger("state").Level())
	assert.True(t, NewLogger("state").IsDebugEnabled())
	assert.False(t, NewLogger("mempool").IsDebugEnabled())
}

func TestNewLogger_InvalidLevelFallsBackToInfo(t *testing.T) {
	configure(t, `
level = "loud"
formatter = "json"
`)
	assert.Equal(t, "info", NewLogger("chain").Level())
}

func TestNewLogger_EventsCarryModuleName(t *testing.T) {
	configure(t, `formatter = "json"`)
	logger := NewLogger("miner")

	var buffer bytes.Buffer
	out := logger.Output(&buffer)
	out.Info().Uint64("number", 12).Msg("mined")

	var event map[string]any
	require.NoError(t, json.Unmarshal(buffer.Bytes(), &event))
	assert.Equal(t, "miner", event["module"])
	assert.Equal(t, "mined", event["message"])
	assert.EqualValues(t, 12, event["number"])
}

func TestNop_DiscardsEverything(t *testing.T) {
	logger := Nop()
	assert.False(t, logger.IsDebugEnabled())
	assert.Equal(t, zerolog.Disabled.String(), logger.Level())
	logger.Error().Msg("not printed")
}

func TestLazyEval_IsOnlyEvaluatedWhenPrinted(t *testing.T) {
	configure(t, `
level = "info"
formatter = "json"
`)
	called := false
	value := LazyEval(func() string {
		called = true
		return "expensive"
	})
	logger := NewLogger("lazy")
	logger.Debug().Stringer("value", value).Msg("skipped")
	assert.False(t, called)
}
