// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package tracing

import (
	"encoding/hex"

	"github.com/Fantom-foundation/Rigoletto/go/rigoletto"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"golang.org/x/exp/maps"
)

// StructLoggerConfig disables optional parts of the recorded steps.
type StructLoggerConfig struct {
	DisableStorage bool `json:"disableStorage"`
	DisableMemory  bool `json:"disableMemory"`
	DisableStack   bool `json:"disableStack"`
}

// StructLog is a single executed instruction in the debug_trace format.
// Words in the stack, memory and storage are 32-byte hex strings without
// prefix.
type StructLog struct {
	Pc      uint64            `json:"pc"`
	Op      byte              `json:"op"`
	OpName  string            `json:"opName"`
	Gas     hexutil.Uint64    `json:"gas"`
	GasCost hexutil.Uint64    `json:"gasCost"`
	Depth   int               `json:"depth"`
	MemSize int               `json:"memSize"`
	Stack   []string          `json:"stack,omitempty"`
	Memory  []string          `json:"memory,omitempty"`
	Storage map[string]string `json:"storage,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// DebugTraceResult is the outcome of a traced transaction.
type DebugTraceResult struct {
	Pass       bool           `json:"pass"`
	GasUsed    hexutil.Uint64 `json:"gasUsed"`
	Output     hexutil.Bytes  `json:"output"`
	StructLogs []StructLog    `json:"structLogs"`
}

// StructLogger records every executed instruction. The storage reported for
// SLOAD and SSTORE steps is the set of slots of the executing contract
// accessed so far in the trace.
type StructLogger struct {
	config  StructLoggerConfig
	logs    []StructLog
	open    []openStep
	storage map[rigoletto.Address]map[rigoletto.Key]rigoletto.Word
}

// openStep is an instruction for which the end event is still outstanding.
// Instructions starting nested calls stay open until the nested call ends.
type openStep struct {
	index   int
	address rigoletto.Address
}

func NewStructLogger(config StructLoggerConfig) *StructLogger {
	return &StructLogger{
		config:  config,
		storage: map[rigoletto.Address]map[rigoletto.Key]rigoletto.Word{},
	}
}

// Hooks returns the trace hooks feeding this logger.
func (l *StructLogger) Hooks() *rigoletto.TraceHooks {
	return &rigoletto.TraceHooks{
		OnOpcode:      l.onOpcode,
		OnOpcodeEnd:   l.onOpcodeEnd,
		CaptureStack:  !l.config.DisableStack,
		CaptureMemory: !l.config.DisableMemory,
	}
}

func (l *StructLogger) onOpcode(step *rigoletto.OpcodeStep) {
	log := StructLog{
		Pc:      step.Pc,
		Op:      step.Op,
		OpName:  step.OpName,
		Gas:     hexutil.Uint64(step.Gas),
		Depth:   step.Depth,
		MemSize: step.MemorySize,
	}
	if !l.config.DisableStack {
		log.Stack = make([]string, len(step.Stack))
		for i := range step.Stack {
			log.Stack[i] = wordToHex(&step.Stack[i])
		}
	}
	if !l.config.DisableMemory {
		log.Memory = memoryToHex(step.Memory)
	}
	l.open = append(l.open, openStep{index: len(l.logs), address: step.Address})
	l.logs = append(l.logs, log)
}

func (l *StructLogger) onOpcodeEnd(res rigoletto.OpcodeResult) {
	if len(l.open) == 0 {
		return
	}
	step := l.open[len(l.open)-1]
	l.open = l.open[:len(l.open)-1]

	log := &l.logs[step.index]
	log.GasCost = hexutil.Uint64(res.GasCost)
	if res.Halt != rigoletto.HaltNone {
		log.Error = res.Halt.String()
	}
	if res.Storage != nil && !l.config.DisableStorage {
		slots, found := l.storage[step.address]
		if !found {
			slots = map[rigoletto.Key]rigoletto.Word{}
			l.storage[step.address] = slots
		}
		slots[res.Storage.Key] = res.Storage.Value
		log.Storage = make(map[string]string, len(slots))
		for key, value := range slots {
			log.Storage[hex.EncodeToString(key[:])] = hex.EncodeToString(value[:])
		}
	}
}

// Logs returns the recorded instructions in execution order.
func (l *StructLogger) Logs() []StructLog {
	return l.logs
}

// Result combines the recorded instructions with the result of the traced
// transaction.
func (l *StructLogger) Result(result rigoletto.ExecutionResult) *DebugTraceResult {
	res := &DebugTraceResult{StructLogs: l.logs}
	if res.StructLogs == nil {
		res.StructLogs = []StructLog{}
	}
	if result != nil {
		res.Pass = rigoletto.IsSuccess(result)
		res.GasUsed = hexutil.Uint64(result.UsedGas())
		res.Output = hexutil.Bytes(result.ReturnData())
	}
	return res
}

// Reset clears the recorded trace.
func (l *StructLogger) Reset() {
	l.logs = nil
	l.open = nil
	maps.Clear(l.storage)
}

func wordToHex(value *uint256.Int) string {
	word := value.Bytes32()
	return hex.EncodeToString(word[:])
}

func memoryToHex(memory []byte) []string {
	res := make([]string, 0, (len(memory)+31)/32)
	for i := 0; i < len(memory); i += 32 {
		var word [32]byte
		copy(word[:], memory[i:min(i+32, len(memory))])
		res = append(res, hex.EncodeToString(word[:]))
	}
	return res
}
