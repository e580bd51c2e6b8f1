package interp

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmkit/wain/wasm"
)

func TestHostFuncExport(t *testing.T) {
	env := NewEnvironment()
	host := env.AppendHostModule("host")

	var received []wasm.Value
	funcIndex := host.AppendFuncExport("mul2",
		wasm.FunctionSig{Params: []wasm.ValueType{i32T}, Results: []wasm.ValueType{i32T}},
		func(args, results []wasm.Value) Result {
			received = append([]wasm.Value{}, args...)
			results[0] = wasm.I32Value(args[0].I32() * 2)
			return ResultOk
		})

	// Direct host invocation through the thread API.
	thread := NewThread(env, nil)
	result, values := thread.RunFunction(funcIndex, wasm.I32Value(21))
	require.Equal(t, ResultOk, result)
	require.Equal(t, uint32(42), values[0].I32())
	require.Equal(t, []wasm.Value{wasm.I32Value(21)}, received)

	// And through a wasm caller.
	bin := mod(
		typeSec(fnType([]wasm.ValueType{i32T}, []wasm.ValueType{i32T})),
		importSec(importEntry("host", "mul2", wasm.ExternalKindFunc, u32(0)...)),
		funcSec(0),
		exportSec(expEntry("call", wasm.ExternalKindFunc, 1)),
		codeSec(fnBody(nil, 0x20, 0x00, 0x10, 0x00, 0x0b)),
	)
	m := loadModule(t, env, bin)
	result, values = thread.RunExport(m, "call", wasm.I32Value(5))
	require.Equal(t, ResultOk, result)
	require.Equal(t, uint32(10), values[0].I32())
}

func TestHostTrapPropagates(t *testing.T) {
	env := NewEnvironment()
	host := env.AppendHostModule("host")
	host.AppendFuncExport("fail", wasm.FunctionSig{},
		func(args, results []wasm.Value) Result {
			return TrapHostTrapped
		})

	bin := mod(
		typeSec(fnType(nil, nil)),
		importSec(importEntry("host", "fail", wasm.ExternalKindFunc, u32(0)...)),
		funcSec(0),
		exportSec(expEntry("call", wasm.ExternalKindFunc, 1)),
		codeSec(fnBody(nil, 0x10, 0x00, 0x0b)),
	)
	m := loadModule(t, env, bin)

	thread := NewThread(env, nil)
	result, _ := thread.RunExport(m, "call")
	require.Equal(t, TrapHostTrapped, result)

	// The trap left the environment usable.
	result, _ = thread.RunExport(m, "call")
	require.Equal(t, TrapHostTrapped, result)
}

func TestHostImportSignatureMismatch(t *testing.T) {
	env := NewEnvironment()
	host := env.AppendHostModule("host")
	host.AppendFuncExport("f",
		wasm.FunctionSig{Results: []wasm.ValueType{i64T}},
		func(args, results []wasm.Value) Result {
			results[0] = wasm.I64Value(1)
			return ResultOk
		})

	mark := env.Mark()
	bin := mod(
		typeSec(fnType(nil, []wasm.ValueType{i32T})),
		importSec(importEntry("host", "f", wasm.ExternalKindFunc, u32(0)...)),
	)
	_, err := ReadBinary(env, bin, DefaultOptions())
	require.Error(t, err)
	require.Contains(t, err.Error(), "import signature mismatch")
	require.Equal(t, mark, env.Mark())
}

func TestSpectestImports(t *testing.T) {
	env := NewEnvironment()
	var out bytes.Buffer
	RegisterSpectest(env, &out)

	bin := mod(
		typeSec(
			fnType([]wasm.ValueType{i32T}, nil),
			fnType(nil, []wasm.ValueType{i32T}),
		),
		importSec(
			importEntry("spectest", "print_i32", wasm.ExternalKindFunc, u32(0)...),
			importEntry("spectest", "global_i32", wasm.ExternalKindGlobal, i32T, 0x00),
			importEntry("spectest", "table", wasm.ExternalKindTable, 0x70, 0x00, 0x01),
			importEntry("spectest", "memory", wasm.ExternalKindMemory, 0x00, 0x01),
		),
		funcSec(1),
		exportSec(expEntry("run", wasm.ExternalKindFunc, 1)),
		codeSec(fnBody(nil,
			0x23, 0x00, // global.get 0
			0x10, 0x00, // call print_i32
			0x23, 0x00,
			0x0b)),
	)
	m := loadModule(t, env, bin)

	thread := NewThread(env, nil)
	result, values := thread.RunExport(m, "run")
	require.Equal(t, ResultOk, result)
	require.Equal(t, uint32(666), values[0].I32())
	require.Contains(t, out.String(), "called host spectest.print_i32(i32:666)")

	// The delegate pre-sizes the table and memory.
	table := env.Table(m.Defined.TableIndexes[0])
	require.Len(t, table.Entries, 10)
	require.Equal(t, wasm.Limits{Initial: 10, Max: 20, HasMax: true}, table.Limits)
	mem := env.Memory(m.Defined.MemoryIndexes[0])
	require.Equal(t, uint32(1), mem.Pages())
	require.Equal(t, wasm.Limits{Initial: 1, Max: 2, HasMax: true}, mem.Limits)
}

func TestSpectestGlobalTypes(t *testing.T) {
	env := NewEnvironment()
	RegisterSpectest(env, nil)

	bin := mod(
		importSec(
			importEntry("spectest", "global_f32", wasm.ExternalKindGlobal, f32T, 0x00),
			importEntry("spectest", "global_f64", wasm.ExternalKindGlobal, f64T, 0x00),
			importEntry("spectest", "global_i64", wasm.ExternalKindGlobal, i64T, 0x00),
		),
	)
	m := loadModule(t, env, bin)
	require.Equal(t, float32(666), env.Global(m.Defined.GlobalIndexes[0]).Value.F32())
	require.Equal(t, float64(666), env.Global(m.Defined.GlobalIndexes[1]).Value.F64())
	require.Equal(t, uint64(666), env.Global(m.Defined.GlobalIndexes[2]).Value.I64())
}

func TestHostDelegateOutlivesMultipleLoads(t *testing.T) {
	env := NewEnvironment()
	var out bytes.Buffer
	RegisterSpectest(env, &out)

	bin := mod(
		typeSec(fnType(nil, nil)),
		importSec(importEntry("spectest", "print", wasm.ExternalKindFunc, u32(0)...)),
		funcSec(0),
		exportSec(expEntry("go", wasm.ExternalKindFunc, 1)),
		codeSec(fnBody(nil, 0x10, 0x00, 0x0b)),
	)
	first := loadModule(t, env, bin)
	second := loadModule(t, env, bin)

	thread := NewThread(env, nil)
	result, _ := thread.RunExport(first, "go")
	require.Equal(t, ResultOk, result)
	result, _ = thread.RunExport(second, "go")
	require.Equal(t, ResultOk, result)
	require.Equal(t, 2, bytes.Count(out.Bytes(), []byte("called host spectest.print(")))
}
