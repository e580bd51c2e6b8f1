package interp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmkit/wain/wasm"
)

func runExport(t *testing.T, env *Environment, m *Module, name string, args ...wasm.Value) (Result, []wasm.Value) {
	t.Helper()
	thread := NewThread(env, nil)
	return thread.RunExport(m, name, args...)
}

func TestRunAdd(t *testing.T) {
	env := NewEnvironment()
	m := loadModule(t, env, exportedFuncModule("add",
		fnType([]wasm.ValueType{i32T, i32T}, []wasm.ValueType{i32T}),
		fnBody(nil, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b)))

	result, values := runExport(t, env, m, "add", wasm.I32Value(1), wasm.I32Value(2))
	require.Equal(t, ResultOk, result)
	require.Equal(t, []wasm.Value{wasm.I32Value(3)}, values)

	// Wrapping arithmetic.
	result, values = runExport(t, env, m, "add", wasm.I32Value(0xffffffff), wasm.I32Value(1))
	require.Equal(t, ResultOk, result)
	require.Equal(t, uint32(0), values[0].I32())
}

func TestRunExportErrors(t *testing.T) {
	env := NewEnvironment()
	m := loadModule(t, env, mod(
		typeSec(fnType(nil, nil)),
		funcSec(0),
		memSec(1),
		exportSec(
			expEntry("f", wasm.ExternalKindFunc, 0),
			expEntry("mem", wasm.ExternalKindMemory, 0),
		),
		codeSec(fnBody(nil, 0x0b)),
	))

	result, _ := runExport(t, env, m, "nosuch")
	require.Equal(t, TrapUnknownExport, result)
	result, _ = runExport(t, env, m, "mem")
	require.Equal(t, TrapExportKindMismatch, result)

	// Argument mismatches are rejected before execution starts.
	result, _ = runExport(t, env, m, "f", wasm.I32Value(1))
	require.Equal(t, TrapInvalidArgument, result)
}

func TestIntegerDivideTraps(t *testing.T) {
	env := NewEnvironment()
	m := loadModule(t, env, exportedFuncModule("div",
		fnType([]wasm.ValueType{i32T, i32T}, []wasm.ValueType{i32T}),
		fnBody(nil, 0x20, 0x00, 0x20, 0x01, 0x6d, 0x0b)))

	thread := NewThread(env, nil)
	result, values := thread.RunExport(m, "div", wasm.I32Value(7), wasm.I32Value(2))
	require.Equal(t, ResultOk, result)
	require.Equal(t, uint32(3), values[0].I32())

	result, _ = thread.RunExport(m, "div", wasm.I32Value(1), wasm.I32Value(0))
	require.Equal(t, TrapIntegerDivideByZero, result)

	result, _ = thread.RunExport(m, "div", wasm.I32Value(0x80000000), wasm.I32Value(0xffffffff))
	require.Equal(t, TrapIntegerOverflow, result)

	// A trap leaves the thread usable: the next call runs normally.
	result, values = thread.RunExport(m, "div", wasm.I32Value(6), wasm.I32Value(3))
	require.Equal(t, ResultOk, result)
	require.Equal(t, uint32(2), values[0].I32())
}

func TestTruncationTraps(t *testing.T) {
	env := NewEnvironment()
	m := loadModule(t, env, exportedFuncModule("trunc",
		fnType([]wasm.ValueType{f64T}, []wasm.ValueType{i32T}),
		fnBody(nil, 0x20, 0x00, 0xaa, 0x0b)))

	thread := NewThread(env, nil)
	for _, c := range []struct {
		name     string
		arg      float64
		expected Result
		value    uint32
	}{
		{name: "in range", arg: -42.9, expected: ResultOk, value: uint32(0xffffffd6)}, // -42
		{name: "max", arg: 2147483647, expected: ResultOk, value: 0x7fffffff},
		{name: "nan", arg: math.NaN(), expected: TrapInvalidConversionToInteger},
		{name: "+inf", arg: math.Inf(1), expected: TrapIntegerOverflow},
		{name: "too large", arg: 2147483648, expected: TrapIntegerOverflow},
		{name: "too small", arg: -2147483649, expected: TrapIntegerOverflow},
	} {
		t.Run(c.name, func(t *testing.T) {
			result, values := thread.RunExport(m, "trunc", wasm.F64Value(c.arg))
			require.Equal(t, c.expected, result)
			if c.expected == ResultOk {
				require.Equal(t, c.value, values[0].I32())
			}
		})
	}
}

func TestMemoryAccess(t *testing.T) {
	env := NewEnvironment()
	bin := mod(
		typeSec(
			fnType([]wasm.ValueType{i32T, i32T}, []wasm.ValueType{i32T}),
			fnType([]wasm.ValueType{i32T}, []wasm.ValueType{i32T}),
			fnType(nil, []wasm.ValueType{i32T}),
		),
		funcSec(0, 1, 2),
		memSec(1),
		exportSec(
			expEntry("storeload", wasm.ExternalKindFunc, 0),
			expEntry("grow", wasm.ExternalKindFunc, 1),
			expEntry("size", wasm.ExternalKindFunc, 2),
		),
		codeSec(
			// storeload(addr, v): store v at addr, then load it back.
			fnBody(nil,
				0x20, 0x00, 0x20, 0x01, 0x36, 0x02, 0x00,
				0x20, 0x00, 0x28, 0x02, 0x00, 0x0b),
			fnBody(nil, 0x20, 0x00, 0x40, 0x00, 0x0b),
			fnBody(nil, 0x3f, 0x00, 0x0b),
		),
	)
	m := loadModule(t, env, bin)
	thread := NewThread(env, nil)

	result, values := thread.RunExport(m, "storeload", wasm.I32Value(8), wasm.I32Value(0xdeadbeef))
	require.Equal(t, ResultOk, result)
	require.Equal(t, uint32(0xdeadbeef), values[0].I32())

	// Unaligned access is permitted.
	result, values = thread.RunExport(m, "storeload", wasm.I32Value(13), wasm.I32Value(0x01020304))
	require.Equal(t, ResultOk, result)
	require.Equal(t, uint32(0x01020304), values[0].I32())

	// Little-endian byte order.
	mem := env.Memory(m.Defined.MemoryIndexes[0])
	require.Equal(t, byte(0x04), mem.Data[13])
	require.Equal(t, byte(0x01), mem.Data[16])

	// The last in-bounds word is at 65532; one past traps.
	result, _ = thread.RunExport(m, "storeload", wasm.I32Value(65532), wasm.I32Value(1))
	require.Equal(t, ResultOk, result)
	result, _ = thread.RunExport(m, "storeload", wasm.I32Value(65533), wasm.I32Value(1))
	require.Equal(t, TrapMemoryAccessOutOfBounds, result)
	result, _ = thread.RunExport(m, "storeload", wasm.I32Value(0xffffffff), wasm.I32Value(1))
	require.Equal(t, TrapMemoryAccessOutOfBounds, result)

	// grow returns the old page count, then -1 past the cap.
	result, values = thread.RunExport(m, "grow", wasm.I32Value(1))
	require.Equal(t, ResultOk, result)
	require.Equal(t, uint32(1), values[0].I32())
	result, values = thread.RunExport(m, "size")
	require.Equal(t, ResultOk, result)
	require.Equal(t, uint32(2), values[0].I32())
	result, values = thread.RunExport(m, "grow", wasm.I32Value(wasm.MaxPages))
	require.Equal(t, ResultOk, result)
	require.Equal(t, uint32(0xffffffff), values[0].I32())
}

func TestCallIndirect(t *testing.T) {
	env := NewEnvironment()
	bin := mod(
		typeSec(
			fnType(nil, []wasm.ValueType{i32T}),         // t0
			fnType([]wasm.ValueType{i32T}, []wasm.ValueType{i32T}), // t1
		),
		funcSec(0, 1, 1),
		tableSec(4),
		exportSec(expEntry("dispatch", wasm.ExternalKindFunc, 2)),
		elemSec(0, 0, 1),
		codeSec(
			fnBody(nil, 0x41, 0x2a, 0x0b),             // () -> 42
			fnBody(nil, 0x20, 0x00, 0x0b),             // identity, different sig
			fnBody(nil, 0x20, 0x00, 0x11, 0x00, 0x00, 0x0b), // call_indirect t0
		),
	)
	m := loadModule(t, env, bin)
	thread := NewThread(env, nil)

	result, values := thread.RunExport(m, "dispatch", wasm.I32Value(0))
	require.Equal(t, ResultOk, result)
	require.Equal(t, uint32(42), values[0].I32())

	result, _ = thread.RunExport(m, "dispatch", wasm.I32Value(1))
	require.Equal(t, TrapIndirectCallSignatureMismatch, result)

	result, _ = thread.RunExport(m, "dispatch", wasm.I32Value(2))
	require.Equal(t, TrapUninitializedElement, result)

	result, _ = thread.RunExport(m, "dispatch", wasm.I32Value(10))
	require.Equal(t, TrapUndefinedTableIndex, result)
}

func TestLoopSum(t *testing.T) {
	env := NewEnvironment()
	m := loadModule(t, env, exportedFuncModule("sum",
		fnType([]wasm.ValueType{i32T}, []wasm.ValueType{i32T}),
		fnBody([]wasm.ValueType{i32T},
			0x02, 0x40, // block
			0x03, 0x40, // loop
			0x20, 0x00, 0x45, 0x0d, 0x01, // local.get 0; eqz; br_if 1
			0x20, 0x01, 0x20, 0x00, 0x6a, 0x21, 0x01, // sum += n
			0x20, 0x00, 0x41, 0x01, 0x6b, 0x21, 0x00, // n -= 1
			0x0c, 0x00, // br 0
			0x0b,
			0x0b,
			0x20, 0x01, // sum
			0x0b)))

	result, values := runExport(t, env, m, "sum", wasm.I32Value(5))
	require.Equal(t, ResultOk, result)
	require.Equal(t, uint32(15), values[0].I32())

	result, values = runExport(t, env, m, "sum", wasm.I32Value(0))
	require.Equal(t, ResultOk, result)
	require.Equal(t, uint32(0), values[0].I32())
}

func TestIfElse(t *testing.T) {
	env := NewEnvironment()
	m := loadModule(t, env, exportedFuncModule("pick",
		fnType([]wasm.ValueType{i32T}, []wasm.ValueType{i32T}),
		fnBody(nil,
			0x20, 0x00,
			0x04, 0x7f, // if (result i32)
			0x41, 0x01,
			0x05, // else
			0x41, 0x02,
			0x0b,
			0x0b)))

	result, values := runExport(t, env, m, "pick", wasm.I32Value(7))
	require.Equal(t, ResultOk, result)
	require.Equal(t, uint32(1), values[0].I32())

	result, values = runExport(t, env, m, "pick", wasm.I32Value(0))
	require.Equal(t, ResultOk, result)
	require.Equal(t, uint32(2), values[0].I32())
}

func TestBrTable(t *testing.T) {
	env := NewEnvironment()
	m := loadModule(t, env, exportedFuncModule("switch",
		fnType([]wasm.ValueType{i32T}, []wasm.ValueType{i32T}),
		fnBody(nil,
			0x02, 0x40, // block A
			0x02, 0x40, // block B
			0x02, 0x40, // block C
			0x20, 0x00,
			0x0e, 0x02, 0x00, 0x01, 0x02, // br_table 0 1 default 2
			0x0b,
			0x41, 0x0a, 0x0f, // 10; return
			0x0b,
			0x41, 0x14, 0x0f, // 20; return
			0x0b,
			0x41, 0x1e, // 30
			0x0b)))

	for _, c := range []struct{ arg, exp uint32 }{
		{0, 10}, {1, 20}, {2, 30}, {100, 30},
	} {
		result, values := runExport(t, env, m, "switch", wasm.I32Value(c.arg))
		require.Equal(t, ResultOk, result)
		require.Equal(t, c.exp, values[0].I32(), "arg %d", c.arg)
	}
}

func TestBlockResultBranch(t *testing.T) {
	// A branch out of a block with a result keeps the top value and
	// drops the rest.
	env := NewEnvironment()
	m := loadModule(t, env, exportedFuncModule("f",
		fnType(nil, []wasm.ValueType{i32T}),
		fnBody(nil,
			0x02, 0x7f, // block (result i32)
			0x41, 0x07, // 7 (dropped)
			0x41, 0x09, // 9 (kept)
			0x0c, 0x00, // br 0
			0x0b,
			0x0b)))

	result, values := runExport(t, env, m, "f")
	require.Equal(t, ResultOk, result)
	require.Equal(t, uint32(9), values[0].I32())
}

func TestConditionalReturn(t *testing.T) {
	env := NewEnvironment()
	m := loadModule(t, env, exportedFuncModule("f",
		fnType([]wasm.ValueType{i32T}, []wasm.ValueType{i32T}),
		fnBody(nil,
			0x41, 0x0a, // 10
			0x20, 0x00,
			0x0d, 0x00, // br_if 0: conditional return
			0x1a,       // drop
			0x41, 0x14, // 20
			0x0b)))

	result, values := runExport(t, env, m, "f", wasm.I32Value(1))
	require.Equal(t, ResultOk, result)
	require.Equal(t, uint32(10), values[0].I32())

	result, values = runExport(t, env, m, "f", wasm.I32Value(0))
	require.Equal(t, ResultOk, result)
	require.Equal(t, uint32(20), values[0].I32())
}

func TestGlobals(t *testing.T) {
	env := NewEnvironment()
	bin := mod(
		typeSec(fnType(nil, []wasm.ValueType{i32T}), fnType([]wasm.ValueType{i32T}, nil)),
		funcSec(0, 1),
		globalSec(globalEntry(i32T, 1, 10)),
		exportSec(
			expEntry("get", wasm.ExternalKindFunc, 0),
			expEntry("set", wasm.ExternalKindFunc, 1),
		),
		codeSec(
			fnBody(nil, 0x23, 0x00, 0x0b),
			fnBody(nil, 0x20, 0x00, 0x24, 0x00, 0x0b),
		),
	)
	m := loadModule(t, env, bin)
	thread := NewThread(env, nil)

	result, values := thread.RunExport(m, "get")
	require.Equal(t, ResultOk, result)
	require.Equal(t, uint32(10), values[0].I32())

	result, _ = thread.RunExport(m, "set", wasm.I32Value(77))
	require.Equal(t, ResultOk, result)
	result, values = thread.RunExport(m, "get")
	require.Equal(t, ResultOk, result)
	require.Equal(t, uint32(77), values[0].I32())
}

func TestSelectAndDrop(t *testing.T) {
	env := NewEnvironment()
	m := loadModule(t, env, exportedFuncModule("sel",
		fnType([]wasm.ValueType{i32T}, []wasm.ValueType{i64T}),
		fnBody(nil,
			0x42, 0x0a, // i64 10
			0x42, 0x14, // i64 20
			0x20, 0x00,
			0x1b, // select
			0x0b)))

	result, values := runExport(t, env, m, "sel", wasm.I32Value(1))
	require.Equal(t, ResultOk, result)
	require.Equal(t, uint64(10), values[0].I64())

	result, values = runExport(t, env, m, "sel", wasm.I32Value(0))
	require.Equal(t, ResultOk, result)
	require.Equal(t, uint64(20), values[0].I64())
}

func TestCanonicalNaN(t *testing.T) {
	env := NewEnvironment()
	m := loadModule(t, env, exportedFuncModule("nan",
		fnType(nil, []wasm.ValueType{f32T}),
		fnBody(nil,
			0x43, 0x00, 0x00, 0xc0, 0x7f, // f32.const nan
			0x43, 0x00, 0x00, 0x80, 0x3f, // f32.const 1
			0x95, // f32.div
			0x0b)))

	result, values := runExport(t, env, m, "nan")
	require.Equal(t, ResultOk, result)
	require.True(t, values[0].IsCanonicalNaN())
	require.True(t, values[0].IsArithmeticNaN())
}

func TestCallStackExhausted(t *testing.T) {
	env := NewEnvironment()
	m := loadModule(t, env, exportedFuncModule("runforever",
		fnType(nil, nil),
		fnBody(nil, 0x10, 0x00, 0x0b)))

	thread := NewThread(env, nil)
	result, _ := thread.RunExport(m, "runforever")
	require.Equal(t, TrapCallStackExhausted, result)

	// Exhaustion unwinds cleanly; the thread still works.
	result, _ = thread.RunExport(m, "runforever")
	require.Equal(t, TrapCallStackExhausted, result)
}

func TestValueStackExhausted(t *testing.T) {
	env := NewEnvironment()
	var code []byte
	for i := 0; i < 8; i++ {
		code = append(code, 0x41, 0x01)
	}
	for i := 0; i < 8; i++ {
		code = append(code, 0x1a)
	}
	code = append(code, 0x0b)
	m := loadModule(t, env, exportedFuncModule("pushy", fnType(nil, nil), fnBody(nil, code...)))

	opts := DefaultOptions()
	opts.ValueStackSize = 4
	thread := NewThread(env, opts)
	result, _ := thread.RunExport(m, "pushy")
	require.Equal(t, TrapValueStackExhausted, result)

	// Plenty of room: the same module runs fine.
	result, _ = NewThread(env, nil).RunExport(m, "pushy")
	require.Equal(t, ResultOk, result)
}

func TestRecursiveFib(t *testing.T) {
	// fib(n) = n < 2 ? n : fib(n-1) + fib(n-2)
	env := NewEnvironment()
	m := loadModule(t, env, exportedFuncModule("fib",
		fnType([]wasm.ValueType{i32T}, []wasm.ValueType{i32T}),
		fnBody(nil,
			0x20, 0x00, 0x41, 0x02, 0x48, // n < 2 (signed)
			0x04, 0x7f, // if (result i32)
			0x20, 0x00,
			0x05, // else
			0x20, 0x00, 0x41, 0x01, 0x6b, 0x10, 0x00, // fib(n-1)
			0x20, 0x00, 0x41, 0x02, 0x6b, 0x10, 0x00, // fib(n-2)
			0x6a,
			0x0b,
			0x0b)))

	result, values := runExport(t, env, m, "fib", wasm.I32Value(10))
	require.Equal(t, ResultOk, result)
	require.Equal(t, uint32(55), values[0].I32())
}

func TestI64Arithmetic(t *testing.T) {
	env := NewEnvironment()
	m := loadModule(t, env, exportedFuncModule("mix",
		fnType([]wasm.ValueType{i64T, i64T}, []wasm.ValueType{i64T}),
		// (a * b) rotl 1
		fnBody(nil, 0x20, 0x00, 0x20, 0x01, 0x7e, 0x42, 0x01, 0x89, 0x0b)))

	result, values := runExport(t, env, m, "mix", wasm.I64Value(6), wasm.I64Value(7))
	require.Equal(t, ResultOk, result)
	require.Equal(t, uint64(84), values[0].I64())
}

func TestFloatConversions(t *testing.T) {
	env := NewEnvironment()
	bin := mod(
		typeSec(
			fnType([]wasm.ValueType{i64T}, []wasm.ValueType{f64T}),
			fnType([]wasm.ValueType{f32T}, []wasm.ValueType{i32T}),
		),
		funcSec(0, 1),
		exportSec(
			expEntry("u64tof64", wasm.ExternalKindFunc, 0),
			expEntry("reinterpret", wasm.ExternalKindFunc, 1),
		),
		codeSec(
			fnBody(nil, 0x20, 0x00, 0xba, 0x0b), // f64.convert_i64_u
			fnBody(nil, 0x20, 0x00, 0xbc, 0x0b), // i32.reinterpret_f32
		),
	)
	m := loadModule(t, env, bin)
	thread := NewThread(env, nil)

	result, values := thread.RunExport(m, "u64tof64", wasm.I64Value(1<<63))
	require.Equal(t, ResultOk, result)
	require.Equal(t, 9.223372036854776e18, values[0].F64())

	result, values = thread.RunExport(m, "reinterpret", wasm.F32Value(1.0))
	require.Equal(t, ResultOk, result)
	require.Equal(t, uint32(0x3f800000), values[0].I32())
	require.Equal(t, i32T, values[0].Type)
}

func TestStackHygieneAfterTrap(t *testing.T) {
	env := NewEnvironment()
	m := loadModule(t, env, exportedFuncModule("boom",
		fnType(nil, []wasm.ValueType{i32T}),
		fnBody(nil, 0x41, 0x01, 0x41, 0x02, 0x6a, 0x00, 0x0b)))

	thread := NewThread(env, nil)
	result, _ := thread.RunExport(m, "boom")
	require.Equal(t, TrapUnreachable, result)
	require.Equal(t, 0, thread.sp)
	require.Equal(t, 0, thread.fp)
}
