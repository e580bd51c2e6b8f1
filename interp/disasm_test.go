package interp

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmkit/wain/wasm"
)

func addModule(t *testing.T, env *Environment) *Module {
	t.Helper()
	return loadModule(t, env, exportedFuncModule("add",
		fnType([]wasm.ValueType{i32T, i32T}, []wasm.ValueType{i32T}),
		fnBody(nil, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b)))
}

func TestDisassembleModule(t *testing.T) {
	env := NewEnvironment()
	m := addModule(t, env)

	var out bytes.Buffer
	DisassembleModule(&out, env, m)
	s := out.String()
	require.Contains(t, s, "func[0] (i32, i32) -> (i32)")
	require.Contains(t, s, "local.get 0")
	require.Contains(t, s, "i32.add")
	// The compiled body ends with the implicit return.
	require.Contains(t, s, "return keep=1")
}

func TestDisassembleHostImport(t *testing.T) {
	env := NewEnvironment()
	host := env.AppendHostModule("host")
	host.AppendFuncExport("f", wasm.FunctionSig{}, func(args, results []wasm.Value) Result {
		return ResultOk
	})
	bin := mod(
		typeSec(fnType(nil, nil)),
		importSec(importEntry("host", "f", wasm.ExternalKindFunc, u32(0)...)),
	)
	m := loadModule(t, env, bin)

	var out bytes.Buffer
	DisassembleModule(&out, env, m)
	require.Contains(t, out.String(), "<- host.f")
}

func TestTraceFunction(t *testing.T) {
	env := NewEnvironment()
	m := addModule(t, env)
	exp, ok := m.GetExport("add")
	require.True(t, ok)

	var out bytes.Buffer
	thread := NewThread(env, nil)
	result, values := thread.TraceFunction(&out, exp.Index, wasm.I32Value(2), wasm.I32Value(3))
	require.Equal(t, ResultOk, result)
	require.Equal(t, uint32(5), values[0].I32())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4) // two gets, the add, the implicit return
	require.Contains(t, lines[2], "i32.add")
	require.Contains(t, lines[2], "i32:3")

	// Tracing is scoped to the one call.
	out.Reset()
	_, _ = thread.RunFunction(exp.Index, wasm.I32Value(1), wasm.I32Value(1))
	require.Zero(t, out.Len())
}

func TestRunAllExports(t *testing.T) {
	env := NewEnvironment()
	bin := mod(
		typeSec(fnType(nil, []wasm.ValueType{i32T}), fnType(nil, nil)),
		funcSec(0, 1),
		memSec(1),
		exportSec(
			expEntry("answer", wasm.ExternalKindFunc, 0),
			expEntry("boom", wasm.ExternalKindFunc, 1),
			expEntry("mem", wasm.ExternalKindMemory, 0),
		),
		codeSec(
			fnBody(nil, 0x41, 0x2a, 0x0b),
			fnBody(nil, 0x00, 0x0b),
		),
	)
	m := loadModule(t, env, bin)

	var out bytes.Buffer
	RunAllExports(env, m, DefaultOptions(), &out)
	require.Equal(t, "answer() => i32:42\nboom() => error: unreachable executed\n", out.String())
}

func TestOptionsDefaults(t *testing.T) {
	opts := DefaultOptions()
	require.Equal(t, 16384, opts.ValueStackSize)
	require.Equal(t, 1024, opts.CallStackSize)
	require.False(t, opts.Trace)
	require.False(t, opts.RunAllExports)
	require.False(t, opts.SpecMode)
}
