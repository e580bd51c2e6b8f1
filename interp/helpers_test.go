package interp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmkit/wain/binary"
	"github.com/wasmkit/wain/internal/leb128"
	"github.com/wasmkit/wain/wasm"
)

// Test modules are composed from raw sections the same way the binary
// encoder lays them out.

func concatBytes(bs ...[]byte) (out []byte) {
	for _, b := range bs {
		out = append(out, b...)
	}
	return
}

func u32(v uint32) []byte { return leb128.EncodeUint32(v) }
func s32(v int32) []byte  { return leb128.EncodeInt32(v) }

func sec(id byte, content ...[]byte) []byte {
	body := concatBytes(content...)
	return concatBytes([]byte{id}, u32(uint32(len(body))), body)
}

func mod(secs ...[]byte) []byte {
	return concatBytes(binary.Magic, binary.Version, concatBytes(secs...))
}

func fieldName(s string) []byte {
	return concatBytes(u32(uint32(len(s))), []byte(s))
}

func fnType(params, results []wasm.ValueType) []byte {
	out := []byte{0x60}
	out = append(out, u32(uint32(len(params)))...)
	out = append(out, params...)
	out = append(out, u32(uint32(len(results)))...)
	out = append(out, results...)
	return out
}

func typeSec(sigs ...[]byte) []byte {
	return sec(binary.SectionIDType, append([][]byte{u32(uint32(len(sigs)))}, sigs...)...)
}

func funcSec(sigIndexes ...uint32) []byte {
	parts := [][]byte{u32(uint32(len(sigIndexes)))}
	for _, i := range sigIndexes {
		parts = append(parts, u32(i))
	}
	return sec(binary.SectionIDFunction, parts...)
}

func tableSec(min uint32) []byte {
	return sec(binary.SectionIDTable, u32(1), []byte{0x70, 0x00}, u32(min))
}

func memSec(minPages uint32) []byte {
	return sec(binary.SectionIDMemory, u32(1), []byte{0x00}, u32(minPages))
}

// globalEntry is (type, mutability, i32.const init).
func globalEntry(t wasm.ValueType, mutable byte, init int32) []byte {
	return concatBytes([]byte{t, mutable}, initI32(init))
}

func globalSec(entries ...[]byte) []byte {
	return sec(binary.SectionIDGlobal, append([][]byte{u32(uint32(len(entries)))}, entries...)...)
}

func expEntry(name string, kind wasm.ExternalKind, index uint32) []byte {
	return concatBytes(fieldName(name), []byte{byte(kind)}, u32(index))
}

func exportSec(entries ...[]byte) []byte {
	return sec(binary.SectionIDExport, append([][]byte{u32(uint32(len(entries)))}, entries...)...)
}

func startSec(funcIndex uint32) []byte {
	return sec(binary.SectionIDStart, u32(funcIndex))
}

func initI32(v int32) []byte {
	return concatBytes([]byte{0x41}, s32(v), []byte{0x0b})
}

func elemSec(offset int32, funcIndexes ...uint32) []byte {
	parts := [][]byte{u32(1), u32(0), initI32(offset), u32(uint32(len(funcIndexes)))}
	for _, f := range funcIndexes {
		parts = append(parts, u32(f))
	}
	return sec(binary.SectionIDElement, parts...)
}

func dataSec(offset int32, data []byte) []byte {
	return sec(binary.SectionIDData, u32(1), u32(0), initI32(offset), u32(uint32(len(data))), data)
}

// fnBody declares each local separately and appends the caller's
// instruction bytes, which must include the final end.
func fnBody(locals []wasm.ValueType, code ...byte) []byte {
	b := u32(uint32(len(locals)))
	for _, l := range locals {
		b = append(b, 0x01, l)
	}
	b = append(b, code...)
	return concatBytes(u32(uint32(len(b))), b)
}

func codeSec(bodies ...[]byte) []byte {
	return sec(binary.SectionIDCode, append([][]byte{u32(uint32(len(bodies)))}, bodies...)...)
}

func importEntry(module, field string, kind wasm.ExternalKind, desc ...byte) []byte {
	return concatBytes(fieldName(module), fieldName(field), []byte{byte(kind)}, desc)
}

func importSec(entries ...[]byte) []byte {
	return sec(binary.SectionIDImport, append([][]byte{u32(uint32(len(entries)))}, entries...)...)
}

// exportedFuncModule is a module with one exported function and no
// imports.
func exportedFuncModule(name string, sig []byte, body []byte, extra ...[]byte) []byte {
	secs := [][]byte{
		typeSec(sig),
		funcSec(0),
	}
	secs = append(secs, extra...)
	secs = append(secs, exportSec(expEntry(name, wasm.ExternalKindFunc, 0)), codeSec(body))
	return mod(secs...)
}

func loadModule(t *testing.T, env *Environment, data []byte) *Module {
	t.Helper()
	m, err := ReadBinary(env, data, DefaultOptions())
	require.NoError(t, err)
	return m
}
