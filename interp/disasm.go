package interp

import (
	"fmt"
	"io"

	"github.com/wasmkit/wain/wasm"
)

// DisassembleModule walks every function index of the module, imports
// included. A function with compiled code is written one instruction
// per line with its immediates; a host function is written as a single
// line naming its import.
func DisassembleModule(w io.Writer, env *Environment, m *Module) {
	if m.Defined == nil {
		fmt.Fprintf(w, "host module %q\n", m.Name)
		return
	}
	for local, envIndex := range m.Defined.FuncIndexes {
		f := env.Func(envIndex)
		if f.Defined == nil {
			fmt.Fprintf(w, "func[%d] %s <- %s.%s\n",
				local, f.Sig.String(), f.Host.ModuleName, f.Host.FieldName)
			continue
		}
		fmt.Fprintf(w, "func[%d] %s\n", local, f.Sig.String())
		for pc := range f.Defined.Code {
			disassembleInstr(w, &f.Defined.Code[pc], pc)
		}
	}
}

func disassembleInstr(w io.Writer, in *instr, pc int) {
	name := instrName(in.op)
	switch in.op {
	case wasm.OpcodeBr, opBrUnless:
		fmt.Fprintf(w, "  %04d: %s @%d\n", pc, name, in.arg0)
	case wasm.OpcodeBrIf:
		fmt.Fprintf(w, "  %04d: %s @%d drop=%d keep=%d\n", pc, name, in.arg0, in.arg1, in.arg2)
	case wasm.OpcodeBrTable:
		fmt.Fprintf(w, "  %04d: %s", pc, name)
		for _, tgt := range in.targets {
			fmt.Fprintf(w, " @%d", tgt.pc)
		}
		fmt.Fprintln(w)
	case wasm.OpcodeReturn:
		fmt.Fprintf(w, "  %04d: %s keep=%d\n", pc, name, in.arg0)
	case wasm.OpcodeCall, wasm.OpcodeLocalGet, wasm.OpcodeLocalSet, wasm.OpcodeLocalTee,
		wasm.OpcodeGlobalGet, wasm.OpcodeGlobalSet:
		fmt.Fprintf(w, "  %04d: %s %d\n", pc, name, in.arg0)
	case wasm.OpcodeCallIndirect:
		fmt.Fprintf(w, "  %04d: %s sig=%d table=%d\n", pc, name, in.arg0, in.arg1)
	case wasm.OpcodeI32Const:
		fmt.Fprintf(w, "  %04d: %s %d\n", pc, name, int32(uint32(in.arg0)))
	case wasm.OpcodeI64Const:
		fmt.Fprintf(w, "  %04d: %s %d\n", pc, name, int64(in.arg0))
	case wasm.OpcodeF32Const:
		fmt.Fprintf(w, "  %04d: %s %g\n", pc, name, wasm.F32BitsValue(uint32(in.arg0)).F32())
	case wasm.OpcodeF64Const:
		fmt.Fprintf(w, "  %04d: %s %g\n", pc, name, wasm.F64BitsValue(in.arg0).F64())
	default:
		if _, ok := loadStoreDescs[in.op]; ok {
			fmt.Fprintf(w, "  %04d: %s offset=%d\n", pc, name, in.arg0)
		} else {
			fmt.Fprintf(w, "  %04d: %s\n", pc, name)
		}
	}
}
