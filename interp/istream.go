package interp

import (
	"github.com/wasmkit/wain/wasm"
)

// The compiled instruction stream reuses the binary-format opcode as
// the dispatch key, plus a few internal opcodes the compiler emits in
// bytes the MVP leaves unused. Branches are compiled to direct
// instruction indices with drop/keep counts, so the dispatch loop
// never scans for block boundaries.
const (
	// opBrUnless jumps when the popped condition is zero. It is the
	// compiled form of the if opcode.
	opBrUnless wasm.Opcode = 0xf8
)

// instr is a fixed-shape compiled instruction. The args are opaque and
// only meaningful for the opcode at hand:
//
//	br:                arg0=target pc, arg1=drop, arg2=keep
//	br_unless:         arg0=target pc
//	br_if:             arg0=target pc, arg1=drop, arg2=keep
//	br_table:          targets, last entry is the default
//	return:            arg0=keep
//	call:              arg0=absolute function index
//	call_indirect:     arg0=module-local signature index, arg1=absolute table index
//	local.*:           arg0=frame slot
//	global.*:          arg0=absolute global index
//	memory load/store: arg0=offset immediate, arg1=absolute memory index
//	memory.size/grow:  arg0=absolute memory index
//	*.const:           arg0=value bits
type instr struct {
	op               wasm.Opcode
	arg0, arg1, arg2 uint64
	targets          []branchTarget
}

// branchTarget is one arm of a br_table.
type branchTarget struct {
	pc   uint32
	drop uint32
	keep uint32
}

func instrName(op wasm.Opcode) string {
	if op == opBrUnless {
		return "br_unless"
	}
	return wasm.OpcodeName(op)
}
