package interp

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"math/bits"
	"strings"

	"github.com/wasmkit/wain/internal/moremath"
	"github.com/wasmkit/wain/wasm"
)

// Thread is a private execution context: a preallocated value stack
// and call stack plus the dispatch loop. It cannot be resumed
// concurrently from two OS threads.
type Thread struct {
	env *Environment

	stack []wasm.Value
	sp    int

	frames []frame
	fp     int

	hostArgs    []wasm.Value
	hostResults []wasm.Value

	trace io.Writer
}

// frame records the caller's position: its function, the pc to resume
// at, and the value-stack index of its first argument slot.
type frame struct {
	f        *Func
	returnPC int
	base     int
}

// NewThread builds a thread with the stack capacities in opts.
func NewThread(env *Environment, opts *Options) *Thread {
	o := opts
	if o == nil {
		o = DefaultOptions()
	}
	t := &Thread{
		env:    env,
		stack:  make([]wasm.Value, o.ValueStackSize),
		frames: make([]frame, o.CallStackSize),
	}
	if o.Trace {
		t.trace = o.TraceStream
	}
	return t
}

func (t *Thread) push(v wasm.Value) bool {
	if t.sp == len(t.stack) {
		return false
	}
	t.stack[t.sp] = v
	t.sp++
	return true
}

func (t *Thread) pop() wasm.Value {
	t.sp--
	return t.stack[t.sp]
}

// dropKeep slides the top keep values down over drop discarded slots.
func (t *Thread) dropKeep(drop, keep uint32) {
	if drop == 0 {
		return
	}
	copy(t.stack[t.sp-int(drop)-int(keep):], t.stack[t.sp-int(keep):t.sp])
	t.sp -= int(drop)
}

// RunFunction executes the function at the absolute index with the
// given arguments. It returns the outcome and, on success, the result
// values. Both stacks are logically empty afterwards regardless of how
// deep execution went.
func (t *Thread) RunFunction(funcIndex uint32, args ...wasm.Value) (Result, []wasm.Value) {
	f := t.env.Func(funcIndex)
	if len(args) != len(f.Sig.Params) {
		return TrapInvalidArgument, nil
	}
	for i, a := range args {
		if a.Type != f.Sig.Params[i] {
			return TrapInvalidArgument, nil
		}
	}
	defer func() {
		t.sp = 0
		t.fp = 0
	}()

	if f.Host != nil {
		results := make([]wasm.Value, len(f.Sig.Results))
		if res := f.Host.Callback(args, results); res != ResultOk {
			return TrapHostTrapped, nil
		}
		for i := range results {
			results[i].Type = f.Sig.Results[i]
		}
		return ResultOk, results
	}

	t.sp = 0
	t.fp = 0
	for _, a := range args {
		if !t.push(a) {
			return TrapValueStackExhausted, nil
		}
	}
	res := t.dispatch(f)
	if res.IsTrap() {
		return res, nil
	}
	n := len(f.Sig.Results)
	results := make([]wasm.Value, n)
	copy(results, t.stack[:n])
	return ResultOk, results
}

// TraceFunction is RunFunction with a per-instruction trace written to
// w for the duration of the call.
func (t *Thread) TraceFunction(w io.Writer, funcIndex uint32, args ...wasm.Value) (Result, []wasm.Value) {
	saved := t.trace
	t.trace = w
	defer func() { t.trace = saved }()
	return t.RunFunction(funcIndex, args...)
}

// RunExport resolves an exported function by name and runs it.
func (t *Thread) RunExport(m *Module, name string, args ...wasm.Value) (Result, []wasm.Value) {
	exp, ok := m.GetExport(name)
	if !ok {
		return TrapUnknownExport, nil
	}
	if exp.Kind != wasm.ExternalKindFunc {
		return TrapExportKindMismatch, nil
	}
	return t.RunFunction(exp.Index, args...)
}

func (t *Thread) traceInstr(pc int, in *instr, base int) {
	var operands []string
	for i := t.sp - 1; i >= base && i >= t.sp-2; i-- {
		operands = append(operands, t.stack[i].String())
	}
	fmt.Fprintf(t.trace, "#%d %06d: %s [%s]\n", t.fp, pc, instrName(in.op), strings.Join(operands, ", "))
}

// dispatch runs f until the outermost frame returns or a trap fires.
// Arguments are already on the stack; the loop routes each handler's
// status: continue, branch, or trap.
func (t *Thread) dispatch(f *Func) Result {
	cur := f
	def := cur.Defined
	mod := t.env.Module(def.ModuleIndex).Defined
	base := t.sp - len(cur.Sig.Params)
	pc := 0

	for _, lt := range def.Locals {
		if !t.push(wasm.Value{Type: lt}) {
			return TrapValueStackExhausted
		}
	}

	for {
		in := &def.Code[pc]
		if t.trace != nil {
			t.traceInstr(pc, in, base)
		}
		switch in.op {
		case wasm.OpcodeUnreachable:
			return TrapUnreachable

		case wasm.OpcodeBr:
			t.dropKeep(uint32(in.arg1), uint32(in.arg2))
			pc = int(in.arg0)
			continue
		case wasm.OpcodeBrIf:
			if t.pop().I32() != 0 {
				t.dropKeep(uint32(in.arg1), uint32(in.arg2))
				pc = int(in.arg0)
				continue
			}
		case opBrUnless:
			if t.pop().I32() == 0 {
				pc = int(in.arg0)
				continue
			}
		case wasm.OpcodeBrTable:
			i := t.pop().I32()
			arm := len(in.targets) - 1 // default
			if int(i) < arm {
				arm = int(i)
			}
			tgt := in.targets[arm]
			t.dropKeep(tgt.drop, tgt.keep)
			pc = int(tgt.pc)
			continue

		case wasm.OpcodeReturn:
			keep := int(in.arg0)
			copy(t.stack[base:base+keep], t.stack[t.sp-keep:t.sp])
			t.sp = base + keep
			if t.fp == 0 {
				return ResultReturned
			}
			t.fp--
			fr := &t.frames[t.fp]
			cur = fr.f
			def = cur.Defined
			mod = t.env.Module(def.ModuleIndex).Defined
			base = fr.base
			pc = fr.returnPC
			continue

		case wasm.OpcodeCall:
			callee := t.env.Func(uint32(in.arg0))
			if callee.Host != nil {
				if res := t.callHost(callee); res != ResultOk {
					return res
				}
			} else {
				if t.fp == len(t.frames) {
					return TrapCallStackExhausted
				}
				t.frames[t.fp] = frame{f: cur, returnPC: pc + 1, base: base}
				t.fp++
				cur = callee
				def = cur.Defined
				mod = t.env.Module(def.ModuleIndex).Defined
				base = t.sp - len(cur.Sig.Params)
				for _, lt := range def.Locals {
					if !t.push(wasm.Value{Type: lt}) {
						return TrapValueStackExhausted
					}
				}
				pc = 0
				continue
			}

		case wasm.OpcodeCallIndirect:
			expected := mod.Sigs[in.arg0]
			table := t.env.Table(uint32(in.arg1))
			i := t.pop().I32()
			if uint64(i) >= uint64(len(table.Entries)) {
				return TrapUndefinedTableIndex
			}
			entry := table.Entries[i]
			if entry == invalidIndex {
				return TrapUninitializedElement
			}
			callee := t.env.Func(entry)
			if !callee.Sig.Equals(expected) {
				return TrapIndirectCallSignatureMismatch
			}
			if callee.Host != nil {
				if res := t.callHost(callee); res != ResultOk {
					return res
				}
			} else {
				if t.fp == len(t.frames) {
					return TrapCallStackExhausted
				}
				t.frames[t.fp] = frame{f: cur, returnPC: pc + 1, base: base}
				t.fp++
				cur = callee
				def = cur.Defined
				mod = t.env.Module(def.ModuleIndex).Defined
				base = t.sp - len(cur.Sig.Params)
				for _, lt := range def.Locals {
					if !t.push(wasm.Value{Type: lt}) {
						return TrapValueStackExhausted
					}
				}
				pc = 0
				continue
			}

		case wasm.OpcodeDrop:
			t.sp--
		case wasm.OpcodeSelect:
			c := t.pop().I32()
			v2 := t.pop()
			v1 := t.pop()
			if c == 0 {
				v1 = v2
			}
			t.stack[t.sp] = v1
			t.sp++

		case wasm.OpcodeLocalGet:
			if !t.push(t.stack[base+int(in.arg0)]) {
				return TrapValueStackExhausted
			}
		case wasm.OpcodeLocalSet:
			t.stack[base+int(in.arg0)] = t.pop()
		case wasm.OpcodeLocalTee:
			t.stack[base+int(in.arg0)] = t.stack[t.sp-1]
		case wasm.OpcodeGlobalGet:
			if !t.push(t.env.Global(uint32(in.arg0)).Value) {
				return TrapValueStackExhausted
			}
		case wasm.OpcodeGlobalSet:
			t.env.Global(uint32(in.arg0)).Value = t.pop()

		case wasm.OpcodeI32Const, wasm.OpcodeI64Const, wasm.OpcodeF32Const, wasm.OpcodeF64Const:
			if !t.push(constValue(in)) {
				return TrapValueStackExhausted
			}

		case wasm.OpcodeMemorySize:
			if !t.push(wasm.I32Value(t.env.Memory(uint32(in.arg0)).Pages())) {
				return TrapValueStackExhausted
			}
		case wasm.OpcodeMemoryGrow:
			mem := t.env.Memory(uint32(in.arg0))
			n := t.pop().I32()
			t.push(wasm.I32Value(mem.Grow(n)))

		default:
			if res := t.runMemoryOrNumeric(in); res != ResultOk {
				return res
			}
		}
		pc++
	}
}

// callHost marshals the top parameter values into a buffer, invokes
// the callback, and pushes its results. Any failure the callback
// reports surfaces as TrapHostTrapped.
func (t *Thread) callHost(callee *Func) Result {
	np, nr := len(callee.Sig.Params), len(callee.Sig.Results)
	if cap(t.hostArgs) < np {
		t.hostArgs = make([]wasm.Value, np)
	}
	if cap(t.hostResults) < nr {
		t.hostResults = make([]wasm.Value, nr)
	}
	args := t.hostArgs[:np]
	results := t.hostResults[:nr]
	copy(args, t.stack[t.sp-np:t.sp])
	if res := callee.Host.Callback(args, results); res != ResultOk {
		return TrapHostTrapped
	}
	t.sp -= np
	for i, r := range results {
		r.Type = callee.Sig.Results[i]
		if !t.push(r) {
			return TrapValueStackExhausted
		}
	}
	return ResultOk
}

func constValue(in *instr) wasm.Value {
	switch in.op {
	case wasm.OpcodeI32Const:
		return wasm.I32Value(uint32(in.arg0))
	case wasm.OpcodeI64Const:
		return wasm.I64Value(in.arg0)
	case wasm.OpcodeF32Const:
		return wasm.F32BitsValue(uint32(in.arg0))
	default:
		return wasm.F64BitsValue(in.arg0)
	}
}

// runMemoryOrNumeric executes the load/store and numeric families.
// Every handler returns a status; the loop advances pc on Ok.
func (t *Thread) runMemoryOrNumeric(in *instr) Result {
	if desc, ok := loadStoreDescs[in.op]; ok {
		return t.runLoadStore(in, desc)
	}
	return t.runNumeric(in)
}

func (t *Thread) runLoadStore(in *instr, desc loadStoreDesc) Result {
	mem := t.env.Memory(uint32(in.arg1))
	var value wasm.Value
	if desc.store {
		value = t.pop()
	}
	// The effective address cannot overflow: both terms are 32-bit.
	ea := uint64(t.pop().I32()) + in.arg0
	if ea+uint64(desc.size) > uint64(len(mem.Data)) {
		return TrapMemoryAccessOutOfBounds
	}
	data := mem.Data[ea:]

	if desc.store {
		switch in.op {
		case wasm.OpcodeI32Store, wasm.OpcodeF32Store:
			binary.LittleEndian.PutUint32(data, uint32(value.Bits))
		case wasm.OpcodeI64Store, wasm.OpcodeF64Store:
			binary.LittleEndian.PutUint64(data, value.Bits)
		case wasm.OpcodeI32Store8, wasm.OpcodeI64Store8:
			data[0] = byte(value.Bits)
		case wasm.OpcodeI32Store16, wasm.OpcodeI64Store16:
			binary.LittleEndian.PutUint16(data, uint16(value.Bits))
		case wasm.OpcodeI64Store32:
			binary.LittleEndian.PutUint32(data, uint32(value.Bits))
		}
		return ResultOk
	}

	var v wasm.Value
	switch in.op {
	case wasm.OpcodeI32Load:
		v = wasm.I32Value(binary.LittleEndian.Uint32(data))
	case wasm.OpcodeI64Load:
		v = wasm.I64Value(binary.LittleEndian.Uint64(data))
	case wasm.OpcodeF32Load:
		v = wasm.F32BitsValue(binary.LittleEndian.Uint32(data))
	case wasm.OpcodeF64Load:
		v = wasm.F64BitsValue(binary.LittleEndian.Uint64(data))
	case wasm.OpcodeI32Load8S:
		v = wasm.I32Value(uint32(int8(data[0])))
	case wasm.OpcodeI32Load8U:
		v = wasm.I32Value(uint32(data[0]))
	case wasm.OpcodeI32Load16S:
		v = wasm.I32Value(uint32(int16(binary.LittleEndian.Uint16(data))))
	case wasm.OpcodeI32Load16U:
		v = wasm.I32Value(uint32(binary.LittleEndian.Uint16(data)))
	case wasm.OpcodeI64Load8S:
		v = wasm.I64Value(uint64(int8(data[0])))
	case wasm.OpcodeI64Load8U:
		v = wasm.I64Value(uint64(data[0]))
	case wasm.OpcodeI64Load16S:
		v = wasm.I64Value(uint64(int16(binary.LittleEndian.Uint16(data))))
	case wasm.OpcodeI64Load16U:
		v = wasm.I64Value(uint64(binary.LittleEndian.Uint16(data)))
	case wasm.OpcodeI64Load32S:
		v = wasm.I64Value(uint64(int32(binary.LittleEndian.Uint32(data))))
	case wasm.OpcodeI64Load32U:
		v = wasm.I64Value(uint64(binary.LittleEndian.Uint32(data)))
	}
	if !t.push(v) {
		return TrapValueStackExhausted
	}
	return ResultOk
}

func boolValue(b bool) wasm.Value {
	if b {
		return wasm.I32Value(1)
	}
	return wasm.I32Value(0)
}

func (t *Thread) runNumeric(in *instr) Result {
	switch in.op {
	// i32 tests and comparisons.
	case wasm.OpcodeI32Eqz:
		t.stack[t.sp-1] = boolValue(t.stack[t.sp-1].I32() == 0)
	case wasm.OpcodeI32Eq:
		v2, v1 := t.pop().I32(), t.pop().I32()
		t.push(boolValue(v1 == v2))
	case wasm.OpcodeI32Ne:
		v2, v1 := t.pop().I32(), t.pop().I32()
		t.push(boolValue(v1 != v2))
	case wasm.OpcodeI32LtS:
		v2, v1 := int32(t.pop().I32()), int32(t.pop().I32())
		t.push(boolValue(v1 < v2))
	case wasm.OpcodeI32LtU:
		v2, v1 := t.pop().I32(), t.pop().I32()
		t.push(boolValue(v1 < v2))
	case wasm.OpcodeI32GtS:
		v2, v1 := int32(t.pop().I32()), int32(t.pop().I32())
		t.push(boolValue(v1 > v2))
	case wasm.OpcodeI32GtU:
		v2, v1 := t.pop().I32(), t.pop().I32()
		t.push(boolValue(v1 > v2))
	case wasm.OpcodeI32LeS:
		v2, v1 := int32(t.pop().I32()), int32(t.pop().I32())
		t.push(boolValue(v1 <= v2))
	case wasm.OpcodeI32LeU:
		v2, v1 := t.pop().I32(), t.pop().I32()
		t.push(boolValue(v1 <= v2))
	case wasm.OpcodeI32GeS:
		v2, v1 := int32(t.pop().I32()), int32(t.pop().I32())
		t.push(boolValue(v1 >= v2))
	case wasm.OpcodeI32GeU:
		v2, v1 := t.pop().I32(), t.pop().I32()
		t.push(boolValue(v1 >= v2))

	// i64 tests and comparisons.
	case wasm.OpcodeI64Eqz:
		t.stack[t.sp-1] = boolValue(t.stack[t.sp-1].I64() == 0)
	case wasm.OpcodeI64Eq:
		v2, v1 := t.pop().I64(), t.pop().I64()
		t.push(boolValue(v1 == v2))
	case wasm.OpcodeI64Ne:
		v2, v1 := t.pop().I64(), t.pop().I64()
		t.push(boolValue(v1 != v2))
	case wasm.OpcodeI64LtS:
		v2, v1 := int64(t.pop().I64()), int64(t.pop().I64())
		t.push(boolValue(v1 < v2))
	case wasm.OpcodeI64LtU:
		v2, v1 := t.pop().I64(), t.pop().I64()
		t.push(boolValue(v1 < v2))
	case wasm.OpcodeI64GtS:
		v2, v1 := int64(t.pop().I64()), int64(t.pop().I64())
		t.push(boolValue(v1 > v2))
	case wasm.OpcodeI64GtU:
		v2, v1 := t.pop().I64(), t.pop().I64()
		t.push(boolValue(v1 > v2))
	case wasm.OpcodeI64LeS:
		v2, v1 := int64(t.pop().I64()), int64(t.pop().I64())
		t.push(boolValue(v1 <= v2))
	case wasm.OpcodeI64LeU:
		v2, v1 := t.pop().I64(), t.pop().I64()
		t.push(boolValue(v1 <= v2))
	case wasm.OpcodeI64GeS:
		v2, v1 := int64(t.pop().I64()), int64(t.pop().I64())
		t.push(boolValue(v1 >= v2))
	case wasm.OpcodeI64GeU:
		v2, v1 := t.pop().I64(), t.pop().I64()
		t.push(boolValue(v1 >= v2))

	// f32 comparisons.
	case wasm.OpcodeF32Eq:
		v2, v1 := t.pop().F32(), t.pop().F32()
		t.push(boolValue(v1 == v2))
	case wasm.OpcodeF32Ne:
		v2, v1 := t.pop().F32(), t.pop().F32()
		t.push(boolValue(v1 != v2))
	case wasm.OpcodeF32Lt:
		v2, v1 := t.pop().F32(), t.pop().F32()
		t.push(boolValue(v1 < v2))
	case wasm.OpcodeF32Gt:
		v2, v1 := t.pop().F32(), t.pop().F32()
		t.push(boolValue(v1 > v2))
	case wasm.OpcodeF32Le:
		v2, v1 := t.pop().F32(), t.pop().F32()
		t.push(boolValue(v1 <= v2))
	case wasm.OpcodeF32Ge:
		v2, v1 := t.pop().F32(), t.pop().F32()
		t.push(boolValue(v1 >= v2))

	// f64 comparisons.
	case wasm.OpcodeF64Eq:
		v2, v1 := t.pop().F64(), t.pop().F64()
		t.push(boolValue(v1 == v2))
	case wasm.OpcodeF64Ne:
		v2, v1 := t.pop().F64(), t.pop().F64()
		t.push(boolValue(v1 != v2))
	case wasm.OpcodeF64Lt:
		v2, v1 := t.pop().F64(), t.pop().F64()
		t.push(boolValue(v1 < v2))
	case wasm.OpcodeF64Gt:
		v2, v1 := t.pop().F64(), t.pop().F64()
		t.push(boolValue(v1 > v2))
	case wasm.OpcodeF64Le:
		v2, v1 := t.pop().F64(), t.pop().F64()
		t.push(boolValue(v1 <= v2))
	case wasm.OpcodeF64Ge:
		v2, v1 := t.pop().F64(), t.pop().F64()
		t.push(boolValue(v1 >= v2))

	// i32 arithmetic.
	case wasm.OpcodeI32Clz:
		t.stack[t.sp-1] = wasm.I32Value(uint32(bits.LeadingZeros32(t.stack[t.sp-1].I32())))
	case wasm.OpcodeI32Ctz:
		t.stack[t.sp-1] = wasm.I32Value(uint32(bits.TrailingZeros32(t.stack[t.sp-1].I32())))
	case wasm.OpcodeI32Popcnt:
		t.stack[t.sp-1] = wasm.I32Value(uint32(bits.OnesCount32(t.stack[t.sp-1].I32())))
	case wasm.OpcodeI32Add:
		v2, v1 := t.pop().I32(), t.pop().I32()
		t.push(wasm.I32Value(v1 + v2))
	case wasm.OpcodeI32Sub:
		v2, v1 := t.pop().I32(), t.pop().I32()
		t.push(wasm.I32Value(v1 - v2))
	case wasm.OpcodeI32Mul:
		v2, v1 := t.pop().I32(), t.pop().I32()
		t.push(wasm.I32Value(v1 * v2))
	case wasm.OpcodeI32DivS:
		v2, v1 := int32(t.pop().I32()), int32(t.pop().I32())
		if v2 == 0 {
			return TrapIntegerDivideByZero
		}
		if v1 == math.MinInt32 && v2 == -1 {
			return TrapIntegerOverflow
		}
		t.push(wasm.I32Value(uint32(v1 / v2)))
	case wasm.OpcodeI32DivU:
		v2, v1 := t.pop().I32(), t.pop().I32()
		if v2 == 0 {
			return TrapIntegerDivideByZero
		}
		t.push(wasm.I32Value(v1 / v2))
	case wasm.OpcodeI32RemS:
		v2, v1 := int32(t.pop().I32()), int32(t.pop().I32())
		if v2 == 0 {
			return TrapIntegerDivideByZero
		}
		if v1 == math.MinInt32 && v2 == -1 {
			t.push(wasm.I32Value(0))
		} else {
			t.push(wasm.I32Value(uint32(v1 % v2)))
		}
	case wasm.OpcodeI32RemU:
		v2, v1 := t.pop().I32(), t.pop().I32()
		if v2 == 0 {
			return TrapIntegerDivideByZero
		}
		t.push(wasm.I32Value(v1 % v2))
	case wasm.OpcodeI32And:
		v2, v1 := t.pop().I32(), t.pop().I32()
		t.push(wasm.I32Value(v1 & v2))
	case wasm.OpcodeI32Or:
		v2, v1 := t.pop().I32(), t.pop().I32()
		t.push(wasm.I32Value(v1 | v2))
	case wasm.OpcodeI32Xor:
		v2, v1 := t.pop().I32(), t.pop().I32()
		t.push(wasm.I32Value(v1 ^ v2))
	case wasm.OpcodeI32Shl:
		v2, v1 := t.pop().I32(), t.pop().I32()
		t.push(wasm.I32Value(v1 << (v2 & 31)))
	case wasm.OpcodeI32ShrS:
		v2, v1 := t.pop().I32(), int32(t.pop().I32())
		t.push(wasm.I32Value(uint32(v1 >> (v2 & 31))))
	case wasm.OpcodeI32ShrU:
		v2, v1 := t.pop().I32(), t.pop().I32()
		t.push(wasm.I32Value(v1 >> (v2 & 31)))
	case wasm.OpcodeI32Rotl:
		v2, v1 := t.pop().I32(), t.pop().I32()
		t.push(wasm.I32Value(bits.RotateLeft32(v1, int(v2&31))))
	case wasm.OpcodeI32Rotr:
		v2, v1 := t.pop().I32(), t.pop().I32()
		t.push(wasm.I32Value(bits.RotateLeft32(v1, -int(v2&31))))

	// i64 arithmetic.
	case wasm.OpcodeI64Clz:
		t.stack[t.sp-1] = wasm.I64Value(uint64(bits.LeadingZeros64(t.stack[t.sp-1].I64())))
	case wasm.OpcodeI64Ctz:
		t.stack[t.sp-1] = wasm.I64Value(uint64(bits.TrailingZeros64(t.stack[t.sp-1].I64())))
	case wasm.OpcodeI64Popcnt:
		t.stack[t.sp-1] = wasm.I64Value(uint64(bits.OnesCount64(t.stack[t.sp-1].I64())))
	case wasm.OpcodeI64Add:
		v2, v1 := t.pop().I64(), t.pop().I64()
		t.push(wasm.I64Value(v1 + v2))
	case wasm.OpcodeI64Sub:
		v2, v1 := t.pop().I64(), t.pop().I64()
		t.push(wasm.I64Value(v1 - v2))
	case wasm.OpcodeI64Mul:
		v2, v1 := t.pop().I64(), t.pop().I64()
		t.push(wasm.I64Value(v1 * v2))
	case wasm.OpcodeI64DivS:
		v2, v1 := int64(t.pop().I64()), int64(t.pop().I64())
		if v2 == 0 {
			return TrapIntegerDivideByZero
		}
		if v1 == math.MinInt64 && v2 == -1 {
			return TrapIntegerOverflow
		}
		t.push(wasm.I64Value(uint64(v1 / v2)))
	case wasm.OpcodeI64DivU:
		v2, v1 := t.pop().I64(), t.pop().I64()
		if v2 == 0 {
			return TrapIntegerDivideByZero
		}
		t.push(wasm.I64Value(v1 / v2))
	case wasm.OpcodeI64RemS:
		v2, v1 := int64(t.pop().I64()), int64(t.pop().I64())
		if v2 == 0 {
			return TrapIntegerDivideByZero
		}
		if v1 == math.MinInt64 && v2 == -1 {
			t.push(wasm.I64Value(0))
		} else {
			t.push(wasm.I64Value(uint64(v1 % v2)))
		}
	case wasm.OpcodeI64RemU:
		v2, v1 := t.pop().I64(), t.pop().I64()
		if v2 == 0 {
			return TrapIntegerDivideByZero
		}
		t.push(wasm.I64Value(v1 % v2))
	case wasm.OpcodeI64And:
		v2, v1 := t.pop().I64(), t.pop().I64()
		t.push(wasm.I64Value(v1 & v2))
	case wasm.OpcodeI64Or:
		v2, v1 := t.pop().I64(), t.pop().I64()
		t.push(wasm.I64Value(v1 | v2))
	case wasm.OpcodeI64Xor:
		v2, v1 := t.pop().I64(), t.pop().I64()
		t.push(wasm.I64Value(v1 ^ v2))
	case wasm.OpcodeI64Shl:
		v2, v1 := t.pop().I64(), t.pop().I64()
		t.push(wasm.I64Value(v1 << (v2 & 63)))
	case wasm.OpcodeI64ShrS:
		v2, v1 := t.pop().I64(), int64(t.pop().I64())
		t.push(wasm.I64Value(uint64(v1 >> (v2 & 63))))
	case wasm.OpcodeI64ShrU:
		v2, v1 := t.pop().I64(), t.pop().I64()
		t.push(wasm.I64Value(v1 >> (v2 & 63)))
	case wasm.OpcodeI64Rotl:
		v2, v1 := t.pop().I64(), t.pop().I64()
		t.push(wasm.I64Value(bits.RotateLeft64(v1, int(v2&63))))
	case wasm.OpcodeI64Rotr:
		v2, v1 := t.pop().I64(), t.pop().I64()
		t.push(wasm.I64Value(bits.RotateLeft64(v1, -int(v2&63))))

	// f32 arithmetic. Sign-bit ops work on raw bits so NaN payloads
	// survive.
	case wasm.OpcodeF32Abs:
		t.stack[t.sp-1] = wasm.F32BitsValue(t.stack[t.sp-1].F32Bits() &^ (1 << 31))
	case wasm.OpcodeF32Neg:
		t.stack[t.sp-1] = wasm.F32BitsValue(t.stack[t.sp-1].F32Bits() ^ (1 << 31))
	case wasm.OpcodeF32Ceil:
		t.stack[t.sp-1] = wasm.F32Value(float32(math.Ceil(float64(t.stack[t.sp-1].F32()))))
	case wasm.OpcodeF32Floor:
		t.stack[t.sp-1] = wasm.F32Value(float32(math.Floor(float64(t.stack[t.sp-1].F32()))))
	case wasm.OpcodeF32Trunc:
		t.stack[t.sp-1] = wasm.F32Value(float32(math.Trunc(float64(t.stack[t.sp-1].F32()))))
	case wasm.OpcodeF32Nearest:
		t.stack[t.sp-1] = wasm.F32Value(moremath.WasmCompatNearestF32(t.stack[t.sp-1].F32()))
	case wasm.OpcodeF32Sqrt:
		t.stack[t.sp-1] = wasm.F32Value(float32(math.Sqrt(float64(t.stack[t.sp-1].F32()))))
	case wasm.OpcodeF32Add:
		v2, v1 := t.pop().F32(), t.pop().F32()
		t.push(wasm.F32Value(v1 + v2))
	case wasm.OpcodeF32Sub:
		v2, v1 := t.pop().F32(), t.pop().F32()
		t.push(wasm.F32Value(v1 - v2))
	case wasm.OpcodeF32Mul:
		v2, v1 := t.pop().F32(), t.pop().F32()
		t.push(wasm.F32Value(v1 * v2))
	case wasm.OpcodeF32Div:
		v2, v1 := t.pop().F32(), t.pop().F32()
		t.push(wasm.F32Value(v1 / v2))
	case wasm.OpcodeF32Min:
		v2, v1 := t.pop().F32(), t.pop().F32()
		t.push(wasm.F32Value(float32(moremath.WasmCompatMin(float64(v1), float64(v2)))))
	case wasm.OpcodeF32Max:
		v2, v1 := t.pop().F32(), t.pop().F32()
		t.push(wasm.F32Value(float32(moremath.WasmCompatMax(float64(v1), float64(v2)))))
	case wasm.OpcodeF32Copysign:
		v2, v1 := t.pop().F32Bits(), t.pop().F32Bits()
		t.push(wasm.F32BitsValue(v1&^(1<<31) | v2&(1<<31)))

	// f64 arithmetic.
	case wasm.OpcodeF64Abs:
		t.stack[t.sp-1] = wasm.F64BitsValue(t.stack[t.sp-1].F64Bits() &^ (1 << 63))
	case wasm.OpcodeF64Neg:
		t.stack[t.sp-1] = wasm.F64BitsValue(t.stack[t.sp-1].F64Bits() ^ (1 << 63))
	case wasm.OpcodeF64Ceil:
		t.stack[t.sp-1] = wasm.F64Value(math.Ceil(t.stack[t.sp-1].F64()))
	case wasm.OpcodeF64Floor:
		t.stack[t.sp-1] = wasm.F64Value(math.Floor(t.stack[t.sp-1].F64()))
	case wasm.OpcodeF64Trunc:
		t.stack[t.sp-1] = wasm.F64Value(math.Trunc(t.stack[t.sp-1].F64()))
	case wasm.OpcodeF64Nearest:
		t.stack[t.sp-1] = wasm.F64Value(moremath.WasmCompatNearestF64(t.stack[t.sp-1].F64()))
	case wasm.OpcodeF64Sqrt:
		t.stack[t.sp-1] = wasm.F64Value(math.Sqrt(t.stack[t.sp-1].F64()))
	case wasm.OpcodeF64Add:
		v2, v1 := t.pop().F64(), t.pop().F64()
		t.push(wasm.F64Value(v1 + v2))
	case wasm.OpcodeF64Sub:
		v2, v1 := t.pop().F64(), t.pop().F64()
		t.push(wasm.F64Value(v1 - v2))
	case wasm.OpcodeF64Mul:
		v2, v1 := t.pop().F64(), t.pop().F64()
		t.push(wasm.F64Value(v1 * v2))
	case wasm.OpcodeF64Div:
		v2, v1 := t.pop().F64(), t.pop().F64()
		t.push(wasm.F64Value(v1 / v2))
	case wasm.OpcodeF64Min:
		v2, v1 := t.pop().F64(), t.pop().F64()
		t.push(wasm.F64Value(moremath.WasmCompatMin(v1, v2)))
	case wasm.OpcodeF64Max:
		v2, v1 := t.pop().F64(), t.pop().F64()
		t.push(wasm.F64Value(moremath.WasmCompatMax(v1, v2)))
	case wasm.OpcodeF64Copysign:
		v2, v1 := t.pop().F64Bits(), t.pop().F64Bits()
		t.push(wasm.F64BitsValue(v1&^(1<<63) | v2&(1<<63)))

	// Conversions.
	case wasm.OpcodeI32WrapI64:
		t.stack[t.sp-1] = wasm.I32Value(uint32(t.stack[t.sp-1].I64()))
	case wasm.OpcodeI32TruncF32S:
		return t.truncToI32S(float64(t.pop().F32()))
	case wasm.OpcodeI32TruncF32U:
		return t.truncToI32U(float64(t.pop().F32()))
	case wasm.OpcodeI32TruncF64S:
		return t.truncToI32S(t.pop().F64())
	case wasm.OpcodeI32TruncF64U:
		return t.truncToI32U(t.pop().F64())
	case wasm.OpcodeI64ExtendI32S:
		t.stack[t.sp-1] = wasm.I64Value(uint64(int64(int32(t.stack[t.sp-1].I32()))))
	case wasm.OpcodeI64ExtendI32U:
		t.stack[t.sp-1] = wasm.I64Value(uint64(t.stack[t.sp-1].I32()))
	case wasm.OpcodeI64TruncF32S:
		return t.truncToI64S(float64(t.pop().F32()))
	case wasm.OpcodeI64TruncF32U:
		return t.truncToI64U(float64(t.pop().F32()))
	case wasm.OpcodeI64TruncF64S:
		return t.truncToI64S(t.pop().F64())
	case wasm.OpcodeI64TruncF64U:
		return t.truncToI64U(t.pop().F64())
	case wasm.OpcodeF32ConvertI32S:
		t.stack[t.sp-1] = wasm.F32Value(float32(int32(t.stack[t.sp-1].I32())))
	case wasm.OpcodeF32ConvertI32U:
		t.stack[t.sp-1] = wasm.F32Value(float32(t.stack[t.sp-1].I32()))
	case wasm.OpcodeF32ConvertI64S:
		t.stack[t.sp-1] = wasm.F32Value(float32(int64(t.stack[t.sp-1].I64())))
	case wasm.OpcodeF32ConvertI64U:
		t.stack[t.sp-1] = wasm.F32Value(float32(t.stack[t.sp-1].I64()))
	case wasm.OpcodeF32DemoteF64:
		t.stack[t.sp-1] = wasm.F32Value(float32(t.stack[t.sp-1].F64()))
	case wasm.OpcodeF64ConvertI32S:
		t.stack[t.sp-1] = wasm.F64Value(float64(int32(t.stack[t.sp-1].I32())))
	case wasm.OpcodeF64ConvertI32U:
		t.stack[t.sp-1] = wasm.F64Value(float64(t.stack[t.sp-1].I32()))
	case wasm.OpcodeF64ConvertI64S:
		t.stack[t.sp-1] = wasm.F64Value(float64(int64(t.stack[t.sp-1].I64())))
	case wasm.OpcodeF64ConvertI64U:
		t.stack[t.sp-1] = wasm.F64Value(float64(t.stack[t.sp-1].I64()))
	case wasm.OpcodeF64PromoteF32:
		t.stack[t.sp-1] = wasm.F64Value(float64(t.stack[t.sp-1].F32()))
	case wasm.OpcodeI32ReinterpretF32:
		t.stack[t.sp-1].Type = wasm.ValueTypeI32
	case wasm.OpcodeI64ReinterpretF64:
		t.stack[t.sp-1].Type = wasm.ValueTypeI64
	case wasm.OpcodeF32ReinterpretI32:
		t.stack[t.sp-1].Type = wasm.ValueTypeF32
	case wasm.OpcodeF64ReinterpretI64:
		t.stack[t.sp-1].Type = wasm.ValueTypeF64
	}
	return ResultOk
}

// Truncations follow the spec exactly: NaN is an invalid conversion,
// out of range is an integer overflow, and the trap fires before any
// push.
func (t *Thread) truncToI32S(f float64) Result {
	if math.IsNaN(f) {
		return TrapInvalidConversionToInteger
	}
	tr := math.Trunc(f)
	if tr >= 2147483648 || tr < -2147483648 {
		return TrapIntegerOverflow
	}
	t.push(wasm.I32Value(uint32(int32(tr))))
	return ResultOk
}

func (t *Thread) truncToI32U(f float64) Result {
	if math.IsNaN(f) {
		return TrapInvalidConversionToInteger
	}
	tr := math.Trunc(f)
	if tr >= 4294967296 || tr <= -1 {
		return TrapIntegerOverflow
	}
	t.push(wasm.I32Value(uint32(tr)))
	return ResultOk
}

func (t *Thread) truncToI64S(f float64) Result {
	if math.IsNaN(f) {
		return TrapInvalidConversionToInteger
	}
	tr := math.Trunc(f)
	if tr >= 9223372036854775808.0 || tr < -9223372036854775808.0 {
		return TrapIntegerOverflow
	}
	t.push(wasm.I64Value(uint64(int64(tr))))
	return ResultOk
}

func (t *Thread) truncToI64U(f float64) Result {
	if math.IsNaN(f) {
		return TrapInvalidConversionToInteger
	}
	tr := math.Trunc(f)
	if tr >= 18446744073709551616.0 || tr <= -1 {
		return TrapIntegerOverflow
	}
	t.push(wasm.I64Value(uint64(tr)))
	return ResultOk
}
