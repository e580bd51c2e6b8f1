package interp

import (
	"github.com/wasmkit/wain/wasm"
)

// numericSigs declares the operand and result types of every numeric
// instruction, keyed by opcode. The validator pops the params and
// pushes the results like an ordinary call.
var numericSigs = map[wasm.Opcode]wasm.FunctionSig{}

func init() {
	i32, i64, f32, f64 := wasm.ValueTypeI32, wasm.ValueTypeI64, wasm.ValueTypeF32, wasm.ValueTypeF64

	add := func(params []wasm.ValueType, result wasm.ValueType, ops ...wasm.Opcode) {
		for _, op := range ops {
			numericSigs[op] = wasm.FunctionSig{Params: params, Results: []wasm.ValueType{result}}
		}
	}

	add([]wasm.ValueType{i32}, i32, wasm.OpcodeI32Eqz,
		wasm.OpcodeI32Clz, wasm.OpcodeI32Ctz, wasm.OpcodeI32Popcnt)
	add([]wasm.ValueType{i32, i32}, i32,
		wasm.OpcodeI32Eq, wasm.OpcodeI32Ne,
		wasm.OpcodeI32LtS, wasm.OpcodeI32LtU, wasm.OpcodeI32GtS, wasm.OpcodeI32GtU,
		wasm.OpcodeI32LeS, wasm.OpcodeI32LeU, wasm.OpcodeI32GeS, wasm.OpcodeI32GeU,
		wasm.OpcodeI32Add, wasm.OpcodeI32Sub, wasm.OpcodeI32Mul,
		wasm.OpcodeI32DivS, wasm.OpcodeI32DivU, wasm.OpcodeI32RemS, wasm.OpcodeI32RemU,
		wasm.OpcodeI32And, wasm.OpcodeI32Or, wasm.OpcodeI32Xor,
		wasm.OpcodeI32Shl, wasm.OpcodeI32ShrS, wasm.OpcodeI32ShrU,
		wasm.OpcodeI32Rotl, wasm.OpcodeI32Rotr)

	add([]wasm.ValueType{i64}, i32, wasm.OpcodeI64Eqz)
	add([]wasm.ValueType{i64, i64}, i32,
		wasm.OpcodeI64Eq, wasm.OpcodeI64Ne,
		wasm.OpcodeI64LtS, wasm.OpcodeI64LtU, wasm.OpcodeI64GtS, wasm.OpcodeI64GtU,
		wasm.OpcodeI64LeS, wasm.OpcodeI64LeU, wasm.OpcodeI64GeS, wasm.OpcodeI64GeU)
	add([]wasm.ValueType{i64}, i64,
		wasm.OpcodeI64Clz, wasm.OpcodeI64Ctz, wasm.OpcodeI64Popcnt)
	add([]wasm.ValueType{i64, i64}, i64,
		wasm.OpcodeI64Add, wasm.OpcodeI64Sub, wasm.OpcodeI64Mul,
		wasm.OpcodeI64DivS, wasm.OpcodeI64DivU, wasm.OpcodeI64RemS, wasm.OpcodeI64RemU,
		wasm.OpcodeI64And, wasm.OpcodeI64Or, wasm.OpcodeI64Xor,
		wasm.OpcodeI64Shl, wasm.OpcodeI64ShrS, wasm.OpcodeI64ShrU,
		wasm.OpcodeI64Rotl, wasm.OpcodeI64Rotr)

	add([]wasm.ValueType{f32, f32}, i32,
		wasm.OpcodeF32Eq, wasm.OpcodeF32Ne, wasm.OpcodeF32Lt,
		wasm.OpcodeF32Gt, wasm.OpcodeF32Le, wasm.OpcodeF32Ge)
	add([]wasm.ValueType{f32}, f32,
		wasm.OpcodeF32Abs, wasm.OpcodeF32Neg, wasm.OpcodeF32Ceil, wasm.OpcodeF32Floor,
		wasm.OpcodeF32Trunc, wasm.OpcodeF32Nearest, wasm.OpcodeF32Sqrt)
	add([]wasm.ValueType{f32, f32}, f32,
		wasm.OpcodeF32Add, wasm.OpcodeF32Sub, wasm.OpcodeF32Mul, wasm.OpcodeF32Div,
		wasm.OpcodeF32Min, wasm.OpcodeF32Max, wasm.OpcodeF32Copysign)

	add([]wasm.ValueType{f64, f64}, i32,
		wasm.OpcodeF64Eq, wasm.OpcodeF64Ne, wasm.OpcodeF64Lt,
		wasm.OpcodeF64Gt, wasm.OpcodeF64Le, wasm.OpcodeF64Ge)
	add([]wasm.ValueType{f64}, f64,
		wasm.OpcodeF64Abs, wasm.OpcodeF64Neg, wasm.OpcodeF64Ceil, wasm.OpcodeF64Floor,
		wasm.OpcodeF64Trunc, wasm.OpcodeF64Nearest, wasm.OpcodeF64Sqrt)
	add([]wasm.ValueType{f64, f64}, f64,
		wasm.OpcodeF64Add, wasm.OpcodeF64Sub, wasm.OpcodeF64Mul, wasm.OpcodeF64Div,
		wasm.OpcodeF64Min, wasm.OpcodeF64Max, wasm.OpcodeF64Copysign)

	add([]wasm.ValueType{i64}, i32, wasm.OpcodeI32WrapI64)
	add([]wasm.ValueType{f32}, i32, wasm.OpcodeI32TruncF32S, wasm.OpcodeI32TruncF32U, wasm.OpcodeI32ReinterpretF32)
	add([]wasm.ValueType{f64}, i32, wasm.OpcodeI32TruncF64S, wasm.OpcodeI32TruncF64U)
	add([]wasm.ValueType{i32}, i64, wasm.OpcodeI64ExtendI32S, wasm.OpcodeI64ExtendI32U)
	add([]wasm.ValueType{f32}, i64, wasm.OpcodeI64TruncF32S, wasm.OpcodeI64TruncF32U)
	add([]wasm.ValueType{f64}, i64, wasm.OpcodeI64TruncF64S, wasm.OpcodeI64TruncF64U, wasm.OpcodeI64ReinterpretF64)
	add([]wasm.ValueType{i32}, f32, wasm.OpcodeF32ConvertI32S, wasm.OpcodeF32ConvertI32U, wasm.OpcodeF32ReinterpretI32)
	add([]wasm.ValueType{i64}, f32, wasm.OpcodeF32ConvertI64S, wasm.OpcodeF32ConvertI64U)
	add([]wasm.ValueType{f64}, f32, wasm.OpcodeF32DemoteF64)
	add([]wasm.ValueType{i32}, f64, wasm.OpcodeF64ConvertI32S, wasm.OpcodeF64ConvertI32U)
	add([]wasm.ValueType{i64}, f64, wasm.OpcodeF64ConvertI64S, wasm.OpcodeF64ConvertI64U, wasm.OpcodeF64ReinterpretI64)
	add([]wasm.ValueType{f32}, f64, wasm.OpcodeF64PromoteF32)
}
