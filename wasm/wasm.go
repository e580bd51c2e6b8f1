// Package wasm holds the value model shared by the binary reader, the
// validator and the interpreter: value types, typed values, function
// signatures and limits.
package wasm

import (
	"fmt"
	"math"
	"strings"

	"github.com/wasmkit/wain/internal/moremath"
)

// ValueType describes a parameter, result, local or global in its
// binary-format encoding.
type ValueType = byte

const (
	ValueTypeI32 ValueType = 0x7f
	ValueTypeI64 ValueType = 0x7e
	ValueTypeF32 ValueType = 0x7d
	ValueTypeF64 ValueType = 0x7c

	// ElemTypeFuncref is the only element type in the MVP.
	ElemTypeFuncref byte = 0x70
	// FunctionTypeTag prefixes every entry of the type section.
	FunctionTypeTag byte = 0x60
	// BlockTypeEmpty marks a block producing no value.
	BlockTypeEmpty byte = 0x40
)

// ValueTypeName returns the name in the text format, e.g. "i32".
func ValueTypeName(t ValueType) string {
	switch t {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	}
	return "unknown"
}

// IsValueType returns true if b encodes one of the four primitive types.
func IsValueType(b byte) bool {
	switch b {
	case ValueTypeI32, ValueTypeI64, ValueTypeF32, ValueTypeF64:
		return true
	}
	return false
}

const (
	// PageSize is the size of a linear-memory page in bytes.
	PageSize = 65536
	// MaxPages caps memory growth when a memory declares no maximum.
	MaxPages = 65536
)

// Value is a typed value. Floats are stored as their IEEE-754 bit
// patterns so NaN payloads survive exactly.
type Value struct {
	Type ValueType
	Bits uint64
}

func I32Value(v uint32) Value { return Value{Type: ValueTypeI32, Bits: uint64(v)} }
func I64Value(v uint64) Value { return Value{Type: ValueTypeI64, Bits: v} }
func F32Value(v float32) Value {
	return Value{Type: ValueTypeF32, Bits: uint64(math.Float32bits(v))}
}
func F64Value(v float64) Value { return Value{Type: ValueTypeF64, Bits: math.Float64bits(v)} }

// F32BitsValue wraps a raw f32 bit pattern, preserving NaN payloads.
func F32BitsValue(bits uint32) Value { return Value{Type: ValueTypeF32, Bits: uint64(bits)} }

// F64BitsValue wraps a raw f64 bit pattern, preserving NaN payloads.
func F64BitsValue(bits uint64) Value { return Value{Type: ValueTypeF64, Bits: bits} }

func (v Value) I32() uint32     { return uint32(v.Bits) }
func (v Value) I64() uint64     { return v.Bits }
func (v Value) F32() float32    { return math.Float32frombits(uint32(v.Bits)) }
func (v Value) F64() float64    { return math.Float64frombits(v.Bits) }
func (v Value) F32Bits() uint32 { return uint32(v.Bits) }
func (v Value) F64Bits() uint64 { return v.Bits }

// IsCanonicalNaN returns true for a float value whose payload is the
// canonical NaN of its width.
func (v Value) IsCanonicalNaN() bool {
	switch v.Type {
	case ValueTypeF32:
		return moremath.F32IsCanonicalNaN(uint32(v.Bits))
	case ValueTypeF64:
		return moremath.F64IsCanonicalNaN(v.Bits)
	}
	return false
}

// IsArithmeticNaN returns true for a float value that is NaN with the
// quiet bit set.
func (v Value) IsArithmeticNaN() bool {
	switch v.Type {
	case ValueTypeF32:
		return moremath.F32IsArithmeticNaN(uint32(v.Bits))
	case ValueTypeF64:
		return moremath.F64IsArithmeticNaN(v.Bits)
	}
	return false
}

func (v Value) String() string {
	switch v.Type {
	case ValueTypeI32:
		return fmt.Sprintf("i32:%d", uint32(v.Bits))
	case ValueTypeI64:
		return fmt.Sprintf("i64:%d", v.Bits)
	case ValueTypeF32:
		return fmt.Sprintf("f32:%g", v.F32())
	case ValueTypeF64:
		return fmt.Sprintf("f64:%g", v.F64())
	}
	return fmt.Sprintf("unknown:%d", v.Bits)
}

// FunctionSig is the ordered parameter and result types of a function.
// The MVP restricts Results to at most one element; the validator
// enforces that.
type FunctionSig struct {
	Params  []ValueType
	Results []ValueType
}

// Equals reports structural equality of the two signatures.
func (s *FunctionSig) Equals(other *FunctionSig) bool {
	if len(s.Params) != len(other.Params) || len(s.Results) != len(other.Results) {
		return false
	}
	for i, p := range s.Params {
		if other.Params[i] != p {
			return false
		}
	}
	for i, r := range s.Results {
		if other.Results[i] != r {
			return false
		}
	}
	return true
}

func typeNames(ts []ValueType) string {
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = ValueTypeName(t)
	}
	return strings.Join(names, ", ")
}

func (s *FunctionSig) String() string {
	return fmt.Sprintf("(%s) -> (%s)", typeNames(s.Params), typeNames(s.Results))
}

// Limits bound the size of a table or memory.
type Limits struct {
	Initial uint32
	Max     uint32
	HasMax  bool
}

// Validate enforces initial <= max when a maximum is declared.
func (l Limits) Validate() error {
	if l.HasMax && l.Initial > l.Max {
		return fmt.Errorf("size minimum must not be greater than maximum: %d > %d", l.Initial, l.Max)
	}
	return nil
}

// ExternalKind discriminates imports and exports.
type ExternalKind byte

const (
	ExternalKindFunc   ExternalKind = 0
	ExternalKindTable  ExternalKind = 1
	ExternalKindMemory ExternalKind = 2
	ExternalKindGlobal ExternalKind = 3
)

func (k ExternalKind) String() string {
	switch k {
	case ExternalKindFunc:
		return "func"
	case ExternalKindTable:
		return "table"
	case ExternalKindMemory:
		return "memory"
	case ExternalKindGlobal:
		return "global"
	}
	return "unknown"
}
