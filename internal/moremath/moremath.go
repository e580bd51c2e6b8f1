// Package moremath implements the float operations where the Go
// standard library disagrees with the WebAssembly specification.
package moremath

import "math"

const (
	// F32CanonicalNaNBits is the bit pattern of the canonical f32 NaN:
	// quiet bit set, every other payload bit zero.
	F32CanonicalNaNBits = uint32(0x7fc00000)
	// F32ArithmeticNaNBits has the quiet bit set; any other payload
	// bits identify an arithmetic NaN.
	F32ArithmeticNaNBits = uint32(0x7fc00000)
	// F64CanonicalNaNBits is the bit pattern of the canonical f64 NaN.
	F64CanonicalNaNBits = uint64(0x7ff8000000000000)
	// F64ArithmeticNaNBits has the quiet bit set.
	F64ArithmeticNaNBits = uint64(0x7ff8000000000000)
)

// F32IsCanonicalNaN returns true if v is the canonical NaN, ignoring sign.
func F32IsCanonicalNaN(v uint32) bool {
	return v&0x7fffffff == F32CanonicalNaNBits
}

// F32IsArithmeticNaN returns true if v is a NaN with the quiet bit set.
func F32IsArithmeticNaN(v uint32) bool {
	return v&F32ArithmeticNaNBits == F32ArithmeticNaNBits
}

// F64IsCanonicalNaN returns true if v is the canonical NaN, ignoring sign.
func F64IsCanonicalNaN(v uint64) bool {
	return v&0x7fffffffffffffff == F64CanonicalNaNBits
}

// F64IsArithmeticNaN returns true if v is a NaN with the quiet bit set.
func F64IsArithmeticNaN(v uint64) bool {
	return v&F64ArithmeticNaNBits == F64ArithmeticNaNBits
}

// WasmCompatMin is math.Min, except that NaN wins over -Inf and the
// result for two zeros honors the sign bit.
// https://github.com/golang/go/blob/1d20a362d0ca4898d77865e314ef6f73582daef0/src/math/dim.go#L74-L91
func WasmCompatMin(x, y float64) float64 {
	switch {
	case math.IsNaN(x) || math.IsNaN(y):
		return math.NaN()
	case math.IsInf(x, -1) || math.IsInf(y, -1):
		return math.Inf(-1)
	case x == 0 && x == y:
		if math.Signbit(x) {
			return x
		}
		return y
	}
	if x < y {
		return x
	}
	return y
}

// WasmCompatMax is math.Max, except that NaN wins over +Inf and the
// result for two zeros honors the sign bit.
// https://github.com/golang/go/blob/1d20a362d0ca4898d77865e314ef6f73582daef0/src/math/dim.go#L42-L59
func WasmCompatMax(x, y float64) float64 {
	switch {
	case math.IsNaN(x) || math.IsNaN(y):
		return math.NaN()
	case math.IsInf(x, 1) || math.IsInf(y, 1):
		return math.Inf(1)
	case x == 0 && x == y:
		if math.Signbit(x) {
			return y
		}
		return x
	}
	if x > y {
		return x
	}
	return y
}

// WasmCompatNearestF32 rounds to the nearest integer, ties to even, as
// f32.nearest requires. math.Round rounds ties away from zero.
func WasmCompatNearestF32(f float32) float32 {
	return float32(WasmCompatNearestF64(float64(f)))
}

// WasmCompatNearestF64 rounds to the nearest integer, ties to even, as
// f64.nearest requires.
func WasmCompatNearestF64(f float64) float64 {
	if f != 0 {
		ceil := math.Ceil(f)
		floor := math.Floor(f)
		distToCeil := math.Abs(f - ceil)
		distToFloor := math.Abs(f - floor)
		if distToCeil < distToFloor {
			f = ceil
		} else if distToCeil == distToFloor && int64(ceil)%2 == 0 {
			f = ceil
		} else {
			f = floor
		}
	}
	return f
}
