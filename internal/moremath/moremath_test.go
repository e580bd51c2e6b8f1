package moremath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWasmCompatMin(t *testing.T) {
	assert.Equal(t, WasmCompatMin(-1.1, 123), -1.1)
	assert.Equal(t, WasmCompatMin(-1.1, math.Inf(1)), -1.1)
	assert.Equal(t, WasmCompatMin(math.Inf(-1), 123), math.Inf(-1))
	assert.True(t, math.IsNaN(WasmCompatMin(math.NaN(), math.Inf(-1))))
	assert.True(t, math.IsNaN(WasmCompatMin(math.Inf(-1), math.NaN())))
	assert.True(t, math.IsNaN(WasmCompatMin(math.NaN(), 1.0)))

	// min(-0, +0) is -0.
	neg := WasmCompatMin(math.Copysign(0, -1), 0)
	require.True(t, math.Signbit(neg))
}

func TestWasmCompatMax(t *testing.T) {
	assert.Equal(t, WasmCompatMax(-1.1, 123.1), 123.1)
	assert.Equal(t, WasmCompatMax(-1.1, math.Inf(1)), math.Inf(1))
	assert.Equal(t, WasmCompatMax(math.Inf(-1), 123.1), 123.1)
	assert.True(t, math.IsNaN(WasmCompatMax(math.NaN(), math.Inf(1))))
	assert.True(t, math.IsNaN(WasmCompatMax(math.Inf(1), math.NaN())))

	// max(-0, +0) is +0.
	pos := WasmCompatMax(math.Copysign(0, -1), 0)
	require.False(t, math.Signbit(pos))
}

func TestWasmCompatNearest(t *testing.T) {
	// Ties round to even, unlike math.Round.
	assert.Equal(t, WasmCompatNearestF64(0.5), 0.0)
	assert.Equal(t, WasmCompatNearestF64(1.5), 2.0)
	assert.Equal(t, WasmCompatNearestF64(2.5), 2.0)
	assert.True(t, WasmCompatNearestF64(-0.5) == 0)
	assert.Equal(t, WasmCompatNearestF64(-1.5), -2.0)
	assert.Equal(t, WasmCompatNearestF64(4.7), 5.0)
	assert.Equal(t, WasmCompatNearestF64(-4.7), -5.0)
	assert.Equal(t, WasmCompatNearestF32(float32(1.5)), float32(2.0))
	assert.Equal(t, WasmCompatNearestF32(float32(2.5)), float32(2.0))
}

func TestNaNPredicates(t *testing.T) {
	require.True(t, F32IsCanonicalNaN(F32CanonicalNaNBits))
	require.True(t, F32IsCanonicalNaN(F32CanonicalNaNBits|1<<31)) // sign ignored
	require.False(t, F32IsCanonicalNaN(F32CanonicalNaNBits|1))
	require.True(t, F32IsArithmeticNaN(F32CanonicalNaNBits|1))
	require.False(t, F32IsArithmeticNaN(math.Float32bits(1.0)))

	require.True(t, F64IsCanonicalNaN(F64CanonicalNaNBits))
	require.True(t, F64IsCanonicalNaN(F64CanonicalNaNBits|1<<63))
	require.False(t, F64IsCanonicalNaN(F64CanonicalNaNBits|1))
	require.True(t, F64IsArithmeticNaN(F64CanonicalNaNBits|1))
	require.False(t, F64IsArithmeticNaN(math.Float64bits(-2.5)))

	// Go's own NaN sets the lowest payload bit, so it is not canonical.
	require.False(t, F64IsCanonicalNaN(math.Float64bits(math.NaN())))
}
