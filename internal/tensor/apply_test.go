package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func add(a, b float32) float32 { return a + b }

func TestApplyScalar(t *testing.T) {
	in := []float32{1, 2, 3}
	out := make([]float32, 3)
	ApplyScalar(in, 10, add, out, 3)
	assert.Equal(t, []float32{11, 12, 13}, out)
}

func TestApplyUnaryInPlace(t *testing.T) {
	buf := []float32{-1, 2, -3}
	ApplyUnary(buf, func(x float32) float32 { return -x }, buf, len(buf))
	assert.Equal(t, []float32{1, -2, 3}, buf)
}

func TestApplyElementwise(t *testing.T) {
	out := make([]float32, 2)
	ApplyElementwise([]float32{1, 2}, []float32{3, 4}, add, out, 2)
	assert.Equal(t, []float32{4, 6}, out)
}

func TestApplyBroadcast(t *testing.T) {
	// [2,3] + [3]
	bc, err := NewBroadcaster(Shape{2, 3}, Shape{3})
	require.NoError(t, err)
	assert.True(t, bc.Shape.Equal(Shape{2, 3}))

	out := make([]float32, bc.Size)
	ApplyBroadcast([]float32{1, 2, 3, 4, 5, 6}, []float32{10, 20, 30}, add, out, bc)
	assert.Equal(t, []float32{11, 22, 33, 14, 25, 36}, out)

	// [2,1] + [1,3]
	bc, err = NewBroadcaster(Shape{2, 1}, Shape{1, 3})
	require.NoError(t, err)
	out = make([]float32, bc.Size)
	ApplyBroadcast([]float32{1, 2}, []float32{10, 20, 30}, add, out, bc)
	assert.Equal(t, []float32{11, 21, 31, 12, 22, 32}, out)
}

func TestBroadcastStridesAndIndex(t *testing.T) {
	out := Shape{2, 3}
	src := BroadcastStrides(Shape{2, 1}, out)
	assert.Equal(t, []int{1, 0}, src)
	outStr := out.ComputeStrides()
	assert.Equal(t, 1, StridedIndex(5, outStr, src))
	assert.Equal(t, 0, StridedIndex(2, outStr, src))
}

func TestApplyGeneric(t *testing.T) {
	a, err := NewVariable(Shape{3}, Int8, 1)
	require.NoError(t, err)
	a.CopyFrom([]float32{0.5, 1, -1.5})
	out := FromFloat32(Shape{3}, make([]float32, 3))

	ApplyScalarGeneric(a.Getter(), 1, add, out.Setter(), 3)
	assert.Equal(t, []float32{1.5, 2, -0.5}, out.Data)

	bc, err := NewBroadcaster(Shape{3}, Shape{1})
	require.NoError(t, err)
	b := FromFloat32(Shape{1}, []float32{2})
	ApplyBroadcastGeneric(a.Getter(), b.Getter(), add, out.Setter(), bc)
	assert.Equal(t, []float32{2.5, 3, 0.5}, out.Data)
}
