// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/nnrt/tensor"
)

// TestVariableAPI verifies the Variable alias exposes the expected API.
func TestVariableAPI(t *testing.T) {
	v, err := tensor.NewVariable(tensor.Shape{2, 2}, tensor.Int8, 2)
	require.NoError(t, err)

	assert.Equal(t, 4, v.Len())
	assert.False(t, v.IsFloat())
	assert.InDelta(t, 0.25, v.Coefficient, 1e-9)

	v.CopyFrom([]float32{0.5, -0.3, 100, -100})
	got := make([]float32, 4)
	v.CopyTo(got)
	assert.Equal(t, []float32{0.5, -0.25, 31.75, -32}, got)
}

func TestFromFloat32SharesStorage(t *testing.T) {
	data := []float32{1, 2, 3}
	v := tensor.FromFloat32(tensor.Shape{3}, data)
	v.Setter()(1, 9)
	assert.Equal(t, float32(9), data[1])
	assert.True(t, v.IsFloat())
}

func TestParseDataType(t *testing.T) {
	tests := []struct {
		in   string
		want tensor.DataType
	}{
		{"", tensor.Float32},
		{"float", tensor.Float32},
		{"int16", tensor.Int16},
		{"int8", tensor.Int8},
		{"sign", tensor.Sign},
	}
	for _, tt := range tests {
		got, err := tensor.ParseDataType(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := tensor.ParseDataType("float64")
	assert.Error(t, err)
}

func TestInvalidShape(t *testing.T) {
	_, err := tensor.NewVariable(tensor.Shape{2, 0}, tensor.Float32, 0)
	assert.Error(t, err)
}
