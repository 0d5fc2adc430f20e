// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/nnrt/internal/tensor"
)

// Type aliases for public API

// DataType is the element kind of a variable buffer.
type DataType = tensor.DataType

// Element kinds. The numeric values are part of the network format.
const (
	Float32 DataType = tensor.Float32
	Int16   DataType = tensor.Int16
	Int8    DataType = tensor.Int8
	Sign    DataType = tensor.Sign
)

// MaxFPPos is the largest fixed-point position NewVariable accepts.
const MaxFPPos = tensor.MaxFPPos

// ErrInvalidFPPos is returned by NewVariable for a fixed-point position
// above MaxFPPos.
var ErrInvalidFPPos = tensor.ErrInvalidFPPos

// Shape represents the dimensions of a variable, outermost first.
// Example: Shape{2, 3, 4} holds 24 elements; Shape{} is a scalar.
type Shape = tensor.Shape

// Variable is a runtime buffer bound to a shape and an element kind.
type Variable = tensor.Variable

// Getter reads element i of a variable as float32.
type Getter = tensor.Getter

// Setter stores a float32 as element i of a variable.
type Setter = tensor.Setter

// NewVariable allocates a zeroed variable. fpPos is the fixed-point
// position of Int16 and Int8 variables and is ignored otherwise.
func NewVariable(shape Shape, dtype DataType, fpPos uint8) (*Variable, error) {
	return tensor.NewVariable(shape, dtype, fpPos)
}

// FromFloat32 wraps data as a Float32 variable without copying it.
func FromFloat32(shape Shape, data []float32) *Variable {
	return tensor.FromFloat32(shape, data)
}

// ParseDataType parses an element kind name ("float", "int16", "int8",
// "sign"). The empty string selects Float32.
func ParseDataType(s string) (DataType, error) {
	return tensor.ParseDataType(s)
}

// Coefficient returns the value of one fixed-point step, 1 / 2^fpPos.
func Coefficient(fpPos uint8) float32 {
	return tensor.Coefficient(fpPos)
}
