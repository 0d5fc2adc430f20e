// Package tensor provides the variable model and the shape/buffer utilities
// shared by every operator of the runtime.
package tensor

import (
	"errors"
	"fmt"
)

// MaxFPPos is the largest fractional bit position a fixed-point variable
// may declare.
const MaxFPPos = 31

// ErrInvalidFPPos is returned for a fractional bit position above MaxFPPos.
var ErrInvalidFPPos = errors.New("fractional bit position out of range")

// DataType is the element kind of a variable buffer.
//
// The numeric values are part of the serialized network contract.
type DataType int

// Supported element kinds.
const (
	Float32 DataType = iota
	Int16
	Int8
	Sign
)

// Bit widths of the fixed-point element kinds.
const (
	Int8BitLength  = 8
	Int16BitLength = 16
)

// IsFixedPoint reports whether values are stored as scaled integers.
func (dt DataType) IsFixedPoint() bool {
	return dt == Int16 || dt == Int8
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float"
	case Int16:
		return "int16"
	case Int8:
		return "int8"
	case Sign:
		return "sign"
	default:
		return "unknown"
	}
}

// ParseDataType converts a name used in network descriptions to a DataType.
// The empty string selects Float32.
func ParseDataType(s string) (DataType, error) {
	switch s {
	case "", "float", "float32":
		return Float32, nil
	case "int16":
		return Int16, nil
	case "int8":
		return Int8, nil
	case "sign":
		return Sign, nil
	default:
		return 0, fmt.Errorf("unknown data type %q", s)
	}
}

// Coefficient returns the float conversion coefficient for a fractional bit
// position. fpPos must not exceed MaxFPPos.
func Coefficient(fpPos uint8) float32 {
	return 1.0 / float32(uint32(1)<<fpPos)
}
