package tensor

import (
	"fmt"
	"math"

	"github.com/chewxy/math32"
)

// Variable is a runtime buffer bound to a shape and an element kind.
//
// Exactly one of the storage slices is populated, selected by Type. Shapes are
// referenced from the network definition and never modified after creation;
// buffer contents are overwritten on every forward pass.
type Variable struct {
	Shape       Shape
	Type        DataType
	FPPos       uint8
	Coefficient float32 // value = stored integer * Coefficient

	Data  []float32 // Float32
	Int16 []int16   // Int16
	Int8  []int8    // Int8
	Bits  []byte    // Sign, one bit per element, MSB first
}

// Getter reads element i of a variable as float32.
type Getter func(i int) float32

// Setter stores x as element i of a variable.
type Setter func(i int, x float32)

// NewVariable allocates a zeroed variable of the given kind.
func NewVariable(shape Shape, dtype DataType, fpPos uint8) (*Variable, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if dtype.IsFixedPoint() && fpPos > MaxFPPos {
		return nil, fmt.Errorf("%w: fp_pos %d for %v", ErrInvalidFPPos, fpPos, dtype)
	}
	n := shape.NumElements()
	v := &Variable{
		Shape:       shape,
		Type:        dtype,
		FPPos:       fpPos,
		Coefficient: 1,
	}
	switch dtype {
	case Float32:
		v.Data = make([]float32, n)
	case Int16:
		v.Int16 = make([]int16, n)
		v.Coefficient = Coefficient(fpPos)
	case Int8:
		v.Int8 = make([]int8, n)
		v.Coefficient = Coefficient(fpPos)
	case Sign:
		v.Bits = make([]byte, (n+7)/8)
	default:
		return nil, fmt.Errorf("unsupported data type %v", dtype)
	}
	return v, nil
}

// FromFloat32 wraps an existing float buffer without copying it.
func FromFloat32(shape Shape, data []float32) *Variable {
	return &Variable{
		Shape:       shape,
		Type:        Float32,
		Coefficient: 1,
		Data:        data,
	}
}

// Len returns the number of elements.
func (v *Variable) Len() int {
	return v.Shape.NumElements()
}

// IsFloat reports whether the variable stores plain float32 values.
func (v *Variable) IsFloat() bool {
	return v.Type == Float32
}

// Getter returns an element reader bound to the variable's storage.
func (v *Variable) Getter() Getter {
	switch v.Type {
	case Int16:
		d, c := v.Int16, v.Coefficient
		return func(i int) float32 { return float32(d[i]) * c }
	case Int8:
		d, c := v.Int8, v.Coefficient
		return func(i int) float32 { return float32(d[i]) * c }
	case Sign:
		d := v.Bits
		return func(i int) float32 {
			if d[i>>3]&(0x80>>(i&7)) != 0 {
				return 1
			}
			return -1
		}
	default:
		d := v.Data
		return func(i int) float32 { return d[i] }
	}
}

// Setter returns an element writer bound to the variable's storage.
// Fixed-point writers truncate toward zero and saturate to the integer range.
func (v *Variable) Setter() Setter {
	switch v.Type {
	case Int16:
		d, c := v.Int16, v.Coefficient
		return func(i int, x float32) {
			d[i] = int16(saturate(x/c, math.MinInt16, math.MaxInt16))
		}
	case Int8:
		d, c := v.Int8, v.Coefficient
		return func(i int, x float32) {
			d[i] = int8(saturate(x/c, math.MinInt8, math.MaxInt8))
		}
	case Sign:
		d := v.Bits
		return func(i int, x float32) {
			mask := byte(0x80 >> (i & 7))
			if x >= 0 {
				d[i>>3] |= mask
			} else {
				d[i>>3] &^= mask
			}
		}
	default:
		d := v.Data
		return func(i int, x float32) { d[i] = x }
	}
}

// CopyTo writes the variable's values into dst as float32.
func (v *Variable) CopyTo(dst []float32) {
	if v.IsFloat() {
		copy(dst, v.Data)
		return
	}
	get := v.Getter()
	n := min(len(dst), v.Len())
	for i := 0; i < n; i++ {
		dst[i] = get(i)
	}
}

// CopyFrom stores src into the variable, converting to its element kind.
func (v *Variable) CopyFrom(src []float32) {
	if v.IsFloat() {
		copy(v.Data, src)
		return
	}
	set := v.Setter()
	n := min(len(src), v.Len())
	for i := 0; i < n; i++ {
		set(i, src[i])
	}
}

func saturate(x, lo, hi float32) float32 {
	if math32.IsNaN(x) {
		return 0
	}
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return math32.Trunc(x)
}
