package runtime

import (
	"fmt"

	"github.com/born-ml/nnrt/internal/tensor"
)

// NumInputs returns the number of network inputs.
func (c *Context) NumInputs() int { return len(c.inputs) }

// NumOutputs returns the number of network outputs.
func (c *Context) NumOutputs() int { return len(c.outputs) }

// InputSize returns the element count of input i.
func (c *Context) InputSize(i int) (int, error) {
	v, err := at(c.inputs, i, "input")
	if err != nil {
		return 0, err
	}
	return v.Len(), nil
}

// InputDimension returns the rank of input i.
func (c *Context) InputDimension(i int) (int, error) {
	v, err := at(c.inputs, i, "input")
	if err != nil {
		return 0, err
	}
	return len(v.Shape), nil
}

// InputShape returns the extent of input i along axis.
func (c *Context) InputShape(i, axis int) (int, error) {
	v, err := at(c.inputs, i, "input")
	if err != nil {
		return 0, err
	}
	return extent(v, axis)
}

// InputBuffer returns the float storage of input i. It is nil for
// fixed-point inputs; use Forward to convert.
func (c *Context) InputBuffer(i int) ([]float32, error) {
	v, err := at(c.inputs, i, "input")
	if err != nil {
		return nil, err
	}
	return v.Data, nil
}

// OutputSize returns the element count of output i.
func (c *Context) OutputSize(i int) (int, error) {
	v, err := at(c.outputs, i, "output")
	if err != nil {
		return 0, err
	}
	return v.Len(), nil
}

// OutputDimension returns the rank of output i.
func (c *Context) OutputDimension(i int) (int, error) {
	v, err := at(c.outputs, i, "output")
	if err != nil {
		return 0, err
	}
	return len(v.Shape), nil
}

// OutputShape returns the extent of output i along axis.
func (c *Context) OutputShape(i, axis int) (int, error) {
	v, err := at(c.outputs, i, "output")
	if err != nil {
		return 0, err
	}
	return extent(v, axis)
}

// OutputBuffer returns the float storage of output i. It is nil for
// fixed-point outputs.
func (c *Context) OutputBuffer(i int) ([]float32, error) {
	v, err := at(c.outputs, i, "output")
	if err != nil {
		return nil, err
	}
	return v.Data, nil
}

func at(vars []*tensor.Variable, i int, kind string) (*tensor.Variable, error) {
	if i < 0 || i >= len(vars) {
		return nil, fmt.Errorf("%w: %s %d of %d", ErrInvalidBufferIndex, kind, i, len(vars))
	}
	return vars[i], nil
}

func extent(v *tensor.Variable, axis int) (int, error) {
	if axis < 0 || axis >= len(v.Shape) {
		return 0, fmt.Errorf("%w: axis %d of rank %d", ErrInvalidBufferIndex, axis, len(v.Shape))
	}
	return v.Shape[axis], nil
}
