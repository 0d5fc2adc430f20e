package functions

import (
	"fmt"

	"github.com/born-ml/nnrt/internal/tensor"
)

// unaryKernel applies an elementwise transformation to float buffers.
type unaryKernel struct {
	op     tensor.UnaryOp
	input  []float32
	output []float32
	size   int
}

func (k *unaryKernel) Exec() {
	tensor.ApplyUnary(k.input, k.op, k.output, k.size)
}

// unaryGenericKernel is unaryKernel for variables stored as fixed-point.
type unaryGenericKernel struct {
	op   tensor.UnaryOp
	get  tensor.Getter
	set  tensor.Setter
	size int
}

func (k *unaryGenericKernel) Exec() {
	tensor.ApplyUnaryGeneric(k.get, k.op, k.set, k.size)
}

// allocateUnary is the shared allocation for every 1-in/1-out elementwise
// family. When inplace is set the output variable is rebound to the input
// buffer so both names refer to the same storage.
func allocateUnary(f *Function, op tensor.UnaryOp, inplace bool) (Kernel, error) {
	if err := checkArity(f, 1, 1); err != nil {
		return nil, err
	}
	in, out := f.Inputs[0], f.Outputs[0]
	if err := sameSize(in, out); err != nil {
		return nil, err
	}
	size := out.Len()

	if inplace {
		if in.Type != out.Type {
			return nil, fmt.Errorf("%w: in-place %v into %v", ErrUnimplemented, in.Type, out.Type)
		}
		aliasBuffer(out, in)
	}

	if allFloat(in, out) {
		return &unaryKernel{op: op, input: in.Data, output: out.Data, size: size}, nil
	}
	return &unaryGenericKernel{op: op, get: in.Getter(), set: out.Setter(), size: size}, nil
}

// unary registers a parameterless elementwise family.
func unary(op tensor.UnaryOp) Allocator {
	return func(f *Function) (Kernel, error) {
		return allocateUnary(f, op, false)
	}
}

func aliasBuffer(dst, src *tensor.Variable) {
	dst.Data = src.Data
	dst.Int16 = src.Int16
	dst.Int8 = src.Int8
	dst.Bits = src.Bits
	dst.Coefficient = src.Coefficient
	dst.FPPos = src.FPPos
}
