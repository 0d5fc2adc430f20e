package functions

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/born-ml/nnrt/internal/tensor"
)

// ScalarConfig configures the *Scalar families.
type ScalarConfig struct {
	Val float32 `yaml:"val" json:"val"`
}

// Add2Config configures Add2.
type Add2Config struct {
	Inplace bool `yaml:"inplace" json:"inplace"`
}

// registerArithmetic adds two-operand and scalar arithmetic families.
func (r *Registry) registerArithmetic() {
	r.add(CodeAdd2, newConfig[Add2Config], allocateAdd2)
	r.add(CodeBcAdd2, nil, binary(add))
	r.add(CodeSub2, nil, binary(func(a, b float32) float32 { return a - b }))
	r.add(CodeMul2, nil, binary(func(a, b float32) float32 { return a * b }))
	r.add(CodeDiv2, nil, binary(func(a, b float32) float32 { return a / b }))
	r.add(CodePow2, nil, binary(math32.Pow))
	r.add(CodeMinimum2, nil, binary(minimum))
	r.add(CodeMaximum2, nil, binary(maximum))

	r.add(CodeAddScalar, newConfig[ScalarConfig], scalar(add))
	r.add(CodeMulScalar, newConfig[ScalarConfig], scalar(func(x, v float32) float32 { return x * v }))
	r.add(CodePowScalar, newConfig[ScalarConfig], scalar(math32.Pow))
	r.add(CodeRSubScalar, newConfig[ScalarConfig], scalar(func(x, v float32) float32 { return v - x }))
	r.add(CodeRDivScalar, newConfig[ScalarConfig], scalar(func(x, v float32) float32 { return v / x }))
	r.add(CodeRPowScalar, newConfig[ScalarConfig], scalar(func(x, v float32) float32 { return math32.Pow(v, x) }))
	r.add(CodeMinimumScalar, newConfig[ScalarConfig], scalar(minimum))
	r.add(CodeMaximumScalar, newConfig[ScalarConfig], scalar(maximum))
}

func add(a, b float32) float32 { return a + b }

func minimum(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func maximum(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

// scalarKernel is the float path of every *Scalar family.
type scalarKernel struct {
	op     tensor.BinaryOp
	val    float32
	input  []float32
	output []float32
	size   int
}

func (k *scalarKernel) Exec() {
	tensor.ApplyScalar(k.input, k.val, k.op, k.output, k.size)
}

type scalarGenericKernel struct {
	op   tensor.BinaryOp
	val  float32
	get  tensor.Getter
	set  tensor.Setter
	size int
}

func (k *scalarGenericKernel) Exec() {
	tensor.ApplyScalarGeneric(k.get, k.val, k.op, k.set, k.size)
}

func allocateScalar(f *Function, op tensor.BinaryOp, val float32) (Kernel, error) {
	if err := checkArity(f, 1, 1); err != nil {
		return nil, err
	}
	in, out := f.Inputs[0], f.Outputs[0]
	if err := sameSize(in, out); err != nil {
		return nil, err
	}
	if allFloat(in, out) {
		return &scalarKernel{op: op, val: val, input: in.Data, output: out.Data, size: out.Len()}, nil
	}
	return &scalarGenericKernel{op: op, val: val, get: in.Getter(), set: out.Setter(), size: out.Len()}, nil
}

func scalar(op tensor.BinaryOp) Allocator {
	return func(f *Function) (Kernel, error) {
		cfg, err := configOf[ScalarConfig](f)
		if err != nil {
			return nil, err
		}
		return allocateScalar(f, op, cfg.Val)
	}
}

// binaryKernel is the float path of every two-operand family. Operands are
// broadcast against each other through bc.
type binaryKernel struct {
	op     tensor.BinaryOp
	a, b   []float32
	output []float32
	bc     *tensor.Broadcaster
}

func (k *binaryKernel) Exec() {
	tensor.ApplyBroadcast(k.a, k.b, k.op, k.output, k.bc)
}

type binaryGenericKernel struct {
	op   tensor.BinaryOp
	a, b tensor.Getter
	set  tensor.Setter
	bc   *tensor.Broadcaster
}

func (k *binaryGenericKernel) Exec() {
	tensor.ApplyBroadcastGeneric(k.a, k.b, k.op, k.set, k.bc)
}

func allocateBinary(f *Function, op tensor.BinaryOp, inplace bool) (Kernel, error) {
	if err := checkArity(f, 2, 1); err != nil {
		return nil, err
	}
	a, b, out := f.Inputs[0], f.Inputs[1], f.Outputs[0]
	bc, err := tensor.NewBroadcaster(a.Shape, b.Shape)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidShape, err)
	}
	if out.Len() != bc.Size {
		return nil, fmt.Errorf("%w: output %v, want %v", ErrInvalidShape, out.Shape, bc.Shape)
	}
	if inplace {
		if a.Len() != bc.Size || a.Type != out.Type {
			return nil, fmt.Errorf("%w: in-place operand %v cannot hold result %v", ErrInvalidShape, a.Shape, bc.Shape)
		}
		aliasBuffer(out, a)
	}
	if allFloat(a, b, out) {
		return &binaryKernel{op: op, a: a.Data, b: b.Data, output: out.Data, bc: bc}, nil
	}
	return &binaryGenericKernel{op: op, a: a.Getter(), b: b.Getter(), set: out.Setter(), bc: bc}, nil
}

func binary(op tensor.BinaryOp) Allocator {
	return func(f *Function) (Kernel, error) {
		return allocateBinary(f, op, false)
	}
}

func allocateAdd2(f *Function) (Kernel, error) {
	cfg, err := configOf[Add2Config](f)
	if err != nil {
		return nil, err
	}
	return allocateBinary(f, add, cfg.Inplace)
}
