package functions

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/born-ml/nnrt/internal/tensor"
)

// SignConfig configures Sign. Alpha is the output for zero input.
type SignConfig struct {
	Alpha float32 `yaml:"alpha" json:"alpha"`
}

func (c *SignConfig) setDefaults() { c.Alpha = 1 }

// ConstantConfig configures Constant.
type ConstantConfig struct {
	Val   float32 `yaml:"val" json:"val"`
	Shape []int   `yaml:"shape" json:"shape"`
}

// registerMath adds elementwise math families and the trivial pass-through
// families. Each trivial kernel is one UnaryOp over the shared loop.
func (r *Registry) registerMath() {
	r.add(CodeSign, newConfig[SignConfig], allocateSign)
	r.add(CodeConstant, newConfig[ConstantConfig], allocateConstant)
	r.add(CodeAbs, nil, unary(math32.Abs))
	r.add(CodeExp, nil, unary(math32.Exp))
	r.add(CodeLog, nil, unary(math32.Log))
	r.add(CodeIdentity, nil, unary(identity))
	r.add(CodeUnlink, nil, unary(identity))
	r.add(CodeSink, nil, allocateSink)
	r.add(CodeBatchMatmul, newConfig[BatchMatmulConfig], allocateBatchMatmul)
}

func identity(x float32) float32 { return x }

func allocateSign(f *Function) (Kernel, error) {
	cfg, err := configOf[SignConfig](f)
	if err != nil {
		return nil, err
	}
	alpha := cfg.Alpha
	return allocateUnary(f, func(x float32) float32 {
		switch {
		case x > 0:
			return 1
		case x < 0:
			return -1
		default:
			return alpha
		}
	}, false)
}

type constantKernel struct {
	val    float32
	output []float32
}

func allocateConstant(f *Function) (Kernel, error) {
	cfg, err := configOf[ConstantConfig](f)
	if err != nil {
		return nil, err
	}
	if err := checkArity(f, 0, 1); err != nil {
		return nil, err
	}
	if err := requireFloat(f); err != nil {
		return nil, err
	}
	out := f.Outputs[0]
	if len(cfg.Shape) > 0 {
		if err := checkOutputSize(out, tensor.Shape(cfg.Shape)); err != nil {
			return nil, err
		}
	}
	return &constantKernel{val: cfg.Val, output: out.Data}, nil
}

func (k *constantKernel) Exec() {
	for i := range k.output {
		k.output[i] = k.val
	}
}

// sinkKernel terminates a graph branch; its output is a single 1.
type sinkKernel struct {
	output []float32
}

func allocateSink(f *Function) (Kernel, error) {
	if len(f.Inputs) == 0 {
		return nil, fmt.Errorf("%w: want at least 1, got 0", ErrInvalidNumOfInputs)
	}
	if len(f.Outputs) != 1 {
		return nil, fmt.Errorf("%w: want 1, got %d", ErrInvalidNumOfOutputs, len(f.Outputs))
	}
	if err := requireFloat(f); err != nil {
		return nil, err
	}
	return &sinkKernel{output: f.Outputs[0].Data}, nil
}

func (k *sinkKernel) Exec() {
	for i := range k.output {
		k.output[i] = 1
	}
}
