package functions

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/born-ml/nnrt/internal/tensor"
)

// ReLUConfig configures ReLU.
type ReLUConfig struct {
	Inplace bool `yaml:"inplace" json:"inplace"`
}

// LeakyReLUConfig configures LeakyReLU.
type LeakyReLUConfig struct {
	Alpha float32 `yaml:"alpha" json:"alpha"`
}

func (c *LeakyReLUConfig) setDefaults() { c.Alpha = 0.1 }

// ELUConfig configures ELU.
type ELUConfig struct {
	Alpha float32 `yaml:"alpha" json:"alpha"`
}

func (c *ELUConfig) setDefaults() { c.Alpha = 1 }

// SELUConfig configures SELU.
type SELUConfig struct {
	Scale float32 `yaml:"scale" json:"scale"`
	Alpha float32 `yaml:"alpha" json:"alpha"`
}

func (c *SELUConfig) setDefaults() {
	c.Scale = 1.05070098735548
	c.Alpha = 1.673263242354377
}

// AxisConfig configures families parameterized by a single axis
// (Softmax, CReLU, Concatenate, Split, Stack, ...).
type AxisConfig struct {
	Axis int `yaml:"axis" json:"axis"`
}

// CELUConfig configures CELU.
type CELUConfig struct {
	Alpha float32 `yaml:"alpha" json:"alpha"`
	Axis  int     `yaml:"axis" json:"axis"`
}

func (c *CELUConfig) setDefaults() {
	c.Alpha = 1
	c.Axis = 1
}

// BaseAxisConfig configures families parameterized by a base axis
// (PReLU, KLMultinomial).
type BaseAxisConfig struct {
	BaseAxis int `yaml:"base_axis" json:"base_axis"`
}

func (c *BaseAxisConfig) setDefaults() { c.BaseAxis = 1 }

// registerActivations adds activation families to the registry.
func (r *Registry) registerActivations() {
	r.add(CodeSigmoid, nil, unary(sigmoid))
	r.add(CodeSwish, nil, unary(func(x float32) float32 { return x * sigmoid(x) }))
	r.add(CodeTanh, nil, unary(math32.Tanh))
	r.add(CodeReLU, newConfig[ReLUConfig], allocateReLU)
	r.add(CodeLeakyReLU, newConfig[LeakyReLUConfig], allocateLeakyReLU)
	r.add(CodeSoftmax, newConfig[AxisConfig], allocateSoftmax)
	r.add(CodeELU, newConfig[ELUConfig], allocateELU)
	r.add(CodeSELU, newConfig[SELUConfig], allocateSELU)
	r.add(CodeCReLU, newConfig[AxisConfig], allocateCReLU)
	r.add(CodeCELU, newConfig[CELUConfig], allocateCELU)
	r.add(CodePReLU, newConfig[BaseAxisConfig], allocatePReLU)
}

func sigmoid(x float32) float32 {
	return 1 / (1 + math32.Exp(-x))
}

func relu(x float32) float32 {
	if x > 0 {
		return x
	}
	return 0
}

func elu(alpha float32) tensor.UnaryOp {
	return func(x float32) float32 {
		if x >= 0 {
			return x
		}
		return alpha * (math32.Exp(x) - 1)
	}
}

func allocateReLU(f *Function) (Kernel, error) {
	cfg, err := configOf[ReLUConfig](f)
	if err != nil {
		return nil, err
	}
	return allocateUnary(f, relu, cfg.Inplace)
}

func allocateLeakyReLU(f *Function) (Kernel, error) {
	cfg, err := configOf[LeakyReLUConfig](f)
	if err != nil {
		return nil, err
	}
	alpha := cfg.Alpha
	return allocateUnary(f, func(x float32) float32 {
		if x > 0 {
			return x
		}
		return alpha * x
	}, false)
}

func allocateELU(f *Function) (Kernel, error) {
	cfg, err := configOf[ELUConfig](f)
	if err != nil {
		return nil, err
	}
	return allocateUnary(f, elu(cfg.Alpha), false)
}

func allocateSELU(f *Function) (Kernel, error) {
	cfg, err := configOf[SELUConfig](f)
	if err != nil {
		return nil, err
	}
	scale, inner := cfg.Scale, elu(cfg.Alpha)
	return allocateUnary(f, func(x float32) float32 { return scale * inner(x) }, false)
}

// axisGeometry splits a shape around one axis: outer dims, the axis length and
// the inner block size.
type axisGeometry struct {
	outer, n, inner int
}

func newAxisGeometry(shape tensor.Shape, axis int) (axisGeometry, int, error) {
	a, err := normalizeAxis(axis, len(shape))
	if err != nil {
		return axisGeometry{}, 0, err
	}
	return axisGeometry{
		outer: shape.SizeRange(0, a),
		n:     shape[a],
		inner: shape.SizeFrom(a + 1),
	}, a, nil
}

type softmaxKernel struct {
	geo    axisGeometry
	input  []float32
	output []float32
}

func allocateSoftmax(f *Function) (Kernel, error) {
	cfg, err := configOf[AxisConfig](f)
	if err != nil {
		return nil, err
	}
	if err := checkArity(f, 1, 1); err != nil {
		return nil, err
	}
	if err := requireFloat(f); err != nil {
		return nil, err
	}
	in, out := f.Inputs[0], f.Outputs[0]
	if err := sameSize(in, out); err != nil {
		return nil, err
	}
	geo, _, err := newAxisGeometry(in.Shape, cfg.Axis)
	if err != nil {
		return nil, err
	}
	return &softmaxKernel{geo: geo, input: in.Data, output: out.Data}, nil
}

func (k *softmaxKernel) Exec() {
	n, inner := k.geo.n, k.geo.inner
	for o := 0; o < k.geo.outer; o++ {
		for i := 0; i < inner; i++ {
			base := o*n*inner + i
			maxVal := k.input[base]
			for c := 1; c < n; c++ {
				maxVal = max(maxVal, k.input[base+c*inner])
			}
			var sum float32
			for c := 0; c < n; c++ {
				e := math32.Exp(k.input[base+c*inner] - maxVal)
				k.output[base+c*inner] = e
				sum += e
			}
			for c := 0; c < n; c++ {
				k.output[base+c*inner] /= sum
			}
		}
	}
}

// concatActivationKernel writes op(x) and op(-x) as the two halves of the
// doubled axis (CReLU, CELU).
type concatActivationKernel struct {
	op     tensor.UnaryOp
	outer  int
	block  int
	input  []float32
	output []float32
}

func allocateConcatActivation(f *Function, axis int, op tensor.UnaryOp) (Kernel, error) {
	if err := checkArity(f, 1, 1); err != nil {
		return nil, err
	}
	if err := requireFloat(f); err != nil {
		return nil, err
	}
	in, out := f.Inputs[0], f.Outputs[0]
	a, err := normalizeAxis(axis, len(in.Shape))
	if err != nil {
		return nil, err
	}
	want := in.Shape.Clone()
	want[a] *= 2
	if err := checkOutputSize(out, want); err != nil {
		return nil, err
	}
	return &concatActivationKernel{
		op:     op,
		outer:  in.Shape.SizeRange(0, a),
		block:  in.Shape.SizeFrom(a),
		input:  in.Data,
		output: out.Data,
	}, nil
}

func (k *concatActivationKernel) Exec() {
	for o := 0; o < k.outer; o++ {
		src := k.input[o*k.block : (o+1)*k.block]
		dst := k.output[2*o*k.block : 2*(o+1)*k.block]
		for i, x := range src {
			dst[i] = k.op(x)
			dst[k.block+i] = k.op(-x)
		}
	}
}

func allocateCReLU(f *Function) (Kernel, error) {
	cfg, err := configOf[AxisConfig](f)
	if err != nil {
		return nil, err
	}
	return allocateConcatActivation(f, cfg.Axis, relu)
}

func allocateCELU(f *Function) (Kernel, error) {
	cfg, err := configOf[CELUConfig](f)
	if err != nil {
		return nil, err
	}
	return allocateConcatActivation(f, cfg.Axis, elu(cfg.Alpha))
}

type preluKernel struct {
	input  []float32
	slope  []float32
	output []float32
	// slope index = (i / inner) % channels; channels == 1 shares one slope.
	inner    int
	channels int
}

func allocatePReLU(f *Function) (Kernel, error) {
	cfg, err := configOf[BaseAxisConfig](f)
	if err != nil {
		return nil, err
	}
	if err := checkArity(f, 2, 1); err != nil {
		return nil, err
	}
	if err := requireFloat(f); err != nil {
		return nil, err
	}
	x, slope, y := f.Inputs[0], f.Inputs[1], f.Outputs[0]
	if err := sameSize(x, y); err != nil {
		return nil, err
	}
	k := &preluKernel{input: x.Data, slope: slope.Data, output: y.Data, inner: 1, channels: 1}
	if n := slope.Len(); n != 1 {
		axis, err := normalizeAxis(cfg.BaseAxis, len(x.Shape))
		if err != nil {
			return nil, err
		}
		if x.Shape[axis] != n {
			return nil, fmt.Errorf("%w: slope size %d != channels %d", ErrInvalidShape, n, x.Shape[axis])
		}
		k.channels = n
		k.inner = x.Shape.SizeFrom(axis + 1)
	}
	return k, nil
}

func (k *preluKernel) Exec() {
	for i, x := range k.input {
		if x > 0 {
			k.output[i] = x
			continue
		}
		k.output[i] = k.slope[(i/k.inner)%k.channels] * x
	}
}
