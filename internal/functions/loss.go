package functions

import (
	"fmt"
	"math"

	"github.com/chewxy/math32"

	"github.com/born-ml/nnrt/internal/tensor"
)

// HuberLossConfig configures HuberLoss.
type HuberLossConfig struct {
	Delta float32 `yaml:"delta" json:"delta"`
}

// EpsilonInsensitiveLossConfig configures EpsilonInsensitiveLoss.
type EpsilonInsensitiveLossConfig struct {
	Epsilon float32 `yaml:"epsilon" json:"epsilon"`
}

func (r *Registry) registerLosses() {
	r.add(CodeSigmoidCrossEntropy, nil, binary(sigmoidCrossEntropy))
	r.add(CodeBinaryCrossEntropy, nil, binary(binaryCrossEntropy))
	r.add(CodeSoftmaxCrossEntropy, newConfig[AxisConfig], crossEntropy(true))
	r.add(CodeCategoricalCrossEntropy, newConfig[AxisConfig], crossEntropy(false))
	r.add(CodeSquaredError, nil, binary(squaredError))
	r.add(CodeAbsoluteError, nil, binary(func(a, b float32) float32 { return math32.Abs(a - b) }))
	r.add(CodeHuberLoss, newConfig[HuberLossConfig], allocateHuberLoss)
	r.add(CodeEpsilonInsensitiveLoss, newConfig[EpsilonInsensitiveLossConfig], allocateEpsilonInsensitiveLoss)
	r.add(CodeKLMultinomial, newConfig[BaseAxisConfig], allocateKLMultinomial)
}

// safeLog clamps its argument to the smallest positive float32.
func safeLog(x float32) float32 {
	return math32.Log(max(x, math.SmallestNonzeroFloat32))
}

func sigmoidCrossEntropy(x, t float32) float32 {
	return max(x, 0) - x*t + math32.Log1p(math32.Exp(-math32.Abs(x)))
}

func squaredError(a, b float32) float32 {
	d := a - b
	return d * d
}

func binaryCrossEntropy(x, t float32) float32 {
	return -(t*safeLog(x) + (1-t)*safeLog(1-x))
}

func allocateHuberLoss(f *Function) (Kernel, error) {
	cfg, err := configOf[HuberLossConfig](f)
	if err != nil {
		return nil, err
	}
	delta := cfg.Delta
	if delta == 0 {
		delta = 1
	}
	return allocateBinary(f, func(a, b float32) float32 {
		d := math32.Abs(a - b)
		if d < delta {
			return d * d
		}
		return delta * (2*d - delta)
	}, false)
}

func allocateEpsilonInsensitiveLoss(f *Function) (Kernel, error) {
	cfg, err := configOf[EpsilonInsensitiveLossConfig](f)
	if err != nil {
		return nil, err
	}
	eps := cfg.Epsilon
	return allocateBinary(f, func(a, b float32) float32 {
		return max(math32.Abs(a-b)-eps, 0)
	}, false)
}

// crossEntropyKernel picks the class given by an integer label along the
// class axis. With softmax the input holds logits, otherwise probabilities.
type crossEntropyKernel struct {
	geo     axisGeometry
	softmax bool
	input   []float32
	label   tensor.Getter
	output  []float32
}

func crossEntropy(softmax bool) Allocator {
	return func(f *Function) (Kernel, error) {
		cfg, err := configOf[AxisConfig](f)
		if err != nil {
			return nil, err
		}
		if err := checkArity(f, 2, 1); err != nil {
			return nil, err
		}
		x, t, y := f.Inputs[0], f.Inputs[1], f.Outputs[0]
		if !x.IsFloat() || !y.IsFloat() {
			return nil, fmt.Errorf("%w: scores and loss must be float", ErrUnimplemented)
		}
		geo, axis, err := newAxisGeometry(x.Shape, cfg.Axis)
		if err != nil {
			return nil, err
		}
		want := x.Shape.Clone()
		want[axis] = 1
		if t.Len() != want.NumElements() {
			return nil, fmt.Errorf("%w: labels %v, want %v", ErrInvalidShape, t.Shape, want)
		}
		if err := checkOutputSize(y, want); err != nil {
			return nil, err
		}
		return &crossEntropyKernel{
			geo:     geo,
			softmax: softmax,
			input:   x.Data,
			label:   t.Getter(),
			output:  y.Data,
		}, nil
	}
}

func (k *crossEntropyKernel) Exec() {
	n, inner := k.geo.n, k.geo.inner
	for o := 0; o < k.geo.outer; o++ {
		for i := 0; i < inner; i++ {
			base := o*n*inner + i
			pos := o*inner + i
			label := int(k.label(pos))
			if label < 0 || label >= n {
				k.output[pos] = 0
				continue
			}
			if !k.softmax {
				k.output[pos] = -safeLog(k.input[base+label*inner])
				continue
			}
			maxVal := k.input[base]
			for c := 1; c < n; c++ {
				maxVal = max(maxVal, k.input[base+c*inner])
			}
			var sum float32
			for c := 0; c < n; c++ {
				sum += math32.Exp(k.input[base+c*inner] - maxVal)
			}
			k.output[pos] = -(k.input[base+label*inner] - maxVal - math32.Log(sum))
		}
	}
}

// klMultinomialKernel sums p * (log p - log q) over the axes from base_axis.
type klMultinomialKernel struct {
	outer  int
	block  int
	p, q   []float32
	output []float32
}

func allocateKLMultinomial(f *Function) (Kernel, error) {
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
	p, q, y := f.Inputs[0], f.Inputs[1], f.Outputs[0]
	if !p.Shape.Equal(q.Shape) {
		return nil, fmt.Errorf("%w: %v vs %v", ErrInvalidShape, p.Shape, q.Shape)
	}
	axis, err := normalizeAxis(cfg.BaseAxis, len(p.Shape))
	if err != nil {
		return nil, err
	}
	outer := p.Shape.SizeRange(0, axis)
	if y.Len() != outer {
		return nil, fmt.Errorf("%w: output %v, want %d elements", ErrInvalidShape, y.Shape, outer)
	}
	return &klMultinomialKernel{
		outer:  outer,
		block:  p.Shape.SizeFrom(axis),
		p:      p.Data,
		q:      q.Data,
		output: y.Data,
	}, nil
}

func (k *klMultinomialKernel) Exec() {
	for o := 0; o < k.outer; o++ {
		var acc float32
		for i := o * k.block; i < (o+1)*k.block; i++ {
			acc += k.p[i] * (safeLog(k.p[i]) - safeLog(k.q[i]))
		}
		k.output[o] = acc
	}
}
