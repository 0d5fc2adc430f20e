package functions

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/born-ml/nnrt/internal/tensor"
)

// AffineConfig configures Affine, BinaryConnectAffine and BinaryWeightAffine.
type AffineConfig struct {
	BaseAxis int `yaml:"base_axis" json:"base_axis"`
}

func (c *AffineConfig) setDefaults() { c.BaseAxis = 1 }

// operand is a kernel's view of an input variable. data is set for float
// variables; get works for every element kind.
type operand struct {
	data []float32
	get  tensor.Getter
}

func operandOf(v *tensor.Variable) operand {
	if v == nil {
		return operand{}
	}
	o := operand{get: v.Getter()}
	if v.IsFloat() {
		o.data = v.Data
	}
	return o
}

func (o operand) present() bool { return o.get != nil }

// result is a kernel's view of an output variable.
type result struct {
	data []float32
	set  tensor.Setter
}

func resultOf(v *tensor.Variable) result {
	r := result{set: v.Setter()}
	if v.IsFloat() {
		r.data = v.Data
	}
	return r
}

// layerSlots names the input positions of a weighted layer. Unused slots are
// -1. Bias is optional in every variant and appears after the others.
type layerSlots struct {
	x, weight, alpha, bias int
}

var (
	plainSlots         = layerSlots{x: 0, weight: 1, alpha: -1, bias: 2}
	binaryConnectSlots = layerSlots{x: 0, weight: 2, alpha: -1, bias: 3}
	binaryWeightSlots  = layerSlots{x: 0, weight: 2, alpha: 3, bias: 4}
	inqSlots           = layerSlots{x: 0, weight: 1, alpha: -1, bias: 3}
)

func (s layerSlots) required() int {
	return s.bias
}

func (s layerSlots) input(f *Function, slot int) *tensor.Variable {
	if slot < 0 || slot >= len(f.Inputs) {
		return nil
	}
	return f.Inputs[slot]
}

func (s layerSlots) check(f *Function) error {
	return checkInputRange(f, s.required(), s.required()+1, 1)
}

// affineKernel computes y[o, j] = alpha[j] * sum_i x[o, i] * w[i, j] + b[j].
// run is the strategy chosen at allocation; prepare, when set, refreshes the
// weight operand before every run.
type affineKernel struct {
	outer, inner, units int

	x, w, b, alpha operand
	y              result

	prepare func()
	run     func()
}

func allocateAffine(f *Function) (Kernel, error) {
	cfg, err := configOf[AffineConfig](f)
	if err != nil {
		return nil, err
	}
	return newAffineKernel(f, cfg.BaseAxis, plainSlots)
}

func newAffineKernel(f *Function, baseAxis int, slots layerSlots) (*affineKernel, error) {
	if err := slots.check(f); err != nil {
		return nil, err
	}
	x, w, y := slots.input(f, slots.x), slots.input(f, slots.weight), f.Outputs[0]
	axis, err := normalizeAxis(baseAxis, len(x.Shape))
	if err != nil {
		return nil, err
	}

	k := &affineKernel{
		outer: x.Shape.SizeRange(0, axis),
		inner: x.Shape.SizeFrom(axis),
	}
	if len(w.Shape) < 1 || w.Shape[0] != k.inner {
		return nil, fmt.Errorf("%w: weight %v does not match input %v at base axis %d", ErrInvalidShape, w.Shape, x.Shape, axis)
	}
	k.units = w.Shape.SizeFrom(1)
	if y.Len() != k.outer*k.units {
		return nil, fmt.Errorf("%w: output %v, want %d x %d", ErrInvalidShape, y.Shape, k.outer, k.units)
	}
	if b := slots.input(f, slots.bias); b != nil {
		if b.Len() != k.units {
			return nil, fmt.Errorf("%w: bias %v, want %d elements", ErrInvalidShape, b.Shape, k.units)
		}
		k.b = operandOf(b)
	}
	if a := slots.input(f, slots.alpha); a != nil {
		if a.Len() != k.units {
			return nil, fmt.Errorf("%w: alpha %v, want %d elements", ErrInvalidShape, a.Shape, k.units)
		}
		k.alpha = operandOf(a)
	}
	k.x, k.w, k.y = operandOf(x), operandOf(w), resultOf(y)
	k.selectStrategy()
	return k, nil
}

func (k *affineKernel) selectStrategy() {
	if k.x.data != nil && k.w.data != nil && k.y.data != nil {
		k.run = k.gemm
		return
	}
	k.run = k.direct
}

func (k *affineKernel) Exec() {
	if k.prepare != nil {
		k.prepare()
	}
	k.run()
}

func (k *affineKernel) gemm() {
	blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
		blas32.General{Rows: k.outer, Cols: k.inner, Stride: k.inner, Data: k.x.data},
		blas32.General{Rows: k.inner, Cols: k.units, Stride: k.units, Data: k.w.data},
		0,
		blas32.General{Rows: k.outer, Cols: k.units, Stride: k.units, Data: k.y.data})
	if !k.alpha.present() && !k.b.present() {
		return
	}
	for o := 0; o < k.outer; o++ {
		row := k.y.data[o*k.units : (o+1)*k.units]
		for j := range row {
			row[j] = k.epilogue(j, row[j])
		}
	}
}

func (k *affineKernel) direct() {
	for o := 0; o < k.outer; o++ {
		for j := 0; j < k.units; j++ {
			var acc float32
			for i := 0; i < k.inner; i++ {
				acc += k.x.get(o*k.inner+i) * k.w.get(i*k.units+j)
			}
			k.y.set(o*k.units+j, k.epilogue(j, acc))
		}
	}
}

func (k *affineKernel) epilogue(j int, acc float32) float32 {
	if k.alpha.present() {
		acc *= k.alpha.get(j)
	}
	if k.b.present() {
		acc += k.b.get(j)
	}
	return acc
}
