package functions

import (
	"fmt"
	"slices"

	"github.com/chewxy/math32"

	"github.com/born-ml/nnrt/internal/tensor"
)

// ReductionConfig configures Sum, Mean, Max, Min and Prod. An empty Axes list
// reduces over every axis.
type ReductionConfig struct {
	Axes     []int `yaml:"axes" json:"axes"`
	KeepDims bool  `yaml:"keep_dims" json:"keep_dims"`
}

type reduceMode int

const (
	reduceSum reduceMode = iota
	reduceMean
	reduceMax
	reduceMin
	reduceProd
)

// registerReductions adds the reduction families.
func (r *Registry) registerReductions() {
	r.add(CodeSum, newConfig[ReductionConfig], reduction(reduceSum))
	r.add(CodeMean, newConfig[ReductionConfig], reduction(reduceMean))
	r.add(CodeMax, newConfig[ReductionConfig], reduction(reduceMax))
	r.add(CodeMin, newConfig[ReductionConfig], reduction(reduceMin))
	r.add(CodeProd, newConfig[ReductionConfig], reduction(reduceProd))
	r.add(CodeReduceSum, nil, reduceAll(reduceSum))
	r.add(CodeReduceMean, nil, reduceAll(reduceMean))
}

// reductionKernel folds the input over the reduced axes for every output
// position. base[o] is the input offset of output o with all reduced
// coordinates at zero; inner lists the offsets spanned by the reduced axes in
// row-major order, so ties resolve to the first element visited.
type reductionKernel struct {
	mode   reduceMode
	base   []int
	inner  []int
	input  []float32
	output []float32
}

// ReducedShape returns the output shape of a reduction of shape over axes.
func ReducedShape(shape tensor.Shape, axes []int, keepDims bool) (tensor.Shape, []int, error) {
	reduced := make([]bool, len(shape))
	if len(axes) == 0 {
		for i := range reduced {
			reduced[i] = true
		}
	}
	for _, axis := range axes {
		a, err := normalizeAxis(axis, len(shape))
		if err != nil {
			return nil, nil, err
		}
		reduced[a] = true
	}

	var out tensor.Shape
	var list []int
	for i, dim := range shape {
		switch {
		case !reduced[i]:
			out = append(out, dim)
		case keepDims:
			out = append(out, 1)
			list = append(list, i)
		default:
			list = append(list, i)
		}
	}
	if out == nil {
		out = tensor.Shape{}
	}
	return out, list, nil
}

func allocateReduction(f *Function, mode reduceMode, axes []int, keepDims bool) (Kernel, error) {
	if err := checkArity(f, 1, 1); err != nil {
		return nil, err
	}
	if err := requireFloat(f); err != nil {
		return nil, err
	}
	in, out := f.Inputs[0], f.Outputs[0]
	outShape, reducedAxes, err := ReducedShape(in.Shape, axes, keepDims)
	if err != nil {
		return nil, err
	}
	if err := checkOutputSize(out, outShape); err != nil {
		return nil, err
	}

	strides := in.Shape.ComputeStrides()
	var keptShape, keptStrides, redShape, redStrides []int
	for i, dim := range in.Shape {
		if slices.Contains(reducedAxes, i) {
			redShape = append(redShape, dim)
			redStrides = append(redStrides, strides[i])
		} else {
			keptShape = append(keptShape, dim)
			keptStrides = append(keptStrides, strides[i])
		}
	}

	k := &reductionKernel{
		mode:   mode,
		base:   offsetTable(keptShape, keptStrides),
		inner:  offsetTable(redShape, redStrides),
		input:  in.Data,
		output: out.Data,
	}
	return k, nil
}

// offsetTable lists sum(idx[d]*strides[d]) for every index of shape in
// row-major order.
func offsetTable(shape, strides []int) []int {
	table := make([]int, 0, tensor.Shape(shape).NumElements())
	forEachIndex(shape, func(_ int, idx []int) {
		off := 0
		for d, c := range idx {
			off += c * strides[d]
		}
		table = append(table, off)
	})
	return table
}

func reduction(mode reduceMode) Allocator {
	return func(f *Function) (Kernel, error) {
		cfg, err := configOf[ReductionConfig](f)
		if err != nil {
			return nil, err
		}
		return allocateReduction(f, mode, cfg.Axes, cfg.KeepDims)
	}
}

func reduceAll(mode reduceMode) Allocator {
	return func(f *Function) (Kernel, error) {
		if len(f.Outputs) == 1 && f.Outputs[0].Len() != 1 {
			return nil, fmt.Errorf("%w: output %v must hold one element", ErrInvalidShape, f.Outputs[0].Shape)
		}
		return allocateReduction(f, mode, nil, false)
	}
}

func (k *reductionKernel) Exec() {
	in := k.input
	switch k.mode {
	case reduceSum, reduceMean:
		scale := float32(1)
		if k.mode == reduceMean {
			scale = 1 / float32(len(k.inner))
		}
		for o, b := range k.base {
			var acc float32
			for _, off := range k.inner {
				acc += in[b+off]
			}
			k.output[o] = acc * scale
		}
	case reduceProd:
		for o, b := range k.base {
			acc := float32(1)
			for _, off := range k.inner {
				acc *= in[b+off]
			}
			k.output[o] = acc
		}
	case reduceMax:
		for o, b := range k.base {
			acc := math32.Inf(-1)
			for _, off := range k.inner {
				if v := in[b+off]; v > acc {
					acc = v
				}
			}
			k.output[o] = acc
		}
	case reduceMin:
		for o, b := range k.base {
			acc := math32.Inf(1)
			for _, off := range k.inner {
				if v := in[b+off]; v < acc {
					acc = v
				}
			}
			k.output[o] = acc
		}
	}
}
