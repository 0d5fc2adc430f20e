package functions

import (
	"fmt"

	"github.com/born-ml/nnrt/internal/tensor"
)

// PoolingConfig configures MaxPooling, AveragePooling and SumPooling. The
// last len(Kernel) axes are pooled. An empty Stride defaults to Kernel and an
// empty Pad to zeros.
type PoolingConfig struct {
	Kernel       []int `yaml:"kernel" json:"kernel"`
	Stride       []int `yaml:"stride" json:"stride"`
	IgnoreBorder bool  `yaml:"ignore_border" json:"ignore_border"`
	Pad          []int `yaml:"pad" json:"pad"`
	IncludingPad bool  `yaml:"including_pad" json:"including_pad"`
}

func (c *PoolingConfig) setDefaults() {
	c.IgnoreBorder = true
	c.IncludingPad = true
}

// UnpoolingConfig configures Unpooling.
type UnpoolingConfig struct {
	Kernel []int `yaml:"kernel" json:"kernel"`
}

type poolMode int

const (
	poolMax poolMode = iota
	poolAverage
	poolSum
)

// registerNeuralNetwork adds the layer families: affine, convolution,
// pooling and embedding, including their binary and INQ variants.
func (r *Registry) registerNeuralNetwork() {
	r.add(CodeAffine, newConfig[AffineConfig], allocateAffine)
	r.add(CodeConvolution, newConfig[ConvolutionConfig], allocateConvolution)
	r.add(CodeDepthwiseConvolution, newConfig[DepthwiseConvolutionConfig], allocateDepthwiseConvolution)
	r.add(CodeDeconvolution, newConfig[ConvolutionConfig], allocateDeconvolution)
	r.add(CodeMaxPooling, newConfig[PoolingConfig], pooling(poolMax))
	r.add(CodeAveragePooling, newConfig[PoolingConfig], pooling(poolAverage))
	r.add(CodeSumPooling, newConfig[PoolingConfig], pooling(poolSum))
	r.add(CodeUnpooling, newConfig[UnpoolingConfig], allocateUnpooling)
	r.add(CodeEmbed, nil, allocateEmbed)
}

// PooledSize returns the number of windows along one axis of length in.
func PooledSize(in, kernel, stride, pad int, ignoreBorder bool) int {
	span := in + 2*pad - kernel
	if ignoreBorder {
		if span < 0 {
			return 0
		}
		return span/stride + 1
	}
	if span <= 0 {
		return 1
	}
	return (span+stride-1)/stride + 1
}

// poolingKernel reduces precomputed windows. windows[p] lists the in-block
// offsets of the real input elements covered by output position p and
// divisors[p] is the element count used by average pooling.
type poolingKernel struct {
	mode     poolMode
	outer    int
	inBlock  int
	windows  [][]int32
	divisors []float32
	input    []float32
	output   []float32
}

func pooling(mode poolMode) Allocator {
	return func(f *Function) (Kernel, error) {
		cfg, err := configOf[PoolingConfig](f)
		if err != nil {
			return nil, err
		}
		return allocatePooling(f, mode, cfg)
	}
}

func allocatePooling(f *Function, mode poolMode, cfg *PoolingConfig) (Kernel, error) {
	if err := checkArity(f, 1, 1); err != nil {
		return nil, err
	}
	if err := requireFloat(f); err != nil {
		return nil, err
	}
	in, out := f.Inputs[0], f.Outputs[0]
	nk := len(cfg.Kernel)
	if nk == 0 || nk > len(in.Shape) {
		return nil, fmt.Errorf("%w: kernel %v for input %v", ErrInvalidConfig, cfg.Kernel, in.Shape)
	}
	stride := cfg.Stride
	if len(stride) == 0 {
		stride = cfg.Kernel
	}
	if len(stride) != nk {
		return nil, fmt.Errorf("%w: stride has %d entries, want %d", ErrInvalidConfig, len(stride), nk)
	}
	pad, err := listOr(cfg.Pad, nk, 0, "pad")
	if err != nil {
		return nil, err
	}

	base := len(in.Shape) - nk
	inSpatial := tensor.Shape(in.Shape[base:])
	outSpatial := make(tensor.Shape, nk)
	for i := range nk {
		if cfg.Kernel[i] <= 0 || stride[i] <= 0 {
			return nil, fmt.Errorf("%w: kernel %v stride %v", ErrInvalidConfig, cfg.Kernel, stride)
		}
		outSpatial[i] = PooledSize(inSpatial[i], cfg.Kernel[i], stride[i], pad[i], cfg.IgnoreBorder)
	}
	want := append(in.Shape[:base:base], outSpatial...)
	if err := checkOutputSize(out, want); err != nil {
		return nil, err
	}

	inStrides := inSpatial.ComputeStrides()
	k := &poolingKernel{
		mode:     mode,
		outer:    in.Shape.SizeRange(0, base),
		inBlock:  inSpatial.NumElements(),
		windows:  make([][]int32, outSpatial.NumElements()),
		divisors: make([]float32, outSpatial.NumElements()),
		input:    in.Data,
		output:   out.Data,
	}

	lo := make([]int, nk)
	hi := make([]int, nk)
	forEachIndex(outSpatial, func(p int, idx []int) {
		padded := 1
		for d := range nk {
			start := idx[d]*stride[d] - pad[d]
			end := start + cfg.Kernel[d]
			padded *= min(end, inSpatial[d]+pad[d]) - max(start, -pad[d])
			lo[d] = max(start, 0)
			hi[d] = min(end, inSpatial[d])
		}
		var window []int32
		windowShape := make(tensor.Shape, nk)
		empty := false
		for d := range nk {
			windowShape[d] = hi[d] - lo[d]
			if windowShape[d] <= 0 {
				empty = true
			}
		}
		if !empty {
			window = make([]int32, 0, windowShape.NumElements())
			forEachIndex(windowShape, func(_ int, w []int) {
				off := 0
				for d := range nk {
					off += (lo[d] + w[d]) * inStrides[d]
				}
				window = append(window, int32(off))
			})
		}
		k.windows[p] = window
		if cfg.IncludingPad {
			k.divisors[p] = float32(padded)
		} else {
			k.divisors[p] = float32(len(window))
		}
	})
	return k, nil
}

func (k *poolingKernel) Exec() {
	outBlock := len(k.windows)
	for o := 0; o < k.outer; o++ {
		in := k.input[o*k.inBlock : (o+1)*k.inBlock]
		out := k.output[o*outBlock : (o+1)*outBlock]
		switch k.mode {
		case poolMax:
			for p, window := range k.windows {
				if len(window) == 0 {
					out[p] = 0
					continue
				}
				acc := in[window[0]]
				for _, off := range window[1:] {
					acc = max(acc, in[off])
				}
				out[p] = acc
			}
		case poolAverage, poolSum:
			for p, window := range k.windows {
				var acc float32
				for _, off := range window {
					acc += in[off]
				}
				if k.mode == poolAverage && k.divisors[p] > 0 {
					acc /= k.divisors[p]
				}
				out[p] = acc
			}
		}
	}
}

func allocateUnpooling(f *Function) (Kernel, error) {
	cfg, err := configOf[UnpoolingConfig](f)
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
	nk := len(cfg.Kernel)
	if nk == 0 || nk > len(in.Shape) {
		return nil, fmt.Errorf("%w: kernel %v for input %v", ErrInvalidConfig, cfg.Kernel, in.Shape)
	}
	base := len(in.Shape) - nk
	outShape := in.Shape.Clone()
	for i, k := range cfg.Kernel {
		if k <= 0 {
			return nil, fmt.Errorf("%w: kernel %v", ErrInvalidConfig, cfg.Kernel)
		}
		outShape[base+i] *= k
	}
	if err := checkOutputSize(out, outShape); err != nil {
		return nil, err
	}

	inStrides := in.Shape.ComputeStrides()
	src := make([]int32, out.Len())
	forEachIndex(outShape, func(flat int, idx []int) {
		off := 0
		for d, c := range idx {
			if d >= base {
				c /= cfg.Kernel[d-base]
			}
			off += c * inStrides[d]
		}
		src[flat] = int32(off)
	})
	return &indexMapKernel{in: in.Data, out: out.Data, src: src}, nil
}
