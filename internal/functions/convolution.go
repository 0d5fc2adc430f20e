package functions

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/born-ml/nnrt/internal/tensor"
)

// ConvolutionConfig configures Convolution, Deconvolution and the binary
// convolution variants. Empty Pad, Stride and Dilation lists default to 0, 1
// and 1 per spatial axis; Group defaults to 1.
type ConvolutionConfig struct {
	BaseAxis int   `yaml:"base_axis" json:"base_axis"`
	Pad      []int `yaml:"pad" json:"pad"`
	Stride   []int `yaml:"stride" json:"stride"`
	Dilation []int `yaml:"dilation" json:"dilation"`
	Group    int   `yaml:"group" json:"group"`
}

func (c *ConvolutionConfig) setDefaults() {
	c.BaseAxis = 1
	c.Group = 1
}

// DepthwiseConvolutionConfig configures DepthwiseConvolution.
type DepthwiseConvolutionConfig struct {
	BaseAxis   int   `yaml:"base_axis" json:"base_axis"`
	Pad        []int `yaml:"pad" json:"pad"`
	Stride     []int `yaml:"stride" json:"stride"`
	Dilation   []int `yaml:"dilation" json:"dilation"`
	Multiplier int   `yaml:"multiplier" json:"multiplier"`
}

func (c *DepthwiseConvolutionConfig) setDefaults() {
	c.BaseAxis = 1
	c.Multiplier = 1
}

// ConvolvedSize returns the output length of one convolved axis.
func ConvolvedSize(in, kernel, pad, stride, dilation int) int {
	return (in+2*pad-dilation*(kernel-1)-1)/stride + 1
}

// DeconvolvedSize returns the output length of one deconvolved axis.
func DeconvolvedSize(in, kernel, pad, stride, dilation int) int {
	return (in-1)*stride - 2*pad + dilation*(kernel-1) + 1
}

// spatialParams holds the per-axis window parameters of a convolution.
type spatialParams struct {
	kernel, pad, stride, dilation []int
}

func newSpatialParams(kernel tensor.Shape, pad, stride, dilation []int) (spatialParams, error) {
	n := len(kernel)
	p := spatialParams{kernel: kernel}
	var err error
	if p.pad, err = listOr(pad, n, 0, "pad"); err != nil {
		return p, err
	}
	if p.stride, err = listOr(stride, n, 1, "stride"); err != nil {
		return p, err
	}
	if p.dilation, err = listOr(dilation, n, 1, "dilation"); err != nil {
		return p, err
	}
	for i := range n {
		if p.stride[i] <= 0 || p.dilation[i] <= 0 || kernel[i] <= 0 {
			return p, fmt.Errorf("%w: kernel %v stride %v dilation %v", ErrInvalidConfig, kernel, p.stride, p.dilation)
		}
	}
	return p, nil
}

// windowMap lists, for every kernel position r and output position p, the
// offset of the input element inside one channel's spatial block, or -1 when
// the tap falls into padding. Entries are stored at r*outSize + p.
func (sp spatialParams) windowMap(in, out tensor.Shape) []int32 {
	kernelSize := tensor.Shape(sp.kernel).NumElements()
	outSize := out.NumElements()
	strides := in.ComputeStrides()
	m := make([]int32, kernelSize*outSize)
	forEachIndex(sp.kernel, func(r int, kidx []int) {
		forEachIndex(out, func(p int, oidx []int) {
			off := 0
			for d := range oidx {
				c := oidx[d]*sp.stride[d] - sp.pad[d] + kidx[d]*sp.dilation[d]
				if c < 0 || c >= in[d] {
					off = -1
					break
				}
				off += c * strides[d]
			}
			m[r*outSize+p] = int32(off)
		})
	})
	return m
}

// convGeometry describes x [outer..., C, spatial...] split at the channel
// axis.
type convGeometry struct {
	outer    int
	channels int
	spatial  tensor.Shape
}

func newConvGeometry(x tensor.Shape, baseAxis int) (convGeometry, error) {
	axis, err := normalizeAxis(baseAxis, len(x))
	if err != nil {
		return convGeometry{}, err
	}
	if axis == len(x)-1 {
		return convGeometry{}, fmt.Errorf("%w: no spatial axes after base axis %d in %v", ErrInvalidShape, axis, x)
	}
	return convGeometry{
		outer:    x.SizeRange(0, axis),
		channels: x[axis],
		spatial:  x[axis+1:].Clone(),
	}, nil
}

// convolutionKernel computes a grouped N-d convolution. Both strategies walk
// the same window map: gemm gathers it into a column buffer and multiplies,
// direct accumulates through the getters.
type convolutionKernel struct {
	geo        convGeometry
	outChans   int
	groups     int
	kernelSize int
	outSize    int
	window     []int32

	x, w, b, alpha operand
	y              result
	col            []float32

	prepare func()
	run     func()
}

func allocateConvolution(f *Function) (Kernel, error) {
	cfg, err := configOf[ConvolutionConfig](f)
	if err != nil {
		return nil, err
	}
	return newConvolutionKernel(f, cfg, plainSlots)
}

func newConvolutionKernel(f *Function, cfg *ConvolutionConfig, slots layerSlots) (*convolutionKernel, error) {
	if err := slots.check(f); err != nil {
		return nil, err
	}
	x, w, y := slots.input(f, slots.x), slots.input(f, slots.weight), f.Outputs[0]
	geo, err := newConvGeometry(x.Shape, cfg.BaseAxis)
	if err != nil {
		return nil, err
	}
	groups := max(cfg.Group, 1)
	nsp := len(geo.spatial)
	if len(w.Shape) != nsp+2 {
		return nil, fmt.Errorf("%w: weight %v needs %d dims", ErrInvalidShape, w.Shape, nsp+2)
	}
	outChans := w.Shape[0]
	if geo.channels%groups != 0 || outChans%groups != 0 || w.Shape[1] != geo.channels/groups {
		return nil, fmt.Errorf("%w: weight %v incompatible with %d channels in %d groups", ErrInvalidShape, w.Shape, geo.channels, groups)
	}
	sp, err := newSpatialParams(w.Shape[2:].Clone(), cfg.Pad, cfg.Stride, cfg.Dilation)
	if err != nil {
		return nil, err
	}
	outSpatial := make(tensor.Shape, nsp)
	for i := range nsp {
		outSpatial[i] = ConvolvedSize(geo.spatial[i], sp.kernel[i], sp.pad[i], sp.stride[i], sp.dilation[i])
		if outSpatial[i] <= 0 {
			return nil, fmt.Errorf("%w: kernel %v larger than padded input %v", ErrInvalidShape, sp.kernel, geo.spatial)
		}
	}
	k := &convolutionKernel{
		geo:        geo,
		outChans:   outChans,
		groups:     groups,
		kernelSize: tensor.Shape(sp.kernel).NumElements(),
		outSize:    outSpatial.NumElements(),
		window:     sp.windowMap(geo.spatial, outSpatial),
	}
	if y.Len() != geo.outer*outChans*k.outSize {
		return nil, fmt.Errorf("%w: output %v, want %d x %d x %v", ErrInvalidShape, y.Shape, geo.outer, outChans, outSpatial)
	}
	if b := slots.input(f, slots.bias); b != nil {
		if b.Len() != outChans {
			return nil, fmt.Errorf("%w: bias %v, want %d elements", ErrInvalidShape, b.Shape, outChans)
		}
		k.b = operandOf(b)
	}
	if a := slots.input(f, slots.alpha); a != nil {
		if a.Len() != outChans {
			return nil, fmt.Errorf("%w: alpha %v, want %d elements", ErrInvalidShape, a.Shape, outChans)
		}
		k.alpha = operandOf(a)
	}
	k.x, k.w, k.y = operandOf(x), operandOf(w), resultOf(y)
	k.selectStrategy()
	return k, nil
}

func (k *convolutionKernel) selectStrategy() {
	if k.x.data != nil && k.w.data != nil && k.y.data != nil {
		k.col = make([]float32, k.geo.channels*k.kernelSize*k.outSize)
		k.run = k.gemm
		return
	}
	k.col = nil
	k.run = k.direct
}

func (k *convolutionKernel) Exec() {
	if k.prepare != nil {
		k.prepare()
	}
	k.run()
}

func (k *convolutionKernel) gemm() {
	inBlock := k.geo.spatial.NumElements()
	chanRows := k.kernelSize * k.outSize
	groupIn := k.geo.channels / k.groups
	groupOut := k.outChans / k.groups
	rows := groupIn * k.kernelSize
	for n := 0; n < k.geo.outer; n++ {
		x := k.x.data[n*k.geo.channels*inBlock:]
		for c := 0; c < k.geo.channels; c++ {
			src := x[c*inBlock : (c+1)*inBlock]
			dst := k.col[c*chanRows : (c+1)*chanRows]
			for i, off := range k.window {
				if off < 0 {
					dst[i] = 0
					continue
				}
				dst[i] = src[off]
			}
		}
		y := k.y.data[n*k.outChans*k.outSize : (n+1)*k.outChans*k.outSize]
		for g := 0; g < k.groups; g++ {
			blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
				blas32.General{Rows: groupOut, Cols: rows, Stride: rows, Data: k.w.data[g*groupOut*rows:]},
				blas32.General{Rows: rows, Cols: k.outSize, Stride: k.outSize, Data: k.col[g*rows*k.outSize:]},
				0,
				blas32.General{Rows: groupOut, Cols: k.outSize, Stride: k.outSize, Data: y[g*groupOut*k.outSize:]})
		}
		if k.alpha.present() || k.b.present() {
			for oc := 0; oc < k.outChans; oc++ {
				row := y[oc*k.outSize : (oc+1)*k.outSize]
				for p := range row {
					row[p] = k.epilogue(oc, row[p])
				}
			}
		}
	}
}

func (k *convolutionKernel) direct() {
	inBlock := k.geo.spatial.NumElements()
	groupIn := k.geo.channels / k.groups
	groupOut := k.outChans / k.groups
	for n := 0; n < k.geo.outer; n++ {
		xBase := n * k.geo.channels * inBlock
		yBase := n * k.outChans * k.outSize
		for oc := 0; oc < k.outChans; oc++ {
			g := oc / groupOut
			for p := 0; p < k.outSize; p++ {
				var acc float32
				for ci := 0; ci < groupIn; ci++ {
					c := g*groupIn + ci
					wBase := (oc*groupIn + ci) * k.kernelSize
					for r := 0; r < k.kernelSize; r++ {
						off := k.window[r*k.outSize+p]
						if off < 0 {
							continue
						}
						acc += k.w.get(wBase+r) * k.x.get(xBase+c*inBlock+int(off))
					}
				}
				k.y.set(yBase+oc*k.outSize+p, k.epilogue(oc, acc))
			}
		}
	}
}

func (k *convolutionKernel) epilogue(oc int, acc float32) float32 {
	if k.alpha.present() {
		acc *= k.alpha.get(oc)
	}
	if k.b.present() {
		acc += k.b.get(oc)
	}
	return acc
}

// depthwiseKernel convolves each input channel with Multiplier filters of
// its own. Output channel oc reads input channel oc / multiplier.
type depthwiseKernel struct {
	geo        convGeometry
	multiplier int
	kernelSize int
	outSize    int
	window     []int32
	input      []float32
	weight     []float32
	bias       []float32
	output     []float32
}

func allocateDepthwiseConvolution(f *Function) (Kernel, error) {
	cfg, err := configOf[DepthwiseConvolutionConfig](f)
	if err != nil {
		return nil, err
	}
	if err := checkInputRange(f, 2, 3, 1); err != nil {
		return nil, err
	}
	if err := requireFloat(f); err != nil {
		return nil, err
	}
	x, w, y := f.Inputs[0], f.Inputs[1], f.Outputs[0]
	geo, err := newConvGeometry(x.Shape, cfg.BaseAxis)
	if err != nil {
		return nil, err
	}
	mult := max(cfg.Multiplier, 1)
	nsp := len(geo.spatial)
	if len(w.Shape) != nsp+1 || w.Shape[0] != geo.channels*mult {
		return nil, fmt.Errorf("%w: weight %v, want [%d, kernel...]", ErrInvalidShape, w.Shape, geo.channels*mult)
	}
	sp, err := newSpatialParams(w.Shape[1:].Clone(), cfg.Pad, cfg.Stride, cfg.Dilation)
	if err != nil {
		return nil, err
	}
	outSpatial := make(tensor.Shape, nsp)
	for i := range nsp {
		outSpatial[i] = ConvolvedSize(geo.spatial[i], sp.kernel[i], sp.pad[i], sp.stride[i], sp.dilation[i])
		if outSpatial[i] <= 0 {
			return nil, fmt.Errorf("%w: kernel %v larger than padded input %v", ErrInvalidShape, sp.kernel, geo.spatial)
		}
	}
	k := &depthwiseKernel{
		geo:        geo,
		multiplier: mult,
		kernelSize: tensor.Shape(sp.kernel).NumElements(),
		outSize:    outSpatial.NumElements(),
		window:     sp.windowMap(geo.spatial, outSpatial),
		input:      x.Data,
		weight:     w.Data,
		output:     y.Data,
	}
	if y.Len() != geo.outer*geo.channels*mult*k.outSize {
		return nil, fmt.Errorf("%w: output %v", ErrInvalidShape, y.Shape)
	}
	if len(f.Inputs) == 3 {
		b := f.Inputs[2]
		if b.Len() != geo.channels*mult {
			return nil, fmt.Errorf("%w: bias %v, want %d elements", ErrInvalidShape, b.Shape, geo.channels*mult)
		}
		k.bias = b.Data
	}
	return k, nil
}

func (k *depthwiseKernel) Exec() {
	inBlock := k.geo.spatial.NumElements()
	outChans := k.geo.channels * k.multiplier
	for n := 0; n < k.geo.outer; n++ {
		for oc := 0; oc < outChans; oc++ {
			x := k.input[(n*k.geo.channels+oc/k.multiplier)*inBlock:]
			w := k.weight[oc*k.kernelSize : (oc+1)*k.kernelSize]
			y := k.output[(n*outChans+oc)*k.outSize : (n*outChans+oc+1)*k.outSize]
			for p := range y {
				var acc float32
				for r, wv := range w {
					if off := k.window[r*k.outSize+p]; off >= 0 {
						acc += wv * x[off]
					}
				}
				if k.bias != nil {
					acc += k.bias[oc]
				}
				y[p] = acc
			}
		}
	}
}

// deconvolutionKernel multiplies the transposed weight with the input into
// a column buffer and scatters it onto the output through scatter, the
// col2im map of the transposed window.
type deconvolutionKernel struct {
	geo        convGeometry
	outChans   int
	groups     int
	kernelSize int
	outSize    int
	scatter    []int32
	input      []float32
	weight     []float32
	bias       []float32
	output     []float32
	col        []float32
}

func allocateDeconvolution(f *Function) (Kernel, error) {
	cfg, err := configOf[ConvolutionConfig](f)
	if err != nil {
		return nil, err
	}
	if err := checkInputRange(f, 2, 3, 1); err != nil {
		return nil, err
	}
	if err := requireFloat(f); err != nil {
		return nil, err
	}
	x, w, y := f.Inputs[0], f.Inputs[1], f.Outputs[0]
	geo, err := newConvGeometry(x.Shape, cfg.BaseAxis)
	if err != nil {
		return nil, err
	}
	groups := max(cfg.Group, 1)
	nsp := len(geo.spatial)
	if len(w.Shape) != nsp+2 || w.Shape[0] != geo.channels || geo.channels%groups != 0 {
		return nil, fmt.Errorf("%w: weight %v incompatible with %d channels in %d groups", ErrInvalidShape, w.Shape, geo.channels, groups)
	}
	outChans := w.Shape[1] * groups
	sp, err := newSpatialParams(w.Shape[2:].Clone(), cfg.Pad, cfg.Stride, cfg.Dilation)
	if err != nil {
		return nil, err
	}
	outSpatial := make(tensor.Shape, nsp)
	for i := range nsp {
		outSpatial[i] = DeconvolvedSize(geo.spatial[i], sp.kernel[i], sp.pad[i], sp.stride[i], sp.dilation[i])
		if outSpatial[i] <= 0 {
			return nil, fmt.Errorf("%w: padding %v leaves no output for input %v", ErrInvalidShape, sp.pad, geo.spatial)
		}
	}
	k := &deconvolutionKernel{
		geo:        geo,
		outChans:   outChans,
		groups:     groups,
		kernelSize: tensor.Shape(sp.kernel).NumElements(),
		outSize:    outSpatial.NumElements(),
		input:      x.Data,
		weight:     w.Data,
		output:     y.Data,
	}
	if y.Len() != geo.outer*outChans*k.outSize {
		return nil, fmt.Errorf("%w: output %v, want %d x %d x %v", ErrInvalidShape, y.Shape, geo.outer, outChans, outSpatial)
	}
	if len(f.Inputs) == 3 {
		b := f.Inputs[2]
		if b.Len() != outChans {
			return nil, fmt.Errorf("%w: bias %v, want %d elements", ErrInvalidShape, b.Shape, outChans)
		}
		k.bias = b.Data
	}
	// The forward window of the output shape over the input positions is the
	// scatter target of each column entry.
	k.scatter = sp.windowMap(outSpatial, geo.spatial)
	k.col = make([]float32, outChans*k.kernelSize*geo.spatial.NumElements())
	return k, nil
}

func (k *deconvolutionKernel) Exec() {
	inSize := k.geo.spatial.NumElements()
	groupIn := k.geo.channels / k.groups
	groupOut := k.outChans / k.groups
	rows := groupOut * k.kernelSize
	for n := 0; n < k.geo.outer; n++ {
		x := k.input[n*k.geo.channels*inSize:]
		for g := 0; g < k.groups; g++ {
			blas32.Gemm(blas.Trans, blas.NoTrans, 1,
				blas32.General{Rows: groupIn, Cols: rows, Stride: rows, Data: k.weight[g*groupIn*rows:]},
				blas32.General{Rows: groupIn, Cols: inSize, Stride: inSize, Data: x[g*groupIn*inSize:]},
				0,
				blas32.General{Rows: rows, Cols: inSize, Stride: inSize, Data: k.col[g*rows*inSize:]})
		}
		y := k.output[n*k.outChans*k.outSize : (n+1)*k.outChans*k.outSize]
		for oc := 0; oc < k.outChans; oc++ {
			dst := y[oc*k.outSize : (oc+1)*k.outSize]
			fill := float32(0)
			if k.bias != nil {
				fill = k.bias[oc]
			}
			for i := range dst {
				dst[i] = fill
			}
			col := k.col[oc*k.kernelSize*inSize:]
			for i, off := range k.scatter {
				if off >= 0 {
					dst[off] += col[i]
				}
			}
		}
	}
}
