package functions

import (
	"fmt"
	"slices"

	"github.com/born-ml/nnrt/internal/tensor"
)

// SliceConfig configures Slice. Entries apply to the leading axes; axes
// beyond the lists are taken whole. Negative indices count from the end.
type SliceConfig struct {
	Start []int `yaml:"start" json:"start"`
	Stop  []int `yaml:"stop" json:"stop"`
	Step  []int `yaml:"step" json:"step"`
}

// AxesConfig configures Transpose and Flip.
type AxesConfig struct {
	Axes []int `yaml:"axes" json:"axes"`
}

// ShapeConfig configures Broadcast, Reshape and OneHot.
type ShapeConfig struct {
	Shape []int `yaml:"shape" json:"shape"`
}

// BorderMode selects how Shift fills positions shifted in from outside.
type BorderMode string

// Shift border modes.
const (
	BorderNearest BorderMode = "nearest"
	BorderReflect BorderMode = "reflect"
	BorderCyclic  BorderMode = "cyclic"
	BorderZero    BorderMode = "zero"
)

// ShiftConfig configures Shift. Shifts apply to the trailing axes.
type ShiftConfig struct {
	Shifts     []int      `yaml:"shifts" json:"shifts"`
	BorderMode BorderMode `yaml:"border_mode" json:"border_mode"`
}

func (r *Registry) registerManipulation() {
	r.add(CodeConcatenate, newConfig[AxisConfig], allocateConcatenate)
	r.add(CodeSplit, newConfig[AxisConfig], allocateSplit)
	r.add(CodeStack, newConfig[AxisConfig], allocateStack)
	r.add(CodeSlice, newConfig[SliceConfig], allocateSlice)
	r.add(CodeTranspose, newConfig[AxesConfig], allocateTranspose)
	r.add(CodeBroadcast, newConfig[ShapeConfig], allocateBroadcast)
	r.add(CodeOneHot, newConfig[ShapeConfig], allocateOneHot)
	r.add(CodeFlip, newConfig[AxesConfig], allocateFlip)
	r.add(CodeShift, newConfig[ShiftConfig], allocateShift)
	r.add(CodeReshape, newConfig[ShapeConfig], allocateReshape)
	r.add(CodeMatrixDiag, nil, allocateMatrixDiag)
	r.add(CodeMatrixDiagPart, nil, allocateMatrixDiagPart)
}

// gatherKernel builds an indexMapKernel for out from a function mapping an
// output multi-index to an input offset (or -1).
func gatherKernel(in, out *tensor.Variable, outShape tensor.Shape, src func(idx []int) int) *indexMapKernel {
	m := make([]int32, outShape.NumElements())
	forEachIndex(outShape, func(flat int, idx []int) {
		m[flat] = int32(src(idx))
	})
	return &indexMapKernel{in: in.Data, out: out.Data, src: m}
}

func checkSingleFloat(f *Function) error {
	if err := checkArity(f, 1, 1); err != nil {
		return err
	}
	return requireFloat(f)
}

// concatenateKernel interleaves the per-input blocks of every outer index.
type concatenateKernel struct {
	outer  int
	inputs [][]float32
	blocks []int
	output []float32
}

func allocateConcatenate(f *Function) (Kernel, error) {
	cfg, err := configOf[AxisConfig](f)
	if err != nil {
		return nil, err
	}
	if len(f.Inputs) == 0 {
		return nil, fmt.Errorf("%w: want at least 1, got 0", ErrInvalidNumOfInputs)
	}
	if len(f.Outputs) != 1 {
		return nil, fmt.Errorf("%w: want 1, got %d", ErrInvalidNumOfOutputs, len(f.Outputs))
	}
	if err := requireFloat(f); err != nil {
		return nil, err
	}
	first := f.Inputs[0].Shape
	axis, err := normalizeAxis(cfg.Axis, len(first))
	if err != nil {
		return nil, err
	}
	want := first.Clone()
	want[axis] = 0
	k := &concatenateKernel{outer: first.SizeRange(0, axis)}
	for i, in := range f.Inputs {
		if len(in.Shape) != len(first) {
			return nil, fmt.Errorf("%w: input %d has shape %v, want rank %d", ErrInvalidShape, i, in.Shape, len(first))
		}
		for d := range first {
			if d != axis && in.Shape[d] != first[d] {
				return nil, fmt.Errorf("%w: input %d has shape %v, want %v off axis %d", ErrInvalidShape, i, in.Shape, first, axis)
			}
		}
		want[axis] += in.Shape[axis]
		k.inputs = append(k.inputs, in.Data)
		k.blocks = append(k.blocks, in.Shape.SizeFrom(axis))
	}
	if err := checkOutputSize(f.Outputs[0], want); err != nil {
		return nil, err
	}
	k.output = f.Outputs[0].Data
	return k, nil
}

func (k *concatenateKernel) Exec() {
	pos := 0
	for o := 0; o < k.outer; o++ {
		for i, in := range k.inputs {
			n := k.blocks[i]
			copy(k.output[pos:pos+n], in[o*n:(o+1)*n])
			pos += n
		}
	}
}

// splitKernel slices the input along one axis into one output per entry.
type splitKernel struct {
	outer   int
	n       int
	inner   int
	input   []float32
	outputs [][]float32
}

func allocateSplit(f *Function) (Kernel, error) {
	cfg, err := configOf[AxisConfig](f)
	if err != nil {
		return nil, err
	}
	if len(f.Inputs) != 1 {
		return nil, fmt.Errorf("%w: want 1, got %d", ErrInvalidNumOfInputs, len(f.Inputs))
	}
	if err := requireFloat(f); err != nil {
		return nil, err
	}
	in := f.Inputs[0]
	geo, axis, err := newAxisGeometry(in.Shape, cfg.Axis)
	if err != nil {
		return nil, err
	}
	if len(f.Outputs) != geo.n {
		return nil, fmt.Errorf("%w: want %d, got %d", ErrInvalidNumOfOutputs, geo.n, len(f.Outputs))
	}
	want := slices.Delete(in.Shape.Clone(), axis, axis+1)
	k := &splitKernel{outer: geo.outer, n: geo.n, inner: geo.inner, input: in.Data}
	for _, out := range f.Outputs {
		if err := checkOutputSize(out, want); err != nil {
			return nil, err
		}
		k.outputs = append(k.outputs, out.Data)
	}
	return k, nil
}

func (k *splitKernel) Exec() {
	for o := 0; o < k.outer; o++ {
		for i, out := range k.outputs {
			src := k.input[(o*k.n+i)*k.inner:]
			copy(out[o*k.inner:(o+1)*k.inner], src[:k.inner])
		}
	}
}

// stackKernel joins equally shaped inputs along a new axis.
type stackKernel struct {
	outer  int
	inner  int
	inputs [][]float32
	output []float32
}

func allocateStack(f *Function) (Kernel, error) {
	cfg, err := configOf[AxisConfig](f)
	if err != nil {
		return nil, err
	}
	if len(f.Inputs) == 0 {
		return nil, fmt.Errorf("%w: want at least 1, got 0", ErrInvalidNumOfInputs)
	}
	if len(f.Outputs) != 1 {
		return nil, fmt.Errorf("%w: want 1, got %d", ErrInvalidNumOfOutputs, len(f.Outputs))
	}
	if err := requireFloat(f); err != nil {
		return nil, err
	}
	first := f.Inputs[0].Shape
	axis, err := normalizeAxis(cfg.Axis, len(first)+1)
	if err != nil {
		return nil, err
	}
	k := &stackKernel{outer: first.SizeRange(0, axis), inner: first.SizeFrom(axis)}
	for i, in := range f.Inputs {
		if !in.Shape.Equal(first) {
			return nil, fmt.Errorf("%w: input %d has shape %v, want %v", ErrInvalidShape, i, in.Shape, first)
		}
		k.inputs = append(k.inputs, in.Data)
	}
	want := slices.Insert(first.Clone(), axis, len(f.Inputs))
	if err := checkOutputSize(f.Outputs[0], want); err != nil {
		return nil, err
	}
	k.output = f.Outputs[0].Data
	return k, nil
}

func (k *stackKernel) Exec() {
	pos := 0
	for o := 0; o < k.outer; o++ {
		for _, in := range k.inputs {
			copy(k.output[pos:pos+k.inner], in[o*k.inner:(o+1)*k.inner])
			pos += k.inner
		}
	}
}

// SliceRange resolves one axis of a slice with Python semantics and returns
// the first index and the element count.
func SliceRange(n, start, stop, step int) (first, count int, err error) {
	if step == 0 {
		return 0, 0, fmt.Errorf("%w: slice step is zero", ErrInvalidConfig)
	}
	clamp := func(i, lo, hi int) int {
		if i < 0 {
			i += n
		}
		return min(max(i, lo), hi)
	}
	if step > 0 {
		start, stop = clamp(start, 0, n), clamp(stop, 0, n)
		if stop > start {
			count = (stop - start + step - 1) / step
		}
		return start, count, nil
	}
	start, stop = clamp(start, -1, n-1), clamp(stop, -1, n-1)
	if start > stop {
		count = (start - stop - step - 1) / -step
	}
	return start, count, nil
}

func allocateSlice(f *Function) (Kernel, error) {
	cfg, err := configOf[SliceConfig](f)
	if err != nil {
		return nil, err
	}
	if err := checkSingleFloat(f); err != nil {
		return nil, err
	}
	in, out := f.Inputs[0], f.Outputs[0]
	nd := len(in.Shape)
	if len(cfg.Start) > nd || len(cfg.Stop) != len(cfg.Start) || (len(cfg.Step) != 0 && len(cfg.Step) != len(cfg.Start)) {
		return nil, fmt.Errorf("%w: start %v stop %v step %v for shape %v", ErrInvalidConfig, cfg.Start, cfg.Stop, cfg.Step, in.Shape)
	}
	firsts := make([]int, nd)
	steps := make([]int, nd)
	outShape := in.Shape.Clone()
	for d := range nd {
		steps[d] = 1
		if d >= len(cfg.Start) {
			continue
		}
		if len(cfg.Step) != 0 {
			steps[d] = cfg.Step[d]
		}
		firsts[d], outShape[d], err = SliceRange(in.Shape[d], cfg.Start[d], cfg.Stop[d], steps[d])
		if err != nil {
			return nil, err
		}
	}
	if err := checkOutputSize(out, outShape); err != nil {
		return nil, err
	}
	strides := in.Shape.ComputeStrides()
	return gatherKernel(in, out, outShape, func(idx []int) int {
		off := 0
		for d, c := range idx {
			off += (firsts[d] + c*steps[d]) * strides[d]
		}
		return off
	}), nil
}

func allocateTranspose(f *Function) (Kernel, error) {
	cfg, err := configOf[AxesConfig](f)
	if err != nil {
		return nil, err
	}
	if err := checkSingleFloat(f); err != nil {
		return nil, err
	}
	in, out := f.Inputs[0], f.Outputs[0]
	nd := len(in.Shape)
	if len(cfg.Axes) != nd {
		return nil, fmt.Errorf("%w: axes %v for shape %v", ErrInvalidConfig, cfg.Axes, in.Shape)
	}
	perm := make([]int, nd)
	seen := make([]bool, nd)
	outShape := make(tensor.Shape, nd)
	for i, a := range cfg.Axes {
		a, err := normalizeAxis(a, nd)
		if err != nil {
			return nil, err
		}
		if seen[a] {
			return nil, fmt.Errorf("%w: axes %v repeat axis %d", ErrInvalidConfig, cfg.Axes, a)
		}
		seen[a] = true
		perm[i] = a
		outShape[i] = in.Shape[a]
	}
	if err := checkOutputSize(out, outShape); err != nil {
		return nil, err
	}
	strides := in.Shape.ComputeStrides()
	return gatherKernel(in, out, outShape, func(idx []int) int {
		off := 0
		for i, c := range idx {
			off += c * strides[perm[i]]
		}
		return off
	}), nil
}

func allocateBroadcast(f *Function) (Kernel, error) {
	cfg, err := configOf[ShapeConfig](f)
	if err != nil {
		return nil, err
	}
	if err := checkSingleFloat(f); err != nil {
		return nil, err
	}
	in, out := f.Inputs[0], f.Outputs[0]
	target := tensor.Shape(cfg.Shape)
	got, _, err := tensor.BroadcastShapes(in.Shape, target)
	if err != nil || !got.Equal(target) {
		return nil, fmt.Errorf("%w: cannot broadcast %v to %v", ErrInvalidShape, in.Shape, target)
	}
	if err := checkOutputSize(out, target); err != nil {
		return nil, err
	}
	outStrides := target.ComputeStrides()
	srcStrides := tensor.BroadcastStrides(in.Shape, target)
	src := make([]int32, target.NumElements())
	for i := range src {
		src[i] = int32(tensor.StridedIndex(i, outStrides, srcStrides))
	}
	return &indexMapKernel{in: in.Data, out: out.Data, src: src}, nil
}

// oneHotKernel writes 1 at the position addressed by each index tuple of the
// last input axis. Tuples outside the target shape leave an all-zero row.
type oneHotKernel struct {
	index   tensor.Getter
	count   int
	shape   tensor.Shape
	strides []int
	output  []float32
}

func allocateOneHot(f *Function) (Kernel, error) {
	cfg, err := configOf[ShapeConfig](f)
	if err != nil {
		return nil, err
	}
	if err := checkArity(f, 1, 1); err != nil {
		return nil, err
	}
	x, y := f.Inputs[0], f.Outputs[0]
	if !y.IsFloat() {
		return nil, fmt.Errorf("%w: output is %s", ErrUnimplemented, y.Type)
	}
	shape := tensor.Shape(cfg.Shape)
	if len(x.Shape) == 0 || x.Shape[len(x.Shape)-1] != len(shape) {
		return nil, fmt.Errorf("%w: index shape %v for one-hot shape %v", ErrInvalidShape, x.Shape, shape)
	}
	want := append(x.Shape[:len(x.Shape)-1].Clone(), shape...)
	if err := checkOutputSize(y, want); err != nil {
		return nil, err
	}
	return &oneHotKernel{
		index:   x.Getter(),
		count:   x.Shape.SizeRange(0, len(x.Shape)-1),
		shape:   shape,
		strides: shape.ComputeStrides(),
		output:  y.Data,
	}, nil
}

func (k *oneHotKernel) Exec() {
	clear(k.output)
	block := k.shape.NumElements()
	nd := len(k.shape)
outer:
	for i := 0; i < k.count; i++ {
		off := 0
		for d := range nd {
			c := int(k.index(i*nd + d))
			if c < 0 || c >= k.shape[d] {
				continue outer
			}
			off += c * k.strides[d]
		}
		k.output[i*block+off] = 1
	}
}

func allocateFlip(f *Function) (Kernel, error) {
	cfg, err := configOf[AxesConfig](f)
	if err != nil {
		return nil, err
	}
	if err := checkSingleFloat(f); err != nil {
		return nil, err
	}
	in, out := f.Inputs[0], f.Outputs[0]
	if err := sameSize(in, out); err != nil {
		return nil, err
	}
	flip := make([]bool, len(in.Shape))
	for _, a := range cfg.Axes {
		a, err := normalizeAxis(a, len(in.Shape))
		if err != nil {
			return nil, err
		}
		flip[a] = true
	}
	strides := in.Shape.ComputeStrides()
	return gatherKernel(in, out, in.Shape, func(idx []int) int {
		off := 0
		for d, c := range idx {
			if flip[d] {
				c = in.Shape[d] - 1 - c
			}
			off += c * strides[d]
		}
		return off
	}), nil
}

// shiftSource maps coordinate c of an axis of length n onto the source
// coordinate for the given border mode, or -1 for a zero fill.
func shiftSource(c, n int, mode BorderMode) int {
	if c >= 0 && c < n {
		return c
	}
	switch mode {
	case BorderNearest:
		return min(max(c, 0), n-1)
	case BorderCyclic:
		return ((c % n) + n) % n
	case BorderReflect:
		if n == 1 {
			return 0
		}
		period := 2 * (n - 1)
		c = ((c % period) + period) % period
		if c >= n {
			c = period - c
		}
		return c
	default:
		return -1
	}
}

func allocateShift(f *Function) (Kernel, error) {
	cfg, err := configOf[ShiftConfig](f)
	if err != nil {
		return nil, err
	}
	if err := checkSingleFloat(f); err != nil {
		return nil, err
	}
	mode := cfg.BorderMode
	if mode == "" {
		mode = BorderNearest
	}
	switch mode {
	case BorderNearest, BorderReflect, BorderCyclic, BorderZero:
	default:
		return nil, fmt.Errorf("%w: border mode %q", ErrInvalidConfig, mode)
	}
	in, out := f.Inputs[0], f.Outputs[0]
	if err := sameSize(in, out); err != nil {
		return nil, err
	}
	nd := len(in.Shape)
	if len(cfg.Shifts) > nd {
		return nil, fmt.Errorf("%w: %d shifts for shape %v", ErrInvalidConfig, len(cfg.Shifts), in.Shape)
	}
	shifts := make([]int, nd)
	copy(shifts[nd-len(cfg.Shifts):], cfg.Shifts)
	strides := in.Shape.ComputeStrides()
	return gatherKernel(in, out, in.Shape, func(idx []int) int {
		off := 0
		for d, c := range idx {
			s := shiftSource(c-shifts[d], in.Shape[d], mode)
			if s < 0 {
				return -1
			}
			off += s * strides[d]
		}
		return off
	}), nil
}

// ReshapeTarget resolves a reshape target for n elements, inferring at most
// one -1 entry.
func ReshapeTarget(n int, shape []int) (tensor.Shape, error) {
	out := tensor.Shape(slices.Clone(shape))
	infer := -1
	known := 1
	for i, d := range out {
		switch {
		case d == -1 && infer < 0:
			infer = i
		case d <= 0:
			return nil, fmt.Errorf("%w: reshape target %v", ErrInvalidConfig, shape)
		default:
			known *= d
		}
	}
	if infer >= 0 {
		if known == 0 || n%known != 0 {
			return nil, fmt.Errorf("%w: cannot infer %v from %d elements", ErrInvalidShape, shape, n)
		}
		out[infer] = n / known
	}
	if out.NumElements() != n {
		return nil, fmt.Errorf("%w: reshape %d elements to %v", ErrInvalidShape, n, shape)
	}
	return out, nil
}

func allocateReshape(f *Function) (Kernel, error) {
	cfg, err := configOf[ShapeConfig](f)
	if err != nil {
		return nil, err
	}
	if err := checkSingleFloat(f); err != nil {
		return nil, err
	}
	in, out := f.Inputs[0], f.Outputs[0]
	target, err := ReshapeTarget(in.Len(), cfg.Shape)
	if err != nil {
		return nil, err
	}
	if err := checkOutputSize(out, target); err != nil {
		return nil, err
	}
	return &copyKernel{in: in.Data, out: out.Data}, nil
}

func allocateMatrixDiag(f *Function) (Kernel, error) {
	if err := checkSingleFloat(f); err != nil {
		return nil, err
	}
	in, out := f.Inputs[0], f.Outputs[0]
	if len(in.Shape) == 0 {
		return nil, fmt.Errorf("%w: scalar input", ErrInvalidShape)
	}
	m := in.Shape[len(in.Shape)-1]
	outShape := append(in.Shape.Clone(), m)
	if err := checkOutputSize(out, outShape); err != nil {
		return nil, err
	}
	return gatherKernel(in, out, outShape, func(idx []int) int {
		nd := len(idx)
		if idx[nd-1] != idx[nd-2] {
			return -1
		}
		return matrixRowOffset(idx[:nd-1], in.Shape)
	}), nil
}

func allocateMatrixDiagPart(f *Function) (Kernel, error) {
	if err := checkSingleFloat(f); err != nil {
		return nil, err
	}
	in, out := f.Inputs[0], f.Outputs[0]
	nd := len(in.Shape)
	if nd < 2 || in.Shape[nd-1] != in.Shape[nd-2] {
		return nil, fmt.Errorf("%w: input %v is not a batch of square matrices", ErrInvalidShape, in.Shape)
	}
	outShape := in.Shape[:nd-1].Clone()
	if err := checkOutputSize(out, outShape); err != nil {
		return nil, err
	}
	m := in.Shape[nd-1]
	return gatherKernel(in, out, outShape, func(idx []int) int {
		return matrixRowOffset(idx, outShape)*m + idx[len(idx)-1]
	}), nil
}

// matrixRowOffset returns the row-major offset of idx in shape.
func matrixRowOffset(idx []int, shape tensor.Shape) int {
	off := 0
	for d, c := range idx {
		off = off*shape[d] + c
	}
	return off
}
