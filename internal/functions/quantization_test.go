package functions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/nnrt/internal/tensor"
)

func TestBinaryActivations(t *testing.T) {
	x := floatVar(tensor.Shape{3}, -1, 0, 2)
	s := floatVar(tensor.Shape{3})
	h := floatVar(tensor.Shape{3})
	mustRun(t, &Function{Code: CodeBinarySigmoid, Inputs: ins(x), Outputs: outs(s)})
	mustRun(t, &Function{Code: CodeBinaryTanh, Inputs: ins(x), Outputs: outs(h)})
	assert.Equal(t, []float32{0, 0, 1}, s.Data)
	assert.Equal(t, []float32{-1, -1, 1}, h.Data)
}

func TestFixedPointQuantize(t *testing.T) {
	x := floatVar(tensor.Shape{3}, 0.3, -0.8, 5)

	signed := floatVar(tensor.Shape{3})
	mustRun(t, &Function{Code: CodeFixedPointQuantize, Inputs: ins(x), Outputs: outs(signed), Config: &FixedPointQuantizeConfig{Sign: true, N: 3, Delta: 0.5}})
	assert.Equal(t, []float32{0.5, -1, 1.5}, signed.Data)

	unsigned := floatVar(tensor.Shape{3})
	mustRun(t, &Function{Code: CodeFixedPointQuantize, Inputs: ins(x), Outputs: outs(unsigned), Config: &FixedPointQuantizeConfig{N: 3, Delta: 0.5}})
	assert.Equal(t, []float32{0.5, 0, 3.5}, unsigned.Data)
}

func TestPow2Quantize(t *testing.T) {
	x := floatVar(tensor.Shape{5}, 0.5, 1.4, 3, -1.4, 100)
	y := floatVar(tensor.Shape{5})
	mustRun(t, &Function{Code: CodePow2Quantize, Inputs: ins(x), Outputs: outs(y), Config: &Pow2QuantizeConfig{Sign: true, WithZero: true, N: 3, M: 1}})
	assert.Equal(t, []float32{0, 1, 2, -1, 2}, y.Data)
}

func TestPow2Level(t *testing.T) {
	tests := []struct {
		w    float32
		want float32
	}{
		{0, 0},
		{0.03, 0},
		{0.1, 0.125},
		{0.3, 0.25},
		{-0.5, -0.5},
		{0.9, 1},
		{7, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, pow2Level(tt.w, -3, 0), "w=%v", tt.w)
	}
}

func inqAffine(w []float32, indicator []float32, cfg INQConfig) (*Function, *tensor.Variable) {
	n := len(w)
	x := floatVar(tensor.Shape{1, n})
	for i := range x.Data {
		x.Data[i] = 1
	}
	y := floatVar(tensor.Shape{1, 1})
	return &Function{
		Code:    CodeINQAffine,
		Inputs:  ins(x, floatVar(tensor.Shape{n, 1}, w...), floatVar(tensor.Shape{n, 1}, indicator...)),
		Outputs: outs(y),
		Config:  &INQAffineConfig{AffineConfig: AffineConfig{BaseAxis: 1}, INQConfig: cfg},
	}, y
}

func TestINQAffineIndicator(t *testing.T) {
	f, y := inqAffine([]float32{0.3, 0.9}, []float32{0, 1}, INQConfig{})
	mustRun(t, f)
	assert.InDelta(t, 1.3, y.Data[0], 1e-6)
}

func TestINQAffineSchedule(t *testing.T) {
	f, y := inqAffine([]float32{0.3, 0.9, -0.5, 0.1}, make([]float32, 4), INQConfig{InqIterations: []int{0, 2}})
	mustRun(t, f)
	// Half of the weights, largest magnitude first: 0.9 and -0.5.
	assert.InDelta(t, 0.9, y.Data[0], 1e-6)

	require.NoError(t, f.Exec())
	assert.InDelta(t, 0.9, y.Data[0], 1e-6)

	require.NoError(t, f.Exec())
	assert.InDelta(t, 0.875, y.Data[0], 1e-6, "all weights fixed at the last iteration")
}

func TestINQAffineLargestSignedSelection(t *testing.T) {
	f, y := inqAffine([]float32{0.3, 0.9, -0.5, 0.1}, make([]float32, 4),
		INQConfig{InqIterations: []int{0, 5}, SelectionAlgorithm: SelectLargest})
	mustRun(t, f)
	// 0.9 and 0.3 are fixed to 1 and 0.25; -0.5 stays free.
	assert.InDelta(t, 0.85, y.Data[0], 1e-6)
}

func TestINQExecDoesNotAllocate(t *testing.T) {
	iterations := make([]int, 300)
	for i := range iterations {
		iterations[i] = i
	}
	w := make([]float32, 16)
	for i := range w {
		w[i] = float32(i%5) - 2.5
	}
	for _, algo := range []string{SelectLargest, SelectLargestAbs, SelectRandom} {
		t.Run(algo, func(t *testing.T) {
			f, _ := inqAffine(w, make([]float32, len(w)),
				INQConfig{InqIterations: iterations, SelectionAlgorithm: algo, Seed: 3})
			require.NoError(t, Default().Allocate(f))
			allocs := testing.AllocsPerRun(100, func() { _ = f.Exec() })
			assert.Zero(t, allocs)
		})
	}
}

func TestINQConfigValidation(t *testing.T) {
	f, _ := inqAffine([]float32{1}, []float32{0}, INQConfig{SelectionAlgorithm: "smallest"})
	assert.ErrorIs(t, Default().Allocate(f), ErrInvalidConfig)

	g, _ := inqAffine([]float32{1}, []float32{0}, INQConfig{NumBits: 1})
	assert.ErrorIs(t, Default().Allocate(g), ErrInvalidConfig)
}

func TestINQConvolutionRandomSelectionIsSeeded(t *testing.T) {
	run := func() []float32 {
		x := floatVar(tensor.Shape{1, 1, 4}, 1, 1, 1, 1)
		w := floatVar(tensor.Shape{1, 1, 4}, 0.3, 0.9, -0.5, 0.1)
		y := floatVar(tensor.Shape{1, 1, 1})
		cfg := &INQConvolutionConfig{
			ConvolutionConfig: ConvolutionConfig{BaseAxis: 1},
			INQConfig:         INQConfig{InqIterations: []int{0, 5}, SelectionAlgorithm: SelectRandom, Seed: 42},
		}
		mustRun(t, &Function{Code: CodeINQConvolution, Inputs: ins(x, w, floatVar(tensor.Shape{1, 1, 4})), Outputs: outs(y), Config: cfg})
		return y.Data
	}
	assert.Equal(t, run(), run())
}
