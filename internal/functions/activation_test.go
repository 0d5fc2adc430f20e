package functions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/nnrt/internal/tensor"
)

func TestReLUIdempotent(t *testing.T) {
	x := floatVar(tensor.Shape{5}, -2, -0.5, 0, 0.5, 3)
	y := floatVar(tensor.Shape{5})
	mustRun(t, &Function{Code: CodeReLU, Inputs: ins(x), Outputs: outs(y)})
	assert.Equal(t, []float32{0, 0, 0, 0.5, 3}, y.Data)

	z := floatVar(tensor.Shape{5})
	mustRun(t, &Function{Code: CodeReLU, Inputs: ins(y), Outputs: outs(z)})
	assert.Equal(t, y.Data, z.Data, "relu(relu(x)) == relu(x)")
}

func TestReLUInplace(t *testing.T) {
	x := floatVar(tensor.Shape{2, 2}, -1, 2, -3, 4)
	y := floatVar(tensor.Shape{2, 2})
	f := &Function{Code: CodeReLU, Inputs: ins(x), Outputs: outs(y), Config: &ReLUConfig{Inplace: true}}
	mustRun(t, f)

	assert.Equal(t, []float32{0, 2, 0, 4}, x.Data)
	assert.Equal(t, []float32{0, 2, 0, 4}, y.Data)

	require.NoError(t, f.Exec())
	assert.Equal(t, []float32{0, 2, 0, 4}, y.Data, "second in-place exec leaves the result unchanged")

	x.Data[1] = 7
	assert.Equal(t, float32(7), y.Data[1], "output aliases the input buffer")
}

func TestReLUInplaceMixedTypes(t *testing.T) {
	f := &Function{
		Code:    CodeReLU,
		Inputs:  ins(fixedVar(tensor.Shape{2}, tensor.Int8, 0, -1, 2)),
		Outputs: outs(floatVar(tensor.Shape{2})),
		Config:  &ReLUConfig{Inplace: true},
	}
	err := Default().Allocate(f)
	assert.ErrorIs(t, err, ErrUnimplemented)
	assert.ErrorContains(t, err, "in-place int8 into float")
}

func TestReLUFixedPoint(t *testing.T) {
	x := fixedVar(tensor.Shape{4}, tensor.Int16, 4, -1.5, 0.25, 2, -0.0625)
	y := fixedVar(tensor.Shape{4}, tensor.Int8, 2)
	mustRun(t, &Function{Code: CodeReLU, Inputs: ins(x), Outputs: outs(y)})
	assert.Equal(t, []float32{0, 0.25, 2, 0}, values(y))
}

func TestSigmoidAndTanh(t *testing.T) {
	x := floatVar(tensor.Shape{3}, -2, 0, 2)
	s := floatVar(tensor.Shape{3})
	h := floatVar(tensor.Shape{3})
	mustRun(t, &Function{Code: CodeSigmoid, Inputs: ins(x), Outputs: outs(s)})
	mustRun(t, &Function{Code: CodeTanh, Inputs: ins(x), Outputs: outs(h)})

	assert.InDelta(t, 0.119203, s.Data[0], 1e-5)
	assert.InDelta(t, 0.5, s.Data[1], 1e-6)
	assert.InDelta(t, 0.880797, s.Data[2], 1e-5)
	assert.InDelta(t, -0.964028, h.Data[0], 1e-5)
	assert.InDelta(t, 0.964028, h.Data[2], 1e-5)
}

func TestLeakyReLUAndELU(t *testing.T) {
	x := floatVar(tensor.Shape{2}, -2, 3)
	y := floatVar(tensor.Shape{2})
	mustRun(t, &Function{Code: CodeLeakyReLU, Inputs: ins(x), Outputs: outs(y), Config: &LeakyReLUConfig{Alpha: 0.1}})
	assert.InDeltaSlice(t, []float32{-0.2, 3}, y.Data, 1e-6)

	e := floatVar(tensor.Shape{2})
	mustRun(t, &Function{Code: CodeELU, Inputs: ins(x), Outputs: outs(e), Config: &ELUConfig{Alpha: 1}})
	assert.InDelta(t, -0.864665, e.Data[0], 1e-5)
	assert.Equal(t, float32(3), e.Data[1])
}

func TestActivationDefaults(t *testing.T) {
	x := floatVar(tensor.Shape{2}, -2, 3)

	y := floatVar(tensor.Shape{2})
	mustRun(t, &Function{Code: CodeLeakyReLU, Inputs: ins(x), Outputs: outs(y)})
	assert.InDeltaSlice(t, []float32{-0.2, 3}, y.Data, 1e-6)

	e := floatVar(tensor.Shape{2})
	mustRun(t, &Function{Code: CodeELU, Inputs: ins(x), Outputs: outs(e)})
	assert.InDelta(t, -0.864665, e.Data[0], 1e-5)

	s := floatVar(tensor.Shape{2})
	mustRun(t, &Function{Code: CodeSELU, Inputs: ins(x), Outputs: outs(s)})
	assert.InDelta(t, -1.520166, s.Data[0], 1e-5)
	assert.InDelta(t, 3.152103, s.Data[1], 1e-5)
}

func TestSoftmax(t *testing.T) {
	x := floatVar(tensor.Shape{2, 3}, 1, 2, 3, 1000, 1000, 1000)
	y := floatVar(tensor.Shape{2, 3})
	mustRun(t, &Function{Code: CodeSoftmax, Inputs: ins(x), Outputs: outs(y), Config: &AxisConfig{Axis: 1}})

	assert.InDeltaSlice(t, []float32{0.090031, 0.244728, 0.665241}, y.Data[:3], 1e-5)
	assert.InDeltaSlice(t, []float32{1.0 / 3, 1.0 / 3, 1.0 / 3}, y.Data[3:], 1e-6, "large logits stay finite")
}

func TestSoftmaxInnerAxis(t *testing.T) {
	// Softmax over axis 0 of a [2, 2] matrix pairs elements (0, 2) and (1, 3).
	x := floatVar(tensor.Shape{2, 2}, 0, 5, 0, 5)
	y := floatVar(tensor.Shape{2, 2})
	mustRun(t, &Function{Code: CodeSoftmax, Inputs: ins(x), Outputs: outs(y), Config: &AxisConfig{Axis: 0}})
	assert.InDeltaSlice(t, []float32{0.5, 0.5, 0.5, 0.5}, y.Data, 1e-6)
}

func TestCReLU(t *testing.T) {
	x := floatVar(tensor.Shape{2, 2}, 1, -2, -3, 4)
	y := floatVar(tensor.Shape{2, 4})
	mustRun(t, &Function{Code: CodeCReLU, Inputs: ins(x), Outputs: outs(y), Config: &AxisConfig{Axis: 1}})
	assert.Equal(t, []float32{1, 0, 0, 2, 0, 4, 3, 0}, y.Data)
}

func TestCReLUOutputShapeChecked(t *testing.T) {
	f := &Function{
		Code:    CodeCReLU,
		Inputs:  ins(floatVar(tensor.Shape{2, 2})),
		Outputs: outs(floatVar(tensor.Shape{2, 2})),
		Config:  &AxisConfig{Axis: 1},
	}
	assert.ErrorIs(t, Default().Allocate(f), ErrInvalidShape)
}

func TestPReLU(t *testing.T) {
	x := floatVar(tensor.Shape{1, 2, 2}, -1, 2, -3, -4)

	shared := floatVar(tensor.Shape{1}, 0.5)
	y := floatVar(tensor.Shape{1, 2, 2})
	mustRun(t, &Function{Code: CodePReLU, Inputs: ins(x, shared), Outputs: outs(y), Config: &BaseAxisConfig{BaseAxis: 1}})
	assert.Equal(t, []float32{-0.5, 2, -1.5, -2}, y.Data)

	perChannel := floatVar(tensor.Shape{2}, 0.1, 0.2)
	z := floatVar(tensor.Shape{1, 2, 2})
	mustRun(t, &Function{Code: CodePReLU, Inputs: ins(x, perChannel), Outputs: outs(z), Config: &BaseAxisConfig{BaseAxis: 1}})
	assert.InDeltaSlice(t, []float32{-0.1, 2, -0.6, -0.8}, z.Data, 1e-6)
}

func TestPReLUSlopeMismatch(t *testing.T) {
	f := &Function{
		Code:    CodePReLU,
		Inputs:  ins(floatVar(tensor.Shape{1, 2, 2}), floatVar(tensor.Shape{3})),
		Outputs: outs(floatVar(tensor.Shape{1, 2, 2})),
		Config:  &BaseAxisConfig{BaseAxis: 1},
	}
	err := Default().Allocate(f)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidShape)
}
