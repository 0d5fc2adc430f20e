package functions

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"

	"github.com/born-ml/nnrt/internal/tensor"
)

func TestElementwiseLosses(t *testing.T) {
	tests := []struct {
		code Code
		cfg  any
		want []float32
	}{
		{CodeSquaredError, nil, []float32{0.25, 9}},
		{CodeAbsoluteError, nil, []float32{0.5, 3}},
		{CodeHuberLoss, &HuberLossConfig{}, []float32{0.25, 5}},
		{CodeHuberLoss, &HuberLossConfig{Delta: 4}, []float32{0.25, 9}},
		{CodeEpsilonInsensitiveLoss, &EpsilonInsensitiveLossConfig{Epsilon: 1}, []float32{0, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			a := floatVar(tensor.Shape{2}, 1.5, -1)
			b := floatVar(tensor.Shape{2}, 1, 2)
			y := floatVar(tensor.Shape{2})
			mustRun(t, &Function{Code: tt.code, Inputs: ins(a, b), Outputs: outs(y), Config: tt.cfg})
			assert.InDeltaSlice(t, tt.want, y.Data, 1e-6)
		})
	}
}

func TestCrossEntropyOfProbabilities(t *testing.T) {
	x := floatVar(tensor.Shape{2}, 0.5, 0)
	labels := floatVar(tensor.Shape{2}, 1, 1)
	y := floatVar(tensor.Shape{2})
	mustRun(t, &Function{Code: CodeBinaryCrossEntropy, Inputs: ins(x, labels), Outputs: outs(y)})
	assert.InDelta(t, 0.693147, y.Data[0], 1e-5)
	assert.False(t, math32.IsInf(y.Data[1], 0), "log of zero is clamped")

	s := floatVar(tensor.Shape{2})
	mustRun(t, &Function{Code: CodeSigmoidCrossEntropy, Inputs: ins(floatVar(tensor.Shape{2}, 0, 100), labels), Outputs: outs(s)})
	assert.InDelta(t, 0.693147, s.Data[0], 1e-5)
	assert.InDelta(t, 0, s.Data[1], 1e-5)
}

func TestSoftmaxCrossEntropy(t *testing.T) {
	x := floatVar(tensor.Shape{3, 2}, 0, 0, 1000, 0, 1, 2)
	labels := fixedVar(tensor.Shape{3, 1}, tensor.Int8, 0, 0, 0, 5)
	y := floatVar(tensor.Shape{3, 1})
	mustRun(t, &Function{Code: CodeSoftmaxCrossEntropy, Inputs: ins(x, labels), Outputs: outs(y), Config: &AxisConfig{Axis: 1}})
	assert.InDeltaSlice(t, []float32{0.693147, 0, 0}, y.Data, 1e-5)
}

func TestCategoricalCrossEntropy(t *testing.T) {
	x := floatVar(tensor.Shape{1, 2}, 0.25, 0.75)
	labels := floatVar(tensor.Shape{1, 1}, 1)
	y := floatVar(tensor.Shape{1, 1})
	mustRun(t, &Function{Code: CodeCategoricalCrossEntropy, Inputs: ins(x, labels), Outputs: outs(y), Config: &AxisConfig{Axis: 1}})
	assert.InDelta(t, 0.287682, y.Data[0], 1e-5)
}

func TestCrossEntropyLabelShape(t *testing.T) {
	f := &Function{
		Code:    CodeSoftmaxCrossEntropy,
		Inputs:  ins(floatVar(tensor.Shape{3, 2}), floatVar(tensor.Shape{2})),
		Outputs: outs(floatVar(tensor.Shape{3, 1})),
		Config:  &AxisConfig{Axis: 1},
	}
	assert.ErrorIs(t, Default().Allocate(f), ErrInvalidShape)
}

func TestKLMultinomial(t *testing.T) {
	p := floatVar(tensor.Shape{2, 2}, 0.5, 0.5, 0.3, 0.7)
	q := floatVar(tensor.Shape{2, 2}, 0.25, 0.75, 0.3, 0.7)
	y := floatVar(tensor.Shape{2, 1})
	mustRun(t, &Function{Code: CodeKLMultinomial, Inputs: ins(p, q), Outputs: outs(y), Config: &BaseAxisConfig{BaseAxis: 1}})
	assert.InDeltaSlice(t, []float32{0.143841, 0}, y.Data, 1e-5)
}
