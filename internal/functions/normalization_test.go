package functions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/nnrt/internal/tensor"
)

func TestBatchNormalizationInference(t *testing.T) {
	x := floatVar(tensor.Shape{2, 2}, 3, 4, 5, 0)
	beta := floatVar(tensor.Shape{2}, 0, 1)
	gamma := floatVar(tensor.Shape{2}, 1, 2)
	mean := floatVar(tensor.Shape{2}, 1, 2)
	vari := floatVar(tensor.Shape{2}, 4, 1)
	y := floatVar(tensor.Shape{2, 2})
	mustRun(t, &Function{
		Code:    CodeBatchNormalization,
		Inputs:  ins(x, beta, gamma, mean, vari),
		Outputs: outs(y),
		Config:  &BatchNormalizationConfig{Axes: []int{1}},
	})
	assert.InDeltaSlice(t, []float32{1, 5, 2, -3}, y.Data, 1e-6)
	assert.Equal(t, []float32{1, 2}, mean.Data, "running statistics are untouched")
}

func TestBatchNormalizationDefaultEps(t *testing.T) {
	x := floatVar(tensor.Shape{1, 2}, 1, -1)
	one, zero := floatVar(tensor.Shape{2}, 1, 1), floatVar(tensor.Shape{2})
	y := floatVar(tensor.Shape{1, 2})
	mustRun(t, &Function{
		Code:    CodeBatchNormalization,
		Inputs:  ins(x, zero, one, floatVar(tensor.Shape{2}), floatVar(tensor.Shape{2})),
		Outputs: outs(y),
	})
	assert.InDeltaSlice(t, []float32{316.2278, -316.2278}, y.Data, 1e-3)
}

func TestBatchNormalizationBatchStat(t *testing.T) {
	x := floatVar(tensor.Shape{2, 1}, 1, 3)
	mean := floatVar(tensor.Shape{1}, 0)
	vari := floatVar(tensor.Shape{1}, 1)
	y := floatVar(tensor.Shape{2, 1})
	bm, bv := floatVar(tensor.Shape{1}), floatVar(tensor.Shape{1})
	mustRun(t, &Function{
		Code:    CodeBatchNormalization,
		Inputs:  ins(x, floatVar(tensor.Shape{1}, 0), floatVar(tensor.Shape{1}, 1), mean, vari),
		Outputs: outs(y, bm, bv),
		Config:  &BatchNormalizationConfig{Axes: []int{1}, DecayRate: 0.5, BatchStat: true},
	})
	assert.InDeltaSlice(t, []float32{-1, 1}, y.Data, 1e-6)
	assert.Equal(t, []float32{2}, bm.Data)
	assert.Equal(t, []float32{1}, bv.Data)
	assert.InDelta(t, 1, mean.Data[0], 1e-6)
	assert.InDelta(t, 1.5, vari.Data[0], 1e-6, "running variance folds in the unbiased estimate")
}

func TestBatchNormalizationRejects(t *testing.T) {
	stats := func() []*tensor.Variable {
		return ins(floatVar(tensor.Shape{2}), floatVar(tensor.Shape{2}), floatVar(tensor.Shape{2}), floatVar(tensor.Shape{2}))
	}
	x := floatVar(tensor.Shape{2, 2})

	multi := &Function{
		Code:    CodeBatchNormalization,
		Inputs:  append(ins(x), stats()...),
		Outputs: outs(floatVar(tensor.Shape{2, 2})),
		Config:  &BatchNormalizationConfig{Axes: []int{0, 1}},
	}
	assert.ErrorIs(t, Default().Allocate(multi), ErrUnimplemented)

	outputs := &Function{
		Code:    CodeBatchNormalization,
		Inputs:  append(ins(x), stats()...),
		Outputs: outs(floatVar(tensor.Shape{2, 2}), floatVar(tensor.Shape{2})),
	}
	assert.ErrorIs(t, Default().Allocate(outputs), ErrInvalidNumOfOutputs)

	wrongStat := &Function{
		Code:    CodeBatchNormalization,
		Inputs:  ins(x, floatVar(tensor.Shape{3}), floatVar(tensor.Shape{2}), floatVar(tensor.Shape{2}), floatVar(tensor.Shape{2})),
		Outputs: outs(floatVar(tensor.Shape{2, 2})),
	}
	assert.ErrorIs(t, Default().Allocate(wrongStat), ErrInvalidShape)
}

func TestMeanSubtraction(t *testing.T) {
	x := floatVar(tensor.Shape{2, 2}, 1, 2, 3, 4)
	mean := floatVar(tensor.Shape{2})
	counter := floatVar(tensor.Shape{1})
	y := floatVar(tensor.Shape{2, 2})
	f := &Function{
		Code:    CodeMeanSubtraction,
		Inputs:  ins(x, mean, counter),
		Outputs: outs(y),
		Config:  &MeanSubtractionConfig{BaseAxis: 1, UpdateRunningMean: true},
	}
	mustRun(t, f)
	assert.Equal(t, []float32{2, 3}, mean.Data)
	assert.Equal(t, float32(1), counter.Data[0])
	assert.Equal(t, []float32{-1, -1, 1, 1}, y.Data)

	require.NoError(t, f.Exec())
	assert.Equal(t, []float32{2, 3}, mean.Data)
	assert.Equal(t, float32(2), counter.Data[0])
}

func TestMeanSubtractionFixedMean(t *testing.T) {
	x := floatVar(tensor.Shape{2, 2}, 1, 2, 3, 4)
	mean := floatVar(tensor.Shape{2}, 1, 1)
	counter := floatVar(tensor.Shape{1}, 7)
	y := floatVar(tensor.Shape{2, 2})
	mustRun(t, &Function{Code: CodeMeanSubtraction, Inputs: ins(x, mean, counter), Outputs: outs(y), Config: &MeanSubtractionConfig{BaseAxis: 1}})
	assert.Equal(t, []float32{0, 1, 2, 3}, y.Data)
	assert.Equal(t, float32(7), counter.Data[0])
}
