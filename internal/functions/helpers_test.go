package functions

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/born-ml/nnrt/internal/tensor"
)

// floatVar builds a float variable of the given shape, filled from data.
func floatVar(shape tensor.Shape, data ...float32) *tensor.Variable {
	v, err := tensor.NewVariable(shape, tensor.Float32, 0)
	if err != nil {
		panic(err)
	}
	copy(v.Data, data)
	return v
}

func fixedVar(shape tensor.Shape, dtype tensor.DataType, fpPos uint8, data ...float32) *tensor.Variable {
	v, err := tensor.NewVariable(shape, dtype, fpPos)
	if err != nil {
		panic(err)
	}
	v.CopyFrom(data)
	return v
}

func values(v *tensor.Variable) []float32 {
	out := make([]float32, v.Len())
	v.CopyTo(out)
	return out
}

func ins(v ...*tensor.Variable) []*tensor.Variable { return v }
func outs(v ...*tensor.Variable) []*tensor.Variable { return v }

// mustRun allocates f with the default registry and executes it once.
func mustRun(t *testing.T, f *Function) {
	t.Helper()
	require.NoError(t, Default().Allocate(f))
	require.NoError(t, f.Exec())
}
