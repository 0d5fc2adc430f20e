package functions

import (
	"fmt"

	"github.com/born-ml/nnrt/internal/tensor"
)

func checkArity(f *Function, inputs, outputs int) error {
	if len(f.Inputs) != inputs {
		return fmt.Errorf("%w: want %d, got %d", ErrInvalidNumOfInputs, inputs, len(f.Inputs))
	}
	if len(f.Outputs) != outputs {
		return fmt.Errorf("%w: want %d, got %d", ErrInvalidNumOfOutputs, outputs, len(f.Outputs))
	}
	return nil
}

func checkInputRange(f *Function, minInputs, maxInputs, outputs int) error {
	if len(f.Inputs) < minInputs || len(f.Inputs) > maxInputs {
		return fmt.Errorf("%w: want %d..%d, got %d", ErrInvalidNumOfInputs, minInputs, maxInputs, len(f.Inputs))
	}
	if len(f.Outputs) != outputs {
		return fmt.Errorf("%w: want %d, got %d", ErrInvalidNumOfOutputs, outputs, len(f.Outputs))
	}
	return nil
}

// defaulter is implemented by configuration records whose parameters have
// non-zero defaults.
type defaulter interface {
	setDefaults()
}

// defaultConfig returns a new *T with its defaults applied.
func defaultConfig[T any]() *T {
	cfg := new(T)
	if d, ok := any(cfg).(defaulter); ok {
		d.setDefaults()
	}
	return cfg
}

// newConfig is the Entry.NewConfig of a family configured by T. Decoding a
// description into the record overrides only the keys it names.
func newConfig[T any]() any { return defaultConfig[T]() }

// configOf returns f.Config as *T. A nil config is replaced by the defaults.
func configOf[T any](f *Function) (*T, error) {
	if f.Config == nil {
		return defaultConfig[T](), nil
	}
	cfg, ok := f.Config.(*T)
	if !ok || cfg == nil {
		var zero T
		return nil, fmt.Errorf("%w: want %T, got %T", ErrInvalidConfig, &zero, f.Config)
	}
	return cfg, nil
}

// requireFloat rejects families that only run on float variables.
func requireFloat(f *Function) error {
	for i, v := range f.Inputs {
		if v != nil && !v.IsFloat() {
			return fmt.Errorf("%w: input %d is %s", ErrUnimplemented, i, v.Type)
		}
	}
	for i, v := range f.Outputs {
		if !v.IsFloat() {
			return fmt.Errorf("%w: output %d is %s", ErrUnimplemented, i, v.Type)
		}
	}
	return nil
}

func allFloat(vars ...*tensor.Variable) bool {
	for _, v := range vars {
		if v != nil && !v.IsFloat() {
			return false
		}
	}
	return true
}

func sameSize(in, out *tensor.Variable) error {
	if a, b := in.Len(), out.Len(); a != b {
		return fmt.Errorf("%w: input size %d != output size %d", ErrInvalidShape, a, b)
	}
	return nil
}

func checkOutputSize(out *tensor.Variable, want tensor.Shape) error {
	if out.Len() != want.NumElements() {
		return fmt.Errorf("%w: output %v, want %v", ErrInvalidShape, out.Shape, want)
	}
	return nil
}

func normalizeAxis(axis, ndim int) (int, error) {
	a, ok := tensor.NormalizeAxis(axis, ndim)
	if !ok {
		return 0, fmt.Errorf("%w: axis %d out of range for %d dims", ErrInvalidShape, axis, ndim)
	}
	return a, nil
}

// listOr returns l when it has n entries, a slice filled with def when l is
// empty, and an error otherwise.
func listOr(l []int, n, def int, name string) ([]int, error) {
	if len(l) == n {
		return l, nil
	}
	if len(l) != 0 {
		return nil, fmt.Errorf("%w: %s has %d entries, want %d", ErrInvalidConfig, name, len(l), n)
	}
	out := make([]int, n)
	for i := range out {
		out[i] = def
	}
	return out, nil
}

func boolToFloat(b bool) float32 {
	if b {
		return 1
	}
	return 0
}

// copyKernel copies one float buffer to another.
type copyKernel struct {
	in, out []float32
}

func (k *copyKernel) Exec() {
	copy(k.out, k.in)
}

// indexMapKernel implements the structural operators as a precomputed gather:
// out[i] = in[src[i]], with a negative source meaning zero.
type indexMapKernel struct {
	in, out []float32
	src     []int32
}

func (k *indexMapKernel) Exec() {
	in := k.in
	for i, s := range k.src {
		if s < 0 {
			k.out[i] = 0
			continue
		}
		k.out[i] = in[s]
	}
}

// forEachIndex visits every multi-index of shape in row-major order.
// idx is reused between calls.
func forEachIndex(shape tensor.Shape, fn func(flat int, idx []int)) {
	n := shape.NumElements()
	idx := make([]int, len(shape))
	for flat := 0; flat < n; flat++ {
		fn(flat, idx)
		for d := len(shape) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < shape[d] {
				break
			}
			idx[d] = 0
		}
	}
}
