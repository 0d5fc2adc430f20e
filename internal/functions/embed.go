package functions

import (
	"fmt"

	"github.com/born-ml/nnrt/internal/tensor"
)

// embedKernel gathers rows of the weight matrix. Indices outside the table
// produce zero rows.
type embedKernel struct {
	index  tensor.Getter
	count  int
	rows   int
	width  int
	weight []float32
	output []float32
}

func allocateEmbed(f *Function) (Kernel, error) {
	if err := checkArity(f, 2, 1); err != nil {
		return nil, err
	}
	x, w, y := f.Inputs[0], f.Inputs[1], f.Outputs[0]
	if !w.IsFloat() || !y.IsFloat() {
		return nil, fmt.Errorf("%w: embedding table and output must be float", ErrUnimplemented)
	}
	if len(w.Shape) < 1 {
		return nil, fmt.Errorf("%w: weight %v", ErrInvalidShape, w.Shape)
	}
	want := append(x.Shape.Clone(), w.Shape[1:]...)
	if err := checkOutputSize(y, want); err != nil {
		return nil, err
	}
	return &embedKernel{
		index:  x.Getter(),
		count:  x.Len(),
		rows:   w.Shape[0],
		width:  w.Shape.SizeFrom(1),
		weight: w.Data,
		output: y.Data,
	}, nil
}

func (k *embedKernel) Exec() {
	for i := 0; i < k.count; i++ {
		dst := k.output[i*k.width : (i+1)*k.width]
		row := int(k.index(i))
		if row < 0 || row >= k.rows {
			clear(dst)
			continue
		}
		copy(dst, k.weight[row*k.width:(row+1)*k.width])
	}
}
