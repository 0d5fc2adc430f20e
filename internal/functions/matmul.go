package functions

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// BatchMatmulConfig configures BatchMatmul.
type BatchMatmulConfig struct {
	TransposeA bool `yaml:"transpose_a" json:"transpose_a"`
	TransposeB bool `yaml:"transpose_b" json:"transpose_b"`
}

// matrix describes one operand of a batched product as stored in memory.
type matrix struct {
	rows, cols int
	trans      blas.Transpose
}

func (m matrix) general(data []float32, batch int) blas32.General {
	n := m.rows * m.cols
	return blas32.General{
		Rows:   m.rows,
		Cols:   m.cols,
		Stride: m.cols,
		Data:   data[batch*n : (batch+1)*n],
	}
}

type batchMatmulKernel struct {
	batch  int
	a, b   matrix
	out    matrix
	inputA []float32
	inputB []float32
	output []float32
}

func allocateBatchMatmul(f *Function) (Kernel, error) {
	cfg, err := configOf[BatchMatmulConfig](f)
	if err != nil {
		return nil, err
	}
	if err := checkArity(f, 2, 1); err != nil {
		return nil, err
	}
	if err := requireFloat(f); err != nil {
		return nil, err
	}
	a, b, y := f.Inputs[0], f.Inputs[1], f.Outputs[0]
	if len(a.Shape) < 2 || len(b.Shape) < 2 {
		return nil, fmt.Errorf("%w: operands need at least 2 dims, got %v and %v", ErrInvalidShape, a.Shape, b.Shape)
	}

	ma := matrix{rows: a.Shape[len(a.Shape)-2], cols: a.Shape[len(a.Shape)-1], trans: blas.NoTrans}
	mb := matrix{rows: b.Shape[len(b.Shape)-2], cols: b.Shape[len(b.Shape)-1], trans: blas.NoTrans}
	m, ka := ma.rows, ma.cols
	if cfg.TransposeA {
		m, ka = ka, m
		ma.trans = blas.Trans
	}
	kb, n := mb.rows, mb.cols
	if cfg.TransposeB {
		kb, n = n, kb
		mb.trans = blas.Trans
	}
	if ka != kb {
		return nil, fmt.Errorf("%w: inner dimensions %d and %d differ", ErrInvalidShape, ka, kb)
	}
	batchA := a.Shape.SizeRange(0, len(a.Shape)-2)
	batchB := b.Shape.SizeRange(0, len(b.Shape)-2)
	if batchA != batchB {
		return nil, fmt.Errorf("%w: batch sizes %d and %d differ", ErrInvalidShape, batchA, batchB)
	}
	if y.Len() != batchA*m*n {
		return nil, fmt.Errorf("%w: output %v, want %d elements", ErrInvalidShape, y.Shape, batchA*m*n)
	}

	return &batchMatmulKernel{
		batch:  batchA,
		a:      ma,
		b:      mb,
		out:    matrix{rows: m, cols: n},
		inputA: a.Data,
		inputB: b.Data,
		output: y.Data,
	}, nil
}

func (k *batchMatmulKernel) Exec() {
	for i := 0; i < k.batch; i++ {
		blas32.Gemm(k.a.trans, k.b.trans, 1,
			k.a.general(k.inputA, i),
			k.b.general(k.inputB, i),
			0, k.out.general(k.output, i))
	}
}
