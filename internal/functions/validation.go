package functions

import (
	"fmt"

	"github.com/born-ml/nnrt/internal/tensor"
)

// TopNErrorConfig configures TopNError. N defaults to 1.
type TopNErrorConfig struct {
	Axis int `yaml:"axis" json:"axis"`
	N    int `yaml:"n" json:"n"`
}

func (r *Registry) registerValidation() {
	r.add(CodeTopNError, newConfig[TopNErrorConfig], allocateTopNError)
	r.add(CodeBinaryError, nil, binary(func(x, t float32) float32 { return boolToFloat((x >= 0.5) != (t >= 0.5)) }))
	r.add(CodeConfusionMatrix, newConfig[AxisConfig], allocateConfusionMatrix)
}

// labelled holds the common shape checks of the classification metrics:
// scores x along a class axis and one integer label per position.
type labelled struct {
	geo    axisGeometry
	scores []float32
	label  tensor.Getter
}

func newLabelled(f *Function, axis int) (labelled, error) {
	if err := checkArity(f, 2, 1); err != nil {
		return labelled{}, err
	}
	x, t, y := f.Inputs[0], f.Inputs[1], f.Outputs[0]
	if !x.IsFloat() || !y.IsFloat() {
		return labelled{}, fmt.Errorf("%w: scores and result must be float", ErrUnimplemented)
	}
	geo, _, err := newAxisGeometry(x.Shape, axis)
	if err != nil {
		return labelled{}, err
	}
	if t.Len() != geo.outer*geo.inner {
		return labelled{}, fmt.Errorf("%w: labels %v for scores %v", ErrInvalidShape, t.Shape, x.Shape)
	}
	return labelled{geo: geo, scores: x.Data, label: t.Getter()}, nil
}

// argmax returns the first class with the highest score at position
// (o, i).
func (l labelled) argmax(o, i int) int {
	n, inner := l.geo.n, l.geo.inner
	base := o*n*inner + i
	best := 0
	for c := 1; c < n; c++ {
		if l.scores[base+c*inner] > l.scores[base+best*inner] {
			best = c
		}
	}
	return best
}

// topNErrorKernel writes 1 where the labelled class is not among the n
// highest scores.
type topNErrorKernel struct {
	labelled
	n      int
	output []float32
}

func allocateTopNError(f *Function) (Kernel, error) {
	cfg, err := configOf[TopNErrorConfig](f)
	if err != nil {
		return nil, err
	}
	l, err := newLabelled(f, cfg.Axis)
	if err != nil {
		return nil, err
	}
	y := f.Outputs[0]
	if y.Len() != l.geo.outer*l.geo.inner {
		return nil, fmt.Errorf("%w: output %v", ErrInvalidShape, y.Shape)
	}
	return &topNErrorKernel{labelled: l, n: max(cfg.N, 1), output: y.Data}, nil
}

func (k *topNErrorKernel) Exec() {
	n, inner := k.geo.n, k.geo.inner
	for o := 0; o < k.geo.outer; o++ {
		for i := 0; i < inner; i++ {
			pos := o*inner + i
			label := int(k.label(pos))
			if label < 0 || label >= n {
				k.output[pos] = 1
				continue
			}
			base := o*n*inner + i
			target := k.scores[base+label*inner]
			higher := 0
			for c := 0; c < n; c++ {
				if k.scores[base+c*inner] > target {
					higher++
				}
			}
			k.output[pos] = boolToFloat(higher >= k.n)
		}
	}
}

// confusionMatrixKernel counts (label, prediction) pairs into a square
// matrix indexed [label][argmax].
type confusionMatrixKernel struct {
	labelled
	output []float32
}

func allocateConfusionMatrix(f *Function) (Kernel, error) {
	cfg, err := configOf[AxisConfig](f)
	if err != nil {
		return nil, err
	}
	l, err := newLabelled(f, cfg.Axis)
	if err != nil {
		return nil, err
	}
	y := f.Outputs[0]
	if y.Len() != l.geo.n*l.geo.n {
		return nil, fmt.Errorf("%w: output %v, want [%d %d]", ErrInvalidShape, y.Shape, l.geo.n, l.geo.n)
	}
	return &confusionMatrixKernel{labelled: l, output: y.Data}, nil
}

func (k *confusionMatrixKernel) Exec() {
	clear(k.output)
	n, inner := k.geo.n, k.geo.inner
	for o := 0; o < k.geo.outer; o++ {
		for i := 0; i < inner; i++ {
			label := int(k.label(o*inner + i))
			if label < 0 || label >= n {
				continue
			}
			k.output[label*n+k.argmax(o, i)]++
		}
	}
}
