package functions

import (
	"fmt"

	"github.com/chewxy/math32"
)

// BatchNormalizationConfig configures BatchNormalization. Axes names the
// channel axis; only a single axis is supported.
type BatchNormalizationConfig struct {
	Axes      []int   `yaml:"axes" json:"axes"`
	DecayRate float32 `yaml:"decay_rate" json:"decay_rate"`
	Eps       float32 `yaml:"eps" json:"eps"`
	BatchStat bool    `yaml:"batch_stat" json:"batch_stat"`
}

// setDefaults leaves BatchStat off: an omitted flag means inference with
// the running statistics.
func (c *BatchNormalizationConfig) setDefaults() {
	c.Axes = []int{1}
	c.DecayRate = 0.9
	c.Eps = 1e-5
}

// MeanSubtractionConfig configures MeanSubtraction.
type MeanSubtractionConfig struct {
	BaseAxis          int  `yaml:"base_axis" json:"base_axis"`
	UpdateRunningMean bool `yaml:"update_running_mean" json:"update_running_mean"`
}

func (c *MeanSubtractionConfig) setDefaults() { c.BaseAxis = 1 }

func (r *Registry) registerNormalization() {
	r.add(CodeBatchNormalization, newConfig[BatchNormalizationConfig], allocateBatchNormalization)
	r.add(CodeMeanSubtraction, newConfig[MeanSubtractionConfig], allocateMeanSubtraction)
}

// batchNormKernel normalizes per channel. With batchStat it computes the
// statistics of the current batch, folds them into the running statistics
// and optionally exposes them through the extra outputs.
type batchNormKernel struct {
	geo       axisGeometry
	eps       float32
	decay     float32
	batchStat bool

	input       []float32
	beta, gamma []float32
	mean, vari  []float32
	output      []float32
	batchMean   []float32
	batchVar    []float32
}

func allocateBatchNormalization(f *Function) (Kernel, error) {
	cfg, err := configOf[BatchNormalizationConfig](f)
	if err != nil {
		return nil, err
	}
	if len(f.Inputs) != 5 {
		return nil, fmt.Errorf("%w: want 5, got %d", ErrInvalidNumOfInputs, len(f.Inputs))
	}
	if len(f.Outputs) != 1 && len(f.Outputs) != 3 {
		return nil, fmt.Errorf("%w: want 1 or 3, got %d", ErrInvalidNumOfOutputs, len(f.Outputs))
	}
	if err := requireFloat(f); err != nil {
		return nil, err
	}
	axis := 1
	switch len(cfg.Axes) {
	case 0:
	case 1:
		axis = cfg.Axes[0]
	default:
		return nil, fmt.Errorf("%w: batch normalization over axes %v", ErrUnimplemented, cfg.Axes)
	}
	x, y := f.Inputs[0], f.Outputs[0]
	if err := sameSize(x, y); err != nil {
		return nil, err
	}
	geo, _, err := newAxisGeometry(x.Shape, axis)
	if err != nil {
		return nil, err
	}
	for i, v := range f.Inputs[1:] {
		if v.Len() != geo.n {
			return nil, fmt.Errorf("%w: statistic input %d has %d elements, want %d", ErrInvalidShape, i+1, v.Len(), geo.n)
		}
	}
	k := &batchNormKernel{
		geo:       geo,
		eps:       cfg.Eps,
		decay:     cfg.DecayRate,
		batchStat: cfg.BatchStat,
		input:     x.Data,
		beta:      f.Inputs[1].Data,
		gamma:     f.Inputs[2].Data,
		mean:      f.Inputs[3].Data,
		vari:      f.Inputs[4].Data,
		output:    y.Data,
	}
	if cfg.BatchStat {
		if len(f.Outputs) == 3 {
			for _, v := range f.Outputs[1:] {
				if v.Len() != geo.n {
					return nil, fmt.Errorf("%w: statistic output %v, want %d elements", ErrInvalidShape, v.Shape, geo.n)
				}
			}
			k.batchMean, k.batchVar = f.Outputs[1].Data, f.Outputs[2].Data
		} else {
			k.batchMean, k.batchVar = make([]float32, geo.n), make([]float32, geo.n)
		}
	}
	return k, nil
}

func (k *batchNormKernel) Exec() {
	mean, vari := k.mean, k.vari
	if k.batchStat {
		k.computeBatchStats()
		mean, vari = k.batchMean, k.batchVar
	}
	n, inner := k.geo.n, k.geo.inner
	for o := 0; o < k.geo.outer; o++ {
		for c := 0; c < n; c++ {
			scale := k.gamma[c] / math32.Sqrt(vari[c]+k.eps)
			shift := k.beta[c] - mean[c]*scale
			base := (o*n + c) * inner
			for i := base; i < base+inner; i++ {
				k.output[i] = k.input[i]*scale + shift
			}
		}
	}
}

func (k *batchNormKernel) computeBatchStats() {
	n, inner := k.geo.n, k.geo.inner
	count := float32(k.geo.outer * inner)
	for c := 0; c < n; c++ {
		var sum, sq float32
		for o := 0; o < k.geo.outer; o++ {
			base := (o*n + c) * inner
			for _, v := range k.input[base : base+inner] {
				sum += v
				sq += v * v
			}
		}
		m := sum / count
		v := sq/count - m*m
		k.batchMean[c] = m
		k.batchVar[c] = v
		unbiased := v
		if count > 1 {
			unbiased = v * count / (count - 1)
		}
		k.mean[c] = k.decay*k.mean[c] + (1-k.decay)*m
		k.vari[c] = k.decay*k.vari[c] + (1-k.decay)*unbiased
	}
}

// meanSubtractionKernel subtracts the running mean; with update it first
// folds the batch mean into the running mean and bumps the counter.
type meanSubtractionKernel struct {
	batch   int
	block   int
	update  bool
	input   []float32
	mean    []float32
	counter []float32
	output  []float32
}

func allocateMeanSubtraction(f *Function) (Kernel, error) {
	cfg, err := configOf[MeanSubtractionConfig](f)
	if err != nil {
		return nil, err
	}
	if err := checkArity(f, 3, 1); err != nil {
		return nil, err
	}
	if err := requireFloat(f); err != nil {
		return nil, err
	}
	x, mean, t, y := f.Inputs[0], f.Inputs[1], f.Inputs[2], f.Outputs[0]
	if err := sameSize(x, y); err != nil {
		return nil, err
	}
	axis, err := normalizeAxis(cfg.BaseAxis, len(x.Shape))
	if err != nil {
		return nil, err
	}
	block := x.Shape.SizeFrom(axis)
	if mean.Len() != block || t.Len() != 1 {
		return nil, fmt.Errorf("%w: running mean %v and counter %v for block %d", ErrInvalidShape, mean.Shape, t.Shape, block)
	}
	return &meanSubtractionKernel{
		batch:   x.Shape.SizeRange(0, axis),
		block:   block,
		update:  cfg.UpdateRunningMean,
		input:   x.Data,
		mean:    mean.Data,
		counter: t.Data,
		output:  y.Data,
	}, nil
}

func (k *meanSubtractionKernel) Exec() {
	if k.update {
		coef := 1 / (k.counter[0] + 1)
		for j := 0; j < k.block; j++ {
			var sum float32
			for b := 0; b < k.batch; b++ {
				sum += k.input[b*k.block+j]
			}
			k.mean[j] += (sum/float32(k.batch) - k.mean[j]) * coef
		}
		k.counter[0]++
	}
	for b := 0; b < k.batch; b++ {
		for j := 0; j < k.block; j++ {
			i := b*k.block + j
			k.output[i] = k.input[i] - k.mean[j]
		}
	}
}
