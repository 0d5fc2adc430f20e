package functions

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/nnrt/internal/tensor"
)

// DropoutConfig configures Dropout. Inference never drops, so P and Seed are
// only validated.
type DropoutConfig struct {
	P    float32 `yaml:"p" json:"p"`
	Seed int64   `yaml:"seed" json:"seed"`
}

func (c *DropoutConfig) setDefaults() { c.P = 0.5 }

// RandConfig configures Rand and Randint, which draw uniformly from
// [Low, High).
type RandConfig struct {
	Low   float32 `yaml:"low" json:"low"`
	High  float32 `yaml:"high" json:"high"`
	Shape []int   `yaml:"shape" json:"shape"`
	Seed  int64   `yaml:"seed" json:"seed"`
}

// RandnConfig configures Randn.
type RandnConfig struct {
	Mu    float32 `yaml:"mu" json:"mu"`
	Sigma float32 `yaml:"sigma" json:"sigma"`
	Shape []int   `yaml:"shape" json:"shape"`
	Seed  int64   `yaml:"seed" json:"seed"`
}

func (c *RandnConfig) setDefaults() { c.Sigma = 1 }

func (r *Registry) registerStochastic() {
	r.add(CodeDropout, newConfig[DropoutConfig], allocateDropout)
	r.add(CodeRand, newConfig[RandConfig], allocateRand)
	r.add(CodeRandint, newConfig[RandConfig], allocateRandint)
	r.add(CodeRandn, newConfig[RandnConfig], allocateRandn)
}

// newGenerator returns a generator seeded with seed, or randomly seeded
// when seed is negative.
func newGenerator(seed int64) *rand.Rand {
	if seed < 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(uint64(seed), 0))
}

func allocateDropout(f *Function) (Kernel, error) {
	cfg, err := configOf[DropoutConfig](f)
	if err != nil {
		return nil, err
	}
	if cfg.P < 0 || cfg.P >= 1 {
		return nil, fmt.Errorf("%w: dropout probability %v", ErrInvalidConfig, cfg.P)
	}
	if err := checkSingleFloat(f); err != nil {
		return nil, err
	}
	in, out := f.Inputs[0], f.Outputs[0]
	if err := sameSize(in, out); err != nil {
		return nil, err
	}
	return &copyKernel{in: in.Data, out: out.Data}, nil
}

// randomKernel fills its output from draw on every execution.
type randomKernel struct {
	draw   func() float32
	output []float32
}

func (k *randomKernel) Exec() {
	for i := range k.output {
		k.output[i] = k.draw()
	}
}

func allocateRandom(f *Function, shape []int, draw func() float32) (Kernel, error) {
	if err := checkArity(f, 0, 1); err != nil {
		return nil, err
	}
	if err := requireFloat(f); err != nil {
		return nil, err
	}
	out := f.Outputs[0]
	if len(shape) > 0 {
		if err := checkOutputSize(out, tensor.Shape(shape)); err != nil {
			return nil, err
		}
	}
	return &randomKernel{draw: draw, output: out.Data}, nil
}

func allocateRand(f *Function) (Kernel, error) {
	cfg, err := configOf[RandConfig](f)
	if err != nil {
		return nil, err
	}
	low, high := cfg.Low, cfg.High
	if high == 0 && low == 0 {
		high = 1
	}
	if high <= low {
		return nil, fmt.Errorf("%w: empty range [%v, %v)", ErrInvalidConfig, low, high)
	}
	g := newGenerator(cfg.Seed)
	return allocateRandom(f, cfg.Shape, func() float32 {
		return low + (high-low)*g.Float32()
	})
}

func allocateRandint(f *Function) (Kernel, error) {
	cfg, err := configOf[RandConfig](f)
	if err != nil {
		return nil, err
	}
	low, high := int64(cfg.Low), int64(cfg.High)
	if high <= low {
		return nil, fmt.Errorf("%w: empty range [%d, %d)", ErrInvalidConfig, low, high)
	}
	g := newGenerator(cfg.Seed)
	return allocateRandom(f, cfg.Shape, func() float32 {
		return float32(low + g.Int64N(high-low))
	})
}

func allocateRandn(f *Function) (Kernel, error) {
	cfg, err := configOf[RandnConfig](f)
	if err != nil {
		return nil, err
	}
	mu, sigma := cfg.Mu, cfg.Sigma
	if sigma == 0 {
		sigma = 1
	}
	g := newGenerator(cfg.Seed)
	return allocateRandom(f, cfg.Shape, func() float32 {
		return mu + sigma*float32(g.NormFloat64())
	})
}
