package functions

import (
	"cmp"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/chewxy/math32"
)

// INQConfig holds the incremental network quantization schedule shared by
// INQAffine and INQConvolution.
type INQConfig struct {
	NumBits            int    `yaml:"num_bits" json:"num_bits"`
	InqIterations      []int  `yaml:"inq_iterations" json:"inq_iterations"`
	SelectionAlgorithm string `yaml:"selection_algorithm" json:"selection_algorithm"`
	Seed               int64  `yaml:"seed" json:"seed"`
}

// INQAffineConfig configures INQAffine.
type INQAffineConfig struct {
	AffineConfig `yaml:",inline"`
	INQConfig    `yaml:",inline"`
}

func (c *INQAffineConfig) setDefaults() { c.AffineConfig.setDefaults() }

// INQConvolutionConfig configures INQConvolution.
type INQConvolutionConfig struct {
	ConvolutionConfig `yaml:",inline"`
	INQConfig         `yaml:",inline"`
}

func (c *INQConvolutionConfig) setDefaults() { c.ConvolutionConfig.setDefaults() }

// FixedPointQuantizeConfig configures FixedPointQuantize. N defaults to 8
// bits and Delta to 2^-4.
type FixedPointQuantizeConfig struct {
	Sign  bool    `yaml:"sign" json:"sign"`
	N     int     `yaml:"n" json:"n"`
	Delta float32 `yaml:"delta" json:"delta"`
}

// Pow2QuantizeConfig configures Pow2Quantize. N defaults to 8 bits.
type Pow2QuantizeConfig struct {
	Sign     bool `yaml:"sign" json:"sign"`
	WithZero bool `yaml:"with_zero" json:"with_zero"`
	N        int  `yaml:"n" json:"n"`
	M        int  `yaml:"m" json:"m"`
}

func (r *Registry) registerQuantization() {
	r.add(CodeBinarySigmoid, nil, unary(func(x float32) float32 { return boolToFloat(x > 0) }))
	r.add(CodeBinaryTanh, nil, unary(func(x float32) float32 {
		if x > 0 {
			return 1
		}
		return -1
	}))
	r.add(CodeBinaryConnectAffine, newConfig[AffineConfig], weightedAffine(binaryConnectSlots))
	r.add(CodeBinaryConnectConvolution, newConfig[ConvolutionConfig], weightedConvolution(binaryConnectSlots))
	r.add(CodeBinaryWeightAffine, newConfig[AffineConfig], weightedAffine(binaryWeightSlots))
	r.add(CodeBinaryWeightConvolution, newConfig[ConvolutionConfig], weightedConvolution(binaryWeightSlots))
	r.add(CodeINQAffine, newConfig[INQAffineConfig], allocateINQAffine)
	r.add(CodeINQConvolution, newConfig[INQConvolutionConfig], allocateINQConvolution)
	r.add(CodeFixedPointQuantize, newConfig[FixedPointQuantizeConfig], allocateFixedPointQuantize)
	r.add(CodePow2Quantize, newConfig[Pow2QuantizeConfig], allocatePow2Quantize)
}

func weightedAffine(slots layerSlots) Allocator {
	return func(f *Function) (Kernel, error) {
		cfg, err := configOf[AffineConfig](f)
		if err != nil {
			return nil, err
		}
		return newAffineKernel(f, cfg.BaseAxis, slots)
	}
}

func weightedConvolution(slots layerSlots) Allocator {
	return func(f *Function) (Kernel, error) {
		cfg, err := configOf[ConvolutionConfig](f)
		if err != nil {
			return nil, err
		}
		return newConvolutionKernel(f, cfg, slots)
	}
}

// Selection algorithms of INQ.
const (
	SelectLargest    = "largest"
	SelectLargestAbs = "largest_abs"
	SelectRandom     = "random"
)

// inqWeights keeps the quantized weight buffer of an INQ layer. Weights
// flagged by the indicator input, or selected by the schedule, are replaced
// by the nearest power of two; the rest pass through.
type inqWeights struct {
	cfg       INQConfig
	weight    operand
	indicator operand
	selected  []bool
	quantized []float32
	free      []int
	iteration int
	rng       *rand.Rand

	order func(a, b int) int
	swap  func(i, j int)
}

func newINQWeights(f *Function, cfg INQConfig) (*inqWeights, error) {
	if cfg.NumBits == 0 {
		cfg.NumBits = 4
	}
	if cfg.NumBits < 2 {
		return nil, fmt.Errorf("%w: num_bits %d", ErrInvalidConfig, cfg.NumBits)
	}
	switch cfg.SelectionAlgorithm {
	case "":
		cfg.SelectionAlgorithm = SelectLargestAbs
	case SelectLargest, SelectLargestAbs, SelectRandom:
	default:
		return nil, fmt.Errorf("%w: selection algorithm %q", ErrInvalidConfig, cfg.SelectionAlgorithm)
	}
	if len(f.Inputs) < 3 {
		return nil, fmt.Errorf("%w: want at least 3, got %d", ErrInvalidNumOfInputs, len(f.Inputs))
	}
	w, ind := f.Inputs[inqSlots.weight], f.Inputs[2]
	if ind.Len() != w.Len() {
		return nil, fmt.Errorf("%w: indicator %v for weight %v", ErrInvalidShape, ind.Shape, w.Shape)
	}
	q := &inqWeights{
		cfg:       cfg,
		weight:    operandOf(w),
		indicator: operandOf(ind),
		selected:  make([]bool, w.Len()),
		quantized: make([]float32, w.Len()),
		free:      make([]int, 0, w.Len()),
		rng:       newGenerator(cfg.Seed),
	}
	get := q.weight.get
	switch cfg.SelectionAlgorithm {
	case SelectLargest:
		q.order = func(a, b int) int { return cmp.Compare(get(b), get(a)) }
	default:
		q.order = func(a, b int) int { return cmp.Compare(math32.Abs(get(b)), math32.Abs(get(a))) }
	}
	q.swap = func(i, j int) { q.free[i], q.free[j] = q.free[j], q.free[i] }
	return q, nil
}

// operand exposes the quantized buffer as a float operand.
func (q *inqWeights) operand() operand {
	buf := q.quantized
	return operand{data: buf, get: func(i int) float32 { return buf[i] }}
}

func (q *inqWeights) fixed(i int) bool {
	return q.selected[i] || q.indicator.get(i) != 0
}

// update advances the schedule by one execution and refreshes the
// quantized buffer.
func (q *inqWeights) update() {
	if its := q.cfg.InqIterations; slices.Contains(its, q.iteration) {
		q.selectMore(q.iteration == slices.Max(its))
	}
	q.iteration++

	n := len(q.quantized)
	var maxAbs float32
	for i := 0; i < n; i++ {
		maxAbs = max(maxAbs, math32.Abs(q.weight.get(i)))
	}
	if maxAbs == 0 {
		clear(q.quantized)
		return
	}
	hi := int(math32.Floor(math32.Log2(4 * maxAbs / 3)))
	lo := hi + 1 - (1 << (q.cfg.NumBits - 2))
	for i := 0; i < n; i++ {
		w := q.weight.get(i)
		if q.fixed(i) {
			w = pow2Level(w, lo, hi)
		}
		q.quantized[i] = w
	}
}

// selectMore fixes half of the remaining free weights, or all of them.
// largest ranks by signed value, largest_abs by magnitude. The scratch
// list and comparators are built at allocation.
func (q *inqWeights) selectMore(all bool) {
	q.free = q.free[:0]
	for i := range q.selected {
		if !q.fixed(i) {
			q.free = append(q.free, i)
		}
	}
	count := len(q.free)
	if !all {
		count = (count + 1) / 2
	}
	if q.cfg.SelectionAlgorithm == SelectRandom {
		q.rng.Shuffle(len(q.free), q.swap)
	} else {
		slices.SortStableFunc(q.free, q.order)
	}
	for _, i := range q.free[:count] {
		q.selected[i] = true
	}
}

// pow2Level rounds w to the nearest level in {0, ±2^lo, ..., ±2^hi}.
func pow2Level(w float32, lo, hi int) float32 {
	a := math32.Abs(w)
	if a == 0 || a < math32.Ldexp(1, lo-1) {
		return 0
	}
	e := int(math32.Floor(math32.Log2(4 * a / 3)))
	e = min(max(e, lo), hi)
	return math32.Copysign(math32.Ldexp(1, e), w)
}

func allocateINQAffine(f *Function) (Kernel, error) {
	cfg, err := configOf[INQAffineConfig](f)
	if err != nil {
		return nil, err
	}
	k, err := newAffineKernel(f, cfg.BaseAxis, inqSlots)
	if err != nil {
		return nil, err
	}
	q, err := newINQWeights(f, cfg.INQConfig)
	if err != nil {
		return nil, err
	}
	k.w = q.operand()
	k.prepare = q.update
	k.selectStrategy()
	return k, nil
}

func allocateINQConvolution(f *Function) (Kernel, error) {
	cfg, err := configOf[INQConvolutionConfig](f)
	if err != nil {
		return nil, err
	}
	k, err := newConvolutionKernel(f, &cfg.ConvolutionConfig, inqSlots)
	if err != nil {
		return nil, err
	}
	q, err := newINQWeights(f, cfg.INQConfig)
	if err != nil {
		return nil, err
	}
	k.w = q.operand()
	k.prepare = q.update
	k.selectStrategy()
	return k, nil
}

func allocateFixedPointQuantize(f *Function) (Kernel, error) {
	cfg, err := configOf[FixedPointQuantizeConfig](f)
	if err != nil {
		return nil, err
	}
	n, delta := cfg.N, cfg.Delta
	if n == 0 {
		n = 8
	}
	if delta == 0 {
		delta = 0.0625
	}
	if n < 2 || delta < 0 {
		return nil, fmt.Errorf("%w: n %d delta %v", ErrInvalidConfig, n, delta)
	}
	var lo, hi float32
	if cfg.Sign {
		hi = float32(int(1)<<(n-1)-1) * delta
		lo = -hi
	} else {
		hi = float32(int(1)<<n-1) * delta
	}
	return allocateUnary(f, func(x float32) float32 {
		x = min(max(x, lo), hi)
		return math32.Copysign(math32.Floor(math32.Abs(x)/delta+0.5), x) * delta
	}, false)
}

func allocatePow2Quantize(f *Function) (Kernel, error) {
	cfg, err := configOf[Pow2QuantizeConfig](f)
	if err != nil {
		return nil, err
	}
	n := cfg.N
	if n == 0 {
		n = 8
	}
	bits := n
	if cfg.Sign {
		bits--
	}
	if cfg.WithZero {
		bits--
	}
	if bits < 0 || bits > 30 {
		return nil, fmt.Errorf("%w: n %d with sign %v and zero %v", ErrInvalidConfig, n, cfg.Sign, cfg.WithZero)
	}
	pMax := math32.Ldexp(1, cfg.M)
	pMin := math32.Ldexp(1, cfg.M-(1<<bits)+1)
	prune := pMin * math.Sqrt2 / 2
	sign, withZero := cfg.Sign, cfg.WithZero
	return allocateUnary(f, func(x float32) float32 {
		a := math32.Abs(x)
		if withZero && a < prune {
			return 0
		}
		q := pMin
		if a > 0 {
			q = math32.Exp2(math32.Floor(math32.Log2(a) + 0.5))
			q = min(max(q, pMin), pMax)
		}
		switch {
		case x >= 0:
			return q
		case sign:
			return -q
		case withZero:
			return 0
		default:
			return pMin
		}
	}, false)
}
