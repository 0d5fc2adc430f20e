package tensor

// BroadcastStrides computes strides for reading a buffer of shape in as if it
// had shape out. Dimensions of size 1 and missing leading dimensions get
// stride 0 so the same source element is reused.
func BroadcastStrides(in, out Shape) []int {
	outDim := len(out)
	strides := make([]int, outDim)

	inDim := len(in)
	offset := outDim - inDim
	origStrides := in.ComputeStrides()

	for i := 0; i < outDim; i++ {
		inIdx := i - offset
		switch {
		case inIdx < 0 || inIdx >= inDim:
			strides[i] = 0
		case in[inIdx] == 1:
			strides[i] = 0
		default:
			strides[i] = origStrides[inIdx]
		}
	}

	return strides
}

// StridedIndex converts a flat index into an output of the given row-major
// strides to an offset into a source buffer read with srcStrides.
func StridedIndex(flat int, outStrides, srcStrides []int) int {
	offset := 0
	for i := range outStrides {
		coord := flat / outStrides[i]
		flat %= outStrides[i]
		offset += coord * srcStrides[i]
	}
	return offset
}

// Broadcaster maps output positions of a binary operation onto its two
// operands. It is computed once and reused for every execution.
type Broadcaster struct {
	Shape    Shape // result shape
	Size     int
	Needed   bool
	outStr   []int
	aStrides []int
	bStrides []int
}

// NewBroadcaster resolves the result shape of a and b.
func NewBroadcaster(a, b Shape) (*Broadcaster, error) {
	out, needed, err := BroadcastShapes(a, b)
	if err != nil {
		return nil, err
	}
	return &Broadcaster{
		Shape:    out,
		Size:     out.NumElements(),
		Needed:   needed,
		outStr:   out.ComputeStrides(),
		aStrides: BroadcastStrides(a, out),
		bStrides: BroadcastStrides(b, out),
	}, nil
}

// Offsets returns the source offsets of a and b for output index i.
func (bc *Broadcaster) Offsets(i int) (int, int) {
	ai, bi := 0, 0
	for d, s := range bc.outStr {
		coord := i / s
		i %= s
		ai += coord * bc.aStrides[d]
		bi += coord * bc.bStrides[d]
	}
	return ai, bi
}
