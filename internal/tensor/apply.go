package tensor

// UnaryOp transforms one element.
type UnaryOp func(x float32) float32

// BinaryOp combines two elements.
type BinaryOp func(a, b float32) float32

// ApplyUnary writes op(input[i]) to output[i] for i in [0, count).
// input and output may be the same buffer.
func ApplyUnary(input []float32, op UnaryOp, output []float32, count int) {
	input = input[:count]
	output = output[:count]
	for i, x := range input {
		output[i] = op(x)
	}
}

// ApplyScalar writes op(input[i], scalar) to output[i] for i in [0, count).
// This is the loop behind every *Scalar operator.
func ApplyScalar(input []float32, scalar float32, op BinaryOp, output []float32, count int) {
	input = input[:count]
	output = output[:count]
	for i, x := range input {
		output[i] = op(x, scalar)
	}
}

// ApplyElementwise writes op(a[i], b[i]) to output[i] for operands of equal size.
func ApplyElementwise(a, b []float32, op BinaryOp, output []float32, count int) {
	a = a[:count]
	b = b[:count]
	output = output[:count]
	for i := range output {
		output[i] = op(a[i], b[i])
	}
}

// ApplyBroadcast writes op over the broadcast of a and b without materializing
// the expanded operands.
func ApplyBroadcast(a, b []float32, op BinaryOp, output []float32, bc *Broadcaster) {
	if !bc.Needed {
		ApplyElementwise(a, b, op, output, bc.Size)
		return
	}
	for i := 0; i < bc.Size; i++ {
		ai, bi := bc.Offsets(i)
		output[i] = op(a[ai], b[bi])
	}
}

// ApplyUnaryGeneric is ApplyUnary over element accessors, used when either
// side is stored as fixed-point.
func ApplyUnaryGeneric(get Getter, op UnaryOp, set Setter, count int) {
	for i := 0; i < count; i++ {
		set(i, op(get(i)))
	}
}

// ApplyScalarGeneric is ApplyScalar over element accessors.
func ApplyScalarGeneric(get Getter, scalar float32, op BinaryOp, set Setter, count int) {
	for i := 0; i < count; i++ {
		set(i, op(get(i), scalar))
	}
}

// ApplyBroadcastGeneric is ApplyBroadcast over element accessors.
func ApplyBroadcastGeneric(a, b Getter, op BinaryOp, set Setter, bc *Broadcaster) {
	for i := 0; i < bc.Size; i++ {
		ai, bi := bc.Offsets(i)
		set(i, op(a(ai), b(bi)))
	}
}
