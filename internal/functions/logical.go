package functions

// LogicalScalarConfig configures LogicalAndScalar, LogicalOrScalar and
// LogicalXorScalar.
type LogicalScalarConfig struct {
	Val bool `yaml:"val" json:"val"`
}

// registerLogical adds comparison and logical families. Non-zero is true;
// results are 1 or 0.
func (r *Registry) registerLogical() {
	r.add(CodeLogicalAnd, nil, binary(logicalAnd))
	r.add(CodeLogicalOr, nil, binary(logicalOr))
	r.add(CodeLogicalXor, nil, binary(logicalXor))
	r.add(CodeEqual, nil, binary(func(a, b float32) float32 { return boolToFloat(a == b) }))
	r.add(CodeNotEqual, nil, binary(func(a, b float32) float32 { return boolToFloat(a != b) }))
	r.add(CodeGreaterEqual, nil, binary(func(a, b float32) float32 { return boolToFloat(a >= b) }))
	r.add(CodeGreater, nil, binary(func(a, b float32) float32 { return boolToFloat(a > b) }))
	r.add(CodeLessEqual, nil, binary(func(a, b float32) float32 { return boolToFloat(a <= b) }))
	r.add(CodeLess, nil, binary(func(a, b float32) float32 { return boolToFloat(a < b) }))

	r.add(CodeLogicalAndScalar, newConfig[LogicalScalarConfig], logicalScalar(logicalAnd))
	r.add(CodeLogicalOrScalar, newConfig[LogicalScalarConfig], logicalScalar(logicalOr))
	r.add(CodeLogicalXorScalar, newConfig[LogicalScalarConfig], logicalScalar(logicalXor))

	r.add(CodeEqualScalar, newConfig[ScalarConfig], scalar(func(x, v float32) float32 { return boolToFloat(x == v) }))
	r.add(CodeNotEqualScalar, newConfig[ScalarConfig], scalar(func(x, v float32) float32 { return boolToFloat(x != v) }))
	r.add(CodeGreaterEqualScalar, newConfig[ScalarConfig], scalar(func(x, v float32) float32 { return boolToFloat(x >= v) }))
	r.add(CodeGreaterScalar, newConfig[ScalarConfig], scalar(func(x, v float32) float32 { return boolToFloat(x > v) }))
	r.add(CodeLessEqualScalar, newConfig[ScalarConfig], scalar(func(x, v float32) float32 { return boolToFloat(x <= v) }))
	r.add(CodeLessScalar, newConfig[ScalarConfig], scalar(func(x, v float32) float32 { return boolToFloat(x < v) }))

	r.add(CodeLogicalNot, nil, unary(func(x float32) float32 { return boolToFloat(x == 0) }))
}

func logicalAnd(a, b float32) float32 { return boolToFloat(a != 0 && b != 0) }
func logicalOr(a, b float32) float32  { return boolToFloat(a != 0 || b != 0) }
func logicalXor(a, b float32) float32 { return boolToFloat((a != 0) != (b != 0)) }

func logicalScalar(op func(a, b float32) float32) Allocator {
	return func(f *Function) (Kernel, error) {
		cfg, err := configOf[LogicalScalarConfig](f)
		if err != nil {
			return nil, err
		}
		return allocateScalar(f, op, boolToFloat(cfg.Val))
	}
}
