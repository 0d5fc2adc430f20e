// Package functions implements the operator families of the runtime.
//
// Every family follows the same lifecycle. A Function record binds an
// operator Code to its input and output variables and a configuration
// record. Registry.Allocate validates arity, shapes and configuration and
// derives a Kernel holding everything Exec needs; Exec then runs without
// allocating and without failing; Free releases the kernel.
//
//	f := &functions.Function{
//	    Code:    functions.CodeAffine,
//	    Inputs:  []*tensor.Variable{x, w, b},
//	    Outputs: []*tensor.Variable{y},
//	    Config:  &functions.AffineConfig{BaseAxis: 1},
//	}
//	if err := functions.Default().Allocate(f); err != nil {
//	    return err
//	}
//	defer f.Free()
//	_ = f.Exec()
//
// Kernels pick their strategy at allocation. Float variables use the
// slices directly (and gonum Gemm for affine and convolution layers);
// fixed-point and sign variables go through per-element getters and setters.
//
// Errors wrap the sentinels in errors.go; StatusOf maps them to the numeric
// status codes.
package functions
