// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public variable model of the nnrt runtime.
//
// # Overview
//
// A Variable is a buffer bound to a shape and an element kind:
//   - Float32: plain float32 values
//   - Int16, Int8: fixed-point integers, value = stored * Coefficient
//   - Sign: one bit per element, +1 or -1
//
// # Basic Usage
//
//	import "github.com/born-ml/nnrt/tensor"
//
//	v, err := tensor.NewVariable(tensor.Shape{2, 3}, tensor.Int8, 4)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	v.CopyFrom([]float32{0.5, -1, 2, 0, 0.25, 7})
//
//	out := make([]float32, v.Len())
//	v.CopyTo(out) // values rounded toward zero and saturated
//
// Fixed-point storage rounds toward zero on store and saturates to the
// integer range, so CopyTo returns the representable value.
package tensor
