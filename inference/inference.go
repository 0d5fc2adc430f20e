// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package inference runs neural network descriptions on the CPU.
//
// # Supported Features
//
//   - YAML and JSON network descriptions
//   - Parameters inline, as half-precision bit patterns or in a SafeTensors file
//   - Float32, Int16, Int8 and Sign variables
//   - More than a hundred operator families (see SupportedOps)
//
// # Example Usage
//
//	import "github.com/born-ml/nnrt/inference"
//
//	ctx, err := inference.Load("mlp.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ctx.Close()
//
//	n, _ := ctx.OutputSize(0)
//	out := make([]float32, n)
//	if err := ctx.Forward([][]float32{x}, [][]float32{out}); err != nil {
//	    log.Fatal(err)
//	}
package inference

import (
	"github.com/born-ml/nnrt/internal/functions"
	"github.com/born-ml/nnrt/internal/network"
	"github.com/born-ml/nnrt/internal/runtime"
)

// Context is an allocated network ready for forward passes.
//
// This interface hides the internal implementation so callers can mock it
// in tests. A Context is not safe for concurrent use.
type Context interface {
	// Forward copies inputs in, executes every function in order and
	// copies outputs out. A nil slice skips its copy.
	Forward(inputs, outputs [][]float32) error

	NumInputs() int
	InputSize(i int) (int, error)
	InputDimension(i int) (int, error)
	InputShape(i, axis int) (int, error)
	InputBuffer(i int) ([]float32, error)

	NumOutputs() int
	OutputSize(i int) (int, error)
	OutputDimension(i int) (int, error)
	OutputShape(i, axis int) (int, error)
	OutputBuffer(i int) ([]float32, error)

	// Close frees every local context. It is safe to call twice.
	Close() error
}

// Network is a parsed and validated network description.
type Network = network.Network

// Options configures context creation.
type Options = runtime.Options

// Errors reported by Load and New. Use errors.Is to match them.
var (
	ErrAllocateContext    = runtime.ErrAllocateContext
	ErrInvalidBufferIndex = runtime.ErrInvalidBufferIndex
	ErrInvalidBufferSize  = runtime.ErrInvalidBufferSize
	ErrInitVariable       = runtime.ErrInitVariable
	ErrVersionUnmatch     = runtime.ErrVersionUnmatch
	ErrInvalidNetwork     = network.ErrInvalidNetwork
	ErrUnknownFunction    = functions.ErrUnknownFunction
	ErrInvalidShape       = functions.ErrInvalidShape
	ErrInvalidConfig      = functions.ErrInvalidConfig
	ErrUnimplemented      = functions.ErrUnimplemented
)

// DefaultOptions returns the options taken from the environment.
//
// Default configuration:
//   - Strict mode: enabled unless NNRT_STRICT=false
//   - Logger: text to stderr at the NNRT_DEBUG level
func DefaultOptions() Options {
	return runtime.DefaultOptions()
}

// LoadNetwork reads and validates a network description. The format is
// chosen by extension (.yaml, .yml or .json).
func LoadNetwork(path string) (*Network, error) {
	return network.Load(path)
}

// Load reads the description at path and builds a context from it.
func Load(path string, opts ...Options) (Context, error) {
	net, err := network.Load(path)
	if err != nil {
		return nil, err
	}
	return New(net, opts...)
}

// New builds a context from a parsed network.
func New(net *Network, opts ...Options) (Context, error) {
	ctx, err := runtime.New(net, opts...)
	if err != nil {
		return nil, err
	}
	return ctx, nil
}

// SupportedOps returns the names of every implemented operator family.
func SupportedOps() []string {
	return functions.Default().SupportedOps()
}
