package functions

import (
	"fmt"

	"github.com/born-ml/nnrt/internal/tensor"
)

// State is the lifecycle position of a Function's local context.
type State int

// Lifecycle states. Freed is terminal.
const (
	Unallocated State = iota
	Ready
	Freed
)

func (s State) String() string {
	switch s {
	case Unallocated:
		return "unallocated"
	case Ready:
		return "ready"
	case Freed:
		return "freed"
	default:
		return "unknown"
	}
}

// Kernel is the private execution context of an allocated function.
//
// Exec performs the operator's transformation using geometry cached at
// allocation. It never allocates and never fails.
type Kernel interface {
	Exec()
}

// Function is one invocation record: the operator code, the variables it reads
// and writes, its configuration and the local context it owns.
//
// Inputs and Outputs reference variables owned by the network context. Config
// holds a pointer to the family's configuration struct (for example
// *ConvolutionConfig) or nil for families without parameters.
type Function struct {
	Code    Code
	Inputs  []*tensor.Variable
	Outputs []*tensor.Variable
	Config  any

	kernel Kernel
	state  State
}

// NumInputs returns the number of bound input variables.
func (f *Function) NumInputs() int { return len(f.Inputs) }

// NumOutputs returns the number of bound output variables.
func (f *Function) NumOutputs() int { return len(f.Outputs) }

// State returns the lifecycle state of the local context.
func (f *Function) State() State { return f.state }

// Exec runs the function's kernel once.
func (f *Function) Exec() error {
	if f.state != Ready {
		return fmt.Errorf("%s: %w (%s)", f.Code, ErrNotAllocated, f.state)
	}
	f.kernel.Exec()
	return nil
}

// Free releases the local context. It may be called once per successful
// allocation.
func (f *Function) Free() error {
	if f.state != Ready {
		return fmt.Errorf("%s: %w (%s)", f.Code, ErrNotAllocated, f.state)
	}
	f.kernel = nil
	f.state = Freed
	return nil
}

// KernelAs returns the local context of f as the concrete kernel type T.
// The boolean is false when f is not allocated or holds another kernel type.
func KernelAs[T Kernel](f *Function) (T, bool) {
	k, ok := f.kernel.(T)
	return k, ok
}
