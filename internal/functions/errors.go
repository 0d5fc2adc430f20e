package functions

import "errors"

// Errors reported while allocating a function's local context. Execution
// itself never fails; every check happens here.
var (
	ErrInvalidNumOfInputs  = errors.New("invalid number of inputs")
	ErrInvalidNumOfOutputs = errors.New("invalid number of outputs")
	ErrInvalidShape        = errors.New("invalid shape")
	ErrMalloc              = errors.New("failed to allocate local context")
	ErrUnknownFunction     = errors.New("unknown function")
	ErrUnimplemented       = errors.New("unimplemented")
	ErrInvalidConfig       = errors.New("invalid function config")
	ErrNotAllocated        = errors.New("local context not allocated")
	ErrAlreadyAllocated    = errors.New("local context already allocated")
)

// Status is the numeric view of a function error.
type Status int

// Status codes. NoError is 0, every failure is negative.
const (
	StatusUnimplemented Status = iota - 999
	StatusInvalidNumOfInputs
	StatusInvalidNumOfOutputs
	StatusInvalidShape
	StatusMalloc
	StatusUnknownFunction
	StatusInvalidConfig
	StatusInvalidState
	StatusNoError Status = 0
)

// StatusOf maps an error returned by this package to its Status.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusNoError
	case errors.Is(err, ErrInvalidNumOfInputs):
		return StatusInvalidNumOfInputs
	case errors.Is(err, ErrInvalidNumOfOutputs):
		return StatusInvalidNumOfOutputs
	case errors.Is(err, ErrInvalidShape):
		return StatusInvalidShape
	case errors.Is(err, ErrMalloc):
		return StatusMalloc
	case errors.Is(err, ErrUnknownFunction):
		return StatusUnknownFunction
	case errors.Is(err, ErrInvalidConfig):
		return StatusInvalidConfig
	case errors.Is(err, ErrNotAllocated), errors.Is(err, ErrAlreadyAllocated):
		return StatusInvalidState
	default:
		return StatusUnimplemented
	}
}

func (s Status) String() string {
	switch s {
	case StatusNoError:
		return "NOERROR"
	case StatusInvalidNumOfInputs:
		return "INVALID_NUM_OF_INPUTS"
	case StatusInvalidNumOfOutputs:
		return "INVALID_NUM_OF_OUTPUTS"
	case StatusInvalidShape:
		return "INVALID_SHAPE"
	case StatusMalloc:
		return "MALLOC"
	case StatusUnknownFunction:
		return "UNKNOWN_FUNCTION"
	case StatusInvalidConfig:
		return "INVALID_CONFIG"
	case StatusInvalidState:
		return "INVALID_STATE"
	default:
		return "UNIMPLEMENTED"
	}
}
