package runtime

import (
	"errors"
	"fmt"
	"os"

	"github.com/born-ml/nnrt/internal/envconfig"
	"github.com/born-ml/nnrt/internal/functions"
	"github.com/born-ml/nnrt/internal/logger"
	"github.com/born-ml/nnrt/internal/network"
	"github.com/born-ml/nnrt/internal/tensor"
)

// Runtime errors. Function errors are wrapped alongside them so errors.Is
// matches both layers.
var (
	ErrAllocateContext    = errors.New("failed to allocate context")
	ErrInvalidBufferIndex = errors.New("invalid buffer index")
	ErrInvalidBufferSize  = errors.New("invalid buffer size")
	ErrInitVariable       = errors.New("failed to initialize variable")
	ErrVersionUnmatch     = errors.New("network version unmatch")
	ErrClosed             = errors.New("context closed")
)

// Options configures context creation.
type Options struct {
	// StrictMode fails on functions the registry does not implement
	// (false = skip with a warning).
	StrictMode bool

	// Registry resolves operator names. Nil means functions.Default().
	Registry *functions.Registry

	// Logger receives build diagnostics. Nil means a text logger at the
	// NNRT_DEBUG level.
	Logger logger.Logger
}

// DefaultOptions returns the options taken from the environment.
func DefaultOptions() Options {
	return Options{
		StrictMode: envconfig.Strict(),
	}
}

// Context is an allocated network ready for forward passes.
type Context struct {
	variables []*tensor.Variable
	names     []string
	functions []*functions.Function
	fnNames   []string
	inputs    []*tensor.Variable
	outputs   []*tensor.Variable
	log       logger.Logger
	closed    bool
}

// New materializes the variables of net and allocates every function in
// order. On failure the functions already allocated are freed.
func New(net *network.Network, opts ...Options) (*Context, error) {
	opt := DefaultOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}
	if opt.Registry == nil {
		opt.Registry = functions.Default()
	}
	if opt.Logger == nil {
		opt.Logger = logger.Open(os.Stderr, envconfig.LogFormat(), envconfig.LogLevel())
	}
	log := opt.Logger.With("component", "runtime")

	if net.Version != network.Version {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrVersionUnmatch, net.Version, network.Version)
	}

	c := &Context{log: log}
	if err := c.createVariables(net); err != nil {
		log.Error("variable initialization failed", "error", err)
		return nil, err
	}
	if err := c.allocateFunctions(net, opt); err != nil {
		c.release()
		return nil, err
	}

	c.inputs = c.lookup(net, net.Inputs)
	c.outputs = c.lookup(net, net.Outputs)

	log.Info("context ready",
		"variables", len(c.variables),
		"functions", len(c.functions),
		"inputs", len(c.inputs),
		"outputs", len(c.outputs))
	return c, nil
}

func (c *Context) createVariables(net *network.Network) error {
	c.variables = make([]*tensor.Variable, len(net.Variables))
	c.names = make([]string, len(net.Variables))
	for i := range net.Variables {
		def := &net.Variables[i]
		dtype, err := def.DataType()
		if err != nil {
			return fmt.Errorf("%w %q: %w", ErrInitVariable, def.Name, err)
		}
		v, err := tensor.NewVariable(tensor.Shape(def.Shape), dtype, def.FPPos)
		if err != nil {
			return fmt.Errorf("%w %q: %w", ErrInitVariable, def.Name, err)
		}
		data, err := net.InitialData(def)
		if err != nil {
			return fmt.Errorf("%w %q: %w", ErrInitVariable, def.Name, err)
		}
		if data != nil {
			v.CopyFrom(data)
		}
		c.variables[i] = v
		c.names[i] = def.Name
	}
	return nil
}

func (c *Context) allocateFunctions(net *network.Network, opt Options) error {
	for i := range net.Functions {
		def := &net.Functions[i]
		entry, ok := opt.Registry.Lookup(def.Type)
		if !ok {
			if opt.StrictMode {
				c.log.Error("unsupported function", "function", def.Name, "type", def.Type, "index", i)
				return fmt.Errorf("%w: %s (%s): %w", ErrAllocateContext, def.Name, def.Type, functions.ErrUnknownFunction)
			}
			c.log.Warn("skipping unsupported function", "function", def.Name, "type", def.Type, "index", i)
			continue
		}

		var cfg any
		if entry.NewConfig != nil {
			cfg = entry.NewConfig()
			if err := network.DecodeConfig(def.Config, cfg); err != nil {
				c.log.Error("invalid function config", "function", def.Name, "index", i, "error", err)
				return fmt.Errorf("%w: %s: %w: %w", ErrAllocateContext, def.Name, functions.ErrInvalidConfig, err)
			}
		}

		f := &functions.Function{
			Code:    entry.Code,
			Inputs:  c.lookup(net, def.Inputs),
			Outputs: c.lookup(net, def.Outputs),
			Config:  cfg,
		}
		if err := opt.Registry.Allocate(f); err != nil {
			c.log.Error("allocation failed", "function", def.Name, "code", entry.Name, "index", i, "error", err)
			return fmt.Errorf("%w: %s: %w", ErrAllocateContext, def.Name, err)
		}
		c.log.Debug("allocated", "function", def.Name, "code", entry.Name, "index", i)

		c.functions = append(c.functions, f)
		c.fnNames = append(c.fnNames, def.Name)
	}
	return nil
}

// lookup resolves variable names. Validate guarantees every name exists.
func (c *Context) lookup(net *network.Network, names []string) []*tensor.Variable {
	vars := make([]*tensor.Variable, len(names))
	for i, name := range names {
		idx, _ := net.VariableIndex(name)
		vars[i] = c.variables[idx]
	}
	return vars
}

func (c *Context) release() {
	for _, f := range c.functions {
		if f.State() == functions.Ready {
			_ = f.Free()
		}
	}
	c.functions = nil
	c.fnNames = nil
}

// Forward copies inputs into the input variables, executes every function
// in order and copies the output variables into outputs. A nil slice skips
// its copy.
func (c *Context) Forward(inputs, outputs [][]float32) error {
	if c.closed {
		return ErrClosed
	}
	if len(inputs) > len(c.inputs) {
		return fmt.Errorf("%w: %d inputs for %d variables", ErrInvalidBufferIndex, len(inputs), len(c.inputs))
	}
	if len(outputs) > len(c.outputs) {
		return fmt.Errorf("%w: %d outputs for %d variables", ErrInvalidBufferIndex, len(outputs), len(c.outputs))
	}
	for i, in := range inputs {
		if in == nil {
			continue
		}
		if len(in) != c.inputs[i].Len() {
			return fmt.Errorf("%w: input %d has %d elements, want %d", ErrInvalidBufferSize, i, len(in), c.inputs[i].Len())
		}
	}
	for i, out := range outputs {
		if out != nil && len(out) != c.outputs[i].Len() {
			return fmt.Errorf("%w: output %d has %d elements, want %d", ErrInvalidBufferSize, i, len(out), c.outputs[i].Len())
		}
	}

	for i, in := range inputs {
		if in != nil {
			c.inputs[i].CopyFrom(in)
		}
	}
	for i, f := range c.functions {
		if err := f.Exec(); err != nil {
			return fmt.Errorf("%s: %w", c.fnNames[i], err)
		}
	}
	for i, out := range outputs {
		if out != nil {
			c.outputs[i].CopyTo(out)
		}
	}
	return nil
}

// Close frees every local context. Calling it again is a no-op.
func (c *Context) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	var errs []error
	for i, f := range c.functions {
		if err := f.Free(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.fnNames[i], err))
		}
	}
	c.log.Debug("context closed", "functions", len(c.functions))
	return errors.Join(errs...)
}

// NumFunctions returns the number of allocated functions.
func (c *Context) NumFunctions() int { return len(c.functions) }

// Function returns the i-th allocated function, in execution order.
func (c *Context) Function(i int) (*functions.Function, error) {
	if i < 0 || i >= len(c.functions) {
		return nil, fmt.Errorf("%w: function %d", ErrInvalidBufferIndex, i)
	}
	return c.functions[i], nil
}

// Variable returns the variable with the given name.
func (c *Context) Variable(name string) (*tensor.Variable, bool) {
	for i, n := range c.names {
		if n == name {
			return c.variables[i], true
		}
	}
	return nil, false
}
