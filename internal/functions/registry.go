package functions

import (
	"fmt"
	"slices"
)

// Allocator validates a function's arity, shapes and configuration and
// derives its local context.
type Allocator func(f *Function) (Kernel, error)

// Entry is the dispatch record of one operator family.
type Entry struct {
	Code Code
	Name string

	// NewConfig returns a zero configuration record for the family, or nil
	// when the family takes no parameters.
	NewConfig func() any

	Allocate Allocator
}

// Registry maps operator codes to their dispatch entries.
type Registry struct {
	entries map[Code]Entry
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry holding every built-in family.
// It is built once and must not be modified.
func Default() *Registry {
	return defaultRegistry
}

// NewRegistry creates a registry with all supported operator families.
func NewRegistry() *Registry {
	r := &Registry{
		entries: make(map[Code]Entry, numCodes),
	}

	r.registerNeuralNetwork()
	r.registerActivations()
	r.registerNormalization()
	r.registerReductions()
	r.registerArithmetic()
	r.registerLogical()
	r.registerMath()
	r.registerManipulation()
	r.registerStochastic()
	r.registerLosses()
	r.registerQuantization()
	r.registerValidation()

	return r
}

// Register adds or replaces the entry for a code.
func (r *Registry) Register(e Entry) {
	if e.Name == "" {
		e.Name = e.Code.String()
	}
	r.entries[e.Code] = e
}

func (r *Registry) add(code Code, newConfig func() any, alloc Allocator) {
	r.Register(Entry{Code: code, NewConfig: newConfig, Allocate: alloc})
}

// Get returns the entry for a code.
func (r *Registry) Get(code Code) (Entry, bool) {
	e, ok := r.entries[code]
	return e, ok
}

// Lookup returns the entry for an operator name.
func (r *Registry) Lookup(name string) (Entry, bool) {
	code, ok := ParseCode(name)
	if !ok {
		return Entry{}, false
	}
	return r.Get(code)
}

// Allocate builds the local context of f. On failure f stays unallocated.
func (r *Registry) Allocate(f *Function) error {
	e, ok := r.entries[f.Code]
	if !ok {
		return fmt.Errorf("%s: %w", f.Code, ErrUnknownFunction)
	}
	if f.state != Unallocated {
		return fmt.Errorf("%s: %w", e.Name, ErrAlreadyAllocated)
	}
	k, err := e.Allocate(f)
	if err != nil {
		return fmt.Errorf("%s: %w", e.Name, err)
	}
	if k == nil {
		return fmt.Errorf("%s: %w", e.Name, ErrMalloc)
	}
	f.kernel = k
	f.state = Ready
	return nil
}

// SupportedOps returns the names of all registered families in code order.
func (r *Registry) SupportedOps() []string {
	codes := make([]Code, 0, len(r.entries))
	for c := range r.entries {
		codes = append(codes, c)
	}
	slices.Sort(codes)

	ops := make([]string, len(codes))
	for i, c := range codes {
		ops[i] = r.entries[c].Name
	}
	return ops
}
