package network

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/goccy/go-json"
	"github.com/x448/float16"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/nnrt/internal/tensor"
)

// Version is the description format version this package understands.
const Version = 1

// Errors reported while reading a description.
var (
	ErrInvalidNetwork    = errors.New("invalid network description")
	ErrUnsupportedFormat = errors.New("unsupported description format")
	ErrTensorNotFound    = errors.New("tensor not found")
)

// Format is the encoding of a description document.
type Format int

// Supported formats.
const (
	FormatYAML Format = iota
	FormatJSON
)

// FormatOf selects the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Role is how the runtime treats a variable's buffer.
type Role string

// Variable roles. Buffer is the default: an intermediate the runtime owns.
const (
	RoleInput     Role = "input"
	RoleOutput    Role = "output"
	RoleParameter Role = "parameter"
	RoleBuffer    Role = "buffer"
)

// Buffer is named parameter storage that variables can reference.
type Buffer struct {
	Name    string    `yaml:"name" json:"name"`
	Data    []float32 `yaml:"data,omitempty" json:"data,omitempty"`
	DataF16 []uint16  `yaml:"data_f16,omitempty" json:"data_f16,omitempty"`
}

// Variable describes one runtime variable.
type Variable struct {
	Name    string    `yaml:"name" json:"name"`
	Shape   []int     `yaml:"shape" json:"shape"`
	Type    string    `yaml:"type,omitempty" json:"type,omitempty"`
	FPPos   uint8     `yaml:"fp_pos,omitempty" json:"fp_pos,omitempty"`
	Role    Role      `yaml:"role,omitempty" json:"role,omitempty"`
	Buffer  string    `yaml:"buffer,omitempty" json:"buffer,omitempty"`
	Data    []float32 `yaml:"data,omitempty" json:"data,omitempty"`
	DataF16 []uint16  `yaml:"data_f16,omitempty" json:"data_f16,omitempty"`
}

// DataType parses the element kind of the variable.
func (v *Variable) DataType() (tensor.DataType, error) {
	return tensor.ParseDataType(v.Type)
}

// Function describes one function invocation. Type is the operator name
// and Config its parameters, decoded later with DecodeConfig.
type Function struct {
	Name    string         `yaml:"name" json:"name"`
	Type    string         `yaml:"type" json:"type"`
	Inputs  []string       `yaml:"inputs" json:"inputs"`
	Outputs []string       `yaml:"outputs" json:"outputs"`
	Config  map[string]any `yaml:"config,omitempty" json:"config,omitempty"`
}

// Network is a parsed description.
type Network struct {
	Version    int        `yaml:"version" json:"version"`
	Parameters string     `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	Buffers    []Buffer   `yaml:"buffers,omitempty" json:"buffers,omitempty"`
	Variables  []Variable `yaml:"variables" json:"variables"`
	Functions  []Function `yaml:"functions" json:"functions"`
	Inputs     []string   `yaml:"inputs" json:"inputs"`
	Outputs    []string   `yaml:"outputs" json:"outputs"`

	index   map[string]int
	buffers map[string]int
	params  map[string]parameter
}

// Load reads and validates the description at path. A parameters file is
// resolved relative to the description's directory.
func Load(path string) (*Network, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	//nolint:gosec // G304: description path comes from the caller.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read network: %w", err)
	}
	n, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if n.Parameters != "" {
		params := n.Parameters
		if !filepath.IsAbs(params) {
			params = filepath.Join(filepath.Dir(path), params)
		}
		if err := n.LoadParameters(params); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// Parse decodes and validates a description. Parameters files are not
// opened; call LoadParameters for that.
func Parse(data []byte, format Format) (*Network, error) {
	n := &Network{}
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(n); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidNetwork, err)
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(n); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidNetwork, err)
		}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedFormat, format)
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}

// Validate checks that every name resolves and every inline data block
// matches its variable. It builds the lookup tables used by the accessors.
func (n *Network) Validate() error {
	n.buffers = make(map[string]int, len(n.Buffers))
	for i, b := range n.Buffers {
		if b.Name == "" {
			return fmt.Errorf("%w: buffer %d has no name", ErrInvalidNetwork, i)
		}
		if _, dup := n.buffers[b.Name]; dup {
			return fmt.Errorf("%w: duplicate buffer %q", ErrInvalidNetwork, b.Name)
		}
		if len(b.Data) != 0 && len(b.DataF16) != 0 {
			return fmt.Errorf("%w: buffer %q has both data and data_f16", ErrInvalidNetwork, b.Name)
		}
		n.buffers[b.Name] = i
	}

	n.index = make(map[string]int, len(n.Variables))
	for i := range n.Variables {
		if err := n.validateVariable(i); err != nil {
			return err
		}
	}

	for i, f := range n.Functions {
		if f.Type == "" {
			return fmt.Errorf("%w: function %d (%s) has no type", ErrInvalidNetwork, i, f.Name)
		}
		for _, name := range slices.Concat(f.Inputs, f.Outputs) {
			if _, ok := n.index[name]; !ok {
				return fmt.Errorf("%w: function %q references unknown variable %q", ErrInvalidNetwork, f.Name, name)
			}
		}
	}
	for _, name := range slices.Concat(n.Inputs, n.Outputs) {
		if _, ok := n.index[name]; !ok {
			return fmt.Errorf("%w: unknown network variable %q", ErrInvalidNetwork, name)
		}
	}
	return nil
}

func (n *Network) validateVariable(i int) error {
	v := &n.Variables[i]
	if v.Name == "" {
		return fmt.Errorf("%w: variable %d has no name", ErrInvalidNetwork, i)
	}
	if _, dup := n.index[v.Name]; dup {
		return fmt.Errorf("%w: duplicate variable %q", ErrInvalidNetwork, v.Name)
	}
	if err := tensor.Shape(v.Shape).Validate(); err != nil {
		return fmt.Errorf("%w: variable %q: %w", ErrInvalidNetwork, v.Name, err)
	}
	if _, err := v.DataType(); err != nil {
		return fmt.Errorf("%w: variable %q: %w", ErrInvalidNetwork, v.Name, err)
	}
	if v.FPPos > tensor.MaxFPPos {
		return fmt.Errorf("%w: variable %q: %w: %d", ErrInvalidNetwork, v.Name, tensor.ErrInvalidFPPos, v.FPPos)
	}
	switch v.Role {
	case "":
		v.Role = RoleBuffer
	case RoleInput, RoleOutput, RoleParameter, RoleBuffer:
	default:
		return fmt.Errorf("%w: variable %q has role %q", ErrInvalidNetwork, v.Name, v.Role)
	}
	size := tensor.Shape(v.Shape).NumElements()
	sources := 0
	for _, l := range []int{len(v.Data), len(v.DataF16)} {
		if l == 0 {
			continue
		}
		sources++
		if l != size {
			return fmt.Errorf("%w: variable %q has %d values for shape %v", ErrInvalidNetwork, v.Name, l, v.Shape)
		}
	}
	if v.Buffer != "" {
		sources++
		b, ok := n.buffers[v.Buffer]
		if !ok {
			return fmt.Errorf("%w: variable %q references unknown buffer %q", ErrInvalidNetwork, v.Name, v.Buffer)
		}
		if l := max(len(n.Buffers[b].Data), len(n.Buffers[b].DataF16)); l != size {
			return fmt.Errorf("%w: buffer %q has %d values for variable %q of shape %v", ErrInvalidNetwork, v.Buffer, l, v.Name, v.Shape)
		}
	}
	if sources > 1 {
		return fmt.Errorf("%w: variable %q has more than one data source", ErrInvalidNetwork, v.Name)
	}
	n.index[v.Name] = i
	return nil
}

// Variable returns the variable named name.
func (n *Network) Variable(name string) (*Variable, bool) {
	i, ok := n.index[name]
	if !ok {
		return nil, false
	}
	return &n.Variables[i], true
}

// VariableIndex returns the position of the variable named name.
func (n *Network) VariableIndex(name string) (int, bool) {
	i, ok := n.index[name]
	return i, ok
}

// InitialData returns the initial values of v, or nil when the description
// provides none. Sources are checked in order: inline data, a shared buffer,
// then the loaded parameters file.
func (n *Network) InitialData(v *Variable) ([]float32, error) {
	switch {
	case len(v.Data) != 0:
		return v.Data, nil
	case len(v.DataF16) != 0:
		return halfToFloat(v.DataF16), nil
	case v.Buffer != "":
		b := n.Buffers[n.buffers[v.Buffer]]
		if len(b.DataF16) != 0 {
			return halfToFloat(b.DataF16), nil
		}
		return b.Data, nil
	}
	p, ok := n.params[v.Name]
	if !ok {
		return nil, nil
	}
	if p.shape.NumElements() != tensor.Shape(v.Shape).NumElements() {
		return nil, fmt.Errorf("%w: parameter %q has shape %v, variable wants %v", ErrInvalidNetwork, v.Name, p.shape, v.Shape)
	}
	return p.values(tensor.Coefficient(v.FPPos))
}

func halfToFloat(bits []uint16) []float32 {
	out := make([]float32, len(bits))
	for i, b := range bits {
		out[i] = float16.Frombits(b).Float32()
	}
	return out
}
