package network

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"

	"github.com/born-ml/nnrt/internal/tensor"
)

const mlpYAML = `
version: 1
buffers:
  - name: shared
    data: [0.5, -0.5]
variables:
  - {name: x, shape: [1, 2], role: input}
  - {name: w, shape: [2, 2], role: parameter, data: [1, 0, 0, 1]}
  - {name: b, shape: [2], role: parameter, buffer: shared}
  - {name: h, shape: [1, 2]}
  - {name: y, shape: [1, 2], role: output, type: int8, fp_pos: 2}
functions:
  - name: fc
    type: Affine
    inputs: [x, w, b]
    outputs: [h]
    config: {base_axis: 1}
  - {name: act, type: ReLU, inputs: [h], outputs: [y]}
inputs: [x]
outputs: [y]
`

const mlpJSON = `{
  "version": 1,
  "variables": [
    {"name": "x", "shape": [1, 2], "role": "input"},
    {"name": "w", "shape": [2, 2], "role": "parameter", "data": [1, 0, 0, 1]},
    {"name": "y", "shape": [1, 2], "role": "output"}
  ],
  "functions": [
    {"name": "fc", "type": "Affine", "inputs": ["x", "w"], "outputs": ["y"], "config": {"base_axis": 1}}
  ],
  "inputs": ["x"],
  "outputs": ["y"]
}`

func TestParseYAML(t *testing.T) {
	n, err := Parse([]byte(mlpYAML), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, Version, n.Version)
	assert.Len(t, n.Variables, 5)
	assert.Len(t, n.Functions, 2)
	assert.Equal(t, []string{"x"}, n.Inputs)

	h, ok := n.Variable("h")
	require.True(t, ok)
	assert.Equal(t, RoleBuffer, h.Role, "role defaults to buffer")

	y, ok := n.Variable("y")
	require.True(t, ok)
	dt, err := y.DataType()
	require.NoError(t, err)
	assert.Equal(t, tensor.Int8, dt)
	assert.Equal(t, uint8(2), y.FPPos)

	idx, ok := n.VariableIndex("b")
	require.True(t, ok)
	assert.Equal(t, 2, idx)

	b, _ := n.Variable("b")
	data, err := n.InitialData(b)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -0.5}, data)

	x, _ := n.Variable("x")
	data, err = n.InitialData(x)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestParseJSONMatchesYAML(t *testing.T) {
	n, err := Parse([]byte(mlpJSON), FormatJSON)
	require.NoError(t, err)

	want := Function{Name: "fc", Type: "Affine", Inputs: []string{"x", "w"}, Outputs: []string{"y"}, Config: map[string]any{"base_axis": float64(1)}}
	if diff := cmp.Diff(want, n.Functions[0]); diff != "" {
		t.Errorf("function mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown field", "version: 1\nlayers: []\n"},
		{"unknown variable", "version: 1\nvariables: [{name: x, shape: [1]}]\nfunctions: [{name: f, type: ReLU, inputs: [x], outputs: [z]}]\n"},
		{"duplicate variable", "version: 1\nvariables: [{name: x, shape: [1]}, {name: x, shape: [2]}]\n"},
		{"bad type", "version: 1\nvariables: [{name: x, shape: [1], type: float64}]\n"},
		{"bad role", "version: 1\nvariables: [{name: x, shape: [1], role: weight}]\n"},
		{"data size", "version: 1\nvariables: [{name: x, shape: [2], data: [1]}]\n"},
		{"two sources", "version: 1\nbuffers: [{name: b, data: [1]}]\nvariables: [{name: x, shape: [1], data: [1], buffer: b}]\n"},
		{"unknown buffer", "version: 1\nvariables: [{name: x, shape: [1], buffer: nope}]\n"},
		{"negative dim", "version: 1\nvariables: [{name: x, shape: [-1]}]\n"},
		{"missing type", "version: 1\nvariables: [{name: x, shape: [1]}]\nfunctions: [{name: f, inputs: [x], outputs: [x]}]\n"},
		{"unknown output", "version: 1\nvariables: [{name: x, shape: [1]}]\noutputs: [y]\n"},
		{"fp_pos out of range", "version: 1\nvariables: [{name: q, shape: [1], type: int16, fp_pos: 32}]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), FormatYAML)
			assert.ErrorIs(t, err, ErrInvalidNetwork)
		})
	}
}

func TestFPPosBound(t *testing.T) {
	_, err := Parse([]byte("version: 1\nvariables: [{name: q, shape: [1], type: int8, fp_pos: 32}]\n"), FormatYAML)
	assert.ErrorIs(t, err, tensor.ErrInvalidFPPos)

	_, err = Parse([]byte("version: 1\nvariables: [{name: q, shape: [1], type: int8, fp_pos: 31}]\n"), FormatYAML)
	assert.NoError(t, err)
}

func TestHalfPrecisionData(t *testing.T) {
	bits := []uint16{float16.Fromfloat32(1.5).Bits(), float16.Fromfloat32(-0.25).Bits()}
	n := &Network{
		Version:   Version,
		Variables: []Variable{{Name: "w", Shape: []int{2}, Role: RoleParameter, DataF16: bits}},
	}
	require.NoError(t, n.Validate())
	data, err := n.InitialData(&n.Variables[0])
	require.NoError(t, err)
	assert.Equal(t, []float32{1.5, -0.25}, data)
}

func TestFormatOf(t *testing.T) {
	f, err := FormatOf("net.YML")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	f, err = FormatOf("dir/net.json")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = FormatOf("net.onnx")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "net.json")
	require.NoError(t, os.WriteFile(path, []byte(mlpJSON), 0o600))

	n, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, n.Functions, 1)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

type AffineLike struct {
	BaseAxis int `yaml:"base_axis"`
}

type PoolingLike struct {
	Kernel       []int   `yaml:"kernel"`
	IgnoreBorder bool    `yaml:"ignore_border"`
	Scale        float32 `yaml:"scale"`
}

type InlineLike struct {
	AffineLike `yaml:",inline"`
	NumBits    int `yaml:"num_bits"`
}

func TestDecodeConfig(t *testing.T) {
	var a AffineLike
	require.NoError(t, DecodeConfig(map[string]any{"base_axis": float64(2)}, &a))
	assert.Equal(t, 2, a.BaseAxis)

	var p PoolingLike
	require.NoError(t, DecodeConfig(map[string]any{
		"kernel":        []any{float64(2), float64(2)},
		"ignore_border": true,
		"scale":         0.125,
	}, &p))
	assert.Equal(t, PoolingLike{Kernel: []int{2, 2}, IgnoreBorder: true, Scale: 0.125}, p)

	var in InlineLike
	require.NoError(t, DecodeConfig(map[string]any{"base_axis": 1, "num_bits": 5}, &in))
	assert.Equal(t, 1, in.BaseAxis)
	assert.Equal(t, 5, in.NumBits)

	err := DecodeConfig(map[string]any{"axis": 1}, &a)
	assert.ErrorIs(t, err, ErrInvalidNetwork)

	assert.NoError(t, DecodeConfig(nil, &a), "missing config keeps defaults")
}
