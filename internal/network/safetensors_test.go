package network

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

type testTensor struct {
	dtype SafeTensorsDType
	shape []int
	data  []byte
}

func f32Bytes(v ...float32) []byte {
	b := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(x))
	}
	return b
}

func f16Bytes(v ...float32) []byte {
	b := make([]byte, 2*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint16(b[2*i:], float16.Fromfloat32(x).Bits())
	}
	return b
}

// writeSafeTensors writes tensors in name order and returns the file path.
func writeSafeTensors(t *testing.T, dir string, tensors map[string]testTensor) string {
	t.Helper()
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	slices.Sort(names)

	header := map[string]any{"__metadata__": map[string]string{"format": "pt"}}
	var body bytes.Buffer
	for _, name := range names {
		tt := tensors[name]
		start := int64(body.Len())
		body.Write(tt.data)
		header[name] = SafeTensorInfo{DType: tt.dtype, Shape: tt.shape, DataOffsets: [2]int64{start, int64(body.Len())}}
	}
	headerJSON, err := json.Marshal(header)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, binary.Write(&out, binary.LittleEndian, uint64(len(headerJSON))))
	out.Write(headerJSON)
	out.Write(body.Bytes())

	path := filepath.Join(dir, "params.safetensors")
	require.NoError(t, os.WriteFile(path, out.Bytes(), 0o600))
	return path
}

func TestSafeTensorsReader(t *testing.T) {
	path := writeSafeTensors(t, t.TempDir(), map[string]testTensor{
		"w": {SafeTensorsF32, []int{2, 2}, f32Bytes(1, 2, 3, 4)},
		"b": {SafeTensorsF16, []int{2}, f16Bytes(0.5, -2)},
	})
	r, err := OpenSafeTensors(path)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	assert.Equal(t, []string{"b", "w"}, r.TensorNames())
	assert.Equal(t, "pt", r.Metadata()["format"])

	info, err := r.TensorInfo("w")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2}, info.Shape)
	assert.Equal(t, SafeTensorsF32, info.DType)

	data, err := r.ReadTensorData("w")
	require.NoError(t, err)
	assert.Equal(t, f32Bytes(1, 2, 3, 4), data)

	_, err = r.TensorInfo("missing")
	assert.ErrorIs(t, err, ErrTensorNotFound)
}

func TestSafeTensorsSizeMismatch(t *testing.T) {
	path := writeSafeTensors(t, t.TempDir(), map[string]testTensor{
		"w": {SafeTensorsF32, []int{3}, f32Bytes(1, 2)},
	})
	r, err := OpenSafeTensors(path)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	_, err = r.ReadTensorData("w")
	assert.Error(t, err)
}

func TestSafeTensorsTruncatedHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.safetensors")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0o600))
	_, err := OpenSafeTensors(path)
	assert.Error(t, err)
}

func TestLoadWithParameters(t *testing.T) {
	dir := t.TempDir()
	writeSafeTensors(t, dir, map[string]testTensor{
		"w":  {SafeTensorsF32, []int{2, 2}, f32Bytes(1, 0, 0, 1)},
		"b":  {SafeTensorsF16, []int{2}, f16Bytes(0.5, -0.5)},
		"q":  {SafeTensorsI8, []int{2}, []byte{4, 0xfc}},
		"qs": {SafeTensorsI16, []int{1}, []byte{0x00, 0x01}},
	})
	doc := `
version: 1
parameters: params.safetensors
variables:
  - {name: w, shape: [2, 2], role: parameter}
  - {name: b, shape: [2], role: parameter}
  - {name: q, shape: [2], role: parameter, type: int8, fp_pos: 2}
  - {name: qs, shape: [1], role: parameter, type: int16, fp_pos: 4}
  - {name: free, shape: [3]}
`
	path := filepath.Join(dir, "net.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	n, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "q", "qs", "w"}, n.ParameterNames())

	tests := []struct {
		name string
		want []float32
	}{
		{"w", []float32{1, 0, 0, 1}},
		{"b", []float32{0.5, -0.5}},
		{"q", []float32{1, -1}},
		{"qs", []float32{16}},
		{"free", nil},
	}
	for _, tt := range tests {
		v, ok := n.Variable(tt.name)
		require.True(t, ok, tt.name)
		got, err := n.InitialData(v)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}
}

func TestParameterShapeMismatch(t *testing.T) {
	dir := t.TempDir()
	path := writeSafeTensors(t, dir, map[string]testTensor{
		"w": {SafeTensorsF32, []int{3}, f32Bytes(1, 2, 3)},
	})
	n, err := Parse([]byte("version: 1\nvariables: [{name: w, shape: [2], role: parameter}]\n"), FormatYAML)
	require.NoError(t, err)
	require.NoError(t, n.LoadParameters(path))

	_, err = n.InitialData(&n.Variables[0])
	assert.ErrorIs(t, err, ErrInvalidNetwork)
}
