package network

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"slices"

	"github.com/goccy/go-json"
	"github.com/x448/float16"

	"github.com/born-ml/nnrt/internal/tensor"
)

// SafeTensors format:
// [8 bytes: header_size (uint64 LE)]
// [header_size bytes: JSON header]
// [tensor data: raw bytes]

// SafeTensorsDType is a tensor dtype in a SafeTensors header.
type SafeTensorsDType string

// Dtypes accepted as parameter data.
const (
	SafeTensorsF32 SafeTensorsDType = "F32"
	SafeTensorsF16 SafeTensorsDType = "F16"
	SafeTensorsI16 SafeTensorsDType = "I16"
	SafeTensorsI8  SafeTensorsDType = "I8"
	SafeTensorsU8  SafeTensorsDType = "U8"
)

// Size returns the byte width of one element, or 0 for unsupported dtypes.
func (d SafeTensorsDType) Size() int {
	switch d {
	case SafeTensorsF32:
		return 4
	case SafeTensorsF16, SafeTensorsI16:
		return 2
	case SafeTensorsI8, SafeTensorsU8:
		return 1
	default:
		return 0
	}
}

// IsInteger reports whether the dtype stores integers.
func (d SafeTensorsDType) IsInteger() bool {
	return d == SafeTensorsI16 || d == SafeTensorsI8 || d == SafeTensorsU8
}

const maxHeaderSize = 100 * 1024 * 1024

// SafeTensorInfo describes a tensor in SafeTensors format.
type SafeTensorInfo struct {
	DType       SafeTensorsDType `json:"dtype"`
	Shape       []int            `json:"shape"`
	DataOffsets [2]int64         `json:"data_offsets"` // [start, end]
}

// SafeTensorsHeader is the JSON header in SafeTensors format.
type SafeTensorsHeader struct {
	Metadata map[string]string
	Tensors  map[string]SafeTensorInfo
}

// UnmarshalJSON splits the __metadata__ entry from the tensor entries.
func (h *SafeTensorsHeader) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	h.Tensors = make(map[string]SafeTensorInfo, len(raw))
	for key, value := range raw {
		if key == "__metadata__" {
			if err := json.Unmarshal(value, &h.Metadata); err != nil {
				return fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
			continue
		}
		var info SafeTensorInfo
		if err := json.Unmarshal(value, &info); err != nil {
			return fmt.Errorf("failed to unmarshal tensor %s: %w", key, err)
		}
		h.Tensors[key] = info
	}
	return nil
}

// SafeTensorsReader reads tensors from a SafeTensors file.
type SafeTensorsReader struct {
	file       *os.File
	header     SafeTensorsHeader
	dataOffset int64
}

// OpenSafeTensors opens path and parses its header.
func OpenSafeTensors(path string) (*SafeTensorsReader, error) {
	//nolint:gosec // G304: parameter path comes from the network description.
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parameters: %w", err)
	}

	var headerSize uint64
	if err := binary.Read(file, binary.LittleEndian, &headerSize); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to read header size: %w", err)
	}
	if headerSize > maxHeaderSize {
		_ = file.Close()
		return nil, fmt.Errorf("invalid header size: %d (too large)", headerSize)
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(file, headerBytes); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	var header SafeTensorsHeader
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}

	return &SafeTensorsReader{
		file:       file,
		header:     header,
		dataOffset: int64(8 + headerSize), //nolint:gosec // G115: bounded by maxHeaderSize.
	}, nil
}

// Close closes the underlying file.
func (r *SafeTensorsReader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// Metadata returns the __metadata__ map of the header.
func (r *SafeTensorsReader) Metadata() map[string]string {
	return r.header.Metadata
}

// TensorNames returns the tensor names in sorted order.
func (r *SafeTensorsReader) TensorNames() []string {
	names := make([]string, 0, len(r.header.Tensors))
	for name := range r.header.Tensors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// TensorInfo returns the header entry of a tensor.
func (r *SafeTensorsReader) TensorInfo(name string) (*SafeTensorInfo, error) {
	info, ok := r.header.Tensors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTensorNotFound, name)
	}
	return &info, nil
}

// ReadTensorData reads the raw bytes of a tensor.
func (r *SafeTensorsReader) ReadTensorData(name string) ([]byte, error) {
	info, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}
	size := info.DataOffsets[1] - info.DataOffsets[0]
	if info.DataOffsets[0] < 0 || size < 0 {
		return nil, fmt.Errorf("invalid data offsets for tensor %s: [%d, %d]",
			name, info.DataOffsets[0], info.DataOffsets[1])
	}
	if want := int64(tensor.Shape(info.Shape).NumElements() * info.DType.Size()); info.DType.Size() == 0 || size != want {
		return nil, fmt.Errorf("tensor %s: %s data of %d bytes for shape %v", name, info.DType, size, info.Shape)
	}

	data := make([]byte, size)
	if _, err := r.file.ReadAt(data, r.dataOffset+info.DataOffsets[0]); err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}
	return data, nil
}

// parameter is one tensor read from a parameters file.
type parameter struct {
	dtype SafeTensorsDType
	shape tensor.Shape
	data  []byte
}

// values decodes the parameter. Integer tensors hold the stored integers of
// a fixed-point variable and are scaled by coef.
func (p parameter) values(coef float32) ([]float32, error) {
	n := p.shape.NumElements()
	out := make([]float32, n)
	switch p.dtype {
	case SafeTensorsF32:
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(p.data[4*i:]))
		}
	case SafeTensorsF16:
		for i := range out {
			out[i] = float16.Frombits(binary.LittleEndian.Uint16(p.data[2*i:])).Float32()
		}
	case SafeTensorsI16:
		for i := range out {
			out[i] = float32(int16(binary.LittleEndian.Uint16(p.data[2*i:]))) * coef
		}
	case SafeTensorsI8:
		for i := range out {
			out[i] = float32(int8(p.data[i])) * coef
		}
	case SafeTensorsU8:
		for i := range out {
			out[i] = float32(p.data[i]) * coef
		}
	default:
		return nil, fmt.Errorf("%w: unsupported parameter dtype %s", ErrInvalidNetwork, p.dtype)
	}
	return out, nil
}

// LoadParameters reads every tensor of a SafeTensors file. Tensors are
// matched to variables by name when initial data is requested.
func (n *Network) LoadParameters(path string) error {
	r, err := OpenSafeTensors(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = r.Close()
	}()

	params := make(map[string]parameter, len(r.header.Tensors))
	for _, name := range r.TensorNames() {
		info := r.header.Tensors[name]
		data, err := r.ReadTensorData(name)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		params[name] = parameter{dtype: info.DType, shape: tensor.Shape(info.Shape), data: data}
	}
	n.params = params
	return nil
}

// ParameterNames returns the names of the loaded parameter tensors.
func (n *Network) ParameterNames() []string {
	names := make([]string, 0, len(n.params))
	for name := range n.params {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
