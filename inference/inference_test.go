// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package inference_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/nnrt/inference"
	"github.com/born-ml/nnrt/internal/logger"
)

const scaleJSON = `{
  "version": 1,
  "variables": [
    {"name": "x", "shape": [3], "role": "input"},
    {"name": "y", "shape": [3], "role": "output"}
  ],
  "functions": [
    {"name": "scale", "type": "MulScalar", "inputs": ["x"], "outputs": ["y"], "config": {"val": 2}}
  ],
  "inputs": ["x"],
  "outputs": ["y"]
}`

func writeNetwork(t *testing.T, name, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	return path
}

func TestLoadAndForward(t *testing.T) {
	path := writeNetwork(t, "scale.json", scaleJSON)
	ctx, err := inference.Load(path, inference.Options{StrictMode: true, Logger: logger.Discard()})
	require.NoError(t, err)
	defer func() { _ = ctx.Close() }()

	n, err := ctx.OutputSize(0)
	require.NoError(t, err)
	out := make([]float32, n)
	require.NoError(t, ctx.Forward([][]float32{{1, -2, 0.5}}, [][]float32{out}))
	assert.Equal(t, []float32{2, -4, 1}, out)
}

func TestLoadErrors(t *testing.T) {
	_, err := inference.Load(writeNetwork(t, "net.txt", scaleJSON))
	assert.Error(t, err)

	_, err = inference.LoadNetwork(writeNetwork(t, "net.yaml", "version: 1\nfunctions: [{name: f}]\n"))
	assert.ErrorIs(t, err, inference.ErrInvalidNetwork)
}

func TestNewReturnsNilContextOnError(t *testing.T) {
	net, err := inference.LoadNetwork(writeNetwork(t, "scale.json", scaleJSON))
	require.NoError(t, err)
	net.Version = 7

	ctx, err := inference.New(net, inference.Options{Logger: logger.Discard()})
	assert.ErrorIs(t, err, inference.ErrVersionUnmatch)
	assert.Nil(t, ctx)
}

func TestSupportedOps(t *testing.T) {
	ops := inference.SupportedOps()
	assert.Contains(t, ops, "Affine")
	assert.Contains(t, ops, "Convolution")
	assert.NotContains(t, ops, "RandomCrop")
}
