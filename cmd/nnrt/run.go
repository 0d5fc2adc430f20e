package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/born-ml/nnrt/internal/envconfig"
	"github.com/born-ml/nnrt/internal/network"
	"github.com/born-ml/nnrt/internal/runtime"
)

func runCmd() *cli.Command {
	var (
		inputPath  string
		outputPath string
		strict     bool
	)

	flags := []cli.Flag{
		networkFlag(),
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "JSON file with one array per network input; - reads stdin",
			Value:       "-",
			Destination: &inputPath,
		},
		&cli.StringFlag{
			Name:        "output",
			Aliases:     []string{"o"},
			Usage:       "write outputs as JSON to this file instead of stdout",
			Destination: &outputPath,
		},
		&cli.BoolFlag{
			Name:        "strict",
			Usage:       "fail on unsupported functions",
			Value:       envconfig.Strict(),
			Destination: &strict,
		},
	}
	flags = append(flags, loggingFlags()...)

	return &cli.Command{
		Name:  "run",
		Usage: "Run one forward pass over the network",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := newLogger()

			net, err := network.Load(networkPath)
			if err != nil {
				return err
			}
			rt, err := runtime.New(net, runtime.Options{StrictMode: strict, Logger: log})
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			in, err := openInput(inputPath)
			if err != nil {
				return err
			}
			defer func() { _ = in.Close() }()

			inputs, err := readInputs(in)
			if err != nil {
				return err
			}
			outputs, err := forward(rt, inputs)
			if err != nil {
				return err
			}

			w := io.Writer(os.Stdout)
			if outputPath != "" {
				f, err := os.Create(outputPath)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer func() { _ = f.Close() }()
				w = f
			}
			return writeOutputs(w, net.Outputs, outputs)
		},
	}
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	//nolint:gosec // G304: input path comes from the command line.
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	return f, nil
}

// readInputs decodes a JSON array of float arrays, one per network input.
func readInputs(r io.Reader) ([][]float32, error) {
	var inputs [][]float32
	if err := json.NewDecoder(r).Decode(&inputs); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}
	return inputs, nil
}

func forward(rt *runtime.Context, inputs [][]float32) ([][]float32, error) {
	if len(inputs) != rt.NumInputs() {
		return nil, fmt.Errorf("%w: got %d inputs, network takes %d", runtime.ErrInvalidBufferIndex, len(inputs), rt.NumInputs())
	}
	outputs := make([][]float32, rt.NumOutputs())
	for i := range outputs {
		n, err := rt.OutputSize(i)
		if err != nil {
			return nil, err
		}
		outputs[i] = make([]float32, n)
	}
	if err := rt.Forward(inputs, outputs); err != nil {
		return nil, err
	}
	return outputs, nil
}

// writeOutputs encodes outputs as a JSON object keyed by output name.
func writeOutputs(w io.Writer, names []string, outputs [][]float32) error {
	result := make(map[string][]float32, len(outputs))
	for i, out := range outputs {
		result[names[i]] = out
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
