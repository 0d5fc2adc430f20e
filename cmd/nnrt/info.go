package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/born-ml/nnrt/internal/functions"
	"github.com/born-ml/nnrt/internal/network"
)

func infoCmd() *cli.Command {
	return &cli.Command{
		Name:  "info",
		Usage: "Show the inputs, outputs and functions of a network",
		Flags: []cli.Flag{networkFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			net, err := network.Load(networkPath)
			if err != nil {
				return err
			}
			printInfo(os.Stdout, net, functions.Default())
			return nil
		},
	}
}

func printInfo(w io.Writer, net *network.Network, reg *functions.Registry) {
	_, _ = fmt.Fprintf(w, "version:    %d\n", net.Version)
	if net.Parameters != "" {
		_, _ = fmt.Fprintf(w, "parameters: %s (%d tensors)\n", net.Parameters, len(net.ParameterNames()))
	}
	_, _ = fmt.Fprintf(w, "variables:  %d\n", len(net.Variables))

	_, _ = fmt.Fprintln(w, "\ninputs:")
	printVariables(w, net, net.Inputs)
	_, _ = fmt.Fprintln(w, "\noutputs:")
	printVariables(w, net, net.Outputs)

	_, _ = fmt.Fprintf(w, "\nfunctions (%d):\n", len(net.Functions))
	for _, f := range net.Functions {
		mark := ""
		if _, ok := reg.Lookup(f.Type); !ok {
			mark = "  [unsupported]"
		}
		_, _ = fmt.Fprintf(w, "  %-20s %-24s %s -> %s%s\n", f.Name, f.Type,
			strings.Join(f.Inputs, ","), strings.Join(f.Outputs, ","), mark)
	}
}

func printVariables(w io.Writer, net *network.Network, names []string) {
	for _, name := range names {
		v, ok := net.Variable(name)
		if !ok {
			continue
		}
		dtype, _ := v.DataType()
		_, _ = fmt.Fprintf(w, "  %-20s %v %s\n", name, v.Shape, dtype)
	}
}
