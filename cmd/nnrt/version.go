package main

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/urfave/cli/v3"

	"github.com/born-ml/nnrt/internal/envconfig"
	"github.com/born-ml/nnrt/internal/network"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "v0.0.1-dev"

func versionCmd() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			fmt.Printf("version:         %s\n", version)
			fmt.Printf("network format:  %d\n", network.Version)
			vars := envconfig.AsMap()
			for _, k := range slices.Sorted(maps.Keys(vars)) {
				fmt.Printf("%-16s %v\n", k+":", vars[k].Value)
			}
			return nil
		},
	}
}
