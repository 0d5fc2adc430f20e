package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/born-ml/nnrt/internal/functions"
)

func opsCmd() *cli.Command {
	return &cli.Command{
		Name:  "ops",
		Usage: "List the supported operator families",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			for _, op := range functions.Default().SupportedOps() {
				fmt.Println(op)
			}
			return nil
		},
	}
}
