package main

import (
	"os"

	"github.com/urfave/cli/v3"

	"github.com/born-ml/nnrt/internal/envconfig"
	"github.com/born-ml/nnrt/internal/logger"
)

var (
	networkPath string
	logLevel    string
	logFormat   string
	debug       bool
	quiet       bool
)

func networkFlag() cli.Flag {
	return &cli.StringFlag{
		Name:        "network",
		Aliases:     []string{"n"},
		Usage:       "path to the network description (.yaml, .yml or .json)",
		Destination: &networkPath,
		Required:    true,
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error); defaults to NNRT_DEBUG",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (text, json); defaults to NNRT_LOG_FORMAT",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
		&cli.BoolFlag{
			Name:        "quiet",
			Aliases:     []string{"q"},
			Usage:       "discard all log output",
			Destination: &quiet,
		},
	}
}

// newLogger builds the logger from flags, falling back to the environment.
func newLogger() logger.Logger {
	if quiet {
		return logger.Discard()
	}
	level := envconfig.LogLevel()
	if logLevel != "" {
		level = logger.ParseLevel(logLevel)
	}
	if debug {
		level = logger.ParseLevel("debug")
	}
	format := logFormat
	if format == "" {
		format = envconfig.LogFormat()
	}
	return logger.Open(os.Stderr, format, level)
}
