// fat16 lists and reads FAT16 images and block devices.
//
//	fat16 [flags] info
//	fat16 [flags] ls [path]
//	fat16 [flags] tree [path]
//	fat16 [flags] cat path
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"github.com/aligator/fat16/internal/config"
	"github.com/aligator/fat16/internal/logging"
	"github.com/aligator/fat16/syserr"
)

func usage(flags *pflag.FlagSet) func() {
	return func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] info|ls|tree|cat [path]\n\nflags:\n", os.Args[0])
		flags.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n%s", config.Usage())
	}
}

func main() {
	flags := pflag.NewFlagSet("fat16", pflag.ExitOnError)
	var (
		configPath = flags.StringP("config", "c", os.Getenv("FAT16_CONFIG"), "YAML config file")
		image      = flags.StringP("image", "i", "", "image file or block device")
		partition  = flags.IntP("partition", "p", 0, "primary MBR partition 1-4, 0 for an unpartitioned device")
		logLevel   = flags.String("log-level", "", "debug, info, warn or error")
		maxNodes   = flags.Int64("max-nodes", 0, "maximum number of live directory entries, 0 for no limit")
		noColor    = flags.Bool("no-color", false, "disable colored output")
	)
	flags.Usage = usage(flags)
	flags.Parse(os.Args[1:])

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// Flags override the config.
	if flags.Changed("image") {
		cfg.Image = *image
	}
	if flags.Changed("partition") {
		cfg.Partition = *partition
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = *logLevel
	}
	if flags.Changed("max-nodes") {
		cfg.MaxNodes = *maxNodes
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *noColor {
		color.NoColor = true
	}

	args := flags.Args()
	if cfg.Image == "" || len(args) == 0 {
		flags.Usage()
		os.Exit(2)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := slog.New(logging.NewPrettyHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	ctx = logging.WithOperation(logging.WithLogger(ctx, logger))

	if err := run(ctx, afero.NewOsFs(), cfg, os.Stdout, args); err != nil {
		code := syserr.FromError(err)
		logger.Error("command failed", slog.String("command", args[0]), slog.Any("err", err), slog.String("code", code.String()))
		os.Exit(1)
	}
}
