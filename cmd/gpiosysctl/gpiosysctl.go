// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

// A utility to control GPIO lines through sysfs.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/warthog618/gpiosysfs"
	"github.com/warthog618/gpiosysfs/device/rpi"
	"github.com/warthog618/gpiosysfs/sysfs"
	"go.bug.st/cleanup"
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootOpts.Root, "root", sysfs.DefaultRoot, "the sysfs GPIO directory")
	pf.IntVar(&rootOpts.Base, "base", 0, "the sysfs base of the GPIO chip, for pin names")
	pf.BoolVar(&rootOpts.Udev, "udev", false, "wait for udev to process each export")
	pf.DurationVar(&rootOpts.Settle, "settle", gpiosysfs.DefaultSettleTimeout, "the time allowed for an export or unexport")
	pf.StringVar(&rootOpts.LogLevel, "log-level", "info", "one of debug, info, warn or error")
}

var (
	rootCmd = &cobra.Command{
		Use:   "gpiosysctl",
		Short: "gpiosysctl is a utility to control GPIO lines",
		Long: `gpiosysctl is a utility to control GPIO lines through the Linux sysfs GPIO interface.

Lines may be sysfs line numbers, or Raspberry Pi pin names such as J8p11 or GPIO17.`,
		PersistentPreRunE: setup,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}
	rootOpts = struct {
		Root     string
		Base     int
		Udev     bool
		Settle   time.Duration
		LogLevel string
	}{}
)

func main() {
	ctx, cancel := cleanup.InterruptableContext(context.Background())
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(rootOpts.LogLevel)); err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

func logErr(cmd *cobra.Command, err error) {
	fmt.Fprintf(os.Stderr, "gpiosysctl %s: %s\n", cmd.Name(), err)
}

// lineOptions returns the options common to all lines.
func lineOptions() []gpiosysfs.LineOption {
	lo := []gpiosysfs.LineOption{
		gpiosysfs.WithRoot(rootOpts.Root),
		gpiosysfs.WithSettleTimeout(rootOpts.Settle),
	}
	if rootOpts.Udev {
		lo = append(lo, gpiosysfs.WithUdevSettle())
	}
	return lo
}

func tree() sysfs.Tree {
	return sysfs.Tree{Root: rootOpts.Root}
}

// parseLine accepts either a sysfs line number or a Raspberry Pi pin name.
func parseLine(arg string) (int, error) {
	if v, err := strconv.Atoi(arg); err == nil {
		if v < 0 {
			return 0, fmt.Errorf("invalid line '%s'", arg)
		}
		return v, nil
	}
	v, err := rpi.Line(arg, rootOpts.Base)
	if err != nil {
		return 0, fmt.Errorf("can't parse line '%s': %w", arg, err)
	}
	return v, nil
}

func parseLines(args []string) ([]int, error) {
	ll := make([]int, 0, len(args))
	for _, arg := range args {
		l, err := parseLine(arg)
		if err != nil {
			return nil, err
		}
		ll = append(ll, l)
	}
	return ll, nil
}

// parsePair splits arg into the two fields either side of sep.
func parsePair(arg, sep string) (string, string, error) {
	aa := strings.Split(arg, sep)
	if len(aa) != 2 {
		return "", "", fmt.Errorf("invalid mapping: %s", arg)
	}
	return aa[0], aa[1], nil
}
