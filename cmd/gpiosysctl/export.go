// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/warthog618/gpiosysfs"
)

func init() {
	exportCmd.Flags().BoolVarP(&exportOpts.Output, "output", "o", false, "export the line as an output")
	exportCmd.Flags().BoolVarP(&exportOpts.ActiveLow, "active-low", "l", false, "treat the line as active low")
	exportCmd.Flags().StringVarP(&exportOpts.Edge, "edge", "e", "none", "the edges to detect (none, rising, falling or both)")
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(unexportCmd)
}

var (
	exportCmd = &cobra.Command{
		Use:                   "export [flags] <line>...",
		Short:                 "Export lines",
		Long:                  `Export lines and configure them, leaving them exported on exit.`,
		Args:                  cobra.MinimumNArgs(1),
		RunE:                  export,
		DisableFlagsInUseLine: true,
	}
	exportOpts = struct {
		Output    bool
		ActiveLow bool
		Edge      string
	}{}
	unexportCmd = &cobra.Command{
		Use:   "unexport <line>...",
		Short: "Unexport lines",
		Args:  cobra.MinimumNArgs(1),
		RunE:  unexport,
	}
)

func export(cmd *cobra.Command, args []string) error {
	ll, err := parseLines(args)
	if err != nil {
		return err
	}
	edge, err := gpiosysfs.ParseEdge(exportOpts.Edge)
	if err != nil {
		return err
	}
	lo := append(lineOptions(), gpiosysfs.WithEdge(edge))
	if exportOpts.Output {
		lo = append(lo, gpiosysfs.AsOutput)
	}
	if exportOpts.ActiveLow {
		lo = append(lo, gpiosysfs.AsActiveLow)
	}
	for _, o := range ll {
		l, err := gpiosysfs.NewLine(o, lo...)
		if err != nil {
			return err
		}
		if err = l.Open(); err != nil {
			return fmt.Errorf("line %d: %w", o, err)
		}
	}
	return nil
}

func unexport(cmd *cobra.Command, args []string) error {
	ll, err := parseLines(args)
	if err != nil {
		return err
	}
	for _, o := range ll {
		l, err := gpiosysfs.NewLine(o, lineOptions()...)
		if err != nil {
			return err
		}
		ok, err := l.Close(false)
		if err != nil {
			return fmt.Errorf("line %d: %w", o, err)
		}
		if !ok {
			logErr(cmd, fmt.Errorf("line %d: %w", o, gpiosysfs.ErrNotExported))
		}
	}
	return nil
}
