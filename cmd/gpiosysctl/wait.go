// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/warthog618/gpiosysfs"
)

func init() {
	waitCmd.Flags().StringVarP(&waitOpts.Edge, "edge", "e", "rising", "the edges to detect (rising, falling or both)")
	waitCmd.Flags().IntVarP(&waitOpts.Count, "count", "n", 1, "the number of edges to wait for, or 0 to wait until interrupted")
	waitCmd.Flags().DurationVarP(&waitOpts.Timeout, "timeout", "t", 0, "the maximum time to wait for each edge")
	waitCmd.Flags().BoolVarP(&waitOpts.ActiveLow, "active-low", "l", false, "treat the line as active low")
	rootCmd.AddCommand(waitCmd)
}

var (
	waitCmd = &cobra.Command{
		Use:                   "wait [flags] <line>",
		Short:                 "Wait for edges on a line",
		Long:                  `Export a line as a button and wait for edges on it.`,
		Args:                  cobra.ExactArgs(1),
		RunE:                  wait,
		DisableFlagsInUseLine: true,
	}
	waitOpts = struct {
		Edge      string
		Count     int
		Timeout   time.Duration
		ActiveLow bool
	}{}
)

// errTimeout indicates no edge arrived within the timeout.
var errTimeout = errors.New("timeout waiting for edge")

func wait(cmd *cobra.Command, args []string) (rerr error) {
	o, err := parseLine(args[0])
	if err != nil {
		return err
	}
	edge, err := gpiosysfs.ParseEdge(waitOpts.Edge)
	if err != nil {
		return err
	}
	if edge == gpiosysfs.EdgeNone {
		return fmt.Errorf("edge must not be none")
	}
	lo := append(lineOptions(), gpiosysfs.WithEdge(edge))
	if waitOpts.ActiveLow {
		lo = append(lo, gpiosysfs.AsActiveLow)
	}
	b, err := gpiosysfs.NewButton(o, lo...)
	if err != nil {
		return err
	}
	if err = b.Open(); err != nil {
		return err
	}
	ctx := cmd.Context()
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			b.Close()
		case <-stop:
		}
	}()
	defer func() {
		close(stop)
		if _, err := b.Close(); err != nil && rerr == nil {
			rerr = err
		}
	}()
	for i := 0; waitOpts.Count == 0 || i < waitOpts.Count; i++ {
		if err = waitEdge(b); err != nil {
			if gpiosysfs.IsClosed(err) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		v, err := b.ReadValue()
		if err != nil {
			return err
		}
		fmt.Printf("line %d edge %d: value %t\n", o, i+1, v)
	}
	return nil
}

func waitEdge(b *gpiosysfs.Button) error {
	if waitOpts.Timeout <= 0 {
		return b.WaitForEdge()
	}
	ok, err := b.WaitForEdgeTimeout(waitOpts.Timeout)
	if err != nil {
		return err
	}
	if !ok {
		return errTimeout
	}
	return nil
}
