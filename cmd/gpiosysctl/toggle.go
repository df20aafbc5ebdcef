// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/warthog618/gpiosysfs"
)

func init() {
	toggleCmd.Flags().DurationVarP(&toggleOpts.Period, "period", "p", 500*time.Millisecond, "the time between toggles")
	toggleCmd.Flags().IntVarP(&toggleOpts.Count, "count", "n", 0, "the number of toggles, or 0 to toggle until interrupted")
	rootCmd.AddCommand(toggleCmd)
}

var (
	toggleCmd = &cobra.Command{
		Use:                   "toggle [flags] <line>",
		Short:                 "Toggle a line",
		Long:                  `Export a line as an LED and toggle it periodically. The LED is turned off and unexported on exit.`,
		Args:                  cobra.ExactArgs(1),
		RunE:                  toggle,
		DisableFlagsInUseLine: true,
	}
	toggleOpts = struct {
		Period time.Duration
		Count  int
	}{}
)

func toggle(cmd *cobra.Command, args []string) (rerr error) {
	if toggleOpts.Period <= 0 {
		return fmt.Errorf("period (%s) must be positive", toggleOpts.Period)
	}
	o, err := parseLine(args[0])
	if err != nil {
		return err
	}
	l, err := gpiosysfs.NewLed(o, lineOptions()...)
	if err != nil {
		return err
	}
	if err = l.Open(); err != nil {
		return err
	}
	defer func() {
		if _, err := l.Close(); err != nil && rerr == nil {
			rerr = err
		}
	}()
	ctx := cmd.Context()
	t := time.NewTicker(toggleOpts.Period)
	defer t.Stop()
	for i := 0; toggleOpts.Count == 0 || i < toggleOpts.Count; i++ {
		if err = l.Toggle(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
	return nil
}
