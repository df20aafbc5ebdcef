// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/warthog618/gpiosysfs"
)

func init() {
	setCmd.Flags().BoolVarP(&setOpts.ActiveLow, "active-low", "l", false, "treat the line state as active low")
	setCmd.Flags().BoolVarP(&setOpts.Keep, "keep", "k", false, "leave the lines exported and exit immediately")
	setCmd.Flags().DurationVarP(&setOpts.Time, "time", "t", 0, "wait for a period of time then exit")
	setCmd.SetHelpTemplate(setCmd.HelpTemplate() + extendedSetHelp)
	rootCmd.AddCommand(setCmd)
}

var extendedSetHelp = `
Times:
  A time is a sequence of decimal numbers, each with optional fraction
  and a mandatory unit suffix, such as "300ms", "1.5h" or "2h45m".

  Valid time units are "ns", "us" (or "µs"), "ms", "s", "m", "h".

  With no time the lines are held until a SIGINT or SIGTERM.

Note:
  Unless kept, on exit the lines are set to 0 and unexported.
`

var (
	setCmd = &cobra.Command{
		Use:                   "set [flags] <line1>=<value1>...",
		Short:                 "Set the value of a line or lines",
		Long:                  `Export lines as outputs and set their values.`,
		Args:                  cobra.MinimumNArgs(1),
		RunE:                  set,
		DisableFlagsInUseLine: true,
	}
	setOpts = struct {
		ActiveLow bool
		Keep      bool
		Time      time.Duration
	}{}
)

func set(cmd *cobra.Command, args []string) (rerr error) {
	ll := []int(nil)
	vv := []bool(nil)
	for _, arg := range args {
		o, v, err := parseLineValue(arg)
		if err != nil {
			return err
		}
		ll = append(ll, o)
		vv = append(vv, v)
	}
	lo := append(lineOptions(), gpiosysfs.AsOutput)
	if setOpts.ActiveLow {
		lo = append(lo, gpiosysfs.AsActiveLow)
	}
	lines := []*gpiosysfs.Line(nil)
	defer func() {
		if setOpts.Keep && rerr == nil {
			return
		}
		for _, l := range lines {
			if _, err := l.Close(true); err != nil {
				logErr(cmd, err)
			}
		}
	}()
	for i, o := range ll {
		l, err := gpiosysfs.NewLine(o, lo...)
		if err != nil {
			return err
		}
		if err = l.Open(); err != nil {
			return fmt.Errorf("line %d: %w", o, err)
		}
		lines = append(lines, l)
		if err = l.SetValue(vv[i]); err != nil {
			return fmt.Errorf("line %d: %w", o, err)
		}
	}
	if setOpts.Keep {
		return nil
	}
	hold(cmd.Context(), setOpts.Time)
	return nil
}

// hold blocks until the period expires or ctx is done.
// A zero period holds until ctx is done.
func hold(ctx context.Context, period time.Duration) {
	if period <= 0 {
		fmt.Println("waiting for signal...")
		<-ctx.Done()
		return
	}
	fmt.Printf("waiting for %s...\n", period)
	select {
	case <-ctx.Done():
	case <-time.After(period):
	}
}

func parseLineValue(arg string) (int, bool, error) {
	l, v, err := parsePair(arg, "=")
	if err != nil {
		return 0, false, err
	}
	o, err := parseLine(l)
	if err != nil {
		return 0, false, err
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return 0, false, fmt.Errorf("can't parse value '%s'", arg)
	}
	return o, b, nil
}
