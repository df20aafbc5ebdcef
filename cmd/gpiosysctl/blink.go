// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/warthog618/gpiosysfs"
	"github.com/warthog618/gpiosysfs/blink"
)

func init() {
	blinkCmd.Flags().StringVarP(&blinkOpts.Edge, "edge", "e", "rising", "the button edge that counts as a press")
	blinkCmd.Flags().Float64VarP(&blinkOpts.Counter, "counter", "c", blink.DefaultCounter.Seconds(), "the initial blink interval, in seconds")
	blinkCmd.Flags().Float64VarP(&blinkOpts.Step, "step", "s", blink.DefaultStep.Seconds(), "the reduction in the interval for each press, in seconds")
	rootCmd.AddCommand(blinkCmd)
}

var (
	blinkCmd = &cobra.Command{
		Use:   "blink [flags] <led>:<button>...",
		Short: "Blink LEDs faster with each button press",
		Long: `Blink each LED, faster with each press of its button, until it is blinking at the step interval.

Each LED and button pair runs independently.`,
		Args:                  cobra.MinimumNArgs(1),
		RunE:                  runBlink,
		DisableFlagsInUseLine: true,
	}
	blinkOpts = struct {
		Edge    string
		Counter float64
		Step    float64
	}{}
)

func runBlink(cmd *cobra.Command, args []string) error {
	edge, err := gpiosysfs.ParseEdge(blinkOpts.Edge)
	if err != nil {
		return err
	}
	log := slog.Default()
	cc := []*blink.Controller(nil)
	for _, arg := range args {
		cfg, err := parsePairConfig(arg)
		if err != nil {
			return err
		}
		cfg.Edge = edge
		cfg.Counter = seconds(blinkOpts.Counter)
		cfg.Step = seconds(blinkOpts.Step)
		plog := log.With("pair", arg)
		c, err := blink.New(cfg,
			blink.WithLogger(log),
			blink.WithLineOptions(lineOptions()...),
			blink.OnPress(func(counter time.Duration) {
				plog.Info("press", "counter", counter)
			}))
		if err != nil {
			return fmt.Errorf("%s: %w", arg, err)
		}
		cc = append(cc, c)
	}
	return blink.RunAll(cmd.Context(), cc...)
}

func parsePairConfig(arg string) (blink.Config, error) {
	var cfg blink.Config
	l, b, err := parsePair(arg, ":")
	if err != nil {
		return cfg, err
	}
	if cfg.Led, err = parseLine(l); err != nil {
		return cfg, err
	}
	if cfg.Button, err = parseLine(b); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
