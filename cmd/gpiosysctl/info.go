// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(infoCmd)
}

var infoCmd = &cobra.Command{
	Use:   "info [line]...",
	Short: "Info about exported lines",
	Long:  `Display the configuration of the given lines, or of all exported lines if none are given.`,
	RunE:  info,
}

func info(cmd *cobra.Command, args []string) error {
	t := tree()
	ll, err := parseLines(args)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		if ll, err = t.Lines(); err != nil {
			return err
		}
	}
	for _, o := range ll {
		if !t.Exported(o) {
			fmt.Printf("\tline %3d:\tunexported\n", o)
			continue
		}
		dir, err := t.Direction(o)
		if err != nil {
			logErr(cmd, err)
			continue
		}
		edge, err := t.Edge(o)
		if err != nil {
			logErr(cmd, err)
			continue
		}
		v, err := t.ReadValue(o)
		if err != nil {
			logErr(cmd, err)
			continue
		}
		fmt.Printf("\tline %3d:\t%-3s\tedge=%-7s\tvalue=%d\n", o, dir, edge, btoi(v))
	}
	return nil
}

func btoi(v bool) int {
	if v {
		return 1
	}
	return 0
}
