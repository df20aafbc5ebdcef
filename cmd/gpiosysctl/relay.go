// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

package main

import (
	"fmt"
	"net"

	"github.com/spf13/cobra"
	"github.com/warthog618/gpiosysfs"
	"github.com/warthog618/gpiosysfs/relay"
)

func init() {
	serveCmd.Flags().StringVarP(&serveOpts.Message, "message", "m", "", "the button line that sends a toggle")
	serveCmd.Flags().StringVarP(&serveOpts.Off, "off", "f", "", "the button line that sends off and exits")
	serveCmd.Flags().StringVarP(&serveOpts.Edge, "edge", "e", "rising", "the button edge that counts as a press")
	serveCmd.MarkFlagRequired("message")
	serveCmd.MarkFlagRequired("off")
	clientCmd.Flags().StringVarP(&clientOpts.Led, "led", "l", "", "the LED line toggled by the server")
	clientCmd.MarkFlagRequired("led")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(clientCmd)
}

var (
	serveCmd = &cobra.Command{
		Use:   "serve [flags] <address>",
		Short: "Relay button presses to a client",
		Long: `Wait for a client to connect, then send a toggle for each press of the message
button until the off button is pressed.

The address is a UDP host:port, such as ":4000".`,
		Args:                  cobra.ExactArgs(1),
		RunE:                  serve,
		DisableFlagsInUseLine: true,
	}
	serveOpts = struct {
		Message string
		Off     string
		Edge    string
	}{}
	clientCmd = &cobra.Command{
		Use:   "client [flags] <address>",
		Short: "Toggle an LED on button presses relayed by a server",
		Long: `Connect to a server and toggle an LED for each toggle received, until off is
received.

The address is the UDP host:port of the server.`,
		Args:                  cobra.ExactArgs(1),
		RunE:                  client,
		DisableFlagsInUseLine: true,
	}
	clientOpts = struct {
		Led string
	}{}
)

func serve(cmd *cobra.Command, args []string) error {
	edge, err := gpiosysfs.ParseEdge(serveOpts.Edge)
	if err != nil {
		return err
	}
	lo := append(lineOptions(), gpiosysfs.WithEdge(edge))
	mo, err := parseLine(serveOpts.Message)
	if err != nil {
		return fmt.Errorf("message: %w", err)
	}
	oo, err := parseLine(serveOpts.Off)
	if err != nil {
		return fmt.Errorf("off: %w", err)
	}
	mb, err := gpiosysfs.NewButton(mo, lo...)
	if err != nil {
		return err
	}
	ob, err := gpiosysfs.NewButton(oo, lo...)
	if err != nil {
		return err
	}
	conn, err := net.ListenPacket("udp", args[0])
	if err != nil {
		return err
	}
	fmt.Printf("serving on %s...\n", conn.LocalAddr())
	return relay.NewServer(conn, mb, ob).Serve(cmd.Context())
}

func client(cmd *cobra.Command, args []string) error {
	o, err := parseLine(clientOpts.Led)
	if err != nil {
		return fmt.Errorf("led: %w", err)
	}
	l, err := gpiosysfs.NewLed(o, lineOptions()...)
	if err != nil {
		return err
	}
	conn, err := net.Dial("udp", args[0])
	if err != nil {
		return err
	}
	return relay.NewClient(conn, l).Run(cmd.Context())
}
