// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

// A utility that blinks an LED faster each time a button is pressed.
//
// The lines and timing may be provided by flag, environment (LEDBUTTON_
// prefix) or JSON config file.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/warthog618/config"
	"github.com/warthog618/config/blob"
	"github.com/warthog618/config/blob/decoder/json"
	"github.com/warthog618/config/dict"
	"github.com/warthog618/config/env"
	"github.com/warthog618/config/pflag"
	"github.com/warthog618/gpiosysfs"
	"github.com/warthog618/gpiosysfs/blink"
	"github.com/warthog618/gpiosysfs/device/rpi"
	"go.bug.st/cleanup"
)

var version = "undefined"

func main() {
	cfg := loadConfig()
	if cfg.MustGet("help").Bool() {
		printHelp()
		os.Exit(0)
	}
	if cfg.MustGet("version").Bool() {
		fmt.Printf("%s (gpiosysfs) %s\n", os.Args[0], version)
		os.Exit(0)
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.MustGet("log.level").String())); err != nil {
		die(err.Error())
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	bc, err := makeConfig(cfg)
	if err != nil {
		die(err.Error())
	}
	lo := []gpiosysfs.LineOption{gpiosysfs.WithRoot(cfg.MustGet("root").String())}
	if cfg.MustGet("udev").Bool() {
		lo = append(lo, gpiosysfs.WithUdevSettle())
	}
	c, err := blink.New(bc,
		blink.WithLogger(log),
		blink.WithLineOptions(lo...),
		blink.OnPress(func(counter time.Duration) {
			log.Info("press", "counter", counter)
		}))
	if err != nil {
		die(err.Error())
	}
	ctx, cancel := cleanup.InterruptableContext(context.Background())
	defer cancel()
	if err := c.Run(ctx); err != nil {
		die(err.Error())
	}
}

func makeConfig(cfg *config.Config) (blink.Config, error) {
	bc := blink.Config{
		Counter: seconds(cfg.MustGet("counter").Float()),
		Step:    seconds(cfg.MustGet("step").Float()),
	}
	base := cfg.MustGet("base").Int()
	var err error
	if bc.Led, err = parseLine(cfg.MustGet("led").String(), base); err != nil {
		return bc, fmt.Errorf("led: %w", err)
	}
	if bc.Button, err = parseLine(cfg.MustGet("button").String(), base); err != nil {
		return bc, fmt.Errorf("button: %w", err)
	}
	if bc.Edge, err = gpiosysfs.ParseEdge(cfg.MustGet("edge").String()); err != nil {
		return bc, err
	}
	return bc, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// parseLine accepts either a sysfs line number or a Raspberry Pi pin name.
func parseLine(s string, base int) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("line must be specified")
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	return rpi.Line(s, base)
}

func loadConfig() *config.Config {
	defaultConfig := map[string]interface{}{
		"help":      false,
		"version":   false,
		"led":       "",
		"button":    "",
		"edge":      "rising",
		"counter":   blink.DefaultCounter.Seconds(),
		"step":      blink.DefaultStep.Seconds(),
		"root":      "/sys/class/gpio",
		"base":      0,
		"udev":      false,
		"log.level": "info",
	}
	def := dict.New(dict.WithMap(defaultConfig))
	flags := []pflag.Flag{
		{Short: 'h', Name: "help", Options: pflag.IsBool},
		{Short: 'v', Name: "version", Options: pflag.IsBool},
		{Short: 'l', Name: "led"},
		{Short: 'b', Name: "button"},
		{Short: 'e', Name: "edge"},
		{Short: 'c', Name: "counter"},
		{Short: 's', Name: "step"},
		{Name: "root"},
		{Name: "base"},
		{Name: "udev", Options: pflag.IsBool},
		{Name: "config-file"},
		{Name: "log-level"},
	}
	cfg := config.New(
		pflag.New(pflag.WithFlags(flags)),
		env.New(env.WithEnvPrefix("LEDBUTTON_")),
		config.WithDefault(def))
	cfg.Append(
		blob.NewConfigFile(cfg, "config.file", "ledbutton.json", json.NewDecoder()))
	cfg = cfg.GetConfig("", config.WithMust())
	return cfg
}

func die(reason string) {
	fmt.Fprintln(os.Stderr, "ledbutton: "+reason)
	os.Exit(1)
}

func printHelp() {
	fmt.Printf("Usage: %s [OPTIONS]\n", os.Args[0])
	fmt.Println("Blink an LED, faster with each press of a button, until it is blinking at the step interval.")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -h, --help:\t\tdisplay this message and exit")
	fmt.Println("  -v, --version:\tdisplay the version and exit")
	fmt.Println("  -l, --led=LINE:\tthe line driving the LED")
	fmt.Println("  -b, --button=LINE:\tthe line reading the button")
	fmt.Println("  -e, --edge=EDGE:\tthe button edge that counts as a press (defaults to 'rising')")
	fmt.Println("  -c, --counter=SEC:\tthe initial blink interval (defaults to 0.5)")
	fmt.Println("  -s, --step=SEC:\tthe reduction in the interval for each press (defaults to 0.025)")
	fmt.Println("  --root=DIR:\t\tthe sysfs GPIO directory (defaults to /sys/class/gpio)")
	fmt.Println("  --base=N:\t\tthe sysfs base of the GPIO chip, for pin names (defaults to 0)")
	fmt.Println("  --udev:\t\twait for udev to process each export")
	fmt.Println("  --config-file=FILE:\tread configuration from a JSON file (defaults to ledbutton.json)")
	fmt.Println("  --log-level=LEVEL:\tone of debug, info, warn or error (defaults to info)")
	fmt.Println("")
	fmt.Println("Lines may be sysfs line numbers, or Raspberry Pi pin names such as J8p11 or GPIO17.")
	fmt.Println("Edges are one of none, rising, falling or both.")
}
