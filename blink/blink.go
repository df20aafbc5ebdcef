// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

// Package blink drives an LED that blinks faster each time a button is
// pressed.
//
// A Controller owns one Led and one Button. While running, a press loop
// shortens the blink interval by a fixed step on each button edge, and a
// blink loop toggles the LED at the current interval. Both loops stop once
// the interval reaches the step, and both lines are always unexported on
// the way out.
package blink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/warthog618/gpiosysfs"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultCounter is the default initial blink interval.
	DefaultCounter = 500 * time.Millisecond

	// DefaultStep is the default reduction in the interval for each press,
	// and the interval at which the controller stops.
	DefaultStep = 25 * time.Millisecond
)

// State is the lifecycle state of a Controller.
type State int32

const (
	// StateIdle indicates the controller has not been run.
	StateIdle State = iota

	// StateOpening indicates the lines are being exported.
	StateOpening

	// StateRunning indicates the press and blink loops are running.
	StateRunning

	// StateStopping indicates the lines are being released.
	StateStopping

	// StateClosed indicates the lines have been released.
	StateClosed
)

var stateNames = map[State]string{
	StateIdle:     "idle",
	StateOpening:  "opening",
	StateRunning:  "running",
	StateStopping: "stopping",
	StateClosed:   "closed",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Config describes the lines and timing of a Controller.
type Config struct {
	// Led is the sysfs line number of the LED.
	Led int

	// Button is the sysfs line number of the button.
	Button int

	// Edge is the button edge that counts as a press.
	Edge gpiosysfs.Edge

	// Counter is the initial blink interval.
	Counter time.Duration

	// Step is the reduction in the interval for each press.
	Step time.Duration
}

// DefaultConfig returns a Config for the lines using the default timing and
// rising edges.
func DefaultConfig(led, button int) Config {
	return Config{
		Led:     led,
		Button:  button,
		Edge:    gpiosysfs.EdgeRising,
		Counter: DefaultCounter,
		Step:    DefaultStep,
	}
}

// Controller runs a Led and Button pair.
type Controller struct {
	cfg     Config
	led     *gpiosysfs.Led
	button  *gpiosysfs.Button
	log     *slog.Logger
	onPress func(time.Duration)

	// mu serialises the decrement of counter.
	// Reads of counter do not take mu.
	mu      sync.Mutex
	counter atomic.Int64

	presses atomic.Int64
	state   atomic.Int32
}

// Option modifies the construction of a Controller.
type Option func(*controllerOptions)

type controllerOptions struct {
	log     *slog.Logger
	lo      []gpiosysfs.LineOption
	onPress func(time.Duration)
}

// WithLogger specifies the logger used by the controller and its lines.
func WithLogger(log *slog.Logger) Option {
	return func(o *controllerOptions) {
		o.log = log
	}
}

// WithLineOptions specifies options applied to both lines, such as the root
// of the sysfs tree.
func WithLineOptions(options ...gpiosysfs.LineOption) Option {
	return func(o *controllerOptions) {
		o.lo = append(o.lo, options...)
	}
}

// OnPress specifies a function called after each button press is handled,
// with the resulting interval.
//
// It is called from the press loop, so it should not block.
func OnPress(f func(counter time.Duration)) Option {
	return func(o *controllerOptions) {
		o.onPress = f
	}
}

// New creates a Controller for the lines in cfg.
//
// The configuration is validated, but the lines are not exported until Run.
func New(cfg Config, options ...Option) (*Controller, error) {
	co := controllerOptions{log: slog.Default()}
	for _, option := range options {
		option(&co)
	}
	if cfg.Step <= 0 {
		return nil, gpiosysfs.ConfigError{Field: "step", Value: cfg.Step}
	}
	if cfg.Counter < 0 {
		return nil, gpiosysfs.ConfigError{Field: "counter", Value: cfg.Counter}
	}
	log := co.log.With("led", cfg.Led, "button", cfg.Button)
	lo := append([]gpiosysfs.LineOption{gpiosysfs.WithLogger(log)}, co.lo...)
	button, err := gpiosysfs.NewButton(cfg.Button,
		append(lo, gpiosysfs.WithEdge(cfg.Edge))...)
	if err != nil {
		return nil, err
	}
	led, err := gpiosysfs.NewLed(cfg.Led, lo...)
	if err != nil {
		return nil, err
	}
	c := Controller{
		cfg:     cfg,
		led:     led,
		button:  button,
		log:     log,
		onPress: co.onPress,
	}
	c.counter.Store(int64(cfg.Counter))
	return &c, nil
}

// Counter returns the current blink interval.
func (c *Controller) Counter() time.Duration {
	return time.Duration(c.counter.Load())
}

// Presses returns the number of button presses handled.
func (c *Controller) Presses() int {
	return int(c.presses.Load())
}

// State returns the lifecycle state of the controller.
func (c *Controller) State() State {
	return State(c.state.Load())
}

func (c *Controller) setState(s State) {
	c.state.Store(int32(s))
	c.log.Debug("state", "state", s)
}

// Run exports the lines and runs the press and blink loops until the
// interval reaches the step, or ctx is cancelled.
//
// The Button and Led are always released before Run returns, Button first.
// Cancellation of ctx is a normal stop and is not returned as an error.
// A Controller can only be run once.
func (c *Controller) Run(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateOpening)) {
		return ErrNotIdle
	}
	c.log.Debug("state", "state", StateOpening)
	if err := c.open(); err != nil {
		c.setState(StateClosed)
		return err
	}
	c.setState(StateRunning)

	g, gctx := errgroup.WithContext(ctx)
	var once sync.Once
	var rerr error
	release := func() {
		once.Do(func() {
			c.setState(StateStopping)
			rerr = c.release()
		})
	}
	stopped := make(chan struct{})
	go func() {
		// releasing the button is what unblocks the press loop
		select {
		case <-gctx.Done():
			release()
		case <-stopped:
		}
	}()
	g.Go(func() error {
		return c.pressLoop(gctx)
	})
	g.Go(func() error {
		return c.blinkLoop(gctx)
	})
	err := g.Wait()
	close(stopped)
	release()
	c.setState(StateClosed)
	c.log.Info("stopped", "counter", c.Counter(), "presses", c.Presses())
	return errors.Join(err, rerr)
}

func (c *Controller) open() error {
	if err := c.button.Open(); err != nil {
		return fmt.Errorf("open button: %w", err)
	}
	if err := c.led.Open(); err != nil {
		if _, cerr := c.button.Close(); cerr != nil {
			c.log.Error("release button", "err", cerr)
		}
		return fmt.Errorf("open led: %w", err)
	}
	return nil
}

// release closes both lines, even if the first fails.
func (c *Controller) release() error {
	var errs []error
	if _, err := c.button.Close(); err != nil {
		c.log.Error("release button", "err", err)
		errs = append(errs, fmt.Errorf("release button: %w", err))
	}
	if _, err := c.led.Close(); err != nil {
		c.log.Error("release led", "err", err)
		errs = append(errs, fmt.Errorf("release led: %w", err))
	}
	return errors.Join(errs...)
}

func (c *Controller) pressLoop(ctx context.Context) error {
	step := int64(c.cfg.Step)
	for c.counter.Load() > step {
		if err := c.button.WaitForEdge(); err != nil {
			if gpiosysfs.IsClosed(err) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("wait for edge: %w", err)
		}
		c.press(step)
	}
	return nil
}

func (c *Controller) press(step int64) {
	c.mu.Lock()
	counter := c.counter.Load()
	if counter > step {
		counter -= step
		c.counter.Store(counter)
	}
	c.mu.Unlock()
	c.presses.Add(1)
	c.log.Debug("press", "counter", time.Duration(counter))
	if c.onPress != nil {
		c.onPress(time.Duration(counter))
	}
}

// blinkLoop only sees a new interval after the current sleep completes.
func (c *Controller) blinkLoop(ctx context.Context) error {
	step := int64(c.cfg.Step)
	for c.counter.Load() > step {
		if ctx.Err() != nil {
			return nil
		}
		if err := c.led.Toggle(); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("toggle: %w", err)
		}
		t := time.NewTimer(c.Counter())
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
	return nil
}

// RunAll runs the controllers concurrently until they have all stopped.
//
// The controllers are independent, so the failure of one does not stop the
// others. Any errors are joined.
func RunAll(ctx context.Context, controllers ...*Controller) error {
	var g errgroup.Group
	errs := make([]error, len(controllers))
	for i, c := range controllers {
		i, c := i, c
		g.Go(func() error {
			errs[i] = c.Run(ctx)
			return nil
		})
	}
	g.Wait()
	return errors.Join(errs...)
}

// ErrNotIdle indicates Run was called on a controller that has already been
// run.
var ErrNotIdle = errors.New("controller already run")
