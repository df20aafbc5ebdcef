// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

// Package gpiosysfs is a library for driving GPIO lines on Linux platforms
// using the sysfs GPIO interface.
//
// Supports:
// - Line export and unexport
// - Line direction (input/output)
// - Line write, with the last written value cached
// - Line level (active-high/active-low)
// - Line edge detection (rising/falling/both)
// - Blocking waits for edge events
//
// Example of use:
//
//	l, err := gpiosysfs.NewLed(17)
//	if err != nil {
//		panic(err)
//	}
//	if err = l.Open(); err != nil {
//		panic(err)
//	}
//	defer l.Close()
//	for {
//		<-time.After(time.Second)
//		l.Toggle()
//	}
package gpiosysfs

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/warthog618/gpiosysfs/sysfs"
)

// Direction indicates the direction of a line.
type Direction int

const (
	// DirectionInput indicates the line is an input.
	DirectionInput Direction = iota

	// DirectionOutput indicates the line is an output.
	DirectionOutput
)

var directionNames = map[Direction]string{
	DirectionInput:  "in",
	DirectionOutput: "out",
}

func (d Direction) String() string {
	if s, ok := directionNames[d]; ok {
		return s
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

func (d Direction) valid() bool {
	_, ok := directionNames[d]
	return ok
}

// ParseDirection converts the sysfs name of a direction, "in" or "out", to a
// Direction.
func ParseDirection(s string) (Direction, error) {
	for d, name := range directionNames {
		if name == s {
			return d, nil
		}
	}
	return 0, ConfigError{"direction", s}
}

// Edge indicates the edges detected by the line.
type Edge int

const (
	// EdgeNone indicates the line edge detection is disabled.
	EdgeNone Edge = iota

	// EdgeRising indicates the line has rising edge detection enabled.
	EdgeRising

	// EdgeFalling indicates the line has falling edge detection enabled.
	EdgeFalling

	// EdgeBoth indicates the line has both rising and falling edge
	// detection enabled.
	EdgeBoth = EdgeRising | EdgeFalling
)

var edgeNames = map[Edge]string{
	EdgeNone:    "none",
	EdgeRising:  "rising",
	EdgeFalling: "falling",
	EdgeBoth:    "both",
}

func (e Edge) String() string {
	if s, ok := edgeNames[e]; ok {
		return s
	}
	return fmt.Sprintf("Edge(%d)", int(e))
}

func (e Edge) valid() bool {
	_, ok := edgeNames[e]
	return ok
}

// ParseEdge converts the sysfs name of an edge, "none", "rising", "falling"
// or "both", to an Edge.
func ParseEdge(s string) (Edge, error) {
	for e, name := range edgeNames {
		if name == s {
			return e, nil
		}
	}
	return 0, ConfigError{"edge", s}
}

// Line represents a single sysfs GPIO line.
//
// The Line owns the export of the line. No two Lines should be created for
// the same line number, as the kernel only supports a single export.
type Line struct {
	offset int
	tree   sysfs.Tree
	settle time.Duration
	udev   bool
	events uint32
	log    *slog.Logger

	// mu covers the attributes below it.
	mu        sync.Mutex
	dir       Direction
	edge      Edge
	activeLow bool
	value     bool
}

// NewLine creates a Line for the given sysfs line number.
//
// The line is not exported until Open is called. The configuration is
// validated here, so an invalid direction or edge is reported before any
// write to the kernel.
func NewLine(offset int, options ...LineOption) (*Line, error) {
	lo := defaultLineOptions()
	for _, option := range options {
		option.applyLineOption(&lo)
	}
	return newLine(offset, lo)
}

func defaultLineOptions() lineOptions {
	return lineOptions{
		tree:   sysfs.Default,
		settle: DefaultSettleTimeout,
		events: defaultPollEvents,
	}
}

func newLine(offset int, lo lineOptions) (*Line, error) {
	if offset < 0 {
		return nil, ConfigError{"line", offset}
	}
	if !lo.dir.valid() {
		return nil, ConfigError{"direction", lo.dir}
	}
	if !lo.edge.valid() {
		return nil, ConfigError{"edge", lo.edge}
	}
	if lo.log == nil {
		lo.log = slog.Default()
	}
	l := Line{
		offset:    offset,
		tree:      lo.tree,
		settle:    lo.settle,
		udev:      lo.udev,
		events:    lo.events,
		log:       lo.log.With("line", offset),
		dir:       lo.dir,
		edge:      lo.edge,
		activeLow: lo.activeLow,
	}
	return &l, nil
}

// Offset returns the sysfs number of the line.
func (l *Line) Offset() int {
	return l.offset
}

// Exported returns true if the line is currently exported.
//
// This is checked against the sysfs tree on each call, not cached.
func (l *Line) Exported() bool {
	return l.tree.Exported(l.offset)
}

// Direction returns the configured direction of the line.
func (l *Line) Direction() Direction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dir
}

// Edge returns the configured edge detection of the line.
func (l *Line) Edge() Edge {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.edge
}

// SetDirection changes the direction of the line.
//
// If the line is exported the change is written to the kernel.
func (l *Line) SetDirection(d Direction) error {
	if !d.valid() {
		return ConfigError{"direction", d}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Exported() {
		if err := l.tree.SetDirection(l.offset, d.String()); err != nil {
			return err
		}
	}
	l.dir = d
	return nil
}

// SetEdge changes the edge detection of the line.
//
// If the line is exported the change is written to the kernel.
func (l *Line) SetEdge(e Edge) error {
	if !e.valid() {
		return ConfigError{"edge", e}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Exported() {
		if err := l.tree.SetEdge(l.offset, e.String()); err != nil {
			return err
		}
	}
	l.edge = e
	return nil
}

// Open exports the line and configures its direction and edge detection.
//
// Returns ErrAlreadyExported, without writing to the kernel, if the line is
// already exported.
func (l *Line) Open() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.dir.valid() {
		return ConfigError{"direction", l.dir}
	}
	if !l.edge.valid() {
		return ConfigError{"edge", l.edge}
	}
	if l.Exported() {
		return ErrAlreadyExported
	}
	if err := l.export(); err != nil {
		return err
	}
	if err := l.configure(); err != nil {
		// don't leave a half configured line behind
		if uerr := l.tree.Unexport(l.offset); uerr != nil {
			l.log.Warn("unexport after configure failure", "err", uerr)
		}
		return err
	}
	l.value = false
	l.log.Debug("exported", "direction", l.dir, "edge", l.edge)
	return nil
}

func (l *Line) export() error {
	var um *udevMonitor
	if l.udev {
		var err error
		um, err = newUdevMonitor(l.offset, l.log)
		if err != nil {
			return err
		}
		defer um.close()
	}
	if err := l.tree.Export(l.offset); err != nil {
		return err
	}
	var err error
	if um != nil {
		err = um.wait(l.settle)
	}
	if err == nil {
		err = l.waitWritable()
	}
	if err != nil {
		if uerr := l.tree.Unexport(l.offset); uerr != nil {
			l.log.Warn("unexport after settle failure", "err", uerr)
		}
	}
	return err
}

func (l *Line) configure() error {
	if l.activeLow {
		if err := l.tree.SetActiveLow(l.offset, true); err != nil {
			return err
		}
	}
	if err := l.tree.SetDirection(l.offset, l.dir.String()); err != nil {
		return err
	}
	if l.edge != EdgeNone {
		return l.tree.SetEdge(l.offset, l.edge.String())
	}
	return nil
}

// waitWritable waits for the attributes of a freshly exported line to become
// writable.
//
// The kernel creates the attributes synchronously, but their permissions may
// be updated by udev some time later.
func (l *Line) waitWritable() error {
	return poll(l.settle, func() bool {
		return l.tree.Writable(l.offset) == nil
	})
}

// waitRemoved waits for the line directory to be removed after an unexport.
func (l *Line) waitRemoved() error {
	return poll(l.settle, func() bool {
		return !l.tree.Exported(l.offset)
	})
}

// poll calls done until it returns true or the timeout expires.
func poll(timeout time.Duration, done func() bool) error {
	deadline := time.Now().Add(timeout)
	for !done() {
		if time.Now().After(deadline) {
			return ErrTimeout
		}
		time.Sleep(settlePollPeriod)
	}
	return nil
}

// Close unexports the line.
//
// If resetValue is set then the value is set to 0 before the unexport.
//
// Returns false, and no error, if the line was not exported, so Close may be
// safely called on any shutdown path, any number of times.
func (l *Line) Close(resetValue bool) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.Exported() {
		return false, nil
	}
	var rerr error
	if resetValue {
		rerr = l.tree.WriteValue(l.offset, false)
		if rerr == nil {
			l.value = false
		}
	}
	if err := l.tree.Unexport(l.offset); err != nil {
		return false, errors.Join(rerr, err)
	}
	if err := l.waitRemoved(); err != nil {
		return false, errors.Join(rerr, err)
	}
	l.log.Debug("unexported", "reset", resetValue)
	return true, rerr
}

// Value returns the last value successfully written to the line.
//
// This is only authoritative immediately after a write.
func (l *Line) Value() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value
}

// ReadValue reads the current value of the line from the kernel.
func (l *Line) ReadValue() (bool, error) {
	return l.tree.ReadValue(l.offset)
}

// SetValue writes the value to the line.
//
// The cached value is only updated if the write succeeds.
func (l *Line) SetValue(v bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.setValue(v)
}

// Assumes l is locked.
func (l *Line) setValue(v bool) error {
	if err := l.tree.WriteValue(l.offset, v); err != nil {
		return err
	}
	l.value = v
	return nil
}

func (l *Line) toggle() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.setValue(!l.value)
}

var (
	// ErrAlreadyExported indicates the line is already exported.
	ErrAlreadyExported = errors.New("line already exported")

	// ErrNotExported indicates the line must be exported for the operation.
	ErrNotExported = errors.New("line not exported")

	// ErrClosed indicates the line has been closed.
	ErrClosed = errors.New("already closed")

	// ErrInvalidConfig indicates a line configuration outside the values
	// supported by sysfs.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrTimeout indicates the kernel did not complete an export or
	// unexport in time.
	ErrTimeout = errors.New("timeout waiting for sysfs")
)

// ConfigError indicates a line configuration field has an invalid value.
//
// It matches ErrInvalidConfig with errors.Is.
type ConfigError struct {
	Field string
	Value interface{}
}

func (e ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Value)
}

// Unwrap returns ErrInvalidConfig.
func (e ConfigError) Unwrap() error {
	return ErrInvalidConfig
}
