// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

package gpiosysfs

import (
	"log/slog"
	"time"

	"github.com/warthog618/gpiosysfs/sysfs"
	"golang.org/x/sys/unix"
)

const (
	// DefaultSettleTimeout is the default time allowed for the kernel and udev
	// to complete an export or unexport.
	DefaultSettleTimeout = time.Second

	settlePollPeriod = 5 * time.Millisecond

	// sysfs notifies value changes as exceptional conditions.
	defaultPollEvents = unix.EPOLLPRI | unix.EPOLLERR
)

// LineOption defines the interface required to provide an option for a Line.
type LineOption interface {
	applyLineOption(*lineOptions)
}

type lineOptions struct {
	tree      sysfs.Tree
	dir       Direction
	edge      Edge
	activeLow bool
	settle    time.Duration
	udev      bool
	events    uint32
	log       *slog.Logger
}

// DirectionOption indicates the direction of the line.
type DirectionOption Direction

// AsInput indicates that a line be requested as an input.
const AsInput = DirectionOption(DirectionInput)

// AsOutput indicates that a line be requested as an output.
const AsOutput = DirectionOption(DirectionOutput)

func (o DirectionOption) applyLineOption(l *lineOptions) {
	l.dir = Direction(o)
}

// EdgeOption indicates the edges to be detected by the line.
type EdgeOption Edge

const (
	// WithoutEdges indicates that a line will not generate events.
	WithoutEdges = EdgeOption(EdgeNone)

	// WithRisingEdge indicates that a line will generate events when its
	// active state transitions from low to high.
	WithRisingEdge = EdgeOption(EdgeRising)

	// WithFallingEdge indicates that a line will generate events when its
	// active state transitions from high to low.
	WithFallingEdge = EdgeOption(EdgeFalling)

	// WithBothEdges indicates that a line will generate events when its
	// active state transitions from low to high and from high to low.
	WithBothEdges = EdgeOption(EdgeBoth)
)

// WithEdge indicates the edges to be detected by the line.
func WithEdge(e Edge) EdgeOption {
	return EdgeOption(e)
}

func (o EdgeOption) applyLineOption(l *lineOptions) {
	l.edge = Edge(o)
}

// ActiveLowOption indicates the line be considered active when the line
// level is low.
type ActiveLowOption bool

// AsActiveLow indicates that a line be considered active when the line level
// is low.
const AsActiveLow = ActiveLowOption(true)

func (o ActiveLowOption) applyLineOption(l *lineOptions) {
	l.activeLow = bool(o)
}

// RootOption specifies the root of the sysfs GPIO tree.
type RootOption string

// WithRoot specifies the root of the sysfs GPIO tree.
//
// The default is /sys/class/gpio.
func WithRoot(root string) RootOption {
	return RootOption(root)
}

func (o RootOption) applyLineOption(l *lineOptions) {
	l.tree = sysfs.Tree{Root: string(o)}
}

// SettleTimeoutOption specifies the time allowed for an export or unexport
// to complete.
type SettleTimeoutOption time.Duration

// WithSettleTimeout specifies the time allowed for an export or unexport to
// complete.
func WithSettleTimeout(d time.Duration) SettleTimeoutOption {
	return SettleTimeoutOption(d)
}

func (o SettleTimeoutOption) applyLineOption(l *lineOptions) {
	l.settle = time.Duration(o)
}

// UdevSettleOption indicates that Open wait for udev to process the export.
type UdevSettleOption struct{}

// WithUdevSettle indicates that Open wait for the udev add event for the
// line before configuring it.
//
// This is useful where udev rules grant access to the line attributes.
func WithUdevSettle() UdevSettleOption {
	return UdevSettleOption{}
}

func (o UdevSettleOption) applyLineOption(l *lineOptions) {
	l.udev = true
}

// PollEventsOption specifies the epoll events that indicate an edge on the
// value attribute.
type PollEventsOption uint32

// WithPollEvents overrides the epoll events waited on by Button.WaitForEdge.
//
// The default, EPOLLPRI|EPOLLERR, is correct for kernel provided trees and
// should only be overridden for trees that are not, such as a mockup.
func WithPollEvents(events uint32) PollEventsOption {
	return PollEventsOption(events)
}

func (o PollEventsOption) applyLineOption(l *lineOptions) {
	l.events = uint32(o)
}

// LoggerOption specifies the logger used by the line.
type LoggerOption struct {
	log *slog.Logger
}

// WithLogger specifies the logger used by the line.
//
// The default is slog.Default.
func WithLogger(log *slog.Logger) LoggerOption {
	return LoggerOption{log}
}

func (o LoggerOption) applyLineOption(l *lineOptions) {
	l.log = o.log
}
