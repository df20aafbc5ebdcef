// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

package gpiosysfs

import (
	"errors"
	"sync"
	"time"
)

// Button is an input line with edge detection, driven by a push button.
type Button struct {
	*Line

	// wmu covers w.
	wmu sync.Mutex
	w   *watcher
}

// NewButton creates a Button on the given sysfs line number.
//
// The line is always an input, whatever the options, and detects rising
// edges unless an edge option is provided.
func NewButton(offset int, options ...LineOption) (*Button, error) {
	lo := defaultLineOptions()
	lo.edge = EdgeRising
	for _, option := range options {
		option.applyLineOption(&lo)
	}
	lo.dir = DirectionInput
	l, err := newLine(offset, lo)
	if err != nil {
		return nil, err
	}
	return &Button{Line: l}, nil
}

// Open exports the line and prepares it for waiting on edges.
func (b *Button) Open() error {
	b.wmu.Lock()
	defer b.wmu.Unlock()
	if err := b.Line.Open(); err != nil {
		return err
	}
	w, err := newWatcher(b.tree.ValuePath(b.offset), b.events)
	if err != nil {
		b.Line.Close(false)
		return err
	}
	b.w = w
	return nil
}

func (b *Button) watcher() (*watcher, error) {
	b.wmu.Lock()
	defer b.wmu.Unlock()
	if b.w == nil {
		return nil, ErrNotExported
	}
	return b.w, nil
}

// WaitForEdge blocks until the kernel reports an edge on the line.
//
// There is no timeout. The only way to unblock a waiting call, other than an
// edge, is to Close the Button, in which case ErrClosed is returned.
func (b *Button) WaitForEdge() error {
	w, err := b.watcher()
	if err != nil {
		return err
	}
	_, err = w.wait(-1)
	return err
}

// WaitForEdgeTimeout blocks until the kernel reports an edge on the line or
// the timeout expires.
//
// Returns true if an edge was detected, or false if the timeout expired.
func (b *Button) WaitForEdgeTimeout(timeout time.Duration) (bool, error) {
	if timeout < 0 {
		timeout = 0
	}
	w, err := b.watcher()
	if err != nil {
		return false, err
	}
	return w.wait(timeout)
}

// Close unexports the line, without altering its value.
//
// Any calls blocked in WaitForEdge are released, returning ErrClosed, before
// the line is unexported.
// Returns false if the line was not exported.
func (b *Button) Close() (bool, error) {
	return b.CloseReset(false)
}

// CloseReset unexports the line, setting its value to 0 beforehand if
// resetValue is set.
//
// This is intended for error recovery, where the line state is not known.
func (b *Button) CloseReset(resetValue bool) (bool, error) {
	b.wmu.Lock()
	w := b.w
	b.w = nil
	b.wmu.Unlock()
	if w != nil {
		w.close()
	}
	return b.Line.Close(resetValue)
}

// IsClosed returns true if err indicates a wait was cancelled by Close.
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}
