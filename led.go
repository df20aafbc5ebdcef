// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

package gpiosysfs

// Led is an output line driving an LED.
type Led struct {
	*Line
}

// NewLed creates a Led on the given sysfs line number.
//
// The line is always an output, whatever the options.
func NewLed(offset int, options ...LineOption) (*Led, error) {
	lo := defaultLineOptions()
	for _, option := range options {
		option.applyLineOption(&lo)
	}
	lo.dir = DirectionOutput
	l, err := newLine(offset, lo)
	if err != nil {
		return nil, err
	}
	return &Led{l}, nil
}

// Toggle switches the LED to the opposite of its last written state.
func (l *Led) Toggle() error {
	return l.toggle()
}

// Close turns the LED off and unexports the line.
//
// Returns false if the line was not exported.
func (l *Led) Close() (bool, error) {
	return l.Line.Close(true)
}
