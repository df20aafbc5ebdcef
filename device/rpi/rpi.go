// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

// Package rpi maps Raspberry Pi header pin names to sysfs line numbers.
package rpi

import (
	"errors"
	"strconv"
	"strings"
)

// The range of BCM GPIOs usable on the J8 header.
const (
	MinGPIO = 2
	MaxGPIO = 27
)

// j8 maps J8 header pins to BCM GPIOs.
// Pins 27 and 28 are the ID EEPROM lines, which are outside the usable range
// but may still be named explicitly.
var j8 = map[int]int{
	3: 2, 5: 3, 7: 4, 8: 14, 10: 15,
	11: 17, 12: 18, 13: 27, 15: 22, 16: 23,
	18: 24, 19: 10, 21: 9, 22: 25, 23: 11,
	24: 8, 26: 7, 27: 0, 28: 1, 29: 5,
	31: 6, 32: 12, 33: 13, 35: 19, 36: 16,
	37: 26, 38: 20, 40: 21,
}

// ErrInvalid indicates the pin name does not match a known pin.
var ErrInvalid = errors.New("invalid pin name")

// GPIO maps a pin name to its BCM GPIO number.
//
// Pin names are case insensitive and may be of the form J8pX, GPIOX, or X,
// where X is a header pin number for J8pX and a BCM number otherwise.
func GPIO(name string) (int, error) {
	s := strings.ToLower(name)
	if strings.HasPrefix(s, "j8p") {
		p, err := strconv.Atoi(s[3:])
		if err != nil {
			return 0, ErrInvalid
		}
		v, ok := j8[p]
		if !ok {
			return 0, ErrInvalid
		}
		return v, nil
	}
	s = strings.TrimPrefix(s, "gpio")
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, ErrInvalid
	}
	if v < MinGPIO || v > MaxGPIO {
		return 0, ErrInvalid
	}
	return int(v), nil
}

// Line maps a pin name to the sysfs line number of the pin, given the sysfs
// base of the GPIO chip.
//
// The base is 0 on older kernels, and typically 512 on recent ones.
func Line(name string, base int) (int, error) {
	v, err := GPIO(name)
	if err != nil {
		return 0, err
	}
	return base + v, nil
}
