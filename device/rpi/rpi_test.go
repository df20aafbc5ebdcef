// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

package rpi_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warthog618/gpiosysfs/device/rpi"
)

var patterns = []struct {
	name string
	val  int
	err  error
}{
	{"gpio0", 0, rpi.ErrInvalid},
	{"gpio1", 0, rpi.ErrInvalid},
	{"gpio2", 2, nil},
	{"gpio02", 2, nil},
	{"GPIO2", 2, nil},
	{"Gpio2", 2, nil},
	{"gpio27", 27, nil},
	{"gpio28", 0, rpi.ErrInvalid},
	{"J8p0", 0, rpi.ErrInvalid},
	{"J8p1", 0, rpi.ErrInvalid},
	{"J8p2", 0, rpi.ErrInvalid},
	{"j8p3", 2, nil},
	{"J8P3", 2, nil},
	{"J8p4", 0, rpi.ErrInvalid},
	{"J8p5", 3, nil},
	{"J8p7", 4, nil},
	{"J8p8", 14, nil},
	{"J8p11", 17, nil},
	{"J8p13", 27, nil},
	{"J8p17", 0, rpi.ErrInvalid},
	{"J8p27", 0, nil},
	{"J8p28", 1, nil},
	{"J8p36", 16, nil},
	{"J8p40", 21, nil},
	{"J8p41", 0, rpi.ErrInvalid},
	{"J8px", 0, rpi.ErrInvalid},
	{"0", 0, rpi.ErrInvalid},
	{"02", 2, nil},
	{"2", 2, nil},
	{"17", 17, nil},
	{"27", 27, nil},
	{"40", 0, rpi.ErrInvalid},
}

func TestGPIO(t *testing.T) {
	for _, p := range patterns {
		tf := func(t *testing.T) {
			val, err := rpi.GPIO(p.name)
			assert.Equal(t, p.err, err)
			assert.Equal(t, p.val, val)
		}
		t.Run(p.name, tf)
	}
	for _, name := range []string{"gpiox", "-4", "", "gpio", "j8p", "256"} {
		_, err := rpi.GPIO(name)
		assert.Equal(t, rpi.ErrInvalid, err, name)
		_, err = rpi.Line(name, 512)
		assert.Equal(t, rpi.ErrInvalid, err, name)
	}
}

func TestLine(t *testing.T) {
	for _, base := range []int{0, 512} {
		for _, p := range patterns {
			tf := func(t *testing.T) {
				val, err := rpi.Line(p.name, base)
				assert.Equal(t, p.err, err)
				if p.err == nil {
					assert.Equal(t, base+p.val, val)
				} else {
					assert.Equal(t, 0, val)
				}
			}
			t.Run(p.name, tf)
		}
	}
}
