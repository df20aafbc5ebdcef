// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

package mockup_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/gpiosysfs/mockup"
	"golang.org/x/sys/unix"
)

const settle = time.Second

func newMockup(t *testing.T, options ...mockup.Option) *mockup.Mockup {
	m, err := mockup.New(filepath.Join(t.TempDir(), "gpio"), options...)
	require.Nil(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func writeAttr(t *testing.T, path, value string) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	require.Nil(t, err)
	_, err = f.WriteString(value)
	assert.Nil(t, err)
	assert.Nil(t, f.Close())
}

func TestNew(t *testing.T) {
	m := newMockup(t)
	for _, name := range []string{"export", "unexport"} {
		fi, err := os.Stat(filepath.Join(m.Root, name))
		require.Nil(t, err)
		assert.Equal(t, os.ModeNamedPipe, fi.Mode()&os.ModeNamedPipe)
	}
	assert.Equal(t, 0, m.Exports())
	assert.Equal(t, 0, m.Unexports())
}

func TestExportUnexport(t *testing.T) {
	m := newMockup(t)
	writeAttr(t, filepath.Join(m.Root, "export"), "5")
	assert.Eventually(t, func() bool { return m.Exported(5) }, settle, time.Millisecond)
	assert.Equal(t, 1, m.Exports())
	patterns := []struct {
		attr string
		val  string
	}{
		{"direction", "in"},
		{"edge", "none"},
		{"active_low", "0"},
		{"value", "0"},
	}
	for _, p := range patterns {
		tf := func(t *testing.T) {
			v, err := m.Attr(5, p.attr)
			assert.Nil(t, err)
			assert.Equal(t, p.val, v)
		}
		t.Run(p.attr, tf)
	}
	v, err := m.Value(5)
	assert.Nil(t, err)
	assert.Equal(t, 0, v)

	_, ok := m.UnexportedValue(5)
	assert.False(t, ok)
	writeAttr(t, filepath.Join(m.LinePath(5), "value"), "1")

	writeAttr(t, filepath.Join(m.Root, "unexport"), "5")
	assert.Eventually(t, func() bool { return !m.Exported(5) }, settle, time.Millisecond)
	assert.Equal(t, 1, m.Unexports())
	v, ok = m.UnexportedValue(5)
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestExport(t *testing.T) {
	m := newMockup(t)
	err := m.Export(3)
	assert.Nil(t, err)
	assert.True(t, m.Exported(3))
	assert.Equal(t, 0, m.Exports())

	err = m.Export(3)
	assert.Equal(t, unix.EBUSY, err)
}

func TestPress(t *testing.T) {
	m := newMockup(t, mockup.WithInputs(2))
	require.Nil(t, m.Export(2))
	require.Nil(t, m.Export(4))

	// no waiter
	err := m.Press(2, 10*time.Millisecond)
	assert.Equal(t, mockup.ErrNoWaiter, err)

	// not an input
	err = m.Press(4, 10*time.Millisecond)
	assert.Equal(t, mockup.ErrorNotInput{Line: 4}, err)

	_, err = m.Attr(2, "value")
	assert.Equal(t, mockup.ErrorInput{Line: 2}, err)

	// waiter
	fd, err := unix.Open(filepath.Join(m.LinePath(2), "value"),
		unix.O_RDONLY|unix.O_NONBLOCK, 0)
	require.Nil(t, err)
	defer unix.Close(fd)
	err = m.Press(2, time.Second)
	assert.Nil(t, err)
	buf := make([]byte, 4)
	n, err := unix.Read(fd, buf)
	assert.Nil(t, err)
	assert.Equal(t, "1", string(buf[:n]))
}

func TestClose(t *testing.T) {
	m, err := mockup.New(filepath.Join(t.TempDir(), "gpio"))
	require.Nil(t, err)
	done := make(chan struct{})
	go func() {
		m.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not return")
	}
}
