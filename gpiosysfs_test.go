// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

package gpiosysfs_test

import (
	"bytes"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/gpiosysfs"
	"github.com/warthog618/gpiosysfs/mockup"
)

const settle = 2 * time.Second

func newMockup(t *testing.T, inputs ...int) (*mockup.Mockup, []gpiosysfs.LineOption) {
	t.Helper()
	m, err := mockup.New(filepath.Join(t.TempDir(), "gpio"), mockup.WithInputs(inputs...))
	require.Nil(t, err)
	t.Cleanup(func() { m.Close() })
	return m, []gpiosysfs.LineOption{
		gpiosysfs.WithRoot(m.Root),
		gpiosysfs.WithPollEvents(mockup.PollEvents),
	}
}

func attr(t *testing.T, m *mockup.Mockup, line int, name string) string {
	t.Helper()
	v, err := m.Attr(line, name)
	require.Nil(t, err)
	return v
}

func TestParseDirection(t *testing.T) {
	patterns := []struct {
		name string
		dir  gpiosysfs.Direction
		err  error
	}{
		{"in", gpiosysfs.DirectionInput, nil},
		{"out", gpiosysfs.DirectionOutput, nil},
		{"high", 0, gpiosysfs.ErrInvalidConfig},
		{"", 0, gpiosysfs.ErrInvalidConfig},
		{"IN", 0, gpiosysfs.ErrInvalidConfig},
	}
	for _, p := range patterns {
		tf := func(t *testing.T) {
			dir, err := gpiosysfs.ParseDirection(p.name)
			assert.ErrorIs(t, err, p.err)
			assert.Equal(t, p.dir, dir)
			if err == nil {
				assert.Equal(t, p.name, dir.String())
			}
		}
		t.Run(p.name, tf)
	}
	assert.Equal(t, "Direction(5)", gpiosysfs.Direction(5).String())
}

func TestParseEdge(t *testing.T) {
	patterns := []struct {
		name string
		edge gpiosysfs.Edge
		err  error
	}{
		{"none", gpiosysfs.EdgeNone, nil},
		{"rising", gpiosysfs.EdgeRising, nil},
		{"falling", gpiosysfs.EdgeFalling, nil},
		{"both", gpiosysfs.EdgeBoth, nil},
		{"up", 0, gpiosysfs.ErrInvalidConfig},
		{"", 0, gpiosysfs.ErrInvalidConfig},
	}
	for _, p := range patterns {
		tf := func(t *testing.T) {
			edge, err := gpiosysfs.ParseEdge(p.name)
			assert.ErrorIs(t, err, p.err)
			assert.Equal(t, p.edge, edge)
			if err == nil {
				assert.Equal(t, p.name, edge.String())
			}
		}
		t.Run(p.name, tf)
	}
	assert.Equal(t, "Edge(4)", gpiosysfs.Edge(4).String())
}

func TestConfigError(t *testing.T) {
	_, err := gpiosysfs.ParseEdge("sideways")
	require.NotNil(t, err)
	assert.Equal(t, "invalid edge: sideways", err.Error())
	ce, ok := err.(gpiosysfs.ConfigError)
	require.True(t, ok)
	assert.Equal(t, "edge", ce.Field)
	assert.Equal(t, "sideways", ce.Value)
}

func TestNewLine(t *testing.T) {
	m, lo := newMockup(t)
	patterns := []struct {
		name    string
		offset  int
		options []gpiosysfs.LineOption
		field   string
	}{
		{"default", 4, nil, ""},
		{"output", 4, []gpiosysfs.LineOption{gpiosysfs.AsOutput}, ""},
		{"edge", 4, []gpiosysfs.LineOption{gpiosysfs.WithBothEdges}, ""},
		{"negative offset", -1, nil, "line"},
		{"bad direction", 4, []gpiosysfs.LineOption{gpiosysfs.DirectionOption(3)}, "direction"},
		{"bad edge", 4, []gpiosysfs.LineOption{gpiosysfs.WithEdge(9)}, "edge"},
	}
	for _, p := range patterns {
		tf := func(t *testing.T) {
			l, err := gpiosysfs.NewLine(p.offset, append(lo, p.options...)...)
			if p.field != "" {
				assert.ErrorIs(t, err, gpiosysfs.ErrInvalidConfig)
				ce, ok := err.(gpiosysfs.ConfigError)
				require.True(t, ok)
				assert.Equal(t, p.field, ce.Field)
				assert.Nil(t, l)
				return
			}
			assert.Nil(t, err)
			require.NotNil(t, l)
			assert.Equal(t, p.offset, l.Offset())
			assert.False(t, l.Exported())
			assert.False(t, l.Value())
		}
		t.Run(p.name, tf)
	}
	// validation never touches the tree
	assert.Equal(t, 0, m.Exports())
}

func TestLineOpen(t *testing.T) {
	m, lo := newMockup(t)
	patterns := []struct {
		name      string
		offset    int
		options   []gpiosysfs.LineOption
		direction string
		edge      string
		activeLow string
	}{
		{"input", 3, nil, "in", "none", "0"},
		{"output", 4, []gpiosysfs.LineOption{gpiosysfs.AsOutput}, "out", "none", "0"},
		{"rising", 5, []gpiosysfs.LineOption{gpiosysfs.WithRisingEdge}, "in", "rising", "0"},
		{"falling", 6, []gpiosysfs.LineOption{gpiosysfs.WithFallingEdge}, "in", "falling", "0"},
		{"both", 7, []gpiosysfs.LineOption{gpiosysfs.WithBothEdges}, "in", "both", "0"},
		{"active low", 8, []gpiosysfs.LineOption{gpiosysfs.AsActiveLow}, "in", "none", "1"},
	}
	for _, p := range patterns {
		tf := func(t *testing.T) {
			l, err := gpiosysfs.NewLine(p.offset, append(lo, p.options...)...)
			require.Nil(t, err)
			err = l.Open()
			require.Nil(t, err)
			assert.True(t, l.Exported())
			assert.True(t, m.Exported(p.offset))
			assert.Equal(t, p.direction, attr(t, m, p.offset, "direction"))
			assert.Equal(t, p.edge, attr(t, m, p.offset, "edge"))
			assert.Equal(t, p.activeLow, attr(t, m, p.offset, "active_low"))
			ok, err := l.Close(false)
			assert.Nil(t, err)
			assert.True(t, ok)
		}
		t.Run(p.name, tf)
	}
}

func TestLineOpenExported(t *testing.T) {
	m, lo := newMockup(t)
	l, err := gpiosysfs.NewLine(3, lo...)
	require.Nil(t, err)
	require.Nil(t, l.Open())
	defer l.Close(false)
	assert.Equal(t, 1, m.Exports())

	// already open
	err = l.Open()
	assert.Equal(t, gpiosysfs.ErrAlreadyExported, err)
	assert.Equal(t, 1, m.Exports())

	// owned elsewhere
	require.Nil(t, m.Export(9))
	l2, err := gpiosysfs.NewLine(9, lo...)
	require.Nil(t, err)
	err = l2.Open()
	assert.Equal(t, gpiosysfs.ErrAlreadyExported, err)
	assert.Equal(t, 1, m.Exports())
	assert.Equal(t, 0, m.Unexports())
}

func TestLineOpenTimeout(t *testing.T) {
	// a tree with no kernel behind it
	root := t.TempDir()
	for _, name := range []string{"export", "unexport"} {
		require.Nil(t, os.WriteFile(filepath.Join(root, name), nil, 0644))
	}
	l, err := gpiosysfs.NewLine(3,
		gpiosysfs.WithRoot(root),
		gpiosysfs.WithSettleTimeout(20*time.Millisecond))
	require.Nil(t, err)
	start := time.Now()
	err = l.Open()
	assert.ErrorIs(t, err, gpiosysfs.ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	b, err := os.ReadFile(filepath.Join(root, "unexport"))
	assert.Nil(t, err)
	assert.Equal(t, "3\n", string(b))
}

func TestLineOpenTimeoutUnexportFail(t *testing.T) {
	// no unexport attribute, so the cleanup unexport fails
	root := t.TempDir()
	require.Nil(t, os.WriteFile(filepath.Join(root, "export"), nil, 0644))
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	l, err := gpiosysfs.NewLine(3,
		gpiosysfs.WithRoot(root),
		gpiosysfs.WithSettleTimeout(20*time.Millisecond),
		gpiosysfs.WithLogger(log))
	require.Nil(t, err)
	err = l.Open()
	assert.ErrorIs(t, err, gpiosysfs.ErrTimeout)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "unexport after settle failure")
	assert.Contains(t, buf.String(), "line=3")
}

func TestLineOpenNoTree(t *testing.T) {
	l, err := gpiosysfs.NewLine(3, gpiosysfs.WithRoot(filepath.Join(t.TempDir(), "missing")))
	require.Nil(t, err)
	err = l.Open()
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.False(t, l.Exported())
}

func TestLineClose(t *testing.T) {
	m, lo := newMockup(t)
	l, err := gpiosysfs.NewLine(3, lo...)
	require.Nil(t, err)

	// never opened
	ok, err := l.Close(false)
	assert.Nil(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, m.Unexports())

	require.Nil(t, l.Open())
	ok, err = l.Close(false)
	assert.Nil(t, err)
	assert.True(t, ok)
	assert.False(t, l.Exported())
	assert.False(t, m.Exported(3))
	assert.Equal(t, 1, m.Unexports())

	// closed
	ok, err = l.Close(false)
	assert.Nil(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, m.Unexports())

	// reopen
	require.Nil(t, l.Open())
	assert.True(t, m.Exported(3))
	ok, err = l.Close(false)
	assert.Nil(t, err)
	assert.True(t, ok)
}

func TestLineValue(t *testing.T) {
	m, lo := newMockup(t)
	l, err := gpiosysfs.NewLine(4, append(lo, gpiosysfs.AsOutput)...)
	require.Nil(t, err)

	// not exported
	err = l.SetValue(true)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.False(t, l.Value())

	require.Nil(t, l.Open())
	patterns := []bool{true, true, false, true}
	for _, p := range patterns {
		err = l.SetValue(p)
		assert.Nil(t, err)
		assert.Equal(t, p, l.Value())
		v, err := l.ReadValue()
		assert.Nil(t, err)
		assert.Equal(t, p, v)
		mv, err := m.Value(4)
		assert.Nil(t, err)
		assert.Equal(t, p, mv == 1)
	}

	ok, err := l.Close(true)
	assert.Nil(t, err)
	assert.True(t, ok)
	assert.False(t, l.Value())
	assert.False(t, m.Exported(4))
	v, ok := m.UnexportedValue(4)
	assert.True(t, ok)
	assert.Equal(t, 0, v)

	// without reset the value is left as is
	require.Nil(t, l.Open())
	require.Nil(t, l.SetValue(true))
	ok, err = l.Close(false)
	assert.Nil(t, err)
	assert.True(t, ok)
	assert.True(t, l.Value())
	v, ok = m.UnexportedValue(4)
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestLineSetDirection(t *testing.T) {
	m, lo := newMockup(t)
	l, err := gpiosysfs.NewLine(4, lo...)
	require.Nil(t, err)

	err = l.SetDirection(gpiosysfs.Direction(7))
	assert.ErrorIs(t, err, gpiosysfs.ErrInvalidConfig)
	assert.Equal(t, gpiosysfs.DirectionInput, l.Direction())

	// not exported, so applied on open
	err = l.SetDirection(gpiosysfs.DirectionOutput)
	assert.Nil(t, err)
	assert.Equal(t, gpiosysfs.DirectionOutput, l.Direction())
	require.Nil(t, l.Open())
	defer l.Close(false)
	assert.Equal(t, "out", attr(t, m, 4, "direction"))

	// exported, so applied immediately
	err = l.SetDirection(gpiosysfs.DirectionInput)
	assert.Nil(t, err)
	assert.Equal(t, gpiosysfs.DirectionInput, l.Direction())
	assert.Equal(t, "in", attr(t, m, 4, "direction"))
}

func TestLineSetEdge(t *testing.T) {
	m, lo := newMockup(t)
	l, err := gpiosysfs.NewLine(4, lo...)
	require.Nil(t, err)

	err = l.SetEdge(gpiosysfs.Edge(-1))
	assert.ErrorIs(t, err, gpiosysfs.ErrInvalidConfig)
	assert.Equal(t, gpiosysfs.EdgeNone, l.Edge())

	err = l.SetEdge(gpiosysfs.EdgeFalling)
	assert.Nil(t, err)
	require.Nil(t, l.Open())
	defer l.Close(false)
	assert.Equal(t, "falling", attr(t, m, 4, "edge"))

	err = l.SetEdge(gpiosysfs.EdgeBoth)
	assert.Nil(t, err)
	assert.Equal(t, gpiosysfs.EdgeBoth, l.Edge())
	assert.Equal(t, "both", attr(t, m, 4, "edge"))
}
