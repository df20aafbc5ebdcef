// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

// Package sysfs provides access to the Linux sysfs GPIO attribute files.
//
// This is the raw layer used by gpiosysfs. Every function is a direct file
// operation on the tree and no state is cached.
package sysfs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// DefaultRoot is the location of the kernel GPIO class directory.
const DefaultRoot = "/sys/class/gpio"

// Tree is a sysfs GPIO tree rooted at Root.
//
// The zero value refers to DefaultRoot.
type Tree struct {
	Root string
}

// Default is the tree provided by the running kernel.
var Default = Tree{Root: DefaultRoot}

func (t Tree) root() string {
	if t.Root == "" {
		return DefaultRoot
	}
	return t.Root
}

// ExportPath returns the path of the file used to export lines.
func (t Tree) ExportPath() string {
	return filepath.Join(t.root(), "export")
}

// UnexportPath returns the path of the file used to unexport lines.
func (t Tree) UnexportPath() string {
	return filepath.Join(t.root(), "unexport")
}

// LinePath returns the path of the directory for an exported line.
func (t Tree) LinePath(line int) string {
	return filepath.Join(t.root(), "gpio"+strconv.Itoa(line))
}

// DirectionPath returns the path of the direction attribute of the line.
func (t Tree) DirectionPath(line int) string {
	return filepath.Join(t.LinePath(line), "direction")
}

// EdgePath returns the path of the edge attribute of the line.
func (t Tree) EdgePath(line int) string {
	return filepath.Join(t.LinePath(line), "edge")
}

// ValuePath returns the path of the value attribute of the line.
func (t Tree) ValuePath(line int) string {
	return filepath.Join(t.LinePath(line), "value")
}

// ActiveLowPath returns the path of the active_low attribute of the line.
func (t Tree) ActiveLowPath(line int) string {
	return filepath.Join(t.LinePath(line), "active_low")
}

// Exported returns true if the line directory is present in the tree.
//
// This is checked against the filesystem on every call.
func (t Tree) Exported(line int) bool {
	_, err := os.Stat(t.LinePath(line))
	return err == nil
}

// Lines returns the numbers of the exported lines, in ascending order.
func (t Tree) Lines() ([]int, error) {
	ee, err := os.ReadDir(t.root())
	if err != nil {
		return nil, err
	}
	var ll []int
	for _, e := range ee {
		// gpiochipN entries do not parse
		n, err := strconv.Atoi(strings.TrimPrefix(e.Name(), "gpio"))
		if err != nil || !strings.HasPrefix(e.Name(), "gpio") {
			continue
		}
		ll = append(ll, n)
	}
	sort.Ints(ll)
	return ll, nil
}

// Writable returns nil if the direction attribute of the line may be written
// by the caller.
func (t Tree) Writable(line int) error {
	return unix.Access(t.DirectionPath(line), unix.W_OK)
}

// Export requests the kernel export the line.
func (t Tree) Export(line int) error {
	return write(t.ExportPath(), lineString(line))
}

// Unexport requests the kernel release the line.
func (t Tree) Unexport(line int) error {
	return write(t.UnexportPath(), lineString(line))
}

// lineString is newline terminated, so concurrent writes remain separable
// when the attribute is a pipe rather than a kernel file.
func lineString(line int) string {
	return strconv.Itoa(line) + "\n"
}

// SetDirection writes the direction attribute, which must be "in" or "out".
func (t Tree) SetDirection(line int, dir string) error {
	return write(t.DirectionPath(line), dir)
}

// Direction reads the direction attribute.
func (t Tree) Direction(line int) (string, error) {
	return read(t.DirectionPath(line))
}

// SetEdge writes the edge attribute, which must be one of "none", "rising",
// "falling" or "both".
func (t Tree) SetEdge(line int, edge string) error {
	return write(t.EdgePath(line), edge)
}

// Edge reads the edge attribute.
func (t Tree) Edge(line int) (string, error) {
	return read(t.EdgePath(line))
}

// SetActiveLow writes the active_low attribute.
func (t Tree) SetActiveLow(line int, activeLow bool) error {
	return write(t.ActiveLowPath(line), boolString(activeLow))
}

// WriteValue writes the value attribute as "0" or "1".
func (t Tree) WriteValue(line int, v bool) error {
	return write(t.ValuePath(line), boolString(v))
}

// ReadValue reads the value attribute.
func (t Tree) ReadValue(line int) (bool, error) {
	s, err := read(t.ValuePath(line))
	if err != nil {
		return false, err
	}
	return parseValue(t.ValuePath(line), s)
}

func parseValue(path, s string) (bool, error) {
	switch s {
	case "0":
		return false, nil
	case "1":
		return true, nil
	}
	return false, fmt.Errorf("%s: unexpected value %q", path, s)
}

func boolString(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// write performs a single write of the value to the attribute file.
//
// The file is not created if it does not already exist, as attributes are
// only ever provided by the kernel.
func write(path, value string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return err
	}
	_, err = f.WriteString(value)
	cerr := f.Close()
	if err != nil {
		return err
	}
	return cerr
}

func read(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
