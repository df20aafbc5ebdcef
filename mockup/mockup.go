// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

// Package mockup provides a mock sysfs GPIO tree.
//
// This is intended for testing of gpiosysfs, but could also be used for
// testing by users of their own code that uses gpiosysfs, without requiring
// root or GPIO hardware.
//
// The export and unexport attributes are FIFOs served by the Mockup, which
// creates and removes line directories asynchronously, as udev would.
// The value attribute of an input line is also a FIFO, so a simulated press
// wakes a poll on the attribute as a real edge would. Such attributes signal
// PollEvents rather than the EPOLLPRI used by the kernel.
package mockup

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// PollEvents are the epoll events signalled by the value attribute of an
// input line when it is pressed.
const PollEvents = unix.EPOLLIN

// Mockup represents a mocked sysfs GPIO tree.
type Mockup struct {
	Root string

	// inputs is immutable after New.
	inputs map[int]bool

	// mu covers the counters and unexported.
	mu        sync.Mutex
	exports   int
	unexports int
	// value of each output line when it was last unexported
	unexported map[int]int

	servers []*server
}

type server struct {
	path   string
	quit   chan struct{}
	exited chan struct{}
}

// Option modifies the construction of a Mockup.
type Option func(*Mockup)

// WithInputs identifies the lines that are buttons, so their value attribute
// is a FIFO that can be pressed.
func WithInputs(lines ...int) Option {
	return func(m *Mockup) {
		for _, l := range lines {
			m.inputs[l] = true
		}
	}
}

// New creates a Mockup rooted at root.
//
// The root directory is created if it does not already exist.
func New(root string, options ...Option) (*Mockup, error) {
	m := Mockup{
		Root:       root,
		inputs:     map[int]bool{},
		unexported: map[int]int{},
	}
	for _, option := range options {
		option(&m)
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, err
	}
	for _, name := range []string{"export", "unexport"} {
		if err := unix.Mkfifo(filepath.Join(root, name), 0666); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", name, err)
		}
	}
	m.servers = []*server{
		m.serve("export", m.export),
		m.serve("unexport", m.unexport),
	}
	return &m, nil
}

// Close stops serving the export and unexport attributes.
//
// Any lines still exported are left in the tree.
func (m *Mockup) Close() error {
	for _, s := range m.servers {
		s.stop()
	}
	m.servers = nil
	return nil
}

func (m *Mockup) serve(name string, handler func(int)) *server {
	s := server{
		path:   filepath.Join(m.Root, name),
		quit:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go func() {
		defer close(s.exited)
		for {
			// blocks until a writer opens the FIFO
			f, err := os.OpenFile(s.path, os.O_RDONLY, 0)
			if err != nil {
				return
			}
			b, _ := io.ReadAll(f)
			f.Close()
			select {
			case <-s.quit:
				return
			default:
			}
			for _, field := range strings.Fields(string(b)) {
				if line, err := strconv.Atoi(field); err == nil {
					handler(line)
				}
			}
		}
	}()
	return &s
}

func (s *server) stop() {
	close(s.quit)
	for {
		// release the server if it is blocked in open
		fd, err := unix.Open(s.path, unix.O_WRONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
		if err == nil {
			unix.Close(fd)
		}
		select {
		case <-s.exited:
			return
		case <-time.After(time.Millisecond):
		}
	}
}

// LinePath returns the path of the directory of the exported line.
func (m *Mockup) LinePath(line int) string {
	return filepath.Join(m.Root, "gpio"+strconv.Itoa(line))
}

func (m *Mockup) attrPath(line int, attr string) string {
	return filepath.Join(m.LinePath(line), attr)
}

// Export adds the line to the tree, as if exported by another process.
//
// This is not counted by Exports.
func (m *Mockup) Export(line int) error {
	return m.create(line)
}

func (m *Mockup) export(line int) {
	m.mu.Lock()
	m.exports++
	m.mu.Unlock()
	m.create(line)
}

// create builds the line directory out of tree, then moves it into place, so
// the line only appears once all its attributes exist.
func (m *Mockup) create(line int) error {
	if _, err := os.Stat(m.LinePath(line)); err == nil {
		return unix.EBUSY
	}
	tmp, err := os.MkdirTemp(m.Root, ".export")
	if err != nil {
		return err
	}
	attrs := map[string]string{
		"direction":  "in",
		"edge":       "none",
		"active_low": "0",
	}
	if m.inputs[line] {
		err = unix.Mkfifo(filepath.Join(tmp, "value"), 0666)
	} else {
		attrs["value"] = "0"
	}
	for name, v := range attrs {
		if err != nil {
			break
		}
		err = os.WriteFile(filepath.Join(tmp, name), []byte(v), 0644)
	}
	if err == nil {
		err = os.Rename(tmp, m.LinePath(line))
	}
	if err != nil {
		os.RemoveAll(tmp)
	}
	return err
}

func (m *Mockup) unexport(line int) {
	m.mu.Lock()
	m.unexports++
	if !m.inputs[line] {
		if v, err := m.Value(line); err == nil {
			m.unexported[line] = v
		}
	}
	m.mu.Unlock()
	os.RemoveAll(m.LinePath(line))
}

// UnexportedValue returns the value an output line held when it was last
// unexported.
//
// Returns false if the line has not been unexported.
func (m *Mockup) UnexportedValue(line int) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.unexported[line]
	return v, ok
}

// Exported returns true if the line is present in the tree.
func (m *Mockup) Exported(line int) bool {
	_, err := os.Stat(m.LinePath(line))
	return err == nil
}

// Exports returns the number of lines written to the export attribute.
func (m *Mockup) Exports() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exports
}

// Unexports returns the number of lines written to the unexport attribute.
func (m *Mockup) Unexports() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unexports
}

// Attr returns the contents of an attribute of an exported line.
//
// This must not be used on the value of an input line, as that would block.
func (m *Mockup) Attr(line int, attr string) (string, error) {
	if attr == "value" && m.inputs[line] {
		return "", ErrorInput{line}
	}
	b, err := os.ReadFile(m.attrPath(line, attr))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// Value returns the value of an exported output line.
func (m *Mockup) Value(line int) (int, error) {
	s, err := m.Attr(line, "value")
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(s)
}

// Press simulates an edge on an input line.
//
// The edge is only delivered to a waiter that has the value attribute open,
// so Press retries until one does or the timeout expires, in which case
// ErrNoWaiter is returned.
func (m *Mockup) Press(line int, timeout time.Duration) error {
	if !m.inputs[line] {
		return ErrorNotInput{line}
	}
	path := m.attrPath(line, "value")
	deadline := time.Now().Add(timeout)
	for {
		fd, err := unix.Open(path, unix.O_WRONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
		if err == nil {
			_, err = unix.Write(fd, []byte("1"))
			unix.Close(fd)
			return err
		}
		if err != unix.ENXIO && err != unix.ENOENT {
			return err
		}
		if time.Now().After(deadline) {
			return ErrNoWaiter
		}
		time.Sleep(time.Millisecond)
	}
}

// ErrNoWaiter indicates a press was not delivered as nothing was waiting on
// the line.
var ErrNoWaiter = errors.New("no waiter on line")

// ErrorInput indicates the operation is not supported on an input line.
type ErrorInput struct {
	Line int
}

func (e ErrorInput) Error() string {
	return fmt.Sprintf("line %d is an input", e.Line)
}

// ErrorNotInput indicates the operation is only supported on an input line.
type ErrorNotInput struct {
	Line int
}

func (e ErrorNotInput) Error() string {
	return fmt.Sprintf("line %d is not an input", e.Line)
}
