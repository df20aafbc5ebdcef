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

	"golang.org/x/sys/unix"
)

// watcher waits for edge events on a value attribute.
//
// Each wait opens the value attribute afresh and polls it, along with a pipe
// used to signal the watcher to shutdown. Closing the watcher writes to the
// pipe, which remains readable, so all current and future waits return
// ErrClosed. The value fd is only ever closed by the wait that opened it.
type watcher struct {
	path   string
	events uint32

	// pipe to signal watcher to shutdown
	donefds []int

	// mu covers closed and the Add side of wg.
	mu     sync.Mutex
	closed bool

	// waits in progress
	wg sync.WaitGroup
}

func newWatcher(path string, events uint32) (*watcher, error) {
	p := []int{0, 0}
	err := unix.Pipe2(p, unix.O_CLOEXEC)
	if err != nil {
		return nil, err
	}
	w := watcher{
		path:    path,
		events:  events,
		donefds: p,
	}
	return &w, nil
}

func (w *watcher) close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()
	unix.Write(w.donefds[1], []byte("bye"))
	w.wg.Wait()
	unix.Close(w.donefds[0])
	unix.Close(w.donefds[1])
}

// wait blocks until an edge is detected, the watcher is closed, or the
// timeout expires.
//
// A negative timeout waits indefinitely.
// Returns false, with no error, if the timeout expires.
func (w *watcher) wait(timeout time.Duration) (bool, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return false, ErrClosed
	}
	w.wg.Add(1)
	w.mu.Unlock()
	defer w.wg.Done()

	vfd, err := unix.Open(w.path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return false, err
	}
	defer unix.Close(vfd)
	// read to clear any pending event
	buf := make([]byte, 8)
	if _, err = unix.Read(vfd, buf); err != nil && !errors.Is(err, unix.EAGAIN) {
		return false, err
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return false, err
	}
	defer unix.Close(epfd)
	epv := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(w.donefds[0])}
	if err = unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, w.donefds[0], &epv); err != nil {
		return false, err
	}
	epv = unix.EpollEvent{Events: w.events, Fd: int32(vfd)}
	if err = unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, vfd, &epv); err != nil {
		return false, err
	}

	var deadline time.Time
	if timeout >= 0 {
		deadline = time.Now().Add(timeout)
	}
	epollEvents := make([]unix.EpollEvent, 2)
	for {
		msec := -1
		if timeout >= 0 {
			remaining := time.Until(deadline)
			if remaining < 0 {
				remaining = 0
			}
			// round up so short timeouts still block
			msec = int((remaining + time.Millisecond - 1) / time.Millisecond)
		}
		n, err := unix.EpollWait(epfd, epollEvents, msec)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return false, err
		}
		if n == 0 {
			return false, nil
		}
		for i := 0; i < n; i++ {
			if epollEvents[i].Fd == int32(w.donefds[0]) {
				return false, ErrClosed
			}
		}
		return true, nil
	}
}
