// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

package gpiosysfs

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/pilebones/go-udev/netlink"
)

// udevMonitor watches for udev to finish processing the export of a line.
type udevMonitor struct {
	conn  *netlink.UEventConn
	queue chan netlink.UEvent
	quit  chan struct{}
	done  chan struct{}
}

// newUdevMonitor must be called before the line is exported, else the event
// may be missed.
func newUdevMonitor(line int, log *slog.Logger) (*udevMonitor, error) {
	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		return nil, fmt.Errorf("unable to connect to netlink kobject uevent socket: %w", err)
	}
	action := "add"
	matcher := &netlink.RuleDefinition{Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "gpio",
			"DEVPATH":   fmt.Sprintf(".*/gpio%d$", line),
		}}
	queue := make(chan netlink.UEvent, 1)
	errs := make(chan error, 1)
	quit := conn.Monitor(queue, errs, matcher)
	mon := udevMonitor{conn: conn, queue: queue, quit: quit, done: make(chan struct{})}
	go func() {
		for {
			select {
			case err := <-errs:
				log.Warn("udev monitor", "err", err)
			case <-mon.done:
				return
			}
		}
	}()
	return &mon, nil
}

// wait blocks until the add event for the line is received or the timeout
// expires.
func (m *udevMonitor) wait(timeout time.Duration) error {
	select {
	case <-m.queue:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("udev add event: %w", ErrTimeout)
	}
}

func (m *udevMonitor) close() {
	select {
	case m.quit <- struct{}{}:
	default:
	}
	m.conn.Close()
	close(m.done)
}
