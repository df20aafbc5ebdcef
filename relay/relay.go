// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

// Package relay relays button presses on one host to an LED on another
// using UDP datagrams.
//
// The Client sends a hello to the Server, which then sends a toggle for each
// press of its message button, and an off when its off button is pressed.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"

	"github.com/warthog618/gpiosysfs"
	"golang.org/x/sync/errgroup"
)

// Messages exchanged between Client and Server.
const (
	MessageHello  = "9"
	MessageToggle = "1"
	MessageOff    = "0"
)

const maxMessage = 1024

// Option modifies the construction of a Server or Client.
type Option func(*options)

type options struct {
	log *slog.Logger
}

// WithLogger specifies the logger used by the Server or Client.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

func newOptions(opts []Option) options {
	o := options{log: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Server sends button presses to a Client.
type Server struct {
	conn    net.PacketConn
	message *gpiosysfs.Button
	off     *gpiosysfs.Button
	log     *slog.Logger
}

// NewServer creates a Server that sends on conn.
//
// The Server takes ownership of conn and the buttons, which are opened and
// closed by Serve.
func NewServer(conn net.PacketConn, message, off *gpiosysfs.Button, opts ...Option) *Server {
	o := newOptions(opts)
	return &Server{
		conn:    conn,
		message: message,
		off:     off,
		log:     o.log.With("addr", conn.LocalAddr()),
	}
}

// Serve waits for a hello from a client, then sends a toggle for each press
// of the message button until the off button is pressed.
//
// Cancelling ctx stops the Server and is not an error. The conn is closed and
// the buttons released before Serve returns.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.open(); err != nil {
		s.conn.Close()
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var once sync.Once
	var rerr error
	stop := func() {
		once.Do(func() {
			s.conn.Close()
			rerr = s.release()
		})
	}
	go func() {
		<-ctx.Done()
		stop()
	}()
	err := s.serve(ctx, cancel)
	stop()
	return errors.Join(err, rerr)
}

func (s *Server) open() error {
	if err := s.off.Open(); err != nil {
		return fmt.Errorf("open off button: %w", err)
	}
	if err := s.message.Open(); err != nil {
		s.off.Close()
		return fmt.Errorf("open message button: %w", err)
	}
	return nil
}

func (s *Server) release() error {
	var errs []error
	if _, err := s.message.Close(); err != nil {
		errs = append(errs, fmt.Errorf("release message button: %w", err))
	}
	if _, err := s.off.Close(); err != nil {
		errs = append(errs, fmt.Errorf("release off button: %w", err))
	}
	return errors.Join(errs...)
}

func (s *Server) serve(ctx context.Context, stop context.CancelFunc) error {
	buf := make([]byte, maxMessage)
	n, addr, err := s.conn.ReadFrom(buf)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("wait for client: %w", err)
	}
	log := s.log.With("client", addr)
	log.Info("client connected", "hello", string(buf[:n]))

	var g errgroup.Group
	g.Go(func() error {
		// the off loop only returns once its button is closed
		defer stop()
		for {
			if err := s.message.WaitForEdge(); err != nil {
				if gpiosysfs.IsClosed(err) || ctx.Err() != nil {
					return nil
				}
				return err
			}
			log.Debug("message")
			if _, err := s.conn.WriteTo([]byte(MessageToggle), addr); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	})
	g.Go(func() error {
		defer stop()
		if err := s.off.WaitForEdge(); err != nil {
			if gpiosysfs.IsClosed(err) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		log.Info("off")
		_, err := s.conn.WriteTo([]byte(MessageOff), addr)
		return err
	})
	return g.Wait()
}

// Client toggles an LED on receipt of messages from a Server.
type Client struct {
	conn net.Conn
	led  *gpiosysfs.Led
	log  *slog.Logger
}

// NewClient creates a Client that communicates with a Server over conn.
//
// The Client takes ownership of conn and the led, which is opened and closed
// by Run.
func NewClient(conn net.Conn, led *gpiosysfs.Led, opts ...Option) *Client {
	o := newOptions(opts)
	return &Client{
		conn: conn,
		led:  led,
		log:  o.log.With("server", conn.RemoteAddr()),
	}
}

// Run sends a hello to the Server then toggles the LED for each toggle
// received until an off is received.
//
// Returns ErrInvalidMessage if any other message is received.
// Cancelling ctx stops the Client and is not an error. The conn is closed and
// the LED turned off and released before Run returns.
func (c *Client) Run(ctx context.Context) error {
	if err := c.led.Open(); err != nil {
		c.conn.Close()
		return fmt.Errorf("open led: %w", err)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var once sync.Once
	closeConn := func() {
		once.Do(func() { c.conn.Close() })
	}
	go func() {
		<-ctx.Done()
		closeConn()
	}()
	err := c.run(ctx)
	closeConn()
	if _, cerr := c.led.Close(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("release led: %w", cerr))
	}
	return err
}

func (c *Client) run(ctx context.Context) error {
	if _, err := c.conn.Write([]byte(MessageHello)); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("hello: %w", err)
	}
	buf := make([]byte, maxMessage)
	for {
		n, err := c.conn.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		msg := strings.TrimSpace(string(buf[:n]))
		c.log.Debug("received", "msg", msg)
		switch msg {
		case MessageToggle:
			if err := c.led.Toggle(); err != nil {
				return err
			}
		case MessageOff:
			return nil
		default:
			return fmt.Errorf("%w: %q", ErrInvalidMessage, msg)
		}
	}
}

// ErrInvalidMessage indicates the Client received a message other than a
// toggle or off.
var ErrInvalidMessage = errors.New("invalid message")
