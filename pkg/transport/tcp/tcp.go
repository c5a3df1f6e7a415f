// Package tcp is the default transport.Transport: a TCP connection to an
// adapter's diagnostic port.
package tcp

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

// DefaultAddress is the adapter's default diagnostic endpoint.
const DefaultAddress = "192.168.42.42:129"

// Conn is a transport.Transport backed by a TCP connection.
type Conn struct {
	address string
	dialer  net.Dialer
	logger  *slog.Logger

	mu        sync.Mutex
	conn      net.Conn
	lastError error
}

// Option configures a Conn at construction.
type Option func(*Conn)

// WithDialTimeout bounds how long Connect waits for the TCP handshake.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Conn) { c.dialer.Timeout = d }
}

// New builds an unconnected Conn targeting address (DefaultAddress if
// empty).
func New(address string, logger *slog.Logger, opts ...Option) *Conn {
	if address == "" {
		address = DefaultAddress
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Conn{address: address, logger: logger.With("service", "transport-tcp", "address", address)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the adapter. A no-op if already connected.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}
	conn, err := c.dialer.DialContext(ctx, "tcp", c.address)
	if err != nil {
		c.lastError = err
		return fmt.Errorf("transport/tcp: dial: %w", err)
	}
	c.logger.Info("connected")
	c.conn = conn
	c.lastError = nil
	return nil
}

// Disconnect closes the connection. Safe to call when already
// disconnected.
func (c *Conn) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	if err != nil {
		c.lastError = err
		return fmt.Errorf("transport/tcp: close: %w", err)
	}
	return nil
}

// IsConnected reports whether Connect has succeeded and Disconnect has
// not since been called.
func (c *Conn) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Send writes data in full.
func (c *Conn) Send(data []byte) (int, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return 0, fmt.Errorf("transport/tcp: not connected")
	}
	n, err := conn.Write(data)
	if err != nil {
		c.mu.Lock()
		c.lastError = err
		c.mu.Unlock()
		return n, fmt.Errorf("transport/tcp: write: %w", err)
	}
	return n, nil
}

// Receive blocks until deadline for whatever bytes the connection has to
// offer. The client mutex is released across this call by design (see
// spec's ordering guarantees), so Receive must tolerate a concurrent
// Disconnect.
func (c *Conn) Receive(deadline time.Time) ([]byte, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil, fmt.Errorf("transport/tcp: not connected")
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("transport/tcp: set deadline: %w", err)
	}

	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil
		}
		c.mu.Lock()
		c.lastError = err
		c.mu.Unlock()
		return nil, fmt.Errorf("transport/tcp: read: %w", err)
	}
	return buf[:n], nil
}

// LastError returns the most recent transport-level failure, or nil.
func (c *Conn) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}
