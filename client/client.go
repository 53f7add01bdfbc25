// File: client/client.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// One TCP connection speaking the send-then-wait-for-ack protocol.

package client

import (
	"bufio"
	"fmt"
	"net"
	"time"

	"github.com/momentics/ackd/api"
	"github.com/momentics/ackd/protocol"
)

// Config holds client parameters.
type Config struct {
	Addr        string        // host:port of the server
	DialTimeout time.Duration // 0 = no timeout
	ReadTimeout time.Duration // per-ack deadline, 0 = disabled
}

// DefaultConfig returns sensible defaults for addr.
func DefaultConfig(addr string) *Config {
	return &Config{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
		ReadTimeout: 10 * time.Second,
	}
}

// Ack is one parsed acknowledgment.
type Ack struct {
	Line      string        // raw line without the newline
	Timestamp time.Time     // server clock at send time, second resolution
	Latency   time.Duration // from message write to ack receipt
}

// Client is a single blocking connection.
type Client struct {
	cfg  Config
	conn net.Conn
	r    *bufio.Reader
}

// Dial connects to cfg.Addr.
func Dial(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("dial: %w", api.ErrInvalidArgument)
	}
	conn, err := net.DialTimeout("tcp", cfg.Addr, cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.Addr, err)
	}
	return &Client{cfg: *cfg, conn: conn, r: bufio.NewReaderSize(conn, 64)}, nil
}

// Send writes msg as one message and blocks until its acknowledgment.
func (c *Client) Send(msg []byte) (Ack, error) {
	if len(msg) == 0 || len(msg) > api.MaxMessageLen {
		return Ack{}, fmt.Errorf("message of %d bytes: %w", len(msg), api.ErrInvalidArgument)
	}
	start := time.Now()
	if _, err := c.conn.Write(msg); err != nil {
		return Ack{}, fmt.Errorf("write: %w", err)
	}
	return c.readAck(start)
}

// Write sends raw bytes without waiting. Callers pair it with ReadAck.
func (c *Client) Write(b []byte) (int, error) {
	return c.conn.Write(b)
}

// ReadAck blocks for the next acknowledgment line.
func (c *Client) ReadAck() (Ack, error) {
	return c.readAck(time.Now())
}

func (c *Client) readAck(start time.Time) (Ack, error) {
	if c.cfg.ReadTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout)); err != nil {
			return Ack{}, err
		}
	}
	line, err := c.r.ReadBytes('\n')
	if err != nil {
		return Ack{}, fmt.Errorf("read ack: %w", err)
	}
	ts, err := protocol.ParseAck(line)
	if err != nil {
		return Ack{}, err
	}
	return Ack{
		Line:      string(line[:len(line)-1]),
		Timestamp: ts,
		Latency:   time.Since(start),
	}, nil
}

// LocalAddr returns the client side of the connection.
func (c *Client) LocalAddr() net.Addr { return c.conn.LocalAddr() }

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
