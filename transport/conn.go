// Package transport owns the single long-lived connection to the evaluation
// server. All I/O is synchronous and blocking: the session performs one read
// or one write at a time, matching the strict request/response alternation of
// the protocol. A zero-byte read is the server's normal "finished" signal and
// is surfaced as ErrServerClosed, distinct from a read timeout, which is a
// hard transport failure.
package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// ErrServerClosed is returned by ReadShard when the peer has closed the
// connection. It is an expected terminal condition, not a failure; callers
// finish the session cleanly when they see it.
var ErrServerClosed = errors.New("transport: server closed the connection")

// Config holds configuration for the server connection.
type Config struct {
	// Address is the "host:port" of the evaluation server.
	Address string
	// DialTimeout is the max duration for establishing the connection.
	DialTimeout time.Duration
	// ReadTimeout is the max duration to wait for a single read; 0 means no
	// timeout. It should exceed the server's status-print interval so a
	// quiet but healthy server is not mistaken for a dead one.
	ReadTimeout time.Duration
	// WriteTimeout is the max duration for a single write; 0 means no timeout.
	WriteTimeout time.Duration
	// ReceiveBufferSize is the number of bytes requested per read shard. The
	// server sizes its frames against the same cap, so this also anchors the
	// per-frame limit derived after the handshake.
	ReceiveBufferSize int
}

// DefaultConfig returns a Config with default values for the given address.
// Override fields as needed before passing to Dial.
//
// Parameters:
//   - address: The "host:port" to connect to
//
// Returns:
//   - A Config with defaults: DialTimeout 10s, ReadTimeout 65s,
//     WriteTimeout 10s, ReceiveBufferSize 8192.
func DefaultConfig(address string) Config {
	return Config{
		Address:           address,
		DialTimeout:       10 * time.Second,
		ReadTimeout:       65 * time.Second,
		WriteTimeout:      10 * time.Second,
		ReceiveBufferSize: 8192,
	}
}

// Conn is the blocking connection to the evaluation server. It is not safe
// for concurrent use; the session is the single thread of control.
type Conn struct {
	cfg  Config
	conn net.Conn
	buf  []byte
}

// Dial connects to the server named in the config.
//
// Parameters:
//   - cfg: Connection settings (e.g. from DefaultConfig)
//
// Returns:
//   - The established Conn, or an error if the dial fails
func Dial(cfg Config) (*Conn, error) {
	dialer := net.Dialer{Timeout: cfg.DialTimeout}
	conn, err := dialer.Dial("tcp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", cfg.Address, err)
	}
	return NewConn(conn, cfg), nil
}

// NewConn wraps an existing connection. Used by Dial and by tests that
// substitute an in-process pipe for a real socket.
//
// Parameters:
//   - conn: The underlying connection
//   - cfg: Connection settings; ReceiveBufferSize must be positive
//
// Returns:
//   - A Conn reading and writing over conn
func NewConn(conn net.Conn, cfg Config) *Conn {
	if cfg.ReceiveBufferSize <= 0 {
		cfg.ReceiveBufferSize = DefaultConfig("").ReceiveBufferSize
	}
	return &Conn{
		cfg:  cfg,
		conn: conn,
		buf:  make([]byte, cfg.ReceiveBufferSize),
	}
}

// Config returns the connection's configuration.
func (c *Conn) Config() Config {
	return c.cfg
}

// ReadShard performs one blocking read and returns the freshly received
// bytes. Peer closure is reported as ErrServerClosed; an elapsed read
// timeout or any other read failure is returned as a hard error.
//
// Returns:
//   - The received bytes (at least one) on success
//   - ErrServerClosed when the peer has shut down, or the read error
func (c *Conn) ReadShard() ([]byte, error) {
	if c.cfg.ReadTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout)); err != nil {
			return nil, fmt.Errorf("transport: set read deadline: %w", err)
		}
	}

	n, err := c.conn.Read(c.buf)
	if n > 0 {
		// Deliver data before surfacing any error; a final shard may arrive
		// together with EOF and closure will be reported on the next read.
		shard := make([]byte, n)
		copy(shard, c.buf[:n])
		return shard, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return nil, ErrServerClosed
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return nil, fmt.Errorf("transport: no data from server within %v: %w", c.cfg.ReadTimeout, err)
	}
	return nil, fmt.Errorf("transport: read: %w", err)
}

// Send writes a pre-encoded frame to the connection in full.
//
// Parameters:
//   - frame: The complete frame bytes (length prefix, separator, payload)
//
// Returns:
//   - nil on success, or the write error
func (c *Conn) Send(frame []byte) error {
	if c.cfg.WriteTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
			return fmt.Errorf("transport: set write deadline: %w", err)
		}
	}

	if _, err := c.conn.Write(frame); err != nil {
		return fmt.Errorf("transport: write: %w", err)
	}
	return nil
}

// Close closes the underlying connection. Safe to call more than once.
func (c *Conn) Close() error {
	return c.conn.Close()
}
