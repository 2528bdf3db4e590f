// Package tcp provides the non-blocking TCP transport for the chat client.
package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/omochice/relay-chat/internal/transport"
	"github.com/omochice/relay-chat/pkg/protocol"
)

const (
	// DefaultWriteSlice bounds how long one Send may wait for socket buffer
	// space before reporting partial progress.
	DefaultWriteSlice = 5 * time.Millisecond
	readBufferSize    = 4096
)

// Conn is a client-side TCP connection to the relay. Send and Receive never
// block beyond the write slice; a background goroutine performs the reads.
type Conn struct {
	conn       net.Conn
	inbox      *transport.Inbox
	connected  bool
	writeSlice time.Duration
}

// New returns an unconnected Conn.
func New() *Conn {
	return &Conn{writeSlice: DefaultWriteSlice}
}

// NewConn wraps an established net.Conn.
func NewConn(conn net.Conn) *Conn {
	c := New()
	c.attach(conn)
	return c
}

// SetWriteSlice changes the per-Send write budget.
func (c *Conn) SetWriteSlice(d time.Duration) {
	c.writeSlice = d
}

// Connect dials host:port.
func (c *Conn) Connect(ctx context.Context, host string, port int) error {
	if c.conn != nil {
		return errors.New("already connected")
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	c.attach(conn)
	return nil
}

func (c *Conn) attach(conn net.Conn) {
	c.conn = conn
	c.connected = true
	c.inbox = transport.NewInbox(protocol.Terminator)

	buf := make([]byte, readBufferSize)
	go c.inbox.Pump(func() ([]byte, error) {
		n, err := conn.Read(buf)
		return buf[:n], err
	})
}

// Send writes data[offset:] within the write slice.
func (c *Conn) Send(data []byte, offset int) transport.SendResult {
	if !c.connected {
		return transport.Closed(transport.ErrNotConnected)
	}
	if offset < 0 || offset > len(data) {
		return transport.Failed(fmt.Errorf("offset %d out of range [0, %d]", offset, len(data)))
	}
	if offset == len(data) {
		return transport.Complete()
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeSlice)); err != nil {
		return c.sendFailure(err)
	}
	n, err := c.conn.Write(data[offset:])
	switch {
	case err == nil:
		return transport.Complete()
	case transport.IsTimeout(err) && n > 0:
		return transport.Partial(offset + n)
	case transport.IsTimeout(err):
		return transport.WouldBlock()
	default:
		return c.sendFailure(err)
	}
}

func (c *Conn) sendFailure(err error) transport.SendResult {
	if transport.IsClosed(err) {
		c.connected = false
		return transport.Closed(err)
	}
	return transport.Failed(err)
}

// Receive returns at most one complete frame.
func (c *Conn) Receive(terminator []byte) transport.RecvResult {
	if c.inbox == nil {
		return transport.RecvResult{Status: transport.RecvClosed, Err: transport.ErrNotConnected}
	}
	res := c.inbox.Next(terminator)
	if res.Status == transport.RecvClosed {
		c.connected = false
	}
	return res
}

// Connected reports whether the relay is considered reachable.
func (c *Conn) Connected() bool {
	return c.connected
}

// ResetConnected marks the connection unlinked without touching the socket.
func (c *Conn) ResetConnected() {
	c.connected = false
}

// Pending reports whether Receive has something to deliver.
func (c *Conn) Pending() bool {
	return c.inbox != nil && c.inbox.Pending()
}

// Notify signals inbound activity.
func (c *Conn) Notify() <-chan struct{} {
	if c.inbox == nil {
		return nil
	}
	return c.inbox.Notify()
}

// RemoteAddr returns the relay address for logging.
func (c *Conn) RemoteAddr() string {
	if c.conn == nil {
		return ""
	}
	return c.conn.RemoteAddr().String()
}

// Close closes the socket.
func (c *Conn) Close() error {
	c.connected = false
	if c.conn == nil {
		return nil
	}
	c.inbox.Stop()
	err := c.conn.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
