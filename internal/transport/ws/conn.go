// Package ws provides the WebSocket transport for the chat client. Every
// frame travels as one binary WebSocket message.
package ws

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/omochice/relay-chat/internal/transport"
	"github.com/omochice/relay-chat/pkg/protocol"
)

// DefaultWriteSlice bounds one Send. A WebSocket write that times out leaves
// the connection unusable, so the budget is generous compared to tcp.
const DefaultWriteSlice = 250 * time.Millisecond

// Conn is a client-side WebSocket connection to the relay.
type Conn struct {
	conn       *websocket.Conn
	inbox      *transport.Inbox
	connected  bool
	writeSlice time.Duration
}

// New returns an unconnected Conn.
func New() *Conn {
	return &Conn{writeSlice: DefaultWriteSlice}
}

// NewConn wraps an established gorilla connection.
func NewConn(conn *websocket.Conn) *Conn {
	c := New()
	c.attach(conn)
	return c
}

// SetWriteSlice changes the per-Send write budget.
func (c *Conn) SetWriteSlice(d time.Duration) {
	c.writeSlice = d
}

// Dial connects to a ws:// or wss:// URL.
func (c *Conn) Dial(ctx context.Context, url string) error {
	if c.conn != nil {
		return errors.New("already connected")
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	c.attach(conn)
	return nil
}

// Connect dials ws://host:port/ws.
func (c *Conn) Connect(ctx context.Context, host string, port int) error {
	return c.Dial(ctx, fmt.Sprintf("ws://%s:%d/ws", host, port))
}

func (c *Conn) attach(conn *websocket.Conn) {
	c.conn = conn
	c.connected = true
	c.inbox = transport.NewInbox(protocol.Terminator)

	go c.inbox.Pump(func() ([]byte, error) {
		for {
			messageType, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return nil, fmt.Errorf("%w: %v", transport.ErrNotConnected, err)
				}
				return nil, err
			}
			if messageType == websocket.BinaryMessage || messageType == websocket.TextMessage {
				return data, nil
			}
		}
	})
}

// Send writes data[offset:] as one binary message. WebSocket writes are
// atomic, so a Send never reports partial progress.
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
	if err := c.conn.WriteMessage(websocket.BinaryMessage, data[offset:]); err != nil {
		return c.sendFailure(err)
	}
	return transport.Complete()
}

func (c *Conn) sendFailure(err error) transport.SendResult {
	if transport.IsClosed(err) || transport.IsTimeout(err) || errors.Is(err, websocket.ErrCloseSent) {
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
	switch {
	case res.Status == transport.RecvClosed:
		c.connected = false
	case res.Status == transport.RecvError && errors.Is(res.Err, transport.ErrNotConnected):
		c.connected = false
		res.Status = transport.RecvClosed
	}
	return res
}

// Connected reports whether the relay is considered reachable.
func (c *Conn) Connected() bool {
	return c.connected
}

// ResetConnected marks the connection unlinked without a network operation.
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

// Close sends a close frame and closes the socket.
func (c *Conn) Close() error {
	c.connected = false
	if c.conn == nil {
		return nil
	}
	c.inbox.Stop()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	err := c.conn.Close()
	c.conn = nil
	return err
}
