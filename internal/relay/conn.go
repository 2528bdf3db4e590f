// Package relay implements the server that pairs two chat clients and
// forwards frames between them.
package relay

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Conn is a client connection carrying a byte stream of frames, over raw TCP
// or WebSocket binary messages.
type Conn interface {
	// Read reads frame bytes; message boundaries are not preserved.
	Read(buf []byte) (int, error)
	// Write sends data in one write or one WebSocket message.
	Write(data []byte) error
	Close() error
	RemoteAddr() string
	// Kind names the transport for logging.
	Kind() string
}

// TCPConn wraps a net.Conn for raw TCP clients.
type TCPConn struct {
	conn   net.Conn
	reader io.Reader
	once   sync.Once
	err    error
}

// NewTCPConn creates a TCPConn. reader, when non-nil, replaces conn as the
// read side so bytes peeked during detection are not lost.
func NewTCPConn(conn net.Conn, reader io.Reader) *TCPConn {
	if reader == nil {
		reader = conn
	}
	return &TCPConn{conn: conn, reader: reader}
}

func (c *TCPConn) Read(buf []byte) (int, error) { return c.reader.Read(buf) }
func (c *TCPConn) RemoteAddr() string           { return c.conn.RemoteAddr().String() }
func (c *TCPConn) Kind() string                 { return "tcp" }

func (c *TCPConn) Write(data []byte) error {
	_, err := c.conn.Write(data)
	return err
}

func (c *TCPConn) Close() error {
	c.once.Do(func() { c.err = c.conn.Close() })
	return c.err
}

// closeWait bounds the close frame write.
const closeWait = time.Second

// WSConn wraps an upgraded net.Conn using gobwas/ws server framing.
type WSConn struct {
	conn net.Conn

	rmu        sync.Mutex
	readBuffer []byte
	readPos    int

	// wmu keeps frames from the writer and Close from interleaving.
	wmu sync.Mutex

	once sync.Once
	err  error
}

// NewWSConn creates a WSConn over a connection that already completed the
// upgrade handshake.
func NewWSConn(conn net.Conn) *WSConn {
	return &WSConn{conn: conn}
}

func (c *WSConn) RemoteAddr() string { return c.conn.RemoteAddr().String() }
func (c *WSConn) Kind() string       { return "websocket" }

func (c *WSConn) Write(data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return wsutil.WriteServerBinary(c.conn, data)
}

func (c *WSConn) Read(buf []byte) (int, error) {
	c.rmu.Lock()
	defer c.rmu.Unlock()

	if c.readPos < len(c.readBuffer) {
		n := copy(buf, c.readBuffer[c.readPos:])
		c.readPos += n
		if c.readPos >= len(c.readBuffer) {
			c.readBuffer = nil
			c.readPos = 0
		}
		return n, nil
	}

	data, err := wsutil.ReadClientBinary(c.conn)
	if err != nil {
		var closed wsutil.ClosedError
		if errors.As(err, &closed) {
			return 0, io.EOF
		}
		return 0, err
	}

	n := copy(buf, data)
	if n < len(data) {
		c.readBuffer = data[n:]
		c.readPos = 0
	}
	return n, nil
}

func (c *WSConn) Close() error {
	c.once.Do(func() {
		// Unblocks a writer stuck on a dead peer so the lock can be taken.
		_ = c.conn.SetWriteDeadline(time.Now().Add(closeWait))
		c.wmu.Lock()
		_ = wsutil.WriteServerMessage(c.conn, ws.OpClose, ws.NewCloseFrameBody(ws.StatusNormalClosure, ""))
		c.wmu.Unlock()
		c.err = c.conn.Close()
	})
	return c.err
}

// bufferedConn reads through the detection reader so peeked bytes stay in the
// stream.
type bufferedConn struct {
	net.Conn
	reader *bufio.Reader
}

func (bc *bufferedConn) Read(p []byte) (int, error) {
	return bc.reader.Read(p)
}

var httpMethods = [][]byte{
	[]byte("GET "),
	[]byte("POST"),
	[]byte("PUT "),
	[]byte("HEAD"),
	[]byte("OPTI"),
}

// detectHTTP peeks at the first bytes to decide whether conn starts an HTTP
// request. A raw TCP chat client may stay silent until its user types, so a
// peek that times out with no HTTP prefix means raw TCP.
func detectHTTP(conn net.Conn, wait time.Duration) (bool, *bufio.Reader, error) {
	reader := bufio.NewReader(conn)

	if err := conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
		return false, reader, err
	}
	peek, err := reader.Peek(4)
	if resetErr := conn.SetReadDeadline(time.Time{}); resetErr != nil {
		return false, reader, resetErr
	}
	if err != nil && !errors.Is(err, os.ErrDeadlineExceeded) {
		return false, reader, err
	}

	for _, m := range httpMethods {
		if bytes.HasPrefix(peek, m) {
			return true, reader, nil
		}
	}
	return false, reader, nil
}
