// Package transport defines the non-blocking send/receive status model shared
// by the chat client transports, and the inbound frame accumulator they use.
package transport

import (
	"errors"
	"io"
	"net"
	"os"
	"syscall"
)

// ErrNotConnected is carried by results of operations on an unlinked transport.
var ErrNotConnected = errors.New("not connected to server")

// SendStatus is the outcome of one Send attempt.
type SendStatus int

const (
	SendComplete SendStatus = iota
	SendPartial
	SendWouldBlock
	SendClosed
	SendError
)

// String returns the string representation of SendStatus
func (s SendStatus) String() string {
	switch s {
	case SendComplete:
		return "complete"
	case SendPartial:
		return "partial"
	case SendWouldBlock:
		return "would-block"
	case SendClosed:
		return "closed"
	default:
		return "error"
	}
}

// SendResult reports a Send attempt. For SendPartial, Offset is the absolute
// position in the buffer up to which bytes were written.
type SendResult struct {
	Status SendStatus
	Offset int
	Err    error
}

// Complete, Partial, WouldBlock, Closed and Failed build SendResults.
func Complete() SendResult          { return SendResult{Status: SendComplete} }
func Partial(offset int) SendResult { return SendResult{Status: SendPartial, Offset: offset} }
func WouldBlock() SendResult        { return SendResult{Status: SendWouldBlock} }
func Closed(err error) SendResult   { return SendResult{Status: SendClosed, Err: err} }
func Failed(err error) SendResult   { return SendResult{Status: SendError, Err: err} }

// RecvStatus is the outcome of one Receive attempt.
type RecvStatus int

const (
	RecvFrame RecvStatus = iota
	RecvIncomplete
	RecvClosed
	RecvError
)

// String returns the string representation of RecvStatus
func (s RecvStatus) String() string {
	switch s {
	case RecvFrame:
		return "frame"
	case RecvIncomplete:
		return "incomplete"
	case RecvClosed:
		return "closed"
	default:
		return "error"
	}
}

// RecvResult reports a Receive attempt. Frame holds one complete frame,
// terminator included, when Status is RecvFrame.
type RecvResult struct {
	Status RecvStatus
	Frame  []byte
	Err    error
}

// IsClosed reports whether err means the peer or the local side has closed
// the connection, as opposed to a transient or unexpected failure.
func IsClosed(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED)
}

// IsTimeout reports whether err is a deadline expiry.
func IsTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
